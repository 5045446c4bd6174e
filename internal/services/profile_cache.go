package services

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/diewo77/go-pos/internal/models"
)

// ProfileCache serves POS profile details with TTL-based caching. Profiles
// change rarely and every add-to-cart needs one.
type ProfileCache struct {
	erp   ERP
	cache map[string]*profileEntry
	mu    sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
}

type profileEntry struct {
	profile   models.POSProfile
	expiresAt time.Time
}

// NewProfileCache caches profiles fetched from the ERP for ttl.
func NewProfileCache(client ERP, ttl time.Duration) *ProfileCache {
	return &ProfileCache{
		erp:   client,
		cache: make(map[string]*profileEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Resolve returns the named profile, from cache when fresh.
func (c *ProfileCache) Resolve(ctx context.Context, name string) (*models.POSProfile, error) {
	if name == "" {
		return nil, ErrProfileUnavailable
	}
	c.mu.RLock()
	entry, ok := c.cache[name]
	c.mu.RUnlock()
	if ok && c.now().Before(entry.expiresAt) {
		p := entry.profile
		return &p, nil
	}

	var p models.POSProfile
	params := url.Values{"doctype": {models.DoctypePOSProfile}, "name": {name}}
	if err := c.erp.CallGet(ctx, "frappe.client.get", params, &p); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrProfileUnavailable, name, err)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("%w: %s", ErrProfileUnavailable, name)
	}

	c.mu.Lock()
	c.cache[name] = &profileEntry{profile: p, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return &p, nil
}

// Invalidate forgets one profile.
func (c *ProfileCache) Invalidate(name string) {
	c.mu.Lock()
	delete(c.cache, name)
	c.mu.Unlock()
}

// InvalidateAll clears the cache, e.g. at logout.
func (c *ProfileCache) InvalidateAll() {
	c.mu.Lock()
	c.cache = make(map[string]*profileEntry)
	c.mu.Unlock()
}
