package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/diewo77/go-pos/internal/models"
	"github.com/diewo77/go-pos/internal/store"
)

// KeyDraft is the slot holding the in-progress draft invoice.
const KeyDraft = "cart.draft"

// Draft is the cached draft invoice and the slot version it was read at.
// Invoice is nil when no cart is in progress; Version is 0 when the slot is
// empty.
type Draft struct {
	Invoice *models.POSInvoice
	Version int64
}

// Empty reports whether there is no cart in progress.
func (d *Draft) Empty() bool {
	return d == nil || d.Invoice == nil
}

// DraftRepository caches at most one draft invoice locally and applies the
// validate-before-trust rule against the ERP.
type DraftRepository struct {
	kv  KV
	erp ERP
}

func NewDraftRepository(kv KV, client ERP) *DraftRepository {
	return &DraftRepository{kv: kv, erp: client}
}

// Get reads the cached draft without contacting the ERP.
func (r *DraftRepository) Get(ctx context.Context) (*Draft, error) {
	raw, version, err := r.kv.Get(ctx, KeyDraft)
	if errors.Is(err, store.ErrNotFound) {
		return &Draft{}, nil
	}
	if err != nil {
		return nil, err
	}
	var inv models.POSInvoice
	if err := json.Unmarshal([]byte(raw), &inv); err != nil || inv.Name == "" {
		// unreadable slot: report it empty but keep the version so the next
		// write replaces it
		log.Printf("[cart] WARN: discarding unreadable draft cache: %v", err)
		return &Draft{Version: version}, nil
	}
	return &Draft{Invoice: &inv, Version: version}, nil
}

// Put replaces the cached draft if the slot is still at expected and returns
// the new version.
func (r *DraftRepository) Put(ctx context.Context, inv *models.POSInvoice, expected int64) (int64, error) {
	raw, err := json.Marshal(inv)
	if err != nil {
		return 0, fmt.Errorf("encode draft: %w", err)
	}
	v, err := r.kv.CompareAndPut(ctx, KeyDraft, string(raw), expected)
	if errors.Is(err, store.ErrVersionConflict) {
		return 0, ErrDraftConflict
	}
	return v, err
}

// Clear drops the cached draft unconditionally.
func (r *DraftRepository) Clear(ctx context.Context) error {
	return r.kv.Delete(ctx, KeyDraft)
}

// ClearAt drops the cached draft if the slot is still at expected. Clearing an
// empty slot succeeds.
func (r *DraftRepository) ClearAt(ctx context.Context, expected int64) error {
	if expected == 0 {
		return nil
	}
	if err := r.kv.CompareAndDelete(ctx, KeyDraft, expected); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return ErrDraftConflict
		}
		return err
	}
	return nil
}

// Trusted returns the cached draft only after the ERP confirms the document
// still exists and is editable. A stale draft is removed from the cache and
// reported through stale; the returned Draft is then empty. ERP failures are
// returned as errors and leave the cache untouched.
func (r *DraftRepository) Trusted(ctx context.Context) (d *Draft, stale bool, err error) {
	d, err = r.Get(ctx)
	if err != nil || d.Empty() {
		return d, false, err
	}
	if !d.Invoice.CanEdit() {
		stale = true
	} else {
		ok, err := r.erp.ValidateLink(ctx, models.DoctypePOSInvoice, d.Invoice.Name)
		if err != nil {
			return nil, false, fmt.Errorf("validate draft %s: %w", d.Invoice.Name, err)
		}
		stale = !ok
	}
	if !stale {
		return d, false, nil
	}
	log.Printf("[cart] draft %s is no longer valid, discarding cache", d.Invoice.Name)
	if err := r.ClearAt(ctx, d.Version); err != nil {
		return nil, true, err
	}
	return &Draft{}, true, nil
}
