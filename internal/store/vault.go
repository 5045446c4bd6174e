package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

// KeySession is the slot holding the sealed ERP session id.
const KeySession = "session.sid"

// ErrSealBroken is returned when a sealed value cannot be opened, e.g. after
// the session secret changed.
var ErrSealBroken = errors.New("sealed_value_invalid")

// SessionVault keeps the ERP session id sealed at rest.
type SessionVault struct {
	kv  *KV
	key [32]byte
}

// NewSessionVault derives the sealing key from secret.
func NewSessionVault(kv *KV, secret string) (*SessionVault, error) {
	if secret == "" {
		return nil, errors.New("session secret is empty")
	}
	v := &SessionVault{kv: kv}
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("go-pos session vault"))
	if _, err := io.ReadFull(r, v.key[:]); err != nil {
		return nil, fmt.Errorf("derive vault key: %w", err)
	}
	return v, nil
}

// Save seals and stores sid.
func (v *SessionVault) Save(ctx context.Context, sid string) error {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return fmt.Errorf("vault nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(sid), &nonce, &v.key)
	_, err := v.kv.Put(ctx, KeySession, base64.StdEncoding.EncodeToString(sealed))
	return err
}

// Load returns the stored session id, ErrNotFound when none is stored.
func (v *SessionVault) Load(ctx context.Context) (string, error) {
	raw, _, err := v.kv.Get(ctx, KeySession)
	if err != nil {
		return "", err
	}
	sealed, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(sealed) < 24 {
		return "", ErrSealBroken
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	sid, ok := secretbox.Open(nil, sealed[24:], &nonce, &v.key)
	if !ok {
		return "", ErrSealBroken
	}
	return string(sid), nil
}

// Clear forgets the session id.
func (v *SessionVault) Clear(ctx context.Context) error {
	return v.kv.Delete(ctx, KeySession)
}
