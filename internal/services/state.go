package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/diewo77/go-pos/internal/erp"
	"github.com/diewo77/go-pos/internal/models"
	"github.com/diewo77/go-pos/internal/store"
)

// KeyState is the slot holding the application state.
const KeyState = "session.state"

// AppState is what the cashier has established in this session: who is
// logged in, which POS profile the open shift runs on and which customer the
// cart is for. It is created at login and destroyed at logout.
type AppState struct {
	User         models.User `json:"user"`
	Profile      string      `json:"pos_profile,omitempty"`
	Customer     string      `json:"customer,omitempty"`
	CustomerName string      `json:"customer_name,omitempty"`
}

// StateRepository persists the AppState between runs.
type StateRepository struct {
	kv KV
}

func NewStateRepository(kv KV) *StateRepository {
	return &StateRepository{kv: kv}
}

// Load returns the saved state, erp.ErrNotAuthenticated when there is none.
func (r *StateRepository) Load(ctx context.Context) (*AppState, error) {
	raw, _, err := r.kv.Get(ctx, KeyState)
	if errors.Is(err, store.ErrNotFound) {
		return nil, erp.ErrNotAuthenticated
	}
	if err != nil {
		return nil, err
	}
	var st AppState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("decode app state: %w", err)
	}
	return &st, nil
}

func (r *StateRepository) Save(ctx context.Context, st *AppState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode app state: %w", err)
	}
	_, err = r.kv.Put(ctx, KeyState, string(raw))
	return err
}

func (r *StateRepository) Clear(ctx context.Context) error {
	return r.kv.Delete(ctx, KeyState)
}
