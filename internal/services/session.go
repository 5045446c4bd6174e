package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/diewo77/go-pos/internal/erp"
	"github.com/diewo77/go-pos/internal/models"
	"github.com/diewo77/go-pos/internal/store"
)

// SessionVault seals the ERP session id at rest. *store.SessionVault
// satisfies it.
type SessionVault interface {
	Save(ctx context.Context, sid string) error
	Load(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// SessionService ties the ERP session to the local application state.
type SessionService struct {
	erp      ERP
	vault    SessionVault
	states   *StateRepository
	drafts   *DraftRepository
	profiles *ProfileCache
}

func NewSessionService(client ERP, vault SessionVault, states *StateRepository, drafts *DraftRepository, profiles *ProfileCache) *SessionService {
	return &SessionService{erp: client, vault: vault, states: states, drafts: drafts, profiles: profiles}
}

// Login authenticates against the ERP and starts a fresh application state.
func (s *SessionService) Login(ctx context.Context, usr, pwd string) (*AppState, error) {
	sid, err := s.erp.Login(ctx, usr, pwd)
	if err != nil {
		return nil, err
	}
	if err := s.vault.Save(ctx, sid); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	user, err := s.loadUser(ctx)
	if err != nil {
		return nil, err
	}
	st := &AppState{User: *user}
	if err := s.states.Save(ctx, st); err != nil {
		return nil, err
	}
	log.Printf("[session] %s logged in", user.Email)
	return st, nil
}

// loadUser reads the logged user's profile and cluster name.
func (s *SessionService) loadUser(ctx context.Context) (*models.User, error) {
	email, err := s.erp.LoggedUser(ctx)
	if err != nil {
		return nil, err
	}
	var doc struct {
		FullName string `json:"full_name"`
		Cluster  string `json:"cluster"`
	}
	if err := s.erp.GetDoc(ctx, models.DoctypeUser, email, &doc); err != nil {
		return nil, fmt.Errorf("load user %s: %w", email, err)
	}
	user := &models.User{Email: email, FullName: doc.FullName}
	if doc.Cluster == "" {
		return user, nil
	}
	var cluster struct {
		NamaCluster string `json:"nama_cluster"`
	}
	if err := s.erp.GetDoc(ctx, models.DoctypeCluster, doc.Cluster, &cluster); err != nil {
		log.Printf("[session] WARN: cluster %s unavailable: %v", doc.Cluster, err)
		user.Cluster = doc.Cluster
		return user, nil
	}
	user.Cluster = cluster.NamaCluster
	return user, nil
}

// Restore rebuilds the application state saved by Login and installs the
// stored ERP session. It does not contact the ERP.
func (s *SessionService) Restore(ctx context.Context) (*AppState, error) {
	sid, err := s.vault.Load(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, erp.ErrNotAuthenticated
	case errors.Is(err, store.ErrSealBroken):
		log.Printf("[session] WARN: stored session cannot be opened, logging out")
		_ = s.vault.Clear(ctx)
		return nil, erp.ErrNotAuthenticated
	case err != nil:
		return nil, err
	}
	st, err := s.states.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.erp.SetSession(sid)
	return st, nil
}

// Save persists changes to the application state.
func (s *SessionService) Save(ctx context.Context, st *AppState) error {
	return s.states.Save(ctx, st)
}

// Logout ends the ERP session and tears down all local state, including any
// cart in progress. The ERP call is best effort: local state is cleared even
// when the server is unreachable.
func (s *SessionService) Logout(ctx context.Context) error {
	if err := s.erp.Logout(ctx); err != nil {
		log.Printf("[session] WARN: erp logout: %v", err)
	}
	s.profiles.InvalidateAll()
	return errors.Join(
		s.vault.Clear(ctx),
		s.states.Clear(ctx),
		s.drafts.Clear(ctx),
	)
}
