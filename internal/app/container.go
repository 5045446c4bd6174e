// Package app wires the POS services once so the gateway and the CLI run the
// same workflow against the same store.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/diewo77/go-pos/auth"
	"github.com/diewo77/go-pos/internal/config"
	"github.com/diewo77/go-pos/internal/erp"
	"github.com/diewo77/go-pos/internal/models"
	"github.com/diewo77/go-pos/internal/services"
	"github.com/diewo77/go-pos/internal/store"
	"gorm.io/gorm"
)

// profileTTL is how long POS profile details are trusted.
const profileTTL = 5 * time.Minute

// Container holds the configured services.
type Container struct {
	Config *config.Config
	DB     *gorm.DB
	ERP    *erp.Client

	// Gate binds gateway requests to the device session
	Gate *auth.Gate

	Drafts   *services.DraftRepository
	Profiles *services.ProfileCache
	Invoices *services.InvoiceService
	Session  *services.SessionService
	Shift    *services.ShiftService
	Cart     *services.CartService
	Catalog  *services.CatalogService
	Receipts *services.ReceiptService
}

// New builds the container over an opened store. opts are passed to the ERP
// client.
func New(cfg *config.Config, db *gorm.DB, opts ...erp.Option) (*Container, error) {
	if cfg.ERP.Timeout > 0 {
		opts = append([]erp.Option{erp.WithTimeout(time.Duration(cfg.ERP.Timeout) * time.Second)}, opts...)
	}
	client := erp.New(cfg.ERP.BaseURL, opts...)

	kv := store.NewKV(db)
	vault, err := store.NewSessionVault(kv, cfg.App.SessionSecret)
	if err != nil {
		return nil, fmt.Errorf("session vault: %w", err)
	}

	drafts := services.NewDraftRepository(kv, client)
	states := services.NewStateRepository(kv)
	profiles := services.NewProfileCache(client, profileTTL)
	invoices := services.NewInvoiceService()
	session := services.NewSessionService(client, vault, states, drafts, profiles)

	return &Container{
		Config:   cfg,
		DB:       db,
		ERP:      client,
		Gate:     auth.NewGate(cfg.App.SessionSecret, session),
		Drafts:   drafts,
		Profiles: profiles,
		Invoices: invoices,
		Session:  session,
		Shift:    services.NewShiftService(client, drafts, profiles, cfg.ERP.Company),
		Cart: services.NewCartService(client, drafts, states, profiles, invoices, services.CartConfig{
			TaxTemplate: cfg.POS.TaxTemplate,
		}),
		Catalog: services.NewCatalogService(client, profiles, services.CatalogConfig{
			ItemPageLength:      cfg.POS.ItemPageLength,
			CustomerPageLength:  cfg.POS.CustomerPageLength,
			CustomerPhotoFolder: cfg.POS.CustomerPhotoFolder,
		}),
		Receipts: services.NewReceiptService(client, invoices, services.ReceiptConfig{
			PrintFormat: cfg.POS.PrintFormat,
			Dir:         cfg.App.ReceiptDir,
		}),
	}, nil
}

// Login authenticates and attaches the user's open shift, if any, to the new
// state.
func (c *Container) Login(ctx context.Context, usr, pwd string) (*services.AppState, error) {
	st, err := c.Session.Login(ctx, usr, pwd)
	if err != nil {
		return nil, err
	}
	if _, err := c.SyncShift(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// SyncShift returns the open shift of st's user, saving st when its profile
// had to follow the shift. It returns nil without error when no shift is
// open.
func (c *Container) SyncShift(ctx context.Context, st *services.AppState) (*models.OpeningEntry, error) {
	entry, changed, err := c.Shift.Sync(ctx, st)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := c.Session.Save(ctx, st); err != nil {
			return nil, err
		}
	}
	return entry, nil
}

// RequireShift is SyncShift failing with services.ErrNoShift when no shift is
// open.
func (c *Container) RequireShift(ctx context.Context, st *services.AppState) (*models.OpeningEntry, error) {
	entry, err := c.SyncShift(ctx, st)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, services.ErrNoShift
	}
	return entry, nil
}

// OpenShift opens (or returns) the user's shift and points st at it.
func (c *Container) OpenShift(ctx context.Context, st *services.AppState) (*models.OpeningEntry, bool, error) {
	entry, created, err := c.Shift.Open(ctx, st.User.Email)
	if err != nil {
		return nil, false, err
	}
	if st.Profile != entry.POSProfile {
		st.Profile = entry.POSProfile
		if err := c.Session.Save(ctx, st); err != nil {
			return nil, false, err
		}
	}
	return entry, created, nil
}

// AddToCart resolves code on st's profile and adds qty units of it. Serials
// may be given one per unit, as a batch such as "5::7 9", or both; the batch
// fills the slots left empty. Everything checkable locally is checked before
// the ERP is asked for stock.
func (c *Container) AddToCart(ctx context.Context, st *services.AppState, code string, qty int, serials []string, batch string) (*services.CartResult, error) {
	code = strings.TrimSpace(code)
	if strings.TrimSpace(st.Customer) == "" {
		return nil, services.ErrCustomerRequired
	}
	if code == "" {
		return nil, &services.ValidationError{Err: services.ErrInvalidQuantity, Details: map[string]string{"item_code": "required"}}
	}
	slots, err := services.CollectSerials(qty, serials, batch)
	if err != nil {
		return nil, err
	}
	if err := services.ValidateSerials(slots, qty); err != nil {
		return nil, err
	}
	sel, err := c.Catalog.Selection(ctx, st.Profile, code, qty)
	if err != nil {
		return nil, err
	}
	return c.Cart.AddItem(ctx, st, sel, slots)
}
