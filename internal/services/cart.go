package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/diewo77/go-pos/internal/models"
)

// Selection is the item being configured before it goes into the cart.
type Selection struct {
	ItemCode  string  `json:"item_code"`
	ItemGroup string  `json:"item_group,omitempty"`
	Qty       int     `json:"qty"`
	ActualQty float64 `json:"actual_qty"`
}

// CartResult is the server-confirmed cart after an operation. Invoice is nil
// once the cart is empty.
type CartResult struct {
	Invoice  *models.POSInvoice `json:"invoice"`
	Quantity float64            `json:"total_qty"`
}

// CartConfig holds invoice defaults that are not on the POS profile.
type CartConfig struct {
	// TaxTemplate overrides the profile's taxes_and_charges when set.
	TaxTemplate string
}

// CartService maintains the one draft invoice of the active shift: merging
// selected items into it, removing them, and submitting it at checkout. The
// local cache is only ever written with what the ERP just confirmed.
type CartService struct {
	erp      ERP
	drafts   *DraftRepository
	states   *StateRepository
	profiles *ProfileCache
	invoices *InvoiceService
	cfg      CartConfig

	// operations on one service never interleave; writers in other
	// processes are caught by the slot version
	mu sync.Mutex
}

func NewCartService(client ERP, drafts *DraftRepository, states *StateRepository, profiles *ProfileCache, invoices *InvoiceService, cfg CartConfig) *CartService {
	return &CartService{
		erp:      client,
		drafts:   drafts,
		states:   states,
		profiles: profiles,
		invoices: invoices,
		cfg:      cfg,
	}
}

// ValidateSelection checks the requested quantity against the stock shown to
// the cashier.
func ValidateSelection(sel Selection) error {
	if strings.TrimSpace(sel.ItemCode) == "" {
		return invalid(ErrInvalidQuantity, map[string]string{"item_code": "required"})
	}
	if sel.Qty < 1 {
		return invalid(ErrInvalidQuantity, map[string]string{"qty": "min_1"})
	}
	if float64(sel.Qty) > sel.ActualQty {
		return invalid(ErrInsufficientStock, map[string]string{"qty": fmt.Sprintf("max_%v", sel.ActualQty)})
	}
	return nil
}

// AddItem allocates a serial bundle for sel and merges it into the draft,
// creating the draft when there is none. An existing line for the same item
// is replaced, never duplicated.
func (s *CartService) AddItem(ctx context.Context, st *AppState, sel Selection, serials []string) (*CartResult, error) {
	if st == nil || strings.TrimSpace(st.Customer) == "" {
		return nil, ErrCustomerRequired
	}
	if err := ValidateSelection(sel); err != nil {
		return nil, err
	}
	if err := ValidateSerials(serials, sel.Qty); err != nil {
		return nil, err
	}
	profile, err := s.profiles.Resolve(ctx, st.Profile)
	if err != nil {
		return nil, err
	}
	mode, ok := profile.DefaultPaymentMode()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoPaymentMode, profile.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	draft, _, err := s.drafts.Trusted(ctx)
	if err != nil {
		return nil, err
	}

	var voucher string
	if !draft.Empty() {
		voucher = draft.Invoice.Name
	}
	bundle := models.NewOutwardBundle(sel.ItemCode, profile.Warehouse, voucher, trimSerials(serials))
	var created models.SerialBatchBundle
	if err := s.erp.InsertDoc(ctx, models.DoctypeSerialBatchBundle, bundle, &created); err != nil {
		return nil, fmt.Errorf("allocate serials for %s: %w", sel.ItemCode, err)
	}

	line := models.InvoiceItem{
		ItemCode:             sel.ItemCode,
		ItemGroup:            sel.ItemGroup,
		Qty:                  float64(sel.Qty),
		Warehouse:            profile.Warehouse,
		SerialAndBatchBundle: created.Name,
	}

	var result models.POSInvoice
	if draft.Empty() {
		tax := s.cfg.TaxTemplate
		if tax == "" {
			tax = profile.TaxesAndCharges
		}
		doc := models.POSInvoice{
			Customer:         st.Customer,
			POSProfile:       profile.Name,
			SellingPriceList: profile.SellingPriceList,
			SetWarehouse:     profile.Warehouse,
			TaxesAndCharges:  tax,
			Items:            []models.InvoiceItem{line},
			Payments:         []models.PaymentDetail{{ModeOfPayment: mode}},
		}
		if err := s.erp.InsertDoc(ctx, models.DoctypePOSInvoice, doc, &result); err != nil {
			return nil, fmt.Errorf("create draft invoice: %w", err)
		}
		log.Printf("[cart] created draft %s for %s", result.Name, st.Customer)
	} else {
		items := mergeLine(draft.Invoice.Items, line)
		patch := map[string]any{"name": draft.Invoice.Name, "items": items}
		if err := s.erp.UpdateDoc(ctx, models.DoctypePOSInvoice, draft.Invoice.Name, patch, &result); err != nil {
			return nil, fmt.Errorf("update draft invoice %s: %w", draft.Invoice.Name, err)
		}
	}

	if _, err := s.drafts.Put(ctx, &result, draft.Version); err != nil {
		if errors.Is(err, ErrDraftConflict) {
			log.Printf("[cart] WARN: draft slot changed while adding %s to %s", sel.ItemCode, result.Name)
		}
		return nil, err
	}
	return &CartResult{Invoice: &result, Quantity: s.invoices.Reconcile(&result)}, nil
}

// mergeLine replaces the line with the same item code, keeping the row's
// other fields, or appends a new one.
func mergeLine(items []models.InvoiceItem, line models.InvoiceItem) []models.InvoiceItem {
	out := append([]models.InvoiceItem(nil), items...)
	for i := range out {
		if out[i].ItemCode != line.ItemCode {
			continue
		}
		out[i].ItemGroup = line.ItemGroup
		out[i].Qty = line.Qty
		out[i].Warehouse = line.Warehouse
		out[i].SerialAndBatchBundle = line.SerialAndBatchBundle
		return out
	}
	return append(out, line)
}

// RemoveItem drops the line for itemCode. Removing the last line clears the
// cache and abandons the remote draft. confirmed must be true: removal
// cannot be undone.
func (s *CartService) RemoveItem(ctx context.Context, itemCode string, confirmed bool) (*CartResult, error) {
	if !confirmed {
		return nil, ErrConfirmationRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	draft, _, err := s.drafts.Trusted(ctx)
	if err != nil {
		return nil, err
	}
	if draft.Empty() {
		return nil, ErrCartEmpty
	}
	idx := draft.Invoice.ItemIndex(itemCode)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrItemNotInCart, itemCode)
	}
	remaining := make([]models.InvoiceItem, 0, len(draft.Invoice.Items)-1)
	remaining = append(remaining, draft.Invoice.Items[:idx]...)
	remaining = append(remaining, draft.Invoice.Items[idx+1:]...)

	if len(remaining) == 0 {
		if err := s.drafts.ClearAt(ctx, draft.Version); err != nil {
			return nil, err
		}
		log.Printf("[cart] cart emptied, draft %s abandoned", draft.Invoice.Name)
		return &CartResult{}, nil
	}

	var result models.POSInvoice
	patch := map[string]any{"name": draft.Invoice.Name, "items": remaining}
	if err := s.erp.UpdateDoc(ctx, models.DoctypePOSInvoice, draft.Invoice.Name, patch, &result); err != nil {
		return nil, fmt.Errorf("update draft invoice %s: %w", draft.Invoice.Name, err)
	}
	if _, err := s.drafts.Put(ctx, &result, draft.Version); err != nil {
		return nil, err
	}
	return &CartResult{Invoice: &result, Quantity: s.invoices.Reconcile(&result)}, nil
}

// Checkout validates the cached draft through the trusted read and submits
// it. The submit is never attempted unless validation succeeded. A stale
// draft is purged and reported as draft_invalid; any other failure leaves the
// draft as it was. The returned invoice is the submitted record.
func (s *CartService) Checkout(ctx context.Context) (*models.POSInvoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cached, err := s.drafts.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cached.Empty() || cached.Invoice.LineQty() <= 0 {
		return nil, ErrCartEmpty
	}
	draft, stale, err := s.drafts.Trusted(ctx)
	if stale {
		if err != nil {
			log.Printf("[cart] WARN: could not purge invalid draft %s: %v", cached.Invoice.Name, err)
		}
		return nil, ErrDraftInvalid
	}
	if err != nil {
		return nil, err
	}
	if draft.Empty() {
		return nil, ErrCartEmpty
	}
	inv := draft.Invoice

	if len(inv.Payments) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPaymentMode, inv.Name)
	}

	totals := s.invoices.ComputeTotals(inv)
	grand := inv.GrandTotal
	if grand == 0 {
		grand, _ = totals.Grand.Float64()
	}
	net := inv.NetTotal
	if net == 0 {
		net, _ = totals.Net.Float64()
	}
	payment := models.PaymentDetail{
		Name:          inv.Payments[0].Name,
		ModeOfPayment: inv.Payments[0].ModeOfPayment,
		Amount:        grand,
	}
	patch := map[string]any{
		"docstatus":                      models.DocStatusSubmitted,
		"update_stock":                   1,
		"paid_amount":                    grand,
		"amount_eligible_for_commission": net,
		"payments":                       []models.PaymentDetail{payment},
	}
	var submitted models.POSInvoice
	if err := s.erp.UpdateDoc(ctx, models.DoctypePOSInvoice, inv.Name, patch, &submitted); err != nil {
		return nil, fmt.Errorf("submit invoice %s: %w", inv.Name, err)
	}

	if err := s.drafts.ClearAt(ctx, draft.Version); err != nil {
		// the invoice is submitted either way; never leave it looking editable
		log.Printf("[cart] WARN: draft slot changed during checkout of %s, clearing", inv.Name)
		if err := s.drafts.Clear(ctx); err != nil {
			return &submitted, err
		}
	}
	log.Printf("[cart] submitted %s grand_total=%.2f", submitted.Name, submitted.GrandTotal)
	return &submitted, nil
}

// SelectCustomer sets the customer of the next cart. Any cart in progress is
// dropped.
func (s *CartService) SelectCustomer(ctx context.Context, st *AppState, customer, displayName string) error {
	customer = strings.TrimSpace(customer)
	if customer == "" {
		return invalid(ErrInvalidCustomer, map[string]string{"customer": "required"})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.drafts.Clear(ctx); err != nil {
		return err
	}
	st.Customer = customer
	st.CustomerName = displayName
	return s.states.Save(ctx, st)
}

// Cart returns the trusted draft, or nil when no cart is in progress.
func (s *CartService) Cart(ctx context.Context) (*CartResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft, _, err := s.drafts.Trusted(ctx)
	if err != nil {
		return nil, err
	}
	if draft.Empty() {
		return &CartResult{}, nil
	}
	return &CartResult{Invoice: draft.Invoice, Quantity: s.invoices.Reconcile(draft.Invoice)}, nil
}

// Quantity is the cart badge count, read from the local cache only.
func (s *CartService) Quantity(ctx context.Context) (float64, error) {
	draft, err := s.drafts.Get(ctx)
	if err != nil {
		return 0, err
	}
	if draft.Empty() {
		return 0, nil
	}
	return draft.Invoice.LineQty(), nil
}
