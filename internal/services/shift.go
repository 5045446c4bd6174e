package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/diewo77/go-pos/internal/erp"
	"github.com/diewo77/go-pos/internal/models"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const posPage = "erpnext.selling.page.point_of_sale.point_of_sale."

// ShiftService opens and closes the cash register shift that gates the cart.
type ShiftService struct {
	erp      ERP
	drafts   *DraftRepository
	profiles *ProfileCache
	company  string
	// fetchLimit bounds concurrent invoice fetches while closing
	fetchLimit int
}

func NewShiftService(client ERP, drafts *DraftRepository, profiles *ProfileCache, company string) *ShiftService {
	return &ShiftService{erp: client, drafts: drafts, profiles: profiles, company: company, fetchLimit: 4}
}

// Current returns the user's open opening entry, nil when no shift is open.
func (s *ShiftService) Current(ctx context.Context, user string) (*models.OpeningEntry, error) {
	var entries []models.OpeningEntry
	if err := s.erp.Call(ctx, posPage+"check_opening_entry", map[string]any{"user": user}, &entries); err != nil {
		return nil, fmt.Errorf("check opening entry: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// Require returns the open entry or ErrNoShift.
func (s *ShiftService) Require(ctx context.Context, user string) (*models.OpeningEntry, error) {
	entry, err := s.Current(ctx, user)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrNoShift
	}
	return entry, nil
}

// Sync points st at the profile of the user's open shift. It reports whether
// st changed; the caller persists it.
func (s *ShiftService) Sync(ctx context.Context, st *AppState) (entry *models.OpeningEntry, changed bool, err error) {
	if entry, err = s.Current(ctx, st.User.Email); err != nil || entry == nil {
		return entry, false, err
	}
	if st.Profile == entry.POSProfile {
		return entry, false, nil
	}
	if st.Profile != "" {
		log.Printf("[shift] profile changed from %s to %s", st.Profile, entry.POSProfile)
	}
	st.Profile = entry.POSProfile
	return entry, true, nil
}

// Open starts a shift on the company's first POS profile with a zero opening
// balance. An already open shift is returned as is with created false.
func (s *ShiftService) Open(ctx context.Context, user string) (entry *models.OpeningEntry, created bool, err error) {
	if entry, err = s.Current(ctx, user); err != nil || entry != nil {
		return entry, false, err
	}

	var refs []models.CustomerRef
	args := map[string]any{
		"txt":               "",
		"doctype":           models.DoctypePOSProfile,
		"reference_doctype": "",
		"page_length":       10,
		"query":             "erpnext.accounts.doctype.pos_profile.pos_profile.pos_profile_query",
		"filters":           map[string]any{"company": s.company},
	}
	if err := s.erp.Call(ctx, "frappe.desk.search.search_link", args, &refs); err != nil {
		return nil, false, fmt.Errorf("search pos profiles: %w", err)
	}
	if len(refs) == 0 {
		return nil, false, fmt.Errorf("%w: company %q", ErrNoPOSProfile, s.company)
	}
	profile, err := s.profiles.Resolve(ctx, refs[0].Value)
	if err != nil {
		return nil, false, err
	}
	if len(profile.Payments) == 0 {
		return nil, false, fmt.Errorf("%w: %s", ErrNoPaymentMode, profile.Name)
	}

	balances, err := json.Marshal([]map[string]any{{
		"mode_of_payment": profile.Payments[0].ModeOfPayment,
		"opening_amount":  "0",
		"idx":             1,
		"name":            "row 1",
	}})
	if err != nil {
		return nil, false, err
	}
	company := profile.Company
	if company == "" {
		company = s.company
	}
	var opened models.OpeningEntry
	voucher := map[string]any{
		"pos_profile":     profile.Name,
		"company":         company,
		"balance_details": string(balances),
	}
	if err := s.erp.Call(ctx, posPage+"create_opening_voucher", voucher, &opened); err != nil {
		return nil, false, fmt.Errorf("create opening voucher: %w", err)
	}
	if opened.POSProfile == "" {
		opened.POSProfile = profile.Name
	}
	log.Printf("[shift] opened %s on %s for %s", opened.Name, opened.POSProfile, user)
	return &opened, true, nil
}

// Close posts a submitted closing entry that reconciles every submitted,
// not yet consolidated invoice of the shift's profile, then drops any cart
// in progress.
func (s *ShiftService) Close(ctx context.Context, user string) (*models.ClosingEntry, error) {
	entry, err := s.Require(ctx, user)
	if err != nil {
		return nil, err
	}

	var rows []models.InvoiceSummary
	q := erp.ListQuery{
		Fields: []string{"name", "customer", "grand_total", "net_total", "total_qty"},
		Filters: []erp.Filter{
			erp.Eq("pos_profile", entry.POSProfile),
			erp.Eq("docstatus", int(models.DocStatusSubmitted)),
			erp.Eq("consolidated_invoice", ""),
		},
		Limit: -1,
	}
	if err := s.erp.ListDocs(ctx, models.DoctypePOSInvoice, q, &rows); err != nil {
		return nil, fmt.Errorf("list shift invoices: %w", err)
	}

	invoices := make([]models.POSInvoice, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fetchLimit)
	for i, row := range rows {
		g.Go(func() error {
			if err := s.erp.GetDoc(gctx, models.DoctypePOSInvoice, row.Name, &invoices[i]); err != nil {
				return fmt.Errorf("fetch invoice %s: %w", row.Name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	closing := AggregateShift(entry, invoices)
	var posted models.ClosingEntry
	if err := s.erp.InsertDoc(ctx, models.DoctypePOSClosingEntry, closing, &posted); err != nil {
		return nil, fmt.Errorf("post closing entry: %w", err)
	}
	if err := s.drafts.Clear(ctx); err != nil {
		log.Printf("[shift] WARN: could not clear draft after closing: %v", err)
	}
	log.Printf("[shift] closed %s with %d invoices, grand_total=%.2f", entry.Name, len(invoices), posted.GrandTotal)
	return &posted, nil
}

type taxKey struct {
	account string
	rate    string
}

// AggregateShift builds the closing entry for the invoices of a shift: summed
// totals, one tax row per (account head, rate) and one reconciliation row per
// payment mode, in order of first appearance.
func AggregateShift(entry *models.OpeningEntry, invoices []models.POSInvoice) models.ClosingEntry {
	grand, net, qty := decimal.Zero, decimal.Zero, decimal.Zero

	var taxOrder []taxKey
	taxRate := map[taxKey]float64{}
	taxSum := map[taxKey]decimal.Decimal{}

	var modeOrder []string
	paid := map[string]decimal.Decimal{}

	closing := models.ClosingEntry{
		DocStatus:       models.DocStatusSubmitted,
		POSOpeningEntry: entry.Name,
		POSProfile:      entry.POSProfile,
		Company:         entry.Company,
		User:            entry.User,
	}
	for _, inv := range invoices {
		grand = grand.Add(decimal.NewFromFloat(inv.GrandTotal))
		net = net.Add(decimal.NewFromFloat(inv.NetTotal))
		qty = qty.Add(decimal.NewFromFloat(inv.TotalQty))
		closing.POSTransactions = append(closing.POSTransactions, models.ClosingTransaction{
			DocStatus:  models.DocStatusSubmitted,
			POSInvoice: inv.Name,
			GrandTotal: inv.GrandTotal,
			Customer:   inv.Customer,
		})

		for _, t := range inv.Taxes {
			k := taxKey{account: t.AccountHead, rate: decimal.NewFromFloat(t.Rate).String()}
			if _, seen := taxSum[k]; !seen {
				taxOrder = append(taxOrder, k)
				taxRate[k] = t.Rate
				taxSum[k] = decimal.Zero
			}
			taxSum[k] = taxSum[k].Add(decimal.NewFromFloat(t.TaxAmount))
		}

		for _, p := range inv.Payments {
			if _, seen := paid[p.ModeOfPayment]; !seen {
				modeOrder = append(modeOrder, p.ModeOfPayment)
				paid[p.ModeOfPayment] = decimal.Zero
			}
			paid[p.ModeOfPayment] = paid[p.ModeOfPayment].Add(decimal.NewFromFloat(p.Amount))
		}
	}

	for _, k := range taxOrder {
		amt, _ := taxSum[k].Round(2).Float64()
		closing.Taxes = append(closing.Taxes, models.ClosingTax{
			DocStatus:   models.DocStatusSubmitted,
			AccountHead: k.account,
			Rate:        taxRate[k],
			Amount:      amt,
		})
	}

	// opening balances without takings still need a reconciliation row
	for _, b := range entry.BalanceDetails {
		if _, seen := paid[b.ModeOfPayment]; !seen {
			modeOrder = append(modeOrder, b.ModeOfPayment)
			paid[b.ModeOfPayment] = decimal.Zero
		}
	}
	for _, mode := range modeOrder {
		opening := decimal.NewFromFloat(entry.OpeningAmount(mode))
		expected, _ := opening.Add(paid[mode]).Round(2).Float64()
		open, _ := opening.Float64()
		closing.PaymentReconciliation = append(closing.PaymentReconciliation, models.PaymentReconciliation{
			DocStatus:      models.DocStatusSubmitted,
			ModeOfPayment:  mode,
			OpeningAmount:  open,
			ExpectedAmount: expected,
			ClosingAmount:  expected,
		})
	}

	closing.GrandTotal, _ = grand.Round(2).Float64()
	closing.NetTotal, _ = net.Round(2).Float64()
	closing.TotalQuantity, _ = qty.Float64()
	if closing.POSTransactions == nil {
		closing.POSTransactions = []models.ClosingTransaction{}
	}
	if closing.Taxes == nil {
		closing.Taxes = []models.ClosingTax{}
	}
	if closing.PaymentReconciliation == nil {
		closing.PaymentReconciliation = []models.PaymentReconciliation{}
	}
	return closing
}
