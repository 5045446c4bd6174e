package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/diewo77/go-pos/internal/erp"
	"github.com/diewo77/go-pos/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartScenarioBudi(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.cart.AddItem(ctx, f.state, f.sel("PKT408", 2), []string{"A1", "A2"})
	require.NoError(t, err)
	require.NotNil(t, res.Invoice)
	draftName := res.Invoice.Name
	require.Len(t, res.Invoice.Items, 1)
	assert.Equal(t, "PKT408", res.Invoice.Items[0].ItemCode)
	assert.Equal(t, 2.0, res.Invoice.Items[0].Qty)
	assert.Equal(t, 2.0, res.Quantity)
	first := f.site.Bundle(res.Invoice.Items[0].SerialAndBatchBundle)
	require.NotNil(t, first)
	assert.Len(t, first.Entries, 2)
	assert.Equal(t, -2.0, first.TotalQty)
	assert.Equal(t, "", first.VoucherNo, "first allocation has no invoice yet")

	res, err = f.cart.AddItem(ctx, f.state, f.sel("PKT408", 3), []string{"B1", "B2", "B3"})
	require.NoError(t, err)
	assert.Equal(t, draftName, res.Invoice.Name, "the same draft is updated")
	require.Len(t, res.Invoice.Items, 1, "one line per item code")
	assert.Equal(t, 3.0, res.Invoice.Items[0].Qty)
	second := f.site.Bundle(res.Invoice.Items[0].SerialAndBatchBundle)
	require.NotNil(t, second)
	assert.NotEqual(t, first.Name, second.Name, "a new bundle supersedes the old one")
	assert.Len(t, second.Entries, 3)
	assert.Equal(t, -3.0, second.TotalQty)
	assert.Equal(t, draftName, second.VoucherNo)
	assert.Equal(t, 1, f.site.InvoiceCount())

	submitted, err := f.cart.Checkout(ctx)
	require.NoError(t, err)
	assert.Equal(t, draftName, submitted.Name)
	assert.True(t, submitted.IsSubmitted())
	assert.Equal(t, models.InvoiceStatusPaid, submitted.Status)
	// 3 x 25000 + 11% tax
	assert.Equal(t, 83250.0, submitted.GrandTotal)
	assert.Equal(t, 83250.0, submitted.PaidAmount)
	assert.Equal(t, 75000.0, submitted.AmountEligibleForComm)
	assert.Equal(t, 7.0, f.site.Stock("PKT408"))

	d, err := f.drafts.Get(ctx)
	require.NoError(t, err)
	assert.True(t, d.Empty(), "checkout clears the local cache")
	qty, err := f.cart.Quantity(ctx)
	require.NoError(t, err)
	assert.Zero(t, qty)
}

func TestAddItemRequiresCustomer(t *testing.T) {
	f := newFixture(t)
	st := *f.state
	st.Customer = ""

	_, err := f.cart.AddItem(context.Background(), &st, f.sel("PKT408", 1), []string{"A1"})
	require.ErrorIs(t, err, ErrCustomerRequired)
	assert.Empty(t, f.site.Calls("", "/api/"), "no remote call without a customer")
}

func TestAddItemValidatesInputBeforeRemoteCalls(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		sel     Selection
		serials []string
		want    error
	}{
		{"zero qty", f.sel("PKT408", 0), nil, ErrInvalidQuantity},
		{"above stock", f.sel("PKT408", 11), serials("S", 11), ErrInsufficientStock},
		{"missing serial", f.sel("PKT408", 2), []string{"A1"}, ErrSerialsIncomplete},
		{"blank serial", f.sel("PKT408", 2), []string{"A1", " "}, ErrSerialsIncomplete},
		{"duplicate serial", f.sel("PKT408", 2), []string{"A1", "A1"}, ErrSerialsIncomplete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.cart.AddItem(ctx, f.state, tt.sel, tt.serials)
			require.ErrorIs(t, err, tt.want)
			var ve *ValidationError
			assert.True(t, errors.As(err, &ve), "expected a ValidationError")
		})
	}
	assert.Empty(t, f.site.Calls("", "/api/"))
}

func TestIdempotentMergeAcrossItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.cart.AddItem(ctx, f.state, f.sel("PKT408", 1), []string{"A1"})
	require.NoError(t, err)
	_, err = f.cart.AddItem(ctx, f.state, f.sel("VCR10", 4), serials("V", 4))
	require.NoError(t, err)
	res, err := f.cart.AddItem(ctx, f.state, f.sel("PKT408", 2), []string{"C1", "C2"})
	require.NoError(t, err)

	require.Len(t, res.Invoice.Items, 2)
	seen := map[string]int{}
	var sum float64
	for _, it := range res.Invoice.Items {
		seen[it.ItemCode]++
		sum += it.Qty
		b := f.site.Bundle(it.SerialAndBatchBundle)
		require.NotNil(t, b)
		assert.Equal(t, int(it.Qty), len(b.Entries))
		assert.Equal(t, -it.Qty, b.TotalQty)
	}
	assert.Equal(t, map[string]int{"PKT408": 1, "VCR10": 1}, seen)
	assert.Equal(t, sum, res.Quantity)
	assert.Equal(t, sum, res.Invoice.TotalQty)
	assert.Equal(t, "PKT408", res.Invoice.Items[0].ItemCode, "line order is kept")
}

func TestStaleDraftSelfHeals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.cart.AddItem(ctx, f.state, f.sel("PKT408", 1), []string{"A1"})
	require.NoError(t, err)
	stale := res.Invoice.Name
	f.site.DeleteInvoice(stale)
	f.site.ResetCalls()

	res, err = f.cart.AddItem(ctx, f.state, f.sel("VCR10", 1), []string{"V1"})
	require.NoError(t, err)
	assert.NotEqual(t, stale, res.Invoice.Name, "a brand new draft is created")
	require.Len(t, res.Invoice.Items, 1)
	assert.Equal(t, "VCR10", res.Invoice.Items[0].ItemCode)
	assert.Empty(t, f.site.Calls(http.MethodPut, "/api/resource/POS Invoice/"), "the stale draft is never updated")
	assert.Len(t, f.site.Calls(http.MethodPost, "/api/resource/POS Invoice"), 1)
}

func TestValidationTransportErrorKeepsCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.cart.AddItem(ctx, f.state, f.sel("PKT408", 1), []string{"A1"})
	require.NoError(t, err)
	f.site.Fail(http.MethodPost, "/api/method/frappe.client.validate_link", http.StatusBadGateway, "ProxyError", "upstream down")

	_, err = f.cart.AddItem(ctx, f.state, f.sel("VCR10", 1), []string{"V1"})
	require.Error(t, err)
	d, err := f.drafts.Get(ctx)
	require.NoError(t, err)
	require.False(t, d.Empty(), "a failed validation is not a stale draft")
	assert.Equal(t, res.Invoice.Name, d.Invoice.Name)
}

func TestBundleFailureLeavesCartUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.cart.AddItem(ctx, f.state, f.sel("PKT408", 1), []string{"A1"})
	require.NoError(t, err)
	before, err := f.drafts.Get(ctx)
	require.NoError(t, err)

	f.site.Fail(http.MethodPost, "/api/resource/Serial and Batch Bundle", http.StatusExpectationFailed,
		"ValidationError", "Serial No V1 is already delivered")
	f.site.ResetCalls()
	_, err = f.cart.AddItem(ctx, f.state, f.sel("VCR10", 1), []string{"V1"})
	require.Error(t, err)
	assert.Equal(t, "Serial No V1 is already delivered", erp.UserMessage(err))
	assert.Empty(t, f.site.Calls(http.MethodPut, "/api/resource/POS Invoice"), "no invoice update after a bundle failure")

	after, err := f.drafts.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
	assert.Len(t, f.site.Invoice(res.Invoice.Name).Items, 1)
}

func TestInvoiceRejectionLeavesCacheUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.cart.AddItem(ctx, f.state, f.sel("PKT408", 1), []string{"A1"})
	require.NoError(t, err)
	before, _ := f.drafts.Get(ctx)

	f.site.Fail(http.MethodPut, "/api/resource/POS Invoice/"+before.Invoice.Name, http.StatusForbidden,
		"PermissionError", "Not permitted")
	_, err = f.cart.AddItem(ctx, f.state, f.sel("PKT408", 2), []string{"A1", "A2"})
	require.ErrorIs(t, err, erp.ErrPermissionDenied)

	after, _ := f.drafts.Get(ctx)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, 1.0, after.Invoice.Items[0].Qty)
}

func TestRemoveItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.cart.AddItem(ctx, f.state, f.sel("PKT408", 1), []string{"A1"})
	require.NoError(t, err)
	_, err = f.cart.AddItem(ctx, f.state, f.sel("VCR10", 2), []string{"V1", "V2"})
	require.NoError(t, err)

	_, err = f.cart.RemoveItem(ctx, "PKT408", false)
	require.ErrorIs(t, err, ErrConfirmationRequired)

	_, err = f.cart.RemoveItem(ctx, "NOPE", true)
	require.ErrorIs(t, err, ErrItemNotInCart)

	res, err := f.cart.RemoveItem(ctx, "PKT408", true)
	require.NoError(t, err)
	require.Len(t, res.Invoice.Items, 1)
	assert.Equal(t, "VCR10", res.Invoice.Items[0].ItemCode)
	assert.Equal(t, 2.0, res.Quantity)

	cached, err := f.drafts.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Invoice.Items, cached.Invoice.Items, "the cache mirrors the confirmed document")
}

func TestRemovingLastItemClearsCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.cart.AddItem(ctx, f.state, f.sel("PKT408", 1), []string{"A1"})
	require.NoError(t, err)
	name := res.Invoice.Name
	f.site.ResetCalls()

	res, err = f.cart.RemoveItem(ctx, "PKT408", true)
	require.NoError(t, err)
	assert.Nil(t, res.Invoice)
	assert.Zero(t, res.Quantity)

	_, _, err = f.kv.Get(ctx, KeyDraft)
	assert.Error(t, err, "the slot is deleted, not left holding an empty invoice")
	assert.Empty(t, f.site.Calls(http.MethodPut, "/api/resource/POS Invoice"))
	assert.NotNil(t, f.site.Invoice(name), "the remote draft is abandoned, not deleted")

	_, err = f.cart.RemoveItem(ctx, "PKT408", true)
	require.ErrorIs(t, err, ErrCartEmpty)
}

func TestCheckoutEmptyCartMakesNoRemoteCall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.cart.Checkout(ctx)
	require.ErrorIs(t, err, ErrCartEmpty)

	// a cached draft with no quantity is just as empty
	_, err = f.drafts.Put(ctx, &models.POSInvoice{Name: "ACC-PSINV-2026-99999"}, 0)
	require.NoError(t, err)
	_, err = f.cart.Checkout(ctx)
	require.ErrorIs(t, err, ErrCartEmpty)

	assert.Empty(t, f.site.Calls("", "/api/"))
}

func TestCheckoutInvalidDraftPurgesWithoutSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.cart.AddItem(ctx, f.state, f.sel("PKT408", 1), []string{"A1"})
	require.NoError(t, err)
	f.site.DeleteInvoice(res.Invoice.Name)
	f.site.ResetCalls()

	_, err = f.cart.Checkout(ctx)
	require.ErrorIs(t, err, ErrDraftInvalid)
	assert.Empty(t, f.site.Calls(http.MethodPut, "/api/resource/POS Invoice"), "submit is never attempted")
	d, _ := f.drafts.Get(ctx)
	assert.True(t, d.Empty())
}

func TestCheckoutSubmittedDraftIsStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.drafts.Put(ctx, &models.POSInvoice{
		Name:      "ACC-PSINV-2026-00042",
		DocStatus: models.DocStatusSubmitted,
		Items:     []models.InvoiceItem{{ItemCode: "PKT408", Qty: 1}},
	}, 0)
	require.NoError(t, err)

	_, err = f.cart.Checkout(ctx)
	require.ErrorIs(t, err, ErrDraftInvalid)
	assert.Empty(t, f.site.Calls("", "/api/"), "a submitted draft is stale without asking the ERP")
	d, _ := f.drafts.Get(ctx)
	assert.True(t, d.Empty())
}

func TestCheckoutRejectionKeepsDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.cart.AddItem(ctx, f.state, f.sel("PKT408", 2), []string{"A1", "A2"})
	require.NoError(t, err)
	f.site.Fail(http.MethodPut, "/api/resource/POS Invoice/"+res.Invoice.Name, http.StatusExpectationFailed,
		"ValidationError", "Stock not sufficient for Item PKT408")

	_, err = f.cart.Checkout(ctx)
	require.Error(t, err)
	assert.Contains(t, erp.UserMessage(err), "Stock not sufficient")

	d, _ := f.drafts.Get(ctx)
	require.False(t, d.Empty())
	assert.True(t, f.site.Invoice(res.Invoice.Name).IsDraft())

	// a retry goes through
	submitted, err := f.cart.Checkout(ctx)
	require.NoError(t, err)
	assert.True(t, submitted.IsSubmitted())
}

func TestSelectCustomerClearsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.cart.AddItem(ctx, f.state, f.sel("PKT408", 1), []string{"A1"})
	require.NoError(t, err)
	require.NoError(t, f.cart.SelectCustomer(ctx, f.state, "CUST-2026-00001", "Ani"))
	assert.Equal(t, "CUST-2026-00001", f.state.Customer)

	d, _ := f.drafts.Get(ctx)
	assert.True(t, d.Empty())
	saved, err := f.states.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ani", saved.CustomerName)

	require.ErrorIs(t, f.cart.SelectCustomer(ctx, f.state, "  ", ""), ErrInvalidCustomer)
}

func TestDraftConflictFromAnotherWriter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.cart.AddItem(ctx, f.state, f.sel("PKT408", 1), []string{"A1"})
	require.NoError(t, err)
	d, _ := f.drafts.Get(ctx)

	// another terminal rewrites the slot after this one read it
	_, err = f.drafts.Put(ctx, d.Invoice, d.Version)
	require.NoError(t, err)
	_, err = f.drafts.Put(ctx, d.Invoice, d.Version)
	require.ErrorIs(t, err, ErrDraftConflict)
}

func TestCartReadsTrustedDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.cart.Cart(ctx)
	require.NoError(t, err)
	assert.Nil(t, res.Invoice)

	added, err := f.cart.AddItem(ctx, f.state, f.sel("VCR10", 3), serials("V", 3))
	require.NoError(t, err)
	res, err = f.cart.Cart(ctx)
	require.NoError(t, err)
	require.NotNil(t, res.Invoice)
	assert.Equal(t, added.Invoice.Name, res.Invoice.Name)
	assert.Equal(t, 3.0, res.Quantity)
	// 3 x (10500 - 500)
	assert.Equal(t, 30000.0, res.Invoice.NetTotal)

	qty, err := f.cart.Quantity(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3.0, qty)
}
