package services

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/diewo77/go-pos/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateShift(t *testing.T) {
	entry := &models.OpeningEntry{
		Name:       "POS-OPE-2026-00001",
		POSProfile: testProfile,
		Company:    testCompany,
		User:       testUser,
		BalanceDetails: []models.BalanceDetail{
			{ModeOfPayment: "Cash", OpeningAmount: 100000},
			{ModeOfPayment: "Transfer", OpeningAmount: 0},
		},
	}
	invoices := []models.POSInvoice{
		{
			Name: "INV-1", Customer: "Budi", GrandTotal: 55500, NetTotal: 50000, TotalQty: 2,
			Taxes:    []models.TaxDetail{{AccountHead: "PPN - MMPP", Rate: 11, TaxAmount: 5500}},
			Payments: []models.PaymentDetail{{ModeOfPayment: "Cash", Amount: 55500}},
		},
		{
			Name: "INV-2", Customer: "Ani", GrandTotal: 12100, NetTotal: 10000, TotalQty: 1,
			Taxes: []models.TaxDetail{
				{AccountHead: "PPN - MMPP", Rate: 11, TaxAmount: 1100},
				{AccountHead: "PB1 - MMPP", Rate: 10, TaxAmount: 1000},
			},
			Payments: []models.PaymentDetail{{ModeOfPayment: "QRIS", Amount: 12100}},
		},
		{
			Name: "INV-3", Customer: "Budi", GrandTotal: 11200, NetTotal: 10000, TotalQty: 1,
			Taxes: []models.TaxDetail{{AccountHead: "PPN - MMPP", Rate: 12, TaxAmount: 1200}},
			Payments: []models.PaymentDetail{
				{ModeOfPayment: "Cash", Amount: 5000},
				{ModeOfPayment: "QRIS", Amount: 6200},
			},
		},
	}

	got := AggregateShift(entry, invoices)

	assert.Equal(t, models.DocStatusSubmitted, got.DocStatus)
	assert.Equal(t, entry.Name, got.POSOpeningEntry)
	assert.Equal(t, 78800.0, got.GrandTotal)
	assert.Equal(t, 70000.0, got.NetTotal)
	assert.Equal(t, 4.0, got.TotalQuantity)
	require.Len(t, got.POSTransactions, 3)
	assert.Equal(t, "INV-2", got.POSTransactions[1].POSInvoice)
	assert.Equal(t, "Ani", got.POSTransactions[1].Customer)

	assert.Equal(t, []models.ClosingTax{
		{DocStatus: models.DocStatusSubmitted, AccountHead: "PPN - MMPP", Rate: 11, Amount: 6600},
		{DocStatus: models.DocStatusSubmitted, AccountHead: "PB1 - MMPP", Rate: 10, Amount: 1000},
		{DocStatus: models.DocStatusSubmitted, AccountHead: "PPN - MMPP", Rate: 12, Amount: 1200},
	}, got.Taxes, "one row per account head and rate")

	assert.Equal(t, []models.PaymentReconciliation{
		{DocStatus: models.DocStatusSubmitted, ModeOfPayment: "Cash", OpeningAmount: 100000, ExpectedAmount: 160500, ClosingAmount: 160500},
		{DocStatus: models.DocStatusSubmitted, ModeOfPayment: "QRIS", ExpectedAmount: 18300, ClosingAmount: 18300},
		{DocStatus: models.DocStatusSubmitted, ModeOfPayment: "Transfer"},
	}, got.PaymentReconciliation)
}

func TestAggregateShiftWithoutInvoices(t *testing.T) {
	got := AggregateShift(&models.OpeningEntry{Name: "POS-OPE-2026-00001"}, nil)
	assert.Zero(t, got.GrandTotal)
	assert.NotNil(t, got.POSTransactions)
	assert.NotNil(t, got.Taxes)
	assert.NotNil(t, got.PaymentReconciliation)

	raw, err := json.Marshal(got)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"pos_transactions":[]`, "empty tables are sent as lists")
}

func TestOpenShiftIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	current, err := f.shift.Require(ctx, testUser)
	require.NoError(t, err)

	again, created, err := f.shift.Open(ctx, testUser)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, current.Name, again.Name)
	assert.Empty(t, f.site.Calls(http.MethodPost, "create_opening_voucher"))
}

func TestSyncAttachesShiftProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st := &AppState{User: f.state.User}
	entry, changed, err := f.shift.Sync(ctx, st)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, changed)
	assert.Equal(t, testProfile, st.Profile)

	_, changed, err = f.shift.Sync(ctx, st)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = f.shift.Close(ctx, testUser)
	require.NoError(t, err)
	entry, changed, err = f.shift.Sync(ctx, st)
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.False(t, changed)
}

func TestOpenShiftSendsZeroOpeningBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.shift.Close(ctx, testUser)
	require.NoError(t, err)
	f.site.ResetCalls()

	entry, created, err := f.shift.Open(ctx, testUser)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, testProfile, entry.POSProfile)
	require.Len(t, entry.BalanceDetails, 1)
	assert.Equal(t, "Cash", entry.BalanceDetails[0].ModeOfPayment)
	assert.Zero(t, entry.BalanceDetails[0].OpeningAmount)

	calls := f.site.Calls(http.MethodPost, "create_opening_voucher")
	require.Len(t, calls, 1)
	var body map[string]any
	require.NoError(t, json.Unmarshal(calls[0].Body, &body))
	assert.Equal(t, testCompany, body["company"])
	assert.IsType(t, "", body["balance_details"], "balance details travel as a JSON string")
}

func TestOpenShiftWithoutProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.shift.Close(ctx, testUser)
	require.NoError(t, err)

	other := NewShiftService(f.client, f.drafts, f.profiles, "Perusahaan Lain")
	_, _, err = other.Open(ctx, testUser)
	require.ErrorIs(t, err, ErrNoPOSProfile)

	_, err = other.Require(ctx, testUser)
	require.ErrorIs(t, err, ErrNoShift)
}

func TestCloseShift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.cart.AddItem(ctx, f.state, f.sel("PKT408", 2), []string{"A1", "A2"})
	require.NoError(t, err)
	first, err := f.cart.Checkout(ctx)
	require.NoError(t, err)
	_, err = f.cart.AddItem(ctx, f.state, f.sel("VCR10", 1), []string{"V1"})
	require.NoError(t, err)
	second, err := f.cart.Checkout(ctx)
	require.NoError(t, err)
	// a cart still in progress is not part of the shift's takings
	pending, err := f.cart.AddItem(ctx, f.state, f.sel("VCR10", 1), []string{"V2"})
	require.NoError(t, err)

	closing, err := f.shift.Close(ctx, testUser)
	require.NoError(t, err)
	assert.NotEmpty(t, closing.Name)
	assert.Equal(t, 66600.0, closing.GrandTotal)
	assert.Equal(t, 60000.0, closing.NetTotal)
	assert.Equal(t, 3.0, closing.TotalQuantity)

	var names []string
	for _, tx := range closing.POSTransactions {
		names = append(names, tx.POSInvoice)
	}
	assert.ElementsMatch(t, []string{first.Name, second.Name}, names)
	assert.NotContains(t, names, pending.Invoice.Name)

	require.Len(t, closing.Taxes, 1)
	assert.Equal(t, closingTaxRow("PPN - MMPP", 11, 6600), closing.Taxes[0])
	require.Len(t, closing.PaymentReconciliation, 1)
	assert.Equal(t, "Cash", closing.PaymentReconciliation[0].ModeOfPayment)
	assert.Equal(t, 66600.0, closing.PaymentReconciliation[0].ExpectedAmount)

	assert.Equal(t, closing.Name, f.site.Invoice(first.Name).ConsolidatedInvoice)
	d, err := f.drafts.Get(ctx)
	require.NoError(t, err)
	assert.True(t, d.Empty(), "closing drops the cart in progress")

	current, err := f.shift.Current(ctx, testUser)
	require.NoError(t, err)
	assert.Nil(t, current)
	_, err = f.shift.Close(ctx, testUser)
	require.ErrorIs(t, err, ErrNoShift)
}

func TestCloseShiftSkipsConsolidatedInvoices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.cart.AddItem(ctx, f.state, f.sel("PKT408", 1), []string{"A1"})
	require.NoError(t, err)
	_, err = f.cart.Checkout(ctx)
	require.NoError(t, err)
	_, err = f.shift.Close(ctx, testUser)
	require.NoError(t, err)

	_, _, err = f.shift.Open(ctx, testUser)
	require.NoError(t, err)
	closing, err := f.shift.Close(ctx, testUser)
	require.NoError(t, err)
	assert.Empty(t, closing.POSTransactions)
	assert.Zero(t, closing.GrandTotal)
	assert.Len(t, f.site.Closings(), 2)
}

func TestCloseShiftFetchFailureAborts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.cart.AddItem(ctx, f.state, f.sel("PKT408", 1), []string{"A1"})
	require.NoError(t, err)
	inv, err := f.cart.Checkout(ctx)
	require.NoError(t, err)

	f.site.Fail(http.MethodGet, "/api/resource/POS Invoice/"+inv.Name, http.StatusInternalServerError, "Exception", "boom")
	_, err = f.shift.Close(ctx, testUser)
	require.Error(t, err)
	assert.Empty(t, f.site.Closings(), "nothing is posted when an invoice cannot be read")

	current, err := f.shift.Current(ctx, testUser)
	require.NoError(t, err)
	assert.NotNil(t, current, "the shift stays open")
}

// closingTaxRow builds the expected submitted tax row.
func closingTaxRow(account string, rate, amount float64) models.ClosingTax {
	return models.ClosingTax{DocStatus: models.DocStatusSubmitted, AccountHead: account, Rate: rate, Amount: amount}
}
