package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/diewo77/go-pos/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	items, err := f.catalog.Items(ctx, testProfile, "", 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 10.0, items[0].ActualQty)

	items, err = f.catalog.Items(ctx, testProfile, "voucher", 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "VCR10", items[0].ItemCode)
	assert.Equal(t, 10000.0, items[0].NetPrice())

	items, err = f.catalog.Items(ctx, testProfile, "", 5)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)

	_, err = f.catalog.Items(ctx, "", "", 0)
	require.ErrorIs(t, err, ErrProfileUnavailable)
}

func TestCatalogSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sel, err := f.catalog.Selection(ctx, testProfile, "PKT408", 2)
	require.NoError(t, err)
	assert.Equal(t, Selection{ItemCode: "PKT408", ItemGroup: "Perdana", Qty: 2, ActualQty: 10}, sel)

	// a search hit is not an exact match
	_, err = f.catalog.Item(ctx, testProfile, "PKT")
	require.ErrorIs(t, err, ErrUnknownItem)
}

func TestCatalogItemBeyondFirstPage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		f.site.AddItem(models.Item{ItemCode: fmt.Sprintf("PKT408-%d", i), ItemName: "Bundling PKT408-X", ItemGroup: "Perdana", PriceListRate: 30000, ActualQty: 1})
	}
	f.site.AddItem(models.Item{ItemCode: "PKT408-X", ItemName: "Paket Perdana 408 Extra", ItemGroup: "Perdana", PriceListRate: 35000, ActualQty: 4})
	catalog := NewCatalogService(f.client, f.profiles, CatalogConfig{ItemPageLength: 2})

	it, err := catalog.Item(ctx, testProfile, "PKT408-X")
	require.NoError(t, err)
	assert.Equal(t, 4.0, it.ActualQty)
	assert.Len(t, f.site.Calls("", "get_items"), 3, "pages of two until the code shows up")

	f.site.ResetCalls()
	_, err = catalog.Item(ctx, testProfile, "PKT408-Y")
	require.ErrorIs(t, err, ErrUnknownItem)
	assert.Len(t, f.site.Calls("", "get_items"), 1, "a short first page ends the search")
}

func TestCatalogCustomers(t *testing.T) {
	f := newFixture(t)
	refs, err := f.catalog.Customers(context.Background(), "santoso")
	require.NoError(t, err)
	assert.Equal(t, []models.CustomerRef{{Value: "Budi", Description: "Budi Santoso"}}, refs)

	refs, err = f.catalog.Customers(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, refs)
	assert.Empty(t, refs)
}

func validCustomer() NewCustomer {
	return NewCustomer{
		OutletID:  "OUT-77",
		Name:      "Siti Aminah",
		KTP:       "7371012345678901",
		Address:   "Jl. Perintis Kemerdekaan 10",
		Email:     "siti@example.com",
		Phone:     "+6281234567890",
		PhotoName: "ktp-siti.jpg",
		Photo:     strings.NewReader("jpeg bytes"),
	}
}

func TestCreateCustomer(t *testing.T) {
	f := newFixture(t)

	ref, err := f.catalog.CreateCustomer(context.Background(), testUser, validCustomer())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref.Value, "CUST-2026-"), ref.Value)
	assert.Equal(t, "Siti Aminah", ref.Description)

	uploads := f.site.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, "ktp-siti.jpg", uploads[0]["filename"])
	assert.Equal(t, "1", uploads[0]["is_private"])
	assert.Equal(t, "Home/Foto KTP Customer", uploads[0]["folder"])

	doc := f.site.Customer(ref.Value)
	require.NotNil(t, doc)
	assert.Equal(t, "/private/files/ktp-siti.jpg", doc["image"])
	assert.Equal(t, "7371012345678901", doc["custom_ktp"])
	assert.Equal(t, "OUT-77", doc["custom_id_outlet"])
	assert.Equal(t, testUser, doc["owner"])
}

func TestCreateCustomerValidation(t *testing.T) {
	f := newFixture(t)

	c := validCustomer()
	c.Name = " "
	c.KTP = "73710123"
	c.Email = "not an email"
	c.Phone = "12ab"
	c.Photo = nil

	_, err := f.catalog.CreateCustomer(context.Background(), testUser, c)
	require.ErrorIs(t, err, ErrInvalidCustomer)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, map[string]string{
		"nama_customer": "required",
		"ktp":           "invalid_length",
		"email":         "invalid_email",
		"telpon":        "digits_only",
		"foto_ktp":      "required",
	}, ve.Details)
	assert.Empty(t, f.site.Calls("", "/api/"), "nothing is sent for an invalid form")
}

func TestCreateCustomerUploadFailureAbortsSave(t *testing.T) {
	f := newFixture(t)
	f.site.Fail(http.MethodPost, "/api/method/upload_file", http.StatusRequestEntityTooLarge, "ValidationError", "File size exceeded")

	_, err := f.catalog.CreateCustomer(context.Background(), testUser, validCustomer())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload customer photo")
	assert.Empty(t, f.site.Calls(http.MethodPost, "frappe.client.save"))
}
