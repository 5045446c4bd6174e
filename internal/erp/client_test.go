package erp_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/diewo77/go-pos/internal/erp"
	"github.com/diewo77/go-pos/internal/erp/erptest"
	"github.com/diewo77/go-pos/internal/models"
)

func newSite(t *testing.T) (*erptest.Server, *erp.Client) {
	t.Helper()
	site := erptest.New(t)
	site.AddUser("kasir@example.com", "pw", "Kasir Satu", "CL-01", "Makassar")
	site.AddProfile(models.POSProfile{
		Name: "POS Makassar", Company: "MMPP", Warehouse: "Stores - MMPP",
		SellingPriceList: "Standard Selling",
		Payments:         []models.POSPaymentMethod{{ModeOfPayment: "Cash", Default: 1}},
	})
	site.AddItem(models.Item{ItemCode: "PKT408", ItemName: "Paket 408", PriceListRate: 10000, ActualQty: 10})
	return site, erp.New(site.URL)
}

func TestLoginSetsSession(t *testing.T) {
	site, c := newSite(t)
	ctx := context.Background()

	sid, err := c.Login(ctx, "kasir@example.com", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if sid == "" || c.Session() != sid {
		t.Fatalf("expected session to be kept, got %q / %q", sid, c.Session())
	}
	user, err := c.LoggedUser(ctx)
	if err != nil || user != "kasir@example.com" {
		t.Fatalf("logged user: %q %v", user, err)
	}
	if err := c.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if c.Session() != "" {
		t.Fatalf("expected session cleared")
	}
	if len(site.Calls(http.MethodGet, "/api/method/logout")) != 1 {
		t.Fatalf("expected one logout call")
	}
}

func TestLoginBadPassword(t *testing.T) {
	_, c := newSite(t)
	_, err := c.Login(context.Background(), "kasir@example.com", "nope")
	var e *erp.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *erp.Error got %T %v", err, err)
	}
	if e.StatusCode != http.StatusUnauthorized || !strings.Contains(e.Message(), "Invalid login") {
		t.Fatalf("unexpected error %+v", e)
	}
}

func TestExpiredSessionMapsToSentinel(t *testing.T) {
	site, c := newSite(t)
	c.SetSession(site.Login("kasir@example.com"))
	site.ExpireSessions()

	_, err := c.LoggedUser(context.Background())
	if !errors.Is(err, erp.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired got %v", err)
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	site, c := newSite(t)
	c.SetSession(site.Login("kasir@example.com"))
	ctx := context.Background()

	var created models.POSInvoice
	body := models.POSInvoice{
		Customer: "Budi", POSProfile: "POS Makassar",
		Items: []models.InvoiceItem{{ItemCode: "PKT408", Qty: 2}},
	}
	if err := c.InsertDoc(ctx, models.DoctypePOSInvoice, body, &created); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if created.Name == "" || created.GrandTotal != 20000 {
		t.Fatalf("unexpected created invoice %+v", created)
	}

	var got models.POSInvoice
	if err := c.GetDoc(ctx, models.DoctypePOSInvoice, created.Name, &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Customer != "Budi" || len(got.Items) != 1 {
		t.Fatalf("unexpected fetched invoice %+v", got)
	}

	var updated models.POSInvoice
	patch := map[string]any{"items": []models.InvoiceItem{{ItemCode: "PKT408", Qty: 3}}}
	if err := c.UpdateDoc(ctx, models.DoctypePOSInvoice, created.Name, patch, &updated); err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.TotalQty != 3 || updated.Customer != "Budi" {
		t.Fatalf("unexpected updated invoice %+v", updated)
	}

	var rows []models.InvoiceSummary
	q := erp.ListQuery{
		Fields:  []string{"name", "customer", "grand_total"},
		Filters: []erp.Filter{erp.Eq("pos_profile", "POS Makassar")},
		Limit:   -1,
	}
	if err := c.ListDocs(ctx, models.DoctypePOSInvoice, q, &rows); err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != created.Name || rows[0].GrandTotal != 30000 {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestValidateLink(t *testing.T) {
	site, c := newSite(t)
	c.SetSession(site.Login("kasir@example.com"))
	ctx := context.Background()

	var inv models.POSInvoice
	body := models.POSInvoice{Customer: "Budi", POSProfile: "POS Makassar", Items: []models.InvoiceItem{{ItemCode: "PKT408", Qty: 1}}}
	if err := c.InsertDoc(ctx, models.DoctypePOSInvoice, body, &inv); err != nil {
		t.Fatalf("insert: %v", err)
	}
	ok, err := c.ValidateLink(ctx, models.DoctypePOSInvoice, inv.Name)
	if err != nil || !ok {
		t.Fatalf("expected valid link: %v %v", ok, err)
	}
	site.DeleteInvoice(inv.Name)
	ok, err = c.ValidateLink(ctx, models.DoctypePOSInvoice, inv.Name)
	if err != nil || ok {
		t.Fatalf("expected invalid link without error: %v %v", ok, err)
	}

	site.ExpireSessions()
	if _, err := c.ValidateLink(ctx, models.DoctypePOSInvoice, inv.Name); !errors.Is(err, erp.ErrSessionExpired) {
		t.Fatalf("auth failure must be an error, got %v", err)
	}
}

func TestServerMessagesAreJoined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusExpectationFailed)
		_, _ = w.Write([]byte(`{"exc_type":"ValidationError","_server_messages":"[\"{\\\"message\\\": \\\"Stock not sufficient\\\"}\", \"{\\\"message\\\": \\\"Row #1 invalid\\\"}\"]"}`))
	}))
	defer srv.Close()

	c := erp.New(srv.URL)
	err := c.Call(context.Background(), "anything", map[string]any{}, nil)
	var e *erp.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *erp.Error got %v", err)
	}
	if got := e.Message(); got != "Stock not sufficient | Row #1 invalid" {
		t.Fatalf("unexpected message %q", got)
	}
	if e.ExcType != "ValidationError" {
		t.Fatalf("unexpected exc type %q", e.ExcType)
	}
}

func TestErrorFallbacks(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
		is     error
	}{
		{"exception text", 500, `{"exception":"frappe.exceptions.ValidationError: Paid amount too low"}`, "Paid amount too low", nil},
		{"plain message", 417, `{"message":"Nope"}`, "Nope", nil},
		{"not json", 502, `<html>bad gateway</html>`, "Request failed with status 502. Please try again.", nil},
		{"forbidden", 403, `{}`, "Forbidden. You don't have permission to access this resource.", erp.ErrPermissionDenied},
		{"missing", 404, `{"exc_type":"DoesNotExistError"}`, "Resource not found.", erp.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			err := erp.New(srv.URL).GetDoc(context.Background(), "Item", "X", nil)
			if got := erp.UserMessage(err); got != tt.want {
				t.Fatalf("message = %q, want %q", got, tt.want)
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Fatalf("expected errors.Is(%v)", tt.is)
			}
		})
	}
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := erp.New(url).GetDoc(context.Background(), "Item", "X", nil)
	if !errors.Is(err, erp.ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable got %v", err)
	}
}

func TestUploadFile(t *testing.T) {
	site, c := newSite(t)
	c.SetSession(site.Login("kasir@example.com"))

	f, err := c.UploadFile(context.Background(), "ktp.jpg", strings.NewReader("jpeg-bytes"), map[string]string{
		"is_private": "1",
		"folder":     "Home/Foto KTP Customer",
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if f.FileURL != "/private/files/ktp.jpg" {
		t.Fatalf("unexpected file url %q", f.FileURL)
	}
	ups := site.Uploads()
	if len(ups) != 1 || ups[0]["folder"] != "Home/Foto KTP Customer" {
		t.Fatalf("unexpected uploads %+v", ups)
	}
}
