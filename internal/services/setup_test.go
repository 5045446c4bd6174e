package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/go-pos/internal/erp"
	"github.com/diewo77/go-pos/internal/erp/erptest"
	"github.com/diewo77/go-pos/internal/models"
	"github.com/diewo77/go-pos/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	testUser    = "kasir@example.com"
	testProfile = "POS Makassar"
	testCompany = "Makassar Mega Putra Prima"
)

type fixture struct {
	site     *erptest.Server
	client   *erp.Client
	kv       *store.KV
	drafts   *DraftRepository
	states   *StateRepository
	profiles *ProfileCache
	invoices *InvoiceService
	cart     *CartService
	shift    *ShiftService
	catalog  *CatalogService
	session  *SessionService
	receipts *ReceiptService
	state    *AppState
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := store.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// newFixture wires every service against a fake ERP with one cashier, one
// profile, a tax template and a few serialized items. The cashier is logged
// in, has an open shift and has selected customer Budi.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	site := erptest.New(t)
	site.AddUser(testUser, "rahasia", "Kasir Satu", "CL-01", "Makassar Kota")
	site.AddProfile(models.POSProfile{
		Name:             testProfile,
		Company:          testCompany,
		Warehouse:        "Stores - MMPP",
		SellingPriceList: "Harga Jual",
		Currency:         "IDR",
		TaxesAndCharges:  "Indonesia Tax - MMPP",
		Payments:         []models.POSPaymentMethod{{ModeOfPayment: "Cash", Default: 1}, {ModeOfPayment: "Transfer"}},
	})
	site.AddTaxTemplate("Indonesia Tax - MMPP", models.TaxDetail{AccountHead: "PPN - MMPP", Rate: 11})
	site.AddItem(models.Item{ItemCode: "PKT408", ItemName: "Paket Perdana 408", ItemGroup: "Perdana", PriceListRate: 25000, ActualQty: 10, UOM: "Nos"})
	site.AddItem(models.Item{ItemCode: "VCR10", ItemName: "Voucher 10K", ItemGroup: "Voucher", PriceListRate: 10500, DiscountAmount: 500, ActualQty: 50, UOM: "Nos"})
	site.AddCustomer("Budi", "Budi Santoso")

	client := erp.New(site.URL, erp.WithTimeout(5*time.Second))
	kv := store.NewKV(setupDB(t))
	vault, err := store.NewSessionVault(kv, "test secret")
	if err != nil {
		t.Fatalf("vault: %v", err)
	}
	f := &fixture{site: site, client: client, kv: kv}
	f.drafts = NewDraftRepository(kv, client)
	f.states = NewStateRepository(kv)
	f.profiles = NewProfileCache(client, time.Minute)
	f.invoices = NewInvoiceService()
	f.cart = NewCartService(client, f.drafts, f.states, f.profiles, f.invoices, CartConfig{})
	f.shift = NewShiftService(client, f.drafts, f.profiles, testCompany)
	f.catalog = NewCatalogService(client, f.profiles, CatalogConfig{CustomerPhotoFolder: "Home/Foto KTP Customer"})
	f.session = NewSessionService(client, vault, f.states, f.drafts, f.profiles)
	f.receipts = NewReceiptService(client, f.invoices, ReceiptConfig{PrintFormat: "POS Invoice", Dir: t.TempDir()})

	ctx := context.Background()
	st, err := f.session.Login(ctx, testUser, "rahasia")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	entry, _, err := f.shift.Open(ctx, testUser)
	if err != nil {
		t.Fatalf("open shift: %v", err)
	}
	st.Profile = entry.POSProfile
	if err := f.cart.SelectCustomer(ctx, st, "Budi", "Budi Santoso"); err != nil {
		t.Fatalf("select customer: %v", err)
	}
	f.state = st
	site.ResetCalls()
	return f
}

func (f *fixture) sel(code string, qty int) Selection {
	stock := map[string]float64{"PKT408": 10, "VCR10": 50}
	return Selection{ItemCode: code, Qty: qty, ActualQty: stock[code]}
}

func serials(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return out
}
