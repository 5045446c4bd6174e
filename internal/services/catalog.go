package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/diewo77/go-pos/internal/models"
	"github.com/diewo77/go-pos/validation"
	"github.com/google/uuid"
)

// ErrUnknownItem is returned when an item code is not sold on the profile.
var ErrUnknownItem = errors.New("unknown_item")

// CatalogConfig holds page sizes and upload settings.
type CatalogConfig struct {
	ItemPageLength      int
	CustomerPageLength  int
	CustomerPhotoFolder string
}

// CatalogService answers the item and customer pickers and registers new
// customers.
type CatalogService struct {
	erp      ERP
	profiles *ProfileCache
	cfg      CatalogConfig
}

func NewCatalogService(client ERP, profiles *ProfileCache, cfg CatalogConfig) *CatalogService {
	if cfg.ItemPageLength <= 0 {
		cfg.ItemPageLength = 40
	}
	if cfg.CustomerPageLength <= 0 {
		cfg.CustomerPageLength = 10
	}
	return &CatalogService{erp: client, profiles: profiles, cfg: cfg}
}

// Items returns one page of sellable items of the profile, with stock and
// price, matching search.
func (s *CatalogService) Items(ctx context.Context, profileName, search string, start int) ([]models.Item, error) {
	profile, err := s.profiles.Resolve(ctx, profileName)
	if err != nil {
		return nil, err
	}
	if start < 0 {
		start = 0
	}
	args := map[string]any{
		"start":       start,
		"page_length": s.cfg.ItemPageLength,
		"price_list":  profile.SellingPriceList,
		"search_term": search,
		"pos_profile": profile.Name,
	}
	var res struct {
		Items []models.Item `json:"items"`
	}
	if err := s.erp.Call(ctx, posPage+"get_items", args, &res); err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}
	if res.Items == nil {
		res.Items = []models.Item{}
	}
	return res.Items, nil
}

// Item looks up one item by exact code. The search also matches names and
// longer codes, so pages are walked until the code shows up or a short page
// ends the results.
func (s *CatalogService) Item(ctx context.Context, profileName, code string) (*models.Item, error) {
	for start := 0; ; {
		items, err := s.Items(ctx, profileName, code, start)
		if err != nil {
			return nil, err
		}
		for i := range items {
			if items[i].ItemCode == code {
				return &items[i], nil
			}
		}
		if len(items) < s.cfg.ItemPageLength {
			return nil, fmt.Errorf("%w: %s", ErrUnknownItem, code)
		}
		start += len(items)
	}
}

// Selection resolves code into a cart selection carrying its group and the
// stock currently available.
func (s *CatalogService) Selection(ctx context.Context, profileName, code string, qty int) (Selection, error) {
	it, err := s.Item(ctx, profileName, code)
	if err != nil {
		return Selection{}, err
	}
	return Selection{ItemCode: it.ItemCode, ItemGroup: it.ItemGroup, Qty: qty, ActualQty: it.ActualQty}, nil
}

// Customers searches customers by id or name.
func (s *CatalogService) Customers(ctx context.Context, text string) ([]models.CustomerRef, error) {
	args := map[string]any{
		"txt":               text,
		"doctype":           models.DoctypeCustomer,
		"reference_doctype": "",
		"page_length":       s.cfg.CustomerPageLength,
		"filters":           map[string]any{},
	}
	var refs []models.CustomerRef
	if err := s.erp.Call(ctx, "frappe.desk.search.search_link", args, &refs); err != nil {
		return nil, fmt.Errorf("search customers: %w", err)
	}
	if refs == nil {
		refs = []models.CustomerRef{}
	}
	return refs, nil
}

// NewCustomer is the customer registration form. KTP is the 16 digit
// national identity number; Photo is the picture of the card.
type NewCustomer struct {
	OutletID  string
	Name      string
	KTP       string
	Address   string
	Email     string
	Phone     string
	PhotoName string
	Photo     io.Reader
}

// Validate reports the form's violations, nil when it is complete.
func (c NewCustomer) Validate() error {
	v := validation.Violations{}
	validation.Required("nama_customer", c.Name, v)
	validation.Required("ktp", c.KTP, v)
	validation.Digits("ktp", c.KTP, 16, v)
	validation.Required("alamat", c.Address, v)
	validation.Email("email", c.Email, v)
	validation.Phone("telpon", c.Phone, v)
	if c.Photo == nil || strings.TrimSpace(c.PhotoName) == "" {
		v["foto_ktp"] = "required"
	}
	if v.Empty() {
		return nil
	}
	return invalid(ErrInvalidCustomer, v)
}

// CreateCustomer uploads the card photo and registers the customer. It
// returns the name the ERP assigned. A failed upload aborts before anything
// is saved.
func (s *CatalogService) CreateCustomer(ctx context.Context, owner string, c NewCustomer) (*models.CustomerRef, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	file, err := s.erp.UploadFile(ctx, c.PhotoName, c.Photo, map[string]string{
		"is_private": "1",
		"folder":     s.cfg.CustomerPhotoFolder,
	})
	if err != nil {
		return nil, fmt.Errorf("upload customer photo: %w", err)
	}

	doc := map[string]any{
		"doctype":              models.DoctypeCustomer,
		"name":                 "new-customer-" + uuid.NewString(),
		"__islocal":            1,
		"__unsaved":            1,
		"owner":                owner,
		"customer_name":        strings.TrimSpace(c.Name),
		"custom_ktp":           strings.TrimSpace(c.KTP),
		"custom_alamat":        strings.TrimSpace(c.Address),
		"custom_id_outlet":     strings.TrimSpace(c.OutletID),
		"image":                file.FileURL,
		"email_id":             c.Email,
		"mobile_no":            c.Phone,
		"docstatus":            0,
		"naming_series":        "CUST-.YYYY.-",
		"customer_type":        "Individual",
		"is_internal_customer": 0,
		"disabled":             0,
	}
	var saved struct {
		Name         string `json:"name"`
		CustomerName string `json:"customer_name"`
	}
	if err := s.erp.Call(ctx, "frappe.client.save", map[string]any{"doc": doc}, &saved); err != nil {
		return nil, fmt.Errorf("save customer: %w", err)
	}
	log.Printf("[catalog] registered customer %s (%s)", saved.Name, saved.CustomerName)
	return &models.CustomerRef{Value: saved.Name, Description: saved.CustomerName}, nil
}
