package view

import (
	"embed"
	"html/template"
	"io"
	"sync"

	"github.com/diewo77/go-pos/i18n"
	"github.com/diewo77/go-pos/internal/models"
	"github.com/diewo77/go-pos/internal/services"
	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	once    sync.Once
	base    *template.Template
	baseErr error

	tplCache = struct {
		sync.RWMutex
		m map[string]*template.Template
	}{m: map[string]*template.Template{}}

	totals = services.NewInvoiceService()
)

// Funcs returns the template helpers bound to lang.
func Funcs(lang string) template.FuncMap {
	return template.FuncMap{
		"t":    func(code string) string { return i18n.T(lang, code) },
		"lang": func() string { return lang },
		"money": func(v any) string {
			f, ok := toFloat64(v)
			if !ok {
				return ""
			}
			return services.FormatMoney(f)
		},
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case decimal.Decimal:
		return n.InexactFloat64(), true
	default:
		return 0, false
	}
}

func parseBase() {
	base, baseErr = template.New("receipt.html").Funcs(Funcs(i18n.Default)).ParseFS(templateFS, "templates/receipt.html")
}

// lookup returns the receipt template with helpers for lang, parsing it once
// per language.
func lookup(lang string) (*template.Template, error) {
	tplCache.RLock()
	t, ok := tplCache.m[lang]
	tplCache.RUnlock()
	if ok {
		return t, nil
	}
	once.Do(parseBase)
	if baseErr != nil {
		return nil, baseErr
	}
	t, err := base.Clone()
	if err != nil {
		return nil, err
	}
	t.Funcs(Funcs(lang))
	tplCache.Lock()
	tplCache.m[lang] = t
	tplCache.Unlock()
	return t, nil
}

type receiptLine struct {
	Name   string
	Qty    string
	Price  float64
	Amount float64
}

type receiptData struct {
	Invoice  *models.POSInvoice
	Customer string
	Lines    []receiptLine
	Net      float64
	Discount float64
	Tax      float64
	Grand    float64
}

// RenderReceipt writes the printable HTML receipt of inv.
func RenderReceipt(w io.Writer, inv *models.POSInvoice, lang string) error {
	if !i18n.Supported(lang) {
		lang = i18n.Default
	}
	t, err := lookup(lang)
	if err != nil {
		return err
	}
	sum := totals.ComputeTotals(inv)
	data := receiptData{Invoice: inv, Customer: inv.CustomerName}
	if data.Customer == "" {
		data.Customer = inv.Customer
	}
	for i := range inv.Items {
		item := &inv.Items[i]
		name := item.ItemName
		if name == "" {
			name = item.ItemCode
		}
		amount := item.Amount
		if amount == 0 {
			amount = item.UnitPrice() * item.Qty
		}
		data.Lines = append(data.Lines, receiptLine{
			Name:   name,
			Qty:    decimal.NewFromFloat(item.Qty).String(),
			Price:  item.UnitPrice(),
			Amount: amount,
		})
	}
	data.Net = sum.Net.InexactFloat64()
	data.Discount = inv.DiscountAmount
	data.Tax = sum.Tax.InexactFloat64()
	data.Grand = inv.GrandTotal
	if data.Grand == 0 {
		data.Grand = sum.Grand.InexactFloat64()
	}
	return t.Execute(w, data)
}
