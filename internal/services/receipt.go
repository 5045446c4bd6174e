package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/diewo77/go-pos/internal/erp"
	"github.com/diewo77/go-pos/internal/models"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
)

// ReceiptConfig holds print settings.
type ReceiptConfig struct {
	PrintFormat string
	Dir         string
}

// History is the invoice list of a profile, newest first.
type History struct {
	Invoices []models.InvoiceSummary `json:"invoices"`
	Total    decimal.Decimal         `json:"total"`
}

// ReceiptService reads submitted invoices back for display, printing and
// export.
type ReceiptService struct {
	erp      ERP
	invoices *InvoiceService
	cfg      ReceiptConfig
}

func NewReceiptService(client ERP, invoices *InvoiceService, cfg ReceiptConfig) *ReceiptService {
	if cfg.PrintFormat == "" {
		cfg.PrintFormat = models.DoctypePOSInvoice
	}
	return &ReceiptService{erp: client, invoices: invoices, cfg: cfg}
}

// Invoice fetches the full invoice document.
func (s *ReceiptService) Invoice(ctx context.Context, name string) (*models.POSInvoice, error) {
	var inv models.POSInvoice
	if err := s.erp.GetDoc(ctx, models.DoctypePOSInvoice, name, &inv); err != nil {
		return nil, fmt.Errorf("load invoice %s: %w", name, err)
	}
	return &inv, nil
}

// History lists the profile's invoices in status (Paid when empty).
func (s *ReceiptService) History(ctx context.Context, profile, status string) (*History, error) {
	if status == "" {
		status = models.InvoiceStatusPaid
	}
	q := erp.ListQuery{
		Fields: []string{
			"name", "customer", "customer_name", "grand_total", "net_total",
			"total_qty", "custom_pos_invoice_number", "posting_date",
		},
		Filters: []erp.Filter{erp.Eq("pos_profile", profile), erp.Eq("status", status)},
		OrderBy: "creation desc",
		Limit:   -1,
	}
	var rows []models.InvoiceSummary
	if err := s.erp.ListDocs(ctx, models.DoctypePOSInvoice, q, &rows); err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	if rows == nil {
		rows = []models.InvoiceSummary{}
	}
	return &History{Invoices: rows, Total: s.invoices.Revenue(rows)}, nil
}

// DownloadPDF renders the invoice with the ERP print format.
func (s *ReceiptService) DownloadPDF(ctx context.Context, name string) ([]byte, error) {
	params := url.Values{
		"doctype": {models.DoctypePOSInvoice},
		"name":    {name},
		"format":  {s.cfg.PrintFormat},
		"key":     {"None"},
	}
	pdf, err := s.erp.Download(ctx, "frappe.utils.print_format.download_pdf", params)
	if err != nil {
		return nil, fmt.Errorf("print invoice %s: %w", name, err)
	}
	return pdf, nil
}

// RenderPDF draws a receipt locally. It is used when the ERP cannot print.
func (s *ReceiptService) RenderPDF(inv *models.POSInvoice, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetTitle(inv.DisplayNumber(), true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, tr(inv.Company), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, tr("No: "+inv.DisplayNumber()), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, tr(inv.PostingDate+" "+inv.PostingTime), "", 1, "C", false, 0, "")
	pdf.Ln(2)
	customer := inv.CustomerName
	if customer == "" {
		customer = inv.Customer
	}
	pdf.CellFormat(0, 6, tr("Customer: "+customer), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(60, 6, "Item", "B", 0, "L", false, 0, "")
	pdf.CellFormat(15, 6, "Qty", "B", 0, "R", false, 0, "")
	pdf.CellFormat(25, 6, "Price", "B", 0, "R", false, 0, "")
	pdf.CellFormat(28, 6, "Amount", "B", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	for _, item := range inv.Items {
		name := item.ItemName
		if name == "" {
			name = item.ItemCode
		}
		amount := item.Amount
		if amount == 0 {
			amount = item.UnitPrice() * item.Qty
		}
		pdf.CellFormat(60, 6, tr(name), "", 0, "L", false, 0, "")
		pdf.CellFormat(15, 6, decimal.NewFromFloat(item.Qty).String(), "", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, FormatMoney(item.UnitPrice()), "", 0, "R", false, 0, "")
		pdf.CellFormat(28, 6, FormatMoney(amount), "", 1, "R", false, 0, "")
	}

	totals := s.invoices.ComputeTotals(inv)
	net, _ := totals.Net.Float64()
	tax, _ := totals.Tax.Float64()
	grand := inv.GrandTotal
	if grand == 0 {
		grand, _ = totals.Grand.Float64()
	}
	pdf.Ln(2)
	line := func(label string, v float64, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Arial", style, 10)
		pdf.CellFormat(100, 6, label, "", 0, "R", false, 0, "")
		pdf.CellFormat(28, 6, FormatMoney(v), "", 1, "R", false, 0, "")
	}
	line("Subtotal", net, false)
	if inv.DiscountAmount > 0 {
		line("Discount", inv.DiscountAmount, false)
	}
	line("Tax", tax, false)
	line("Total", grand, true)
	for _, p := range inv.Payments {
		line(p.ModeOfPayment, p.Amount, false)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render receipt %s: %w", inv.Name, err)
	}
	return pdf.Output(w)
}

// Export writes the invoice PDF to the receipt directory, preferring the ERP
// print format and falling back to the local receipt. It returns the path.
func (s *ReceiptService) Export(ctx context.Context, name string) (string, error) {
	inv, err := s.Invoice(ctx, name)
	if err != nil {
		return "", err
	}
	body, err := s.DownloadPDF(ctx, name)
	if err != nil {
		log.Printf("[receipt] WARN: ERP print unavailable for %s, rendering locally: %v", name, err)
		var buf bytes.Buffer
		if err := s.RenderPDF(inv, &buf); err != nil {
			return "", err
		}
		body = buf.Bytes()
	}
	dir := s.cfg.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create receipt dir: %w", err)
	}
	path := filepath.Join(dir, ReceiptFileName(inv.DisplayNumber()))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write receipt: %w", err)
	}
	return path, nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ReceiptFileName turns an invoice number into a safe PDF file name.
func ReceiptFileName(number string) string {
	base := strings.Trim(unsafeFileChars.ReplaceAllString(number, "_"), "_")
	if base == "" {
		base = "receipt"
	}
	return base + ".pdf"
}

// FormatMoney formats an amount the Indonesian way: dot thousands separator,
// comma decimals, decimals dropped when zero.
func FormatMoney(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	neg := d.IsNegative()
	d = d.Abs()
	whole := d.Truncate(0).String()
	frac := d.Sub(d.Truncate(0)).Mul(decimal.NewFromInt(100)).Round(0).IntPart()

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := b.String()
	if frac != 0 {
		out += fmt.Sprintf(",%02d", frac)
	}
	if neg {
		out = "-" + out
	}
	return out
}
