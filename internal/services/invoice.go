package services

import (
	"log"

	"github.com/diewo77/go-pos/internal/models"
	"github.com/shopspring/decimal"
)

// Totals are the derived amounts of a POS invoice.
type Totals struct {
	Qty      decimal.Decimal
	Net      decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Grand    decimal.Decimal
}

// InvoiceService derives invoice amounts locally so they can be checked
// against what the ERP returns.
type InvoiceService struct{}

func NewInvoiceService() *InvoiceService {
	return &InvoiceService{}
}

var hundred = decimal.NewFromInt(100)

// ComputeTotals calculates quantity, net, discount, tax and grand total from
// the line items and the tax rows.
func (s *InvoiceService) ComputeTotals(inv *models.POSInvoice) Totals {
	var t Totals
	for _, item := range inv.Items {
		qty := decimal.NewFromFloat(item.Qty)
		t.Qty = t.Qty.Add(qty)
		amount := decimal.NewFromFloat(item.Amount)
		if item.Amount == 0 {
			amount = decimal.NewFromFloat(item.UnitPrice()).Mul(qty)
		}
		t.Net = t.Net.Add(amount)
		t.Discount = t.Discount.Add(decimal.NewFromFloat(item.DiscountAmount).Mul(qty))
	}
	t.Net = t.Net.Round(2)
	t.Discount = t.Discount.Round(2)

	running := t.Net
	for _, tax := range inv.Taxes {
		rate := decimal.NewFromFloat(tax.Rate)
		var amt decimal.Decimal
		switch tax.ChargeType {
		case models.ChargeTypeActual:
			amt = decimal.NewFromFloat(tax.TaxAmount)
		case models.ChargeTypeOnPreviousTotal:
			amt = running.Mul(rate).Div(hundred)
		default:
			amt = t.Net.Mul(rate).Div(hundred)
		}
		amt = amt.Round(2)
		t.Tax = t.Tax.Add(amt)
		running = running.Add(amt)
	}
	t.Grand = t.Net.Add(t.Tax)
	return t
}

// Reconcile returns the line quantity of inv and logs when the server's
// total disagrees with it or with the locally derived grand total.
func (s *InvoiceService) Reconcile(inv *models.POSInvoice) float64 {
	t := s.ComputeTotals(inv)
	qty, _ := t.Qty.Float64()
	if inv.TotalQty != qty {
		log.Printf("[cart] WARN: invoice %s total_qty %v differs from line sum %v", inv.Name, inv.TotalQty, qty)
	}
	if len(inv.Items) > 0 && !decimal.NewFromFloat(inv.GrandTotal).Round(2).Equal(t.Grand) {
		log.Printf("[cart] WARN: invoice %s grand_total %v differs from computed %s", inv.Name, inv.GrandTotal, t.Grand.StringFixed(2))
	}
	return qty
}

// Revenue sums the grand totals of the listed invoices.
func (s *InvoiceService) Revenue(rows []models.InvoiceSummary) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(decimal.NewFromFloat(r.GrandTotal))
	}
	return total
}
