package models

// DocStatus is the Frappe document lifecycle flag.
type DocStatus int

const (
	DocStatusDraft     DocStatus = 0
	DocStatusSubmitted DocStatus = 1
	DocStatusCancelled DocStatus = 2
)

// Doctype names used against the ERP resource API.
const (
	DoctypePOSInvoice         = "POS Invoice"
	DoctypeSerialBatchBundle  = "Serial and Batch Bundle"
	DoctypePOSProfile         = "POS Profile"
	DoctypePOSOpeningEntry    = "POS Opening Entry"
	DoctypePOSClosingEntry    = "POS Closing Entry"
	DoctypeCustomer           = "Customer"
	DoctypeUser               = "User"
	DoctypeCluster            = "Cluster"
	InvoiceStatusPaid         = "Paid"
	InvoiceStatusDraft        = "Draft"
	TransactionTypeOutward    = "Outward"
	ChargeTypeOnNetTotal      = "On Net Total"
	ChargeTypeActual          = "Actual"
	ChargeTypeOnPreviousTotal = "On Previous Row Total"
)

// POSInvoice is the "POS Invoice" document as exchanged with the ERP.
// Only the fields the client reads or writes are modelled; the server owns
// the rest.
type POSInvoice struct {
	Name                  string          `json:"name,omitempty"`
	DocStatus             DocStatus       `json:"docstatus"`
	Status                string          `json:"status,omitempty"`
	Customer              string          `json:"customer"`
	CustomerName          string          `json:"customer_name,omitempty"`
	Company               string          `json:"company,omitempty"`
	Currency              string          `json:"currency,omitempty"`
	POSProfile            string          `json:"pos_profile"`
	SellingPriceList      string          `json:"selling_price_list,omitempty"`
	SetWarehouse          string          `json:"set_warehouse,omitempty"`
	TaxesAndCharges       string          `json:"taxes_and_charges,omitempty"`
	PostingDate           string          `json:"posting_date,omitempty"`
	PostingTime           string          `json:"posting_time,omitempty"`
	InvoiceNumber         string          `json:"custom_pos_invoice_number,omitempty"`
	Owner                 string          `json:"owner,omitempty"`
	Modified              string          `json:"modified,omitempty"`
	Items                 []InvoiceItem   `json:"items"`
	Payments              []PaymentDetail `json:"payments"`
	Taxes                 []TaxDetail     `json:"taxes,omitempty"`
	TotalQty              float64         `json:"total_qty"`
	Total                 float64         `json:"total"`
	NetTotal              float64         `json:"net_total"`
	DiscountAmount        float64         `json:"discount_amount"`
	TotalTaxesAndCharges  float64         `json:"total_taxes_and_charges"`
	GrandTotal            float64         `json:"grand_total"`
	RoundedTotal          float64         `json:"rounded_total,omitempty"`
	PaidAmount            float64         `json:"paid_amount,omitempty"`
	UpdateStock           int             `json:"update_stock,omitempty"`
	AmountEligibleForComm float64         `json:"amount_eligible_for_commission,omitempty"`
	ConsolidatedInvoice   string          `json:"consolidated_invoice,omitempty"`
	InWords               string          `json:"in_words,omitempty"`
}

// IsDraft returns true while the invoice has not been submitted.
func (i *POSInvoice) IsDraft() bool {
	return i.DocStatus == DocStatusDraft
}

// IsSubmitted returns true once the invoice is an immutable record.
func (i *POSInvoice) IsSubmitted() bool {
	return i.DocStatus == DocStatusSubmitted
}

// CanEdit returns true if the cart workflow may still mutate the invoice.
func (i *POSInvoice) CanEdit() bool {
	return i.IsDraft()
}

// LineQty sums the quantities of the line items.
func (i *POSInvoice) LineQty() float64 {
	var total float64
	for _, item := range i.Items {
		total += item.Qty
	}
	return total
}

// ItemIndex returns the index of the line for itemCode, or -1.
func (i *POSInvoice) ItemIndex(itemCode string) int {
	for idx, item := range i.Items {
		if item.ItemCode == itemCode {
			return idx
		}
	}
	return -1
}

// DisplayNumber is the number printed on receipts: the custom invoice number
// when the ERP assigns one, the document name otherwise.
func (i *POSInvoice) DisplayNumber() string {
	if i.InvoiceNumber != "" {
		return i.InvoiceNumber
	}
	return i.Name
}

// InvoiceItem is one row of the invoice "items" child table.
type InvoiceItem struct {
	Name                 string  `json:"name,omitempty"`
	Idx                  int     `json:"idx,omitempty"`
	ItemCode             string  `json:"item_code"`
	ItemName             string  `json:"item_name,omitempty"`
	ItemGroup            string  `json:"item_group,omitempty"`
	Description          string  `json:"description,omitempty"`
	UOM                  string  `json:"uom,omitempty"`
	Qty                  float64 `json:"qty"`
	PriceListRate        float64 `json:"price_list_rate,omitempty"`
	Rate                 float64 `json:"rate,omitempty"`
	Amount               float64 `json:"amount,omitempty"`
	NetAmount            float64 `json:"net_amount,omitempty"`
	DiscountAmount       float64 `json:"discount_amount,omitempty"`
	Warehouse            string  `json:"warehouse,omitempty"`
	SerialAndBatchBundle string  `json:"serial_and_batch_bundle,omitempty"`
}

// UnitPrice is the price charged per unit: the rate when the server has
// priced the line, otherwise list price minus the per-unit discount.
func (item *InvoiceItem) UnitPrice() float64 {
	if item.Rate != 0 {
		return item.Rate
	}
	return item.PriceListRate - item.DiscountAmount
}

// PaymentDetail is one row of the invoice "payments" child table.
type PaymentDetail struct {
	Name          string  `json:"name,omitempty"`
	ModeOfPayment string  `json:"mode_of_payment"`
	Amount        float64 `json:"amount,omitempty"`
	Account       string  `json:"account,omitempty"`
	Default       int     `json:"default,omitempty"`
}

// TaxDetail is one row of the invoice "taxes" child table.
type TaxDetail struct {
	ChargeType  string  `json:"charge_type,omitempty"`
	AccountHead string  `json:"account_head"`
	Description string  `json:"description,omitempty"`
	Rate        float64 `json:"rate"`
	TaxAmount   float64 `json:"tax_amount"`
	Total       float64 `json:"total,omitempty"`
}

// InvoiceSummary is a row of the invoice history list.
type InvoiceSummary struct {
	Name          string  `json:"name"`
	InvoiceNumber string  `json:"custom_pos_invoice_number"`
	Customer      string  `json:"customer"`
	CustomerName  string  `json:"customer_name"`
	GrandTotal    float64 `json:"grand_total"`
	NetTotal      float64 `json:"net_total"`
	TotalQty      float64 `json:"total_qty"`
	PostingDate   string  `json:"posting_date,omitempty"`
}
