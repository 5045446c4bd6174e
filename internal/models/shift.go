package models

// OpeningEntry is a "POS Opening Entry": its existence means a shift is open.
type OpeningEntry struct {
	Name            string          `json:"name"`
	POSProfile      string          `json:"pos_profile"`
	Company         string          `json:"company"`
	User            string          `json:"user,omitempty"`
	PeriodStartDate string          `json:"period_start_date,omitempty"`
	BalanceDetails  []BalanceDetail `json:"balance_details,omitempty"`
}

// OpeningAmount returns the opening balance recorded for a payment mode.
func (o *OpeningEntry) OpeningAmount(mode string) float64 {
	for _, b := range o.BalanceDetails {
		if b.ModeOfPayment == mode {
			return b.OpeningAmount
		}
	}
	return 0
}

// BalanceDetail is an opening balance per payment mode.
type BalanceDetail struct {
	ModeOfPayment string  `json:"mode_of_payment"`
	OpeningAmount float64 `json:"opening_amount"`
}

// ClosingEntry is the "POS Closing Entry" posted when a shift ends.
type ClosingEntry struct {
	Name                  string                  `json:"name,omitempty"`
	DocStatus             DocStatus               `json:"docstatus"`
	POSOpeningEntry       string                  `json:"pos_opening_entry"`
	POSProfile            string                  `json:"pos_profile,omitempty"`
	Company               string                  `json:"company,omitempty"`
	User                  string                  `json:"user,omitempty"`
	GrandTotal            float64                 `json:"grand_total"`
	NetTotal              float64                 `json:"net_total"`
	TotalQuantity         float64                 `json:"total_quantity"`
	POSTransactions       []ClosingTransaction    `json:"pos_transactions"`
	Taxes                 []ClosingTax            `json:"taxes"`
	PaymentReconciliation []PaymentReconciliation `json:"payment_reconciliation"`
}

// ClosingTransaction references one submitted invoice of the shift.
type ClosingTransaction struct {
	DocStatus  DocStatus `json:"docstatus"`
	POSInvoice string    `json:"pos_invoice"`
	GrandTotal float64   `json:"grand_total"`
	Customer   string    `json:"customer"`
}

// ClosingTax is the summed tax of one (account head, rate) pair.
type ClosingTax struct {
	DocStatus   DocStatus `json:"docstatus"`
	AccountHead string    `json:"account_head"`
	Rate        float64   `json:"rate"`
	Amount      float64   `json:"amount"`
}

// PaymentReconciliation is the summed takings of one payment mode.
type PaymentReconciliation struct {
	DocStatus      DocStatus `json:"docstatus"`
	ModeOfPayment  string    `json:"mode_of_payment"`
	OpeningAmount  float64   `json:"opening_amount"`
	ExpectedAmount float64   `json:"expected_amount"`
	ClosingAmount  float64   `json:"closing_amount"`
}
