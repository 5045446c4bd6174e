package models

// POSProfile is the subset of the "POS Profile" document the client needs to
// build invoices.
type POSProfile struct {
	Name             string             `json:"name"`
	Company          string             `json:"company"`
	Warehouse        string             `json:"warehouse"`
	SellingPriceList string             `json:"selling_price_list"`
	Currency         string             `json:"currency,omitempty"`
	TaxesAndCharges  string             `json:"taxes_and_charges,omitempty"`
	Payments         []POSPaymentMethod `json:"payments"`
}

// POSPaymentMethod is a payment mode configured on a POS profile.
type POSPaymentMethod struct {
	ModeOfPayment string `json:"mode_of_payment"`
	Default       int    `json:"default"`
}

// DefaultPaymentMode returns the mode flagged default, else the first one.
func (p *POSProfile) DefaultPaymentMode() (string, bool) {
	for _, m := range p.Payments {
		if m.Default == 1 {
			return m.ModeOfPayment, true
		}
	}
	if len(p.Payments) == 0 {
		return "", false
	}
	return p.Payments[0].ModeOfPayment, true
}
