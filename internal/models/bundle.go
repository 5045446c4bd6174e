package models

// SerialBatchBundle is the "Serial and Batch Bundle" allocation record created
// for every add-to-cart of a serialized item. It is never edited: a quantity
// change allocates a new bundle.
type SerialBatchBundle struct {
	Name              string        `json:"name,omitempty"`
	ItemCode          string        `json:"item_code"`
	Warehouse         string        `json:"warehouse"`
	TypeOfTransaction string        `json:"type_of_transaction"`
	TotalQty          float64       `json:"total_qty"`
	VoucherType       string        `json:"voucher_type"`
	VoucherNo         string        `json:"voucher_no"`
	Entries           []SerialEntry `json:"entries"`
}

// SerialEntry is one serial number inside a bundle. Idx is 1-based and Qty is
// -1 for an outward unit.
type SerialEntry struct {
	SerialNo  string  `json:"serial_no"`
	Warehouse string  `json:"warehouse"`
	Idx       int     `json:"idx"`
	Qty       float64 `json:"qty"`
}

// NewOutwardBundle builds the allocation for selling serials out of warehouse.
// voucherNo may be empty when no draft invoice exists yet.
func NewOutwardBundle(itemCode, warehouse, voucherNo string, serials []string) SerialBatchBundle {
	entries := make([]SerialEntry, len(serials))
	for i, sn := range serials {
		entries[i] = SerialEntry{SerialNo: sn, Warehouse: warehouse, Idx: i + 1, Qty: -1}
	}
	return SerialBatchBundle{
		ItemCode:          itemCode,
		Warehouse:         warehouse,
		TypeOfTransaction: TransactionTypeOutward,
		TotalQty:          -float64(len(entries)),
		VoucherType:       DoctypePOSInvoice,
		VoucherNo:         voucherNo,
		Entries:           entries,
	}
}
