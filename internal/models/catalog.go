package models

// Item is a sellable item as returned by the point-of-sale item query, with
// live stock and price for the profile's warehouse and price list.
type Item struct {
	ItemCode       string  `json:"item_code"`
	ItemName       string  `json:"item_name"`
	ItemGroup      string  `json:"item_group,omitempty"`
	Description    string  `json:"description,omitempty"`
	PriceListRate  float64 `json:"price_list_rate"`
	DiscountAmount float64 `json:"discount_amount"`
	ActualQty      float64 `json:"actual_qty"`
	Currency       string  `json:"currency,omitempty"`
	IsStockItem    int     `json:"is_stock_item"`
	UOM            string  `json:"uom,omitempty"`
	BatchNo        string  `json:"batch_no,omitempty"`
	Image          string  `json:"item_image,omitempty"`
}

// NetPrice is the list price minus the item discount.
func (i *Item) NetPrice() float64 {
	return i.PriceListRate - i.DiscountAmount
}

// CustomerRef is a customer match from the link search.
type CustomerRef struct {
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}
