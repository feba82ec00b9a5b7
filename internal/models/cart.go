package models

// Size is one of the fixed pack sizes a product variant is sold in.
type Size string

const (
	Size200g Size = "200g"
	Size500g Size = "500g"
	Size1kg  Size = "1kg"
)

// Valid reports whether s is one of the known pack sizes.
func (s Size) Valid() bool {
	switch s {
	case Size200g, Size500g, Size1kg:
		return true
	}
	return false
}

// LineItem is one product/variant/size combination in a cart.
type LineItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	VariantName string `json:"variant"`
	Size        Size   `json:"size"`
	SKU         string `json:"sku"`
	UnitPrice   int64  `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	LineTotal   int64  `json:"line_total"`
}

// LineKey identifies a cart line; two items with the same key are merged.
type LineKey struct {
	ProductID   string
	VariantName string
	Size        Size
}

// Key returns the merge key of the item.
func (i LineItem) Key() LineKey {
	return LineKey{ProductID: i.ProductID, VariantName: i.VariantName, Size: i.Size}
}

// Recompute sets LineTotal from UnitPrice and Quantity.
func (i *LineItem) Recompute() {
	i.LineTotal = i.UnitPrice * int64(i.Quantity)
}
