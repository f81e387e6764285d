package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one line of the cart. Price is resolved when the line is added
// and is not re-resolved afterwards.
type CartLine struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	SKU       string          `json:"sku,omitempty"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image,omitempty"`
	Size      string          `json:"selectedSize,omitempty"`
	Color     string          `json:"selectedColor,omitempty"`
	Quantity  int             `json:"quantity"`
}

// LineKey returns the identity key of a line: the sku when present, else the product id.
func LineKey(sku, productID string) string {
	if sku != "" {
		return sku
	}
	return productID
}

// Key computes the identity key from the line's own fields.
func (l CartLine) Key() string {
	return LineKey(l.SKU, l.ProductID)
}

// Subtotal is price times quantity.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// WishlistEntry is a saved product with denormalized display fields.
type WishlistEntry struct {
	ProductID string          `json:"productId"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image,omitempty"`
	AddedAt   time.Time       `json:"addedAt"`
}
