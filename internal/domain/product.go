package domain

import "github.com/shopspring/decimal"

// Product is a read-only local copy of a catalog entry owned by the remote authority.
type Product struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	BasePrice   decimal.Decimal `json:"basePrice"`
	Category    string          `json:"category"`
	Images      []string        `json:"images"`
	Variants    []Variant       `json:"variants"`

	// Colors and Sizes carry the pre-variant catalog format. They are only
	// consulted when Variants is empty.
	Colors []string `json:"colors,omitempty"`
	Sizes  []string `json:"sizes,omitempty"`
}

// Variant is one sellable (color, size) combination of a product.
type Variant struct {
	SKU           string           `json:"sku"`
	Color         string           `json:"color"`
	Size          string           `json:"size"`
	Stock         int              `json:"stock"`
	PriceOverride *decimal.Decimal `json:"priceOverride,omitempty"`
}

// HasVariants reports whether the product uses the variant model.
func (p Product) HasVariants() bool {
	return len(p.Variants) > 0
}

// FirstImage returns the primary image reference or an empty string.
func (p Product) FirstImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// VariantBySKU looks a variant up by its sku.
func (p Product) VariantBySKU(sku string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.SKU == sku {
			return v, true
		}
	}
	return Variant{}, false
}
