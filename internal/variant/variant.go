// Package variant resolves a product's (color, size) selection to a sku and
// reports its price and stock status. Everything here is a pure function of
// the cached product.
package variant

import (
	"sort"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

type StockStatus string

const (
	OutOfStock StockStatus = "out-of-stock"
	LowStock   StockStatus = "low-stock"
	Available  StockStatus = "available"
)

// LowStockThreshold is the stock level below which a variant is reported as low.
const LowStockThreshold = 5

// AvailableColors returns the distinct colors of a product in first-seen order.
// Products in the legacy format report their Colors list.
func AvailableColors(p domain.Product) []string {
	if !p.HasVariants() {
		return distinct(p.Colors)
	}
	colors := make([]string, 0, len(p.Variants))
	for _, v := range p.Variants {
		colors = append(colors, v.Color)
	}
	return distinct(colors)
}

// AvailableSizes returns the sizes offered for color, ordered by ParseSize.
func AvailableSizes(p domain.Product, color string) []string {
	var sizes []string
	if !p.HasVariants() {
		sizes = distinct(p.Sizes)
	} else {
		for _, v := range p.Variants {
			if v.Color == color {
				sizes = append(sizes, v.Size)
			}
		}
		sizes = distinct(sizes)
	}
	SortSizes(sizes)
	return sizes
}

// Resolve finds the variant for an exact (color, size) pair. ok is false when
// no such combination exists, regardless of stock.
func Resolve(p domain.Product, color, size string) (domain.Variant, bool) {
	for _, v := range p.Variants {
		if v.Color == color && v.Size == size {
			return v, true
		}
	}
	return domain.Variant{}, false
}

func Status(v domain.Variant) StockStatus {
	switch {
	case v.Stock <= 0:
		return OutOfStock
	case v.Stock < LowStockThreshold:
		return LowStock
	default:
		return Available
	}
}

// EffectivePrice is the variant's override when set, else the product's base price.
func EffectivePrice(p domain.Product, v domain.Variant) decimal.Decimal {
	if v.PriceOverride != nil {
		return *v.PriceOverride
	}
	return p.BasePrice
}

func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// SortSizes orders sizes in place by their parsed key.
func SortSizes(sizes []string) {
	sort.SliceStable(sizes, func(i, j int) bool {
		return ParseSize(sizes[i]).Less(ParseSize(sizes[j]))
	})
}
