package variant

import (
	"errors"
	"slices"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

var ErrSizeUnavailable = errors.New("size not offered for the selected color")

// Selection is a shopper's in-progress (color, size) choice for one product.
type Selection struct {
	Color string `json:"color"`
	Size  string `json:"size"`
}

// SelectColor switches the color and always clears the size, since the
// previous size may not exist for the new color.
func (s Selection) SelectColor(color string) Selection {
	return Selection{Color: color}
}

func (s Selection) SelectSize(p domain.Product, size string) (Selection, error) {
	if !slices.Contains(AvailableSizes(p, s.Color), size) {
		return s, ErrSizeUnavailable
	}
	s.Size = size
	return s, nil
}

// Complete reports whether both color and size are chosen.
func (s Selection) Complete() bool {
	return s.Color != "" && s.Size != ""
}

// Resolve looks up the variant for the current selection.
func (s Selection) Resolve(p domain.Product) (domain.Variant, bool) {
	if !s.Complete() {
		return domain.Variant{}, false
	}
	return Resolve(p, s.Color, s.Size)
}
