package shipping

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultFees is the built-in location to delivery fee table.
var DefaultFees = map[string]int64{
	"Nairobi CBD": 200,
	"Westlands":   250,
	"Kilimani":    250,
	"Kileleshwa":  250,
	"Parklands":   250,
	"Lavington":   300,
	"Karen":       350,
	"Kasarani":    300,
	"Embakasi":    300,
	"Rongai":      350,
	"Kitengela":   400,
	"Thika":       400,
	"Kiambu":      350,
	"Machakos":    450,
	"Nakuru":      500,
	"Kisumu":      600,
	"Mombasa":     600,
	"Eldoret":     600,
}

const DefaultFee = 500

// Table resolves a delivery location to a fee. Lookups ignore case and
// surrounding whitespace; unknown locations get the fallback fee.
type Table struct {
	fees     map[string]decimal.Decimal
	names    []string
	fallback decimal.Decimal
}

// NewTable merges overrides on top of DefaultFees.
func NewTable(fallback int64, overrides map[string]int64) *Table {
	t := &Table{
		fees:     make(map[string]decimal.Decimal, len(DefaultFees)+len(overrides)),
		fallback: decimal.NewFromInt(fallback),
	}
	display := make(map[string]string)
	for name, fee := range DefaultFees {
		t.fees[normalize(name)] = decimal.NewFromInt(fee)
		display[normalize(name)] = name
	}
	for name, fee := range overrides {
		t.fees[normalize(name)] = decimal.NewFromInt(fee)
		if _, ok := display[normalize(name)]; !ok {
			display[normalize(name)] = name
		}
	}
	for _, name := range display {
		t.names = append(t.names, name)
	}
	sort.Strings(t.names)
	return t
}

// Fee returns the fee for location and whether the location was known.
func (t *Table) Fee(location string) (decimal.Decimal, bool) {
	fee, ok := t.fees[normalize(location)]
	if !ok {
		return t.fallback, false
	}
	return fee, true
}

// Locations lists the known locations for a picker.
func (t *Table) Locations() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

func normalize(location string) string {
	return strings.ToLower(strings.TrimSpace(location))
}
