package variant

import (
	"strconv"
	"strings"
)

type sizeKind int

const (
	numericSize sizeKind = iota
	letterSize
	otherSize
)

var letterRanks = map[string]int{
	"XXS": 0,
	"XS":  1,
	"S":   2,
	"M":   3,
	"L":   4,
	"XL":  5,
	"XXL": 6,
	"2XL": 6,
	"3XL": 7,
}

// SizeKey is the explicitly parsed sort key of a size label. Numeric sizes
// come first by value, then letter sizes by rank, then anything else lexically.
type SizeKey struct {
	Raw   string
	kind  sizeKind
	value float64
	rank  int
}

func ParseSize(raw string) SizeKey {
	s := strings.TrimSpace(raw)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return SizeKey{Raw: raw, kind: numericSize, value: f}
	}
	if r, ok := letterRanks[strings.ToUpper(s)]; ok {
		return SizeKey{Raw: raw, kind: letterSize, rank: r}
	}
	return SizeKey{Raw: raw, kind: otherSize}
}

// Numeric reports the numeric value of the size, if it has one.
func (k SizeKey) Numeric() (float64, bool) {
	return k.value, k.kind == numericSize
}

func (k SizeKey) Less(other SizeKey) bool {
	if k.kind != other.kind {
		return k.kind < other.kind
	}
	switch k.kind {
	case numericSize:
		if k.value != other.value {
			return k.value < other.value
		}
	case letterSize:
		if k.rank != other.rank {
			return k.rank < other.rank
		}
	}
	return k.Raw < other.Raw
}
