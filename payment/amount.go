package payment

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseMinorUnits converts a price such as "1 234,56" into kopecks.
//
// Grouping spaces (including no-break spaces) are removed and a comma is
// accepted as the decimal separator. The value is rounded half away from
// zero at the second decimal using exact decimal arithmetic, so "12.345"
// yields 1235. The second result is false for empty or non-numeric input.
func ParseMinorUnits(text string) (int64, bool) {
	normalized := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\u00a0', '\u202f':
			return -1
		case ',':
			return '.'
		}
		return r
	}, text)
	if normalized == "" {
		return 0, false
	}

	value, err := decimal.NewFromString(normalized)
	if err != nil {
		return 0, false
	}
	return value.Round(2).Mul(hundred).IntPart(), true
}
