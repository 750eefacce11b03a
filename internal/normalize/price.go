// Package normalize converts legacy currency, dimension and weight
// representations into the canonical forms the target catalog expects.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cartbridge/cartbridge/internal/errors"
)

// SpecialPrice is a time-bounded promotional price from the legacy schema.
// A zero DateStart or DateEnd means that end of the window is unbounded.
type SpecialPrice struct {
	Price     float64
	DateStart time.Time
	DateEnd   time.Time
}

// PriceResult is the resolved selling price for a product. Amounts are whole
// currency units; the target catalog stores integer prices.
type PriceResult struct {
	Amount          int64
	RegularAmount   int64
	DiscountPercent int
}

var nonAmountChars = regexp.MustCompile(`[^0-9.\-]`)

// ParseAmount parses a legacy price string, stripping currency symbols and
// thousand separators, and rounds to the nearest whole currency unit.
func ParseAmount(s string) (int64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	cleaned = nonAmountChars.ReplaceAllString(cleaned, "")
	if cleaned == "" || cleaned == "-" || cleaned == "." {
		return 0, errors.Newf("unparseable amount %q", s).
			Category(errors.CategoryValidation).
			Component("normalize").
			Build()
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, errors.Newf("unparseable amount %q", s).
			Category(errors.CategoryValidation).
			Component("normalize").
			Build()
	}

	return int64(math.Round(value)), nil
}

// ResolveFinalPrice picks between the regular and an optional special price.
// The special price wins only when it is positive and strictly below the
// regular price; otherwise the regular price applies with zero discount.
func ResolveFinalPrice(regular, special float64) PriceResult {
	regularAmount := int64(math.Round(regular))
	result := PriceResult{
		Amount:        regularAmount,
		RegularAmount: regularAmount,
	}

	if special > 0 && special < regular {
		result.Amount = int64(math.Round(special))
		if regular > 0 {
			result.DiscountPercent = int(math.Round((regular - special) / regular * 100))
		}
	}

	return result
}

// IsSpecialActive reports whether a special price applies at the given time.
// Besides being positive, the time must fall within the optional start/end
// window; a zero bound is open-ended.
func IsSpecialActive(sp SpecialPrice, now time.Time) bool {
	if sp.Price <= 0 {
		return false
	}
	if !sp.DateStart.IsZero() && now.Before(sp.DateStart) {
		return false
	}
	if !sp.DateEnd.IsZero() && now.After(sp.DateEnd) {
		return false
	}
	return true
}

// ResolveActivePrice resolves the selling price against a list of special
// price rows, using the lowest special that is active at the given time.
func ResolveActivePrice(regular float64, specials []SpecialPrice, now time.Time) PriceResult {
	best := 0.0
	for _, sp := range specials {
		if !IsSpecialActive(sp, now) {
			continue
		}
		if best == 0 || sp.Price < best {
			best = sp.Price
		}
	}
	return ResolveFinalPrice(regular, best)
}
