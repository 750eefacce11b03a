package normalize

import (
	"math"
	"strings"
)

// The target platform's catalog-display fields use cm and kg while its
// physical-inventory fields use mm and grams, so each dimension converts to
// two independent scales.

// lengthToCm maps a recognized unit token to its factor into centimeters.
// Tokens are matched case-insensitively as substrings, most specific first.
var lengthToCm = []struct {
	token  string
	factor float64
}{
	{"mm", 0.1},
	{"cm", 1},
	{"milli", 0.1},
	{"centi", 1},
	{"in", 2.54},
	{"ft", 30.48},
	{"feet", 30.48},
	{"foot", 30.48},
	{"m", 100},
}

// weightToKg maps a recognized unit token to its factor into kilograms.
var weightToKg = []struct {
	token  string
	factor float64
}{
	{"kg", 1},
	{"kilo", 1},
	{"lb", 0.45359237},
	{"pound", 0.45359237},
	{"oz", 0.028349523125},
	{"ounce", 0.028349523125},
	{"g", 0.001},
}

func matchFactor(unit string, table []struct {
	token  string
	factor float64
}) (float64, bool) {
	u := strings.ToLower(strings.TrimSpace(unit))
	if u == "" {
		return 0, false
	}
	for _, entry := range table {
		if strings.Contains(u, entry.token) {
			return entry.factor, true
		}
	}
	return 0, false
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ToDisplayLength converts a length to centimeters with one decimal.
// An unrecognized or absent unit is treated as already being centimeters.
func ToDisplayLength(value float64, unit string) float64 {
	if factor, ok := matchFactor(unit, lengthToCm); ok {
		return round1(value * factor)
	}
	return round1(value)
}

// ToInventoryLength converts a length to whole millimeters.
// An unrecognized or absent unit is treated as already being millimeters.
func ToInventoryLength(value float64, unit string) int {
	if factor, ok := matchFactor(unit, lengthToCm); ok {
		return int(math.Round(value * factor * 10))
	}
	return int(math.Round(value))
}

// ToDisplayWeight converts a weight to kilograms with two decimals.
// An unrecognized or absent unit is treated as already being kilograms.
func ToDisplayWeight(value float64, unit string) float64 {
	if factor, ok := matchFactor(unit, weightToKg); ok {
		return round2(value * factor)
	}
	return round2(value)
}

// ToInventoryWeight converts a weight to whole grams.
// An unrecognized or absent unit is treated as already being grams.
func ToInventoryWeight(value float64, unit string) int {
	if factor, ok := matchFactor(unit, weightToKg); ok {
		return int(math.Round(value * factor * 1000))
	}
	return int(math.Round(value))
}
