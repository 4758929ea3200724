package conformity

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var currencyPrefixRe = regexp.MustCompile(`(?i)R\$\s*`)
var parentheticalRe = regexp.MustCompile(`\([^)]*\)`)
var numericRe = regexp.MustCompile(`[\d.]+`)

// ParseMoney converts a Brazilian-format currency string to a float amount.
// Handles "R$ 572.734,00", "572734.00" and values followed by the amount
// spelled out in parentheses. Returns 0 when no numeric value is present.
func ParseMoney(v string) float64 {
	cleaned := currencyPrefixRe.ReplaceAllString(v, "")
	cleaned = parentheticalRe.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	// Brazilian format: dots are thousands separators, comma is decimal.
	if strings.Contains(cleaned, ",") {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}

	m := numericRe.FindString(cleaned)
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return f
}

// MoneySimilarity compares two monetary values by relative difference rather
// than string shape, so "R$ 572.734,00" matches "572734.00 (quinhentos e
// setenta e dois mil...)" exactly.
func MoneySimilarity(a, b string) float64 {
	va, vb := ParseMoney(a), ParseMoney(b)
	if va == 0 && vb == 0 {
		return 1.0
	}
	if va == 0 || vb == 0 {
		return 0.0
	}
	if va == vb {
		return 1.0
	}
	avg := (va + vb) / 2
	diff := math.Abs(va-vb) / avg
	switch {
	case diff < 0.0001:
		return 1.0
	case diff < 0.01:
		return 0.99
	case diff < 0.05:
		return 0.95
	case diff < 0.10:
		return 0.90
	default:
		sim := 1.0 - diff
		if sim < 0 {
			return 0
		}
		return sim
	}
}
