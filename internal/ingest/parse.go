package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dateLayouts are tried in order when parsing cell values as dates.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"01/02/2006",
	"1/2/2006",
	"01/02/2006 15:04",
	"1/2/2006 15:04",
	"2006/01/02",
	"02-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"02.01.2006",
}

// parseDate attempts to read a cell as a date or timestamp.
func parseDate(cell string) (time.Time, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cell); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseFloat reads a cell as a plain number, tolerating well-formed
// thousands separators.
func parseFloat(cell string) (float64, bool) {
	cell, ok := stripThousands(strings.TrimSpace(cell))
	if !ok || cell == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// stripThousands removes comma separators only when every comma sits in a
// valid grouping position, so a malformed "1,2" stays malformed rather than
// reading as 12. Comma-free input passes through unchanged.
func stripThousands(s string) (string, bool) {
	if !strings.Contains(s, ",") {
		return s, true
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	if strings.Contains(frac, ",") {
		return "", false
	}
	sign := ""
	if strings.HasPrefix(intPart, "-") || strings.HasPrefix(intPart, "+") {
		sign, intPart = intPart[:1], intPart[1:]
	}
	groups := strings.Split(intPart, ",")
	if len(groups[0]) == 0 || len(groups[0]) > 3 {
		return "", false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return "", false
		}
	}
	return sign + strings.Join(groups, "") + frac, true
}

// parseCurrency reads a cell as a non-negative money amount, stripping
// currency symbols and separators.
func parseCurrency(cell string) (decimal.Decimal, bool) {
	cleaned := strings.TrimSpace(cell)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.TrimPrefix(cleaned, "€")
	cleaned = strings.TrimPrefix(cleaned, "£")
	cleaned, ok := stripThousands(strings.TrimSpace(cleaned))
	if !ok || cleaned == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil || d.IsNegative() {
		return decimal.Decimal{}, false
	}
	return d, true
}

func qtyDecimal(qty float64) decimal.Decimal {
	return decimal.NewFromFloat(qty)
}

// looksTextual reports whether a cell reads as free text rather than a
// number or date.
func looksTextual(cell string) bool {
	if _, ok := parseFloat(cell); ok {
		return false
	}
	if _, ok := parseDate(cell); ok {
		return false
	}
	return strings.TrimSpace(cell) != ""
}
