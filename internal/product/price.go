package product

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ParsePrice turns a display price like "$1,299.99" into 1299.99.
//
// Everything but digits and the decimal point is dropped before parsing, an
// empty, "N/A" or otherwise unparseable price is 0.
func ParsePrice(display string) float64 {
	d, ok := parseDisplayPrice(display)
	if !ok {
		return 0
	}
	f, _ := d.Float64()
	return f
}

func parseDisplayPrice(display string) (decimal.Decimal, bool) {
	display = strings.TrimSpace(display)
	if display == "" || display == DefaultPrice {
		return decimal.Zero, false
	}

	var cleaned strings.Builder
	for _, r := range display {
		if (r >= '0' && r <= '9') || r == '.' {
			cleaned.WriteRune(r)
		}
	}
	if cleaned.Len() == 0 {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(cleaned.String())
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// parsePriceValue is ParsePrice for decoded json values.
func parsePriceValue(value any) decimal.Decimal {
	switch v := value.(type) {
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero
		}
		return d
	case float64:
		return decimal.NewFromFloat(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	case string:
		d, _ := parseDisplayPrice(v)
		return d
	}
	return decimal.Zero
}

var leadingNumber = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// parseLeadingNumber reads the first number in values like 4.5, "4.5" or
// "4.5 out of 5 stars".
func parseLeadingNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		match := leadingNumber.FindString(v)
		if match == "" {
			return 0, false
		}
		d, err := decimal.NewFromString(match)
		if err != nil {
			return 0, false
		}
		f, _ := d.Float64()
		return f, true
	}
	return 0, false
}

// discountPercent is ((orig-curr)/orig)*100 rounded to one decimal place, ok
// is false when there is no discount.
func discountPercent(original, current decimal.Decimal) (float64, bool) {
	if !original.IsPositive() || !current.LessThan(original) {
		return 0, false
	}
	pct := original.Sub(current).
		Div(original).
		Mul(decimal.NewFromInt(100)).
		Round(1)
	f, _ := pct.Float64()
	return f, true
}
