package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

const displayPlaces = 2

var currencySymbols = map[string]string{
	"INR": "₹",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
}

// Round rounds half away from zero to two decimal places.
func Round(amount float64) float64 {
	rounded, _ := decimal.NewFromFloat(amount).Round(displayPlaces).Float64()
	return rounded
}

// Format renders amount for display, e.g. "₹810.00".
func Format(amount float64, currency string) string {
	value := decimal.NewFromFloat(amount).StringFixed(displayPlaces)
	code := strings.ToUpper(strings.TrimSpace(currency))
	if symbol, ok := currencySymbols[code]; ok {
		return symbol + value
	}
	if code == "" {
		return value
	}
	return value + " " + code
}
