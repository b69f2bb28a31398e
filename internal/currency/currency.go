// Package currency converts amounts to EUR using a fixed rate table.
package currency

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Base is the reporting currency.
const Base = "EUR"

// eurRates maps an ISO 4217 code to the EUR value of one unit.
var eurRates = map[string]decimal.Decimal{
	"EUR": decimal.NewFromInt(1),
	"USD": decimal.RequireFromString("0.92"),
	"GBP": decimal.RequireFromString("1.17"),
	"CHF": decimal.RequireFromString("1.04"),
	"JPY": decimal.RequireFromString("0.0062"),
	"CAD": decimal.RequireFromString("0.68"),
	"AUD": decimal.RequireFromString("0.61"),
	"SEK": decimal.RequireFromString("0.087"),
	"NOK": decimal.RequireFromString("0.086"),
	"DKK": decimal.RequireFromString("0.134"),
	"PLN": decimal.RequireFromString("0.23"),
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsSupported reports whether code has a rate.
func IsSupported(code string) bool {
	_, ok := eurRates[normalize(code)]
	return ok
}

// Rate returns the EUR multiplier for code.
func Rate(code string) (decimal.Decimal, bool) {
	r, ok := eurRates[normalize(code)]
	return r, ok
}

// ToEURDecimal converts amount. Unknown codes convert at 1:1.
func ToEURDecimal(amount decimal.Decimal, code string) decimal.Decimal {
	r, ok := Rate(code)
	if !ok {
		return amount
	}
	return amount.Mul(r)
}

// ToEUR converts amount and rounds to cents.
func ToEUR(amount float64, code string) float64 {
	f, _ := ToEURDecimal(decimal.NewFromFloat(amount), code).Round(2).Float64()
	return f
}

// Codes lists the supported codes in alphabetical order.
func Codes() []string {
	out := make([]string, 0, len(eurRates))
	for k := range eurRates {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
