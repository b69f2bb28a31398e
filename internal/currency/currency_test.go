package currency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestToEUR(t *testing.T) {
	assert.Equal(t, 100.0, ToEUR(100, "EUR"))
	assert.Equal(t, 92.0, ToEUR(100, "USD"))
	assert.Equal(t, 92.0, ToEUR(100, " usd "))
	assert.Equal(t, 117.0, ToEUR(100, "GBP"))
	assert.Equal(t, 42.5, ToEUR(42.5, "XXX"), "unknown currency converts 1:1")
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("eur"))
	assert.False(t, IsSupported("BTC"))
	assert.Contains(t, Codes(), "CHF")
}

func TestToEURDecimalKeepsPrecision(t *testing.T) {
	got := ToEURDecimal(decimal.RequireFromString("0.10"), "USD")
	assert.True(t, got.Equal(decimal.RequireFromString("0.092")))
}
