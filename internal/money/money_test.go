package money

import (
	"testing"

	"github.com/fundflow/ledger-service/internal/apperr"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func newTestConverter(t *testing.T) *Converter {
	c, err := NewConverter(map[string]string{
		"EUR": "1.0",
		"USD": "1.1",
		"MGA": "4800.0",
	})
	assert.NoError(t, err)
	return c
}

func TestConvert(t *testing.T) {
	c := newTestConverter(t)

	out, err := c.Convert(decimal.RequireFromString("100"), "EUR", "MGA")
	assert.NoError(t, err)
	assert.Equal(t, "480000.00", out.StringFixed(2))

	out, err = c.Convert(decimal.RequireFromString("100"), "EUR", "EUR")
	assert.NoError(t, err)
	assert.Equal(t, "100.00", out.StringFixed(2))

	// 100 USD -> 90.909090... EUR, rounded to 90.91
	out, err = c.Convert(decimal.RequireFromString("100"), "USD", "EUR")
	assert.NoError(t, err)
	assert.Equal(t, "90.91", out.StringFixed(2))
}

func TestConvert_UnsupportedCurrency(t *testing.T) {
	c := newTestConverter(t)

	_, err := c.Convert(decimal.RequireFromString("100"), "GBP", "EUR")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = c.Convert(decimal.RequireFromString("100"), "EUR", "GBP")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	assert.True(t, c.Supported("USD"))
	assert.False(t, c.Supported("GBP"))
}

func TestNewConverter_BadRates(t *testing.T) {
	_, err := NewConverter(map[string]string{"EUR": "abc"})
	assert.Error(t, err)
	_, err = NewConverter(map[string]string{"EUR": "0"})
	assert.Error(t, err)
	_, err = NewConverter(map[string]string{"EUR": "-1"})
	assert.Error(t, err)
}
