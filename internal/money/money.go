package money

import (
	"fmt"

	"github.com/fundflow/ledger-service/internal/apperr"
	"github.com/shopspring/decimal"
)

// Converter converts amounts between currencies using a static rate table.
// Rates are expressed relative to the base currency (rate 1.0).
type Converter struct {
	rates map[string]decimal.Decimal
}

// NewConverter parses a code -> rate table. Rates must be positive decimals.
func NewConverter(rates map[string]string) (*Converter, error) {
	parsed := make(map[string]decimal.Decimal, len(rates))
	for code, raw := range rates {
		r, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("rate for %s: %w", code, err)
		}
		if r.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("rate for %s must be positive", code)
		}
		parsed[code] = r
	}
	return &Converter{rates: parsed}, nil
}

// Supported reports whether a currency code is in the rate table.
func (c *Converter) Supported(code string) bool {
	_, ok := c.rates[code]
	return ok
}

// Convert pivots through the base currency and rounds to 2 decimal places.
func (c *Converter) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	fromRate, ok := c.rates[from]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: unsupported currency %q", apperr.ErrValidation, from)
	}
	toRate, ok := c.rates[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: unsupported currency %q", apperr.ErrValidation, to)
	}
	if from == to {
		return amount.Round(2), nil
	}
	return amount.Div(fromRate).Mul(toRate).Round(2), nil
}
