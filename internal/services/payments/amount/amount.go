// Package amount converts between major currency units and the unit a
// provider expects on the wire.
package amount

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Unit describes one provider's wire representation. The multiplier is
// 10^Exponent so that the outbound and inbound conversions are exact shifts of
// each other. Places is how many decimals survive rounding on the way out.
type Unit struct {
	Exponent int32
	Places   int32

	overrides map[string]Unit
}

func New(exponent, places int32) Unit {
	return Unit{Exponent: exponent, Places: places}
}

var (
	Cents = New(2, 0)
	// Rial carries Toman amounts as Rial (x10).
	Rial  = New(1, 0)
	Major = New(0, 2)
)

// With returns a copy of u that uses override for the listed currencies.
func (u Unit) With(override Unit, currencies ...string) Unit {
	out := Unit{Exponent: u.Exponent, Places: u.Places, overrides: make(map[string]Unit, len(u.overrides)+len(currencies))}
	for k, v := range u.overrides {
		out.overrides[k] = v
	}
	for _, c := range currencies {
		out.overrides[strings.ToUpper(c)] = New(override.Exponent, override.Places)
	}
	return out
}

func (u Unit) For(currency string) Unit {
	if o, ok := u.overrides[strings.ToUpper(currency)]; ok {
		return o
	}
	return u
}

// ToWire converts a major-unit amount to the wire unit, rounding half away
// from zero to the unit's precision.
func (u Unit) ToWire(major decimal.Decimal, currency string) decimal.Decimal {
	c := u.For(currency)
	return major.Shift(c.Exponent).Round(c.Places)
}

// FromWire converts a wire amount back to major units without rounding.
func (u Unit) FromWire(wire decimal.Decimal, currency string) decimal.Decimal {
	return wire.Shift(-u.For(currency).Exponent)
}

// FormatWire renders a wire amount with exactly the unit's decimal places.
func (u Unit) FormatWire(wire decimal.Decimal, currency string) string {
	return wire.StringFixed(u.For(currency).Places)
}

// ParseWire parses a wire amount as sent by a provider.
func (u Unit) ParseWire(raw string, currency string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing wire amount %q: %w", raw, err)
	}
	return u.FromWire(d, currency), nil
}

// ZeroDecimal lists ISO currencies without a minor unit.
var ZeroDecimal = []string{
	"BIF", "CLP", "DJF", "GNF", "JPY", "KMF", "KRW", "MGA",
	"PYG", "RWF", "UGX", "VND", "VUV", "XAF", "XOF", "XPF",
}
