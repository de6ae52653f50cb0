package mfm

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Money represents a monetary value, in major units.
type Money struct {
	value decimal.Decimal
	cur   Currency
}

// M returns value in currency cur.
func M[T float64 | int | int64 | decimal.Decimal](value T, cur Currency) Money {
	var d decimal.Decimal
	switch v := any(value).(type) {
	case float64:
		d = decimal.NewFromFloat(v)
	case int:
		d = decimal.NewFromInt(int64(v))
	case int64:
		d = decimal.NewFromInt(v)
	case decimal.Decimal:
		d = v
	}
	return Money{value: d, cur: cur}
}

// currency returns the go-money definition, never nil.
func (m Money) currency() money.Currency {
	return *money.New(0, string(m.cur)).Currency()
}

// String returns the value formatted in its currency, e.g. "$1,500.00" or "195.00 ₪".
func (m Money) String() string {
	cur := m.currency()
	dec := m.value.Round(int32(cur.Fraction)).Shift(int32(cur.Fraction))
	return cur.Formatter().Format(dec.IntPart())
}

// SignedString is String with a leading '+' for positive values.
// Zero is represented as "-".
func (m Money) SignedString() string {
	if m.value.IsZero() {
		return "-"
	}
	if m.value.IsPositive() {
		return "+" + m.String()
	}
	return m.String()
}

func (m Money) Currency() Currency       { return m.cur }
func (m Money) Decimal() decimal.Decimal { return m.value }
func (m Money) IsZero() bool             { return m.value.IsZero() }
func (m Money) Equal(n Money) bool       { return m.value.Equal(n.value) && m.cur == n.cur }

func (m Money) MarshalJSON() ([]byte, error) {
	var w orderedObject
	w.SetNonZero("currency", m.cur)
	w.Set("amount", m.value.Round(int32(m.currency().Fraction)))
	return w.MarshalJSON()
}
