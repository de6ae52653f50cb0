package mfm

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Currency is an ISO 4217 currency code.
type Currency string

// The two currencies holdings are valued in.
const (
	USD Currency = "USD"
	ILS Currency = "ILS"
)

// ParseCurrency normalizes s and checks it is a known ISO 4217 code.
func ParseCurrency(s string) (Currency, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	if len(code) != 3 || money.GetCurrency(code) == nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedCurrency, s)
	}
	return Currency(code), nil
}

// ParseReporting is like ParseCurrency but only accepts USD and ILS.
func ParseReporting(s string) (Currency, error) {
	c, err := ParseCurrency(s)
	if err != nil {
		return "", err
	}
	if !c.IsReporting() {
		return "", fmt.Errorf("%w: %q, want USD or ILS", ErrUnsupportedCurrency, s)
	}
	return c, nil
}

// IsReporting reports whether c is one of the currencies holdings are valued in.
func (c Currency) IsReporting() bool { return c == USD || c == ILS }

func (c Currency) String() string { return string(c) }

// hundred converts ILS quotes, that are in agorot, into shekels.
var hundred = decimal.NewFromInt(100)

// quoteScale returns the divisor between a quoted unit price and the value in c.
func (c Currency) quoteScale() decimal.Decimal {
	if c == ILS {
		return hundred
	}
	return decimal.NewFromInt(1)
}
