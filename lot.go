package mfm

import (
	"fmt"
	"strings"
	"time"

	"github.com/etnz/mfm/date"
	"github.com/shopspring/decimal"
)

// LotKey identifies a lot.
type LotKey struct {
	Symbol   string
	Sequence int
}

func (k LotKey) String() string { return fmt.Sprintf("%s#%d", k.Symbol, k.Sequence) }

// FundRef references a fund on the Tel Aviv exchange, usually by its numeric id.
//
// A reference that is a currency code (e.g. "USD") stands for foreign cash
// held in a shekel account.
type FundRef string

// Currency returns the currency a reference stands for, if it is a currency code.
func (r FundRef) Currency() (Currency, bool) {
	c, err := ParseCurrency(string(r))
	if err != nil {
		return "", false
	}
	return c, true
}

// Instrument is what a lot holds: an EquityLot or a FundLot.
type Instrument interface {
	// Currency is the currency the lot is bought and quoted in.
	Currency() Currency
	instrument()
}

// EquityLot is a US listed equity, quoted in USD.
type EquityLot struct{}

// FundLot is an Israeli fund, quoted in agorot by its redemption price.
type FundLot struct {
	Ref FundRef
}

func (EquityLot) Currency() Currency { return USD }
func (FundLot) Currency() Currency   { return ILS }
func (EquityLot) instrument()        {}
func (FundLot) instrument()          {}

// NewInstrument returns the instrument for a purchase in cur.
//
// USD purchases are equities and must not carry a fund reference, ILS
// purchases are funds and must carry one.
func NewInstrument(cur Currency, ref FundRef) (Instrument, error) {
	ref = FundRef(strings.TrimSpace(string(ref)))
	switch cur {
	case USD:
		if ref != "" {
			return nil, fmt.Errorf("%w: USD lot with fund reference %q", ErrInvalidStockDefinition, ref)
		}
		return EquityLot{}, nil
	case ILS:
		if ref == "" {
			return nil, fmt.Errorf("%w: ILS lot without a fund reference", ErrInvalidStockDefinition)
		}
		return FundLot{Ref: ref}, nil
	}
	return nil, fmt.Errorf("%w: currency %q, want USD or ILS", ErrInvalidStockDefinition, cur)
}

// Lot is a single acquisition of shares.
type Lot struct {
	Symbol     string
	Sequence   int
	Date       date.Date
	Amount     int
	UnitCost   decimal.Decimal // as quoted: dollars for USD, agorot for ILS
	Instrument Instrument
	Valuation  Valuation
}

// Key returns the lot key.
func (l Lot) Key() LotKey { return LotKey{Symbol: l.Symbol, Sequence: l.Sequence} }

// Currency returns the lot currency.
func (l Lot) Currency() Currency { return l.Instrument.Currency() }

// FundRef returns the fund reference, or "" for equities.
func (l Lot) FundRef() FundRef {
	if f, ok := l.Instrument.(FundLot); ok {
		return f.Ref
	}
	return ""
}

// Cost returns the total cost of the lot, in its currency.
func (l Lot) Cost() decimal.Decimal {
	return l.UnitCost.Mul(decimal.NewFromInt(int64(l.Amount))).Div(l.Currency().quoteScale())
}

// Valuation holds the values derived from market data.
type Valuation struct {
	Cost           decimal.Decimal `json:"cost"`
	MarketValueUSD decimal.Decimal `json:"marketValueUSD"`
	MarketValueILS decimal.Decimal `json:"marketValueILS"`
	ProfitUSD      decimal.Decimal `json:"profitUSD"`
	ProfitILS      decimal.Decimal `json:"profitILS"`
	ProfitPercent  decimal.Decimal `json:"profitPercent"`
	// PercentDefined is false when Cost is zero.
	PercentDefined bool `json:"percentDefined"`
	// Stale is set when the last revaluation failed and the values are older.
	Stale bool `json:"stale,omitempty"`
	// At is when the values were computed, zero if never.
	At time.Time `json:"at"`
}

// IsZero reports whether the lot was never valued.
func (v Valuation) IsZero() bool { return v.At.IsZero() }

// normalizeSymbol trims and upper-cases a ticker.
func normalizeSymbol(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

// validate checks the lot invariants.
func (l Lot) validate() error {
	switch {
	case l.Symbol == "" || l.Symbol != normalizeSymbol(l.Symbol):
		return fmt.Errorf("%w: invalid symbol %q", ErrInvalidStockDefinition, l.Symbol)
	case l.Sequence <= 0:
		return fmt.Errorf("%w: %s has invalid sequence %d", ErrInvalidStockDefinition, l.Symbol, l.Sequence)
	case l.Amount <= 0:
		return fmt.Errorf("%w: %s amount must be positive, got %d", ErrInvalidStockDefinition, l.Key(), l.Amount)
	case l.UnitCost.IsNegative():
		return fmt.Errorf("%w: %s unit cost is negative", ErrInvalidStockDefinition, l.Key())
	case l.Instrument == nil:
		return fmt.Errorf("%w: %s has no instrument", ErrInvalidStockDefinition, l.Key())
	}
	if _, err := NewInstrument(l.Currency(), l.FundRef()); err != nil {
		return err
	}
	return nil
}
