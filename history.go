package mfm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/etnz/mfm/date"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Amounts is a value in both reporting currencies.
type Amounts struct {
	ILS decimal.Decimal `json:"ils"`
	USD decimal.Decimal `json:"usd"`
}

// Snapshot is the state of the portfolio on a given day.
type Snapshot struct {
	Date        date.Date       `json:"date"`
	Portfolio   Amounts         `json:"portfolio"`   // market value of the lots
	TotalAssets Amounts         `json:"totalAssets"` // lots, cash flows and foreign currencies
	ProfitILS   decimal.Decimal `json:"profitILS"`
	// ProfitPercent is null when the profit percentage is undefined.
	ProfitPercent     decimal.NullDecimal `json:"profitPercent"`
	ForeignCurrencies decimal.Decimal     `json:"foreignCurrencies"` // ILS value of the foreign cash
	BankCashFlow      decimal.Decimal     `json:"bankCashFlow"`
	TraderCashFlow    decimal.Decimal     `json:"traderCashFlow"`
}

// Recorder keeps one Snapshot per day.
type Recorder struct {
	mu          sync.Mutex
	history     date.History[Snapshot]
	engine      *Engine
	rates       RateOracle
	foreign     *ForeignBalances
	callTimeout time.Duration
	log         zerolog.Logger
}

// NewRecorder returns a Recorder with an empty history.
func NewRecorder(engine *Engine, rates RateOracle, foreign *ForeignBalances, opts ...Option) *Recorder {
	s := newSettings(opts)
	return &Recorder{
		engine:      engine,
		rates:       rates,
		foreign:     foreign,
		callTimeout: s.callTimeout,
		log:         s.logger,
	}
}

// Load replaces the history.
func (r *Recorder) Load(list []Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = date.History[Snapshot]{}
	for _, s := range list {
		r.history.Append(s.Date, s)
	}
}

// totalAssets returns the value of everything: lots, cash flows and foreign cash.
func (r *Recorder) totalAssets(ctx context.Context, bankCF, traderCF decimal.Decimal) (Amounts, error) {
	ils := r.engine.Sum(FieldMarketValueILS).Add(bankCF).Add(traderCF).Add(r.foreign.TotalILS())
	ctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()
	usd, err := r.rates.Convert(ctx, ILS, USD, ils)
	if err != nil {
		return Amounts{}, err
	}
	return Amounts{ILS: ils, USD: usd.Round(roundPlaces)}, nil
}

// Snapshot computes the record for on and stores it, replacing any record of that day.
//
// Other days are never touched. An undefined profit percentage is stored as null.
func (r *Recorder) Snapshot(ctx context.Context, on date.Date, bankCF, traderCF decimal.Decimal) (Snapshot, error) {
	total, err := r.totalAssets(ctx, bankCF, traderCF)
	if err != nil {
		return Snapshot{}, err
	}
	s := Snapshot{
		Date: on,
		Portfolio: Amounts{
			ILS: r.engine.Sum(FieldMarketValueILS),
			USD: r.engine.Sum(FieldMarketValueUSD),
		},
		TotalAssets:       total,
		ForeignCurrencies: r.foreign.TotalILS(),
		BankCashFlow:      bankCF,
		TraderCashFlow:    traderCF,
	}
	profit, err := r.engine.TotalProfit()
	s.ProfitILS = profit.ILS
	switch {
	case err == nil:
		s.ProfitPercent = decimal.NewNullDecimal(profit.Percent)
	case errors.Is(err, ErrUndefinedProfit), errors.Is(err, ErrNoHoldings), errors.Is(err, ErrPriceUnavailable):
		r.log.Warn().Err(err).Stringer("date", on).Msg("snapshot profit percentage is undefined, stored as null")
	default:
		return Snapshot{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.history.Append(on, s)
	return s, nil
}

// SetCashFlow records the snapshot of on with new cash flows. Nil values keep
// the cash flows of on, or of the latest earlier record when on has none yet.
//
// All the other fields are computed again as Snapshot does.
func (r *Recorder) SetCashFlow(ctx context.Context, on date.Date, bank, trader *decimal.Decimal) (Snapshot, error) {
	r.mu.Lock()
	prev, _ := r.history.ValueAsOf(on)
	r.mu.Unlock()

	bankCF, traderCF := prev.BankCashFlow, prev.TraderCashFlow
	if bank != nil {
		bankCF = *bank
	}
	if trader != nil {
		traderCF = *trader
	}
	return r.Snapshot(ctx, on, bankCF, traderCF)
}

// LatestCashFlow returns the cash flows of the latest record, zero if there is none.
func (r *Recorder) LatestCashFlow() (bank, trader decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, s, ok := r.history.Latest()
	if !ok {
		return decimal.Zero, decimal.Zero
	}
	return s.BankCashFlow, s.TraderCashFlow
}

// Get returns the record of on.
func (r *Recorder) Get(on date.Date) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history.Get(on)
}

// History returns every record, newest first.
func (r *Recorder) History() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := make([]Snapshot, 0, r.history.Len())
	for _, s := range r.history.Backward() {
		list = append(list, s)
	}
	return list
}
