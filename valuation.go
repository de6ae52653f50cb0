package mfm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// roundPlaces is the precision of converted values, profits and percentages.
const roundPlaces = 3

// Engine values the lots of a Store against market data.
type Engine struct {
	store       *Store
	rates       RateOracle
	prices      PriceOracle
	funds       FundPriceOracle
	workers     int
	callTimeout time.Duration
	log         zerolog.Logger
	now         func() time.Time
}

// NewEngine returns an Engine valuing store with the given oracles.
func NewEngine(store *Store, rates RateOracle, prices PriceOracle, funds FundPriceOracle, opts ...Option) *Engine {
	s := newSettings(opts)
	return &Engine{
		store:       store,
		rates:       rates,
		prices:      prices,
		funds:       funds,
		workers:     s.workers,
		callTimeout: s.callTimeout,
		log:         s.logger,
		now:         s.now,
	}
}

// valued is a valuation together with the amount it was computed for.
type valued struct {
	Valuation
	amount int
}

// quote holds the market data a symbol's lots are valued with.
type quote struct {
	price decimal.Decimal // in the lot currency, per unit as quoted
	rate  decimal.Decimal // lot currency to the other reporting currency
}

// fetch gets the market data for lots of one symbol and currency.
func (e *Engine) fetch(ctx context.Context, l Lot) (quote, error) {
	var q quote
	var err error
	switch inst := l.Instrument.(type) {
	case EquityLot:
		q.price, err = e.bounded(ctx, func(ctx context.Context) (decimal.Decimal, error) {
			return e.prices.LivePrice(ctx, l.Symbol)
		})
		if err != nil {
			return q, err
		}
		q.rate, err = e.rate(ctx, USD, ILS)
	case FundLot:
		if cur, ok := inst.Ref.Currency(); ok {
			// foreign cash: its value in agorot
			var r decimal.Decimal
			r, err = e.rate(ctx, cur, ILS)
			if err != nil {
				return q, err
			}
			q.price = r.Mul(hundred).Round(roundPlaces)
		} else {
			q.price, err = e.bounded(ctx, func(ctx context.Context) (decimal.Decimal, error) {
				return e.funds.RedemptionPrice(ctx, inst.Ref)
			})
			if err != nil {
				return q, err
			}
		}
		q.rate, err = e.rate(ctx, ILS, USD)
	default:
		err = fmt.Errorf("%w: %s has an unknown instrument %T", ErrInvalidStockDefinition, l.Key(), l.Instrument)
	}
	return q, err
}

func (e *Engine) rate(ctx context.Context, from, to Currency) (decimal.Decimal, error) {
	return e.bounded(ctx, func(ctx context.Context) (decimal.Decimal, error) {
		return e.rates.Rate(ctx, from, to)
	})
}

func (e *Engine) bounded(ctx context.Context, call func(context.Context) (decimal.Decimal, error)) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	return call(ctx)
}

// Value computes the valuation of l.
//
// Market data failures are returned as is. A zero cost returns the valuation
// with PercentDefined false, together with ErrUndefinedProfit.
func (e *Engine) Value(ctx context.Context, l Lot) (Valuation, error) {
	q, err := e.fetch(ctx, l)
	if err != nil {
		return Valuation{}, err
	}
	return valuate(l, q, e.now())
}

// valuate is the pure part of Value.
func valuate(l Lot, q quote, at time.Time) (Valuation, error) {
	amount := decimal.NewFromInt(int64(l.Amount))
	scale := l.Currency().quoteScale()
	cost := l.UnitCost.Mul(amount).Div(scale)
	current := q.price.Mul(amount).Div(scale)
	profit := current.Sub(cost)

	v := Valuation{Cost: cost, At: at}
	switch l.Currency() {
	case USD:
		v.MarketValueUSD = current
		v.MarketValueILS = current.Mul(q.rate).Round(roundPlaces)
		v.ProfitUSD = profit.Round(roundPlaces)
		v.ProfitILS = v.ProfitUSD.Mul(q.rate).Round(roundPlaces)
	case ILS:
		v.MarketValueILS = current
		v.MarketValueUSD = current.Mul(q.rate).Round(roundPlaces)
		v.ProfitILS = profit.Round(roundPlaces)
		v.ProfitUSD = v.ProfitILS.Mul(q.rate).Round(roundPlaces)
	}
	if cost.IsZero() {
		return v, fmt.Errorf("%w: %s has a zero cost", ErrUndefinedProfit, l.Key())
	}
	v.PercentDefined = true
	v.ProfitPercent = current.Div(cost).Mul(hundred).Sub(hundred).Round(roundPlaces)
	return v, nil
}

// RevalueReport summarizes a revaluation.
type RevalueReport struct {
	Cycle   uuid.UUID
	Updated []string
	Failed  map[string]error
}

// Err joins the failures, nil if there are none.
func (r RevalueReport) Err() error {
	var errs []error
	for _, err := range r.Failed {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

type symbolResult struct {
	symbol string
	values map[LotKey]valued
	err    error
}

// Revalue recomputes the valuation of the given symbols, or every symbol.
//
// Symbols are valued concurrently. A symbol that fails keeps its previous
// values, flagged stale, and is listed in the report; it never aborts the
// others. The returned error is only for invalid calls: symbol failures are in
// the report. Given symbols are revalued once each, those that are not held
// are skipped.
func (e *Engine) Revalue(ctx context.Context, symbols ...string) (RevalueReport, error) {
	report := RevalueReport{Cycle: uuid.New(), Failed: map[string]error{}}
	log := e.log.With().Stringer("cycle", report.Cycle).Logger()

	if len(symbols) == 0 {
		symbols = e.store.Symbols()
	} else {
		symbols = e.held(symbols, log)
	}

	var (
		mu      sync.Mutex
		results = make([]symbolResult, 0, len(symbols))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, symbol := range symbols {
		g.Go(func() error {
			r := e.revalueSymbol(gctx, symbol)
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil // failures are per symbol
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	updates := make(map[LotKey]valued)
	for _, r := range results {
		if r.err != nil {
			report.Failed[r.symbol] = r.err
			e.store.markStale(r.symbol)
			log.Warn().Err(r.err).Str("symbol", r.symbol).Msg("revaluation failed, keeping previous values")
			continue
		}
		for k, v := range r.values {
			updates[k] = v
		}
		report.Updated = append(report.Updated, r.symbol)
	}
	e.store.setValuations(updates)
	slices.Sort(report.Updated)
	log.Info().Int("updated", len(report.Updated)).Int("failed", len(report.Failed)).Msg("revaluation done")
	return report, nil
}

// held normalizes symbols and drops duplicates and symbols without lots.
func (e *Engine) held(symbols []string, log zerolog.Logger) []string {
	known := make(map[string]bool)
	for _, s := range e.store.Symbols() {
		known[s] = true
	}
	var list []string
	seen := make(map[string]bool)
	for _, s := range symbols {
		s = normalizeSymbol(s)
		switch {
		case seen[s]:
		case !known[s]:
			log.Warn().Str("symbol", s).Msg("symbol is not held, skipped")
		default:
			list = append(list, s)
		}
		seen[s] = true
	}
	return list
}

func (e *Engine) revalueSymbol(ctx context.Context, symbol string) symbolResult {
	r := symbolResult{symbol: symbol, values: map[LotKey]valued{}}
	lots := e.store.Lots(symbol)
	if len(lots) == 0 {
		return r
	}
	q, err := e.fetch(ctx, lots[0])
	if err != nil {
		r.err = err
		return r
	}
	at := e.now()
	for _, l := range lots {
		v, err := valuate(l, q, at)
		if err != nil && !errors.Is(err, ErrUndefinedProfit) {
			r.err = err
			return r
		}
		r.values[l.Key()] = valued{Valuation: v, amount: l.Amount}
	}
	return r
}

// Field selects a Valuation field for Sum.
type Field int

const (
	FieldCost Field = iota
	FieldMarketValueUSD
	FieldMarketValueILS
	FieldProfitUSD
	FieldProfitILS
)

func (f Field) of(v Valuation) decimal.Decimal {
	switch f {
	case FieldCost:
		return v.Cost
	case FieldMarketValueUSD:
		return v.MarketValueUSD
	case FieldMarketValueILS:
		return v.MarketValueILS
	case FieldProfitUSD:
		return v.ProfitUSD
	case FieldProfitILS:
		return v.ProfitILS
	}
	return decimal.Zero
}

// Sum adds field over every lot, as last valued.
func (e *Engine) Sum(field Field) decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.store.All() {
		total = total.Add(field.of(l.Valuation))
	}
	return total
}

// Profit is the portfolio wide profit.
type Profit struct {
	ILS     decimal.Decimal
	Percent decimal.Decimal
	// Defined is false when the percentage could not be computed.
	Defined bool
}

// OrZero returns p, or a zero profit if it is not defined.
func (p Profit) OrZero() Profit {
	if !p.Defined {
		return Profit{ILS: decimal.Zero, Percent: decimal.Zero}
	}
	return p
}

// TotalProfit returns the profit in ILS and its percentage of the market value.
//
// It returns ErrPriceUnavailable if any lot was never valued, ErrUndefinedProfit
// if any lot has a zero cost and ErrNoHoldings if the portfolio market value is
// zero. The returned Profit still carries the ILS sum in those cases.
func (e *Engine) TotalProfit() (Profit, error) {
	mv, profit := decimal.Zero, decimal.Zero
	unvalued, undefined := 0, 0
	for _, l := range e.store.All() {
		mv = mv.Add(l.Valuation.MarketValueILS)
		profit = profit.Add(l.Valuation.ProfitILS)
		switch {
		case l.Valuation.IsZero():
			unvalued++
		case !l.Valuation.PercentDefined:
			undefined++
		}
	}
	p := Profit{ILS: profit, Percent: decimal.Zero}
	if unvalued > 0 {
		return p, fmt.Errorf("%w: %d lots were never valued", ErrPriceUnavailable, unvalued)
	}
	if undefined > 0 {
		return p, fmt.Errorf("%w: %d lots have a zero cost", ErrUndefinedProfit, undefined)
	}
	if mv.IsZero() {
		return p, ErrNoHoldings
	}
	p.Percent = mv.Add(profit).Div(mv).Mul(hundred).Sub(hundred)
	p.Defined = true
	return p, nil
}
