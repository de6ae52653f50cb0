package mfm

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/etnz/mfm/date"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Manager is the single entry point to the portfolio: it validates requests,
// drives the Store, Engine and Recorder, and persists every change.
//
// Operations are serialized.
type Manager struct {
	mu       sync.Mutex
	repo     Repository
	store    *Store
	engine   *Engine
	recorder *Recorder
	foreign  *ForeignBalances
	rates    RateOracle
	modified LastModified
	log      zerolog.Logger
	now      func() time.Time
	timeout  time.Duration
}

// Open loads the state from repo and returns a Manager valuing it with the given oracles.
func Open(ctx context.Context, repo Repository, rates RateOracle, prices PriceOracle, funds FundPriceOracle, opts ...Option) (*Manager, error) {
	s := newSettings(opts)
	state, err := repo.Load(ctx)
	if err != nil {
		return nil, persistErr("load", err)
	}

	store := NewStore(opts...)
	if err := store.Load(state.Lots); err != nil {
		return nil, persistErr("load", err)
	}
	foreign := NewForeignBalances()
	foreign.Load(state.Foreign)
	engine := NewEngine(store, rates, prices, funds, opts...)
	recorder := NewRecorder(engine, rates, foreign, opts...)
	recorder.Load(state.Snapshots)

	modified := LastModified{}
	maps.Copy(modified, state.Modified)

	s.logger.Debug().Int("lots", len(state.Lots)).Int("snapshots", len(state.Snapshots)).Msg("state loaded")
	return &Manager{
		repo:     repo,
		store:    store,
		engine:   engine,
		recorder: recorder,
		foreign:  foreign,
		rates:    rates,
		modified: modified,
		log:      s.logger,
		now:      s.now,
		timeout:  s.callTimeout,
	}, nil
}

func (m *Manager) today() date.Date { return date.Of(m.now()) }

// touch sets the markers to now and persists them.
func (m *Manager) touch(ctx context.Context, markers ...Marker) error {
	now := m.now()
	for _, mk := range markers {
		m.modified[mk] = now
	}
	return persistErr("save modified", m.repo.SaveModified(ctx, maps.Clone(m.modified)))
}

// saveSymbols persists the current lots of each symbol.
func (m *Manager) saveSymbols(ctx context.Context, symbols ...string) error {
	for _, symbol := range symbols {
		if err := m.repo.SaveLots(ctx, symbol, m.store.Lots(symbol)); err != nil {
			return persistErr("save lots "+symbol, err)
		}
	}
	return nil
}

// AddStock records an acquisition and values it. A zero date means today.
//
// A valuation failure is logged, the lot is still added and the error is not
// returned: the lot will be valued by the next price update.
func (m *Manager) AddStock(ctx context.Context, symbol string, on date.Date, amount int, unitCost decimal.Decimal, cur Currency, ref FundRef) (Lot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if on.IsZero() {
		on = m.today()
	}
	l, err := m.store.AddLot(symbol, amount, unitCost, cur, on, ref)
	if err != nil {
		return Lot{}, err
	}
	m.log.Info().Stringer("lot", l.Key()).Int("amount", amount).Str("unit_cost", unitCost.String()).Msg("stock added")

	if report, _ := m.engine.Revalue(ctx, l.Symbol); len(report.Failed) > 0 {
		m.log.Warn().Err(report.Err()).Str("symbol", l.Symbol).Msg("new lot is not valued")
	}
	if err := m.saveSymbols(ctx, l.Symbol); err != nil {
		return l, err
	}
	for _, got := range m.store.Lots(l.Symbol) {
		if got.Sequence == l.Sequence {
			l = got
		}
	}
	return l, m.touch(ctx, MarkerStocks)
}

// RemoveStock divests amount units of symbol, first in first out, and
// revalues what is left of it.
func (m *Manager) RemoveStock(ctx context.Context, symbol string, amount int) (DivestmentPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	plan, err := m.store.Divest(symbol, amount)
	if err != nil {
		return plan, err
	}
	if !plan.Closed {
		if report, _ := m.engine.Revalue(ctx, plan.Symbol); len(report.Failed) > 0 {
			m.log.Warn().Err(report.Err()).Str("symbol", plan.Symbol).Msg("remaining lots are not revalued")
		}
	}
	if err := m.saveSymbols(ctx, plan.Symbol); err != nil {
		return plan, err
	}
	return plan, m.touch(ctx, MarkerStocks)
}

// UpdateStocksPrice revalues the given symbols, or every symbol, and persists the new values.
//
// Per symbol failures are in the report, the error is only for persistence.
func (m *Manager) UpdateStocksPrice(ctx context.Context, symbols ...string) (RevalueReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	report, err := m.engine.Revalue(ctx, symbols...)
	if err != nil {
		return report, err
	}
	saved := slices.Concat(report.Updated, slices.Collect(maps.Keys(report.Failed)))
	if err := m.saveSymbols(ctx, saved...); err != nil {
		return report, err
	}
	return report, m.touch(ctx, MarkerStocks)
}

// TotalProfit returns the portfolio profit, see Engine.TotalProfit.
func (m *Manager) TotalProfit() (Profit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engine.TotalProfit()
}

// TotalAssets returns the value of the lots, the latest cash flows and the
// foreign cash, in cur.
func (m *Manager) TotalAssets(ctx context.Context, cur Currency) (decimal.Decimal, error) {
	if !cur.IsReporting() {
		return decimal.Zero, fmt.Errorf("%w: %q, want USD or ILS", ErrUnsupportedCurrency, cur)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	bank, trader := m.recorder.LatestCashFlow()
	total, err := m.recorder.totalAssets(ctx, bank, trader)
	if err != nil {
		return decimal.Zero, err
	}
	if cur == USD {
		return total.USD, nil
	}
	return total.ILS, nil
}

// SnapshotHistory records today's snapshot with the given cash flows.
func (m *Manager) SnapshotHistory(ctx context.Context, bankCF, traderCF decimal.Decimal) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.recorder.Snapshot(ctx, m.today(), bankCF, traderCF)
	if err != nil {
		return s, err
	}
	m.log.Info().Stringer("date", s.Date).Str("total_ils", s.TotalAssets.ILS.String()).Msg("snapshot recorded")
	if err := m.repo.SaveSnapshot(ctx, s); err != nil {
		return s, persistErr("save snapshot", err)
	}
	return s, m.touch(ctx, MarkerHistory)
}

// SnapshotLatest records today's snapshot with the latest known cash flows.
func (m *Manager) SnapshotLatest(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	bank, trader := m.recorder.LatestCashFlow()
	m.mu.Unlock()
	return m.SnapshotHistory(ctx, bank, trader)
}

// SetCashFlow sets today's bank and trader cash flows and records today's snapshot
// with them. A nil value is left unchanged.
func (m *Manager) SetCashFlow(ctx context.Context, bank, trader *decimal.Decimal) (Snapshot, error) {
	if bank == nil && trader == nil {
		return Snapshot{}, fmt.Errorf("no cash flow to update")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.recorder.SetCashFlow(ctx, m.today(), bank, trader)
	if err != nil {
		return s, err
	}
	if err := m.repo.SaveSnapshot(ctx, s); err != nil {
		return s, persistErr("save cash flow", err)
	}
	var markers []Marker
	if bank != nil {
		markers = append(markers, MarkerBank)
	}
	if trader != nil {
		markers = append(markers, MarkerTrader)
	}
	return s, m.touch(ctx, markers...)
}

// UpdateForeignCurrency records the balance of a foreign currency account, with its value in ILS.
func (m *Manager) UpdateForeignCurrency(ctx context.Context, cur Currency, account Account, amount decimal.Decimal) (ForeignBalance, error) {
	if cur == ILS {
		return ForeignBalance{}, fmt.Errorf("%w: ILS is not a foreign currency", ErrUnsupportedCurrency)
	}
	if _, err := ParseAccount(string(account)); err != nil {
		return ForeignBalance{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	ils, err := m.rates.Convert(cctx, cur, ILS, amount)
	if err != nil {
		return ForeignBalance{}, err
	}
	b := ForeignBalance{
		Currency: cur,
		Account:  account,
		Amount:   amount,
		ILS:      ils.Round(roundPlaces),
		Updated:  m.now(),
	}
	m.foreign.Set(b)
	m.log.Info().Str("currency", string(cur)).Str("account", string(account)).Str("ils", b.ILS.String()).Msg("foreign currency updated")
	if err := m.repo.SaveForeign(ctx, b); err != nil {
		return b, persistErr("save foreign", err)
	}
	return b, nil
}

// LastModified returns a copy of the last modified markers.
func (m *Manager) LastModified() LastModified {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.modified)
}

// Holdings returns every lot, highest ILS market value first.
func (m *Manager) Holdings() []Lot {
	lots := m.store.All()
	slices.SortStableFunc(lots, func(a, b Lot) int {
		return b.Valuation.MarketValueILS.Cmp(a.Valuation.MarketValueILS)
	})
	return lots
}

// Foreign returns the foreign currency balances.
func (m *Manager) Foreign() []ForeignBalance { return m.foreign.All() }

// History returns the snapshots, newest first.
func (m *Manager) History() []Snapshot { return m.recorder.History() }

// LatestCashFlow returns the latest bank and trader cash flows.
func (m *Manager) LatestCashFlow() (bank, trader decimal.Decimal) { return m.recorder.LatestCashFlow() }
