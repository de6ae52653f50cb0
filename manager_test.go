package mfm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etnz/mfm/date"
)

func openTestManager(t *testing.T, repo Repository) *Manager {
	t.Helper()
	rates, prices, funds := oracles()
	rates.On("Rate", Currency("EUR"), ILS).Return(dec("3.9"), nil).Maybe()
	prices.On("LivePrice", "AAPL").Return(dec("165"), nil).Maybe()
	funds.On("RedemptionPrice", FundRef("5109889")).Return(dec("19500"), nil).Maybe()
	m, err := Open(context.Background(), repo, rates, prices, funds, WithClock(fixedClock))
	require.NoError(t, err)
	return m
}

func TestManager_Lifecycle(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	m := openTestManager(t, NewFileRepository(dir))

	l, err := m.AddStock(ctx, "aapl", jan1, 50, dec("150"), USD, "")
	require.NoError(t, err)
	assert.Equal(t, LotKey{"AAPL", 1}, l.Key())
	assert.True(t, l.Valuation.MarketValueUSD.Equal(dec("8250")), "AddStock values the lot, got %v", l.Valuation.MarketValueUSD)

	_, err = m.AddStock(ctx, "AAPL", jan2, 30, dec("150"), USD, "")
	require.NoError(t, err)
	_, err = m.AddStock(ctx, "TEVA", jan1, 1, dec("19500"), ILS, "5109889")
	require.NoError(t, err)

	plan, err := m.RemoveStock(ctx, "AAPL", 60)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)

	report, err := m.UpdateStocksPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "TEVA"}, report.Updated)

	holdings := m.Holdings()
	require.Len(t, holdings, 2)
	assert.Equal(t, "AAPL", holdings[0].Symbol, "largest ILS market value first")
	assert.Equal(t, 20, holdings[0].Amount)

	bank := dec("1000")
	_, err = m.SetCashFlow(ctx, &bank, nil)
	require.NoError(t, err)
	_, err = m.UpdateForeignCurrency(ctx, "EUR", Trader, dec("100"))
	require.NoError(t, err)

	total, err := m.TotalAssets(ctx, ILS)
	require.NoError(t, err)
	// 20*165*4 + 195 + 1000 + 390
	assert.True(t, total.Equal(dec("14785")), "TotalAssets(ILS) = %v", total)

	s, err := m.SnapshotLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, clock.Format("2006-01-02"), s.Date.String())
	assert.True(t, s.BankCashFlow.Equal(bank))

	mod := m.LastModified()
	for _, mk := range []Marker{MarkerStocks, MarkerBank, MarkerHistory} {
		assert.Equal(t, clock, mod[mk], "marker %s", mk)
	}
	_, hasTrader := mod[MarkerTrader]
	assert.False(t, hasTrader)

	// a new manager over the same folder sees the same state
	again := openTestManager(t, NewFileRepository(dir))
	require.Len(t, again.Holdings(), 2)
	assert.Equal(t, 20, again.Holdings()[0].Amount)
	assert.Len(t, again.History(), 1)
	assert.Len(t, again.Foreign(), 1)
	got, err := again.TotalAssets(ctx, ILS)
	require.NoError(t, err)
	assert.True(t, got.Equal(total), "reloaded TotalAssets(ILS) = %v", got)
}

func TestManager_ValidationDoesNotPersist(t *testing.T) {
	repo := &failingRepository{}
	m := openTestManager(t, repo)
	ctx := context.Background()

	_, err := m.AddStock(ctx, "AAPL", jan1, 10, dec("1"), USD, "123")
	require.ErrorIs(t, err, ErrInvalidStockDefinition)
	_, err = m.RemoveStock(ctx, "AAPL", 1)
	require.ErrorIs(t, err, ErrInsufficientHoldings)
	_, err = m.TotalAssets(ctx, "EUR")
	require.ErrorIs(t, err, ErrUnsupportedCurrency)
	assert.Zero(t, repo.calls, "failed validation must not reach the repository")
}

func TestManager_PersistenceFailure(t *testing.T) {
	repo := &failingRepository{err: errors.New("disk full")}
	m := openTestManager(t, repo)

	_, err := m.AddStock(context.Background(), "AAPL", jan1, 10, dec("150"), USD, "")
	require.ErrorIs(t, err, ErrPersistenceFailure)
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "save lots AAPL", pe.Op)
	assert.ErrorIs(t, err, repo.err)
}

func TestManager_UpdateForeignCurrency_Invalid(t *testing.T) {
	m := openTestManager(t, &failingRepository{})
	_, err := m.UpdateForeignCurrency(context.Background(), ILS, Bank, dec("1"))
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)
	_, err = m.UpdateForeignCurrency(context.Background(), USD, "savings", dec("1"))
	assert.Error(t, err)
}

func TestManager_UpdateStocksPrice_Symbols(t *testing.T) {
	repo := &failingRepository{}
	m := openTestManager(t, repo)
	ctx := context.Background()
	_, err := m.AddStock(ctx, "AAPL", jan1, 10, dec("150"), USD, "")
	require.NoError(t, err)
	repo.lots = nil

	report, err := m.UpdateStocksPrice(ctx, "AAPL", "aapl", "NOPE")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, report.Updated)
	assert.Equal(t, []string{"AAPL"}, repo.lots, "only held symbols are saved, once")
}

func TestManager_AddStock_DefaultsToToday(t *testing.T) {
	m := openTestManager(t, &failingRepository{})
	l, err := m.AddStock(context.Background(), "AAPL", date.Date{}, 10, dec("150"), USD, "")
	require.NoError(t, err)
	assert.Equal(t, date.Of(clock), l.Date)
}

// failingRepository counts saves and fails them with err.
type failingRepository struct {
	err   error
	calls int
	lots  []string // symbols passed to SaveLots
}

func (r *failingRepository) Load(context.Context) (State, error) { return State{}, nil }
func (r *failingRepository) SaveLots(_ context.Context, symbol string, _ []Lot) error {
	r.calls++
	r.lots = append(r.lots, symbol)
	return r.err
}
func (r *failingRepository) SaveSnapshot(context.Context, Snapshot) error {
	r.calls++
	return r.err
}
func (r *failingRepository) SaveForeign(context.Context, ForeignBalance) error {
	r.calls++
	return r.err
}
func (r *failingRepository) SaveModified(context.Context, LastModified) error {
	r.calls++
	return r.err
}
