package mfm

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etnz/mfm/date"
)

func newTestRecorder(t *testing.T) (*Store, *Engine, *Recorder, *ForeignBalances) {
	t.Helper()
	rates, prices, funds := oracles()
	prices.On("LivePrice", "AAPL").Return(dec("165"), nil).Maybe()
	store, e := newTestEngine(rates, prices, funds)
	foreign := NewForeignBalances()
	return store, e, NewRecorder(e, rates, foreign), foreign
}

func TestRecorder_Snapshot(t *testing.T) {
	store, e, r, foreign := newTestRecorder(t)
	must(store.AddLot("AAPL", 100, dec("150"), USD, jan1, ""))
	_, err := e.Revalue(context.Background())
	require.NoError(t, err)
	foreign.Set(ForeignBalance{Currency: "EUR", Account: Bank, Amount: dec("100"), ILS: dec("400")})

	s, err := r.Snapshot(context.Background(), jan1, dec("1000"), dec("600"))
	require.NoError(t, err)

	assert.True(t, s.Portfolio.ILS.Equal(dec("66000")), "Portfolio.ILS = %v", s.Portfolio.ILS)
	assert.True(t, s.Portfolio.USD.Equal(dec("16500")), "Portfolio.USD = %v", s.Portfolio.USD)
	// 66000 + 1000 + 600 + 400
	assert.True(t, s.TotalAssets.ILS.Equal(dec("68000")), "TotalAssets.ILS = %v", s.TotalAssets.ILS)
	assert.True(t, s.TotalAssets.USD.Equal(dec("17000")), "TotalAssets.USD = %v", s.TotalAssets.USD)
	assert.True(t, s.ForeignCurrencies.Equal(dec("400")))
	assert.True(t, s.ProfitILS.Equal(dec("6000")))
	require.True(t, s.ProfitPercent.Valid)
}

func TestRecorder_Snapshot_SameDayOverwrites(t *testing.T) {
	_, _, r, _ := newTestRecorder(t)
	ctx := context.Background()

	_, err := r.Snapshot(ctx, jan1, dec("10"), decimal.Zero)
	require.NoError(t, err)
	_, err = r.Snapshot(ctx, jan2, dec("20"), decimal.Zero)
	require.NoError(t, err)
	_, err = r.Snapshot(ctx, jan2, dec("30"), decimal.Zero)
	require.NoError(t, err)

	history := r.History()
	require.Len(t, history, 2)
	assert.Equal(t, jan2, history[0].Date, "newest first")
	assert.True(t, history[0].BankCashFlow.Equal(dec("30")), "same day snapshot is overwritten")
	prior, ok := r.Get(jan1)
	require.True(t, ok)
	assert.True(t, prior.BankCashFlow.Equal(dec("10")), "prior day is untouched")
}

func TestRecorder_Snapshot_UndefinedPercentIsNull(t *testing.T) {
	_, _, r, _ := newTestRecorder(t)

	s, err := r.Snapshot(context.Background(), jan1, decimal.Zero, decimal.Zero)
	require.NoError(t, err)
	assert.False(t, s.ProfitPercent.Valid, "no holdings means no percentage")

	raw, err := s.ProfitPercent.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))
}

func TestRecorder_SetCashFlow(t *testing.T) {
	store, e, r, _ := newTestRecorder(t)
	ctx := context.Background()
	must(store.AddLot("AAPL", 100, dec("150"), USD, jan1, ""))
	_, err := e.Revalue(ctx)
	require.NoError(t, err)

	first, err := r.Snapshot(ctx, jan1, dec("1000"), dec("250"))
	require.NoError(t, err)
	require.True(t, first.TotalAssets.ILS.Equal(dec("67250")), "TotalAssets.ILS = %v", first.TotalAssets.ILS)

	tests := []struct {
		name       string
		on         date.Date
		bank       decimal.Decimal
		wantTrader decimal.Decimal
		wantTotal  decimal.Decimal
	}{
		// 66000 + 5000 + 250
		{name: "same day", on: jan1, bank: dec("5000"), wantTrader: dec("250"), wantTotal: dec("71250")},
		// 66000 + 1200 + 250, trader carried forward from jan1
		{name: "new day", on: jan2, bank: dec("1200"), wantTrader: dec("250"), wantTotal: dec("67450")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := r.SetCashFlow(ctx, tt.on, &tt.bank, nil)
			require.NoError(t, err)

			assert.Equal(t, tt.on, s.Date)
			assert.True(t, s.BankCashFlow.Equal(tt.bank), "BankCashFlow = %v", s.BankCashFlow)
			assert.True(t, s.TraderCashFlow.Equal(tt.wantTrader), "TraderCashFlow = %v", s.TraderCashFlow)
			assert.True(t, s.Portfolio.ILS.Equal(dec("66000")), "Portfolio.ILS = %v", s.Portfolio.ILS)
			assert.True(t, s.TotalAssets.ILS.Equal(tt.wantTotal), "TotalAssets.ILS = %v", s.TotalAssets.ILS)
			assert.True(t, s.TotalAssets.USD.Equal(tt.wantTotal.Mul(dec("0.25"))), "TotalAssets.USD = %v", s.TotalAssets.USD)
			assert.True(t, s.ProfitILS.Equal(dec("6000")))
			assert.True(t, s.ProfitPercent.Valid)

			got, ok := r.Get(tt.on)
			require.True(t, ok)
			assert.True(t, got.TotalAssets.ILS.Equal(tt.wantTotal), "stored record is the returned one")
		})
	}

	prior, _ := r.Get(jan1)
	assert.True(t, prior.BankCashFlow.Equal(dec("5000")), "the new day does not touch jan1")
	gotBank, gotTrader := r.LatestCashFlow()
	assert.True(t, gotBank.Equal(dec("1200")))
	assert.True(t, gotTrader.Equal(dec("250")))
}
