package mfm

import (
	"context"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/etnz/mfm/date"
)

// dec is a helper for test to create decimals from const.
func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// cmpOpts lets cmp compare decimals by value, and dates.
var cmpOpts = cmp.Options{
	cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) }),
	cmp.Comparer(func(a, b date.Date) bool { return a == b }),
}

var (
	jan1  = date.New(2025, time.January, 1)
	jan2  = date.New(2025, time.January, 2)
	clock = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
)

func fixedClock() time.Time { return clock }

type mockRates struct{ mock.Mock }

func (m *mockRates) Rate(ctx context.Context, from, to Currency) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	args := m.Called(from, to)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockRates) Convert(ctx context.Context, from, to Currency, amount decimal.Decimal) (decimal.Decimal, error) {
	rate, err := m.Rate(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate), nil
}

type mockPrices struct{ mock.Mock }

func (m *mockPrices) LivePrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	args := m.Called(symbol)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type mockFunds struct{ mock.Mock }

func (m *mockFunds) RedemptionPrice(ctx context.Context, ref FundRef) (decimal.Decimal, error) {
	args := m.Called(ref)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// oracles returns mocks where 1 USD is worth 4 ILS.
func oracles() (*mockRates, *mockPrices, *mockFunds) {
	rates := new(mockRates)
	rates.On("Rate", USD, ILS).Return(dec("4"), nil).Maybe()
	rates.On("Rate", ILS, USD).Return(dec("0.25"), nil).Maybe()
	return rates, new(mockPrices), new(mockFunds)
}

// newTestEngine returns an engine over a fresh store.
func newTestEngine(rates RateOracle, prices PriceOracle, funds FundPriceOracle) (*Store, *Engine) {
	store := NewStore()
	return store, NewEngine(store, rates, prices, funds, WithClock(fixedClock), WithWorkers(2))
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
