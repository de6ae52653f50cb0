package surreal

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/etnz/mfm"
	"github.com/etnz/mfm/date"
)

// Decimals are stored as strings so that no precision is lost on the way.

type lotRow struct {
	Symbol         string    `json:"symbol"`
	Sequence       int       `json:"sequence"`
	Date           string    `json:"date"`
	Amount         int       `json:"amount"`
	UnitCost       string    `json:"unit_cost"`
	Currency       string    `json:"currency"`
	Fund           string    `json:"fund"`
	Cost           string    `json:"cost"`
	MarketValueUSD string    `json:"market_value_usd"`
	MarketValueILS string    `json:"market_value_ils"`
	ProfitUSD      string    `json:"profit_usd"`
	ProfitILS      string    `json:"profit_ils"`
	ProfitPercent  string    `json:"profit_percent"`
	PercentDefined bool      `json:"percent_defined"`
	Stale          bool      `json:"stale"`
	ValuedAt       time.Time `json:"valued_at"`
}

const lotFields = "symbol, sequence, date, amount, unit_cost, currency, fund, cost, market_value_usd, " +
	"market_value_ils, profit_usd, profit_ils, profit_percent, percent_defined, stale, valued_at"

func newLotRow(l mfm.Lot) lotRow {
	v := l.Valuation
	return lotRow{
		Symbol:         l.Symbol,
		Sequence:       l.Sequence,
		Date:           l.Date.String(),
		Amount:         l.Amount,
		UnitCost:       l.UnitCost.String(),
		Currency:       string(l.Currency()),
		Fund:           string(l.FundRef()),
		Cost:           v.Cost.String(),
		MarketValueUSD: v.MarketValueUSD.String(),
		MarketValueILS: v.MarketValueILS.String(),
		ProfitUSD:      v.ProfitUSD.String(),
		ProfitILS:      v.ProfitILS.String(),
		ProfitPercent:  v.ProfitPercent.String(),
		PercentDefined: v.PercentDefined,
		Stale:          v.Stale,
		ValuedAt:       v.At,
	}
}

func (r lotRow) lot() (mfm.Lot, error) {
	inst, err := mfm.NewInstrument(mfm.Currency(r.Currency), mfm.FundRef(r.Fund))
	if err != nil {
		return mfm.Lot{}, err
	}
	on, err := date.Parse(r.Date)
	if err != nil {
		return mfm.Lot{}, err
	}
	l := mfm.Lot{
		Symbol:     r.Symbol,
		Sequence:   r.Sequence,
		Date:       on,
		Amount:     r.Amount,
		Instrument: inst,
		Valuation: mfm.Valuation{
			PercentDefined: r.PercentDefined,
			Stale:          r.Stale,
			At:             r.ValuedAt,
		},
	}
	err = parseDecimals([]decimalField{
		{r.UnitCost, &l.UnitCost},
		{r.Cost, &l.Valuation.Cost},
		{r.MarketValueUSD, &l.Valuation.MarketValueUSD},
		{r.MarketValueILS, &l.Valuation.MarketValueILS},
		{r.ProfitUSD, &l.Valuation.ProfitUSD},
		{r.ProfitILS, &l.Valuation.ProfitILS},
		{r.ProfitPercent, &l.Valuation.ProfitPercent},
	})
	return l, err
}

type snapshotRow struct {
	Date          string `json:"date"`
	PortfolioILS  string `json:"portfolio_ils"`
	PortfolioUSD  string `json:"portfolio_usd"`
	TotalILS      string `json:"total_ils"`
	TotalUSD      string `json:"total_usd"`
	ProfitILS     string `json:"profit_ils"`
	ProfitPercent string `json:"profit_percent"` // empty when undefined
	ForeignILS    string `json:"foreign_ils"`
	Bank          string `json:"bank"`
	Trader        string `json:"trader"`
}

const snapshotFields = "date, portfolio_ils, portfolio_usd, total_ils, total_usd, profit_ils, " +
	"profit_percent, foreign_ils, bank, trader"

func newSnapshotRow(s mfm.Snapshot) snapshotRow {
	r := snapshotRow{
		Date:         s.Date.String(),
		PortfolioILS: s.Portfolio.ILS.String(),
		PortfolioUSD: s.Portfolio.USD.String(),
		TotalILS:     s.TotalAssets.ILS.String(),
		TotalUSD:     s.TotalAssets.USD.String(),
		ProfitILS:    s.ProfitILS.String(),
		ForeignILS:   s.ForeignCurrencies.String(),
		Bank:         s.BankCashFlow.String(),
		Trader:       s.TraderCashFlow.String(),
	}
	if s.ProfitPercent.Valid {
		r.ProfitPercent = s.ProfitPercent.Decimal.String()
	}
	return r
}

func (r snapshotRow) snapshot() (mfm.Snapshot, error) {
	on, err := date.Parse(r.Date)
	if err != nil {
		return mfm.Snapshot{}, err
	}
	s := mfm.Snapshot{Date: on}
	err = parseDecimals([]decimalField{
		{r.PortfolioILS, &s.Portfolio.ILS},
		{r.PortfolioUSD, &s.Portfolio.USD},
		{r.TotalILS, &s.TotalAssets.ILS},
		{r.TotalUSD, &s.TotalAssets.USD},
		{r.ProfitILS, &s.ProfitILS},
		{r.ForeignILS, &s.ForeignCurrencies},
		{r.Bank, &s.BankCashFlow},
		{r.Trader, &s.TraderCashFlow},
	})
	if err != nil {
		return mfm.Snapshot{}, err
	}
	if r.ProfitPercent != "" {
		p, err := decimal.NewFromString(r.ProfitPercent)
		if err != nil {
			return mfm.Snapshot{}, fmt.Errorf("invalid profit percent %q: %w", r.ProfitPercent, err)
		}
		s.ProfitPercent = decimal.NewNullDecimal(p)
	}
	return s, nil
}

type foreignRow struct {
	Currency string    `json:"currency"`
	Account  string    `json:"account"`
	Amount   string    `json:"amount"`
	ILS      string    `json:"ils"`
	Updated  time.Time `json:"updated"`
}

const foreignFields = "currency, account, amount, ils, updated"

func newForeignRow(b mfm.ForeignBalance) foreignRow {
	return foreignRow{
		Currency: string(b.Currency),
		Account:  string(b.Account),
		Amount:   b.Amount.String(),
		ILS:      b.ILS.String(),
		Updated:  b.Updated,
	}
}

func (r foreignRow) balance() (mfm.ForeignBalance, error) {
	cur, err := mfm.ParseCurrency(r.Currency)
	if err != nil {
		return mfm.ForeignBalance{}, err
	}
	account, err := mfm.ParseAccount(r.Account)
	if err != nil {
		return mfm.ForeignBalance{}, err
	}
	b := mfm.ForeignBalance{Currency: cur, Account: account, Updated: r.Updated}
	err = parseDecimals([]decimalField{{r.Amount, &b.Amount}, {r.ILS, &b.ILS}})
	return b, err
}

type markerRow struct {
	Marker string    `json:"marker"`
	At     time.Time `json:"at"`
}

type decimalField struct {
	text string
	dst  *decimal.Decimal
}

func parseDecimals(fields []decimalField) error {
	for _, f := range fields {
		d, err := decimal.NewFromString(f.text)
		if err != nil {
			return fmt.Errorf("invalid decimal %q: %w", f.text, err)
		}
		*f.dst = d
	}
	return nil
}
