// Package postgres stores the portfolio state in a PostgreSQL database.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/etnz/mfm"
	"github.com/etnz/mfm/date"
)

// Numerics travel as text in both directions, so that no precision is lost.
const schema = `
CREATE TABLE IF NOT EXISTS lots (
	symbol           text        NOT NULL,
	sequence         integer     NOT NULL,
	bought_on        date        NOT NULL,
	amount           integer     NOT NULL CHECK (amount > 0),
	unit_cost        numeric     NOT NULL,
	currency         text        NOT NULL,
	fund             text        NOT NULL DEFAULT '',
	cost             numeric     NOT NULL DEFAULT 0,
	market_value_usd numeric     NOT NULL DEFAULT 0,
	market_value_ils numeric     NOT NULL DEFAULT 0,
	profit_usd       numeric     NOT NULL DEFAULT 0,
	profit_ils       numeric     NOT NULL DEFAULT 0,
	profit_percent   numeric     NOT NULL DEFAULT 0,
	percent_defined  boolean     NOT NULL DEFAULT false,
	stale            boolean     NOT NULL DEFAULT false,
	valued_at        timestamptz,
	PRIMARY KEY (symbol, sequence)
);
CREATE TABLE IF NOT EXISTS snapshots (
	day            date    PRIMARY KEY,
	portfolio_ils  numeric NOT NULL,
	portfolio_usd  numeric NOT NULL,
	total_ils      numeric NOT NULL,
	total_usd      numeric NOT NULL,
	profit_ils     numeric NOT NULL,
	profit_percent numeric,
	foreign_ils    numeric NOT NULL,
	bank           numeric NOT NULL,
	trader         numeric NOT NULL
);
CREATE TABLE IF NOT EXISTS foreign_balances (
	currency text        NOT NULL,
	account  text        NOT NULL,
	amount   numeric     NOT NULL,
	ils      numeric     NOT NULL,
	updated  timestamptz NOT NULL,
	PRIMARY KEY (currency, account)
);
CREATE TABLE IF NOT EXISTS markers (
	marker text        PRIMARY KEY,
	at     timestamptz NOT NULL
);`

// Store implements mfm.Repository on PostgreSQL.
type Store struct {
	DB     *pgxpool.Pool
	logger zerolog.Logger
}

// Open connects to url and creates the tables if needed.
func Open(ctx context.Context, url string, logger zerolog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	s, err := New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New uses an existing pool and creates the tables if needed.
func New(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	logger.Info().Str("database", pool.Config().ConnConfig.Database).Msg("postgres storage initialized")
	return &Store{DB: pool, logger: logger}, nil
}

// Close closes the pool.
func (s *Store) Close() { s.DB.Close() }

// Load implements mfm.Repository.
func (s *Store) Load(ctx context.Context) (mfm.State, error) {
	st := mfm.State{Modified: mfm.LastModified{}}
	var err error
	if st.Lots, err = s.loadLots(ctx); err != nil {
		return mfm.State{}, fmt.Errorf("failed to load lots: %w", err)
	}
	if st.Snapshots, err = s.loadSnapshots(ctx); err != nil {
		return mfm.State{}, fmt.Errorf("failed to load history: %w", err)
	}
	if st.Foreign, err = s.loadForeign(ctx); err != nil {
		return mfm.State{}, fmt.Errorf("failed to load foreign balances: %w", err)
	}

	rows, err := s.DB.Query(ctx, `SELECT marker, at FROM markers`)
	if err != nil {
		return mfm.State{}, fmt.Errorf("failed to load markers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var marker string
		var at time.Time
		if err := rows.Scan(&marker, &at); err != nil {
			return mfm.State{}, err
		}
		st.Modified[mfm.Marker(marker)] = at.UTC()
	}
	return st, rows.Err()
}

func (s *Store) loadLots(ctx context.Context) ([]mfm.Lot, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT symbol, sequence, bought_on::text, amount, unit_cost::text, currency, fund,
		       cost::text, market_value_usd::text, market_value_ils::text,
		       profit_usd::text, profit_ils::text, profit_percent::text,
		       percent_defined, stale, valued_at
		FROM lots ORDER BY symbol, sequence`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []mfm.Lot
	for rows.Next() {
		var (
			l                                 mfm.Lot
			on, unitCost, cur, fund           string
			cost, mvUSD, mvILS, pUSD, pILS, p string
			valuedAt                          *time.Time
		)
		if err := rows.Scan(&l.Symbol, &l.Sequence, &on, &l.Amount, &unitCost, &cur, &fund,
			&cost, &mvUSD, &mvILS, &pUSD, &pILS, &p,
			&l.Valuation.PercentDefined, &l.Valuation.Stale, &valuedAt); err != nil {
			return nil, err
		}
		if l.Date, err = date.Parse(on); err != nil {
			return nil, err
		}
		if l.Instrument, err = mfm.NewInstrument(mfm.Currency(cur), mfm.FundRef(fund)); err != nil {
			return nil, err
		}
		if valuedAt != nil {
			l.Valuation.At = valuedAt.UTC()
		}
		err = parseDecimals([]decimalField{
			{unitCost, &l.UnitCost},
			{cost, &l.Valuation.Cost},
			{mvUSD, &l.Valuation.MarketValueUSD},
			{mvILS, &l.Valuation.MarketValueILS},
			{pUSD, &l.Valuation.ProfitUSD},
			{pILS, &l.Valuation.ProfitILS},
			{p, &l.Valuation.ProfitPercent},
		})
		if err != nil {
			return nil, fmt.Errorf("lot %s: %w", l.Key(), err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) loadSnapshots(ctx context.Context) ([]mfm.Snapshot, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT day::text, portfolio_ils::text, portfolio_usd::text, total_ils::text, total_usd::text,
		       profit_ils::text, profit_percent::text, foreign_ils::text, bank::text, trader::text
		FROM snapshots ORDER BY day`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []mfm.Snapshot
	for rows.Next() {
		var (
			snap                                    mfm.Snapshot
			day, pILS, pUSD, tILS, tUSD, profit, fx string
			bank, trader                            string
			percent                                 *string
		)
		if err := rows.Scan(&day, &pILS, &pUSD, &tILS, &tUSD, &profit, &percent, &fx, &bank, &trader); err != nil {
			return nil, err
		}
		if snap.Date, err = date.Parse(day); err != nil {
			return nil, err
		}
		err = parseDecimals([]decimalField{
			{pILS, &snap.Portfolio.ILS},
			{pUSD, &snap.Portfolio.USD},
			{tILS, &snap.TotalAssets.ILS},
			{tUSD, &snap.TotalAssets.USD},
			{profit, &snap.ProfitILS},
			{fx, &snap.ForeignCurrencies},
			{bank, &snap.BankCashFlow},
			{trader, &snap.TraderCashFlow},
		})
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", day, err)
		}
		if percent != nil {
			var d decimal.Decimal
			if err := parseDecimals([]decimalField{{*percent, &d}}); err != nil {
				return nil, fmt.Errorf("snapshot %s: %w", day, err)
			}
			snap.ProfitPercent = decimal.NewNullDecimal(d)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *Store) loadForeign(ctx context.Context) ([]mfm.ForeignBalance, error) {
	rows, err := s.DB.Query(ctx, `SELECT currency, account, amount::text, ils::text, updated FROM foreign_balances ORDER BY currency, account`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []mfm.ForeignBalance
	for rows.Next() {
		var (
			b                         mfm.ForeignBalance
			cur, account, amount, ils string
		)
		if err := rows.Scan(&cur, &account, &amount, &ils, &b.Updated); err != nil {
			return nil, err
		}
		b.Updated = b.Updated.UTC()
		if b.Currency, err = mfm.ParseCurrency(cur); err != nil {
			return nil, err
		}
		if b.Account, err = mfm.ParseAccount(account); err != nil {
			return nil, err
		}
		if err := parseDecimals([]decimalField{{amount, &b.Amount}, {ils, &b.ILS}}); err != nil {
			return nil, fmt.Errorf("foreign balance %s/%s: %w", cur, account, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// SaveLots implements mfm.Repository.
func (s *Store) SaveLots(ctx context.Context, symbol string, lots []mfm.Lot) error {
	err := pgx.BeginFunc(ctx, s.DB, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM lots WHERE symbol = $1`, symbol); err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for _, l := range lots {
			v := l.Valuation
			var valuedAt *time.Time
			if !v.At.IsZero() {
				valuedAt = &v.At
			}
			batch.Queue(`
				INSERT INTO lots (symbol, sequence, bought_on, amount, unit_cost, currency, fund,
				                  cost, market_value_usd, market_value_ils, profit_usd, profit_ils, profit_percent,
				                  percent_defined, stale, valued_at)
				VALUES ($1, $2, $3::date, $4, $5::numeric, $6, $7,
				        $8::numeric, $9::numeric, $10::numeric, $11::numeric, $12::numeric, $13::numeric,
				        $14, $15, $16)`,
				l.Symbol, l.Sequence, l.Date.String(), l.Amount, l.UnitCost.String(), string(l.Currency()), string(l.FundRef()),
				v.Cost.String(), v.MarketValueUSD.String(), v.MarketValueILS.String(),
				v.ProfitUSD.String(), v.ProfitILS.String(), v.ProfitPercent.String(),
				v.PercentDefined, v.Stale, valuedAt)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("failed to save lots of %s: %w", symbol, err)
	}
	return nil
}

// SaveSnapshot implements mfm.Repository.
func (s *Store) SaveSnapshot(ctx context.Context, snap mfm.Snapshot) error {
	var percent *string
	if snap.ProfitPercent.Valid {
		p := snap.ProfitPercent.Decimal.String()
		percent = &p
	}
	_, err := s.DB.Exec(ctx, `
		INSERT INTO snapshots (day, portfolio_ils, portfolio_usd, total_ils, total_usd, profit_ils,
		                       profit_percent, foreign_ils, bank, trader)
		VALUES ($1::date, $2::numeric, $3::numeric, $4::numeric, $5::numeric, $6::numeric,
		        $7::numeric, $8::numeric, $9::numeric, $10::numeric)
		ON CONFLICT (day) DO UPDATE SET
		    portfolio_ils = EXCLUDED.portfolio_ils, portfolio_usd = EXCLUDED.portfolio_usd,
		    total_ils = EXCLUDED.total_ils, total_usd = EXCLUDED.total_usd,
		    profit_ils = EXCLUDED.profit_ils, profit_percent = EXCLUDED.profit_percent,
		    foreign_ils = EXCLUDED.foreign_ils, bank = EXCLUDED.bank, trader = EXCLUDED.trader`,
		snap.Date.String(), snap.Portfolio.ILS.String(), snap.Portfolio.USD.String(),
		snap.TotalAssets.ILS.String(), snap.TotalAssets.USD.String(), snap.ProfitILS.String(),
		percent, snap.ForeignCurrencies.String(), snap.BankCashFlow.String(), snap.TraderCashFlow.String())
	if err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", snap.Date, err)
	}
	return nil
}

// SaveForeign implements mfm.Repository.
func (s *Store) SaveForeign(ctx context.Context, b mfm.ForeignBalance) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO foreign_balances (currency, account, amount, ils, updated)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5)
		ON CONFLICT (currency, account)
		DO UPDATE SET amount = EXCLUDED.amount, ils = EXCLUDED.ils, updated = EXCLUDED.updated`,
		string(b.Currency), string(b.Account), b.Amount.String(), b.ILS.String(), b.Updated)
	if err != nil {
		return fmt.Errorf("failed to save foreign balance %s/%s: %w", b.Currency, b.Account, err)
	}
	return nil
}

// SaveModified implements mfm.Repository.
func (s *Store) SaveModified(ctx context.Context, m mfm.LastModified) error {
	batch := &pgx.Batch{}
	for marker, at := range m {
		batch.Queue(`INSERT INTO markers (marker, at) VALUES ($1, $2)
			ON CONFLICT (marker) DO UPDATE SET at = EXCLUDED.at`, string(marker), at)
	}
	if err := s.DB.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save markers: %w", err)
	}
	return nil
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

var _ mfm.Repository = (*Store)(nil)
