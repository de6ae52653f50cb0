// Package surreal stores the portfolio state in SurrealDB.
package surreal

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/etnz/mfm"
)

const (
	lotTable      = "lot"
	snapshotTable = "snapshot"
	foreignTable  = "foreign_balance"
	markerTable   = "marker"
)

var tables = []string{lotTable, snapshotTable, foreignTable, markerTable}

// attempts is the number of tries of a write before giving up.
const attempts = 3

// Config locates the database.
type Config struct {
	Address   string
	Namespace string
	Database  string
	Username  string
	Password  string
}

// Store implements mfm.Repository on SurrealDB.
type Store struct {
	db     *surrealdb.DB
	logger zerolog.Logger
}

// Open connects, signs in and selects the namespace and database.
func Open(ctx context.Context, cfg Config, logger zerolog.Logger) (*Store, error) {
	db, err := surrealdb.New(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}
	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": cfg.Username,
		"pass": cfg.Password,
	}); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}
	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}
	s, err := newStore(ctx, db, logger)
	if err != nil {
		db.Close(ctx)
		return nil, err
	}
	logger.Info().
		Str("address", cfg.Address).
		Str("namespace", cfg.Namespace).
		Str("database", cfg.Database).
		Msg("SurrealDB storage initialized")
	return s, nil
}

// newStore defines the tables on an already selected database.
func newStore(ctx context.Context, db *surrealdb.DB, logger zerolog.Logger) (*Store, error) {
	// querying a table that was never defined is an error
	for _, table := range tables {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return nil, fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the connection.
func (s *Store) Close(ctx context.Context) {
	s.db.Close(ctx)
}

// Load implements mfm.Repository.
func (s *Store) Load(ctx context.Context) (mfm.State, error) {
	st := mfm.State{Modified: mfm.LastModified{}}

	lots, err := selectAll[lotRow](ctx, s.db, "SELECT "+lotFields+" FROM "+lotTable+" ORDER BY symbol, sequence")
	if err != nil {
		return mfm.State{}, fmt.Errorf("failed to load lots: %w", err)
	}
	for _, r := range lots {
		l, err := r.lot()
		if err != nil {
			return mfm.State{}, fmt.Errorf("invalid lot %s#%d: %w", r.Symbol, r.Sequence, err)
		}
		st.Lots = append(st.Lots, l)
	}

	snapshots, err := selectAll[snapshotRow](ctx, s.db, "SELECT "+snapshotFields+" FROM "+snapshotTable+" ORDER BY date")
	if err != nil {
		return mfm.State{}, fmt.Errorf("failed to load history: %w", err)
	}
	for _, r := range snapshots {
		snap, err := r.snapshot()
		if err != nil {
			return mfm.State{}, fmt.Errorf("invalid snapshot %s: %w", r.Date, err)
		}
		st.Snapshots = append(st.Snapshots, snap)
	}

	foreign, err := selectAll[foreignRow](ctx, s.db, "SELECT "+foreignFields+" FROM "+foreignTable)
	if err != nil {
		return mfm.State{}, fmt.Errorf("failed to load foreign balances: %w", err)
	}
	for _, r := range foreign {
		b, err := r.balance()
		if err != nil {
			return mfm.State{}, fmt.Errorf("invalid foreign balance %s/%s: %w", r.Currency, r.Account, err)
		}
		st.Foreign = append(st.Foreign, b)
	}

	markers, err := selectAll[markerRow](ctx, s.db, "SELECT marker, at FROM "+markerTable)
	if err != nil {
		return mfm.State{}, fmt.Errorf("failed to load markers: %w", err)
	}
	for _, r := range markers {
		st.Modified[mfm.Marker(r.Marker)] = r.At
	}
	return st, nil
}

// SaveLots implements mfm.Repository.
func (s *Store) SaveLots(ctx context.Context, symbol string, lots []mfm.Lot) error {
	rows := make([]lotRow, 0, len(lots))
	for _, l := range lots {
		rows = append(rows, newLotRow(l))
	}
	sql := "BEGIN TRANSACTION; DELETE " + lotTable + " WHERE symbol = $symbol;"
	if len(rows) > 0 {
		sql += " INSERT INTO " + lotTable + " $lots;"
	}
	sql += " COMMIT TRANSACTION;"
	vars := map[string]any{"symbol": symbol, "lots": rows}
	return s.write(ctx, "lots "+symbol, sql, vars)
}

// SaveSnapshot implements mfm.Repository.
func (s *Store) SaveSnapshot(ctx context.Context, snap mfm.Snapshot) error {
	row := newSnapshotRow(snap)
	vars := map[string]any{"rid": surrealmodels.NewRecordID(snapshotTable, row.Date), "row": row}
	return s.write(ctx, "snapshot "+row.Date, "UPSERT $rid CONTENT $row", vars)
}

// SaveForeign implements mfm.Repository.
func (s *Store) SaveForeign(ctx context.Context, b mfm.ForeignBalance) error {
	row := newForeignRow(b)
	id := row.Currency + "_" + row.Account
	vars := map[string]any{"rid": surrealmodels.NewRecordID(foreignTable, id), "row": row}
	return s.write(ctx, "foreign "+id, "UPSERT $rid CONTENT $row", vars)
}

// SaveModified implements mfm.Repository.
func (s *Store) SaveModified(ctx context.Context, m mfm.LastModified) error {
	for marker, at := range m {
		row := markerRow{Marker: string(marker), At: at}
		vars := map[string]any{"rid": surrealmodels.NewRecordID(markerTable, row.Marker), "row": row}
		if err := s.write(ctx, "marker "+row.Marker, "UPSERT $rid CONTENT $row", vars); err != nil {
			return err
		}
	}
	return nil
}

// write runs sql, retrying a few times before giving up.
func (s *Store) write(ctx context.Context, what, sql string, vars map[string]any) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		_, err := surrealdb.Query[any](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		s.logger.Warn().Err(err).Str("record", what).Int("attempt", attempt).Msg("SurrealDB write failed")
		time.Sleep(time.Duration(attempt) * 50 * time.Millisecond)
	}
	return fmt.Errorf("failed to save %s after retries: %w", what, lastErr)
}

func selectAll[T any](ctx context.Context, db *surrealdb.DB, sql string) ([]T, error) {
	results, err := surrealdb.Query[[]T](ctx, db, sql, nil)
	if err != nil {
		return nil, err
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}
	return (*results)[0].Result, nil
}

var _ mfm.Repository = (*Store)(nil)
