package mfm

import (
	"context"
	"time"
)

// Marker names a part of the state that carries a last modified time.
type Marker string

const (
	MarkerStocks  Marker = "stocks"
	MarkerBank    Marker = "bank"
	MarkerTrader  Marker = "trader"
	MarkerHistory Marker = "history"
)

// LastModified records when each part of the state last changed.
type LastModified map[Marker]time.Time

// State is everything a Repository persists.
type State struct {
	Lots      []Lot
	Snapshots []Snapshot
	Foreign   []ForeignBalance
	Modified  LastModified
}

// Repository persists the state of a Manager.
//
// Implementations need not be safe for concurrent use, the Manager
// serializes its calls.
type Repository interface {
	// Load reads the whole state. A repository never written to returns an empty State.
	Load(ctx context.Context) (State, error)
	// SaveLots replaces every lot of symbol with lots. No lots deletes the symbol.
	SaveLots(ctx context.Context, symbol string, lots []Lot) error
	// SaveSnapshot creates or replaces the snapshot of s.Date.
	SaveSnapshot(ctx context.Context, s Snapshot) error
	// SaveForeign creates or replaces the balance of b.Currency in b.Account.
	SaveForeign(ctx context.Context, b ForeignBalance) error
	// SaveModified stores the last modified markers.
	SaveModified(ctx context.Context, m LastModified) error
}
