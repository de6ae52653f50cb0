package mfm

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/etnz/mfm/date"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Store holds the lots, per symbol in ascending sequence.
//
// It is safe for concurrent use. Mutations take a write lock for the
// duration of the in-memory change only.
type Store struct {
	mu   sync.RWMutex
	lots map[string][]Lot
	log  zerolog.Logger
}

// NewStore returns an empty Store.
func NewStore(opts ...Option) *Store {
	s := newSettings(opts)
	return &Store{lots: make(map[string][]Lot), log: s.logger}
}

// AddLot records a new acquisition and returns it.
//
// The lot gets the next sequence for that symbol, 1 for a new symbol. It is
// not valued.
func (s *Store) AddLot(symbol string, amount int, unitCost decimal.Decimal, cur Currency, on date.Date, ref FundRef) (Lot, error) {
	inst, err := NewInstrument(cur, ref)
	if err != nil {
		return Lot{}, err
	}
	l := Lot{
		Symbol:     normalizeSymbol(symbol),
		Sequence:   1,
		Date:       on,
		Amount:     amount,
		UnitCost:   unitCost,
		Instrument: inst,
	}
	if on.IsZero() {
		return Lot{}, fmt.Errorf("%w: %s has no date", ErrInvalidStockDefinition, l.Symbol)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.lots[l.Symbol]
	if n := len(existing); n > 0 {
		last := existing[n-1]
		l.Sequence = last.Sequence + 1
		if cur != last.Currency() {
			return Lot{}, fmt.Errorf("%w: %s is already held in %s", ErrInvalidStockDefinition, l.Symbol, last.Currency())
		}
	}
	if err := l.validate(); err != nil {
		return Lot{}, err
	}
	if n := len(existing); n > 0 && on.Before(existing[n-1].Date) {
		s.log.Warn().Str("symbol", l.Symbol).Stringer("date", on).Stringer("last", existing[n-1].Date).
			Msg("lot is back-dated, it will still be divested after the existing lots")
	}
	s.lots[l.Symbol] = append(existing, l)
	s.log.Debug().Stringer("lot", l.Key()).Int("amount", amount).Msg("lot added")
	return l, nil
}

// Lots returns a copy of the lots of symbol in ascending sequence, possibly empty.
func (s *Store) Lots(symbol string) []Lot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.lots[normalizeSymbol(symbol)])
}

// Held returns the number of units held for symbol.
func (s *Store) Held(symbol string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return held(s.lots[normalizeSymbol(symbol)])
}

func held(lots []Lot) int {
	n := 0
	for _, l := range lots {
		n += l.Amount
	}
	return n
}

// Symbols returns the held symbols, sorted.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedSymbolsLocked()
}

// All returns every lot, by symbol then sequence.
func (s *Store) All() []Lot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []Lot
	for _, symbol := range s.sortedSymbolsLocked() {
		all = append(all, s.lots[symbol]...)
	}
	return all
}

func (s *Store) sortedSymbolsLocked() []string {
	symbols := make([]string, 0, len(s.lots))
	for symbol := range s.lots {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// Load replaces the content of the store with lots, as read from a Repository.
//
// Every lot is validated and keys must be unique. On error the store is unchanged.
func (s *Store) Load(lots []Lot) error {
	next := make(map[string][]Lot)
	seen := make(map[LotKey]bool)
	for _, l := range lots {
		if err := l.validate(); err != nil {
			return err
		}
		if seen[l.Key()] {
			return fmt.Errorf("%w: duplicate lot %s", ErrInvalidStockDefinition, l.Key())
		}
		seen[l.Key()] = true
		next[l.Symbol] = append(next[l.Symbol], l)
	}
	for symbol, list := range next {
		slices.SortFunc(list, func(a, b Lot) int { return a.Sequence - b.Sequence })
		if c := list[0].Currency(); slices.ContainsFunc(list, func(l Lot) bool { return l.Currency() != c }) {
			return fmt.Errorf("%w: %s mixes currencies", ErrInvalidStockDefinition, symbol)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lots = next
	return nil
}

// The primitives below require the write lock to be held.

// deleteLot removes a lot, and the symbol with its last lot.
func (s *Store) deleteLot(key LotKey) {
	list := s.lots[key.Symbol]
	list = slices.DeleteFunc(list, func(l Lot) bool { return l.Sequence == key.Sequence })
	if len(list) == 0 {
		delete(s.lots, key.Symbol)
		return
	}
	s.lots[key.Symbol] = list
}

// decrementLot reduces the amount of a lot by n, that must be less than its amount.
func (s *Store) decrementLot(key LotKey, n int) {
	list := s.lots[key.Symbol]
	for i := range list {
		if list[i].Sequence == key.Sequence {
			list[i].Amount -= n
			return
		}
	}
}

// setValuations stores the valuation of each lot that still exists.
// Lots mutated since the valuation was computed are skipped.
func (s *Store) setValuations(values map[LotKey]valued) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, v := range values {
		list := s.lots[key.Symbol]
		for i := range list {
			if list[i].Sequence == key.Sequence && list[i].Amount == v.amount {
				list[i].Valuation = v.Valuation
			}
		}
	}
}

// markStale flags the current valuation of every lot of symbol as stale.
func (s *Store) markStale(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.lots[symbol]
	for i := range list {
		list[i].Valuation.Stale = true
	}
}
