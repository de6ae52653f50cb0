package mfm

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Account is where foreign cash is held.
type Account string

const (
	Bank   Account = "bank"
	Trader Account = "trader"
)

// ParseAccount parses "bank" or "trader", in any case.
func ParseAccount(s string) (Account, error) {
	switch a := Account(strings.ToLower(strings.TrimSpace(s))); a {
	case Bank, Trader:
		return a, nil
	}
	return "", fmt.Errorf("invalid account %q want %q or %q", s, Bank, Trader)
}

// ForeignBalance is a cash balance held in a foreign currency.
type ForeignBalance struct {
	Currency Currency        `json:"currency"`
	Account  Account         `json:"account"`
	Amount   decimal.Decimal `json:"amount"` // in Currency
	ILS      decimal.Decimal `json:"ils"`    // value in ILS when last updated
	Updated  time.Time       `json:"updated"`
}

type foreignKey struct {
	cur     Currency
	account Account
}

// ForeignBalances holds the latest foreign cash balance per currency and account.
type ForeignBalances struct {
	mu       sync.RWMutex
	balances map[foreignKey]ForeignBalance
}

// NewForeignBalances returns an empty set of balances.
func NewForeignBalances() *ForeignBalances {
	return &ForeignBalances{balances: make(map[foreignKey]ForeignBalance)}
}

// Set records b, replacing the previous balance of that currency and account.
func (f *ForeignBalances) Set(b ForeignBalance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[foreignKey{b.Currency, b.Account}] = b
}

// Load replaces every balance.
func (f *ForeignBalances) Load(list []ForeignBalance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances = make(map[foreignKey]ForeignBalance, len(list))
	for _, b := range list {
		f.balances[foreignKey{b.Currency, b.Account}] = b
	}
}

// All returns the balances sorted by currency then account.
func (f *ForeignBalances) All() []ForeignBalance {
	f.mu.RLock()
	defer f.mu.RUnlock()
	list := make([]ForeignBalance, 0, len(f.balances))
	for _, b := range f.balances {
		list = append(list, b)
	}
	slices.SortFunc(list, func(a, b ForeignBalance) int {
		if c := strings.Compare(string(a.Currency), string(b.Currency)); c != 0 {
			return c
		}
		return strings.Compare(string(a.Account), string(b.Account))
	})
	return list
}

// TotalILS returns the sum of the ILS values.
func (f *ForeignBalances) TotalILS() decimal.Decimal {
	f.mu.RLock()
	defer f.mu.RUnlock()
	total := decimal.Zero
	for _, b := range f.balances {
		total = total.Add(b.ILS)
	}
	return total
}
