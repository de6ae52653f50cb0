package mfm

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DivestmentStep is what a divestment does to one lot.
type DivestmentStep struct {
	Lot   LotKey
	Taken int             // units taken from the lot
	Left  int             // units left in the lot, 0 if it is deleted
	Cost  decimal.Decimal // cost of the units taken, in the lot currency
}

// DivestmentPlan is the FIFO resolution of a divestment, in ascending lot sequence.
type DivestmentPlan struct {
	Symbol string
	Amount int
	Steps  []DivestmentStep
	// Cost is the cost basis of the divested units.
	Cost decimal.Decimal
	// Closed is set when the plan consumes every lot of the symbol.
	Closed bool
}

// PlanDivestment computes, without applying it, how amount units of symbol
// would be taken from its lots, oldest sequence first.
func (s *Store) PlanDivestment(symbol string, amount int) (DivestmentPlan, error) {
	symbol = normalizeSymbol(symbol)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return planDivestment(symbol, s.lots[symbol], amount)
}

// Divest plans and applies a divestment atomically.
//
// Partially consumed lots are decremented, fully consumed lots are deleted and
// the symbol goes away with its last lot. On error nothing is changed.
func (s *Store) Divest(symbol string, amount int) (DivestmentPlan, error) {
	symbol = normalizeSymbol(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()

	plan, err := planDivestment(symbol, s.lots[symbol], amount)
	if err != nil {
		return plan, err
	}
	for _, step := range plan.Steps {
		if step.Left == 0 {
			s.deleteLot(step.Lot)
		} else {
			s.decrementLot(step.Lot, step.Taken)
		}
	}
	s.log.Info().Str("symbol", symbol).Int("amount", amount).Int("lots", len(plan.Steps)).
		Bool("closed", plan.Closed).Msg("divested")
	return plan, nil
}

func planDivestment(symbol string, lots []Lot, amount int) (DivestmentPlan, error) {
	plan := DivestmentPlan{Symbol: symbol, Amount: amount, Cost: decimal.Zero}
	if amount <= 0 {
		return plan, fmt.Errorf("%w: %d units of %s", ErrInvalidDivestment, amount, symbol)
	}
	if h := held(lots); h < amount {
		return plan, &InsufficientHoldingsError{Symbol: symbol, Requested: amount, Held: h}
	}

	remaining := amount
	for i, l := range lots {
		if remaining == 0 {
			break
		}
		taken := min(l.Amount, remaining)
		cost := l.UnitCost.Mul(decimal.NewFromInt(int64(taken))).Div(l.Currency().quoteScale())
		plan.Steps = append(plan.Steps, DivestmentStep{
			Lot:   l.Key(),
			Taken: taken,
			Left:  l.Amount - taken,
			Cost:  cost,
		})
		plan.Cost = plan.Cost.Add(cost)
		remaining -= taken
		plan.Closed = i == len(lots)-1 && taken == l.Amount
	}
	return plan, nil
}
