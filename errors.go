package mfm

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidStockDefinition is returned when a lot cannot be created from the given fields.
	ErrInvalidStockDefinition = errors.New("invalid stock definition")
	// ErrPriceUnavailable is returned when no live or redemption price could be fetched.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrConversionRateUnavailable is returned when a currency conversion rate could not be fetched.
	ErrConversionRateUnavailable = errors.New("conversion rate unavailable")
	// ErrInsufficientHoldings is returned when a divestment asks for more units than held.
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	// ErrInvalidDivestment is returned for a divestment of zero or negative units.
	ErrInvalidDivestment = errors.New("invalid divestment amount")
	// ErrUndefinedProfit is returned when a profit percentage has a zero cost basis.
	ErrUndefinedProfit = errors.New("undefined profit percentage")
	// ErrNoHoldings is returned by aggregates that are meaningless on an empty or worthless portfolio.
	ErrNoHoldings = errors.New("no holdings")
	// ErrPersistenceFailure is returned when the repository fails.
	ErrPersistenceFailure = errors.New("persistence failure")
	// ErrUnsupportedCurrency is returned for unknown currency codes, or codes not allowed in that place.
	ErrUnsupportedCurrency = errors.New("unsupported currency")
)

// InsufficientHoldingsError details a divestment that asked for more than held.
type InsufficientHoldingsError struct {
	Symbol    string
	Requested int
	Held      int
}

func (e *InsufficientHoldingsError) Error() string {
	return fmt.Sprintf("cannot divest %d units of %s: only %d held", e.Requested, e.Symbol, e.Held)
}

func (e *InsufficientHoldingsError) Is(target error) bool { return target == ErrInsufficientHoldings }

// PersistenceError wraps a repository failure with the operation that failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistenceFailure }
func (e *PersistenceError) Unwrap() error       { return e.Err }

// persistErr returns nil if err is nil, or err wrapped in a *PersistenceError.
func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
