package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the business failures an order can hit. Callers match
// them with errors.Is after unwrapping.
var (
	// ErrPriceUnavailable means the price source could not produce a price
	// for the instrument, so the order cannot be valued.
	ErrPriceUnavailable = errors.New("price unavailable")

	// ErrInsufficientBalance means a buy's net cost exceeds free cash.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientPosition means a sell was placed with no matching open
	// position or with more quantity than the position holds.
	ErrInsufficientPosition = errors.New("insufficient position")

	// ErrOverSell is the ledger-level guard against reducing a position
	// below zero quantity.
	ErrOverSell = errors.New("sell quantity exceeds position quantity")

	// ErrOrderNotFound is returned by lookups and cancellation for unknown
	// order references.
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderNotCancellable means the order is already in a terminal state.
	ErrOrderNotCancellable = errors.New("order not cancellable")

	// ErrAccountNotFound is returned for an unknown account id.
	ErrAccountNotFound = errors.New("account not found")

	// ErrPositionClosed means a closed position was asked to change.
	ErrPositionClosed = errors.New("position closed")
)

// ValidationError reports a structurally invalid order spec. Validation runs
// before any persistence, so a validation failure leaves no record.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PersistenceError wraps a storage failure that aborted an operation after
// validation passed. The transaction is rolled back before it is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsRejection reports whether err is a business rejection (validation or one
// of the order sentinels) as opposed to an infrastructure failure.
func IsRejection(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return true
	}
	return errors.Is(err, ErrPriceUnavailable) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInsufficientPosition) ||
		errors.Is(err, ErrOverSell)
}
