package domain

import (
	"errors"
	"fmt"
)

// ErrBalanceNotFound is returned when no credit balance row exists for an
// account. Callers should EnsureBalance first.
var ErrBalanceNotFound = errors.New("credit balance not found")

// ErrJobNotFound is returned when a job lookup matches no row.
var ErrJobNotFound = errors.New("job not found")

// ErrConfigNotFound is returned when a tracking config lookup matches no row.
var ErrConfigNotFound = errors.New("tracking config not found")

// InsufficientCreditsError indicates a debit was rejected because the account
// balance cannot cover it. The balance is left untouched.
type InsufficientCreditsError struct {
	Required  int
	Available int
}

// Error implements the error interface.
func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, available %d", e.Required, e.Available)
}

// UnknownDebitError indicates a refund was requested for a debit key that was
// never recorded. This is an internal invariant violation and must be logged
// loudly, never swallowed.
type UnknownDebitError struct {
	IdempotencyKey string
}

// Error implements the error interface.
func (e *UnknownDebitError) Error() string {
	return fmt.Sprintf("no debit recorded for idempotency key %q", e.IdempotencyKey)
}

// RefundExceedsDebitError indicates a refund was requested for more credits
// than the original debit consumed.
type RefundExceedsDebitError struct {
	Requested int
	Debited   int
}

// Error implements the error interface.
func (e *RefundExceedsDebitError) Error() string {
	return fmt.Sprintf("refund of %d credits exceeds original debit of %d", e.Requested, e.Debited)
}
