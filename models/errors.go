package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Error taxonomy shared by the service and the API layer. Handlers map these
// to HTTP statuses with errors.Is / errors.As; the service never leaks
// transport concerns.
var (
	ErrAccountExists       = errors.New("account already exists")
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionExists   = errors.New("transaction already exists")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrSameAccount         = errors.New("cannot transfer to the same account")
	ErrInvalidAmount       = errors.New("transfer amount must be greater than zero")
	ErrNonZeroBalance      = errors.New("cannot delete account with non-zero balance")

	// ErrLockTimeout means the row locks could not be acquired within the
	// configured wait. The caller may retry with the same transaction_id;
	// the idempotency gate guarantees at-most-once application.
	ErrLockTimeout = errors.New("timed out waiting for account locks")
)

// ValidationError reports a malformed request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// InsufficientFundsError carries enough context for the caller to act on:
// the balance observed under lock and the amount that was requested.
type InsufficientFundsError struct {
	AccountID string
	Balance   decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance %s, required %s",
		e.Balance.StringFixed(2), e.Requested.StringFixed(2))
}
