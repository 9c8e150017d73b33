package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the terminal state of a ledger entry.
// Pending exists only inside the transfer engine between the funds check
// and the commit; it is never persisted.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// Field length limits, mirrored by the database schema.
const (
	MaxAccountIDLen     = 50
	MaxOwnerNameLen     = 100
	MaxTransactionIDLen = 100
	MaxDescriptionLen   = 500
)

// Account is a named ledger account. Balance is an exact scale-2 decimal;
// it is never represented as a binary float anywhere in the system.
type Account struct {
	AccountID string          `json:"account_id"`
	OwnerName string          `json:"owner_name"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

// Transaction is an immutable ledger entry recording one transfer attempt.
// TransactionID doubles as the idempotency key: at most one record ever
// exists for a given id, whatever its status.
type Transaction struct {
	TransactionID string            `json:"transaction_id"`
	FromAccountID string            `json:"from_account_id"`
	ToAccountID   string            `json:"to_account_id"`
	Amount        decimal.Decimal   `json:"amount"`
	Status        TransactionStatus `json:"status"`
	Description   string            `json:"description,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// CreateAccountRequest is what the user sends to open an account.
type CreateAccountRequest struct {
	AccountID      string          `json:"account_id"`
	OwnerName      string          `json:"owner_name"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

// Validate checks field constraints before any storage access.
func (r *CreateAccountRequest) Validate() error {
	if err := validateAccountID(r.AccountID, "account_id"); err != nil {
		return err
	}
	r.OwnerName = strings.TrimSpace(r.OwnerName)
	if r.OwnerName == "" {
		return &ValidationError{Field: "owner_name", Reason: "must not be empty"}
	}
	if len(r.OwnerName) > MaxOwnerNameLen {
		return &ValidationError{Field: "owner_name", Reason: "must be at most 100 characters"}
	}
	if r.InitialBalance.IsNegative() {
		return &ValidationError{Field: "initial_balance", Reason: "must not be negative"}
	}
	return nil
}

// TransferRequest is what the user sends to move money between accounts.
// TransactionID is optional; the engine generates one when absent.
type TransferRequest struct {
	FromAccountID string          `json:"from_account_id"`
	ToAccountID   string          `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
}

// Validate checks all preconditions that do not require storage access.
func (r *TransferRequest) Validate() error {
	if err := validateAccountID(r.FromAccountID, "from_account_id"); err != nil {
		return err
	}
	if err := validateAccountID(r.ToAccountID, "to_account_id"); err != nil {
		return err
	}
	if r.FromAccountID == r.ToAccountID {
		return ErrSameAccount
	}
	if !r.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if len(r.Description) > MaxDescriptionLen {
		return &ValidationError{Field: "description", Reason: "must be at most 500 characters"}
	}
	if len(r.TransactionID) > MaxTransactionIDLen {
		return &ValidationError{Field: "transaction_id", Reason: "must be at most 100 characters"}
	}
	return nil
}

func validateAccountID(id, field string) error {
	if id == "" {
		return &ValidationError{Field: field, Reason: "must not be empty"}
	}
	if len(id) > MaxAccountIDLen {
		return &ValidationError{Field: field, Reason: "must be at most 50 characters"}
	}
	return nil
}

// BalanceResponse is the payload for balance lookups.
type BalanceResponse struct {
	AccountID string          `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
}
