package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yashasviy/transaction-ledger-api/models"
)

// Transfer moves amount from one account to another as one atomic,
// idempotent unit of work:
//
//  1. Idempotency gate: an existing record for transaction_id, whatever its
//     status, rejects the request with ErrTransactionExists.
//  2. Both account rows are locked in lexicographic id order, independent of
//     which side sends. Opposite-direction transfers over the same pair
//     therefore cannot deadlock.
//  3. The funds check runs on the balance observed under lock, with exact
//     decimal comparison.
//  4. Insufficient funds commits a durable `failed` record with no balance
//     change; sufficient funds commits the debit, the credit, and the
//     `completed` record together.
//
// The store's uniqueness constraint on transaction_id backstops the gate when
// two units of work carrying the same id race: exactly one commits, the other
// surfaces ErrTransactionExists.
func (s *Service) Transfer(ctx context.Context, req models.TransferRequest) (*models.Transaction, error) {
	// Amounts are stored at scale 2; sub-cent requests round before
	// validation so 0.004 is rejected rather than silently zeroed out.
	req.Amount = req.Amount.Round(2)
	if err := req.Validate(); err != nil {
		return nil, err
	}

	txnID := req.TransactionID
	if txnID == "" {
		txnID = uuid.NewString()
	}

	var (
		record   *models.Transaction
		fundsErr *models.InsufficientFundsError
	)

	err := s.store.RunInTx(ctx, func(uow UnitOfWork) error {
		if _, err := uow.GetTransaction(ctx, txnID); err == nil {
			return models.ErrTransactionExists
		} else if !errors.Is(err, models.ErrTransactionNotFound) {
			return fmt.Errorf("idempotency check: %w", err)
		}

		// Fixed total order over account ids, not from/to roles.
		first, second := req.FromAccountID, req.ToAccountID
		if first > second {
			first, second = second, first
		}

		firstAcct, err := uow.LockAccount(ctx, first)
		if err != nil {
			return err
		}
		secondAcct, err := uow.LockAccount(ctx, second)
		if err != nil {
			return err
		}

		from, to := firstAcct, secondAcct
		if from.AccountID != req.FromAccountID {
			from, to = secondAcct, firstAcct
		}

		rec := &models.Transaction{
			TransactionID: txnID,
			FromAccountID: req.FromAccountID,
			ToAccountID:   req.ToAccountID,
			Amount:        req.Amount,
			Status:        models.StatusPending,
			Description:   req.Description,
			CreatedAt:     time.Now().UTC(),
		}

		if from.Balance.LessThan(req.Amount) {
			// Durable audit of the rejected attempt; commits with no
			// balance change.
			rec.Status = models.StatusFailed
			if err := uow.InsertTransaction(ctx, rec); err != nil {
				return fmt.Errorf("record failed transfer: %w", err)
			}
			record = rec
			fundsErr = &models.InsufficientFundsError{
				AccountID: from.AccountID,
				Balance:   from.Balance,
				Requested: req.Amount,
			}
			return nil
		}

		if err := uow.UpdateBalance(ctx, from.AccountID, from.Balance.Sub(req.Amount)); err != nil {
			return fmt.Errorf("debit %s: %w", from.AccountID, err)
		}
		if err := uow.UpdateBalance(ctx, to.AccountID, to.Balance.Add(req.Amount)); err != nil {
			return fmt.Errorf("credit %s: %w", to.AccountID, err)
		}

		rec.Status = models.StatusCompleted
		if err := uow.InsertTransaction(ctx, rec); err != nil {
			return fmt.Errorf("record completed transfer: %w", err)
		}
		record = rec
		return nil
	})

	if err != nil {
		switch {
		case errors.Is(err, models.ErrTransactionExists):
			s.log.Info("duplicate transaction rejected", "transaction_id", txnID)
			return nil, models.ErrTransactionExists
		case errors.Is(err, models.ErrAccountNotFound):
			return nil, err
		case errors.Is(err, models.ErrLockTimeout):
			s.log.Warn("transfer lock wait timed out",
				"transaction_id", txnID,
				"from", req.FromAccountID,
				"to", req.ToAccountID)
			return nil, err
		}
		s.log.Error("transfer aborted", "transaction_id", txnID, "error", err)
		s.recordFailure(ctx, txnID, req)
		return nil, fmt.Errorf("transfer %s: %w", txnID, err)
	}

	if fundsErr != nil {
		s.log.Info("transfer rejected: insufficient funds",
			"transaction_id", txnID,
			"from", req.FromAccountID,
			"balance", fundsErr.Balance.StringFixed(2),
			"requested", fundsErr.Requested.StringFixed(2))
		return record, fundsErr
	}

	s.log.Info("transfer completed",
		"transaction_id", txnID,
		"from", req.FromAccountID,
		"to", req.ToAccountID,
		"amount", req.Amount.StringFixed(2))
	return record, nil
}

// recordFailure writes a failed record for an aborted transfer in its own
// unit of work. Best-effort audit only: if this write also fails, the absence
// of a record is still consistent with "nothing happened", so the secondary
// error is logged and dropped rather than surfaced.
func (s *Service) recordFailure(ctx context.Context, txnID string, req models.TransferRequest) {
	err := s.store.RunInTx(ctx, func(uow UnitOfWork) error {
		return uow.InsertTransaction(ctx, &models.Transaction{
			TransactionID: txnID,
			FromAccountID: req.FromAccountID,
			ToAccountID:   req.ToAccountID,
			Amount:        req.Amount,
			Status:        models.StatusFailed,
			Description:   req.Description,
			CreatedAt:     time.Now().UTC(),
		})
	})
	if err != nil {
		s.log.Warn("could not record failed transfer", "transaction_id", txnID, "error", err)
	}
}
