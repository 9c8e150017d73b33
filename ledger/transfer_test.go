package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashasviy/transaction-ledger-api/ledger"
	"github.com/yashasviy/transaction-ledger-api/logger"
	"github.com/yashasviy/transaction-ledger-api/models"
)

func newTestService(t *testing.T) (*ledger.Service, *ledger.MemStore) {
	t.Helper()
	store := ledger.NewMemStore(2 * time.Second)
	return ledger.NewService(store, logger.NewNop()), store
}

func mustCreate(t *testing.T, svc *ledger.Service, id, balance string) {
	t.Helper()
	_, err := svc.CreateAccount(context.Background(), models.CreateAccountRequest{
		AccountID:      id,
		OwnerName:      "Owner of " + id,
		InitialBalance: dec(balance),
	})
	require.NoError(t, err)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func balanceOf(t *testing.T, svc *ledger.Service, id string) decimal.Decimal {
	t.Helper()
	acct, err := svc.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return acct.Balance
}

func TestTransferMovesMoney(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustCreate(t, svc, "ACC-A", "1000.00")
	mustCreate(t, svc, "ACC-B", "500.00")

	rec, err := svc.Transfer(ctx, models.TransferRequest{
		FromAccountID: "ACC-A",
		ToAccountID:   "ACC-B",
		Amount:        dec("250.00"),
		Description:   "payment for services",
	})
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, models.StatusCompleted, rec.Status)
	assert.Equal(t, "ACC-A", rec.FromAccountID)
	assert.Equal(t, "ACC-B", rec.ToAccountID)
	assert.True(t, rec.Amount.Equal(dec("250.00")))
	assert.NotEmpty(t, rec.TransactionID)
	assert.False(t, rec.CreatedAt.IsZero())

	assert.True(t, balanceOf(t, svc, "ACC-A").Equal(dec("750.00")))
	assert.True(t, balanceOf(t, svc, "ACC-B").Equal(dec("750.00")))

	stored, err := svc.GetTransaction(ctx, rec.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)
}

func TestTransferGeneratesTransactionID(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreate(t, svc, "ACC-A", "10.00")
	mustCreate(t, svc, "ACC-B", "0.00")

	rec, err := svc.Transfer(context.Background(), models.TransferRequest{
		FromAccountID: "ACC-A",
		ToAccountID:   "ACC-B",
		Amount:        dec("1.00"),
	})
	require.NoError(t, err)

	_, err = uuid.Parse(rec.TransactionID)
	assert.NoError(t, err, "generated ids should be UUIDs")
}

func TestTransferValidation(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreate(t, svc, "ACC-A", "100.00")
	mustCreate(t, svc, "ACC-B", "100.00")

	longDescription := make([]byte, models.MaxDescriptionLen+1)
	for i := range longDescription {
		longDescription[i] = 'x'
	}

	tests := []struct {
		name    string
		req     models.TransferRequest
		wantErr error
	}{
		{
			name:    "same account",
			req:     models.TransferRequest{FromAccountID: "ACC-A", ToAccountID: "ACC-A", Amount: dec("1.00")},
			wantErr: models.ErrSameAccount,
		},
		{
			name:    "zero amount",
			req:     models.TransferRequest{FromAccountID: "ACC-A", ToAccountID: "ACC-B", Amount: dec("0")},
			wantErr: models.ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			req:     models.TransferRequest{FromAccountID: "ACC-A", ToAccountID: "ACC-B", Amount: dec("-5.00")},
			wantErr: models.ErrInvalidAmount,
		},
		{
			name:    "sub-cent amount rounds to zero",
			req:     models.TransferRequest{FromAccountID: "ACC-A", ToAccountID: "ACC-B", Amount: dec("0.004")},
			wantErr: models.ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Transfer(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("empty from account", func(t *testing.T) {
		_, err := svc.Transfer(context.Background(), models.TransferRequest{
			ToAccountID: "ACC-B", Amount: dec("1.00"),
		})
		var validationErr *models.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "from_account_id", validationErr.Field)
	})

	t.Run("description too long", func(t *testing.T) {
		_, err := svc.Transfer(context.Background(), models.TransferRequest{
			FromAccountID: "ACC-A", ToAccountID: "ACC-B",
			Amount: dec("1.00"), Description: string(longDescription),
		})
		var validationErr *models.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "description", validationErr.Field)
	})

	// None of the rejections may touch balances.
	assert.True(t, balanceOf(t, svc, "ACC-A").Equal(dec("100.00")))
	assert.True(t, balanceOf(t, svc, "ACC-B").Equal(dec("100.00")))
}

func TestTransferInsufficientFunds(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustCreate(t, svc, "ACC-A", "100.00")
	mustCreate(t, svc, "ACC-B", "0.00")

	rec, err := svc.Transfer(ctx, models.TransferRequest{
		FromAccountID: "ACC-A",
		ToAccountID:   "ACC-B",
		Amount:        dec("100.01"),
		TransactionID: "tx-overdraw",
	})

	var fundsErr *models.InsufficientFundsError
	require.ErrorAs(t, err, &fundsErr)
	assert.True(t, fundsErr.Balance.Equal(dec("100.00")))
	assert.True(t, fundsErr.Requested.Equal(dec("100.01")))

	// Balances are untouched.
	assert.True(t, balanceOf(t, svc, "ACC-A").Equal(dec("100.00")))
	assert.True(t, balanceOf(t, svc, "ACC-B").Equal(dec("0.00")))

	// The rejection is durably recorded for audit.
	require.NotNil(t, rec)
	assert.Equal(t, models.StatusFailed, rec.Status)
	stored, err := svc.GetTransaction(ctx, "tx-overdraw")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, stored.Status)
}

func TestTransferIdempotencySequential(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustCreate(t, svc, "ACC-A", "100.00")
	mustCreate(t, svc, "ACC-B", "0.00")

	req := models.TransferRequest{
		FromAccountID: "ACC-A",
		ToAccountID:   "ACC-B",
		Amount:        dec("30.00"),
		TransactionID: "tx-repeat",
	}

	_, err := svc.Transfer(ctx, req)
	require.NoError(t, err)

	_, err = svc.Transfer(ctx, req)
	assert.ErrorIs(t, err, models.ErrTransactionExists)

	// Exactly one balance change.
	assert.True(t, balanceOf(t, svc, "ACC-A").Equal(dec("70.00")))
	assert.True(t, balanceOf(t, svc, "ACC-B").Equal(dec("30.00")))
}

func TestTransferIdempotencyCoversFailedRecords(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustCreate(t, svc, "ACC-A", "10.00")
	mustCreate(t, svc, "ACC-B", "1000.00")

	// First attempt fails on funds and leaves a failed record.
	_, err := svc.Transfer(ctx, models.TransferRequest{
		FromAccountID: "ACC-A", ToAccountID: "ACC-B",
		Amount: dec("50.00"), TransactionID: "tx-reused",
	})
	var fundsErr *models.InsufficientFundsError
	require.ErrorAs(t, err, &fundsErr)

	// Reusing the id is rejected even though the original attempt failed:
	// the record stands, whatever its terminal status.
	_, err = svc.Transfer(ctx, models.TransferRequest{
		FromAccountID: "ACC-B", ToAccountID: "ACC-A",
		Amount: dec("5.00"), TransactionID: "tx-reused",
	})
	assert.ErrorIs(t, err, models.ErrTransactionExists)
	assert.True(t, balanceOf(t, svc, "ACC-B").Equal(dec("1000.00")))
}

func TestTransferIdempotencyConcurrent(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreate(t, svc, "ACC-A", "1000.00")
	mustCreate(t, svc, "ACC-B", "0.00")

	const attempts = 20
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		successes  int
		duplicates int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(context.Background(), models.TransferRequest{
				FromAccountID: "ACC-A",
				ToAccountID:   "ACC-B",
				Amount:        dec("10.00"),
				TransactionID: "tx-race",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, models.ErrTransactionExists):
				duplicates++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, duplicates)
	assert.True(t, balanceOf(t, svc, "ACC-A").Equal(dec("990.00")))
	assert.True(t, balanceOf(t, svc, "ACC-B").Equal(dec("10.00")))
}

func TestTransferUnknownAccount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustCreate(t, svc, "ACC-A", "100.00")

	_, err := svc.Transfer(ctx, models.TransferRequest{
		FromAccountID: "ACC-A", ToAccountID: "ACC-GHOST",
		Amount: dec("10.00"), TransactionID: "tx-ghost",
	})
	assert.ErrorIs(t, err, models.ErrAccountNotFound)

	// Nothing happened: no balance change and no record.
	assert.True(t, balanceOf(t, svc, "ACC-A").Equal(dec("100.00")))
	_, err = svc.GetTransaction(ctx, "tx-ghost")
	assert.ErrorIs(t, err, models.ErrTransactionNotFound)
}

func TestConcurrentDrainNeverOverdraws(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreate(t, svc, "ACC-SRC", "100.00")
	mustCreate(t, svc, "ACC-DST", "0.00")

	const workers = 10
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		completed    int
		insufficient int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(context.Background(), models.TransferRequest{
				FromAccountID: "ACC-SRC",
				ToAccountID:   "ACC-DST",
				Amount:        dec("20.00"),
			})
			var fundsErr *models.InsufficientFundsError
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				completed++
			case errors.As(err, &fundsErr):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, completed)
	assert.Equal(t, 5, insufficient)
	assert.True(t, balanceOf(t, svc, "ACC-SRC").Equal(dec("0.00")))
	assert.True(t, balanceOf(t, svc, "ACC-DST").Equal(dec("100.00")))
}

func TestOppositeDirectionTransfersDoNotDeadlock(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreate(t, svc, "ACC-A", "1000.00")
	mustCreate(t, svc, "ACC-B", "1000.00")

	const rounds = 50
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, err := svc.Transfer(context.Background(), models.TransferRequest{
				FromAccountID: "ACC-A", ToAccountID: "ACC-B", Amount: dec("1.00"),
			})
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, err := svc.Transfer(context.Background(), models.TransferRequest{
				FromAccountID: "ACC-B", ToAccountID: "ACC-A", Amount: dec("1.00"),
			})
			assert.NoError(t, err)
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("transfers deadlocked")
	}

	// Equal traffic both ways nets out to the starting balances.
	assert.True(t, balanceOf(t, svc, "ACC-A").Equal(dec("1000.00")))
	assert.True(t, balanceOf(t, svc, "ACC-B").Equal(dec("1000.00")))
}

func TestConservationAcrossConcurrentTransfers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	accounts := []string{"ACC-1", "ACC-2", "ACC-3"}
	for _, id := range accounts {
		mustCreate(t, svc, id, "500.00")
	}
	total := dec("1500.00")

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		from := accounts[i%3]
		to := accounts[(i+1)%3]
		wg.Add(1)
		go func(from, to string) {
			defer wg.Done()
			// Insufficient-funds rejections are fine here; they must
			// not move money either.
			_, _ = svc.Transfer(ctx, models.TransferRequest{
				FromAccountID: from, ToAccountID: to, Amount: dec("75.00"),
			})
		}(from, to)
	}
	wg.Wait()

	sum := decimal.Zero
	for _, id := range accounts {
		balance := balanceOf(t, svc, id)
		assert.False(t, balance.IsNegative(), "account %s went negative", id)
		sum = sum.Add(balance)
	}
	assert.True(t, sum.Equal(total), "money was created or destroyed: total %s", sum)
}

func TestDecimalPrecision(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	mustCreate(t, svc, "ACC-A", "100.00")
	mustCreate(t, svc, "ACC-B", "0.00")

	for i := 0; i < 3; i++ {
		_, err := svc.Transfer(ctx, models.TransferRequest{
			FromAccountID: "ACC-A", ToAccountID: "ACC-B", Amount: dec("0.33"),
		})
		require.NoError(t, err)
	}

	assert.Equal(t, "99.01", balanceOf(t, svc, "ACC-A").StringFixed(2))
	assert.Equal(t, "0.99", balanceOf(t, svc, "ACC-B").StringFixed(2))
}

func TestTransferLockTimeout(t *testing.T) {
	store := ledger.NewMemStore(100 * time.Millisecond)
	svc := ledger.NewService(store, logger.NewNop())
	ctx := context.Background()
	mustCreate(t, svc, "ACC-A", "100.00")
	mustCreate(t, svc, "ACC-B", "100.00")

	holding := make(chan struct{})
	releaseLock := make(chan struct{})
	go func() {
		_ = store.RunInTx(ctx, func(uow ledger.UnitOfWork) error {
			if _, err := uow.LockAccount(ctx, "ACC-A"); err != nil {
				return err
			}
			close(holding)
			<-releaseLock
			return nil
		})
	}()

	<-holding
	_, err := svc.Transfer(ctx, models.TransferRequest{
		FromAccountID: "ACC-A", ToAccountID: "ACC-B",
		Amount: dec("1.00"), TransactionID: "tx-blocked",
	})
	assert.ErrorIs(t, err, models.ErrLockTimeout)
	close(releaseLock)

	// The timed-out attempt moved nothing; retrying the same id after the
	// lock clears is safe and applies exactly once.
	require.Eventually(t, func() bool {
		_, err := svc.Transfer(ctx, models.TransferRequest{
			FromAccountID: "ACC-A", ToAccountID: "ACC-B",
			Amount: dec("1.00"), TransactionID: "tx-blocked",
		})
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	assert.True(t, balanceOf(t, svc, "ACC-A").Equal(dec("99.00")))
}
