package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yashasviy/transaction-ledger-api/models"
)

// MemStore is a full in-process Store: per-row exclusive locks with a bounded
// wait, staged writes that become visible only on commit, and a uniqueness
// check on transaction ids at commit time. It backs the test suite and the
// zero-dependency dev mode when no database URL is configured.
type MemStore struct {
	mu           sync.RWMutex // guards the maps and ordering slices
	accounts     map[string]*accountRow
	accountOrder []string
	txns         map[string]models.Transaction
	txnOrder     []string // commit order; listings walk it backwards
	lockWait     time.Duration
}

// accountRow pairs account state with its row lock. The lock channel holds
// at most one token; whoever manages to send owns the row.
type accountRow struct {
	lock chan struct{}
	acct models.Account
}

func NewMemStore(lockWait time.Duration) *MemStore {
	return &MemStore{
		accounts: make(map[string]*accountRow),
		txns:     make(map[string]models.Transaction),
		lockWait: lockWait,
	}
}

func (s *MemStore) CreateAccount(ctx context.Context, acct *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[acct.AccountID]; ok {
		return models.ErrAccountExists
	}
	s.accounts[acct.AccountID] = &accountRow{
		lock: make(chan struct{}, 1),
		acct: *acct,
	}
	s.accountOrder = append(s.accountOrder, acct.AccountID)
	return nil
}

func (s *MemStore) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.accounts[accountID]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	acct := row.acct
	return &acct, nil
}

func (s *MemStore) ListAccounts(ctx context.Context, offset, limit int) ([]models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accounts := []models.Account{}
	skipped := 0
	for _, id := range s.accountOrder {
		row, ok := s.accounts[id]
		if !ok {
			continue // deleted
		}
		if skipped < offset {
			skipped++
			continue
		}
		if len(accounts) == limit {
			break
		}
		accounts = append(accounts, row.acct)
	}
	return accounts, nil
}

func (s *MemStore) DeleteAccountIfZero(ctx context.Context, accountID string) error {
	// Take the row lock so a concurrent transfer cannot credit the account
	// between the balance check and the delete.
	row, err := s.lockRow(ctx, accountID)
	if err != nil {
		return err
	}
	defer func() { <-row.lock }()

	if !row.acct.Balance.IsZero() {
		return models.ErrNonZeroBalance
	}

	s.mu.Lock()
	delete(s.accounts, accountID)
	s.mu.Unlock()
	return nil
}

func (s *MemStore) GetTransaction(ctx context.Context, transactionID string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txn, ok := s.txns[transactionID]
	if !ok {
		return nil, models.ErrTransactionNotFound
	}
	return &txn, nil
}

func (s *MemStore) ListTransactions(ctx context.Context, offset, limit int) ([]models.Transaction, error) {
	return s.listTxns(offset, limit, func(models.Transaction) bool { return true })
}

func (s *MemStore) ListTransactionsByAccount(ctx context.Context, accountID string, offset, limit int) ([]models.Transaction, error) {
	return s.listTxns(offset, limit, func(t models.Transaction) bool {
		return t.FromAccountID == accountID || t.ToAccountID == accountID
	})
}

func (s *MemStore) listTxns(offset, limit int, match func(models.Transaction) bool) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txns := []models.Transaction{}
	skipped := 0
	for i := len(s.txnOrder) - 1; i >= 0; i-- {
		txn := s.txns[s.txnOrder[i]]
		if !match(txn) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if len(txns) == limit {
			break
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

// RunInTx runs fn against a staged view. Locks taken by fn are held until
// the unit of work finishes; staged writes apply only when fn returns nil.
func (s *MemStore) RunInTx(ctx context.Context, fn func(uow UnitOfWork) error) error {
	uow := &memUnitOfWork{
		store:  s,
		staged: make(map[string]decimal.Decimal),
	}
	defer uow.release()

	if err := fn(uow); err != nil {
		return err
	}
	return uow.commit()
}

// lockRow acquires the exclusive lock for an account row, waiting at most
// lockWait. The existence re-check covers a delete that won the race while
// we were queued on the lock.
func (s *MemStore) lockRow(ctx context.Context, accountID string) (*accountRow, error) {
	s.mu.RLock()
	row, ok := s.accounts[accountID]
	s.mu.RUnlock()
	if !ok {
		return nil, models.ErrAccountNotFound
	}

	timer := time.NewTimer(s.lockWait)
	defer timer.Stop()
	select {
	case row.lock <- struct{}{}:
	case <-timer.C:
		return nil, models.ErrLockTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.RLock()
	current, ok := s.accounts[accountID]
	s.mu.RUnlock()
	if !ok || current != row {
		// The row we queued on was deleted (and possibly re-created as a
		// fresh row) while we waited. Holding the orphaned row's lock
		// gives no mutual exclusion against the live one, so report the
		// account gone; retries will find the new row.
		<-row.lock
		return nil, models.ErrAccountNotFound
	}
	return row, nil
}

type memUnitOfWork struct {
	store   *MemStore
	locked  map[string]*accountRow
	order   []string // lock acquisition order, for release
	staged  map[string]decimal.Decimal
	inserts []models.Transaction
	done    bool
}

func (u *memUnitOfWork) GetTransaction(ctx context.Context, transactionID string) (*models.Transaction, error) {
	return u.store.GetTransaction(ctx, transactionID)
}

func (u *memUnitOfWork) LockAccount(ctx context.Context, accountID string) (*models.Account, error) {
	if u.locked == nil {
		u.locked = make(map[string]*accountRow)
	}
	if _, ok := u.locked[accountID]; ok {
		return nil, fmt.Errorf("account %s already locked by this unit of work", accountID)
	}
	row, err := u.store.lockRow(ctx, accountID)
	if err != nil {
		return nil, err
	}
	u.locked[accountID] = row
	u.order = append(u.order, accountID)
	acct := row.acct
	return &acct, nil
}

func (u *memUnitOfWork) UpdateBalance(ctx context.Context, accountID string, balance decimal.Decimal) error {
	if _, ok := u.locked[accountID]; !ok {
		return fmt.Errorf("account %s not locked by this unit of work", accountID)
	}
	u.staged[accountID] = balance
	return nil
}

func (u *memUnitOfWork) InsertTransaction(ctx context.Context, txn *models.Transaction) error {
	u.store.mu.RLock()
	_, exists := u.store.txns[txn.TransactionID]
	u.store.mu.RUnlock()
	if exists {
		return models.ErrTransactionExists
	}
	for _, staged := range u.inserts {
		if staged.TransactionID == txn.TransactionID {
			return models.ErrTransactionExists
		}
	}
	u.inserts = append(u.inserts, *txn)
	return nil
}

// commit makes the staged writes durable. The uniqueness re-check under the
// store mutex is the backstop for two units of work that both passed the
// idempotency read with the same transaction id.
func (u *memUnitOfWork) commit() error {
	u.store.mu.Lock()
	for _, txn := range u.inserts {
		if _, exists := u.store.txns[txn.TransactionID]; exists {
			u.store.mu.Unlock()
			u.release()
			return models.ErrTransactionExists
		}
	}
	for id, balance := range u.staged {
		u.locked[id].acct.Balance = balance
	}
	for _, txn := range u.inserts {
		u.store.txns[txn.TransactionID] = txn
		u.store.txnOrder = append(u.store.txnOrder, txn.TransactionID)
	}
	u.store.mu.Unlock()
	u.release()
	return nil
}

// release drops all row locks. Safe to call twice; commit and the RunInTx
// defer both reach it.
func (u *memUnitOfWork) release() {
	if u.done {
		return
	}
	u.done = true
	for i := len(u.order) - 1; i >= 0; i-- {
		<-u.locked[u.order[i]].lock
	}
}
