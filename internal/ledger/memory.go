package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type memoryStore struct {
	mu         sync.Mutex
	accounts   map[string]Account
	statements map[string][]Statement
}

// NewInMemory creates an in-memory ledger store for unit tests. Transactions
// are serialized behind a single mutex, which trivially satisfies the
// deterministic lock ordering the Postgres store gets from ordered
// FOR UPDATE reads.
func NewInMemory() Store {
	return &memoryStore{
		accounts:   make(map[string]Account),
		statements: make(map[string][]Statement),
	}
}

func (s *memoryStore) CreateAccount(_ context.Context, name string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	account := Account{
		ID:         uuid.NewString(),
		Name:       name,
		Balance:    decimal.Zero,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	s.accounts[account.ID] = account
	return account, nil
}

func (s *memoryStore) Account(_ context.Context, id string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (s *memoryStore) RecentStatements(_ context.Context, walletID string, limit int) ([]Statement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[walletID]; !ok {
		return nil, ErrAccountNotFound
	}
	history := s.statements[walletID]
	out := make([]Statement, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		out = append(out, history[i])
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RunAtomic stages every write on a transaction-local view and merges it
// into committed state only when fn succeeds, so an abort leaves nothing
// behind.
func (s *memoryStore) RunAtomic(_ context.Context, fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memoryTx{store: s, staged: make(map[string]Account)}
	if err := fn(tx); err != nil {
		return err
	}
	for id, account := range tx.staged {
		s.accounts[id] = account
	}
	for _, st := range tx.appended {
		s.statements[st.WalletID] = append(s.statements[st.WalletID], st)
	}
	return nil
}

type memoryTx struct {
	store    *memoryStore
	staged   map[string]Account
	appended []Statement
}

func (t *memoryTx) read(id string) (Account, bool) {
	if account, ok := t.staged[id]; ok {
		return account, true
	}
	account, ok := t.store.accounts[id]
	return account, ok
}

func (t *memoryTx) AccountForUpdate(_ context.Context, id string) (Account, error) {
	account, ok := t.read(id)
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (t *memoryTx) Account(_ context.Context, id string) (Account, error) {
	account, ok := t.read(id)
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (t *memoryTx) IncrementBalance(_ context.Context, id string, delta decimal.Decimal) error {
	account, ok := t.read(id)
	if !ok {
		return ErrAccountNotFound
	}
	account.Balance = account.Balance.Add(delta)
	account.ModifiedAt = time.Now().UTC()
	t.staged[id] = account
	return nil
}

func (t *memoryTx) SaveAccount(_ context.Context, account Account) error {
	current, ok := t.read(account.ID)
	if !ok {
		return ErrAccountNotFound
	}
	current.Balance = account.Balance
	current.ModifiedAt = time.Now().UTC()
	t.staged[account.ID] = current
	return nil
}

func (t *memoryTx) AppendStatement(_ context.Context, walletID string, amount, balanceAfter decimal.Decimal, entryType EntryType) (Statement, error) {
	if _, ok := t.read(walletID); !ok {
		return Statement{}, ErrAccountNotFound
	}
	st := Statement{
		ID:           uuid.NewString(),
		AccountID:    walletID,
		WalletID:     walletID,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		Type:         entryType,
		CreatedAt:    time.Now().UTC(),
	}
	t.appended = append(t.appended, st)
	return st, nil
}
