package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/pocket-ledger/pocket_ledger/internal/bank"
	"github.com/pocket-ledger/pocket_ledger/internal/ledger"
)

func newTestService(t *testing.T, gateway bank.Gateway) (*Service, ledger.Store) {
	t.Helper()
	store := ledger.NewInMemory()
	return NewService(store, gateway, nil, nil, nil), store
}

func createWallet(t *testing.T, svc *Service, name string) string {
	t.Helper()
	res, err := svc.CreateWallet(context.Background(), name)
	if err != nil {
		t.Fatalf("create wallet %s: %v", name, err)
	}
	return res.WalletID
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func balanceOf(t *testing.T, store ledger.Store, id string) decimal.Decimal {
	t.Helper()
	account, err := store.Account(context.Background(), id)
	if err != nil {
		t.Fatalf("read account %s: %v", id, err)
	}
	return account.Balance
}

func statementsOf(t *testing.T, store ledger.Store, id string) []ledger.Statement {
	t.Helper()
	statements, err := store.RecentStatements(context.Background(), id, 0)
	if err != nil {
		t.Fatalf("read statements %s: %v", id, err)
	}
	return statements
}

func TestCreateWalletStartsAtZero(t *testing.T) {
	svc, store := newTestService(t, bank.StaticGateway{})
	id := createWallet(t, svc, "Alice")

	if got := balanceOf(t, store, id); !got.IsZero() {
		t.Fatalf("expected zero balance, got %s", got)
	}
	if entries := statementsOf(t, store, id); len(entries) != 0 {
		t.Fatalf("expected no statements, got %d", len(entries))
	}
}

func TestDepositCreditsAndRecordsStatement(t *testing.T) {
	svc, store := newTestService(t, bank.StaticGateway{})
	id := createWallet(t, svc, "Alice")

	amount := mustDecimal(t, "100.00")
	res, err := svc.Deposit(context.Background(), id, amount)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if !res.NewBalance.Equal(amount) {
		t.Fatalf("expected new balance 100.00, got %s", res.NewBalance)
	}

	entries := statementsOf(t, store, id)
	if len(entries) != 1 {
		t.Fatalf("expected one statement, got %d", len(entries))
	}
	st := entries[0]
	if !st.Amount.Equal(amount) || !st.BalanceAfter.Equal(amount) || st.Type != ledger.EntryDeposit {
		t.Fatalf("unexpected statement: %+v", st)
	}
	if st.WalletID != id || st.AccountID != id {
		t.Fatalf("statement points at wrong wallet: %+v", st)
	}
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	svc, store := newTestService(t, bank.StaticGateway{})
	id := createWallet(t, svc, "Alice")

	_, err := svc.Deposit(context.Background(), id, mustDecimal(t, "-5.00"))
	if !errors.Is(err, ErrDepositFailed) || !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount inside deposit failure, got %v", err)
	}
	if got := balanceOf(t, store, id); !got.IsZero() {
		t.Fatalf("balance changed on rejected deposit: %s", got)
	}
	if entries := statementsOf(t, store, id); len(entries) != 0 {
		t.Fatalf("statement recorded for rejected deposit")
	}
}

func TestDepositAbortsWhenSettlementFails(t *testing.T) {
	svc, store := newTestService(t, bank.FailingGateway{})
	id := createWallet(t, svc, "Alice")

	_, err := svc.Deposit(context.Background(), id, mustDecimal(t, "50.00"))
	if !errors.Is(err, ErrDepositFailed) || !errors.Is(err, ErrSettlementFailed) {
		t.Fatalf("expected settlement failure, got %v", err)
	}
	if !errors.Is(err, bank.ErrAuthorizationDeclined) {
		t.Fatalf("gateway cause lost from error chain: %v", err)
	}
	if got := balanceOf(t, store, id); !got.IsZero() {
		t.Fatalf("balance changed after failed settlement: %s", got)
	}
	if entries := statementsOf(t, store, id); len(entries) != 0 {
		t.Fatalf("statement recorded after failed settlement")
	}
}

func TestDepositUnknownWallet(t *testing.T) {
	svc, _ := newTestService(t, bank.StaticGateway{})

	_, err := svc.Deposit(context.Background(), "missing", mustDecimal(t, "10.00"))
	if !errors.Is(err, ErrDepositFailed) || !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
}

func TestTransferMovesFundsAndPairsStatements(t *testing.T) {
	svc, store := newTestService(t, bank.StaticGateway{})
	from := createWallet(t, svc, "A")
	to := createWallet(t, svc, "B")
	ledger.SeedBalance(store, from, mustDecimal(t, "100.00"))

	amount := mustDecimal(t, "30.00")
	res, err := svc.Transfer(context.Background(), from, to, amount)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if !res.NewSourceBalance.Equal(mustDecimal(t, "70.00")) {
		t.Fatalf("expected source balance 70.00, got %s", res.NewSourceBalance)
	}
	if got := balanceOf(t, store, to); !got.Equal(amount) {
		t.Fatalf("expected destination balance 30.00, got %s", got)
	}

	fromEntries := statementsOf(t, store, from)
	if len(fromEntries) != 1 {
		t.Fatalf("expected one source statement, got %d", len(fromEntries))
	}
	if st := fromEntries[0]; !st.Amount.Equal(amount.Neg()) ||
		!st.BalanceAfter.Equal(mustDecimal(t, "70.00")) || st.Type != ledger.EntryTransfer {
		t.Fatalf("unexpected source statement: %+v", st)
	}

	toEntries := statementsOf(t, store, to)
	if len(toEntries) != 1 {
		t.Fatalf("expected one destination statement, got %d", len(toEntries))
	}
	if st := toEntries[0]; !st.Amount.Equal(amount) ||
		!st.BalanceAfter.Equal(amount) || st.Type != ledger.EntryTransfer {
		t.Fatalf("unexpected destination statement: %+v", st)
	}
}

func TestTransferInsufficientFundsChangesNothing(t *testing.T) {
	svc, store := newTestService(t, bank.StaticGateway{})
	from := createWallet(t, svc, "A")
	to := createWallet(t, svc, "B")
	ledger.SeedBalance(store, from, mustDecimal(t, "70.00"))

	_, err := svc.Transfer(context.Background(), from, to, mustDecimal(t, "200.00"))
	if !errors.Is(err, ErrTransferFailed) || !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	if got := balanceOf(t, store, from); !got.Equal(mustDecimal(t, "70.00")) {
		t.Fatalf("source balance changed: %s", got)
	}
	if got := balanceOf(t, store, to); !got.IsZero() {
		t.Fatalf("destination balance changed: %s", got)
	}
	if entries := statementsOf(t, store, from); len(entries) != 0 {
		t.Fatalf("statements recorded for failed transfer")
	}
	if entries := statementsOf(t, store, to); len(entries) != 0 {
		t.Fatalf("statements recorded for failed transfer")
	}
}

func TestTransferExactBalanceSucceeds(t *testing.T) {
	svc, store := newTestService(t, bank.StaticGateway{})
	from := createWallet(t, svc, "A")
	to := createWallet(t, svc, "B")
	ledger.SeedBalance(store, from, mustDecimal(t, "42.50"))

	res, err := svc.Transfer(context.Background(), from, to, mustDecimal(t, "42.50"))
	if err != nil {
		t.Fatalf("transfer of full balance: %v", err)
	}
	if !res.NewSourceBalance.IsZero() {
		t.Fatalf("expected zero source balance, got %s", res.NewSourceBalance)
	}
}

func TestTransferUnknownDestination(t *testing.T) {
	svc, store := newTestService(t, bank.StaticGateway{})
	from := createWallet(t, svc, "A")
	ledger.SeedBalance(store, from, mustDecimal(t, "50.00"))

	_, err := svc.Transfer(context.Background(), from, "missing", mustDecimal(t, "10.00"))
	if !errors.Is(err, ErrTransferFailed) || !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
	if got := balanceOf(t, store, from); !got.Equal(mustDecimal(t, "50.00")) {
		t.Fatalf("source balance changed: %s", got)
	}
}

func TestTransferRejectsSameWallet(t *testing.T) {
	svc, store := newTestService(t, bank.StaticGateway{})
	id := createWallet(t, svc, "A")
	ledger.SeedBalance(store, id, mustDecimal(t, "50.00"))

	_, err := svc.Transfer(context.Background(), id, id, mustDecimal(t, "10.00"))
	if !errors.Is(err, ErrTransferFailed) || !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount for self transfer, got %v", err)
	}
	if got := balanceOf(t, store, id); !got.Equal(mustDecimal(t, "50.00")) {
		t.Fatalf("balance changed on self transfer: %s", got)
	}
}

func TestConcurrentDepositsAccumulate(t *testing.T) {
	svc, store := newTestService(t, bank.StaticGateway{})
	id := createWallet(t, svc, "Alice")

	const workers = 25
	amount := mustDecimal(t, "4.00")

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.Deposit(context.Background(), id, amount); err != nil {
				t.Errorf("deposit %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	want := mustDecimal(t, "100.00")
	if got := balanceOf(t, store, id); !got.Equal(want) {
		t.Fatalf("expected balance %s after %d deposits, got %s", want, workers, got)
	}
	if entries := statementsOf(t, store, id); len(entries) != workers {
		t.Fatalf("expected %d statements, got %d", workers, len(entries))
	}
}

// lockRecordingStore wraps a ledger store and records the order in which
// transactions take row locks.
type lockRecordingStore struct {
	ledger.Store
	mu    sync.Mutex
	locks []string
}

func (s *lockRecordingStore) RunAtomic(ctx context.Context, fn func(ledger.Tx) error) error {
	return s.Store.RunAtomic(ctx, func(tx ledger.Tx) error {
		return fn(&lockRecordingTx{Tx: tx, store: s})
	})
}

type lockRecordingTx struct {
	ledger.Tx
	store *lockRecordingStore
}

func (t *lockRecordingTx) AccountForUpdate(ctx context.Context, id string) (ledger.Account, error) {
	t.store.mu.Lock()
	t.store.locks = append(t.store.locks, id)
	t.store.mu.Unlock()
	return t.Tx.AccountForUpdate(ctx, id)
}

func TestTransferLocksInAscendingOrder(t *testing.T) {
	base := ledger.NewInMemory()
	store := &lockRecordingStore{Store: base}
	svc := NewService(store, bank.StaticGateway{}, nil, nil, nil)
	ctx := context.Background()

	a := createWallet(t, svc, "A")
	b := createWallet(t, svc, "B")
	ledger.SeedBalance(base, a, mustDecimal(t, "100.00"))
	ledger.SeedBalance(base, b, mustDecimal(t, "100.00"))

	low, high := a, b
	if high < low {
		low, high = high, low
	}

	// Same pair in both directions: lock order must not follow argument order.
	if _, err := svc.Transfer(ctx, a, b, mustDecimal(t, "10.00")); err != nil {
		t.Fatalf("transfer a->b: %v", err)
	}
	if _, err := svc.Transfer(ctx, b, a, mustDecimal(t, "10.00")); err != nil {
		t.Fatalf("transfer b->a: %v", err)
	}

	if len(store.locks) != 4 {
		t.Fatalf("expected four lock acquisitions, got %d: %v", len(store.locks), store.locks)
	}
	for i := 0; i < len(store.locks); i += 2 {
		if store.locks[i] != low || store.locks[i+1] != high {
			t.Fatalf("locks acquired out of ascending identifier order: %v", store.locks)
		}
	}
}

func TestOpposingConcurrentTransfersComplete(t *testing.T) {
	svc, store := newTestService(t, bank.StaticGateway{})
	a := createWallet(t, svc, "A")
	b := createWallet(t, svc, "B")
	ledger.SeedBalance(store, a, mustDecimal(t, "100.00"))
	ledger.SeedBalance(store, b, mustDecimal(t, "100.00"))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.Transfer(context.Background(), a, b, mustDecimal(t, "5.00")); err != nil {
				t.Errorf("transfer a->b %d: %v", i, err)
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.Transfer(context.Background(), b, a, mustDecimal(t, "5.00")); err != nil {
				t.Errorf("transfer b->a %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	total := balanceOf(t, store, a).Add(balanceOf(t, store, b))
	if !total.Equal(mustDecimal(t, "200.00")) {
		t.Fatalf("funds not conserved, total %s", total)
	}
}

func TestStatementsNewestFirstWithLimit(t *testing.T) {
	svc, _ := newTestService(t, bank.StaticGateway{})
	from := createWallet(t, svc, "A")
	to := createWallet(t, svc, "B")

	if _, err := svc.Deposit(context.Background(), from, mustDecimal(t, "100.00")); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := svc.Transfer(context.Background(), from, to, mustDecimal(t, "25.00")); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	all, err := svc.Statements(context.Background(), from, 0)
	if err != nil {
		t.Fatalf("statements: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected two statements, got %d", len(all))
	}
	if all[0].Type != ledger.EntryTransfer || all[1].Type != ledger.EntryDeposit {
		t.Fatalf("statements not newest first: %v then %v", all[0].Type, all[1].Type)
	}

	recent, err := svc.Statements(context.Background(), from, 1)
	if err != nil {
		t.Fatalf("statements with limit: %v", err)
	}
	if len(recent) != 1 || recent[0].Type != ledger.EntryTransfer {
		t.Fatalf("limit did not keep the newest entry: %+v", recent)
	}

	if _, err := svc.Statements(context.Background(), "missing", 0); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("expected account not found for unknown wallet, got %v", err)
	}
}
