package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrAccountNotFound is returned when a wallet identifier does not resolve
// to an account row.
var ErrAccountNotFound = errors.New("account not found")

// Tx exposes the row operations available inside one atomic transaction.
// Locks acquired through AccountForUpdate are held until the enclosing
// RunAtomic call commits or aborts.
type Tx interface {
	// AccountForUpdate reads an account and locks its row for the rest of
	// the transaction, blocking other writers.
	AccountForUpdate(ctx context.Context, id string) (Account, error)

	// Account reads an account without taking a lock.
	Account(ctx context.Context, id string) (Account, error)

	// IncrementBalance applies balance = balance + delta as a single
	// conditional update, so concurrent increments on the same row cannot
	// lose updates. The modified timestamp is refreshed as part of the
	// same statement.
	IncrementBalance(ctx context.Context, id string, delta decimal.Decimal) error

	// SaveAccount persists the balance and modified timestamp of an
	// account previously read with AccountForUpdate.
	SaveAccount(ctx context.Context, account Account) error

	// AppendStatement inserts one immutable statement row for the wallet.
	AppendStatement(ctx context.Context, walletID string, amount, balanceAfter decimal.Decimal, entryType EntryType) (Statement, error)
}

// Store is the durable ledger contract implemented by the Postgres and
// in-memory backends.
type Store interface {
	// CreateAccount inserts a new account with a zero balance.
	CreateAccount(ctx context.Context, name string) (Account, error)

	// Account reads a committed account outside of any transaction.
	Account(ctx context.Context, id string) (Account, error)

	// RecentStatements returns the wallet's statements newest first.
	// A limit of zero means all of them.
	RecentStatements(ctx context.Context, walletID string, limit int) ([]Statement, error)

	// RunAtomic executes fn inside one transaction. Everything fn does
	// through the Tx commits together or not at all, and row locks are
	// released on exit whether fn succeeds or fails.
	RunAtomic(ctx context.Context, fn func(Tx) error) error
}
