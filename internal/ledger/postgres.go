package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore persists accounts and statements in PostgreSQL. Row locks
// map to SELECT ... FOR UPDATE and RunAtomic maps to a single database
// transaction.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the ledger tables when they do not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS accounts (
    id UUID PRIMARY KEY,
    name TEXT NOT NULL,
    balance NUMERIC(18,2) NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    modified_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS statements (
    id UUID PRIMARY KEY,
    account_id UUID NOT NULL REFERENCES accounts (id),
    wallet_id UUID NOT NULL,
    amount NUMERIC(18,2) NOT NULL,
    balance_after NUMERIC(18,2) NOT NULL,
    entry_type SMALLINT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS statements_wallet_created_idx
    ON statements (wallet_id, created_at DESC);`
	_, err := s.db.Exec(ctx, ddl)
	return err
}

// CreateAccount inserts a new account with a zero balance.
func (s *PostgresStore) CreateAccount(ctx context.Context, name string) (Account, error) {
	id := uuid.New()
	account := Account{ID: id.String(), Name: name, Balance: decimal.Zero}
	row := s.db.QueryRow(ctx, `INSERT INTO accounts (id, name) VALUES ($1, $2)
        RETURNING created_at, modified_at`, id, name)
	if err := row.Scan(&account.CreatedAt, &account.ModifiedAt); err != nil {
		return Account{}, fmt.Errorf("insert account: %w", err)
	}
	return account, nil
}

// Account reads a committed account row without locking it.
func (s *PostgresStore) Account(ctx context.Context, id string) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrAccountNotFound
	}
	const query = `SELECT id::text, name, balance::text, created_at, modified_at
        FROM accounts WHERE id = $1`
	return scanAccount(s.db.QueryRow(ctx, query, accountID))
}

// RecentStatements returns the wallet's statements newest first. A limit of
// zero returns the full history.
func (s *PostgresStore) RecentStatements(ctx context.Context, walletID string, limit int) ([]Statement, error) {
	accountID, err := uuid.Parse(walletID)
	if err != nil {
		return nil, ErrAccountNotFound
	}

	// The account must resolve even when it has no statements yet.
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrAccountNotFound
	}

	query := `SELECT id::text, account_id::text, wallet_id::text, amount::text,
            balance_after::text, entry_type, created_at
        FROM statements WHERE wallet_id = $1 ORDER BY created_at DESC, id`
	args := []any{accountID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statements []Statement
	for rows.Next() {
		var (
			st                  Statement
			amount, balanceText string
			entryType           int16
		)
		if err := rows.Scan(&st.ID, &st.AccountID, &st.WalletID, &amount, &balanceText, &entryType, &st.CreatedAt); err != nil {
			return nil, err
		}
		st.Type = EntryType(entryType)
		st.CreatedAt = st.CreatedAt.UTC()
		if st.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse statement amount: %w", err)
		}
		if st.BalanceAfter, err = decimal.NewFromString(balanceText); err != nil {
			return nil, fmt.Errorf("parse statement balance: %w", err)
		}
		statements = append(statements, st)
	}
	return statements, rows.Err()
}

// RunAtomic wraps fn in a database transaction. The deferred rollback is a
// no-op after a successful commit.
func (s *PostgresStore) RunAtomic(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(&postgresTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) AccountForUpdate(ctx context.Context, id string) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrAccountNotFound
	}
	const query = `SELECT id::text, name, balance::text, created_at, modified_at
        FROM accounts WHERE id = $1 FOR UPDATE`
	return scanAccount(t.tx.QueryRow(ctx, query, accountID))
}

func (t *postgresTx) Account(ctx context.Context, id string) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrAccountNotFound
	}
	const query = `SELECT id::text, name, balance::text, created_at, modified_at
        FROM accounts WHERE id = $1`
	return scanAccount(t.tx.QueryRow(ctx, query, accountID))
}

func (t *postgresTx) IncrementBalance(ctx context.Context, id string, delta decimal.Decimal) error {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return ErrAccountNotFound
	}
	ct, err := t.tx.Exec(ctx, `UPDATE accounts
        SET balance = balance + $2::numeric, modified_at = now()
        WHERE id = $1`, accountID, delta.StringFixed(2))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (t *postgresTx) SaveAccount(ctx context.Context, account Account) error {
	accountID, err := uuid.Parse(account.ID)
	if err != nil {
		return ErrAccountNotFound
	}
	ct, err := t.tx.Exec(ctx, `UPDATE accounts
        SET balance = $2::numeric, modified_at = now()
        WHERE id = $1`, accountID, account.Balance.StringFixed(2))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (t *postgresTx) AppendStatement(ctx context.Context, walletID string, amount, balanceAfter decimal.Decimal, entryType EntryType) (Statement, error) {
	accountID, err := uuid.Parse(walletID)
	if err != nil {
		return Statement{}, ErrAccountNotFound
	}
	st := Statement{
		ID:           uuid.NewString(),
		AccountID:    walletID,
		WalletID:     walletID,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		Type:         entryType,
	}
	row := t.tx.QueryRow(ctx, `INSERT INTO statements
            (id, account_id, wallet_id, amount, balance_after, entry_type)
        VALUES ($1, $2, $2, $3::numeric, $4::numeric, $5)
        RETURNING created_at`,
		uuid.MustParse(st.ID), accountID, amount.StringFixed(2), balanceAfter.StringFixed(2), int16(entryType))
	if err := row.Scan(&st.CreatedAt); err != nil {
		return Statement{}, fmt.Errorf("insert statement: %w", err)
	}
	return st, nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		account Account
		balance string
	)
	if err := row.Scan(&account.ID, &account.Name, &balance, &account.CreatedAt, &account.ModifiedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	parsed, err := decimal.NewFromString(balance)
	if err != nil {
		return Account{}, fmt.Errorf("parse balance: %w", err)
	}
	account.Balance = parsed
	account.CreatedAt = account.CreatedAt.UTC()
	account.ModifiedAt = account.ModifiedAt.UTC()
	return account, nil
}
