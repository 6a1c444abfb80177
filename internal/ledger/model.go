package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryType classifies the balance-changing event a statement records. The
// set is closed: every statement row carries exactly one of these values.
type EntryType int16

const (
	// EntryDeposit marks a credit funded through the bank settlement gateway.
	EntryDeposit EntryType = 1
	// EntryTransfer marks one leg of a wallet-to-wallet transfer.
	EntryTransfer EntryType = 2
)

func (t EntryType) String() string {
	switch t {
	case EntryDeposit:
		return "deposit"
	case EntryTransfer:
		return "transfer"
	default:
		return "unknown"
	}
}

// Account is a wallet row: a display name plus the current balance.
// Balances are fixed-point decimals at scale 2 and are never persisted
// negative.
type Account struct {
	ID         string
	Name       string
	Balance    decimal.Decimal
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// Statement is one immutable ledger entry: the amount applied to a wallet
// and the balance the wallet held immediately afterwards. Amounts are
// positive for credits and negative for debits. WalletID duplicates
// AccountID so statement queries do not need a join.
type Statement struct {
	ID           string
	AccountID    string
	WalletID     string
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	Type         EntryType
	CreatedAt    time.Time
}
