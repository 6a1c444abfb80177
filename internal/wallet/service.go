package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/pocket-ledger/pocket_ledger/internal/bank"
	"github.com/pocket-ledger/pocket_ledger/internal/ledger"
	"github.com/pocket-ledger/pocket_ledger/internal/logging"
	"github.com/pocket-ledger/pocket_ledger/internal/notification"
)

// Service implements the wallet operations on top of the ledger store and
// the bank settlement gateway. Every multi-step mutation runs inside exactly
// one atomic store transaction; a failure at any step aborts the whole unit,
// so a balance change and its statement are only ever visible together.
type Service struct {
	store    ledger.Store
	gateway  bank.Gateway
	cache    *BalanceCache
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService builds a wallet service. A nil gateway defaults to the static
// always-approve implementation; cache and notifier are optional.
func NewService(store ledger.Store, gateway bank.Gateway, cache *BalanceCache, notifier notification.Notifier, logger *slog.Logger) *Service {
	if gateway == nil {
		gateway = bank.StaticGateway{}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{store: store, gateway: gateway, cache: cache, notifier: notifier, logger: logger}
}

// CreateResult reports the identifier of a newly provisioned wallet.
type CreateResult struct {
	WalletID string
}

// DepositResult carries the committed balance after a deposit.
type DepositResult struct {
	NewBalance decimal.Decimal
}

// TransferResult carries the committed source balance after a transfer.
type TransferResult struct {
	NewSourceBalance decimal.Decimal
}

// CreateWallet provisions a new account with a zero balance. The name is
// assumed validated by the caller; storage failures propagate as-is.
func (s *Service) CreateWallet(ctx context.Context, name string) (CreateResult, error) {
	account, err := s.store.CreateAccount(ctx, name)
	if err != nil {
		return CreateResult{}, err
	}
	s.logger.Info("wallet created", "wallet_id", account.ID)
	return CreateResult{WalletID: account.ID}, nil
}

// Deposit credits the wallet after a successful bank settlement call. The
// gateway call, the conditional balance increment, the authoritative
// re-read, and the statement insert all share one transaction: if any step
// fails, no balance change and no statement become visible.
func (s *Service) Deposit(ctx context.Context, walletID string, amount decimal.Decimal) (DepositResult, error) {
	if !amount.IsPositive() {
		return DepositResult{}, s.failDeposit(walletID, ErrInvalidAmount)
	}

	// Dropped again after commit; deleting on both sides of the transaction
	// narrows the window in which a concurrent read can re-cache a balance
	// that is about to change.
	s.invalidate(ctx, walletID)

	var result DepositResult
	err := s.store.RunAtomic(ctx, func(tx ledger.Tx) error {
		if err := s.gateway.Authorize(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrSettlementFailed, err)
		}

		if err := tx.IncrementBalance(ctx, walletID, amount); err != nil {
			return err
		}

		// Re-read for the authoritative post-increment balance rather
		// than trusting an earlier snapshot.
		account, err := tx.Account(ctx, walletID)
		if err != nil {
			return err
		}

		if _, err := tx.AppendStatement(ctx, walletID, amount, account.Balance, ledger.EntryDeposit); err != nil {
			return err
		}
		result = DepositResult{NewBalance: account.Balance}
		return nil
	})
	if err != nil {
		return DepositResult{}, s.failDeposit(walletID, err)
	}

	s.invalidate(ctx, walletID)
	s.notify(ctx, notification.KindDeposit, walletID, amount)
	return result, nil
}

// Transfer moves funds between two wallets. Both rows are locked in
// ascending identifier order regardless of which side is the source, so two
// opposing transfers on the same pair cannot form a lock-wait cycle. Both
// balance updates and both statements commit together or not at all.
func (s *Service) Transfer(ctx context.Context, fromID, toID string, amount decimal.Decimal) (TransferResult, error) {
	if !amount.IsPositive() {
		return TransferResult{}, s.failTransfer(fromID, toID, ErrInvalidAmount)
	}
	if fromID == toID {
		return TransferResult{}, s.failTransfer(fromID, toID,
			fmt.Errorf("%w: source and destination are the same wallet", ErrInvalidAmount))
	}

	s.invalidate(ctx, fromID, toID)

	var result TransferResult
	err := s.store.RunAtomic(ctx, func(tx ledger.Tx) error {
		first, second := fromID, toID
		if second < first {
			first, second = second, first
		}

		locked := make(map[string]ledger.Account, 2)
		for _, id := range []string{first, second} {
			account, err := tx.AccountForUpdate(ctx, id)
			if err != nil {
				return err
			}
			locked[id] = account
		}

		source, destination := locked[fromID], locked[toID]
		newSource := source.Balance.Sub(amount)
		if newSource.IsNegative() {
			return ErrInsufficientFunds
		}
		newDestination := destination.Balance.Add(amount)

		source.Balance = newSource
		destination.Balance = newDestination
		if err := tx.SaveAccount(ctx, source); err != nil {
			return err
		}
		if err := tx.SaveAccount(ctx, destination); err != nil {
			return err
		}

		if _, err := tx.AppendStatement(ctx, source.ID, amount.Neg(), newSource, ledger.EntryTransfer); err != nil {
			return err
		}
		if _, err := tx.AppendStatement(ctx, destination.ID, amount, newDestination, ledger.EntryTransfer); err != nil {
			return err
		}
		result = TransferResult{NewSourceBalance: newSource}
		return nil
	})
	if err != nil {
		return TransferResult{}, s.failTransfer(fromID, toID, err)
	}

	s.invalidate(ctx, fromID, toID)
	s.notify(ctx, notification.KindTransfer, toID, amount)
	return result, nil
}

// Balance returns the committed balance for a wallet, served from the cache
// when a fresh entry exists.
func (s *Service) Balance(ctx context.Context, walletID string) (decimal.Decimal, error) {
	if s.cache != nil {
		if balance, ok := s.cache.Get(ctx, walletID); ok {
			return balance, nil
		}
	}
	account, err := s.store.Account(ctx, walletID)
	if err != nil {
		return decimal.Zero, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, walletID, account.Balance)
	}
	return account.Balance, nil
}

// Statements returns the wallet's most recent entries, newest first. A
// limit of zero returns the full history.
func (s *Service) Statements(ctx context.Context, walletID string, limit int) ([]ledger.Statement, error) {
	return s.store.RecentStatements(ctx, walletID, limit)
}

// failDeposit logs the cause and wraps domain rejections into the deposit
// failure family. Unexpected storage errors pass through unchanged.
func (s *Service) failDeposit(walletID string, err error) error {
	s.logger.Error("deposit failed", "wallet_id", walletID, "error", err)
	if isDomainRejection(err) || errors.Is(err, ErrSettlementFailed) {
		return fmt.Errorf("%w: %w", ErrDepositFailed, err)
	}
	return err
}

func (s *Service) failTransfer(fromID, toID string, err error) error {
	s.logger.Error("transfer failed", "from_wallet_id", fromID, "to_wallet_id", toID, "error", err)
	if isDomainRejection(err) {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	return err
}

func isDomainRejection(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ledger.ErrAccountNotFound)
}

func (s *Service) invalidate(ctx context.Context, walletIDs ...string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, walletIDs...)
	}
}

func (s *Service) notify(ctx context.Context, kind, walletID string, amount decimal.Decimal) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Send(ctx, notification.Message{
		Kind:        kind,
		Destination: walletID,
		Body:        fmt.Sprintf("Wallet %s received %s", walletID, amount.StringFixed(2)),
	})
}
