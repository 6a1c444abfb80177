package wallet

import "errors"

var (
	// ErrInvalidAmount rejects amounts that are zero or negative. It is
	// checked before any storage access or bank call.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientFunds occurs when a transfer would drive the source
	// balance negative. Nothing is persisted in that case.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrSettlementFailed wraps a failed or timed out bank authorization
	// during deposit. The gateway's cause stays reachable via errors.Is
	// and errors.Unwrap for diagnostics.
	ErrSettlementFailed = errors.New("settlement failed")

	// ErrDepositFailed is the failure family every domain-level deposit
	// rejection is wrapped into. Storage failures pass through unwrapped.
	ErrDepositFailed = errors.New("deposit failed")

	// ErrTransferFailed is the transfer counterpart of ErrDepositFailed.
	ErrTransferFailed = errors.New("transfer failed")
)
