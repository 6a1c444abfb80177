package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pocket-ledger/pocket_ledger/internal/wallet"
)

// RegisterWalletRoutes wires the wallet endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Post("/wallets", h.Create)
	r.Post("/wallets/deposit", h.Deposit)
	r.Post("/wallets/transfer", h.Transfer)
	r.Get("/wallets/:walletId/balance", h.Balance)
	r.Get("/wallets/:walletId/statements", h.Statements)
}
