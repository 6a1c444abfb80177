package wallet

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/pocket-ledger/pocket_ledger/internal/ledger"
)

// Handler exposes the wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Name string `json:"name"`
}

type depositRequest struct {
	WalletID string          `json:"wallet_id"`
	Amount   decimal.Decimal `json:"amount"`
}

type transferRequest struct {
	FromWalletID string          `json:"from_wallet_id"`
	ToWalletID   string          `json:"to_wallet_id"`
	Amount       decimal.Decimal `json:"amount"`
}

type statementResponse struct {
	ID           string          `json:"id"`
	WalletID     string          `json:"wallet_id"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	Type         string          `json:"type"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Create provisions a new wallet.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Name) == "" {
		return fiber.NewError(http.StatusBadRequest, "name is required")
	}
	res, err := h.service.CreateWallet(c.UserContext(), req.Name)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"wallet_id": res.WalletID})
}

// Deposit credits a wallet after bank settlement.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req depositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if !req.Amount.IsPositive() {
		return fiber.NewError(http.StatusBadRequest, "amount must be positive")
	}
	res, err := h.service.Deposit(c.UserContext(), req.WalletID, req.Amount)
	if err != nil {
		return walletError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"new_balance": res.NewBalance})
}

// Transfer moves funds between two wallets.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if !req.Amount.IsPositive() {
		return fiber.NewError(http.StatusBadRequest, "amount must be positive")
	}
	res, err := h.service.Transfer(c.UserContext(), req.FromWalletID, req.ToWalletID, req.Amount)
	if err != nil {
		return walletError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"new_balance": res.NewSourceBalance})
}

// Balance returns the wallet's committed balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	walletID := c.Params("walletId")
	balance, err := h.service.Balance(c.UserContext(), walletID)
	if err != nil {
		return walletError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallet_id": walletID,
		"balance":   balance,
		"timestamp": time.Now().UTC(),
	})
}

// Statements lists the wallet's most recent entries, newest first. The
// count query parameter limits the result; zero or absent means all.
func (h *Handler) Statements(c *fiber.Ctx) error {
	walletID := c.Params("walletId")
	count := 0
	if raw := c.Query("count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return fiber.NewError(http.StatusBadRequest, "count must be a non-negative integer")
		}
		count = parsed
	}

	statements, err := h.service.Statements(c.UserContext(), walletID, count)
	if err != nil {
		return walletError(err)
	}

	out := make([]statementResponse, 0, len(statements))
	for _, st := range statements {
		out = append(out, statementResponse{
			ID:           st.ID,
			WalletID:     st.WalletID,
			Amount:       st.Amount,
			BalanceAfter: st.BalanceAfter,
			Type:         st.Type.String(),
			CreatedAt:    st.CreatedAt,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallet_id":  walletID,
		"statements": out,
	})
}

func walletError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, "invalid amount")
	case errors.Is(err, ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, "insufficient funds")
	case errors.Is(err, ledger.ErrAccountNotFound):
		return fiber.NewError(http.StatusNotFound, "wallet not found")
	case errors.Is(err, ErrSettlementFailed):
		return fiber.NewError(http.StatusBadGateway, "bank settlement failed")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
