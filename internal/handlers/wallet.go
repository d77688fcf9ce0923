package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/virtanum/internal/middleware"
	"github.com/example/virtanum/internal/services"
	"github.com/example/virtanum/internal/utils"
)

// WalletHandler exposes the user's wallet. Actual payment collection happens
// in an external gateway; this surface only reflects the ledger.
type WalletHandler struct {
	ledger services.Ledger
}

// NewWalletHandler constructs a WalletHandler.
func NewWalletHandler(ledger services.Ledger) *WalletHandler {
	return &WalletHandler{ledger: ledger}
}

// GetWallet returns the current balance.
func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	balance, err := h.ledger.Balance(c.Context(), userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"balance": balance}})
}

// ListTransactions returns a page of ledger entries.
func (h *WalletHandler) ListTransactions(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	txs, total, err := h.ledger.Transactions(c.Context(), userID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    txs,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

type topupRequest struct {
	Amount float64 `json:"amount"`
	Note   string  `json:"note"`
}

// Topup credits the wallet after a confirmed gateway payment.
func (h *WalletHandler) Topup(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req topupRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Amount <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "amount must be positive")
	}

	note := req.Note
	if note == "" {
		note = "wallet topup"
	}

	balance, err := h.ledger.Topup(c.Context(), userID, req.Amount, note)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"balance": balance}})
}
