package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/middleware"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/services/wallet"
)

type WalletHandler struct {
	Wallet *wallet.WalletService
}

func NewWalletHandler(w *wallet.WalletService) *WalletHandler {
	return &WalletHandler{Wallet: w}
}

func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	uid := middleware.Principal(c).UserID
	db := h.Wallet.DB.WithContext(c.UserContext())

	balance, err := h.Wallet.Balance(db, uid)
	if err != nil {
		return apperr.Unavailable(err)
	}
	entries, err := h.Wallet.Entries(db, uid, pageFrom(c).PageSize)
	if err != nil {
		return apperr.Unavailable(err)
	}
	return ok(c, fiber.StatusOK, "", fiber.Map{
		"balance": balance,
		"entries": entries,
	})
}
