package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/middleware"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/services/accounts"
)

type AdminHandler struct {
	Accounts *accounts.AccountService
}

func NewAdminHandler(svc *accounts.AccountService) *AdminHandler {
	return &AdminHandler{Accounts: svc}
}

func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	p := pageFrom(c)
	users, total, err := h.Accounts.ListUsers(c.UserContext(), middleware.Principal(c), c.Query("q"), p.Offset(), p.PageSize)
	if err != nil {
		return err
	}
	return paged(c, p, total, users)
}

type SetActiveReq struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

func (h *AdminHandler) SetActive(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req SetActiveReq
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := h.Accounts.SetActive(c.UserContext(), middleware.Principal(c), id, *req.IsActive)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "updated", u)
}
