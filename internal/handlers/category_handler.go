package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/middleware"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/models"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/policy"
)

type CategoryHandler struct {
	DB *gorm.DB
}

func NewCategoryHandler(db *gorm.DB) *CategoryHandler {
	return &CategoryHandler{DB: db}
}

func (h *CategoryHandler) GetCategories(c *fiber.Ctx) error {
	var categories []models.Category
	if err := h.DB.WithContext(c.UserContext()).Order("name ASC").Find(&categories).Error; err != nil {
		return apperr.FromStore(err, "category")
	}
	return ok(c, fiber.StatusOK, "", categories)
}

type CategoryReq struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (h *CategoryHandler) CreateCategory(c *fiber.Ctx) error {
	if err := policy.Check(middleware.Principal(c), policy.ActionAdminister, uuid.Nil); err != nil {
		return err
	}
	var req CategoryReq
	if err := bind(c, &req); err != nil {
		return err
	}
	cat := models.Category{Name: strings.TrimSpace(req.Name)}
	if err := h.DB.WithContext(c.UserContext()).Create(&cat).Error; err != nil {
		return apperr.FromStore(err, "category")
	}
	return ok(c, fiber.StatusCreated, "category created", cat)
}
