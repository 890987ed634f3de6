package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/middleware"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/models"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/policy"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/services/lifecycle"
)

type ReviewHandler struct {
	DB      *gorm.DB
	Manager *lifecycle.Manager
}

func NewReviewHandler(db *gorm.DB, m *lifecycle.Manager) *ReviewHandler {
	return &ReviewHandler{DB: db, Manager: m}
}

func (h *ReviewHandler) ListReviews(c *fiber.Ctx) error {
	jobID, err := optionalUUID(c, "job_id")
	if err != nil {
		return err
	}
	revieweeID, err := optionalUUID(c, "reviewee_id")
	if err != nil {
		return err
	}

	query := func() *gorm.DB {
		q := h.DB.WithContext(c.UserContext()).Model(&models.Review{})
		if jobID != nil {
			q = q.Where("job_id = ?", *jobID)
		}
		if revieweeID != nil {
			q = q.Where("reviewee_id = ?", *revieweeID)
		}
		return q
	}

	p := pageFrom(c)
	var total int64
	if err := query().Count(&total).Error; err != nil {
		return apperr.FromStore(err, "review")
	}
	var out []models.Review
	err = query().Preload("Reviewer").
		Order("created_at DESC").
		Offset(p.Offset()).Limit(p.PageSize).
		Find(&out).Error
	if err != nil {
		return apperr.FromStore(err, "review")
	}
	return paged(c, p, total, out)
}

func (h *ReviewHandler) GetReview(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var r models.Review
	if err := h.DB.WithContext(c.UserContext()).Preload("Reviewer").First(&r, "id = ?", id).Error; err != nil {
		return apperr.FromStore(err, "review")
	}
	return ok(c, fiber.StatusOK, "", r)
}

type ReviewReq struct {
	JobID      uuid.UUID `json:"job_id"`
	RevieweeID uuid.UUID `json:"reviewee_id"`
	// Range is enforced by the lifecycle so out-of-range ratings never
	// reach the store.
	Rating  int    `json:"rating"`
	Comment string `json:"comment" validate:"max=5000"`
}

func (h *ReviewHandler) CreateReview(c *fiber.Ctx) error {
	var req ReviewReq
	if err := bind(c, &req); err != nil {
		return err
	}
	fields := apperr.FieldErrors{}
	if req.JobID == uuid.Nil {
		fields.Add("job_id", "field is required")
	}
	if req.RevieweeID == uuid.Nil {
		fields.Add("reviewee_id", "field is required")
	}
	if len(fields) > 0 {
		return apperr.Validation("validation error", fields)
	}

	r, err := h.Manager.FileReview(c.UserContext(), middleware.Principal(c), req.JobID, lifecycle.ReviewInput{
		RevieweeID: req.RevieweeID,
		Rating:     req.Rating,
		Comment:    req.Comment,
	})
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, "review filed", r)
}

// DeleteReview is a moderation action; reviews are otherwise immutable.
func (h *ReviewHandler) DeleteReview(c *fiber.Ctx) error {
	if err := policy.Check(middleware.Principal(c), policy.ActionAdminister, uuid.Nil); err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	res := h.DB.WithContext(c.UserContext()).Delete(&models.Review{}, "id = ?", id)
	if res.Error != nil {
		return apperr.FromStore(res.Error, "review")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("review not found")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
