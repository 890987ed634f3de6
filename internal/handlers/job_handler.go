package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/middleware"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/models"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/services/lifecycle"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/services/search"
)

const dateLayout = "2006-01-02"

type JobHandler struct {
	DB      *gorm.DB
	Manager *lifecycle.Manager
}

func NewJobHandler(db *gorm.DB, m *lifecycle.Manager) *JobHandler {
	return &JobHandler{DB: db, Manager: m}
}

// ListJobs is public: newest first, filtered by q, category_id, client_id
// and is_open.
func (h *JobHandler) ListJobs(c *fiber.Ctx) error {
	categoryID, err := optionalUUID(c, "category_id")
	if err != nil {
		return err
	}
	clientID, err := optionalUUID(c, "client_id")
	if err != nil {
		return err
	}
	isOpen := c.Query("is_open")

	query := func() *gorm.DB {
		q := h.DB.WithContext(c.UserContext()).Model(&models.Job{}).Scopes(search.Jobs(c.Query("q")))
		if categoryID != nil {
			q = q.Where("jobs.category_id = ?", *categoryID)
		}
		if clientID != nil {
			q = q.Where("jobs.client_id = ?", *clientID)
		}
		switch isOpen {
		case "true", "1":
			q = q.Where("jobs.is_open = ?", true)
		case "false", "0":
			q = q.Where("jobs.is_open = ?", false)
		}
		return q
	}

	p := pageFrom(c)
	var total int64
	if err := query().Count(&total).Error; err != nil {
		return apperr.FromStore(err, "job")
	}
	var jobs []models.Job
	err = query().Preload("Category").
		Order("jobs.created_at DESC").
		Offset(p.Offset()).Limit(p.PageSize).
		Find(&jobs).Error
	if err != nil {
		return apperr.FromStore(err, "job")
	}
	return paged(c, p, total, jobs)
}

func (h *JobHandler) GetJob(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var job models.Job
	if err := h.DB.WithContext(c.UserContext()).Preload("Category").First(&job, "id = ?", id).Error; err != nil {
		return apperr.FromStore(err, "job")
	}
	return ok(c, fiber.StatusOK, "", job)
}

type JobReq struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description" validate:"required"`
	Budget      decimal.Decimal `json:"budget"`
	Deadline    string          `json:"deadline" validate:"omitempty,datetime=2006-01-02"`
	CategoryID  *uuid.UUID      `json:"category_id"`
	Skills      []string        `json:"skills" validate:"max=30,dive,max=60"`
}

func parseDeadline(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		fields := apperr.FieldErrors{}
		fields.Add("deadline", "must be a date in YYYY-MM-DD format")
		return nil, apperr.Validation("validation error", fields)
	}
	return &t, nil
}

func (h *JobHandler) CreateJob(c *fiber.Ctx) error {
	var req JobReq
	if err := bind(c, &req); err != nil {
		return err
	}
	deadline, err := parseDeadline(req.Deadline)
	if err != nil {
		return err
	}
	job, err := h.Manager.CreateJob(c.UserContext(), middleware.Principal(c), lifecycle.JobInput{
		Title:       req.Title,
		Description: req.Description,
		Budget:      req.Budget,
		Deadline:    deadline,
		CategoryID:  req.CategoryID,
		Skills:      req.Skills,
	})
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, "job created", job)
}

// JobPatchReq uses pointers so omitted fields stay unchanged. An empty
// deadline or category_id string clears the field.
type JobPatchReq struct {
	Title       *string          `json:"title" validate:"omitempty,max=200"`
	Description *string          `json:"description"`
	Budget      *decimal.Decimal `json:"budget"`
	Deadline    *string          `json:"deadline"`
	CategoryID  *string          `json:"category_id"`
	Skills      *[]string        `json:"skills"`
}

func (h *JobHandler) UpdateJob(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req JobPatchReq
	if err := bind(c, &req); err != nil {
		return err
	}

	patch := lifecycle.JobPatch{
		Title:       req.Title,
		Description: req.Description,
		Budget:      req.Budget,
		Skills:      req.Skills,
	}
	if req.Deadline != nil {
		if *req.Deadline == "" {
			patch.ClearDeadline = true
		} else if patch.Deadline, err = parseDeadline(*req.Deadline); err != nil {
			return err
		}
	}
	if req.CategoryID != nil {
		if *req.CategoryID == "" {
			patch.ClearCategory = true
		} else {
			cid, err := uuid.Parse(*req.CategoryID)
			if err != nil {
				fields := apperr.FieldErrors{}
				fields.Add("category_id", "must be a valid id")
				return apperr.Validation("validation error", fields)
			}
			patch.CategoryID = &cid
		}
	}

	job, err := h.Manager.UpdateJob(c.UserContext(), middleware.Principal(c), id, patch)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "job updated", job)
}

func (h *JobHandler) DeleteJob(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.Manager.DeleteJob(c.UserContext(), middleware.Principal(c), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *JobHandler) CloseJob(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	job, err := h.Manager.CloseJob(c.UserContext(), middleware.Principal(c), id)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "closed", job)
}
