package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/middleware"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/models"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/policy"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/services/lifecycle"
)

type ProposalHandler struct {
	DB      *gorm.DB
	Manager *lifecycle.Manager
}

func NewProposalHandler(db *gorm.DB, m *lifecycle.Manager) *ProposalHandler {
	return &ProposalHandler{DB: db, Manager: m}
}

// visibleProposals limits a query to proposals the caller submitted or
// received on their own jobs. Superusers see everything.
func visibleProposals(p policy.Principal) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if p.IsSuperuser() {
			return db
		}
		return db.Where(
			"proposals.freelancer_id = ? OR proposals.job_id IN (?)",
			p.UserID,
			db.Session(&gorm.Session{NewDB: true}).Model(&models.Job{}).Select("id").Where("client_id = ?", p.UserID),
		)
	}
}

func (h *ProposalHandler) ListProposals(c *fiber.Ctx) error {
	jobID, err := optionalUUID(c, "job_id")
	if err != nil {
		return err
	}
	status := c.Query("status")
	principal := middleware.Principal(c)

	query := func() *gorm.DB {
		q := h.DB.WithContext(c.UserContext()).Model(&models.Proposal{}).Scopes(visibleProposals(principal))
		if jobID != nil {
			q = q.Where("proposals.job_id = ?", *jobID)
		}
		if status != "" {
			q = q.Where("proposals.status = ?", status)
		}
		return q
	}

	p := pageFrom(c)
	var total int64
	if err := query().Count(&total).Error; err != nil {
		return apperr.FromStore(err, "proposal")
	}
	var out []models.Proposal
	err = query().Preload("Freelancer").
		Order("proposals.created_at DESC").
		Offset(p.Offset()).Limit(p.PageSize).
		Find(&out).Error
	if err != nil {
		return apperr.FromStore(err, "proposal")
	}
	return paged(c, p, total, out)
}

func (h *ProposalHandler) GetProposal(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var prop models.Proposal
	err = h.DB.WithContext(c.UserContext()).
		Scopes(visibleProposals(middleware.Principal(c))).
		Preload("Freelancer").Preload("Job").
		First(&prop, "proposals.id = ?", id).Error
	if err != nil {
		return apperr.FromStore(err, "proposal")
	}
	return ok(c, fiber.StatusOK, "", prop)
}

type ProposalReq struct {
	JobID         uuid.UUID       `json:"job_id"`
	CoverLetter   string          `json:"cover_letter" validate:"required"`
	BidAmount     decimal.Decimal `json:"bid_amount"`
	TimeframeDays int             `json:"timeframe_days" validate:"gte=0,lte=3650"`
}

// CreateProposal serves both POST /jobs/:id/proposals and POST /proposals
// with job_id in the body.
func (h *ProposalHandler) CreateProposal(c *fiber.Ctx) error {
	var req ProposalReq
	if err := bind(c, &req); err != nil {
		return err
	}
	jobID := req.JobID
	if c.Params("id") != "" {
		id, err := idParam(c, "id")
		if err != nil {
			return err
		}
		jobID = id
	}
	if jobID == uuid.Nil {
		fields := apperr.FieldErrors{}
		fields.Add("job_id", "field is required")
		return apperr.Validation("validation error", fields)
	}

	prop, err := h.Manager.SubmitProposal(c.UserContext(), middleware.Principal(c), jobID, lifecycle.ProposalInput{
		CoverLetter:   req.CoverLetter,
		BidAmount:     req.BidAmount,
		TimeframeDays: req.TimeframeDays,
	})
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, "proposal submitted", prop)
}

type ProposalPatchReq struct {
	CoverLetter   *string          `json:"cover_letter"`
	BidAmount     *decimal.Decimal `json:"bid_amount"`
	TimeframeDays *int             `json:"timeframe_days" validate:"omitempty,lte=3650"`
}

func (h *ProposalHandler) UpdateProposal(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req ProposalPatchReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.ensureVisible(c, id); err != nil {
		return err
	}
	prop, err := h.Manager.UpdateProposal(c.UserContext(), middleware.Principal(c), id, lifecycle.ProposalPatch{
		CoverLetter:   req.CoverLetter,
		BidAmount:     req.BidAmount,
		TimeframeDays: req.TimeframeDays,
	})
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "proposal updated", prop)
}

func (h *ProposalHandler) DeleteProposal(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.ensureVisible(c, id); err != nil {
		return err
	}
	if err := h.Manager.WithdrawProposal(c.UserContext(), middleware.Principal(c), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ProposalHandler) AcceptProposal(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.ensureVisible(c, id); err != nil {
		return err
	}
	prop, err := h.Manager.AcceptProposal(c.UserContext(), middleware.Principal(c), id)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "proposal accepted", prop)
}

func (h *ProposalHandler) RejectProposal(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.ensureVisible(c, id); err != nil {
		return err
	}
	prop, err := h.Manager.RejectProposal(c.UserContext(), middleware.Principal(c), id)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "proposal rejected", prop)
}

// ensureVisible reports proposals outside the caller's scope as missing
// rather than forbidden.
func (h *ProposalHandler) ensureVisible(c *fiber.Ctx, id uuid.UUID) error {
	var n int64
	err := h.DB.WithContext(c.UserContext()).Model(&models.Proposal{}).
		Scopes(visibleProposals(middleware.Principal(c))).
		Where("proposals.id = ?", id).
		Count(&n).Error
	if err != nil {
		return apperr.FromStore(err, "proposal")
	}
	if n == 0 {
		return apperr.NotFound("proposal not found")
	}
	return nil
}
