package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/logging"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/middleware"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/models"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/policy"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/services/lifecycle"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/services/paygate"
)

type PaymentHandler struct {
	DB      *gorm.DB
	Manager *lifecycle.Manager
	// Paygate is nil when no gateway is configured.
	Paygate *paygate.PaygateService
	Log     *logrus.Logger
}

func NewPaymentHandler(db *gorm.DB, m *lifecycle.Manager, gw *paygate.PaygateService) *PaymentHandler {
	return &PaymentHandler{DB: db, Manager: m, Paygate: gw, Log: logging.Discard()}
}

// visiblePayments limits payments to the job's client and the accepted
// freelancer. Superusers see everything.
func visiblePayments(p policy.Principal) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if p.IsSuperuser() {
			return db
		}
		fresh := db.Session(&gorm.Session{NewDB: true})
		return db.Where(
			"payments.job_id IN (?) OR payments.job_id IN (?)",
			fresh.Model(&models.Job{}).Select("id").Where("client_id = ?", p.UserID),
			fresh.Model(&models.Proposal{}).Select("job_id").Where("freelancer_id = ? AND status = ?", p.UserID, models.ProposalAccepted),
		)
	}
}

func (h *PaymentHandler) ListPayments(c *fiber.Ctx) error {
	jobID, err := optionalUUID(c, "job_id")
	if err != nil {
		return err
	}
	principal := middleware.Principal(c)

	query := func() *gorm.DB {
		q := h.DB.WithContext(c.UserContext()).Model(&models.Payment{}).Scopes(visiblePayments(principal))
		if jobID != nil {
			q = q.Where("payments.job_id = ?", *jobID)
		}
		return q
	}

	p := pageFrom(c)
	var total int64
	if err := query().Count(&total).Error; err != nil {
		return apperr.FromStore(err, "payment")
	}
	var out []models.Payment
	err = query().Order("payments.created_at DESC").Offset(p.Offset()).Limit(p.PageSize).Find(&out).Error
	if err != nil {
		return apperr.FromStore(err, "payment")
	}
	return paged(c, p, total, out)
}

func (h *PaymentHandler) GetPayment(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	pay, err := h.visible(c, id)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", pay)
}

func (h *PaymentHandler) visible(c *fiber.Ctx, id uuid.UUID) (*models.Payment, error) {
	var pay models.Payment
	err := h.DB.WithContext(c.UserContext()).
		Scopes(visiblePayments(middleware.Principal(c))).
		First(&pay, "payments.id = ?", id).Error
	if err != nil {
		return nil, apperr.FromStore(err, "payment")
	}
	return &pay, nil
}

type PaymentReq struct {
	JobID  uuid.UUID       `json:"job_id"`
	Amount decimal.Decimal `json:"amount"`
	Fund   bool            `json:"fund"`
	// Method asks the gateway for a checkout in this payment channel.
	Method string `json:"method" validate:"max=40"`
}

func (h *PaymentHandler) CreatePayment(c *fiber.Ctx) error {
	var req PaymentReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.JobID == uuid.Nil {
		fields := apperr.FieldErrors{}
		fields.Add("job_id", "field is required")
		return apperr.Validation("validation error", fields)
	}

	in := lifecycle.PaymentInput{Amount: req.Amount, Fund: req.Fund}
	if req.Method != "" {
		if h.Paygate == nil {
			return apperr.Validation("online payment is not available", nil)
		}
		if req.Fund {
			return apperr.Validation("fund and method cannot be combined", nil)
		}
		principal := middleware.Principal(c)
		in.Intent = func(ctx context.Context, p *models.Payment) (string, string, error) {
			intent, err := h.Paygate.CreateIntent(ctx, paygate.IntentRequest{
				MerchantRef:  "INV-" + p.ID.String(),
				Amount:       p.Amount,
				ItemName:     "Escrow for job " + p.JobID.String(),
				Method:       req.Method,
				CustomerName: principal.UserID.String(),
			})
			if err != nil {
				return "", "", err
			}
			return intent.Reference, intent.CheckoutURL, nil
		}
	}

	pay, err := h.Manager.CreatePayment(c.UserContext(), middleware.Principal(c), req.JobID, in)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, "payment created", pay)
}

func (h *PaymentHandler) HoldEscrow(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if _, err := h.visible(c, id); err != nil {
		return err
	}
	pay, err := h.Manager.HoldEscrow(c.UserContext(), middleware.Principal(c), id)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "escrow held", pay)
}

func (h *PaymentHandler) ReleaseEscrow(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if _, err := h.visible(c, id); err != nil {
		return err
	}
	pay, err := h.Manager.ReleaseEscrow(c.UserContext(), middleware.Principal(c), id)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "escrow released", pay)
}

func (h *PaymentHandler) GetChannels(c *fiber.Ctx) error {
	if h.Paygate == nil {
		return ok(c, fiber.StatusOK, "", []paygate.Channel{})
	}
	channels, err := h.Paygate.Channels(c.UserContext())
	if err != nil {
		return apperr.Unavailable(err)
	}
	return ok(c, fiber.StatusOK, "", channels)
}

// HandleCallback receives gateway notifications. A PAID notification holds
// the escrow of the matching payment; repeats are acknowledged.
func (h *PaymentHandler) HandleCallback(c *fiber.Ctx) error {
	if h.Paygate == nil {
		return apperr.NotFound("not found")
	}

	signature := c.Get("X-Callback-Signature")
	if signature == "" {
		return apperr.Validation("missing signature", nil)
	}
	body := c.Body()
	if !h.Paygate.ValidateSignature(signature, body) {
		return apperr.Unauthenticated("invalid signature")
	}

	var cb paygate.Callback
	if err := json.Unmarshal(body, &cb); err != nil {
		return apperr.Validation("invalid payload", nil)
	}

	log := h.Log.WithFields(logrus.Fields{"reference": cb.Reference, "status": cb.Status})
	if cb.Status != paygate.StatusPaid {
		log.Info("payment callback ignored")
		return c.JSON(fiber.Map{"success": true})
	}

	_, err := h.Manager.HoldEscrowByIntent(c.UserContext(), policy.System(), cb.Reference)
	switch {
	case err == nil:
		log.Info("payment callback: escrow held")
	case errors.Is(err, apperr.ErrInvalidState):
		log.Info("payment callback: escrow already held")
	case errors.Is(err, apperr.ErrNotFound):
		log.Warn("payment callback for unknown reference")
		return c.JSON(fiber.Map{"success": false, "message": "payment not found"})
	default:
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}
