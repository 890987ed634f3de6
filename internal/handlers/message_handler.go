package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/logging"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/middleware"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/models"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/policy"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/realtime"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/services/blob"
)

type MessageHandler struct {
	DB       *gorm.DB
	Blob     blob.Store
	Notifier realtime.Notifier
	Log      *logrus.Logger
}

func NewMessageHandler(db *gorm.DB, store blob.Store, n realtime.Notifier) *MessageHandler {
	if n == nil {
		n = realtime.Nop{}
	}
	return &MessageHandler{DB: db, Blob: store, Notifier: n, Log: logging.Discard()}
}

func visibleMessages(p policy.Principal) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if p.IsSuperuser() {
			return db
		}
		return db.Where("messages.sender_id = ? OR messages.receiver_id = ?", p.UserID, p.UserID)
	}
}

// ListMessages returns the caller's messages oldest first.
func (h *MessageHandler) ListMessages(c *fiber.Ctx) error {
	jobID, err := optionalUUID(c, "job_id")
	if err != nil {
		return err
	}
	principal := middleware.Principal(c)

	query := func() *gorm.DB {
		q := h.DB.WithContext(c.UserContext()).Model(&models.Message{}).Scopes(visibleMessages(principal))
		if jobID != nil {
			q = q.Where("messages.job_id = ?", *jobID)
		}
		return q
	}

	p := pageFrom(c)
	var total int64
	if err := query().Count(&total).Error; err != nil {
		return apperr.FromStore(err, "message")
	}
	var out []models.Message
	err = query().Order("messages.created_at ASC").Offset(p.Offset()).Limit(p.PageSize).Find(&out).Error
	if err != nil {
		return apperr.FromStore(err, "message")
	}
	return paged(c, p, total, out)
}

func (h *MessageHandler) GetMessage(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var msg models.Message
	err = h.DB.WithContext(c.UserContext()).
		Scopes(visibleMessages(middleware.Principal(c))).
		First(&msg, "messages.id = ?", id).Error
	if err != nil {
		return apperr.FromStore(err, "message")
	}
	return ok(c, fiber.StatusOK, "", msg)
}

type MessageReq struct {
	JobID      uuid.UUID `json:"job_id" form:"job_id"`
	ReceiverID uuid.UUID `json:"receiver_id" form:"receiver_id"`
	Content    string    `json:"content" form:"content" validate:"max=10000"`
}

// CreateMessage accepts JSON, or multipart with an optional "attachment" file.
func (h *MessageHandler) CreateMessage(c *fiber.Ctx) error {
	principal := middleware.Principal(c)
	if err := policy.Check(principal, policy.ActionCreate, uuid.Nil); err != nil {
		return err
	}

	var req MessageReq
	if err := bind(c, &req); err != nil {
		return err
	}

	fields := apperr.FieldErrors{}
	if req.JobID == uuid.Nil {
		fields.Add("job_id", "field is required")
	}
	if req.ReceiverID == uuid.Nil {
		fields.Add("receiver_id", "field is required")
	} else if req.ReceiverID == principal.UserID {
		fields.Add("receiver_id", "cannot message yourself")
	}

	fh, _ := c.FormFile("attachment")
	content := strings.TrimSpace(req.Content)
	if content == "" && fh == nil {
		fields.Add("content", "content or attachment is required")
	}
	if fh != nil {
		if _, err := blob.CheckExt(fh.Filename, false); err != nil {
			fields.Add("attachment", "file type is not allowed")
		}
	}
	if len(fields) > 0 {
		return apperr.Validation("validation error", fields)
	}

	ctx := c.UserContext()
	db := h.DB.WithContext(ctx)

	var n int64
	if err := db.Model(&models.Job{}).Where("id = ?", req.JobID).Count(&n).Error; err != nil {
		return apperr.FromStore(err, "job")
	}
	if n == 0 {
		return apperr.NotFound("job not found")
	}
	if err := db.Model(&models.User{}).Where("id = ? AND is_active = ?", req.ReceiverID, true).Count(&n).Error; err != nil {
		return apperr.FromStore(err, "user")
	}
	if n == 0 {
		fields.Add("receiver_id", "unknown user")
		return apperr.Validation("validation error", fields)
	}

	msg := models.Message{
		JobID:      req.JobID,
		SenderID:   principal.UserID,
		ReceiverID: req.ReceiverID,
		Content:    content,
	}
	if fh != nil {
		if h.Blob == nil {
			return apperr.Unavailable(errBlobDisabled)
		}
		f, err := fh.Open()
		if err != nil {
			return apperr.Validation("cannot read upload", nil)
		}
		ref, err := h.Blob.Put(ctx, "msg", fh.Filename, f)
		f.Close()
		if err != nil {
			return apperr.Unavailable(err)
		}
		msg.AttachmentURL = blob.PublicURL(ref)
	}

	if err := db.Create(&msg).Error; err != nil {
		return apperr.FromStore(err, "message")
	}

	ev := realtime.Event{Type: realtime.EventMessageCreated, JobID: msg.JobID, EntityID: msg.ID, ActorID: msg.SenderID, At: msg.CreatedAt}
	if err := h.Notifier.Notify(ctx, msg.ReceiverID, ev); err != nil {
		h.Log.WithError(err).WithField("message_id", msg.ID).Warn("message notification not delivered")
	}
	return ok(c, fiber.StatusCreated, "message sent", msg)
}

// DeleteMessage is reserved for superusers; messages are otherwise
// append-only.
func (h *MessageHandler) DeleteMessage(c *fiber.Ctx) error {
	if err := policy.Check(middleware.Principal(c), policy.ActionAdminister, uuid.Nil); err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	res := h.DB.WithContext(c.UserContext()).Delete(&models.Message{}, "id = ?", id)
	if res.Error != nil {
		return apperr.FromStore(res.Error, "message")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("message not found")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
