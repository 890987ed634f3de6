package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/middleware"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/models"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/services/accounts"
)

type AuthHandler struct {
	Accounts     *accounts.AccountService
	Expires      int // minutes
	SecureCookie bool
}

func NewAuthHandler(svc *accounts.AccountService, expires int) *AuthHandler {
	return &AuthHandler{Accounts: svc, Expires: expires}
}

type RegisterReq struct {
	Username     string `json:"username" validate:"required,max=150"`
	Email        string `json:"email" validate:"required,email,max=254"`
	Password     string `json:"password" validate:"required,min=8"`
	FirstName    string `json:"first_name" validate:"max=150"`
	LastName     string `json:"last_name" validate:"max=150"`
	IsClient     bool   `json:"is_client"`
	IsFreelancer bool   `json:"is_freelancer"`
}

type LoginReq struct {
	// Identifier is an email or a username.
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password" validate:"required"`
}

func (h *AuthHandler) setCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.SecureCookie,
		SameSite: "Lax",
		MaxAge:   h.Expires * 60,
	})
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterReq
	if err := bind(c, &req); err != nil {
		return err
	}

	u, token, err := h.Accounts.Register(c.UserContext(), accounts.RegisterInput{
		Username:     req.Username,
		Email:        req.Email,
		Password:     req.Password,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		IsClient:     req.IsClient,
		IsFreelancer: req.IsFreelancer,
	})
	if err != nil {
		return err
	}

	h.setCookie(c, token)
	return ok(c, fiber.StatusCreated, "registered", fiber.Map{"user": u, "token": token})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Email
	}
	if identifier == "" {
		identifier = req.Username
	}
	if identifier == "" {
		fields := apperr.FieldErrors{}
		fields.Add("identifier", "email or username is required")
		return apperr.Validation("validation error", fields)
	}

	u, token, err := h.Accounts.Login(c.UserContext(), identifier, req.Password)
	if err != nil {
		return err
	}

	h.setCookie(c, token)
	return ok(c, fiber.StatusOK, "logged in", fiber.Map{"user": u, "token": token})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.SecureCookie,
		SameSite: "Lax",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
	return ok(c, fiber.StatusOK, "logged out", nil)
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	u, err := h.Accounts.Get(c.UserContext(), middleware.Principal(c).UserID)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", u)
}

type UpdateMeReq struct {
	FirstName    *string `json:"first_name" validate:"omitempty,max=150"`
	LastName     *string `json:"last_name" validate:"omitempty,max=150"`
	IsClient     *bool   `json:"is_client"`
	IsFreelancer *bool   `json:"is_freelancer"`
}

func (h *AuthHandler) UpdateMe(c *fiber.Ctx) error {
	var req UpdateMeReq
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := h.Accounts.UpdateMe(c.UserContext(), middleware.Principal(c), accounts.UserPatch{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		IsClient:     req.IsClient,
		IsFreelancer: req.IsFreelancer,
	})
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "updated", u)
}

type ProfileReq struct {
	Title          string          `json:"title" validate:"max=120"`
	Bio            string          `json:"bio"`
	Skills         []string        `json:"skills" validate:"max=50,dive,max=60"`
	HourlyRate     decimal.Decimal `json:"hourly_rate"`
	Certifications []string        `json:"certifications" validate:"max=50,dive,max=200"`
}

func (h *AuthHandler) UpsertProfile(c *fiber.Ctx) error {
	var req ProfileReq
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := h.Accounts.UpsertProfile(c.UserContext(), middleware.Principal(c), accounts.ProfileInput{
		Title:          req.Title,
		Bio:            req.Bio,
		Skills:         req.Skills,
		HourlyRate:     req.HourlyRate,
		Certifications: req.Certifications,
	})
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "profile saved", p)
}

func (h *AuthHandler) UploadAvatar(c *fiber.Ctx) error {
	fh, err := c.FormFile("avatar")
	if err != nil {
		fields := apperr.FieldErrors{}
		fields.Add("avatar", "file is required")
		return apperr.Validation("validation error", fields)
	}
	f, err := fh.Open()
	if err != nil {
		return apperr.Validation("cannot read upload", nil)
	}
	defer f.Close()

	p, err := h.Accounts.SetAvatar(c.UserContext(), middleware.Principal(c), fh.Filename, f)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "avatar updated", p)
}

// publicUser is what other users may see of an account.
type publicUser struct {
	ID           uuid.UUID       `json:"id"`
	Username     string          `json:"username"`
	FirstName    string          `json:"first_name"`
	LastName     string          `json:"last_name"`
	IsClient     bool            `json:"is_client"`
	IsFreelancer bool            `json:"is_freelancer"`
	Profile      *models.Profile `json:"profile"`
}

func (h *AuthHandler) GetUser(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	u, err := h.Accounts.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	if !u.IsActive {
		return apperr.NotFound("user not found")
	}
	return ok(c, fiber.StatusOK, "", publicUser{
		ID:           u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		IsClient:     u.IsClient,
		IsFreelancer: u.IsFreelancer,
		Profile:      u.Profile,
	})
}
