// Package accounts covers registration, login, principal resolution and the
// caller's own user and profile records.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/logging"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/models"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/policy"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/services/blob"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/services/search"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/utils"
)

const MinPasswordLen = 8

type AccountService struct {
	DB         *gorm.DB
	JWTSecret  string
	ExpiresMin int
	Blob       blob.Store
	Log        *logrus.Logger
}

func NewAccountService(db *gorm.DB, jwtSecret string, expiresMin int, store blob.Store) *AccountService {
	return &AccountService{
		DB:         db,
		JWTSecret:  jwtSecret,
		ExpiresMin: expiresMin,
		Blob:       store,
		Log:        logging.Discard(),
	}
}

type RegisterInput struct {
	Username     string
	Email        string
	Password     string
	FirstName    string
	LastName     string
	IsClient     bool
	IsFreelancer bool
}

type UserPatch struct {
	FirstName    *string
	LastName     *string
	IsClient     *bool
	IsFreelancer *bool
}

type ProfileInput struct {
	Title          string
	Bio            string
	Skills         []string
	HourlyRate     decimal.Decimal
	Certifications []string
}

func conflictFields(field, msg string) error {
	errs := apperr.FieldErrors{}
	errs.Add(field, msg)
	return &apperr.Error{Kind: apperr.KindConflict, Message: msg, Fields: errs}
}

// Register creates an account and returns it with a fresh token.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.User, string, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	errs := apperr.FieldErrors{}
	if username == "" {
		errs.Add("username", "username is required")
	}
	if email == "" {
		errs.Add("email", "email is required")
	} else if !strings.Contains(email, "@") {
		errs.Add("email", "email is not valid")
	}
	if len(in.Password) < MinPasswordLen {
		errs.Add("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLen))
	}
	if len(errs) > 0 {
		return nil, "", apperr.Validation("validation error", errs)
	}

	db := s.DB.WithContext(ctx)

	var n int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return nil, "", apperr.FromStore(err, "user")
	}
	if n > 0 {
		return nil, "", conflictFields("email", "email is already registered")
	}
	if err := db.Model(&models.User{}).Where("username = ?", username).Count(&n).Error; err != nil {
		return nil, "", apperr.FromStore(err, "user")
	}
	if n > 0 {
		return nil, "", conflictFields("username", "username is already taken")
	}

	pw, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	u := &models.User{
		Username:     username,
		Email:        email,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Password:     pw,
		IsClient:     in.IsClient,
		IsFreelancer: in.IsFreelancer,
		IsActive:     true,
	}
	if err := db.Create(u).Error; err != nil {
		return nil, "", apperr.FromStore(err, "user")
	}

	token, err := utils.SignJWT(s.JWTSecret, u.ID.String(), s.ExpiresMin)
	if err != nil {
		return nil, "", fmt.Errorf("sign token: %w", err)
	}

	s.Log.WithField("user_id", u.ID).Info("user registered")
	return u, token, nil
}

// Login accepts either the email or the username as identifier.
func (s *AccountService) Login(ctx context.Context, identifier, password string) (*models.User, string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, "", apperr.Unauthenticated("invalid credentials")
	}

	var u models.User
	err := s.DB.WithContext(ctx).
		Where("email = ? OR username = ?", strings.ToLower(identifier), identifier).
		Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", apperr.Unauthenticated("invalid credentials")
	}
	if err != nil {
		return nil, "", apperr.FromStore(err, "user")
	}
	if !utils.CheckPassword(u.Password, password) {
		return nil, "", apperr.Unauthenticated("invalid credentials")
	}
	if !u.IsActive {
		return nil, "", apperr.Forbidden("account is disabled")
	}

	token, err := utils.SignJWT(s.JWTSecret, u.ID.String(), s.ExpiresMin)
	if err != nil {
		return nil, "", fmt.Errorf("sign token: %w", err)
	}
	return &u, token, nil
}

// ResolvePrincipal turns a bearer token into the principal it stands for.
// Role flags come from the store, not from the token.
func (s *AccountService) ResolvePrincipal(ctx context.Context, token string) (policy.Principal, error) {
	claims, err := utils.ParseJWT(s.JWTSecret, token)
	if err != nil {
		return policy.Anonymous(), apperr.Unauthenticated("invalid or expired token")
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return policy.Anonymous(), apperr.Unauthenticated("invalid or expired token")
	}

	var u models.User
	err = s.DB.WithContext(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return policy.Anonymous(), apperr.Unauthenticated("account no longer exists")
	}
	if err != nil {
		return policy.Anonymous(), apperr.FromStore(err, "user")
	}
	if !u.IsActive {
		return policy.Anonymous(), apperr.Unauthenticated("account is disabled")
	}
	return policy.FromUser(&u), nil
}

// Get loads a user with their profile.
func (s *AccountService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).Preload("Profile").First(&u, "id = ?", id).Error; err != nil {
		return nil, apperr.FromStore(err, "user")
	}
	return &u, nil
}

func (s *AccountService) UpdateMe(ctx context.Context, actor policy.Principal, patch UserPatch) (*models.User, error) {
	if err := policy.Check(actor, policy.ActionRead, uuid.Nil); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if patch.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*patch.FirstName)
	}
	if patch.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*patch.LastName)
	}
	if patch.IsClient != nil {
		updates["is_client"] = *patch.IsClient
	}
	if patch.IsFreelancer != nil {
		updates["is_freelancer"] = *patch.IsFreelancer
	}
	if len(updates) > 0 {
		err := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", actor.UserID).Updates(updates).Error
		if err != nil {
			return nil, apperr.FromStore(err, "user")
		}
	}
	return s.Get(ctx, actor.UserID)
}

func cleanList(in []string) datatypes.JSONSlice[string] {
	out := make(datatypes.JSONSlice[string], 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// UpsertProfile creates or replaces the caller's profile. The rating is
// derived from reviews and is never written here.
func (s *AccountService) UpsertProfile(ctx context.Context, actor policy.Principal, in ProfileInput) (*models.Profile, error) {
	if err := policy.Check(actor, policy.ActionRead, uuid.Nil); err != nil {
		return nil, err
	}
	if in.HourlyRate.IsNegative() {
		errs := apperr.FieldErrors{}
		errs.Add("hourly_rate", "hourly rate cannot be negative")
		return nil, apperr.Validation("validation error", errs)
	}

	p := &models.Profile{
		UserID:         actor.UserID,
		Title:          strings.TrimSpace(in.Title),
		Bio:            strings.TrimSpace(in.Bio),
		Skills:         cleanList(in.Skills),
		HourlyRate:     in.HourlyRate,
		Certifications: cleanList(in.Certifications),
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "bio", "skills", "hourly_rate", "certifications", "updated_at"}),
	}).Create(p).Error
	if err != nil {
		return nil, apperr.FromStore(err, "profile")
	}
	return s.profile(ctx, actor.UserID)
}

// SetAvatar stores an uploaded image and points the caller's profile at it,
// creating an empty profile when none exists yet.
func (s *AccountService) SetAvatar(ctx context.Context, actor policy.Principal, filename string, r io.Reader) (*models.Profile, error) {
	if err := policy.Check(actor, policy.ActionRead, uuid.Nil); err != nil {
		return nil, err
	}
	if s.Blob == nil {
		return nil, apperr.Unavailable(errors.New("blob store not configured"))
	}
	if _, err := blob.CheckExt(filename, true); err != nil {
		errs := apperr.FieldErrors{}
		errs.Add("avatar", "avatar must be a jpg, png or webp image")
		return nil, apperr.Validation("validation error", errs)
	}

	ref, err := s.Blob.Put(ctx, "avatar", filename, r)
	if err != nil {
		return nil, apperr.Unavailable(fmt.Errorf("store avatar: %w", err))
	}
	url := blob.PublicURL(ref)

	p := &models.Profile{UserID: actor.UserID, AvatarURL: url}
	err = s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"avatar_url", "updated_at"}),
	}).Create(p).Error
	if err != nil {
		return nil, apperr.FromStore(err, "profile")
	}
	return s.profile(ctx, actor.UserID)
}

func (s *AccountService) profile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	var p models.Profile
	if err := s.DB.WithContext(ctx).First(&p, "user_id = ?", userID).Error; err != nil {
		return nil, apperr.FromStore(err, "profile")
	}
	return &p, nil
}

// ListUsers is the superuser listing, newest accounts first.
func (s *AccountService) ListUsers(ctx context.Context, actor policy.Principal, q string, offset, limit int) ([]models.User, int64, error) {
	if err := policy.Check(actor, policy.ActionAdminister, uuid.Nil); err != nil {
		return nil, 0, err
	}

	query := func() *gorm.DB {
		return s.DB.WithContext(ctx).Model(&models.User{}).Scopes(search.Users(q))
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, apperr.FromStore(err, "user")
	}
	var users []models.User
	if err := query().Order("created_at DESC").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, apperr.FromStore(err, "user")
	}
	return users, total, nil
}

// SetActive enables or disables an account. Disabled accounts cannot log in
// and their existing tokens stop resolving.
func (s *AccountService) SetActive(ctx context.Context, actor policy.Principal, id uuid.UUID, active bool) (*models.User, error) {
	if err := policy.Check(actor, policy.ActionAdminister, uuid.Nil); err != nil {
		return nil, err
	}
	if id == actor.UserID && !active {
		return nil, apperr.Validation("cannot disable your own account", nil)
	}
	res := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return nil, apperr.FromStore(res.Error, "user")
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("user not found")
	}
	s.Log.WithFields(logrus.Fields{"user_id": id, "active": active}).Info("account status changed")
	return s.Get(ctx, id)
}
