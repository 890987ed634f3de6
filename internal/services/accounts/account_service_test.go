package accounts

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/policy"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/services/blob"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/testutil"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/utils"
)

func newService(t *testing.T) *AccountService {
	t.Helper()
	gdb := testutil.NewDB(t)
	store, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return NewAccountService(gdb, "secret", 60, store)
}

func register(t *testing.T, s *AccountService, username string) (policy.Principal, string) {
	t.Helper()
	u, token, err := s.Register(context.Background(), RegisterInput{
		Username:     username,
		Email:        strings.ToUpper(username) + "@Example.com",
		Password:     "password123",
		IsFreelancer: true,
	})
	require.NoError(t, err)
	return policy.FromUser(u), token
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	p, token := register(t, s, "alice")
	assert.True(t, p.IsFreelancer())
	assert.False(t, p.IsClient())

	claims, err := utils.ParseJWT("secret", token)
	require.NoError(t, err)
	assert.Equal(t, p.UserID.String(), claims.UserID)

	u, _, err := s.Login(ctx, "alice@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, p.UserID, u.ID)

	_, _, err = s.Login(ctx, "alice", "password123")
	assert.NoError(t, err, "username works as identifier")

	_, _, err = s.Login(ctx, "alice", "wrong-password")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	_, _, err = s.Login(ctx, "nobody", "password123")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestRegisterRejects(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	register(t, s, "alice")

	_, _, err := s.Register(ctx, RegisterInput{Username: "bob", Email: "ALICE@example.com", Password: "password123"})
	require.ErrorIs(t, err, apperr.ErrConflict)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Fields, "email")

	_, _, err = s.Register(ctx, RegisterInput{Username: "alice", Email: "other@example.com", Password: "password123"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, _, err = s.Register(ctx, RegisterInput{Username: "", Email: "bad", Password: "short"})
	require.ErrorIs(t, err, apperr.ErrValidation)
	require.ErrorAs(t, err, &appErr)
	assert.Len(t, appErr.Fields, 3)
}

func TestResolvePrincipal(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	p, token := register(t, s, "alice")

	got, err := s.ResolvePrincipal(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = s.ResolvePrincipal(ctx, "garbage")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	isClient := true
	_, err = s.UpdateMe(ctx, p, UserPatch{IsClient: &isClient})
	require.NoError(t, err)
	got, err = s.ResolvePrincipal(ctx, token)
	require.NoError(t, err)
	assert.True(t, got.IsClient(), "roles are read from the store")

	admin := policy.Principal{UserID: testutil.CreateUser(t, s.DB, "root", testutil.Superuser).ID, Caps: policy.CapSuperuser}
	_, err = s.SetActive(ctx, admin, p.UserID, false)
	require.NoError(t, err)
	_, err = s.ResolvePrincipal(ctx, token)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	_, _, err = s.Login(ctx, "alice", "password123")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestProfile(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	p, _ := register(t, s, "alice")

	prof, err := s.UpsertProfile(ctx, p, ProfileInput{
		Title:      "Go developer",
		Skills:     []string{"go", " ", "postgres"},
		HourlyRate: decimal.NewFromInt(25),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "postgres"}, []string(prof.Skills))

	prof, err = s.UpsertProfile(ctx, p, ProfileInput{Title: "Senior Go developer", HourlyRate: decimal.NewFromInt(40)})
	require.NoError(t, err)
	assert.Equal(t, "Senior Go developer", prof.Title)
	assert.True(t, prof.HourlyRate.Equal(decimal.NewFromInt(40)))

	_, err = s.UpsertProfile(ctx, p, ProfileInput{HourlyRate: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = s.UpsertProfile(ctx, policy.Anonymous(), ProfileInput{})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	u, err := s.Get(ctx, p.UserID)
	require.NoError(t, err)
	require.NotNil(t, u.Profile)
	assert.Equal(t, "Senior Go developer", u.Profile.Title)
}

func TestSetAvatar(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	p, _ := register(t, s, "alice")

	_, err := s.SetAvatar(ctx, p, "cv.pdf", strings.NewReader("%PDF"))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	prof, err := s.SetAvatar(ctx, p, "me.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(prof.AvatarURL, "/api/files/avatar_"), prof.AvatarURL)
}

func TestListUsers(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	p, _ := register(t, s, "alice")
	register(t, s, "bob")

	_, _, err := s.ListUsers(ctx, p, "", 0, 20)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	admin := policy.Principal{UserID: testutil.CreateUser(t, s.DB, "root", testutil.Superuser).ID, Caps: policy.CapSuperuser}
	users, total, err := s.ListUsers(ctx, admin, "ALI", 0, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)

	_, total, err = s.ListUsers(ctx, admin, "", 0, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
}
