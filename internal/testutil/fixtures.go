package testutil

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/models"
)

type Role uint8

const (
	Client Role = 1 << iota
	Freelancer
	Superuser
)

// CreateUser inserts an active user with the given role flags. The password
// is not a valid bcrypt hash; use the accounts service when login matters.
func CreateUser(t *testing.T, gdb *gorm.DB, username string, roles Role) *models.User {
	t.Helper()
	u := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		Password:     "x",
		IsClient:     roles&Client != 0,
		IsFreelancer: roles&Freelancer != 0,
		IsSuperuser:  roles&Superuser != 0,
		IsActive:     true,
	}
	require.NoError(t, gdb.Create(u).Error)
	return u
}

// CreateJob inserts an open job owned by client.
func CreateJob(t *testing.T, gdb *gorm.DB, client *models.User, title string, budget int64) *models.Job {
	t.Helper()
	j := &models.Job{
		ClientID:    client.ID,
		Title:       title,
		Description: title + " description",
		Budget:      decimal.NewFromInt(budget),
		IsOpen:      true,
	}
	require.NoError(t, gdb.Create(j).Error)
	return j
}
