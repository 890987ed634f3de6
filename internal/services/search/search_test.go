package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/models"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/testutil"
)

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"go", "backend"}, Terms("  Go   BACKEND go "))
	assert.Equal(t, []string{"100", "off"}, Terms("100% off"))
	assert.Empty(t, Terms("   "))
	assert.Len(t, Terms("a b c d e f g h i j"), maxTerms)
}

func TestJobsScope(t *testing.T) {
	gdb := testutil.NewDB(t)
	client := testutil.CreateUser(t, gdb, "client", testutil.Client)

	api := testutil.CreateJob(t, gdb, client, "Build REST API", 500)
	logo := testutil.CreateJob(t, gdb, client, "Design a logo", 100)
	require.NoError(t, gdb.Model(logo).Update("skills", datatypes.JSONSlice[string]{"Figma", "Illustrator"}).Error)

	var got []models.Job
	require.NoError(t, gdb.Scopes(Jobs("rest api")).Find(&got).Error)
	require.Len(t, got, 1)
	assert.Equal(t, api.ID, got[0].ID)

	got = nil
	require.NoError(t, gdb.Scopes(Jobs("figma")).Find(&got).Error)
	require.Len(t, got, 1)
	assert.Equal(t, logo.ID, got[0].ID)

	got = nil
	require.NoError(t, gdb.Scopes(Jobs("description")).Find(&got).Error)
	assert.Len(t, got, 2)

	got = nil
	require.NoError(t, gdb.Scopes(Jobs("")).Find(&got).Error)
	assert.Len(t, got, 2)
}

func TestUsersScope(t *testing.T) {
	gdb := testutil.NewDB(t)
	testutil.CreateUser(t, gdb, "alice", testutil.Client)
	testutil.CreateUser(t, gdb, "bob", testutil.Freelancer)

	var got []models.User
	require.NoError(t, gdb.Scopes(Users("ALI")).Find(&got).Error)
	require.Len(t, got, 1)
	assert.Equal(t, "alice", got[0].Username)
}
