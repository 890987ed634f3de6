package policy

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/models"
)

func TestFromUserKeepsFlagsIndependent(t *testing.T) {
	u := &models.User{ID: uuid.New(), IsClient: true, IsFreelancer: true}
	p := FromUser(u)

	assert.True(t, p.IsClient())
	assert.True(t, p.IsFreelancer())
	assert.False(t, p.IsSuperuser())
	assert.True(t, p.Owns(u.ID))
	assert.False(t, p.Owns(uuid.New()))
}

func TestAnonymous(t *testing.T) {
	anon := Anonymous()

	assert.False(t, anon.Authenticated())
	assert.NoError(t, Check(anon, ActionReadPublic, uuid.Nil))
	assert.ErrorIs(t, Check(anon, ActionCreate, uuid.Nil), apperr.ErrUnauthenticated)
	assert.ErrorIs(t, Check(anon, ActionRead, uuid.Nil), apperr.ErrUnauthenticated)
	assert.ErrorIs(t, Check(anon, ActionReleaseEscrow, uuid.New()), apperr.ErrUnauthenticated)
}

func TestCheck(t *testing.T) {
	owner := uuid.New()
	client := Principal{UserID: owner, Caps: CapClient}
	otherClient := Principal{UserID: uuid.New(), Caps: CapClient}
	freelancer := Principal{UserID: uuid.New(), Caps: CapFreelancer}
	admin := Principal{UserID: uuid.New(), Caps: CapSuperuser}

	tests := []struct {
		name      string
		principal Principal
		action    Action
		wantErr   error
	}{
		{"client creates", client, ActionCreate, nil},
		{"freelancer creates", freelancer, ActionCreate, nil},
		{"owner closes", client, ActionCloseJob, nil},
		{"other client cannot close", otherClient, ActionCloseJob, apperr.ErrForbidden},
		{"freelancer cannot close", freelancer, ActionCloseJob, apperr.ErrForbidden},
		{"superuser closes", admin, ActionCloseJob, nil},
		{"freelancer role", freelancer, ActionFreelance, nil},
		{"client lacks freelancer role", client, ActionFreelance, apperr.ErrForbidden},
		{"owner modifies", client, ActionModify, nil},
		{"stranger modifies", freelancer, ActionModify, apperr.ErrForbidden},
		{"superuser modifies", admin, ActionModify, nil},
		{"owner releases", client, ActionReleaseEscrow, nil},
		{"stranger releases", otherClient, ActionReleaseEscrow, apperr.ErrForbidden},
		{"system holds", System(), ActionHoldEscrow, nil},
		{"system releases", System(), ActionReleaseEscrow, nil},
		{"only superuser administers", client, ActionAdminister, apperr.ErrForbidden},
		{"superuser administers", admin, ActionAdminister, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.principal, tt.action, owner)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSystemIsNotAUser(t *testing.T) {
	sys := System()
	assert.False(t, sys.Authenticated())
	assert.False(t, sys.Owns(uuid.Nil))
	assert.ErrorIs(t, Check(sys, ActionCreate, uuid.Nil), apperr.ErrUnauthenticated)
}
