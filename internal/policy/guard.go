package policy

import (
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/apperr"
)

type Action string

const (
	ActionReadPublic    Action = "read_public" // jobs and categories
	ActionRead          Action = "read"
	ActionCreate        Action = "create"
	ActionCloseJob      Action = "close_job"
	ActionFreelance     Action = "freelance"
	ActionModify        Action = "modify"
	ActionAdminister    Action = "administer"
	ActionHoldEscrow    Action = "hold_escrow"
	ActionReleaseEscrow Action = "release_escrow"
)

// Check applies the role and ownership rule for action. owner is the user
// owning the targeted resource; it is ignored by actions that do not look at
// ownership. Anonymous callers get Unauthenticated, everyone else Forbidden.
func Check(p Principal, action Action, owner uuid.UUID) error {
	switch action {
	case ActionReadPublic:
		return nil

	case ActionHoldEscrow, ActionReleaseEscrow:
		if p.IsSystem() {
			return nil
		}
		if !p.Authenticated() {
			return apperr.Unauthenticated("authentication required")
		}
		if !p.Owns(owner) {
			return apperr.Forbidden("only the job's client can move its escrow")
		}
		return nil
	}

	if !p.Authenticated() {
		return apperr.Unauthenticated("authentication required")
	}

	switch action {
	case ActionRead, ActionCreate:
		return nil
	case ActionCloseJob:
		if !p.Has(CapClient) && !p.Has(CapSuperuser) {
			return apperr.Forbidden("forbidden: client role required")
		}
		if !p.Owns(owner) {
			return apperr.Forbidden("forbidden: not the job owner")
		}
		return nil
	case ActionFreelance:
		if !p.Has(CapFreelancer) {
			return apperr.Forbidden("forbidden: freelancer role required")
		}
		return nil
	case ActionModify:
		if !p.Owns(owner) {
			return apperr.Forbidden("forbidden: not the owner")
		}
		return nil
	case ActionAdminister:
		if !p.Has(CapSuperuser) {
			return apperr.Forbidden("forbidden: superuser required")
		}
		return nil
	}
	return apperr.Forbidden("forbidden: unknown action")
}
