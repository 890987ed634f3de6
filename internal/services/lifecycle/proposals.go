package lifecycle

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/models"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/policy"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/realtime"
)

const DefaultTimeframeDays = 7

type ProposalInput struct {
	CoverLetter   string
	BidAmount     decimal.Decimal
	TimeframeDays int // zero means DefaultTimeframeDays
}

type ProposalPatch struct {
	CoverLetter   *string
	BidAmount     *decimal.Decimal
	TimeframeDays *int
}

func validateProposalFields(errs apperr.FieldErrors, cover *string, bid *decimal.Decimal, days *int) {
	if cover != nil && strings.TrimSpace(*cover) == "" {
		errs.Add("cover_letter", "cover letter is required")
	}
	if bid != nil && !bid.IsPositive() {
		errs.Add("bid_amount", "bid amount must be greater than zero")
	}
	if days != nil && *days < 1 {
		errs.Add("timeframe_days", "timeframe must be at least one day")
	}
}

func lockProposal(tx *gorm.DB, id uuid.UUID) (*models.Proposal, error) {
	var p models.Proposal
	if err := tx.Clauses(lockForUpdate).First(&p, "id = ?", id).Error; err != nil {
		return nil, apperr.FromStore(err, "proposal")
	}
	return &p, nil
}

// SubmitProposal files actor's bid on an open job. A freelancer holds at most
// one proposal per job.
func (m *Manager) SubmitProposal(ctx context.Context, actor policy.Principal, jobID uuid.UUID, in ProposalInput) (*models.Proposal, error) {
	if err := policy.Check(actor, policy.ActionCreate, uuid.Nil); err != nil {
		return nil, err
	}

	if in.TimeframeDays == 0 {
		in.TimeframeDays = DefaultTimeframeDays
	}
	errs := apperr.FieldErrors{}
	validateProposalFields(errs, &in.CoverLetter, &in.BidAmount, &in.TimeframeDays)
	if len(errs) > 0 {
		return nil, apperr.Validation("validation error", errs)
	}

	p := &models.Proposal{
		JobID:         jobID,
		FreelancerID:  actor.UserID,
		CoverLetter:   strings.TrimSpace(in.CoverLetter),
		BidAmount:     in.BidAmount,
		TimeframeDays: in.TimeframeDays,
		Status:        models.ProposalPending,
	}

	var job *models.Job
	err := m.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		if job, err = lockJob(tx, jobID); err != nil {
			return err
		}
		if job.ClientID == actor.UserID {
			return apperr.Validation("cannot submit a proposal on your own job", nil)
		}
		if !job.IsOpen {
			return apperr.InvalidState("job is closed")
		}

		var n int64
		err = tx.Model(&models.Proposal{}).
			Where("job_id = ? AND freelancer_id = ?", jobID, actor.UserID).
			Count(&n).Error
		if err != nil {
			return apperr.FromStore(err, "proposal")
		}
		if n > 0 {
			return apperr.Conflict("proposal already submitted for this job")
		}

		if err := tx.Create(p).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("proposal already submitted for this job")
			}
			return apperr.FromStore(err, "proposal")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.WithFields(logrus.Fields{"proposal_id": p.ID, "job_id": jobID, "freelancer_id": actor.UserID}).Info("proposal submitted")
	m.notify(ctx, job.ClientID, realtime.Event{
		Type: realtime.EventProposalSubmitted, JobID: jobID, EntityID: p.ID, ActorID: actor.UserID,
	})
	return p, nil
}

// UpdateProposal lets the submitting freelancer revise a pending proposal.
func (m *Manager) UpdateProposal(ctx context.Context, actor policy.Principal, proposalID uuid.UUID, patch ProposalPatch) (*models.Proposal, error) {
	if err := policy.Check(actor, policy.ActionCreate, uuid.Nil); err != nil {
		return nil, err
	}

	errs := apperr.FieldErrors{}
	validateProposalFields(errs, patch.CoverLetter, patch.BidAmount, patch.TimeframeDays)
	if len(errs) > 0 {
		return nil, apperr.Validation("validation error", errs)
	}

	var p *models.Proposal
	err := m.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		if p, err = lockProposal(tx, proposalID); err != nil {
			return err
		}
		if !actor.Owns(p.FreelancerID) {
			return apperr.Forbidden("forbidden: only the submitting freelancer may edit a proposal")
		}
		if p.Status != models.ProposalPending {
			return apperr.InvalidState("proposal has already been decided")
		}

		updates := map[string]interface{}{}
		if patch.CoverLetter != nil {
			updates["cover_letter"] = strings.TrimSpace(*patch.CoverLetter)
		}
		if patch.BidAmount != nil {
			updates["bid_amount"] = *patch.BidAmount
		}
		if patch.TimeframeDays != nil {
			updates["timeframe_days"] = *patch.TimeframeDays
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(p).Updates(updates).Error; err != nil {
			return apperr.FromStore(err, "proposal")
		}
		return apperr.FromStore(tx.First(p, "id = ?", proposalID).Error, "proposal")
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// WithdrawProposal deletes a pending proposal on behalf of its freelancer.
func (m *Manager) WithdrawProposal(ctx context.Context, actor policy.Principal, proposalID uuid.UUID) error {
	if err := policy.Check(actor, policy.ActionCreate, uuid.Nil); err != nil {
		return err
	}
	return m.inTx(ctx, func(tx *gorm.DB) error {
		p, err := lockProposal(tx, proposalID)
		if err != nil {
			return err
		}
		if !actor.Owns(p.FreelancerID) {
			return apperr.Forbidden("forbidden: only the submitting freelancer may withdraw a proposal")
		}
		if p.Status != models.ProposalPending {
			return apperr.InvalidState("proposal has already been decided")
		}
		return apperr.FromStore(tx.Delete(&models.Proposal{}, "id = ?", proposalID).Error, "proposal")
	})
}

// AcceptProposal marks a pending proposal accepted and closes its job in the
// same transaction. The job row is locked and both updates are conditional,
// so of two concurrent accepts on one job only the first to commit succeeds.
// Sibling proposals stay pending.
func (m *Manager) AcceptProposal(ctx context.Context, actor policy.Principal, proposalID uuid.UUID) (*models.Proposal, error) {
	if err := policy.Check(actor, policy.ActionCreate, uuid.Nil); err != nil {
		return nil, err
	}

	var p models.Proposal
	err := m.inTx(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&p, "id = ?", proposalID).Error; err != nil {
			return apperr.FromStore(err, "proposal")
		}
		job, err := lockJob(tx, p.JobID)
		if err != nil {
			return err
		}
		if !actor.Owns(job.ClientID) {
			return apperr.Forbidden("forbidden: only the job's client may accept proposals")
		}
		// Re-read under the job lock.
		if err := tx.First(&p, "id = ?", proposalID).Error; err != nil {
			return apperr.FromStore(err, "proposal")
		}
		if p.Status != models.ProposalPending {
			return apperr.InvalidState("proposal has already been decided")
		}
		if !job.IsOpen {
			return apperr.InvalidState("job is closed")
		}

		res := tx.Model(&models.Job{}).
			Where("id = ? AND is_open = ?", job.ID, true).
			Update("is_open", false)
		if res.Error != nil {
			return apperr.FromStore(res.Error, "job")
		}
		if res.RowsAffected == 0 {
			return apperr.InvalidState("job is closed")
		}

		res = tx.Model(&models.Proposal{}).
			Where("id = ? AND status = ?", p.ID, models.ProposalPending).
			Update("status", models.ProposalAccepted)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				return apperr.InvalidState("job already has an accepted proposal")
			}
			return apperr.FromStore(res.Error, "proposal")
		}
		if res.RowsAffected == 0 {
			return apperr.InvalidState("proposal has already been decided")
		}
		p.Status = models.ProposalAccepted
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.WithFields(logrus.Fields{"proposal_id": p.ID, "job_id": p.JobID}).Info("proposal accepted, job closed")
	m.notify(ctx, p.FreelancerID, realtime.Event{
		Type: realtime.EventProposalAccepted, JobID: p.JobID, EntityID: p.ID, ActorID: actor.UserID,
	})
	return &p, nil
}

// RejectProposal declines a pending proposal. The job is left as it is.
func (m *Manager) RejectProposal(ctx context.Context, actor policy.Principal, proposalID uuid.UUID) (*models.Proposal, error) {
	if err := policy.Check(actor, policy.ActionCreate, uuid.Nil); err != nil {
		return nil, err
	}

	var p models.Proposal
	err := m.inTx(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&p, "id = ?", proposalID).Error; err != nil {
			return apperr.FromStore(err, "proposal")
		}
		job, err := lockJob(tx, p.JobID)
		if err != nil {
			return err
		}
		if !actor.Owns(job.ClientID) {
			return apperr.Forbidden("forbidden: only the job's client may reject proposals")
		}

		res := tx.Model(&models.Proposal{}).
			Where("id = ? AND status = ?", p.ID, models.ProposalPending).
			Update("status", models.ProposalRejected)
		if res.Error != nil {
			return apperr.FromStore(res.Error, "proposal")
		}
		if res.RowsAffected == 0 {
			return apperr.InvalidState("proposal has already been decided")
		}
		p.Status = models.ProposalRejected
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.WithFields(logrus.Fields{"proposal_id": p.ID, "job_id": p.JobID}).Info("proposal rejected")
	m.notify(ctx, p.FreelancerID, realtime.Event{
		Type: realtime.EventProposalRejected, JobID: p.JobID, EntityID: p.ID, ActorID: actor.UserID,
	})
	return &p, nil
}
