package lifecycle

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/models"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/policy"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/realtime"
)

// IntentFunc asks an external gateway for a payment intent. It is called
// inside the create transaction, after every check has passed, so a
// gateway failure rolls the payment back. Its context expires after the
// manager's intent timeout.
type IntentFunc func(ctx context.Context, p *models.Payment) (reference, checkoutURL string, err error)

type PaymentInput struct {
	// Amount defaults to the accepted bid when zero.
	Amount decimal.Decimal
	// Fund holds the escrow as part of creation.
	Fund   bool
	Intent IntentFunc
}

func lockPayment(tx *gorm.DB, id uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	if err := tx.Clauses(lockForUpdate).First(&p, "id = ?", id).Error; err != nil {
		return nil, apperr.FromStore(err, "payment")
	}
	return &p, nil
}

// CreatePayment opens the job's single payment record once a proposal has
// been accepted.
func (m *Manager) CreatePayment(ctx context.Context, actor policy.Principal, jobID uuid.UUID, in PaymentInput) (*models.Payment, error) {
	if err := policy.Check(actor, policy.ActionCreate, uuid.Nil); err != nil {
		return nil, err
	}
	if in.Amount.IsNegative() {
		errs := apperr.FieldErrors{}
		errs.Add("amount", "amount must be greater than zero")
		return nil, apperr.Validation("validation error", errs)
	}

	var (
		pay        *models.Payment
		freelancer uuid.UUID
	)
	err := m.inTx(ctx, func(tx *gorm.DB) error {
		job, err := lockJob(tx, jobID)
		if err != nil {
			return err
		}
		if !actor.Owns(job.ClientID) {
			return apperr.Forbidden("forbidden: only the job's client may create its payment")
		}

		var n int64
		if err := tx.Model(&models.Payment{}).Where("job_id = ?", jobID).Count(&n).Error; err != nil {
			return apperr.FromStore(err, "payment")
		}
		if n > 0 {
			return apperr.Conflict("payment already exists for this job")
		}

		accepted, err := acceptedProposal(tx, jobID)
		if err != nil {
			return err
		}
		if accepted == nil {
			return apperr.InvalidState("job has no accepted proposal")
		}
		freelancer = accepted.FreelancerID

		amount := in.Amount
		if amount.IsZero() {
			amount = accepted.BidAmount
		}
		pay = &models.Payment{ID: uuid.New(), JobID: jobID, Amount: amount}
		if in.Fund {
			now := m.now()
			pay.EscrowHeld = true
			pay.HeldAt = &now
		}

		if in.Intent != nil {
			ictx, cancel := context.WithTimeout(ctx, m.intentTimeout)
			ref, url, err := in.Intent(ictx, pay)
			cancel()
			if err != nil {
				return apperr.Unavailable(fmt.Errorf("payment gateway: %w", err))
			}
			pay.PaymentIntent, pay.CheckoutURL = ref, url
		}

		return apperr.FromStore(tx.Create(pay).Error, "payment")
	})
	if err != nil {
		return nil, err
	}

	m.log.WithFields(logrus.Fields{
		"payment_id": pay.ID, "job_id": jobID, "amount": pay.Amount.String(), "held": pay.EscrowHeld,
	}).Info("payment created")
	if pay.EscrowHeld {
		m.notify(ctx, freelancer, realtime.Event{
			Type: realtime.EventPaymentHeld, JobID: jobID, EntityID: pay.ID, ActorID: actor.UserID,
		})
	}
	return pay, nil
}

// HoldEscrow marks a payment funded. A payment can be held only once.
func (m *Manager) HoldEscrow(ctx context.Context, actor policy.Principal, paymentID uuid.UUID) (*models.Payment, error) {
	var (
		pay        *models.Payment
		freelancer uuid.UUID
	)
	err := m.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		if pay, err = lockPayment(tx, paymentID); err != nil {
			return err
		}
		var job models.Job
		if err := tx.First(&job, "id = ?", pay.JobID).Error; err != nil {
			return apperr.FromStore(err, "job")
		}
		if err := policy.Check(actor, policy.ActionHoldEscrow, job.ClientID); err != nil {
			return err
		}
		if pay.EscrowHeld {
			return apperr.InvalidState("escrow is already held")
		}

		now := m.now()
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND escrow_held = ?", pay.ID, false).
			Updates(map[string]interface{}{"escrow_held": true, "held_at": now})
		if res.Error != nil {
			return apperr.FromStore(res.Error, "payment")
		}
		if res.RowsAffected == 0 {
			return apperr.InvalidState("escrow is already held")
		}
		pay.EscrowHeld, pay.HeldAt = true, &now

		if accepted, err := acceptedProposal(tx, job.ID); err != nil {
			return err
		} else if accepted != nil {
			freelancer = accepted.FreelancerID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.WithFields(logrus.Fields{"payment_id": pay.ID, "job_id": pay.JobID}).Info("escrow held")
	m.notify(ctx, freelancer, realtime.Event{
		Type: realtime.EventPaymentHeld, JobID: pay.JobID, EntityID: pay.ID, ActorID: actor.UserID,
	})
	return pay, nil
}

// HoldEscrowByIntent holds the payment carrying the given gateway reference.
func (m *Manager) HoldEscrowByIntent(ctx context.Context, actor policy.Principal, reference string) (*models.Payment, error) {
	if reference == "" {
		return nil, apperr.Validation("payment reference is required", nil)
	}
	var pay models.Payment
	err := m.db.WithContext(ctx).Select("id").Where("payment_intent = ?", reference).Take(&pay).Error
	if err != nil {
		return nil, apperr.FromStore(err, "payment")
	}
	return m.HoldEscrow(ctx, actor, pay.ID)
}

// ReleaseEscrow pays out held escrow. It succeeds once per payment, only
// after a hold, and credits the accepted freelancer's wallet with the amount
// net of the platform fee in the same transaction.
func (m *Manager) ReleaseEscrow(ctx context.Context, actor policy.Principal, paymentID uuid.UUID) (*models.Payment, error) {
	var (
		pay        *models.Payment
		freelancer uuid.UUID
	)
	err := m.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		if pay, err = lockPayment(tx, paymentID); err != nil {
			return err
		}
		var job models.Job
		if err := tx.First(&job, "id = ?", pay.JobID).Error; err != nil {
			return apperr.FromStore(err, "job")
		}
		if err := policy.Check(actor, policy.ActionReleaseEscrow, job.ClientID); err != nil {
			return err
		}
		if !pay.EscrowHeld {
			return apperr.InvalidState("escrow has not been held")
		}
		if pay.Released {
			return apperr.InvalidState("escrow has already been released")
		}

		now := m.now()
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND escrow_held = ? AND released = ?", pay.ID, true, false).
			Updates(map[string]interface{}{"released": true, "released_at": now})
		if res.Error != nil {
			return apperr.FromStore(res.Error, "payment")
		}
		if res.RowsAffected == 0 {
			return apperr.InvalidState("escrow has already been released")
		}
		pay.Released, pay.ReleasedAt = true, &now

		accepted, err := acceptedProposal(tx, job.ID)
		if err != nil {
			return err
		}
		if accepted == nil {
			return apperr.InvalidState("job has no accepted proposal")
		}
		freelancer = accepted.FreelancerID

		if m.wallet != nil {
			net, _ := m.wallet.Split(pay.Amount)
			if net.IsPositive() {
				desc := fmt.Sprintf("escrow release for job %s", job.ID)
				if err := m.wallet.CreditFreelancer(tx, freelancer, net, pay.ID, desc); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.WithFields(logrus.Fields{"payment_id": pay.ID, "job_id": pay.JobID}).Info("escrow released")
	m.notify(ctx, freelancer, realtime.Event{
		Type: realtime.EventPaymentReleased, JobID: pay.JobID, EntityID: pay.ID, ActorID: actor.UserID,
	})
	return pay, nil
}
