package lifecycle

import (
	"context"
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

type ReviewInput struct {
	RevieweeID uuid.UUID
	Rating     int
	Comment    string
}

// FileReview records the single review of a job. Either party of an
// accepted proposal may file it about the other. The reviewee's profile
// rating is recomputed in the same transaction.
func (m *Manager) FileReview(ctx context.Context, actor policy.Principal, jobID uuid.UUID, in ReviewInput) (*models.Review, error) {
	if err := policy.Check(actor, policy.ActionCreate, uuid.Nil); err != nil {
		return nil, err
	}
	if in.Rating < models.MinRating || in.Rating > models.MaxRating {
		errs := apperr.FieldErrors{}
		errs.Add("rating", "rating must be between 1 and 5")
		return nil, apperr.Validation("validation error", errs)
	}

	review := &models.Review{
		JobID:      jobID,
		ReviewerID: actor.UserID,
		RevieweeID: in.RevieweeID,
		Rating:     in.Rating,
		Comment:    strings.TrimSpace(in.Comment),
	}

	err := m.inTx(ctx, func(tx *gorm.DB) error {
		job, err := lockJob(tx, jobID)
		if err != nil {
			return err
		}

		var n int64
		if err := tx.Model(&models.Review{}).Where("job_id = ?", jobID).Count(&n).Error; err != nil {
			return apperr.FromStore(err, "review")
		}
		if n > 0 {
			return apperr.Conflict("review already exists for this job")
		}

		accepted, err := acceptedProposal(tx, jobID)
		if err != nil {
			return err
		}
		if accepted == nil {
			return apperr.InvalidState("job has no accepted proposal")
		}

		var other uuid.UUID
		switch actor.UserID {
		case job.ClientID:
			other = accepted.FreelancerID
		case accepted.FreelancerID:
			other = job.ClientID
		default:
			return apperr.Forbidden("forbidden: only the job's client or its freelancer may review")
		}
		if in.RevieweeID != other {
			errs := apperr.FieldErrors{}
			errs.Add("reviewee_id", "reviewee must be the other party of the job")
			return apperr.Validation("validation error", errs)
		}

		if err := tx.Create(review).Error; err != nil {
			return apperr.FromStore(err, "review")
		}
		return refreshRating(tx, in.RevieweeID)
	})
	if err != nil {
		return nil, err
	}

	m.log.WithFields(logrus.Fields{"review_id": review.ID, "job_id": jobID, "rating": review.Rating}).Info("review filed")
	m.notify(ctx, review.RevieweeID, realtime.Event{
		Type: realtime.EventReviewFiled, JobID: jobID, EntityID: review.ID, ActorID: actor.UserID,
	})
	return review, nil
}

// refreshRating stores the reviewee's average received rating on their
// profile, if they have one.
func refreshRating(tx *gorm.DB, userID uuid.UUID) error {
	var avg decimal.NullDecimal
	row := tx.Model(&models.Review{}).
		Select("AVG(rating)").
		Where("reviewee_id = ?", userID).
		Row()
	if err := row.Scan(&avg); err != nil {
		return apperr.FromStore(err, "review")
	}
	if !avg.Valid {
		return nil
	}
	err := tx.Model(&models.Profile{}).
		Where("user_id = ?", userID).
		Update("rating", avg.Decimal.Round(2)).Error
	return apperr.FromStore(err, "profile")
}
