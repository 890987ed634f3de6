package lifecycle

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/models"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/policy"
)

type JobInput struct {
	Title       string
	Description string
	Budget      decimal.Decimal
	Deadline    *time.Time
	CategoryID  *uuid.UUID
	Skills      []string
}

// JobPatch carries the fields to change; nil leaves a field as it is.
type JobPatch struct {
	Title         *string
	Description   *string
	Budget        *decimal.Decimal
	Deadline      *time.Time
	ClearDeadline bool
	CategoryID    *uuid.UUID
	ClearCategory bool
	Skills        *[]string
}

func validateJobFields(errs apperr.FieldErrors, title, description *string, budget *decimal.Decimal) {
	if title != nil {
		t := strings.TrimSpace(*title)
		switch {
		case t == "":
			errs.Add("title", "title is required")
		case utf8.RuneCountInString(t) > 200:
			errs.Add("title", "title must be at most 200 characters")
		}
	}
	if description != nil && strings.TrimSpace(*description) == "" {
		errs.Add("description", "description is required")
	}
	if budget != nil && !budget.IsPositive() {
		errs.Add("budget", "budget must be greater than zero")
	}
}

func cleanSkills(in []string) datatypes.JSONSlice[string] {
	out := make(datatypes.JSONSlice[string], 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func checkCategory(tx *gorm.DB, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	var n int64
	if err := tx.Model(&models.Category{}).Where("id = ?", *id).Count(&n).Error; err != nil {
		return apperr.FromStore(err, "category")
	}
	if n == 0 {
		errs := apperr.FieldErrors{}
		errs.Add("category_id", "unknown category")
		return apperr.Validation("validation error", errs)
	}
	return nil
}

// CreateJob opens a new job owned by actor.
func (m *Manager) CreateJob(ctx context.Context, actor policy.Principal, in JobInput) (*models.Job, error) {
	if err := policy.Check(actor, policy.ActionCreate, uuid.Nil); err != nil {
		return nil, err
	}

	errs := apperr.FieldErrors{}
	validateJobFields(errs, &in.Title, &in.Description, &in.Budget)
	if len(errs) > 0 {
		return nil, apperr.Validation("validation error", errs)
	}

	job := &models.Job{
		ClientID:    actor.UserID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Budget:      in.Budget,
		CategoryID:  in.CategoryID,
		Skills:      cleanSkills(in.Skills),
		IsOpen:      true,
	}
	if in.Deadline != nil {
		d := datatypes.Date(*in.Deadline)
		job.Deadline = &d
	}

	err := m.inTx(ctx, func(tx *gorm.DB) error {
		if err := checkCategory(tx, in.CategoryID); err != nil {
			return err
		}
		return apperr.FromStore(tx.Create(job).Error, "job")
	})
	if err != nil {
		return nil, err
	}

	m.log.WithFields(logrus.Fields{"job_id": job.ID, "client_id": job.ClientID}).Info("job created")
	return job, nil
}

// UpdateJob edits an existing job. Only the owner or a superuser may do so,
// and is_open is never touched here.
func (m *Manager) UpdateJob(ctx context.Context, actor policy.Principal, jobID uuid.UUID, patch JobPatch) (*models.Job, error) {
	if err := policy.Check(actor, policy.ActionCreate, uuid.Nil); err != nil {
		return nil, err
	}

	errs := apperr.FieldErrors{}
	validateJobFields(errs, patch.Title, patch.Description, patch.Budget)
	if len(errs) > 0 {
		return nil, apperr.Validation("validation error", errs)
	}

	var job *models.Job
	err := m.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		if job, err = lockJob(tx, jobID); err != nil {
			return err
		}
		if err := policy.Check(actor, policy.ActionModify, job.ClientID); err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if patch.Title != nil {
			updates["title"] = strings.TrimSpace(*patch.Title)
		}
		if patch.Description != nil {
			updates["description"] = strings.TrimSpace(*patch.Description)
		}
		if patch.Budget != nil {
			updates["budget"] = *patch.Budget
		}
		switch {
		case patch.ClearDeadline:
			updates["deadline"] = nil
		case patch.Deadline != nil:
			updates["deadline"] = datatypes.Date(*patch.Deadline)
		}
		switch {
		case patch.ClearCategory:
			updates["category_id"] = nil
		case patch.CategoryID != nil:
			if err := checkCategory(tx, patch.CategoryID); err != nil {
				return err
			}
			updates["category_id"] = *patch.CategoryID
		}
		if patch.Skills != nil {
			updates["skills"] = cleanSkills(*patch.Skills)
		}
		if len(updates) == 0 {
			return nil
		}

		if err := tx.Model(job).Updates(updates).Error; err != nil {
			return apperr.FromStore(err, "job")
		}
		return apperr.FromStore(tx.First(job, "id = ?", jobID).Error, "job")
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// DeleteJob removes a job and, through the store's cascade, everything the
// job owns.
func (m *Manager) DeleteJob(ctx context.Context, actor policy.Principal, jobID uuid.UUID) error {
	if err := policy.Check(actor, policy.ActionCreate, uuid.Nil); err != nil {
		return err
	}
	return m.inTx(ctx, func(tx *gorm.DB) error {
		job, err := lockJob(tx, jobID)
		if err != nil {
			return err
		}
		if err := policy.Check(actor, policy.ActionModify, job.ClientID); err != nil {
			return err
		}
		return apperr.FromStore(tx.Delete(&models.Job{}, "id = ?", jobID).Error, "job")
	})
}

// CloseJob stops a job from receiving proposals. Closing a job that is
// already closed succeeds and changes nothing.
func (m *Manager) CloseJob(ctx context.Context, actor policy.Principal, jobID uuid.UUID) (*models.Job, error) {
	if err := policy.Check(actor, policy.ActionCreate, uuid.Nil); err != nil {
		return nil, err
	}

	var job *models.Job
	err := m.inTx(ctx, func(tx *gorm.DB) error {
		var err error
		if job, err = lockJob(tx, jobID); err != nil {
			return err
		}
		if err := policy.Check(actor, policy.ActionCloseJob, job.ClientID); err != nil {
			return err
		}
		if !job.IsOpen {
			return nil
		}
		if err := tx.Model(job).Update("is_open", false).Error; err != nil {
			return apperr.FromStore(err, "job")
		}
		job.IsOpen = false
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.WithField("job_id", job.ID).Info("job closed")
	return job, nil
}
