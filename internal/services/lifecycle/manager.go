// Package lifecycle enforces the job, proposal, payment and review state
// machine. Every operation runs in one store transaction; a failed operation
// leaves no trace. Events are published only after commit.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/logging"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/models"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/realtime"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/services/wallet"
)

type Manager struct {
	db       *gorm.DB
	wallet   *wallet.WalletService
	notifier realtime.Notifier
	log      *logrus.Logger
	now      func() time.Time

	intentTimeout time.Duration
}

// DefaultIntentTimeout bounds the gateway call made while the job row is locked.
const DefaultIntentTimeout = 10 * time.Second

type Option func(*Manager)

// WithWallet credits the accepted freelancer's ledger on escrow release.
func WithWallet(w *wallet.WalletService) Option { return func(m *Manager) { m.wallet = w } }

func WithNotifier(n realtime.Notifier) Option { return func(m *Manager) { m.notifier = n } }

func WithLogger(l *logrus.Logger) Option { return func(m *Manager) { m.log = l } }

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func WithIntentTimeout(d time.Duration) Option { return func(m *Manager) { m.intentTimeout = d } }

func NewManager(db *gorm.DB, opts ...Option) *Manager {
	m := &Manager{
		db:       db,
		notifier: realtime.Nop{},
		log:      logging.Discard(),
		now:      time.Now,

		intentTimeout: DefaultIntentTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// inTx runs fn in a transaction. Anything fn returns that is not already an
// *apperr.Error is treated as a store failure.
func (m *Manager) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := m.db.WithContext(ctx).Transaction(fn)
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	m.log.WithError(err).Error("lifecycle: store failure")
	return apperr.Unavailable(err)
}

// lockForUpdate is dropped by drivers without row locks (sqlite), where the
// single writer gives the same serialization.
var lockForUpdate = clause.Locking{Strength: "UPDATE"}

func lockJob(tx *gorm.DB, id uuid.UUID) (*models.Job, error) {
	var job models.Job
	err := tx.Clauses(lockForUpdate).First(&job, "id = ?", id).Error
	if err != nil {
		return nil, apperr.FromStore(err, "job")
	}
	return &job, nil
}

// acceptedProposal returns the job's accepted proposal, or nil when none has
// been accepted yet.
func acceptedProposal(tx *gorm.DB, jobID uuid.UUID) (*models.Proposal, error) {
	var p models.Proposal
	err := tx.Where("job_id = ? AND status = ?", jobID, models.ProposalAccepted).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.FromStore(err, "proposal")
	}
	return &p, nil
}

func (m *Manager) notify(ctx context.Context, userID uuid.UUID, ev realtime.Event) {
	if userID == uuid.Nil {
		return
	}
	ev.At = m.now()
	if err := m.notifier.Notify(ctx, userID, ev); err != nil {
		m.log.WithError(err).WithFields(logrus.Fields{
			"event":   ev.Type,
			"user_id": userID,
		}).Warn("lifecycle: notification not delivered")
	}
}
