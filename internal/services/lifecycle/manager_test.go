package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/models"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/policy"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/realtime"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/services/wallet"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/testutil"
)

type fixture struct {
	db       *gorm.DB
	m        *Manager
	wallet   *wallet.WalletService
	events   *realtime.Recorder
	client   *models.User
	f1, f2   *models.User
	clientP  policy.Principal
	f1P, f2P policy.Principal
	job      *models.Job
}

func setup(t *testing.T) *fixture {
	t.Helper()
	gdb := testutil.NewDB(t)
	w := wallet.NewWalletService(gdb, decimal.NewFromInt(10))
	rec := realtime.NewRecorder()

	fx := &fixture{
		db:     gdb,
		wallet: w,
		events: rec,
		m:      NewManager(gdb, WithWallet(w), WithNotifier(rec)),
		client: testutil.CreateUser(t, gdb, "client", testutil.Client),
		f1:     testutil.CreateUser(t, gdb, "f1", testutil.Freelancer),
		f2:     testutil.CreateUser(t, gdb, "f2", testutil.Freelancer),
	}
	fx.clientP = policy.FromUser(fx.client)
	fx.f1P = policy.FromUser(fx.f1)
	fx.f2P = policy.FromUser(fx.f2)
	fx.job = testutil.CreateJob(t, gdb, fx.client, "Landing page", 500)
	return fx
}

func (fx *fixture) submit(t *testing.T, p policy.Principal, bid int64) *models.Proposal {
	t.Helper()
	prop, err := fx.m.SubmitProposal(context.Background(), p, fx.job.ID, ProposalInput{
		CoverLetter: "I can build this",
		BidAmount:   decimal.NewFromInt(bid),
	})
	require.NoError(t, err)
	return prop
}

func (fx *fixture) reload(t *testing.T, dst interface{}, id uuid.UUID) {
	t.Helper()
	require.NoError(t, fx.db.First(dst, "id = ?", id).Error)
}

// acceptedJob returns a fixture whose job has f1's proposal accepted.
func acceptedJob(t *testing.T) (*fixture, *models.Proposal) {
	t.Helper()
	fx := setup(t)
	p1 := fx.submit(t, fx.f1P, 450)
	_, err := fx.m.AcceptProposal(context.Background(), fx.clientP, p1.ID)
	require.NoError(t, err)
	return fx, p1
}

func TestAcceptScenario(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)

	p1 := fx.submit(t, fx.f1P, 450)
	p2 := fx.submit(t, fx.f2P, 480)
	assert.Equal(t, DefaultTimeframeDays, p1.TimeframeDays)
	assert.Equal(t, models.ProposalPending, p1.Status)

	accepted, err := fx.m.AcceptProposal(ctx, fx.clientP, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalAccepted, accepted.Status)

	var job models.Job
	fx.reload(t, &job, fx.job.ID)
	assert.False(t, job.IsOpen)

	_, err = fx.m.AcceptProposal(ctx, fx.clientP, p2.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	var sibling models.Proposal
	fx.reload(t, &sibling, p2.ID)
	assert.Equal(t, models.ProposalPending, sibling.Status, "siblings are not auto-rejected")

	assert.Equal(t, []string{realtime.EventProposalSubmitted, realtime.EventProposalSubmitted}, fx.events.Types(fx.client.ID))
	assert.Equal(t, []string{realtime.EventProposalAccepted}, fx.events.Types(fx.f1.ID))
	assert.Empty(t, fx.events.Types(fx.f2.ID))
}

func TestAcceptOnClosedJobLeavesProposalPending(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)
	p1 := fx.submit(t, fx.f1P, 450)

	_, err := fx.m.CloseJob(ctx, fx.clientP, fx.job.ID)
	require.NoError(t, err)

	_, err = fx.m.AcceptProposal(ctx, fx.clientP, p1.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	var p models.Proposal
	fx.reload(t, &p, p1.ID)
	assert.Equal(t, models.ProposalPending, p.Status)
}

func TestAcceptRequiresJobOwner(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)
	p1 := fx.submit(t, fx.f1P, 450)

	_, err := fx.m.AcceptProposal(ctx, fx.f2P, p1.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = fx.m.AcceptProposal(ctx, policy.Anonymous(), p1.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	admin := testutil.CreateUser(t, fx.db, "admin", testutil.Superuser)
	_, err = fx.m.AcceptProposal(ctx, policy.FromUser(admin), p1.ID)
	assert.NoError(t, err)
}

func TestConcurrentAcceptsOnOneJob(t *testing.T) {
	fx := setup(t)
	p1 := fx.submit(t, fx.f1P, 450)
	p2 := fx.submit(t, fx.f2P, 480)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []uuid.UUID{p1.ID, p2.ID} {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = fx.m.AcceptProposal(context.Background(), fx.clientP, id)
		}(i, id)
	}
	wg.Wait()

	var ok, invalid int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperr.ErrInvalidState):
			invalid++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, invalid)

	var n int64
	require.NoError(t, fx.db.Model(&models.Proposal{}).
		Where("job_id = ? AND status = ?", fx.job.ID, models.ProposalAccepted).
		Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestRejectProposal(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)
	p1 := fx.submit(t, fx.f1P, 450)

	_, err := fx.m.RejectProposal(ctx, fx.f1P, p1.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	rejected, err := fx.m.RejectProposal(ctx, fx.clientP, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalRejected, rejected.Status)

	_, err = fx.m.RejectProposal(ctx, fx.clientP, p1.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	_, err = fx.m.AcceptProposal(ctx, fx.clientP, p1.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	var job models.Job
	fx.reload(t, &job, fx.job.ID)
	assert.True(t, job.IsOpen)
	assert.Equal(t, []string{realtime.EventProposalRejected}, fx.events.Types(fx.f1.ID))
}

func TestSubmitProposal(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)
	fx.submit(t, fx.f1P, 450)

	t.Run("duplicate pair", func(t *testing.T) {
		_, err := fx.m.SubmitProposal(ctx, fx.f1P, fx.job.ID, ProposalInput{
			CoverLetter: "again", BidAmount: decimal.NewFromInt(400),
		})
		assert.ErrorIs(t, err, apperr.ErrConflict)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := fx.m.SubmitProposal(ctx, fx.f2P, fx.job.ID, ProposalInput{
			CoverLetter: " ", BidAmount: decimal.NewFromInt(-1), TimeframeDays: -3,
		})
		require.ErrorIs(t, err, apperr.ErrValidation)

		var appErr *apperr.Error
		require.True(t, errors.As(err, &appErr))
		assert.Contains(t, appErr.Fields, "cover_letter")
		assert.Contains(t, appErr.Fields, "bid_amount")
		assert.Contains(t, appErr.Fields, "timeframe_days")
	})

	t.Run("own job", func(t *testing.T) {
		_, err := fx.m.SubmitProposal(ctx, fx.clientP, fx.job.ID, ProposalInput{
			CoverLetter: "me", BidAmount: decimal.NewFromInt(1),
		})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("client role may bid elsewhere", func(t *testing.T) {
		other := testutil.CreateUser(t, fx.db, "other-client", testutil.Client)
		_, err := fx.m.SubmitProposal(ctx, policy.FromUser(other), fx.job.ID, ProposalInput{
			CoverLetter: "I can help", BidAmount: decimal.NewFromInt(300),
		})
		assert.NoError(t, err)
	})

	t.Run("unknown job", func(t *testing.T) {
		_, err := fx.m.SubmitProposal(ctx, fx.f2P, uuid.New(), ProposalInput{
			CoverLetter: "x", BidAmount: decimal.NewFromInt(1),
		})
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("closed job", func(t *testing.T) {
		_, err := fx.m.CloseJob(ctx, fx.clientP, fx.job.ID)
		require.NoError(t, err)
		_, err = fx.m.SubmitProposal(ctx, fx.f2P, fx.job.ID, ProposalInput{
			CoverLetter: "late", BidAmount: decimal.NewFromInt(100),
		})
		assert.ErrorIs(t, err, apperr.ErrInvalidState)
	})
}

func TestUpdateAndWithdrawProposal(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)
	p1 := fx.submit(t, fx.f1P, 450)

	bid := decimal.NewFromInt(420)
	_, err := fx.m.UpdateProposal(ctx, fx.f2P, p1.ID, ProposalPatch{BidAmount: &bid})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	updated, err := fx.m.UpdateProposal(ctx, fx.f1P, p1.ID, ProposalPatch{BidAmount: &bid})
	require.NoError(t, err)
	assert.True(t, updated.BidAmount.Equal(bid))

	require.NoError(t, fx.m.WithdrawProposal(ctx, fx.f1P, p1.ID))
	err = fx.m.WithdrawProposal(ctx, fx.f1P, p1.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	p2 := fx.submit(t, fx.f2P, 480)
	_, err = fx.m.AcceptProposal(ctx, fx.clientP, p2.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, fx.m.WithdrawProposal(ctx, fx.f2P, p2.ID), apperr.ErrInvalidState)
	_, err = fx.m.UpdateProposal(ctx, fx.f2P, p2.ID, ProposalPatch{BidAmount: &bid})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestJobCRUD(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)
	deadline := time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC)

	job, err := fx.m.CreateJob(ctx, fx.clientP, JobInput{
		Title:       "  Mobile app  ",
		Description: "Build it",
		Budget:      decimal.NewFromInt(1200),
		Deadline:    &deadline,
		Skills:      []string{"go", " ", "flutter"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Mobile app", job.Title)
	assert.True(t, job.IsOpen)
	assert.Equal(t, []string{"go", "flutter"}, []string(job.Skills))

	_, err = fx.m.CreateJob(ctx, fx.clientP, JobInput{Title: "x", Description: "y", Budget: decimal.NewFromInt(-5)})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = fx.m.CreateJob(ctx, policy.Anonymous(), JobInput{Title: "x", Description: "y", Budget: decimal.NewFromInt(5)})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	missing := uuid.New()
	_, err = fx.m.CreateJob(ctx, fx.clientP, JobInput{Title: "x", Description: "y", Budget: decimal.NewFromInt(5), CategoryID: &missing})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	title := "Mobile app v2"
	_, err = fx.m.UpdateJob(ctx, fx.f1P, job.ID, JobPatch{Title: &title})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	updated, err := fx.m.UpdateJob(ctx, fx.clientP, job.ID, JobPatch{Title: &title, ClearDeadline: true})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Nil(t, updated.Deadline)

	assert.ErrorIs(t, fx.m.DeleteJob(ctx, fx.f1P, job.ID), apperr.ErrForbidden)
	require.NoError(t, fx.m.DeleteJob(ctx, fx.clientP, job.ID))
	assert.ErrorIs(t, fx.m.DeleteJob(ctx, fx.clientP, job.ID), apperr.ErrNotFound)
}

func TestDeleteJobCascades(t *testing.T) {
	ctx := context.Background()
	fx, p1 := acceptedJob(t)

	require.NoError(t, fx.m.DeleteJob(ctx, fx.clientP, fx.job.ID))

	var n int64
	require.NoError(t, fx.db.Model(&models.Proposal{}).Where("id = ?", p1.ID).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCloseJob(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)
	both := testutil.CreateUser(t, fx.db, "both", testutil.Client|testutil.Freelancer)
	freelancerOwned := testutil.CreateJob(t, fx.db, fx.f1, "freelancer posted", 100)

	_, err := fx.m.CloseJob(ctx, fx.f1P, fx.job.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = fx.m.CloseJob(ctx, policy.FromUser(both), fx.job.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	// owning the job is not enough without the client role
	_, err = fx.m.CloseJob(ctx, fx.f1P, freelancerOwned.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	job, err := fx.m.CloseJob(ctx, fx.clientP, fx.job.ID)
	require.NoError(t, err)
	assert.False(t, job.IsOpen)

	job, err = fx.m.CloseJob(ctx, fx.clientP, fx.job.ID)
	require.NoError(t, err, "closing a closed job is a no-op")
	assert.False(t, job.IsOpen)
}

func TestEscrowScenario(t *testing.T) {
	ctx := context.Background()
	fx, _ := acceptedJob(t)

	pay, err := fx.m.CreatePayment(ctx, fx.clientP, fx.job.ID, PaymentInput{})
	require.NoError(t, err)
	assert.False(t, pay.EscrowHeld)
	assert.True(t, pay.Amount.Equal(decimal.NewFromInt(450)), "amount defaults to the accepted bid")

	_, err = fx.m.ReleaseEscrow(ctx, fx.clientP, pay.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState, "release before hold")

	held, err := fx.m.HoldEscrow(ctx, fx.clientP, pay.ID)
	require.NoError(t, err)
	assert.True(t, held.EscrowHeld)
	assert.NotNil(t, held.HeldAt)

	_, err = fx.m.HoldEscrow(ctx, fx.clientP, pay.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = fx.m.ReleaseEscrow(ctx, fx.f1P, pay.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	released, err := fx.m.ReleaseEscrow(ctx, fx.clientP, pay.ID)
	require.NoError(t, err)
	assert.True(t, released.Released)

	_, err = fx.m.ReleaseEscrow(ctx, fx.clientP, pay.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	var stored models.Payment
	fx.reload(t, &stored, pay.ID)
	assert.True(t, stored.EscrowHeld)
	assert.True(t, stored.Released)

	bal, err := fx.wallet.Balance(fx.db, fx.f1.ID)
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.NewFromInt(405)), bal.String())

	assert.Equal(t, []string{
		realtime.EventProposalAccepted, realtime.EventPaymentHeld, realtime.EventPaymentReleased,
	}, fx.events.Types(fx.f1.ID))
}

func TestCreatePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("requires accepted proposal", func(t *testing.T) {
		fx := setup(t)
		fx.submit(t, fx.f1P, 450)
		_, err := fx.m.CreatePayment(ctx, fx.clientP, fx.job.ID, PaymentInput{})
		assert.ErrorIs(t, err, apperr.ErrInvalidState)
	})

	t.Run("one per job", func(t *testing.T) {
		fx, _ := acceptedJob(t)
		_, err := fx.m.CreatePayment(ctx, fx.clientP, fx.job.ID, PaymentInput{Amount: decimal.NewFromInt(500), Fund: true})
		require.NoError(t, err)
		_, err = fx.m.CreatePayment(ctx, fx.clientP, fx.job.ID, PaymentInput{})
		assert.ErrorIs(t, err, apperr.ErrConflict)
	})

	t.Run("only the client", func(t *testing.T) {
		fx, _ := acceptedJob(t)
		_, err := fx.m.CreatePayment(ctx, fx.f1P, fx.job.ID, PaymentInput{})
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("negative amount", func(t *testing.T) {
		fx, _ := acceptedJob(t)
		_, err := fx.m.CreatePayment(ctx, fx.clientP, fx.job.ID, PaymentInput{Amount: decimal.NewFromInt(-1)})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("funded on creation", func(t *testing.T) {
		fx, _ := acceptedJob(t)
		pay, err := fx.m.CreatePayment(ctx, fx.clientP, fx.job.ID, PaymentInput{Fund: true})
		require.NoError(t, err)
		assert.True(t, pay.EscrowHeld)
		_, err = fx.m.HoldEscrow(ctx, fx.clientP, pay.ID)
		assert.ErrorIs(t, err, apperr.ErrInvalidState)
	})

	t.Run("gateway intent", func(t *testing.T) {
		fx, _ := acceptedJob(t)
		pay, err := fx.m.CreatePayment(ctx, fx.clientP, fx.job.ID, PaymentInput{
			Intent: func(_ context.Context, p *models.Payment) (string, string, error) {
				return "T-" + p.ID.String(), "https://pay.example.com/" + p.ID.String(), nil
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "T-"+pay.ID.String(), pay.PaymentIntent)

		held, err := fx.m.HoldEscrowByIntent(ctx, policy.System(), pay.PaymentIntent)
		require.NoError(t, err)
		assert.True(t, held.EscrowHeld)

		_, err = fx.m.HoldEscrowByIntent(ctx, policy.System(), "T-unknown")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("gateway failure leaves no payment", func(t *testing.T) {
		fx, _ := acceptedJob(t)
		_, err := fx.m.CreatePayment(ctx, fx.clientP, fx.job.ID, PaymentInput{
			Intent: func(context.Context, *models.Payment) (string, string, error) {
				return "", "", errors.New("gateway down")
			},
		})
		assert.ErrorIs(t, err, apperr.ErrUnavailable)

		var n int64
		require.NoError(t, fx.db.Model(&models.Payment{}).Where("job_id = ?", fx.job.ID).Count(&n).Error)
		assert.Zero(t, n)
	})

	t.Run("slow gateway is cut off", func(t *testing.T) {
		fx, _ := acceptedJob(t)
		WithIntentTimeout(20 * time.Millisecond)(fx.m)

		start := time.Now()
		_, err := fx.m.CreatePayment(ctx, fx.clientP, fx.job.ID, PaymentInput{
			Intent: func(ctx context.Context, _ *models.Payment) (string, string, error) {
				select {
				case <-ctx.Done():
					return "", "", ctx.Err()
				case <-time.After(5 * time.Second):
					return "T-late", "", nil
				}
			},
		})
		assert.ErrorIs(t, err, apperr.ErrUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 2*time.Second)

		// the job is usable again once the call is cut off
		pay, err := fx.m.CreatePayment(ctx, fx.clientP, fx.job.ID, PaymentInput{})
		require.NoError(t, err)
		assert.Empty(t, pay.PaymentIntent)
	})
}

func TestFileReview(t *testing.T) {
	ctx := context.Background()
	fx, _ := acceptedJob(t)
	require.NoError(t, fx.db.Create(&models.Profile{UserID: fx.f1.ID}).Error)

	_, err := fx.m.FileReview(ctx, fx.clientP, fx.job.ID, ReviewInput{RevieweeID: fx.f1.ID, Rating: 6})
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Contains(t, appErr.Fields, "rating")

	var n int64
	require.NoError(t, fx.db.Model(&models.Review{}).Count(&n).Error)
	assert.Zero(t, n, "rejected review leaves no record")

	_, err = fx.m.FileReview(ctx, fx.f2P, fx.job.ID, ReviewInput{RevieweeID: fx.f1.ID, Rating: 5})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = fx.m.FileReview(ctx, fx.clientP, fx.job.ID, ReviewInput{RevieweeID: fx.client.ID, Rating: 5})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	review, err := fx.m.FileReview(ctx, fx.clientP, fx.job.ID, ReviewInput{RevieweeID: fx.f1.ID, Rating: 4, Comment: "solid"})
	require.NoError(t, err)
	assert.Equal(t, 4, review.Rating)

	_, err = fx.m.FileReview(ctx, fx.f1P, fx.job.ID, ReviewInput{RevieweeID: fx.client.ID, Rating: 5})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	var profile models.Profile
	require.NoError(t, fx.db.First(&profile, "user_id = ?", fx.f1.ID).Error)
	assert.True(t, profile.Rating.Equal(decimal.NewFromInt(4)), profile.Rating.String())
	assert.Equal(t, []string{realtime.EventProposalAccepted, realtime.EventReviewFiled}, fx.events.Types(fx.f1.ID))
}

func TestFileReviewNeedsAcceptedProposal(t *testing.T) {
	fx := setup(t)
	_, err := fx.m.FileReview(context.Background(), fx.clientP, fx.job.ID, ReviewInput{RevieweeID: fx.f1.ID, Rating: 3})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}
