package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/middleware"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/policy"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/realtime"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/services/accounts"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/services/blob"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/services/lifecycle"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/services/paygate"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/services/wallet"
)

// Deps is everything the HTTP surface needs. Redis, Paygate and AuthLimiter
// may be nil.
type Deps struct {
	DB       *gorm.DB
	Redis    *redis.Client
	Log      *logrus.Logger
	Accounts *accounts.AccountService
	Manager  *lifecycle.Manager
	Wallet   *wallet.WalletService
	Blob     blob.Store
	Notifier realtime.Notifier
	Paygate  *paygate.PaygateService

	AuthLimiter  *middleware.IPRateLimiter
	TokenExpires int // minutes
	SecureCookie bool
}

func Register(app *fiber.App, d Deps) {
	if d.Notifier == nil {
		d.Notifier = realtime.Nop{}
	}

	authH := NewAuthHandler(d.Accounts, d.TokenExpires)
	authH.SecureCookie = d.SecureCookie
	categoryH := NewCategoryHandler(d.DB)
	jobH := NewJobHandler(d.DB, d.Manager)
	proposalH := NewProposalHandler(d.DB, d.Manager)
	messageH := NewMessageHandler(d.DB, d.Blob, d.Notifier)
	paymentH := NewPaymentHandler(d.DB, d.Manager, d.Paygate)
	reviewH := NewReviewHandler(d.DB, d.Manager)
	walletH := NewWalletHandler(d.Wallet)
	adminH := NewAdminHandler(d.Accounts)
	fileH := NewFileHandler(d.Blob)
	healthH := NewHealthHandler(d.DB, d.Redis)
	if d.Log != nil {
		messageH.Log = d.Log
		paymentH.Log = d.Log
	}

	required := middleware.RequireAuth(d.Accounts)
	optional := middleware.OptionalAuth(d.Accounts)
	limit := func(c *fiber.Ctx) error { return c.Next() }
	if d.AuthLimiter != nil {
		limit = d.AuthLimiter.Handler()
	}

	api := app.Group("/api")

	// public
	api.Get("/health", healthH.Health)
	api.Post("/auth/register", limit, authH.Register)
	api.Post("/auth/login", limit, authH.Login)
	api.Post("/auth/logout", authH.Logout)
	api.Get("/categories", categoryH.GetCategories)
	api.Get("/files/:ref", fileH.Serve)
	api.Post("/payments/callback", paymentH.HandleCallback)

	// job reads are public; a token, when sent, must be valid
	api.Get("/jobs", optional, jobH.ListJobs)
	api.Get("/jobs/:id", optional, jobH.GetJob)

	me := api.Group("/me", required)
	me.Get("/", authH.Me)
	me.Patch("/", authH.UpdateMe)
	me.Put("/profile", authH.UpsertProfile)
	me.Post("/avatar", authH.UploadAvatar)

	api.Get("/users/:id", required, authH.GetUser)
	api.Post("/categories", required, categoryH.CreateCategory)

	jobs := api.Group("/jobs", required)
	jobs.Post("/", jobH.CreateJob)
	jobs.Patch("/:id", jobH.UpdateJob)
	jobs.Delete("/:id", jobH.DeleteJob)
	jobs.Post("/:id/close", jobH.CloseJob)
	jobs.Post("/:id/proposals", proposalH.CreateProposal)

	proposals := api.Group("/proposals", required)
	proposals.Get("/", proposalH.ListProposals)
	proposals.Post("/", proposalH.CreateProposal)
	proposals.Get("/:id", proposalH.GetProposal)
	proposals.Patch("/:id", proposalH.UpdateProposal)
	proposals.Delete("/:id", proposalH.DeleteProposal)
	proposals.Post("/:id/accept", proposalH.AcceptProposal)
	proposals.Post("/:id/reject", proposalH.RejectProposal)

	messages := api.Group("/messages", required)
	messages.Get("/", messageH.ListMessages)
	messages.Post("/", messageH.CreateMessage)
	messages.Get("/:id", messageH.GetMessage)
	messages.Delete("/:id", messageH.DeleteMessage)

	payments := api.Group("/payments", required)
	payments.Get("/channels", paymentH.GetChannels)
	payments.Get("/", paymentH.ListPayments)
	payments.Post("/", paymentH.CreatePayment)
	payments.Get("/:id", paymentH.GetPayment)
	payments.Post("/:id/hold", paymentH.HoldEscrow)
	payments.Post("/:id/release", paymentH.ReleaseEscrow)

	reviews := api.Group("/reviews", required)
	reviews.Get("/", reviewH.ListReviews)
	reviews.Post("/", reviewH.CreateReview)
	reviews.Get("/:id", reviewH.GetReview)
	reviews.Delete("/:id", reviewH.DeleteReview)

	api.Get("/wallet", required, middleware.RequireRoles(policy.CapFreelancer), walletH.GetWallet)

	admin := api.Group("/admin", required, middleware.RequireRoles(policy.CapSuperuser))
	admin.Get("/users", adminH.ListUsers)
	admin.Patch("/users/:id", adminH.SetActive)
}
