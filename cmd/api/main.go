package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/config"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/db"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/handlers"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/logging"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/middleware"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/realtime"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/services/accounts"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/services/blob"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/services/lifecycle"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/services/paygate"
	"github.com/Windi-Fikriyansyah/platform_freelance_be/internal/services/wallet"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal(err)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.WithError(err).Fatal("database connect failed")
	}
	if err := db.Migrate(gdb); err != nil {
		log.WithError(err).Fatal("migration failed")
	}

	ctx := context.Background()

	var (
		rdb      *redis.Client
		notifier realtime.Notifier = realtime.Nop{}
	)
	if cfg.RedisAddr != "" {
		rdb = realtime.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable, notifications disabled")
			_ = rdb.Close()
			rdb = nil
		} else {
			notifier = realtime.NewRedisNotifier(rdb)
			log.WithField("addr", cfg.RedisAddr).Info("redis notifications enabled")
		}
	}

	var store blob.Store
	switch cfg.BlobBackend {
	case "gridfs":
		gfs, client, err := blob.ConnectGridFS(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			log.WithError(err).Fatal("gridfs connect failed")
		}
		defer client.Disconnect(context.Background())
		store = gfs
	default:
		local, err := blob.NewLocalStore(cfg.UploadDir)
		if err != nil {
			log.WithError(err).Fatal("upload dir unusable")
		}
		store = local
	}

	var gateway *paygate.PaygateService
	if cfg.PaygateEnabled() {
		gateway = paygate.NewPaygateService(
			cfg.PaygateBaseURL, cfg.PaygateAPIKey, cfg.PaygatePrivateKey, cfg.PaygateMerchantCode, cfg.PaygateCallbackURL,
		)
	}

	w := wallet.NewWalletService(gdb, cfg.PlatformFeePercent)
	manager := lifecycle.NewManager(gdb,
		lifecycle.WithWallet(w),
		lifecycle.WithNotifier(notifier),
		lifecycle.WithLogger(log),
	)
	accountSvc := accounts.NewAccountService(gdb, cfg.JWTSecret, cfg.JWTExpiresMin, store)
	accountSvc.Log = log

	app := fiber.New(fiber.Config{
		AppName:      "freelance-marketplace",
		ErrorHandler: middleware.ErrorHandler(log),
		BodyLimit:    20 * 1024 * 1024,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		ExposeHeaders:    "Content-Length, X-Request-ID",
		AllowCredentials: true,
	}))
	app.Use(middleware.AccessLog(log))

	handlers.Register(app, handlers.Deps{
		DB:           gdb,
		Redis:        rdb,
		Log:          log,
		Accounts:     accountSvc,
		Manager:      manager,
		Wallet:       w,
		Blob:         store,
		Notifier:     notifier,
		Paygate:      gateway,
		AuthLimiter:  middleware.NewIPRateLimiter(cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst),
		TokenExpires: cfg.JWTExpiresMin,
		SecureCookie: cfg.SecureCookie,
	})

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Info("shutting down")
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	log.WithField("port", cfg.AppPort).Info("listening")
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
