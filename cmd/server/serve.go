package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/example/champaran-pos/internal/archive"
	"github.com/example/champaran-pos/internal/cart"
	"github.com/example/champaran-pos/internal/checkout"
	"github.com/example/champaran-pos/internal/config"
	"github.com/example/champaran-pos/internal/database"
	"github.com/example/champaran-pos/internal/handlers"
	"github.com/example/champaran-pos/internal/pricing"
	"github.com/example/champaran-pos/internal/routes"
	"github.com/example/champaran-pos/internal/services"
	"github.com/example/champaran-pos/internal/submission"
	"github.com/example/champaran-pos/internal/upload"
)

const (
	cartMaxIdle    = 24 * time.Hour
	cartSweepEvery = 10 * time.Minute
)

func serve(c *cli.Context) error {
	log.SetFormatter(&log.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pricingCfg, err := cfg.Pricing()
	if err != nil {
		return err
	}
	engine, err := pricing.NewEngine(pricingCfg)
	if err != nil {
		return errors.Wrap(err, "pricing table")
	}

	rdb, err := openRedis(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer rdb.Close()
	if err := rdb.Ping(c.Context).Err(); err != nil {
		return errors.Wrap(err, "redis unreachable")
	}
	orders := archive.NewRedisArchive(rdb, cfg.ArchiveMaxEntries)

	workflow, err := checkout.NewWorkflow(
		checkout.Config{
			OrderPrefix: cfg.OrderPrefix,
			APIKey:      cfg.IntakeAPIKey,
			Proof:       checkout.ProofPolicy{Required: cfg.RequirePaymentProof, MaxBytes: cfg.MaxProofBytes},
		},
		checkout.Deps{
			Engine:     engine,
			Uploader:   newUploader(cfg),
			Submitter:  newCascade(cfg),
			Archive:    orders,
			Deliveries: orders,
			Proofs:     orders,
		},
	)
	if err != nil {
		return err
	}

	carts := cart.NewRegistry(cartMaxIdle)
	deps := routes.Dependencies{
		Engine:        engine,
		Carts:         carts,
		CartMaxAge:    cartMaxIdle,
		Workflow:      workflow,
		Orders:        orders,
		MaxProofBytes: cfg.MaxProofBytes,
		IntakeAPIKey:  cfg.IntakeAPIKey,
	}

	var (
		publisher *services.OrderEventPublisher
		closeDB   func() error
	)
	if cfg.IntakeServerEnabled {
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		closeDB = func() error { return database.Close(db) }
		deps.Intake = database.NewOrderRepository(db)

		var notifiers services.Notifiers
		if cfg.TelegramBotToken != "" {
			notifiers = append(notifiers,
				services.NewTelegramService(services.NewHTTPClient(services.DefaultHTTPTimeout), cfg.TelegramBotToken, cfg.TelegramAdminChat))
		}
		if len(cfg.KafkaBrokers) > 0 {
			publisher = services.NewOrderEventPublisher(cfg.KafkaTopic, cfg.KafkaBrokers...)
			notifiers = append(notifiers, publisher)
		}
		deps.Notify = services.NewDispatcher(notifiers)
	}

	app := fiber.New(fiber.Config{
		AppName:      "Champaran POS",
		ErrorHandler: handlers.ErrorHandler,
		BodyLimit:    int(cfg.MaxProofBytes) + 1<<20,
	})
	app.Use(recover.New())
	app.Use(logger.New())

	if err := routes.Register(app, deps); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go sweepCarts(ctx, carts)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.WithError(err).Warn("[Server] shutdown error")
		}
	}()

	log.WithField("port", cfg.AppPort).Info("[Server] starting")
	listenErr := app.Listen(":" + cfg.AppPort)

	// Notifications still in flight write to the Kafka publisher, so they
	// drain before it closes.
	drainCtx, cancel := context.WithTimeout(context.Background(), services.NotifierTimeout+5*time.Second)
	defer cancel()
	if err := deps.Notify.Wait(drainCtx); err != nil {
		log.WithError(err).Warn("[Server] notifications still running at shutdown")
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.WithError(err).Warn("[Server] closing kafka writer")
		}
	}
	if closeDB != nil {
		if err := closeDB(); err != nil {
			log.WithError(err).Warn("[Server] closing database")
		}
	}

	if listenErr != nil && !errors.Is(listenErr, http.ErrServerClosed) {
		return errors.Wrap(listenErr, "fiber.Listen")
	}
	log.Info("[Server] stopped")
	return nil
}

func openRedis(rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse REDIS_URL")
	}
	return redis.NewClient(opts), nil
}

func newUploader(cfg *config.Config) *upload.Client {
	client := services.NewHTTPClient(cfg.UploadTimeout)

	var providers []upload.Provider
	if cfg.SupabaseURL != "" && cfg.SupabaseKey != "" {
		providers = append(providers, upload.NewSupabaseStorage(client, cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseBucket))
	}
	if cfg.UploadEndpointURL != "" {
		providers = append(providers, upload.NewJSONEndpoint(client, cfg.UploadEndpointURL))
	}
	if len(providers) == 0 {
		log.Warn("[Server] no image store configured, payment screenshots will be kept locally")
	}
	return upload.NewClient(cfg.UploadTimeout, providers...)
}

func newCascade(cfg *config.Config) *submission.Cascade {
	var transports []submission.Transport
	if cfg.IntakeURL != "" {
		transports = submission.DefaultTransports(services.NewHTTPClient(cfg.IntakeTimeout), cfg.IntakeURL)
	} else {
		log.Warn("[Server] INTAKE_URL not set, orders will only be archived locally")
	}

	opts := []submission.Option{submission.WithTimeout(cfg.IntakeTimeout)}
	if cfg.RequireConfirmation {
		opts = append(opts, submission.WithRequiredConfirmation())
	}
	return submission.NewCascade(transports, opts...)
}

func sweepCarts(ctx context.Context, carts *cart.Registry) {
	ticker := time.NewTicker(cartSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := carts.Sweep(); n > 0 {
				log.WithField("dropped", n).Debug("[Cart] swept idle carts")
			}
		case <-ctx.Done():
			return
		}
	}
}
