package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/deliverydesk/alert-engine/internal/analytics"
	"github.com/deliverydesk/alert-engine/internal/config"
	"github.com/deliverydesk/alert-engine/internal/delivery"
	"github.com/deliverydesk/alert-engine/internal/domain"
	"github.com/deliverydesk/alert-engine/internal/engine"
	"github.com/deliverydesk/alert-engine/internal/feed"
	"github.com/deliverydesk/alert-engine/internal/handler"
	"github.com/deliverydesk/alert-engine/internal/ledger"
	"github.com/deliverydesk/alert-engine/internal/observability"
	"github.com/deliverydesk/alert-engine/internal/prefs"
	"github.com/deliverydesk/alert-engine/internal/push"
	"github.com/deliverydesk/alert-engine/internal/ratelimit"
	"github.com/deliverydesk/alert-engine/internal/rules"
	"github.com/deliverydesk/alert-engine/internal/store"
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics()

	db, err := store.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}
	if err := store.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	var rdb *goredis.Client
	var limiter ratelimit.Limiter
	if cfg.RedisURL != "" {
		rdb, err = ratelimit.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis initialization failed", zap.Error(err))
		}
		defer rdb.Close()

		limiter, err = ratelimit.NewRedisCooldownLimiter(rdb, cfg.RateLimitWindow())
		if err != nil {
			logger.Fatal("redis rate limiter init failed", zap.Error(err))
		}
		logger.Info("using redis cooldown limiter")
	} else {
		limiter = ratelimit.NewCooldownLimiter(cfg.RateLimitWindow())
		logger.Info("using in-memory cooldown limiter")
	}

	led, err := ledger.New(store.NewGormLedgerRepo(db), cfg.LedgerRetention(), logger)
	if err != nil {
		logger.Fatal("ledger init failed", zap.Error(err))
	}
	preferences, err := prefs.NewStore(store.NewGormPreferenceRepo(db), cfg.UserID, logger)
	if err != nil {
		logger.Fatal("preference store init failed", zap.Error(err))
	}
	aggregator, err := analytics.NewAggregator(store.NewGormAnalyticsRepo(db), logger, metrics)
	if err != nil {
		logger.Fatal("analytics init failed", zap.Error(err))
	}

	registry, err := push.NewHTTPRegistry(cfg.PushRegistryURL)
	if err != nil {
		logger.Fatal("push registry init failed", zap.Error(err))
	}
	displayer, err := push.NewWebhookDisplayer(cfg.DisplayURL, func() push.DisplayOptions {
		p := preferences.Get()
		return push.DisplayOptions{Sound: p.Sound, Vibration: p.Vibration}
	})
	if err != nil {
		logger.Fatal("displayer init failed", zap.Error(err))
	}
	prompter, err := push.NewWebhookPrompter(cfg.DisplayURL)
	if err != nil {
		logger.Fatal("permission prompter init failed", zap.Error(err))
	}
	exchanger, err := push.NewWebhookExchanger(cfg.PushRegistryURL)
	if err != nil {
		logger.Fatal("key exchanger init failed", zap.Error(err))
	}

	deliverer, err := delivery.NewDeliverer(
		displayer,
		aggregator,
		delivery.DefaultRetryPolicy(),
		float64(cfg.DeliveryRatePerSec),
		logger,
		metrics,
	)
	if err != nil {
		logger.Fatal("deliverer init failed", zap.Error(err))
	}
	subscriber, err := delivery.NewSubscriber(prompter, exchanger, registry, store.NewGormSubscriptionRepo(db), logger)
	if err != nil {
		logger.Fatal("subscriber init failed", zap.Error(err))
	}

	consumer, err := feed.NewAMQPConsumer(cfg.FeedURL, cfg.FeedQueue, logger, metrics)
	if err != nil {
		logger.Fatal("feed consumer init failed", zap.Error(err))
	}
	defer consumer.Close() //nolint:errcheck

	eng, err := engine.New(engine.Deps{
		Prefs:            preferences,
		Ledger:           led,
		Limiter:          limiter,
		Deliverer:        deliverer,
		Subscriber:       subscriber,
		Analytics:        aggregator,
		Consumer:         consumer,
		Source:           store.NewGormDeliveryRepo(db),
		Rules:            rules.DefaultRules(float64(cfg.HighValueThreshold)),
		SnapshotInterval: cfg.SnapshotInterval(),
		Logger:           logger,
		Metrics:          metrics,
	})
	if err != nil {
		logger.Fatal("engine init failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = eng.Start(ctx, func(n domain.Notification) {
		logger.Info("notification delivered",
			zap.String("notificationId", n.ID),
			zap.String("category", n.Category.String()),
			zap.String("priority", n.Priority.String()),
		)
	})
	if err != nil {
		logger.Fatal("engine start failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	if err := handler.RegisterAdminRoutes(app, eng); err != nil {
		logger.Fatal("admin routes init failed", zap.Error(err))
	}

	go func() {
		if err := app.Listen(fmt.Sprintf(":%d", cfg.AdminPort)); err != nil {
			logger.Error("admin server stopped", zap.Error(err))
			stop()
		}
	}()

	logger.Info("alert-engine started", zap.Int("adminPort", cfg.AdminPort))

	<-ctx.Done()
	logger.Info("shutting down")

	if err := app.Shutdown(); err != nil {
		logger.Error("admin server shutdown failed", zap.Error(err))
	}
	if err := eng.Stop(); err != nil {
		logger.Error("engine stopped with error", zap.Error(err))
	}
	if feedErr := eng.FeedErr(); feedErr != nil {
		logger.Error("change feed was unavailable", zap.Error(feedErr))
	}

	os.Exit(0)
}
