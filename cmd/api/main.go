package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/example/storefront/internal/api"
	"github.com/example/storefront/internal/auth"
	"github.com/example/storefront/internal/command"
	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/domain/checkout"
	"github.com/example/storefront/internal/infrastructure/cache"
	"github.com/example/storefront/internal/infrastructure/kafka"
	"github.com/example/storefront/internal/infrastructure/sanity"
	"github.com/example/storefront/internal/infrastructure/store"
	"github.com/example/storefront/internal/logging"
	"github.com/example/storefront/internal/metrics"
	"github.com/example/storefront/internal/notification"
	"github.com/example/storefront/internal/payment"
	"github.com/example/storefront/internal/query"
	"github.com/example/storefront/internal/session"
	"github.com/example/storefront/internal/webhook"
)

const (
	sweepInterval = 5 * time.Minute
	sessionIdle   = 30 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("info", "json")
		boot.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := logging.Component(logging.New(cfg.LogLevel, cfg.LogFormat), "api")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info().
		Str("cart_store", cfg.CartStore).
		Strs("kafka", cfg.KafkaBrokers).
		Str("payment", cfg.PaymentSessionURL).
		Msg("storefront starting")

	m := metrics.New(nil)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	cartStore, closeStore := openCartStore(ctx, cfg, redisClient, logger)
	defer closeStore()

	// Catalog
	sanityClient, err := sanity.NewClient(sanity.Config{
		ProjectID:        cfg.SanityProjectID,
		Dataset:          cfg.SanityDataset,
		APIVersion:       cfg.SanityAPIVersion,
		Token:            cfg.SanityToken,
		UseCDN:           cfg.SanityUseCDN,
		CurrencyExponent: cfg.CurrencyExponent,
	}, logging.Component(logger, "catalog"))
	if err != nil {
		logger.Fatal().Err(err).Msg("catalog is not configured")
	}
	catalogClient := cache.NewCatalogCache(sanityClient, redisClient, cfg.CatalogCacheTTL, logging.Component(logger, "catalog-cache"))
	// cached snapshots from a previous release may predate the current fields
	flushCtx, flushCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := catalogClient.Invalidate(flushCtx); err != nil {
		logger.Warn().Err(err).Msg("failed to flush catalog cache")
	}
	flushCancel()

	// Payment provider
	sessionClient := payment.NewSessionClient(cfg.PaymentSessionURL, cfg.PaymentTimeout, logging.Component(logger, "payment"))
	redirector, err := payment.NewURLRedirector(cfg.PaymentRedirectURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid payment redirect url")
	}

	// Presentation events leave the process through Kafka when configured.
	var external notification.Notifier = notification.Discard
	if cfg.KafkaEnabled() {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.EventsTopic)
		defer producer.Close()
		external = notification.NewKafkaNotifier(producer, logger)
		logger.Info().Str("topic", producer.Topic()).Msg("publishing presentation events")
	}

	orchLogger := logging.Component(logger, "checkout")
	factory := func(c checkout.Cart, n notification.Notifier) *checkout.Orchestrator {
		return checkout.NewOrchestrator(c, sessionClient, redirector, n,
			checkout.WithTimeout(cfg.PaymentTimeout),
			checkout.WithMetrics(m),
			checkout.WithLogger(orchLogger),
		)
	}
	manager := session.NewManager(cartStore, factory,
		session.WithNotifier(external),
		session.WithLogger(logging.Component(logger, "sessions")),
	)
	dispatcher := session.NewDispatcher(manager, session.DefaultQueueSize, logging.Component(logger, "dispatcher"))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		dispatcher.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		manager.RunSweeper(ctx, sweepInterval, sessionIdle)
	}()

	// Outcomes forwarded by the webhook Lambda
	if cfg.KafkaEnabled() {
		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.OutcomesTopic, "storefront-api", logging.Component(logger, "outcomes"))
		defer consumer.Close()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Consume(ctx, webhook.OutcomeHandler(dispatcher)); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("outcome consumer stopped")
			}
		}()
	}

	// Webhooks posted straight to the API
	var webhookHandler http.Handler
	if cfg.WebhookSecret != "" {
		webhookHandler = webhook.NewForwarder(payment.NewWebhookVerifier(cfg.WebhookSecret), dispatcher, logger)
	} else {
		logger.Warn().Msg("WEBHOOK_SECRET not set; payment webhooks are disabled")
	}

	exponent := cfg.CurrencyExponent
	handlers := api.NewHandlers(
		command.NewHandler(manager, catalogClient, m, logging.Component(logger, "command")),
		query.NewHandler(manager, catalogClient, exponent),
		exponent,
		logger,
	)
	router := api.NewRouter(api.RouterConfig{
		Handlers:     handlers,
		Tokens:       auth.NewTokenService(cfg.SessionSecret, cfg.SessionTTL),
		Webhook:      webhookHandler,
		Metrics:      m,
		MetricsPage:  m.Handler(),
		CORSOrigins:  cfg.CORSOrigins,
		SecureCookie: cfg.SecureCookies,
		Logger:       logging.Component(logger, "http"),
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown")
	}

	cancel() // stop dispatcher, sweeper and consumer
	wg.Wait()
}

func openCartStore(ctx context.Context, cfg *config.Config, redisClient *redis.Client, logger zerolog.Logger) (store.CartStore, func()) {
	switch cfg.CartStore {
	case config.CartStorePostgres:
		db, err := store.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to PostgreSQL")
		}
		if err := store.RunMigrations(db); err != nil {
			logger.Fatal().Err(err).Msg("failed to run migrations")
		}
		logger.Info().Msg("connected to PostgreSQL")
		return store.NewPostgresCartStore(db), func() { db.Close() }

	case config.CartStoreRedis:
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		return store.NewRedisCartStore(redisClient, store.DefaultCartTTL), func() {}

	case config.CartStoreDynamo:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load AWS config")
		}
		return store.NewDynamoCartStore(dynamodb.NewFromConfig(awsCfg), cfg.CartTable, store.DefaultCartTTL), func() {}

	default:
		logger.Warn().Msg("using in-memory cart store; carts are lost on restart")
		return store.NewMemoryCartStore(), func() {}
	}
}
