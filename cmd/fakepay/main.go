package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/storefront/internal/logging"
	"github.com/example/storefront/internal/payment"
)

// fakepay serves the development payment provider used by the storefront
// when PAYMENT_SESSION_URL points at it.
func main() {
	_ = godotenv.Load()
	logger := logging.Component(logging.New(getEnv("LOG_LEVEL", "info"), getEnv("LOG_FORMAT", "console")), "fakepay")

	storefront := getEnv("STOREFRONT_URL", "http://localhost:8080")
	cfg := payment.FakeConfig{
		SuccessURL:    getEnv("FAKEPAY_SUCCESS_URL", storefront+"/checkout/success"),
		CancelURL:     getEnv("FAKEPAY_CANCEL_URL", storefront+"/checkout/cancel"),
		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),
	}
	// unsigned webhooks would be rejected anyway
	if cfg.WebhookSecret != "" {
		cfg.WebhookURL = getEnv("FAKEPAY_WEBHOOK_URL", storefront+"/api/webhooks/payment")
	} else {
		logger.Warn().Msg("WEBHOOK_SECRET not set; outcomes reach the storefront only through return URLs")
	}
	provider := payment.NewFakeProvider(cfg, logger)

	addr := getEnv("FAKEPAY_ADDR", ":8090")
	server := &http.Server{
		Addr:              addr,
		Handler:           provider,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("fake payment provider started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
