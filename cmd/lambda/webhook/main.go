package main

import (
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/example/storefront/internal/infrastructure/kafka"
	"github.com/example/storefront/internal/logging"
	"github.com/example/storefront/internal/payment"
	"github.com/example/storefront/internal/webhook"
)

var forwarder *webhook.Forwarder

func init() {
	logger := logging.Component(logging.New(getEnv("LOG_LEVEL", "info"), "json"), "lambda-webhook")

	secret := os.Getenv("WEBHOOK_SECRET")
	if secret == "" {
		logger.Fatal().Msg("WEBHOOK_SECRET environment variable is required")
	}
	brokers := strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	topic := getEnv("OUTCOMES_TOPIC", "checkout-outcomes")

	producer := kafka.NewProducer(brokers, topic)
	forwarder = webhook.NewForwarder(
		payment.NewWebhookVerifier(secret),
		webhook.KafkaSink{Publisher: producer},
		logger,
	)

	logger.Info().Strs("kafka", brokers).Str("topic", producer.Topic()).Msg("initialized")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	lambda.Start(forwarder.HandleAPIGateway)
}
