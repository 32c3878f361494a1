package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/segmentio/kafka-go"

	"github.com/navid-fn/pelletradar/configs"
	"github.com/navid-fn/pelletradar/internal/app"
	"github.com/navid-fn/pelletradar/internal/ingester"
)

func main() {
	appConfig := configs.AppLoad()
	logger := configs.NewLogger(appConfig.LogLevel)

	a, err := app.New(appConfig, logger, app.Options{PublishDrops: true})
	if err != nil {
		logger.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	kafkaReader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{appConfig.KafkaListings.Broker},
		Topic:          appConfig.KafkaListings.Topic,
		GroupID:        appConfig.KafkaListings.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: 0,    // Commits happen in the ingester after each batch
	})
	defer kafkaReader.Close()

	svc := ingester.NewIngester(
		kafkaReader,
		a.Pipeline,
		logger,
		ingester.Config{
			BatchSize:    appConfig.Ingester.BatchSize,
			BatchTimeout: appConfig.Ingester.BatchTimeout(),
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Ingester started successfully")

	if err := svc.Start(ctx); err != nil {
		logger.Error("Ingester stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("Ingester shutdown complete")
}
