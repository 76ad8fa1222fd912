package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/warbler-social/warbler/internal/config"
	"github.com/warbler-social/warbler/internal/repository"
	"github.com/warbler-social/warbler/internal/workers"
	"github.com/warbler-social/warbler/pkg/logger"
	"github.com/warbler-social/warbler/pkg/queue"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logger.NewLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting warbler activity worker")

	db, err := repository.NewDatabase(&cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.AutoMigrate(); err != nil {
		logger.WithError(err).Fatal("Failed to migrate database")
	}

	consumer := queue.NewKafkaConsumer(
		cfg.Kafka.Brokers,
		cfg.Kafka.Topics.ActivityEvents,
		cfg.Activity.ConsumerGroup,
	)

	activityRepo := repository.NewActivityRepository(db.DB)
	worker := workers.NewActivityWorker(activityRepo, consumer, &cfg.Activity, logger)

	ctx := context.Background()
	go func() {
		if err := worker.Start(ctx); err != nil {
			logger.WithError(err).Error("Activity worker stopped with error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down activity worker")

	if err := worker.Stop(); err != nil {
		logger.WithError(err).Error("Failed to stop activity worker cleanly")
	}

	logger.Info("Worker exited")
}

func init() {
	_ = godotenv.Load()
}
