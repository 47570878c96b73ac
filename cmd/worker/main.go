package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/ignite/spark-tracker/internal/app"
	"github.com/ignite/spark-tracker/internal/config"
	"github.com/ignite/spark-tracker/internal/storage"
	"github.com/ignite/spark-tracker/internal/tracking"
)

func main() {
	log.Println("Starting Spark worker...")

	cfg, err := config.LoadFromEnv(config.DefaultPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	app.ConfigureLogging(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()
	log.Printf("Connected to %s storage", cfg.Storage.Type)

	// Beacon consumer: applies queued tracking events to the tracker
	var consumer *tracking.Consumer
	if cfg.Tracking.QueueURL != "" {
		awsCfg, err := storage.LoadAWSConfig(ctx, cfg.Tracking.Region, cfg.Storage.GetAWSProfile())
		if err != nil {
			log.Fatalf("Failed to load AWS config: %v", err)
		}
		consumer = tracking.NewConsumer(sqs.NewFromConfig(awsCfg), cfg.Tracking.QueueURL, a.Tracker,
			cfg.Tracking.BatchSize, cfg.Tracking.WaitTimeSeconds, cfg.Tracking.Workers)
		consumer.Start(ctx)
	} else {
		log.Println("Beacon consumer disabled (no queue URL)")
	}

	// Expiry sweeper: one active replica at a time
	if cfg.Expiry.Enabled {
		go a.NewExpirySweeper().Start(ctx)
		log.Printf("Expiry sweeper started (runs every %s)", cfg.Expiry.Interval())
	} else {
		log.Println("Expiry sweeper disabled")
	}

	log.Println("Worker running...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cancel()

	if consumer != nil {
		consumer.Stop()
	}

	// Give in-flight sweeps time to release their lock
	time.Sleep(2 * time.Second)

	log.Println("Worker stopped")
}
