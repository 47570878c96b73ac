package main

import (
	"context"
	"log"
	"net/http"
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
	cfg, err := config.LoadFromEnv(config.DefaultPath())
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	app.ConfigureLogging(cfg.Logging)

	ctx := context.Background()

	var sink tracking.Sink
	if cfg.Tracking.QueueURL != "" {
		awsCfg, err := storage.LoadAWSConfig(ctx, cfg.Tracking.Region, cfg.Storage.GetAWSProfile())
		if err != nil {
			log.Fatalf("aws config: %v", err)
		}
		sink = tracking.NewPublisher(sqs.NewFromConfig(awsCfg), cfg.Tracking.QueueURL)
		log.Printf("publishing beacon events to %s", cfg.Tracking.QueueURL)
	} else {
		a, err := app.New(ctx, cfg)
		if err != nil {
			log.Fatalf("init: %v", err)
		}
		defer a.Close()
		sink = tracking.NewInlineSink(a.Tracker)
		log.Printf("applying beacon events inline (storage=%s)", cfg.Storage.Type)
	}

	handler := tracking.NewHandler(sink, cfg.Tracking.AllowedRedirectHosts)

	srv := &http.Server{
		Addr:         cfg.Tracking.Addr(),
		Handler:      handler.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("tracking service listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down tracking service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}
