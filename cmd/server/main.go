package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // quiet hours resolve IANA zones on minimal images

	"github.com/ignite/spark-tracker/internal/api"
	"github.com/ignite/spark-tracker/internal/app"
	"github.com/ignite/spark-tracker/internal/config"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use: %v\n"+
			"  Hint: Run 'lsof -i %s' to find the blocking process", addr, err, addr)
	}
	ln.Close()
	return nil
}

func main() {
	log.Println("Starting Spark API server...")

	cfg, err := config.LoadFromEnv(config.DefaultPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	app.ConfigureLogging(cfg.Logging)

	if err := checkPortAvailable(cfg.Server.Addr()); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()
	log.Printf("Storage: %s", cfg.Storage.Type)

	// Memory storage can't be shared with a separate worker, so sweep here.
	if cfg.Storage.Type == "memory" && cfg.Expiry.Enabled {
		go a.NewExpirySweeper().Start(ctx)
		log.Println("Expiry sweeper started in-process")
	}

	handlers := api.NewHandlers(a.Tracker, a.Backends.Inbox, a.Backends.Prefs)
	health := api.NewHealthChecker(a.SQLDB(), a.Backends.Redis)
	server := api.NewServer(cfg.Server, handlers, health)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
