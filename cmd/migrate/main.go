package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ignite/spark-tracker/internal/config"
	"github.com/ignite/spark-tracker/internal/storage"
)

// migrate creates the tables for the configured storage backend. Pass --list
// to print the SQL tables instead.
func main() {
	cfg, err := config.LoadFromEnv(config.DefaultPath())
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	listOnly := false
	for _, a := range os.Args[1:] {
		if a == "--list" {
			listOnly = true
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	backends, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer backends.Close()
	log.Printf("Connected to %s storage", cfg.Storage.Type)

	if listOnly {
		if backends.SQL == nil {
			log.Fatalf("--list needs sqlite or postgres storage, have %s", cfg.Storage.Type)
		}
		query := "SELECT tablename FROM pg_tables WHERE schemaname='public' ORDER BY tablename"
		if cfg.Storage.Type == "sqlite" {
			query = "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
		}
		var tables []string
		if err := backends.SQL.DB().SelectContext(ctx, &tables, query); err != nil {
			log.Fatal(err)
		}
		for _, t := range tables {
			fmt.Println(" ", t)
		}
		fmt.Printf("Total: %d tables\n", len(tables))
		return
	}

	if err := backends.Migrate(ctx); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("Migrations complete")
}
