// Package storage assembles the persistence backends selected by
// configuration into the collaborators the services need.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/spark-tracker/internal/config"
	"github.com/ignite/spark-tracker/internal/notify"
	"github.com/ignite/spark-tracker/internal/repository/dynamo"
	"github.com/ignite/spark-tracker/internal/repository/memory"
	"github.com/ignite/spark-tracker/internal/repository/redisstore"
	"github.com/ignite/spark-tracker/internal/repository/sqlstore"
	"github.com/ignite/spark-tracker/internal/service/tracker"
)

// Backends holds the opened stores. SQL and Redis are nil unless the
// configured type uses them.
type Backends struct {
	Sparks tracker.Repository
	Inbox  notify.Inbox
	Prefs  notify.PreferenceStore

	SQL      *sqlstore.Store
	Redis    *redis.Client
	Dynamo   *dynamo.SparkRepo
	Archiver *Archiver

	closers []func() error
}

// Open connects the backend named by cfg.Type. Notifications and preferences
// go to SQL for the sqlite and postgres types and to memory otherwise.
func Open(ctx context.Context, cfg config.StorageConfig) (*Backends, error) {
	b := &Backends{}

	switch cfg.Type {
	case "memory", "":
		b.Sparks = memory.NewSparkRepo()

	case "sqlite", "postgres":
		driver, dsn := sqlstore.DriverPostgres, cfg.DatabaseURL
		if cfg.Type == "sqlite" {
			driver, dsn = sqlstore.DriverSQLite, cfg.SQLitePath
			if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return nil, fmt.Errorf("creating sqlite directory: %w", err)
				}
			}
		}
		store, err := sqlstore.Open(ctx, driver, dsn)
		if err != nil {
			return nil, err
		}
		b.SQL = store
		b.closers = append(b.closers, store.Close)
		b.Sparks = sqlstore.NewSparkRepo(store)
		b.Inbox = sqlstore.NewInbox(store)
		b.Prefs = sqlstore.NewPreferenceStore(store)

	case "redis":
		client, err := OpenRedis(ctx, cfg)
		if err != nil {
			return nil, err
		}
		b.Redis = client
		b.closers = append(b.closers, client.Close)
		b.Sparks = redisstore.NewSparkRepo(client, cfg.RedisPrefix)

	case "dynamodb":
		awsCfg, err := LoadAWSConfig(ctx, cfg.AWSRegion, cfg.GetAWSProfile())
		if err != nil {
			return nil, err
		}
		b.Dynamo = dynamo.NewSparkRepoFromConfig(awsCfg, cfg.DynamoDBTable)
		b.Sparks = b.Dynamo

	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}

	if b.Inbox == nil {
		b.Inbox = memory.NewInbox()
		b.Prefs = memory.NewPreferenceStore()
	}

	// A Redis address configured alongside another backend still serves the
	// expiry sweeper's lock.
	if b.Redis == nil && cfg.RedisAddr != "" {
		client, err := OpenRedis(ctx, cfg)
		if err != nil {
			log.Printf("[storage] redis unavailable, continuing without it: %v", err)
		} else {
			b.Redis = client
			b.closers = append(b.closers, client.Close)
		}
	}

	if cfg.ArchiveBucket != "" {
		awsCfg, err := LoadAWSConfig(ctx, cfg.AWSRegion, cfg.GetAWSProfile())
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Archiver = NewArchiver(s3.NewFromConfig(awsCfg), cfg.ArchiveBucket, cfg.ArchivePrefix)
	}

	log.Printf("[storage] Opened %s backend", cfg.Type)
	return b, nil
}

// OpenRedis connects and pings the configured Redis.
func OpenRedis(ctx context.Context, cfg config.StorageConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}

// Migrate prepares the schema of backends that need one.
func (b *Backends) Migrate(ctx context.Context) error {
	if b.SQL != nil {
		if err := b.SQL.Migrate(ctx); err != nil {
			return err
		}
	}
	if b.Dynamo != nil {
		if err := b.Dynamo.EnsureTable(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases every opened connection.
func (b *Backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
