// Package app wires configuration into the running collaborators shared by
// the server, tracking and worker binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/ignite/spark-tracker/internal/config"
	"github.com/ignite/spark-tracker/internal/domain"
	"github.com/ignite/spark-tracker/internal/notify"
	"github.com/ignite/spark-tracker/internal/pkg/distlock"
	"github.com/ignite/spark-tracker/internal/pkg/httpretry"
	"github.com/ignite/spark-tracker/internal/pkg/logger"
	"github.com/ignite/spark-tracker/internal/repository/sqlstore"
	"github.com/ignite/spark-tracker/internal/service/tracker"
	"github.com/ignite/spark-tracker/internal/storage"
	"github.com/ignite/spark-tracker/internal/worker"
)

// App holds the opened backends and the services built on them.
type App struct {
	Config   *config.Config
	Backends *storage.Backends
	Tracker  *tracker.Service
	Notifier *notify.Dispatcher // nil when notifications are disabled
}

// ConfigureLogging applies the logging section to the package logger.
func ConfigureLogging(cfg config.LoggingConfig) {
	logger.SetLevel(logger.ParseLevel(cfg.Level))
	if cfg.RedactPII != nil {
		logger.SetRedactPII(*cfg.RedactPII)
	}
}

// New opens storage and builds the tracker with its notifier.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	backends, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	svc := tracker.NewService(backends.Sparks, cfg.Scoring.Model())
	svc.SetMaxAttempts(cfg.Tracker.MaxAttempts)
	svc.SetDefaultTTL(cfg.Tracker.DefaultTTL())

	a := &App{Config: cfg, Backends: backends, Tracker: svc}

	if cfg.Notifications.Enabled {
		d, err := NewDispatcher(ctx, cfg.Notifications, backends.Inbox, nil)
		if err != nil {
			backends.Close()
			return nil, err
		}
		svc.SetNotifier(d, backends.Prefs)
		svc.SetAsyncNotify(tracker.DefaultNotifyTimeout)
		a.Notifier = d
	} else {
		log.Println("Notifications disabled")
	}

	return a, nil
}

// NewDispatcher builds the notification dispatcher. Email is wired when SES
// has a sender address, push when a webhook URL is set. httpClient may be nil.
func NewDispatcher(ctx context.Context, cfg config.NotificationsConfig, inbox notify.Inbox, httpClient httpretry.HTTPDoer) (*notify.Dispatcher, error) {
	overrides := make(map[domain.NotificationType]notify.Template, len(cfg.Templates))
	for k, v := range cfg.Templates {
		overrides[domain.NotificationType(k)] = notify.Template{Title: v.Title, Message: v.Message}
	}
	d := notify.NewDispatcher(inbox, notify.NewRenderer(overrides))

	if cfg.SES.Enabled() {
		sender, err := notify.NewSESSender(ctx, cfg.SES.Region, cfg.SES.AccessKey, cfg.SES.SecretKey, cfg.SES.FromEmail, cfg.SES.FromName)
		if err != nil {
			return nil, fmt.Errorf("ses sender: %w", err)
		}
		d.SetEmailSender(sender)
		log.Printf("Email notifications enabled (from=%s)", cfg.SES.FromEmail)
	}

	if cfg.Push.WebhookURL != "" {
		if httpClient == nil {
			httpClient = &http.Client{Timeout: 10 * time.Second}
		}
		client := httpretry.New(httpClient, httpretry.WithMaxRetries(cfg.Push.MaxRetries))
		d.SetPusher(notify.NewWebhookPusher(cfg.Push.WebhookURL, cfg.Push.Secret, client))
		log.Printf("Push notifications enabled (webhook=%s)", cfg.Push.WebhookURL)
	}

	return d, nil
}

// SQLDB returns the raw SQL handle, or nil when storage is not SQL.
func (a *App) SQLDB() *sql.DB {
	if a.Backends.SQL == nil {
		return nil
	}
	return a.Backends.SQL.DB().DB
}

// ExpiryLock returns the sweeper's leader lock: Redis when connected,
// Postgres advisory locks on postgres storage, in-process otherwise.
func (a *App) ExpiryLock() distlock.Lock {
	var pg *sql.DB
	if a.Backends.SQL != nil && a.Backends.SQL.Driver() == sqlstore.DriverPostgres {
		pg = a.SQLDB()
	}
	ttl := time.Duration(a.Config.Expiry.LockTTLSeconds) * time.Second
	return distlock.New(a.Backends.Redis, pg, worker.LockKey(), ttl)
}

// NewExpirySweeper builds the sweeper from the expiry section, archiving to
// S3 when an archive bucket is configured.
func (a *App) NewExpirySweeper() *worker.ExpirySweeper {
	var archiver worker.Archiver
	if a.Backends.Archiver != nil {
		archiver = a.Backends.Archiver
	}
	cfg := a.Config.Expiry
	ttl := time.Duration(cfg.LockTTLSeconds) * time.Second
	return worker.NewExpirySweeper(a.Tracker, a.ExpiryLock(), archiver, cfg.Interval(), cfg.BatchSize, ttl)
}

// Close waits for pending notification deliveries, then releases every
// backend.
func (a *App) Close() error {
	a.Tracker.Wait()
	return a.Backends.Close()
}
