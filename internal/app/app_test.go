package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/spark-tracker/internal/config"
	"github.com/ignite/spark-tracker/internal/domain"
	"github.com/ignite/spark-tracker/internal/engagement"
	"github.com/ignite/spark-tracker/internal/pkg/distlock"
	"github.com/ignite/spark-tracker/internal/repository/memory"
	"github.com/ignite/spark-tracker/internal/service/tracker"
)

func TestNew_Memory(t *testing.T) {
	ctx := context.Background()
	cfg := config.Defaults()

	a, err := New(ctx, cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Notifier)
	assert.Nil(t, a.SQLDB())
	assert.IsType(t, &distlock.LocalLock{}, a.ExpiryLock())

	rec, err := a.Tracker.Create(ctx, tracker.CreateInput{OwnerID: "rep-1", ContentID: "c-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, rec.Status)
}

func TestNew_NotificationsDisabled(t *testing.T) {
	cfg := config.Defaults()
	cfg.Notifications.Enabled = false

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.Notifier)
}

func TestNew_RedisLock(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Defaults()
	cfg.Storage.Type = "redis"
	cfg.Storage.RedisAddr = mr.Addr()

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &distlock.RedisLock{}, a.ExpiryLock())

	res, err := a.NewExpirySweeper().Sweep(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Acquired)
	assert.Equal(t, 0, res.Expired)
}

func TestNew_StorageError(t *testing.T) {
	cfg := config.Defaults()
	cfg.Storage.Type = "cassandra"

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewDispatcher_TemplateOverrides(t *testing.T) {
	cfg := config.NotificationsConfig{
		Enabled:   true,
		Templates: map[string]config.TemplateConfig{},
	}
	for _, nt := range []domain.NotificationType{
		domain.NotificationOpened, domain.NotificationEngaged, domain.NotificationShared,
		domain.NotificationConverted, domain.NotificationHotLead,
	} {
		cfg.Templates[string(nt)] = config.TemplateConfig{Title: "Custom: {{ practice_name }}", Message: "m"}
	}

	d, err := NewDispatcher(context.Background(), cfg, memory.NewInbox(), nil)
	require.NoError(t, err)

	prior := &domain.EngagementRecord{
		ID:        "s-1",
		OwnerID:   "rep-1",
		Status:    domain.StatusSent,
		Recipient: domain.Recipient{Name: "Dr. Lee", PracticeName: "Lee Dental"},
	}
	next := prior.Clone()
	next.Status = domain.StatusViewed
	next.Opens = 1

	n, err := d.Build(tracker.Notice{
		Transition:  engagement.Transition{Prior: prior, Next: next, Event: domain.Event{Type: domain.EventView}},
		Preferences: domain.DefaultPreferences("rep-1"),
		At:          time.Date(2026, 5, 4, 14, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "Custom: Lee Dental", n.Title)
	assert.Equal(t, "rep-1", n.OwnerID)
}

func TestConfigureLogging(t *testing.T) {
	off := false
	ConfigureLogging(config.LoggingConfig{Level: "debug", RedactPII: &off})
	ConfigureLogging(config.LoggingConfig{Level: "info"})
}
