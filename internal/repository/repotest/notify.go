package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/spark-tracker/internal/domain"
	"github.com/ignite/spark-tracker/internal/notify"
)

// Inbox runs the notification inbox suite against a fresh store.
func Inbox(t *testing.T, inbox notify.Inbox) {
	ctx := context.Background()
	t0 := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, inbox.Save(ctx, &domain.Notification{
		ID: "n1", OwnerID: "rep-1", SparkID: "s1", Type: domain.NotificationOpened,
		Priority: domain.PriorityMedium, Title: "Opened", CreatedAt: t0,
		Channels: []domain.Channel{domain.ChannelInApp},
	}))
	require.NoError(t, inbox.Save(ctx, &domain.Notification{ID: "n2", OwnerID: "rep-1", CreatedAt: t0.Add(time.Minute)}))
	require.NoError(t, inbox.Save(ctx, &domain.Notification{ID: "n3", OwnerID: "rep-2", CreatedAt: t0}))
	assert.Error(t, inbox.Save(ctx, &domain.Notification{OwnerID: "rep-1"}))

	all, err := inbox.List(ctx, "rep-1", notify.InboxFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "n2", all[0].ID)
	assert.Equal(t, "Opened", all[1].Title)
	assert.Equal(t, []domain.Channel{domain.ChannelInApp}, all[1].Channels)
	assert.Nil(t, all[1].ReadAt)

	limited, err := inbox.List(ctx, "rep-1", notify.InboxFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	readAt := t0.Add(time.Hour)
	require.NoError(t, inbox.MarkRead(ctx, "rep-1", "n2", readAt))
	unread, err := inbox.List(ctx, "rep-1", notify.InboxFilter{UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "n1", unread[0].ID)

	all, err = inbox.List(ctx, "rep-1", notify.InboxFilter{})
	require.NoError(t, err)
	require.NotNil(t, all[0].ReadAt)
	assert.True(t, all[0].ReadAt.Equal(readAt))

	assert.ErrorIs(t, inbox.MarkRead(ctx, "rep-2", "n1", t0), notify.ErrNotFound)
}

// Preferences runs the preference store suite against a fresh store.
func Preferences(t *testing.T, store notify.PreferenceStore) {
	ctx := context.Background()

	p, err := store.Preferences(ctx, "rep-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultPreferences("rep-1"), p)

	p.Email = false
	p.Quiet.Start = "21:00"
	p.Quiet.Timezone = "America/Chicago"
	require.NoError(t, store.SavePreferences(ctx, p))

	got, err := store.Preferences(ctx, "rep-1")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	p.Push = false
	require.NoError(t, store.SavePreferences(ctx, p))
	got, err = store.Preferences(ctx, "rep-1")
	require.NoError(t, err)
	assert.False(t, got.Push)

	other, err := store.Preferences(ctx, "rep-2")
	require.NoError(t, err)
	assert.True(t, other.Email)

	assert.Error(t, store.SavePreferences(ctx, domain.NotificationPreferences{}))
}
