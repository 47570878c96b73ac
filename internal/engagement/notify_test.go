package engagement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/spark-tracker/internal/domain"
)

func apply(t *testing.T, m Model, rec *domain.EngagementRecord, ev domain.Event) Transition {
	t.Helper()
	tr, err := m.Apply(rec, ev, testNow)
	require.NoError(t, err)
	return tr
}

func TestShouldNotify(t *testing.T) {
	m := DefaultModel()
	prefs := domain.DefaultPreferences("rep-1")

	t.Run("plain first view is not significant", func(t *testing.T) {
		ev := domain.Event{Type: domain.EventView}
		tr := apply(t, m, freshRecord(), ev)
		assert.False(t, m.ShouldNotify(ev, tr.Prior, tr.Next, prefs))
	})

	t.Run("deep view is significant", func(t *testing.T) {
		ev := domain.Event{Type: domain.EventView, EngagementDepth: 75}
		tr := apply(t, m, freshRecord(), ev)
		assert.True(t, m.ShouldNotify(ev, tr.Prior, tr.Next, prefs))
	})

	t.Run("conversion", func(t *testing.T) {
		ev := domain.Event{Type: domain.EventConversion}
		tr := apply(t, m, freshRecord(), ev)
		assert.True(t, m.ShouldNotify(ev, tr.Prior, tr.Next, prefs))

		off := prefs
		off.Trigger.Conversion = false
		assert.False(t, m.ShouldNotify(ev, tr.Prior, tr.Next, off))
	})

	t.Run("hot lead", func(t *testing.T) {
		ev := domain.Event{Type: domain.EventClick, InterestLevel: 90}
		tr := apply(t, m, freshRecord(), ev)
		require.Equal(t, domain.TemperatureHot, tr.Next.LeadTemperature)
		assert.True(t, m.ShouldNotify(ev, tr.Prior, tr.Next, prefs))

		off := prefs
		off.Trigger.FirstEngagement = false
		off.Trigger.HighEngagement = false
		assert.False(t, m.ShouldNotify(ev, tr.Prior, tr.Next, off))
	})

	t.Run("new buying signal only once", func(t *testing.T) {
		ev := domain.Event{Type: domain.EventClick, BuyingSignals: []string{"pricing_inquiry"}}
		tr := apply(t, m, freshRecord(), ev)
		assert.True(t, m.ShouldNotify(ev, tr.Prior, tr.Next, prefs))

		tr2 := apply(t, m, tr.Next, ev)
		assert.False(t, m.ShouldNotify(ev, tr2.Prior, tr2.Next, prefs))
	})

	t.Run("heuristic signal is not a buying signal", func(t *testing.T) {
		ev := domain.Event{Type: domain.EventShare}
		tr := apply(t, m, freshRecord(), ev)
		require.Contains(t, tr.NewSignals, domain.SignalContentAdvocate)
		assert.False(t, m.ShouldNotify(ev, tr.Prior, tr.Next, prefs))
	})

	t.Run("expired never notifies", func(t *testing.T) {
		past := testNow.Add(-time.Second)
		rec := freshRecord()
		rec.ExpiresAt = &past
		ev := domain.Event{Type: domain.EventConversion}
		tr := apply(t, m, rec, ev)
		assert.False(t, m.ShouldNotify(ev, tr.Prior, tr.Next, prefs))
	})
}

func TestTriggerEnabled(t *testing.T) {
	none := domain.NotificationTriggers{}
	assert.False(t, TriggerEnabled(domain.EventView, none))
	assert.True(t, TriggerEnabled(domain.EventView, domain.NotificationTriggers{ContentOpened: true}))
	assert.True(t, TriggerEnabled(domain.EventScroll, domain.NotificationTriggers{HighEngagement: true}))
	assert.True(t, TriggerEnabled(domain.EventTimeSpent, domain.NotificationTriggers{FirstEngagement: true}))
	assert.True(t, TriggerEnabled(domain.EventShare, domain.NotificationTriggers{Sharing: true}))
	assert.False(t, TriggerEnabled(domain.EventShare, domain.NotificationTriggers{Conversion: true}))
	assert.False(t, TriggerEnabled("hover", domain.DefaultPreferences("x").Trigger))
}

func TestSignificance(t *testing.T) {
	empty := freshRecord()

	tests := []struct {
		name  string
		ev    domain.Event
		prior *domain.EngagementRecord
		next  *domain.EngagementRecord
		want  domain.Priority
	}{
		{"first view", domain.Event{Type: domain.EventView}, empty, &domain.EngagementRecord{Counters: domain.Counters{Opens: 1}}, domain.PriorityMedium},
		{"repeat view", domain.Event{Type: domain.EventView}, &domain.EngagementRecord{Counters: domain.Counters{Opens: 1}}, &domain.EngagementRecord{Counters: domain.Counters{Opens: 2}}, domain.PriorityLow},
		{"click", domain.Event{Type: domain.EventClick}, empty, &domain.EngagementRecord{Counters: domain.Counters{Clicks: 1}}, domain.PriorityLow},
		{"second click", domain.Event{Type: domain.EventClick}, empty, &domain.EngagementRecord{Counters: domain.Counters{Clicks: 2}}, domain.PriorityMedium},
		{"long read", domain.Event{Type: domain.EventTimeSpent, Seconds: 150}, empty, empty, domain.PriorityMedium},
		{"share", domain.Event{Type: domain.EventShare}, empty, empty, domain.PriorityMedium},
		{"deep scroll with clicks", domain.Event{Type: domain.EventScroll, Percentage: 90}, empty, &domain.EngagementRecord{Counters: domain.Counters{Clicks: 3, Opens: 3}}, domain.PriorityMedium},
		{"conversion", domain.Event{Type: domain.EventConversion}, empty, empty, domain.PriorityHigh},
		{"conversion after clicks", domain.Event{Type: domain.EventConversion}, empty, &domain.EngagementRecord{Counters: domain.Counters{Clicks: 2}}, domain.PriorityUrgent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Significance(tc.ev, tc.prior, tc.next))
		})
	}
}

func TestNotificationTypeFor(t *testing.T) {
	assert.Equal(t, domain.NotificationConverted, NotificationTypeFor(domain.EventConversion, domain.PriorityLow))
	assert.Equal(t, domain.NotificationShared, NotificationTypeFor(domain.EventShare, domain.PriorityUrgent))
	assert.Equal(t, domain.NotificationHotLead, NotificationTypeFor(domain.EventClick, domain.PriorityUrgent))
	assert.Equal(t, domain.NotificationEngaged, NotificationTypeFor(domain.EventScroll, domain.PriorityHigh))
	assert.Equal(t, domain.NotificationOpened, NotificationTypeFor(domain.EventView, domain.PriorityMedium))
}

func TestRecommendedActions(t *testing.T) {
	urgent := RecommendedActions(domain.EventClick, domain.PriorityUrgent)
	require.Len(t, urgent, 6)
	assert.Equal(t, "Call immediately while engaged", urgent[0])

	share := RecommendedActions(domain.EventShare, domain.PriorityLow)
	assert.Equal(t, "Send follow-up email within 2 hours", share[0])

	view := RecommendedActions(domain.EventView, domain.PriorityMedium)
	require.Len(t, view, 5)

	base := RecommendedActions(domain.EventScroll, domain.PriorityLow)
	assert.Equal(t, baseActions, base)
}

func TestChannels(t *testing.T) {
	prefs := domain.DefaultPreferences("rep-1")
	at := func(h, m int) time.Time { return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC) }

	tests := []struct {
		name string
		p    domain.Priority
		now  time.Time
		want []domain.Channel
	}{
		{"urgent midday", domain.PriorityUrgent, at(12, 0), []domain.Channel{domain.ChannelInApp, domain.ChannelEmail, domain.ChannelPush}},
		{"urgent late night", domain.PriorityUrgent, at(23, 30), []domain.Channel{domain.ChannelInApp, domain.ChannelPush}},
		{"urgent early morning", domain.PriorityUrgent, at(7, 59), []domain.Channel{domain.ChannelInApp, domain.ChannelPush}},
		{"urgent at quiet end", domain.PriorityUrgent, at(8, 0), []domain.Channel{domain.ChannelInApp, domain.ChannelEmail, domain.ChannelPush}},
		{"high with immediate timing", domain.PriorityHigh, at(12, 0), []domain.Channel{domain.ChannelInApp, domain.ChannelEmail, domain.ChannelPush}},
		{"medium", domain.PriorityMedium, at(12, 0), []domain.Channel{domain.ChannelInApp, domain.ChannelPush}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Channels(prefs, tc.p, tc.now))
		})
	}

	batched := prefs
	batched.Timing.Immediate = false
	batched.Push = false
	assert.Equal(t, []domain.Channel{domain.ChannelInApp}, Channels(batched, domain.PriorityHigh, at(12, 0)))

	noEmail := prefs
	noEmail.Email = false
	assert.NotContains(t, Channels(noEmail, domain.PriorityUrgent, at(12, 0)), domain.ChannelEmail)
}
