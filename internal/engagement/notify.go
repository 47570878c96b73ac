package engagement

import (
	"time"

	"github.com/ignite/spark-tracker/internal/domain"
)

// ShouldNotify is the local gate the tracker runs before handing a
// transition to the notification collaborator. The owner must have the
// trigger for the event family enabled and the engagement must be
// significant. Expired transitions never notify.
func (m Model) ShouldNotify(ev domain.Event, prior, next *domain.EngagementRecord, prefs domain.NotificationPreferences) bool {
	if prior == nil || next == nil || next.Status == domain.StatusExpired {
		return false
	}
	return TriggerEnabled(ev.Type, prefs.Trigger) && m.Significant(ev, prior, next)
}

// TriggerEnabled maps an event type to the owner's trigger switches.
func TriggerEnabled(t domain.EventType, tr domain.NotificationTriggers) bool {
	switch t {
	case domain.EventView:
		return tr.ContentOpened
	case domain.EventClick, domain.EventScroll, domain.EventTimeSpent:
		return tr.FirstEngagement || tr.HighEngagement
	case domain.EventShare:
		return tr.Sharing
	case domain.EventConversion:
		return tr.Conversion
	}
	return false
}

// Significant reports whether the transition is worth an alert: a hot or
// blazing lead, a conversion, deep engagement, or a new buying signal.
func (m Model) Significant(ev domain.Event, prior, next *domain.EngagementRecord) bool {
	if next.LeadTemperature == domain.TemperatureHot || next.LeadTemperature == domain.TemperatureBlazing {
		return true
	}
	if ev.Type == domain.EventConversion {
		return true
	}
	if ev.EngagementDepth > m.Thresholds.SignificantDepth {
		return true
	}
	return len(NewBuyingSignals(prior, next)) > 0
}

// NewBuyingSignals returns caller-supplied signals present on next but not on prior.
func NewBuyingSignals(prior, next *domain.EngagementRecord) []string {
	var out []string
	for _, s := range next.InterestSignals {
		if IsHeuristicSignal(s) || prior.HasSignal(s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Significance scores the event for delivery urgency. prior is the record
// before the event and next after it.
func Significance(ev domain.Event, prior, next *domain.EngagementRecord) domain.Priority {
	score := 0
	if ev.Type == domain.EventView && prior.Opens == 0 {
		score += 20
	}
	if ev.Type == domain.EventTimeSpent {
		switch {
		case ev.Seconds > 120:
			score += 30
		case ev.Seconds > 60:
			score += 20
		case ev.Seconds > 30:
			score += 10
		}
	}
	switch ev.Type {
	case domain.EventClick:
		score += 15
	case domain.EventShare:
		score += 25
	case domain.EventConversion:
		score += 50
	}
	if ev.Type == domain.EventScroll {
		switch {
		case ev.Percentage > 80:
			score += 15
		case ev.Percentage > 50:
			score += 10
		}
	}
	if next.Clicks > 1 {
		score += 10
	}
	if next.Opens > 2 {
		score += 5
	}

	switch {
	case score >= 60:
		return domain.PriorityUrgent
	case score >= 40:
		return domain.PriorityHigh
	case score >= 20:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}

// NotificationTypeFor picks the alert type for an event at a given priority.
func NotificationTypeFor(t domain.EventType, p domain.Priority) domain.NotificationType {
	switch {
	case t == domain.EventConversion:
		return domain.NotificationConverted
	case t == domain.EventShare:
		return domain.NotificationShared
	case p == domain.PriorityUrgent:
		return domain.NotificationHotLead
	case t == domain.EventClick || t == domain.EventScroll || t == domain.EventTimeSpent:
		return domain.NotificationEngaged
	default:
		return domain.NotificationOpened
	}
}

var baseActions = []string{
	"View full engagement details",
	"Review prospect profile",
	"Check content performance",
}

// RecommendedActions lists follow-up steps for the rep, most urgent first.
func RecommendedActions(t domain.EventType, p domain.Priority) []string {
	var lead []string
	switch {
	case p == domain.PriorityUrgent || t == domain.EventConversion:
		lead = []string{
			"Call immediately while engaged",
			"Send personalized follow-up email",
			"Schedule demo within 24 hours",
		}
	case p == domain.PriorityHigh || t == domain.EventShare:
		lead = []string{
			"Send follow-up email within 2 hours",
			"Prepare demo materials",
			"Research practice background",
		}
	case t == domain.EventView:
		lead = []string{
			"Send follow-up email within 24 hours",
			"Prepare additional resources",
		}
	}
	out := make([]string, 0, len(lead)+len(baseActions))
	out = append(out, lead...)
	return append(out, baseActions...)
}

// Channels returns the delivery channels for a notification. In-app is
// always included. Quiet hours suppress email only.
func Channels(prefs domain.NotificationPreferences, p domain.Priority, now time.Time) []domain.Channel {
	out := []domain.Channel{domain.ChannelInApp}
	if prefs.Email && !prefs.Quiet.Contains(now) &&
		(p == domain.PriorityUrgent || (p == domain.PriorityHigh && prefs.Timing.Immediate)) {
		out = append(out, domain.ChannelEmail)
	}
	if prefs.Push {
		out = append(out, domain.ChannelPush)
	}
	return out
}
