package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NotificationType classifies a rep-facing engagement alert.
type NotificationType string

const (
	NotificationOpened    NotificationType = "content_opened"
	NotificationEngaged   NotificationType = "content_engaged"
	NotificationShared    NotificationType = "content_shared"
	NotificationConverted NotificationType = "content_converted"
	NotificationHotLead   NotificationType = "hot_lead_alert"
)

// Priority is the delivery urgency of a notification.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Channel names a notification delivery channel.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
)

// Notification is an alert delivered to the Spark owner.
type Notification struct {
	ID                 string           `json:"id"`
	OwnerID            string           `json:"owner_id"`
	SparkID            string           `json:"spark_id"`
	Type               NotificationType `json:"type"`
	Priority           Priority         `json:"priority"`
	Title              string           `json:"title"`
	Message            string           `json:"message"`
	EventType          EventType        `json:"event_type"`
	LeadTemperature    LeadTemperature  `json:"lead_temperature"`
	EngagementScore    float64          `json:"engagement_score"`
	RecommendedActions []string         `json:"recommended_actions"`
	Channels           []Channel        `json:"channels"`
	CreatedAt          time.Time        `json:"created_at"`
	ReadAt             *time.Time       `json:"read_at,omitempty"`
}

// NotificationTriggers selects which event families may raise a notification.
type NotificationTriggers struct {
	ContentOpened   bool `json:"content_opened" yaml:"content_opened"`
	FirstEngagement bool `json:"first_engagement" yaml:"first_engagement"`
	HighEngagement  bool `json:"high_engagement" yaml:"high_engagement"`
	HotLeadAlert    bool `json:"hot_lead_alert" yaml:"hot_lead_alert"`
	Conversion      bool `json:"conversion" yaml:"conversion"`
	Sharing         bool `json:"sharing" yaml:"sharing"`
}

// NotificationTiming controls real-time vs. batched delivery.
type NotificationTiming struct {
	Immediate     bool `json:"immediate" yaml:"immediate"`
	DailyDigest   bool `json:"daily_digest" yaml:"daily_digest"`
	WeeklySummary bool `json:"weekly_summary" yaml:"weekly_summary"`
}

// QuietHours is a local-time window during which email is suppressed.
// Start and End are "HH:MM". A window whose end is before its start wraps
// midnight (e.g. 22:00-08:00).
type QuietHours struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Start    string `json:"start_time" yaml:"start_time"`
	End      string `json:"end_time" yaml:"end_time"`
	Timezone string `json:"timezone,omitempty" yaml:"timezone"`
}

// Validate checks that Start, End and Timezone parse.
func (q QuietHours) Validate() error {
	if _, err := parseClock(q.Start); err != nil {
		return fmt.Errorf("quiet hours start: %w", err)
	}
	if _, err := parseClock(q.End); err != nil {
		return fmt.Errorf("quiet hours end: %w", err)
	}
	if q.Timezone != "" {
		if _, err := time.LoadLocation(q.Timezone); err != nil {
			return fmt.Errorf("quiet hours timezone: %w", err)
		}
	}
	return nil
}

// Contains reports whether t falls inside the quiet window. Disabled or
// malformed windows contain nothing.
func (q QuietHours) Contains(t time.Time) bool {
	if !q.Enabled {
		return false
	}
	start, err := parseClock(q.Start)
	if err != nil {
		return false
	}
	end, err := parseClock(q.End)
	if err != nil {
		return false
	}
	if q.Timezone != "" {
		if loc, err := time.LoadLocation(q.Timezone); err == nil {
			t = t.In(loc)
		}
	}
	now := t.Hour()*60 + t.Minute()
	if start <= end {
		return now >= start && now < end
	}
	return now >= start || now < end
}

// parseClock converts "HH:MM" to minutes after midnight.
func parseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// NotificationPreferences are a Spark owner's delivery settings.
type NotificationPreferences struct {
	OwnerID string               `json:"owner_id"`
	Email   bool                 `json:"email_notifications"`
	Push    bool                 `json:"push_notifications"`
	Address string               `json:"email_address,omitempty"`
	Trigger NotificationTriggers `json:"notification_triggers"`
	Timing  NotificationTiming   `json:"notification_timing"`
	Quiet   QuietHours           `json:"quiet_hours"`
}

// DefaultPreferences returns the settings used for owners who never saved any.
func DefaultPreferences(ownerID string) NotificationPreferences {
	return NotificationPreferences{
		OwnerID: ownerID,
		Email:   true,
		Push:    true,
		Trigger: NotificationTriggers{
			ContentOpened:   true,
			FirstEngagement: true,
			HighEngagement:  true,
			HotLeadAlert:    true,
			Conversion:      true,
			Sharing:         true,
		},
		Timing: NotificationTiming{
			Immediate:     true,
			WeeklySummary: true,
		},
		Quiet: QuietHours{
			Enabled: true,
			Start:   "22:00",
			End:     "08:00",
		},
	}
}
