package domain

import "time"

// SparkStatus enumerates the lifecycle states of a Spark.
type SparkStatus string

const (
	StatusDraft     SparkStatus = "draft"
	StatusActive    SparkStatus = "active"
	StatusSent      SparkStatus = "sent"
	StatusViewed    SparkStatus = "viewed"
	StatusEngaged   SparkStatus = "engaged"
	StatusBlazing   SparkStatus = "blazing"
	StatusConverted SparkStatus = "converted"
	StatusExpired   SparkStatus = "expired"
)

// statusRank orders statuses from least to most engaged. Expired sits outside
// the ordering and is handled explicitly.
var statusRank = map[SparkStatus]int{
	StatusDraft:     0,
	StatusActive:    1,
	StatusSent:      1,
	StatusViewed:    2,
	StatusEngaged:   3,
	StatusBlazing:   4,
	StatusConverted: 5,
}

// Rank returns the engagement rank of the status, or -1 for expired/unknown.
func (s SparkStatus) Rank() int {
	r, ok := statusRank[s]
	if !ok {
		return -1
	}
	return r
}

// IsTerminal returns true if no event can move the Spark out of this status.
func (s SparkStatus) IsTerminal() bool {
	return s == StatusConverted || s == StatusExpired
}

// Valid reports whether s is one of the known statuses.
func (s SparkStatus) Valid() bool {
	return s == StatusExpired || s.Rank() >= 0
}

// EngagementQuality is the coarse quality tier derived from score and depth.
type EngagementQuality string

const (
	QualityLow         EngagementQuality = "low"
	QualityMedium      EngagementQuality = "medium"
	QualityHigh        EngagementQuality = "high"
	QualityExceptional EngagementQuality = "exceptional"
)

// LeadTemperature summarizes purchase-intent strength.
type LeadTemperature string

const (
	TemperatureCold    LeadTemperature = "cold"
	TemperatureWarm    LeadTemperature = "warm"
	TemperatureHot     LeadTemperature = "hot"
	TemperatureBlazing LeadTemperature = "blazing"
)

// BuyingStage is the funnel position derived from the same signals.
type BuyingStage string

const (
	StageAwareness     BuyingStage = "awareness"
	StageConsideration BuyingStage = "consideration"
	StageDecision      BuyingStage = "decision"
	StagePurchase      BuyingStage = "purchase"
)

// Interest signal tags recorded by the heuristics. Caller-supplied buying
// signals are stored verbatim alongside these.
const (
	SignalRepeatVisitor   = "repeat_visitor"
	SignalDeepEngagement  = "deep_engagement"
	SignalHighInteraction = "high_interaction"
	SignalContentAdvocate = "content_advocate"
)

// Counters holds the cumulative engagement counters for a Spark.
// Every counter only increases; ScrollDepthPercent is a max-hold value.
type Counters struct {
	Opens              int     `json:"opens"`
	UniqueOpens        int     `json:"unique_opens"`
	TimeSpentSeconds   float64 `json:"time_spent_seconds"`
	Clicks             int     `json:"clicks"`
	Shares             int     `json:"shares"`
	Conversions        int     `json:"conversions"`
	ScrollDepthPercent float64 `json:"scroll_depth_percent"`
}

// Add returns the element-wise sum of two counter sets, with scroll depth
// combined by max.
func (c Counters) Add(o Counters) Counters {
	out := Counters{
		Opens:              c.Opens + o.Opens,
		UniqueOpens:        c.UniqueOpens + o.UniqueOpens,
		TimeSpentSeconds:   c.TimeSpentSeconds + o.TimeSpentSeconds,
		Clicks:             c.Clicks + o.Clicks,
		Shares:             c.Shares + o.Shares,
		Conversions:        c.Conversions + o.Conversions,
		ScrollDepthPercent: c.ScrollDepthPercent,
	}
	if o.ScrollDepthPercent > out.ScrollDepthPercent {
		out.ScrollDepthPercent = o.ScrollDepthPercent
	}
	return out
}

// Recipient identifies the prospect a Spark was sent to.
type Recipient struct {
	Email        string `json:"email,omitempty"`
	Name         string `json:"name,omitempty"`
	PracticeName string `json:"practice_name,omitempty"`
}

// EngagementRecord is the tracked state of one Spark (content share / magic link).
// Version is the compare-and-swap stamp: a store accepts a write only if the
// stored version still equals the version the writer read.
type EngagementRecord struct {
	ID             string    `json:"id"`
	Token          string    `json:"token"`
	OwnerID        string    `json:"owner_id"`
	ContentID      string    `json:"content_id,omitempty"`
	TemplateID     string    `json:"template_id,omitempty"`
	Recipient      Recipient `json:"recipient"`
	SubjectLine    string    `json:"subject_line,omitempty"`
	ContentPreview string    `json:"content_preview,omitempty"`

	Counters
	EngagementScore   float64           `json:"engagement_score"`
	ConversionScore   float64           `json:"conversion_score"`
	EngagementQuality EngagementQuality `json:"engagement_quality"`
	LeadTemperature   LeadTemperature   `json:"lead_temperature"`
	BuyingStage       BuyingStage       `json:"buying_stage"`
	InterestSignals   []string          `json:"interest_signals"`
	Status            SparkStatus       `json:"status"`

	FirstViewedAt *time.Time `json:"first_viewed_at,omitempty"`
	LastViewedAt  *time.Time `json:"last_viewed_at,omitempty"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsExpiredAt reports whether the record's expiry is at or before t.
// A converted record never expires.
func (r *EngagementRecord) IsExpiredAt(t time.Time) bool {
	if r.Status == StatusExpired {
		return true
	}
	if r.Status == StatusConverted || r.ExpiresAt == nil {
		return false
	}
	return !t.Before(*r.ExpiresAt)
}

// HasSignal reports whether tag is already among the record's interest signals.
func (r *EngagementRecord) HasSignal(tag string) bool {
	for _, s := range r.InterestSignals {
		if s == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate without aliasing slices or
// timestamps held by a store.
func (r *EngagementRecord) Clone() *EngagementRecord {
	cp := *r
	if r.InterestSignals != nil {
		cp.InterestSignals = append([]string(nil), r.InterestSignals...)
	}
	cp.FirstViewedAt = cloneTime(r.FirstViewedAt)
	cp.LastViewedAt = cloneTime(r.LastViewedAt)
	cp.SentAt = cloneTime(r.SentAt)
	cp.ExpiresAt = cloneTime(r.ExpiresAt)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
