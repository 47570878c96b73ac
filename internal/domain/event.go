package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidEvent is returned for an unrecognized event type or an
// out-of-range numeric field. The record the event targeted is left unchanged.
var ErrInvalidEvent = errors.New("invalid engagement event")

// MaxEventSeconds bounds the duration a single time_spent event may report.
const MaxEventSeconds = 24 * 60 * 60

// EventType enumerates the engagement events a Spark viewer can emit.
type EventType string

const (
	EventView       EventType = "view"
	EventClick      EventType = "click"
	EventScroll     EventType = "scroll"
	EventTimeSpent  EventType = "time_spent"
	EventShare      EventType = "share"
	EventConversion EventType = "conversion"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventView, EventClick, EventScroll, EventTimeSpent, EventShare, EventConversion:
		return true
	}
	return false
}

// Event is a single engagement event. Type selects which payload fields are
// meaningful:
//
//	view        ReturnVisit
//	click       Target
//	scroll      Percentage (0-100)
//	time_spent  Seconds (0-86400)
//	share       -
//	conversion  Action
//
// EngagementDepth, InterestLevel, Interactions and BuyingSignals are optional
// viewer-side insights that any event type may carry.
type Event struct {
	Type EventType `json:"type"`

	Percentage  float64 `json:"percentage,omitempty"`
	Seconds     float64 `json:"seconds,omitempty"`
	Target      string  `json:"target,omitempty"`
	Action      string  `json:"action,omitempty"`
	ReturnVisit bool    `json:"return_visit,omitempty"`

	EngagementDepth float64  `json:"engagement_depth,omitempty"`
	InterestLevel   float64  `json:"interest_level,omitempty"`
	Interactions    int      `json:"interactions,omitempty"`
	BuyingSignals   []string `json:"buying_signals,omitempty"`

	DeviceType string    `json:"device_type,omitempty"`
	OccurredAt time.Time `json:"occurred_at,omitempty"`
}

// Validate rejects unknown event types and out-of-range numeric fields.
// All returned errors wrap ErrInvalidEvent.
func (e Event) Validate() error {
	if !e.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	for name, v := range map[string]float64{
		"percentage":       e.Percentage,
		"seconds":          e.Seconds,
		"engagement depth": e.EngagementDepth,
		"interest level":   e.InterestLevel,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not a finite number", ErrInvalidEvent, name)
		}
	}
	if e.Type == EventScroll && (e.Percentage < 0 || e.Percentage > 100) {
		return fmt.Errorf("%w: scroll percentage %.2f outside [0,100]", ErrInvalidEvent, e.Percentage)
	}
	if e.Type == EventTimeSpent && e.Seconds < 0 {
		return fmt.Errorf("%w: negative duration %.2f", ErrInvalidEvent, e.Seconds)
	}
	if e.Seconds > MaxEventSeconds {
		return fmt.Errorf("%w: duration %.0fs exceeds %ds", ErrInvalidEvent, e.Seconds, MaxEventSeconds)
	}
	if e.EngagementDepth < 0 || e.EngagementDepth > 100 {
		return fmt.Errorf("%w: engagement depth %.2f outside [0,100]", ErrInvalidEvent, e.EngagementDepth)
	}
	if e.InterestLevel < 0 || e.InterestLevel > 100 {
		return fmt.Errorf("%w: interest level %.2f outside [0,100]", ErrInvalidEvent, e.InterestLevel)
	}
	if e.Interactions < 0 {
		return fmt.Errorf("%w: negative interactions %d", ErrInvalidEvent, e.Interactions)
	}
	for _, s := range e.BuyingSignals {
		if s == "" {
			return fmt.Errorf("%w: empty buying signal", ErrInvalidEvent)
		}
	}
	return nil
}
