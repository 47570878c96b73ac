package engagement

import (
	"errors"
	"math"
	"time"

	"github.com/ignite/spark-tracker/internal/domain"
)

var errNilRecord = errors.New("engagement: nil record")

// Transition describes the effect of one event on a record. Prior and Next
// are independent copies; the input record is never mutated.
type Transition struct {
	Prior *domain.EngagementRecord
	Next  *domain.EngagementRecord
	Event domain.Event

	// NewSignals are the interest signals this event added to the record.
	NewSignals []string

	// Expired is set when the record was past its expiry. Counters are left
	// untouched and Next.Status is expired.
	Expired bool
}

// StatusChanged reports whether the event moved the record to a new status.
func (t Transition) StatusChanged() bool {
	return t.Prior.Status != t.Next.Status
}

// Delta returns the counter contribution of a single event. Scroll depth is
// expressed as a max-hold value so that Counters.Add folds deltas correctly.
func Delta(ev domain.Event) domain.Counters {
	switch ev.Type {
	case domain.EventView:
		return domain.Counters{Opens: 1}
	case domain.EventClick:
		return domain.Counters{Clicks: 1}
	case domain.EventScroll:
		return domain.Counters{ScrollDepthPercent: clampPercent(ev.Percentage)}
	case domain.EventTimeSpent:
		return domain.Counters{TimeSpentSeconds: nonNeg(ev.Seconds)}
	case domain.EventShare:
		return domain.Counters{Shares: 1}
	case domain.EventConversion:
		return domain.Counters{Conversions: 1}
	}
	return domain.Counters{}
}

// Apply folds ev into rec and recomputes every derived field. It returns
// domain.ErrInvalidEvent (wrapped) for malformed events and leaves rec as is.
// An expired record absorbs the event without changing its counters.
func (m Model) Apply(rec *domain.EngagementRecord, ev domain.Event, now time.Time) (Transition, error) {
	if rec == nil {
		return Transition{}, errNilRecord
	}
	if err := ev.Validate(); err != nil {
		return Transition{}, err
	}

	prior := rec.Clone()
	next := rec.Clone()
	tr := Transition{Prior: prior, Next: next, Event: ev}

	if next.IsExpiredAt(now) {
		if next.Status != domain.StatusExpired {
			next.Status = domain.StatusExpired
			next.UpdatedAt = now
		}
		tr.Expired = true
		return tr, nil
	}

	next.Counters = sanitize(next.Counters)
	firstView := ev.Type == domain.EventView && next.Opens == 0
	next.Counters = next.Counters.Add(Delta(ev))

	if ev.Type == domain.EventView {
		ts := now
		if firstView {
			next.UniqueOpens = 1
			next.FirstViewedAt = &ts
		}
		next.LastViewedAt = &ts
	}

	buying := distinct(ev.BuyingSignals)
	score := m.Score(next.Counters)

	next.EngagementScore = score
	next.EngagementQuality = m.Quality(score, ev.EngagementDepth)
	next.LeadTemperature = m.Temperature(score, next.Counters, ev.InterestLevel, len(buying))
	next.BuyingStage = m.Stage(score, next.Counters, ev.EngagementDepth)
	next.ConversionScore = m.ConversionScore(score, ev)

	for _, tag := range m.DetectSignals(next.Counters, ev) {
		if next.HasSignal(tag) {
			continue
		}
		next.InterestSignals = append(next.InterestSignals, tag)
		tr.NewSignals = append(tr.NewSignals, tag)
	}

	next.Status = AdvanceStatus(next.Status, m.EventStatus(ev, next.LeadTemperature))
	next.UpdatedAt = now
	return tr, nil
}

// DetectSignals returns the interest tags implied by ev against the updated
// counters c, followed by the event's own buying signals.
func (m Model) DetectSignals(c domain.Counters, ev domain.Event) []string {
	t := m.Thresholds
	var out []string
	if ev.ReturnVisit || (ev.Type == domain.EventView && c.Opens > 1) {
		out = append(out, domain.SignalRepeatVisitor)
	}
	if ev.Type == domain.EventTimeSpent && ev.Seconds > t.DeepEngagementSeconds {
		out = append(out, domain.SignalDeepEngagement)
	}
	if ev.Interactions > t.HighInteractionCount || c.Clicks > t.HighInteractionCount {
		out = append(out, domain.SignalHighInteraction)
	}
	if ev.Type == domain.EventShare {
		out = append(out, domain.SignalContentAdvocate)
	}
	return append(out, distinct(ev.BuyingSignals)...)
}

// ConversionScore estimates conversion likelihood from the engagement score
// and the event's buying signals, depth and return-visit flag.
func (m Model) ConversionScore(score float64, ev domain.Event) float64 {
	v := clampPercent(score) + 10*float64(len(distinct(ev.BuyingSignals)))
	if ev.EngagementDepth > 80 {
		v += 20
	}
	if ev.ReturnVisit {
		v += 15
	}
	return math.Min(MaxScore, v)
}

// IsHeuristicSignal reports whether tag is one of the built-in heuristic
// tags rather than a caller-supplied buying signal.
func IsHeuristicSignal(tag string) bool {
	switch tag {
	case domain.SignalRepeatVisitor, domain.SignalDeepEngagement,
		domain.SignalHighInteraction, domain.SignalContentAdvocate:
		return true
	}
	return false
}

func sanitize(c domain.Counters) domain.Counters {
	return domain.Counters{
		Opens:              nonNegInt(c.Opens),
		UniqueOpens:        nonNegInt(c.UniqueOpens),
		TimeSpentSeconds:   nonNeg(c.TimeSpentSeconds),
		Clicks:             nonNegInt(c.Clicks),
		Shares:             nonNegInt(c.Shares),
		Conversions:        nonNegInt(c.Conversions),
		ScrollDepthPercent: clampPercent(c.ScrollDepthPercent),
	}
}

// distinct drops duplicates while keeping first-seen order.
func distinct(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
