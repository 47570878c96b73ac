package engagement

import "github.com/ignite/spark-tracker/internal/domain"

// Quality classifies score and the caller-supplied engagement depth.
// Branches are evaluated in order; the first match wins.
func (m Model) Quality(score, depth float64) domain.EngagementQuality {
	t := m.Thresholds
	score, depth = clampPercent(score), clampPercent(depth)
	switch {
	case score > t.ExceptionalQuality && depth > t.ExceptionalQuality:
		return domain.QualityExceptional
	case score > t.HighQuality || depth > t.HighQuality:
		return domain.QualityHigh
	case score > t.MediumQuality || depth > t.MediumQuality:
		return domain.QualityMedium
	default:
		return domain.QualityLow
	}
}

// Temperature classifies purchase intent. buyingSignals is the number of
// distinct buying signals carried by the current event.
func (m Model) Temperature(score float64, c domain.Counters, interest float64, buyingSignals int) domain.LeadTemperature {
	t := m.Thresholds
	score, interest = clampPercent(score), clampPercent(interest)
	switch {
	case nonNegInt(c.Conversions) > 0 || buyingSignals >= t.BlazingMinBuyingSignals:
		return domain.TemperatureBlazing
	case score > t.HotScore || interest > t.HotInterest:
		return domain.TemperatureHot
	case score > t.WarmScore || nonNeg(c.TimeSpentSeconds) > t.WarmTimeSeconds:
		return domain.TemperatureWarm
	default:
		return domain.TemperatureCold
	}
}

// Stage classifies the funnel position.
func (m Model) Stage(score float64, c domain.Counters, depth float64) domain.BuyingStage {
	t := m.Thresholds
	score, depth = clampPercent(score), clampPercent(depth)
	switch {
	case nonNegInt(c.Conversions) > 0:
		return domain.StagePurchase
	case score > t.DecisionScore || depth > t.DecisionDepth:
		return domain.StageDecision
	case nonNeg(c.TimeSpentSeconds) > t.ConsiderationTimeSeconds || nonNegInt(c.Clicks) > t.ConsiderationClicks:
		return domain.StageConsideration
	default:
		return domain.StageAwareness
	}
}

// EventStatus is the status an event implies on its own, before it is
// combined with the record's prior status.
func (m Model) EventStatus(ev domain.Event, temp domain.LeadTemperature) domain.SparkStatus {
	switch {
	case ev.Type == domain.EventConversion:
		return domain.StatusConverted
	case temp == domain.TemperatureBlazing:
		return domain.StatusBlazing
	case clampPercent(ev.EngagementDepth) > m.Thresholds.EngagedDepth:
		return domain.StatusEngaged
	default:
		return domain.StatusViewed
	}
}

// AdvanceStatus combines the prior status with a freshly computed one.
// Converted and expired are sticky; otherwise the higher-ranked status wins.
func AdvanceStatus(prior, computed domain.SparkStatus) domain.SparkStatus {
	if prior.IsTerminal() {
		return prior
	}
	if computed.Rank() > prior.Rank() {
		return computed
	}
	return prior
}
