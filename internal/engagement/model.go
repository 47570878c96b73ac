package engagement

import (
	"math"

	"github.com/ignite/spark-tracker/internal/domain"
)

// MaxScore is the ceiling applied to the weighted engagement sum.
const MaxScore = 100.0

// Weights are the per-counter multipliers of the engagement score.
type Weights struct {
	Open          float64 `yaml:"open"`
	TimeSecond    float64 `yaml:"time_second"`
	Click         float64 `yaml:"click"`
	Share         float64 `yaml:"share"`
	Conversion    float64 `yaml:"conversion"`
	ScrollPercent float64 `yaml:"scroll_percent"`
}

// Thresholds are the classifier cut-offs. Comparisons are strict (>) unless
// the field name says otherwise.
type Thresholds struct {
	ExceptionalQuality float64 `yaml:"exceptional_quality"`
	HighQuality        float64 `yaml:"high_quality"`
	MediumQuality      float64 `yaml:"medium_quality"`

	BlazingMinBuyingSignals int     `yaml:"blazing_min_buying_signals"`
	HotScore                float64 `yaml:"hot_score"`
	HotInterest             float64 `yaml:"hot_interest"`
	WarmScore               float64 `yaml:"warm_score"`
	WarmTimeSeconds         float64 `yaml:"warm_time_seconds"`

	DecisionScore            float64 `yaml:"decision_score"`
	DecisionDepth            float64 `yaml:"decision_depth"`
	ConsiderationTimeSeconds float64 `yaml:"consideration_time_seconds"`
	ConsiderationClicks      int     `yaml:"consideration_clicks"`

	EngagedDepth          float64 `yaml:"engaged_depth"`
	DeepEngagementSeconds float64 `yaml:"deep_engagement_seconds"`
	HighInteractionCount  int     `yaml:"high_interaction_count"`
	SignificantDepth      float64 `yaml:"significant_depth"`
}

// Model is the parameterized engagement model. The zero value is not useful;
// start from DefaultModel.
type Model struct {
	Weights    Weights    `yaml:"weights"`
	Thresholds Thresholds `yaml:"thresholds"`
}

// DefaultWeights: opens*5 + seconds*0.1 + clicks*10 + shares*20 + conversions*40 + scroll*0.2.
func DefaultWeights() Weights {
	return Weights{
		Open:          5,
		TimeSecond:    0.1,
		Click:         10,
		Share:         20,
		Conversion:    40,
		ScrollPercent: 0.2,
	}
}

// DefaultThresholds returns the production classifier cut-offs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ExceptionalQuality: 80,
		HighQuality:        60,
		MediumQuality:      30,

		BlazingMinBuyingSignals: 3,
		HotScore:                70,
		HotInterest:             80,
		WarmScore:               40,
		WarmTimeSeconds:         60,

		DecisionScore:            70,
		DecisionDepth:            70,
		ConsiderationTimeSeconds: 60,
		ConsiderationClicks:      3,

		EngagedDepth:          50,
		DeepEngagementSeconds: 120,
		HighInteractionCount:  5,
		SignificantDepth:      70,
	}
}

// DefaultModel returns the model with default weights and thresholds.
func DefaultModel() Model {
	return Model{Weights: DefaultWeights(), Thresholds: DefaultThresholds()}
}

// Score computes the 0-100 engagement score from cumulative counters.
// Negative counters are treated as zero.
func (m Model) Score(c domain.Counters) float64 {
	w := m.Weights
	raw := float64(nonNegInt(c.Opens))*w.Open +
		nonNeg(c.TimeSpentSeconds)*w.TimeSecond +
		float64(nonNegInt(c.Clicks))*w.Click +
		float64(nonNegInt(c.Shares))*w.Share +
		float64(nonNegInt(c.Conversions))*w.Conversion +
		clampPercent(c.ScrollDepthPercent)*w.ScrollPercent
	return math.Min(MaxScore, raw)
}

func nonNeg(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}

func nonNegInt(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// clampPercent bounds v to [0,100].
func clampPercent(v float64) float64 {
	v = nonNeg(v)
	if v > 100 {
		return 100
	}
	return v
}
