package engagement

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/spark-tracker/internal/domain"
)

func TestScore_Weights(t *testing.T) {
	m := DefaultModel()

	tests := []struct {
		name string
		c    domain.Counters
		want float64
	}{
		{"zero", domain.Counters{}, 0},
		{"one open", domain.Counters{Opens: 1}, 5},
		{"time only", domain.Counters{TimeSpentSeconds: 50}, 5},
		{"click", domain.Counters{Clicks: 1}, 10},
		{"share", domain.Counters{Shares: 1}, 20},
		{"conversion", domain.Counters{Conversions: 1}, 40},
		{"scroll", domain.Counters{ScrollDepthPercent: 50}, 10},
		{"mixed", domain.Counters{Opens: 1, TimeSpentSeconds: 90, Clicks: 2}, 34},
		{"capped", domain.Counters{Conversions: 2, Shares: 2}, 100},
		{"negative clamped", domain.Counters{Opens: -4, Clicks: 1, TimeSpentSeconds: -30}, 10},
		{"scroll above 100 clamped", domain.Counters{ScrollDepthPercent: 250}, 20},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, m.Score(tc.c), 1e-9)
		})
	}
}

func TestScore_Idempotent(t *testing.T) {
	m := DefaultModel()
	c := domain.Counters{Opens: 3, TimeSpentSeconds: 44.5, Clicks: 1, ScrollDepthPercent: 72}
	first := m.Score(c)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, m.Score(c))
	}
}

func TestScore_MonotonicInEachCounter(t *testing.T) {
	m := DefaultModel()
	bases := []domain.Counters{
		{},
		{Opens: 2, TimeSpentSeconds: 30},
		{Opens: 5, Clicks: 3, Shares: 1, ScrollDepthPercent: 40},
		{Conversions: 1, Shares: 2, Clicks: 4},
	}
	deltas := []domain.Counters{
		{Opens: 1},
		{TimeSpentSeconds: 12.5},
		{Clicks: 1},
		{Shares: 1},
		{Conversions: 1},
		{ScrollDepthPercent: 95},
	}
	for _, base := range bases {
		for _, d := range deltas {
			before := m.Score(base)
			after := m.Score(base.Add(d))
			assert.GreaterOrEqual(t, after, before, "base=%+v delta=%+v", base, d)
			assert.LessOrEqual(t, after, MaxScore)
		}
	}
}

func TestQuality(t *testing.T) {
	m := DefaultModel()

	tests := []struct {
		score, depth float64
		want         domain.EngagementQuality
	}{
		{0, 0, domain.QualityLow},
		{30, 30, domain.QualityLow},
		{31, 0, domain.QualityMedium},
		{0, 31, domain.QualityMedium},
		{61, 0, domain.QualityHigh},
		{0, 61, domain.QualityHigh},
		{81, 80, domain.QualityHigh},
		{81, 81, domain.QualityExceptional},
		{-50, 500, domain.QualityHigh},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, m.Quality(tc.score, tc.depth), "score=%v depth=%v", tc.score, tc.depth)
	}
}

func TestTemperature(t *testing.T) {
	m := DefaultModel()

	tests := []struct {
		name     string
		score    float64
		c        domain.Counters
		interest float64
		signals  int
		want     domain.LeadTemperature
	}{
		{"cold", 5, domain.Counters{Opens: 1}, 0, 0, domain.TemperatureCold},
		{"warm by score", 41, domain.Counters{}, 0, 0, domain.TemperatureWarm},
		{"warm by time", 10, domain.Counters{TimeSpentSeconds: 61}, 0, 0, domain.TemperatureWarm},
		{"time at threshold stays cold", 10, domain.Counters{TimeSpentSeconds: 60}, 0, 0, domain.TemperatureCold},
		{"hot by score", 71, domain.Counters{}, 0, 0, domain.TemperatureHot},
		{"hot by interest", 0, domain.Counters{}, 81, 0, domain.TemperatureHot},
		{"blazing by conversion", 0, domain.Counters{Conversions: 1}, 0, 0, domain.TemperatureBlazing},
		{"blazing by signals", 0, domain.Counters{}, 0, 3, domain.TemperatureBlazing},
		{"two signals not enough", 0, domain.Counters{}, 0, 2, domain.TemperatureCold},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, m.Temperature(tc.score, tc.c, tc.interest, tc.signals))
		})
	}
}

func TestStage(t *testing.T) {
	m := DefaultModel()

	tests := []struct {
		name  string
		score float64
		c     domain.Counters
		depth float64
		want  domain.BuyingStage
	}{
		{"awareness", 5, domain.Counters{Opens: 1}, 0, domain.StageAwareness},
		{"consideration by time", 20, domain.Counters{TimeSpentSeconds: 61}, 0, domain.StageConsideration},
		{"consideration by clicks", 20, domain.Counters{Clicks: 4}, 0, domain.StageConsideration},
		{"three clicks not enough", 20, domain.Counters{Clicks: 3}, 0, domain.StageAwareness},
		{"decision by score", 71, domain.Counters{}, 0, domain.StageDecision},
		{"decision by depth", 0, domain.Counters{}, 71, domain.StageDecision},
		{"purchase", 0, domain.Counters{Conversions: 1}, 0, domain.StagePurchase},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, m.Stage(tc.score, tc.c, tc.depth))
		})
	}
}

func TestAdvanceStatus(t *testing.T) {
	tests := []struct {
		prior, computed, want domain.SparkStatus
	}{
		{domain.StatusDraft, domain.StatusViewed, domain.StatusViewed},
		{domain.StatusSent, domain.StatusViewed, domain.StatusViewed},
		{domain.StatusEngaged, domain.StatusViewed, domain.StatusEngaged},
		{domain.StatusBlazing, domain.StatusEngaged, domain.StatusBlazing},
		{domain.StatusEngaged, domain.StatusBlazing, domain.StatusBlazing},
		{domain.StatusConverted, domain.StatusViewed, domain.StatusConverted},
		{domain.StatusExpired, domain.StatusConverted, domain.StatusExpired},
		{domain.StatusViewed, domain.StatusConverted, domain.StatusConverted},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, AdvanceStatus(tc.prior, tc.computed), "%s + %s", tc.prior, tc.computed)
	}
}
