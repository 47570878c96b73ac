package engagement

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/spark-tracker/internal/domain"
)

func TestSummarize_Empty(t *testing.T) {
	a := Summarize(nil)
	assert.Equal(t, 0, a.TotalSparks)
	assert.NotNil(t, a.TopPerformers)
	assert.NotNil(t, a.InterestInsights)
	assert.Zero(t, a.Performance.ViralCoefficient)
}

func TestSummarize(t *testing.T) {
	viewed := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	recs := []domain.EngagementRecord{
		{
			ID: "a", SubjectLine: "A", Status: domain.StatusConverted,
			Counters:        domain.Counters{Opens: 3, UniqueOpens: 1, TimeSpentSeconds: 200, Conversions: 1, Shares: 2},
			EngagementScore: 90, LeadTemperature: domain.TemperatureBlazing,
			InterestSignals: []string{"repeat_visitor", "pricing"},
			LastViewedAt:    &viewed,
		},
		{
			ID: "b", SubjectLine: "B", Status: domain.StatusEngaged,
			Counters:        domain.Counters{Opens: 1, UniqueOpens: 1, TimeSpentSeconds: 100},
			EngagementScore: 50, LeadTemperature: domain.TemperatureHot,
			InterestSignals: []string{"repeat_visitor"},
			LastViewedAt:    &viewed,
		},
		{
			ID: "c", SubjectLine: "C", Status: domain.StatusSent,
			EngagementScore: 0, LeadTemperature: domain.TemperatureCold,
		},
		{
			ID: "d", SubjectLine: "D", Status: domain.StatusBlazing,
			Counters:        domain.Counters{Opens: 2, UniqueOpens: 1, Shares: 2},
			EngagementScore: 70, LeadTemperature: domain.TemperatureBlazing,
		},
	}

	a := Summarize(recs)
	assert.Equal(t, 4, a.TotalSparks)
	assert.Equal(t, 6, a.TotalViews)
	assert.Equal(t, 3, a.UniqueViewers)
	assert.Equal(t, 2, a.BlazingLeads)
	assert.Equal(t, 1, a.HotLeads)
	assert.Equal(t, 1, a.Conversions)
	assert.InDelta(t, 52.5, a.AvgEngagementScore, 1e-9)

	assert.Equal(t, Funnel{Sent: 4, Viewed: 3, Engaged: 2, Converted: 1, Efficiency: 25}, a.Funnel)
	assert.InDelta(t, 75.0, a.Performance.OpenRate, 1e-9)
	assert.InDelta(t, 50.0, a.Performance.EngagementRate, 1e-9)
	assert.InDelta(t, 25.0, a.Performance.ConversionRate, 1e-9)
	assert.InDelta(t, 75.0, a.Performance.AvgTimeSpent, 1e-9)
	assert.InDelta(t, 1.0, a.Performance.ViralCoefficient, 1e-9)
	assert.Equal(t, 2, a.HourlyViews[9])

	require.Len(t, a.TopPerformers, 4)
	assert.Equal(t, []string{"a", "d", "b", "c"}, []string{
		a.TopPerformers[0].ID, a.TopPerformers[1].ID, a.TopPerformers[2].ID, a.TopPerformers[3].ID,
	})
	assert.Equal(t, []SignalCount{{"repeat_visitor", 2}, {"pricing", 1}}, a.InterestInsights)

	// input order is untouched
	assert.Equal(t, "a", recs[0].ID)
	assert.Equal(t, "d", recs[3].ID)
}

func TestSummarize_TopPerformersCapped(t *testing.T) {
	var recs []domain.EngagementRecord
	for i := 0; i < 8; i++ {
		recs = append(recs, domain.EngagementRecord{
			ID:              fmt.Sprintf("r%d", i),
			EngagementScore: float64(i * 10),
			InterestSignals: []string{fmt.Sprintf("s%d", i), fmt.Sprintf("t%d", i)},
		})
	}
	a := Summarize(recs)
	require.Len(t, a.TopPerformers, 5)
	assert.Equal(t, "r7", a.TopPerformers[0].ID)
	assert.Len(t, a.InterestInsights, 10)
}

func TestParseTimeframe(t *testing.T) {
	tf, err := ParseTimeframe("")
	require.NoError(t, err)
	assert.Equal(t, TimeframeWeek, tf)

	tf, err = ParseTimeframe("month")
	require.NoError(t, err)
	now := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), tf.Since(now))

	_, err = ParseTimeframe("year")
	assert.Error(t, err)
}
