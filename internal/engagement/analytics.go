package engagement

import (
	"fmt"
	"sort"
	"time"

	"github.com/ignite/spark-tracker/internal/domain"
)

// Timeframe is the look-back window for owner analytics.
type Timeframe string

const (
	TimeframeDay   Timeframe = "day"
	TimeframeWeek  Timeframe = "week"
	TimeframeMonth Timeframe = "month"
)

// ParseTimeframe accepts day, week or month. Empty means week.
func ParseTimeframe(s string) (Timeframe, error) {
	switch Timeframe(s) {
	case "":
		return TimeframeWeek, nil
	case TimeframeDay, TimeframeWeek, TimeframeMonth:
		return Timeframe(s), nil
	}
	return "", fmt.Errorf("unknown timeframe %q", s)
}

// Since returns the start of the window ending at now.
func (tf Timeframe) Since(now time.Time) time.Time {
	switch tf {
	case TimeframeDay:
		return now.AddDate(0, 0, -1)
	case TimeframeMonth:
		return now.AddDate(0, 0, -30)
	default:
		return now.AddDate(0, 0, -7)
	}
}

// Performer is a row of the top-performing Sparks table.
type Performer struct {
	ID              string                 `json:"id"`
	Subject         string                 `json:"subject"`
	EngagementScore float64                `json:"engagement_score"`
	LeadTemperature domain.LeadTemperature `json:"lead_temperature"`
	Conversions     int                    `json:"conversions"`
}

// Funnel counts Sparks at each funnel stage.
type Funnel struct {
	Sent       int     `json:"sent"`
	Viewed     int     `json:"viewed"`
	Engaged    int     `json:"engaged"`
	Converted  int     `json:"converted"`
	Efficiency float64 `json:"funnel_efficiency"`
}

// SignalCount is one interest signal and the number of Sparks carrying it.
type SignalCount struct {
	Signal string `json:"signal"`
	Count  int    `json:"count"`
}

// Performance holds per-Spark rates.
type Performance struct {
	OpenRate         float64 `json:"open_rate"`
	EngagementRate   float64 `json:"engagement_rate"`
	ConversionRate   float64 `json:"conversion_rate"`
	AvgTimeSpent     float64 `json:"avg_time_spent"`
	ViralCoefficient float64 `json:"viral_coefficient"`
}

// Analytics summarizes an owner's Sparks over a timeframe.
type Analytics struct {
	TotalSparks        int           `json:"total_sparks"`
	TotalViews         int           `json:"total_views"`
	UniqueViewers      int           `json:"unique_viewers"`
	BlazingLeads       int           `json:"blazing_leads"`
	HotLeads           int           `json:"hot_leads"`
	Conversions        int           `json:"conversions"`
	AvgEngagementScore float64       `json:"avg_engagement_score"`
	TopPerformers      []Performer   `json:"top_performing_sparks"`
	HourlyViews        [24]int       `json:"hourly_views"`
	Funnel             Funnel        `json:"conversion_funnel"`
	InterestInsights   []SignalCount `json:"interest_insights"`
	Performance        Performance   `json:"spark_performance"`
}

const (
	topPerformers = 5
	topSignals    = 10
)

// Summarize aggregates records. An empty input yields zeroed analytics with
// empty (non-nil) lists.
func Summarize(records []domain.EngagementRecord) Analytics {
	a := Analytics{
		TopPerformers:    []Performer{},
		InterestInsights: []SignalCount{},
	}
	n := len(records)
	if n == 0 {
		return a
	}

	var (
		scoreSum, timeSum float64
		opened, engaged   int
		shares            int
		signalOrder       []string
	)
	signalCounts := make(map[string]int)
	for i := range records {
		r := &records[i]
		a.TotalViews += r.Opens
		a.UniqueViewers += r.UniqueOpens
		switch r.LeadTemperature {
		case domain.TemperatureBlazing:
			a.BlazingLeads++
		case domain.TemperatureHot:
			a.HotLeads++
		}
		switch r.Status {
		case domain.StatusConverted:
			a.Conversions++
		case domain.StatusEngaged, domain.StatusBlazing:
			engaged++
		}
		if r.Opens > 0 {
			opened++
		}
		if r.LastViewedAt != nil {
			a.HourlyViews[r.LastViewedAt.UTC().Hour()]++
		}
		scoreSum += r.EngagementScore
		timeSum += r.TimeSpentSeconds
		shares += r.Shares
		for _, s := range r.InterestSignals {
			if _, ok := signalCounts[s]; !ok {
				signalOrder = append(signalOrder, s)
			}
			signalCounts[s]++
		}
	}

	fn := float64(n)
	a.TotalSparks = n
	a.AvgEngagementScore = scoreSum / fn
	a.Funnel = Funnel{
		Sent:       n,
		Viewed:     opened,
		Engaged:    engaged,
		Converted:  a.Conversions,
		Efficiency: float64(a.Conversions) / fn * 100,
	}
	a.Performance = Performance{
		OpenRate:         float64(opened) / fn * 100,
		EngagementRate:   float64(engaged) / fn * 100,
		ConversionRate:   float64(a.Conversions) / fn * 100,
		AvgTimeSpent:     timeSum / fn,
		ViralCoefficient: float64(shares) / fn,
	}

	sorted := make([]*domain.EngagementRecord, n)
	for i := range records {
		sorted[i] = &records[i]
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EngagementScore > sorted[j].EngagementScore
	})
	for i := 0; i < n && i < topPerformers; i++ {
		r := sorted[i]
		a.TopPerformers = append(a.TopPerformers, Performer{
			ID:              r.ID,
			Subject:         r.SubjectLine,
			EngagementScore: r.EngagementScore,
			LeadTemperature: r.LeadTemperature,
			Conversions:     r.Conversions,
		})
	}

	sort.SliceStable(signalOrder, func(i, j int) bool {
		return signalCounts[signalOrder[i]] > signalCounts[signalOrder[j]]
	})
	for i := 0; i < len(signalOrder) && i < topSignals; i++ {
		a.InterestInsights = append(a.InterestInsights, SignalCount{
			Signal: signalOrder[i],
			Count:  signalCounts[signalOrder[i]],
		})
	}
	return a
}
