package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/spark-tracker/internal/domain"
)

func TestRenderer_Defaults(t *testing.T) {
	r := NewRenderer(nil)
	rec := &domain.EngagementRecord{
		Recipient:       domain.Recipient{Name: "Dr. Lee", PracticeName: "Lee Dental"},
		EngagementScore: 87.6,
	}
	rec.TimeSpentSeconds = 95

	title, msg, err := r.Render(domain.NotificationEngaged, Vars(rec, domain.Event{Type: domain.EventTimeSpent}))
	require.NoError(t, err)
	assert.Equal(t, "Lee Dental is actively engaging", title)
	assert.Contains(t, msg, "(95s)")

	title, msg, err = r.Render(domain.NotificationHotLead, Vars(rec, domain.Event{Type: domain.EventClick}))
	require.NoError(t, err)
	assert.Equal(t, "Hot lead alert: Lee Dental", title)
	assert.Contains(t, msg, "score 88")

	// Second render hits the parsed-template cache
	title2, _, err := r.Render(domain.NotificationHotLead, Vars(rec, domain.Event{Type: domain.EventClick}))
	require.NoError(t, err)
	assert.Equal(t, title, title2)
}

func TestVars_Fallbacks(t *testing.T) {
	v := Vars(&domain.EngagementRecord{}, domain.Event{Type: domain.EventView})
	assert.Equal(t, "A prospect", v["practice_name"])
	assert.Equal(t, "Someone", v["name"])
	assert.Equal(t, "view", v["event_type"])
}

func TestRenderer_Overrides(t *testing.T) {
	r := NewRenderer(map[domain.NotificationType]Template{
		domain.NotificationOpened: {Title: "{{ name | upcase }} looked", Message: "{{ subject_line }}"},
	})
	vars := Vars(&domain.EngagementRecord{
		Recipient:   domain.Recipient{Name: "Sam"},
		SubjectLine: "New aligners",
	}, domain.Event{Type: domain.EventView})

	title, msg, err := r.Render(domain.NotificationOpened, vars)
	require.NoError(t, err)
	assert.Equal(t, "SAM looked", title)
	assert.Equal(t, "New aligners", msg)

	// Untouched types keep their defaults
	title, _, err = r.Render(domain.NotificationShared, vars)
	require.NoError(t, err)
	assert.Equal(t, "A prospect shared your content", title)
}

func TestRenderer_UnknownTypeAndBadTemplate(t *testing.T) {
	r := NewRenderer(map[domain.NotificationType]Template{
		domain.NotificationOpened: {Title: "{% bogus %}", Message: "x"},
	})
	vars := Vars(&domain.EngagementRecord{Recipient: domain.Recipient{Name: "Sam", PracticeName: "Smile Co"}}, domain.Event{})

	title, msg, err := r.Render("weekly_digest", vars)
	require.NoError(t, err)
	assert.Equal(t, "Activity from Smile Co", title)
	assert.Equal(t, "Sam interacted with your content.", msg)

	_, _, err = r.Render(domain.NotificationOpened, vars)
	assert.Error(t, err)
}
