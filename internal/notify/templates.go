package notify

import (
	"fmt"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/ignite/spark-tracker/internal/domain"
)

// Template is a Liquid title/message pair for one notification type.
type Template struct {
	Title   string `yaml:"title"`
	Message string `yaml:"message"`
}

// DefaultTemplates are the built-in notification texts. Available variables:
// practice_name, name, time_spent, engagement_score, lead_temperature,
// subject_line, event_type.
var DefaultTemplates = map[domain.NotificationType]Template{
	domain.NotificationOpened: {
		Title:   "{{ practice_name }} opened your content",
		Message: "{{ name }} at {{ practice_name }} just opened your sales content. This could be a great time to follow up!",
	},
	domain.NotificationEngaged: {
		Title:   "{{ practice_name }} is actively engaging",
		Message: "{{ name }} is spending time with your content ({{ time_spent }}s) and clicking through. High engagement detected!",
	},
	domain.NotificationShared: {
		Title:   "{{ practice_name }} shared your content",
		Message: "{{ name }} found your content valuable enough to share. This indicates strong interest!",
	},
	domain.NotificationConverted: {
		Title:   "{{ practice_name }} converted!",
		Message: "{{ name }} took a conversion action on your content. Time to follow up immediately!",
	},
	domain.NotificationHotLead: {
		Title:   "Hot lead alert: {{ practice_name }}",
		Message: "{{ name }} is showing very high engagement with your content (score {{ engagement_score | round }}). Strike while the iron is hot!",
	},
}

// Renderer renders notification texts with Liquid. Parsed templates are cached.
type Renderer struct {
	engine    *liquid.Engine
	templates map[domain.NotificationType]Template
	cache     sync.Map // map[string]*liquid.Template
}

// NewRenderer creates a renderer. overrides replace individual default
// templates; nil keeps the defaults.
func NewRenderer(overrides map[domain.NotificationType]Template) *Renderer {
	tpls := make(map[domain.NotificationType]Template, len(DefaultTemplates))
	for k, v := range DefaultTemplates {
		tpls[k] = v
	}
	for k, v := range overrides {
		tpls[k] = v
	}
	return &Renderer{engine: liquid.NewEngine(), templates: tpls}
}

// Vars builds the template bindings for a record and event. Missing
// recipient details fall back to neutral wording.
func Vars(rec *domain.EngagementRecord, ev domain.Event) map[string]interface{} {
	practice := strings.TrimSpace(rec.Recipient.PracticeName)
	if practice == "" {
		practice = "A prospect"
	}
	name := strings.TrimSpace(rec.Recipient.Name)
	if name == "" {
		name = "Someone"
	}
	return map[string]interface{}{
		"practice_name":    practice,
		"name":             name,
		"time_spent":       fmt.Sprintf("%.0f", rec.TimeSpentSeconds),
		"engagement_score": rec.EngagementScore,
		"lead_temperature": string(rec.LeadTemperature),
		"subject_line":     rec.SubjectLine,
		"event_type":       string(ev.Type),
	}
}

// Render returns the title and message for a notification type.
func (r *Renderer) Render(t domain.NotificationType, vars map[string]interface{}) (string, string, error) {
	tpl, ok := r.templates[t]
	if !ok {
		return "Activity from " + fmt.Sprint(vars["practice_name"]),
			fmt.Sprint(vars["name"]) + " interacted with your content.", nil
	}
	title, err := r.render(string(t)+":title", tpl.Title, vars)
	if err != nil {
		return "", "", err
	}
	msg, err := r.render(string(t)+":message", tpl.Message, vars)
	if err != nil {
		return "", "", err
	}
	return title, msg, nil
}

func (r *Renderer) render(key, src string, vars map[string]interface{}) (string, error) {
	if cached, ok := r.cache.Load(key); ok {
		return cached.(*liquid.Template).RenderString(vars)
	}
	tpl, err := r.engine.ParseString(src)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", key, err)
	}
	r.cache.Store(key, tpl)
	out, err := tpl.RenderString(vars)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", key, err)
	}
	return out, nil
}
