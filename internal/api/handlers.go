package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/spark-tracker/internal/domain"
	"github.com/ignite/spark-tracker/internal/engagement"
	"github.com/ignite/spark-tracker/internal/notify"
	"github.com/ignite/spark-tracker/internal/pkg/clock"
	"github.com/ignite/spark-tracker/internal/pkg/httputil"
	"github.com/ignite/spark-tracker/internal/service/tracker"
)

// Handlers serves the Spark REST API.
type Handlers struct {
	tracker *tracker.Service
	inbox   notify.Inbox
	prefs   notify.PreferenceStore
	clock   clock.Clock
}

// NewHandlers creates the API handlers.
func NewHandlers(svc *tracker.Service, inbox notify.Inbox, prefs notify.PreferenceStore) *Handlers {
	return &Handlers{tracker: svc, inbox: inbox, prefs: prefs, clock: clock.System{}}
}

// SetClock replaces the wall clock used for read receipts, for tests.
func (h *Handlers) SetClock(c clock.Clock) { h.clock = c }

// TrackResponse is returned by the authoritative track endpoint.
type TrackResponse struct {
	Spark         *domain.EngagementRecord `json:"spark"`
	PriorStatus   domain.SparkStatus       `json:"prior_status"`
	StatusChanged bool                     `json:"status_changed"`
	NewSignals    []string                 `json:"new_signals"`
}

// CreateSpark handles POST /api/sparks.
func (h *Handlers) CreateSpark(w http.ResponseWriter, r *http.Request) {
	var in tracker.CreateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.OwnerID) == "" {
		httputil.BadRequest(w, "owner_id is required")
		return
	}
	rec, err := h.tracker.Create(r.Context(), in)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.Created(w, rec)
}

// GetSpark handles GET /api/sparks/{id}.
func (h *Handlers) GetSpark(w http.ResponseWriter, r *http.Request) {
	rec, err := h.tracker.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, rec)
}

// ListSparks handles GET /api/owners/{owner}/sparks?status=&since=&page=&limit=&offset=.
func (h *Handlers) ListSparks(w http.ResponseWriter, r *http.Request) {
	page := ParsePage(r)
	f := tracker.ListFilter{
		Status: r.URL.Query().Get("status"),
		Limit:  page.Size,
		Offset: page.Offset,
	}
	if f.Status != "" && !domain.SparkStatus(f.Status).Valid() {
		httputil.BadRequest(w, "unknown status "+f.Status)
		return
	}
	if s := r.URL.Query().Get("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			httputil.BadRequest(w, "since must be RFC3339")
			return
		}
		f.Since = since
	}

	recs, total, err := h.tracker.List(r.Context(), chi.URLParam(r, "owner"), f)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, NewListing(recs, page, total))
}

// SendSpark handles POST /api/sparks/{id}/send.
func (h *Handlers) SendSpark(w http.ResponseWriter, r *http.Request) {
	rec, err := h.tracker.MarkSent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, rec)
}

// ExpireSpark handles POST /api/sparks/{id}/expire.
func (h *Handlers) ExpireSpark(w http.ResponseWriter, r *http.Request) {
	rec, err := h.tracker.Expire(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, rec)
}

// TrackEvent handles POST /api/sparks/{id}/events. Unlike the beacon it
// applies the event synchronously and reports the outcome.
func (h *Handlers) TrackEvent(w http.ResponseWriter, r *http.Request) {
	var ev domain.Event
	if !httputil.Decode(w, r, &ev) {
		return
	}
	tr, err := h.tracker.Track(r.Context(), chi.URLParam(r, "id"), ev)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	signals := tr.NewSignals
	if signals == nil {
		signals = []string{}
	}
	httputil.OK(w, TrackResponse{
		Spark:         tr.Next,
		PriorStatus:   tr.Prior.Status,
		StatusChanged: tr.StatusChanged(),
		NewSignals:    signals,
	})
}

// GetAnalytics handles GET /api/owners/{owner}/analytics?timeframe=day|week|month.
func (h *Handlers) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	tf, err := engagement.ParseTimeframe(r.URL.Query().Get("timeframe"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	a, err := h.tracker.Analytics(r.Context(), chi.URLParam(r, "owner"), tf)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{
		"owner_id":  chi.URLParam(r, "owner"),
		"timeframe": tf,
		"analytics": a,
	})
}

// ListNotifications handles GET /api/owners/{owner}/notifications?unread=true&limit=.
func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	f := notify.InboxFilter{
		UnreadOnly: r.URL.Query().Get("unread") == "true",
		Limit:      httputil.QueryInt(r, "limit", 50, 200),
	}
	list, err := h.inbox.List(r.Context(), chi.URLParam(r, "owner"), f)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if list == nil {
		list = []domain.Notification{}
	}
	httputil.OK(w, map[string]interface{}{"notifications": list, "count": len(list)})
}

// MarkNotificationRead handles POST /api/owners/{owner}/notifications/{id}/read.
func (h *Handlers) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	err := h.inbox.MarkRead(r.Context(), chi.URLParam(r, "owner"), chi.URLParam(r, "id"), h.clock.Now())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.NoContent(w)
}

// GetPreferences handles GET /api/owners/{owner}/preferences.
func (h *Handlers) GetPreferences(w http.ResponseWriter, r *http.Request) {
	p, err := h.prefs.Preferences(r.Context(), chi.URLParam(r, "owner"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, p)
}

// PutPreferences handles PUT /api/owners/{owner}/preferences. The owner in
// the path wins over any owner_id in the body.
func (h *Handlers) PutPreferences(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	p := domain.DefaultPreferences(owner)
	if !httputil.Decode(w, r, &p) {
		return
	}
	p.OwnerID = owner
	if p.Quiet.Enabled {
		if err := p.Quiet.Validate(); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
	}
	if p.Email && p.Address != "" && !strings.Contains(p.Address, "@") {
		httputil.BadRequest(w, "email_address is not an email address")
		return
	}
	if err := h.prefs.SavePreferences(r.Context(), p); err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, p)
}
