package tracking

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/spark-tracker/internal/domain"
	"github.com/ignite/spark-tracker/internal/pkg/clock"
	"github.com/ignite/spark-tracker/internal/pkg/httputil"
	"github.com/ignite/spark-tracker/internal/pkg/logger"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x2c,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02,
	0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Handler serves the public beacon endpoints embedded in Spark pages.
type Handler struct {
	sink         Sink
	clock        clock.Clock
	allowedHosts map[string]bool
}

// NewHandler creates a beacon handler. allowedRedirectHosts restricts click
// redirects; empty allows any http(s) target.
func NewHandler(sink Sink, allowedRedirectHosts []string) *Handler {
	h := &Handler{sink: sink, clock: clock.System{}, allowedHosts: map[string]bool{}}
	for _, host := range allowedRedirectHosts {
		if host = strings.ToLower(strings.TrimSpace(host)); host != "" {
			h.allowedHosts[host] = true
		}
	}
	return h
}

// SetClock replaces the wall clock, for tests.
func (h *Handler) SetClock(c clock.Clock) { h.clock = c }

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/s/{token}/pixel.gif", h.HandlePixel)
	r.Post("/s/{token}/events", h.HandleEvent)
	r.Get("/s/{token}/click", h.HandleClick)
	r.Get("/health", h.HandleHealth)
	return r
}

// HandlePixel records a view. ?rv=1 marks a return visit.
func (h *Handler) HandlePixel(w http.ResponseWriter, r *http.Request) {
	ev := domain.Event{
		Type:        domain.EventView,
		ReturnVisit: r.URL.Query().Get("rv") == "1",
	}
	h.publish(r, ev)
	h.servePixel(w)
}

// HandleEvent accepts a JSON event from the Spark viewer. Only malformed
// events are rejected; everything else is accepted and applied later.
func (h *Handler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	var ev domain.Event
	if !httputil.Decode(w, r, &ev) {
		return
	}
	if err := ev.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	h.publish(r, ev)
	httputil.Accepted(w, map[string]string{"status": "accepted"})
}

// HandleClick records a click on an embedded link and redirects to it.
func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	target, err := h.redirectTarget(r.URL.Query().Get("u"))
	if err != nil {
		http.Error(w, "bad link", http.StatusBadRequest)
		return
	}
	h.publish(r, domain.Event{Type: domain.EventClick, Target: target})
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (h *Handler) redirectTarget(raw string) (string, error) {
	if raw == "" {
		return "", errors.New("missing target")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errors.New("unsupported scheme")
	}
	if len(h.allowedHosts) > 0 && !h.allowedHosts[strings.ToLower(u.Hostname())] {
		return "", errors.New("host not allowed")
	}
	return u.String(), nil
}

func (h *Handler) publish(r *http.Request, ev domain.Event) {
	ua := r.UserAgent()
	if ev.DeviceType == "" {
		ev.DeviceType = detectDevice(ua)
	}
	msg := Message{
		Token:      chi.URLParam(r, "token"),
		Event:      ev,
		IPAddress:  realIP(r),
		UserAgent:  ua,
		ReceivedAt: h.clock.Now(),
	}
	h.sink.Publish(r.Context(), msg)
	logger.Debug("beacon", "event", string(ev.Type), "token", msg.Token, "device", ev.DeviceType)
}

func (h *Handler) servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Write(pixelGIF)
}

func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func detectDevice(ua string) string {
	ua = strings.ToLower(ua)
	if strings.Contains(ua, "tablet") || strings.Contains(ua, "ipad") {
		return "tablet"
	}
	if strings.Contains(ua, "mobile") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone") {
		return "mobile"
	}
	return "desktop"
}
