package api

import (
	"errors"
	"net/http"

	"github.com/ignite/spark-tracker/internal/notify"
	"github.com/ignite/spark-tracker/internal/pkg/httputil"
	"github.com/ignite/spark-tracker/internal/service/tracker"
)

// respondServiceError maps tracker and notify errors onto HTTP statuses.
// Anything unrecognised is logged and reported as a generic 500 so store
// internals never reach the client.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tracker.ErrInvalidEvent):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, tracker.ErrNotFound), errors.Is(err, notify.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, tracker.ErrExpired):
		httputil.Gone(w, err.Error())
	case errors.Is(err, tracker.ErrConflict):
		httputil.Conflict(w, "spark was modified concurrently, retry the request")
	case errors.Is(err, tracker.ErrInvalidTransition):
		httputil.Error(w, http.StatusConflict, "invalid_transition", err.Error())
	default:
		httputil.InternalError(w, err)
	}
}
