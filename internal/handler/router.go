package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sheikh-saqib/rewards-points-ledger/internal/middleware"
)

// NewRouter builds the full HTTP surface. idem may be nil to disable
// idempotent replays.
func NewRouter(points *PointsHandler, log *slog.Logger, idem *middleware.IdempotencyMiddleware) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.CorrelationID)
	r.Use(middleware.NewLoggingMiddleware(log).Log)
	if idem != nil {
		r.Use(idem.Handle)
	}

	points.Register(r)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		points.respondError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		points.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return r
}
