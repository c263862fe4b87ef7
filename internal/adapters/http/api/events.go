package api

import (
	"context"
	"net/http"

	"github.com/okian/pitscout/internal/app"
	"github.com/okian/pitscout/pkg/logger"
)

// EventDependencies defines the interface for event reads.
type EventDependencies interface {
	EventRankings(ctx context.Context, eventKey string) (*app.Result, error)
	EventTeams(ctx context.Context, eventKey string) (*app.Result, error)
	EventSchedule(ctx context.Context, eventKey string) (*app.Result, error)
	EventsByYear(ctx context.Context, year int) (*app.Result, error)
}

// EventsHandler handles /api/events requests.
type EventsHandler struct {
	deps   EventDependencies
	logger logger.Logger
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies, l logger.Logger) *EventsHandler {
	return &EventsHandler{deps: deps, logger: l}
}

// HandleRankings handles GET /api/events/{event}/rankings.
func (h *EventsHandler) HandleRankings(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.EventRankings(r.Context(), r.PathValue("event"))
	h.serve(w, r, res, err)
}

// HandleTeams handles GET /api/events/{event}/teams.
func (h *EventsHandler) HandleTeams(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.EventTeams(r.Context(), r.PathValue("event"))
	h.serve(w, r, res, err)
}

// HandleSchedule handles GET /api/events/{event}/schedule.
func (h *EventsHandler) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.EventSchedule(r.Context(), r.PathValue("event"))
	h.serve(w, r, res, err)
}

// HandleList handles GET /api/events?year=N.
func (h *EventsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam("api.events_list", r)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	res, err := h.deps.EventsByYear(r.Context(), year)
	h.serve(w, r, res, err)
}

func (h *EventsHandler) serve(w http.ResponseWriter, r *http.Request, res *app.Result, err error) {
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	writeResult(w, res)
}
