package api

import (
	"context"
	"net/http"

	"github.com/okian/pitscout/internal/app"
	"github.com/okian/pitscout/pkg/logger"
)

// TeamDependencies defines the interface for team reads.
type TeamDependencies interface {
	Team(ctx context.Context, teamKey string) (*app.Result, error)
	TeamStats(ctx context.Context, teamKey string, year int) (*app.Result, error)
	TeamsList(ctx context.Context, year int) (*app.Result, error)
}

// TeamsHandler handles /api/teams requests.
type TeamsHandler struct {
	deps   TeamDependencies
	logger logger.Logger
}

// NewTeamsHandler creates a new teams handler.
func NewTeamsHandler(deps TeamDependencies, l logger.Logger) *TeamsHandler {
	return &TeamsHandler{deps: deps, logger: l}
}

// HandleTeam handles GET /api/teams/{team}.
func (h *TeamsHandler) HandleTeam(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.Team(r.Context(), r.PathValue("team"))
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	writeResult(w, res)
}

// HandleStats handles GET /api/teams/{team}/stats?year=N.
func (h *TeamsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam("api.team_stats", r)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	res, err := h.deps.TeamStats(r.Context(), r.PathValue("team"), year)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	writeResult(w, res)
}

// HandleList handles GET /api/teams?year=N.
func (h *TeamsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam("api.teams_list", r)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	res, err := h.deps.TeamsList(r.Context(), year)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	writeResult(w, res)
}
