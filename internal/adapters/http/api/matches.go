package api

import (
	"context"
	"net/http"

	"github.com/okian/pitscout/internal/app"
	"github.com/okian/pitscout/internal/domain/policy"
	"github.com/okian/pitscout/internal/domain/types"
	"github.com/okian/pitscout/pkg/logger"
)

// MatchDependencies defines the interface for match reads.
type MatchDependencies interface {
	Match(ctx context.Context, matchKey string) (*app.Result, error)
}

// MatchesHandler handles /api/matches requests.
type MatchesHandler struct {
	deps   MatchDependencies
	logger logger.Logger
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(deps MatchDependencies, l logger.Logger) *MatchesHandler {
	return &MatchesHandler{deps: deps, logger: l}
}

// HandleMatch handles GET /api/matches/{match}. A provider failure is
// answered with the provider's own status code.
func (h *MatchesHandler) HandleMatch(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.Match(r.Context(), r.PathValue("match"))
	if err == nil {
		writeResult(w, res)
		return
	}
	if status, ok := upstreamStatus(err); ok {
		w.Header().Set(HeaderCacheControl, policy.NoStore.Header())
		writeJSON(w, status, types.ErrorBody{Error: "upstream_unavailable", Message: err.Error()})
		return
	}
	writeError(r.Context(), h.logger, w, err)
}
