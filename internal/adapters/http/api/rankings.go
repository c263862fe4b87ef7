package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/pitscout/internal/app"
	"github.com/okian/pitscout/internal/domain/model"
	"github.com/okian/pitscout/internal/domain/policy"
	"github.com/okian/pitscout/pkg/logger"
)

const maxRankingBody = 8 << 20

// RankingDependencies defines the interface for the aggregate store.
type RankingDependencies interface {
	RankingSet(ctx context.Context, id string) (*app.Result, error)
	RankingSets(ctx context.Context) (*app.Result, error)
	WriteRankingSet(ctx context.Context, id string, rows []model.Row) (*model.RankingSnapshot, error)
}

// RankingsHandler handles /api/rankings requests.
type RankingsHandler struct {
	deps   RankingDependencies
	logger logger.Logger
}

// NewRankingsHandler creates a new rankings handler.
func NewRankingsHandler(deps RankingDependencies, l logger.Logger) *RankingsHandler {
	return &RankingsHandler{deps: deps, logger: l}
}

// HandleRead handles GET /api/rankings/{set}.
func (h *RankingsHandler) HandleRead(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.RankingSet(r.Context(), r.PathValue("set"))
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	writeResult(w, res)
}

// HandleList handles GET /api/rankings.
func (h *RankingsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.RankingSets(r.Context())
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	writeResult(w, res)
}

// HandleWrite handles PUT and POST /api/rankings/{set} with a {"rows": [...]} body.
func (h *RankingsHandler) HandleWrite(w http.ResponseWriter, r *http.Request) {
	const op = "api.write_rankings"
	r.Body = http.MaxBytesReader(w, r.Body, maxRankingBody)

	var body rankingWrite
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			err = ErrBodyTooBig
		}
		writeError(r.Context(), h.logger, w, badRequest(op, fmt.Errorf("%w: %w", ErrBadRequest, err)))
		return
	}
	if err := body.validate(); err != nil {
		writeError(r.Context(), h.logger, w, badRequest(op, err))
		return
	}

	snap, err := h.deps.WriteRankingSet(r.Context(), r.PathValue("set"), body.Rows)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	w.Header().Set(HeaderCacheControl, policy.NoStore.Header())
	writeJSON(w, http.StatusOK, app.RankingSetBody{Data: snap})
}
