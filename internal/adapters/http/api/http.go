// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/okian/pitscout/internal/adapters/upstream"
	"github.com/okian/pitscout/internal/app"
	"github.com/okian/pitscout/internal/domain/model"
	"github.com/okian/pitscout/internal/domain/policy"
	"github.com/okian/pitscout/internal/domain/types"
	"github.com/okian/pitscout/pkg/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Response headers set on every API response.
const (
	HeaderCacheControl = "Cache-Control"
	HeaderCacheOutcome = "X-Cache-Outcome"
	HeaderRequestID    = "X-Request-ID"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	EventDependencies
	TeamDependencies
	MatchDependencies
	RankingDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	eventsHandler   *EventsHandler
	teamsHandler    *TeamsHandler
	matchesHandler  *MatchesHandler
	rankingsHandler *RankingsHandler
	logger          logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.eventsHandler = NewEventsHandler(deps, s.logger)
	s.teamsHandler = NewTeamsHandler(deps, s.logger)
	s.matchesHandler = NewMatchesHandler(deps, s.logger)
	s.rankingsHandler = NewRankingsHandler(deps, s.logger)
	return s
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for failed requests.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l.Named("api")
		}
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, RequestIDMiddleware(MetricsMiddleware(h, endpoint)))
	}

	route("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	route("GET /stats", "stats", s.statsHandler.HandleStats)

	route("GET /api/events", "events_list", s.eventsHandler.HandleList)
	route("GET /api/events/{event}/rankings", "event_rankings", s.eventsHandler.HandleRankings)
	route("GET /api/events/{event}/teams", "event_teams", s.eventsHandler.HandleTeams)
	route("GET /api/events/{event}/schedule", "nexus_schedule", s.eventsHandler.HandleSchedule)

	route("GET /api/teams", "teams_list", s.teamsHandler.HandleList)
	route("GET /api/teams/{team}", "team_info", s.teamsHandler.HandleTeam)
	route("GET /api/teams/{team}/stats", "team_stats", s.teamsHandler.HandleStats)

	route("GET /api/matches/{match}", "match_details", s.matchesHandler.HandleMatch)

	route("GET /api/rankings", "global_rankings_list", s.rankingsHandler.HandleList)
	route("GET /api/rankings/{set}", "global_rankings", s.rankingsHandler.HandleRead)
	route("PUT /api/rankings/{set}", "global_rankings_write", s.rankingsHandler.HandleWrite)
	route("POST /api/rankings/{set}", "global_rankings_write", s.rankingsHandler.HandleWrite)
}

// rankingWrite is the body of PUT/POST /api/rankings/{set}.
type rankingWrite struct {
	Rows []model.Row `json:"rows"`
}

func (b rankingWrite) validate() error {
	if b.Rows == nil {
		return errors.New("missing rows")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeResult writes a served payload with its directive and outcome.
func writeResult(w http.ResponseWriter, res *app.Result) {
	w.Header().Set(HeaderCacheControl, res.Directive.Header())
	w.Header().Set(HeaderCacheOutcome, res.Outcome.String())
	writeJSON(w, http.StatusOK, res.Payload)
}

// writeError maps an error kind to its status. Errors are never cached.
func writeError(ctx context.Context, l logger.Logger, w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		l.Warn(ctx, "request failed", logger.Int("status", status), logger.Error(err))
	}
	w.Header().Set(HeaderCacheControl, policy.NoStore.Header())
	writeJSON(w, status, types.ErrorBody{Error: code, Message: err.Error()})
}

func statusFor(err error) (int, string) {
	switch types.KindOf(err) {
	case types.ErrInvalidRequest:
		return http.StatusBadRequest, "invalid_request"
	case types.ErrStoreUnavailable:
		return http.StatusServiceUnavailable, "store_unavailable"
	case types.ErrUpstreamUnavailable:
		return http.StatusBadGateway, "upstream_unavailable"
	case types.ErrNotFound:
		return http.StatusNotFound, "not_found"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal_error"
}

// upstreamStatus keeps a provider's HTTP status for categories that pass it through.
func upstreamStatus(err error) (int, bool) {
	code := upstream.StatusCode(err)
	if code < http.StatusBadRequest || code > 599 {
		return 0, false
	}
	return code, true
}

// badRequest wraps a parameter problem as an invalid request.
func badRequest(op string, err error) error {
	return types.Wrap(op, types.ErrInvalidRequest, err)
}

// yearParam reads the required year query parameter.
func yearParam(op string, r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("year"))
	if raw == "" {
		return 0, badRequest(op, ErrMissingYear)
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest(op, errors.New("year must be an integer"))
	}
	return year, nil
}
