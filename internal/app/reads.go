package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/pitscout/internal/domain/model"
	"github.com/okian/pitscout/internal/domain/policy"
	"github.com/okian/pitscout/internal/domain/recency"
	"github.com/okian/pitscout/internal/domain/types"
	"github.com/okian/pitscout/pkg/logger"
	"github.com/okian/pitscout/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// firstSeason is the earliest season the results provider knows about.
const firstSeason = 1992

// Result is a payload ready to be served with its cache directive.
type Result struct {
	Category  policy.Category
	Payload   any
	Directive policy.Directive
	Outcome   types.Outcome
	Recent    bool
}

// RankingSetBody wraps a stored ranking set. Data is null when the set was never written.
type RankingSetBody struct {
	Data *model.RankingSnapshot `json:"data"`
}

// TeamsBody wraps a list of teams.
type TeamsBody struct {
	Teams []model.TeamInfo `json:"teams"`
}

// EventsBody wraps a list of events.
type EventsBody struct {
	Events []model.Event `json:"events"`
}

// EventRankings returns the rankings of an event. A provider failure serves
// an empty list with a short directive.
func (s *Service) EventRankings(ctx context.Context, eventKey string) (*Result, error) {
	const op = "event rankings"
	id, err := eventIdentity(op, eventKey)
	if err != nil {
		return nil, err
	}
	oracle, _, err := s.components(op)
	if err != nil {
		return nil, err
	}

	var rankings *model.EventRankings
	v, err := withRecency(ctx,
		func(ctx context.Context) recency.Verdict { return oracle.IsEventRecent(ctx, id) },
		func(ctx context.Context) (err error) {
			rankings, err = s.results.EventRankings(ctx, id.Key)
			return err
		})
	if err != nil {
		if ctx.Err() != nil {
			return nil, types.Wrap(op, types.ErrUpstreamUnavailable, err)
		}
		return s.degraded(ctx, policy.EventRankings, &model.EventRankings{Rankings: []model.EventRanking{}}, policy.RankingsFailure, err), nil
	}
	return s.fresh(policy.EventRankings, rankings, v.IsActiveNow), nil
}

// EventTeams returns the teams attending an event.
func (s *Service) EventTeams(ctx context.Context, eventKey string) (*Result, error) {
	const op = "event teams"
	id, err := eventIdentity(op, eventKey)
	if err != nil {
		return nil, err
	}
	oracle, _, err := s.components(op)
	if err != nil {
		return nil, err
	}

	var teams []model.TeamInfo
	v, err := withRecency(ctx,
		func(ctx context.Context) recency.Verdict { return oracle.IsEventRecent(ctx, id) },
		func(ctx context.Context) (err error) {
			teams, err = s.results.EventTeams(ctx, id.Key)
			return err
		})
	if err != nil {
		return nil, types.Wrap(op, types.ErrUpstreamUnavailable, err)
	}
	return s.fresh(policy.EventTeams, TeamsBody{Teams: nonNil(teams)}, v.IsActiveNow), nil
}

// EventSchedule returns the live queueing schedule of an event. A provider
// failure serves an empty object with the fixed failure directive.
func (s *Service) EventSchedule(ctx context.Context, eventKey string) (*Result, error) {
	const op = "event schedule"
	id, err := eventIdentity(op, eventKey)
	if err != nil {
		return nil, err
	}
	oracle, _, err := s.components(op)
	if err != nil {
		return nil, err
	}

	var sched *model.NexusSchedule
	v, err := withRecency(ctx,
		func(ctx context.Context) recency.Verdict { return oracle.IsEventRecent(ctx, id) },
		func(ctx context.Context) (err error) {
			sched, err = s.schedule.EventSchedule(ctx, id.Key)
			return err
		})
	if err != nil {
		if ctx.Err() != nil {
			return nil, types.Wrap(op, types.ErrUpstreamUnavailable, err)
		}
		return s.degraded(ctx, policy.NexusSchedule, map[string]any{}, policy.NexusFailure, err), nil
	}
	return s.fresh(policy.NexusSchedule, sched, v.IsActiveNow), nil
}

// EventsByYear lists the events of a season.
func (s *Service) EventsByYear(ctx context.Context, year int) (*Result, error) {
	const op = "events list"
	if err := s.validYear(op, year); err != nil {
		return nil, err
	}
	if _, _, err := s.components(op); err != nil {
		return nil, err
	}
	events, err := s.results.EventsByYear(ctx, year)
	if err != nil {
		return nil, types.Wrap(op, types.ErrUpstreamUnavailable, err)
	}
	return s.fresh(policy.EventsList, EventsBody{Events: nonNil(events)}, false), nil
}

// Team returns a team's profile.
func (s *Service) Team(ctx context.Context, teamKey string) (*Result, error) {
	const op = "team info"
	key, err := teamKeyParam(op, teamKey)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.components(op); err != nil {
		return nil, err
	}
	team, err := s.results.Team(ctx, key)
	if err != nil {
		return nil, types.Wrap(op, types.ErrUpstreamUnavailable, err)
	}
	return s.fresh(policy.TeamInfo, team, false), nil
}

// TeamStats returns a team's per-event statuses for a season. The window is
// short while the team is at an event.
func (s *Service) TeamStats(ctx context.Context, teamKey string, year int) (*Result, error) {
	const op = "team stats"
	key, err := teamKeyParam(op, teamKey)
	if err != nil {
		return nil, err
	}
	if err := s.validYear(op, year); err != nil {
		return nil, err
	}
	oracle, _, err := s.components(op)
	if err != nil {
		return nil, err
	}

	id := model.TeamID(key, year)
	var stats *model.TeamStats
	v, err := withRecency(ctx,
		func(ctx context.Context) recency.Verdict { return oracle.IsTeamAtRecentEvent(ctx, id, year) },
		func(ctx context.Context) (err error) {
			stats, err = s.results.TeamStatuses(ctx, key, year)
			return err
		})
	if err != nil {
		return nil, types.Wrap(op, types.ErrUpstreamUnavailable, err)
	}
	return s.fresh(policy.TeamStats, stats, v.IsActiveNow), nil
}

// TeamsList lists the teams of a season. For the current season the
// aggregate copy is served when it is non-empty; otherwise the provider is
// asked and its answer is written back to the aggregate.
func (s *Service) TeamsList(ctx context.Context, year int) (*Result, error) {
	const op = "teams list"
	if err := s.validYear(op, year); err != nil {
		return nil, err
	}
	_, agg, err := s.components(op)
	if err != nil {
		return nil, err
	}

	current := year == s.currentSeason
	if current {
		teams, err := agg.ReadTeamsList(ctx, year)
		switch {
		case err != nil:
			s.logger.Warn(ctx, "aggregate teams list unavailable, asking provider",
				logger.Int("year", year), logger.Error(err))
		case len(teams) > 0:
			r := s.fresh(policy.TeamsList, TeamsBody{Teams: teams}, false)
			r.Outcome = types.OutcomeSecondary
			return r, nil
		}
	}

	teams, err := s.results.TeamsByYear(ctx, year)
	if err != nil {
		return nil, types.Wrap(op, types.ErrUpstreamUnavailable, err)
	}
	if current && len(teams) > 0 {
		if err := agg.WriteTeamsList(ctx, year, teams); err != nil {
			s.logger.Warn(ctx, "teams list write-through failed", logger.Int("year", year), logger.Error(err))
		}
	}
	return s.fresh(policy.TeamsList, TeamsBody{Teams: nonNil(teams)}, false), nil
}

// Match returns one match. A provider failure keeps the provider's status
// code inside the returned error.
func (s *Service) Match(ctx context.Context, matchKey string) (*Result, error) {
	const op = "match details"
	id := model.MatchID(matchKey)
	if err := id.Validate(); err != nil || !strings.Contains(id.Key, "_") {
		return nil, types.Wrap(op, types.ErrInvalidRequest, fmt.Errorf("malformed match key %q", matchKey))
	}
	if _, _, err := s.components(op); err != nil {
		return nil, err
	}
	match, err := s.results.Match(ctx, id.Key)
	if err != nil {
		return nil, types.Wrap(op, types.ErrUpstreamUnavailable, err)
	}
	return s.fresh(policy.MatchDetails, match, false), nil
}

// RankingSet returns a stored ranking set wrapped as {"data": ...}.
func (s *Service) RankingSet(ctx context.Context, id string) (*Result, error) {
	const op = "global rankings"
	_, agg, err := s.components(op)
	if err != nil {
		return nil, err
	}
	snap, err := agg.ReadRankingSet(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.fresh(policy.GlobalRankings, RankingSetBody{Data: snap}, false), nil
}

// RankingSets lists stored ranking set ids.
func (s *Service) RankingSets(ctx context.Context) (*Result, error) {
	const op = "global rankings"
	_, agg, err := s.components(op)
	if err != nil {
		return nil, err
	}
	ids, err := agg.ListRankingSets(ctx)
	if err != nil {
		return nil, err
	}
	return s.fresh(policy.GlobalRankings, map[string][]string{"rankingSets": nonNil(ids)}, false), nil
}

// WriteRankingSet replaces a ranking set. Enrichment continues after it returns.
func (s *Service) WriteRankingSet(ctx context.Context, id string, rows []model.Row) (*model.RankingSnapshot, error) {
	_, agg, err := s.components("write ranking set")
	if err != nil {
		return nil, err
	}
	return agg.WriteRankingSet(ctx, id, rows)
}

func (s *Service) fresh(c policy.Category, payload any, recent bool) *Result {
	metrics.RecordDirective(string(c), recent)
	return &Result{
		Category:  c,
		Payload:   payload,
		Directive: s.policies.PolicyFor(c, recent),
		Outcome:   types.OutcomeFresh,
		Recent:    recent,
	}
}

func (s *Service) degraded(ctx context.Context, c policy.Category, payload any, d policy.Directive, cause error) *Result {
	metrics.RecordDegraded(string(c), string(types.OutcomeDegraded))
	s.logger.Warn(ctx, "provider failed, serving default payload",
		logger.String("category", string(c)), logger.Error(cause))
	return &Result{Category: c, Payload: payload, Directive: d, Outcome: types.OutcomeDegraded}
}

// withRecency runs the recency lookup next to the fetch. The verdict never fails.
func withRecency(ctx context.Context, verdict func(context.Context) recency.Verdict, fetch func(context.Context) error) (recency.Verdict, error) {
	g, gctx := errgroup.WithContext(ctx)
	var v recency.Verdict
	g.Go(func() error {
		v = verdict(gctx)
		return nil
	})
	g.Go(func() error { return fetch(gctx) })
	err := g.Wait()
	return v, err
}

func (s *Service) validYear(op string, year int) error {
	if year < firstSeason || year > s.currentSeason+1 {
		return types.Wrap(op, types.ErrInvalidRequest, fmt.Errorf("year %d out of range", year))
	}
	return nil
}

func eventIdentity(op, eventKey string) (model.Identity, error) {
	id := model.EventID(eventKey)
	if err := id.Validate(); err != nil {
		return id, types.Wrap(op, types.ErrInvalidRequest, err)
	}
	if id.Year == 0 {
		return id, types.Wrap(op, types.ErrInvalidRequest, fmt.Errorf("event key %q does not start with a season", eventKey))
	}
	return id, nil
}

func teamKeyParam(op, teamKey string) (string, error) {
	key := model.NormalizeTeamKey(teamKey)
	if key == "" {
		return "", types.Wrap(op, types.ErrInvalidRequest, fmt.Errorf("%w: empty team key", model.ErrInvalidIdentity))
	}
	return key, nil
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
