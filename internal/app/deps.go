package app

import (
	"context"

	"github.com/okian/pitscout/internal/domain/model"
	"github.com/okian/pitscout/internal/domain/recency"
)

// Results is the event-results provider.
type Results interface {
	Event(ctx context.Context, eventKey string) (*model.Event, error)
	EventRankings(ctx context.Context, eventKey string) (*model.EventRankings, error)
	EventTeams(ctx context.Context, eventKey string) ([]model.TeamInfo, error)
	EventsByYear(ctx context.Context, year int) ([]model.Event, error)
	Team(ctx context.Context, teamKey string) (*model.TeamInfo, error)
	TeamEvents(ctx context.Context, teamKey string, year int) ([]model.Event, error)
	TeamStatuses(ctx context.Context, teamKey string, year int) (*model.TeamStats, error)
	TeamsByYear(ctx context.Context, year int) ([]model.TeamInfo, error)
	Match(ctx context.Context, matchKey string) (*model.Match, error)
}

// Schedule is the live-schedule provider.
type Schedule interface {
	EventSchedule(ctx context.Context, eventKey string) (*model.NexusSchedule, error)
}

// Oracle answers recency questions.
type Oracle interface {
	IsEventRecent(ctx context.Context, id model.Identity) recency.Verdict
	IsTeamAtRecentEvent(ctx context.Context, id model.Identity, year int) recency.Verdict
}

// GeoLocator resolves the location of one ranked subject. A nil Geo with a nil
// error means the subject has no known location.
type GeoLocator interface {
	Locate(ctx context.Context, subjectKey string) (*model.Geo, error)
}

// TeamLocator locates teams through the results provider.
type TeamLocator struct {
	Results interface {
		Team(ctx context.Context, teamKey string) (*model.TeamInfo, error)
	}
}

// Locate implements GeoLocator.
func (l TeamLocator) Locate(ctx context.Context, subjectKey string) (*model.Geo, error) {
	team, err := l.Results.Team(ctx, model.NormalizeTeamKey(subjectKey))
	if err != nil {
		return nil, err
	}
	return team.Geo(), nil
}
