package app_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/okian/pitscout/internal/adapters/upstream"
	"github.com/okian/pitscout/internal/domain/model"
	"github.com/okian/pitscout/internal/domain/recency"
)

func strPtr(s string) *string { return &s }

func outage(endpoint string, status int) error {
	return &upstream.FetchFailure{Provider: upstream.ProviderResults, Endpoint: endpoint, StatusCode: status}
}

// fakeResults serves canned payloads. A non-nil err fails every call.
type fakeResults struct {
	mu        sync.Mutex
	err       error
	events    map[string]*model.Event
	teams     map[string]*model.TeamInfo
	teamsList []model.TeamInfo
	teamErrs  map[string]error

	teamsByYearCalls atomic.Int32
	teamCalls        atomic.Int32
}

func newFakeResults() *fakeResults {
	return &fakeResults{
		events:   map[string]*model.Event{},
		teams:    map[string]*model.TeamInfo{},
		teamErrs: map[string]error{},
	}
}

func (f *fakeResults) fail() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeResults) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeResults) Event(_ context.Context, key string) (*model.Event, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[key]
	if !ok {
		return nil, outage("/event/"+key, 404)
	}
	return ev, nil
}

func (f *fakeResults) EventRankings(_ context.Context, key string) (*model.EventRankings, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return &model.EventRankings{Rankings: []model.EventRanking{{Rank: 1, TeamKey: "frc254", MatchesPlayed: 10}}}, nil
}

func (f *fakeResults) EventTeams(_ context.Context, key string) ([]model.TeamInfo, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return []model.TeamInfo{{Key: "frc254", TeamNumber: 254}}, nil
}

func (f *fakeResults) EventsByYear(_ context.Context, year int) ([]model.Event, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return nil, nil
}

func (f *fakeResults) Team(_ context.Context, key string) (*model.TeamInfo, error) {
	f.teamCalls.Add(1)
	if err := f.fail(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.teamErrs[key]; err != nil {
		return nil, err
	}
	t, ok := f.teams[key]
	if !ok {
		return nil, outage("/team/"+key, 404)
	}
	return t, nil
}

func (f *fakeResults) TeamEvents(_ context.Context, key string, year int) ([]model.Event, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return nil, nil
}

func (f *fakeResults) TeamStatuses(_ context.Context, key string, year int) (*model.TeamStats, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return &model.TeamStats{TeamKey: key, Year: year, Statuses: map[string]*model.TeamEventStatus{}}, nil
}

func (f *fakeResults) TeamsByYear(_ context.Context, year int) ([]model.TeamInfo, error) {
	f.teamsByYearCalls.Add(1)
	if err := f.fail(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.TeamInfo(nil), f.teamsList...), nil
}

func (f *fakeResults) Match(_ context.Context, key string) (*model.Match, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return &model.Match{Key: key, CompLevel: "qm", MatchNumber: 1, EventKey: "2024casj"}, nil
}

type fakeSchedule struct {
	err error
}

func (f *fakeSchedule) EventSchedule(_ context.Context, key string) (*model.NexusSchedule, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.NexusSchedule{EventKey: key, NowQueuing: strPtr("Qualification 12")}, nil
}

// fixedOracle answers the same verdict for everything.
type fixedOracle struct{ recent bool }

func (o fixedOracle) IsEventRecent(_ context.Context, id model.Identity) recency.Verdict {
	return recency.Verdict{Identity: id, IsActiveNow: o.recent}
}

func (o fixedOracle) IsTeamAtRecentEvent(_ context.Context, id model.Identity, year int) recency.Verdict {
	id.Year = year
	return recency.Verdict{Identity: id, IsActiveNow: o.recent}
}

func team(n int, city string) *model.TeamInfo {
	return &model.TeamInfo{Key: fmt.Sprintf("frc%d", n), TeamNumber: n, City: strPtr(city), Country: strPtr("USA")}
}
