package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/pitscout/internal/adapters/repository"
	"github.com/okian/pitscout/internal/adapters/upstream"
	app "github.com/okian/pitscout/internal/app"
	"github.com/okian/pitscout/internal/domain/model"
	"github.com/okian/pitscout/internal/domain/policy"
	"github.com/okian/pitscout/internal/domain/recency"
	"github.com/okian/pitscout/internal/domain/types"
	"github.com/okian/pitscout/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

const season = 2024

func startService(results *fakeResults, sched *fakeSchedule, opts ...app.Option) (*app.Service, repository.Store) {
	store := repository.NewMemoryStore()
	base := []app.Option{
		app.WithResults(results),
		app.WithSchedule(sched),
		app.WithStore(store),
		app.WithCurrentSeason(season),
		app.WithWorkerCount(2),
		app.WithLogger(logger.Nop()),
	}
	svc := app.New(append(base, opts...)...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc, store
}

func eventually(check func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return check()
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given a service without providers", t, func() {
		svc := app.New(app.WithLogger(logger.Nop()))

		Convey("Then Start refuses to run", func() {
			err := svc.Start(context.Background())
			So(errors.Is(err, app.ErrMissingDependency), ShouldBeTrue)
		})

		Convey("Then reads fail as store unavailable until started", func() {
			_, err := svc.RankingSet(context.Background(), "district-pnw")
			So(errors.Is(err, types.ErrStoreUnavailable), ShouldBeTrue)
			So(errors.Is(err, app.ErrNotStarted), ShouldBeTrue)
		})
	})

	Convey("Given a started service", t, func() {
		svc, _ := startService(newFakeResults(), &fakeSchedule{})

		Convey("Then stats report the backend and workers", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["store"], ShouldEqual, repository.BackendMemory)
			So(stats["workerCount"], ShouldEqual, 2)
			So(svc.Ping(context.Background()), ShouldBeNil)
		})

		Convey("When stopped twice", func() {
			svc.Stop()
			svc.Stop()

			Convey("Then it reports not started", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
			})

			Convey("Then it cannot be started again on the closed store", func() {
				So(errors.Is(svc.Start(context.Background()), app.ErrStopped), ShouldBeTrue)
				_, err := svc.RankingSet(context.Background(), "district-pnw")
				So(errors.Is(err, app.ErrNotStarted), ShouldBeTrue)
			})
		})
	})
}

func TestDegradedCategories(t *testing.T) {
	Convey("Given providers that are down", t, func() {
		results := newFakeResults()
		results.setErr(outage("/event/2024casj/rankings", 503))
		sched := &fakeSchedule{err: &upstream.FetchFailure{Provider: upstream.ProviderNexus, Endpoint: "/event/2024casj", StatusCode: 500}}
		svc, _ := startService(results, sched, app.WithOracle(fixedOracle{recent: true}))
		defer svc.Stop()
		ctx := context.Background()

		Convey("When the live schedule is requested", func() {
			res, err := svc.EventSchedule(ctx, "2024casj")

			Convey("Then an empty object is served with the fixed failure directive", func() {
				So(err, ShouldBeNil)
				So(res.Payload, ShouldResemble, map[string]any{})
				So(res.Directive, ShouldResemble, policy.NexusFailure)
				So(res.Directive.Header(), ShouldEqual, "public, max-age=120, s-maxage=240")
				So(res.Outcome, ShouldEqual, types.OutcomeDegraded)
			})
		})

		Convey("When event rankings are requested", func() {
			res, err := svc.EventRankings(ctx, "2024casj")

			Convey("Then an empty rankings list is cached briefly", func() {
				So(err, ShouldBeNil)
				So(res.Payload, ShouldResemble, &model.EventRankings{Rankings: []model.EventRanking{}})
				So(res.Directive, ShouldResemble, policy.RankingsFailure)
				So(res.Outcome, ShouldEqual, types.OutcomeDegraded)
			})
		})

		Convey("When event teams are requested", func() {
			_, err := svc.EventTeams(ctx, "2024casj")

			Convey("Then the failure propagates", func() {
				So(errors.Is(err, types.ErrUpstreamUnavailable), ShouldBeTrue)
			})
		})

		Convey("When team stats are requested", func() {
			_, err := svc.TeamStats(ctx, "254", season)

			Convey("Then the failure propagates", func() {
				So(errors.Is(err, types.ErrUpstreamUnavailable), ShouldBeTrue)
			})
		})

		Convey("When a match is requested", func() {
			_, err := svc.Match(ctx, "2024casj_qm1")

			Convey("Then the provider status survives", func() {
				So(errors.Is(err, types.ErrUpstreamUnavailable), ShouldBeTrue)
				So(upstream.StatusCode(err), ShouldEqual, 503)
			})
		})
	})
}

func TestFreshDirectives(t *testing.T) {
	Convey("Given healthy providers", t, func() {
		results := newFakeResults()
		ctx := context.Background()

		Convey("When the event is running", func() {
			svc, _ := startService(results, &fakeSchedule{}, app.WithOracle(fixedOracle{recent: true}))
			defer svc.Stop()

			res, err := svc.EventRankings(ctx, "2024casj")
			So(err, ShouldBeNil)

			Convey("Then the short window applies", func() {
				So(res.Outcome, ShouldEqual, types.OutcomeFresh)
				So(res.Recent, ShouldBeTrue)
				So(res.Directive, ShouldResemble, policy.Directive{MaxAge: 120, SharedMaxAge: 240, StaleWhileRevalidate: 1200})
			})

			Convey("Then team stats use the team window", func() {
				res, err := svc.TeamStats(ctx, "frc254", season)
				So(err, ShouldBeNil)
				So(res.Directive.MaxAge, ShouldEqual, 60)
			})

			Convey("Then fixed categories ignore the verdict", func() {
				res, err := svc.Match(ctx, "2024casj_qm1")
				So(err, ShouldBeNil)
				So(res.Directive, ShouldResemble, policy.Directive{MaxAge: 60, SharedMaxAge: 120, StaleWhileRevalidate: 600})

				res, err = svc.Team(ctx, "254")
				So(err, ShouldBeNil)
				So(res.Directive.MaxAge, ShouldEqual, 604800)
			})
		})

		Convey("When the event ended ten days ago", func() {
			results.events["2024casj"] = &model.Event{
				Key: "2024casj", Name: "Silicon Valley Regional", Year: 2024,
				StartDate: "2024-03-21", EndDate: "2024-03-24", Timezone: strPtr("America/Los_Angeles"),
			}
			now := time.Date(2024, 4, 3, 19, 0, 0, 0, time.UTC)
			oracle := recency.New(results, recency.WithClock(func() time.Time { return now }))
			svc, _ := startService(results, &fakeSchedule{}, app.WithOracle(oracle))
			defer svc.Stop()

			res, err := svc.EventRankings(ctx, "2024casj")

			Convey("Then the rankings carry the long window", func() {
				So(err, ShouldBeNil)
				So(res.Recent, ShouldBeFalse)
				So(res.Directive, ShouldResemble, policy.Directive{MaxAge: 3600, SharedMaxAge: 7200, StaleWhileRevalidate: 36000})
			})
		})
	})
}

func TestInvalidRequests(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc, _ := startService(newFakeResults(), &fakeSchedule{}, app.WithOracle(fixedOracle{}))
		defer svc.Stop()
		ctx := context.Background()

		Convey("Then missing or malformed parameters are client errors", func() {
			_, err := svc.EventRankings(ctx, " ")
			So(errors.Is(err, types.ErrInvalidRequest), ShouldBeTrue)

			_, err = svc.EventSchedule(ctx, "casj")
			So(errors.Is(err, types.ErrInvalidRequest), ShouldBeTrue)

			_, err = svc.TeamStats(ctx, "frc254", 0)
			So(errors.Is(err, types.ErrInvalidRequest), ShouldBeTrue)

			_, err = svc.TeamsList(ctx, 3000)
			So(errors.Is(err, types.ErrInvalidRequest), ShouldBeTrue)

			_, err = svc.Team(ctx, "")
			So(errors.Is(err, types.ErrInvalidRequest), ShouldBeTrue)

			_, err = svc.Match(ctx, "2024casj")
			So(errors.Is(err, types.ErrInvalidRequest), ShouldBeTrue)

			_, err = svc.WriteRankingSet(ctx, "", nil)
			So(errors.Is(err, types.ErrInvalidRequest), ShouldBeTrue)

			_, err = svc.WriteRankingSet(ctx, "district-pnw", []model.Row{{SubjectKey: ""}})
			So(errors.Is(err, types.ErrInvalidRequest), ShouldBeTrue)
		})
	})
}

func TestTeamsList(t *testing.T) {
	Convey("Given the current season", t, func() {
		results := newFakeResults()
		results.teamsList = []model.TeamInfo{*team(254, "San Jose"), *team(1678, "Davis")}
		svc, store := startService(results, &fakeSchedule{}, app.WithOracle(fixedOracle{}))
		defer svc.Stop()
		ctx := context.Background()

		Convey("When the aggregate copy is empty", func() {
			res, err := svc.TeamsList(ctx, season)

			Convey("Then the provider answer is served and written back", func() {
				So(err, ShouldBeNil)
				So(res.Outcome, ShouldEqual, types.OutcomeFresh)
				So(res.Payload.(app.TeamsBody).Teams, ShouldHaveLength, 2)
				So(results.teamsByYearCalls.Load(), ShouldEqual, 1)

				stored, err := store.ReadTeamsList(ctx, season)
				So(err, ShouldBeNil)
				So(stored, ShouldHaveLength, 2)
			})

			Convey("Then the next read comes from the aggregate", func() {
				res, err := svc.TeamsList(ctx, season)
				So(err, ShouldBeNil)
				So(res.Outcome, ShouldEqual, types.OutcomeSecondary)
				So(results.teamsByYearCalls.Load(), ShouldEqual, 1)
			})
		})

		Convey("When an older season is requested", func() {
			res, err := svc.TeamsList(ctx, 2019)

			Convey("Then the aggregate is neither read nor written", func() {
				So(err, ShouldBeNil)
				So(res.Outcome, ShouldEqual, types.OutcomeFresh)
				stored, _ := store.ReadTeamsList(ctx, 2019)
				So(stored, ShouldBeEmpty)
			})
		})

		Convey("When the aggregate store is down", func() {
			So(store.Close(), ShouldBeNil)
			res, err := svc.TeamsList(ctx, season)

			Convey("Then the provider still answers", func() {
				So(err, ShouldBeNil)
				So(res.Payload.(app.TeamsBody).Teams, ShouldHaveLength, 2)
			})
		})

		Convey("When both the aggregate is empty and the provider fails", func() {
			results.setErr(outage("/teams/2024/0", 500))
			_, err := svc.TeamsList(ctx, season)

			Convey("Then the failure propagates", func() {
				So(errors.Is(err, types.ErrUpstreamUnavailable), ShouldBeTrue)
			})
		})
	})
}

func TestRankingSets(t *testing.T) {
	Convey("Given a started service with locatable teams", t, func() {
		results := newFakeResults()
		results.teams["frc254"] = team(254, "San Jose")
		results.teams["frc1678"] = team(1678, "Davis")
		results.teamErrs["frc9999"] = outage("/team/frc9999", 500)
		svc, store := startService(results, &fakeSchedule{}, app.WithOracle(fixedOracle{}))
		defer svc.Stop()
		ctx := context.Background()

		Convey("When a ranking set was never written", func() {
			res, err := svc.RankingSet(ctx, "district-pnw")

			Convey("Then the data wrapper is empty", func() {
				So(err, ShouldBeNil)
				So(res.Payload, ShouldResemble, app.RankingSetBody{})
				So(res.Directive.MaxAge, ShouldEqual, 300)
			})
		})

		Convey("When rows are written", func() {
			rows := []model.Row{
				{SubjectKey: "frc254", MetricValue: 98.5},
				{SubjectKey: "frc1678", MetricValue: 97.1, Details: map[string]float64{"opr": 61.2}},
				{SubjectKey: "frc9999", MetricValue: 10},
			}
			snap, err := svc.WriteRankingSet(ctx, "world", rows)
			So(err, ShouldBeNil)
			So(snap.Revision, ShouldNotBeEmpty)

			Convey("Then a read returns exactly those rows", func() {
				res, err := svc.RankingSet(ctx, "world")
				So(err, ShouldBeNil)
				got := res.Payload.(app.RankingSetBody).Data
				So(got.Rows, ShouldHaveLength, 3)
				for i := range rows {
					So(got.Rows[i].SubjectKey, ShouldEqual, rows[i].SubjectKey)
					So(got.Rows[i].MetricValue, ShouldEqual, rows[i].MetricValue)
				}
			})

			Convey("Then locations are attached once resolved", func() {
				So(eventually(func() bool {
					res, err := svc.RankingSet(ctx, "world")
					if err != nil {
						return false
					}
					data := res.Payload.(app.RankingSetBody).Data
					return data.Rows[0].Geo != nil && data.Rows[1].Geo != nil
				}), ShouldBeTrue)

				res, _ := svc.RankingSet(ctx, "world")
				data := res.Payload.(app.RankingSetBody).Data
				So(data.Rows[0].Geo.City, ShouldEqual, "San Jose")
				So(data.Rows[2].Geo, ShouldBeNil)
			})

			Convey("Then a replacement drops the old rows and skips known subjects", func() {
				So(eventually(func() bool {
					geo, _ := store.GetGeo(ctx, []string{"frc254", "frc1678"})
					return len(geo) == 2
				}), ShouldBeTrue)
				So(eventually(func() bool { return results.teamCalls.Load() >= 3 }), ShouldBeTrue)
				before := results.teamCalls.Load()

				_, err := svc.WriteRankingSet(ctx, "world", []model.Row{{SubjectKey: "frc254", MetricValue: 1}})
				So(err, ShouldBeNil)

				res, err := svc.RankingSet(ctx, "world")
				So(err, ShouldBeNil)
				So(res.Payload.(app.RankingSetBody).Data.Rows, ShouldHaveLength, 1)
				time.Sleep(50 * time.Millisecond)
				So(results.teamCalls.Load(), ShouldEqual, before)
			})

			Convey("Then a failed lookup is retried by a later write", func() {
				So(eventually(func() bool { return results.teamCalls.Load() >= 3 }), ShouldBeTrue)
				So(eventually(func() bool { return svc.GetStats()["inFlight"] == int64(0) }), ShouldBeTrue)
				before := results.teamCalls.Load()

				_, err := svc.WriteRankingSet(ctx, "world", rows)
				So(err, ShouldBeNil)
				So(eventually(func() bool { return results.teamCalls.Load() == before+1 }), ShouldBeTrue)
			})

			Convey("Then the set is listed", func() {
				res, err := svc.RankingSets(ctx)
				So(err, ShouldBeNil)
				So(res.Payload, ShouldResemble, map[string][]string{"rankingSets": {"world"}})
			})
		})

		Convey("When the store is down", func() {
			So(store.Close(), ShouldBeNil)

			Convey("Then reads and writes fail as store unavailable", func() {
				_, err := svc.RankingSet(ctx, "world")
				So(errors.Is(err, types.ErrStoreUnavailable), ShouldBeTrue)
				So(errors.Is(err, types.ErrUpstreamUnavailable), ShouldBeFalse)

				_, err = svc.WriteRankingSet(ctx, "world", []model.Row{{SubjectKey: "frc254", MetricValue: 1}})
				So(errors.Is(err, types.ErrStoreUnavailable), ShouldBeTrue)
			})
		})
	})
}
