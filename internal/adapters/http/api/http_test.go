package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/pitscout/internal/adapters/http/api"
	"github.com/okian/pitscout/internal/adapters/upstream"
	"github.com/okian/pitscout/internal/app"
	"github.com/okian/pitscout/internal/domain/model"
	"github.com/okian/pitscout/internal/domain/policy"
	"github.com/okian/pitscout/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDependencies struct {
	result  *app.Result
	err     error
	written []model.Row
	gotKey  string
	gotYear int
}

func (m *mockDependencies) answer(key string, year int) (*app.Result, error) {
	m.gotKey, m.gotYear = key, year
	return m.result, m.err
}

func (m *mockDependencies) EventRankings(_ context.Context, k string) (*app.Result, error) {
	return m.answer(k, 0)
}

func (m *mockDependencies) EventTeams(_ context.Context, k string) (*app.Result, error) {
	return m.answer(k, 0)
}

func (m *mockDependencies) EventSchedule(_ context.Context, k string) (*app.Result, error) {
	return m.answer(k, 0)
}

func (m *mockDependencies) EventsByYear(_ context.Context, y int) (*app.Result, error) {
	return m.answer("", y)
}

func (m *mockDependencies) Team(_ context.Context, k string) (*app.Result, error) {
	return m.answer(k, 0)
}

func (m *mockDependencies) TeamStats(_ context.Context, k string, y int) (*app.Result, error) {
	return m.answer(k, y)
}

func (m *mockDependencies) TeamsList(_ context.Context, y int) (*app.Result, error) {
	return m.answer("", y)
}

func (m *mockDependencies) Match(_ context.Context, k string) (*app.Result, error) {
	return m.answer(k, 0)
}

func (m *mockDependencies) RankingSet(_ context.Context, id string) (*app.Result, error) {
	return m.answer(id, 0)
}

func (m *mockDependencies) RankingSets(_ context.Context) (*app.Result, error) {
	return m.answer("", 0)
}

func (m *mockDependencies) WriteRankingSet(_ context.Context, id string, rows []model.Row) (*model.RankingSnapshot, error) {
	m.gotKey, m.written = id, rows
	if m.err != nil {
		return nil, m.err
	}
	return &model.RankingSnapshot{RankingSetID: id, Rows: rows, Revision: "r1"}, nil
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newMux(deps *mockDependencies) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}}).Register(context.Background(), mux)
	return mux
}

func do(mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("Then the health endpoint exposes metrics", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then the stats endpoint answers JSON", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
		})

		Convey("Then every response carries a request id", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Header().Get(api.HeaderRequestID), ShouldNotBeEmpty)

			req := httptest.NewRequest(http.MethodGet, "/stats", nil)
			req.Header.Set(api.HeaderRequestID, "abc-123")
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Header().Get(api.HeaderRequestID), ShouldEqual, "abc-123")
		})

		Convey("Then unsupported methods are rejected", func() {
			w := do(mux, http.MethodDelete, "/api/rankings/world", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestReadEndpoints(t *testing.T) {
	Convey("Given a dependency answering with a fresh result", t, func() {
		deps := &mockDependencies{result: &app.Result{
			Category:  policy.EventRankings,
			Payload:   &model.EventRankings{Rankings: []model.EventRanking{{Rank: 1, TeamKey: "frc254"}}},
			Directive: policy.Directive{MaxAge: 120, SharedMaxAge: 240, StaleWhileRevalidate: 1200},
			Outcome:   types.OutcomeFresh,
		}}
		mux := newMux(deps)

		Convey("When event rankings are requested", func() {
			w := do(mux, http.MethodGet, "/api/events/2024casj/rankings", "")

			Convey("Then the directive and outcome are set", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.gotKey, ShouldEqual, "2024casj")
				So(w.Header().Get("Cache-Control"), ShouldEqual, "public, max-age=120, s-maxage=240, stale-while-revalidate=1200")
				So(w.Header().Get(api.HeaderCacheOutcome), ShouldEqual, "fresh")
				So(w.Body.String(), ShouldContainSubstring, `"team_key":"frc254"`)
			})
		})

		Convey("When team stats are requested with a year", func() {
			w := do(mux, http.MethodGet, "/api/teams/frc254/stats?year=2024", "")

			Convey("Then both parameters reach the service", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.gotKey, ShouldEqual, "frc254")
				So(deps.gotYear, ShouldEqual, 2024)
			})
		})

		Convey("When a year is missing or malformed", func() {
			for _, target := range []string{"/api/teams/frc254/stats", "/api/teams?year=abc", "/api/events"} {
				w := do(mux, http.MethodGet, target, "")

				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(w.Header().Get("Cache-Control"), ShouldEqual, "no-store")
				So(w.Body.String(), ShouldContainSubstring, `"error":"invalid_request"`)
			}
		})
	})

	Convey("Given a dependency failing with each error kind", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		cases := []struct {
			err    error
			status int
			code   string
		}{
			{types.NewKind("op", types.ErrInvalidRequest), http.StatusBadRequest, "invalid_request"},
			{types.Wrap("op", types.ErrUpstreamUnavailable, errors.New("boom")), http.StatusBadGateway, "upstream_unavailable"},
			{types.NewKind("op", types.ErrStoreUnavailable), http.StatusServiceUnavailable, "store_unavailable"},
			{errors.New("unexpected"), http.StatusInternalServerError, "internal_error"},
		}
		for _, c := range cases {
			deps.err = c.err
			w := do(mux, http.MethodGet, "/api/teams/frc254", "")

			So(w.Code, ShouldEqual, c.status)
			So(w.Body.String(), ShouldContainSubstring, c.code)
			So(w.Header().Get("Cache-Control"), ShouldEqual, "no-store")
		}
	})

	Convey("Given a match whose provider answered 404", t, func() {
		deps := &mockDependencies{err: types.Wrap("match details", types.ErrUpstreamUnavailable,
			&upstream.FetchFailure{Provider: upstream.ProviderResults, Endpoint: "/match/2024casj_qm99", StatusCode: 404})}
		mux := newMux(deps)

		w := do(mux, http.MethodGet, "/api/matches/2024casj_qm99", "")

		Convey("Then the status is passed through", func() {
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(w.Header().Get("Cache-Control"), ShouldEqual, "no-store")
		})
	})
}

func TestRankingEndpoints(t *testing.T) {
	Convey("Given a rankings dependency", t, func() {
		deps := &mockDependencies{result: &app.Result{
			Category:  policy.GlobalRankings,
			Payload:   app.RankingSetBody{},
			Directive: policy.DefaultTable().PolicyFor(policy.GlobalRankings, false),
			Outcome:   types.OutcomeFresh,
		}}
		mux := newMux(deps)

		Convey("When a never written set is read", func() {
			w := do(mux, http.MethodGet, "/api/rankings/world", "")

			Convey("Then the data wrapper is null", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, `{"data":null}`)
			})
		})

		Convey("When rows are written", func() {
			w := do(mux, http.MethodPut, "/api/rankings/world", `{"rows":[{"subjectKey":"frc254","metricValue":98.5}]}`)

			Convey("Then they reach the service and the snapshot is echoed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.gotKey, ShouldEqual, "world")
				So(deps.written, ShouldHaveLength, 1)
				So(deps.written[0].SubjectKey, ShouldEqual, "frc254")
				So(w.Body.String(), ShouldContainSubstring, `"revision":"r1"`)
				So(w.Header().Get("Cache-Control"), ShouldEqual, "no-store")
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(mux, http.MethodPost, "/api/rankings/world", `rows=1`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When rows are missing", func() {
			w := do(mux, http.MethodPost, "/api/rankings/world", `{}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the store is down", func() {
			deps.err = types.NewKind("write ranking set", types.ErrStoreUnavailable)
			w := do(mux, http.MethodPut, "/api/rankings/world", `{"rows":[{"subjectKey":"frc254","metricValue":1}]}`)
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}
