package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/pitscout/internal/adapters/localcache"
	"github.com/okian/pitscout/internal/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newServer(t *testing.T, cacheControl string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/api/teams/frc0" {
			w.Header().Set("Cache-Control", "no-store")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"upstream_unavailable"}`))
			return
		}
		w.Header().Set("Cache-Control", cacheControl)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"key":"frc254"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, url string, clk *clock) *client.Client {
	t.Helper()
	store, err := localcache.OpenInMemory(localcache.WithClock(clk.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	c, err := client.New(url, store, client.WithClock(clk.Now))
	require.NoError(t, err)
	return c
}

func TestServesFromCacheWhileFresh(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, "public, max-age=60, s-maxage=120, stale-while-revalidate=600", &hits)
	clk := &clock{now: time.Date(2024, 3, 29, 12, 0, 0, 0, time.UTC)}
	c := newClient(t, srv.URL, clk)
	ctx := context.Background()

	body, src, err := c.Get(ctx, "/api/teams/frc254")
	require.NoError(t, err)
	assert.Equal(t, client.SourceNetwork, src)
	assert.JSONEq(t, `{"key":"frc254"}`, string(body))

	clk.now = clk.now.Add(59 * time.Second)
	body, src, err = c.Get(ctx, "/api/teams/frc254")
	require.NoError(t, err)
	assert.Equal(t, client.SourceCache, src)
	assert.JSONEq(t, `{"key":"frc254"}`, string(body))
	assert.EqualValues(t, 1, hits.Load())

	clk.now = clk.now.Add(time.Second)
	_, src, err = c.Get(ctx, "/api/teams/frc254")
	require.NoError(t, err)
	assert.Equal(t, client.SourceNetwork, src)
	assert.EqualValues(t, 2, hits.Load())
}

func TestClearForcesRefetch(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, "public, max-age=3600, s-maxage=7200, stale-while-revalidate=36000", &hits)
	c := newClient(t, srv.URL, &clock{now: time.Now()})
	ctx := context.Background()

	_, _, err := c.Get(ctx, "/api/events/2024casj/rankings")
	require.NoError(t, err)
	require.NoError(t, c.Clear())

	_, src, err := c.Get(ctx, "/api/events/2024casj/rankings")
	require.NoError(t, err)
	assert.Equal(t, client.SourceNetwork, src)
	assert.EqualValues(t, 2, hits.Load())
}

func TestNoStoreIsNeverCached(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, "no-store", &hits)
	c := newClient(t, srv.URL, &clock{now: time.Now()})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, src, err := c.Get(ctx, "/api/matches/2024casj_qm1")
		require.NoError(t, err)
		assert.Equal(t, client.SourceNetwork, src)
	}
	assert.EqualValues(t, 2, hits.Load())
}

func TestErrorStatus(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, "public, max-age=60", &hits)
	c := newClient(t, srv.URL, &clock{now: time.Now()})

	_, _, err := c.Get(context.Background(), "/api/teams/frc0")
	var se *client.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
}

func TestMaxAge(t *testing.T) {
	assert.Equal(t, 120, client.MaxAge("public, max-age=120, s-maxage=240"))
	assert.Equal(t, 0, client.MaxAge("no-store"))
	assert.Equal(t, 0, client.MaxAge(""))
	assert.Equal(t, 0, client.MaxAge("max-age=abc"))
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := client.New("  ", nil)
	assert.ErrorIs(t, err, client.ErrEmptyBaseURL)
}
