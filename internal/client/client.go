// Package client is a consumer of the pitscout HTTP API that keeps responses
// in a local persistent cache. An entry is served while it is younger than the
// max-age the server attached to it; older entries are refetched.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/okian/pitscout/internal/adapters/localcache"
	"github.com/okian/pitscout/pkg/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Source tells where a body came from.
type Source string

const (
	SourceCache   Source = "cache"
	SourceNetwork Source = "network"
)

// Store is the part of the local cache the client needs.
type Store interface {
	GetEntry(key string) (*localcache.Entry, bool, error)
	Put(key string, value []byte) error
	Clear() error
}

// envelope is what the client writes into the store.
type envelope struct {
	MaxAge int                 `json:"maxAge"`
	Body   jsoniter.RawMessage `json:"body"`
}

// Client fetches API paths through the local cache.
type Client struct {
	baseURL string
	http    *http.Client
	store   Store
	now     func() time.Time
	logger  logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithClock replaces time.Now when judging entry age.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client for the server at baseURL.
func New(baseURL string, store Store, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrEmptyBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		store:   store,
		now:     time.Now,
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get returns the body for path, from the cache while it is fresh.
func (c *Client) Get(ctx context.Context, path string) ([]byte, Source, error) {
	key := cacheKey(path)
	if body, ok := c.lookup(ctx, key); ok {
		return body, SourceCache, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("GET %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &StatusError{Path: path, StatusCode: resp.StatusCode, Body: body}
	}

	if maxAge := MaxAge(resp.Header.Get("Cache-Control")); maxAge > 0 && json.Valid(body) {
		raw, err := json.Marshal(envelope{MaxAge: maxAge, Body: body})
		if err == nil {
			err = c.store.Put(key, raw)
		}
		if err != nil {
			c.logger.Warn(ctx, "local cache write failed", logger.String("path", path), logger.Error(err))
		}
	}
	return body, SourceNetwork, nil
}

// Clear empties the local cache.
func (c *Client) Clear() error {
	return c.store.Clear()
}

func (c *Client) lookup(ctx context.Context, key string) ([]byte, bool) {
	e, ok, err := c.store.GetEntry(key)
	if err != nil {
		c.logger.Warn(ctx, "local cache read failed", logger.String("key", key), logger.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var env envelope
	if err := json.Unmarshal(e.Value, &env); err != nil {
		return nil, false
	}
	if c.now().Sub(e.StoredAt) >= time.Duration(env.MaxAge)*time.Second {
		return nil, false
	}
	return env.Body, true
}

func cacheKey(path string) string {
	return "GET " + path
}

// MaxAge extracts the max-age directive from a Cache-Control value. It
// returns 0 when the value is absent, malformed or says no-store.
func MaxAge(cacheControl string) int {
	maxAge := 0
	for _, part := range strings.Split(cacheControl, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "no-store" || part == "no-cache" {
			return 0
		}
		if v, ok := strings.CutPrefix(part, "max-age="); ok {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return 0
			}
			maxAge = n
		}
	}
	return maxAge
}
