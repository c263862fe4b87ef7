// Package upstream wraps the external data providers. Every call is exactly one
// network attempt whose failure, whatever its cause, surfaces as *FetchFailure.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/okian/pitscout/pkg/logger"
	"github.com/okian/pitscout/pkg/metrics"
	"golang.org/x/time/rate"
)

// Provider names used in logs, metrics and failures.
const (
	ProviderResults = "results"
	ProviderNexus   = "nexus"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 16 << 20
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client performs single GET attempts against one provider.
type Client struct {
	provider   string
	baseURL    string
	authHeader string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     logger.Logger
}

// NewClient creates a client for provider rooted at baseURL.
func NewClient(provider, baseURL string, opts ...Option) *Client {
	c := &Client{
		provider:   provider,
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(rate.Inf, 0),
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("upstream").With(logger.String("provider", provider))
	return c
}

// Provider returns the provider name.
func (c *Client) Provider() string { return c.provider }

// Fetch issues one GET for endpoint (a path relative to the base URL) and
// returns the body of a 2xx response.
func (c *Client) Fetch(ctx context.Context, endpoint string) ([]byte, error) {
	start := time.Now()
	body, err := c.fetch(ctx, endpoint)
	latency := float64(time.Since(start).Milliseconds())

	if err != nil {
		metrics.RecordUpstreamFetch(c.provider, outcomeLabel(err), latency)
		c.logger.Debug(ctx, "upstream fetch failed",
			logger.String("endpoint", endpoint),
			logger.Int("status", StatusCode(err)),
			logger.Error(err))
		return nil, err
	}
	metrics.RecordUpstreamFetch(c.provider, "ok", latency)
	return body, nil
}

func (c *Client) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.failure(endpoint, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, c.failure(endpoint, 0, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.authHeader != "" && c.apiKey != "" {
		req.Header.Set(c.authHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.failure(endpoint, 0, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug(ctx, "close response body", logger.Error(cerr))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, c.failure(endpoint, resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.failure(endpoint, resp.StatusCode, nil)
	}
	return body, nil
}

func (c *Client) failure(endpoint string, status int, err error) *FetchFailure {
	return &FetchFailure{Provider: c.provider, Endpoint: endpoint, StatusCode: status, Err: err}
}

func (c *Client) malformed(endpoint string, err error) *FetchFailure {
	return c.failure(endpoint, 0, fmt.Errorf("%w: %v", ErrMalformedPayload, err))
}

// getJSON fetches endpoint, decodes it into a new T and runs validate on it.
func getJSON[T any](ctx context.Context, c *Client, endpoint string, validate func(*T) error) (*T, error) {
	body, err := c.Fetch(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	out := new(T)
	if err := json.Unmarshal(body, out); err != nil {
		return nil, c.recordMalformed(ctx, endpoint, err)
	}
	if validate != nil {
		if err := validate(out); err != nil {
			return nil, c.recordMalformed(ctx, endpoint, err)
		}
	}
	return out, nil
}

func (c *Client) recordMalformed(ctx context.Context, endpoint string, err error) error {
	metrics.RecordUpstreamFetch(c.provider, "malformed", 0)
	c.logger.Warn(ctx, "rejecting provider payload", logger.String("endpoint", endpoint), logger.Error(err))
	return c.malformed(endpoint, err)
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case StatusCode(err) != 0:
		return "status"
	default:
		return "transport"
	}
}
