// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Defaults live in New; Load layers an optional YAML file and env vars on top.
// - Durations are expressed in whole units (seconds, hours) to keep env overrides flat.
package config

import (
	"runtime"
	"time"
)

// PolicyConfig overrides one row of the cache policy table. Values are seconds.
type PolicyConfig struct {
	RecentMaxAge    int `koanf:"recent_max_age"`
	QuietMaxAge     int `koanf:"quiet_max_age"`
	StaleMultiplier int `koanf:"stale_multiplier"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// CurrentSeason is the year treated as "current" by the teams-list fallback.
	CurrentSeason int `koanf:"current_season"`

	// Event-results provider.
	ResultsBaseURL string `koanf:"results_base_url"`
	ResultsAPIKey  string `koanf:"results_api_key"`

	// Live-schedule provider.
	NexusBaseURL string `koanf:"nexus_base_url"`
	NexusAPIKey  string `koanf:"nexus_api_key"`

	// UpstreamTimeoutMS bounds a single upstream attempt.
	UpstreamTimeoutMS int `koanf:"upstream_timeout_ms"`
	// UpstreamRPS and UpstreamBurst pace outbound calls per provider.
	UpstreamRPS   float64 `koanf:"upstream_rps"`
	UpstreamBurst int     `koanf:"upstream_burst"`

	// RecencyGraceHours widens an event window on both sides.
	RecencyGraceHours int `koanf:"recency_grace_hours"`

	// StoreBackend selects the aggregate store: "memory" or "redis".
	StoreBackend  string `koanf:"store_backend"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	RedisPrefix   string `koanf:"redis_prefix"`

	// Enrichment pipeline sizing.
	EnrichWorkers    int `koanf:"enrich_workers"`
	EnrichQueueSize  int `koanf:"enrich_queue_size"`
	EnrichDedupeSize int `koanf:"enrich_dedupe_size"`
	GeoMemoHours     int `koanf:"geo_memo_hours"`

	// LocalCachePath is the leveldb directory used by the scout CLI.
	LocalCachePath string `koanf:"local_cache_path"`

	// Policies overrides entries of the default cache policy table by category name.
	Policies map[string]PolicyConfig `koanf:"policies"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		Addr:              ":9080",
		CurrentSeason:     time.Now().Year(),
		ResultsBaseURL:    "https://www.thebluealliance.com/api/v3",
		NexusBaseURL:      "https://frc.nexus/api/v1",
		UpstreamTimeoutMS: 10_000,
		UpstreamRPS:       10,
		UpstreamBurst:     20,
		RecencyGraceHours: 24,
		StoreBackend:      "memory",
		RedisAddr:         "localhost:6379",
		RedisPrefix:       "pitscout",
		EnrichWorkers:     runtime.NumCPU(),
		EnrichQueueSize:   10_000,
		EnrichDedupeSize:  50_000,
		GeoMemoHours:      24 * 7,
		LocalCachePath:    ".pitscout-cache",
		Policies:          map[string]PolicyConfig{},
	}
}

// UpstreamTimeout returns the per-attempt timeout.
func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutMS) * time.Millisecond
}

// RecencyGrace returns the grace period applied around event windows.
func (c *Config) RecencyGrace() time.Duration {
	return time.Duration(c.RecencyGraceHours) * time.Hour
}

// GeoMemoTTL returns how long a resolved subject is remembered.
func (c *Config) GeoMemoTTL() time.Duration {
	return time.Duration(c.GeoMemoHours) * time.Hour
}
