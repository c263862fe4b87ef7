package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/pitscout/internal/domain/policy"
)

const (
	envPrefix  = "PITSCOUT_"
	envFileVar = "PITSCOUT_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New)
//  2. file (YAML) if PITSCOUT_CONFIG is set
//  3. env (prefix PITSCOUT_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envFileVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	// PITSCOUT_STORE_BACKEND -> store_backend; underscores are preserved to
	// match the flat koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the invariants the rest of the service relies on.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.StoreBackend != "memory" && c.StoreBackend != "redis":
		return fmt.Errorf("%w: store_backend must be memory or redis, got %q", ErrInvalidConfig, c.StoreBackend)
	case c.RecencyGraceHours < 0:
		return fmt.Errorf("%w: recency_grace_hours must not be negative", ErrInvalidConfig)
	case c.CurrentSeason <= 0:
		return fmt.Errorf("%w: current_season must be positive", ErrInvalidConfig)
	case c.UpstreamRPS <= 0 || c.UpstreamBurst <= 0:
		return fmt.Errorf("%w: upstream_rps and upstream_burst must be positive", ErrInvalidConfig)
	}
	if _, err := c.PolicyTable(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// PolicyTable returns the default policy table with configured overrides applied.
func (c *Config) PolicyTable() (*policy.Table, error) {
	table := policy.DefaultTable()
	for name, override := range c.Policies {
		cat, err := policy.ParseCategory(name)
		if err != nil {
			return nil, err
		}
		table, err = table.With(cat, policy.Base{
			RecentMaxAge:    override.RecentMaxAge,
			QuietMaxAge:     override.QuietMaxAge,
			StaleMultiplier: override.StaleMultiplier,
		})
		if err != nil {
			return nil, err
		}
	}
	return table, nil
}
