package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/pitscout/internal/config"
	"github.com/okian/pitscout/internal/domain/policy"
	"github.com/smartystreets/goconvey/convey"
)

var configEnvVars = []string{
	"PITSCOUT_CONFIG",
	"PITSCOUT_ADDR",
	"PITSCOUT_STORE_BACKEND",
	"PITSCOUT_REDIS_ADDR",
	"PITSCOUT_RECENCY_GRACE_HOURS",
	"PITSCOUT_ENRICH_WORKERS",
	"PITSCOUT_CURRENT_SEASON",
	"PITSCOUT_RESULTS_API_KEY",
}

func clearConfigEnvVars() {
	for _, name := range configEnvVars {
		_ = os.Unsetenv(name)
	}
}

func createTempConfigFile(content string) string {
	f, err := os.CreateTemp("", "pitscout-*.yaml")
	if err != nil {
		panic(err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(content); err != nil {
		panic(err)
	}
	return f.Name()
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.StoreBackend, convey.ShouldEqual, "memory")
				convey.So(cfg.RecencyGraceHours, convey.ShouldEqual, 24)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("PITSCOUT_ADDR", ":8080")
			_ = os.Setenv("PITSCOUT_STORE_BACKEND", "redis")
			_ = os.Setenv("PITSCOUT_REDIS_ADDR", "cache:6379")
			_ = os.Setenv("PITSCOUT_RECENCY_GRACE_HOURS", "12")
			_ = os.Setenv("PITSCOUT_CURRENT_SEASON", "2025")
			_ = os.Setenv("PITSCOUT_RESULTS_API_KEY", "secret")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.StoreBackend, convey.ShouldEqual, "redis")
				convey.So(cfg.RedisAddr, convey.ShouldEqual, "cache:6379")
				convey.So(cfg.RecencyGraceHours, convey.ShouldEqual, 12)
				convey.So(cfg.CurrentSeason, convey.ShouldEqual, 2025)
				convey.So(cfg.ResultsAPIKey, convey.ShouldEqual, "secret")
			})
		})

		convey.Convey("When loading config with a YAML file carrying policy overrides", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
enrich_workers: 3
policies:
  event-rankings:
    recent_max_age: 30
    quiet_max_age: 1800
    stale_multiplier: 10
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("PITSCOUT_CONFIG", tmpFile)
			_ = os.Setenv("PITSCOUT_ENRICH_WORKERS", "5")

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values apply and env still wins", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.EnrichWorkers, convey.ShouldEqual, 5)

				table, err := cfg.PolicyTable()
				convey.So(err, convey.ShouldBeNil)
				convey.So(table.PolicyFor(policy.EventRankings, true).MaxAge, convey.ShouldEqual, 30)
				convey.So(table.PolicyFor(policy.EventRankings, false).MaxAge, convey.ShouldEqual, 1800)
			})
		})

		convey.Convey("When a policy override breaks the window ordering", func() {
			tmpFile := createTempConfigFile(`
policies:
  team-stats:
    recent_max_age: 600
    quiet_max_age: 60
    stale_multiplier: 5
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("PITSCOUT_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should be rejected as invalid config", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a policy override names an unknown category", func() {
			tmpFile := createTempConfigFile(`
policies:
  leaderboard:
    recent_max_age: 10
    quiet_max_age: 20
    stale_multiplier: 5
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("PITSCOUT_CONFIG", tmpFile)

			_, err := config.Load(ctx)

			convey.Convey("Then it should fail validation", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("PITSCOUT_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("PITSCOUT_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with an unknown store backend", func() {
			_ = os.Setenv("PITSCOUT_STORE_BACKEND", "mysql")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "store_backend")
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("PITSCOUT_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("PITSCOUT_ENRICH_WORKERS", "not_a_number")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}
