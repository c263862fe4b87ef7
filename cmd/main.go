package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/pitscout/internal/adapters/http/api"
	"github.com/okian/pitscout/internal/adapters/http/swagger"
	"github.com/okian/pitscout/internal/adapters/repository"
	"github.com/okian/pitscout/internal/adapters/upstream"
	app "github.com/okian/pitscout/internal/app"
	"github.com/okian/pitscout/internal/config"
	"github.com/okian/pitscout/pkg/logger"
	"github.com/okian/pitscout/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

var errUnknownBackend = errors.New("unknown store backend")

func main() {
	// Go and process collectors are replaced by the custom system gauges.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() { _ = logger.Sync() }()

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, err := buildService(ctx, cfg, loggerInstance)
	if err != nil {
		loggerInstance.Error(ctx, "failed to build service", logger.Error(err))
		return
	}
	if err := svc.Start(ctx); err != nil {
		loggerInstance.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc, loggerInstance),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// buildService wires providers, the store and the policy table into a Service.
func buildService(ctx context.Context, cfg *config.Config, l logger.Logger) (*app.Service, error) {
	table, err := cfg.PolicyTable()
	if err != nil {
		return nil, err
	}
	store, err := openStore(ctx, cfg, l)
	if err != nil {
		return nil, err
	}

	results := upstream.NewClient(upstream.ProviderResults, cfg.ResultsBaseURL,
		upstream.WithTimeout(cfg.UpstreamTimeout()),
		upstream.WithRateLimit(cfg.UpstreamRPS, cfg.UpstreamBurst),
		upstream.WithAPIKey(upstream.ResultsAuthHeader, cfg.ResultsAPIKey),
		upstream.WithLogger(l),
	)
	nexus := upstream.NewClient(upstream.ProviderNexus, cfg.NexusBaseURL,
		upstream.WithTimeout(cfg.UpstreamTimeout()),
		upstream.WithRateLimit(cfg.UpstreamRPS, cfg.UpstreamBurst),
		upstream.WithAPIKey(upstream.NexusAuthHeader, cfg.NexusAPIKey),
		upstream.WithLogger(l),
	)

	return app.New(
		app.WithLogger(l),
		app.WithResults(upstream.NewResults(results)),
		app.WithSchedule(upstream.NewNexus(nexus)),
		app.WithStore(store),
		app.WithPolicyTable(table),
		app.WithCurrentSeason(cfg.CurrentSeason),
		app.WithRecencyGrace(cfg.RecencyGrace()),
		app.WithWorkerCount(cfg.EnrichWorkers),
		app.WithQueueSize(cfg.EnrichQueueSize),
		app.WithDedupeSize(cfg.EnrichDedupeSize),
		app.WithGeoMemoTTL(cfg.GeoMemoTTL()),
	), nil
}

// openStore selects the aggregate store backend.
func openStore(ctx context.Context, cfg *config.Config, l logger.Logger) (repository.Store, error) {
	switch cfg.StoreBackend {
	case repository.BackendMemory:
		return repository.NewMemoryStore(), nil
	case repository.BackendRedis:
		return repository.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			repository.WithPrefix(cfg.RedisPrefix),
			repository.WithLogger(l.Named("redis")),
		)
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownBackend, cfg.StoreBackend)
	}
}

// newMux registers the API and docs routes.
func newMux(ctx context.Context, svc *app.Service, l logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc, api.WithLogger(l.Named("http"))).Register(ctx, mux)
	return mux
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics updates service-level metrics. GetStats refreshes the
// queue and ranking-set gauges itself.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	if queueSize, ok := stats["queueSize"].(int); ok {
		metrics.UpdateQueueCapacity(queueSize)
	}
	if inFlight, ok := stats["inFlight"].(int64); ok {
		metrics.UpdateWorkerActiveCount(int(inFlight))
	}
}
