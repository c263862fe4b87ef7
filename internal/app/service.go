// Package app wires the providers, the recency oracle, the cache policy table
// and the aggregate store into the Service the HTTP API depends on.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/pitscout/internal/adapters/repository"
	"github.com/okian/pitscout/internal/domain/policy"
	"github.com/okian/pitscout/internal/domain/recency"
	"github.com/okian/pitscout/internal/domain/types"
	"github.com/okian/pitscout/pkg/logger"
	"github.com/okian/pitscout/pkg/metrics"
)

const (
	defaultWorkers    = 4
	defaultQueueSize  = 10000
	defaultDedupeSize = 50000
	defaultGeoMemoTTL = 7 * 24 * time.Hour
	stopTimeout       = 10 * time.Second
	statsTimeout      = 2 * time.Second
)

// Service serves every request category. Build it with New, then Start it
// before use and Stop it when done. A stopped Service cannot be restarted.
type Service struct {
	mu sync.RWMutex

	// Providers and collaborators
	results  Results
	schedule Schedule
	store    repository.Store
	oracle   Oracle
	locator  GeoLocator
	policies *policy.Table

	// Configuration
	currentSeason int
	grace         time.Duration
	enrich        EnricherConfig

	// Built by Start
	aggregate *Aggregate
	enricher  *Enricher

	started   bool
	stopped   bool
	startedAt time.Time
	logger    logger.Logger
}

// New constructs a Service. Nothing is started until Start.
func New(opts ...Option) *Service {
	s := &Service{
		policies:      policy.DefaultTable(),
		currentSeason: time.Now().Year(),
		enrich: EnricherConfig{
			Workers:    defaultWorkers,
			QueueSize:  defaultQueueSize,
			DedupeSize: defaultDedupeSize,
			MemoTTL:    defaultGeoMemoTTL,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the oracle and the aggregate and starts the enrichment workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.stopped {
		return ErrStopped
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.results == nil {
		return fmt.Errorf("%w: results provider", ErrMissingDependency)
	}
	if s.schedule == nil {
		return fmt.Errorf("%w: schedule provider", ErrMissingDependency)
	}

	s.logger.Info(ctx, "starting pitscout service...")

	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.oracle == nil {
		opts := []recency.Option{
			recency.WithMemoTTL(s.policies.ShortestWindow()),
			recency.WithLogger(s.logger),
		}
		if s.grace > 0 {
			opts = append(opts, recency.WithGrace(s.grace))
		}
		s.oracle = recency.New(s.results, opts...)
	}
	if s.locator == nil {
		s.locator = TeamLocator{Results: s.results}
	}

	s.enricher = NewEnricher(s.locator, s.store, s.enrich, s.logger)
	s.enricher.Start(context.WithoutCancel(ctx))
	s.aggregate = NewAggregate(s.store, s.enricher, s.logger)

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "pitscout service started",
		logger.String("store", s.store.Backend()),
		logger.Int("workers", s.enrich.Workers),
		logger.Int("queueSize", s.enrich.QueueSize),
		logger.Int("currentSeason", s.currentSeason),
	)
	return nil
}

// Stop drains the enrichment queue and closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping pitscout service...")

	if err := s.enricher.Stop(ctx); err != nil {
		s.logger.Warn(ctx, "enrichment did not drain", logger.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "store close failed", logger.Error(err))
	}

	s.started = false
	s.stopped = true
	s.logger.Info(ctx, "pitscout service stopped")
}

// Aggregate returns the aggregate store face, or nil before Start.
func (s *Service) Aggregate() *Aggregate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aggregate
}

// Policies returns the cache policy table in use.
func (s *Service) Policies() *policy.Table { return s.policies }

// Ping checks the aggregate store.
func (s *Service) Ping(ctx context.Context) error {
	s.mu.RLock()
	store, started := s.store, s.started
	s.mu.RUnlock()
	if !started {
		return types.Wrap("ping", types.ErrStoreUnavailable, ErrNotStarted)
	}
	if err := store.Ping(ctx); err != nil {
		return storeError("ping", err)
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":       s.started,
		"workerCount":   s.enrich.Workers,
		"queueSize":     s.enrich.QueueSize,
		"dedupeSize":    s.enrich.DedupeSize,
		"currentSeason": s.currentSeason,
	}
	if !s.started {
		return stats
	}

	queueLen := s.enricher.QueueLen()
	stats["store"] = s.store.Backend()
	stats["queueLength"] = queueLen
	stats["inFlight"] = s.enricher.InFlight()
	stats["enriched"] = s.enricher.pool.Processed()
	stats["enrichFailed"] = s.enricher.pool.Failed()
	stats["uptimeSeconds"] = int(time.Since(s.startedAt).Seconds())

	ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
	defer cancel()
	if ids, err := s.store.ListRankingSets(ctx); err == nil {
		stats["rankingSets"] = len(ids)
		metrics.UpdateRankingSets(len(ids))
	}
	metrics.UpdateQueueSize(queueLen)
	return stats
}

// components returns the collaborators built by Start.
func (s *Service) components(op string) (Oracle, *Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, types.Wrap(op, types.ErrStoreUnavailable, ErrNotStarted)
	}
	return s.oracle, s.aggregate, nil
}
