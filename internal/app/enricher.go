package app

import (
	"context"
	"errors"
	"time"

	"github.com/okian/pitscout/internal/adapters/mq/queue"
	"github.com/okian/pitscout/internal/adapters/mq/worker"
	"github.com/okian/pitscout/internal/domain/dedupe"
	"github.com/okian/pitscout/internal/domain/model"
	"github.com/okian/pitscout/internal/domain/types"
	"github.com/okian/pitscout/pkg/logger"
	"github.com/okian/pitscout/pkg/metrics"
	gocache "github.com/patrickmn/go-cache"
)

// geoWriter is the part of the store the enricher writes to.
type geoWriter interface {
	PutGeo(ctx context.Context, subjectKey string, geo model.Geo) error
}

// Enricher attaches locations to ranked subjects out of band. Subjects are
// looked up at most once per memo period; a subject already queued or being
// looked up is not queued again.
type Enricher struct {
	locator GeoLocator
	store   geoWriter
	known   *gocache.Cache
	flight  dedupe.Deduper
	queue   *queue.InMemoryQueue
	pool    *worker.Pool
	now     func() time.Time
	logger  logger.Logger
}

// EnricherConfig sizes an Enricher.
type EnricherConfig struct {
	Workers    int
	QueueSize  int
	DedupeSize int
	MemoTTL    time.Duration
}

// NewEnricher wires the queue, the in-flight memo and the worker pool.
func NewEnricher(locator GeoLocator, store geoWriter, cfg EnricherConfig, l logger.Logger) *Enricher {
	if l == nil {
		l = logger.Nop()
	}
	if cfg.MemoTTL <= 0 {
		cfg.MemoTTL = gocache.NoExpiration
	}
	e := &Enricher{
		locator: locator,
		store:   store,
		known:   gocache.New(cfg.MemoTTL, time.Hour),
		flight:  dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(cfg.DedupeSize)),
		queue:   queue.NewInMemoryQueue(queue.WithCapacity(cfg.QueueSize)),
		now:     time.Now,
		logger:  l.Named("enricher"),
	}
	e.pool = worker.NewPool(cfg.Workers, e.queue, e,
		worker.WithName("enrich"),
		worker.WithLogger(l),
	)
	return e
}

// Start launches the workers.
func (e *Enricher) Start(ctx context.Context) {
	e.pool.Start(ctx)
}

// Stop closes the queue and waits for the workers until ctx ends.
func (e *Enricher) Stop(ctx context.Context) error {
	_ = e.queue.Close()
	return e.pool.Shutdown(ctx)
}

// MarkKnown records subjects whose location is already stored.
func (e *Enricher) MarkKnown(subjectKeys ...string) {
	for _, k := range subjectKeys {
		e.known.SetDefault(k, struct{}{})
	}
}

// Submit queues lookups for the subjects of a ranking set that are neither
// known nor in flight. It never blocks on the lookups themselves.
func (e *Enricher) Submit(ctx context.Context, rankingSetID string, subjectKeys []string) int {
	queued := 0
	for _, k := range subjectKeys {
		if _, ok := e.known.Get(k); ok {
			metrics.RecordEnrichment("skipped")
			continue
		}
		if e.flight.SeenAndRecord(ctx, k) {
			metrics.RecordEnrichment("skipped")
			continue
		}
		err := e.queue.Enqueue(ctx, queue.Task{SubjectKey: k, RankingSetID: rankingSetID, QueuedAt: e.now()})
		if err != nil {
			e.flight.Unrecord(ctx, k)
			metrics.RecordEnrichment("dropped")
			e.logger.Warn(ctx, "enrichment task dropped",
				logger.String("subject", k), logger.String("ranking_set", rankingSetID), logger.Error(err))
			if errors.Is(err, queue.ErrClosed) || ctx.Err() != nil {
				return queued
			}
			continue
		}
		queued++
	}
	return queued
}

// Handle resolves one subject. Failures release the subject so a later write retries it.
func (e *Enricher) Handle(ctx context.Context, t worker.Task) error {
	defer e.flight.Unrecord(ctx, t.SubjectKey)

	geo, err := e.locator.Locate(ctx, t.SubjectKey)
	if err != nil {
		metrics.RecordEnrichment("failed")
		return types.Wrap("enrich "+t.SubjectKey, types.ErrEnrichmentUnavailable, err)
	}
	if geo != nil && !geo.IsZero() {
		if err := e.store.PutGeo(ctx, t.SubjectKey, *geo); err != nil {
			metrics.RecordEnrichment("failed")
			return types.Wrap("enrich "+t.SubjectKey, types.ErrEnrichmentUnavailable, err)
		}
	}
	e.known.SetDefault(t.SubjectKey, struct{}{})
	metrics.RecordEnrichment("resolved")
	return nil
}

// QueueLen returns the number of pending lookups.
func (e *Enricher) QueueLen() int { return e.queue.Len() }

// Workers returns the pool size.
func (e *Enricher) Workers() int { return e.pool.Size() }

// InFlight returns the number of subjects queued or being looked up.
func (e *Enricher) InFlight() int64 { return e.flight.Size() }
