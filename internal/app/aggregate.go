package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/okian/pitscout/internal/adapters/repository"
	"github.com/okian/pitscout/internal/domain/model"
	"github.com/okian/pitscout/internal/domain/types"
	"github.com/okian/pitscout/pkg/logger"
	"github.com/okian/pitscout/pkg/metrics"
)

// Aggregate is the read/write face of the aggregate store. Writes replace a
// ranking set whole; geo is resolved afterwards and attached on read.
type Aggregate struct {
	store    repository.Store
	enricher *Enricher
	now      func() time.Time
	logger   logger.Logger
}

// NewAggregate binds a store to an enricher. A nil enricher disables enrichment.
func NewAggregate(store repository.Store, enricher *Enricher, l logger.Logger) *Aggregate {
	if l == nil {
		l = logger.Nop()
	}
	return &Aggregate{store: store, enricher: enricher, now: time.Now, logger: l.Named("aggregate")}
}

// ReadRankingSet returns the latest snapshot for id with the currently known
// geo attached, or nil when id was never written.
func (a *Aggregate) ReadRankingSet(ctx context.Context, id string) (*model.RankingSnapshot, error) {
	ident := model.RankingSetID(id)
	if err := ident.Validate(); err != nil {
		return nil, types.Wrap("read ranking set", types.ErrInvalidRequest, err)
	}

	snap, err := a.store.GetSnapshot(ctx, ident.Key)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("read ranking set", err)
	}

	geo, err := a.store.GetGeo(ctx, snap.SubjectKeys())
	if err != nil {
		// rows are still served, without locations
		metrics.RecordErrorByComponent("aggregate", "geo_read")
		a.logger.Warn(ctx, "geo lookup failed", logger.String("ranking_set", ident.Key), logger.Error(err))
		return snap, nil
	}
	snap.AttachGeo(geo)
	return snap, nil
}

// WriteRankingSet replaces the rows stored under id and queues enrichment for
// subjects without a known location. It returns before enrichment completes.
func (a *Aggregate) WriteRankingSet(ctx context.Context, id string, rows []model.Row) (*model.RankingSnapshot, error) {
	snap, err := model.NewRankingSnapshot(id, rows, a.now(), uuid.NewString())
	if err != nil {
		return nil, types.Wrap("write ranking set", types.ErrInvalidRequest, err)
	}
	if err := a.store.PutSnapshot(ctx, snap); err != nil {
		return nil, storeError("write ranking set", err)
	}

	if a.enricher != nil {
		a.enrich(ctx, snap)
	}
	return snap, nil
}

func (a *Aggregate) enrich(ctx context.Context, snap *model.RankingSnapshot) {
	subjects := snap.SubjectKeys()
	known, err := a.store.GetGeo(ctx, subjects)
	if err != nil {
		a.logger.Debug(ctx, "geo prefetch failed, submitting every subject", logger.Error(err))
		known = nil
	}
	missing := make([]string, 0, len(subjects))
	for _, k := range subjects {
		if _, ok := known[k]; ok {
			a.enricher.MarkKnown(k)
			continue
		}
		missing = append(missing, k)
	}
	// the write has already succeeded; enrichment must not outlive or fail with the request
	queued := a.enricher.Submit(context.WithoutCancel(ctx), snap.RankingSetID, missing)
	a.logger.Debug(ctx, "ranking set written",
		logger.String("ranking_set", snap.RankingSetID),
		logger.Int("rows", len(snap.Rows)),
		logger.Int("enrich_queued", queued))
}

// ListRankingSets returns the stored ranking set ids.
func (a *Aggregate) ListRankingSets(ctx context.Context) ([]string, error) {
	ids, err := a.store.ListRankingSets(ctx)
	if err != nil {
		return nil, storeError("list ranking sets", err)
	}
	return ids, nil
}

// ReadTeamsList returns the secondary teams list for year.
func (a *Aggregate) ReadTeamsList(ctx context.Context, year int) ([]model.TeamInfo, error) {
	teams, err := a.store.ReadTeamsList(ctx, year)
	if err != nil {
		return nil, storeError("read teams list", err)
	}
	return teams, nil
}

// WriteTeamsList stores the teams list for year.
func (a *Aggregate) WriteTeamsList(ctx context.Context, year int, teams []model.TeamInfo) error {
	if err := a.store.WriteTeamsList(ctx, year, teams); err != nil {
		return storeError("write teams list", err)
	}
	return nil
}

// storeError marks any backend failure as a store failure.
func storeError(op string, err error) error {
	if errors.Is(err, types.ErrStoreUnavailable) {
		return err
	}
	return types.Wrap(op, types.ErrStoreUnavailable, err)
}
