package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/pitscout/internal/domain/model"
	"github.com/okian/pitscout/internal/domain/types"
	"github.com/okian/pitscout/pkg/metrics"
)

// MemoryStore keeps the aggregate in process. Stored snapshots are private
// copies and are never mutated after the write, so a replace is a pointer swap.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*model.RankingSnapshot
	geo       map[string]model.Geo
	teams     map[int][]model.TeamInfo
	closed    bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(_ ...Option) *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]*model.RankingSnapshot),
		geo:       make(map[string]model.Geo),
		teams:     make(map[int][]model.TeamInfo),
	}
}

func (s *MemoryStore) Backend() string { return BackendMemory }

func (s *MemoryStore) PutSnapshot(_ context.Context, snap *model.RankingSnapshot) (err error) {
	defer observe(BackendMemory, "put_snapshot", time.Now(), &err)
	stored := snap.Clone()
	for i := range stored.Rows {
		stored.Rows[i].Geo = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.Wrap("repository.PutSnapshot", types.ErrStoreUnavailable, ErrClosed)
	}
	s.snapshots[stored.RankingSetID] = stored
	metrics.UpdateRankingSets(len(s.snapshots))
	return nil
}

func (s *MemoryStore) GetSnapshot(_ context.Context, id string) (_ *model.RankingSnapshot, err error) {
	defer observe(BackendMemory, "get_snapshot", time.Now(), &err)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, types.Wrap("repository.GetSnapshot", types.ErrStoreUnavailable, ErrClosed)
	}
	snap, ok := s.snapshots[id]
	if !ok {
		return nil, ErrNotFound
	}
	return snap.Clone(), nil
}

func (s *MemoryStore) ListRankingSets(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, types.Wrap("repository.ListRankingSets", types.ErrStoreUnavailable, ErrClosed)
	}
	ids := make([]string, 0, len(s.snapshots))
	for id := range s.snapshots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) PutGeo(_ context.Context, subjectKey string, geo model.Geo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.Wrap("repository.PutGeo", types.ErrStoreUnavailable, ErrClosed)
	}
	s.geo[subjectKey] = geo
	return nil
}

func (s *MemoryStore) GetGeo(_ context.Context, subjectKeys []string) (map[string]model.Geo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, types.Wrap("repository.GetGeo", types.ErrStoreUnavailable, ErrClosed)
	}
	out := make(map[string]model.Geo, len(subjectKeys))
	for _, k := range subjectKeys {
		if g, ok := s.geo[k]; ok {
			out[k] = g
		}
	}
	return out, nil
}

func (s *MemoryStore) WriteTeamsList(_ context.Context, year int, teams []model.TeamInfo) error {
	cp := append([]model.TeamInfo(nil), teams...)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.Wrap("repository.WriteTeamsList", types.ErrStoreUnavailable, ErrClosed)
	}
	s.teams[year] = cp
	return nil
}

func (s *MemoryStore) ReadTeamsList(_ context.Context, year int) ([]model.TeamInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, types.Wrap("repository.ReadTeamsList", types.ErrStoreUnavailable, ErrClosed)
	}
	return append([]model.TeamInfo{}, s.teams[year]...), nil
}

func (s *MemoryStore) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return types.Wrap("repository.Ping", types.ErrStoreUnavailable, ErrClosed)
	}
	return nil
}

// Close makes every later call fail with ErrStoreUnavailable.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func observe(backend, op string, start time.Time, err *error) {
	var e error
	if err != nil && *err != nil && *err != ErrNotFound {
		e = *err
	}
	metrics.RecordStoreOperation(backend, op, e, float64(time.Since(start).Milliseconds()))
}
