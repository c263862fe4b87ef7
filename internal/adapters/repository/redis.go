package repository

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/okian/pitscout/internal/domain/model"
	"github.com/okian/pitscout/internal/domain/types"
	"github.com/okian/pitscout/pkg/logger"
	"github.com/okian/pitscout/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RedisStore keeps the aggregate in Redis. Each snapshot is one JSON value,
// so a replace is a single SET and readers never see a partial row set.
//
// Keys:
//
//	<prefix>:ranking:<id>   snapshot document
//	<prefix>:rankings       set of ranking set ids
//	<prefix>:geo            hash subjectKey -> geo document
//	<prefix>:teams:<year>   teams list document
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	logger logger.Logger
}

// NewRedisStore wraps an existing client.
func NewRedisStore(rdb *redis.Client, opts ...Option) *RedisStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &RedisStore{rdb: rdb, prefix: o.prefix, logger: o.logger.Named("repository")}
}

// OpenRedis dials addr and verifies the connection.
func OpenRedis(ctx context.Context, addr, password string, db int, opts ...Option) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	s := NewRedisStore(rdb, opts...)
	if err := s.Ping(ctx); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return s, nil
}

func (s *RedisStore) Backend() string { return BackendRedis }

func (s *RedisStore) snapshotKey(id string) string { return s.prefix + ":ranking:" + id }
func (s *RedisStore) indexKey() string             { return s.prefix + ":rankings" }
func (s *RedisStore) geoKey() string               { return s.prefix + ":geo" }
func (s *RedisStore) teamsKey(year int) string     { return s.prefix + ":teams:" + strconv.Itoa(year) }

func (s *RedisStore) PutSnapshot(ctx context.Context, snap *model.RankingSnapshot) (err error) {
	defer observe(BackendRedis, "put_snapshot", time.Now(), &err)
	stored := snap.Clone()
	for i := range stored.Rows {
		stored.Rows[i].Geo = nil
	}
	doc, err := json.Marshal(stored)
	if err != nil {
		return types.Wrap("repository.PutSnapshot", types.ErrStoreUnavailable, err)
	}

	var card *redis.IntCmd
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.snapshotKey(stored.RankingSetID), doc, 0)
		pipe.SAdd(ctx, s.indexKey(), stored.RankingSetID)
		card = pipe.SCard(ctx, s.indexKey())
		return nil
	})
	if err != nil {
		return types.Wrap("repository.PutSnapshot", types.ErrStoreUnavailable, err)
	}
	metrics.UpdateRankingSets(int(card.Val()))
	return nil
}

func (s *RedisStore) GetSnapshot(ctx context.Context, id string) (_ *model.RankingSnapshot, err error) {
	defer observe(BackendRedis, "get_snapshot", time.Now(), &err)
	doc, err := s.rdb.Get(ctx, s.snapshotKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, types.Wrap("repository.GetSnapshot", types.ErrStoreUnavailable, err)
	}
	var snap model.RankingSnapshot
	if err := json.Unmarshal(doc, &snap); err != nil {
		return nil, types.Wrap("repository.GetSnapshot", types.ErrStoreUnavailable, err)
	}
	if snap.Rows == nil {
		snap.Rows = []model.Row{}
	}
	return &snap, nil
}

func (s *RedisStore) ListRankingSets(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, types.Wrap("repository.ListRankingSets", types.ErrStoreUnavailable, err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *RedisStore) PutGeo(ctx context.Context, subjectKey string, geo model.Geo) (err error) {
	defer observe(BackendRedis, "put_geo", time.Now(), &err)
	doc, err := json.Marshal(geo)
	if err != nil {
		return types.Wrap("repository.PutGeo", types.ErrStoreUnavailable, err)
	}
	if err := s.rdb.HSet(ctx, s.geoKey(), subjectKey, doc).Err(); err != nil {
		return types.Wrap("repository.PutGeo", types.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) GetGeo(ctx context.Context, subjectKeys []string) (_ map[string]model.Geo, err error) {
	defer observe(BackendRedis, "get_geo", time.Now(), &err)
	out := make(map[string]model.Geo, len(subjectKeys))
	if len(subjectKeys) == 0 {
		return out, nil
	}
	vals, err := s.rdb.HMGet(ctx, s.geoKey(), subjectKeys...).Result()
	if err != nil {
		return nil, types.Wrap("repository.GetGeo", types.ErrStoreUnavailable, err)
	}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var g model.Geo
		if err := json.Unmarshal([]byte(raw), &g); err != nil {
			s.logger.Warn(ctx, "dropping unreadable geo entry", logger.String("subject", subjectKeys[i]), logger.Error(err))
			continue
		}
		out[subjectKeys[i]] = g
	}
	return out, nil
}

func (s *RedisStore) WriteTeamsList(ctx context.Context, year int, teams []model.TeamInfo) (err error) {
	defer observe(BackendRedis, "write_teams", time.Now(), &err)
	doc, err := json.Marshal(teams)
	if err != nil {
		return types.Wrap("repository.WriteTeamsList", types.ErrStoreUnavailable, err)
	}
	if err := s.rdb.Set(ctx, s.teamsKey(year), doc, 0).Err(); err != nil {
		return types.Wrap("repository.WriteTeamsList", types.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) ReadTeamsList(ctx context.Context, year int) (_ []model.TeamInfo, err error) {
	defer observe(BackendRedis, "read_teams", time.Now(), &err)
	doc, err := s.rdb.Get(ctx, s.teamsKey(year)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []model.TeamInfo{}, nil
	}
	if err != nil {
		return nil, types.Wrap("repository.ReadTeamsList", types.ErrStoreUnavailable, err)
	}
	var teams []model.TeamInfo
	if err := json.Unmarshal(doc, &teams); err != nil {
		return nil, types.Wrap("repository.ReadTeamsList", types.ErrStoreUnavailable, err)
	}
	if teams == nil {
		teams = []model.TeamInfo{}
	}
	return teams, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return types.Wrap("repository.Ping", types.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
