// Package repository holds the aggregate store: ranking snapshots keyed by
// ranking set id, geo enrichment keyed by subject, and the secondary teams list.
//
// A snapshot write replaces the whole row set in one step. Readers observe the
// previous or the new row set, never a mix of the two.
package repository

import (
	"context"

	"github.com/okian/pitscout/internal/domain/model"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Store is the durable side of the aggregate.
type Store interface {
	// PutSnapshot replaces whatever is stored under snap.RankingSetID.
	PutSnapshot(ctx context.Context, snap *model.RankingSnapshot) error
	// GetSnapshot returns the stored snapshot without geo. Returns ErrNotFound if never written.
	GetSnapshot(ctx context.Context, id string) (*model.RankingSnapshot, error)
	// ListRankingSets returns stored ranking set ids in ascending order.
	ListRankingSets(ctx context.Context) ([]string, error)

	// PutGeo records the location of one subject.
	PutGeo(ctx context.Context, subjectKey string, geo model.Geo) error
	// GetGeo returns the known locations of the given subjects. Unknown subjects are absent.
	GetGeo(ctx context.Context, subjectKeys []string) (map[string]model.Geo, error)

	// WriteTeamsList stores the teams of a season.
	WriteTeamsList(ctx context.Context, year int, teams []model.TeamInfo) error
	// ReadTeamsList returns the stored teams of a season, or an empty list.
	ReadTeamsList(ctx context.Context, year int) ([]model.TeamInfo, error)

	Ping(ctx context.Context) error
	Backend() string
	Close() error
}
