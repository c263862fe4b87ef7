// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the class of resource an Identity names.
type Kind string

// Resource kinds.
const (
	KindEvent      Kind = "event"
	KindTeam       Kind = "team"
	KindMatch      Kind = "match"
	KindRankingSet Kind = "rankingSet"
)

// Identity is the stable (kind, key, year) tuple used as a cache key.
// Key is the provider-native code, e.g. "2024casj" or "frc254".
type Identity struct {
	Kind Kind
	Key  string
	Year int
}

// EventID returns the identity of an event.
func EventID(key string) Identity {
	return Identity{Kind: KindEvent, Key: normalizeKey(key), Year: yearPrefix(key)}
}

// TeamID returns the identity of a team scoped to a season.
func TeamID(key string, year int) Identity {
	return Identity{Kind: KindTeam, Key: normalizeKey(key), Year: year}
}

// MatchID returns the identity of a match.
func MatchID(key string) Identity {
	return Identity{Kind: KindMatch, Key: normalizeKey(key), Year: yearPrefix(key)}
}

// RankingSetID returns the identity of a stored ranking set.
func RankingSetID(id string) Identity {
	return Identity{Kind: KindRankingSet, Key: strings.TrimSpace(id)}
}

// CacheKey renders the identity as "kind:key:year".
func (id Identity) CacheKey() string {
	return string(id.Kind) + ":" + id.Key + ":" + strconv.Itoa(id.Year)
}

func (id Identity) String() string { return id.CacheKey() }

// Validate checks the kind and key.
func (id Identity) Validate() error {
	switch id.Kind {
	case KindEvent, KindTeam, KindMatch, KindRankingSet:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidIdentity, id.Kind)
	}
	if id.Key == "" {
		return fmt.Errorf("%w: empty %s key", ErrInvalidIdentity, id.Kind)
	}
	if id.Year < 0 {
		return fmt.Errorf("%w: negative year %d", ErrInvalidIdentity, id.Year)
	}
	return nil
}

// NormalizeTeamKey accepts "254" or "frc254" and returns "frc254".
func NormalizeTeamKey(key string) string {
	key = normalizeKey(key)
	if key == "" {
		return ""
	}
	if _, err := strconv.Atoi(key); err == nil {
		return "frc" + key
	}
	return key
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// yearPrefix reads the season from keys such as "2024casj" or "2024casj_qm1".
func yearPrefix(key string) int {
	key = strings.TrimSpace(key)
	if len(key) < 4 {
		return 0
	}
	y, err := strconv.Atoi(key[:4])
	if err != nil {
		return 0
	}
	return y
}
