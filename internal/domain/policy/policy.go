// Package policy derives the Cache-Control directive attached to every served
// response from a request category and a recency verdict.
//
// The table is pure data: PolicyFor has no hidden state, so the same
// (category, recent) pair always yields the same Directive.
package policy

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Category identifies a class of request with its own freshness budget.
type Category string

// Request categories served by the HTTP API.
const (
	EventRankings  Category = "event-rankings"
	EventTeams     Category = "event-teams"
	NexusSchedule  Category = "nexus-schedule"
	TeamStats      Category = "team-stats"
	TeamInfo       Category = "team-info"
	TeamsList      Category = "teams-list"
	EventsList     Category = "events-list"
	MatchDetails   Category = "match-details"
	GlobalRankings Category = "global-rankings"
)

// sharedFactor is how much longer the shared tier may hold a response than the client.
const sharedFactor = 2

// Categories lists every known category in a stable order.
func Categories() []Category {
	return []Category{
		EventRankings, EventTeams, NexusSchedule, TeamStats, TeamInfo,
		TeamsList, EventsList, MatchDetails, GlobalRankings,
	}
}

// ParseCategory maps a category name to a Category.
func ParseCategory(name string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Categories() {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, name)
}

// Directive is the triple of freshness windows attached to a response, in seconds.
type Directive struct {
	MaxAge               int `json:"maxAge"`
	SharedMaxAge         int `json:"sharedMaxAge"`
	StaleWhileRevalidate int `json:"staleWhileRevalidate"`
}

// Fixed directives used outside the derived table.
var (
	// NexusFailure is served with the empty schedule when the live-schedule
	// provider fails. It carries no stale-while-revalidate window.
	NexusFailure = Directive{MaxAge: 120, SharedMaxAge: 240}
	// RankingsFailure keeps an empty rankings list cached briefly.
	RankingsFailure = Directive{MaxAge: 60, SharedMaxAge: 120, StaleWhileRevalidate: 600}
	// NoStore marks responses that must not be cached (client errors, failures).
	NoStore = Directive{}
)

// Header renders the Cache-Control value for d.
func (d Directive) Header() string {
	if d == NoStore {
		return "no-store"
	}
	var b strings.Builder
	b.WriteString("public, max-age=")
	b.WriteString(strconv.Itoa(d.MaxAge))
	b.WriteString(", s-maxage=")
	b.WriteString(strconv.Itoa(d.SharedMaxAge))
	if d.StaleWhileRevalidate > 0 {
		b.WriteString(", stale-while-revalidate=")
		b.WriteString(strconv.Itoa(d.StaleWhileRevalidate))
	}
	return b.String()
}

// Valid reports whether d respects the window ordering. A zero stale window
// means the token is absent and is not compared.
func (d Directive) Valid() bool {
	if d.MaxAge < 0 || d.SharedMaxAge < d.MaxAge {
		return false
	}
	return d.StaleWhileRevalidate == 0 || d.StaleWhileRevalidate >= d.SharedMaxAge
}

// MaxAgeDuration returns MaxAge as a time.Duration.
func (d Directive) MaxAgeDuration() time.Duration {
	return time.Duration(d.MaxAge) * time.Second
}

// Base is the per-category input of the derivation rule.
type Base struct {
	RecentMaxAge    int
	QuietMaxAge     int
	StaleMultiplier int
}

// Fixed reports whether the category ignores recency.
func (b Base) Fixed() bool {
	return b.RecentMaxAge == b.QuietMaxAge
}

func (b Base) validate() error {
	switch {
	case b.RecentMaxAge <= 0 || b.QuietMaxAge <= 0:
		return fmt.Errorf("%w: max ages must be positive", ErrInvalidBase)
	case b.RecentMaxAge > b.QuietMaxAge:
		return fmt.Errorf("%w: recent max age %d exceeds quiet max age %d", ErrInvalidBase, b.RecentMaxAge, b.QuietMaxAge)
	case b.StaleMultiplier < sharedFactor:
		return fmt.Errorf("%w: stale multiplier must be at least %d", ErrInvalidBase, sharedFactor)
	}
	return nil
}

// Table maps categories to their base windows.
type Table struct {
	bases    map[Category]Base
	fallback Base
}

// DefaultTable returns the observed production defaults.
func DefaultTable() *Table {
	return &Table{
		bases: map[Category]Base{
			EventRankings:  {RecentMaxAge: 120, QuietMaxAge: 3600, StaleMultiplier: 10},
			EventTeams:     {RecentMaxAge: 300, QuietMaxAge: 3600, StaleMultiplier: 10},
			NexusSchedule:  {RecentMaxAge: 60, QuietMaxAge: 600, StaleMultiplier: 10},
			TeamStats:      {RecentMaxAge: 60, QuietMaxAge: 600, StaleMultiplier: 5},
			TeamInfo:       {RecentMaxAge: 604800, QuietMaxAge: 604800, StaleMultiplier: 4},
			TeamsList:      {RecentMaxAge: 604800, QuietMaxAge: 604800, StaleMultiplier: 4},
			EventsList:     {RecentMaxAge: 3600, QuietMaxAge: 3600, StaleMultiplier: 24},
			MatchDetails:   {RecentMaxAge: 60, QuietMaxAge: 60, StaleMultiplier: 10},
			GlobalRankings: {RecentMaxAge: 300, QuietMaxAge: 300, StaleMultiplier: 12},
		},
		// generic listing endpoints
		fallback: Base{RecentMaxAge: 3600, QuietMaxAge: 3600, StaleMultiplier: 24},
	}
}

// With returns a copy of t with the base for c replaced.
func (t *Table) With(c Category, b Base) (*Table, error) {
	if err := b.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", c, err)
	}
	out := &Table{bases: make(map[Category]Base, len(t.bases)), fallback: t.fallback}
	for k, v := range t.bases {
		out.bases[k] = v
	}
	out.bases[c] = b
	return out, nil
}

// Base returns the base windows for c, or the generic fallback.
func (t *Table) Base(c Category) Base {
	if b, ok := t.bases[c]; ok {
		return b
	}
	return t.fallback
}

// PolicyFor derives the directive for a category and recency verdict.
func (t *Table) PolicyFor(c Category, recent bool) Directive {
	b := t.Base(c)
	maxAge := b.QuietMaxAge
	if recent {
		maxAge = b.RecentMaxAge
	}
	return Directive{
		MaxAge:               maxAge,
		SharedMaxAge:         maxAge * sharedFactor,
		StaleWhileRevalidate: maxAge * b.StaleMultiplier,
	}
}

// ShortestWindow is the smallest max-age any directive can carry. Values
// derived per request (recency verdicts) must not be memoized longer.
func (t *Table) ShortestWindow() time.Duration {
	shortest := t.fallback.RecentMaxAge
	for _, b := range t.bases {
		if b.RecentMaxAge < shortest {
			shortest = b.RecentMaxAge
		}
	}
	return time.Duration(shortest) * time.Second
}

// Validate checks every base in the table.
func (t *Table) Validate() error {
	for c, b := range t.bases {
		if err := b.validate(); err != nil {
			return fmt.Errorf("%s: %w", c, err)
		}
	}
	return t.fallback.validate()
}
