// Package recency decides whether an event or a team is active now. The
// answer picks the short or long cache window, so a failed lookup answers
// "not recent" and never an error.
package recency

import (
	"context"
	"time"

	"github.com/okian/pitscout/internal/domain/model"
	"github.com/okian/pitscout/pkg/logger"
	"github.com/okian/pitscout/pkg/metrics"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

const (
	defaultGrace   = 24 * time.Hour
	defaultMemoTTL = 60 * time.Second
	// defaultLookupTimeout bounds a shared lookup once no caller's context does.
	defaultLookupTimeout = 15 * time.Second
)

// EventSource resolves the events a verdict depends on.
type EventSource interface {
	Event(ctx context.Context, eventKey string) (*model.Event, error)
	TeamEvents(ctx context.Context, teamKey string, year int) ([]model.Event, error)
}

// Verdict is the outcome of one recency lookup.
type Verdict struct {
	Identity    model.Identity
	IsActiveNow bool
	ComputedAt  time.Time
	// Recovered is set when the lookup failed and the verdict fell back to false.
	Recovered bool
	// Cause is the swallowed failure behind a recovered verdict.
	Cause error
}

// Oracle answers recency questions for events and teams.
type Oracle struct {
	source  EventSource
	grace   time.Duration
	now     func() time.Time
	memoTTL time.Duration
	timeout time.Duration
	memo    *gocache.Cache
	group   singleflight.Group
	logger  logger.Logger
}

// New creates an Oracle backed by source.
func New(source EventSource, opts ...Option) *Oracle {
	o := &Oracle{
		source:  source,
		grace:   defaultGrace,
		now:     time.Now,
		memoTTL: defaultMemoTTL,
		timeout: defaultLookupTimeout,
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.memoTTL > 0 {
		o.memo = gocache.New(o.memoTTL, 2*o.memoTTL)
	}
	o.logger = o.logger.Named("recency")
	return o
}

// Grace returns the configured grace period.
func (o *Oracle) Grace() time.Duration { return o.grace }

// Overlaps reports whether [start, end] intersects [now-grace, now+grace].
func Overlaps(start, end, now time.Time, grace time.Duration) bool {
	return !start.After(now.Add(grace)) && !end.Before(now.Add(-grace))
}

// IsEventRecent reports whether the event's window is near now.
func (o *Oracle) IsEventRecent(ctx context.Context, id model.Identity) Verdict {
	return o.lookup(ctx, id, func(ctx context.Context) (bool, error) {
		ev, err := o.source.Event(ctx, id.Key)
		if err != nil {
			return false, err
		}
		return o.eventIsRecent(ev)
	})
}

// IsTeamAtRecentEvent reports whether any of the team's events in year is near now.
func (o *Oracle) IsTeamAtRecentEvent(ctx context.Context, id model.Identity, year int) Verdict {
	id.Year = year
	return o.lookup(ctx, id, func(ctx context.Context) (bool, error) {
		events, err := o.source.TeamEvents(ctx, id.Key, year)
		if err != nil {
			return false, err
		}
		for i := range events {
			recent, err := o.eventIsRecent(&events[i])
			if err != nil {
				o.logger.Debug(ctx, "skipping event without usable window",
					logger.String("event", events[i].Key), logger.Error(err))
				continue
			}
			if recent {
				return true, nil
			}
		}
		return false, nil
	})
}

func (o *Oracle) eventIsRecent(ev *model.Event) (bool, error) {
	start, end, err := ev.Window()
	if err != nil {
		return false, err
	}
	return Overlaps(start, end, o.now(), o.grace), nil
}

func (o *Oracle) lookup(ctx context.Context, id model.Identity, resolve func(context.Context) (bool, error)) Verdict {
	key := id.CacheKey()
	if o.memo != nil {
		if v, ok := o.memo.Get(key); ok {
			return v.(Verdict)
		}
	}

	// Shared by every caller waiting on key; it outlives the caller that started it.
	ch := o.group.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
		defer cancel()

		recent, err := resolve(shared)
		v := Verdict{Identity: id, IsActiveNow: recent, ComputedAt: o.now()}
		if err != nil {
			v = Verdict{Identity: id, ComputedAt: o.now(), Recovered: true, Cause: err}
		}
		if o.memo != nil && shared.Err() == nil {
			o.memo.Set(key, v, gocache.DefaultExpiration)
		}
		return v, nil
	})

	var v Verdict
	select {
	case res := <-ch:
		v = res.Val.(Verdict)
	case <-ctx.Done():
		v = Verdict{Identity: id, ComputedAt: o.now(), Recovered: true, Cause: ctx.Err()}
	}
	o.record(ctx, v)
	return v
}

func (o *Oracle) record(ctx context.Context, v Verdict) {
	switch {
	case v.Recovered:
		metrics.RecordRecencyVerdict(string(v.Identity.Kind), "recovered")
		o.logger.Debug(ctx, "recency lookup failed, treating as not recent",
			logger.String("identity", v.Identity.CacheKey()), logger.Error(v.Cause))
	case v.IsActiveNow:
		metrics.RecordRecencyVerdict(string(v.Identity.Kind), "recent")
	default:
		metrics.RecordRecencyVerdict(string(v.Identity.Kind), "quiet")
	}
}
