package app

import (
	"time"

	"github.com/okian/pitscout/internal/adapters/repository"
	"github.com/okian/pitscout/internal/domain/policy"
	"github.com/okian/pitscout/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithResults sets the event-results provider. Required.
func WithResults(r Results) Option {
	return func(s *Service) { s.results = r }
}

// WithSchedule sets the live-schedule provider. Required.
func WithSchedule(sc Schedule) Option {
	return func(s *Service) { s.schedule = sc }
}

// WithStore sets the aggregate store backend. Defaults to an in-memory store.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithOracle replaces the recency oracle built from the results provider.
func WithOracle(o Oracle) Option {
	return func(s *Service) { s.oracle = o }
}

// WithGeoLocator replaces the team locator used for enrichment.
func WithGeoLocator(g GeoLocator) Option {
	return func(s *Service) { s.locator = g }
}

// WithPolicyTable sets the cache policy table.
func WithPolicyTable(t *policy.Table) Option {
	return func(s *Service) {
		if t != nil {
			s.policies = t
		}
	}
}

// WithCurrentSeason sets the season whose teams list is read from the aggregate first.
func WithCurrentSeason(year int) Option {
	return func(s *Service) {
		if year > 0 {
			s.currentSeason = year
		}
	}
}

// WithRecencyGrace sets the grace period of the oracle built by Start.
func WithRecencyGrace(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.grace = d
		}
	}
}

// WithWorkerCount sets the number of enrichment workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.enrich.Workers = count
		}
	}
}

// WithQueueSize sets the maximum number of pending enrichment lookups.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.enrich.QueueSize = size
		}
	}
}

// WithDedupeSize bounds the in-flight subject memo.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.enrich.DedupeSize = size
		}
	}
}

// WithGeoMemoTTL sets how long a resolved subject is skipped by later writes.
func WithGeoMemoTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.enrich.MemoTTL = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
