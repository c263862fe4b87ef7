package recency

import (
	"time"

	"github.com/okian/pitscout/pkg/logger"
)

// Option configures an Oracle.
type Option func(*Oracle)

// WithGrace sets how far an event window is widened on each side.
func WithGrace(d time.Duration) Option {
	return func(o *Oracle) {
		if d >= 0 {
			o.grace = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Oracle) {
		if now != nil {
			o.now = now
		}
	}
}

// WithMemoTTL bounds how long a verdict is reused. Zero disables memoization.
func WithMemoTTL(d time.Duration) Option {
	return func(o *Oracle) {
		if d >= 0 {
			o.memoTTL = d
		}
	}
}

// WithLookupTimeout bounds one provider lookup shared by concurrent callers.
func WithLookupTimeout(d time.Duration) Option {
	return func(o *Oracle) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Oracle) {
		if l != nil {
			o.logger = l
		}
	}
}
