package repository

import (
	"strings"

	"github.com/okian/pitscout/pkg/logger"
)

type options struct {
	prefix string
	logger logger.Logger
}

func defaultOptions() options {
	return options{prefix: "pitscout", logger: logger.Nop()}
}

// Option configures a Store.
type Option func(*options)

// WithPrefix sets the key prefix used by the Redis backend.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		if p := strings.Trim(prefix, ":"); p != "" {
			o.prefix = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
