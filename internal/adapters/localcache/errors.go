package localcache

import "errors"

var (
	// ErrClosed is returned by every call after Close.
	ErrClosed = errors.New("local cache closed")
	// ErrCorruptEntry is returned for a record too short to carry its timestamp.
	ErrCorruptEntry = errors.New("corrupt local cache entry")
)
