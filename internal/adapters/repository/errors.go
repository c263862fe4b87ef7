package repository

import "errors"

// Sentinel kinds for aggregate store errors. Backend failures are reported as
// types.ErrStoreUnavailable.
var (
	ErrNotFound = errors.New("ranking set not found")
	ErrClosed   = errors.New("store closed")
)
