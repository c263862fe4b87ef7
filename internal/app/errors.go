package app

import "errors"

// ErrMissingDependency is returned by Start when a required provider was not configured.
var ErrMissingDependency = errors.New("missing service dependency")

// ErrNotStarted is returned by operations called before Start or after Stop.
var ErrNotStarted = errors.New("service not started")

// ErrStopped is returned by Start once the service has been stopped. Stop closes
// the store, so a stopped Service cannot be started again.
var ErrStopped = errors.New("service stopped")
