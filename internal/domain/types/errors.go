package types

import (
	"errors"
	"strings"
)

// Error kinds shared across layers. Handlers map each kind to one HTTP status.
var (
	// ErrInvalidRequest means a required identifier or parameter is absent or malformed.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUpstreamUnavailable means a provider returned non-success, was unreachable
	// or sent a payload that failed validation.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrEnrichmentUnavailable is confined to the aggregate store and never surfaces to callers.
	ErrEnrichmentUnavailable = errors.New("enrichment unavailable")
	// ErrStoreUnavailable means the aggregate store itself cannot be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrNotFound means the requested resource does not exist.
	ErrNotFound = errors.New("not found")
)

// Error ties a kind to the operation that produced it.
type Error struct {
	Op   string
	Kind error
	Err  error
}

// NewKind returns an error of the given kind with no underlying cause.
func NewKind(op string, kind error) *Error {
	return &Error{Op: op, Kind: kind}
}

// Wrap returns an error of the given kind caused by err.
func Wrap(op string, kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// KindOf returns the first known kind err carries, or nil.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrInvalidRequest,
		ErrStoreUnavailable,
		ErrUpstreamUnavailable,
		ErrEnrichmentUnavailable,
		ErrNotFound,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
