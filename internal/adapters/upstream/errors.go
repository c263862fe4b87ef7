package upstream

import (
	"errors"
	"fmt"

	"github.com/okian/pitscout/internal/domain/types"
)

// ErrMalformedPayload means the provider answered 2xx with a body that failed decoding or validation.
var ErrMalformedPayload = errors.New("malformed payload")

// FetchFailure is the single failure shape for every provider call. StatusCode
// is zero when no HTTP status was received or the body was unusable.
type FetchFailure struct {
	Provider   string
	Endpoint   string
	StatusCode int
	Err        error
}

func (f *FetchFailure) Error() string {
	msg := fmt.Sprintf("%s %s", f.Provider, f.Endpoint)
	if f.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", f.StatusCode)
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

// Unwrap makes every FetchFailure match types.ErrUpstreamUnavailable.
func (f *FetchFailure) Unwrap() []error {
	if f.Err == nil {
		return []error{types.ErrUpstreamUnavailable}
	}
	return []error{types.ErrUpstreamUnavailable, f.Err}
}

// StatusCode returns the provider status carried by err, or 0.
func StatusCode(err error) int {
	var f *FetchFailure
	if errors.As(err, &f) {
		return f.StatusCode
	}
	return 0
}
