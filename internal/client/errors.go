package client

import (
	"errors"
	"fmt"
)

// ErrEmptyBaseURL is returned by New when no server address is given.
var ErrEmptyBaseURL = errors.New("empty base url")

// StatusError is returned for a non-2xx response from the server.
type StatusError struct {
	Path       string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.Path, e.StatusCode)
}
