package policy

import "errors"

// Sentinel kinds for policy errors.
var (
	ErrUnknownCategory = errors.New("unknown request category")
	ErrInvalidBase     = errors.New("invalid policy base")
)
