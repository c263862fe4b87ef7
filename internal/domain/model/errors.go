package model

import "errors"

var (
	// ErrInvalidIdentity is returned for identities with an unknown kind or empty key.
	ErrInvalidIdentity = errors.New("invalid resource identity")
	// ErrInvalidPayload is returned when a provider payload is missing required fields.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrInvalidRow is returned for ranking rows that cannot be stored.
	ErrInvalidRow = errors.New("invalid ranking row")
)
