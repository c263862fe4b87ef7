package config

import (
	"errors"
)

// Sentinel error kinds returned by Load; callers match them with errors.Is.
var (
	// ErrInvalidConfig marks a configuration that loaded but failed validation.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig marks a failure to read or decode a configuration source.
	ErrLoadConfig = errors.New("load config failed")
)
