package config

import "errors"

var (
	// ErrNilPointer is returned when Load receives a nil destination.
	ErrNilPointer = errors.New("config: destination must be a non-nil pointer")

	// ErrParsingConfig is returned when environment parsing fails,
	// e.g. a required variable is missing or has the wrong type.
	ErrParsingConfig = errors.New("config: failed to parse environment variables")

	// ErrConfigNotLoaded indicates the cached value disappeared between
	// parsing and read-back; it should not happen in practice.
	ErrConfigNotLoaded = errors.New("config: configuration was not loaded")
)
