package domain

import "errors"

var (
	// ErrInvalidInterval is returned when an interval ends at or before it starts.
	ErrInvalidInterval = errors.New("invalid interval: end must be after start")

	// ErrOutOfRangeInterval is returned when a busy interval falls outside the
	// day bounds given to the availability resolver.
	ErrOutOfRangeInterval = errors.New("busy interval outside day bounds")

	// ErrWeatherUnavailable is returned by weather providers on timeout or when
	// no data exists for a location.
	ErrWeatherUnavailable = errors.New("weather unavailable")

	// ErrSchedulingConflict is returned by calendar stores that detect an
	// overlap while writing an event.
	ErrSchedulingConflict = errors.New("scheduling conflict")

	// ErrInvalidTransition is returned when a workflow is moved along an edge
	// that does not exist.
	ErrInvalidTransition = errors.New("invalid workflow transition")
)
