package domain

import (
	"context"
	"time"
)

// SearchProvider finds candidate events. It may return fewer than limit
// results; an empty slice is not an error.
type SearchProvider interface {
	Search(ctx context.Context, query, location string, limit int) ([]RawEvent, error)
}

// WeatherProvider returns current conditions for a location. Failures wrap
// ErrWeatherUnavailable.
type WeatherProvider interface {
	Current(ctx context.Context, location string) (WeatherReading, error)
}

// CalendarStore reads busy time from and writes events to a calendar.
type CalendarStore interface {
	// ListBusy returns the busy intervals touching the given date, ordered by start.
	// Intervals may extend past the day; callers clip them with ClipToDay.
	ListBusy(ctx context.Context, date time.Time) ([]BusyInterval, error)

	// Insert writes the event and returns its store-assigned ID. It returns an
	// error wrapping ErrSchedulingConflict if the event overlaps existing busy time.
	Insert(ctx context.Context, event NewEvent) (string, error)
}

// Geocoder resolves a free-form place name to coordinates. A zero result
// with a nil error means the place was not found.
type Geocoder interface {
	ForwardGeocode(ctx context.Context, place string) (GeocodingResult, error)
}
