package mapbox

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/couchcryptid/storm-event-planner/internal/domain"
)

var coordinatePattern = regexp.MustCompile(`^\s*-?\d{1,2}(\.\d+)?\s*,\s*-?\d{1,3}(\.\d+)?\s*$`)

// GeocodedWeather resolves place names to "lat,lon" before asking the inner
// provider for conditions. Locations that are already coordinates pass
// through. A failed or empty lookup falls back to the original place name.
type GeocodedWeather struct {
	inner    domain.WeatherProvider
	geocoder domain.Geocoder
	logger   *slog.Logger
}

func NewGeocodedWeather(inner domain.WeatherProvider, geocoder domain.Geocoder, logger *slog.Logger) *GeocodedWeather {
	return &GeocodedWeather{inner: inner, geocoder: geocoder, logger: logger}
}

// Current implements domain.WeatherProvider. The returned reading keeps the
// caller's location label.
func (g *GeocodedWeather) Current(ctx context.Context, location string) (domain.WeatherReading, error) {
	reading, err := g.inner.Current(ctx, g.resolve(ctx, location))
	if err != nil {
		return reading, err
	}
	reading.Location = location
	return reading, nil
}

func (g *GeocodedWeather) resolve(ctx context.Context, location string) string {
	if coordinatePattern.MatchString(location) {
		return location
	}
	result, err := g.geocoder.ForwardGeocode(ctx, location)
	if err != nil {
		g.logger.Warn("geocoding failed, using place name", "location", location, "error", err)
		return location
	}
	if !result.Found() {
		return location
	}
	return formatCoordinates(result.Lat, result.Lon)
}

func formatCoordinates(lat, lon float64) string {
	return strconv.FormatFloat(lat, 'f', 4, 64) + "," + strconv.FormatFloat(lon, 'f', 4, 64)
}
