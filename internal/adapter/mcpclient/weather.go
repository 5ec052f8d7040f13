package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-event-planner/internal/domain"
	"github.com/couchcryptid/storm-event-planner/internal/observability"
)

// WeatherTool is the National Weather Service current-conditions tool.
const WeatherTool = "get_current_weather"

// WeatherClient implements domain.WeatherProvider over the NWS MCP server.
type WeatherClient struct {
	caller  ToolCaller
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewWeatherClient creates a WeatherClient. The clock stamps readings whose
// payload carries no timestamp.
func NewWeatherClient(caller ToolCaller, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *WeatherClient {
	return &WeatherClient{caller: caller, clock: clock, logger: logger, metrics: metrics}
}

// Current returns the current conditions for a "lat,lon" or place name.
// Every failure wraps domain.ErrWeatherUnavailable.
func (w *WeatherClient) Current(ctx context.Context, location string) (domain.WeatherReading, error) {
	text, err := w.caller.CallTool(ctx, WeatherTool, map[string]any{"location": location})
	if err != nil {
		w.metrics.WeatherRequests.WithLabelValues("error").Inc()
		return domain.WeatherReading{}, fmt.Errorf("%w: %w", domain.ErrWeatherUnavailable, err)
	}

	reading, err := w.parse(text, location)
	if err != nil {
		w.metrics.WeatherRequests.WithLabelValues("unavailable").Inc()
		w.logger.Debug("weather payload rejected", "location", location, "error", err)
		return domain.WeatherReading{}, fmt.Errorf("%w: %s: %w", domain.ErrWeatherUnavailable, location, err)
	}

	w.metrics.WeatherRequests.WithLabelValues("success").Inc()
	return reading, nil
}

func (w *WeatherClient) parse(text, location string) (domain.WeatherReading, error) {
	var resp nwsResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return domain.WeatherReading{}, fmt.Errorf("decode weather: %w", err)
	}
	if resp.Current == nil {
		return domain.WeatherReading{}, errors.New("no current conditions")
	}
	cur := resp.Current

	tempC, ok := cur.Temperature.celsius()
	if !ok {
		return domain.WeatherReading{}, errors.New("no temperature")
	}

	reading := domain.WeatherReading{
		TemperatureCelsius: tempC,
		WindSpeedKph:       cur.WindSpeed.kph(),
		HumidityPercent:    cur.Humidity.value(),
		ConditionText:      strings.TrimSpace(cur.Conditions),
		Location:           location,
		Timestamp:          w.clock.Now().UTC(),
	}
	if resp.Location != "" {
		reading.Location = resp.Location
	}
	if cur.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, cur.Timestamp); err == nil {
			reading.Timestamp = ts.UTC()
		}
	}
	return reading, nil
}

// NWS MCP response types.

type nwsResponse struct {
	Location string      `json:"location"`
	Current  *nwsCurrent `json:"current"`
}

type nwsCurrent struct {
	Temperature nwsTemperature `json:"temperature"`
	Conditions  string         `json:"conditions"`
	Humidity    nwsNumber      `json:"humidity"`
	WindSpeed   nwsWind        `json:"windSpeed"`
	Timestamp   string         `json:"timestamp"`
}

type nwsTemperature struct {
	Fahrenheit *float64 `json:"fahrenheit"`
	Celsius    *float64 `json:"celsius"`
}

func (t nwsTemperature) celsius() (float64, bool) {
	switch {
	case t.Celsius != nil:
		return *t.Celsius, true
	case t.Fahrenheit != nil:
		return round1((*t.Fahrenheit - 32) * 5 / 9), true
	}
	return 0, false
}

type nwsWind struct {
	MilesPerHour      *float64 `json:"milesPerHour"`
	KilometersPerHour *float64 `json:"kilometersPerHour"`
}

func (w nwsWind) kph() float64 {
	switch {
	case w.KilometersPerHour != nil:
		return *w.KilometersPerHour
	case w.MilesPerHour != nil:
		return round1(*w.MilesPerHour * 1.609344)
	}
	return 0
}

// nwsNumber accepts 65, 65.0 or "65%".
type nwsNumber struct {
	v *float64
}

func (n *nwsNumber) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		n.v = &f
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	if _, err := fmt.Sscanf(strings.TrimSuffix(strings.TrimSpace(s), "%"), "%g", &f); err == nil {
		n.v = &f
	}
	return nil
}

func (n nwsNumber) value() float64 {
	if n.v == nil {
		return 0
	}
	return *n.v
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
