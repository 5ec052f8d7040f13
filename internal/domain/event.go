package domain

import "time"

// Category is the closed set of event categories.
type Category string

const (
	CategoryVintage       Category = "vintage"
	CategoryFood          Category = "food"
	CategoryArts          Category = "arts"
	CategoryEntertainment Category = "entertainment"
	CategoryFitness       Category = "fitness"
	CategoryGeneral       Category = "general"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryVintage, CategoryFood, CategoryArts, CategoryEntertainment, CategoryFitness, CategoryGeneral:
		return true
	}
	return false
}

// VenueType tells whether weather applies to an event.
type VenueType string

const (
	VenueIndoor  VenueType = "indoor"
	VenueOutdoor VenueType = "outdoor"
	VenueUnknown VenueType = "unknown"
)

// Valid reports whether v is one of the known venue types.
func (v VenueType) Valid() bool {
	switch v {
	case VenueIndoor, VenueOutdoor, VenueUnknown:
		return true
	}
	return false
}

// Confidence is a coarse banding of a suitability score.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// RawEvent is a single search hit as returned by the search collaborator.
// SourceRank is the 0-based position in the original result list.
type RawEvent struct {
	Title      string `json:"title"`
	Snippet    string `json:"snippet,omitempty"`
	URL        string `json:"url"`
	SourceRank int    `json:"source_rank"`
}

// WeatherReading is a single current-conditions observation for a location.
type WeatherReading struct {
	TemperatureCelsius float64   `json:"temperature_celsius"`
	WindSpeedKph       float64   `json:"wind_speed_kph"`
	HumidityPercent    float64   `json:"humidity_percent"`
	ConditionText      string    `json:"condition"`
	Location           string    `json:"location"`
	Timestamp          time.Time `json:"timestamp"`
}

// ClassifiedEvent is a RawEvent with its derived category and venue type.
type ClassifiedEvent struct {
	RawEvent
	Category  Category  `json:"category"`
	VenueType VenueType `json:"venue_type"`
}

// Recommendation is one ranked entry of a recommendation run.
// Rank is 1-based and reflects the engine's output order.
type Recommendation struct {
	Event            ClassifiedEvent `json:"event"`
	SuitabilityScore float64         `json:"suitability_score"`
	Confidence       Confidence      `json:"confidence"`
	Advisory         string          `json:"advisory"`
	Rank             int             `json:"rank"`
}

// NewEvent is an event to be written to a calendar.
type NewEvent struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	URL         string    `json:"url,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// Interval returns the event's time range as a validated BusyInterval.
func (e NewEvent) Interval() (BusyInterval, error) {
	return NewBusyInterval(e.Start, e.End)
}

// GeocodingResult is the best match for a place name.
type GeocodingResult struct {
	Lat              float64 `json:"lat"`
	Lon              float64 `json:"lon"`
	PlaceName        string  `json:"place_name"`
	FormattedAddress string  `json:"formatted_address"`
	Confidence       float64 `json:"confidence"`
}

// Found reports whether the lookup matched a place.
func (r GeocodingResult) Found() bool {
	return r.FormattedAddress != ""
}
