package planner

import (
	"time"

	"github.com/couchcryptid/storm-event-planner/internal/domain"
)

// RecommendationRequest asks for ranked events matching a query. A supplied
// Weather reading is used as-is instead of calling the weather provider.
type RecommendationRequest struct {
	ID       string                 `json:"id,omitempty"`
	Query    string                 `json:"query"`
	Location string                 `json:"location,omitempty"`
	Limit    int                    `json:"limit,omitempty"`
	Weather  *domain.WeatherReading `json:"weather,omitempty"`
}

// RecommendationResponse is the outcome of one recommendation run.
// WeatherNote is set when the weather provider failed and outdoor events were
// scored on the weather-unknown path.
type RecommendationResponse struct {
	ID              string                  `json:"id,omitempty"`
	Query           string                  `json:"query"`
	Location        string                  `json:"location"`
	Weather         *domain.WeatherReading  `json:"weather,omitempty"`
	WeatherNote     string                  `json:"weather_note,omitempty"`
	Recommendations []domain.Recommendation `json:"recommendations"`
	Stage           domain.Stage            `json:"stage"`
	History         []domain.Transition     `json:"history"`
}

// BatchItem pairs one batch request's response with its error, if any.
type BatchItem struct {
	Response *RecommendationResponse
	Err      error
}

// FreeTimeRequest asks for the free slots of one day. A nil Busy slice reads
// the calendar; a non-nil slice (even empty) is used verbatim and must lie
// inside the day. DayStart and DayEnd default to the configured working day.
type FreeTimeRequest struct {
	Date     string                `json:"date,omitempty"`
	Busy     []domain.BusyInterval `json:"busy_intervals,omitempty"`
	DayStart *time.Time            `json:"day_start,omitempty"`
	DayEnd   *time.Time            `json:"day_end,omitempty"`
}

// FreeTimeResponse lists the day's busy time and the free slots around it.
type FreeTimeResponse struct {
	Date      string                `json:"date"`
	DayStart  time.Time             `json:"day_start"`
	DayEnd    time.Time             `json:"day_end"`
	Busy      []domain.BusyInterval `json:"busy_intervals"`
	FreeSlots []domain.FreeSlot     `json:"free_slots"`
}

// ConflictCheckRequest asks whether [RequestedStart, RequestedEnd) collides
// with busy time. Date defaults to the requested start's day. A nil
// MaxSuggestions uses the configured default.
type ConflictCheckRequest struct {
	Date           string                `json:"date,omitempty"`
	RequestedStart time.Time             `json:"requested_start"`
	RequestedEnd   time.Time             `json:"requested_end"`
	Busy           []domain.BusyInterval `json:"busy_intervals,omitempty"`
	DayStart       *time.Time            `json:"day_start,omitempty"`
	DayEnd         *time.Time            `json:"day_end,omitempty"`
	MaxSuggestions *int                  `json:"max_suggestions,omitempty"`
}

// ScheduleRequest asks to write Event to the calendar if its slot is free.
type ScheduleRequest struct {
	Event          domain.NewEvent `json:"event"`
	DayStart       *time.Time      `json:"day_start,omitempty"`
	DayEnd         *time.Time      `json:"day_end,omitempty"`
	MaxSuggestions *int            `json:"max_suggestions,omitempty"`
}

// ScheduleResponse reports whether the event was written. On rejection
// Conflict carries the overlapping busy time and suggested alternatives.
type ScheduleResponse struct {
	Stage    domain.Stage           `json:"stage"`
	EventID  string                 `json:"event_id,omitempty"`
	Conflict *domain.ConflictResult `json:"conflict,omitempty"`
	History  []domain.Transition    `json:"history"`
}
