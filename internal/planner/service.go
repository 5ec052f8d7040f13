// Package planner drives recommendation, availability and scheduling runs
// against the search, weather and calendar collaborators.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/storm-event-planner/internal/config"
	"github.com/couchcryptid/storm-event-planner/internal/domain"
	"github.com/couchcryptid/storm-event-planner/internal/observability"
)

const (
	dateLayout = "2006-01-02"

	defaultBatchConcurrency = 4
)

// ErrInvalidRequest is returned for malformed requests, such as an empty query
// or an unparseable date.
var ErrInvalidRequest = errors.New("invalid request")

// Settings are the planning defaults applied when a request leaves a field
// unset. DayStart and DayEnd are wall-clock offsets from local midnight.
type Settings struct {
	Location         *time.Location
	DayStart         time.Duration
	DayEnd           time.Duration
	DefaultLocation  string
	SearchLimit      int
	MaxSuggestions   int
	BatchConcurrency int
}

// SettingsFromConfig copies the planning defaults out of the service config.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Location:        cfg.Location,
		DayStart:        cfg.DayStart,
		DayEnd:          cfg.DayEnd,
		DefaultLocation: cfg.DefaultLocation,
		SearchLimit:     cfg.SearchLimit,
		MaxSuggestions:  cfg.MaxSuggestions,
	}
}

// Service runs planning requests. It is safe for concurrent use; each call
// owns its own workflow.
type Service struct {
	search   domain.SearchProvider
	weather  domain.WeatherProvider
	calendar domain.CalendarStore
	settings Settings
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates a Service. The calendar may be nil, in which case availability
// requests must carry their own busy intervals and scheduling is unavailable.
func New(search domain.SearchProvider, weather domain.WeatherProvider, calendar domain.CalendarStore,
	settings Settings, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if settings.BatchConcurrency <= 0 {
		settings.BatchConcurrency = defaultBatchConcurrency
	}
	return &Service{
		search:   search,
		weather:  weather,
		calendar: calendar,
		settings: settings,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// Recommend searches for events, fetches weather when any result is
// outdoors, and returns them ranked. A search failure fails the run; a
// weather failure only adds a WeatherNote.
func (s *Service) Recommend(ctx context.Context, req RecommendationRequest) (*RecommendationResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidRequest)
	}
	location := strings.TrimSpace(req.Location)
	if location == "" {
		location = s.settings.DefaultLocation
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.settings.SearchLimit
	}

	wf := domain.NewWorkflow()
	events, err := s.search.Search(ctx, query, location, limit)
	if err != nil {
		_ = wf.Cancel()
		return nil, fmt.Errorf("search events: %w", err)
	}

	if err := wf.Advance(domain.StageClassified); err != nil {
		return nil, err
	}

	reading, note, err := s.weatherFor(ctx, req.Weather, location, needsWeather(events))
	if err != nil {
		_ = wf.Cancel()
		return nil, err
	}
	if err := wf.Advance(domain.StageWeatherAnalyzed); err != nil {
		return nil, err
	}

	recs := domain.Recommend(events, reading)
	if err := wf.Advance(domain.StageRecommended); err != nil {
		return nil, err
	}
	for _, r := range recs {
		s.metrics.Recommendations.WithLabelValues(string(r.Confidence)).Inc()
	}

	s.logger.Info("recommendation run complete",
		"request_id", req.ID,
		"query", query,
		"location", location,
		"results", len(recs),
		"weather_known", reading != nil,
	)

	return &RecommendationResponse{
		ID:              req.ID,
		Query:           query,
		Location:        location,
		Weather:         reading,
		WeatherNote:     note,
		Recommendations: recs,
		Stage:           wf.Stage(),
		History:         wf.History(),
	}, nil
}

// RecommendBatch runs the requests concurrently and returns one item per
// request in input order. One failed request does not affect the others.
// Requests for the same location share weather through the provider's cache.
func (s *Service) RecommendBatch(ctx context.Context, reqs []RecommendationRequest) []BatchItem {
	items := make([]BatchItem, len(reqs))

	var g errgroup.Group
	g.SetLimit(s.settings.BatchConcurrency)
	for i, req := range reqs {
		g.Go(func() error {
			resp, err := s.Recommend(ctx, req)
			items[i] = BatchItem{Response: resp, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return items
}

// weatherFor returns the reading to score with. A supplied reading wins; with
// no outdoor events no call is made. Provider failures degrade to a nil
// reading plus a note unless the caller's context is done.
func (s *Service) weatherFor(ctx context.Context, supplied *domain.WeatherReading, location string, needed bool) (*domain.WeatherReading, string, error) {
	if supplied != nil {
		return supplied, "", nil
	}
	if !needed || s.weather == nil {
		return nil, "", nil
	}

	reading, err := s.weather.Current(ctx, location)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		s.logger.Warn("weather unavailable, scoring outdoor events as unknown",
			"location", location, "error", err)
		return nil, fmt.Sprintf("weather unavailable for %s; outdoor events scored as weather unknown", location), nil
	}
	return &reading, "", nil
}

func needsWeather(events []domain.RawEvent) bool {
	for _, ev := range events {
		if _, venue := domain.Classify(ev.Title + " " + ev.Snippet); venue == domain.VenueOutdoor {
			return true
		}
	}
	return false
}

// FreeTime returns the free slots of a day.
func (s *Service) FreeTime(ctx context.Context, req FreeTimeRequest) (*FreeTimeResponse, error) {
	date, err := s.parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	dayStart, dayEnd := s.dayBounds(date, req.DayStart, req.DayEnd)

	busy, err := s.resolveBusy(ctx, date, req.Busy, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	free, err := domain.FreeIntervals(busy, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	return &FreeTimeResponse{
		Date:      date.Format(dateLayout),
		DayStart:  dayStart,
		DayEnd:    dayEnd,
		Busy:      domain.MergeIntervals(busy),
		FreeSlots: free,
	}, nil
}

// CheckConflict reports the busy time a requested slot collides with and,
// on conflict, suggested alternatives on the same day.
func (s *Service) CheckConflict(ctx context.Context, req ConflictCheckRequest) (*domain.ConflictResult, error) {
	if _, err := domain.NewBusyInterval(req.RequestedStart, req.RequestedEnd); err != nil {
		return nil, fmt.Errorf("requested: %w", err)
	}

	var (
		date time.Time
		err  error
	)
	if req.Date == "" {
		date = s.startOfDay(req.RequestedStart)
	} else if date, err = s.parseDate(req.Date); err != nil {
		return nil, err
	}
	dayStart, dayEnd := s.dayBounds(date, req.DayStart, req.DayEnd)

	busy, err := s.resolveBusy(ctx, date, req.Busy, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	result, err := domain.CheckConflict(domain.ConflictQuery{
		RequestedStart: req.RequestedStart,
		RequestedEnd:   req.RequestedEnd,
		Busy:           busy,
		DayStart:       dayStart,
		DayEnd:         dayEnd,
		MaxSuggestions: s.maxSuggestions(req.MaxSuggestions),
	})
	if err != nil {
		return nil, err
	}

	outcome := "clear"
	if result.HasConflict {
		outcome = "conflict"
	}
	s.metrics.ConflictChecks.WithLabelValues(outcome).Inc()
	return &result, nil
}

// Schedule checks the event's slot against the calendar and writes it when
// free. A pre-check conflict yields a Rejected response with suggestions and
// no error. A conflict detected by the calendar itself at write time is
// returned as an error wrapping domain.ErrSchedulingConflict, alongside the
// Rejected response.
func (s *Service) Schedule(ctx context.Context, req ScheduleRequest) (*ScheduleResponse, error) {
	if s.calendar == nil {
		return nil, fmt.Errorf("%w: no calendar configured", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Event.Title) == "" {
		return nil, fmt.Errorf("%w: event title is required", ErrInvalidRequest)
	}

	wf := domain.NewWorkflowAt(domain.StageRecommended)
	result, err := s.CheckConflict(ctx, ConflictCheckRequest{
		RequestedStart: req.Event.Start,
		RequestedEnd:   req.Event.End,
		DayStart:       req.DayStart,
		DayEnd:         req.DayEnd,
		MaxSuggestions: req.MaxSuggestions,
	})
	if err != nil {
		return nil, err
	}
	if err := wf.Advance(domain.StageConflictChecked); err != nil {
		return nil, err
	}

	resp := &ScheduleResponse{}
	if result.HasConflict {
		if err := wf.Advance(domain.StageRejected); err != nil {
			return nil, err
		}
		resp.Stage, resp.Conflict, resp.History = wf.Stage(), result, wf.History()
		return resp, nil
	}

	id, err := s.calendar.Insert(ctx, req.Event)
	switch {
	case errors.Is(err, domain.ErrSchedulingConflict):
		s.metrics.CalendarInserts.WithLabelValues("conflict").Inc()
		_ = wf.Advance(domain.StageRejected)
		resp.Stage, resp.History = wf.Stage(), wf.History()
		return resp, err
	case err != nil:
		s.metrics.CalendarInserts.WithLabelValues("error").Inc()
		_ = wf.Cancel()
		return nil, fmt.Errorf("insert event: %w", err)
	}
	s.metrics.CalendarInserts.WithLabelValues("success").Inc()

	if err := wf.Advance(domain.StageScheduled); err != nil {
		return nil, err
	}
	resp.Stage, resp.EventID, resp.History = wf.Stage(), id, wf.History()
	return resp, nil
}

// resolveBusy returns the supplied intervals verbatim, or reads the calendar
// and clips its intervals to the day.
func (s *Service) resolveBusy(ctx context.Context, date time.Time, supplied []domain.BusyInterval, dayStart, dayEnd time.Time) ([]domain.BusyInterval, error) {
	if supplied != nil {
		return supplied, nil
	}
	if s.calendar == nil {
		return nil, fmt.Errorf("%w: busy_intervals are required without a calendar", ErrInvalidRequest)
	}
	busy, err := s.calendar.ListBusy(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list busy time: %w", err)
	}
	return domain.ClipToDay(busy, dayStart, dayEnd), nil
}

func (s *Service) parseDate(value string) (time.Time, error) {
	if value == "" {
		return s.startOfDay(s.clock.Now()), nil
	}
	d, err := time.ParseInLocation(dateLayout, value, s.settings.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q: want YYYY-MM-DD", ErrInvalidRequest, value)
	}
	return d, nil
}

func (s *Service) startOfDay(t time.Time) time.Time {
	t = t.In(s.settings.Location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.settings.Location)
}

// dayBounds applies request overrides to the configured working day.
func (s *Service) dayBounds(date time.Time, start, end *time.Time) (time.Time, time.Time) {
	at := func(offset time.Duration) time.Time {
		return time.Date(date.Year(), date.Month(), date.Day(), 0, int(offset/time.Minute), 0, 0, s.settings.Location)
	}
	dayStart, dayEnd := at(s.settings.DayStart), at(s.settings.DayEnd)
	if start != nil {
		dayStart = *start
	}
	if end != nil {
		dayEnd = *end
	}
	return dayStart, dayEnd
}

func (s *Service) maxSuggestions(requested *int) int {
	if requested != nil {
		return *requested
	}
	return s.settings.MaxSuggestions
}
