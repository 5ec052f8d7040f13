// Package gcal implements domain.CalendarStore against the Google Calendar API.
package gcal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/couchcryptid/storm-event-planner/internal/domain"
)

const (
	statusCancelled   = "cancelled"
	transparencyFree  = "transparent"
	orderByStartTime  = "startTime"
	defaultCalendarID = "primary"
)

// Store reads busy time from and inserts events into one Google calendar.
type Store struct {
	svc        *calendar.Service
	calendarID string
	loc        *time.Location
	logger     *slog.Logger
}

// NewStore wraps an authenticated calendar service. An empty calendarID
// selects the user's primary calendar.
func NewStore(svc *calendar.Service, calendarID string, loc *time.Location, logger *slog.Logger) *Store {
	if calendarID == "" {
		calendarID = defaultCalendarID
	}
	return &Store{svc: svc, calendarID: calendarID, loc: loc, logger: logger}
}

// NewService builds a calendar service from an OAuth client credentials file
// and a previously authorized token file.
func NewService(ctx context.Context, credentialsFile, tokenFile string) (*calendar.Service, error) {
	creds, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read google credentials: %w", err)
	}
	cfg, err := google.ConfigFromJSON(creds, calendar.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("parse google credentials: %w", err)
	}

	raw, err := os.ReadFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("read google token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("parse google token: %w", err)
	}

	svc, err := calendar.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx, &tok)))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return svc, nil
}

// ListBusy returns the timed events touching the calendar day of date in the
// store's location. All-day, cancelled and transparent events are free.
func (s *Store) ListBusy(ctx context.Context, date time.Time) ([]domain.BusyInterval, error) {
	d := date.In(s.loc)
	from := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.loc)
	return s.busyBetween(ctx, from, from.AddDate(0, 0, 1))
}

// Insert creates the event in UTC and returns the Google event ID. It fails
// with domain.ErrSchedulingConflict when the calendar already holds
// overlapping busy time.
func (s *Store) Insert(ctx context.Context, ev domain.NewEvent) (string, error) {
	iv, err := ev.Interval()
	if err != nil {
		return "", err
	}

	clash, err := s.busyBetween(ctx, iv.Start, iv.End)
	if err != nil {
		return "", err
	}
	if len(clash) > 0 {
		return "", fmt.Errorf("%w: %s overlaps %d existing event(s)", domain.ErrSchedulingConflict, ev.Title, len(clash))
	}

	body := &calendar.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       &calendar.EventDateTime{DateTime: iv.Start.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		End:         &calendar.EventDateTime{DateTime: iv.End.UTC().Format(time.RFC3339), TimeZone: "UTC"},
	}
	if ev.URL != "" {
		body.Source = &calendar.EventSource{Title: ev.Title, Url: ev.URL}
	}

	created, err := s.svc.Events.Insert(s.calendarID, body).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert google event: %w", err)
	}
	s.logger.Info("calendar event written", "id", created.Id, "title", ev.Title, "start", iv.Start)
	return created.Id, nil
}

func (s *Store) busyBetween(ctx context.Context, from, to time.Time) ([]domain.BusyInterval, error) {
	busy := make([]domain.BusyInterval, 0)

	call := s.svc.Events.List(s.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy(orderByStartTime)

	err := call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			iv, ok, err := busyInterval(item)
			if err != nil {
				s.logger.Warn("skipping unreadable google event", "id", item.Id, "error", err)
				continue
			}
			if ok && iv.Start.Before(to) && from.Before(iv.End) {
				busy = append(busy, iv)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list google events: %w", err)
	}

	sort.SliceStable(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })
	return busy, nil
}

// busyInterval reports whether the event blocks time and, if so, its span.
func busyInterval(ev *calendar.Event) (domain.BusyInterval, bool, error) {
	if ev.Status == statusCancelled || ev.Transparency == transparencyFree {
		return domain.BusyInterval{}, false, nil
	}
	if ev.Start == nil || ev.End == nil || ev.Start.DateTime == "" || ev.End.DateTime == "" {
		return domain.BusyInterval{}, false, nil
	}
	start, err := time.Parse(time.RFC3339, ev.Start.DateTime)
	if err != nil {
		return domain.BusyInterval{}, false, fmt.Errorf("parse start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, ev.End.DateTime)
	if err != nil {
		return domain.BusyInterval{}, false, fmt.Errorf("parse end: %w", err)
	}
	if !end.After(start) {
		return domain.BusyInterval{}, false, nil
	}
	return domain.BusyInterval{Start: start, End: end}, true, nil
}
