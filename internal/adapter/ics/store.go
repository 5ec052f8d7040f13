package ics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	_ "time/tzdata" // TZID parameters name arbitrary zones

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/teambition/rrule-go"

	"github.com/couchcryptid/storm-event-planner/internal/domain"
)

const (
	productID = "-//couchcryptid//storm-event-planner//EN"
	uidDomain = "storm-event-planner"

	maxOccurrences = 1000
)

// Store is a domain.CalendarStore backed by a single .ics file. Writes are
// serialized and replace the file atomically.
type Store struct {
	path   string
	loc    *time.Location
	clock  clockwork.Clock
	logger *slog.Logger

	mu sync.Mutex
}

// NewStore creates a Store. Floating times in the file are read in loc.
func NewStore(path string, loc *time.Location, clock clockwork.Clock, logger *slog.Logger) *Store {
	return &Store{path: path, loc: loc, clock: clock, logger: logger}
}

// ListBusy returns the busy intervals touching the calendar day of date in
// the store's location. Cancelled, transparent and all-day events are free.
func (s *Store) ListBusy(_ context.Context, date time.Time) ([]domain.BusyInterval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.load()
	if err != nil {
		return nil, err
	}
	d := date.In(s.loc)
	from := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.loc)
	return s.busyBetween(cal, from, from.AddDate(0, 0, 1)), nil
}

// Insert appends the event as a new VEVENT and returns its UID. It fails
// with domain.ErrSchedulingConflict if the file already holds overlapping
// busy time.
func (s *Store) Insert(_ context.Context, ev domain.NewEvent) (string, error) {
	iv, err := ev.Interval()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.load()
	if err != nil {
		return "", err
	}
	if clash := s.busyBetween(cal, iv.Start, iv.End); len(clash) > 0 {
		return "", fmt.Errorf("%w: %s overlaps %d existing event(s)", domain.ErrSchedulingConflict, ev.Title, len(clash))
	}

	uid := uuid.NewString() + "@" + uidDomain
	ve := cal.AddEvent(uid)
	ve.SetDtStampTime(s.clock.Now())
	ve.SetStartAt(iv.Start)
	ve.SetEndAt(iv.End)
	ve.SetSummary(ev.Title)
	if ev.Description != "" {
		ve.SetDescription(ev.Description)
	}
	if ev.Location != "" {
		ve.SetLocation(ev.Location)
	}
	if ev.URL != "" {
		ve.SetURL(ev.URL)
	}

	if err := s.save(cal); err != nil {
		return "", err
	}
	s.logger.Info("calendar event written", "uid", uid, "title", ev.Title, "start", iv.Start)
	return uid, nil
}

func (s *Store) load() (*ical.Calendar, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(bytes.TrimSpace(data)) == 0) {
		cal := ical.NewCalendar()
		cal.SetProductId(productID)
		return cal, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read calendar: %w", err)
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse calendar %s: %w", s.path, err)
	}
	return cal, nil
}

func (s *Store) save(cal *ical.Calendar) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create calendar dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".calendar-*.ics")
	if err != nil {
		return fmt.Errorf("create temp calendar: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if err := cal.SerializeTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("serialize calendar: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp calendar: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace calendar: %w", err)
	}
	return nil
}

// busyBetween expands every busy VEVENT into occurrences overlapping
// [from, to), sorted by start.
func (s *Store) busyBetween(cal *ical.Calendar, from, to time.Time) []domain.BusyInterval {
	events := make([]vevent, 0)
	overridden := make(map[string][]time.Time)
	for _, ve := range cal.Events() {
		ev, err := s.parse(ve)
		if err != nil {
			s.logger.Warn("skipping unreadable calendar event", "uid", ve.Id(), "error", err)
			continue
		}
		if ev.recurrenceID != nil {
			overridden[ev.uid] = append(overridden[ev.uid], *ev.recurrenceID)
		}
		events = append(events, ev)
	}

	window := domain.BusyInterval{Start: from, End: to}
	var busy []domain.BusyInterval
	for _, ev := range events {
		if !ev.blocksTime() {
			continue
		}
		for _, occ := range s.occurrences(ev, overridden[ev.uid], from, to) {
			if occ.Overlaps(window) {
				busy = append(busy, occ)
			}
		}
	}
	sort.SliceStable(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })
	return busy
}

func (s *Store) occurrences(ev vevent, overridden []time.Time, from, to time.Time) []domain.BusyInterval {
	single := domain.BusyInterval{Start: ev.start, End: ev.end}
	if ev.rrule == "" || ev.recurrenceID != nil {
		return []domain.BusyInterval{single}
	}

	r, err := rrule.StrToRRule(ev.rrule)
	if err != nil {
		s.logger.Warn("skipping unparseable RRULE", "uid", ev.uid, "rrule", ev.rrule, "error", err)
		return []domain.BusyInterval{single}
	}
	r.DTStart(ev.start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range append(ev.exdates, overridden...) {
		set.ExDate(ex.In(ev.start.Location()))
	}

	dur := ev.end.Sub(ev.start)
	starts := set.Between(from.Add(-dur), to, true)
	if len(starts) > maxOccurrences {
		starts = starts[:maxOccurrences]
	}
	out := make([]domain.BusyInterval, 0, len(starts))
	for _, st := range starts {
		out = append(out, domain.BusyInterval{Start: st, End: st.Add(dur)})
	}
	return out
}

type vevent struct {
	uid          string
	start, end   time.Time
	allDay       bool
	cancelled    bool
	transparent  bool
	rrule        string
	exdates      []time.Time
	recurrenceID *time.Time
}

// blocksTime reports whether the event makes its time busy.
func (e vevent) blocksTime() bool {
	return !e.allDay && !e.cancelled && !e.transparent && e.end.After(e.start)
}

func (s *Store) parse(ve *ical.VEvent) (vevent, error) {
	ev := vevent{uid: ve.Id()}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return ev, errors.New("missing DTSTART")
	}
	start, allDay, err := s.propTime(startProp.Value, startProp.ICalParameters)
	if err != nil {
		return ev, fmt.Errorf("DTSTART: %w", err)
	}
	ev.start, ev.allDay = start, allDay

	switch endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); {
	case endProp != nil:
		end, _, err := s.propTime(endProp.Value, endProp.ICalParameters)
		if err != nil {
			return ev, fmt.Errorf("DTEND: %w", err)
		}
		ev.end = end
	case allDay:
		ev.end = start.AddDate(0, 0, 1)
	default:
		ev.end = start
	}

	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil {
		ev.cancelled = strings.EqualFold(p.Value, string(ical.ObjectStatusCancelled))
	}
	if p := ve.GetProperty(ical.ComponentPropertyTransp); p != nil {
		ev.transparent = strings.EqualFold(p.Value, "TRANSPARENT")
	}
	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		ev.rrule = p.Value
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, _, err := s.propTime(strings.TrimSpace(part), p.ICalParameters); err == nil {
				ev.exdates = append(ev.exdates, t)
			}
		}
	}
	if p := ve.GetProperty(ical.ComponentPropertyRecurrenceId); p != nil {
		if t, _, err := s.propTime(p.Value, p.ICalParameters); err == nil {
			ev.recurrenceID = &t
		}
	}
	return ev, nil
}

// propTime parses a DATE or DATE-TIME value. UTC values end in Z; floating
// values use TZID when present and the store location otherwise.
func (s *Store) propTime(value string, params map[string][]string) (time.Time, bool, error) {
	value = strings.TrimSpace(value)
	loc := s.loc
	if tz := params["TZID"]; len(tz) == 1 {
		l, err := time.LoadLocation(tz[0])
		if err != nil {
			return time.Time{}, false, fmt.Errorf("TZID %q: %w", tz[0], err)
		}
		loc = l
	}

	switch {
	case strings.HasSuffix(value, "Z"):
		t, err := time.Parse("20060102T150405Z", value)
		return t, false, err
	case strings.Contains(value, "T"):
		t, err := time.ParseInLocation("20060102T150405", value, loc)
		return t, false, err
	default:
		t, err := time.ParseInLocation("20060102", value, loc)
		return t, true, err
	}
}
