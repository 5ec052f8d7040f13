// Command daycheck prints the free slots of one day from an ICS calendar as
// JSON, and optionally checks a requested slot for conflicts.
//
// Usage:
//
//	go run ./cmd/daycheck \
//	  -ics data/calendar.ics \
//	  -date 2026-10-19 \
//	  -start 14:00 -end 15:30
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-event-planner/internal/adapter/ics"
	"github.com/couchcryptid/storm-event-planner/internal/domain"
	"github.com/couchcryptid/storm-event-planner/internal/observability"
	"github.com/couchcryptid/storm-event-planner/internal/planner"
)

// report is the command's JSON output.
type report struct {
	Date      string                 `json:"date"`
	DayStart  time.Time              `json:"day_start"`
	DayEnd    time.Time              `json:"day_end"`
	Busy      []domain.BusyInterval  `json:"busy_intervals"`
	FreeSlots []domain.FreeSlot      `json:"free_slots"`
	Conflict  *domain.ConflictResult `json:"conflict,omitempty"`
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, clockwork.NewRealClock(), observability.NewMetrics()); err != nil {
		fmt.Fprintln(os.Stderr, "daycheck:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer, clock clockwork.Clock, metrics *observability.Metrics) error {
	fs := flag.NewFlagSet("daycheck", flag.ContinueOnError)
	icsFile := fs.String("ics", sharedcfg.EnvOrDefault("ICS_FILE", "data/calendar.ics"), "path to the ICS calendar file")
	tz := fs.String("tz", sharedcfg.EnvOrDefault("TIMEZONE", "America/New_York"), "IANA time zone for the day")
	date := fs.String("date", "", "day to check as YYYY-MM-DD (default today)")
	dayStart := fs.String("day-start", "08:00", "working day start (HH:MM)")
	dayEnd := fs.String("day-end", "18:00", "working day end (HH:MM)")
	start := fs.String("start", "", "requested slot start (HH:MM); enables the conflict check")
	end := fs.String("end", "", "requested slot end (HH:MM)")
	suggestions := fs.Int("suggestions", 3, "maximum alternative slots to suggest")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if (*start == "") != (*end == "") {
		return fmt.Errorf("-start and -end must be given together")
	}

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		return fmt.Errorf("invalid -tz: %w", err)
	}
	startOffset, err := clockOffset(*dayStart)
	if err != nil {
		return fmt.Errorf("invalid -day-start: %w", err)
	}
	endOffset, err := clockOffset(*dayEnd)
	if err != nil {
		return fmt.Errorf("invalid -day-end: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := ics.NewStore(*icsFile, loc, clock, logger)
	svc := planner.New(nil, nil, store, planner.Settings{
		Location:       loc,
		DayStart:       startOffset,
		DayEnd:         endOffset,
		MaxSuggestions: *suggestions,
	}, clock, logger, metrics)

	free, err := svc.FreeTime(ctx, planner.FreeTimeRequest{Date: *date})
	if err != nil {
		return err
	}
	rep := report{
		Date:      free.Date,
		DayStart:  free.DayStart,
		DayEnd:    free.DayEnd,
		Busy:      free.Busy,
		FreeSlots: free.FreeSlots,
	}

	if *start != "" {
		day, _ := time.ParseInLocation("2006-01-02", free.Date, loc)
		reqStart, err := atClock(day, *start)
		if err != nil {
			return fmt.Errorf("invalid -start: %w", err)
		}
		reqEnd, err := atClock(day, *end)
		if err != nil {
			return fmt.Errorf("invalid -end: %w", err)
		}
		rep.Conflict, err = svc.CheckConflict(ctx, planner.ConflictCheckRequest{
			Date:           free.Date,
			RequestedStart: reqStart,
			RequestedEnd:   reqEnd,
			MaxSuggestions: suggestions,
		})
		if err != nil {
			return err
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func clockOffset(hhmm string) (time.Duration, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func atClock(day time.Time, hhmm string) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}
