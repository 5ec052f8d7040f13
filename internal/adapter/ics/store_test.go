package ics

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-event-planner/internal/domain"
)

const fixture = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:standup@test
DTSTAMP:20261001T000000Z
DTSTART;TZID=America/New_York:20261005T093000
DTEND;TZID=America/New_York:20261005T100000
RRULE:FREQ=WEEKLY;BYDAY=MO
EXDATE;TZID=America/New_York:20261026T093000
SUMMARY:Standup
END:VEVENT
BEGIN:VEVENT
UID:standup@test
DTSTAMP:20261001T000000Z
RECURRENCE-ID;TZID=America/New_York:20261012T093000
DTSTART;TZID=America/New_York:20261012T110000
DTEND;TZID=America/New_York:20261012T113000
SUMMARY:Standup (moved)
END:VEVENT
BEGIN:VEVENT
UID:lunch@test
DTSTAMP:20261001T000000Z
DTSTART:20261019T160000Z
DTEND:20261019T170000Z
SUMMARY:Lunch
END:VEVENT
BEGIN:VEVENT
UID:cancelled@test
DTSTAMP:20261001T000000Z
DTSTART:20261019T140000
DTEND:20261019T150000
STATUS:CANCELLED
SUMMARY:Cancelled review
END:VEVENT
BEGIN:VEVENT
UID:transparent@test
DTSTAMP:20261001T000000Z
DTSTART:20261019T150000
DTEND:20261019T160000
TRANSP:TRANSPARENT
SUMMARY:Focus (free)
END:VEVENT
BEGIN:VEVENT
UID:allday@test
DTSTAMP:20261001T000000Z
DTSTART;VALUE=DATE:20261019
DTEND;VALUE=DATE:20261020
SUMMARY:Conference
END:VEVENT
BEGIN:VEVENT
UID:dentist@test
DTSTAMP:20261001T000000Z
DTSTART:20261019T170000
DTEND:20261019T183000
SUMMARY:Dentist
END:VEVENT
BEGIN:VEVENT
UID:flight@test
DTSTAMP:20261001T000000Z
DTSTART:20261019T230000
DTEND:20261020T010000
SUMMARY:Red-eye
END:VEVENT
BEGIN:VEVENT
UID:tuesday@test
DTSTAMP:20261001T000000Z
DTSTART:20261020T100000
DTEND:20261020T110000
SUMMARY:Tuesday sync
END:VEVENT
END:VCALENDAR
`

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func newTestStore(t *testing.T, contents string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calendar.ics")
	if contents != "" {
		require.NoError(t, os.WriteFile(path, []byte(strings.ReplaceAll(contents, "\n", "\r\n")), 0o600))
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC))
	return NewStore(path, newYork(t), clock, logger)
}

func local(t *testing.T, day int, hh, mm int) time.Time {
	return time.Date(2026, 10, day, hh, mm, 0, 0, newYork(t))
}

func assertIntervals(t *testing.T, want, got []domain.BusyInterval) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].Start.Equal(got[i].Start), "start[%d]: want %s got %s", i, want[i].Start, got[i].Start)
		assert.True(t, want[i].End.Equal(got[i].End), "end[%d]: want %s got %s", i, want[i].End, got[i].End)
	}
}

func TestStore_ListBusy(t *testing.T) {
	s := newTestStore(t, fixture)
	ctx := context.Background()

	tests := []struct {
		name string
		day  int
		want []domain.BusyInterval
	}{
		{
			name: "recurring, UTC, floating and overnight events",
			day:  19,
			want: []domain.BusyInterval{
				{Start: local(t, 19, 9, 30), End: local(t, 19, 10, 0)},
				{Start: local(t, 19, 12, 0), End: local(t, 19, 13, 0)},
				{Start: local(t, 19, 17, 0), End: local(t, 19, 18, 30)},
				{Start: local(t, 19, 23, 0), End: local(t, 20, 1, 0)},
			},
		},
		{
			name: "overnight event carries into next day",
			day:  20,
			want: []domain.BusyInterval{
				{Start: local(t, 19, 23, 0), End: local(t, 20, 1, 0)},
				{Start: local(t, 20, 10, 0), End: local(t, 20, 11, 0)},
			},
		},
		{
			name: "moved occurrence replaces the original",
			day:  12,
			want: []domain.BusyInterval{
				{Start: local(t, 12, 11, 0), End: local(t, 12, 11, 30)},
			},
		},
		{
			name: "excluded occurrence",
			day:  26,
			want: []domain.BusyInterval{},
		},
		{
			name: "plain recurrence",
			day:  5,
			want: []domain.BusyInterval{
				{Start: local(t, 5, 9, 30), End: local(t, 5, 10, 0)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListBusy(ctx, local(t, tt.day, 12, 0))
			require.NoError(t, err)
			assertIntervals(t, tt.want, got)
		})
	}
}

func TestStore_ListBusy_MissingFile(t *testing.T) {
	s := newTestStore(t, "")

	got, err := s.ListBusy(context.Background(), local(t, 19, 0, 0))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_Insert(t *testing.T) {
	s := newTestStore(t, fixture)
	ctx := context.Background()

	uid, err := s.Insert(ctx, domain.NewEvent{
		Title:       "Vintage clothing market",
		Description: "Outdoor market, 80 vendors",
		Location:    "Brooklyn Flea",
		URL:         "https://example.com/flea",
		Start:       local(t, 19, 14, 0),
		End:         local(t, 19, 16, 0),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(uid, "@"+uidDomain))

	got, err := s.ListBusy(ctx, local(t, 19, 0, 0))
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.True(t, got[2].Start.Equal(local(t, 19, 14, 0)))

	data, err := os.ReadFile(s.path)
	require.NoError(t, err)
	body := string(data)
	assert.Contains(t, body, "SUMMARY:Vintage clothing market")
	assert.Contains(t, body, "URL:https://example.com/flea")
	assert.Contains(t, body, "UID:"+uid)
	assert.Contains(t, body, "DTSTART:20261019T180000Z")
	assert.Contains(t, body, "UID:standup@test", "existing events preserved")
}

func TestStore_Insert_CreatesFile(t *testing.T) {
	s := newTestStore(t, "")
	s.path = filepath.Join(filepath.Dir(s.path), "nested", "new.ics")

	_, err := s.Insert(context.Background(), domain.NewEvent{Title: "Yoga", Start: local(t, 19, 8, 0), End: local(t, 19, 9, 0)})
	require.NoError(t, err)

	got, err := s.ListBusy(context.Background(), local(t, 19, 0, 0))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestStore_Insert_Conflict(t *testing.T) {
	s := newTestStore(t, fixture)
	ctx := context.Background()

	_, err := s.Insert(ctx, domain.NewEvent{Title: "Overlaps lunch", Start: local(t, 19, 12, 30), End: local(t, 19, 13, 30)})
	require.ErrorIs(t, err, domain.ErrSchedulingConflict)

	_, err = s.Insert(ctx, domain.NewEvent{Title: "Overlaps standup", Start: local(t, 26+7, 9, 0), End: local(t, 26+7, 9, 45)})
	require.ErrorIs(t, err, domain.ErrSchedulingConflict, "recurring occurrences count")

	_, err = s.Insert(ctx, domain.NewEvent{Title: "After lunch", Start: local(t, 19, 13, 0), End: local(t, 19, 14, 0)})
	require.NoError(t, err, "back to back is allowed")

	_, err = s.Insert(ctx, domain.NewEvent{Title: "During cancelled review", Start: local(t, 19, 14, 0), End: local(t, 19, 14, 30)})
	require.NoError(t, err)
}

func TestStore_Insert_InvalidInterval(t *testing.T) {
	s := newTestStore(t, "")

	_, err := s.Insert(context.Background(), domain.NewEvent{Title: "Backwards", Start: local(t, 19, 10, 0), End: local(t, 19, 9, 0)})
	assert.ErrorIs(t, err, domain.ErrInvalidInterval)
}
