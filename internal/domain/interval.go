package domain

import (
	"fmt"
	"sort"
	"time"
)

// BusyInterval is a half-open time range [Start, End) already committed on a
// calendar. Construct with NewBusyInterval to enforce End > Start.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewBusyInterval validates and returns an interval. Reversed or empty input
// is rejected, never swapped.
func NewBusyInterval(start, end time.Time) (BusyInterval, error) {
	iv := BusyInterval{Start: start, End: end}
	if err := iv.Validate(); err != nil {
		return BusyInterval{}, err
	}
	return iv, nil
}

// Validate returns ErrInvalidInterval if the interval ends at or before it starts.
func (b BusyInterval) Validate() error {
	if !b.End.After(b.Start) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidInterval, b.Start.Format(time.RFC3339), b.End.Format(time.RFC3339))
	}
	return nil
}

// Duration returns End - Start.
func (b BusyInterval) Duration() time.Duration {
	return b.End.Sub(b.Start)
}

// Overlaps uses half-open semantics: an interval ending exactly when another
// starts does not overlap it.
func (b BusyInterval) Overlaps(o BusyInterval) bool {
	return b.Start.Before(o.End) && o.Start.Before(b.End)
}

// FreeSlot is a maximal free range within a day.
type FreeSlot struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"duration_minutes"`
}

func newFreeSlot(start, end time.Time) FreeSlot {
	return FreeSlot{Start: start, End: end, DurationMinutes: int(end.Sub(start) / time.Minute)}
}

// Duration returns End - Start.
func (f FreeSlot) Duration() time.Duration {
	return f.End.Sub(f.Start)
}

// MergeIntervals returns the minimal disjoint covering set of the input,
// sorted by start. Overlapping and adjacent intervals are joined. The input
// slice is not modified.
func MergeIntervals(busy []BusyInterval) []BusyInterval {
	if len(busy) == 0 {
		return nil
	}
	sorted := make([]BusyInterval, len(busy))
	copy(sorted, busy)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	merged := []BusyInterval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if iv.Start.After(last.End) {
			merged = append(merged, iv)
			continue
		}
		if iv.End.After(last.End) {
			last.End = iv.End
		}
	}
	return merged
}

// ClipToDay trims intervals to [dayStart, dayEnd] and drops those that fall
// entirely outside it. Calendar data routinely spans midnight; clip it before
// passing it to FreeIntervals.
func ClipToDay(busy []BusyInterval, dayStart, dayEnd time.Time) []BusyInterval {
	out := make([]BusyInterval, 0, len(busy))
	for _, iv := range busy {
		if !iv.End.After(dayStart) || !iv.Start.Before(dayEnd) {
			continue
		}
		if iv.Start.Before(dayStart) {
			iv.Start = dayStart
		}
		if iv.End.After(dayEnd) {
			iv.End = dayEnd
		}
		out = append(out, iv)
	}
	return out
}
