package domain

import (
	"fmt"
	"time"
)

// FreeIntervals returns the free slots within [dayStart, dayEnd] given the
// day's busy intervals, sorted by start. Busy intervals must already lie
// within the day; anything outside is rejected with ErrOutOfRangeInterval.
func FreeIntervals(busy []BusyInterval, dayStart, dayEnd time.Time) ([]FreeSlot, error) {
	if err := validateDay(busy, dayStart, dayEnd); err != nil {
		return nil, err
	}

	free := make([]FreeSlot, 0, len(busy)+1)
	cursor := dayStart
	for _, iv := range MergeIntervals(busy) {
		if iv.Start.After(cursor) {
			free = append(free, newFreeSlot(cursor, iv.Start))
		}
		cursor = iv.End
	}
	if dayEnd.After(cursor) {
		free = append(free, newFreeSlot(cursor, dayEnd))
	}
	return free, nil
}

func validateDay(busy []BusyInterval, dayStart, dayEnd time.Time) error {
	if !dayEnd.After(dayStart) {
		return fmt.Errorf("day bounds: %w", ErrInvalidInterval)
	}
	for i, iv := range busy {
		if err := iv.Validate(); err != nil {
			return fmt.Errorf("busy[%d]: %w", i, err)
		}
		if iv.Start.Before(dayStart) || iv.End.After(dayEnd) {
			return fmt.Errorf("busy[%d] %s to %s: %w", i,
				iv.Start.Format(time.Kitchen), iv.End.Format(time.Kitchen), ErrOutOfRangeInterval)
		}
	}
	return nil
}
