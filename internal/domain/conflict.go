package domain

import (
	"fmt"
	"sort"
	"time"
)

// ConflictQuery is a request to place [RequestedStart, RequestedEnd) on a day
// that already holds Busy.
type ConflictQuery struct {
	RequestedStart time.Time
	RequestedEnd   time.Time
	Busy           []BusyInterval
	DayStart       time.Time
	DayEnd         time.Time
	MaxSuggestions int
}

// ConflictResult reports the busy intervals that collide with a requested
// slot and, when there is a collision, alternative free slots.
type ConflictResult struct {
	HasConflict bool           `json:"has_conflict"`
	Overlapping []BusyInterval `json:"overlapping"`
	Suggestions []FreeSlot     `json:"suggestions"`
}

// CheckConflict validates the query, then collects overlapping busy intervals
// in ascending start order. Suggestions are free slots at least as long as the
// request, nearest to the requested start first (earlier start on ties),
// truncated to MaxSuggestions. A non-positive MaxSuggestions yields none.
func CheckConflict(q ConflictQuery) (ConflictResult, error) {
	requested, err := NewBusyInterval(q.RequestedStart, q.RequestedEnd)
	if err != nil {
		return ConflictResult{}, fmt.Errorf("requested: %w", err)
	}
	free, err := FreeIntervals(q.Busy, q.DayStart, q.DayEnd)
	if err != nil {
		return ConflictResult{}, err
	}

	result := ConflictResult{Overlapping: []BusyInterval{}, Suggestions: []FreeSlot{}}
	for _, iv := range q.Busy {
		if requested.Overlaps(iv) {
			result.Overlapping = append(result.Overlapping, iv)
		}
	}
	sort.SliceStable(result.Overlapping, func(i, j int) bool {
		return result.Overlapping[i].Start.Before(result.Overlapping[j].Start)
	})
	result.HasConflict = len(result.Overlapping) > 0

	if result.HasConflict && q.MaxSuggestions > 0 {
		result.Suggestions = suggest(free, requested, q.MaxSuggestions)
	}
	return result, nil
}

func suggest(free []FreeSlot, requested BusyInterval, limit int) []FreeSlot {
	need := requested.Duration()
	candidates := make([]FreeSlot, 0, len(free))
	for _, slot := range free {
		if slot.Duration() >= need {
			candidates = append(candidates, slot)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		di := absDuration(candidates[i].Start.Sub(requested.Start))
		dj := absDuration(candidates[j].Start.Sub(requested.Start))
		if di != dj {
			return di < dj
		}
		return candidates[i].Start.Before(candidates[j].Start)
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
