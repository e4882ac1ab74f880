package calendar

import (
	"sort"
	"time"
)

// MergeBusy sorts ranges and merges overlapping or touching ones.
func MergeBusy(ranges []TimeRange) []TimeRange {
	if len(ranges) == 0 {
		return nil
	}
	sorted := make([]TimeRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	merged := []TimeRange{sorted[0]}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !r.Start.After(last.End) {
			if r.End.After(last.End) {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// FreeSlots returns the gaps inside window not covered by busy that last at
// least minDuration.
func FreeSlots(busy []TimeRange, window TimeRange, minDuration time.Duration) []TimeRange {
	var slots []TimeRange
	cursor := window.Start
	for _, b := range MergeBusy(busy) {
		if !b.End.After(window.Start) {
			continue
		}
		if !b.Start.Before(window.End) {
			break
		}
		if b.Start.After(cursor) && b.Start.Sub(cursor) >= minDuration {
			slots = append(slots, TimeRange{Start: cursor, End: b.Start})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}
	if window.End.After(cursor) && window.End.Sub(cursor) >= minDuration {
		slots = append(slots, TimeRange{Start: cursor, End: window.End})
	}
	return slots
}
