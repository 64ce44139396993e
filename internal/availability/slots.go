package availability

import (
	"sort"
	"time"
)

// Slot is a candidate bookable interval derived from the weekly template.
// It is not a committed appointment.
type Slot struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}

// GenerateInput carries everything Generate needs; the function itself does
// no I/O so it can be tested without a store.
type GenerateInput struct {
	Days   []WeekdayTemplate
	Blocks []TimeBlock
	// Booked holds the buffered intervals of non-cancelled appointments.
	Booked []Busy
	// BookedStarts holds the unbuffered start times of the same appointments;
	// the per-day cap counts appointments by the day they start on, so buffers
	// spilling over midnight never count against a neighbouring day.
	BookedStarts []time.Time
	// [From, To) walked one date at a time.
	From time.Time
	To   time.Time
	// DurationMins overrides each day's default step when > 0.
	DurationMins int
}

// Generate walks the requested date range and emits candidate slots in
// chronological order. The output is deterministic for identical input.
func Generate(in GenerateInput) []Slot {
	byWeekday := make(map[time.Weekday]WeekdayTemplate, len(in.Days))
	for _, day := range in.Days {
		if !day.IsActive {
			continue
		}
		if _, seen := byWeekday[day.Weekday]; !seen {
			byWeekday[day.Weekday] = day
		}
	}

	var slots []Slot
	for d := startOfDay(in.From); d.Before(in.To); d = d.AddDate(0, 0, 1) {
		day, ok := byWeekday[d.Weekday()]
		if !ok || !day.IsWorkingDay {
			continue
		}

		duration := in.DurationMins
		if duration <= 0 {
			duration = day.DefaultDurationMins
		}
		if duration < MinDurationMins {
			continue
		}

		dayEnd := d.AddDate(0, 0, 1)
		busy := collectBusy(in.Blocks, in.Booked, d, dayEnd)
		capReached := dayAtCapacity(day, in.BookedStarts, d, dayEnd)

		step := time.Duration(duration) * time.Minute
		for _, iv := range normalizeIntervals(day.Intervals) {
			ivStart := d.Add(time.Duration(iv.StartMins) * time.Minute)
			ivEnd := d.Add(time.Duration(iv.EndMins) * time.Minute)

			for cur := ivStart; !cur.Add(step).After(ivEnd); cur = cur.Add(step) {
				end := cur.Add(step)
				// Mid-day range bounds clip the emitted slots, not just the
				// walked dates.
				if cur.Before(in.From) || end.After(in.To) {
					continue
				}
				available := !capReached && !anyOverlap(busy, cur, end)
				slots = append(slots, Slot{Start: cur, End: end, Available: available})
			}
		}
	}

	return slots
}

// WithinWorkingHours reports whether a same-day [start, end) candidate lies
// inside one of the day's configured working intervals.
func WithinWorkingHours(day WeekdayTemplate, start, end time.Time) bool {
	if !day.IsActive || !day.IsWorkingDay {
		return false
	}
	if start.Weekday() != day.Weekday || !end.After(start) {
		return false
	}

	s := minutesIntoDay(start)
	e := s + int(end.Sub(start)/time.Minute)
	for _, iv := range normalizeIntervals(day.Intervals) {
		if s >= iv.StartMins && e <= iv.EndMins {
			return true
		}
	}
	return false
}

// normalizeIntervals sorts and merges overlapping or touching configured
// intervals. Walking unmerged overlaps would double-count boundary minutes.
func normalizeIntervals(intervals []TimeRange) []TimeRange {
	valid := make([]TimeRange, 0, len(intervals))
	for _, iv := range intervals {
		if iv.EndMins > iv.StartMins {
			valid = append(valid, iv)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	sort.Slice(valid, func(i, j int) bool {
		if valid[i].StartMins != valid[j].StartMins {
			return valid[i].StartMins < valid[j].StartMins
		}
		return valid[i].EndMins < valid[j].EndMins
	})

	merged := []TimeRange{valid[0]}
	for _, iv := range valid[1:] {
		last := &merged[len(merged)-1]
		if iv.StartMins <= last.EndMins {
			if iv.EndMins > last.EndMins {
				last.EndMins = iv.EndMins
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

func collectBusy(blocks []TimeBlock, booked []Busy, from, to time.Time) []Busy {
	var busy []Busy
	for _, block := range blocks {
		busy = append(busy, block.OccurrencesBetween(from, to)...)
	}
	for _, b := range booked {
		if b.Overlaps(from, to) {
			busy = append(busy, b)
		}
	}
	return busy
}

func anyOverlap(busy []Busy, start, end time.Time) bool {
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}

func dayAtCapacity(day WeekdayTemplate, bookedStarts []time.Time, from, to time.Time) bool {
	if day.MaxAppointments == nil {
		return false
	}
	count := 0
	for _, start := range bookedStarts {
		if !start.Before(from) && start.Before(to) {
			count++
		}
	}
	return count >= *day.MaxAppointments
}
