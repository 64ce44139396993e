package waitlist

import (
	"sort"

	"github.com/clinicdesk/scheduling-engine/internal/eventbus"
)

// Match selects and ranks waiting entries compatible with a freed slot.
// Pure: ranking determinism is a tested property.
//
// An entry is compatible when it is still waiting, fits the freed duration,
// and the slot matches its day/time preferences (absent preferences match
// everything). Ordering is priority rank first, then FIFO by creation time.
func Match(slot eventbus.SlotFreed, entries []Entry) []Entry {
	var candidates []Entry
	for _, e := range entries {
		if e.Status != StatusWaiting {
			continue
		}
		if e.EstimatedDurationMins > slot.DurationMins {
			continue
		}
		if !matchesPreferredDay(e, slot) {
			continue
		}
		if !matchesPreferredTime(e, slot) {
			continue
		}
		candidates = append(candidates, e)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority.Rank() != candidates[j].Priority.Rank() {
			return candidates[i].Priority.Rank() < candidates[j].Priority.Rank()
		}
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		}
		return candidates[i].ID.String() < candidates[j].ID.String()
	})

	return candidates
}

func matchesPreferredDay(e Entry, slot eventbus.SlotFreed) bool {
	if len(e.PreferredDays) == 0 {
		return true
	}
	weekday := slot.Start.Weekday()
	for _, d := range e.PreferredDays {
		if d == weekday {
			return true
		}
	}
	return false
}

func matchesPreferredTime(e Entry, slot eventbus.SlotFreed) bool {
	if e.PreferredStartMins == nil || e.PreferredEndMins == nil {
		return true
	}
	m := slot.Start.Hour()*60 + slot.Start.Minute()
	return m >= *e.PreferredStartMins && m <= *e.PreferredEndMins
}
