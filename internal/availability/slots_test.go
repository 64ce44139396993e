package availability

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Monday 2025-06-02.
var monday = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func at(day time.Time, hour, min int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func workingMonday(durationMins int, intervals ...TimeRange) WeekdayTemplate {
	return WeekdayTemplate{
		ID:                  uuid.New(),
		DoctorID:            uuid.New(),
		Weekday:             time.Monday,
		IsWorkingDay:        true,
		Intervals:           intervals,
		DefaultDurationMins: durationMins,
		IsActive:            true,
	}
}

func TestGenerateMorningWithOneBooking(t *testing.T) {
	day := workingMonday(30, TimeRange{StartMins: 9 * 60, EndMins: 12 * 60})

	slots := Generate(GenerateInput{
		Days:   []WeekdayTemplate{day},
		Booked: []Busy{{Start: at(monday, 10, 0), End: at(monday, 10, 30)}},
		From:   monday,
		To:     monday.AddDate(0, 0, 1),
	})

	require.Len(t, slots, 6)

	for i, slot := range slots {
		wantStart := at(monday, 9, 0).Add(time.Duration(i) * 30 * time.Minute)
		assert.Equal(t, wantStart, slot.Start)
		assert.Equal(t, wantStart.Add(30*time.Minute), slot.End)
	}

	for _, slot := range slots {
		if slot.Start.Equal(at(monday, 10, 0)) {
			assert.False(t, slot.Available, "the booked 10:00 slot must be unavailable")
		} else {
			assert.True(t, slot.Available, "slot %s should be free", slot.Start)
		}
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	in := GenerateInput{
		Days: []WeekdayTemplate{workingMonday(20,
			TimeRange{StartMins: 8 * 60, EndMins: 11 * 60},
			TimeRange{StartMins: 14 * 60, EndMins: 16 * 60},
		)},
		Booked: []Busy{{Start: at(monday, 8, 40), End: at(monday, 9, 0)}},
		From:   monday,
		To:     monday.AddDate(0, 0, 7),
	}

	first := Generate(in)
	second := Generate(in)

	assert.Equal(t, first, second)
}

func TestGenerateSkipsNonWorkingAndEmptyDays(t *testing.T) {
	offDay := workingMonday(30)
	offDay.IsWorkingDay = false

	slots := Generate(GenerateInput{
		Days: []WeekdayTemplate{offDay},
		From: monday,
		To:   monday.AddDate(0, 0, 1),
	})
	assert.Empty(t, slots, "non-working day yields no slots")

	// Working day with zero configured intervals is not an error either.
	emptyDay := workingMonday(30)
	slots = Generate(GenerateInput{
		Days: []WeekdayTemplate{emptyDay},
		From: monday,
		To:   monday.AddDate(0, 0, 1),
	})
	assert.Empty(t, slots)
}

func TestGenerateMergesOverlappingIntervals(t *testing.T) {
	// 09:00-11:00 and 10:00-12:00 must behave exactly like 09:00-12:00.
	day := workingMonday(30,
		TimeRange{StartMins: 9 * 60, EndMins: 11 * 60},
		TimeRange{StartMins: 10 * 60, EndMins: 12 * 60},
	)

	slots := Generate(GenerateInput{
		Days: []WeekdayTemplate{day},
		From: monday,
		To:   monday.AddDate(0, 0, 1),
	})

	require.Len(t, slots, 6)
	assert.Equal(t, at(monday, 9, 0), slots[0].Start)
	assert.Equal(t, at(monday, 12, 0), slots[5].End)

	seen := map[time.Time]bool{}
	for _, slot := range slots {
		assert.False(t, seen[slot.Start], "duplicate slot at %s", slot.Start)
		seen[slot.Start] = true
	}
}

func TestNormalizeIntervals(t *testing.T) {
	tests := []struct {
		name string
		in   []TimeRange
		want []TimeRange
	}{
		{
			name: "disjoint stay sorted",
			in:   []TimeRange{{840, 960}, {540, 720}},
			want: []TimeRange{{540, 720}, {840, 960}},
		},
		{
			name: "overlap merges",
			in:   []TimeRange{{540, 660}, {600, 720}},
			want: []TimeRange{{540, 720}},
		},
		{
			name: "touching merges",
			in:   []TimeRange{{540, 600}, {600, 660}},
			want: []TimeRange{{540, 660}},
		},
		{
			name: "inverted dropped",
			in:   []TimeRange{{720, 540}},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeIntervals(tt.in))
		})
	}
}

func TestGenerateCallerDurationOverridesDefault(t *testing.T) {
	day := workingMonday(30, TimeRange{StartMins: 9 * 60, EndMins: 10 * 60})

	slots := Generate(GenerateInput{
		Days:         []WeekdayTemplate{day},
		From:         monday,
		To:           monday.AddDate(0, 0, 1),
		DurationMins: 20,
	})

	require.Len(t, slots, 3)
	assert.Equal(t, at(monday, 9, 40), slots[2].Start)
}

func TestGenerateRecurringBlockClippedToUntil(t *testing.T) {
	day := workingMonday(60, TimeRange{StartMins: 9 * 60, EndMins: 11 * 60})

	// Lunch-style block every Monday, but only until the first one.
	block := TimeBlock{
		ID:       uuid.New(),
		DoctorID: day.DoctorID,
		Kind:     BlockLunch,
		Start:    at(monday.AddDate(0, 0, -7), 9, 0),
		End:      at(monday.AddDate(0, 0, -7), 10, 0),
		Recurrence: &Recurrence{
			Weekdays: []time.Weekday{time.Monday},
			Until:    monday,
		},
		IsActive: true,
	}

	slots := Generate(GenerateInput{
		Days:   []WeekdayTemplate{day},
		Blocks: []TimeBlock{block},
		From:   monday,
		To:     monday.AddDate(0, 0, 14),
	})

	// Two Mondays in range, two slots each.
	require.Len(t, slots, 4)

	assert.False(t, slots[0].Available, "first Monday 09:00 is blocked")
	assert.True(t, slots[1].Available)
	// Second Monday is past the recurrence's until date.
	assert.True(t, slots[2].Available)
	assert.True(t, slots[3].Available)
}

func TestGenerateAllDayBlock(t *testing.T) {
	day := workingMonday(30, TimeRange{StartMins: 9 * 60, EndMins: 12 * 60})

	vacation := TimeBlock{
		ID:       uuid.New(),
		DoctorID: day.DoctorID,
		Kind:     BlockVacation,
		Start:    at(monday, 15, 0), // clock time irrelevant for all-day
		End:      at(monday, 16, 0),
		AllDay:   true,
		IsActive: true,
	}

	slots := Generate(GenerateInput{
		Days:   []WeekdayTemplate{day},
		Blocks: []TimeBlock{vacation},
		From:   monday,
		To:     monday.AddDate(0, 0, 1),
	})

	require.Len(t, slots, 6)
	for _, slot := range slots {
		assert.False(t, slot.Available)
	}
}

func TestGenerateDayCapacityCap(t *testing.T) {
	maxPerDay := 2
	day := workingMonday(30, TimeRange{StartMins: 9 * 60, EndMins: 12 * 60})
	day.MaxAppointments = &maxPerDay

	slots := Generate(GenerateInput{
		Days: []WeekdayTemplate{day},
		Booked: []Busy{
			{Start: at(monday, 9, 0), End: at(monday, 9, 30)},
			{Start: at(monday, 9, 30), End: at(monday, 10, 0)},
		},
		BookedStarts: []time.Time{at(monday, 9, 0), at(monday, 9, 30)},
		From:         monday,
		To:           monday.AddDate(0, 0, 1),
	})

	require.Len(t, slots, 6)
	for _, slot := range slots {
		assert.False(t, slot.Available, "day at capacity leaves nothing bookable")
	}
}

func TestGenerateCapCountsStartDayOnly(t *testing.T) {
	maxPerDay := 1
	day := workingMonday(30, TimeRange{StartMins: 9 * 60, EndMins: 12 * 60})
	day.MaxAppointments = &maxPerDay

	// A late-Sunday appointment whose buffer spills past midnight must not
	// count against Monday's cap.
	sunday := monday.AddDate(0, 0, -1)
	slots := Generate(GenerateInput{
		Days:         []WeekdayTemplate{day},
		Booked:       []Busy{{Start: at(sunday, 23, 30), End: at(monday, 0, 10)}},
		BookedStarts: []time.Time{at(sunday, 23, 30)},
		From:         monday,
		To:           monday.AddDate(0, 0, 1),
	})

	require.Len(t, slots, 6)
	for _, slot := range slots {
		assert.True(t, slot.Available)
	}
}

func TestGenerateClipsMidDayRange(t *testing.T) {
	day := workingMonday(30, TimeRange{StartMins: 9 * 60, EndMins: 12 * 60})

	slots := Generate(GenerateInput{
		Days: []WeekdayTemplate{day},
		From: at(monday, 10, 0),
		To:   at(monday, 11, 0),
	})

	require.Len(t, slots, 2)
	assert.Equal(t, at(monday, 10, 0), slots[0].Start)
	assert.Equal(t, at(monday, 10, 30), slots[1].Start)
}
