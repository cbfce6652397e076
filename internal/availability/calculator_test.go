package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consultdesk/booking-engine/internal/schedule"
)

// Fixed clock: Friday 2026-03-06 10:00 UTC. "Next Monday" is 2026-03-09.
var testNow = time.Date(2026, 3, 6, 10, 0, 0, 0, time.UTC)

const nextMonday = "2026-03-09"

func testConfig() *schedule.Config {
	cfg := schedule.DefaultConfig()
	cfg.Timezone = "UTC"
	return cfg
}

func newTestCalculator() *Calculator {
	return NewCalculatorAt(func() time.Time { return testNow })
}

func TestComputeSlotsFullDay(t *testing.T) {
	// Mon 09:00-17:00, 30m slots, break 13:00-14:00: 16 slots, none in the break.
	calc := newTestCalculator()

	slots, err := calc.ComputeSlots(nextMonday, testConfig(), nil, nil, "")
	require.NoError(t, err)
	require.Len(t, slots, 16)

	assert.Equal(t, Slot{Date: nextMonday, Start: "09:00", End: "09:30"}, slots[0])
	assert.Equal(t, Slot{Date: nextMonday, Start: "12:30", End: "13:00"}, slots[7])
	assert.Equal(t, Slot{Date: nextMonday, Start: "14:00", End: "14:30"}, slots[8])
	assert.Equal(t, Slot{Date: nextMonday, Start: "16:30", End: "17:00"}, slots[15])

	for _, s := range slots {
		assert.False(t, s.Start >= "13:00" && s.Start < "14:00", "slot %s falls inside the break", s.Start)
	}
}

func TestComputeSlotsBlockedDate(t *testing.T) {
	cfg := testConfig()
	cfg.BlockedDates = []schedule.BlockedDate{{Date: nextMonday, Reason: "away"}}

	slots, err := newTestCalculator().ComputeSlots(nextMonday, cfg, nil, nil, "")
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestComputeSlotsDisabledDay(t *testing.T) {
	// 2026-03-08 is a Sunday, disabled by default.
	slots, err := newTestCalculator().ComputeSlots("2026-03-08", testConfig(), nil, nil, "")
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestComputeSlotsPastDate(t *testing.T) {
	slots, err := newTestCalculator().ComputeSlots("2026-03-05", testConfig(), nil, nil, "")
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestComputeSlotsTodayExcludesPassedTimes(t *testing.T) {
	// testNow is Friday 10:00; morning slots up to and including 10:00 are gone.
	slots, err := newTestCalculator().ComputeSlots("2026-03-06", testConfig(), nil, nil, "")
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	assert.Equal(t, "10:30", slots[0].Start)
}

func TestComputeSlotsBlockedRangeSubtraction(t *testing.T) {
	cfg := testConfig()
	cfg.BlockedTimeRanges = []schedule.BlockedTimeRange{
		{Date: nextMonday, Start: "09:00", End: "11:00", Reason: "surgery"},
	}

	slots, err := newTestCalculator().ComputeSlots(nextMonday, cfg, nil, nil, "")
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	assert.Equal(t, "11:00", slots[0].Start)

	// Adding the same fully-covered range again changes nothing.
	cfg.BlockedTimeRanges = append(cfg.BlockedTimeRanges, schedule.BlockedTimeRange{
		Date: nextMonday, Start: "09:30", End: "10:30", Reason: "dup",
	})
	again, err := newTestCalculator().ComputeSlots(nextMonday, cfg, nil, nil, "")
	require.NoError(t, err)
	assert.Equal(t, slots, again)
}

func TestComputeSlotsDropsPartialTrailingWindow(t *testing.T) {
	cfg := testConfig()
	cfg.SlotDurationMinutes = 45
	cfg.BreakWindows = nil
	cfg.WeeklyHours.Monday = schedule.DayHours{Enabled: true, Start: "09:00", End: "10:30"}

	slots, err := newTestCalculator().ComputeSlots(nextMonday, cfg, nil, nil, "")
	require.NoError(t, err)

	// 90 minutes fit exactly two 45-minute slots; no undersized remainder.
	require.Len(t, slots, 2)
	assert.Equal(t, "09:00", slots[0].Start)
	assert.Equal(t, "09:45", slots[1].Start)
	assert.Equal(t, "10:30", slots[1].End)
}

func TestComputeSlotsExcludesForeignHoldsAndBookings(t *testing.T) {
	holds := []HoldInfo{
		{StartTime: "09:00", SessionID: "other", ExpiresAt: testNow.Add(5 * time.Minute)},
		{StartTime: "09:30", SessionID: "other", ExpiresAt: testNow.Add(-time.Minute)}, // expired
		{StartTime: "10:00", SessionID: "mine", ExpiresAt: testNow.Add(5 * time.Minute)},
	}
	booked := []BookingInfo{{StartTime: "14:00"}}

	slots, err := newTestCalculator().ComputeSlots(nextMonday, testConfig(), holds, booked, "mine")
	require.NoError(t, err)

	starts := make(map[string]bool)
	for _, s := range slots {
		starts[s.Start] = true
	}
	assert.False(t, starts["09:00"], "active foreign hold must hide the slot")
	assert.True(t, starts["09:30"], "expired hold is treated as absent")
	assert.True(t, starts["10:00"], "caller's own hold must still appear")
	assert.False(t, starts["14:00"], "scheduled appointment must hide the slot")
}

func TestComputeSlotsChronologicalOrder(t *testing.T) {
	slots, err := newTestCalculator().ComputeSlots(nextMonday, testConfig(), nil, nil, "")
	require.NoError(t, err)
	for i := 1; i < len(slots); i++ {
		assert.Less(t, slots[i-1].Start, slots[i].Start)
	}
}

func TestComputeSlotsInvalidDate(t *testing.T) {
	_, err := newTestCalculator().ComputeSlots("03/09/2026", testConfig(), nil, nil, "")
	assert.Error(t, err)
}

func TestSubtractOverlappingCuts(t *testing.T) {
	set := []interval{{start: 540, end: 1020}}
	set = subtract(set, interval{start: 600, end: 660})
	set = subtract(set, interval{start: 630, end: 690})

	assert.Equal(t, []interval{{start: 540, end: 600}, {start: 690, end: 1020}}, set)
}
