// Package availability computes the bookable slots for a calendar day from
// the schedule configuration and the current reservation state. The
// computation is pure: it reads its inputs, mutates nothing, and has no
// failure mode beyond invalid input.
package availability

import (
	"sort"
	"time"

	"github.com/consultdesk/booking-engine/internal/schedule"
)

// Slot is an ephemeral bookable window, always exactly one slot duration wide.
type Slot struct {
	Date  string `json:"date"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// HoldInfo is the view of an existing hold the calculator needs.
type HoldInfo struct {
	StartTime string
	SessionID string
	ExpiresAt time.Time
}

// BookingInfo is the view of a scheduled appointment the calculator needs.
type BookingInfo struct {
	StartTime string
}

// Calculator derives bookable slots. The clock is injectable for tests.
type Calculator struct {
	nowFunc func() time.Time
}

// NewCalculator creates a calculator using the wall clock.
func NewCalculator() *Calculator {
	return &Calculator{nowFunc: time.Now}
}

// NewCalculatorAt creates a calculator with a fixed clock, for tests and
// snapshot-consistent recomputation.
func NewCalculatorAt(now func() time.Time) *Calculator {
	return &Calculator{nowFunc: now}
}

// interval is a half-open [start, end) range in minutes since midnight.
type interval struct {
	start, end int
}

// ComputeSlots returns the ordered bookable slots for date. Slots already
// taken by a scheduled appointment, or held by a session other than
// sessionID, are excluded; the caller's own active hold still appears so a
// UI can render the current selection.
func (c *Calculator) ComputeSlots(date string, cfg *schedule.Config, holds []HoldInfo, booked []BookingInfo, sessionID string) ([]Slot, error) {
	loc := cfg.Location()
	day, err := schedule.ParseDate(date, loc)
	if err != nil {
		return nil, err
	}

	now := c.nowFunc().In(loc)
	today := now.Format("2006-01-02")
	if date < today {
		return nil, nil
	}
	if cfg.IsDateBlocked(date) {
		return nil, nil
	}

	hours := cfg.WeeklyHours.ForWeekday(day.Weekday())
	if !hours.Enabled {
		return nil, nil
	}
	dayStart, err := schedule.ParseClock(hours.Start)
	if err != nil {
		return nil, err
	}
	dayEnd, err := schedule.ParseClock(hours.End)
	if err != nil {
		return nil, err
	}

	open := []interval{{start: dayStart, end: dayEnd}}
	for _, b := range cfg.BreakWindows {
		open = subtract(open, toInterval(b.Start, b.End))
	}
	for _, r := range cfg.BlockedTimeRanges {
		if r.Date == date {
			open = subtract(open, toInterval(r.Start, r.End))
		}
	}

	taken := make(map[string]bool, len(booked)+len(holds))
	for _, b := range booked {
		taken[b.StartTime] = true
	}
	for _, h := range holds {
		if h.ExpiresAt.After(now) && h.SessionID != sessionID {
			taken[h.StartTime] = true
		}
	}

	var minuteOfDay int
	if date == today {
		minuteOfDay = now.Hour()*60 + now.Minute()
	}

	var slots []Slot
	width := cfg.SlotDurationMinutes
	for _, iv := range open {
		for start := iv.start; start+width <= iv.end; start += width {
			if date == today && start <= minuteOfDay {
				continue
			}
			startClock := schedule.FormatClock(start)
			if taken[startClock] {
				continue
			}
			slots = append(slots, Slot{
				Date:  date,
				Start: startClock,
				End:   schedule.FormatClock(start + width),
			})
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Start < slots[j].Start })
	return slots, nil
}

func toInterval(start, end string) interval {
	s, err := schedule.ParseClock(start)
	if err != nil {
		return interval{}
	}
	e, err := schedule.ParseClock(end)
	if err != nil {
		return interval{}
	}
	return interval{start: s, end: e}
}

// subtract removes cut from every interval in set. Overlapping cuts compose
// naturally: subtracting an already-removed range is a no-op.
func subtract(set []interval, cut interval) []interval {
	if cut.start >= cut.end {
		return set
	}
	var out []interval
	for _, iv := range set {
		if cut.end <= iv.start || cut.start >= iv.end {
			out = append(out, iv)
			continue
		}
		if cut.start > iv.start {
			out = append(out, interval{start: iv.start, end: cut.start})
		}
		if cut.end < iv.end {
			out = append(out, interval{start: cut.end, end: iv.end})
		}
	}
	return out
}
