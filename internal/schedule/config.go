// Package schedule holds the practice's bookable calendar configuration:
// recurring weekly hours, slot duration, recurring breaks, and one-off
// blocked dates or time ranges.
package schedule

import (
	"fmt"
	"time"
)

// DayHours represents the working hours for a single weekday.
type DayHours struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"` // "09:00" in 24-hour format
	End     string `json:"end"`   // "17:00" in 24-hour format
}

// WeeklyHours maps day names to their hours.
type WeeklyHours struct {
	Monday    DayHours `json:"monday"`
	Tuesday   DayHours `json:"tuesday"`
	Wednesday DayHours `json:"wednesday"`
	Thursday  DayHours `json:"thursday"`
	Friday    DayHours `json:"friday"`
	Saturday  DayHours `json:"saturday"`
	Sunday    DayHours `json:"sunday"`
}

// ForWeekday returns the configured hours for a weekday.
func (w WeeklyHours) ForWeekday(day time.Weekday) DayHours {
	switch day {
	case time.Monday:
		return w.Monday
	case time.Tuesday:
		return w.Tuesday
	case time.Wednesday:
		return w.Wednesday
	case time.Thursday:
		return w.Thursday
	case time.Friday:
		return w.Friday
	case time.Saturday:
		return w.Saturday
	default:
		return w.Sunday
	}
}

// BreakWindow is a recurring non-bookable window applied to every enabled day.
type BreakWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Label string `json:"label,omitempty"`
}

// BlockedDate blocks an entire calendar day regardless of weekly hours.
type BlockedDate struct {
	Date   string `json:"date"` // "2006-01-02"
	Reason string `json:"reason,omitempty"`
}

// BlockedTimeRange blocks a sub-range on an otherwise open day.
type BlockedTimeRange struct {
	Date   string `json:"date"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Reason string `json:"reason,omitempty"`
}

// SupportedSlotDurations lists the slot widths the admin may choose, in minutes.
var SupportedSlotDurations = []int{15, 30, 45, 60, 90, 120}

// Config is the full schedule configuration. It is persisted as a single
// versioned document and replaced atomically on every admin update; readers
// always work from an immutable snapshot.
type Config struct {
	Version             int64              `json:"version"`
	Timezone            string             `json:"timezone"` // e.g. "Europe/Madrid"
	WeeklyHours         WeeklyHours        `json:"weekly_hours"`
	SlotDurationMinutes int                `json:"slot_duration_minutes"`
	BreakWindows        []BreakWindow      `json:"break_windows,omitempty"`
	BlockedDates        []BlockedDate      `json:"blocked_dates,omitempty"`
	BlockedTimeRanges   []BlockedTimeRange `json:"blocked_time_ranges,omitempty"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// DefaultConfig returns the schedule used before the admin has saved one:
// weekdays 09:00-17:00, 30-minute slots, one lunch break.
func DefaultConfig() *Config {
	weekday := DayHours{Enabled: true, Start: "09:00", End: "17:00"}
	return &Config{
		Version:             0,
		Timezone:            "Europe/Madrid",
		SlotDurationMinutes: 30,
		WeeklyHours: WeeklyHours{
			Monday:    weekday,
			Tuesday:   weekday,
			Wednesday: weekday,
			Thursday:  weekday,
			Friday:    weekday,
			Saturday:  DayHours{Enabled: false},
			Sunday:    DayHours{Enabled: false},
		},
		BreakWindows: []BreakWindow{
			{Start: "13:00", End: "14:00", Label: "Lunch"},
		},
	}
}

// Location resolves the configured timezone, falling back to UTC on a bad name.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsDateBlocked reports whether the whole day is blocked.
func (c *Config) IsDateBlocked(date string) bool {
	for _, b := range c.BlockedDates {
		if b.Date == date {
			return true
		}
	}
	return false
}

// ParseClock converts "HH:MM" to minutes since midnight.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("schedule: invalid clock time %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("schedule: invalid clock time %q", s)
	}
	return h*60 + m, nil
}

// FormatClock converts minutes since midnight back to "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseDate parses a calendar day in the engine's canonical "2006-01-02" form.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule: invalid date %q", s)
	}
	return t, nil
}
