package schedule

import (
	"fmt"
	"time"
)

// ConfigError describes a rejected schedule configuration.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("schedule: %s: %s", e.Field, e.Msg)
}

// Validate checks the configuration before it is persisted. It returns a
// typed *ConfigError on the first hard failure. Warnings cover conditions
// that are legal but worth surfacing to the admin: a past-dated blocked
// range (harmless leftovers) and an enabled day whose open intervals fit
// zero slots.
func (c *Config) Validate(now time.Time) (warnings []string, err error) {
	if !durationSupported(c.SlotDurationMinutes) {
		return nil, &ConfigError{
			Field: "slot_duration_minutes",
			Msg:   fmt.Sprintf("%d is not a supported slot duration", c.SlotDurationMinutes),
		}
	}

	if _, tzErr := time.LoadLocation(c.Timezone); tzErr != nil {
		return nil, &ConfigError{Field: "timezone", Msg: fmt.Sprintf("unknown timezone %q", c.Timezone)}
	}

	days := map[string]DayHours{
		"monday":    c.WeeklyHours.Monday,
		"tuesday":   c.WeeklyHours.Tuesday,
		"wednesday": c.WeeklyHours.Wednesday,
		"thursday":  c.WeeklyHours.Thursday,
		"friday":    c.WeeklyHours.Friday,
		"saturday":  c.WeeklyHours.Saturday,
		"sunday":    c.WeeklyHours.Sunday,
	}
	for name, d := range days {
		if !d.Enabled {
			continue
		}
		start, end, rerr := parseRange(d.Start, d.End)
		if rerr != nil {
			return nil, &ConfigError{Field: "weekly_hours." + name, Msg: rerr.Error()}
		}
		if end-start < c.SlotDurationMinutes {
			warnings = append(warnings, fmt.Sprintf("%s fits zero %d-minute slots", name, c.SlotDurationMinutes))
		}
	}

	for i, b := range c.BreakWindows {
		if _, _, rerr := parseRange(b.Start, b.End); rerr != nil {
			return nil, &ConfigError{Field: fmt.Sprintf("break_windows[%d]", i), Msg: rerr.Error()}
		}
	}

	loc := c.Location()
	today := now.In(loc).Format("2006-01-02")

	for i, b := range c.BlockedDates {
		if _, derr := ParseDate(b.Date, loc); derr != nil {
			return nil, &ConfigError{Field: fmt.Sprintf("blocked_dates[%d]", i), Msg: derr.Error()}
		}
	}

	for i, r := range c.BlockedTimeRanges {
		if _, derr := ParseDate(r.Date, loc); derr != nil {
			return nil, &ConfigError{Field: fmt.Sprintf("blocked_time_ranges[%d]", i), Msg: derr.Error()}
		}
		if _, _, rerr := parseRange(r.Start, r.End); rerr != nil {
			return nil, &ConfigError{Field: fmt.Sprintf("blocked_time_ranges[%d]", i), Msg: rerr.Error()}
		}
		if r.Date < today {
			warnings = append(warnings, fmt.Sprintf("blocked time range on %s is in the past", r.Date))
		}
	}

	return warnings, nil
}

func parseRange(start, end string) (int, int, error) {
	s, err := ParseClock(start)
	if err != nil {
		return 0, 0, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return 0, 0, err
	}
	if s >= e {
		return 0, 0, fmt.Errorf("start %s must be before end %s", start, end)
	}
	return s, e, nil
}

func durationSupported(minutes int) bool {
	for _, d := range SupportedSlotDurations {
		if d == minutes {
			return true
		}
	}
	return false
}
