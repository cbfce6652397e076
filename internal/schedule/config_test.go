package schedule

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	min, err := ParseClock("09:30")
	if err != nil {
		t.Fatalf("ParseClock: %v", err)
	}
	if min != 570 {
		t.Errorf("expected 570 minutes, got %d", min)
	}

	if _, err := ParseClock("25:00"); err == nil {
		t.Error("expected error for hour out of range")
	}
	if _, err := ParseClock("not-a-time"); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestFormatClock(t *testing.T) {
	if got := FormatClock(570); got != "09:30" {
		t.Errorf("expected 09:30, got %s", got)
	}
	if got := FormatClock(0); got != "00:00" {
		t.Errorf("expected 00:00, got %s", got)
	}
}

func TestForWeekday(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.WeeklyHours.ForWeekday(time.Monday).Enabled {
		t.Error("expected Monday enabled by default")
	}
	if cfg.WeeklyHours.ForWeekday(time.Sunday).Enabled {
		t.Error("expected Sunday disabled by default")
	}
}

func TestValidateAcceptsDefault(t *testing.T) {
	cfg := DefaultConfig()
	warnings, err := cfg.Validate(time.Now())
	if err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("default config should produce no warnings, got %v", warnings)
	}
}

func TestValidateRejectsInvertedHours(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WeeklyHours.Tuesday = DayHours{Enabled: true, Start: "17:00", End: "09:00"}

	if _, err := cfg.Validate(time.Now()); err == nil {
		t.Fatal("expected error for start >= end")
	}
}

func TestValidateRejectsUnsupportedDuration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SlotDurationMinutes = 25

	_, err := cfg.Validate(time.Now())
	if err == nil {
		t.Fatal("expected error for unsupported duration")
	}
	cerr, ok := err.(*ConfigError)
	if !ok {
		t.Fatalf("expected *ConfigError, got %T", err)
	}
	if cerr.Field != "slot_duration_minutes" {
		t.Errorf("unexpected field %q", cerr.Field)
	}
}

func TestValidateWarnsOnPastBlockedRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlockedTimeRanges = []BlockedTimeRange{
		{Date: "2020-01-06", Start: "09:00", End: "10:00", Reason: "old"},
	}

	warnings, err := cfg.Validate(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("past-dated range must not be a hard error: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", warnings)
	}
}

func TestValidateWarnsOnZeroSlotDay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SlotDurationMinutes = 120
	cfg.WeeklyHours.Wednesday = DayHours{Enabled: true, Start: "09:00", End: "10:00"}

	warnings, err := cfg.Validate(time.Now())
	if err != nil {
		t.Fatalf("zero-slot day is valid: %v", err)
	}
	found := false
	for _, w := range warnings {
		if w == "wednesday fits zero 120-minute slots" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected zero-slot warning, got %v", warnings)
	}
}

func TestIsDateBlocked(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlockedDates = []BlockedDate{{Date: "2026-09-07", Reason: "conference"}}

	if !cfg.IsDateBlocked("2026-09-07") {
		t.Error("expected date to be blocked")
	}
	if cfg.IsDateBlocked("2026-09-08") {
		t.Error("expected date to be open")
	}
}
