// Package schedule answers whether a moment falls inside the user's work
// schedule and picks reminder delays.
package schedule

import (
	"fmt"
	"math/rand"
	"time"

	"focuspilot/internal/model"
)

// ClockString formats t as zero-padded "HH:MM" in t's location.
func ClockString(t time.Time) string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// IsWithin reports whether t falls inside an enabled range of its weekday.
// Times compare as "HH:MM" strings, inclusive at both ends.
func IsWithin(week model.WeekSchedule, t time.Time) bool {
	day, ok := week[model.WeekdayName(t.Weekday())]
	if !ok || !day.Enabled {
		return false
	}
	now := ClockString(t)
	for _, r := range day.TimeRanges {
		if now >= r.StartTime && now <= r.EndTime {
			return true
		}
	}
	return false
}

// ValidateRange checks a range is two well-formed clock values in order.
func ValidateRange(r model.TimeRange) error {
	start, err := time.Parse("15:04", r.StartTime)
	if err != nil || len(r.StartTime) != 5 {
		return fmt.Errorf("invalid start time %q, want HH:MM", r.StartTime)
	}
	end, err := time.Parse("15:04", r.EndTime)
	if err != nil || len(r.EndTime) != 5 {
		return fmt.Errorf("invalid end time %q, want HH:MM", r.EndTime)
	}
	if end.Before(start) {
		return fmt.Errorf("range %s-%s ends before it starts", r.StartTime, r.EndTime)
	}
	return nil
}

// Validate checks every day name and range of week. An enabled day needs at
// least one range.
func Validate(week model.WeekSchedule) error {
	for name, day := range week {
		if !model.IsWeekday(name) {
			return fmt.Errorf("unknown weekday %q", name)
		}
		if day.Enabled && len(day.TimeRanges) == 0 {
			return fmt.Errorf("%s is enabled but has no time ranges", name)
		}
		for _, r := range day.TimeRanges {
			if err := ValidateRange(r); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
	}
	return nil
}

// RandomInterval picks a delay uniformly in [minMinutes, maxMinutes] at
// millisecond resolution. Bounds given in the wrong order are swapped.
func RandomInterval(rng *rand.Rand, minMinutes, maxMinutes int) time.Duration {
	if maxMinutes < minMinutes {
		minMinutes, maxMinutes = maxMinutes, minMinutes
	}
	lo := int64(minMinutes) * int64(time.Minute/time.Millisecond)
	hi := int64(maxMinutes) * int64(time.Minute/time.Millisecond)
	ms := lo
	if hi > lo {
		ms += rng.Int63n(hi - lo + 1)
	}
	return time.Duration(ms) * time.Millisecond
}

// Next returns the start of the next enabled range strictly after t, searching
// one week ahead.
func Next(week model.WeekSchedule, t time.Time) (time.Time, bool) {
	for offset := 0; offset <= 7; offset++ {
		day := t.AddDate(0, 0, offset)
		ds, ok := week[model.WeekdayName(day.Weekday())]
		if !ok || !ds.Enabled {
			continue
		}
		var best time.Time
		for _, r := range ds.TimeRanges {
			start, err := time.ParseInLocation("15:04", r.StartTime, t.Location())
			if err != nil {
				continue
			}
			at := time.Date(day.Year(), day.Month(), day.Day(), start.Hour(), start.Minute(), 0, 0, t.Location())
			if !at.After(t) {
				continue
			}
			if best.IsZero() || at.Before(best) {
				best = at
			}
		}
		if !best.IsZero() {
			return best, true
		}
	}
	return time.Time{}, false
}
