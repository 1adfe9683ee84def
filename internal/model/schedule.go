package model

import "time"

// TimeRange is an inclusive same-day window of "HH:MM" clock strings.
type TimeRange struct {
	StartTime string `json:"startTime" yaml:"startTime"`
	EndTime   string `json:"endTime" yaml:"endTime"`
}

// DaySchedule lists the work windows of one weekday.
type DaySchedule struct {
	Enabled    bool        `json:"enabled" yaml:"enabled"`
	TimeRanges []TimeRange `json:"timeRanges" yaml:"timeRanges"`
}

// WeekSchedule maps lower-case weekday names to their schedule.
type WeekSchedule map[string]DaySchedule

// Weekdays is indexed by time.Weekday.
var Weekdays = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

func WeekdayName(day time.Weekday) string {
	return Weekdays[int(day)%7]
}

// IsWeekday reports whether name is one of Weekdays.
func IsWeekday(name string) bool {
	for _, day := range Weekdays {
		if day == name {
			return true
		}
	}
	return false
}

// DefaultTimeRange is what a newly added range starts with.
var DefaultTimeRange = TimeRange{StartTime: "09:00", EndTime: "17:00"}

func DefaultWeekSchedule() WeekSchedule {
	week := make(WeekSchedule, len(Weekdays))
	for i, name := range Weekdays {
		day := time.Weekday(i)
		week[name] = DaySchedule{
			Enabled:    day != time.Saturday && day != time.Sunday,
			TimeRanges: []TimeRange{DefaultTimeRange},
		}
	}
	return week
}
