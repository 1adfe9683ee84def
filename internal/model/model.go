package model

import "time"

// Phase of a Pomodoro cycle
type Phase string

const (
	PhaseWork  Phase = "work"
	PhaseBreak Phase = "break"
)

// Other returns the phase that follows p.
func (p Phase) Other() Phase {
	if p == PhaseWork {
		return PhaseBreak
	}
	return PhaseWork
}

func PhaseOf(isWorkTime bool) Phase {
	if isWorkTime {
		return PhaseWork
	}
	return PhaseBreak
}

const (
	DefaultWorkMinutes  = 25
	DefaultBreakMinutes = 5

	DefaultAlertMinInterval = 5
	DefaultAlertMaxInterval = 15
)

// TimerState is the single persisted countdown record.
type TimerState struct {
	TimeLeft    int   `json:"timeLeft" yaml:"timeLeft"` // seconds, never negative
	IsRunning   bool  `json:"isRunning" yaml:"isRunning"`
	IsWorkTime  bool  `json:"isWorkTime" yaml:"isWorkTime"`
	LastUpdated int64 `json:"lastUpdated" yaml:"lastUpdated"` // ms since epoch
}

func (s TimerState) Phase() Phase {
	return PhaseOf(s.IsWorkTime)
}

func (s TimerState) UpdatedAt() time.Time {
	return time.UnixMilli(s.LastUpdated)
}

// NewTimerState returns a stopped timer at the start of the work phase.
func NewTimerState(settings Settings, now time.Time) TimerState {
	return TimerState{
		TimeLeft:    settings.PhaseSeconds(PhaseWork),
		IsRunning:   false,
		IsWorkTime:  true,
		LastUpdated: now.UnixMilli(),
	}
}

// Settings is the user configuration written by the settings UI.
type Settings struct {
	WorkTime     int          `json:"workTime" yaml:"workTime"`   // minutes
	BreakTime    int          `json:"breakTime" yaml:"breakTime"` // minutes
	SoundEnabled bool         `json:"soundEnabled" yaml:"soundEnabled"`
	Schedule     WeekSchedule `json:"schedule,omitempty" yaml:"schedule,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{
		WorkTime:     DefaultWorkMinutes,
		BreakTime:    DefaultBreakMinutes,
		SoundEnabled: true,
		Schedule:     DefaultWeekSchedule(),
	}
}

// Normalize replaces non-positive durations with the ones from fallback.
func (s Settings) Normalize(fallback Settings) Settings {
	if s.WorkTime <= 0 {
		s.WorkTime = fallback.WorkTime
	}
	if s.BreakTime <= 0 {
		s.BreakTime = fallback.BreakTime
	}
	if s.WorkTime <= 0 {
		s.WorkTime = DefaultWorkMinutes
	}
	if s.BreakTime <= 0 {
		s.BreakTime = DefaultBreakMinutes
	}
	return s
}

// PhaseSeconds is the configured length of phase in seconds.
func (s Settings) PhaseSeconds(phase Phase) int {
	if phase == PhaseWork {
		if s.WorkTime <= 0 {
			return DefaultWorkMinutes * 60
		}
		return s.WorkTime * 60
	}
	if s.BreakTime <= 0 {
		return DefaultBreakMinutes * 60
	}
	return s.BreakTime * 60
}

// AlertSettings parameterizes the inactivity reminder.
type AlertSettings struct {
	Enabled     bool `json:"enabled" yaml:"enabled"`
	MinInterval int  `json:"minInterval" yaml:"minInterval"` // minutes
	MaxInterval int  `json:"maxInterval" yaml:"maxInterval"` // minutes
}

func DefaultAlertSettings() AlertSettings {
	return AlertSettings{
		Enabled:     true,
		MinInterval: DefaultAlertMinInterval,
		MaxInterval: DefaultAlertMaxInterval,
	}
}

// Normalize fills missing bounds and keeps MinInterval <= MaxInterval.
func (a AlertSettings) Normalize() AlertSettings {
	if a.MinInterval <= 0 {
		a.MinInterval = DefaultAlertMinInterval
	}
	if a.MaxInterval <= 0 {
		a.MaxInterval = DefaultAlertMaxInterval
	}
	if a.MaxInterval < a.MinInterval {
		a.MaxInterval = a.MinInterval
	}
	return a
}
