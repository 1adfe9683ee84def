// Package badge renders the timer as a short status label and pushes it to
// whatever shows it: a status-bar file, connected popups.
package badge

import (
	"fmt"
	"math"
	"sync"

	"focuspilot/internal/model"
)

const (
	ColorWork     = "#ff0000"
	ColorBreak    = "#008000"
	ColorDisabled = "#94a3b8"

	DisabledText = "-"
)

type Icon string

const (
	IconActive   Icon = "active"
	IconDisabled Icon = "disabled"
)

// Badge is one rendered label.
type Badge struct {
	Text  string `json:"text"`
	Color string `json:"color"`
	Icon  Icon   `json:"icon"`
}

// FormatTime shortens a countdown: whole minutes while at least a minute and
// a half remains (or exactly one minute with under 30s), seconds otherwise.
func FormatTime(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	m := int(math.Round(float64(seconds) / 60))
	r := seconds % 60
	if m > 1 || (m == 1 && r < 30) {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%ds", r)
}

// FormatClock renders seconds as MM:SS, the way the popup shows it.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func Render(timeLeft int, isWorkTime, isRunning bool) Badge {
	if !isRunning {
		return Disabled()
	}
	color := ColorBreak
	if isWorkTime {
		color = ColorWork
	}
	return Badge{Text: FormatTime(timeLeft), Color: color, Icon: IconActive}
}

func RenderState(s model.TimerState) Badge {
	return Render(s.TimeLeft, s.IsWorkTime, s.IsRunning)
}

func Disabled() Badge {
	return Badge{Text: DisabledText, Color: ColorDisabled, Icon: IconDisabled}
}

// Sink displays a badge. Errors are logged by the presenter and otherwise ignored.
type Sink interface {
	Show(b Badge) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Badge) error

func (f SinkFunc) Show(b Badge) error { return f(b) }

// Presenter fans badges out to its sinks, skipping repeats of the last one.
type Presenter struct {
	mu    sync.Mutex
	sinks []Sink
	last  *Badge
	logf  func(format string, args ...interface{})
}

func NewPresenter(logf func(format string, args ...interface{}), sinks ...Sink) *Presenter {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Presenter{sinks: sinks, logf: logf}
}

func (p *Presenter) AddSink(s Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinks = append(p.sinks, s)
	if p.last != nil {
		p.show(s, *p.last)
	}
}

func (p *Presenter) Present(s model.TimerState) {
	p.Show(RenderState(s))
}

func (p *Presenter) Disable() {
	p.Show(Disabled())
}

// Show pushes b unless it equals the previously shown badge.
func (p *Presenter) Show(b Badge) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last != nil && *p.last == b {
		return
	}
	p.last = &b
	for _, s := range p.sinks {
		p.show(s, b)
	}
}

// Last returns the most recently shown badge.
func (p *Presenter) Last() (Badge, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return Badge{}, false
	}
	return *p.last, true
}

func (p *Presenter) show(s Sink, b Badge) {
	if err := s.Show(b); err != nil {
		p.logf("Warning: failed to update badge: %v", err)
	}
}
