package popup

import (
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"

	"focuspilot/internal/badge"
	"focuspilot/internal/ipc"
	"focuspilot/internal/model"
	"focuspilot/internal/timer"
)

// display is what one frame of the popup shows.
type display struct {
	Title   string
	Clock   string
	Running bool
	Border  tcell.Color
}

// view holds the last state heard from the daemon. The countdown between
// notices is derived locally.
type view struct {
	mu       sync.Mutex
	state    model.TimerState
	settings model.Settings
	policy   timer.BoundaryPolicy
	badge    badge.Badge
	alert    string
}

func newView(status ipc.StatusData) *view {
	v := &view{
		state:    status.Timer,
		settings: status.Settings,
		policy:   timer.PolicyFor(status.AutoContinue),
		badge:    status.Badge,
	}
	if status.ShowInactivityAlert {
		v.alert = defaultAlertMessage
	}
	return v
}

// apply takes a notice from the daemon and reports whether an alert must be shown.
func (v *view) apply(n ipc.Notice) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch n.Type {
	case ipc.NoticeState:
		if n.Timer != nil {
			v.state = *n.Timer
		}
		if n.Badge != nil {
			v.badge = *n.Badge
		}
	case ipc.NoticeInactivityAlert:
		v.alert = n.Message
		if v.alert == "" {
			v.alert = defaultAlertMessage
		}
		return true
	}
	return false
}

func (v *view) setState(st model.TimerState) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = st
	v.badge = badge.RenderState(st)
}

func (v *view) current() model.TimerState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// pendingAlert returns the alert message, if one is waiting.
func (v *view) pendingAlert() (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.alert, v.alert != ""
}

func (v *view) clearAlert() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.alert = ""
}

func (v *view) frame(now time.Time) display {
	v.mu.Lock()
	defer v.mu.Unlock()
	st := timer.Reconcile(v.state, v.settings, now, v.policy)
	b := v.badge
	if st.IsRunning != v.state.IsRunning || st.IsWorkTime != v.state.IsWorkTime {
		b = badge.RenderState(st)
	}
	return display{
		Title:   phaseTitle(st),
		Clock:   badge.FormatClock(st.TimeLeft),
		Running: st.IsRunning,
		Border:  hexColor(b.Color),
	}
}

func phaseTitle(st model.TimerState) string {
	if st.IsWorkTime {
		return "Work Time"
	}
	return "Break Time"
}

// hexColor converts a "#rrggbb" badge color for the terminal.
func hexColor(hex string) tcell.Color {
	c, err := colorful.Hex(hex)
	if err != nil {
		return tcell.ColorDefault
	}
	r, g, b := c.RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}
