package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"focuspilot/internal/badge"
	"focuspilot/internal/model"
)

// DefaultSocketPath lives in the user's runtime dir when there is one.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "focuspilot.sock")
	}
	return "/tmp/focuspilot.sock"
}

// ErrUnknownMessage is returned by Decode for a type it does not know.
var ErrUnknownMessage = errors.New("ipc: unknown message type")

type Kind string

// --- Message Kinds (Constants) ---

const (
	KindTimerUpdate     Kind = "TIMER_UPDATE"
	KindPlaySound       Kind = "PLAY_SOUND"
	KindDisableBadge    Kind = "DISABLE_BADGE"
	KindRestartWork     Kind = "RESTART_WORK"
	KindRestartBreak    Kind = "RESTART_BREAK"
	KindOffscreenClosed Kind = "OFFSCREEN_CLOSED"

	KindStart             Kind = "START"
	KindStop              Kind = "STOP"
	KindGetStatus         Kind = "GET_STATUS"
	KindPing              Kind = "PING"
	KindSubscribe         Kind = "SUBSCRIBE"
	KindDismissAlert      Kind = "DISMISS_ALERT"
	KindSaveSettings      Kind = "SAVE_SETTINGS"
	KindSaveAlertSettings Kind = "SAVE_ALERT_SETTINGS"
)

// Message is one request to the daemon. The set of implementations is closed.
type Message interface {
	Kind() Kind
	isMessage()
}

// TimerUpdate reports the state a UI is showing so the badge can follow it.
type TimerUpdate struct {
	TimeLeft   int  `json:"timeLeft"`
	IsWorkTime bool `json:"isWorkTime"`
	IsRunning  bool `json:"isRunning"`
}

type PlaySound struct {
	TimerType string `json:"timerType"` // "work" or "break"
}

type DisableBadge struct{}
type RestartWork struct{}
type RestartBreak struct{}

// OffscreenClosed tells the daemon its sound context went away.
type OffscreenClosed struct {
	Target string `json:"target"`
}

type Start struct{}
type Stop struct{}
type GetStatus struct{}
type Ping struct{}

// Subscribe turns the connection into a stream of Notices.
type Subscribe struct{}

type DismissAlert struct{}

type SaveSettings struct {
	Settings model.Settings `json:"settings"`
}

type SaveAlertSettings struct {
	AlertSettings model.AlertSettings `json:"alertSettings"`
}

func (TimerUpdate) Kind() Kind       { return KindTimerUpdate }
func (PlaySound) Kind() Kind         { return KindPlaySound }
func (DisableBadge) Kind() Kind      { return KindDisableBadge }
func (RestartWork) Kind() Kind       { return KindRestartWork }
func (RestartBreak) Kind() Kind      { return KindRestartBreak }
func (OffscreenClosed) Kind() Kind   { return KindOffscreenClosed }
func (Start) Kind() Kind             { return KindStart }
func (Stop) Kind() Kind              { return KindStop }
func (GetStatus) Kind() Kind         { return KindGetStatus }
func (Ping) Kind() Kind              { return KindPing }
func (Subscribe) Kind() Kind         { return KindSubscribe }
func (DismissAlert) Kind() Kind      { return KindDismissAlert }
func (SaveSettings) Kind() Kind      { return KindSaveSettings }
func (SaveAlertSettings) Kind() Kind { return KindSaveAlertSettings }

func (TimerUpdate) isMessage()       {}
func (PlaySound) isMessage()         {}
func (DisableBadge) isMessage()      {}
func (RestartWork) isMessage()       {}
func (RestartBreak) isMessage()      {}
func (OffscreenClosed) isMessage()   {}
func (Start) isMessage()             {}
func (Stop) isMessage()              {}
func (GetStatus) isMessage()         {}
func (Ping) isMessage()              {}
func (Subscribe) isMessage()         {}
func (DismissAlert) isMessage()      {}
func (SaveSettings) isMessage()      {}
func (SaveAlertSettings) isMessage() {}

// Envelope is the wire form of a Message.
type Envelope struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func Encode(m Message) (Envelope, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode %s: %w", m.Kind(), err)
	}
	return Envelope{Type: m.Kind(), Payload: payload}, nil
}

// Decode returns the Message carried by env.
func Decode(env Envelope) (Message, error) {
	var m Message
	switch env.Type {
	case KindTimerUpdate:
		m = &TimerUpdate{}
	case KindPlaySound:
		m = &PlaySound{}
	case KindDisableBadge:
		m = &DisableBadge{}
	case KindRestartWork:
		m = &RestartWork{}
	case KindRestartBreak:
		m = &RestartBreak{}
	case KindOffscreenClosed:
		m = &OffscreenClosed{}
	case KindStart:
		m = &Start{}
	case KindStop:
		m = &Stop{}
	case KindGetStatus:
		m = &GetStatus{}
	case KindPing:
		m = &Ping{}
	case KindSubscribe:
		m = &Subscribe{}
	case KindDismissAlert:
		m = &DismissAlert{}
	case KindSaveSettings:
		m = &SaveSettings{}
	case KindSaveAlertSettings:
		m = &SaveAlertSettings{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}
	if len(env.Payload) > 0 && string(env.Payload) != "null" {
		if err := json.Unmarshal(env.Payload, m); err != nil {
			return nil, fmt.Errorf("invalid payload for %s: %w", env.Type, err)
		}
	}
	return deref(m), nil
}

// deref returns the value form so handlers can switch on plain types.
func deref(m Message) Message {
	switch v := m.(type) {
	case *TimerUpdate:
		return *v
	case *PlaySound:
		return *v
	case *DisableBadge:
		return *v
	case *RestartWork:
		return *v
	case *RestartBreak:
		return *v
	case *OffscreenClosed:
		return *v
	case *Start:
		return *v
	case *Stop:
		return *v
	case *GetStatus:
		return *v
	case *Ping:
		return *v
	case *Subscribe:
		return *v
	case *DismissAlert:
		return *v
	case *SaveSettings:
		return *v
	case *SaveAlertSettings:
		return *v
	}
	return m
}

// Response represents a response sent back over the socket
type Response struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// OK builds a successful response carrying data (may be nil).
func OK(message string, data interface{}) Response {
	resp := Response{Success: true, Message: message}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Fail("failed to encode response: %v", err)
		}
		resp.Data = raw
	}
	return resp
}

func Fail(format string, args ...interface{}) Response {
	return Response{Success: false, Message: fmt.Sprintf(format, args...)}
}

// DecodeData unmarshals the response payload into v.
func (r Response) DecodeData(v interface{}) error {
	if len(r.Data) == 0 {
		return errors.New("ipc: response has no data")
	}
	return json.Unmarshal(r.Data, v)
}

// RestartResult answers RESTART_WORK and RESTART_BREAK.
type RestartResult struct {
	TimeLeft   int  `json:"timeLeft"`
	IsWorkTime bool `json:"isWorkTime"`
}

// --- Status Response Data ---
type StatusData struct {
	Timer               model.TimerState    `json:"timer"`
	Badge               badge.Badge         `json:"badge"`
	Settings            model.Settings      `json:"settings"`
	AlertSettings       model.AlertSettings `json:"alertSettings"`
	ShowInactivityAlert bool                `json:"showInactivityAlert"`
	NextReminder        *time.Time          `json:"nextReminder,omitempty"`
	WithinSchedule      bool                `json:"withinSchedule"`
	AutoContinue        bool                `json:"autoContinue"`
}

type NoticeKind string

const (
	NoticeState           NoticeKind = "STATE"
	NoticeInactivityAlert NoticeKind = "INACTIVITY_ALERT"
)

// Notice is pushed to subscribers.
type Notice struct {
	Type    NoticeKind        `json:"type"`
	Timer   *model.TimerState `json:"timer,omitempty"`
	Badge   *badge.Badge      `json:"badge,omitempty"`
	Message string            `json:"message,omitempty"`
}
