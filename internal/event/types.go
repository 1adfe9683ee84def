package event

import "time"

type EventType string

const (
	EventTypePhaseStarted   EventType = "phase_started"
	EventTypePhaseStopped   EventType = "phase_stopped"
	EventTypePhaseRestarted EventType = "phase_restarted"
	EventTypePhaseCompleted EventType = "phase_completed"
	EventTypeReminder       EventType = "reminder_raised"
	EventTypeAppStart       EventType = "app_start"
	EventTypeAppStop        EventType = "app_stop"
)

// Event structure to store in DB
type Event struct {
	ID        int64     `db:"id"`
	Timestamp time.Time `db:"timestamp"`
	Type      EventType `db:"type"`
	Value     float64   `db:"value"` // Seconds for phase events (planned or remaining)
	Tag       string    `db:"tag"`   // Phase name for phase events
	Notes     string    `db:"notes"`
}

// Notification is a user-facing message raised by the daemon.
type Notification struct {
	Title   string
	Message string
}
