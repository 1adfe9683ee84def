// Package state reads and writes the persisted records of the key/value store.
// Reads never fail: absent or unreadable records fall back to defaults.
// Timer writes are fire-and-forget; failures are logged and the next read
// reconstructs the last good value.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"focuspilot/internal/event"
	"focuspilot/internal/model"
	"focuspilot/internal/storage"
)

// Store keys
const (
	KeyTimerState          = "timerState"
	KeySettings            = "settings"
	KeyAlertSettings       = "alertSettings"
	KeyShowInactivityAlert = "showInactivityAlert"
)

type Repository struct {
	store    storage.Storage
	defaults model.Settings
	alerts   model.AlertSettings
	now      func() time.Time
}

// NewRepository wraps store. defaults and alerts are used when a record is absent or malformed.
func NewRepository(store storage.Storage, defaults model.Settings, alerts model.AlertSettings) *Repository {
	return &Repository{
		store:    store,
		defaults: defaults.Normalize(model.DefaultSettings()),
		alerts:   alerts.Normalize(),
		now:      time.Now,
	}
}

// SetDefaults replaces the fallbacks after a configuration reload.
func (r *Repository) SetDefaults(defaults model.Settings, alerts model.AlertSettings) {
	r.defaults = defaults.Normalize(model.DefaultSettings())
	r.alerts = alerts.Normalize()
}

// SetClock overrides the time source used for first-run initialization.
func (r *Repository) SetClock(now func() time.Time) {
	r.now = now
}

// TimerState returns the persisted timer, initializing it to the default
// work phase on first run.
func (r *Repository) TimerState(ctx context.Context) model.TimerState {
	var ts model.TimerState
	found, err := r.read(ctx, KeyTimerState, &ts)
	if err != nil {
		log.Printf("Warning: failed to read timer state, using default: %v", err)
		return model.NewTimerState(r.Settings(ctx), r.now())
	}
	if !found {
		ts = model.NewTimerState(r.Settings(ctx), r.now())
		r.SaveTimerState(ctx, ts)
		return ts
	}
	if ts.TimeLeft < 0 {
		ts.TimeLeft = 0
	}
	return ts
}

func (r *Repository) SaveTimerState(ctx context.Context, ts model.TimerState) {
	if err := r.write(ctx, KeyTimerState, ts); err != nil {
		log.Printf("Warning: failed to persist timer state: %v", err)
	}
}

// UpdateTimerState applies fn atomically to the stored timer. On storage
// failure fn's result is still returned, unpersisted, with ok=false.
func (r *Repository) UpdateTimerState(ctx context.Context, fn func(model.TimerState) model.TimerState) (model.TimerState, bool) {
	// Read outside the transaction; the store may hold a single connection.
	initial := model.NewTimerState(r.Settings(ctx), r.now())
	var result model.TimerState
	applied := false
	_, err := r.store.Update(ctx, KeyTimerState, func(current []byte, found bool) ([]byte, error) {
		ts := initial
		if found {
			if err := json.Unmarshal(current, &ts); err != nil {
				log.Printf("Warning: stored timer state is malformed, resetting: %v", err)
				ts = initial
			}
		}
		if ts.TimeLeft < 0 {
			ts.TimeLeft = 0
		}
		result = fn(ts)
		applied = true
		return json.Marshal(result)
	})
	if err != nil {
		log.Printf("Warning: failed to update timer state: %v", err)
		if !applied {
			result = fn(r.TimerState(ctx))
		}
		return result, false
	}
	return result, true
}

// Settings returns the user settings with missing fields defaulted.
func (r *Repository) Settings(ctx context.Context) model.Settings {
	settings := r.defaults
	settings.Schedule = nil
	found, err := r.read(ctx, KeySettings, &settings)
	if err != nil {
		log.Printf("Warning: failed to read settings, using defaults: %v", err)
		return r.defaults
	}
	if !found {
		return r.defaults
	}
	if settings.Schedule == nil {
		settings.Schedule = r.defaults.Schedule
	}
	return settings.Normalize(r.defaults)
}

func (r *Repository) SaveSettings(ctx context.Context, settings model.Settings) error {
	return r.write(ctx, KeySettings, settings.Normalize(r.defaults))
}

// AlertSettings returns the stored alert settings and whether they were present.
func (r *Repository) AlertSettings(ctx context.Context) (model.AlertSettings, bool) {
	alerts := r.alerts
	found, err := r.read(ctx, KeyAlertSettings, &alerts)
	if err != nil {
		log.Printf("Warning: failed to read alert settings, using defaults: %v", err)
		return r.alerts, false
	}
	if !found {
		return r.alerts, false
	}
	return alerts.Normalize(), true
}

// SeedAlertSettings stores the default alert settings if none exist yet.
func (r *Repository) SeedAlertSettings(ctx context.Context) {
	_, err := r.store.Update(ctx, KeyAlertSettings, func(current []byte, found bool) ([]byte, error) {
		if found {
			return current, nil
		}
		log.Printf("Seeding default alert settings: %+v", r.alerts)
		return json.Marshal(r.alerts)
	})
	if err != nil {
		log.Printf("Warning: failed to seed alert settings: %v", err)
	}
}

func (r *Repository) SaveAlertSettings(ctx context.Context, alerts model.AlertSettings) error {
	return r.write(ctx, KeyAlertSettings, alerts.Normalize())
}

func (r *Repository) ShowInactivityAlert(ctx context.Context) bool {
	var show bool
	if _, err := r.read(ctx, KeyShowInactivityAlert, &show); err != nil {
		log.Printf("Warning: failed to read inactivity alert flag: %v", err)
		return false
	}
	return show
}

func (r *Repository) SetShowInactivityAlert(ctx context.Context, show bool) {
	if err := r.write(ctx, KeyShowInactivityAlert, show); err != nil {
		log.Printf("Warning: failed to persist inactivity alert flag: %v", err)
	}
}

// Record appends e to the history log.
func (r *Repository) Record(ctx context.Context, e event.Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = r.now()
	}
	if _, err := r.store.SaveEvent(ctx, e); err != nil {
		log.Printf("Error saving event (Type: %s, Tag: %s): %v", e.Type, e.Tag, err)
	}
}

func (r *Repository) read(ctx context.Context, key string, into interface{}) (bool, error) {
	raw, err := r.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (r *Repository) write(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return r.store.Put(ctx, key, raw)
}
