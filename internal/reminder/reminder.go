// Package reminder nudges the user back to work when no session is running
// during their scheduled hours.
package reminder

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"focuspilot/internal/alarm"
	"focuspilot/internal/event"
	"focuspilot/internal/model"
	"focuspilot/internal/schedule"
)

const (
	AlertTitle = "Time to Focus!"

	NotificationTitle   = "Focus Co-Pilot Inactivity Alert"
	NotificationMessage = "You've been inactive for a while. Start your work session now!"
)

var messages = []string{
	"It looks like you're taking a break. Ready to get back to focused work?",
	"Don't let your focus fade away! Time to restart your Pomodoro timer.",
	"Remember your goals! Let's get back to focused work.",
	"Your productivity is waiting. Start your work session now!",
	"Taking too long of a break can disrupt your flow. Ready to focus again?",
	"Time flies when you're not tracking it. Let's restart your work session.",
	"Keep the momentum going! It's time to focus again.",
	"A small action now leads to big results later. Start your timer!",
	"Staying on track means staying on schedule. Ready to focus?",
	"Your future self will thank you for focusing now. Let's start!",
}

// Messages returns the motivational messages alerts pick from.
func Messages() []string {
	return append([]string(nil), messages...)
}

type Repository interface {
	TimerState(ctx context.Context) model.TimerState
	Settings(ctx context.Context) model.Settings
	AlertSettings(ctx context.Context) (model.AlertSettings, bool)
	SeedAlertSettings(ctx context.Context)
	SetShowInactivityAlert(ctx context.Context, show bool)
	Record(ctx context.Context, e event.Event)
}

type Alarms interface {
	CreateOnce(name string, delay time.Duration)
	Clear(name string) bool
}

// Raiser puts the alert in front of the user. It reports false when nothing
// could be shown.
type Raiser interface {
	Raise(ctx context.Context, message string) bool
}

// Notifier is the fallback when no foreground UI could be raised.
type Notifier interface {
	Notify(ctx context.Context, n event.Notification) error
}

type Scheduler struct {
	repo     Repository
	alarms   Alarms
	raiser   Raiser
	notifier Notifier
	now      func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

func NewScheduler(repo Repository, alarms Alarms, raiser Raiser, notifier Notifier) *Scheduler {
	return &Scheduler{
		repo:     repo,
		alarms:   alarms,
		raiser:   raiser,
		notifier: notifier,
		now:      time.Now,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetClock and SetRand make the scheduler deterministic in tests.
func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }
func (s *Scheduler) SetRand(rng *rand.Rand)       { s.rng = rng }

// Setup seeds the alert settings on first run and arms the first reminder.
func (s *Scheduler) Setup(ctx context.Context) {
	s.repo.SeedAlertSettings(ctx)
	s.ScheduleNext(ctx)
}

// ScheduleNext arms the reminder alarm at a random delay within the configured
// interval, or clears it when reminders are disabled.
func (s *Scheduler) ScheduleNext(ctx context.Context) {
	alerts, _ := s.repo.AlertSettings(ctx)
	s.alarms.Clear(alarm.InactivityAlert)
	if !alerts.Enabled {
		log.Println("Inactivity reminders disabled, not scheduling")
		return
	}
	s.mu.Lock()
	delay := schedule.RandomInterval(s.rng, alerts.MinInterval, alerts.MaxInterval)
	s.mu.Unlock()
	s.alarms.CreateOnce(alarm.InactivityAlert, delay)
	log.Printf("Next inactivity check in %s", delay.Round(time.Second))
}

// Rearm reschedules after the alert settings changed.
func (s *Scheduler) Rearm(ctx context.Context) {
	s.ScheduleNext(ctx)
}

// Check raises an alert when no session is running, reminders are on and now
// is within the work schedule. The next check is always scheduled.
func (s *Scheduler) Check(ctx context.Context) bool {
	defer s.ScheduleNext(ctx)

	if s.repo.TimerState(ctx).IsRunning {
		return false
	}
	alerts, _ := s.repo.AlertSettings(ctx)
	if !alerts.Enabled {
		return false
	}
	now := s.now()
	week := s.repo.Settings(ctx).Schedule
	if !schedule.IsWithin(week, now) {
		if next, ok := schedule.Next(week, now); ok {
			log.Printf("Outside work schedule, next window starts %s", next.Format("Mon 15:04"))
		}
		return false
	}

	msg := s.Message()
	s.repo.SetShowInactivityAlert(ctx, true)
	s.repo.Record(ctx, event.Event{
		Timestamp: now,
		Type:      event.EventTypeReminder,
		Notes:     msg,
	})

	if s.raiser != nil && s.raiser.Raise(ctx, msg) {
		log.Printf("Inactivity alert shown: %s", msg)
		return true
	}
	log.Println("Warning: no popup to show the inactivity alert, falling back to a notification")
	if s.notifier == nil {
		return true
	}
	err := s.notifier.Notify(ctx, event.Notification{Title: NotificationTitle, Message: NotificationMessage})
	if err != nil {
		log.Printf("Error showing inactivity notification: %v", err)
		return true
	}
	s.repo.SetShowInactivityAlert(ctx, false)
	return true
}

// Message picks one of the motivational messages at random.
func (s *Scheduler) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return messages[s.rng.Intn(len(messages))]
}
