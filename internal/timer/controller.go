package timer

import (
	"context"
	"fmt"
	"log"
	"time"

	"focuspilot/internal/event"
	"focuspilot/internal/model"
)

// Repository is the slice of the state store the controller needs.
type Repository interface {
	TimerState(ctx context.Context) model.TimerState
	UpdateTimerState(ctx context.Context, fn func(model.TimerState) model.TimerState) (model.TimerState, bool)
	Settings(ctx context.Context) model.Settings
	Record(ctx context.Context, e event.Event)
}

// Presenter renders the timer somewhere visible.
type Presenter interface {
	Present(state model.TimerState)
	Disable()
}

type Options struct {
	Policy    BoundaryPolicy
	Presenter Presenter
	// Chime is asked to play the sound of the phase that just ended.
	Chime func(ended model.Phase)
	Now   func() time.Time
}

// Controller owns the persisted timer. It is driven by a single event loop
// and is not safe for concurrent use.
type Controller struct {
	repo      Repository
	policy    BoundaryPolicy
	presenter Presenter
	chime     func(model.Phase)
	now       func() time.Time
}

func NewController(repo Repository, opts Options) *Controller {
	c := &Controller{
		repo:      repo,
		policy:    opts.Policy,
		presenter: opts.Presenter,
		chime:     opts.Chime,
		now:       opts.Now,
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.presenter == nil {
		c.presenter = nopPresenter{}
	}
	if c.chime == nil {
		c.chime = func(model.Phase) {}
	}
	return c
}

func (c *Controller) SetPolicy(p BoundaryPolicy) {
	c.policy = p
}

// Current is the reconciled timer without persisting anything.
func (c *Controller) Current(ctx context.Context) model.TimerState {
	return Reconcile(c.repo.TimerState(ctx), c.repo.Settings(ctx), c.now(), c.policy)
}

// Wake reconciles the stored timer at a wake-up point and refreshes the badge.
func (c *Controller) Wake(ctx context.Context) model.TimerState {
	current := c.repo.TimerState(ctx)
	if !current.IsRunning {
		c.presenter.Present(current)
		return current
	}

	settings := c.repo.Settings(ctx)
	now := c.now()
	var before model.TimerState
	st, _ := c.repo.UpdateTimerState(ctx, func(ts model.TimerState) model.TimerState {
		before = ts
		return Reconcile(ts, settings, now, c.policy)
	})
	if before.IsRunning && st.IsWorkTime != before.IsWorkTime {
		log.Printf("Phase %s completed while unobserved, now %s (running: %t)", before.Phase(), st.Phase(), st.IsRunning)
		c.repo.Record(ctx, event.Event{
			Timestamp: now,
			Type:      event.EventTypePhaseCompleted,
			Tag:       string(before.Phase()),
			Value:     float64(settings.PhaseSeconds(before.Phase())),
			Notes:     "completed while unobserved",
		})
	}
	c.presenter.Present(st)
	return st
}

// Start resumes the countdown from its current timeLeft.
func (c *Controller) Start(ctx context.Context) model.TimerState {
	settings := c.repo.Settings(ctx)
	now := c.now()
	wasRunning := false
	st, _ := c.repo.UpdateTimerState(ctx, func(ts model.TimerState) model.TimerState {
		if ts.IsRunning {
			wasRunning = true
			return Reconcile(ts, settings, now, c.policy)
		}
		ts.IsRunning = true
		ts.LastUpdated = now.UnixMilli()
		return ts
	})
	if !wasRunning {
		log.Printf("Timer started: %s, %ds left", st.Phase(), st.TimeLeft)
		c.repo.Record(ctx, event.Event{
			Timestamp: now,
			Type:      event.EventTypePhaseStarted,
			Tag:       string(st.Phase()),
			Value:     float64(st.TimeLeft),
		})
	}
	c.presenter.Present(st)
	return st
}

// Stop pauses the countdown, keeping the time already elapsed.
func (c *Controller) Stop(ctx context.Context) model.TimerState {
	settings := c.repo.Settings(ctx)
	now := c.now()
	wasRunning := false
	st, _ := c.repo.UpdateTimerState(ctx, func(ts model.TimerState) model.TimerState {
		if ts.IsRunning {
			wasRunning = true
			ts = Reconcile(ts, settings, now, c.policy)
		}
		ts.IsRunning = false
		ts.LastUpdated = now.UnixMilli()
		return ts
	})
	if wasRunning {
		log.Printf("Timer stopped: %s, %ds left", st.Phase(), st.TimeLeft)
		c.repo.Record(ctx, event.Event{
			Timestamp: now,
			Type:      event.EventTypePhaseStopped,
			Tag:       string(st.Phase()),
			Value:     float64(st.TimeLeft),
		})
	}
	c.presenter.Present(st)
	return st
}

// Restart resets the timer to the full, stopped length of phase.
func (c *Controller) Restart(ctx context.Context, phase model.Phase) model.TimerState {
	settings := c.repo.Settings(ctx)
	now := c.now()
	st, _ := c.repo.UpdateTimerState(ctx, func(model.TimerState) model.TimerState {
		return model.TimerState{
			TimeLeft:    settings.PhaseSeconds(phase),
			IsRunning:   false,
			IsWorkTime:  phase == model.PhaseWork,
			LastUpdated: now.UnixMilli(),
		}
	})
	log.Printf("Timer restarted: %s, %ds", phase, st.TimeLeft)
	c.repo.Record(ctx, event.Event{
		Timestamp: now,
		Type:      event.EventTypePhaseRestarted,
		Tag:       string(phase),
		Value:     float64(st.TimeLeft),
	})
	c.presenter.Present(st)
	return st
}

// Tick advances a running timer by the whole seconds elapsed since its last
// persisted update, keeping the sub-second remainder as Reconcile does. Ticks
// arriving faster than once a second, or right after a Wake, change nothing.
func (c *Controller) Tick(ctx context.Context) model.TimerState {
	current := c.repo.TimerState(ctx)
	if !current.IsRunning {
		return current
	}

	settings := c.repo.Settings(ctx)
	now := c.now()
	completed := false
	var ended model.Phase
	st, _ := c.repo.UpdateTimerState(ctx, func(ts model.TimerState) model.TimerState {
		completed = false
		if !ts.IsRunning {
			return ts
		}
		elapsed := ElapsedSeconds(ts.LastUpdated, now)
		if remaining := ts.TimeLeft - elapsed; remaining > 0 {
			ts.TimeLeft = remaining
			ts.LastUpdated += int64(elapsed) * 1000
			return ts
		}
		completed = true
		ended = ts.Phase()
		return completePhase(ts, settings, now, c.policy)
	})

	if completed {
		log.Printf("Phase %s complete, next: %s (%ds, running: %t)", ended, st.Phase(), st.TimeLeft, st.IsRunning)
		if settings.SoundEnabled {
			c.chime(ended)
		}
		c.repo.Record(ctx, event.Event{
			Timestamp: now,
			Type:      event.EventTypePhaseCompleted,
			Tag:       string(ended),
			Value:     float64(settings.PhaseSeconds(ended)),
			Notes:     fmt.Sprintf("next %s", st.Phase()),
		})
	}
	c.presenter.Present(st)
	return st
}

// Observe shows a state reported by a UI without persisting it.
func (c *Controller) Observe(state model.TimerState) {
	c.presenter.Present(state)
}

func (c *Controller) DisableBadge() {
	c.presenter.Disable()
}

type nopPresenter struct{}

func (nopPresenter) Present(model.TimerState) {}
func (nopPresenter) Disable()                 {}
