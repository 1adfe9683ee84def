package timer

import (
	"time"

	"focuspilot/internal/model"
)

// BoundaryPolicy decides whether a phase that ends while unobserved starts
// the next phase running or paused.
type BoundaryPolicy int

const (
	// PauseAtBoundary stops the timer at the start of the next phase.
	PauseAtBoundary BoundaryPolicy = iota
	// ContinueAtBoundary keeps the next phase running.
	ContinueAtBoundary
)

func PolicyFor(autoContinue bool) BoundaryPolicy {
	if autoContinue {
		return ContinueAtBoundary
	}
	return PauseAtBoundary
}

// ElapsedSeconds returns whole seconds between lastUpdated (ms) and now.
// A lastUpdated in the future counts as zero.
func ElapsedSeconds(lastUpdated int64, now time.Time) int {
	delta := now.UnixMilli() - lastUpdated
	if delta <= 0 {
		return 0
	}
	return int(delta / 1000)
}

// Reconcile returns state as if it had ticked continuously since LastUpdated.
//
// A running timer keeps its sub-second remainder: LastUpdated advances by
// exactly the whole seconds consumed, so reconciling the result again at the
// same instant is a no-op.
func Reconcile(state model.TimerState, settings model.Settings, now time.Time, policy BoundaryPolicy) model.TimerState {
	if state.TimeLeft < 0 {
		state.TimeLeft = 0
	}
	if !state.IsRunning {
		return state
	}

	elapsed := ElapsedSeconds(state.LastUpdated, now)
	newTimeLeft := state.TimeLeft - elapsed
	if newTimeLeft > 0 {
		state.TimeLeft = newTimeLeft
		state.LastUpdated += int64(elapsed) * 1000
		return state
	}
	return completePhase(state, settings, now, policy)
}

// completePhase flips to the next phase with its full configured duration.
func completePhase(state model.TimerState, settings model.Settings, now time.Time, policy BoundaryPolicy) model.TimerState {
	next := state.Phase().Other()
	return model.TimerState{
		TimeLeft:    settings.PhaseSeconds(next),
		IsRunning:   policy == ContinueAtBoundary,
		IsWorkTime:  next == model.PhaseWork,
		LastUpdated: now.UnixMilli(),
	}
}
