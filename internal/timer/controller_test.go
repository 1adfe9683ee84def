package timer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focuspilot/internal/event"
	"focuspilot/internal/model"
	"focuspilot/internal/state"
	"focuspilot/internal/storage/memory"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type recordingPresenter struct {
	states   []model.TimerState
	disabled int
}

func (p *recordingPresenter) Present(s model.TimerState) { p.states = append(p.states, s) }
func (p *recordingPresenter) Disable()                   { p.disabled++ }

type harness struct {
	ctx       context.Context
	store     *memory.Store
	repo      *state.Repository
	clock     *fakeClock
	presenter *recordingPresenter
	chimes    []model.Phase
	ctl       *Controller
}

func newHarness(t *testing.T, policy BoundaryPolicy) *harness {
	t.Helper()
	h := &harness{
		ctx:       context.Background(),
		store:     memory.New(),
		clock:     &fakeClock{now: epoch},
		presenter: &recordingPresenter{},
	}
	h.repo = state.NewRepository(h.store, model.DefaultSettings(), model.DefaultAlertSettings())
	h.repo.SetClock(h.clock.Now)
	h.ctl = NewController(h.repo, Options{
		Policy:    policy,
		Presenter: h.presenter,
		Chime:     func(p model.Phase) { h.chimes = append(h.chimes, p) },
		Now:       h.clock.Now,
	})
	return h
}

func (h *harness) events(t *testing.T, types ...event.EventType) []event.Event {
	t.Helper()
	events, err := h.store.GetEvents(h.ctx, epoch.Add(-time.Hour), h.clock.now.Add(time.Hour), types...)
	require.NoError(t, err)
	return events
}

func TestFirstRunInitializesWorkPhase(t *testing.T) {
	h := newHarness(t, PauseAtBoundary)
	st := h.ctl.Wake(h.ctx)
	assert.Equal(t, model.TimerState{TimeLeft: 1500, IsWorkTime: true, LastUpdated: epoch.UnixMilli()}, st)
	assert.Equal(t, st, h.repo.TimerState(h.ctx), "default state is persisted")
}

func TestStartStop(t *testing.T) {
	h := newHarness(t, PauseAtBoundary)

	st := h.ctl.Start(h.ctx)
	assert.True(t, st.IsRunning)
	assert.Equal(t, 1500, st.TimeLeft)

	h.clock.Advance(10 * time.Second)
	st = h.ctl.Stop(h.ctx)
	assert.False(t, st.IsRunning)
	assert.Equal(t, 1490, st.TimeLeft, "elapsed time is kept when stopping")
	assert.Equal(t, h.clock.now.UnixMilli(), st.LastUpdated)

	h.clock.Advance(time.Hour)
	assert.Equal(t, 1490, h.ctl.Current(h.ctx).TimeLeft, "stopped timers do not advance")

	assert.Len(t, h.events(t, event.EventTypePhaseStarted), 1)
	assert.Len(t, h.events(t, event.EventTypePhaseStopped), 1)
}

func TestStartTwiceDoesNotLoseTime(t *testing.T) {
	h := newHarness(t, PauseAtBoundary)
	h.ctl.Start(h.ctx)
	h.clock.Advance(5 * time.Second)
	st := h.ctl.Start(h.ctx)
	assert.Equal(t, 1495, st.TimeLeft)
	assert.Len(t, h.events(t, event.EventTypePhaseStarted), 1)
}

func TestRestart(t *testing.T) {
	h := newHarness(t, PauseAtBoundary)
	require.NoError(t, h.repo.SaveSettings(h.ctx, model.Settings{WorkTime: 50, BreakTime: 10, SoundEnabled: true}))
	h.ctl.Start(h.ctx)

	st := h.ctl.Restart(h.ctx, model.PhaseBreak)
	assert.Equal(t, model.TimerState{TimeLeft: 600, IsRunning: false, IsWorkTime: false, LastUpdated: epoch.UnixMilli()}, st)

	st = h.ctl.Restart(h.ctx, model.PhaseWork)
	assert.Equal(t, 3000, st.TimeLeft)
	assert.True(t, st.IsWorkTime)
}

func TestRestartFallsBackOnMalformedSettings(t *testing.T) {
	h := newHarness(t, PauseAtBoundary)
	require.NoError(t, h.store.Put(h.ctx, state.KeySettings, []byte(`{"workTime":"soon"}`)))
	assert.Equal(t, 1500, h.ctl.Restart(h.ctx, model.PhaseWork).TimeLeft)
	assert.Equal(t, 300, h.ctl.Restart(h.ctx, model.PhaseBreak).TimeLeft)
}

func TestTickDecrements(t *testing.T) {
	h := newHarness(t, PauseAtBoundary)
	h.ctl.Start(h.ctx)
	for i := 0; i < 3; i++ {
		h.clock.Advance(time.Second)
		h.ctl.Tick(h.ctx)
	}
	assert.Equal(t, 1497, h.repo.TimerState(h.ctx).TimeLeft)
	assert.Empty(t, h.chimes)
}

func TestTickIsNoOpWhenStopped(t *testing.T) {
	h := newHarness(t, PauseAtBoundary)
	before := h.ctl.Wake(h.ctx)
	h.clock.Advance(time.Second)
	assert.Equal(t, before, h.ctl.Tick(h.ctx))
	assert.Equal(t, before, h.repo.TimerState(h.ctx))
}

func TestTickCatchesUpMissedSeconds(t *testing.T) {
	h := newHarness(t, PauseAtBoundary)
	h.ctl.Start(h.ctx)
	h.clock.Advance(30 * time.Second)
	assert.Equal(t, 1470, h.ctl.Tick(h.ctx).TimeLeft)
}

func TestLateTickCompletesOnce(t *testing.T) {
	h := newHarness(t, PauseAtBoundary)
	h.repo.SaveTimerState(h.ctx, running(5, true, epoch))
	h.clock.Advance(time.Minute)

	st := h.ctl.Tick(h.ctx)
	assert.False(t, st.IsWorkTime)
	assert.Equal(t, []model.Phase{model.PhaseWork}, h.chimes, "a late tick still announces the completion once")
}

func TestTickAfterWakeDoesNotDoubleCount(t *testing.T) {
	h := newHarness(t, PauseAtBoundary)
	h.ctl.Start(h.ctx)

	h.clock.Advance(time.Second)
	assert.Equal(t, 1499, h.ctl.Wake(h.ctx).TimeLeft)
	h.clock.Advance(2 * time.Millisecond)
	assert.Equal(t, 1499, h.ctl.Tick(h.ctx).TimeLeft, "the second was already counted by Wake")

	h.clock.Advance(time.Second)
	assert.Equal(t, 1498, h.ctl.Tick(h.ctx).TimeLeft)
}

func TestFastTicksFollowRealTime(t *testing.T) {
	h := newHarness(t, PauseAtBoundary)
	h.ctl.Start(h.ctx)
	for i := 0; i < 20; i++ {
		h.clock.Advance(500 * time.Millisecond)
		h.ctl.Tick(h.ctx)
	}
	st := h.repo.TimerState(h.ctx)
	assert.Equal(t, 1490, st.TimeLeft)
	assert.Equal(t, h.clock.now.UnixMilli(), st.LastUpdated)
}

func TestTickKeepsSubSecondRemainder(t *testing.T) {
	h := newHarness(t, PauseAtBoundary)
	h.ctl.Start(h.ctx)
	h.clock.Advance(1700 * time.Millisecond)
	st := h.ctl.Tick(h.ctx)
	assert.Equal(t, 1499, st.TimeLeft)
	assert.Equal(t, epoch.Add(time.Second).UnixMilli(), st.LastUpdated)

	h.clock.Advance(300 * time.Millisecond)
	assert.Equal(t, 1498, h.ctl.Tick(h.ctx).TimeLeft)
}

func TestOneSecondWorkSessionEndToEnd(t *testing.T) {
	h := newHarness(t, PauseAtBoundary)
	h.repo.SaveTimerState(h.ctx, model.TimerState{TimeLeft: 1, IsWorkTime: true, LastUpdated: epoch.UnixMilli()})
	h.ctl.Start(h.ctx)

	h.clock.Advance(time.Second)
	st := h.ctl.Tick(h.ctx)
	assert.False(t, st.IsWorkTime)
	assert.Equal(t, 300, st.TimeLeft)
	assert.False(t, st.IsRunning, "the session pauses at the phase boundary")
	assert.Equal(t, []model.Phase{model.PhaseWork}, h.chimes)

	h.clock.Advance(time.Second)
	h.ctl.Tick(h.ctx)
	assert.Len(t, h.chimes, 1, "the work sound is requested exactly once")

	completed := h.events(t, event.EventTypePhaseCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, "work", completed[0].Tag)

	last := h.presenter.states[len(h.presenter.states)-1]
	assert.Equal(t, st, last)
}

func TestOneSecondSessionContinuePolicy(t *testing.T) {
	h := newHarness(t, ContinueAtBoundary)
	h.repo.SaveTimerState(h.ctx, running(1, false, epoch))
	h.clock.Advance(time.Second)

	st := h.ctl.Tick(h.ctx)
	assert.True(t, st.IsWorkTime)
	assert.True(t, st.IsRunning)
	assert.Equal(t, 1500, st.TimeLeft)
	assert.Equal(t, []model.Phase{model.PhaseBreak}, h.chimes)
}

func TestTickRespectsSoundSetting(t *testing.T) {
	h := newHarness(t, PauseAtBoundary)
	require.NoError(t, h.repo.SaveSettings(h.ctx, model.Settings{WorkTime: 25, BreakTime: 5, SoundEnabled: false}))
	h.repo.SaveTimerState(h.ctx, running(1, true, epoch))
	h.clock.Advance(time.Second)

	st := h.ctl.Tick(h.ctx)
	assert.False(t, st.IsWorkTime)
	assert.Empty(t, h.chimes)
}

func TestWakeReconcilesUnobservedCompletion(t *testing.T) {
	h := newHarness(t, PauseAtBoundary)
	h.repo.SaveTimerState(h.ctx, running(60, true, epoch))
	h.clock.Advance(10 * time.Minute)

	st := h.ctl.Wake(h.ctx)
	assert.False(t, st.IsWorkTime)
	assert.False(t, st.IsRunning)
	assert.Equal(t, 300, st.TimeLeft)
	assert.Equal(t, st, h.repo.TimerState(h.ctx))
	assert.Empty(t, h.chimes, "stale completions are not announced")
	assert.Len(t, h.events(t, event.EventTypePhaseCompleted), 1)
}

func TestWakeFromSeveralCallSitesDoesNotDoubleCount(t *testing.T) {
	h := newHarness(t, PauseAtBoundary)
	h.repo.SaveTimerState(h.ctx, running(600, true, epoch))
	h.clock.Advance(100*time.Second + 400*time.Millisecond)

	first := h.ctl.Wake(h.ctx)
	second := h.ctl.Wake(h.ctx)
	assert.Equal(t, 500, first.TimeLeft)
	assert.Equal(t, first, second)
}

func TestStorageFailureIsNotSurfaced(t *testing.T) {
	h := newHarness(t, PauseAtBoundary)
	h.ctl.Wake(h.ctx)
	h.store.FailWrites = true

	st := h.ctl.Start(h.ctx)
	assert.True(t, st.IsRunning, "the caller still sees the intended state")
	h.store.FailWrites = false

	assert.False(t, h.repo.TimerState(h.ctx).IsRunning, "the last good value is what remains persisted")
}

func TestObserveAndDisableOnlyTouchThePresenter(t *testing.T) {
	h := newHarness(t, PauseAtBoundary)
	reported := model.TimerState{TimeLeft: 42, IsRunning: true, IsWorkTime: true}
	h.ctl.Observe(reported)
	h.ctl.DisableBadge()

	assert.Equal(t, []model.TimerState{reported}, h.presenter.states)
	assert.Equal(t, 1, h.presenter.disabled)
	_, err := h.store.Get(h.ctx, state.KeyTimerState)
	assert.Error(t, err)
}
