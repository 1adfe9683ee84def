package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"focuspilot/internal/model"
)

var epoch = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

func running(timeLeft int, isWork bool, at time.Time) model.TimerState {
	return model.TimerState{TimeLeft: timeLeft, IsRunning: true, IsWorkTime: isWork, LastUpdated: at.UnixMilli()}
}

func TestElapsedSeconds(t *testing.T) {
	assert.Equal(t, 0, ElapsedSeconds(epoch.UnixMilli(), epoch))
	assert.Equal(t, 0, ElapsedSeconds(epoch.UnixMilli(), epoch.Add(999*time.Millisecond)))
	assert.Equal(t, 1, ElapsedSeconds(epoch.UnixMilli(), epoch.Add(1999*time.Millisecond)))
	assert.Equal(t, 0, ElapsedSeconds(epoch.UnixMilli(), epoch.Add(-time.Hour)), "clock going backwards counts as zero")
}

func TestReconcileSubtractsElapsed(t *testing.T) {
	settings := model.DefaultSettings()
	for _, tc := range []struct {
		timeLeft int
		elapsed  time.Duration
	}{
		{1500, 0},
		{1500, 10 * time.Second},
		{1500, 1499 * time.Second},
		{60, 59500 * time.Millisecond},
		{5, 4 * time.Second},
	} {
		got := Reconcile(running(tc.timeLeft, true, epoch), settings, epoch.Add(tc.elapsed), PauseAtBoundary)
		want := tc.timeLeft - int(tc.elapsed/time.Second)
		assert.Equal(t, want, got.TimeLeft, "timeLeft=%d elapsed=%s", tc.timeLeft, tc.elapsed)
		assert.True(t, got.IsRunning)
		assert.True(t, got.IsWorkTime)
	}
}

func TestReconcileStoppedIsUnchanged(t *testing.T) {
	stopped := model.TimerState{TimeLeft: 300, IsRunning: false, IsWorkTime: false, LastUpdated: epoch.UnixMilli()}
	got := Reconcile(stopped, model.DefaultSettings(), epoch.Add(time.Hour), PauseAtBoundary)
	assert.Equal(t, stopped, got)
}

func TestReconcileIsIdempotent(t *testing.T) {
	settings := model.DefaultSettings()
	stored := running(1500, true, epoch)
	now := epoch.Add(90*time.Second + 700*time.Millisecond)

	once := Reconcile(stored, settings, now, PauseAtBoundary)
	assert.Equal(t, once, Reconcile(stored, settings, now, PauseAtBoundary))
	assert.Equal(t, once, Reconcile(once, settings, now, PauseAtBoundary), "reconciling the result again must not subtract twice")
	assert.Equal(t, 1410, once.TimeLeft)
	assert.Equal(t, epoch.Add(90*time.Second).UnixMilli(), once.LastUpdated, "sub-second remainder is kept")
}

func TestReconcileFlipsPhaseAtBoundary(t *testing.T) {
	settings := model.DefaultSettings()

	got := Reconcile(running(0, true, epoch), settings, epoch, PauseAtBoundary)
	assert.False(t, got.IsWorkTime)
	assert.Equal(t, 5*60, got.TimeLeft)
	assert.False(t, got.IsRunning)
	assert.Equal(t, epoch.UnixMilli(), got.LastUpdated)

	got = Reconcile(running(30, false, epoch), settings, epoch.Add(time.Hour), PauseAtBoundary)
	assert.True(t, got.IsWorkTime)
	assert.Equal(t, 25*60, got.TimeLeft)
	assert.False(t, got.IsRunning)
}

func TestReconcileContinuePolicy(t *testing.T) {
	settings := model.Settings{WorkTime: 50, BreakTime: 10}
	got := Reconcile(running(10, true, epoch), settings, epoch.Add(10*time.Second), ContinueAtBoundary)
	assert.False(t, got.IsWorkTime)
	assert.Equal(t, 10*60, got.TimeLeft)
	assert.True(t, got.IsRunning)
	assert.Equal(t, ContinueAtBoundary, PolicyFor(true))
	assert.Equal(t, PauseAtBoundary, PolicyFor(false))
}

func TestReconcileClampsNegative(t *testing.T) {
	got := Reconcile(model.TimerState{TimeLeft: -4}, model.DefaultSettings(), epoch, PauseAtBoundary)
	assert.Equal(t, 0, got.TimeLeft)
}
