package reminder

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focuspilot/internal/alarm"
	"focuspilot/internal/event"
	"focuspilot/internal/model"
	"focuspilot/internal/state"
	"focuspilot/internal/storage/memory"
)

type fakeAlarms struct {
	once    map[string]time.Duration
	cleared int
}

func (a *fakeAlarms) CreateOnce(name string, delay time.Duration) { a.once[name] = delay }
func (a *fakeAlarms) Clear(name string) bool {
	a.cleared++
	_, ok := a.once[name]
	delete(a.once, name)
	return ok
}

type fakeRaiser struct {
	ok     bool
	raised []string
}

func (r *fakeRaiser) Raise(ctx context.Context, message string) bool {
	r.raised = append(r.raised, message)
	return r.ok
}

type fakeNotifier struct {
	err  error
	sent []event.Notification
}

func (n *fakeNotifier) Notify(ctx context.Context, note event.Notification) error {
	n.sent = append(n.sent, note)
	return n.err
}

// Monday 2 March 2026
var (
	inHours  = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.Local)
	atNight  = time.Date(2026, time.March, 2, 22, 0, 0, 0, time.Local)
	saturday = time.Date(2026, time.March, 7, 10, 0, 0, 0, time.Local)
)

type fixture struct {
	ctx      context.Context
	store    *memory.Store
	repo     *state.Repository
	alarms   *fakeAlarms
	raiser   *fakeRaiser
	notifier *fakeNotifier
	s        *Scheduler
}

func newFixture(now time.Time) *fixture {
	f := &fixture{
		ctx:      context.Background(),
		store:    memory.New(),
		alarms:   &fakeAlarms{once: map[string]time.Duration{}},
		raiser:   &fakeRaiser{ok: true},
		notifier: &fakeNotifier{},
	}
	f.repo = state.NewRepository(f.store, model.DefaultSettings(), model.DefaultAlertSettings())
	f.repo.SetClock(func() time.Time { return now })
	f.s = NewScheduler(f.repo, f.alarms, f.raiser, f.notifier)
	f.s.SetClock(func() time.Time { return now })
	f.s.SetRand(rand.New(rand.NewSource(3)))
	return f
}

func TestSetupSeedsAndSchedules(t *testing.T) {
	f := newFixture(inHours)
	f.s.Setup(f.ctx)

	alerts, found := f.repo.AlertSettings(f.ctx)
	assert.True(t, found)
	assert.Equal(t, model.AlertSettings{Enabled: true, MinInterval: 5, MaxInterval: 15}, alerts)

	delay, ok := f.alarms.once[alarm.InactivityAlert]
	require.True(t, ok)
	assert.GreaterOrEqual(t, delay, 5*time.Minute)
	assert.LessOrEqual(t, delay, 15*time.Minute)
}

func TestSetupKeepsExistingAlertSettings(t *testing.T) {
	f := newFixture(inHours)
	require.NoError(t, f.repo.SaveAlertSettings(f.ctx, model.AlertSettings{Enabled: true, MinInterval: 30, MaxInterval: 30}))
	f.s.Setup(f.ctx)

	assert.Equal(t, 30*time.Minute, f.alarms.once[alarm.InactivityAlert])
}

func TestCheckRaisesInsideSchedule(t *testing.T) {
	f := newFixture(inHours)
	f.s.Setup(f.ctx)

	assert.True(t, f.s.Check(f.ctx))
	require.Len(t, f.raiser.raised, 1)
	assert.Contains(t, Messages(), f.raiser.raised[0])
	assert.True(t, f.repo.ShowInactivityAlert(f.ctx))
	assert.Empty(t, f.notifier.sent)
	assert.Contains(t, f.alarms.once, alarm.InactivityAlert, "the next check is armed")

	events, err := f.store.GetEvents(f.ctx, inHours.Add(-time.Minute), inHours.Add(time.Minute), event.EventTypeReminder)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestCheckOutsideScheduleStillRearms(t *testing.T) {
	for _, now := range []time.Time{atNight, saturday} {
		f := newFixture(now)
		f.s.Setup(f.ctx)
		delete(f.alarms.once, alarm.InactivityAlert)

		assert.False(t, f.s.Check(f.ctx))
		assert.Empty(t, f.raiser.raised)
		assert.False(t, f.repo.ShowInactivityAlert(f.ctx))
		assert.Contains(t, f.alarms.once, alarm.InactivityAlert)
	}
}

func TestCheckSkipsWhileRunning(t *testing.T) {
	f := newFixture(inHours)
	f.repo.SaveTimerState(f.ctx, model.TimerState{TimeLeft: 600, IsRunning: true, IsWorkTime: true, LastUpdated: inHours.UnixMilli()})

	assert.False(t, f.s.Check(f.ctx))
	assert.Empty(t, f.raiser.raised)
	assert.Contains(t, f.alarms.once, alarm.InactivityAlert)
}

func TestDisabledAlertsDoNotRearm(t *testing.T) {
	f := newFixture(inHours)
	f.s.Setup(f.ctx)
	require.NoError(t, f.repo.SaveAlertSettings(f.ctx, model.AlertSettings{Enabled: false, MinInterval: 5, MaxInterval: 15}))

	assert.False(t, f.s.Check(f.ctx))
	assert.Empty(t, f.raiser.raised)
	assert.NotContains(t, f.alarms.once, alarm.InactivityAlert)

	require.NoError(t, f.repo.SaveAlertSettings(f.ctx, model.AlertSettings{Enabled: true, MinInterval: 5, MaxInterval: 15}))
	f.s.Rearm(f.ctx)
	assert.Contains(t, f.alarms.once, alarm.InactivityAlert, "re-enabling arms the reminder again")
}

func TestCheckFallsBackToNotification(t *testing.T) {
	f := newFixture(inHours)
	f.raiser.ok = false

	assert.True(t, f.s.Check(f.ctx))
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, NotificationTitle, f.notifier.sent[0].Title)
	assert.False(t, f.repo.ShowInactivityAlert(f.ctx), "a delivered notification clears the popup flag")
}

func TestCheckKeepsFlagWhenNotificationFails(t *testing.T) {
	f := newFixture(inHours)
	f.raiser.ok = false
	f.notifier.err = errors.New("notify-send: not found")

	assert.True(t, f.s.Check(f.ctx))
	assert.True(t, f.repo.ShowInactivityAlert(f.ctx), "the next popup shows the alert instead")
}

func TestMessages(t *testing.T) {
	assert.Len(t, Messages(), 10)
	f := newFixture(inHours)
	for i := 0; i < 20; i++ {
		assert.Contains(t, Messages(), f.s.Message())
	}
}
