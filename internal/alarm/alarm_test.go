package alarm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFired(t *testing.T, m *Manager, within time.Duration) string {
	t.Helper()
	select {
	case name := <-m.Fired():
		return name
	case <-time.After(within):
		t.Fatalf("no alarm fired within %s", within)
		return ""
	}
}

func assertQuiet(t *testing.T, m *Manager, d time.Duration) {
	t.Helper()
	select {
	case name := <-m.Fired():
		t.Fatalf("unexpected firing of %s", name)
	case <-time.After(d):
	}
}

func TestOnceFiresOnce(t *testing.T) {
	m := NewManager()
	defer m.Close()

	m.CreateOnce(InactivityAlert, 20*time.Millisecond)
	_, ok := m.Get(InactivityAlert)
	assert.True(t, ok)

	assert.Equal(t, InactivityAlert, waitFired(t, m, time.Second))
	assertQuiet(t, m, 60*time.Millisecond)

	_, ok = m.Get(InactivityAlert)
	assert.False(t, ok, "one-shot alarms are gone after firing")
}

func TestPeriodicKeepsFiring(t *testing.T) {
	m := NewManager()
	defer m.Close()

	m.CreatePeriodic(TimerUpdate, 15*time.Millisecond)
	for i := 0; i < 3; i++ {
		assert.Equal(t, TimerUpdate, waitFired(t, m, time.Second))
	}
	at, ok := m.Get(TimerUpdate)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), at, time.Second)
}

func TestClear(t *testing.T) {
	m := NewManager()
	defer m.Close()

	m.CreateOnce(InactivityAlert, 30*time.Millisecond)
	assert.True(t, m.Clear(InactivityAlert))
	assert.False(t, m.Clear(InactivityAlert))
	assertQuiet(t, m, 80*time.Millisecond)
}

func TestRecreateReplaces(t *testing.T) {
	m := NewManager()
	defer m.Close()

	m.CreateOnce(InactivityAlert, 20*time.Millisecond)
	m.CreateOnce(InactivityAlert, time.Hour)
	at, ok := m.Get(InactivityAlert)
	require.True(t, ok)
	assert.True(t, at.After(time.Now().Add(50*time.Minute)))
	assertQuiet(t, m, 80*time.Millisecond)
}

func TestGetUnknown(t *testing.T) {
	m := NewManager()
	defer m.Close()
	_, ok := m.Get("nope")
	assert.False(t, ok)
}

func TestCloseStopsAlarms(t *testing.T) {
	m := NewManager()
	m.CreatePeriodic(TimerUpdate, 10*time.Millisecond)
	m.Close()

	assert.False(t, m.Clear(TimerUpdate))
	_, ok := m.Get(TimerUpdate)
	assert.False(t, ok)
	m.CreateOnce(InactivityAlert, time.Millisecond) // no-op after close, must not block
}
