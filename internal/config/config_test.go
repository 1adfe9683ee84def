package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focuspilot/internal/model"
)

func TestDefaultsWithoutConfigFile(t *testing.T) {
	cfg, err := NewLoader("", afero.NewMemMapFs()).Load()
	require.NoError(t, err)

	assert.Equal(t, time.Second, cfg.TickInterval())
	assert.Equal(t, 25, cfg.Pomodoro.WorkMinutes)
	assert.Equal(t, 5, cfg.Pomodoro.BreakMinutes)
	assert.False(t, cfg.Pomodoro.AutoContinue)
	assert.Equal(t, model.DefaultAlertSettings(), cfg.AlertDefaults())
	assert.Equal(t, 1500*time.Millisecond, cfg.Sound.Cooldown())
	assert.Equal(t, 500*time.Millisecond, cfg.Sound.CloseBuffer())
	assert.Empty(t, cfg.Notify.Command, "notifications go over the session bus by default")
	assert.Equal(t, "Focus Co-Pilot", cfg.UI.WindowTitle)
	assert.NotEmpty(t, cfg.SocketPath)
	assert.NotEmpty(t, cfg.DatabasePath)
}

func TestLoadFromFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/fp/config.yaml", []byte(`
database_path: memory
socket_path: /run/fp.sock
pomodoro:
  work_minutes: 50
  break_minutes: 10
  auto_continue: true
alerts:
  enabled: false
  min_interval: 20
  max_interval: 10
badge:
  file: /tmp/fp-badge
`), 0644))

	l := NewLoader("/etc/fp/config.yaml", fs)
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "/etc/fp/config.yaml", l.ConfigFile())

	assert.Equal(t, MemoryDatabase, cfg.DatabasePath)
	assert.Equal(t, "/run/fp.sock", cfg.SocketPath)
	assert.True(t, cfg.Pomodoro.AutoContinue)
	assert.Equal(t, "/tmp/fp-badge", cfg.Badge.File)

	s := cfg.SettingsDefaults()
	assert.Equal(t, 50, s.WorkTime)
	assert.Equal(t, 10, s.BreakTime)
	assert.True(t, s.SoundEnabled)
	assert.NotEmpty(t, s.Schedule)

	assert.Equal(t, model.AlertSettings{Enabled: false, MinInterval: 20, MaxInterval: 20}, cfg.AlertDefaults())
}

func TestInvalidValuesAreClamped(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/c.yaml", []byte("tick_interval_ms: 5\npomodoro:\n  work_minutes: -1\n  break_minutes: 0\n"), 0644))

	cfg, err := NewLoader("/c.yaml", fs).Load()
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, cfg.TickInterval())
	assert.Equal(t, 25, cfg.Pomodoro.WorkMinutes)
	assert.Equal(t, 5, cfg.Pomodoro.BreakMinutes)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("FOCUSPILOT_POMODORO_WORK_MINUTES", "45")
	t.Setenv("FOCUSPILOT_SOCKET_PATH", "/tmp/env.sock")

	cfg, err := NewLoader("", afero.NewMemMapFs()).Load()
	require.NoError(t, err)
	assert.Equal(t, 45, cfg.Pomodoro.WorkMinutes)
	assert.Equal(t, "/tmp/env.sock", cfg.SocketPath)
}

func TestMissingExplicitFileIsAnError(t *testing.T) {
	_, err := NewLoader("/nope/config.yaml", afero.NewMemMapFs()).Load()
	assert.Error(t, err)
}

func TestMalformedFileIsAnError(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/bad.yaml", []byte("pomodoro: [unclosed\n"), 0644))
	_, err := NewLoader("/bad.yaml", fs).Load()
	assert.Error(t, err)
}
