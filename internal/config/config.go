package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"focuspilot/internal/ipc"
	"focuspilot/internal/model"
)

// MemoryDatabase as database_path keeps all state in process memory.
const MemoryDatabase = "memory"

type PomodoroConfig struct {
	WorkMinutes  int  `mapstructure:"work_minutes"`
	BreakMinutes int  `mapstructure:"break_minutes"`
	AutoContinue bool `mapstructure:"auto_continue"` // keep running across phase boundaries
}

type AlertsConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MinInterval int  `mapstructure:"min_interval"`
	MaxInterval int  `mapstructure:"max_interval"`
}

type SoundConfig struct {
	Command       string `mapstructure:"command"` // empty: first of paplay, aplay
	CooldownMs    int    `mapstructure:"cooldown_ms"`
	CloseBufferMs int    `mapstructure:"close_buffer_ms"`
}

type BadgeConfig struct {
	File  string `mapstructure:"file"` // status-bar file, empty disables it
	Label string `mapstructure:"label"`
}

type NotifyConfig struct {
	Command string `mapstructure:"command"`
}

type UIConfig struct {
	WindowTitle string `mapstructure:"window_title"`
}

type Config struct {
	DatabasePath   string         `mapstructure:"database_path"`
	SocketPath     string         `mapstructure:"socket_path"`
	TickIntervalMs int            `mapstructure:"tick_interval_ms"`
	Pomodoro       PomodoroConfig `mapstructure:"pomodoro"`
	Alerts         AlertsConfig   `mapstructure:"alerts"`
	Sound          SoundConfig    `mapstructure:"sound"`
	Badge          BadgeConfig    `mapstructure:"badge"`
	Notify         NotifyConfig   `mapstructure:"notify"`
	UI             UIConfig       `mapstructure:"ui"`
}

// Loader reads the configuration from file, environment and defaults.
type Loader struct {
	v        *viper.Viper
	explicit bool
	mu       sync.Mutex
}

// NewLoader looks for configPath, or config.yaml in the standard places when
// it is empty. fs may be nil for the real filesystem.
func NewLoader(configPath string, fs afero.Fs) *Loader {
	v := viper.New()
	if fs != nil {
		v.SetFs(fs)
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/focuspilot")
		v.AddConfigPath("/etc/focuspilot/")
	}

	v.SetEnvPrefix("FOCUSPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database_path", defaultDatabasePath())
	v.SetDefault("socket_path", ipc.DefaultSocketPath())
	v.SetDefault("tick_interval_ms", 1000)
	v.SetDefault("pomodoro.work_minutes", model.DefaultWorkMinutes)
	v.SetDefault("pomodoro.break_minutes", model.DefaultBreakMinutes)
	v.SetDefault("pomodoro.auto_continue", false)
	v.SetDefault("alerts.enabled", true)
	v.SetDefault("alerts.min_interval", model.DefaultAlertMinInterval)
	v.SetDefault("alerts.max_interval", model.DefaultAlertMaxInterval)
	v.SetDefault("sound.command", "")
	v.SetDefault("sound.cooldown_ms", 1500)
	v.SetDefault("sound.close_buffer_ms", 500)
	v.SetDefault("badge.file", "")
	v.SetDefault("badge.label", "")
	v.SetDefault("notify.command", "")
	v.SetDefault("ui.window_title", "Focus Co-Pilot")

	return &Loader{v: v, explicit: configPath != ""}
}

func LoadConfig(configPath string) (*Config, error) {
	return NewLoader(configPath, nil).Load()
}

func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && !l.explicit {
			log.Println("Config file not found, using defaults.")
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	cfg, err := l.decode()
	if err != nil {
		return nil, err
	}
	log.Printf("Configuration loaded: %+v", *cfg)
	return cfg, nil
}

// ConfigFile is the file the configuration was read from, if any.
func (l *Loader) ConfigFile() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.v.ConfigFileUsed()
}

// Watch calls onChange with the reloaded configuration whenever the config
// file is written. Invalid edits are logged and skipped.
func (l *Loader) Watch(onChange func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.v.ConfigFileUsed() == "" {
		log.Println("No config file in use, not watching for changes.")
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		log.Printf("Config file changed: %s", e.Name)
		l.mu.Lock()
		cfg, err := l.decode()
		l.mu.Unlock()
		if err != nil {
			log.Printf("Warning: ignoring invalid config change: %v", err)
			return
		}
		onChange(cfg)
	})
	l.v.WatchConfig()
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.sanitize()
	return &cfg, nil
}

func (c *Config) sanitize() {
	if c.TickIntervalMs < 100 {
		log.Printf("Warning: tick_interval_ms %d too low, setting to 100", c.TickIntervalMs)
		c.TickIntervalMs = 100
	}
	if c.Pomodoro.WorkMinutes <= 0 {
		log.Printf("Warning: invalid pomodoro.work_minutes %d, using %d", c.Pomodoro.WorkMinutes, model.DefaultWorkMinutes)
		c.Pomodoro.WorkMinutes = model.DefaultWorkMinutes
	}
	if c.Pomodoro.BreakMinutes <= 0 {
		log.Printf("Warning: invalid pomodoro.break_minutes %d, using %d", c.Pomodoro.BreakMinutes, model.DefaultBreakMinutes)
		c.Pomodoro.BreakMinutes = model.DefaultBreakMinutes
	}
	if c.Sound.CooldownMs <= 0 {
		c.Sound.CooldownMs = 1500
	}
	if c.Sound.CloseBufferMs <= 0 {
		c.Sound.CloseBufferMs = 500
	}
	a := c.AlertDefaults()
	c.Alerts = AlertsConfig{Enabled: a.Enabled, MinInterval: a.MinInterval, MaxInterval: a.MaxInterval}
}

func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

// SettingsDefaults are used for settings the user has not saved yet.
func (c Config) SettingsDefaults() model.Settings {
	s := model.DefaultSettings()
	s.WorkTime = c.Pomodoro.WorkMinutes
	s.BreakTime = c.Pomodoro.BreakMinutes
	return s.Normalize(model.DefaultSettings())
}

// AlertDefaults seed the alert settings on first run.
func (c Config) AlertDefaults() model.AlertSettings {
	return model.AlertSettings{
		Enabled:     c.Alerts.Enabled,
		MinInterval: c.Alerts.MinInterval,
		MaxInterval: c.Alerts.MaxInterval,
	}.Normalize()
}

func (s SoundConfig) Cooldown() time.Duration {
	return time.Duration(s.CooldownMs) * time.Millisecond
}

func (s SoundConfig) CloseBuffer() time.Duration {
	return time.Duration(s.CloseBufferMs) * time.Millisecond
}

func defaultDatabasePath() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "focuspilot.db"
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "focuspilot", "focuspilot.db")
}
