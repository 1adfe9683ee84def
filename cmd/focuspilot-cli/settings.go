package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"focuspilot/internal/ipc"
	"focuspilot/internal/model"
	"focuspilot/internal/schedule"
)

// settingsFile is the YAML form used by settings show and import.
type settingsFile struct {
	Settings      *model.Settings      `yaml:"settings,omitempty"`
	AlertSettings *model.AlertSettings `yaml:"alertSettings,omitempty"`
}

func currentStatus() ipc.StatusData {
	resp := sendMessage(ipc.GetStatus{})
	var data ipc.StatusData
	if err := resp.DecodeData(&data); err != nil {
		fatalf("Invalid status from daemon: %v", err)
	}
	return data
}

// applySetting changes one field of s. Keys are the stored field names;
// schedule days use schedule.<day>.enabled and schedule.<day>.ranges
// ("09:00-12:00,13:00-17:00", or another day's name to copy its ranges).
func applySetting(s *model.Settings, key, value string) error {
	switch strings.ToLower(key) {
	case "worktime", "work":
		n, err := cast.ToIntE(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("workTime must be a positive number of minutes, got %q", value)
		}
		s.WorkTime = n
	case "breaktime", "break":
		n, err := cast.ToIntE(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("breakTime must be a positive number of minutes, got %q", value)
		}
		s.BreakTime = n
	case "soundenabled", "sound":
		b, err := cast.ToBoolE(value)
		if err != nil {
			return fmt.Errorf("soundEnabled must be true or false: %w", err)
		}
		s.SoundEnabled = b
	default:
		parts := strings.Split(strings.ToLower(key), ".")
		if len(parts) != 3 || parts[0] != "schedule" {
			return fmt.Errorf("unknown setting %q", key)
		}
		return applyScheduleSetting(s, parts[1], parts[2], value)
	}
	return nil
}

func applyScheduleSetting(s *model.Settings, day, field, value string) error {
	if !model.IsWeekday(day) {
		return fmt.Errorf("unknown weekday %q", day)
	}
	if s.Schedule == nil {
		s.Schedule = model.DefaultWeekSchedule()
	}
	week := make(model.WeekSchedule, len(s.Schedule))
	for k, v := range s.Schedule {
		week[k] = v
	}
	ds := week[day]

	switch field {
	case "enabled":
		b, err := cast.ToBoolE(value)
		if err != nil {
			return fmt.Errorf("%s.enabled must be true or false: %w", day, err)
		}
		ds.Enabled = b
	case "ranges":
		if from := strings.ToLower(strings.TrimSpace(value)); model.IsWeekday(from) {
			src := week[from].TimeRanges
			if len(src) == 0 {
				return fmt.Errorf("%s has no ranges to copy", from)
			}
			ds.TimeRanges = append([]model.TimeRange(nil), src...)
			break
		}
		ranges, err := parseRanges(value)
		if err != nil {
			return fmt.Errorf("%s.ranges: %w", day, err)
		}
		ds.TimeRanges = ranges
	default:
		return fmt.Errorf("unknown schedule field %q, want enabled or ranges", field)
	}
	week[day] = ds
	s.Schedule = week
	return nil
}

func parseRanges(value string) ([]model.TimeRange, error) {
	var ranges []model.TimeRange
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		start, end, ok := strings.Cut(part, "-")
		if !ok {
			return nil, fmt.Errorf("range %q is not START-END", part)
		}
		r := model.TimeRange{StartTime: strings.TrimSpace(start), EndTime: strings.TrimSpace(end)}
		if err := schedule.ValidateRange(r); err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	if len(ranges) == 0 {
		return nil, fmt.Errorf("no ranges in %q", value)
	}
	return ranges, nil
}

func parseSettingsFile(raw []byte) (settingsFile, error) {
	var f settingsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return f, fmt.Errorf("invalid settings file: %w", err)
	}
	if f.Settings == nil && f.AlertSettings == nil {
		return f, fmt.Errorf("settings file has neither settings nor alertSettings")
	}
	if f.Settings != nil {
		if f.Settings.WorkTime <= 0 || f.Settings.BreakTime <= 0 {
			return f, fmt.Errorf("settings.workTime and settings.breakTime must be positive")
		}
		if err := schedule.Validate(f.Settings.Schedule); err != nil {
			return f, fmt.Errorf("settings.schedule: %w", err)
		}
	}
	return f, nil
}

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change work/break lengths, sound and work schedule",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the settings as YAML",
		Run: func(cmd *cobra.Command, args []string) {
			data := currentStatus()
			out, err := yaml.Marshal(settingsFile{Settings: &data.Settings, AlertSettings: &data.AlertSettings})
			if err != nil {
				fatalf("%v", err)
			}
			fmt.Print(string(out))
		},
	}

	set := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change one setting (workTime, breakTime, soundEnabled, schedule.<day>.enabled|ranges)",
		Example: `  focuspilot-cli settings set workTime 50
  focuspilot-cli settings set schedule.monday.ranges 09:00-12:00,13:00-17:00
  focuspilot-cli settings set schedule.tuesday.ranges monday`,
		Args: cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			settings := currentStatus().Settings
			if err := applySetting(&settings, args[0], args[1]); err != nil {
				fatalf("%v", err)
			}
			sendCommand(ipc.SaveSettings{Settings: settings})
		},
	}

	imp := &cobra.Command{
		Use:   "import FILE",
		Short: "Load settings and alert settings from a YAML file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				fatalf("%v", err)
			}
			f, err := parseSettingsFile(raw)
			if err != nil {
				fatalf("%v", err)
			}
			if f.Settings != nil {
				sendCommand(ipc.SaveSettings{Settings: *f.Settings})
			}
			if f.AlertSettings != nil {
				sendCommand(ipc.SaveAlertSettings{AlertSettings: *f.AlertSettings})
			}
		},
	}

	cmd.AddCommand(show, set, imp)
	return cmd
}

func alertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Configure the inactivity reminder",
	}

	save := func(update func(*model.AlertSettings)) {
		alerts := currentStatus().AlertSettings
		update(&alerts)
		sendCommand(ipc.SaveAlertSettings{AlertSettings: alerts})
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the reminder settings",
		Run: func(cmd *cobra.Command, args []string) {
			data := currentStatus()
			next := "-"
			if data.NextReminder != nil {
				next = data.NextReminder.Local().Format("15:04:05")
			}
			err := pterm.DefaultTable.WithData(pterm.TableData{
				{"Enabled", yesNo(data.AlertSettings.Enabled)},
				{"Interval", fmt.Sprintf("%d-%d min", data.AlertSettings.MinInterval, data.AlertSettings.MaxInterval)},
				{"Next check", next},
				{"In work hours", yesNo(data.WithinSchedule)},
			}).Render()
			if err != nil {
				fatalf("%v", err)
			}
		},
	}

	enable := &cobra.Command{
		Use:   "enable",
		Short: "Turn inactivity reminders on",
		Run: func(cmd *cobra.Command, args []string) {
			save(func(a *model.AlertSettings) { a.Enabled = true })
		},
	}

	disable := &cobra.Command{
		Use:   "disable",
		Short: "Turn inactivity reminders off",
		Run: func(cmd *cobra.Command, args []string) {
			save(func(a *model.AlertSettings) { a.Enabled = false })
		},
	}

	interval := &cobra.Command{
		Use:   "interval MIN MAX",
		Short: "Set the random reminder interval in minutes",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			lo, hi, err := parseInterval(args[0], args[1])
			if err != nil {
				fatalf("%v", err)
			}
			save(func(a *model.AlertSettings) {
				a.MinInterval = lo
				a.MaxInterval = hi
			})
		},
	}

	cmd.AddCommand(show, enable, disable, interval)
	return cmd
}

func parseInterval(minArg, maxArg string) (int, int, error) {
	lo, err := cast.ToIntE(minArg)
	if err != nil || lo <= 0 {
		return 0, 0, fmt.Errorf("MIN must be a positive number of minutes, got %q", minArg)
	}
	hi, err := cast.ToIntE(maxArg)
	if err != nil || hi <= 0 {
		return 0, 0, fmt.Errorf("MAX must be a positive number of minutes, got %q", maxArg)
	}
	if hi < lo {
		return 0, 0, fmt.Errorf("MAX (%d) is less than MIN (%d)", hi, lo)
	}
	return lo, hi, nil
}
