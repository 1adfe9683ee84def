package main

import (
	"fmt"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pterm/pterm"

	"focuspilot/internal/badge"
	"focuspilot/internal/ipc"
)

func statusTable(data ipc.StatusData, now time.Time) pterm.TableData {
	state := "paused"
	if data.Timer.IsRunning {
		state = "running"
	}
	boundary := "pause"
	if data.AutoContinue {
		boundary = "continue"
	}
	alerts := "off"
	if data.AlertSettings.Enabled {
		alerts = fmt.Sprintf("every %d-%d min", data.AlertSettings.MinInterval, data.AlertSettings.MaxInterval)
	}
	next := "-"
	if data.NextReminder != nil {
		next = fmt.Sprintf("%s (in %s)", data.NextReminder.Local().Format("15:04:05"), data.NextReminder.Sub(now).Round(time.Second))
	}

	return pterm.TableData{
		{"Phase", string(data.Timer.Phase())},
		{"State", state},
		{"Time left", badge.FormatClock(data.Timer.TimeLeft)},
		{"Badge", colorize(data.Badge.Text, data.Badge.Color)},
		{"Work / break", fmt.Sprintf("%d / %d min", data.Settings.WorkTime, data.Settings.BreakTime)},
		{"Sound", onOff(data.Settings.SoundEnabled)},
		{"At phase end", boundary},
		{"Reminders", alerts},
		{"Next reminder", next},
		{"In work hours", yesNo(data.WithinSchedule)},
		{"Alert pending", yesNo(data.ShowInactivityAlert)},
	}
}

// colorize paints text in the badge's hex color; unparsable colors are ignored.
func colorize(text, hex string) string {
	c, err := colorful.Hex(hex)
	if err != nil {
		return text
	}
	r, g, b := c.RGB255()
	return pterm.NewRGB(r, g, b).Sprint(text)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
