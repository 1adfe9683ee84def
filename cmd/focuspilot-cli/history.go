package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"focuspilot/internal/config"
	"focuspilot/internal/event"
	"focuspilot/internal/model"

	sqlitestore "focuspilot/internal/storage/sqlite"
)

// PomodoroSummary holds calculated pomodoro stats
type PomodoroSummary struct {
	TotalCycles    int
	TotalFocusTime time.Duration
	TotalBreakTime time.Duration
	FocusTimeStr   string
	BreakTimeStr   string
	Efficiency     float64 // Focus / (Focus + Break) * 100
	Interruptions  int     // work phases paused before they ended
	Restarts       int
	Reminders      int
	Days           []DaySummary
}

type DaySummary struct {
	Date      string
	Cycles    int
	Focus     time.Duration
	Break     time.Duration
	Reminders int
}

// summarize turns the history log into totals. Completed phases count with
// their configured length.
func summarize(events []event.Event) PomodoroSummary {
	sort.Slice(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	var s PomodoroSummary
	days := make(map[string]*DaySummary)
	day := func(t time.Time) *DaySummary {
		key := t.Local().Format("2006-01-02")
		d, ok := days[key]
		if !ok {
			d = &DaySummary{Date: key}
			days[key] = d
		}
		return d
	}

	for _, e := range events {
		switch e.Type {
		case event.EventTypePhaseCompleted:
			length := time.Duration(e.Value) * time.Second
			d := day(e.Timestamp)
			if model.Phase(e.Tag) == model.PhaseWork {
				s.TotalCycles++
				s.TotalFocusTime += length
				d.Cycles++
				d.Focus += length
			} else {
				s.TotalBreakTime += length
				d.Break += length
			}
		case event.EventTypePhaseStopped:
			if model.Phase(e.Tag) == model.PhaseWork {
				s.Interruptions++
			}
		case event.EventTypePhaseRestarted:
			s.Restarts++
		case event.EventTypeReminder:
			s.Reminders++
			day(e.Timestamp).Reminders++
		}
	}

	s.FocusTimeStr = formatDurationHuman(s.TotalFocusTime)
	s.BreakTimeStr = formatDurationHuman(s.TotalBreakTime)
	if total := s.TotalFocusTime + s.TotalBreakTime; total > 0 {
		s.Efficiency = float64(s.TotalFocusTime) / float64(total) * 100.0
	}

	for _, d := range days {
		s.Days = append(s.Days, *d)
	}
	sort.Slice(s.Days, func(i, j int) bool { return s.Days[i].Date < s.Days[j].Date })
	return s
}

func formatDurationHuman(d time.Duration) string {
	d = d.Round(time.Minute)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute

	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

func historyTables(s PomodoroSummary) (pterm.TableData, pterm.TableData) {
	totals := pterm.TableData{
		{"Cycles", fmt.Sprint(s.TotalCycles)},
		{"Focus", s.FocusTimeStr},
		{"Break", s.BreakTimeStr},
		{"Efficiency", fmt.Sprintf("%.0f%%", s.Efficiency)},
		{"Interruptions", fmt.Sprint(s.Interruptions)},
		{"Restarts", fmt.Sprint(s.Restarts)},
		{"Reminders", fmt.Sprint(s.Reminders)},
	}
	perDay := pterm.TableData{{"Day", "Cycles", "Focus", "Break", "Reminders"}}
	for _, d := range s.Days {
		perDay = append(perDay, []string{
			d.Date, fmt.Sprint(d.Cycles), formatDurationHuman(d.Focus), formatDurationHuman(d.Break), fmt.Sprint(d.Reminders),
		})
	}
	return totals, perDay
}

func historyCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Summarize completed sessions from the history log",
		Run: func(cmd *cobra.Command, args []string) {
			path := dbPath
			if path == "" {
				path = loadConfig().DatabasePath
			}
			if path == config.MemoryDatabase {
				fatalf("The daemon keeps its history in memory; there is nothing to read.")
			}
			if _, err := os.Stat(path); err != nil {
				fatalf("Database file not found at %s. Ensure the daemon has run or specify --db.", path)
			}

			end := time.Now()
			start := end.AddDate(0, 0, -days)
			store := sqlitestore.NewSQLiteStore(path)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := store.Init(ctx); err != nil {
				fatalf("Failed to open database: %v", err)
			}
			defer store.Close()

			events, err := store.GetEvents(ctx, start, end,
				event.EventTypePhaseCompleted, event.EventTypePhaseStopped,
				event.EventTypePhaseRestarted, event.EventTypeReminder)
			if err != nil {
				fatalf("Failed to fetch events: %v", err)
			}
			if len(events) == 0 {
				pterm.Info.Printfln("No sessions recorded in the last %d days.", days)
				return
			}

			totals, perDay := historyTables(summarize(events))
			pterm.DefaultSection.Printfln("Last %d days (%s to %s)", days, start.Format("2006-01-02"), end.Format("2006-01-02"))
			if err := pterm.DefaultTable.WithData(totals).Render(); err != nil {
				fatalf("%v", err)
			}
			if err := pterm.DefaultTable.WithHasHeader().WithData(perDay).Render(); err != nil {
				fatalf("%v", err)
			}
		},
	}
	cmd.Flags().IntVarP(&days, "days", "d", 7, "Number of past days to include")
	cmd.Flags().StringVar(&dbPath, "db", "", "Path to the database file (default: from config)")
	return cmd
}
