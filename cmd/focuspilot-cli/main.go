package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"focuspilot/internal/badge"
	"focuspilot/internal/config"
	"focuspilot/internal/ipc"
	"focuspilot/internal/ui/popup"
)

var (
	configPath string
	socketPath string
	dbPath     string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "focuspilot-cli",
	Short: "CLI tool to interact with the Focus Co-Pilot daemon",
	Long:  `A command-line interface to drive the Focus Co-Pilot timer, reminders and settings through the daemon's Unix socket.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
		if !verbose {
			log.SetOutput(io.Discard)
		}
	},
	SilenceUsage: true,
}

// loadConfig reads the daemon configuration for paths not given on the command line.
func loadConfig() *config.Config {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fatalf("Failed to load configuration: %v", err)
	}
	return cfg
}

func resolveSocket() string {
	if socketPath != "" {
		return socketPath
	}
	return loadConfig().SocketPath
}

func newClient() *ipc.Client {
	return ipc.NewClient(resolveSocket())
}

func fatalf(format string, args ...interface{}) {
	pterm.Error.Printfln(format, args...)
	os.Exit(1)
}

// --- Client Helper Function ---
func sendMessage(m ipc.Message) ipc.Response {
	client := newClient()
	resp, err := client.Send(context.Background(), m)
	if errors.Is(err, ipc.ErrNotRunning) {
		fatalf("%v\nIs the Focus Co-Pilot daemon running? Try: focuspilot-cli daemon start", err)
	}
	if err != nil {
		fatalf("%v", err)
	}
	if !resp.Success {
		fatalf("%s", resp.Message)
	}
	return resp
}

// sendCommand sends m and prints the daemon's answer.
func sendCommand(m ipc.Message) {
	resp := sendMessage(m)
	if resp.Message != "" {
		pterm.Success.Println(resp.Message)
	}
}

func printJSON(raw json.RawMessage) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		fmt.Println(string(raw))
		return
	}
	pretty, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(pretty))
}

// --- Command Definitions ---

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check if the Focus Co-Pilot daemon is running",
	Run: func(cmd *cobra.Command, args []string) {
		sendCommand(ipc.Ping{})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the timer, badge and reminder state",
	Run: func(cmd *cobra.Command, args []string) {
		resp := sendMessage(ipc.GetStatus{})
		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			printJSON(resp.Data)
			return
		}
		var data ipc.StatusData
		if err := resp.DecodeData(&data); err != nil {
			fatalf("Invalid status from daemon: %v", err)
		}
		if err := pterm.DefaultTable.WithData(statusTable(data, time.Now())).Render(); err != nil {
			fatalf("%v", err)
		}
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start or resume the countdown",
	Run: func(cmd *cobra.Command, args []string) {
		sendCommand(ipc.Start{})
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Pause the countdown",
	Run: func(cmd *cobra.Command, args []string) {
		sendCommand(ipc.Stop{})
	},
}

var restartCmd = &cobra.Command{
	Use:       "restart work|break",
	Short:     "Reset the timer to a full, paused work or break phase",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"work", "break"},
	Run: func(cmd *cobra.Command, args []string) {
		var m ipc.Message = ipc.RestartWork{}
		if args[0] == "break" {
			m = ipc.RestartBreak{}
		}
		resp := sendMessage(m)
		var result ipc.RestartResult
		if err := resp.DecodeData(&result); err != nil {
			fatalf("Invalid restart result: %v", err)
		}
		pterm.Success.Printfln("%s (%s)", resp.Message, badge.FormatClock(result.TimeLeft))
	},
}

var soundCmd = &cobra.Command{
	Use:       "sound work|break",
	Short:     "Play a completion sound",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"work", "break"},
	Run: func(cmd *cobra.Command, args []string) {
		sendCommand(ipc.PlaySound{TimerType: args[0]})
	},
}

var badgeCmd = &cobra.Command{
	Use:   "badge",
	Short: "Control the badge",
}

var badgeOffCmd = &cobra.Command{
	Use:   "off",
	Short: "Show the inactive badge until the timer changes",
	Run: func(cmd *cobra.Command, args []string) {
		sendCommand(ipc.DisableBadge{})
	},
}

var popupCmd = &cobra.Command{
	Use:   "popup",
	Short: "Open the interactive timer window in this terminal",
	Run: func(cmd *cobra.Command, args []string) {
		title := loadConfig().UI.WindowTitle
		if err := popup.Run(context.Background(), newClient(), title); err != nil {
			fatalf("%v", err)
		}
	},
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "Daemon socket (default: from config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log client diagnostics to stderr")

	statusCmd.Flags().Bool("json", false, "Print the raw status as JSON")

	badgeCmd.AddCommand(badgeOffCmd)

	rootCmd.AddCommand(pingCmd, statusCmd, startCmd, stopCmd, restartCmd, soundCmd, badgeCmd, popupCmd)
	rootCmd.AddCommand(alertsCmd(), settingsCmd(), historyCmd(), daemonCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}
