package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/kardianos/osext"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"focuspilot/internal/ipc"
)

const daemonBinary = "focuspilot"

// findDaemon prefers the daemon installed next to this CLI, then PATH.
func findDaemon() (string, error) {
	if dir, err := osext.ExecutableFolder(); err == nil {
		candidate := filepath.Join(dir, daemonBinary)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	path, err := exec.LookPath(daemonBinary)
	if err != nil {
		return "", fmt.Errorf("cannot find the %s binary next to this CLI or on PATH: %w", daemonBinary, err)
	}
	return path, nil
}

func daemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the background daemon",
	}

	start := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background if it is not running",
		Run: func(cmd *cobra.Command, args []string) {
			client := newClient()
			client.RetryDelay = 0
			if _, err := client.Send(context.Background(), ipc.Ping{}); err == nil {
				pterm.Info.Println("Daemon is already running.")
				return
			}

			bin, err := findDaemon()
			if err != nil {
				fatalf("%v", err)
			}
			daemonArgs := []string{"-d"}
			if configPath != "" {
				daemonArgs = append(daemonArgs, "-c", configPath)
			}
			out, err := exec.Command(bin, daemonArgs...).CombinedOutput()
			if err != nil {
				fatalf("Failed to start %s: %v\n%s", bin, err, out)
			}
			fmt.Print(string(out))

			// Wait for the socket to come up
			client.RetryDelay = 100 * time.Millisecond
			deadline := time.Now().Add(5 * time.Second)
			for time.Now().Before(deadline) {
				if _, err := client.Send(context.Background(), ipc.Ping{}); err == nil {
					pterm.Success.Println("Daemon is running.")
					return
				}
				time.Sleep(200 * time.Millisecond)
			}
			fatalf("Daemon did not answer within 5s; check its log file.")
		},
	}

	cmd.AddCommand(start)
	return cmd
}
