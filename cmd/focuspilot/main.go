package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/sevlyar/go-daemon"
	flag "github.com/spf13/pflag"

	"focuspilot/internal/app"
	"focuspilot/internal/config"
)

var (
	configPath = flag.StringP("config", "c", "", "Path to configuration file (e.g., config.yaml). Defaults to ./config.yaml, ~/.config/focuspilot/config.yaml, /etc/focuspilot/config.yaml")
	logPath    = flag.String("log", "", "Path to log file (optional, defaults to stderr, or the state directory with -d)")
	daemonize  = flag.BoolP("daemon", "d", false, "Detach and run in the background")
	pidPath    = flag.String("pid", "", "PID file used with -d (defaults to the state directory)")
)

// setupLogging configures the log output destination.
func setupLogging(logFilePath string) (*os.File, error) {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	if logFilePath == "" {
		log.SetOutput(os.Stderr)
		log.Println("Logging to stderr")
		return nil, nil
	}

	dir := filepath.Dir(logFilePath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	file, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", logFilePath, err)
	}

	log.SetOutput(file)
	log.Printf("Logging to file: %s", logFilePath)
	return file, nil
}

func stateDir() string {
	dir := os.Getenv("XDG_STATE_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return os.TempDir()
		}
		dir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(dir, "focuspilot")
}

// detach re-executes the daemon in the background. The returned context is
// nil in the parent, which should exit.
func detach() (*daemon.Context, error) {
	dir := stateDir()
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", dir, err)
	}
	if *logPath == "" {
		*logPath = filepath.Join(dir, "focuspilot.log")
	}
	if *pidPath == "" {
		*pidPath = filepath.Join(dir, "focuspilot.pid")
	}

	cntxt := &daemon.Context{
		PidFileName: *pidPath,
		PidFilePerm: 0644,
		LogFileName: *logPath,
		LogFilePerm: 0640,
		WorkDir:     "/",
		Umask:       027,
		Args:        os.Args,
	}
	child, err := cntxt.Reborn()
	if err != nil {
		return nil, fmt.Errorf("failed to daemonize: %w", err)
	}
	if child != nil {
		fmt.Printf("Focus Co-Pilot daemon started (pid %d), logging to %s\n", child.Pid, *logPath)
		return nil, nil
	}
	return cntxt, nil
}

func main() {
	flag.Parse()

	// Resolve a relative config path before the daemon changes directory.
	if *configPath != "" {
		if abs, err := filepath.Abs(*configPath); err == nil {
			*configPath = abs
		}
	}

	if *daemonize {
		cntxt, err := detach()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if cntxt == nil {
			return
		}
		defer cntxt.Release()
	}

	logFile, logErr := setupLogging(*logPath)
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "Error setting up file logging: %v. Logging to stderr instead.\n", logErr)
		log.SetOutput(os.Stderr)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	loader := config.NewLoader(*configPath, nil)
	cfg, err := loader.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	application, err := app.NewApp(cfg, app.Options{Loader: loader})
	if err != nil {
		log.Fatalf("FATAL: Failed to create application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("FATAL: Application exited with error: %v", err)
	}
	log.Println("Focus Co-Pilot finished successfully.")
}
