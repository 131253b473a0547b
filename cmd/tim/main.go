// Command tim is the interactive task tracker. Deadlines and events on the
// list pop up as reminders when they come due.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/notexe/tim/internal/app"
	"github.com/notexe/tim/internal/config"
	"github.com/notexe/tim/internal/repl"
	"github.com/notexe/tim/internal/ui"
)

func main() {
	configPath := flag.String("config", config.GetDefaultConfigPath(), "Path to configuration file")
	dbPath := flag.String("db", "", "Task database path (overrides config)")
	noColor := flag.Bool("no-color", false, "Disable colored output")
	noReminders := flag.Bool("no-reminders", false, "Do not scan for reminders")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Apply CLI flag overrides
	if *dbPath != "" {
		cfg.Tasks.DBPath = *dbPath
	}
	if *noColor {
		cfg.UI.ColoredOutput = false
	}
	if *noReminders {
		cfg.Reminder.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := cfg.Logger(os.Stderr)

	a, err := app.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	formatter := ui.NewFormatter(cfg.UI.ColoredOutput)
	commands := repl.NewCommands(a.Tasks, a.Store, a.Scanner, a.Inbox, formatter)

	replInstance, err := repl.NewREPL(commands, a.Inbox, formatter, cfg.Reminder.ScanPeriod)
	if err != nil {
		a.Close()
		fmt.Fprintf(os.Stderr, "Error creating REPL: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Reminder.Enabled {
		a.Scanner.Start(ctx)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM)

	go func() {
		<-sigChan
		replInstance.Stop()
	}()

	runErr := replInstance.Start()

	if err := a.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to close task store: %v\n", err)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}
