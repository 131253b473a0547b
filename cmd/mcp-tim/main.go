// Command mcp-tim provides an MCP server for the task list and its reminders.
//
// The reminder scanner runs in the background while the server is up; fired
// reminders are exposed through the pending_reminders tool and handled with
// dismiss_reminder and snooze_reminder.
//
// Usage:
//
//	./mcp-tim          # Start MCP server (stdio)
//	./mcp-tim --help   # Show help
//
// Environment:
//
//	TIM_CONFIG         Path to config file (default: ~/.tim/config.yaml)
//	TIM_TASKS_DB_PATH  Path to SQLite database (default: ~/.tim/tasks.db)
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/notexe/tim/internal/app"
	"github.com/notexe/tim/internal/config"
	timserver "github.com/notexe/tim/internal/server"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--help", "-h":
			printHelp()
			return
		}
	}

	configPath := os.Getenv("TIM_CONFIG")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the MCP protocol, so logs go to stderr.
	logger := cfg.Logger(os.Stderr)

	a, err := app.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if cfg.Reminder.Enabled {
		a.Scanner.Start(ctx)
	}

	s := timserver.NewServer(a.Tasks, a.Store, a.Scanner, a.Inbox, logger)

	serveErr := server.ServeStdio(s.MCPServer())

	cancel()
	if err := a.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close task store: %v\n", err)
	}

	if serveErr != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", serveErr)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println(`MCP Tim Server - Tasks and reminders via MCP protocol

USAGE:
    mcp-tim          Start MCP server (communicates via stdio)
    mcp-tim --help   Show this help

ENVIRONMENT:
    TIM_CONFIG                  Path to config file
                                Default: ~/.tim/config.yaml
    TIM_TASKS_DB_PATH           Path to SQLite database file
                                Default: ~/.tim/tasks.db
    TIM_REMINDER_KEYS_FILE      Fired/dismissed reminder keys
                                Default: data/dismissed_reminders.txt
    TIM_REMINDER_SCAN_PERIOD    Delay between reminder scans (default: 20s)
    TIM_REMINDER_WATCH_KEYS     Reload keys written by other tim processes
                                Default: true

TOOLS:
    list_tasks         List all tasks
    add_todo           Add a todo (description)
    add_deadline       Add a deadline (description, due)
    add_event          Add an event (description, start, end)
    mark_task          Mark a task done or not done (index, done)
    delete_task        Delete a task (index)
    pending_reminders  List reminders that fired and are not handled yet
    dismiss_reminder   Dismiss a reminder for good (key)
    snooze_reminder    Snooze a reminder (key, minutes)

CONFIGURATION:
    Add to your MCP client configuration:
    {
      "mcpServers": {
        "tim": {
          "command": "/path/to/mcp-tim",
          "args": []
        }
      }
    }`)
}
