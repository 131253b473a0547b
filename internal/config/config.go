package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "TIM_"

type Config struct {
	Reminder ReminderConfig `koanf:"reminder"`
	Tasks    TasksConfig    `koanf:"tasks"`
	UI       UIConfig       `koanf:"ui"`
	Log      LogConfig      `koanf:"log"`
}

type ReminderConfig struct {
	Enabled      bool          `koanf:"enabled"`
	ScanPeriod   time.Duration `koanf:"scan_period"`
	StartupGrace time.Duration `koanf:"startup_grace"` // Oldest overdue trigger still fired after a restart
	Snooze       time.Duration `koanf:"snooze"`
	KeysFile     string        `koanf:"keys_file"` // Fired/dismissed keys; empty disables persistence
	WatchKeys    bool          `koanf:"watch_keys"` // Pick up keys written by another tim process
}

type TasksConfig struct {
	DBPath string `koanf:"db_path"`
	Watch  bool   `koanf:"watch"` // Reload the list when another tim process edits the database
}

type UIConfig struct {
	ColoredOutput bool `koanf:"colored_output"`
}

type LogConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
}

// Load layers defaults, the YAML file at configPath (if it exists) and
// TIM_* environment variables, in that order.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(NewDefaultProvider(), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		configPath = expandPath(configPath)

		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		}
	}

	// TIM_REMINDER_SCAN_PERIOD -> reminder.scan_period
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".", 1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Tasks.DBPath = expandPath(cfg.Tasks.DBPath)
	cfg.Reminder.KeysFile = expandPath(cfg.Reminder.KeysFile)

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Reminder.ScanPeriod <= 0 {
		return fmt.Errorf("reminder.scan_period must be positive")
	}
	if c.Reminder.StartupGrace <= 0 {
		return fmt.Errorf("reminder.startup_grace must be positive")
	}
	if c.Reminder.Snooze <= 0 {
		return fmt.Errorf("reminder.snooze must be positive")
	}
	if c.Tasks.DBPath == "" {
		return fmt.Errorf("tasks.db_path is required")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Logger builds the text logger every component derives from.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s (supported: debug, info, warn, error)", s)
	}
}

func expandPath(path string) string {
	if path == "" {
		return path
	}

	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}

	return path
}
