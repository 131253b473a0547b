// Package app wires the task list, its store and the reminder scanner
// together for the binaries under cmd/.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/notexe/tim/internal/config"
	"github.com/notexe/tim/internal/reminder"
	"github.com/notexe/tim/internal/task"
	"github.com/notexe/tim/internal/watch"
)

type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Store   *task.Store
	Tasks   *task.List
	Inbox   *reminder.Inbox
	Scanner *reminder.Scanner

	watcher *watch.Watcher
}

// New opens the task database, loads the list and builds a scanner that
// delivers into a fresh inbox. The scanner is not started.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if dir := filepath.Dir(cfg.Tasks.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	store, err := task.NewStore(cfg.Tasks.DBPath)
	if err != nil {
		return nil, err
	}

	loaded, err := store.Load()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	tasks := task.NewList(loaded)
	logger.Debug("tasks loaded", "component", "tasks", "count", len(loaded), "path", cfg.Tasks.DBPath)

	inbox := reminder.NewInbox(nil)

	opts := []reminder.Option{
		reminder.WithScanPeriod(cfg.Reminder.ScanPeriod),
		reminder.WithStartupGrace(cfg.Reminder.StartupGrace),
		reminder.WithSnoozeDuration(cfg.Reminder.Snooze),
		reminder.WithLogger(logger),
	}
	if cfg.Reminder.KeysFile != "" {
		opts = append(opts, reminder.WithKeyStore(reminder.NewFileKeyStore(cfg.Reminder.KeysFile, logger)))
	}

	scanner, err := reminder.NewScanner(tasks, inbox, opts...)
	if err != nil {
		store.Close()
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		Tasks:   tasks,
		Inbox:   inbox,
		Scanner: scanner,
	}

	a.startWatching()
	return a, nil
}

// startWatching follows edits another tim process makes to the shared
// database and key file. It is best effort: without it edits still merge on
// write through Store.Update, the list just lags until then.
func (a *App) startWatching() {
	watchKeys := a.Config.Reminder.KeysFile != "" && a.Config.Reminder.WatchKeys
	if !watchKeys && !a.Config.Tasks.Watch {
		return
	}

	w, err := watch.New(a.Logger)
	if err != nil {
		a.Logger.Warn("not watching for changes", "error", err)
		return
	}
	a.watcher = w

	if a.Config.Tasks.Watch {
		a.watchTasks()
	}
	if watchKeys {
		a.watchKeys()
	}
}

func (a *App) watchTasks() {
	logger := a.Logger.With("component", "tasks")
	reload := func() {
		if err := a.Tasks.Sync(a.Store); err != nil {
			logger.Warn("failed to reload tasks", "error", err)
			return
		}
		logger.Debug("tasks reloaded", "count", a.Tasks.Len())
	}

	// Commits land in the WAL file; checkpoints rewrite the database file.
	path := a.Config.Tasks.DBPath
	for _, p := range []string{path, path + "-wal"} {
		if err := a.watcher.Watch(p, reload); err != nil {
			logger.Warn("not watching tasks", "error", err)
			return
		}
	}
}

func (a *App) watchKeys() {
	logger := a.Logger.With("component", "reminder")
	path := a.Config.Reminder.KeysFile

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Warn("not watching reminder keys", "error", err)
		return
	}
	err := a.watcher.Watch(path, func() {
		if _, err := a.Scanner.Reload(); err != nil {
			logger.Warn("failed to reload reminder keys", "error", err)
		}
	})
	if err != nil {
		logger.Warn("not watching reminder keys", "error", err)
	}
}

// Close stops watching and the scanner, flushing reminder keys, and closes
// the store.
func (a *App) Close() error {
	if a.watcher != nil {
		a.watcher.Close()
	}
	a.Scanner.Stop()
	return a.Store.Close()
}
