package app

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/notexe/tim/internal/config"
	"github.com/notexe/tim/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Reminder: config.ReminderConfig{
			Enabled:      true,
			ScanPeriod:   time.Hour,
			StartupGrace: 24 * time.Hour,
			Snooze:       10 * time.Minute,
			KeysFile:     filepath.Join(dir, "data", "dismissed_reminders.txt"),
			WatchKeys:    true,
		},
		Tasks: config.TasksConfig{DBPath: filepath.Join(dir, "db", "tasks.db"), Watch: true},
		Log:   config.LogConfig{Level: "info"},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAppDeliversAndRemembersAcrossRestart(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(cfg, quietLogger())
	require.NoError(t, err)
	require.NoError(t, a.Tasks.Add(task.NewDeadline("return book", time.Now().Add(-time.Minute).Truncate(time.Millisecond))))
	require.NoError(t, a.Tasks.Add(task.NewTodo("read book")))
	require.NoError(t, a.Store.Save(a.Tasks.All()))

	assert.Equal(t, 1, a.Scanner.ScanOnce())
	require.Equal(t, 1, a.Inbox.Len())
	require.NoError(t, a.Close())

	b, err := New(cfg, quietLogger())
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, 2, b.Tasks.Len())
	assert.Equal(t, 0, b.Scanner.ScanOnce())
	assert.Equal(t, 0, b.Inbox.Len())
}

func TestAppWithoutKeysFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Reminder.KeysFile = ""
	cfg.Tasks.Watch = false

	a, err := New(cfg, quietLogger())
	require.NoError(t, err)
	assert.Nil(t, a.watcher)
	require.NoError(t, a.Close())
}

func addTodo(t *testing.T, a *App, description string) {
	t.Helper()
	_, err := a.Tasks.Apply(a.Store, func(l *task.List) (task.Task, error) {
		todo := task.NewTodo(description)
		return todo, l.Add(todo)
	})
	require.NoError(t, err)
}

func TestTwoAppsShareOneDatabase(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(cfg, quietLogger())
	require.NoError(t, err)
	defer a.Close()
	b, err := New(cfg, quietLogger())
	require.NoError(t, err)
	defer b.Close()

	addTodo(t, a, "from a")
	addTodo(t, b, "from b")

	stored, err := a.Store.Load()
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "from a", stored[0].Description())
	assert.Equal(t, "from b", stored[1].Description())

	assert.Eventually(t, func() bool { return a.Tasks.Len() == 2 }, 2*time.Second, 20*time.Millisecond)
}

func TestTwoAppsShareFiredKeys(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(cfg, quietLogger())
	require.NoError(t, err)
	defer a.Close()
	b, err := New(cfg, quietLogger())
	require.NoError(t, err)
	defer b.Close()

	due := time.Now().Add(-time.Minute).Truncate(time.Millisecond)
	_, err = a.Tasks.Apply(a.Store, func(l *task.List) (task.Task, error) {
		d := task.NewDeadline("return book", due)
		return d, l.Add(d)
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return b.Tasks.Len() == 1 }, 2*time.Second, 20*time.Millisecond)

	require.Equal(t, 1, a.Scanner.ScanOnce())
	key := a.Inbox.Pending()[0].Key
	a.Scanner.DismissKey(key)

	// Reload is what b's key file watcher runs.
	_, err = b.Scanner.Reload()
	require.NoError(t, err)

	b.Scanner.SnoozeKey(key, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 0, b.Scanner.ScanOnce())
	assert.Equal(t, 0, b.Inbox.Len())
}
