package task

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Millisecond precision matches reminder keys, so a reloaded task derives the
// same key it had before the restart.
const (
	storedTimeLayout = "2006-01-02T15:04:05.000"
	parseTimeLayout  = "2006-01-02T15:04:05"
)

// busyTimeout is how long a writer waits for another process holding the
// database lock.
const busyTimeout = 5 * time.Second

// Repository is durable storage for the list. Update must apply fn to the
// stored tasks and write the result back as one atomic step.
type Repository interface {
	Load() ([]Task, error)
	Update(fn func([]Task) ([]Task, error)) ([]Task, error)
}

// execer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Store provides SQLite-backed storage for the task list.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at dbPath and
// ensures the tasks table exists.
func NewStore(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)", dbPath, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createTable(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func createTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tasks (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			position    INTEGER NOT NULL,
			kind        TEXT    NOT NULL,
			description TEXT    NOT NULL,
			done        INTEGER NOT NULL DEFAULT 0,
			due         TEXT    NOT NULL DEFAULT '',
			start_at    TEXT    NOT NULL DEFAULT '',
			end_at      TEXT    NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns all tasks in list order.
func (s *Store) Load() ([]Task, error) {
	return loadTasks(context.Background(), s.db)
}

// Save replaces the stored list with tasks in a single transaction.
func (s *Store) Save(tasks []Task) error {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := saveTasks(ctx, tx, tasks); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tasks: %w", err)
	}
	return nil
}

// Update reads the stored list, hands it to fn and stores what fn returns,
// all under SQLite's write lock, so concurrent writers from other processes
// are serialized instead of overwriting each other. An error from fn is
// returned unchanged and nothing is written.
func (s *Store) Update(fn func([]Task) ([]Task, error)) ([]Task, error) {
	ctx := context.Background()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	// IMMEDIATE takes the write lock before the read, not at the first write.
	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			conn.ExecContext(ctx, "ROLLBACK")
		}
	}()

	current, err := loadTasks(ctx, conn)
	if err != nil {
		return nil, err
	}
	updated, err := fn(current)
	if err != nil {
		return nil, err
	}
	if err := saveTasks(ctx, conn, updated); err != nil {
		return nil, err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return nil, fmt.Errorf("failed to commit tasks: %w", err)
	}
	committed = true
	return updated, nil
}

func loadTasks(ctx context.Context, q execer) ([]Task, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT kind, description, done, due, start_at, end_at
		FROM tasks ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var (
			kind, description, due, start, end string
			done                               bool
		)
		if err := rows.Scan(&kind, &description, &done, &due, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		t, err := decodeTask(Kind(kind), description, due, start, end)
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", len(tasks)+1, err)
		}
		t.SetDone(done)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func saveTasks(ctx context.Context, q execer, tasks []Task) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return fmt.Errorf("failed to clear tasks: %w", err)
	}

	stmt, err := q.PrepareContext(ctx, `
		INSERT INTO tasks (position, kind, description, done, due, start_at, end_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range tasks {
		var due, start, end string
		switch v := t.(type) {
		case *Deadline:
			due = formatStoredTime(v.Due)
		case *Event:
			start = formatStoredTime(v.Start)
			end = formatStoredTime(v.End)
		}

		if _, err := stmt.ExecContext(ctx, i, string(t.Kind()), t.Description(), t.Done(), due, start, end); err != nil {
			return fmt.Errorf("failed to insert task %d: %w", i+1, err)
		}
	}
	return nil
}

func decodeTask(kind Kind, description, due, start, end string) (Task, error) {
	switch kind {
	case KindTodo:
		return NewTodo(description), nil
	case KindDeadline:
		dueAt, err := parseStoredTime(due)
		if err != nil {
			return nil, fmt.Errorf("bad due time: %w", err)
		}
		return NewDeadline(description, dueAt), nil
	case KindEvent:
		startAt, err := parseStoredTime(start)
		if err != nil {
			return nil, fmt.Errorf("bad start time: %w", err)
		}
		endAt, err := parseStoredTime(end)
		if err != nil {
			return nil, fmt.Errorf("bad end time: %w", err)
		}
		return NewEvent(description, startAt, endAt), nil
	default:
		return nil, fmt.Errorf("unknown task kind %q", kind)
	}
}

// Times are stored as local wall-clock values, like the dates users type.
func formatStoredTime(t time.Time) string {
	return t.In(time.Local).Format(storedTimeLayout)
}

func parseStoredTime(s string) (time.Time, error) {
	return time.ParseInLocation(parseTimeLayout, s, time.Local)
}

var _ Repository = (*Store)(nil)
