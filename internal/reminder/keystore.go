package reminder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FiredSet is the set of keys that must not fire again unless re-armed.
type FiredSet struct {
	mu   sync.Mutex
	keys map[Key]struct{}
}

func NewFiredSet() *FiredSet {
	return &FiredSet{keys: make(map[Key]struct{})}
}

// Add inserts k and reports whether it was absent. This is the only
// "first time seeing this key" check the scanner relies on.
func (s *FiredSet) Add(k Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[k]; ok {
		return false
	}
	s.keys[k] = struct{}{}
	return true
}

func (s *FiredSet) AddAll(keys []Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		s.keys[k] = struct{}{}
	}
}

func (s *FiredSet) Remove(k Key) {
	s.mu.Lock()
	delete(s.keys, k)
	s.mu.Unlock()
}

func (s *FiredSet) Contains(k Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.keys[k]
	return ok
}

func (s *FiredSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// Keys returns a sorted snapshot.
func (s *FiredSet) Keys() []Key {
	s.mu.Lock()
	out := make([]Key, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SnoozeTable maps a key to the instant until which it is suppressed.
// Entries are checked, not evicted.
type SnoozeTable struct {
	mu    sync.Mutex
	until map[Key]time.Time
}

func NewSnoozeTable() *SnoozeTable {
	return &SnoozeTable{until: make(map[Key]time.Time)}
}

func (t *SnoozeTable) Set(k Key, until time.Time) {
	t.mu.Lock()
	t.until[k] = until
	t.mu.Unlock()
}

func (t *SnoozeTable) Clear(k Key) {
	t.mu.Lock()
	delete(t.until, k)
	t.mu.Unlock()
}

// Active reports whether k is still suppressed at now.
func (t *SnoozeTable) Active(k Key, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	until, ok := t.until[k]
	return ok && now.Before(until)
}

// Until returns the suppression instant for k, if any.
func (t *SnoozeTable) Until(k Key) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	until, ok := t.until[k]
	return until, ok
}

// KeyStore persists fired and dismissed keys across restarts.
type KeyStore interface {
	Load() ([]Key, error)
	Save(keys []Key) error
}

// DismissalStore is implemented by key stores that also remember which keys
// were dismissed, so dismissal stays terminal after a restart.
type DismissalStore interface {
	LoadDismissed() ([]Key, error)
	SaveDismissed(keys []Key) error
}

// FileKeyStore keeps one key per line in a flat text file. Dismissed keys are
// also listed in a sibling file next to it.
type FileKeyStore struct {
	path   string
	logger *slog.Logger
}

// NewFileKeyStore returns a store backed by path. The file and its parent
// directories are created on the first Save.
func NewFileKeyStore(path string, logger *slog.Logger) *FileKeyStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileKeyStore{path: path, logger: logger}
}

func (fs *FileKeyStore) Path() string {
	return fs.path
}

// DismissedPath is data/dismissed_reminders.dismissed.txt for
// data/dismissed_reminders.txt.
func (fs *FileKeyStore) DismissedPath() string {
	ext := filepath.Ext(fs.path)
	return strings.TrimSuffix(fs.path, ext) + ".dismissed" + ext
}

// Load returns the persisted keys. A missing file is not an error; lines that
// do not parse as keys are skipped.
func (fs *FileKeyStore) Load() ([]Key, error) {
	return fs.readKeys(fs.path)
}

func (fs *FileKeyStore) Save(keys []Key) error {
	return fs.writeKeys(fs.path, keys)
}

func (fs *FileKeyStore) LoadDismissed() ([]Key, error) {
	return fs.readKeys(fs.DismissedPath())
}

func (fs *FileKeyStore) SaveDismissed(keys []Key) error {
	return fs.writeKeys(fs.DismissedPath(), keys)
}

func (fs *FileKeyStore) readKeys(path string) ([]Key, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open key file: %w", err)
	}
	defer f.Close()

	var (
		keys    []Key
		skipped int
	)
	// No line length limit: an oversized line is skipped as malformed.
	r := bufio.NewReader(f)
	for {
		line, err := r.ReadString('\n')
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			if _, _, _, perr := ParseKey(trimmed); perr != nil {
				skipped++
			} else {
				keys = append(keys, Key(trimmed))
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return keys, fmt.Errorf("failed to read key file: %w", err)
		}
	}

	if skipped > 0 {
		fs.logger.Warn("skipped malformed reminder keys", "path", path, "skipped", skipped)
	}
	return keys, nil
}

// writeKeys replaces the file contents with keys. The write goes to a temp
// file in the same directory and is renamed into place.
func (fs *FileKeyStore) writeKeys(path string, keys []Key) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp key file: %w", err)
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	for _, k := range keys {
		w.WriteString(string(k))
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write key file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close key file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace key file: %w", err)
	}
	return nil
}

var (
	_ KeyStore       = (*FileKeyStore)(nil)
	_ DismissalStore = (*FileKeyStore)(nil)
)
