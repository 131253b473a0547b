// Package watch runs callbacks when files change on disk. Parent directories
// are watched rather than the files themselves, so files replaced by rename
// and sqlite WAL side files are both seen.
package watch

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounce = 100 * time.Millisecond

type target struct {
	onChange func()
	timer    *time.Timer
}

// Watcher coalesces bursts of writes to a file into one onChange call.
type Watcher struct {
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	mu      sync.Mutex
	dirs    map[string]bool
	targets map[string]*target

	done     chan struct{}
	stopped  chan struct{}
	once     sync.Once
	closeErr error
}

func New(logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		watcher: fsw,
		logger:  logger.With("component", "watch"),
		dirs:    make(map[string]bool),
		targets: make(map[string]*target),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Watch calls onChange shortly after path is written or created. Several
// paths may share one callback.
func (w *Watcher) Watch(path string, onChange func()) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(absPath)

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.dirs[dir] {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.dirs[dir] = true
	}
	w.targets[absPath] = &target{onChange: onChange}
	return nil
}

func (w *Watcher) run() {
	defer close(w.stopped)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.schedule(filepath.Clean(event.Name))
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watch error", "error", err)

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) schedule(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	t, ok := w.targets[name]
	if !ok {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(debounce, func() {
		select {
		case <-w.done:
			return
		default:
		}
		t.onChange()
	})
}

func (w *Watcher) Close() error {
	w.once.Do(func() {
		close(w.done)
		w.closeErr = w.watcher.Close()
		<-w.stopped

		w.mu.Lock()
		for _, t := range w.targets {
			if t.timer != nil {
				t.timer.Stop()
			}
		}
		w.mu.Unlock()
	})
	return w.closeErr
}
