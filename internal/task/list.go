package task

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/notexe/tim/internal/reminder"
)

var (
	ErrIndexOutOfRange   = errors.New("task index out of range")
	ErrEmptyDescription  = errors.New("task description is empty")
	ErrEventEndsTooEarly = errors.New("event ends before it starts")
)

// List is the live task list. It is shared between the command interface and
// the reminder scanner, so every read hands out copies.
type List struct {
	mu    sync.RWMutex
	tasks []Task

	// syncMu keeps Apply and Sync from replacing the list out of order.
	syncMu sync.Mutex
}

func NewList(tasks []Task) *List {
	l := &List{}
	l.Replace(tasks)
	return l
}

// Match is a Find result; Index is 0-based.
type Match struct {
	Index int
	Task  Task
}

func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.tasks)
}

// Item implements reminder.Collection.
func (l *List) Item(i int) (reminder.Item, bool) {
	t, err := l.Get(i)
	if err != nil {
		return nil, false
	}
	return t, true
}

func (l *List) Get(i int) (Task, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if i < 0 || i >= len(l.tasks) {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i+1)
	}
	return clone(l.tasks[i]), nil
}

func (l *List) Add(t Task) error {
	if err := validate(t); err != nil {
		return err
	}

	l.mu.Lock()
	l.tasks = append(l.tasks, clone(t))
	l.mu.Unlock()
	return nil
}

func (l *List) Remove(i int) (Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if i < 0 || i >= len(l.tasks) {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i+1)
	}
	removed := l.tasks[i]
	l.tasks = append(l.tasks[:i], l.tasks[i+1:]...)
	return removed, nil
}

func (l *List) Mark(i int) (Task, error) {
	return l.setDone(i, true)
}

func (l *List) Unmark(i int) (Task, error) {
	return l.setDone(i, false)
}

func (l *List) setDone(i int, done bool) (Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if i < 0 || i >= len(l.tasks) {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i+1)
	}
	// Replace rather than mutate so copies already handed out stay stable.
	updated := clone(l.tasks[i])
	updated.SetDone(done)
	l.tasks[i] = updated
	return clone(updated), nil
}

// Find returns tasks whose description contains keyword, case-insensitively.
func (l *List) Find(keyword string) []Match {
	needle := strings.ToLower(strings.TrimSpace(keyword))

	l.mu.RLock()
	defer l.mu.RUnlock()

	var matches []Match
	for i, t := range l.tasks {
		if strings.Contains(strings.ToLower(t.Description()), needle) {
			matches = append(matches, Match{Index: i, Task: clone(t)})
		}
	}
	return matches
}

func (l *List) All() []Task {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Task, len(l.tasks))
	for i, t := range l.tasks {
		out[i] = clone(t)
	}
	return out
}

func (l *List) Replace(tasks []Task) {
	copied := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t != nil {
			copied = append(copied, clone(t))
		}
	}

	l.mu.Lock()
	l.tasks = copied
	l.mu.Unlock()
}

// Apply runs op against the stored list rather than the in-memory copy, so
// edits another process made to the same store are kept, then replaces the
// list with what was stored. With a nil repository op runs on the list
// itself. op's result is returned; on error nothing changes.
func (l *List) Apply(r Repository, op func(*List) (Task, error)) (Task, error) {
	if r == nil {
		return op(l)
	}

	l.syncMu.Lock()
	defer l.syncMu.Unlock()

	var result Task
	updated, err := r.Update(func(current []Task) ([]Task, error) {
		scratch := NewList(current)
		t, err := op(scratch)
		if err != nil {
			return nil, err
		}
		result = t
		return scratch.All(), nil
	})
	if err != nil {
		return nil, err
	}

	l.Replace(updated)
	return result, nil
}

// Sync replaces the list with the stored one.
func (l *List) Sync(r Repository) error {
	l.syncMu.Lock()
	defer l.syncMu.Unlock()

	tasks, err := r.Load()
	if err != nil {
		return err
	}
	l.Replace(tasks)
	return nil
}

func validate(t Task) error {
	if t == nil || strings.TrimSpace(t.Description()) == "" {
		return ErrEmptyDescription
	}
	if e, ok := t.(*Event); ok && e.End.Before(e.Start) {
		return ErrEventEndsTooEarly
	}
	return nil
}

func clone(t Task) Task {
	switch v := t.(type) {
	case *Todo:
		c := *v
		return &c
	case *Deadline:
		c := *v
		return &c
	case *Event:
		c := *v
		return &c
	default:
		return t
	}
}

var _ reminder.Collection = (*List)(nil)
