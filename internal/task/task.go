package task

import (
	"time"

	"github.com/notexe/tim/internal/reminder"
)

// Kind tags the variant of a task, matching the storage column.
type Kind string

const (
	KindTodo     Kind = "T"
	KindDeadline Kind = "D"
	KindEvent    Kind = "E"
)

const displayLayout = "Jan 02 2006 15:04"

// Task is a single entry in the task list.
type Task interface {
	Kind() Kind
	Description() string
	Done() bool
	SetDone(done bool)
	String() string
}

type base struct {
	description string
	done        bool
}

func (b *base) Description() string { return b.description }
func (b *base) Done() bool          { return b.done }
func (b *base) SetDone(done bool)   { b.done = done }

func (b *base) label() string {
	icon := " "
	if b.done {
		icon = "X"
	}
	return "[" + icon + "] " + b.description
}

// Todo has no time attached and never triggers a reminder.
type Todo struct {
	base
}

func NewTodo(description string) *Todo {
	return &Todo{base{description: description}}
}

func (t *Todo) Kind() Kind { return KindTodo }

func (t *Todo) String() string {
	return "[T]" + t.label()
}

// Deadline is due at a single instant.
type Deadline struct {
	base
	Due time.Time
}

func NewDeadline(description string, due time.Time) *Deadline {
	return &Deadline{base: base{description: description}, Due: due}
}

func (d *Deadline) Kind() Kind { return KindDeadline }

func (d *Deadline) String() string {
	return "[D]" + d.label() + " (by: " + d.Due.Format(displayLayout) + ")"
}

func (d *Deadline) Triggers() []reminder.Trigger {
	return []reminder.Trigger{{Kind: reminder.DeadlineDue, At: d.Due}}
}

// Event spans Start to End. A zero-length event is shown as "on".
type Event struct {
	base
	Start time.Time
	End   time.Time
}

func NewEvent(description string, start, end time.Time) *Event {
	return &Event{base: base{description: description}, Start: start, End: end}
}

func (e *Event) Kind() Kind { return KindEvent }

func (e *Event) String() string {
	if e.Start.Equal(e.End) {
		return "[E]" + e.label() + " (on: " + e.Start.Format(displayLayout) + ")"
	}
	return "[E]" + e.label() + " (from: " + e.Start.Format(displayLayout) +
		" to: " + e.End.Format(displayLayout) + ")"
}

func (e *Event) Triggers() []reminder.Trigger {
	return []reminder.Trigger{{Kind: reminder.EventStart, At: e.Start}}
}

var (
	_ reminder.Triggerable = (*Deadline)(nil)
	_ reminder.Triggerable = (*Event)(nil)
)
