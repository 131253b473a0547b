package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/notexe/tim/internal/reminder"
	"github.com/notexe/tim/internal/task"
	"github.com/stretchr/testify/assert"
)

var at = time.Date(2024, 3, 4, 9, 30, 0, 0, time.Local)

func TestFormatReminderPlain(t *testing.T) {
	f := NewFormatter(false)
	ev := reminder.Event{Label: "[D][ ] return book (by: Mar 04 2024 09:30)", TriggerTime: at, Kind: reminder.DeadlineDue}

	assert.Equal(t,
		"[Deadline due (#2)] [D][ ] return book (by: Mar 04 2024 09:30) @ Mon Mar 4 09:30\n  dismiss 2 | snooze 2 [duration]",
		f.FormatReminder(2, ev))
}

func TestFormatReminderColoredKeepsContent(t *testing.T) {
	f := NewFormatter(true)
	ev := reminder.Event{Label: "conference", TriggerTime: at, Kind: reminder.EventStart}

	out := f.FormatReminder(1, ev)
	assert.Contains(t, out, "Event starting (#1)")
	assert.Contains(t, out, "conference")
}

func TestFormatPending(t *testing.T) {
	f := NewFormatter(false)
	assert.Equal(t, "No pending reminders.", f.FormatPending(nil))

	events := []reminder.Event{
		{Label: "a", TriggerTime: at, Kind: reminder.DeadlineDue},
		{Label: "b", TriggerTime: at.Add(time.Hour), Kind: reminder.EventStart},
	}
	assert.Equal(t,
		"1. Deadline due: a (Mon Mar 4 09:30)\n2. Event starting: b (Mon Mar 4 10:30)",
		f.FormatPending(events))
}

func TestFormatTaskList(t *testing.T) {
	f := NewFormatter(false)
	assert.Equal(t, "No tasks found.", f.FormatTaskList("Tasks:", nil))

	matches := []task.Match{
		{Index: 0, Task: task.NewTodo("read book")},
		{Index: 4, Task: task.NewDeadline("return book", at)},
	}
	assert.Equal(t,
		"Tasks:\n1. [T][ ] read book\n5. [D][ ] return book (by: Mar 04 2024 09:30)",
		f.FormatTaskList("Tasks:", matches))
}

func TestFormatPlainHelpers(t *testing.T) {
	f := NewFormatter(false)

	assert.Equal(t, "Error: boom", f.FormatError(errors.New("boom")))
	assert.Equal(t, "> ", f.FormatPrompt())
	assert.Equal(t, "tim: your tasks, on time\n3 task(s) loaded · reminders every 20s · type 'help'\n\n",
		f.FormatWelcome(3, 20*time.Second))
	assert.Contains(t, f.FormatHelp(), "snooze N [duration]")
}

func TestFormatReminderWrapsLongLabels(t *testing.T) {
	f := NewFormatter(false)
	long := strings.Repeat("word ", 30)
	ev := reminder.Event{Label: long, TriggerTime: at, Kind: reminder.DeadlineDue}

	out := f.FormatReminder(1, ev)
	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, len(line), reminderWidth+len("[Deadline due (#1)] "))
	}
}
