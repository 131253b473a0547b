package repl

import (
	"errors"
	"testing"
	"time"

	"github.com/notexe/tim/internal/reminder"
	"github.com/notexe/tim/internal/task"
	"github.com/notexe/tim/internal/ui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo stands in for the task database. Tests may edit stored directly to
// play another process.
type fakeRepo struct {
	stored []task.Task
	saved  [][]task.Task
	err    error
}

func (r *fakeRepo) Load() ([]task.Task, error) {
	return r.stored, r.err
}

func (r *fakeRepo) Update(fn func([]task.Task) ([]task.Task, error)) ([]task.Task, error) {
	if r.err != nil {
		return nil, r.err
	}
	updated, err := fn(r.stored)
	if err != nil {
		return nil, err
	}
	r.stored = updated
	r.saved = append(r.saved, updated)
	return updated, nil
}

type fakeReminders struct {
	dismissed []reminder.Key
	snoozed   map[reminder.Key]time.Duration
}

func (r *fakeReminders) Dismiss(ev *reminder.Event) {
	r.dismissed = append(r.dismissed, ev.Key)
}

func (r *fakeReminders) Snooze(ev *reminder.Event, d time.Duration) {
	if r.snoozed == nil {
		r.snoozed = make(map[reminder.Key]time.Duration)
	}
	r.snoozed[ev.Key] = d
}

func (r *fakeReminders) SnoozeDuration() time.Duration { return 10 * time.Minute }

type fixture struct {
	cmds      *Commands
	tasks     *task.List
	repo      *fakeRepo
	reminders *fakeReminders
	inbox     *reminder.Inbox
}

func newFixture(tasks ...task.Task) *fixture {
	f := &fixture{
		tasks:     task.NewList(tasks),
		repo:      &fakeRepo{stored: tasks},
		reminders: &fakeReminders{},
		inbox:     reminder.NewInbox(nil),
	}
	f.cmds = NewCommands(f.tasks, f.repo, f.reminders, f.inbox, ui.NewFormatter(false))
	return f
}

func (f *fixture) deliver(label string) reminder.Event {
	ev := reminder.Event{
		Index:       0,
		Label:       label,
		TriggerTime: time.Date(2024, 3, 4, 9, 30, 0, 0, time.Local),
		Kind:        reminder.DeadlineDue,
		Key:         reminder.Key("DEADLINE_DUE#0#" + label),
	}
	f.inbox.OnReminder(ev)
	return ev
}

func TestAddCommands(t *testing.T) {
	f := newFixture()

	out, err := f.cmds.Execute("todo read book")
	require.NoError(t, err)
	assert.Equal(t, "Got it. I've added this task:\n  [T][ ] read book\nNow you have 1 task(s) in the list.", out)

	out, err = f.cmds.Execute("deadline return book /by 2024-03-04 0930")
	require.NoError(t, err)
	assert.Contains(t, out, "[D][ ] return book (by: Mar 04 2024 09:30)")

	out, err = f.cmds.Execute("event conference /from 2024-03-04 0900 /to 2024-03-05 1700")
	require.NoError(t, err)
	assert.Contains(t, out, "[E][ ] conference (from: Mar 04 2024 09:00 to: Mar 05 2024 17:00)")
	assert.Contains(t, out, "Now you have 3 task(s)")

	assert.Equal(t, 3, f.tasks.Len())
	require.Len(t, f.repo.saved, 3)
	assert.Len(t, f.repo.saved[2], 3)
}

func TestAddCommandErrors(t *testing.T) {
	f := newFixture()

	inputs := []string{
		"todo",
		"deadline return book",
		"deadline /by 2024-03-04",
		"deadline return book /by someday",
		"event conference /from 2024-03-04",
		"event conference /from 2024-03-05 /to 2024-03-04",
	}
	for _, in := range inputs {
		_, err := f.cmds.Execute(in)
		assert.Error(t, err, in)
	}
	assert.Equal(t, 0, f.tasks.Len())
	assert.Empty(t, f.repo.saved)
}

func TestListMarkDeleteFind(t *testing.T) {
	f := newFixture(task.NewTodo("read book"), task.NewTodo("buy milk"), task.NewTodo("return book"))

	out, err := f.cmds.Execute("list")
	require.NoError(t, err)
	assert.Equal(t, "Here are the tasks in your list:\n1. [T][ ] read book\n2. [T][ ] buy milk\n3. [T][ ] return book", out)

	out, err = f.cmds.Execute("mark 2")
	require.NoError(t, err)
	assert.Equal(t, "Nice! I've marked this task as done:\n  [T][X] buy milk", out)

	out, err = f.cmds.Execute("unmark 2")
	require.NoError(t, err)
	assert.Equal(t, "OK, I've marked this task as not done yet:\n  [T][ ] buy milk", out)

	out, err = f.cmds.Execute("find BOOK")
	require.NoError(t, err)
	assert.Equal(t, "Here are the matching tasks in your list:\n1. [T][ ] read book\n3. [T][ ] return book", out)

	out, err = f.cmds.Execute("delete 1")
	require.NoError(t, err)
	assert.Equal(t, "Noted. I've removed this task:\n  [T][ ] read book\nNow you have 2 task(s) in the list.", out)

	_, err = f.cmds.Execute("delete 9")
	assert.ErrorIs(t, err, task.ErrIndexOutOfRange)
	_, err = f.cmds.Execute("mark two")
	assert.Error(t, err)
}

func TestSaveFailureSurfaces(t *testing.T) {
	f := newFixture()
	f.repo.err = errors.New("disk full")

	_, err := f.cmds.Execute("todo read book")
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, 0, f.tasks.Len())
}

func TestDismissCommand(t *testing.T) {
	f := newFixture()
	first := f.deliver("first")
	f.deliver("second")

	out, err := f.cmds.Execute("dismiss 1")
	require.NoError(t, err)
	assert.Equal(t, "Dismissed: first", out)
	assert.Equal(t, []reminder.Key{first.Key}, f.reminders.dismissed)

	pending := f.inbox.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "second", pending[0].Label)

	_, err = f.cmds.Execute("dismiss 2")
	assert.Error(t, err)
	_, err = f.cmds.Execute("dismiss x")
	assert.Error(t, err)
}

func TestSnoozeCommand(t *testing.T) {
	f := newFixture()
	ev := f.deliver("first")

	out, err := f.cmds.Execute("snooze 1")
	require.NoError(t, err)
	assert.Equal(t, "Snoozed for 10m0s: first", out)
	assert.Equal(t, 10*time.Minute, f.reminders.snoozed[ev.Key])
	assert.Equal(t, 0, f.inbox.Len())

	ev = f.deliver("again")
	_, err = f.cmds.Execute("snooze 1 15")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, f.reminders.snoozed[ev.Key])

	ev = f.deliver("later")
	_, err = f.cmds.Execute("snooze 1 1h30m")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, f.reminders.snoozed[ev.Key])
}

func TestSnoozeCommandErrors(t *testing.T) {
	f := newFixture()
	f.deliver("first")

	for _, in := range []string{"snooze", "snooze 1 0", "snooze 1 -5m", "snooze 1 soon", "snooze 1 2 3", "snooze 4"} {
		_, err := f.cmds.Execute(in)
		assert.Error(t, err, in)
	}
	assert.Empty(t, f.reminders.snoozed)
	assert.Equal(t, 1, f.inbox.Len())
}

func TestRemindersCommand(t *testing.T) {
	f := newFixture()

	out, err := f.cmds.Execute("reminders")
	require.NoError(t, err)
	assert.Equal(t, "No pending reminders.", out)

	f.deliver("first")
	out, err = f.cmds.Execute("reminders")
	require.NoError(t, err)
	assert.Equal(t, "1. Deadline due: first (Mon Mar 4 09:30)", out)
}

func TestQuitAndUnknown(t *testing.T) {
	f := newFixture()

	for _, in := range []string{"bye", "EXIT", "quit"} {
		out, err := f.cmds.Execute(in)
		assert.ErrorIs(t, err, errQuit)
		assert.Equal(t, "Bye. Hope to see you again soon!", out)
	}

	_, err := f.cmds.Execute("dance")
	assert.ErrorContains(t, err, "unknown command")

	out, err := f.cmds.Execute("   ")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestParseSnooze(t *testing.T) {
	d, err := parseSnooze("5")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, d)

	d, err = parseSnooze("45s")
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, d)
}

func TestParseSnoozeRejectsHugeValues(t *testing.T) {
	for _, in := range []string{"300000000", "9223372036854775807", "9000h"} {
		_, err := parseSnooze(in)
		assert.ErrorIs(t, err, errSnoozeTooLong, in)
	}

	d, err := parseSnooze("525600")
	require.NoError(t, err)
	assert.Equal(t, reminder.MaxSnooze, d)
}

func TestSnoozeCommandRejectsHugeMinutes(t *testing.T) {
	f := newFixture()
	f.deliver("first")

	_, err := f.cmds.Execute("snooze 1 300000000")
	assert.Error(t, err)
	assert.Empty(t, f.reminders.snoozed)
	assert.Equal(t, 1, f.inbox.Len())
}

func TestCommandsKeepOtherWritersTasks(t *testing.T) {
	f := newFixture(task.NewTodo("read book"))

	// Another process appends a task this list has not seen.
	f.repo.stored = append(f.repo.stored, task.NewTodo("buy milk"))

	out, err := f.cmds.Execute("todo return book")
	require.NoError(t, err)
	assert.Contains(t, out, "Now you have 3 task(s)")
	require.Len(t, f.repo.stored, 3)
	assert.Equal(t, "buy milk", f.repo.stored[1].Description())

	_, err = f.cmds.Execute("mark 2")
	require.NoError(t, err)
	assert.True(t, f.repo.stored[1].Done())

	out, err = f.cmds.Execute("list")
	require.NoError(t, err)
	assert.Equal(t, "Here are the tasks in your list:\n1. [T][ ] read book\n2. [T][X] buy milk\n3. [T][ ] return book", out)
}
