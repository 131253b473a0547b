package repl

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/notexe/tim/internal/reminder"
	"github.com/notexe/tim/internal/task"
	"github.com/notexe/tim/internal/ui"
)

// Reminders is the part of the scanner the commands drive.
type Reminders interface {
	Dismiss(ev *reminder.Event)
	Snooze(ev *reminder.Event, d time.Duration)
	SnoozeDuration() time.Duration
}

var (
	errQuit          = errors.New("quit")
	errSnoozeTooLong = fmt.Errorf("snooze duration must be at most %s", reminder.MaxSnooze)
)

// Commands executes one line of user input against the task list. Changes go
// through repo so another tim process sharing it is not overwritten; a nil
// repo keeps the list in memory only.
type Commands struct {
	tasks     *task.List
	repo      task.Repository
	reminders Reminders
	inbox     *reminder.Inbox
	formatter *ui.Formatter
}

func NewCommands(tasks *task.List, repo task.Repository, reminders Reminders, inbox *reminder.Inbox, formatter *ui.Formatter) *Commands {
	return &Commands{
		tasks:     tasks,
		repo:      repo,
		reminders: reminders,
		inbox:     inbox,
		formatter: formatter,
	}
}

func parseCommand(input string) (string, string) {
	parts := strings.SplitN(strings.TrimSpace(input), " ", 2)
	command := strings.ToLower(parts[0])

	args := ""
	if len(parts) > 1 {
		args = strings.TrimSpace(parts[1])
	}
	return command, args
}

// Execute runs a command and returns the text to show. It returns errQuit
// when the user asked to leave.
func (c *Commands) Execute(input string) (string, error) {
	command, args := parseCommand(input)

	switch command {
	case "":
		return "", nil
	case "bye", "exit", "quit":
		return "Bye. Hope to see you again soon!", errQuit
	case "help":
		return c.formatter.FormatHelp(), nil
	case "list":
		return c.list(), nil
	case "todo":
		return c.addTodo(args)
	case "deadline":
		return c.addDeadline(args)
	case "event":
		return c.addEvent(args)
	case "mark":
		return c.setDone(args, true)
	case "unmark":
		return c.setDone(args, false)
	case "delete":
		return c.delete(args)
	case "find":
		return c.find(args)
	case "reminders":
		return c.formatter.FormatPending(c.inbox.Pending()), nil
	case "dismiss":
		return c.dismiss(args)
	case "snooze":
		return c.snooze(args)
	default:
		return "", fmt.Errorf("unknown command: %s (type help for available commands)", command)
	}
}

func (c *Commands) list() string {
	all := c.tasks.All()
	matches := make([]task.Match, len(all))
	for i, t := range all {
		matches[i] = task.Match{Index: i, Task: t}
	}
	return c.formatter.FormatTaskList("Here are the tasks in your list:", matches)
}

func (c *Commands) addTodo(args string) (string, error) {
	if args == "" {
		return "", fmt.Errorf("usage: todo <description>")
	}
	return c.add(task.NewTodo(args))
}

func (c *Commands) addDeadline(args string) (string, error) {
	description, by, ok := strings.Cut(args, "/by")
	description = strings.TrimSpace(description)
	if !ok || description == "" {
		return "", fmt.Errorf("usage: deadline <description> /by <when>")
	}

	due, err := task.ParseDateTime(by)
	if err != nil {
		return "", err
	}
	return c.add(task.NewDeadline(description, due))
}

func (c *Commands) addEvent(args string) (string, error) {
	description, rest, ok := strings.Cut(args, "/from")
	description = strings.TrimSpace(description)
	if !ok || description == "" {
		return "", fmt.Errorf("usage: event <description> /from <when> /to <when>")
	}
	from, to, ok := strings.Cut(rest, "/to")
	if !ok {
		return "", fmt.Errorf("usage: event <description> /from <when> /to <when>")
	}

	start, err := task.ParseDateTime(from)
	if err != nil {
		return "", err
	}
	end, err := task.ParseDateTime(to)
	if err != nil {
		return "", err
	}
	return c.add(task.NewEvent(description, start, end))
}

func (c *Commands) add(t task.Task) (string, error) {
	_, err := c.tasks.Apply(c.repo, func(l *task.List) (task.Task, error) {
		return t, l.Add(t)
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Got it. I've added this task:\n  %s\nNow you have %d task(s) in the list.", t, c.tasks.Len()), nil
}

func (c *Commands) setDone(args string, done bool) (string, error) {
	index, err := parseIndex(args)
	if err != nil {
		return "", err
	}

	t, err := c.tasks.Apply(c.repo, func(l *task.List) (task.Task, error) {
		if done {
			return l.Mark(index)
		}
		return l.Unmark(index)
	})
	if err != nil {
		return "", err
	}

	if done {
		return "Nice! I've marked this task as done:\n  " + t.String(), nil
	}
	return "OK, I've marked this task as not done yet:\n  " + t.String(), nil
}

func (c *Commands) delete(args string) (string, error) {
	index, err := parseIndex(args)
	if err != nil {
		return "", err
	}

	removed, err := c.tasks.Apply(c.repo, func(l *task.List) (task.Task, error) {
		return l.Remove(index)
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Noted. I've removed this task:\n  %s\nNow you have %d task(s) in the list.", removed, c.tasks.Len()), nil
}

func (c *Commands) find(args string) (string, error) {
	if args == "" {
		return "", fmt.Errorf("usage: find <keyword>")
	}
	return c.formatter.FormatTaskList("Here are the matching tasks in your list:", c.tasks.Find(args)), nil
}

func (c *Commands) dismiss(args string) (string, error) {
	ev, err := c.pendingAt(args)
	if err != nil {
		return "", err
	}

	c.reminders.Dismiss(&ev)
	c.inbox.Remove(ev.Key)
	return "Dismissed: " + ev.Label, nil
}

func (c *Commands) snooze(args string) (string, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 || len(fields) > 2 {
		return "", fmt.Errorf("usage: snooze N [duration]")
	}

	ev, err := c.pendingAt(fields[0])
	if err != nil {
		return "", err
	}

	d := c.reminders.SnoozeDuration()
	if len(fields) == 2 {
		d, err = parseSnooze(fields[1])
		if err != nil {
			return "", err
		}
	}

	c.reminders.Snooze(&ev, d)
	c.inbox.Remove(ev.Key)
	return fmt.Sprintf("Snoozed for %s: %s", d, ev.Label), nil
}

func (c *Commands) pendingAt(args string) (reminder.Event, error) {
	n, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil {
		return reminder.Event{}, fmt.Errorf("reminder number must be an integer: %q", args)
	}

	pending := c.inbox.Pending()
	if n < 1 || n > len(pending) {
		return reminder.Event{}, fmt.Errorf("no pending reminder #%d (type reminders to list them)", n)
	}
	return pending[n-1], nil
}

func parseIndex(args string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil {
		return 0, fmt.Errorf("task number must be an integer: %q", args)
	}
	return n - 1, nil
}

// parseSnooze accepts Go durations ("15m", "1h30m") or bare minutes ("15"),
// up to reminder.MaxSnooze.
func parseSnooze(s string) (time.Duration, error) {
	var d time.Duration
	if minutes, err := strconv.Atoi(s); err == nil {
		if minutes > int(reminder.MaxSnooze/time.Minute) {
			return 0, errSnoozeTooLong
		}
		d = time.Duration(minutes) * time.Minute
	} else {
		d, err = time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid snooze duration %q", s)
		}
	}

	if d <= 0 {
		return 0, fmt.Errorf("snooze duration must be positive")
	}
	if d > reminder.MaxSnooze {
		return 0, errSnoozeTooLong
	}
	return d, nil
}
