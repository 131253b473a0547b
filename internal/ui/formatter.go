package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/notexe/tim/internal/reminder"
	"github.com/notexe/tim/internal/task"
)

var (
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")). // Coral red
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("222")) // Warm yellow

	SystemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("183")). // Soft purple
			Italic(true)

	IndexStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // Dim gray

	DoneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Strikethrough(true)

	ReminderBoxStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("215")). // Orange
				Padding(0, 1)

	ReminderTitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("215")).
				Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

const (
	reminderTimeLayout = "Mon Jan 2 15:04"
	reminderWidth      = 72
)

type Formatter struct {
	colored bool
}

func NewFormatter(colored bool) *Formatter {
	return &Formatter{colored: colored}
}

// FormatReminder renders a fired reminder as a banner. n is the 1-based
// position in the pending list used by the dismiss and snooze commands.
func (f *Formatter) FormatReminder(n int, e reminder.Event) string {
	title := fmt.Sprintf("%s (#%d)", e.Kind.Label(), n)
	when := e.TriggerTime.Format(reminderTimeLayout)
	hint := fmt.Sprintf("dismiss %d | snooze %d [duration]", n, n)
	// Long labels would stretch the box past the terminal.
	label := wordwrap.String(e.Label, reminderWidth)

	if !f.colored {
		return fmt.Sprintf("[%s] %s @ %s\n  %s", title, label, when, hint)
	}

	body := ReminderTitleStyle.Render(title) + "\n" +
		label + "\n" +
		DimStyle.Render(when+"  ·  "+hint)
	return ReminderBoxStyle.Render(body)
}

// FormatPending lists reminders still waiting for the user.
func (f *Formatter) FormatPending(events []reminder.Event) string {
	if len(events) == 0 {
		return f.FormatInfo("No pending reminders.")
	}

	var sb strings.Builder
	for i, e := range events {
		line := fmt.Sprintf("%d. %s: %s (%s)", i+1, e.Kind.Label(), e.Label,
			e.TriggerTime.Format(reminderTimeLayout))
		sb.WriteString(line)
		if i < len(events)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// FormatTaskList renders tasks with 1-based numbering.
func (f *Formatter) FormatTaskList(header string, tasks []task.Match) string {
	if len(tasks) == 0 {
		return f.FormatInfo("No tasks found.")
	}

	var sb strings.Builder
	sb.WriteString(f.FormatSystem(header))
	for _, m := range tasks {
		sb.WriteString("\n")
		num := fmt.Sprintf("%d.", m.Index+1)
		label := m.Task.String()
		if f.colored {
			num = IndexStyle.Render(num)
			if m.Task.Done() {
				label = DoneStyle.Render(label)
			}
		}
		sb.WriteString(num + " " + label)
	}
	return sb.String()
}

func (f *Formatter) FormatError(err error) string {
	prefix := "Error: "
	if f.colored {
		prefix = ErrorStyle.Render("Error: ")
	}
	return prefix + err.Error()
}

func (f *Formatter) FormatInfo(info string) string {
	if f.colored {
		return InfoStyle.Render(info)
	}
	return info
}

func (f *Formatter) FormatSystem(msg string) string {
	if f.colored {
		return SystemStyle.Render(msg)
	}
	return msg
}

func (f *Formatter) FormatWelcome(taskCount int, scanPeriod time.Duration) string {
	title := "tim: your tasks, on time"
	sub := fmt.Sprintf("%d task(s) loaded · reminders every %s · type 'help'", taskCount, scanPeriod)
	if !f.colored {
		return title + "\n" + sub + "\n\n"
	}
	return ReminderTitleStyle.Render(title) + "\n" + DimStyle.Render(sub) + "\n\n"
}

func (f *Formatter) FormatPrompt() string {
	if f.colored {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("114")).Bold(true).Render("› ")
	}
	return "> "
}

const helpMarkdown = `# Commands

| Command | Description |
|---|---|
| ` + "`list`" + ` | Show all tasks |
| ` + "`todo <desc>`" + ` | Add a todo |
| ` + "`deadline <desc> /by <when>`" + ` | Add a deadline |
| ` + "`event <desc> /from <when> /to <when>`" + ` | Add an event |
| ` + "`mark N`" + ` / ` + "`unmark N`" + ` | Set task N done / not done |
| ` + "`delete N`" + ` | Delete task N |
| ` + "`find <keyword>`" + ` | Search descriptions |
| ` + "`reminders`" + ` | Show pending reminders |
| ` + "`dismiss N`" + ` | Dismiss pending reminder N for good |
| ` + "`snooze N [duration]`" + ` | Snooze reminder N (e.g. 15m) |
| ` + "`help`" + ` | Show this help |
| ` + "`bye`" + ` | Exit |

Dates: ` + "`2024-03-15 1430`" + ` or ` + "`2024-03-15`" + `.
`

// FormatHelp renders the command reference, through glamour when colored.
func (f *Formatter) FormatHelp() string {
	if !f.colored {
		return helpMarkdown
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return helpMarkdown
	}
	out, err := renderer.Render(helpMarkdown)
	if err != nil {
		return helpMarkdown
	}
	return out
}
