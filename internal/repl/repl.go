package repl

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/chzyer/readline"
	"github.com/notexe/tim/internal/reminder"
	"github.com/notexe/tim/internal/ui"
)

type REPL struct {
	commands   *Commands
	inbox      *reminder.Inbox
	rl         *readline.Instance
	formatter  *ui.Formatter
	taskCount  int
	scanPeriod time.Duration
}

// NewREPL wires the command set to a readline prompt. Reminders delivered to
// inbox are printed above the prompt as they arrive.
func NewREPL(commands *Commands, inbox *reminder.Inbox, formatter *ui.Formatter, scanPeriod time.Duration) (*REPL, error) {
	rl, err := setupReadline(formatter.FormatPrompt())
	if err != nil {
		return nil, fmt.Errorf("failed to setup readline: %w", err)
	}

	r := &REPL{
		commands:   commands,
		inbox:      inbox,
		rl:         rl,
		formatter:  formatter,
		taskCount:  commands.tasks.Len(),
		scanPeriod: scanPeriod,
	}
	inbox.SetNotify(r.showReminder)
	return r, nil
}

func (r *REPL) Start() error {
	defer r.rl.Close()

	r.print(r.formatter.FormatWelcome(r.taskCount, r.scanPeriod))

	for {
		input, err := r.readInput()
		if err != nil {
			if isEOF(err) {
				r.println("Bye. Hope to see you again soon!")
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		if input == "" {
			continue
		}

		out, err := r.commands.Execute(input)
		if errors.Is(err, errQuit) {
			r.println(out)
			return nil
		}
		if err != nil {
			r.println(r.formatter.FormatError(err))
			r.println("")
			continue
		}
		if out != "" {
			r.println(out)
			r.println("")
		}
	}
}

// showReminder runs on the scanner goroutine. Writing through readline's
// stdout keeps the prompt and the half-typed line intact.
func (r *REPL) showReminder(e reminder.Event) {
	pending := r.inbox.Pending()
	n := len(pending)
	for i, p := range pending {
		if p.Key == e.Key {
			n = i + 1
			break
		}
	}
	fmt.Fprintln(r.stdout(), r.formatter.FormatReminder(n, e))
}

func (r *REPL) stdout() io.Writer {
	return r.rl.Stdout()
}

func (r *REPL) print(s string) {
	fmt.Fprint(r.stdout(), s)
}

func (r *REPL) println(s string) {
	fmt.Fprintln(r.stdout(), s)
}
