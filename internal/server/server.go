package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/notexe/tim/internal/reminder"
	"github.com/notexe/tim/internal/task"
)

const (
	serverName    = "tim"
	serverVersion = "1.0.0"
)

// ReminderControl is the part of the scanner the tools drive.
type ReminderControl interface {
	DismissKey(k reminder.Key)
	SnoozeKey(k reminder.Key, d time.Duration)
	SnoozeDuration() time.Duration
}

// Server is the MCP server for tasks and their reminders.
type Server struct {
	mcpServer *server.MCPServer
	tasks     *task.List
	repo      task.Repository
	reminders ReminderControl
	inbox     *reminder.Inbox
	logger    *slog.Logger
}

type taskView struct {
	Index       int    `json:"index"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Done        bool   `json:"done"`
	Label       string `json:"label"`
}

// NewServer creates a new MCP server over the shared task list. Edits go
// through repo; delivered reminders are read from inbox and handled through
// reminders.
func NewServer(tasks *task.List, repo task.Repository, reminders ReminderControl, inbox *reminder.Inbox, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		tasks:     tasks,
		repo:      repo,
		reminders: reminders,
		inbox:     inbox,
		logger:    logger.With("component", "mcp"),
	}

	s.mcpServer = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
	)

	s.registerTools()
	return s
}

// MCPServer returns the underlying MCP server for serving.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("list_tasks",
			mcp.WithDescription("List all tasks with their 1-based index"),
		),
		s.handleListTasks,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("add_todo",
			mcp.WithDescription("Add a todo without a date"),
			mcp.WithString("description", mcp.Required(), mcp.Description("Task description")),
		),
		s.handleAddTodo,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("add_deadline",
			mcp.WithDescription("Add a task that is due at a given time"),
			mcp.WithString("description", mcp.Required(), mcp.Description("Task description")),
			mcp.WithString("due", mcp.Required(), mcp.Description("Due time: RFC3339, yyyy-mm-dd HHmm or yyyy-mm-dd")),
		),
		s.handleAddDeadline,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("add_event",
			mcp.WithDescription("Add an event with a start and optional end time"),
			mcp.WithString("description", mcp.Required(), mcp.Description("Event description")),
			mcp.WithString("start", mcp.Required(), mcp.Description("Start time: RFC3339, yyyy-mm-dd HHmm or yyyy-mm-dd")),
			mcp.WithString("end", mcp.Description("End time (defaults to start)")),
		),
		s.handleAddEvent,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("mark_task",
			mcp.WithDescription("Mark a task as done or not done"),
			mcp.WithNumber("index", mcp.Required(), mcp.Description("1-based task index")),
			mcp.WithBoolean("done", mcp.Description("Done state (default: true)")),
		),
		s.handleMarkTask,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("delete_task",
			mcp.WithDescription("Delete a task permanently"),
			mcp.WithNumber("index", mcp.Required(), mcp.Description("1-based task index")),
		),
		s.handleDeleteTask,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("pending_reminders",
			mcp.WithDescription("List reminders that fired and have not been dismissed or snoozed"),
		),
		s.handlePendingReminders,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("dismiss_reminder",
			mcp.WithDescription("Dismiss a reminder so it never fires again"),
			mcp.WithString("key", mcp.Required(), mcp.Description("Reminder key from pending_reminders")),
		),
		s.handleDismissReminder,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("snooze_reminder",
			mcp.WithDescription("Snooze a reminder; it fires once more after the delay"),
			mcp.WithString("key", mcp.Required(), mcp.Description("Reminder key from pending_reminders")),
			mcp.WithNumber("minutes", mcp.Description("Snooze length in minutes (default: configured snooze)")),
		),
		s.handleSnoozeReminder,
	)
}

func (s *Server) handleListTasks(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	all := s.tasks.All()
	if len(all) == 0 {
		return mcp.NewToolResultText("No tasks found."), nil
	}

	views := make([]taskView, len(all))
	for i, t := range all {
		views[i] = viewOf(i, t)
	}

	output, _ := json.MarshalIndent(views, "", "  ")
	return mcp.NewToolResultText(string(output)), nil
}

func (s *Server) handleAddTodo(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	description := req.GetString("description", "")
	if description == "" {
		return mcp.NewToolResultError("description is required"), nil
	}
	return s.add(task.NewTodo(description))
}

func (s *Server) handleAddDeadline(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	description := req.GetString("description", "")
	if description == "" {
		return mcp.NewToolResultError("description is required"), nil
	}

	due, err := parseWhen(req.GetString("due", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid due: %v", err)), nil
	}
	return s.add(task.NewDeadline(description, due))
}

func (s *Server) handleAddEvent(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	description := req.GetString("description", "")
	if description == "" {
		return mcp.NewToolResultError("description is required"), nil
	}

	start, err := parseWhen(req.GetString("start", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid start: %v", err)), nil
	}
	end := start
	if v := req.GetString("end", ""); v != "" {
		end, err = parseWhen(v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid end: %v", err)), nil
		}
	}
	return s.add(task.NewEvent(description, start, end))
}

func (s *Server) add(t task.Task) (*mcp.CallToolResult, error) {
	_, err := s.tasks.Apply(s.repo, func(l *task.List) (task.Task, error) {
		return t, l.Add(t)
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to add task: %v", err)), nil
	}
	s.logger.Debug("task added", "label", t.String())

	output, _ := json.MarshalIndent(viewOf(s.tasks.Len()-1, t), "", "  ")
	return mcp.NewToolResultText(string(output)), nil
}

func (s *Server) handleMarkTask(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	index, errResult := requireIndex(req)
	if errResult != nil {
		return errResult, nil
	}

	done := req.GetBool("done", true)
	t, err := s.tasks.Apply(s.repo, func(l *task.List) (task.Task, error) {
		if done {
			return l.Mark(index)
		}
		return l.Unmark(index)
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to mark task: %v", err)), nil
	}
	s.logger.Debug("task marked", "label", t.String())

	return mcp.NewToolResultText(t.String()), nil
}

func (s *Server) handleDeleteTask(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	index, errResult := requireIndex(req)
	if errResult != nil {
		return errResult, nil
	}

	removed, err := s.tasks.Apply(s.repo, func(l *task.List) (task.Task, error) {
		return l.Remove(index)
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete task: %v", err)), nil
	}
	s.logger.Debug("task deleted", "label", removed.String())

	return mcp.NewToolResultText(fmt.Sprintf("Deleted: %s", removed)), nil
}

func (s *Server) handlePendingReminders(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pending := s.inbox.Pending()
	if len(pending) == 0 {
		return mcp.NewToolResultText("No pending reminders."), nil
	}

	output, _ := json.MarshalIndent(pending, "", "  ")
	return mcp.NewToolResultText(string(output)), nil
}

func (s *Server) handleDismissReminder(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, errResult := requireKey(req)
	if errResult != nil {
		return errResult, nil
	}

	s.reminders.DismissKey(key)
	s.inbox.Remove(key)

	return mcp.NewToolResultText(fmt.Sprintf("Reminder %s dismissed.", key)), nil
}

func (s *Server) handleSnoozeReminder(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, errResult := requireKey(req)
	if errResult != nil {
		return errResult, nil
	}

	d := s.reminders.SnoozeDuration()
	if minutes := req.GetFloat("minutes", 0); minutes != 0 {
		// Checked before converting: a huge float overflows time.Duration.
		if !(minutes > 0) || minutes > reminder.MaxSnooze.Minutes() {
			return mcp.NewToolResultError(fmt.Sprintf("minutes must be positive and at most %.0f", reminder.MaxSnooze.Minutes())), nil
		}
		d = time.Duration(minutes * float64(time.Minute))
		if d <= 0 {
			return mcp.NewToolResultError("minutes must be positive"), nil
		}
	}

	s.reminders.SnoozeKey(key, d)
	s.inbox.Remove(key)

	return mcp.NewToolResultText(fmt.Sprintf("Reminder %s snoozed for %s.", key, d)), nil
}

func requireIndex(req mcp.CallToolRequest) (int, *mcp.CallToolResult) {
	indexFloat := req.GetFloat("index", 0)
	if indexFloat < 1 {
		return 0, mcp.NewToolResultError("index is required and must be a positive number")
	}
	return int(indexFloat) - 1, nil
}

func requireKey(req mcp.CallToolRequest) (reminder.Key, *mcp.CallToolResult) {
	raw := req.GetString("key", "")
	if _, _, _, err := reminder.ParseKey(raw); err != nil {
		return "", mcp.NewToolResultError(err.Error())
	}
	return reminder.Key(raw), nil
}

func parseWhen(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return task.ParseDateTime(s)
}

func viewOf(i int, t task.Task) taskView {
	return taskView{
		Index:       i + 1,
		Kind:        string(t.Kind()),
		Description: t.Description(),
		Done:        t.Done(),
		Label:       t.String(),
	}
}
