package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sgd-notifier/sgdn/internal/reminder"
	"github.com/sgd-notifier/sgdn/internal/storage"
)

// ActiveResourceURI serves the active notification as JSON.
const ActiveResourceURI = "sgdn://active"

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store         *storage.Store
	Notifications Notifications
	Events        Events
	Peaks         PeakDays
	Broadcaster   Broadcaster // optional
	Location      *time.Location
	Now           func() time.Time
}

func (d MCPDeps) today() time.Time {
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	loc := d.Location
	if loc == nil {
		loc = time.Local
	}
	return now().In(loc)
}

// NewMCPServer creates an MCP server with all sgdn tools and resources registered.
func NewMCPServer(deps MCPDeps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"sgdn",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("sgdn: SGD reminders, peak business days, and the active alert."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("add_reminder",
			mcp.WithDescription("Create a reminder that fires at a time of day on a recurrence schedule."),
			mcp.WithString("message", mcp.Description("Reminder text")),
			mcp.WithString("time", mcp.Description("Time of day, HH:MM (24h)"), mcp.Required()),
			mcp.WithString("frequency", mcp.Description("once_today, daily, weekly, biweekly or monthly"), mcp.Required()),
			mcp.WithString("start_date", mcp.Description("First day, YYYY-MM-DD (default today)")),
			mcp.WithString("priority", mcp.Description("normal, important or urgent (default normal)")),
		),
		mcpAddReminder(deps),
	)

	s.AddTool(
		mcp.NewTool("list_reminders",
			mcp.WithDescription("List all reminders, including completed ones."),
		),
		mcpListReminders(deps),
	)

	s.AddTool(
		mcp.NewTool("complete_reminder",
			mcp.WithDescription("Mark a reminder as completed so it never fires again."),
			mcp.WithString("id", mcp.Description("Reminder id"), mcp.Required()),
		),
		mcpCompleteReminder(deps),
	)

	s.AddTool(
		mcp.NewTool("delete_reminder",
			mcp.WithDescription("Delete a reminder."),
			mcp.WithString("id", mcp.Description("Reminder id"), mcp.Required()),
		),
		mcpDeleteReminder(deps),
	)

	s.AddTool(
		mcp.NewTool("events_for_month",
			mcp.WithDescription("Calendar view of a month: peak days and reminder occurrences keyed by day."),
			mcp.WithNumber("year", mcp.Description("Year, e.g. 2024"), mcp.Required()),
			mcp.WithNumber("month", mcp.Description("Month 1-12"), mcp.Required()),
		),
		mcpEventsForMonth(deps),
	)

	s.AddTool(
		mcp.NewTool("peak_days",
			mcp.WithDescription("First and last business days of a month, when peak-hour alerts fire."),
			mcp.WithNumber("year", mcp.Description("Year (default current)")),
			mcp.WithNumber("month", mcp.Description("Month 1-12 (default current)")),
		),
		mcpPeakDays(deps),
	)

	s.AddTool(
		mcp.NewTool("active_notification",
			mcp.WithDescription("Return the alert currently awaiting an answer, or null."),
		),
		mcpActiveNotification(deps),
	)

	s.AddTool(
		mcp.NewTool("notification_action",
			mcp.WithDescription("Answer the active alert by button index, as if clicked. -1 dismisses."),
			mcp.WithString("notification_id", mcp.Description("Active notification id"), mcp.Required()),
			mcp.WithNumber("button_index", mcp.Description("Button index"), mcp.Required()),
		),
		mcpNotificationAction(deps),
	)

	s.AddResource(
		mcp.NewResource(
			ActiveResourceURI,
			"Active Notification",
			mcp.WithResourceDescription("The alert currently awaiting an answer, or null"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceActive(deps),
	)

	return s
}

func mcpAddReminder(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		at, err := req.RequireString("time")
		if err != nil {
			return mcpError("time is required"), nil
		}
		freq, err := req.RequireString("frequency")
		if err != nil {
			return mcpError("frequency is required"), nil
		}
		start := req.GetString("start_date", deps.today().Format(reminder.DateLayout))

		rem, err := reminder.New(
			req.GetString("message", ""),
			start,
			at,
			reminder.Frequency(freq),
			reminder.Priority(req.GetString("priority", "")),
		)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		saved, err := deps.Store.SaveReminder(rem)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to save: %v", err)), nil
		}
		if deps.Broadcaster != nil {
			deps.Broadcaster.RemindersUpdated()
		}
		return mcpJSON(saved)
	}
}

func mcpListReminders(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		list, err := deps.Store.ListReminders()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list reminders: %v", err)), nil
		}
		if list == nil {
			list = []reminder.Reminder{}
		}
		return mcpJSON(list)
	}
}

func mcpCompleteReminder(deps MCPDeps) server.ToolHandlerFunc {
	return mcpMutateReminder(deps, "completed", deps.Store.CompleteReminder)
}

func mcpDeleteReminder(deps MCPDeps) server.ToolHandlerFunc {
	return mcpMutateReminder(deps, "deleted", deps.Store.DeleteReminder)
}

func mcpMutateReminder(deps MCPDeps, verb string, op func(id string) error) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		if err := op(id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return mcpError(fmt.Sprintf("reminder %s not found", id)), nil
			}
			return mcpError(fmt.Sprintf("failed: %v", err)), nil
		}
		if deps.Broadcaster != nil {
			deps.Broadcaster.RemindersUpdated()
		}
		return mcpText(fmt.Sprintf("Reminder %s %s", id, verb)), nil
	}
}

func mcpEventsForMonth(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		year := req.GetInt("year", 0)
		month := req.GetInt("month", 0)
		if year <= 0 || month < 1 || month > 12 {
			return mcpError("year and month (1-12) are required"), nil
		}
		events, err := deps.Events.EventsForMonth(ctx, year, time.Month(month))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to build events: %v", err)), nil
		}
		return mcpJSON(events)
	}
}

func mcpPeakDays(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		now := deps.today()
		year := req.GetInt("year", now.Year())
		month := req.GetInt("month", int(now.Month()))
		if year <= 0 || month < 1 || month > 12 {
			return mcpError("month must be 1-12"), nil
		}
		days, err := deps.Peaks.PeakDays(ctx, year, time.Month(month))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to compute peak days: %v", err)), nil
		}
		out := make([]string, len(days))
		for i, d := range days {
			out[i] = d.Format(reminder.DateLayout)
		}
		return mcpJSON(out)
	}
}

func mcpActiveNotification(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		n, err := deps.Notifications.Active(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to read active notification: %v", err)), nil
		}
		return mcpJSON(n)
	}
}

func mcpNotificationAction(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("notification_id")
		if err != nil {
			return mcpError("notification_id is required"), nil
		}
		button, err := req.RequireInt("button_index")
		if err != nil {
			return mcpError("button_index is required"), nil
		}
		action, err := deps.Notifications.HandleAction(ctx, id, button)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to handle action: %v", err)), nil
		}
		if action == "" {
			return mcpText(fmt.Sprintf("Notification %s is not active; ignored", id)), nil
		}
		return mcpText(fmt.Sprintf("Notification %s resolved: %s", id, action)), nil
	}
}

func mcpResourceActive(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		n, err := deps.Notifications.Active(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read active notification: %w", err)
		}
		b, err := json.Marshal(n)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal notification: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
