// Package tools exposes the design-session operations as MCP tools.
// Each tool is a small struct holding its dependencies, with a
// Definition that describes it to the protocol and a Handle that does
// the work through the session manager.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/pksebben/Napkin/client"
)

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// StartTool boots (or joins) a named design session.
type StartTool struct {
	manager *client.SessionManager
}

func NewStartTool(manager *client.SessionManager) *StartTool {
	return &StartTool{manager: manager}
}

func (t *StartTool) Definition() mcp.Tool {
	return mcp.NewTool("napkin_start",
		mcp.WithDescription("Start a Napkin collaborative design session. Returns { url, session }. Use the napkin_guide prompt for workflow instructions and highlighting conventions."),
		mcp.WithString("session",
			mcp.Description("Session name. Auto-generated when omitted."),
		),
	)
}

func (t *StartTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("session", "")

	info, err := t.manager.Start(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]string{
		"url":     info.URL,
		"session": info.Name,
	})
}

// StopTool tears down one session, or every session this process started.
type StopTool struct {
	manager *client.SessionManager
}

func NewStopTool(manager *client.SessionManager) *StopTool {
	return &StopTool{manager: manager}
}

func (t *StopTool) Definition() mcp.Tool {
	return mcp.NewTool("napkin_stop",
		mcp.WithDescription("Stop a Napkin session (by name) or all sessions started by this process (omit session). Cleans up server resources."),
		mcp.WithString("session",
			mcp.Description("Session name. Omit to stop all sessions started by this process."),
		),
	)
}

func (t *StopTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("session", "")

	var err error
	if name != "" {
		err = t.manager.Stop(ctx, name)
	} else {
		err = t.manager.StopAll(ctx)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]bool{"stopped": true})
}

// ReadDesignTool fetches the current document state of a session.
type ReadDesignTool struct {
	manager *client.SessionManager
}

func NewReadDesignTool(manager *client.SessionManager) *ReadDesignTool {
	return &ReadDesignTool{manager: manager}
}

func (t *ReadDesignTool) Definition() mcp.Tool {
	return mcp.NewTool("napkin_read_design",
		mcp.WithDescription("Read the current design from a Napkin session as { mermaid, selectedElements, nodeCount, edgeCount }. selectedElements indicates what the user is pointing at."),
		mcp.WithString("session",
			mcp.Description("Session name."),
			mcp.Required(),
		),
	)
}

func (t *ReadDesignTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("session")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := t.manager.ReadDesign(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

// WriteDesignTool validates and stores a mermaid diagram.
type WriteDesignTool struct {
	manager *client.SessionManager
}

func NewWriteDesignTool(manager *client.SessionManager) *WriteDesignTool {
	return &WriteDesignTool{manager: manager}
}

func (t *WriteDesignTool) Definition() mcp.Tool {
	return mcp.NewTool("napkin_write_design",
		mcp.WithDescription("Write a Mermaid diagram to a Napkin session. Supported types: flowchart/graph, sequenceDiagram, classDiagram. Use style directives for node highlighting (see napkin_guide prompt)."),
		mcp.WithString("session",
			mcp.Description("Session name."),
			mcp.Required(),
		),
		mcp.WithString("mermaid",
			mcp.Description("Mermaid diagram text."),
			mcp.Required(),
		),
	)
}

func (t *WriteDesignTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("session")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("mermaid")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := t.manager.WriteDesign(ctx, name, text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !result.Success {
		data, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("encoding tool result: %w", err)
		}
		return mcp.NewToolResultError(string(data)), nil
	}
	return jsonResult(result)
}

// HistoryTool returns timestamped design snapshots for a session.
type HistoryTool struct {
	manager *client.SessionManager
}

func NewHistoryTool(manager *client.SessionManager) *HistoryTool {
	return &HistoryTool{manager: manager}
}

func (t *HistoryTool) Definition() mcp.Tool {
	return mcp.NewTool("napkin_get_history",
		mcp.WithDescription("Get timestamped design snapshots for a Napkin session. Each entry includes source (user/agent) and mermaid content."),
		mcp.WithString("session",
			mcp.Description("Session name."),
			mcp.Required(),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum snapshots to return, most recent last. Defaults to 10."),
		),
	)
}

func (t *HistoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("session")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := req.GetInt("limit", 10)

	history, err := t.manager.History(ctx, name, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(history)
}

// RollbackTool restores a previous design by timestamp.
type RollbackTool struct {
	manager *client.SessionManager
}

func NewRollbackTool(manager *client.SessionManager) *RollbackTool {
	return &RollbackTool{manager: manager}
}

func (t *RollbackTool) Definition() mcp.Tool {
	return mcp.NewTool("napkin_rollback",
		mcp.WithDescription("Rollback to a previous design by timestamp. Get timestamps from napkin_get_history."),
		mcp.WithString("session",
			mcp.Description("Session name."),
			mcp.Required(),
		),
		mcp.WithString("timestamp",
			mcp.Description("Snapshot timestamp to restore."),
			mcp.Required(),
		),
	)
}

func (t *RollbackTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("session")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	timestamp, err := req.RequireString("timestamp")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if _, err := t.manager.Rollback(ctx, name, timestamp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]bool{"success": true})
}

// ListSessionsTool returns every active session with its URL.
type ListSessionsTool struct {
	manager *client.SessionManager
}

func NewListSessionsTool(manager *client.SessionManager) *ListSessionsTool {
	return &ListSessionsTool{manager: manager}
}

func (t *ListSessionsTool) Definition() mcp.Tool {
	return mcp.NewTool("napkin_list_sessions",
		mcp.WithDescription("List all active Napkin sessions with their URLs."),
	)
}

func (t *ListSessionsTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions, err := t.manager.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	type sessionEntry struct {
		Session       string `json:"session"`
		URL           string `json:"url"`
		SnapshotCount int    `json:"snapshotCount"`
	}
	entries := make([]sessionEntry, 0, len(sessions))
	for _, desc := range sessions {
		entries = append(entries, sessionEntry{
			Session:       desc.Name,
			URL:           t.manager.SessionURL(desc.Name),
			SnapshotCount: desc.SnapshotCount,
		})
	}
	return jsonResult(entries)
}
