package tools

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pksebben/Napkin/client"
	"github.com/pksebben/Napkin/config"
	"github.com/pksebben/Napkin/dehydrate"
	"github.com/pksebben/Napkin/mermaid"
	"github.com/pksebben/Napkin/registry"
	"github.com/pksebben/Napkin/server"
	"github.com/pksebben/Napkin/state"
)

func newToolManager(t *testing.T) *client.SessionManager {
	t.Helper()

	reg := registry.New(nil, mermaid.Validate, dehydrate.Convert, state.DefaultMaxHistory)
	srv := server.New(reg, &config.WebSocketConfig{
		WriteTimeout:    10,
		PingInterval:    25,
		ActivityTimeout: 300,
		KeepAlive:       true,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return client.NewSessionManager(ts.URL)
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func textContent(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return tc.Text
}

func TestStartToolReturnsURLAndSession(t *testing.T) {
	m := newToolManager(t)
	tool := NewStartTool(m)

	result, err := tool.Handle(context.Background(), callRequest("napkin_start",
		map[string]interface{}{"session": "arch"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &body))
	assert.Equal(t, "arch", body["session"])
	assert.Contains(t, body["url"], "/s/arch")
}

func TestStartToolGeneratesName(t *testing.T) {
	m := newToolManager(t)
	tool := NewStartTool(m)

	result, err := tool.Handle(context.Background(), callRequest("napkin_start", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &body))
	assert.Regexp(t, `^napkin-[a-z0-9]{4}$`, body["session"])
}

func TestReadDesignToolUnknownSession(t *testing.T) {
	m := newToolManager(t)
	tool := NewReadDesignTool(m)

	result, err := tool.Handle(context.Background(), callRequest("napkin_read_design",
		map[string]interface{}{"session": "ghost"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestWriteDesignToolValidationFailure(t *testing.T) {
	m := newToolManager(t)
	_, err := m.Start(context.Background(), "doc")
	require.NoError(t, err)

	tool := NewWriteDesignTool(m)
	result, err := tool.Handle(context.Background(), callRequest("napkin_write_design",
		map[string]interface{}{"session": "doc", "mermaid": "not a diagram"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, textContent(t, result), "success")
}

func TestWriteThenReadDesign(t *testing.T) {
	m := newToolManager(t)
	ctx := context.Background()
	_, err := m.Start(ctx, "doc")
	require.NoError(t, err)

	doc := "graph TD\n    A[Start] --> B[End]"
	write := NewWriteDesignTool(m)
	result, err := write.Handle(ctx, callRequest("napkin_write_design",
		map[string]interface{}{"session": "doc", "mermaid": doc}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	read := NewReadDesignTool(m)
	result, err = read.Handle(ctx, callRequest("napkin_read_design",
		map[string]interface{}{"session": "doc"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var body registry.ReadResult
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &body))
	require.NotNil(t, body.Mermaid)
	assert.Equal(t, doc, *body.Mermaid)
}

func TestHistoryAndRollbackTools(t *testing.T) {
	m := newToolManager(t)
	ctx := context.Background()
	_, err := m.Start(ctx, "doc")
	require.NoError(t, err)

	first := "graph TD\n    A[one]"
	for _, text := range []string{first, "graph TD\n    A[two]"} {
		wr, err := m.WriteDesign(ctx, "doc", text)
		require.NoError(t, err)
		require.True(t, wr.Success)
	}

	histTool := NewHistoryTool(m)
	result, err := histTool.Handle(ctx, callRequest("napkin_get_history",
		map[string]interface{}{"session": "doc"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var history []state.Snapshot
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &history))
	require.Len(t, history, 2)

	rbTool := NewRollbackTool(m)
	result, err = rbTool.Handle(ctx, callRequest("napkin_rollback",
		map[string]interface{}{"session": "doc", "timestamp": history[0].Timestamp}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	read, err := m.ReadDesign(ctx, "doc")
	require.NoError(t, err)
	require.NotNil(t, read.Mermaid)
	assert.Equal(t, first, *read.Mermaid)
}

func TestRollbackToolUnknownTimestamp(t *testing.T) {
	m := newToolManager(t)
	ctx := context.Background()
	_, err := m.Start(ctx, "doc")
	require.NoError(t, err)

	tool := NewRollbackTool(m)
	result, err := tool.Handle(ctx, callRequest("napkin_rollback",
		map[string]interface{}{"session": "doc", "timestamp": "2020-01-01T00:00:00Z"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestListSessionsTool(t *testing.T) {
	m := newToolManager(t)
	ctx := context.Background()
	for _, name := range []string{"one", "two"} {
		_, err := m.Start(ctx, name)
		require.NoError(t, err)
	}

	tool := NewListSessionsTool(m)
	result, err := tool.Handle(ctx, callRequest("napkin_list_sessions", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var entries []struct {
		Session string `json:"session"`
		URL     string `json:"url"`
	}
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "one", entries[0].Session)
	assert.Contains(t, entries[0].URL, "/s/one")
}

func TestStopToolStopsAllOwned(t *testing.T) {
	m := newToolManager(t)
	ctx := context.Background()
	for _, name := range []string{"a", "b"} {
		_, err := m.Start(ctx, name)
		require.NoError(t, err)
	}

	tool := NewStopTool(m)
	result, err := tool.Handle(ctx, callRequest("napkin_stop", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	sessions, err := m.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}
