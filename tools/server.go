package tools

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/pksebben/Napkin/client"
)

// Version is set at build time via ldflags.
var Version = "dev"

// NewServer wires every tool and prompt into an MCP server instance.
// This is the single place where the tool surface is assembled.
func NewServer(manager *client.SessionManager) *server.MCPServer {
	s := server.NewMCPServer(
		"napkin",
		Version,
		server.WithToolCapabilities(true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	startTool := NewStartTool(manager)
	s.AddTool(startTool.Definition(), startTool.Handle)

	stopTool := NewStopTool(manager)
	s.AddTool(stopTool.Definition(), stopTool.Handle)

	readTool := NewReadDesignTool(manager)
	s.AddTool(readTool.Definition(), readTool.Handle)

	writeTool := NewWriteDesignTool(manager)
	s.AddTool(writeTool.Definition(), writeTool.Handle)

	historyTool := NewHistoryTool(manager)
	s.AddTool(historyTool.Definition(), historyTool.Handle)

	rollbackTool := NewRollbackTool(manager)
	s.AddTool(rollbackTool.Definition(), rollbackTool.Handle)

	listTool := NewListSessionsTool(manager)
	s.AddTool(listTool.Definition(), listTool.Handle)

	guidePrompt := NewGuidePrompt()
	s.AddPrompt(guidePrompt.Definition(), guidePrompt.Handle)

	return s
}

// ServeStdio runs the MCP server over stdin/stdout until the client
// disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func serverInstructions() string {
	return `Napkin is a collaborative system-design surface: the user draws
architecture diagrams in a browser while you read and write the same
diagram as Mermaid text. Start a session with napkin_start only when the
user asks to sketch or design something, share the returned URL, and
fetch the napkin_guide prompt for workflow and highlighting conventions.`
}
