package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/manifesto-ai/bridge/internal/logging"
	"github.com/manifesto-ai/bridge/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const snapshotURI = "bridge://snapshot"

// Bridge is the part of *bridge.Bridge exposed to MCP clients.
type Bridge interface {
	Execute(ctx context.Context, cmd domain.Command) error
	Get(path string) (any, error)
	Snapshot() (domain.Snapshot, error)
	IsActionAvailable(actionID string) (bool, error)
	Capture() (domain.Snapshot, error)
	Sync() error
}

// Server exposes a Bridge as an MCP server.
type Server struct {
	bridge    Bridge
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets a custom structured logger for the server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(b Bridge, version string, opts ...Option) *Server {
	s := &Server{
		bridge:    b,
		mcpServer: server.NewMCPServer("bridge-mcp", version),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, e.g. to mount it on another transport.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("execute_command",
		mcp.WithDescription("Apply a command to the runtime: SET_VALUE, SET_MANY or EXECUTE_ACTION."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Command type"), mcp.Enum("SET_VALUE", "SET_MANY", "EXECUTE_ACTION")),
		mcp.WithString("path", mcp.Description("Semantic path for SET_VALUE, e.g. data.name")),
		mcp.WithString("value", mcp.Description("JSON value for SET_VALUE")),
		mcp.WithString("updates", mcp.Description("JSON object of path to value for SET_MANY")),
		mcp.WithString("action_id", mcp.Description("Action to run for EXECUTE_ACTION")),
		mcp.WithString("input", mcp.Description("JSON input for EXECUTE_ACTION (optional)")),
	), s.handleExecute)

	s.mcpServer.AddTool(mcp.NewTool("get_value",
		mcp.WithDescription("Read the runtime value at a semantic path."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Semantic path, e.g. derived.canSubmit")),
	), s.handleGetValue)

	s.mcpServer.AddTool(mcp.NewTool("is_action_available",
		mcp.WithDescription("Report whether every precondition of an action holds."),
		mcp.WithString("action_id", mcp.Required(), mcp.Description("Action ID")),
	), s.handleIsActionAvailable)

	s.mcpServer.AddTool(mcp.NewTool("sync_now",
		mcp.WithDescription("Push every current data and state value to the external store."),
	), s.handleSync)

	s.mcpServer.AddTool(mcp.NewTool("capture",
		mcp.WithDescription("Pull every value from the external store into the runtime."),
	), s.handleCapture)
}

// jsonArg decodes an optional JSON-encoded string argument.
// Text that is not valid JSON is taken as a plain string.
func jsonArg(args map[string]any, key string) (any, bool) {
	raw, ok := args[key]
	if !ok {
		return nil, false
	}
	str, ok := raw.(string)
	if !ok {
		return raw, true
	}
	var v any
	if err := json.Unmarshal([]byte(str), &v); err != nil {
		return str, true
	}
	return v, true
}

func textResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func (s *Server) handleExecute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	payload := map[string]any{"type": request.GetString("type", "")}
	for _, key := range []string{"path", "action_id"} {
		if v := request.GetString(key, ""); v != "" {
			payload[key] = v
		}
	}
	for _, key := range []string{"value", "updates", "input"} {
		if v, ok := jsonArg(args, key); ok {
			payload[key] = v
		}
	}

	cmd, err := domain.DecodeCommand(payload)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid command: %v", err)), nil
	}

	if err := s.bridge.Execute(ctx, cmd); err != nil {
		var be *domain.Error
		if !errors.As(err, &be) {
			be = domain.NewExecutionError("command failed", err)
		}
		s.logger.Debug("MCP command failed", "kind", cmd.Kind(), "code", be.Code)
		result, encErr := textResult(map[string]any{"ok": false, "error": be})
		if encErr != nil {
			return nil, encErr
		}
		result.IsError = true
		return result, nil
	}
	return textResult(map[string]any{"ok": true})
}

func (s *Server) handleGetValue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.bridge.Get(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return textResult(map[string]any{"path": path, "value": v})
}

func (s *Server) handleIsActionAvailable(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("action_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ok, err := s.bridge.IsActionAvailable(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return textResult(map[string]any{"action_id": id, "available": ok})
}

func (s *Server) handleSync(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.bridge.Sync(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return textResult(map[string]any{"ok": true})
}

func (s *Server) handleCapture(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.bridge.Capture()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return textResult(snap)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(snapshotURI, "Current Snapshot",
		mcp.WithResourceDescription("Data and state currently held by the runtime"),
		mcp.WithMIMEType("application/json"),
	), s.readSnapshot)
}

func (s *Server) readSnapshot(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	snap, err := s.bridge.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      snapshotURI,
			MIMEType: "application/json",
			Text:     string(raw),
		},
	}, nil
}
