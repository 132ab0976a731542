package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/manifesto-ai/bridge"
	"github.com/manifesto-ai/bridge/internal/testutils"
	"github.com/manifesto-ai/bridge/pkg/adapters/memory"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *bridge.Bridge, *memory.Store) {
	t.Helper()
	rt := testutils.NewProfileRuntime(t)
	store := memory.New(memory.WithData(map[string]any{"name": "John", "age": 30}))
	b, err := bridge.New(rt, store, store)
	require.NoError(t, err)
	t.Cleanup(b.Dispose)
	return NewServer(b, "test"), b, store
}

func call(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func decodeResult(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func TestExecuteCommand(t *testing.T) {
	ctx := context.Background()
	s, _, store := newTestServer(t)

	result, err := s.handleExecute(ctx, call("execute_command", map[string]any{
		"type": "SET_VALUE", "path": "data.name", "value": "Jane",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, true, decodeResult(t, result)["ok"])
	assert.Equal(t, "Jane", store.GetData("data.name"))

	result, err = s.handleExecute(ctx, call("execute_command", map[string]any{
		"type": "SET_MANY", "updates": `{"data.age": -2}`,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	out := decodeResult(t, result)
	assert.Equal(t, "VALIDATION_ERROR", out["error"].(map[string]any)["code"])
	assert.Equal(t, "data.age", out["error"].(map[string]any)["path"])

	result, err = s.handleExecute(ctx, call("execute_command", map[string]any{"type": "NOPE"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestQueryTools(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestServer(t)

	result, err := s.handleIsActionAvailable(ctx, call("is_action_available", map[string]any{"action_id": "submit"}))
	require.NoError(t, err)
	assert.Equal(t, false, decodeResult(t, result)["available"])

	result, err = s.handleCapture(ctx, call("capture", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	result, err = s.handleGetValue(ctx, call("get_value", map[string]any{"path": "derived.canSubmit"}))
	require.NoError(t, err)
	assert.Equal(t, true, decodeResult(t, result)["value"])

	result, err = s.handleGetValue(ctx, call("get_value", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError, "path is required")

	result, err = s.handleSync(ctx, call("sync_now", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestSnapshotResource(t *testing.T) {
	ctx := context.Background()
	s, b, _ := newTestServer(t)
	_, err := b.Capture()
	require.NoError(t, err)

	contents, err := s.readSnapshot(ctx, mcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, snapshotURI, text.URI)
	assert.Contains(t, text.Text, `"name":"John"`)

	b.Dispose()
	_, err = s.readSnapshot(ctx, mcp.ReadResourceRequest{})
	assert.Error(t, err)

	result, err := s.handleGetValue(ctx, call("get_value", map[string]any{"path": "data.name"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
