package mcp_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Sumatoshi-tech/rbmap/pkg/mcp"
	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
)

// connect starts srv on an in-memory transport and returns a client session.
func connect(t *testing.T, srv *mcp.Server) (context.Context, *mcpsdk.ClientSession) {
	t.Helper()

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

	serverDone := make(chan error, 1)

	go func() {
		serverDone <- srv.RunWithTransport(ctx, serverTransport)
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()

		cancel()
		<-serverDone
	})

	return ctx, session
}

func callTool(t *testing.T, ctx context.Context, session *mcpsdk.ClientSession, name string, args map[string]any, out any) *mcpsdk.CallToolResult {
	t.Helper()

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)

	if out != nil && !result.IsError {
		text, ok := result.Content[0].(*mcpsdk.TextContent)
		require.True(t, ok)
		require.NoError(t, json.Unmarshal([]byte(text.Text), out))
	}

	return result
}

func TestServer_ListToolNames(t *testing.T) {
	t.Parallel()

	srv := mcp.NewServer(mcp.ServerDeps{})

	assert.Equal(t, []string{
		"rbmap_check", "rbmap_clear", "rbmap_erase", "rbmap_find", "rbmap_insert", "rbmap_list",
	}, srv.ListToolNames())
}

func TestServer_InMemoryTransport_ToolsList(t *testing.T) {
	t.Parallel()

	ctx, session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	toolsResult, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	require.Len(t, toolsResult.Tools, 6)

	for _, tool := range toolsResult.Tools {
		assert.NotNil(t, tool.InputSchema, "tool %s missing input schema", tool.Name)
		assert.NotEmpty(t, tool.Description, "tool %s missing description", tool.Name)
	}
}

func TestServer_InsertFindListErase(t *testing.T) {
	t.Parallel()

	ctx, session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	var inserted mcp.InsertOutput

	callTool(t, ctx, session, mcp.ToolNameInsert, map[string]any{"values": []int{30, 10, 20, 10}}, &inserted)
	assert.Equal(t, []int{30, 10, 20}, inserted.Inserted)
	assert.Equal(t, []int{10}, inserted.Duplicates)
	assert.Equal(t, 3, inserted.Len)

	var found mcp.FindOutput

	callTool(t, ctx, session, mcp.ToolNameFind, map[string]any{"value": 10}, &found)
	assert.True(t, found.Found)
	require.NotNil(t, found.Next)
	assert.Equal(t, 20, *found.Next)

	found = mcp.FindOutput{}
	callTool(t, ctx, session, mcp.ToolNameFind, map[string]any{"value": 30}, &found)
	assert.True(t, found.Found)
	assert.Nil(t, found.Next)

	found = mcp.FindOutput{}
	callTool(t, ctx, session, mcp.ToolNameFind, map[string]any{"value": 15}, &found)
	assert.False(t, found.Found)

	var listed mcp.ListOutput

	callTool(t, ctx, session, mcp.ToolNameList, map[string]any{"from": 15, "limit": 1}, &listed)
	assert.Equal(t, []int{20}, listed.Values)
	assert.True(t, listed.Truncated)
	assert.Equal(t, 3, listed.Len)

	var erased mcp.EraseOutput

	callTool(t, ctx, session, mcp.ToolNameErase, map[string]any{"values": []int{20, 99}}, &erased)
	assert.Equal(t, []int{20}, erased.Erased)
	assert.Equal(t, []int{99}, erased.Missing)
	assert.Equal(t, 2, erased.Len)

	listed = mcp.ListOutput{}
	callTool(t, ctx, session, mcp.ToolNameList, map[string]any{}, &listed)
	assert.Equal(t, []int{10, 30}, listed.Values)
	assert.False(t, listed.Truncated)

	var checked mcp.CheckOutput

	callTool(t, ctx, session, mcp.ToolNameCheck, map[string]any{}, &checked)
	assert.True(t, checked.Valid)
	assert.Equal(t, 2, checked.Stats.Len)

	var cleared map[string]int

	callTool(t, ctx, session, mcp.ToolNameClear, map[string]any{}, &cleared)
	assert.Equal(t, 2, cleared["cleared"])
}

func TestServer_InvalidInput(t *testing.T) {
	t.Parallel()

	ctx, session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result := callTool(t, ctx, session, mcp.ToolNameInsert, map[string]any{"values": []int{}}, nil)
	assert.True(t, result.IsError)

	result = callTool(t, ctx, session, mcp.ToolNameList, map[string]any{"limit": -1}, nil)
	assert.True(t, result.IsError)
}

func TestServer_AllocatorExhausted(t *testing.T) {
	t.Parallel()

	allocator := rbtree.NewAllocator[int]()
	allocator.MaxNodes = 2

	ctx, session := connect(t, mcp.NewServer(mcp.ServerDeps{Allocator: allocator}))

	result := callTool(t, ctx, session, mcp.ToolNameInsert, map[string]any{"values": []int{1, 2, 3}}, nil)
	require.True(t, result.IsError)

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "inserted 2 of 3 values")
}

func TestServer_TraceIDInResponse(t *testing.T) {
	t.Parallel()

	tp := sdktrace.NewTracerProvider()

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	ctx, session := connect(t, mcp.NewServer(mcp.ServerDeps{Tracer: tp.Tracer("test")}))

	result := callTool(t, ctx, session, mcp.ToolNameCheck, map[string]any{}, nil)
	require.Len(t, result.Content, 2)

	text, ok := result.Content[1].(*mcpsdk.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "trace_id=")
}
