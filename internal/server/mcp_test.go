package server_test

import (
	"context"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/vibecoding/internal/server"
	"github.com/MrWong99/vibecoding/internal/transcript"
)

func connectMCP(t *testing.T, ctx context.Context, transport mcpsdk.Transport) *mcpsdk.ClientSession {
	t.Helper()
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, transport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { cs.Close() })
	return cs
}

func inMemorySession(t *testing.T, ctx context.Context, cleaner transcript.Cleaner) *mcpsdk.ClientSession {
	t.Helper()
	ct, st := mcpsdk.NewInMemoryTransports()
	ss, err := server.NewMCPServer(cleaner, "test").Connect(ctx, st, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { ss.Close() })
	return connectMCP(t, ctx, ct)
}

func toolText(t *testing.T, res *mcpsdk.CallToolResult) string {
	t.Helper()
	if res.IsError {
		t.Fatalf("tool returned error result: %+v", res.Content)
	}
	if len(res.Content) == 0 {
		t.Fatal("tool returned no content")
	}
	text, ok := res.Content[0].(*mcpsdk.TextContent)
	if !ok {
		t.Fatalf("content[0] is %T, want *TextContent", res.Content[0])
	}
	return text.Text
}

func TestMCP_ListTools(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cs := inMemorySession(t, ctx, transcript.NewPipeline())

	res, err := cs.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	slices.Sort(names)
	if want := []string{server.ToolClean, server.ToolFormat}; !slices.Equal(names, want) {
		t.Errorf("tools = %v, want %v", names, want)
	}
}

func TestMCP_CallTools(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cs := inMemorySession(t, ctx, transcript.NewPipeline())

	tests := []struct {
		tool string
		args map[string]any
		want string
	}{
		{server.ToolFormat, map[string]any{"text": "um can you check the the css"}, "Can you check the CSS?"},
		{server.ToolClean, map[string]any{"text": "basically it works"}, "It works."},
		{server.ToolClean, map[string]any{"text": "i i agree", "rewrite": false}, "I agree."},
	}
	for _, tc := range tests {
		res, err := cs.CallTool(ctx, &mcpsdk.CallToolParams{Name: tc.tool, Arguments: tc.args})
		if err != nil {
			t.Fatalf("CallTool(%s): %v", tc.tool, err)
		}
		if got := toolText(t, res); got != tc.want {
			t.Errorf("%s(%v) = %q, want %q", tc.tool, tc.args, got, tc.want)
		}
	}
}

func TestMCP_CleanError(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cs := inMemorySession(t, ctx, &stubCleaner{err: context.DeadlineExceeded})

	res, err := cs.CallTool(ctx, &mcpsdk.CallToolParams{Name: server.ToolClean, Arguments: map[string]any{"text": "x"}})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !res.IsError {
		t.Error("expected an error result")
	}
}

func TestMCP_StreamableHTTP(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(server.New(transcript.NewPipeline(), server.WithMCP("/mcp")).Handler())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cs := connectMCP(t, ctx, &mcpsdk.StreamableClientTransport{Endpoint: srv.URL + "/mcp"})

	res, err := cs.CallTool(ctx, &mcpsdk.CallToolParams{Name: server.ToolFormat, Arguments: map[string]any{"text": "hello world"}})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if got := toolText(t, res); got != "Hello world." {
		t.Errorf("format_transcript = %q, want %q", got, "Hello world.")
	}
}
