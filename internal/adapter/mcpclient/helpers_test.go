package mcpclient

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/couchcryptid/storm-event-planner/internal/observability"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeServer serves canned tool responses over in-memory transports and
// records the arguments of every call.
type fakeServer struct {
	mu    sync.Mutex
	calls []map[string]any
	tools map[string]func(args map[string]any) *mcp.CallToolResult
}

func newFakeServer() *fakeServer {
	return &fakeServer{tools: make(map[string]func(map[string]any) *mcp.CallToolResult)}
}

func (f *fakeServer) text(name, body string) {
	f.tools[name] = func(map[string]any) *mcp.CallToolResult {
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: body}}}
	}
}

func (f *fakeServer) fail(name, msg string) {
	f.tools[name] = func(map[string]any) *mcp.CallToolResult {
		var res mcp.CallToolResult
		res.SetError(errString(msg))
		return &res
	}
}

func (f *fakeServer) recorded() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.calls...)
}

func (f *fakeServer) transport(t *testing.T) TransportFactory {
	return func() (mcp.Transport, error) {
		srv := mcp.NewServer(&mcp.Implementation{Name: "fake", Version: "0.0.1"}, nil)
		for name, respond := range f.tools {
			srv.AddTool(&mcp.Tool{Name: name, InputSchema: map[string]any{"type": "object"}},
				func(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
					var args map[string]any
					if len(req.Params.Arguments) > 0 {
						_ = json.Unmarshal(req.Params.Arguments, &args)
					}
					f.mu.Lock()
					f.calls = append(f.calls, args)
					f.mu.Unlock()
					return respond(args), nil
				})
		}
		serverT, clientT := mcp.NewInMemoryTransports()
		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)
		go func() { _ = srv.Run(ctx, serverT) }()
		return clientT, nil
	}
}

func (f *fakeServer) client(t *testing.T) *Client {
	return NewClient(f.transport(t), nil, 5*time.Second, testLogger(), observability.NewMetricsForTesting())
}

type errString string

func (e errString) Error() string { return string(e) }

// stubCaller returns a fixed response without MCP.
type stubCaller struct {
	text string
	err  error
	name string
	args map[string]any
}

func (s *stubCaller) CallTool(_ context.Context, name string, args map[string]any) (string, error) {
	s.name = name
	s.args = args
	return s.text, s.err
}
