package mcpclient

import (
	"context"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/storm-event-planner/internal/observability"
)

func TestClient_CallTool_Success(t *testing.T) {
	srv := newFakeServer()
	srv.text(WeatherTool, `{"ok":true}`)
	c := srv.client(t)

	text, err := c.CallTool(context.Background(), WeatherTool, map[string]any{"location": "40.7128,-74.0060"})
	require.NoError(t, err)

	assert.Equal(t, `{"ok":true}`, text)
	calls := srv.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "40.7128,-74.0060", calls[0]["location"])
}

func TestClient_CallTool_ToolError(t *testing.T) {
	srv := newFakeServer()
	srv.fail(WeatherTool, "upstream unavailable")
	c := srv.client(t)

	_, err := c.CallTool(context.Background(), WeatherTool, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool error")
	assert.Contains(t, err.Error(), "upstream unavailable")
}

func TestClient_CallTool_UnknownTool(t *testing.T) {
	srv := newFakeServer()
	srv.text(WeatherTool, "{}")
	c := srv.client(t)

	_, err := c.CallTool(context.Background(), "no_such_tool", nil)
	assert.Error(t, err)
}

func TestClient_CallTool_NoTextContent(t *testing.T) {
	srv := newFakeServer()
	srv.tools[SearchTool] = func(map[string]any) *mcp.CallToolResult {
		return &mcp.CallToolResult{Content: []mcp.Content{}}
	}
	c := srv.client(t)

	_, err := c.CallTool(context.Background(), SearchTool, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text content")
}

func TestClient_CallTool_RateLimited(t *testing.T) {
	srv := newFakeServer()
	srv.text(WeatherTool, "{}")
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	c := NewClient(srv.transport(t), limiter, 5*time.Second, testLogger(), observability.NewMetricsForTesting())

	_, err := c.CallTool(context.Background(), WeatherTool, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.CallTool(ctx, WeatherTool, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
	assert.Len(t, srv.recorded(), 1)
}

func TestHTTPTransport(t *testing.T) {
	t.Run("credentials added as query parameters", func(t *testing.T) {
		factory, err := HTTPTransport("https://server.smithery.ai/exa/mcp", "key-123", "profile-a", time.Second)
		require.NoError(t, err)

		tr, err := factory()
		require.NoError(t, err)
		st, ok := tr.(*mcp.StreamableClientTransport)
		require.True(t, ok)
		assert.Equal(t, "https://server.smithery.ai/exa/mcp?api_key=key-123&profile=profile-a", st.Endpoint)
		assert.Equal(t, time.Second, st.HTTPClient.Timeout)
	})

	t.Run("no credentials", func(t *testing.T) {
		factory, err := HTTPTransport("http://localhost:9000/mcp", "", "", time.Second)
		require.NoError(t, err)
		tr, err := factory()
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:9000/mcp", tr.(*mcp.StreamableClientTransport).Endpoint)
	})

	t.Run("relative endpoint rejected", func(t *testing.T) {
		_, err := HTTPTransport("/mcp", "", "", time.Second)
		assert.Error(t, err)
	})
}
