package mcpclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/storm-event-planner/internal/observability"
)

// ToolCaller invokes a named MCP tool and returns the text of its first
// content block.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}

// TransportFactory returns a fresh transport for one session.
type TransportFactory func() (mcp.Transport, error)

var implementation = &mcp.Implementation{Name: "storm-event-planner", Version: "1.0.0"}

// Client opens a short-lived MCP session per tool call. Calls are throttled
// by limiter and bounded by timeout.
type Client struct {
	transport TransportFactory
	limiter   *rate.Limiter
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewClient creates a Client. A nil limiter disables throttling.
func NewClient(transport TransportFactory, limiter *rate.Limiter, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		transport: transport,
		limiter:   limiter,
		timeout:   timeout,
		logger:    logger,
		metrics:   metrics,
	}
}

// HTTPTransport builds a streamable HTTP transport factory for a hosted MCP
// server. Smithery credentials are passed as query parameters when set.
func HTTPTransport(endpoint, apiKey, profile string, timeout time.Duration) (TransportFactory, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse MCP endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("MCP endpoint %q must be absolute", endpoint)
	}
	q := u.Query()
	if apiKey != "" {
		q.Set("api_key", apiKey)
	}
	if profile != "" {
		q.Set("profile", profile)
	}
	u.RawQuery = q.Encode()
	full := u.String()

	httpClient := &http.Client{Timeout: timeout}
	return func() (mcp.Transport, error) {
		return &mcp.StreamableClientTransport{
			Endpoint:             full,
			HTTPClient:           httpClient,
			DisableStandaloneSSE: true,
		}, nil
	}, nil
}

// CallTool implements ToolCaller.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%s: rate limit: %w", name, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		c.metrics.MCPCallDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	transport, err := c.transport()
	if err != nil {
		return "", fmt.Errorf("%s: transport: %w", name, err)
	}

	session, err := mcp.NewClient(implementation, nil).Connect(ctx, transport, nil)
	if err != nil {
		return "", fmt.Errorf("%s: connect: %w", name, err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			c.logger.Debug("mcp session close failed", "tool", name, "error", err)
		}
	}()

	result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", fmt.Errorf("%s: call: %w", name, err)
	}
	if result.IsError {
		msg, _ := firstText(result)
		return "", fmt.Errorf("%s: tool error: %s", name, msg)
	}
	return firstText(result)
}

func firstText(result *mcp.CallToolResult) (string, error) {
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			return tc.Text, nil
		}
	}
	return "", errors.New("tool returned no text content")
}
