package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/couchcryptid/storm-event-planner/internal/domain"
	"github.com/couchcryptid/storm-event-planner/internal/observability"
)

// SearchTool is the Exa web search tool.
const SearchTool = "web_search_exa"

const maxSnippetRunes = 500

// SearchClient implements domain.SearchProvider over the Exa MCP server.
type SearchClient struct {
	caller  ToolCaller
	policy  *bluemonday.Policy
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewSearchClient creates a SearchClient.
func NewSearchClient(caller ToolCaller, logger *slog.Logger, metrics *observability.Metrics) *SearchClient {
	return &SearchClient{
		caller:  caller,
		policy:  bluemonday.StrictPolicy(),
		logger:  logger,
		metrics: metrics,
	}
}

// Search queries Exa for "query location" and returns up to limit results in
// Exa's relevance order. Markup is stripped from titles and snippets.
func (s *SearchClient) Search(ctx context.Context, query, location string, limit int) ([]domain.RawEvent, error) {
	if limit <= 0 {
		return []domain.RawEvent{}, nil
	}
	q := strings.TrimSpace(strings.TrimSpace(query) + " " + strings.TrimSpace(location))

	text, err := s.caller.CallTool(ctx, SearchTool, map[string]any{
		"query":      q,
		"numResults": limit,
	})
	if err != nil {
		s.metrics.SearchRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("search %q: %w", q, err)
	}

	var resp exaResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		s.metrics.SearchRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	events := make([]domain.RawEvent, 0, min(limit, len(resp.Results)))
	for i, r := range resp.Results {
		if len(events) == limit {
			break
		}
		title := s.clean(r.Title)
		if title == "" && r.URL == "" {
			continue
		}
		snippet := r.Summary
		if snippet == "" {
			snippet = r.Text
		}
		events = append(events, domain.RawEvent{
			Title:      title,
			Snippet:    truncate(s.clean(snippet), maxSnippetRunes),
			URL:        strings.TrimSpace(r.URL),
			SourceRank: i,
		})
	}

	outcome := "success"
	if len(events) == 0 {
		outcome = "empty"
	}
	s.metrics.SearchRequests.WithLabelValues(outcome).Inc()
	s.logger.Debug("search complete", "query", q, "results", len(events))
	return events, nil
}

// clean strips markup, decodes entities and collapses whitespace.
func (s *SearchClient) clean(text string) string {
	stripped := html.UnescapeString(s.policy.Sanitize(text))
	return strings.Join(strings.Fields(stripped), " ")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n])) + "…"
}

// Exa MCP response types.

type exaResponse struct {
	Results []exaResult `json:"results"`
}

type exaResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Text    string `json:"text"`
	Summary string `json:"summary"`
}
