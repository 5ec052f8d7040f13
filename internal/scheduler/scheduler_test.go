package scheduler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-event-planner/internal/domain"
	"github.com/couchcryptid/storm-event-planner/internal/observability"
	"github.com/couchcryptid/storm-event-planner/internal/pipeline"
	"github.com/couchcryptid/storm-event-planner/internal/planner"
	"github.com/couchcryptid/storm-event-planner/internal/scheduler"
)

// --- mocks ---

type stubRecommender struct {
	err  error
	mu   sync.Mutex
	reqs []planner.RecommendationRequest
}

func (s *stubRecommender) Recommend(_ context.Context, req planner.RecommendationRequest) (*planner.RecommendationResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return nil, s.err
	}
	return &planner.RecommendationResponse{
		ID:    req.ID,
		Query: req.Query,
		Recommendations: []domain.Recommendation{{
			Event: domain.ClassifiedEvent{RawEvent: domain.RawEvent{Title: "Brooklyn Flea"}},
			Rank:  1,
		}},
	}, nil
}

type stubLoader struct {
	err     error
	results []pipeline.Result
}

func (l *stubLoader) LoadBatch(_ context.Context, results []pipeline.Result) error {
	if l.err != nil {
		return l.err
	}
	l.results = append(l.results, results...)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watches.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

var watchTime = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func newScheduler(r scheduler.Recommender, l pipeline.BatchLoader, m *observability.Metrics) *scheduler.Scheduler {
	return scheduler.New(nil, r, l, time.UTC, clockwork.NewFakeClockAt(watchTime), discardLogger(), m)
}

func TestLoadWatches(t *testing.T) {
	path := writeFile(t, `
watches:
  - name: weekend-markets
    schedule: "0 8 * * 6"
    query: flea markets
    location: Brooklyn, NY
    limit: 5
  - schedule: "@hourly"
    query: outdoor concerts
`)

	watches, err := scheduler.LoadWatches(path)
	require.NoError(t, err)
	require.Len(t, watches, 2)

	assert.Equal(t, scheduler.Watch{
		Name:     "weekend-markets",
		Schedule: "0 8 * * 6",
		Query:    "flea markets",
		Location: "Brooklyn, NY",
		Limit:    5,
	}, watches[0])
	assert.Equal(t, "watch-2", watches[1].Name)
}

func TestLoadWatches_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad schedule", "watches:\n  - name: a\n    schedule: every day\n    query: x\n", "invalid schedule"},
		{"missing query", "watches:\n  - name: a\n    schedule: \"@daily\"\n", "query is required"},
		{"negative limit", "watches:\n  - name: a\n    schedule: \"@daily\"\n    query: x\n    limit: -1\n", "limit must be non-negative"},
		{"duplicate name", "watches:\n  - name: a\n    schedule: \"@daily\"\n    query: x\n  - name: a\n    schedule: \"@daily\"\n    query: y\n", "duplicate name"},
		{"malformed yaml", "watches: [", "parse watch file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := scheduler.LoadWatches(writeFile(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadWatches_MissingFile(t *testing.T) {
	_, err := scheduler.LoadWatches(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read watch file")
}

func TestRunWatch_Publishes(t *testing.T) {
	rec := &stubRecommender{}
	ldr := &stubLoader{}
	metrics := observability.NewMetricsForTesting()
	s := newScheduler(rec, ldr, metrics)

	err := s.RunWatch(context.Background(), scheduler.Watch{Name: "markets", Query: "flea markets", Location: "Brooklyn, NY", Limit: 3})
	require.NoError(t, err)

	require.Len(t, rec.reqs, 1)
	assert.Equal(t, "markets-20261017T120000Z", rec.reqs[0].ID)
	assert.Equal(t, "Brooklyn, NY", rec.reqs[0].Location)
	assert.Equal(t, 3, rec.reqs[0].Limit)

	require.Len(t, ldr.results, 1)
	assert.Equal(t, pipeline.OutcomeOK, ldr.results[0].Outcome)
	assert.Equal(t, "markets-20261017T120000Z", ldr.results[0].RequestID)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WatchRuns.WithLabelValues("success")))
}

func TestRunWatch_RecommendError(t *testing.T) {
	rec := &stubRecommender{err: errors.New("search down")}
	ldr := &stubLoader{}
	metrics := observability.NewMetricsForTesting()
	s := newScheduler(rec, ldr, metrics)

	err := s.RunWatch(context.Background(), scheduler.Watch{Name: "markets", Query: "flea markets"})
	require.Error(t, err)

	require.Len(t, ldr.results, 1)
	assert.Equal(t, pipeline.OutcomeError, ldr.results[0].Outcome)
	assert.Equal(t, "search down", ldr.results[0].Error)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WatchRuns.WithLabelValues("error")))
}

func TestRunWatch_PublishError(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	s := newScheduler(&stubRecommender{}, &stubLoader{err: errors.New("broker down")}, metrics)

	err := s.RunWatch(context.Background(), scheduler.Watch{Name: "markets", Query: "flea markets"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish watch result")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WatchRuns.WithLabelValues("error")))
}

func TestRunWatch_WithoutLoader(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	s := newScheduler(&stubRecommender{}, nil, metrics)

	require.NoError(t, s.RunWatch(context.Background(), scheduler.Watch{Name: "markets", Query: "flea markets"}))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WatchRuns.WithLabelValues("success")))
}

func TestRun_StopsOnCancel(t *testing.T) {
	watches := []scheduler.Watch{{Name: "yearly", Schedule: "@yearly", Query: "parades"}}
	s := scheduler.New(watches, &stubRecommender{}, nil, time.UTC, clockwork.NewRealClock(), discardLogger(), observability.NewMetricsForTesting())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestRun_InvalidSchedule(t *testing.T) {
	watches := []scheduler.Watch{{Name: "bad", Schedule: "whenever", Query: "parades"}}
	s := scheduler.New(watches, &stubRecommender{}, nil, time.UTC, clockwork.NewRealClock(), discardLogger(), observability.NewMetricsForTesting())

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule watch bad")
}
