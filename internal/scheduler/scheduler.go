package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"github.com/couchcryptid/storm-event-planner/internal/observability"
	"github.com/couchcryptid/storm-event-planner/internal/pipeline"
	"github.com/couchcryptid/storm-event-planner/internal/planner"
)

// Recommender answers a single recommendation request.
type Recommender interface {
	Recommend(ctx context.Context, req planner.RecommendationRequest) (*planner.RecommendationResponse, error)
}

// Scheduler runs watches on their cron schedules and publishes each run's
// result. With a nil loader results are only logged.
type Scheduler struct {
	watches     []Watch
	recommender Recommender
	loader      pipeline.BatchLoader
	loc         *time.Location
	clock       clockwork.Clock
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// New creates a Scheduler. Schedules are evaluated in loc.
func New(watches []Watch, r Recommender, loader pipeline.BatchLoader, loc *time.Location,
	clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		watches:     watches,
		recommender: r,
		loader:      loader,
		loc:         loc,
		clock:       clock,
		logger:      logger,
		metrics:     metrics,
	}
}

// Run starts the cron loop and blocks until ctx is cancelled, then waits for
// in-flight runs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	log := cronLogger{s.logger}
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)
	for _, w := range s.watches {
		sched, err := cron.ParseStandard(w.Schedule)
		if err != nil {
			return fmt.Errorf("schedule watch %s: %w", w.Name, err)
		}
		c.Schedule(sched, cron.FuncJob(func() {
			_ = s.RunWatch(ctx, w)
		}))
	}

	s.logger.Info("scheduler started", "watches", len(s.watches))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// RunWatch executes one watch immediately and publishes its result. The
// returned error is the recommendation or publish failure, if any.
func (s *Scheduler) RunWatch(ctx context.Context, w Watch) error {
	now := s.clock.Now()
	id := fmt.Sprintf("%s-%s", w.Name, now.UTC().Format("20060102T150405Z"))

	resp, err := s.recommender.Recommend(ctx, planner.RecommendationRequest{
		ID:       id,
		Query:    w.Query,
		Location: w.Location,
		Limit:    w.Limit,
	})
	result := pipeline.NewResult(id, planner.BatchItem{Response: resp, Err: err}, now)
	if err != nil {
		s.logger.Warn("watch run failed", "watch", w.Name, "error", err)
	}

	if s.loader == nil {
		s.logRun(w, result)
	} else if loadErr := s.loader.LoadBatch(ctx, []pipeline.Result{result}); loadErr != nil {
		s.logger.Error("publish watch result failed", "watch", w.Name, "error", loadErr)
		if err == nil {
			err = fmt.Errorf("publish watch result: %w", loadErr)
		}
	}

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.metrics.WatchRuns.WithLabelValues(outcome).Inc()
	return err
}

func (s *Scheduler) logRun(w Watch, result pipeline.Result) {
	if result.Response == nil {
		return
	}
	top := ""
	if len(result.Response.Recommendations) > 0 {
		top = result.Response.Recommendations[0].Event.Title
	}
	s.logger.Info("watch run complete",
		"watch", w.Name,
		"request_id", result.RequestID,
		"recommendations", len(result.Response.Recommendations),
		"top", top,
	)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
