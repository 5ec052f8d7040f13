package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/storm-event-planner/internal/adapter/gcal"
	httpadapter "github.com/couchcryptid/storm-event-planner/internal/adapter/http"
	"github.com/couchcryptid/storm-event-planner/internal/adapter/ics"
	kafkaadapter "github.com/couchcryptid/storm-event-planner/internal/adapter/kafka"
	"github.com/couchcryptid/storm-event-planner/internal/adapter/mapbox"
	"github.com/couchcryptid/storm-event-planner/internal/adapter/mcpclient"
	"github.com/couchcryptid/storm-event-planner/internal/adapter/rediscache"
	"github.com/couchcryptid/storm-event-planner/internal/adapter/weathercache"
	"github.com/couchcryptid/storm-event-planner/internal/config"
	"github.com/couchcryptid/storm-event-planner/internal/domain"
	"github.com/couchcryptid/storm-event-planner/internal/observability"
	"github.com/couchcryptid/storm-event-planner/internal/pipeline"
	"github.com/couchcryptid/storm-event-planner/internal/planner"
	"github.com/couchcryptid/storm-event-planner/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, clock, logger, metrics); err != nil {
		logger.Error("planner exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) error {
	var checks readiness

	search, err := newMCPClient(cfg, cfg.SearchMCPURL, logger, metrics)
	if err != nil {
		return fmt.Errorf("search client: %w", err)
	}
	weatherCaller, err := newMCPClient(cfg, cfg.WeatherMCPURL, logger, metrics)
	if err != nil {
		return fmt.Errorf("weather client: %w", err)
	}

	cacheOpts := []weathercache.Option{weathercache.WithClock(clock)}
	if cfg.RedisAddr != "" {
		store, err := rediscache.NewWeatherStore(cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer closeWith(logger, "redis", store.Close)
		cacheOpts = append(cacheOpts, weathercache.WithSharedStore(store))
		checks = append(checks, store)
		logger.Info("shared weather cache enabled", "redis_addr", cfg.RedisAddr)
	}
	var weatherSource domain.WeatherProvider = mcpclient.NewWeatherClient(weatherCaller, clock, logger, metrics)
	if cfg.MapboxEnabled {
		geocoder, err := mapbox.NewCachedGeocoder(
			mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger, metrics),
			cfg.MapboxCacheSize, metrics,
		)
		if err != nil {
			return fmt.Errorf("geocoder cache: %w", err)
		}
		weatherSource = mapbox.NewGeocodedWeather(weatherSource, geocoder, logger)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}
	weather := weathercache.New(weatherSource, cfg.WeatherCacheSize, logger, metrics, cacheOpts...)

	calendar, err := newCalendar(ctx, cfg, clock, logger)
	if err != nil {
		return err
	}

	svc := planner.New(
		mcpclient.NewSearchClient(search, logger, metrics),
		weather,
		calendar,
		planner.SettingsFromConfig(cfg),
		clock, logger, metrics,
	)

	g, gctx := errgroup.WithContext(ctx)

	var loader pipeline.BatchLoader
	if cfg.PipelineEnabled {
		reader := kafkaadapter.NewReader(cfg, logger)
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer closeWith(logger, "kafka reader", reader.Close)
		defer closeWith(logger, "kafka writer", writer.Close)
		loader = writer

		p := pipeline.New(reader, svc, writer, clock, logger, metrics, cfg.BatchSize)
		checks = append(checks, p)
		g.Go(func() error { return p.Run(gctx) })
	} else {
		logger.Info("kafka pipeline disabled")
	}

	if cfg.WatchFile != "" {
		watches, err := scheduler.LoadWatches(cfg.WatchFile)
		if err != nil {
			return err
		}
		s := scheduler.New(watches, svc, loader, cfg.Location, clock, logger, metrics)
		g.Go(func() error { return s.Run(gctx) })
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, checks, svc, logger)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	return g.Wait()
}

func newMCPClient(cfg *config.Config, endpoint string, logger *slog.Logger, metrics *observability.Metrics) (*mcpclient.Client, error) {
	transport, err := mcpclient.HTTPTransport(endpoint, cfg.SmitheryAPIKey, cfg.SmitheryProfile, cfg.MCPTimeout)
	if err != nil {
		return nil, err
	}
	burst := max(1, int(cfg.MCPRateLimit))
	limiter := rate.NewLimiter(rate.Limit(cfg.MCPRateLimit), burst)
	return mcpclient.NewClient(transport, limiter, cfg.MCPTimeout, logger, metrics), nil
}

func newCalendar(ctx context.Context, cfg *config.Config, clock clockwork.Clock, logger *slog.Logger) (domain.CalendarStore, error) {
	switch cfg.CalendarBackend {
	case config.CalendarBackendGoogle:
		gsvc, err := gcal.NewService(ctx, cfg.GoogleCredentialsFile, cfg.GoogleTokenFile)
		if err != nil {
			return nil, fmt.Errorf("google calendar: %w", err)
		}
		logger.Info("calendar backend: google", "calendar_id", cfg.GoogleCalendarID)
		return gcal.NewStore(gsvc, cfg.GoogleCalendarID, cfg.Location, logger), nil
	default:
		logger.Info("calendar backend: ics", "file", cfg.ICSFile)
		return ics.NewStore(cfg.ICSFile, cfg.Location, clock, logger), nil
	}
}

// readiness reports ready only when every dependency does.
type readiness []sharedobs.ReadinessChecker

func (r readiness) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}

func closeWith(logger *slog.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.Error(name+" close error", "error", err)
	}
}
