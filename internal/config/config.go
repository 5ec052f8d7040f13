package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve in minimal containers

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

const (
	CalendarBackendICS    = "ics"
	CalendarBackendGoogle = "google"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	PipelineEnabled    bool
	BatchSize          int
	BatchFlushInterval time.Duration

	// MCP collaborators.
	WeatherMCPURL   string
	SearchMCPURL    string
	SmitheryAPIKey  string
	SmitheryProfile string
	MCPTimeout      time.Duration
	MCPRateLimit    float64

	WeatherCacheSize int
	RedisAddr        string

	// Mapbox geocoding of weather locations.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int

	// Calendar backend configuration.
	CalendarBackend       string
	ICSFile               string
	GoogleCredentialsFile string
	GoogleTokenFile       string
	GoogleCalendarID      string

	// Planning defaults. DayStart and DayEnd are offsets from local midnight.
	Location        *time.Location
	DayStart        time.Duration
	DayEnd          time.Duration
	DefaultLocation string
	SearchLimit     int
	MaxSuggestions  int

	WatchFile string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	mcpTimeout, err := parsePositiveDuration("MCP_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	rateLimit, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("MCP_RATE_LIMIT", "5"), 64)
	if err != nil || rateLimit <= 0 {
		return nil, errors.New("invalid MCP_RATE_LIMIT")
	}

	cacheSize, err := parsePositiveInt("WEATHER_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := parsePositiveDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	mapboxCacheSize, err := parsePositiveInt("MAPBOX_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}
	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	searchLimit, err := parsePositiveInt("SEARCH_LIMIT", 10)
	if err != nil {
		return nil, err
	}
	maxSuggestions, err := parseNonNegativeInt("MAX_SUGGESTIONS", 3)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(sharedcfg.EnvOrDefault("TIMEZONE", "America/New_York"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	dayStart, err := parseClock("DAY_START", "08:00")
	if err != nil {
		return nil, err
	}
	dayEnd, err := parseClock("DAY_END", "18:00")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "recommendation-requests"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "event-recommendations"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "event-planner"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		PipelineEnabled:    os.Getenv("PIPELINE_ENABLED") == "true",
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		WeatherMCPURL:   sharedcfg.EnvOrDefault("WEATHER_MCP_URL", "https://server.smithery.ai/@smithery-ai/national-weather-service/mcp"),
		SearchMCPURL:    sharedcfg.EnvOrDefault("SEARCH_MCP_URL", "https://server.smithery.ai/exa/mcp"),
		SmitheryAPIKey:  os.Getenv("SMITHERY_API_KEY"),
		SmitheryProfile: os.Getenv("SMITHERY_PROFILE"),
		MCPTimeout:      mcpTimeout,
		MCPRateLimit:    rateLimit,

		WeatherCacheSize: cacheSize,
		RedisAddr:        os.Getenv("REDIS_ADDR"),

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: mapboxCacheSize,

		CalendarBackend:       sharedcfg.EnvOrDefault("CALENDAR_BACKEND", CalendarBackendICS),
		ICSFile:               sharedcfg.EnvOrDefault("ICS_FILE", "data/calendar.ics"),
		GoogleCredentialsFile: os.Getenv("GOOGLE_CREDENTIALS_FILE"),
		GoogleTokenFile:       os.Getenv("GOOGLE_TOKEN_FILE"),
		GoogleCalendarID:      sharedcfg.EnvOrDefault("GOOGLE_CALENDAR_ID", "primary"),

		Location:        loc,
		DayStart:        dayStart,
		DayEnd:          dayEnd,
		DefaultLocation: sharedcfg.EnvOrDefault("DEFAULT_LOCATION", "40.7128,-74.0060"),
		SearchLimit:     searchLimit,
		MaxSuggestions:  maxSuggestions,

		WatchFile: os.Getenv("WATCH_FILE"),
	}

	if cfg.PipelineEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaSourceTopic == "" {
			return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required")
		}
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if cfg.DayEnd <= cfg.DayStart {
		return nil, errors.New("DAY_END must be after DAY_START")
	}

	switch cfg.CalendarBackend {
	case CalendarBackendICS:
		if cfg.ICSFile == "" {
			return nil, errors.New("ICS_FILE is required for the ics calendar backend")
		}
	case CalendarBackendGoogle:
		if cfg.GoogleCredentialsFile == "" || cfg.GoogleTokenFile == "" {
			return nil, errors.New("GOOGLE_CREDENTIALS_FILE and GOOGLE_TOKEN_FILE are required for the google calendar backend")
		}
	default:
		return nil, fmt.Errorf("invalid CALENDAR_BACKEND %q", cfg.CalendarBackend)
	}

	return cfg, nil
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	n, err := parseNonNegativeInt(key, fallback)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return n, nil
}

func parseNonNegativeInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

// parseClock reads an "HH:MM" time of day as an offset from midnight.
func parseClock(key, fallback string) (time.Duration, error) {
	s := sharedcfg.EnvOrDefault(key, fallback)
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: want HH:MM", key, s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
