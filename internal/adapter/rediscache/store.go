package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/couchcryptid/storm-event-planner/internal/domain"
)

const keyPrefix = "event-planner:weather:"

// WeatherStore is a redis-backed weathercache.SharedStore.
type WeatherStore struct {
	client *redis.Client
}

// NewWeatherStore connects to addr, which may be host:port or a redis:// URL.
func NewWeatherStore(addr string) (*WeatherStore, error) {
	opts := &redis.Options{Addr: addr}
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_ADDR: %w", err)
		}
		opts = parsed
	}
	return &WeatherStore{client: redis.NewClient(opts)}, nil
}

// Get returns the cached reading, or ok=false on a miss.
func (s *WeatherStore) Get(ctx context.Context, key string) (domain.WeatherReading, bool, error) {
	data, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.WeatherReading{}, false, nil
	}
	if err != nil {
		return domain.WeatherReading{}, false, fmt.Errorf("redis get: %w", err)
	}

	var r domain.WeatherReading
	if err := json.Unmarshal(data, &r); err != nil {
		return domain.WeatherReading{}, false, fmt.Errorf("decode cached reading: %w", err)
	}
	return r, true, nil
}

// Set stores the reading until ttl elapses. Non-positive ttls are skipped.
func (s *WeatherStore) Set(ctx context.Context, key string, reading domain.WeatherReading, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("encode reading: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// CheckReadiness pings redis.
func (s *WeatherStore) CheckReadiness(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *WeatherStore) Close() error {
	return s.client.Close()
}
