package weathercache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/storm-event-planner/internal/domain"
	"github.com/couchcryptid/storm-event-planner/internal/observability"
)

// DefaultBucket is the width of a cache time bucket.
const DefaultBucket = 10 * time.Minute

// SharedStore is an optional second tier shared between replicas.
type SharedStore interface {
	Get(ctx context.Context, key string) (domain.WeatherReading, bool, error)
	Set(ctx context.Context, key string, reading domain.WeatherReading, ttl time.Duration) error
}

// Key identifies one cached reading: a normalized location in one time bucket.
type Key struct {
	Location string
	Bucket   int64
}

func (k Key) String() string {
	return fmt.Sprintf("%s@%d", k.Location, k.Bucket)
}

// BucketOf returns the index of the bucket containing t.
func BucketOf(t time.Time, width time.Duration) int64 {
	return t.UnixNano() / int64(width)
}

// Expired reports whether an entry keyed by k is stale at now. Entries expire
// by bucket rollover only; access recency plays no part.
func Expired(k Key, now time.Time, width time.Duration) bool {
	return k.Bucket < BucketOf(now, width)
}

// CachedWeather wraps a WeatherProvider with a bounded (location, bucket)
// cache. Concurrent misses for the same key share one upstream call.
type CachedWeather struct {
	inner      domain.WeatherProvider
	shared     SharedStore
	clock      clockwork.Clock
	width      time.Duration
	maxEntries int
	logger     *slog.Logger
	metrics    *observability.Metrics

	mu      sync.Mutex
	entries map[Key]domain.WeatherReading
	group   singleflight.Group
}

// Option configures a CachedWeather.
type Option func(*CachedWeather)

// WithSharedStore enables the second tier.
func WithSharedStore(s SharedStore) Option {
	return func(c *CachedWeather) { c.shared = s }
}

// WithClock overrides the real clock.
func WithClock(clock clockwork.Clock) Option {
	return func(c *CachedWeather) { c.clock = clock }
}

// WithBucket overrides DefaultBucket.
func WithBucket(width time.Duration) Option {
	return func(c *CachedWeather) { c.width = width }
}

// New creates a cache decorator around a weather provider.
func New(inner domain.WeatherProvider, maxEntries int, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *CachedWeather {
	c := &CachedWeather{
		inner:      inner,
		clock:      clockwork.NewRealClock(),
		width:      DefaultBucket,
		maxEntries: maxEntries,
		logger:     logger,
		metrics:    metrics,
		entries:    make(map[Key]domain.WeatherReading),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.shared != nil {
		metrics.SharedCache.Set(1)
	}
	return c
}

// Current implements domain.WeatherProvider. Errors are never cached.
func (c *CachedWeather) Current(ctx context.Context, location string) (domain.WeatherReading, error) {
	now := c.clock.Now()
	key := Key{Location: normalizeLocation(location), Bucket: BucketOf(now, c.width)}

	if r, ok := c.get(key); ok {
		c.metrics.WeatherCache.WithLabelValues("hit").Inc()
		return r, nil
	}

	// The upstream call outlives any single caller's cancellation since
	// other callers may be waiting on it; the provider applies its own timeout.
	fetchCtx := context.WithoutCancel(ctx)
	v, err, coalesced := c.group.Do(key.String(), func() (any, error) {
		return c.fetch(fetchCtx, location, key, now)
	})
	if coalesced {
		c.metrics.WeatherCache.WithLabelValues("coalesced").Inc()
	}
	if err != nil {
		return domain.WeatherReading{}, err
	}
	return v.(domain.WeatherReading), nil
}

func (c *CachedWeather) fetch(ctx context.Context, location string, key Key, now time.Time) (domain.WeatherReading, error) {
	if c.shared != nil {
		r, ok, err := c.shared.Get(ctx, key.String())
		switch {
		case err != nil:
			c.logger.Warn("shared weather cache read failed", "key", key.String(), "error", err)
		case ok:
			c.metrics.WeatherCache.WithLabelValues("shared_hit").Inc()
			c.put(key, r, now)
			return r, nil
		}
	}

	c.metrics.WeatherCache.WithLabelValues("miss").Inc()
	r, err := c.inner.Current(ctx, location)
	if err != nil {
		return domain.WeatherReading{}, err
	}
	c.put(key, r, now)

	if c.shared != nil {
		ttl := c.bucketEnd(key).Sub(now)
		if err := c.shared.Set(ctx, key.String(), r, ttl); err != nil {
			c.logger.Warn("shared weather cache write failed", "key", key.String(), "error", err)
		}
	}
	return r, nil
}

func (c *CachedWeather) get(key Key) (domain.WeatherReading, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[key]
	return r, ok
}

// put stores r after purging stale buckets. If the cache is still full the
// reading is not cached.
func (c *CachedWeather) put(key Key, r domain.WeatherReading, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.maxEntries {
		for k := range c.entries {
			if Expired(k, now, c.width) {
				delete(c.entries, k)
			}
		}
		if len(c.entries) >= c.maxEntries {
			c.metrics.WeatherCache.WithLabelValues("skipped").Inc()
			return
		}
	}
	c.entries[key] = r
}

// Len returns the number of cached entries.
func (c *CachedWeather) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *CachedWeather) bucketEnd(key Key) time.Time {
	return time.Unix(0, (key.Bucket+1)*int64(c.width))
}

// normalizeLocation folds case and whitespace so "New York" and " new  york"
// share an entry.
func normalizeLocation(location string) string {
	return strings.ToLower(strings.Join(strings.Fields(location), " "))
}
