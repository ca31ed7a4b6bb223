package weather

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Observer receives cache traffic events. Implementations must be safe for
// concurrent use; a nil observer disables reporting. CacheFallback fires
// only when a fallback snapshot is actually served; a failed forecast
// lookup is a fetch error, nothing stands in for it.
type Observer interface {
	CacheHit(purpose Purpose)
	CacheMiss(purpose Purpose)
	CacheFallback(purpose Purpose)
	CacheFetchError(purpose Purpose)
}

// CacheConfig carries the freshness windows and fetch timeouts for the two
// cache tiers, plus the initial process-wide fallback snapshot.
type CacheConfig struct {
	FullTTL         time.Duration // freshness of the 14-day series, default 10m
	ForecastTTL     time.Duration // freshness of the display strip, default 2h
	FullTimeout     time.Duration // cap on a full fetch, default 10s
	ForecastTimeout time.Duration // cap on a forecast fetch, default 5s
	Fallback        Snapshot      // returned when the provider is unreachable
}

type cacheEntry struct {
	report    Report
	fetchedAt time.Time
}

// Cache keeps one fetched report per (station coordinate, purpose) and
// refetches lazily once an entry's TTL has passed. Concurrent requesters
// of the same key are collapsed into a single outbound fetch. The cache is
// the only stateful component in the recommendation pipeline; everything
// downstream is a pure function of its output.
type Cache struct {
	provider Provider
	cfg      CacheConfig
	obs      Observer

	mu       sync.RWMutex
	entries  map[string]cacheEntry
	fallback Snapshot

	flight singleflight.Group
}

func NewCache(provider Provider, cfg CacheConfig, obs Observer) *Cache {
	if cfg.FullTTL <= 0 {
		cfg.FullTTL = 10 * time.Minute
	}
	if cfg.ForecastTTL <= 0 {
		cfg.ForecastTTL = 2 * time.Hour
	}
	if cfg.FullTimeout <= 0 {
		cfg.FullTimeout = 10 * time.Second
	}
	if cfg.ForecastTimeout <= 0 {
		cfg.ForecastTimeout = 5 * time.Second
	}
	return &Cache{
		provider: provider,
		cfg:      cfg,
		obs:      obs,
		entries:  make(map[string]cacheEntry),
		fallback: cfg.Fallback,
	}
}

// Snapshot returns the weather summary for a station, fetching through the
// provider on a stale or missing entry. It is total: on any fetch failure
// the process-wide fallback snapshot is returned with usedFallback=true,
// so a recommendation cycle always completes.
func (c *Cache) Snapshot(ctx context.Context, siteID string, coord Coordinate, now time.Time) (Snapshot, bool) {
	report, err := c.lookup(ctx, coord, PurposeFull, now)
	if err != nil {
		log.Printf("WARN: weather fetch failed for site %s station %s: %v; using fallback snapshot", siteID, coord.Bucket(), err)
		if c.obs != nil {
			c.obs.CacheFetchError(PurposeFull)
			c.obs.CacheFallback(PurposeFull)
		}
		return c.Fallback(), true
	}
	return report.Snapshot, false
}

// Forecast returns the 7-day display strip for a station. Unlike Snapshot
// it surfaces fetch failures: display callers render their own
// "forecast unavailable" state instead of a stale-looking fabrication.
func (c *Cache) Forecast(ctx context.Context, coord Coordinate, now time.Time) ([]DailyForecast, error) {
	report, err := c.lookup(ctx, coord, PurposeForecast, now)
	if err != nil {
		if c.obs != nil {
			c.obs.CacheFetchError(PurposeForecast)
		}
		return nil, err
	}
	return report.Days, nil
}

// Fallback returns the current process-wide default snapshot.
func (c *Cache) Fallback() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fallback
}

// SetFallback installs a newer default snapshot, normally after a
// successful fetch for the default station.
func (c *Cache) SetFallback(s Snapshot) {
	c.mu.Lock()
	c.fallback = s
	c.mu.Unlock()
}

// Invalidate drops every cached entry so the next access refetches.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// RefreshFallback performs an immediate full fetch for the given station
// (normally the default one), stores it, and promotes the result to the
// process-wide fallback. Unlike Snapshot, the error is surfaced so admin
// callers can report a failed refresh.
func (c *Cache) RefreshFallback(ctx context.Context, coord Coordinate, now time.Time) (Snapshot, error) {
	fctx, cancel := context.WithTimeout(ctx, c.cfg.FullTimeout)
	defer cancel()

	report, err := c.provider.Fetch(fctx, coord, PurposeFull)
	if err != nil {
		return Snapshot{}, err
	}

	c.mu.Lock()
	c.entries[cacheKey(coord, PurposeFull)] = cacheEntry{report: report, fetchedAt: now}
	c.fallback = report.Snapshot
	c.mu.Unlock()
	return report.Snapshot, nil
}

func (c *Cache) lookup(ctx context.Context, coord Coordinate, purpose Purpose, now time.Time) (Report, error) {
	key := cacheKey(coord, purpose)
	ttl := c.ttl(purpose)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && now.Sub(e.fetchedAt) < ttl {
		if c.obs != nil {
			c.obs.CacheHit(purpose)
		}
		return e.report, nil
	}
	if c.obs != nil {
		c.obs.CacheMiss(purpose)
	}

	v, err, _ := c.flight.Do(key, func() (interface{}, error) {
		// A concurrent caller may have refreshed the entry while this one
		// waited on the flight group.
		c.mu.RLock()
		e, ok := c.entries[key]
		c.mu.RUnlock()
		if ok && now.Sub(e.fetchedAt) < ttl {
			return e.report, nil
		}

		fctx, cancel := context.WithTimeout(ctx, c.timeout(purpose))
		defer cancel()

		report, fetchErr := c.provider.Fetch(fctx, coord, purpose)
		if fetchErr != nil {
			return Report{}, fetchErr
		}

		c.mu.Lock()
		c.entries[key] = cacheEntry{report: report, fetchedAt: now}
		c.mu.Unlock()
		return report, nil
	})
	if err != nil {
		return Report{}, err
	}
	return v.(Report), nil
}

func (c *Cache) ttl(purpose Purpose) time.Duration {
	if purpose == PurposeForecast {
		return c.cfg.ForecastTTL
	}
	return c.cfg.FullTTL
}

func (c *Cache) timeout(purpose Purpose) time.Duration {
	if purpose == PurposeForecast {
		return c.cfg.ForecastTimeout
	}
	return c.cfg.FullTimeout
}

func cacheKey(coord Coordinate, purpose Purpose) string {
	return coord.Bucket() + "|" + string(purpose)
}
