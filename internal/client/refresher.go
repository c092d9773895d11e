// Package client implements the consuming side of the real-time gateway: a
// WebSocket runtime that feeds domain events into the invalidation
// scheduler, and the cache layer the scheduler's refreshes land on.
package client

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jango-blockchained/schichtplan-sub009/internal/port/cache"
	"github.com/jango-blockchained/schichtplan-sub009/internal/resilience"
)

// Fetcher retrieves the current payload for a resource key from the API.
type Fetcher func(ctx context.Context, key string) ([]byte, error)

// Refresher is the cache layer invoked by the invalidation scheduler. It
// drops the stale entry and refetches it, deduplicating concurrent refetches
// of the same key and shielding the API behind a circuit breaker. Refresh
// failures end here; the scheduler never sees them.
type Refresher struct {
	cache   cache.Cache
	fetch   Fetcher
	breaker *resilience.Breaker
	group   singleflight.Group
	ttl     time.Duration
	log     *slog.Logger
}

// NewRefresher creates a refresher storing fetched payloads with the given TTL.
func NewRefresher(c cache.Cache, fetch Fetcher, breaker *resilience.Breaker, ttl time.Duration, log *slog.Logger) *Refresher {
	return &Refresher{
		cache:   c,
		fetch:   fetch,
		breaker: breaker,
		ttl:     ttl,
		log:     log,
	}
}

// Refresh drops and refetches key. Matches invalidation.RefreshFunc.
func (r *Refresher) Refresh(key string) {
	ctx := context.Background()

	if err := r.cache.Delete(ctx, key); err != nil {
		r.log.Warn("cache delete failed", "key", key, "error", err)
	}

	_, err, shared := r.group.Do(key, func() (any, error) {
		var data []byte
		err := r.breaker.Execute(func() error {
			var ferr error
			data, ferr = r.fetch(ctx, key)
			return ferr
		})
		if err != nil {
			return nil, err
		}
		return nil, r.cache.Set(ctx, key, data, r.ttl)
	})
	if err != nil {
		r.log.Warn("refresh failed", "key", key, "error", err)
		return
	}
	r.log.Debug("resource refreshed", "key", key, "shared", shared)
}
