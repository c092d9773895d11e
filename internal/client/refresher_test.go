package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jango-blockchained/schichtplan-sub009/internal/resilience"
)

// fakeCache is a map-backed cache for refresher tests.
type fakeCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{m: make(map[string][]byte)}
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
	return nil
}

func discardLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRefreshFetchesAndStores(t *testing.T) {
	fc := newFakeCache()
	_ = fc.Set(context.Background(), KeySchedules, []byte("stale"), time.Minute)

	r := NewRefresher(fc, func(_ context.Context, key string) ([]byte, error) {
		return []byte("fresh:" + key), nil
	}, resilience.NewBreaker(3, time.Second), time.Minute, discardLog())

	r.Refresh(KeySchedules)

	val, found, _ := fc.Get(context.Background(), KeySchedules)
	if !found {
		t.Fatal("expected refreshed entry in cache")
	}
	if string(val) != "fresh:schedules" {
		t.Fatalf("cache holds %q, want fresh:schedules", val)
	}
}

func TestRefreshFailureDropsStaleEntry(t *testing.T) {
	fc := newFakeCache()
	_ = fc.Set(context.Background(), KeySettings, []byte("stale"), time.Minute)

	r := NewRefresher(fc, func(context.Context, string) ([]byte, error) {
		return nil, errors.New("api down")
	}, resilience.NewBreaker(3, time.Second), time.Minute, discardLog())

	r.Refresh(KeySettings)

	// The stale entry is gone and nothing replaced it: better a miss than
	// serving outdated data after a change notification.
	if _, found, _ := fc.Get(context.Background(), KeySettings); found {
		t.Fatal("stale entry must not survive a refresh attempt")
	}
}

func TestRefreshRespectsOpenBreaker(t *testing.T) {
	var calls atomic.Int64
	fc := newFakeCache()

	r := NewRefresher(fc, func(context.Context, string) ([]byte, error) {
		calls.Add(1)
		return nil, errors.New("api down")
	}, resilience.NewBreaker(1, time.Minute), time.Minute, discardLog())

	r.Refresh(KeyAbsences) // trips the breaker
	r.Refresh(KeyAbsences) // rejected without a fetch

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 fetch with open breaker, got %d", got)
	}
}
