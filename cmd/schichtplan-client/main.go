// Command schichtplan-client is a headless consumer of the real-time
// gateway. It keeps a local cache of the shift-planning resources warm:
// every broadcast event is debounced by the invalidation scheduler, and the
// refresher refetches the affected resources from the API. Useful as a
// reference client and for exercising a gateway under realistic load.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jango-blockchained/schichtplan-sub009/internal/adapter/ristretto"
	"github.com/jango-blockchained/schichtplan-sub009/internal/client"
	"github.com/jango-blockchained/schichtplan-sub009/internal/config"
	"github.com/jango-blockchained/schichtplan-sub009/internal/invalidation"
	"github.com/jango-blockchained/schichtplan-sub009/internal/logger"
	"github.com/jango-blockchained/schichtplan-sub009/internal/resilience"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	gatewayURL := flag.String("gateway", "ws://localhost:8080/ws", "gateway WebSocket endpoint")
	apiURL := flag.String("api", "http://localhost:5000", "schichtplan API base URL")
	token := flag.String("token", os.Getenv("SCHICHTPLAN_TOKEN"), "access token (default $SCHICHTPLAN_TOKEN)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()
	slog.SetDefault(log)

	store, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer store.Close()

	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	refresher := client.NewRefresher(store, apiFetcher(*apiURL), breaker, cfg.Cache.TTL, log)

	sched := invalidation.NewScheduler(client.DefaultRules(), refresher.Refresh, log)
	defer sched.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(client.Options{
		URL:    *gatewayURL,
		Token:  *token,
		Routes: client.DefaultRoutes(),
	}, sched, log)

	err = c.Run(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// apiFetcher fetches a resource collection from the schichtplan API.
func apiFetcher(base string) client.Fetcher {
	httpc := &http.Client{Timeout: 15 * time.Second}

	return func(ctx context.Context, key string) ([]byte, error) {
		u, err := url.JoinPath(base, "api", key)
		if err != nil {
			return nil, fmt.Errorf("build url for %s: %w", key, err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		resp, err := httpc.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", key, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch %s: unexpected status %d", key, resp.StatusCode)
		}
		return io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	}
}
