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
	"time"

	"golang.org/x/sync/errgroup"

	schhttp "github.com/jango-blockchained/schichtplan-sub009/internal/adapter/http"
	"github.com/jango-blockchained/schichtplan-sub009/internal/adapter/nats"
	"github.com/jango-blockchained/schichtplan-sub009/internal/adapter/otel"
	"github.com/jango-blockchained/schichtplan-sub009/internal/adapter/ws"
	"github.com/jango-blockchained/schichtplan-sub009/internal/config"
	"github.com/jango-blockchained/schichtplan-sub009/internal/logger"
	"github.com/jango-blockchained/schichtplan-sub009/internal/service"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := runToken(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()
	slog.SetDefault(log)

	log.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"nats_url", cfg.NATS.URL,
	)

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- WebSocket hub ---

	auth := service.NewAuthService(cfg.Auth)
	reg := ws.NewRegistry()
	gateway := ws.NewGateway(auth, reg, cfg.Hub, log, metrics)
	dispatcher := ws.NewDispatcher(reg, log, metrics)

	// --- Event ingest ---

	bus, err := nats.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix, log)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer bus.Close()

	unsubscribe, err := bus.Ingest(ctx, dispatcher)
	if err != nil {
		return fmt.Errorf("nats ingest: %w", err)
	}
	defer unsubscribe()

	// --- HTTP server ---

	router := schhttp.NewRouter(schhttp.Deps{
		Gateway:       gateway,
		Registry:      reg,
		Log:           log,
		CORSOrigin:    cfg.Server.CORSOrigin,
		NATSConnected: bus.Connected,
	})

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server", "open_connections", gateway.ConnectionCount())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
