package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/jango-blockchained/schichtplan-sub009/internal/adapter/otel"
	"github.com/jango-blockchained/schichtplan-sub009/internal/adapter/ws"
)

// Deps carries everything the router serves.
type Deps struct {
	Gateway    *ws.Gateway
	Registry   *ws.Registry
	Log        *slog.Logger
	CORSOrigin string

	// NATSConnected reports whether the event ingest link is up; nil means
	// the gateway runs without a bus (tests, standalone mode).
	NATSConnected func() bool
}

// NewRouter builds the gateway's HTTP surface. The WebSocket endpoint is
// mounted outside the timeout group: connections are long-lived and a
// request timeout would sever them.
func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(SecurityHeaders)
	r.Use(CORS(d.CORSOrigin))
	r.Use(Logger(d.Log))
	r.Use(chimw.Recoverer)
	r.Use(otel.HTTPMiddleware("schichtplan-realtime"))

	r.Get("/ws", d.Gateway.HandleWS)

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))
		r.Get("/health", healthHandler(d))
		r.Get("/api/v1/stats", statsHandler(d))
	})

	return r
}

func healthHandler(d Deps) http.HandlerFunc {
	type healthStatus struct {
		Status string `json:"status"`
		NATS   string `json:"nats"`
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		status := healthStatus{Status: "ok", NATS: "disabled"}
		code := http.StatusOK
		if d.NATSConnected != nil {
			if d.NATSConnected() {
				status.NATS = "connected"
			} else {
				// Still serving existing connections, but new events
				// will not arrive.
				status.Status = "degraded"
				status.NATS = "disconnected"
				code = http.StatusServiceUnavailable
			}
		}
		writeJSON(w, code, status)
	}
}

func statsHandler(d Deps) http.HandlerFunc {
	type stats struct {
		Connections int `json:"connections"`
		Topics      int `json:"topics"`
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, stats{
			Connections: d.Gateway.ConnectionCount(),
			Topics:      d.Registry.TopicCount(),
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
