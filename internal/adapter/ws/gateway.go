// Package ws implements the WebSocket adapter: the authenticated connection
// gateway, the topic registry and the broadcast dispatcher.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/jango-blockchained/schichtplan-sub009/internal/adapter/otel"
	"github.com/jango-blockchained/schichtplan-sub009/internal/config"
	"github.com/jango-blockchained/schichtplan-sub009/internal/service"
)

// Gateway authenticates upgrade requests and runs the lifecycle of each
// resulting connection: handshake acknowledgement, control message loop and
// cleanup on close.
type Gateway struct {
	auth    *service.AuthService
	reg     *Registry
	cfg     config.Hub
	log     *slog.Logger
	metrics *otel.Metrics

	mu    sync.Mutex
	conns map[*Conn]struct{}
}

// NewGateway creates a connection gateway. metrics may be nil.
func NewGateway(auth *service.AuthService, reg *Registry, cfg config.Hub, log *slog.Logger, metrics *otel.Metrics) *Gateway {
	return &Gateway{
		auth:    auth,
		reg:     reg,
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		conns:   make(map[*Conn]struct{}),
	}
}

// HandleWS upgrades an authenticated request to a WebSocket connection and
// blocks until the connection closes. Requests without a valid token are
// rejected before the transport is upgraded.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		g.rejectHandshake(w, "authorization required")
		return
	}

	claims, err := g.auth.VerifyToken(token)
	if err != nil {
		g.rejectHandshake(w, err.Error())
		return
	}

	wsc, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		g.log.Error("websocket accept failed", "error", err)
		return
	}
	wsc.SetReadLimit(g.cfg.MaxMessageBytes)

	ctx, cancel := context.WithCancel(r.Context())
	c := newConn(claims.Subject+"-"+uuid.NewString()[:8], claims.Subject, wsc, g.cfg.SendBuffer, cancel)

	g.add(c)
	defer g.remove(c)

	go c.writePump(ctx, g.cfg.WriteTimeout)

	// First message on every connection: the handshake acknowledgement.
	c.enqueue(mustJSON(connectionEstablished{
		Type:            msgConnectionEstablished,
		ClientID:        c.ID(),
		IsAuthenticated: true,
		UserID:          c.UserID(),
	}))

	g.log.Info("websocket connected", "conn", c.ID(), "user", c.UserID(), "remote", r.RemoteAddr)

	for {
		_, data, err := wsc.Read(ctx)
		if err != nil {
			// Clean close and abnormal disconnect clean up identically.
			return
		}
		g.handleMessage(c, data)
	}
}

// handleMessage processes one inbound control message on an open connection.
func (g *Gateway) handleMessage(c *Conn, data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.enqueue(mustJSON(errorMessage{Type: msgError, Message: "invalid message payload"}))
		return
	}

	switch msg.Type {
	case msgSubscribe:
		if msg.Event == "" {
			c.enqueue(mustJSON(ackMessage{Type: msgSubscribeResponse, Status: statusError, Message: "missing event name"}))
			return
		}
		g.reg.Subscribe(msg.Event, c)
		c.enqueue(mustJSON(ackMessage{Type: msgSubscribeResponse, Status: statusSuccess, Message: "subscribed to " + msg.Event}))

	case msgUnsubscribe:
		if msg.Event == "" {
			c.enqueue(mustJSON(ackMessage{Type: msgUnsubscribeResponse, Status: statusError, Message: "missing event name"}))
			return
		}
		g.reg.Unsubscribe(msg.Event, c)
		c.enqueue(mustJSON(ackMessage{Type: msgUnsubscribeResponse, Status: statusSuccess, Message: "unsubscribed from " + msg.Event}))

	case msgPing:
		c.enqueue(mustJSON(pongMessage{Type: msgPong}))

	default:
		// No reply for unknown types; diagnostic only.
		g.log.Debug("unknown message type", "conn", c.ID(), "type", msg.Type)
	}
}

// ConnectionCount returns the number of active connections.
func (g *Gateway) ConnectionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

func (g *Gateway) add(c *Conn) {
	g.mu.Lock()
	g.conns[c] = struct{}{}
	g.mu.Unlock()

	if g.metrics != nil {
		g.metrics.ConnectionsActive.Add(context.Background(), 1)
	}
}

// remove de-registers c from every topic and discards it. Runs its side
// effects once even if called again for the same connection.
func (g *Gateway) remove(c *Conn) {
	g.mu.Lock()
	_, ok := g.conns[c]
	delete(g.conns, c)
	g.mu.Unlock()

	if !ok {
		return
	}

	g.reg.RemoveAll(c)
	c.close(websocket.StatusNormalClosure, "")

	if g.metrics != nil {
		g.metrics.ConnectionsActive.Add(context.Background(), -1)
	}
	g.log.Info("websocket disconnected", "conn", c.ID(), "user", c.UserID(),
		"duration_ms", time.Since(c.ConnectedAt()).Milliseconds())
}

func (g *Gateway) rejectHandshake(w http.ResponseWriter, reason string) {
	if g.metrics != nil {
		g.metrics.AuthFailures.Add(context.Background(), 1)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": reason})
}

// bearerToken extracts the access token from the ?token= query parameter or
// the Authorization: Bearer header.
func bearerToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	h := r.Header.Get("Authorization")
	if t := strings.TrimPrefix(h, "Bearer "); t != h {
		return t
	}
	return ""
}
