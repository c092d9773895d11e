package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/coder/websocket"

	"github.com/jango-blockchained/schichtplan-sub009/internal/invalidation"
)

// Options configures the real-time client runtime.
type Options struct {
	URL    string // gateway ws endpoint, http(s) or ws(s) scheme
	Token  string
	Routes []Route

	// Reconnect backoff bounds; zero values take the defaults.
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

const (
	defaultReconnectMin = 500 * time.Millisecond
	defaultReconnectMax = 30 * time.Second
)

// Client maintains a subscription to the gateway and forwards each received
// event to the invalidation scheduler according to its route.
type Client struct {
	opts   Options
	sched  *invalidation.Scheduler
	routes map[string]Route
	log    *slog.Logger
}

// New creates a client runtime. The scheduler's lifecycle belongs to the
// caller; tearing down the owning context stops the client but does not
// close the scheduler.
func New(opts Options, sched *invalidation.Scheduler, log *slog.Logger) *Client {
	if opts.ReconnectMin <= 0 {
		opts.ReconnectMin = defaultReconnectMin
	}
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = defaultReconnectMax
	}
	routes := make(map[string]Route, len(opts.Routes))
	for _, r := range opts.Routes {
		routes[r.Topic] = r
	}
	return &Client{opts: opts, sched: sched, routes: routes, log: log}
}

// Run connects and serves until ctx is canceled, reconnecting with capped
// exponential backoff after any connection failure.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.opts.ReconnectMin
	for {
		start := time.Now()
		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(start) > c.opts.ReconnectMax {
			// The link was healthy for a while; start the backoff over.
			backoff = c.opts.ReconnectMin
		}
		c.log.Warn("gateway connection lost", "error", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.opts.ReconnectMax {
			backoff = c.opts.ReconnectMax
		}
	}
}

// runOnce dials the gateway, subscribes to every routed topic and consumes
// events until the connection drops or ctx is canceled.
func (c *Client) runOnce(ctx context.Context) error {
	endpoint, err := dialURL(c.opts.URL, c.opts.Token)
	if err != nil {
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, resp, err := websocket.Dial(dialCtx, endpoint, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// The handshake acknowledgement is always the first message.
	var hello struct {
		Type   string `json:"type"`
		UserID string `json:"user_id"`
	}
	if err := readInto(ctx, conn, &hello); err != nil {
		return fmt.Errorf("read handshake ack: %w", err)
	}
	if hello.Type != "connection_established" {
		return fmt.Errorf("unexpected first message %q", hello.Type)
	}
	c.log.Info("connected to gateway", "user", hello.UserID)

	for topic := range c.routes {
		sub, _ := json.Marshal(map[string]string{"type": "subscribe", "event": topic})
		if err := conn.Write(ctx, websocket.MessageText, sub); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}

	for {
		var msg struct {
			Type   string `json:"type"`
			Status string `json:"status"`
		}
		if err := readInto(ctx, conn, &msg); err != nil {
			return err
		}
		c.handle(msg.Type, msg.Status)
	}
}

// handle routes one inbound message by type.
func (c *Client) handle(msgType, status string) {
	switch msgType {
	case "subscribe_response", "unsubscribe_response":
		if status != "success" {
			c.log.Warn("subscription rejected", "status", status)
		}
	case "pong", "connection_established":
		// control noise
	case "error":
		c.log.Warn("gateway reported malformed message")
	default:
		route, ok := c.routes[msgType]
		if !ok {
			c.log.Debug("event without route", "topic", msgType)
			return
		}
		if route.Force {
			c.sched.Force(route.Keys...)
			return
		}
		c.sched.Request(route.Keys...)
	}
}

func readInto(ctx context.Context, conn *websocket.Conn, v any) error {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}

// dialURL appends the access token to the gateway endpoint.
func dialURL(raw, token string) (string, error) {
	if token == "" {
		return "", errors.New("access token is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("gateway url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
