package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jango-blockchained/schichtplan-sub009/internal/adapter/ws"
	"github.com/jango-blockchained/schichtplan-sub009/internal/config"
	"github.com/jango-blockchained/schichtplan-sub009/internal/domain/event"
	"github.com/jango-blockchained/schichtplan-sub009/internal/invalidation"
	"github.com/jango-blockchained/schichtplan-sub009/internal/service"
)

// keyRecorder collects the keys the scheduler asked to refresh.
type keyRecorder struct {
	mu   sync.Mutex
	keys []string
}

func (r *keyRecorder) refresh(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
}

func (r *keyRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.keys...)
}

type clientFixture struct {
	server *httptest.Server
	reg    *ws.Registry
	disp   *ws.Dispatcher
	token  string
}

func newClientFixture(t *testing.T) *clientFixture {
	t.Helper()

	auth := service.NewAuthService(config.Auth{Secret: "client-test-secret", TokenExpiry: time.Hour})
	token, err := auth.IssueToken("emp-42")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	log := discardLog()
	reg := ws.NewRegistry()
	hub := config.Hub{SendBuffer: 32, WriteTimeout: time.Second, MaxMessageBytes: 4096}
	gw := ws.NewGateway(auth, reg, hub, log, nil)

	srv := httptest.NewServer(http.HandlerFunc(gw.HandleWS))
	t.Cleanup(srv.Close)

	return &clientFixture{
		server: srv,
		reg:    reg,
		disp:   ws.NewDispatcher(reg, log, nil),
		token:  token,
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestClientRefreshesOnBroadcast(t *testing.T) {
	fx := newClientFixture(t)

	rec := &keyRecorder{}
	sched := invalidation.NewScheduler([]invalidation.Rule{
		{Key: KeySchedules, Debounce: 20 * time.Millisecond, MaxWait: 200 * time.Millisecond, Priority: invalidation.PriorityMedium},
	}, rec.refresh, discardLog())
	defer sched.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := New(Options{
		URL:    fx.server.URL,
		Token:  fx.token,
		Routes: []Route{{Topic: event.TopicScheduleUpdated, Keys: []string{KeySchedules}}},
	}, sched, discardLog())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()

	waitFor(t, time.Second, func() bool {
		return fx.reg.SubscriberCount(event.TopicScheduleUpdated) == 1
	})

	fx.disp.Publish(context.Background(), event.TopicScheduleUpdated,
		event.ScheduleUpdatedEvent{Date: "2024-02-01", VersionID: "7"})

	waitFor(t, time.Second, func() bool {
		for _, k := range rec.snapshot() {
			if k == KeySchedules {
				return true
			}
		}
		return false
	})

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("client did not stop after cancel")
	}
}

func TestClientForcedRouteBypassesDebounce(t *testing.T) {
	fx := newClientFixture(t)

	rec := &keyRecorder{}
	// A long debounce that a forced route must not wait on.
	sched := invalidation.NewScheduler([]invalidation.Rule{
		{Key: KeySettings, Debounce: time.Hour, MaxWait: 2 * time.Hour, Priority: invalidation.PriorityLow},
	}, rec.refresh, discardLog())
	defer sched.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := New(Options{
		URL:    fx.server.URL,
		Token:  fx.token,
		Routes: []Route{{Topic: event.TopicSettingsUpdated, Keys: []string{KeySettings}, Force: true}},
	}, sched, discardLog())
	go func() { _ = c.Run(ctx) }()

	waitFor(t, time.Second, func() bool {
		return fx.reg.SubscriberCount(event.TopicSettingsUpdated) == 1
	})

	fx.disp.Publish(context.Background(), event.TopicSettingsUpdated,
		event.SettingsUpdatedEvent{Section: "general"})

	waitFor(t, time.Second, func() bool {
		keys := rec.snapshot()
		return len(keys) == 1 && keys[0] == KeySettings
	})
	if sched.Pending(KeySettings) {
		t.Error("forced refresh must leave nothing pending")
	}
}

func TestClientIgnoresUnroutedTopics(t *testing.T) {
	rec := &keyRecorder{}
	sched := invalidation.NewScheduler(DefaultRules(), rec.refresh, discardLog())
	defer sched.Close()

	c := New(Options{
		URL:    "http://localhost:0",
		Token:  "unused",
		Routes: []Route{{Topic: event.TopicScheduleUpdated, Keys: []string{KeySchedules}}},
	}, sched, discardLog())

	c.handle(event.TopicAbsenceUpdated, "")
	c.handle("subscribe_response", "success")
	c.handle("pong", "")

	if got := rec.snapshot(); len(got) != 0 {
		t.Fatalf("unrouted messages triggered refreshes: %v", got)
	}
}

func TestDialURL(t *testing.T) {
	t.Run("appends token", func(t *testing.T) {
		got, err := dialURL("http://gateway.local/ws", "abc123")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(got, "token=abc123") {
			t.Errorf("got %q, want token query parameter", got)
		}
	})

	t.Run("requires token", func(t *testing.T) {
		if _, err := dialURL("http://gateway.local/ws", ""); err == nil {
			t.Error("expected error for empty token")
		}
	})
}
