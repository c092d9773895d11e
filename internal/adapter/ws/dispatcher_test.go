package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/jango-blockchained/schichtplan-sub009/internal/domain/event"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func drainOne(t *testing.T, c *Conn) EventMessage {
	t.Helper()
	select {
	case data := <-c.send:
		var msg EventMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal queued message: %v", err)
		}
		return msg
	default:
		t.Fatal("expected a queued message")
		return EventMessage{}
	}
}

func TestPublishDeliversToSubscribersOnly(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(reg, discardLogger(), nil)

	sub := newBareConn("sub")
	other := newBareConn("other")
	reg.Subscribe(event.TopicScheduleUpdated, sub)
	reg.Subscribe(event.TopicAbsenceUpdated, other)

	d.Publish(context.Background(), event.TopicScheduleUpdated, event.ScheduleUpdatedEvent{Date: "2024-02-01"})

	msg := drainOne(t, sub)
	if msg.Type != event.TopicScheduleUpdated {
		t.Errorf("type = %q, want %s", msg.Type, event.TopicScheduleUpdated)
	}
	var payload event.ScheduleUpdatedEvent
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Date != "2024-02-01" {
		t.Errorf("date = %q, want 2024-02-01", payload.Date)
	}

	if len(other.send) != 0 {
		t.Error("non-subscriber received a message")
	}
}

func TestPublishUnknownTopicIsNoop(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(reg, discardLogger(), nil)

	sub := newBareConn("sub")
	reg.Subscribe(event.TopicScheduleUpdated, sub)

	d.Publish(context.Background(), "not_a_topic", map[string]string{"x": "y"})

	if len(sub.send) != 0 {
		t.Fatal("unknown topic must not be delivered")
	}
}

func TestPublishFIFOPerConnection(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(reg, discardLogger(), nil)

	sub := newBareConn("sub")
	reg.Subscribe(event.TopicScheduleUpdated, sub)

	for _, date := range []string{"2024-02-01", "2024-02-02", "2024-02-03"} {
		d.Publish(context.Background(), event.TopicScheduleUpdated, event.ScheduleUpdatedEvent{Date: date})
	}

	for _, want := range []string{"2024-02-01", "2024-02-02", "2024-02-03"} {
		msg := drainOne(t, sub)
		var payload event.ScheduleUpdatedEvent
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			t.Fatal(err)
		}
		if payload.Date != want {
			t.Fatalf("out of order delivery: got %s, want %s", payload.Date, want)
		}
	}
}

func TestPublishDisconnectsSlowSubscriber(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(reg, discardLogger(), nil)

	_, cancel := context.WithCancel(context.Background())
	slow := newConn("slow", "u1", nil, 1, cancel)
	fast := newBareConn("fast")
	reg.Subscribe(event.TopicCoverageUpdated, slow)
	reg.Subscribe(event.TopicCoverageUpdated, fast)

	// First publish fills the slow conn's single-slot queue; the second
	// overflows it and must not block, while the fast conn receives both.
	d.Publish(context.Background(), event.TopicCoverageUpdated, event.CoverageUpdatedEvent{DayIndex: 0})
	d.Publish(context.Background(), event.TopicCoverageUpdated, event.CoverageUpdatedEvent{DayIndex: 1})

	if len(fast.send) != 2 {
		t.Fatalf("fast subscriber got %d messages, want 2", len(fast.send))
	}
	if len(slow.send) != 1 {
		t.Fatalf("slow subscriber queue = %d, want 1", len(slow.send))
	}
}

func TestPublishNoSubscribers(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(reg, discardLogger(), nil)

	// Must not panic with an empty registry.
	d.Publish(context.Background(), event.TopicSettingsUpdated, event.SettingsUpdatedEvent{})
}

func TestPublishUnmarshalablePayload(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(reg, discardLogger(), nil)

	sub := newBareConn("sub")
	reg.Subscribe(event.TopicScheduleUpdated, sub)

	// A channel cannot be marshaled to JSON; log and skip, no panic.
	d.Publish(context.Background(), event.TopicScheduleUpdated, make(chan int))

	if len(sub.send) != 0 {
		t.Fatal("unmarshalable payload must not be delivered")
	}
}
