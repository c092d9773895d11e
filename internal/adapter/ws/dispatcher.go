package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/coder/websocket"

	"github.com/jango-blockchained/schichtplan-sub009/internal/adapter/otel"
	"github.com/jango-blockchained/schichtplan-sub009/internal/domain/event"
)

// Dispatcher delivers domain events to every connection subscribed to the
// matching topic. It holds a reference to the registry rather than living as
// a free function, so collaborators publish through one object.
type Dispatcher struct {
	reg     *Registry
	log     *slog.Logger
	metrics *otel.Metrics
}

// NewDispatcher creates a broadcast dispatcher over the given registry.
// metrics may be nil.
func NewDispatcher(reg *Registry, log *slog.Logger, metrics *otel.Metrics) *Dispatcher {
	return &Dispatcher{reg: reg, log: log, metrics: metrics}
}

// Publish sends {type: topic, data: payload} to every subscriber of topic at
// the time of the call. Fire-and-forget: no delivery acknowledgement, and a
// connection mid-close simply misses the message. A subscriber whose send
// queue is full is disconnected instead of stalling the fan-out.
func (d *Dispatcher) Publish(ctx context.Context, topic string, payload any) {
	if !event.IsValid(topic) {
		d.log.Warn("publish on unknown topic", "topic", topic)
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		d.log.Error("marshal event payload", "topic", topic, "error", err)
		return
	}
	data := mustJSON(EventMessage{Type: topic, Data: raw})

	subs := d.reg.Subscribers(topic)
	for _, c := range subs {
		if !c.enqueue(data) {
			d.log.Warn("dropping slow subscriber", "conn", c.ID(), "topic", topic)
			if d.metrics != nil {
				d.metrics.MessagesDropped.Add(ctx, 1)
			}
			c.close(websocket.StatusPolicyViolation, "send queue overflow")
		}
	}

	if d.metrics != nil {
		d.metrics.EventsPublished.Add(ctx, 1)
	}
	d.log.Debug("event published", "topic", topic, "subscribers", len(subs))
}
