// Package nats bridges the schichtplan API's event stream onto the
// WebSocket dispatcher. The API process publishes change notifications to
// NATS; every gateway instance subscribes to the subject prefix and fans
// each event out to its own connections. Core NATS only: a notification
// that arrives while no gateway is listening is simply lost, which is fine
// because clients refetch on reconnect anyway.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/jango-blockchained/schichtplan-sub009/internal/domain/event"
	"github.com/jango-blockchained/schichtplan-sub009/internal/port/broadcast"
)

// Bus is a NATS connection scoped to one subject prefix.
type Bus struct {
	nc     *nats.Conn
	prefix string
	log    *slog.Logger
}

// Connect establishes a connection to NATS. The prefix scopes every subject
// this bus publishes or consumes, e.g. "schichtplan.events".
func Connect(url, prefix string, log *slog.Logger) (*Bus, error) {
	nc, err := nats.Connect(url,
		nats.Name("schichtplan-gateway"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	log.Info("nats connected", "url", url, "prefix", prefix)
	return &Bus{nc: nc, prefix: prefix, log: log}, nil
}

// Publish sends a domain event to the bus. Collaborator services call this
// after committing a change; topic must be one of the registered topics.
func (b *Bus) Publish(_ context.Context, topic string, payload any) error {
	if !event.IsValid(topic) {
		return fmt.Errorf("unknown topic %q", topic)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topic, err)
	}
	if err := b.nc.Publish(subjectFor(b.prefix, topic), data); err != nil {
		return fmt.Errorf("nats publish %s: %w", topic, err)
	}
	return nil
}

// Ingest subscribes to every event subject under the prefix and forwards
// each message to dest. Returns an unsubscribe func.
func (b *Bus) Ingest(ctx context.Context, dest broadcast.Publisher) (func(), error) {
	wildcard := b.prefix + ".>"
	sub, err := b.nc.Subscribe(wildcard, func(msg *nats.Msg) {
		topic, ok := topicFromSubject(b.prefix, msg.Subject)
		if !ok {
			b.log.Warn("ignoring message on unknown subject", "subject", msg.Subject)
			return
		}
		b.log.Debug("event received", "topic", topic, "bytes", len(msg.Data))
		dest.Publish(ctx, topic, json.RawMessage(msg.Data))
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %s: %w", wildcard, err)
	}
	b.log.Info("event ingest started", "subject", wildcard)
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			b.log.Warn("nats unsubscribe failed", "error", err)
		}
	}, nil
}

// Connected reports whether the underlying connection is currently up.
func (b *Bus) Connected() bool {
	return b.nc.IsConnected()
}

// Close drains the connection, letting in-flight handlers finish.
func (b *Bus) Close() {
	if err := b.nc.Drain(); err != nil {
		b.log.Warn("nats drain failed", "error", err)
		b.nc.Close()
	}
}

// subjectFor maps a broadcast topic onto its NATS subject.
func subjectFor(prefix, topic string) string {
	return prefix + "." + topic
}

// topicFromSubject reverses subjectFor. The suffix must be a single token
// naming a registered topic; anything else is rejected.
func topicFromSubject(prefix, subject string) (string, bool) {
	topic, ok := strings.CutPrefix(subject, prefix+".")
	if !ok || strings.Contains(topic, ".") || !event.IsValid(topic) {
		return "", false
	}
	return topic, true
}
