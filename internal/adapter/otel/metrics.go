// Package otel provides OpenTelemetry instrumentation for the gateway.
package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "schichtplan-realtime"

// Metrics holds all gateway metric instruments.
type Metrics struct {
	ConnectionsActive metric.Int64UpDownCounter
	EventsPublished   metric.Int64Counter
	MessagesDropped   metric.Int64Counter
	AuthFailures      metric.Int64Counter
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.ConnectionsActive, err = meter.Int64UpDownCounter("schichtplan.ws.connections",
		metric.WithDescription("Number of active WebSocket connections"))
	if err != nil {
		return nil, err
	}

	m.EventsPublished, err = meter.Int64Counter("schichtplan.ws.events_published",
		metric.WithDescription("Number of domain events published to subscribers"))
	if err != nil {
		return nil, err
	}

	m.MessagesDropped, err = meter.Int64Counter("schichtplan.ws.messages_dropped",
		metric.WithDescription("Number of messages dropped due to slow consumers"))
	if err != nil {
		return nil, err
	}

	m.AuthFailures, err = meter.Int64Counter("schichtplan.ws.auth_failures",
		metric.WithDescription("Number of rejected WebSocket handshakes"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
