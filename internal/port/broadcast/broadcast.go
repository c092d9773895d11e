// Package broadcast defines the port for publishing domain events to
// connected real-time clients.
package broadcast

import "context"

// Publisher delivers a domain event to every connection currently subscribed
// to the matching topic. Delivery is fire-and-forget: the call must not block
// on any individual connection and returns nothing to the caller.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any)
}
