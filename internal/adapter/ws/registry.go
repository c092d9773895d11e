package ws

import "sync"

// Registry maintains the many-to-many relation between topics and
// connections. It is process-wide shared state touched by every connection's
// read loop and every broadcast, so all access goes through its mutex; the
// raw index is never handed out.
type Registry struct {
	mu     sync.RWMutex
	topics map[string]map[*Conn]struct{}
}

// NewRegistry creates an empty topic registry.
func NewRegistry() *Registry {
	return &Registry{
		topics: make(map[string]map[*Conn]struct{}),
	}
}

// Subscribe registers c for topic. Idempotent.
func (r *Registry) Subscribe(topic string, c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.topics[topic]
	if !ok {
		set = make(map[*Conn]struct{})
		r.topics[topic] = set
	}
	set[c] = struct{}{}
}

// Unsubscribe removes c from topic. Idempotent; empty topics are pruned.
func (r *Registry) Unsubscribe(topic string, c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.topics[topic]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.topics, topic)
	}
}

// RemoveAll removes c from every topic. Called exactly once per connection on
// close, whatever the close cause.
func (r *Registry) RemoveAll(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for topic, set := range r.topics {
		delete(set, c)
		if len(set) == 0 {
			delete(r.topics, topic)
		}
	}
}

// Subscribers returns a snapshot of the connections subscribed to topic at
// the time of the call.
func (r *Registry) Subscribers(topic string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.topics[topic]
	if len(set) == 0 {
		return nil
	}
	out := make([]*Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// SubscriberCount returns how many connections are subscribed to topic.
func (r *Registry) SubscriberCount(topic string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics[topic])
}

// TopicCount returns the number of topics with at least one subscriber.
func (r *Registry) TopicCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics)
}
