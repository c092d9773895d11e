// Package invalidation turns a stream of domain event notifications into a
// minimal, priority-ordered set of cache refresh operations. It debounces
// bursts per resource key, bounds the deferral with a hard deadline, and
// expands batch groups so related keys refresh as one unit.
package invalidation

import (
	"sort"
	"strings"
	"time"
)

// Priority controls the edge behavior of a rule: high fires on the leading
// edge of a burst, medium and low fire on the trailing edge only.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

// String returns the configuration name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	default:
		return "medium"
	}
}

// Defaults applied when a rule omits a field.
const (
	DefaultDebounce = 500 * time.Millisecond
	DefaultMaxWait  = 2 * time.Second
)

// Rule configures how invalidation requests for one resource key are
// scheduled.
type Rule struct {
	Key        string        // canonical resource key, see KeyFor
	Debounce   time.Duration // quiet period before a trailing refresh
	MaxWait    time.Duration // hard ceiling on total deferral
	Priority   Priority
	BatchGroup []string // keys invalidated together with Key
}

// normalized returns the rule with defaults filled in. MaxWait is clamped so
// the ceiling never undercuts the debounce window.
func (r Rule) normalized() Rule {
	if r.Debounce <= 0 {
		r.Debounce = DefaultDebounce
	}
	if r.MaxWait <= 0 {
		r.MaxWait = DefaultMaxWait
	}
	if r.MaxWait < r.Debounce {
		r.MaxWait = r.Debounce
	}
	return r
}

// KeyFor joins ordered key segments into a canonical resource key.
func KeyFor(parts ...string) string {
	return strings.Join(parts, "/")
}

// groups is the precomputed batch-group table: a union-find over every
// Key↔BatchGroup edge, collapsed once at construction so no grouping work
// happens per event.
type groups struct {
	unitOf  map[string]string   // key → unit id (root member)
	members map[string][]string // unit id → sorted member keys
}

func buildGroups(rules []Rule) *groups {
	parent := make(map[string]string)

	var find func(string) string
	find = func(k string) string {
		p, ok := parent[k]
		if !ok {
			parent[k] = k
			return k
		}
		if p == k {
			return k
		}
		root := find(p)
		parent[k] = root
		return root
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		// Deterministic root: lexicographically smallest key wins.
		if rb < ra {
			ra, rb = rb, ra
		}
		parent[rb] = ra
	}

	for _, r := range rules {
		find(r.Key)
		for _, other := range r.BatchGroup {
			union(r.Key, other)
		}
	}

	g := &groups{
		unitOf:  make(map[string]string, len(parent)),
		members: make(map[string][]string),
	}
	for k := range parent {
		root := find(k)
		g.unitOf[k] = root
		g.members[root] = append(g.members[root], k)
	}
	for _, m := range g.members {
		sort.Strings(m)
	}
	return g
}

// unit returns the pending-unit id for key; ungrouped keys are their own unit.
func (g *groups) unit(key string) string {
	if u, ok := g.unitOf[key]; ok {
		return u
	}
	return key
}

// membersOf returns every key belonging to unit.
func (g *groups) membersOf(unit string) []string {
	if m, ok := g.members[unit]; ok {
		return m
	}
	return []string{unit}
}
