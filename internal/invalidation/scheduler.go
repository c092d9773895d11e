package invalidation

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// RefreshFunc is invoked once per resource key when its refresh executes.
// Failures are the cache layer's concern; the scheduler never inspects them.
type RefreshFunc func(key string)

// Scheduler drives debounced, priority-ordered cache invalidation.
//
// Per pending unit it composes two timers: a debounce timer re-armed on every
// request and a fixed deadline timer set when the unit enters Pending;
// whichever fires first executes the refresh and cancels the other. Timer
// callbacks run on their own goroutines; all bookkeeping is serialized by the
// mutex and the refresh callback is always invoked outside of it.
type Scheduler struct {
	mu       sync.Mutex
	rules    map[string]Rule // normalized, by key
	groups   *groups
	unitRule map[string]Rule // effective rule per unit
	pending  map[string]*pendingUnit
	refresh  RefreshFunc
	log      *slog.Logger
	closed   bool
}

// pendingUnit holds a scheduled-but-not-yet-executed refresh for one unit.
type pendingUnit struct {
	debounce *time.Timer
	deadline *time.Timer // nil for leading-edge units
	since    time.Time
	leading  bool
	rearmed  bool   // a request arrived inside a leading suppression window
	gen      uint64 // debounce arm generation, bumped on every extension
}

// NewScheduler builds a scheduler from the given rules. Unknown keys
// requested later fall back to a default medium-priority rule.
func NewScheduler(rules []Rule, refresh RefreshFunc, log *slog.Logger) *Scheduler {
	s := &Scheduler{
		rules:   make(map[string]Rule, len(rules)),
		groups:  buildGroups(rules),
		pending: make(map[string]*pendingUnit),
		refresh: refresh,
		log:     log,
	}
	for _, r := range rules {
		s.rules[r.Key] = r.normalized()
	}

	// Effective rule per unit: the highest-priority member wins; ties go to
	// the member with the shorter debounce.
	s.unitRule = make(map[string]Rule)
	for unit, members := range s.groups.members {
		best, ok := Rule{}, false
		for _, k := range members {
			r, has := s.rules[k]
			if !has {
				continue
			}
			if !ok || r.Priority > best.Priority ||
				(r.Priority == best.Priority && r.Debounce < best.Debounce) {
				best, ok = r, true
			}
		}
		if ok {
			s.unitRule[unit] = best
		}
	}
	return s
}

// defaultRule is applied to keys without configuration.
func defaultRule(key string) Rule {
	return Rule{Key: key}.normalized()
}

// ruleFor returns the effective rule for a unit.
func (s *Scheduler) ruleFor(unit string) Rule {
	if r, ok := s.unitRule[unit]; ok {
		return r
	}
	return defaultRule(unit)
}

// expand maps keys to their deduplicated pending units, ordered by
// descending priority so a high-priority refresh is never queued behind a
// lower-priority unit's bookkeeping.
func (s *Scheduler) expand(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	units := make([]string, 0, len(keys))
	for _, k := range keys {
		u := s.groups.unit(k)
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		units = append(units, u)
	}
	sort.SliceStable(units, func(i, j int) bool {
		return s.ruleFor(units[i]).Priority > s.ruleFor(units[j]).Priority
	})
	return units
}

// Request schedules an invalidation for each key, expanded through batch
// groups. High-priority units execute on the leading edge before Request
// returns; others enter (or extend) their debounce window.
func (s *Scheduler) Request(keys ...string) {
	if len(keys) == 0 {
		return
	}
	units := s.expand(keys)

	var immediate []string

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	now := time.Now()
	for _, unit := range units {
		rule := s.ruleFor(unit)

		if p, ok := s.pending[unit]; ok {
			if p.leading {
				// Inside a suppression window: absorb, catch up at window end.
				p.rearmed = true
				continue
			}
			// Trailing: push the quiet period out; the deadline timer still
			// bounds total deferral at MaxWait from entering Pending. The
			// extension arms a fresh generation rather than resetting the
			// timer, so a callback that already left the old timer and is
			// waiting on the mutex cannot fire at the stale deadline.
			p.gen++
			gen := p.gen
			p.debounce.Stop()
			p.debounce = time.AfterFunc(rule.Debounce, func() { s.fireDebounce(unit, p, gen) })
			continue
		}

		p := &pendingUnit{since: now}
		s.pending[unit] = p
		if rule.Priority == PriorityHigh {
			p.leading = true
			p.debounce = time.AfterFunc(rule.Debounce, func() { s.windowElapsed(unit, p) })
			immediate = append(immediate, unit)
			continue
		}
		p.debounce = time.AfterFunc(rule.Debounce, func() { s.fireDebounce(unit, p, 0) })
		p.deadline = time.AfterFunc(rule.MaxWait, func() { s.fire(unit, p) })
	}
	s.mu.Unlock()

	// immediate preserves the descending priority order of units.
	for _, unit := range immediate {
		s.execute(unit)
	}
}

// Force executes the refresh for each key immediately, canceling any pending
// timers. The refresh runs before Force returns, leaving the units Idle.
func (s *Scheduler) Force(keys ...string) {
	if len(keys) == 0 {
		return
	}
	units := s.expand(keys)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	for _, unit := range units {
		if p, ok := s.pending[unit]; ok {
			p.stopTimers()
			delete(s.pending, unit)
		}
	}
	s.mu.Unlock()

	for _, unit := range units {
		s.execute(unit)
	}
}

// Pending reports whether the unit owning key currently has a scheduled
// refresh.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[s.groups.unit(key)]
	return ok
}

// Close cancels every pending timer without executing. The scheduler accepts
// no further requests afterwards.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for unit, p := range s.pending {
		p.stopTimers()
		delete(s.pending, unit)
	}
}

// fire is the deadline timer callback. The pointer comparison discards stale
// callbacks that lost a race with cancellation or the sibling timer.
func (s *Scheduler) fire(unit string, p *pendingUnit) {
	s.mu.Lock()
	if s.closed || s.pending[unit] != p {
		s.mu.Unlock()
		return
	}
	s.finish(unit, p)
}

// fireDebounce is the debounce timer callback. Besides the staleness checks
// it verifies the arm generation: an extension that happened while this
// callback was blocked on the mutex invalidates it, and the freshly armed
// timer owns the quiet window instead.
func (s *Scheduler) fireDebounce(unit string, p *pendingUnit, gen uint64) {
	s.mu.Lock()
	if s.closed || s.pending[unit] != p || p.gen != gen {
		s.mu.Unlock()
		return
	}
	s.finish(unit, p)
}

// finish removes the unit from pending and runs its refresh. Called with the
// mutex held; releases it before executing.
func (s *Scheduler) finish(unit string, p *pendingUnit) {
	p.stopTimers()
	delete(s.pending, unit)
	waited := time.Since(p.since)
	s.mu.Unlock()

	s.log.Debug("invalidation fired", "unit", unit, "waited_ms", waited.Milliseconds())
	s.execute(unit)
}

// windowElapsed ends a leading-edge suppression window. If requests were
// absorbed during the window, one trailing catch-up refresh runs so the last
// change is never lost; the window does not restart.
func (s *Scheduler) windowElapsed(unit string, p *pendingUnit) {
	s.mu.Lock()
	if s.closed || s.pending[unit] != p {
		s.mu.Unlock()
		return
	}
	delete(s.pending, unit)
	rearmed := p.rearmed
	s.mu.Unlock()

	if rearmed {
		s.execute(unit)
	}
}

// execute refreshes every member key of the unit.
func (s *Scheduler) execute(unit string) {
	for _, key := range s.groups.membersOf(unit) {
		s.refresh(key)
	}
}

func (p *pendingUnit) stopTimers() {
	if p.debounce != nil {
		p.debounce.Stop()
	}
	if p.deadline != nil {
		p.deadline.Stop()
	}
}
