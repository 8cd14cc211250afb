// Package signal provides a thread-safe, typed publish/subscribe primitive.
//
// A Signal[T] holds an ordered list of callbacks. Subscribe registers a
// callback and returns a Handle; the callback is invoked on every Trigger
// until the handle (and all its clones) is closed or collected. Dispatch is
// synchronous, runs in the caller's goroutine, and never holds the internal
// lock while a callback executes, so callbacks may freely subscribe,
// unsubscribe, or trigger the same signal without deadlocking.
package signal

import (
	"sync"
	"time"
)

// registration pairs a subscription marker with its callback. The list may
// contain expired registrations between pruning passes; that is expected
// transient garbage, not an error.
type registration[T any] struct {
	m  *marker
	fn func(T)
}

// Signal is a typed event channel. The zero value is not usable; create
// signals with New.
type Signal[T any] struct {
	mu   sync.Mutex
	regs []registration[T]

	name   string
	logger Logger
	hooks  []Hook
}

// New creates a Signal for payloads of type T.
func New[T any](opts ...Option) *Signal[T] {
	s := defaultSettings()
	for _, opt := range opts {
		opt(s)
	}
	return &Signal[T]{
		name:   s.name,
		logger: s.logger,
		hooks:  s.hooks,
	}
}

// Subscribe registers fn and returns the handle controlling the
// subscription's lifetime. fn is invoked, with the exact payload passed to
// Trigger, on every trigger that observes the subscription alive.
//
// Discarding the returned handle abandons the subscription: it is released
// by the garbage collector backstop (see Handle). Close the handle for
// deterministic unsubscription.
//
// A nil fn is a programming error and panics immediately.
func (s *Signal[T]) Subscribe(fn func(T)) *Handle {
	if fn == nil {
		panic("signal: Subscribe called with nil callback")
	}

	m := newMarker()

	s.mu.Lock()
	s.regs = append(s.regs, registration[T]{m: m, fn: fn})
	active := s.countLive()
	s.mu.Unlock()

	for _, hk := range s.hooks {
		hk.Subscribed(active)
	}

	// Housekeeping: drop expired registrations so abandoned subscriptions
	// cannot grow the list unboundedly even if Trigger is never called.
	s.Prune()

	return newHandle(m)
}

// Unsubscribe removes every registration belonging to h. It is idempotent:
// unsubscribing a closed, expired, or already-removed handle is a no-op.
// The handle itself stays valid to close afterwards.
func (s *Signal[T]) Unsubscribe(h *Handle) {
	if h == nil || h.m == nil {
		return
	}

	s.mu.Lock()
	removed := s.removeLocked(func(r registration[T]) bool { return r.m == h.m })
	active := s.countLive()
	s.mu.Unlock()

	if removed == 0 {
		return
	}
	for _, hk := range s.hooks {
		hk.Unsubscribed(active)
	}
}

// Trigger invokes every live callback with v, in subscription order.
//
// The recipient set is a snapshot taken under the lock; the lock is released
// before the first callback runs. Subscriptions added during dispatch are
// not notified by this trigger, and each snapshot entry is re-checked for
// liveness immediately before its callback runs, so an unsubscription that
// lands mid-dispatch still suppresses that call.
//
// A callback panic is recovered and logged, and dispatch continues with the
// remaining callbacks.
func (s *Signal[T]) Trigger(v T) {
	s.mu.Lock()
	snapshot := make([]registration[T], len(s.regs))
	copy(snapshot, s.regs)
	s.mu.Unlock()

	start := time.Now()
	delivered, skipped := 0, 0
	for _, r := range snapshot {
		if !r.m.alive() {
			skipped++
			continue
		}
		s.invoke(r.fn, v)
		delivered++
	}

	if len(s.hooks) == 0 {
		return
	}
	elapsed := time.Since(start)
	for _, hk := range s.hooks {
		hk.Triggered(delivered, skipped, elapsed)
	}
}

// Clear drops all registrations unconditionally. Outstanding handles become
// no-op tokens; closing them afterwards is safe and harmless.
func (s *Signal[T]) Clear() {
	s.mu.Lock()
	removed := len(s.regs)
	clearTail(s.regs, 0)
	s.regs = s.regs[:0]
	s.mu.Unlock()

	if removed == 0 {
		return
	}
	for _, hk := range s.hooks {
		hk.Cleared(removed)
	}
}

// Prune removes registrations whose last handle has been closed or
// collected. Subscribe runs a pass automatically; calling it by hand is
// optional housekeeping.
func (s *Signal[T]) Prune() {
	s.mu.Lock()
	removed := s.removeLocked(func(r registration[T]) bool { return !r.m.alive() })
	remaining := len(s.regs)
	s.mu.Unlock()

	if removed == 0 {
		return
	}
	s.logger.Debugf("signal %s: pruned %d expired registrations, %d remaining", s.name, removed, remaining)
	for _, hk := range s.hooks {
		hk.Pruned(removed, remaining)
	}
}

// Len reports the number of live subscriptions. Expired registrations that
// have not been pruned yet are not counted.
func (s *Signal[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLive()
}

// Name returns the name given via WithName, or the default.
func (s *Signal[T]) Name() string {
	return s.name
}

// removeLocked filters out registrations matching drop and returns how many
// were removed. Callers must hold s.mu. The filter is in place; Trigger
// snapshots are independent copies, so in-flight dispatch is unaffected.
func (s *Signal[T]) removeLocked(drop func(registration[T]) bool) int {
	out := s.regs[:0]
	for _, r := range s.regs {
		if drop(r) {
			continue
		}
		out = append(out, r)
	}
	removed := len(s.regs) - len(out)
	clearTail(s.regs, len(out))
	s.regs = out
	return removed
}

func (s *Signal[T]) countLive() int {
	n := 0
	for _, r := range s.regs {
		if r.m.alive() {
			n++
		}
	}
	return n
}

func (s *Signal[T]) invoke(fn func(T), v T) {
	defer func() {
		if r := recover(); r != nil {
			// Panic isolation: one misbehaving callback must not abort
			// dispatch to the remaining callbacks.
			s.logger.Errorf("signal %s: callback panic (isolated): %v", s.name, r)
			for _, hk := range s.hooks {
				hk.HandlerPanicked(r)
			}
		}
	}()
	fn(v)
}

// clearTail zeroes the slice tail past keep so dropped callbacks and markers
// do not stay reachable through the backing array.
func clearTail[T any](regs []registration[T], keep int) {
	for i := keep; i < len(regs); i++ {
		regs[i] = registration[T]{}
	}
}
