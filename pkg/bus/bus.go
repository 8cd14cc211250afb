// Package bus provides topic-addressed fan-out on top of the signal
// primitive: one Signal per topic, created on demand and dropped when its
// last subscription goes away.
package bus

import (
	"sort"
	"sync"

	"github.com/fluxorio/signal/pkg/signal"
)

// Bus routes payloads of type T to subscribers by topic. All methods are
// safe for concurrent use.
type Bus[T any] struct {
	mu     sync.RWMutex
	topics map[string]*signal.Signal[T]
	opts   []signal.Option
}

// NewBus creates an empty bus. opts are applied to every topic signal the
// bus creates; the signal's name is always the topic.
func NewBus[T any](opts ...signal.Option) *Bus[T] {
	return &Bus[T]{
		topics: make(map[string]*signal.Signal[T]),
		opts:   opts,
	}
}

// Subscribe registers fn on topic and returns the handle controlling the
// subscription. The topic's signal is created if it does not exist yet.
func (b *Bus[T]) Subscribe(topic string, fn func(T)) (*signal.Handle, error) {
	if err := ValidateTopic(topic); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, ErrNilHandler
	}

	// Registration happens under the bus lock so it cannot interleave with
	// dropIfEmpty removing the topic it lands on.
	b.mu.Lock()
	sig, ok := b.topics[topic]
	if !ok {
		sig = signal.New[T](append(b.opts[:len(b.opts):len(b.opts)], signal.WithName(topic))...)
		b.topics[topic] = sig
	}
	h := sig.Subscribe(fn)
	b.mu.Unlock()

	return h, nil
}

// Publish triggers the topic's signal with v. Publishing to a topic nobody
// subscribed to is a silent no-op: in a concurrent setting the last
// subscriber can legitimately vanish between the caller's decision to
// publish and the publish itself.
func (b *Bus[T]) Publish(topic string, v T) error {
	if err := ValidateTopic(topic); err != nil {
		return err
	}

	b.mu.RLock()
	sig := b.topics[topic]
	b.mu.RUnlock()

	if sig == nil {
		return nil
	}
	sig.Trigger(v)
	return nil
}

// Unsubscribe removes h's subscription from topic. Unknown topics and
// already-removed handles are no-ops.
func (b *Bus[T]) Unsubscribe(topic string, h *signal.Handle) {
	b.mu.RLock()
	sig := b.topics[topic]
	b.mu.RUnlock()

	if sig == nil {
		return
	}
	sig.Unsubscribe(h)
	b.dropIfEmpty(topic)
}

// Clear drops every subscription on topic and removes the topic.
func (b *Bus[T]) Clear(topic string) {
	b.mu.Lock()
	sig := b.topics[topic]
	delete(b.topics, topic)
	b.mu.Unlock()

	if sig != nil {
		sig.Clear()
	}
}

// ClearAll drops every subscription on every topic.
func (b *Bus[T]) ClearAll() {
	b.mu.Lock()
	sigs := make([]*signal.Signal[T], 0, len(b.topics))
	for _, sig := range b.topics {
		sigs = append(sigs, sig)
	}
	b.topics = make(map[string]*signal.Signal[T])
	b.mu.Unlock()

	for _, sig := range sigs {
		sig.Clear()
	}
}

// Prune removes expired subscriptions on every topic and drops topics left
// without any.
func (b *Bus[T]) Prune() {
	for _, topic := range b.Topics() {
		b.mu.RLock()
		sig := b.topics[topic]
		b.mu.RUnlock()
		if sig == nil {
			continue
		}
		sig.Prune()
		b.dropIfEmpty(topic)
	}
}

// Topics returns the topics with at least one registration, sorted.
func (b *Bus[T]) Topics() []string {
	b.mu.RLock()
	out := make([]string, 0, len(b.topics))
	for topic := range b.topics {
		out = append(out, topic)
	}
	b.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Len reports the live subscription count on topic.
func (b *Bus[T]) Len(topic string) int {
	b.mu.RLock()
	sig := b.topics[topic]
	b.mu.RUnlock()

	if sig == nil {
		return 0
	}
	return sig.Len()
}

// dropIfEmpty removes the topic's signal when no live subscriptions remain,
// so short-lived topics do not accumulate in the map.
func (b *Bus[T]) dropIfEmpty(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sig := b.topics[topic]
	if sig == nil || sig.Len() > 0 {
		return
	}
	delete(b.topics, topic)
}
