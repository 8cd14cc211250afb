package signal

import "time"

// Hook receives lifecycle notifications from a Signal. Hooks are how
// observability layers (metrics, tracing) attach without the core importing
// them. All methods are called outside the signal's lock and must not block;
// the active/remaining counts are the live subscription count after the
// operation completed.
type Hook interface {
	// Subscribed is called after a subscription is registered.
	Subscribed(active int)

	// Unsubscribed is called after Unsubscribe removed at least one
	// registration.
	Unsubscribed(active int)

	// Cleared is called after Clear dropped removed registrations.
	Cleared(removed int)

	// Triggered is called after a dispatch pass. delivered counts callbacks
	// invoked, skipped counts snapshot entries whose subscription had
	// expired by invocation time.
	Triggered(delivered, skipped int, elapsed time.Duration)

	// Pruned is called after a pruning pass removed expired registrations.
	Pruned(removed, remaining int)

	// HandlerPanicked is called when a callback panic was recovered during
	// dispatch.
	HandlerPanicked(v any)
}

// NopHook implements Hook with no-ops. Embed it to implement only the
// notifications a hook cares about.
type NopHook struct{}

func (NopHook) Subscribed(int)                    {}
func (NopHook) Unsubscribed(int)                  {}
func (NopHook) Cleared(int)                       {}
func (NopHook) Triggered(int, int, time.Duration) {}
func (NopHook) Pruned(int, int)                   {}
func (NopHook) HandlerPanicked(any)               {}
