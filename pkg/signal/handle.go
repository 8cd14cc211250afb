package signal

import (
	"runtime"
	"sync/atomic"
)

// marker is the identity of one subscription. It carries no data; the only
// thing that matters is how many open handles still share it. A registration
// stays dispatchable exactly as long as the share count is positive.
type marker struct {
	refs atomic.Int64
}

func newMarker() *marker {
	m := &marker{}
	m.refs.Store(1)
	return m
}

// alive reports whether at least one handle still owns a share.
func (m *marker) alive() bool {
	return m.refs.Load() > 0
}

// retain adds a share unless the marker has already expired.
func (m *marker) retain() bool {
	for {
		n := m.refs.Load()
		if n <= 0 {
			return false
		}
		if m.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// release drops one share. The marker expires when the last share is dropped.
func (m *marker) release() {
	m.refs.Add(-1)
}

// Handle is the subscription token returned by Signal.Subscribe. The
// subscription stays active while the handle (or any Clone of it) is open;
// closing the last open handle deactivates it.
//
// Handles can only be minted by Subscribe. The zero value is a closed, no-op
// handle.
//
// A handle that is dropped without Close is released by a runtime cleanup the
// next time the garbage collector finds it unreachable, so an abandoned
// subscription cannot keep its callback registered forever. Call Close (or
// defer it) for deterministic unsubscription.
type Handle struct {
	m       *marker
	closed  atomic.Bool
	cleanup runtime.Cleanup
}

func newHandle(m *marker) *Handle {
	h := &Handle{m: m}
	// GC backstop: release the share if the handle is collected while open.
	h.cleanup = runtime.AddCleanup(h, func(m *marker) { m.release() }, m)
	return h
}

// Clone returns a new handle sharing ownership of the same subscription.
// The subscription stays active until every clone is closed. Cloning a
// closed or zero handle returns another closed handle.
func (h *Handle) Clone() *Handle {
	if h == nil || h.m == nil || h.closed.Load() {
		return closedHandle(nil)
	}
	if !h.m.retain() {
		return closedHandle(h.m)
	}
	return newHandle(h.m)
}

// Close releases this handle's share of the subscription. When the last
// share is released the subscription expires: Trigger skips it immediately
// and storage is reclaimed on the next pruning pass.
//
// Close is idempotent and safe on the zero value. It never fails; the error
// return only satisfies io.Closer.
func (h *Handle) Close() error {
	if h == nil || h.m == nil {
		return nil
	}
	if h.closed.CompareAndSwap(false, true) {
		h.cleanup.Stop()
		h.m.release()
	}
	return nil
}

// Active reports whether this handle still holds a live subscription.
func (h *Handle) Active() bool {
	return h != nil && h.m != nil && !h.closed.Load()
}

func closedHandle(m *marker) *Handle {
	h := &Handle{m: m}
	h.closed.Store(true)
	return h
}
