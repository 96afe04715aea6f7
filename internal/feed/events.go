package feed

import (
	"sync"

	"github.com/arbcore/detector/internal/domain"
)

// Handlers is the set of callbacks a caller may subscribe. Any field left
// nil is simply not invoked.
type Handlers struct {
	OnConnected    func()
	OnDisconnected func(reason string)
	OnPendingTx    func(tx *domain.RawPendingTransaction)
	OnError        func(err error)
}

// bus is the event dispatcher. Handlers may be added or removed while an
// event is being dispatched; dispatch snapshots the handler list before
// iterating so a handler added/removed mid-dispatch never causes siblings
// to be skipped or double-invoked (spec §4.1, §5, §9 copy-on-dispatch).
type bus struct {
	mu       sync.Mutex
	handlers []*Handlers
}

func newBus() *bus {
	return &bus{}
}

// Subscribe registers a new handler set and returns an unsubscribe func.
func (b *bus) Subscribe(h *Handlers) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, existing := range b.handlers {
			if existing == h {
				b.handlers = append(b.handlers[:i:i], b.handlers[i+1:]...)
				return
			}
		}
	}
}

func (b *bus) snapshot() []*Handlers {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := make([]*Handlers, len(b.handlers))
	copy(snap, b.handlers)
	return snap
}

func (b *bus) emitConnected() {
	for _, h := range b.snapshot() {
		if h.OnConnected != nil {
			h.OnConnected()
		}
	}
}

func (b *bus) emitDisconnected(reason string) {
	for _, h := range b.snapshot() {
		if h.OnDisconnected != nil {
			h.OnDisconnected(reason)
		}
	}
}

func (b *bus) emitPendingTx(tx *domain.RawPendingTransaction) {
	for _, h := range b.snapshot() {
		if h.OnPendingTx != nil {
			h.OnPendingTx(tx)
		}
	}
}

func (b *bus) emitError(err error) {
	for _, h := range b.snapshot() {
		if h.OnError != nil {
			h.OnError(err)
		}
	}
}
