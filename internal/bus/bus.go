// Package bus provides the in-process auth event bus. It decouples the
// lifecycle manager from UI-facing consumers that react to sign-in/sign-out
// and subscription changes without being wired together directly.
package bus

import (
	"sync"

	domainauth "github.com/coverforge/authd/internal/domain/auth"
)

// Kind selects one of the two logical channels on the bus.
type Kind int

const (
	// KindAuth carries general auth-state changes (sign-in, sign-out, refresh).
	KindAuth Kind = iota
	// KindSubscription carries tier/credit changes from the billing side.
	KindSubscription
)

// Handler receives published events. Delivery is synchronous, in subscription
// order, within the same execution context as the Publish call.
type Handler func(domainauth.Event)

type subscriber struct {
	id int
	fn Handler
}

// Bus is a pure fan-out publish/subscribe channel. It holds no auth state.
// Safe for concurrent use.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[Kind][]subscriber
}

// New constructs an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[Kind][]subscriber)}
}

// Subscribe registers a handler for one kind and returns an idempotent
// unsubscribe function.
func (b *Bus) Subscribe(kind Kind, fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[kind] = append(b.subs[kind], subscriber{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[kind]
		for i, s := range list {
			if s.id == id {
				b.subs[kind] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the event to every current subscriber of the kind, in
// subscription order. No batching, no deduplication. Handlers run outside the
// bus lock so they may subscribe or unsubscribe reentrantly.
func (b *Bus) Publish(kind Kind, ev domainauth.Event) {
	b.mu.Lock()
	list := make([]subscriber, len(b.subs[kind]))
	copy(list, b.subs[kind])
	b.mu.Unlock()

	for _, s := range list {
		s.fn(ev)
	}
}

// SubscriberCount reports the number of active subscribers for a kind.
func (b *Bus) SubscriberCount(kind Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[kind])
}
