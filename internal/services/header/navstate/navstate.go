// Package navstate tracks the header's login redirect as the client location
// changes.
package navstate

import (
	"slices"
	"sync"

	"github.com/louisbranch/navheader/internal/services/header/menu"
)

// Bus delivers location-change notifications to subscribers.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]func(menu.Location)
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: map[uint64]func(menu.Location){}}
}

// Subscribe registers fn and returns a function that removes it. The
// returned function is safe to call more than once.
func (b *Bus) Subscribe(fn func(menu.Location)) (unsubscribe func()) {
	if b == nil || fn == nil {
		return func() {}
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish notifies every current subscriber, in subscription order.
func (b *Bus) Publish(loc menu.Location) {
	if b == nil {
		return
	}
	b.mu.RLock()
	ids := make([]uint64, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	fns := make([]func(menu.Location), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, b.subs[id])
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(loc)
	}
}

// BaseURLProvider returns the deployment base path, e.g. "/review" or "".
type BaseURLProvider interface {
	BaseURL() string
}

// StaticBaseURL is a fixed BaseURLProvider.
type StaticBaseURL string

// BaseURL returns the fixed base path.
func (s StaticBaseURL) BaseURL() string { return string(s) }

// Navigation holds the login redirect for the latest known location.
type Navigation struct {
	base        BaseURLProvider
	unsubscribe func()

	mu       sync.RWMutex
	loginURL string
}

// New subscribes a Navigation to bus. Call Close to unsubscribe.
func New(bus *Bus, base BaseURLProvider) *Navigation {
	if base == nil {
		base = StaticBaseURL("")
	}
	n := &Navigation{base: base, loginURL: menu.DefaultLoginURL}
	n.unsubscribe = bus.Subscribe(n.handleLocationChange)
	return n
}

func (n *Navigation) handleLocationChange(loc menu.Location) {
	next := menu.LoginURL(n.base.BaseURL(), loc)
	n.mu.Lock()
	n.loginURL = next
	n.mu.Unlock()
}

// LoginURL returns the current login redirect.
func (n *Navigation) LoginURL() string {
	if n == nil {
		return menu.DefaultLoginURL
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.loginURL
}

// Close stops tracking location changes.
func (n *Navigation) Close() {
	if n == nil || n.unsubscribe == nil {
		return
	}
	n.unsubscribe()
}
