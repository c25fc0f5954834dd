// Package events is the publish/subscribe channel shared by modules that
// do not share a module graph.
//
// Delivery is synchronous, in-process and at-most-once: a publish reaches
// the subscribers registered at the moment of the call and nothing is
// buffered for late subscribers.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Name identifies an event channel, e.g. "AUTH.USER_LOGGED_IN".
type Name string

// Event is what a subscriber receives for one publish.
type Event struct {
	ID          string
	Name        Name
	Payload     any
	PublishedAt time.Time
}

type Handler func(ctx context.Context, e Event)

// Unsubscribe removes a subscription. Calling it more than once, or after
// the bus is closed, is a no-op.
type Unsubscribe func()

type Bus interface {
	Publish(ctx context.Context, name Name, payload any) int
	Subscribe(name Name, handler Handler) Unsubscribe
}

type subscription struct {
	id      string
	handler Handler
}

// LocalBus is the in-process Bus.
type LocalBus struct {
	mu     sync.RWMutex
	subs   map[Name][]subscription
	closed bool
	now    func() time.Time
}

var _ Bus = (*LocalBus)(nil)

func NewLocalBus() *LocalBus {
	return &LocalBus{
		subs: make(map[Name][]subscription),
		now:  time.Now,
	}
}

// Publish delivers payload to the current subscribers of name and returns
// how many handlers completed without panicking. A panicking subscriber
// does not stop delivery to the others.
func (b *LocalBus) Publish(ctx context.Context, name Name, payload any) int {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return 0
	}
	subs := make([]subscription, len(b.subs[name]))
	copy(subs, b.subs[name])
	b.mu.RUnlock()

	event := Event{
		ID:          uuid.New().String(),
		Name:        name,
		Payload:     payload,
		PublishedAt: b.now(),
	}

	delivered := 0
	for _, sub := range subs {
		if err := deliver(ctx, sub, event); err != nil {
			log.Error().Err(err).Str("event", string(name)).Str("subscription", sub.id).Msg("subscriber failed")
			continue
		}
		delivered++
	}
	return delivered
}

func deliver(ctx context.Context, sub subscription, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in subscriber: %v", r)
		}
	}()
	sub.handler(ctx, event)
	return nil
}

func (b *LocalBus) Subscribe(name Name, handler Handler) Unsubscribe {
	if handler == nil {
		return func() {}
	}
	id := uuid.New().String()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	b.subs[name] = append(b.subs[name], subscription{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(name, id) })
	}
}

func (b *LocalBus) remove(name Name, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[name]
	for i, sub := range subs {
		if sub.id == id {
			b.subs[name] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[name]) == 0 {
		delete(b.subs, name)
	}
}

// Subscribers returns the number of subscriptions on name.
func (b *LocalBus) Subscribers(name Name) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[name])
}

// Close drops every subscription; later publishes are no-ops.
func (b *LocalBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[Name][]subscription)
}
