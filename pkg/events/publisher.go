package events

import (
	"sync"
)

// Event is the envelope delivered to subscribers: Type identifies which
// payload struct Payload holds.
type Event struct {
	Type    Type
	Payload any
}

// Subscriber receives events matching its subscription.
type Subscriber func(Event)

const wildcard = ""

type subEntry struct {
	id uint64
	fn Subscriber
}

// Publisher is an in-process typed publish/subscribe bus: a direct
// in-memory channel suited to a single agent process observing its own
// work, built around a typed-payload, subscription-map shape.
type Publisher struct {
	mu     sync.RWMutex
	subs   map[Type][]subEntry
	nextID uint64
}

// NewPublisher creates an empty Publisher.
func NewPublisher() *Publisher {
	return &Publisher{subs: make(map[Type][]subEntry)}
}

// Subscribe registers sub to receive events of the given type. Passing the
// empty Type subscribes to every event, regardless of type. The returned
// func removes the subscription; callers that subscribe for the lifetime of
// a single request (an SSE stream, say) must call it when the request ends.
func (p *Publisher) Subscribe(t Type, sub Subscriber) (unsubscribe func()) {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.subs[t] = append(p.subs[t], subEntry{id: id, fn: sub})
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		entries := p.subs[t]
		for i, e := range entries {
			if e.id == id {
				p.subs[t] = append(entries[:i], entries[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers evt to every subscriber registered for evt.Type, then to
// every wildcard subscriber. Delivery is synchronous and best-effort:
// Publish never blocks on a slow subscriber beyond its own call, and a
// panicking subscriber does not prevent delivery to the rest.
func (p *Publisher) Publish(evt Event) {
	p.mu.RLock()
	typed := make([]Subscriber, len(p.subs[evt.Type]))
	for i, e := range p.subs[evt.Type] {
		typed[i] = e.fn
	}
	wild := make([]Subscriber, len(p.subs[wildcard]))
	for i, e := range p.subs[wildcard] {
		wild[i] = e.fn
	}
	p.mu.RUnlock()

	for _, sub := range typed {
		p.deliver(sub, evt)
	}
	for _, sub := range wild {
		p.deliver(sub, evt)
	}
}

func (p *Publisher) deliver(sub Subscriber, evt Event) {
	defer func() {
		_ = recover()
	}()
	sub(evt)
}
