package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublisher_TypedSubscription(t *testing.T) {
	p := NewPublisher()
	var mu sync.Mutex
	var received []Event

	p.Subscribe(TypeRetrievalStart, func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e)
	})

	p.Publish(Event{Type: TypeRetrievalStart, Payload: RetrievalPayload{Query: "q1"}})
	p.Publish(Event{Type: TypePlanStart, Payload: PlanPayload{}})

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, received, 1)
	assert.Equal(t, TypeRetrievalStart, received[0].Type)
}

func TestPublisher_WildcardSubscription(t *testing.T) {
	p := NewPublisher()
	var count int
	var mu sync.Mutex

	p.Subscribe(wildcard, func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		count++
	})

	p.Publish(Event{Type: TypeRetrievalStart})
	p.Publish(Event{Type: TypePlanEnd})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, count)
}

func TestPublisher_PanickingSubscriberDoesNotBlockOthers(t *testing.T) {
	p := NewPublisher()
	called := false

	p.Subscribe(TypeToolCallStart, func(e Event) { panic("boom") })
	p.Subscribe(TypeToolCallStart, func(e Event) { called = true })

	assert.NotPanics(t, func() {
		p.Publish(Event{Type: TypeToolCallStart})
	})
	assert.True(t, called)
}

func TestPublisher_UnsubscribeStopsDelivery(t *testing.T) {
	p := NewPublisher()
	var count int
	var mu sync.Mutex

	unsubscribe := p.Subscribe(TypeToolCallStart, func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		count++
	})

	p.Publish(Event{Type: TypeToolCallStart})
	unsubscribe()
	p.Publish(Event{Type: TypeToolCallStart})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestEmitter_IterationBracket(t *testing.T) {
	p := NewPublisher()
	var types []Type
	p.Subscribe(wildcard, func(e Event) { types = append(types, e.Type) })

	e := NewEmitter(p, "sess-1")
	e.IterationStart(1, 5)
	e.IterationEnd(1, 5)

	assert.Equal(t, []Type{TypeIterationStart, TypeIterationEnd}, types)
}
