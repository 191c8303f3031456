package events

import (
	"sync"
	"time"

	"github.com/jscyril/stem_studio/api"
)

// EventBus handles event distribution using channels.
// Publish never blocks, so it is safe to call from the audio goroutine.
type EventBus struct {
	subscribers map[api.EventType][]chan api.Event
	mu          sync.RWMutex
	closed      bool
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[api.EventType][]chan api.Event),
	}
}

// Subscribe returns a channel for receiving events of the specified types
func (b *EventBus) Subscribe(types ...api.EventType) <-chan api.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan api.Event, 16)
	if b.closed {
		close(ch)
		return ch
	}
	for _, eventType := range types {
		b.subscribers[eventType] = append(b.subscribers[eventType], ch)
	}
	return ch
}

// SubscribeAll returns a channel for receiving all event types
func (b *EventBus) SubscribeAll() <-chan api.Event {
	ch := b.Subscribe(api.AllEventTypes()...)
	return ch
}

// Publish broadcasts an event to all subscribers of that event type
func (b *EventBus) Publish(eventType api.EventType, payload interface{}) {
	event := api.Event{Type: eventType, Payload: payload, At: time.Now()}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers[eventType] {
		select {
		case ch <- event:
		default:
			// Channel full, skip to prevent blocking
		}
	}
}

// Unsubscribe removes a subscriber channel and closes it
func (b *EventBus) Unsubscribe(ch <-chan api.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var found chan api.Event
	for eventType, subs := range b.subscribers {
		for i, sub := range subs {
			if sub == ch {
				found = sub
				b.subscribers[eventType] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
	}
	if found != nil {
		close(found)
	}
}

// Close closes all subscriber channels
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Track closed channels to avoid closing the same channel twice
	closed := make(map[chan api.Event]bool)

	for _, subs := range b.subscribers {
		for _, ch := range subs {
			if !closed[ch] {
				close(ch)
				closed[ch] = true
			}
		}
	}
	b.subscribers = make(map[api.EventType][]chan api.Event)
	b.closed = true
}
