package events

import (
	"sync"
	"time"
)

// Handler receives published events. Handlers run synchronously on the emitting
// goroutine and must not block.
type Handler func(event *Event)

// Bus fans events out to subscribers.
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[EventType]map[uint64]Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[EventType]map[uint64]Handler)}
}

// Subscribe registers handler for one event type and returns a function that removes it.
func (b *Bus) Subscribe(eventType EventType, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[uint64]Handler)
	}
	b.handlers[eventType][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[eventType], id)
	}
}

// SubscribeAll registers handler for each of types and returns a single unsubscribe.
func (b *Bus) SubscribeAll(types []EventType, handler Handler) func() {
	cancels := make([]func(), 0, len(types))
	for _, t := range types {
		cancels = append(cancels, b.Subscribe(t, handler))
	}
	return func() {
		for _, c := range cancels {
			c()
		}
	}
}

// Emit publishes an event to every subscriber of its type.
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[eventType]))
	for _, h := range b.handlers[eventType] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}

// SubscriberCount returns the number of handlers registered for eventType.
func (b *Bus) SubscriberCount(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}
