package feature

import (
	"log/slog"
)

// Listener receives the payload emitted for a topic.
type Listener func(payload any)

// Bus is an in-process publish/subscribe bus keyed by string topic, used
// for intra-context communication between modules. Emit is synchronous and
// calls listeners in registration order. A panicking listener does not
// prevent the remaining listeners of the same emit from running.
type Bus struct {
	listeners map[string][]subscription
	nextID    int
	logger    *slog.Logger
}

type subscription struct {
	id int
	fn Listener
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{
		listeners: make(map[string][]subscription),
		logger:    slog.Default(),
	}
}

// On subscribes a listener to a topic and returns its unsubscribe func.
// Each subscription is independent, two listeners built from the same
// function literal unsubscribe separately. Calling off more than once is
// a no-op.
func (b *Bus) On(topic string, l Listener) (off func()) {
	b.nextID++
	id := b.nextID
	b.listeners[topic] = append(b.listeners[topic], subscription{id: id, fn: l})

	return func() {
		ls := b.listeners[topic]
		for i, sub := range ls {
			if sub.id == id {
				b.listeners[topic] = append(ls[:i], ls[i+1:]...)
				return
			}
		}
	}
}

// Emit calls every listener currently registered for the topic with the
// payload. Listener panics are recovered and logged so one faulty module
// cannot starve the others.
func (b *Bus) Emit(topic string, payload any) {
	for _, sub := range b.listeners[topic] {
		b.safeCall(topic, sub.fn, payload)
	}
}

func (b *Bus) safeCall(topic string, l Listener, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("event listener panicked", "topic", topic, "panic", r)
		}
	}()
	l(payload)
}

// Clear removes all listeners for all topics.
func (b *Bus) Clear() {
	b.listeners = make(map[string][]subscription)
}
