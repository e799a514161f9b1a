package events

import (
	"log/slog"
	"reflect"
	"sync"

	"github.com/codeready-toolchain/formbridge/pkg/intake"
)

// Listener receives emitted events. Listeners are best-effort sinks: a
// panicking listener is recovered and logged, and never prevents the
// remaining listeners from running or fails the emit.
type Listener func(Event)

// Emitter is an in-process publish/subscribe dispatcher with per-kind and
// wildcard subscriptions. Dispatch is synchronous: Emit returns after every
// listener ran. Type-specific listeners fire before wildcard listeners,
// each group in registration order.
type Emitter struct {
	mu        sync.RWMutex
	listeners map[intake.EventType][]Listener
	wildcard  []Listener
}

// NewEmitter creates an emitter with empty listener registries.
func NewEmitter() *Emitter {
	return &Emitter{
		listeners: make(map[intake.EventType][]Listener),
	}
}

// On subscribes a listener to a specific event type.
func (m *Emitter) On(eventType intake.EventType, listener Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners[eventType] = append(m.listeners[eventType], listener)
}

// OnAny subscribes a listener to all event types.
func (m *Emitter) OnAny(listener Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wildcard = append(m.wildcard, listener)
}

// Off removes the first matching subscription of listener for eventType.
// Removing a listener that is not registered is a silent no-op.
func (m *Emitter) Off(eventType intake.EventType, listener Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners[eventType] = removeListener(m.listeners[eventType], listener)
	if len(m.listeners[eventType]) == 0 {
		delete(m.listeners, eventType)
	}
}

// OffAny removes the first matching wildcard subscription of listener.
func (m *Emitter) OffAny(listener Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wildcard = removeListener(m.wildcard, listener)
}

// Emit dispatches an event synchronously: first the listeners registered
// for the event's type, then the wildcard listeners, each in registration
// order. Listener panics are swallowed so audit subscribers cannot fail an
// otherwise-legal transition; they are logged out-of-band.
func (m *Emitter) Emit(event Event) {
	m.mu.RLock()
	typed := make([]Listener, len(m.listeners[event.Type]))
	copy(typed, m.listeners[event.Type])
	wildcard := make([]Listener, len(m.wildcard))
	copy(wildcard, m.wildcard)
	m.mu.RUnlock()

	for _, l := range typed {
		safeDispatch(l, event)
	}
	for _, l := range wildcard {
		safeDispatch(l, event)
	}
}

// Clear removes all listeners.
func (m *Emitter) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = make(map[intake.EventType][]Listener)
	m.wildcard = nil
}

// ListenerCount returns the number of listeners registered for the given
// event type, or the total count (type-specific plus wildcard) when no type
// is given.
func (m *Emitter) ListenerCount(eventType ...intake.EventType) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(eventType) > 0 {
		return len(m.listeners[eventType[0]])
	}
	total := len(m.wildcard)
	for _, ls := range m.listeners {
		total += len(ls)
	}
	return total
}

func safeDispatch(l Listener, event Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Event listener panicked",
				"event_type", event.Type,
				"submission_id", event.SubmissionID,
				"panic", r)
		}
	}()
	l(event)
}

// removeListener drops the first entry whose function pointer matches
// listener. Func values are not comparable in Go; pointer identity is the
// closest equivalent and holds for any listener passed to On and Off as the
// same value.
func removeListener(ls []Listener, listener Listener) []Listener {
	target := reflect.ValueOf(listener).Pointer()
	for i, l := range ls {
		if reflect.ValueOf(l).Pointer() == target {
			return append(ls[:i:i], ls[i+1:]...)
		}
	}
	return ls
}
