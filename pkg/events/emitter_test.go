package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/formbridge/pkg/intake"
)

func testEvent(eventType intake.EventType) Event {
	return New(eventType, "sub_a", testActor(), intake.StateInProgress, nil)
}

func TestEmitterDispatchesToTypedListener(t *testing.T) {
	emitter := NewEmitter()
	calls := 0
	listener := func(Event) { calls++ }

	emitter.On(intake.EventFieldUpdated, listener)
	emitter.Emit(testEvent(intake.EventFieldUpdated))
	assert.Equal(t, 1, calls)

	// Other types do not reach the listener
	emitter.Emit(testEvent(intake.EventSubmissionSubmitted))
	assert.Equal(t, 1, calls)

	emitter.Off(intake.EventFieldUpdated, listener)
	emitter.Emit(testEvent(intake.EventFieldUpdated))
	assert.Equal(t, 1, calls, "removed listener must not fire")
}

func TestEmitterTypedBeforeWildcardInRegistrationOrder(t *testing.T) {
	emitter := NewEmitter()
	var order []string

	emitter.OnAny(func(Event) { order = append(order, "wildcard-1") })
	emitter.On(intake.EventFieldUpdated, func(Event) { order = append(order, "typed-1") })
	emitter.On(intake.EventFieldUpdated, func(Event) { order = append(order, "typed-2") })
	emitter.OnAny(func(Event) { order = append(order, "wildcard-2") })

	emitter.Emit(testEvent(intake.EventFieldUpdated))

	require.Equal(t, []string{"typed-1", "typed-2", "wildcard-1", "wildcard-2"}, order)
}

func TestEmitterSwallowsListenerPanics(t *testing.T) {
	emitter := NewEmitter()
	var reached []string

	emitter.On(intake.EventFieldUpdated, func(Event) { panic("audit sink exploded") })
	emitter.On(intake.EventFieldUpdated, func(Event) { reached = append(reached, "typed") })
	emitter.OnAny(func(Event) { reached = append(reached, "wildcard") })

	require.NotPanics(t, func() {
		emitter.Emit(testEvent(intake.EventFieldUpdated))
	})
	assert.Equal(t, []string{"typed", "wildcard"}, reached,
		"listeners after the panicking one must still run")
}

func TestEmitterOffUnknownListenerIsNoOp(t *testing.T) {
	emitter := NewEmitter()
	registered := func(Event) {}
	stranger := func(Event) {}

	emitter.On(intake.EventFieldUpdated, registered)
	emitter.Off(intake.EventFieldUpdated, stranger)
	emitter.Off(intake.EventSubmissionSubmitted, registered)
	assert.Equal(t, 1, emitter.ListenerCount(intake.EventFieldUpdated))

	emitter.OffAny(stranger)
	assert.Equal(t, 1, emitter.ListenerCount())
}

func TestEmitterListenerCount(t *testing.T) {
	emitter := NewEmitter()
	assert.Equal(t, 0, emitter.ListenerCount())

	emitter.On(intake.EventFieldUpdated, func(Event) {})
	emitter.On(intake.EventFieldUpdated, func(Event) {})
	emitter.On(intake.EventSubmissionSubmitted, func(Event) {})
	emitter.OnAny(func(Event) {})

	assert.Equal(t, 2, emitter.ListenerCount(intake.EventFieldUpdated))
	assert.Equal(t, 1, emitter.ListenerCount(intake.EventSubmissionSubmitted))
	assert.Equal(t, 0, emitter.ListenerCount(intake.EventReviewApproved))
	assert.Equal(t, 4, emitter.ListenerCount())
}

func TestEmitterClear(t *testing.T) {
	emitter := NewEmitter()
	calls := 0
	emitter.On(intake.EventFieldUpdated, func(Event) { calls++ })
	emitter.OnAny(func(Event) { calls++ })

	emitter.Clear()
	assert.Equal(t, 0, emitter.ListenerCount())

	emitter.Emit(testEvent(intake.EventFieldUpdated))
	assert.Equal(t, 0, calls)
}
