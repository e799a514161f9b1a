// Package lifecycle enforces the submission state machine: the fixed
// transition table, terminality, and the minting of one audit event per
// committed transition.
package lifecycle

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/codeready-toolchain/formbridge/pkg/events"
	"github.com/codeready-toolchain/formbridge/pkg/intake"
)

// transitions is the adjacency table: source state to the set of legal
// target states. Terminal states map to the empty set; terminality is
// derived from the table, never stored.
var transitions = map[intake.SubmissionState]map[intake.SubmissionState]bool{
	intake.StateDraft: {
		intake.StateInProgress: true,
		intake.StateCancelled:  true,
		intake.StateExpired:    true,
	},
	intake.StateInProgress: {
		intake.StateAwaitingInput:  true,
		intake.StateAwaitingUpload: true,
		intake.StateSubmitted:      true,
		intake.StateCancelled:      true,
		intake.StateExpired:        true,
	},
	intake.StateAwaitingInput: {
		intake.StateInProgress: true,
		intake.StateCancelled:  true,
		intake.StateExpired:    true,
	},
	intake.StateAwaitingUpload: {
		intake.StateInProgress: true,
		intake.StateCancelled:  true,
		intake.StateExpired:    true,
	},
	intake.StateSubmitted: {
		intake.StateNeedsReview: true,
		intake.StateFinalized:   true,
		intake.StateRejected:    true,
		intake.StateCancelled:   true,
		intake.StateExpired:     true,
	},
	intake.StateNeedsReview: {
		intake.StateApproved:  true,
		intake.StateRejected:  true,
		intake.StateCancelled: true,
		intake.StateExpired:   true,
	},
	intake.StateApproved: {
		intake.StateFinalized: true,
		intake.StateCancelled: true,
		intake.StateExpired:   true,
	},
	intake.StateRejected:  {},
	intake.StateFinalized: {},
	intake.StateCancelled: {},
	intake.StateExpired:   {},
}

// transitionEvents selects the event type minted when arriving at a target
// state. The three intermediate states carry no distinguished "arrived
// here" semantic and collapse to the generic field.updated kind.
var transitionEvents = map[intake.SubmissionState]intake.EventType{
	intake.StateInProgress:     intake.EventFieldUpdated,
	intake.StateAwaitingInput:  intake.EventFieldUpdated,
	intake.StateAwaitingUpload: intake.EventFieldUpdated,
	intake.StateSubmitted:      intake.EventSubmissionSubmitted,
	intake.StateNeedsReview:    intake.EventReviewRequested,
	intake.StateApproved:       intake.EventReviewApproved,
	intake.StateRejected:       intake.EventReviewRejected,
	intake.StateFinalized:      intake.EventSubmissionFinalized,
	intake.StateCancelled:      intake.EventSubmissionCancelled,
	intake.StateExpired:        intake.EventSubmissionExpired,
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to intake.SubmissionState) bool {
	return transitions[from][to]
}

// IsTerminal reports whether a state has no outgoing edges.
func IsTerminal(state intake.SubmissionState) bool {
	return len(transitions[state]) == 0
}

// AllowedTargets returns the legal targets from a state, sorted for stable
// error messages.
func AllowedTargets(state intake.SubmissionState) []intake.SubmissionState {
	targets := make([]intake.SubmissionState, 0, len(transitions[state]))
	for t := range transitions[state] {
		targets = append(targets, t)
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })
	return targets
}

// InvalidTransitionError is returned when a transition violates the table.
// The orchestrator converts it to a conflict envelope; it is never surfaced
// to external callers directly.
type InvalidTransitionError struct {
	Current intake.SubmissionState
	Target  intake.SubmissionState
}

// Error enumerates the legal targets, or names the terminal state.
func (e *InvalidTransitionError) Error() string {
	if IsTerminal(e.Current) {
		return fmt.Sprintf("invalid state transition: %q is a terminal state, no transitions are allowed", e.Current)
	}
	targets := AllowedTargets(e.Current)
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = string(t)
	}
	return fmt.Sprintf("invalid state transition: cannot transition from %q to %q; valid transitions from %q are: %s",
		e.Current, e.Target, e.Current, strings.Join(names, ", "))
}

// StateMachine holds one submission's current state and its local event
// log. Every legal transition appends exactly one event; failed transitions
// change nothing. The machine is not safe for concurrent use; callers
// serialize per submission (see pkg/runtime).
type StateMachine struct {
	submissionID string
	state        intake.SubmissionState
	events       []events.Event
}

// NewStateMachine creates a machine in the draft state.
func NewStateMachine(submissionID string) *StateMachine {
	return &StateMachine{
		submissionID: submissionID,
		state:        intake.StateDraft,
	}
}

// Restore creates a machine at a previously persisted state. The event log
// is externalized by storage; pass the persisted log to re-seed it, or nil
// for an empty one.
func Restore(submissionID string, state intake.SubmissionState, log []events.Event) (*StateMachine, error) {
	if !state.IsValid() {
		return nil, fmt.Errorf("unknown submission state %q", state)
	}
	m := &StateMachine{submissionID: submissionID, state: state}
	if len(log) > 0 {
		m.events = make([]events.Event, len(log))
		copy(m.events, log)
	}
	return m, nil
}

// SubmissionID returns the owning submission's identifier.
func (m *StateMachine) SubmissionID() string {
	return m.submissionID
}

// State returns the current state.
func (m *StateMachine) State() intake.SubmissionState {
	return m.state
}

// CanTransitionTo reports whether the target is legal from the current state.
func (m *StateMachine) CanTransitionTo(target intake.SubmissionState) bool {
	return CanTransition(m.state, target)
}

// IsTerminal reports whether the current state admits no transitions.
func (m *StateMachine) IsTerminal() bool {
	return IsTerminal(m.state)
}

// TransitionTo moves the machine to target and mints the corresponding
// event into the local log. On an illegal target it returns
// *InvalidTransitionError and leaves state and log untouched.
func (m *StateMachine) TransitionTo(target intake.SubmissionState, actor intake.Actor) (events.Event, error) {
	if !m.CanTransitionTo(target) {
		return events.Event{}, &InvalidTransitionError{Current: m.state, Target: target}
	}

	from := m.state
	m.state = target

	event := events.New(transitionEvents[target], m.submissionID, actor, target, map[string]any{
		"from_state": string(from),
		"to_state":   string(target),
	})
	m.events = append(m.events, event)
	return event, nil
}

// Events returns a defensive copy of the local event log in append order.
func (m *StateMachine) Events() []events.Event {
	out := make([]events.Event, len(m.events))
	copy(out, m.events)
	return out
}

// machineState is the serialized form; the event log is externalized
// elsewhere.
type machineState struct {
	SubmissionID string                 `json:"submissionId"`
	State        intake.SubmissionState `json:"state"`
}

// MarshalJSON serializes {submissionId, state}.
func (m *StateMachine) MarshalJSON() ([]byte, error) {
	return json.Marshal(machineState{SubmissionID: m.submissionID, State: m.state})
}

// UnmarshalJSON restores a machine from {submissionId, state}.
func (m *StateMachine) UnmarshalJSON(data []byte) error {
	var s machineState
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	restored, err := Restore(s.SubmissionID, s.State, nil)
	if err != nil {
		return err
	}
	*m = *restored
	return nil
}
