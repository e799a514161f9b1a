// Package events provides the immutable audit event record, its canonical
// JSON-Lines wire form, and the in-process emitter that fans events out to
// subscribers.
//
// Every state transition of a submission is recorded as one Event. The
// event log is append-only; ordering within a submission is append order
// (timestamps are monotonically non-decreasing, ties permitted).
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/codeready-toolchain/formbridge/pkg/intake"
)

// tsLayout is the on-wire timestamp form: ISO-8601 with an explicit UTC
// offset ("+00:00"). Parsers accept the "Z" suffix as equivalent.
const tsLayout = "2006-01-02T15:04:05.999999-07:00"

// Event is a single immutable audit record of the submission lifecycle.
type Event struct {
	EventID      string                 `json:"eventId"`
	Type         intake.EventType       `json:"type"`
	SubmissionID string                 `json:"submissionId"`
	TS           time.Time              `json:"ts"`
	Actor        intake.Actor           `json:"actor"`
	State        intake.SubmissionState `json:"state"`
	Payload      map[string]any         `json:"payload,omitempty"`
}

// New mints an event with a fresh evt_ identifier and the current UTC time.
func New(eventType intake.EventType, submissionID string, actor intake.Actor, state intake.SubmissionState, payload map[string]any) Event {
	return Event{
		EventID:      intake.NewEventID(),
		Type:         eventType,
		SubmissionID: submissionID,
		TS:           time.Now().UTC(),
		Actor:        actor,
		State:        state,
		Payload:      payload,
	}
}

// wireEvent carries the timestamp as a string for the canonical wire form.
type wireEvent struct {
	EventID      string                 `json:"eventId"`
	Type         intake.EventType       `json:"type"`
	SubmissionID string                 `json:"submissionId"`
	TS           string                 `json:"ts"`
	Actor        intake.Actor           `json:"actor"`
	State        intake.SubmissionState `json:"state"`
	Payload      map[string]any         `json:"payload,omitempty"`
}

// MarshalJSON emits the canonical camelCase wire form with the timestamp
// rendered in UTC with an explicit "+00:00" offset.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEvent{
		EventID:      e.EventID,
		Type:         e.Type,
		SubmissionID: e.SubmissionID,
		TS:           e.TS.UTC().Format(tsLayout),
		Actor:        e.Actor,
		State:        e.State,
		Payload:      e.Payload,
	})
}

// UnmarshalJSON parses the canonical wire form. Both "+00:00" and "Z"
// timestamp suffixes are accepted.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	ts, err := time.Parse(time.RFC3339Nano, w.TS)
	if err != nil {
		return fmt.Errorf("invalid event timestamp %q: %w", w.TS, err)
	}
	e.EventID = w.EventID
	e.Type = w.Type
	e.SubmissionID = w.SubmissionID
	e.TS = ts.UTC()
	e.Actor = w.Actor
	e.State = w.State
	e.Payload = w.Payload
	return nil
}

// JSONL renders the event as one compact JSON line (no intra-object
// whitespace, no trailing newline).
func (e Event) JSONL() ([]byte, error) {
	return json.Marshal(e)
}

// ParseJSONL parses a single JSONL line into an Event.
func ParseJSONL(line []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(line, &e); err != nil {
		return Event{}, fmt.Errorf("failed to parse event line: %w", err)
	}
	return e, nil
}
