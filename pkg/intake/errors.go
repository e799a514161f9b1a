package intake

import (
	"encoding/json"
	"fmt"
)

// FieldError is a single field-level validation failure. Path is the
// dot-notation locator into the submission payload (e.g. "contact.email");
// array indices are stringified path segments.
type FieldError struct {
	Path     string         `json:"path"`
	Code     FieldErrorCode `json:"code"`
	Message  string         `json:"message"`
	Expected any            `json:"expected,omitempty"`
	Received any            `json:"received,omitempty"`
}

// NextAction is a structured hint directing a client to the specific
// corrective step that resolves an error.
type NextAction struct {
	Action   NextActionType `json:"action"`
	Field    string         `json:"field,omitempty"`
	Hint     string         `json:"hint,omitempty"`
	Accept   []string       `json:"accept,omitempty"`
	MaxBytes int64          `json:"maxBytes,omitempty"`
}

// ErrorDetail carries the error category, retry semantics, field-level
// details and suggested next actions inside an IntakeError.
type ErrorDetail struct {
	Type         ErrorType    `json:"type"`
	Retryable    bool         `json:"retryable"`
	Message      string       `json:"message,omitempty"`
	Fields       []FieldError `json:"fields,omitempty"`
	NextActions  []NextAction `json:"nextActions,omitempty"`
	RetryAfterMs int64        `json:"retryAfterMs,omitempty"`
}

// IntakeError is the envelope returned for every failure. It always carries
// the submission context (ID, state, resume token) so an agent knows which
// submission the error belongs to and how to resume it.
//
// IntakeError implements error; callers unwrap it with errors.As.
type IntakeError struct {
	SubmissionID string          `json:"submissionId"`
	State        SubmissionState `json:"state"`
	ResumeToken  string          `json:"resumeToken"`
	Detail       ErrorDetail     `json:"error"`
}

// Error implements the error interface.
func (e *IntakeError) Error() string {
	if e.Detail.Message != "" {
		return fmt.Sprintf("intake error (%s): %s", e.Detail.Type, e.Detail.Message)
	}
	return fmt.Sprintf("intake error (%s) on submission %s", e.Detail.Type, e.SubmissionID)
}

// envelope is the wire form of IntakeError; ok is always false.
type envelope struct {
	OK           bool            `json:"ok"`
	SubmissionID string          `json:"submissionId"`
	State        SubmissionState `json:"state"`
	ResumeToken  string          `json:"resumeToken"`
	Detail       ErrorDetail     `json:"error"`
}

// MarshalJSON emits the canonical error envelope with "ok": false.
func (e *IntakeError) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelope{
		OK:           false,
		SubmissionID: e.SubmissionID,
		State:        e.State,
		ResumeToken:  e.ResumeToken,
		Detail:       e.Detail,
	})
}

// UnmarshalJSON parses the canonical error envelope.
func (e *IntakeError) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	e.SubmissionID = env.SubmissionID
	e.State = env.State
	e.ResumeToken = env.ResumeToken
	e.Detail = env.Detail
	return nil
}
