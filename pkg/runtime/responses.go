package runtime

import (
	"github.com/codeready-toolchain/formbridge/pkg/events"
	"github.com/codeready-toolchain/formbridge/pkg/intake"
)

// CreateResponse is the success reply of CreateSubmission.
// MissingFields is populated when initial fields were supplied and lists
// the required field paths still needed (empty when the payload is already
// complete).
type CreateResponse struct {
	OK            bool                   `json:"ok"`
	SubmissionID  string                 `json:"submissionId"`
	State         intake.SubmissionState `json:"state"`
	ResumeToken   string                 `json:"resumeToken"`
	Schema        map[string]any         `json:"schema"`
	MissingFields []string               `json:"missingFields,omitempty"`
}

// SubmissionResponse is the detailed reply of GetSubmission and Resume.
type SubmissionResponse struct {
	OK           bool                   `json:"ok"`
	SubmissionID string                 `json:"submissionId"`
	IntakeID     string                 `json:"intakeId"`
	State        intake.SubmissionState `json:"state"`
	ResumeToken  string                 `json:"resumeToken"`
	Fields       map[string]any         `json:"fields"`
	Events       []events.Event         `json:"events"`
	CreatedBy    intake.Actor           `json:"createdBy"`
}

// UpdateResponse is the success reply of UpdateFields. Incomplete or
// invalid payloads are reported through the error envelope instead.
type UpdateResponse struct {
	OK           bool                   `json:"ok"`
	SubmissionID string                 `json:"submissionId"`
	State        intake.SubmissionState `json:"state"`
	ResumeToken  string                 `json:"resumeToken"`
}

// TransitionResponse is the success reply of the lifecycle operations
// (Submit, RequestReview, Approve, Reject, Finalize, Cancel, Expire).
type TransitionResponse struct {
	OK           bool                   `json:"ok"`
	SubmissionID string                 `json:"submissionId"`
	State        intake.SubmissionState `json:"state"`
	ResumeToken  string                 `json:"resumeToken"`
}

// UploadResponse is the success reply of RequestUpload.
type UploadResponse struct {
	OK           bool                   `json:"ok"`
	SubmissionID string                 `json:"submissionId"`
	State        intake.SubmissionState `json:"state"`
	ResumeToken  string                 `json:"resumeToken"`
	UploadURL    string                 `json:"uploadUrl"`
	NextAction   intake.NextAction      `json:"nextAction"`
}
