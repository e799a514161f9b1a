// Package intake defines the contract types shared by every component of the
// intake protocol: the closed lifecycle/error/event enumerations, actor
// identities, identifier minting, and the fielded error envelope returned to
// callers on every failure.
package intake

// SubmissionState is a submission's lifecycle state.
// Terminal states (finalized, rejected, cancelled, expired) admit no
// outgoing transitions; terminality is derived from the transition table in
// pkg/lifecycle, never stored.
type SubmissionState string

const (
	// StateDraft is the initial state of a submission created without fields.
	StateDraft SubmissionState = "draft"
	// StateInProgress means field data is being accumulated.
	StateInProgress SubmissionState = "in_progress"
	// StateAwaitingInput means required fields are still missing.
	StateAwaitingInput SubmissionState = "awaiting_input"
	// StateAwaitingUpload means an upload was requested and not yet completed.
	StateAwaitingUpload SubmissionState = "awaiting_upload"
	// StateSubmitted means the payload passed validation and was submitted.
	StateSubmitted SubmissionState = "submitted"
	// StateNeedsReview means a human review decision is pending.
	StateNeedsReview SubmissionState = "needs_review"
	// StateApproved means a reviewer approved the submission.
	StateApproved SubmissionState = "approved"
	// StateRejected means a reviewer rejected the submission (terminal).
	StateRejected SubmissionState = "rejected"
	// StateFinalized means the submission completed delivery (terminal).
	StateFinalized SubmissionState = "finalized"
	// StateCancelled means the submission was cancelled (terminal).
	StateCancelled SubmissionState = "cancelled"
	// StateExpired means the submission's TTL elapsed (terminal).
	StateExpired SubmissionState = "expired"
)

// IsValid checks if the submission state is a member of the closed set.
func (s SubmissionState) IsValid() bool {
	switch s {
	case StateDraft,
		StateInProgress,
		StateAwaitingInput,
		StateAwaitingUpload,
		StateSubmitted,
		StateNeedsReview,
		StateApproved,
		StateRejected,
		StateFinalized,
		StateCancelled,
		StateExpired:
		return true
	default:
		return false
	}
}

// ErrorType categorizes an IntakeError. Each type carries fixed retry
// semantics (see Retryable).
type ErrorType string

const (
	// ErrorTypeMissing means only required fields are absent.
	ErrorTypeMissing ErrorType = "missing"
	// ErrorTypeInvalid means at least one supplied field failed validation.
	ErrorTypeInvalid ErrorType = "invalid"
	// ErrorTypeConflict means the operation is illegal in the current state.
	ErrorTypeConflict ErrorType = "conflict"
	// ErrorTypeNeedsApproval means the submission awaits a review decision.
	ErrorTypeNeedsApproval ErrorType = "needs_approval"
	// ErrorTypeUploadPending means a requested upload has not completed.
	ErrorTypeUploadPending ErrorType = "upload_pending"
	// ErrorTypeDeliveryFailed means the downstream delivery attempt failed.
	ErrorTypeDeliveryFailed ErrorType = "delivery_failed"
	// ErrorTypeExpired means the submission's TTL elapsed.
	ErrorTypeExpired ErrorType = "expired"
	// ErrorTypeCancelled means the submission was cancelled.
	ErrorTypeCancelled ErrorType = "cancelled"
)

// IsValid checks if the error type is a member of the closed set.
func (t ErrorType) IsValid() bool {
	switch t {
	case ErrorTypeMissing,
		ErrorTypeInvalid,
		ErrorTypeConflict,
		ErrorTypeNeedsApproval,
		ErrorTypeUploadPending,
		ErrorTypeDeliveryFailed,
		ErrorTypeExpired,
		ErrorTypeCancelled:
		return true
	default:
		return false
	}
}

// Retryable reports whether a caller can reasonably retry after an error of
// this type (after fixing inputs or waiting). Conflicts and terminal-state
// errors are not retryable.
func (t ErrorType) Retryable() bool {
	switch t {
	case ErrorTypeMissing,
		ErrorTypeInvalid,
		ErrorTypeUploadPending,
		ErrorTypeNeedsApproval,
		ErrorTypeDeliveryFailed:
		return true
	default:
		return false
	}
}

// EventType identifies an audit event kind. The delivery.* and upload.*
// kinds are produced only when the corresponding collaborator is configured.
type EventType string

const (
	EventSubmissionCreated   EventType = "submission.created"
	EventFieldUpdated        EventType = "field.updated"
	EventValidationPassed    EventType = "validation.passed"
	EventValidationFailed    EventType = "validation.failed"
	EventUploadRequested     EventType = "upload.requested"
	EventUploadCompleted     EventType = "upload.completed"
	EventUploadFailed        EventType = "upload.failed"
	EventSubmissionSubmitted EventType = "submission.submitted"
	EventReviewRequested     EventType = "review.requested"
	EventReviewApproved      EventType = "review.approved"
	EventReviewRejected      EventType = "review.rejected"
	EventDeliveryAttempted   EventType = "delivery.attempted"
	EventDeliverySucceeded   EventType = "delivery.succeeded"
	EventDeliveryFailed      EventType = "delivery.failed"
	EventSubmissionFinalized EventType = "submission.finalized"
	EventSubmissionCancelled EventType = "submission.cancelled"
	EventSubmissionExpired   EventType = "submission.expired"
	EventHandoffLinkIssued   EventType = "handoff.link_issued"
	EventHandoffResumed      EventType = "handoff.resumed"
)

// IsValid checks if the event type is a member of the closed set.
func (t EventType) IsValid() bool {
	switch t {
	case EventSubmissionCreated,
		EventFieldUpdated,
		EventValidationPassed,
		EventValidationFailed,
		EventUploadRequested,
		EventUploadCompleted,
		EventUploadFailed,
		EventSubmissionSubmitted,
		EventReviewRequested,
		EventReviewApproved,
		EventReviewRejected,
		EventDeliveryAttempted,
		EventDeliverySucceeded,
		EventDeliveryFailed,
		EventSubmissionFinalized,
		EventSubmissionCancelled,
		EventSubmissionExpired,
		EventHandoffLinkIssued,
		EventHandoffResumed:
		return true
	default:
		return false
	}
}

// FieldErrorCode is the validation failure code for a single field.
type FieldErrorCode string

const (
	// FieldErrorRequired means a required field was not provided.
	FieldErrorRequired FieldErrorCode = "required"
	// FieldErrorInvalidType means the value's JSON type does not match the schema.
	FieldErrorInvalidType FieldErrorCode = "invalid_type"
	// FieldErrorInvalidFormat means a named format or regex pattern failed.
	FieldErrorInvalidFormat FieldErrorCode = "invalid_format"
	// FieldErrorInvalidValue means an enum/const or bounds constraint failed.
	FieldErrorInvalidValue FieldErrorCode = "invalid_value"
	// FieldErrorTooLong means the value exceeds maxLength.
	FieldErrorTooLong FieldErrorCode = "too_long"
	// FieldErrorTooShort means the value is under minLength.
	FieldErrorTooShort FieldErrorCode = "too_short"
	// FieldErrorFileRequired means a required upload is missing.
	FieldErrorFileRequired FieldErrorCode = "file_required"
	// FieldErrorFileTooLarge means an upload exceeds its size budget.
	FieldErrorFileTooLarge FieldErrorCode = "file_too_large"
	// FieldErrorFileWrongType means an upload's MIME type is not accepted.
	FieldErrorFileWrongType FieldErrorCode = "file_wrong_type"
	// FieldErrorCustom is the pass-through code for untranslated diagnostics.
	FieldErrorCustom FieldErrorCode = "custom"
)

// IsValid checks if the field error code is a member of the closed set.
func (c FieldErrorCode) IsValid() bool {
	switch c {
	case FieldErrorRequired,
		FieldErrorInvalidType,
		FieldErrorInvalidFormat,
		FieldErrorInvalidValue,
		FieldErrorTooLong,
		FieldErrorTooShort,
		FieldErrorFileRequired,
		FieldErrorFileTooLarge,
		FieldErrorFileWrongType,
		FieldErrorCustom:
		return true
	default:
		return false
	}
}

// NextActionType is the kind of corrective step suggested to a client.
type NextActionType string

const (
	// ActionCollectField asks the client to collect a field value.
	ActionCollectField NextActionType = "collect_field"
	// ActionRequestUpload asks the client to perform a file upload.
	ActionRequestUpload NextActionType = "request_upload"
	// ActionWaitForReview asks the client to wait for a review decision.
	ActionWaitForReview NextActionType = "wait_for_review"
	// ActionRetryDelivery asks the client to retry finalization later.
	ActionRetryDelivery NextActionType = "retry_delivery"
	// ActionCancel suggests cancelling the submission.
	ActionCancel NextActionType = "cancel"
)

// IsValid checks if the next-action type is a member of the closed set.
func (t NextActionType) IsValid() bool {
	switch t {
	case ActionCollectField,
		ActionRequestUpload,
		ActionWaitForReview,
		ActionRetryDelivery,
		ActionCancel:
		return true
	default:
		return false
	}
}

// ActorKind classifies who performed an operation.
type ActorKind string

const (
	// ActorAgent is an automated (typically LLM-driven) agent.
	ActorAgent ActorKind = "agent"
	// ActorHuman is a human user.
	ActorHuman ActorKind = "human"
	// ActorSystem is an internal process such as the TTL scheduler.
	ActorSystem ActorKind = "system"
)

// IsValid checks if the actor kind is a member of the closed set.
func (k ActorKind) IsValid() bool {
	return k == ActorAgent || k == ActorHuman || k == ActorSystem
}
