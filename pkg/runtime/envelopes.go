package runtime

import (
	"errors"
	"fmt"

	"github.com/codeready-toolchain/formbridge/pkg/intake"
	"github.com/codeready-toolchain/formbridge/pkg/lifecycle"
	"github.com/codeready-toolchain/formbridge/pkg/validation"
)

// blockedEnvelope converts an illegal transition into the taxonomy's
// envelope. The error type is selected by the state that blocked the
// operation: the two terminal causes and the two waiting states have their
// own kinds, everything else is a plain conflict. Caller must hold sub.mu.
func (r *Runtime) blockedEnvelope(sub *submission, terr *lifecycle.InvalidTransitionError) *intake.IntakeError {
	var (
		errType intake.ErrorType
		actions []intake.NextAction
	)
	switch state := sub.machine.State(); state {
	case intake.StateCancelled:
		errType = intake.ErrorTypeCancelled
	case intake.StateExpired:
		errType = intake.ErrorTypeExpired
	case intake.StateAwaitingUpload:
		errType = intake.ErrorTypeUploadPending
		actions = []intake.NextAction{{
			Action: intake.ActionRequestUpload,
			Hint:   "Complete the pending upload before retrying",
		}}
	case intake.StateNeedsReview:
		errType = intake.ErrorTypeNeedsApproval
		actions = []intake.NextAction{{
			Action: intake.ActionWaitForReview,
			Hint:   "A review decision is pending; retry after it is made",
		}}
	default:
		errType = intake.ErrorTypeConflict
	}

	return &intake.IntakeError{
		SubmissionID: sub.machine.SubmissionID(),
		State:        sub.machine.State(),
		ResumeToken:  sub.resumeToken,
		Detail: intake.ErrorDetail{
			Type:        errType,
			Retryable:   errType.Retryable(),
			Message:     terr.Error(),
			NextActions: actions,
		},
	}
}

// validationEnvelope converts a failed validation result into a missing or
// invalid envelope with one collect_field action per failing field. Caller
// must hold sub.mu.
func (r *Runtime) validationEnvelope(sub *submission, result *validation.Result) *intake.IntakeError {
	errType := intake.ErrorTypeInvalid
	message := fmt.Sprintf("Submission data failed validation: %d field error(s)", len(result.Errors))
	if len(result.InvalidFields) == 0 {
		errType = intake.ErrorTypeMissing
		message = fmt.Sprintf("Required fields are missing: %d field(s)", len(result.MissingFields))
	}

	actions := make([]intake.NextAction, 0, len(result.Errors))
	for _, fieldErr := range result.Errors {
		actions = append(actions, intake.NextAction{
			Action: intake.ActionCollectField,
			Field:  fieldErr.Path,
			Hint:   fieldErr.Message,
		})
	}

	return &intake.IntakeError{
		SubmissionID: sub.machine.SubmissionID(),
		State:        sub.machine.State(),
		ResumeToken:  sub.resumeToken,
		Detail: intake.ErrorDetail{
			Type:        errType,
			Retryable:   errType.Retryable(),
			Message:     message,
			Fields:      result.Errors,
			NextActions: actions,
		},
	}
}

// deliveryEnvelope converts a delivery collaborator failure into an
// envelope: retryable failures become delivery_failed with a retry budget,
// fatal ones become a conflict. Caller must hold sub.mu.
func (r *Runtime) deliveryEnvelope(sub *submission, err error) *intake.IntakeError {
	var delErr *DeliveryError
	if errors.As(err, &delErr) && delErr.Retryable {
		return &intake.IntakeError{
			SubmissionID: sub.machine.SubmissionID(),
			State:        sub.machine.State(),
			ResumeToken:  sub.resumeToken,
			Detail: intake.ErrorDetail{
				Type:         intake.ErrorTypeDeliveryFailed,
				Retryable:    true,
				Message:      err.Error(),
				RetryAfterMs: delErr.RetryAfter.Milliseconds(),
				NextActions: []intake.NextAction{{
					Action: intake.ActionRetryDelivery,
					Hint:   "Delivery failed transiently; retry finalization later",
				}},
			},
		}
	}

	return &intake.IntakeError{
		SubmissionID: sub.machine.SubmissionID(),
		State:        sub.machine.State(),
		ResumeToken:  sub.resumeToken,
		Detail: intake.ErrorDetail{
			Type:      intake.ErrorTypeConflict,
			Retryable: false,
			Message:   "Delivery failed permanently: " + err.Error(),
		},
	}
}
