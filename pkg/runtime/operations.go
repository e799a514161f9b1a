package runtime

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/codeready-toolchain/formbridge/pkg/events"
	"github.com/codeready-toolchain/formbridge/pkg/intake"
	"github.com/codeready-toolchain/formbridge/pkg/lifecycle"
)

// CreateOptions are the optional parameters of CreateSubmission.
type CreateOptions struct {
	// IdempotencyKey collapses retried creations into one submission.
	// The mapping is held for the life of the submission, terminality
	// included.
	IdempotencyKey string
	// InitialFields seeds the payload; a non-empty value moves the
	// submission from draft to in_progress immediately.
	InitialFields map[string]any
	// TTL overrides the intake's default expiration budget.
	TTL time.Duration
}

// CreateSubmission mints a new submission (or returns the prior one for a
// repeated idempotency key) and publishes submission.created. Supplying
// initial fields transitions the submission to in_progress and echoes the
// required field paths still missing.
func (r *Runtime) CreateSubmission(ctx context.Context, actor intake.Actor, opts CreateOptions) (*CreateResponse, error) {
	if opts.IdempotencyKey != "" {
		r.mu.RLock()
		prior := r.submissions[r.idempotency[opts.IdempotencyKey]]
		r.mu.RUnlock()
		if prior != nil {
			return r.priorCreateResponse(prior), nil
		}
	}

	ttl := opts.TTL
	if ttl == 0 {
		ttl = r.policy.DefaultTTL
	}
	submissionID := intake.NewSubmissionID()
	sub := &submission{
		machine:     lifecycle.NewStateMachine(submissionID),
		fields:      make(map[string]any),
		resumeToken: intake.NewResumeToken(),
		createdBy:   actor,
		ttl:         ttl,
	}

	r.mu.Lock()
	if opts.IdempotencyKey != "" {
		// Re-check under the write lock; a concurrent creation with the
		// same key wins and this one is discarded.
		if prior := r.submissions[r.idempotency[opts.IdempotencyKey]]; prior != nil {
			r.mu.Unlock()
			return r.priorCreateResponse(prior), nil
		}
		r.idempotency[opts.IdempotencyKey] = submissionID
	}
	r.submissions[submissionID] = sub
	r.resumeTokens[sub.resumeToken] = submissionID
	r.mu.Unlock()

	sub.mu.Lock()
	evs := []events.Event{
		events.New(intake.EventSubmissionCreated, submissionID, actor, intake.StateDraft, map[string]any{
			"intake_id": r.intakeID,
		}),
	}
	resp := &CreateResponse{
		OK:           true,
		SubmissionID: submissionID,
		State:        intake.StateDraft,
		ResumeToken:  sub.resumeToken,
		Schema:       r.Schema(),
	}
	if len(opts.InitialFields) > 0 {
		maps.Copy(sub.fields, opts.InitialFields)
		ev, err := sub.machine.TransitionTo(intake.StateInProgress, actor)
		if err != nil {
			sub.mu.Unlock()
			return nil, err
		}
		evs = append(evs, ev)

		result, err := r.engine.Validate(sub.fields)
		if err != nil {
			sub.mu.Unlock()
			return nil, err
		}
		resp.State = sub.machine.State()
		resp.MissingFields = result.MissingFields
	}
	record := r.snapshot(sub)
	sub.mu.Unlock()

	if ttl > 0 && r.scheduler != nil {
		r.scheduler.Schedule(submissionID, ttl)
	}
	r.publish(evs...)
	r.persist(ctx, record)
	return resp, nil
}

// priorCreateResponse rebuilds the creation envelope of an already-created
// submission for an idempotent replay: same id and resume token, current
// state.
func (r *Runtime) priorCreateResponse(sub *submission) *CreateResponse {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return &CreateResponse{
		OK:           true,
		SubmissionID: sub.machine.SubmissionID(),
		State:        sub.machine.State(),
		ResumeToken:  sub.resumeToken,
		Schema:       r.Schema(),
	}
}

// GetSubmission returns the detailed view of one submission, hydrating it
// from storage when not held in memory. Unknown ids fail with ErrNotFound.
func (r *Runtime) GetSubmission(ctx context.Context, submissionID string) (*SubmissionResponse, error) {
	sub, err := r.lookup(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return r.submissionResponse(sub), nil
}

// Resume looks a submission up by its resume token and publishes
// handoff.resumed. Unknown tokens fail with ErrNotFound.
func (r *Runtime) Resume(ctx context.Context, resumeToken string, actor intake.Actor) (*SubmissionResponse, error) {
	r.mu.RLock()
	submissionID, ok := r.resumeTokens[resumeToken]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	sub, err := r.lookup(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	sub.mu.Lock()
	resp := r.submissionResponse(sub)
	resumed := events.New(intake.EventHandoffResumed, submissionID, actor, sub.machine.State(), nil)
	sub.mu.Unlock()

	r.publish(resumed)
	return resp, nil
}

// UpdateFields merges field paths into the submission payload and validates
// the full payload. A valid payload leaves the submission in in_progress;
// only-required failures park it in awaiting_input with a missing envelope;
// any other failure keeps it in in_progress with an invalid envelope.
func (r *Runtime) UpdateFields(ctx context.Context, submissionID string, actor intake.Actor, fields map[string]any) (*UpdateResponse, error) {
	sub, err := r.lookup(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	sub.mu.Lock()
	var evs []events.Event
	if sub.machine.State() != intake.StateInProgress {
		ev, terr := sub.machine.TransitionTo(intake.StateInProgress, actor)
		if terr != nil {
			envelope := r.blockedEnvelope(sub, terr.(*lifecycle.InvalidTransitionError))
			sub.mu.Unlock()
			return nil, envelope
		}
		evs = append(evs, ev)
	}
	maps.Copy(sub.fields, fields)

	result, err := r.engine.Validate(sub.fields)
	if err != nil {
		sub.mu.Unlock()
		return nil, err
	}

	var envelope *intake.IntakeError
	if !result.IsValid {
		if len(result.InvalidFields) == 0 {
			// All failures are missing required fields; park the
			// submission until they arrive.
			ev, terr := sub.machine.TransitionTo(intake.StateAwaitingInput, actor)
			if terr != nil {
				sub.mu.Unlock()
				return nil, terr
			}
			evs = append(evs, ev)
		}
		envelope = r.validationEnvelope(sub, result)
	}
	resp := &UpdateResponse{
		OK:           true,
		SubmissionID: submissionID,
		State:        sub.machine.State(),
		ResumeToken:  sub.resumeToken,
	}
	record := r.snapshot(sub)
	sub.mu.Unlock()

	r.publish(evs...)
	r.persist(ctx, record)
	if envelope != nil {
		return nil, envelope
	}
	return resp, nil
}

// Submit validates the accumulated payload and transitions the submission
// to submitted. Validation failure returns a missing or invalid envelope
// without changing state. When the intake policy requires review, a
// successful submit chains straight on to needs_review.
func (r *Runtime) Submit(ctx context.Context, submissionID string, actor intake.Actor) (*TransitionResponse, error) {
	sub, err := r.lookup(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	sub.mu.Lock()
	result, err := r.engine.Validate(sub.fields)
	if err != nil {
		sub.mu.Unlock()
		return nil, err
	}
	if !result.IsValid {
		envelope := r.validationEnvelope(sub, result)
		failed := events.New(intake.EventValidationFailed, submissionID, actor, sub.machine.State(), map[string]any{
			"missing_fields": result.MissingFields,
			"invalid_fields": result.InvalidFields,
		})
		sub.mu.Unlock()
		r.publish(failed)
		return nil, envelope
	}

	passed := events.New(intake.EventValidationPassed, submissionID, actor, sub.machine.State(), nil)
	evs := []events.Event{passed}
	ev, terr := sub.machine.TransitionTo(intake.StateSubmitted, actor)
	if terr != nil {
		envelope := r.blockedEnvelope(sub, terr.(*lifecycle.InvalidTransitionError))
		sub.mu.Unlock()
		r.publish(passed)
		return nil, envelope
	}
	evs = append(evs, ev)
	if r.policy.RequireReview {
		ev, terr := sub.machine.TransitionTo(intake.StateNeedsReview, actor)
		if terr != nil {
			sub.mu.Unlock()
			return nil, terr
		}
		evs = append(evs, ev)
	}
	resp := r.transitionResponse(sub)
	record := r.snapshot(sub)
	sub.mu.Unlock()

	r.publish(evs...)
	r.persist(ctx, record)
	return resp, nil
}

// RequestReview routes a submitted submission to human review.
func (r *Runtime) RequestReview(ctx context.Context, submissionID string, actor intake.Actor) (*TransitionResponse, error) {
	return r.transition(ctx, submissionID, intake.StateNeedsReview, actor)
}

// Approve records a reviewer's approval.
func (r *Runtime) Approve(ctx context.Context, submissionID string, actor intake.Actor) (*TransitionResponse, error) {
	return r.transition(ctx, submissionID, intake.StateApproved, actor)
}

// Reject records a reviewer's rejection; rejected is terminal.
func (r *Runtime) Reject(ctx context.Context, submissionID string, actor intake.Actor) (*TransitionResponse, error) {
	return r.transition(ctx, submissionID, intake.StateRejected, actor)
}

// Cancel cancels the submission; legal from every non-terminal state.
func (r *Runtime) Cancel(ctx context.Context, submissionID string, actor intake.Actor) (*TransitionResponse, error) {
	return r.transition(ctx, submissionID, intake.StateCancelled, actor)
}

// Expire marks the submission expired on behalf of the TTL scheduler.
func (r *Runtime) Expire(ctx context.Context, submissionID string) (*TransitionResponse, error) {
	return r.transition(ctx, submissionID, intake.StateExpired, intake.SystemActor("ttl-scheduler"))
}

// Finalize completes the submission. With a delivery collaborator
// configured the fields are handed downstream first: a retryable failure
// returns a delivery_failed envelope without changing state, a fatal
// failure a conflict envelope. Delivery happens outside the submission
// lock; the finalized transition commits only after delivery succeeded.
func (r *Runtime) Finalize(ctx context.Context, submissionID string, actor intake.Actor) (*TransitionResponse, error) {
	sub, err := r.lookup(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if r.delivery == nil {
		return r.transition(ctx, submissionID, intake.StateFinalized, actor)
	}

	sub.mu.Lock()
	if !sub.machine.CanTransitionTo(intake.StateFinalized) {
		envelope := r.blockedEnvelope(sub, &lifecycle.InvalidTransitionError{
			Current: sub.machine.State(),
			Target:  intake.StateFinalized,
		})
		sub.mu.Unlock()
		return nil, envelope
	}
	fields := maps.Clone(sub.fields)
	state := sub.machine.State()
	sub.mu.Unlock()

	r.publish(events.New(intake.EventDeliveryAttempted, submissionID, actor, state, nil))
	if err := r.delivery.Deliver(ctx, submissionID, fields); err != nil {
		sub.mu.Lock()
		envelope := r.deliveryEnvelope(sub, err)
		sub.mu.Unlock()
		r.publish(events.New(intake.EventDeliveryFailed, submissionID, actor, state, map[string]any{
			"error": err.Error(),
		}))
		return nil, envelope
	}
	r.publish(events.New(intake.EventDeliverySucceeded, submissionID, actor, state, nil))

	return r.transition(ctx, submissionID, intake.StateFinalized, actor)
}

// RequestUpload moves the submission to awaiting_upload and negotiates an
// upload URL with the upload collaborator, applying the intake policy's
// accept list and size budget for the field.
func (r *Runtime) RequestUpload(ctx context.Context, submissionID string, actor intake.Actor, field string) (*UploadResponse, error) {
	if r.uploader == nil {
		return nil, fmt.Errorf("no upload collaborator configured for intake %q", r.intakeID)
	}
	sub, err := r.lookup(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	sub.mu.Lock()
	if !sub.machine.CanTransitionTo(intake.StateAwaitingUpload) {
		envelope := r.blockedEnvelope(sub, &lifecycle.InvalidTransitionError{
			Current: sub.machine.State(),
			Target:  intake.StateAwaitingUpload,
		})
		sub.mu.Unlock()
		return nil, envelope
	}
	state := sub.machine.State()
	sub.mu.Unlock()

	policy := r.policy.Uploads[field]
	uploadURL, err := r.uploader.RequestUpload(ctx, field, policy.Accept, policy.MaxBytes)
	if err != nil {
		r.publish(events.New(intake.EventUploadFailed, submissionID, actor, state, map[string]any{
			"field": field,
			"error": err.Error(),
		}))
		return nil, fmt.Errorf("failed to request upload for field %q: %w", field, err)
	}

	sub.mu.Lock()
	ev, terr := sub.machine.TransitionTo(intake.StateAwaitingUpload, actor)
	if terr != nil {
		envelope := r.blockedEnvelope(sub, terr.(*lifecycle.InvalidTransitionError))
		sub.mu.Unlock()
		return nil, envelope
	}
	resp := &UploadResponse{
		OK:           true,
		SubmissionID: submissionID,
		State:        sub.machine.State(),
		ResumeToken:  sub.resumeToken,
		UploadURL:    uploadURL,
		NextAction: intake.NextAction{
			Action:   intake.ActionRequestUpload,
			Field:    field,
			Hint:     "Upload the file to the provided URL, then complete the upload",
			Accept:   policy.Accept,
			MaxBytes: policy.MaxBytes,
		},
	}
	requested := events.New(intake.EventUploadRequested, submissionID, actor, sub.machine.State(), map[string]any{
		"field":      field,
		"upload_url": uploadURL,
	})
	record := r.snapshot(sub)
	sub.mu.Unlock()

	r.publish(ev, requested)
	r.persist(ctx, record)
	return resp, nil
}

// CompleteUpload acknowledges a finished upload, notifies the collaborator
// and moves the submission back to in_progress.
func (r *Runtime) CompleteUpload(ctx context.Context, submissionID string, actor intake.Actor, field string) (*TransitionResponse, error) {
	if r.uploader == nil {
		return nil, fmt.Errorf("no upload collaborator configured for intake %q", r.intakeID)
	}
	sub, err := r.lookup(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	sub.mu.Lock()
	if sub.machine.State() != intake.StateAwaitingUpload {
		envelope := r.blockedEnvelope(sub, &lifecycle.InvalidTransitionError{
			Current: sub.machine.State(),
			Target:  intake.StateInProgress,
		})
		sub.mu.Unlock()
		return nil, envelope
	}
	state := sub.machine.State()
	sub.mu.Unlock()

	if err := r.uploader.NotifyCompleted(ctx, field); err != nil {
		r.publish(events.New(intake.EventUploadFailed, submissionID, actor, state, map[string]any{
			"field": field,
			"error": err.Error(),
		}))
		return nil, fmt.Errorf("failed to complete upload for field %q: %w", field, err)
	}

	sub.mu.Lock()
	ev, terr := sub.machine.TransitionTo(intake.StateInProgress, actor)
	if terr != nil {
		envelope := r.blockedEnvelope(sub, terr.(*lifecycle.InvalidTransitionError))
		sub.mu.Unlock()
		return nil, envelope
	}
	resp := r.transitionResponse(sub)
	completed := events.New(intake.EventUploadCompleted, submissionID, actor, sub.machine.State(), map[string]any{
		"field": field,
	})
	record := r.snapshot(sub)
	sub.mu.Unlock()

	r.publish(ev, completed)
	r.persist(ctx, record)
	return resp, nil
}

// transition is the shared path of the thin lifecycle operations: serialize
// on the submission, attempt the transition, convert illegality to the
// taxonomy envelope, then publish and persist.
func (r *Runtime) transition(ctx context.Context, submissionID string, target intake.SubmissionState, actor intake.Actor) (*TransitionResponse, error) {
	sub, err := r.lookup(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	sub.mu.Lock()
	ev, terr := sub.machine.TransitionTo(target, actor)
	if terr != nil {
		envelope := r.blockedEnvelope(sub, terr.(*lifecycle.InvalidTransitionError))
		sub.mu.Unlock()
		return nil, envelope
	}
	resp := r.transitionResponse(sub)
	record := r.snapshot(sub)
	sub.mu.Unlock()

	r.publish(ev)
	r.persist(ctx, record)
	return resp, nil
}

// submissionResponse builds the detailed view. Caller must hold sub.mu.
func (r *Runtime) submissionResponse(sub *submission) *SubmissionResponse {
	return &SubmissionResponse{
		OK:           true,
		SubmissionID: sub.machine.SubmissionID(),
		IntakeID:     r.intakeID,
		State:        sub.machine.State(),
		ResumeToken:  sub.resumeToken,
		Fields:       maps.Clone(sub.fields),
		Events:       sub.machine.Events(),
		CreatedBy:    sub.createdBy,
	}
}

// transitionResponse builds the lifecycle reply. Caller must hold sub.mu.
func (r *Runtime) transitionResponse(sub *submission) *TransitionResponse {
	return &TransitionResponse{
		OK:           true,
		SubmissionID: sub.machine.SubmissionID(),
		State:        sub.machine.State(),
		ResumeToken:  sub.resumeToken,
	}
}
