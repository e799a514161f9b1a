package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/formbridge/pkg/events"
	"github.com/codeready-toolchain/formbridge/pkg/intake"
	"github.com/codeready-toolchain/formbridge/pkg/validation"
)

var (
	agentActor = intake.Actor{Kind: intake.ActorAgent, ID: "agent-1"}
	humanActor = intake.Actor{Kind: intake.ActorHuman, ID: "reviewer-1"}
)

func contactSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"name", "email"},
		"properties": map[string]any{
			"name":  map[string]any{"type": "string"},
			"email": map[string]any{"type": "string", "format": "email"},
		},
	}
}

func openSchema() map[string]any {
	return map[string]any{"type": "object"}
}

func newTestRuntime(t *testing.T, schema map[string]any, opts ...Option) *Runtime {
	t.Helper()
	rt, err := New("contact-intake", schema, opts...)
	require.NoError(t, err)
	return rt
}

// captureEvents subscribes a wildcard listener and returns the growing
// slice of everything published.
func captureEvents(rt *Runtime) *[]events.Event {
	var captured []events.Event
	rt.Emitter().OnAny(func(e events.Event) {
		captured = append(captured, e)
	})
	return &captured
}

func eventTypes(evs []events.Event) []intake.EventType {
	types := make([]intake.EventType, len(evs))
	for i, e := range evs {
		types[i] = e.Type
	}
	return types
}

func asIntakeError(t *testing.T, err error) *intake.IntakeError {
	t.Helper()
	var intakeErr *intake.IntakeError
	require.ErrorAs(t, err, &intakeErr)
	return intakeErr
}

func TestNewRejectsMalformedSchema(t *testing.T) {
	_, err := New("broken", map[string]any{"type": "not-a-type"})
	require.Error(t, err)

	var schemaErr *validation.SchemaError
	assert.ErrorAs(t, err, &schemaErr)
}

func TestCreateSubmissionDraft(t *testing.T) {
	rt := newTestRuntime(t, contactSchema())
	captured := captureEvents(rt)

	resp, err := rt.CreateSubmission(context.Background(), agentActor, CreateOptions{})
	require.NoError(t, err)

	assert.True(t, resp.OK)
	assert.Regexp(t, `^sub_[0-9a-f]{32}$`, resp.SubmissionID)
	assert.Regexp(t, `^rt_[A-Za-z0-9_-]{43,}$`, resp.ResumeToken)
	assert.Equal(t, intake.StateDraft, resp.State)
	assert.Equal(t, contactSchema(), resp.Schema)
	assert.Empty(t, resp.MissingFields)

	require.Equal(t, []intake.EventType{intake.EventSubmissionCreated}, eventTypes(*captured))

	// Creation is published, not appended to the log
	detail, err := rt.GetSubmission(context.Background(), resp.SubmissionID)
	require.NoError(t, err)
	assert.Empty(t, detail.Events)
}

func TestHappyPathCreateWithFieldsThenSubmit(t *testing.T) {
	rt := newTestRuntime(t, contactSchema())
	captured := captureEvents(rt)

	resp, err := rt.CreateSubmission(context.Background(), agentActor, CreateOptions{
		InitialFields: map[string]any{"name": "A", "email": "a@b.co"},
	})
	require.NoError(t, err)
	assert.Equal(t, intake.StateInProgress, resp.State)
	assert.Empty(t, resp.MissingFields)

	submitted, err := rt.Submit(context.Background(), resp.SubmissionID, agentActor)
	require.NoError(t, err)
	assert.Equal(t, intake.StateSubmitted, submitted.State)
	assert.Equal(t, resp.ResumeToken, submitted.ResumeToken)

	detail, err := rt.GetSubmission(context.Background(), resp.SubmissionID)
	require.NoError(t, err)
	require.Len(t, detail.Events, 2, "log records transitions only")
	assert.Equal(t, []intake.EventType{
		intake.EventFieldUpdated,
		intake.EventSubmissionSubmitted,
	}, eventTypes(detail.Events))
	for _, event := range detail.Events {
		assert.Equal(t, resp.SubmissionID, event.SubmissionID)
	}
	assert.Equal(t, detail.State, detail.Events[len(detail.Events)-1].State)

	assert.Equal(t, []intake.EventType{
		intake.EventSubmissionCreated,
		intake.EventFieldUpdated,
		intake.EventValidationPassed,
		intake.EventSubmissionSubmitted,
	}, eventTypes(*captured))
}

func TestCreateSubmissionEchoesMissingFields(t *testing.T) {
	rt := newTestRuntime(t, contactSchema())

	resp, err := rt.CreateSubmission(context.Background(), agentActor, CreateOptions{
		InitialFields: map[string]any{"name": "A"},
	})
	require.NoError(t, err)
	assert.Equal(t, intake.StateInProgress, resp.State)
	assert.Equal(t, []string{"email"}, resp.MissingFields)
}

func TestIdempotentCreation(t *testing.T) {
	rt := newTestRuntime(t, contactSchema())

	first, err := rt.CreateSubmission(context.Background(), agentActor, CreateOptions{IdempotencyKey: "k1"})
	require.NoError(t, err)
	second, err := rt.CreateSubmission(context.Background(), agentActor, CreateOptions{IdempotencyKey: "k1"})
	require.NoError(t, err)

	assert.True(t, second.OK, "duplicate creation is always a success reply")
	assert.Equal(t, first.SubmissionID, second.SubmissionID)
	assert.Equal(t, first.ResumeToken, second.ResumeToken)

	third, err := rt.CreateSubmission(context.Background(), agentActor, CreateOptions{IdempotencyKey: "k2"})
	require.NoError(t, err)
	assert.NotEqual(t, first.SubmissionID, third.SubmissionID)
}

func TestIdempotentReplayReflectsCurrentState(t *testing.T) {
	rt := newTestRuntime(t, contactSchema())

	first, err := rt.CreateSubmission(context.Background(), agentActor, CreateOptions{
		IdempotencyKey: "k1",
		InitialFields:  map[string]any{"name": "A", "email": "a@b.co"},
	})
	require.NoError(t, err)
	_, err = rt.Submit(context.Background(), first.SubmissionID, agentActor)
	require.NoError(t, err)

	// The key survives past later transitions, terminality included
	_, err = rt.Cancel(context.Background(), first.SubmissionID, agentActor)
	require.NoError(t, err)

	replay, err := rt.CreateSubmission(context.Background(), agentActor, CreateOptions{IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.Equal(t, first.SubmissionID, replay.SubmissionID)
	assert.Equal(t, intake.StateCancelled, replay.State)
}

func TestGetSubmissionNotFound(t *testing.T) {
	rt := newTestRuntime(t, contactSchema())

	_, err := rt.GetSubmission(context.Background(), "sub_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitFromDraftIsConflict(t *testing.T) {
	// An open schema validates the empty payload, so the failure is the
	// illegal draft -> submitted edge, not validation.
	rt := newTestRuntime(t, openSchema())

	resp, err := rt.CreateSubmission(context.Background(), agentActor, CreateOptions{})
	require.NoError(t, err)

	_, err = rt.Submit(context.Background(), resp.SubmissionID, agentActor)
	intakeErr := asIntakeError(t, err)

	assert.Equal(t, intake.ErrorTypeConflict, intakeErr.Detail.Type)
	assert.False(t, intakeErr.Detail.Retryable)
	assert.Equal(t, intake.StateDraft, intakeErr.State)
	assert.Equal(t, resp.ResumeToken, intakeErr.ResumeToken)
	assert.Contains(t, intakeErr.Detail.Message, "invalid state transition")

	// State and log untouched
	detail, err := rt.GetSubmission(context.Background(), resp.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, intake.StateDraft, detail.State)
	assert.Empty(t, detail.Events)
}

func TestSubmitValidationFailureKeepsState(t *testing.T) {
	rt := newTestRuntime(t, contactSchema())
	captured := captureEvents(rt)

	resp, err := rt.CreateSubmission(context.Background(), agentActor, CreateOptions{
		InitialFields: map[string]any{"email": "nope"},
	})
	require.NoError(t, err)

	_, err = rt.Submit(context.Background(), resp.SubmissionID, agentActor)
	intakeErr := asIntakeError(t, err)

	assert.Equal(t, intake.ErrorTypeInvalid, intakeErr.Detail.Type)
	assert.True(t, intakeErr.Detail.Retryable)
	require.Len(t, intakeErr.Detail.Fields, 2)
	assert.Len(t, intakeErr.Detail.NextActions, 2)
	for _, action := range intakeErr.Detail.NextActions {
		assert.Equal(t, intake.ActionCollectField, action.Action)
	}

	detail, err := rt.GetSubmission(context.Background(), resp.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, intake.StateInProgress, detail.State)

	assert.Contains(t, eventTypes(*captured), intake.EventValidationFailed)
	assert.NotContains(t, eventTypes(*captured), intake.EventValidationPassed)
}

func TestUpdateFieldsMissingParksInAwaitingInput(t *testing.T) {
	rt := newTestRuntime(t, contactSchema())

	resp, err := rt.CreateSubmission(context.Background(), agentActor, CreateOptions{})
	require.NoError(t, err)

	_, err = rt.UpdateFields(context.Background(), resp.SubmissionID, agentActor, map[string]any{"name": "A"})
	intakeErr := asIntakeError(t, err)

	assert.Equal(t, intake.ErrorTypeMissing, intakeErr.Detail.Type)
	assert.True(t, intakeErr.Detail.Retryable)
	assert.Equal(t, intake.StateAwaitingInput, intakeErr.State)
	require.Len(t, intakeErr.Detail.Fields, 1)
	assert.Equal(t, "email", intakeErr.Detail.Fields[0].Path)
	assert.Equal(t, intake.FieldErrorRequired, intakeErr.Detail.Fields[0].Code)

	// Supplying the remaining field completes the loop back to in_progress
	update, err := rt.UpdateFields(context.Background(), resp.SubmissionID, agentActor, map[string]any{"email": "a@b.co"})
	require.NoError(t, err)
	assert.Equal(t, intake.StateInProgress, update.State)

	submitted, err := rt.Submit(context.Background(), resp.SubmissionID, agentActor)
	require.NoError(t, err)
	assert.Equal(t, intake.StateSubmitted, submitted.State)
}

func TestUpdateFieldsInvalidStaysInProgress(t *testing.T) {
	rt := newTestRuntime(t, contactSchema())

	resp, err := rt.CreateSubmission(context.Background(), agentActor, CreateOptions{})
	require.NoError(t, err)

	_, err = rt.UpdateFields(context.Background(), resp.SubmissionID, agentActor, map[string]any{
		"name":  "A",
		"email": "not-an-email",
	})
	intakeErr := asIntakeError(t, err)

	assert.Equal(t, intake.ErrorTypeInvalid, intakeErr.Detail.Type)
	assert.Equal(t, intake.StateInProgress, intakeErr.State)

	detail, err := rt.GetSubmission(context.Background(), resp.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, intake.StateInProgress, detail.State)
	assert.Equal(t, "A", detail.Fields["name"], "fields merge even when validation fails")
}

func TestUpdateFieldsAfterSubmitIsConflict(t *testing.T) {
	rt := newTestRuntime(t, contactSchema())

	resp, err := rt.CreateSubmission(context.Background(), agentActor, CreateOptions{
		InitialFields: map[string]any{"name": "A", "email": "a@b.co"},
	})
	require.NoError(t, err)
	_, err = rt.Submit(context.Background(), resp.SubmissionID, agentActor)
	require.NoError(t, err)

	_, err = rt.UpdateFields(context.Background(), resp.SubmissionID, agentActor, map[string]any{"name": "B"})
	intakeErr := asIntakeError(t, err)
	assert.Equal(t, intake.ErrorTypeConflict, intakeErr.Detail.Type)
	assert.False(t, intakeErr.Detail.Retryable)
}

func TestFullApprovalWorkflow(t *testing.T) {
	rt := newTestRuntime(t, contactSchema())
	ctx := context.Background()

	resp, err := rt.CreateSubmission(ctx, agentActor, CreateOptions{
		InitialFields: map[string]any{"name": "A", "email": "a@b.co"},
	})
	require.NoError(t, err)

	_, err = rt.Submit(ctx, resp.SubmissionID, agentActor)
	require.NoError(t, err)
	_, err = rt.RequestReview(ctx, resp.SubmissionID, agentActor)
	require.NoError(t, err)
	_, err = rt.Approve(ctx, resp.SubmissionID, humanActor)
	require.NoError(t, err)
	final, err := rt.Finalize(ctx, resp.SubmissionID, agentActor)
	require.NoError(t, err)
	assert.Equal(t, intake.StateFinalized, final.State)

	detail, err := rt.GetSubmission(ctx, resp.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, []intake.EventType{
		intake.EventFieldUpdated,
		intake.EventSubmissionSubmitted,
		intake.EventReviewRequested,
		intake.EventReviewApproved,
		intake.EventSubmissionFinalized,
	}, eventTypes(detail.Events))
	assert.Equal(t, humanActor, detail.Events[3].Actor, "approval actor preserved")

	// Terminal: everything is rejected from here
	_, err = rt.Cancel(ctx, resp.SubmissionID, agentActor)
	intakeErr := asIntakeError(t, err)
	assert.Equal(t, intake.ErrorTypeConflict, intakeErr.Detail.Type)
}

func TestRequireReviewChainsOnSubmit(t *testing.T) {
	rt := newTestRuntime(t, contactSchema(), WithPolicy(Policy{RequireReview: true}))
	ctx := context.Background()

	resp, err := rt.CreateSubmission(ctx, agentActor, CreateOptions{
		InitialFields: map[string]any{"name": "A", "email": "a@b.co"},
	})
	require.NoError(t, err)

	submitted, err := rt.Submit(ctx, resp.SubmissionID, agentActor)
	require.NoError(t, err)
	assert.Equal(t, intake.StateNeedsReview, submitted.State)

	// Finalize is blocked until a review decision is made
	_, err = rt.Finalize(ctx, resp.SubmissionID, agentActor)
	intakeErr := asIntakeError(t, err)
	assert.Equal(t, intake.ErrorTypeNeedsApproval, intakeErr.Detail.Type)
	assert.True(t, intakeErr.Detail.Retryable)
	require.Len(t, intakeErr.Detail.NextActions, 1)
	assert.Equal(t, intake.ActionWaitForReview, intakeErr.Detail.NextActions[0].Action)
}

func TestRejectIsTerminal(t *testing.T) {
	rt := newTestRuntime(t, contactSchema())
	ctx := context.Background()

	resp, err := rt.CreateSubmission(ctx, agentActor, CreateOptions{
		InitialFields: map[string]any{"name": "A", "email": "a@b.co"},
	})
	require.NoError(t, err)
	_, err = rt.Submit(ctx, resp.SubmissionID, agentActor)
	require.NoError(t, err)

	rejected, err := rt.Reject(ctx, resp.SubmissionID, humanActor)
	require.NoError(t, err)
	assert.Equal(t, intake.StateRejected, rejected.State)

	_, err = rt.UpdateFields(ctx, resp.SubmissionID, agentActor, map[string]any{"name": "B"})
	intakeErr := asIntakeError(t, err)
	assert.Equal(t, intake.ErrorTypeConflict, intakeErr.Detail.Type)
}

func TestCancelledSubmissionReportsCancelled(t *testing.T) {
	rt := newTestRuntime(t, contactSchema())
	ctx := context.Background()

	resp, err := rt.CreateSubmission(ctx, agentActor, CreateOptions{})
	require.NoError(t, err)
	cancelled, err := rt.Cancel(ctx, resp.SubmissionID, humanActor)
	require.NoError(t, err)
	assert.Equal(t, intake.StateCancelled, cancelled.State)

	_, err = rt.Submit(ctx, resp.SubmissionID, agentActor)
	intakeErr := asIntakeError(t, err)
	assert.Equal(t, intake.ErrorTypeCancelled, intakeErr.Detail.Type)
	assert.False(t, intakeErr.Detail.Retryable)
}

func TestExpireUsesSystemActor(t *testing.T) {
	rt := newTestRuntime(t, contactSchema())
	ctx := context.Background()

	resp, err := rt.CreateSubmission(ctx, agentActor, CreateOptions{})
	require.NoError(t, err)
	expired, err := rt.Expire(ctx, resp.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, intake.StateExpired, expired.State)

	detail, err := rt.GetSubmission(ctx, resp.SubmissionID)
	require.NoError(t, err)
	require.Len(t, detail.Events, 1)
	assert.Equal(t, intake.ActorSystem, detail.Events[0].Actor.Kind)

	_, err = rt.UpdateFields(ctx, resp.SubmissionID, agentActor, map[string]any{"name": "A"})
	intakeErr := asIntakeError(t, err)
	assert.Equal(t, intake.ErrorTypeExpired, intakeErr.Detail.Type)
	assert.False(t, intakeErr.Detail.Retryable)
}

func TestResume(t *testing.T) {
	rt := newTestRuntime(t, contactSchema())
	captured := captureEvents(rt)
	ctx := context.Background()

	resp, err := rt.CreateSubmission(ctx, agentActor, CreateOptions{
		InitialFields: map[string]any{"name": "A"},
	})
	require.NoError(t, err)

	resumed, err := rt.Resume(ctx, resp.ResumeToken, agentActor)
	require.NoError(t, err)
	assert.Equal(t, resp.SubmissionID, resumed.SubmissionID)
	assert.Equal(t, "contact-intake", resumed.IntakeID)
	assert.Equal(t, intake.StateInProgress, resumed.State)
	assert.Equal(t, map[string]any{"name": "A"}, resumed.Fields)
	assert.Equal(t, agentActor, resumed.CreatedBy)

	assert.Contains(t, eventTypes(*captured), intake.EventHandoffResumed)

	_, err = rt.Resume(ctx, "rt_unknown", agentActor)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnvelopeCarriesSubmissionContextOnEveryFailure(t *testing.T) {
	rt := newTestRuntime(t, contactSchema())
	ctx := context.Background()

	resp, err := rt.CreateSubmission(ctx, agentActor, CreateOptions{})
	require.NoError(t, err)

	_, err = rt.Approve(ctx, resp.SubmissionID, humanActor)
	intakeErr := asIntakeError(t, err)
	assert.Equal(t, resp.SubmissionID, intakeErr.SubmissionID)
	assert.Equal(t, resp.ResumeToken, intakeErr.ResumeToken)
	assert.Equal(t, intake.StateDraft, intakeErr.State)
}

func TestListenerPanicDoesNotFailOperations(t *testing.T) {
	rt := newTestRuntime(t, contactSchema())
	rt.Emitter().OnAny(func(events.Event) { panic("audit sink down") })

	resp, err := rt.CreateSubmission(context.Background(), agentActor, CreateOptions{
		InitialFields: map[string]any{"name": "A", "email": "a@b.co"},
	})
	require.NoError(t, err)

	_, err = rt.Submit(context.Background(), resp.SubmissionID, agentActor)
	require.NoError(t, err)
}

func TestSharedEmitterOption(t *testing.T) {
	shared := events.NewEmitter()
	var captured []events.Event
	shared.OnAny(func(e events.Event) { captured = append(captured, e) })

	rt := newTestRuntime(t, contactSchema(), WithEmitter(shared))
	_, err := rt.CreateSubmission(context.Background(), agentActor, CreateOptions{})
	require.NoError(t, err)

	require.Len(t, captured, 1)
	assert.Equal(t, intake.EventSubmissionCreated, captured[0].Type)
}

func TestErrNotFoundIsSentinel(t *testing.T) {
	rt := newTestRuntime(t, contactSchema())

	_, err := rt.Submit(context.Background(), "sub_missing", agentActor)
	assert.True(t, errors.Is(err, ErrNotFound))

	var intakeErr *intake.IntakeError
	assert.False(t, errors.As(err, &intakeErr),
		"unknown submissions have no envelope context")
}
