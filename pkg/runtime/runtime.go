// Package runtime composes the state machine, validation engine and event
// emitter into the public submission API: create, retrieve, update-field,
// submit, review, upload, cancel, expire and resume. One Runtime instance
// serves one intake; the compiled schema is shared read-only across its
// submissions.
//
// Every mutating operation is serialized per submission: the transition
// check and the subsequent mutation are atomic with respect to other
// operations on the same submission. Cross-submission operations are not
// ordered. Event emission is synchronous and happens after the submission
// lock is released, so listeners can safely call back into the runtime.
package runtime

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/codeready-toolchain/formbridge/pkg/events"
	"github.com/codeready-toolchain/formbridge/pkg/intake"
	"github.com/codeready-toolchain/formbridge/pkg/lifecycle"
	"github.com/codeready-toolchain/formbridge/pkg/validation"
)

// ErrNotFound is returned when a submission id or resume token is unknown.
// No error envelope exists for this case: there is no submission context to
// put in one.
var ErrNotFound = errors.New("submission not found")

// UploadPolicy constrains one upload field of an intake.
type UploadPolicy struct {
	Accept   []string
	MaxBytes int64
}

// Policy is the per-intake behavior configured by the embedder.
type Policy struct {
	// RequireReview routes every successful Submit on to needs_review.
	RequireReview bool
	// DefaultTTL applies to submissions created without an explicit TTL.
	// Zero means no expiration budget.
	DefaultTTL time.Duration
	// Uploads maps upload field paths to their accept/size constraints.
	Uploads map[string]UploadPolicy
}

// Runtime is the orchestrator for one intake's submissions.
type Runtime struct {
	intakeID string
	engine   *validation.Engine
	emitter  *events.Emitter
	policy   Policy

	storage   Storage
	delivery  Delivery
	uploader  Uploader
	scheduler Scheduler

	mu           sync.RWMutex
	submissions  map[string]*submission
	resumeTokens map[string]string // resume token -> submission id
	idempotency  map[string]string // idempotency key -> submission id
}

// submission is the in-memory record of one submission. mu serializes all
// operations against it.
type submission struct {
	mu          sync.Mutex
	machine     *lifecycle.StateMachine
	fields      map[string]any
	resumeToken string
	createdBy   intake.Actor
	ttl         time.Duration
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithEmitter attaches a shared emitter (e.g. one carrying audit
// subscribers). Without it the runtime creates its own.
func WithEmitter(emitter *events.Emitter) Option {
	return func(r *Runtime) { r.emitter = emitter }
}

// WithStorage attaches the storage collaborator; the runtime saves a
// snapshot after every successful mutation.
func WithStorage(storage Storage) Option {
	return func(r *Runtime) { r.storage = storage }
}

// WithDelivery attaches the delivery collaborator invoked by Finalize.
func WithDelivery(delivery Delivery) Option {
	return func(r *Runtime) { r.delivery = delivery }
}

// WithUploader attaches the upload collaborator used by RequestUpload and
// CompleteUpload.
func WithUploader(uploader Uploader) Option {
	return func(r *Runtime) { r.uploader = uploader }
}

// WithScheduler attaches the scheduler notified of TTL budgets.
func WithScheduler(scheduler Scheduler) Option {
	return func(r *Runtime) { r.scheduler = scheduler }
}

// WithPolicy sets the intake policy.
func WithPolicy(policy Policy) Option {
	return func(r *Runtime) { r.policy = policy }
}

// New creates a runtime for one intake. A malformed schema fails with
// *validation.SchemaError.
func New(intakeID string, schema map[string]any, opts ...Option) (*Runtime, error) {
	engine, err := validation.NewEngine(schema)
	if err != nil {
		return nil, err
	}

	r := &Runtime{
		intakeID:     intakeID,
		engine:       engine,
		submissions:  make(map[string]*submission),
		resumeTokens: make(map[string]string),
		idempotency:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.emitter == nil {
		r.emitter = events.NewEmitter()
	}
	return r, nil
}

// IntakeID returns the intake this runtime serves.
func (r *Runtime) IntakeID() string {
	return r.intakeID
}

// Schema returns the intake's JSON Schema.
func (r *Runtime) Schema() map[string]any {
	return r.engine.Schema()
}

// Emitter returns the runtime's emitter for subscribing audit listeners.
func (r *Runtime) Emitter() *events.Emitter {
	return r.emitter
}

// lookup finds a submission, falling back to the storage collaborator for
// submissions not held in memory.
func (r *Runtime) lookup(ctx context.Context, submissionID string) (*submission, error) {
	r.mu.RLock()
	sub, ok := r.submissions[submissionID]
	r.mu.RUnlock()
	if ok {
		return sub, nil
	}
	return r.hydrate(ctx, submissionID)
}

// hydrate restores a submission from storage into memory.
func (r *Runtime) hydrate(ctx context.Context, submissionID string) (*submission, error) {
	if r.storage == nil {
		return nil, ErrNotFound
	}
	record, err := r.storage.Load(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrNotFound
	}

	machine, err := lifecycle.Restore(record.SubmissionID, record.State, record.Events)
	if err != nil {
		return nil, err
	}
	sub := &submission{
		machine:     machine,
		fields:      maps.Clone(record.Fields),
		resumeToken: record.ResumeToken,
		createdBy:   record.CreatedBy,
		ttl:         time.Duration(record.TTLMs) * time.Millisecond,
	}
	if sub.fields == nil {
		sub.fields = make(map[string]any)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another caller may have hydrated concurrently; keep the first.
	if existing, ok := r.submissions[submissionID]; ok {
		return existing, nil
	}
	r.submissions[submissionID] = sub
	r.resumeTokens[sub.resumeToken] = submissionID
	return sub, nil
}

// persist snapshots the submission to the storage collaborator. Saves are
// best-effort and happen outside the submission lock.
func (r *Runtime) persist(ctx context.Context, record *Record) {
	if r.storage == nil || record == nil {
		return
	}
	if err := r.storage.Save(ctx, record); err != nil {
		slog.Warn("Failed to persist submission",
			"submission_id", record.SubmissionID,
			"intake_id", record.IntakeID,
			"error", err)
	}
}

// snapshot builds a storage record. Caller must hold sub.mu.
func (r *Runtime) snapshot(sub *submission) *Record {
	return &Record{
		SubmissionID: sub.machine.SubmissionID(),
		IntakeID:     r.intakeID,
		State:        sub.machine.State(),
		ResumeToken:  sub.resumeToken,
		Fields:       maps.Clone(sub.fields),
		CreatedBy:    sub.createdBy,
		TTLMs:        sub.ttl.Milliseconds(),
		Events:       sub.machine.Events(),
	}
}

// publish emits events in order after a mutation committed.
func (r *Runtime) publish(evs ...events.Event) {
	for _, ev := range evs {
		r.emitter.Emit(ev)
	}
}
