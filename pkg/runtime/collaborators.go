package runtime

import (
	"context"
	"time"

	"github.com/codeready-toolchain/formbridge/pkg/events"
	"github.com/codeready-toolchain/formbridge/pkg/intake"
)

// Record is the storage snapshot of one submission: metadata, accumulated
// fields, and the full event log in append order.
type Record struct {
	SubmissionID string                 `json:"submissionId"`
	IntakeID     string                 `json:"intakeId"`
	State        intake.SubmissionState `json:"state"`
	ResumeToken  string                 `json:"resumeToken"`
	Fields       map[string]any         `json:"fields"`
	CreatedBy    intake.Actor           `json:"createdBy"`
	TTLMs        int64                  `json:"ttlMs,omitempty"`
	Events       []events.Event         `json:"events"`
}

// Storage persists submission records. Implementations must preserve
// append-only event ordering. Load returns (nil, nil) for an unknown
// submission. The runtime invokes Storage around transitions, never inside
// them; Save failures are logged and do not fail the operation.
type Storage interface {
	Load(ctx context.Context, submissionID string) (*Record, error)
	Save(ctx context.Context, record *Record) error
}

// Delivery hands a finalized submission's fields to a downstream system.
// A retryable failure is reported as *DeliveryError with Retryable true;
// any other error is fatal.
type Delivery interface {
	Deliver(ctx context.Context, submissionID string, fields map[string]any) error
}

// DeliveryError is a typed delivery failure. Retryable failures surface to
// callers as a delivery_failed envelope carrying RetryAfter.
type DeliveryError struct {
	Retryable  bool
	RetryAfter time.Duration
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return "delivery failed: " + e.Err.Error()
	}
	return "delivery failed"
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Uploader negotiates file uploads for submission fields. Byte transfer
// happens entirely outside the core.
type Uploader interface {
	RequestUpload(ctx context.Context, field string, accept []string, maxBytes int64) (uploadURL string, err error)
	NotifyCompleted(ctx context.Context, field string) error
}

// Scheduler is notified of a submission's expiration budget at creation
// time and is expected to call Runtime.Expire once the TTL elapses.
type Scheduler interface {
	Schedule(submissionID string, ttl time.Duration)
}
