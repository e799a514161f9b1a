package intake

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntakeErrorImplementsError(t *testing.T) {
	err := &IntakeError{
		SubmissionID: "sub_0123",
		State:        StateInProgress,
		Detail: ErrorDetail{
			Type:    ErrorTypeInvalid,
			Message: "Submission data failed validation: 1 field error(s)",
		},
	}
	assert.Contains(t, err.Error(), "invalid")
	assert.Contains(t, err.Error(), "failed validation")

	noMessage := &IntakeError{
		SubmissionID: "sub_0123",
		Detail:       ErrorDetail{Type: ErrorTypeConflict},
	}
	assert.Contains(t, noMessage.Error(), "sub_0123")
}

func TestIntakeErrorMarshalWireShape(t *testing.T) {
	intakeErr := &IntakeError{
		SubmissionID: "sub_a",
		State:        StateAwaitingInput,
		ResumeToken:  "rt_b",
		Detail: ErrorDetail{
			Type:      ErrorTypeMissing,
			Retryable: true,
			Message:   "Required fields are missing: 1 field(s)",
			Fields: []FieldError{{
				Path:     "email",
				Code:     FieldErrorRequired,
				Message:  "Field 'email' is required but was not provided",
				Expected: "required field",
			}},
			NextActions: []NextAction{{
				Action: ActionCollectField,
				Field:  "email",
			}},
		},
	}

	raw, err := json.Marshal(intakeErr)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(raw, &wire))

	// camelCase keys and ok:false on every error envelope
	assert.Equal(t, false, wire["ok"])
	assert.Equal(t, "sub_a", wire["submissionId"])
	assert.Equal(t, "awaiting_input", wire["state"])
	assert.Equal(t, "rt_b", wire["resumeToken"])

	detail, ok := wire["error"].(map[string]any)
	require.True(t, ok, "error detail should be a nested object")
	assert.Equal(t, "missing", detail["type"])
	assert.Equal(t, true, detail["retryable"])
	assert.NotContains(t, detail, "retryAfterMs", "zero retry budget is omitted")

	fields, ok := detail["fields"].([]any)
	require.True(t, ok)
	require.Len(t, fields, 1)
	field := fields[0].(map[string]any)
	assert.Equal(t, "email", field["path"])
	assert.Equal(t, "required", field["code"])
	assert.NotContains(t, field, "received", "absent received is omitted")

	actions, ok := detail["nextActions"].([]any)
	require.True(t, ok)
	require.Len(t, actions, 1)
	assert.Equal(t, "collect_field", actions[0].(map[string]any)["action"])
}

func TestIntakeErrorRoundTrip(t *testing.T) {
	original := &IntakeError{
		SubmissionID: "sub_c",
		State:        StateSubmitted,
		ResumeToken:  "rt_d",
		Detail: ErrorDetail{
			Type:         ErrorTypeDeliveryFailed,
			Retryable:    true,
			Message:      "delivery failed: downstream unavailable",
			RetryAfterMs: 5000,
			NextActions:  []NextAction{{Action: ActionRetryDelivery}},
		},
	}

	raw, err := json.Marshal(original)
	require.NoError(t, err)

	var parsed IntakeError
	require.NoError(t, json.Unmarshal(raw, &parsed))
	assert.Equal(t, *original, parsed)
}
