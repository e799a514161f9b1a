package events

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/formbridge/pkg/intake"
)

func TestStreamWriterAppendsOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	writer := NewStreamWriter(&buf)

	first := Event{
		EventID: "evt_1", Type: intake.EventSubmissionCreated, SubmissionID: "sub_a",
		TS: time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC), Actor: testActor(), State: intake.StateDraft,
	}
	second := Event{
		EventID: "evt_2", Type: intake.EventFieldUpdated, SubmissionID: "sub_a",
		TS: time.Date(2026, 8, 24, 9, 0, 1, 0, time.UTC), Actor: testActor(), State: intake.StateInProgress,
	}
	require.NoError(t, writer.Append(first))
	require.NoError(t, writer.Append(second))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.NotContains(t, line, ": ", "lines are compact JSON")
	}

	parsed, err := ReadStream(&buf)
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.Equal(t, first, parsed[0])
	assert.Equal(t, second, parsed[1])
}

func TestStreamWriterAsEmitterSink(t *testing.T) {
	var buf bytes.Buffer
	writer := NewStreamWriter(&buf)
	emitter := NewEmitter()
	emitter.OnAny(writer.Listener())

	emitter.Emit(testEvent(intake.EventFieldUpdated))
	emitter.Emit(testEvent(intake.EventSubmissionSubmitted))

	parsed, err := ReadStream(&buf)
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.Equal(t, intake.EventFieldUpdated, parsed[0].Type)
	assert.Equal(t, intake.EventSubmissionSubmitted, parsed[1].Type)
}

func TestReadStreamSkipsBlankLines(t *testing.T) {
	stream := `{"eventId":"evt_1","type":"field.updated","submissionId":"sub_a","ts":"2026-08-24T09:00:00+00:00","actor":{"kind":"agent","id":"a1"},"state":"in_progress"}

{"eventId":"evt_2","type":"submission.submitted","submissionId":"sub_a","ts":"2026-08-24T09:00:01Z","actor":{"kind":"agent","id":"a1"},"state":"submitted"}
`
	parsed, err := ReadStream(strings.NewReader(stream))
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.Equal(t, "evt_1", parsed[0].EventID)
	assert.Equal(t, "evt_2", parsed[1].EventID)
}

func TestReadStreamNamesMalformedLine(t *testing.T) {
	stream := `{"eventId":"evt_1","type":"field.updated","submissionId":"sub_a","ts":"2026-08-24T09:00:00Z","actor":{"kind":"agent","id":"a1"},"state":"in_progress"}
not json
`
	_, err := ReadStream(strings.NewReader(stream))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}
