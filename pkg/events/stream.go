package events

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sync"
)

// StreamWriter appends events to an io.Writer in JSON-Lines form, one
// compact event per line. It is safe for concurrent use and suitable as an
// audit sink subscribed via Emitter.OnAny.
type StreamWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStreamWriter creates a StreamWriter over w.
func NewStreamWriter(w io.Writer) *StreamWriter {
	return &StreamWriter{w: w}
}

// Append writes one event as a single JSON line.
func (s *StreamWriter) Append(event Event) error {
	line, err := event.JSONL()
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", event.EventID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append event %s: %w", event.EventID, err)
	}
	return nil
}

// Listener adapts the writer to the emitter's Listener signature. Write
// failures are deliberately dropped: stream sinks are best-effort audit
// subscribers and must never fail a transition.
func (s *StreamWriter) Listener() Listener {
	return func(event Event) {
		_ = s.Append(event)
	}
}

// ReadStream parses a JSONL event stream. Blank lines are skipped; a
// malformed line aborts with an error naming its line number.
func ReadStream(r io.Reader) ([]Event, error) {
	var out []Event
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		event, err := ParseJSONL(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		out = append(out, event)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event stream: %w", err)
	}
	return out, nil
}
