package intake

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"

	"github.com/google/uuid"
)

// Identifier prefixes. IDs are opaque to clients; only the prefix is
// load-bearing (it distinguishes identifier kinds in logs and wire traffic).
const (
	submissionIDPrefix = "sub_"
	eventIDPrefix      = "evt_"
	resumeTokenPrefix  = "rt_"
)

// resumeTokenBytes is the entropy of a resume token. 32 random bytes encode
// to 43 URL-safe base64 characters.
const resumeTokenBytes = 32

// NewSubmissionID mints a unique submission identifier: "sub_" + 32 hex.
func NewSubmissionID() string {
	return submissionIDPrefix + hexID()
}

// NewEventID mints a globally unique event identifier: "evt_" + 32 hex.
func NewEventID() string {
	return eventIDPrefix + hexID()
}

// NewResumeToken mints a cryptographically unguessable resume token:
// "rt_" + URL-safe base64 of 32 random bytes. Tokens map one-to-one to a
// submission and are never parsed by servers.
func NewResumeToken() string {
	buf := make([]byte, resumeTokenBytes)
	// crypto/rand.Read never fails on supported platforms.
	if _, err := rand.Read(buf); err != nil {
		panic("intake: crypto/rand unavailable: " + err.Error())
	}
	return resumeTokenPrefix + base64.RawURLEncoding.EncodeToString(buf)
}

func hexID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}
