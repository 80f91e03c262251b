package bus

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// TypeText is a plain text payload.
	TypeText = "text"
	// TypeImage is an image payload carried as a data URI.
	TypeImage = "image"
	// TypeAudio is an audio payload carried as a data URI.
	TypeAudio = "audio"
	// TypeSystem is an application-generated notice.
	TypeSystem = "system"
)

var (
	// ErrMalformedEnvelope indicates a stored record that does not fit the envelope shape.
	ErrMalformedEnvelope = errors.New("bus: malformed envelope")
)

// Envelope is the immutable unit of transport recorded in the shared log.
//
// An envelope is never mutated or deleted once appended; readers filter and
// copy. The id is the sole deduplication key on the consuming side.
type Envelope struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	Type      string `json:"type"`
}

// Validate checks the fields required before an envelope may be appended.
func (e Envelope) Validate() error {
	if e.ID == "" {
		return errors.New("envelope id is required")
	}
	if e.From == "" {
		return errors.New("envelope from is required")
	}
	if e.To == "" {
		return errors.New("envelope to is required")
	}
	if err := ValidateType(e.Type); err != nil {
		return err
	}
	return nil
}

// ValidateType reports whether t is a known envelope payload type.
func ValidateType(t string) error {
	switch t {
	case TypeText, TypeImage, TypeAudio, TypeSystem:
		return nil
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformedEnvelope, t)
	}
}

// Canonicalize normalizes an identity string for equality comparison.
//
// Identities compare case-insensitively and with one optional leading "@"
// sigil stripped. Every identity comparison in the poller, materializer and
// sender goes through this single function.
func Canonicalize(identity string) string {
	key := strings.TrimSpace(identity)
	key = strings.TrimPrefix(key, "@")
	return strings.ToLower(key)
}

// Log is the shared envelope log: an append-only, unordered collection of
// envelopes visible to every instance sharing the same storage domain.
//
// The log itself makes no ordering guarantee; readers establish order from
// envelope timestamps.
type Log interface {
	// AppendEnvelope durably persists one envelope. A storage or
	// serialization failure is returned to the caller, never swallowed.
	AppendEnvelope(env Envelope) error

	// ScanEnvelopes returns all stored envelopes whose canonical recipient
	// equals key, in unspecified order. Records that no longer fit the
	// envelope shape are skipped, not fatal.
	ScanEnvelopes(key string) ([]Envelope, error)
}
