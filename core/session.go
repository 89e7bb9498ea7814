package core

import (
	"time"

	"github.com/google/uuid"
)

// Session is a short-lived server-side identity context bound to a random
// identifier and a TTL. All timestamps are absolute UTC instants stored as
// native time values; they are never serialized through strings on the hot
// path and comparisons only ever happen between absolute instants.
//
// Invariant: Expires is strictly after Created. A session is active iff the
// query instant is before Expires. Expiry is absolute and is only extended
// when the owning store was configured with a sliding window.
type Session struct {
	ID              string         `json:"id"`
	Created         time.Time      `json:"created"`
	Expires         time.Time      `json:"expires"`
	LastAccess      time.Time      `json:"last_access"`
	ProtocolVersion string         `json:"protocol_version,omitempty"`
	Attributes      map[string]any `json:"attributes,omitempty"`
}

// NewSessionID generates a collision-resistant 128-bit random identifier in
// canonical hyphenated hex form.
func NewSessionID() string { return uuid.NewString() }

// NewSession creates a session starting at now with the given TTL.
func NewSession(now time.Time, ttl time.Duration) Session {
	now = now.UTC()
	return Session{
		ID:         NewSessionID(),
		Created:    now,
		Expires:    now.Add(ttl),
		LastAccess: now,
		Attributes: map[string]any{},
	}
}

// Active reports whether the session is still valid at the given instant.
func (s Session) Active(now time.Time) bool { return now.Before(s.Expires) }

// Clone returns a deep copy safe for independent mutation.
func (s Session) Clone() Session {
	clone := s
	clone.Attributes = make(map[string]any, len(s.Attributes))
	for k, v := range s.Attributes {
		clone.Attributes[k] = v
	}
	return clone
}

// SessionStore persists sessions and enforces their lifecycle. Operations on
// distinct identifiers must not block each other; operations on the same
// identifier are linearizable.
//
// Get and Touch return a KindExpired error for entries past their TTL,
// distinct from KindNotFound, and never delete implicitly: reclamation is
// the sweep's job.
type SessionStore interface {
	// Create generates a new session with a fresh random identifier,
	// retrying in the astronomically unlikely event of a collision with a
	// live identifier.
	Create(ttl time.Duration) (Session, error)
	// Get returns the session, KindExpired, or KindNotFound.
	Get(id string) (Session, error)
	// Touch updates last-access (and extends expiry when the store uses a
	// sliding window), returning the refreshed session.
	Touch(id string) (Session, error)
	// Delete removes the session. An immediately subsequent Get must report
	// KindNotFound, never a stale hit.
	Delete(id string) error
}
