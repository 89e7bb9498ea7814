package session

import (
	"encoding/json"
	"time"

	"github.com/ArnBdev/oneagent/core"
)

// sessionRow is the persisted form of a core.Session. Time columns stay
// native time.Time so creation/expiry round-trip exactly; only the free-form
// attribute bag goes through JSON.
type sessionRow struct {
	SessionID       string    `gorm:"primaryKey;size:64"`
	Created         time.Time `gorm:"not null"`
	Expires         time.Time `gorm:"not null;index"`
	LastAccess      time.Time `gorm:"not null"`
	ProtocolVersion string    `gorm:"size:64"`
	AttributesJSON  string    `gorm:"type:text"`
	TTLNanos        int64     `gorm:"not null"`
}

func (sessionRow) TableName() string {
	return "sessions"
}

func (r sessionRow) toSession() (core.Session, error) {
	sess := core.Session{
		ID:              r.SessionID,
		Created:         r.Created,
		Expires:         r.Expires,
		LastAccess:      r.LastAccess,
		ProtocolVersion: r.ProtocolVersion,
		Attributes:      map[string]any{},
	}
	if r.AttributesJSON != "" {
		if err := json.Unmarshal([]byte(r.AttributesJSON), &sess.Attributes); err != nil {
			return core.Session{}, err
		}
	}
	return sess, nil
}

func rowFromSession(sess core.Session, ttl time.Duration) (sessionRow, error) {
	attrs, err := json.Marshal(sess.Attributes)
	if err != nil {
		return sessionRow{}, err
	}
	return sessionRow{
		SessionID:       sess.ID,
		Created:         sess.Created,
		Expires:         sess.Expires,
		LastAccess:      sess.LastAccess,
		ProtocolVersion: sess.ProtocolVersion,
		AttributesJSON:  string(attrs),
		TTLNanos:        int64(ttl),
	}, nil
}
