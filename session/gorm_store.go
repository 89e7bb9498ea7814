package session

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ArnBdev/oneagent/core"
	dbpkg "github.com/ArnBdev/oneagent/internal/db"
)

// GormStore is a durable core.SessionStore backed by SQLite or Postgres.
// Timestamps are stored as native time columns and compared only against
// other absolute instants, so a session read back from storage carries the
// exact creation/expiry values it was written with.
type GormStore struct {
	db      *gorm.DB
	sliding bool
	now     func() time.Time
}

// GormOptions configures a GormStore.
type GormOptions struct {
	Sliding bool
	Clock   func() time.Time
}

// NewGormStore opens (and migrates) a session table on the given driver/DSN.
func NewGormStore(driver, dsn string, optFns ...func(o *GormOptions)) (*GormStore, error) {
	opts := GormOptions{Clock: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	gormDB, err := dbpkg.OpenGorm(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open gorm store: %w", err)
	}
	store := &GormStore{db: gormDB, sliding: opts.Sliding, now: opts.Clock}
	if err := store.db.AutoMigrate(&sessionRow{}); err != nil {
		return nil, fmt.Errorf("migrate sessions: %w", err)
	}
	return store, nil
}

// Create inserts a new session, retrying on identifier collision.
func (s *GormStore) Create(ttl time.Duration) (core.Session, error) {
	if ttl <= 0 {
		return core.Session{}, core.NewError(core.KindInvalidInput, "session.create", "non-positive ttl")
	}
	for {
		sess := core.NewSession(s.now(), ttl)
		row, err := rowFromSession(sess, ttl)
		if err != nil {
			return core.Session{}, fmt.Errorf("encode session: %w", err)
		}
		collided := false
		err = s.db.Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&sessionRow{}).Where("session_id = ?", sess.ID).Count(&count).Error; err != nil {
				return fmt.Errorf("collision check: %w", err)
			}
			if count > 0 {
				collided = true
				return nil
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("create session: %w", err)
			}
			return nil
		})
		if err != nil {
			return core.Session{}, err
		}
		if collided {
			continue
		}
		return sess, nil
	}
}

// Get returns the session, KindExpired, or KindNotFound. Expired rows are
// left for the sweep.
func (s *GormStore) Get(id string) (core.Session, error) {
	var row sessionRow
	err := s.db.Where("session_id = ?", id).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return core.Session{}, core.NewError(core.KindNotFound, "session.get", id)
		}
		return core.Session{}, fmt.Errorf("get session: %w", err)
	}
	sess, err := row.toSession()
	if err != nil {
		return core.Session{}, fmt.Errorf("decode session: %w", err)
	}
	if !sess.Active(s.now()) {
		return core.Session{}, core.NewError(core.KindExpired, "session.get", id)
	}
	return sess, nil
}

// Touch refreshes last-access, extending expiry under a sliding window.
func (s *GormStore) Touch(id string) (core.Session, error) {
	var out core.Session
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var row sessionRow
		if err := tx.Where("session_id = ?", id).Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return core.NewError(core.KindNotFound, "session.touch", id)
			}
			return fmt.Errorf("get session: %w", err)
		}
		now := s.now()
		if !now.Before(row.Expires) {
			return core.NewError(core.KindExpired, "session.touch", id)
		}
		row.LastAccess = now.UTC()
		if s.sliding {
			row.Expires = now.Add(time.Duration(row.TTLNanos))
		}
		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		sess, err := row.toSession()
		if err != nil {
			return fmt.Errorf("decode session: %w", err)
		}
		out = sess
		return nil
	})
	if err != nil {
		return core.Session{}, err
	}
	return out, nil
}

// Delete removes the session row.
func (s *GormStore) Delete(id string) error {
	res := s.db.Where("session_id = ?", id).Delete(&sessionRow{})
	if res.Error != nil {
		return fmt.Errorf("delete session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return core.NewError(core.KindNotFound, "session.delete", id)
	}
	return nil
}

// Sweep removes every expired row and returns how many were reclaimed.
func (s *GormStore) Sweep() (int, error) {
	res := s.db.Where("expires <= ?", s.now()).Delete(&sessionRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("sweep sessions: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// Close releases the underlying database handle.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	return sqlDB.Close()
}
