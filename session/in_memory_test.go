package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArnBdev/oneagent/core"
)

// Interface compliance (compile-time assertions)
var (
	_ core.SessionStore = (*InMemoryStore)(nil)
	_ core.SessionStore = (*GormStore)(nil)
)

// fakeClock is a settable time source shared by store tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock { return &fakeClock{now: start} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClockedStore(t *testing.T, sliding bool) (*InMemoryStore, *fakeClock) {
	t.Helper()
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := NewInMemoryStore(func(o *InMemoryOptions) {
		o.Clock = clock.Now
		o.Sliding = sliding
	})
	t.Cleanup(store.Close)
	return store, clock
}

func TestInMemoryCreateAndGet(t *testing.T) {
	store, _ := newClockedStore(t, false)

	sess, err := store.Create(time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.True(t, sess.Expires.After(sess.Created))

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.True(t, sess.Created.Equal(got.Created))
	assert.True(t, sess.Expires.Equal(got.Expires))
}

func TestInMemoryCreateRejectsNonPositiveTTL(t *testing.T) {
	store, _ := newClockedStore(t, false)
	_, err := store.Create(0)
	assert.True(t, core.IsKind(err, core.KindInvalidInput))
}

func TestInMemoryTTLWindow(t *testing.T) {
	store, clock := newClockedStore(t, false)
	sess, err := store.Create(time.Hour)
	require.NoError(t, err)

	clock.Advance(59 * time.Minute)
	_, err = store.Get(sess.ID)
	assert.NoError(t, err)

	// Exactly at the boundary the session is no longer active.
	clock.Advance(time.Minute)
	_, err = store.Get(sess.ID)
	assert.True(t, core.IsKind(err, core.KindExpired))

	clock.Advance(24 * time.Hour)
	_, err = store.Get(sess.ID)
	assert.True(t, core.IsKind(err, core.KindExpired))
}

func TestInMemoryExpiredDistinctFromNotFound(t *testing.T) {
	store, clock := newClockedStore(t, false)
	sess, err := store.Create(time.Minute)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = store.Get(sess.ID)
	assert.True(t, core.IsKind(err, core.KindExpired))

	_, err = store.Get("nonexistent")
	assert.True(t, core.IsKind(err, core.KindNotFound))

	// Expired entries stay until the sweep reclaims them.
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 0, store.Len())

	_, err = store.Get(sess.ID)
	assert.True(t, core.IsKind(err, core.KindNotFound))
}

func TestInMemoryDeleteImmediatelyVisible(t *testing.T) {
	store, _ := newClockedStore(t, false)
	sess, err := store.Create(time.Hour)
	require.NoError(t, err)

	require.NoError(t, store.Delete(sess.ID))
	_, err = store.Get(sess.ID)
	assert.True(t, core.IsKind(err, core.KindNotFound))

	err = store.Delete(sess.ID)
	assert.True(t, core.IsKind(err, core.KindNotFound))
}

func TestInMemoryTouchFixedWindow(t *testing.T) {
	store, clock := newClockedStore(t, false)
	sess, err := store.Create(time.Hour)
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	touched, err := store.Touch(sess.ID)
	require.NoError(t, err)
	assert.True(t, touched.LastAccess.After(sess.LastAccess))
	// Absolute expiry is never recomputed without a sliding window.
	assert.True(t, touched.Expires.Equal(sess.Expires))
}

func TestInMemoryTouchSlidingWindow(t *testing.T) {
	store, clock := newClockedStore(t, true)
	sess, err := store.Create(time.Hour)
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	touched, err := store.Touch(sess.ID)
	require.NoError(t, err)
	assert.True(t, touched.Expires.After(sess.Expires))

	// The session stays alive past the original expiry after a touch.
	clock.Advance(45 * time.Minute)
	_, err = store.Get(sess.ID)
	assert.NoError(t, err)
}

func TestInMemoryTouchExpired(t *testing.T) {
	store, clock := newClockedStore(t, false)
	sess, err := store.Create(time.Minute)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = store.Touch(sess.ID)
	assert.True(t, core.IsKind(err, core.KindExpired))
}

func TestInMemoryIdentifierUniqueness(t *testing.T) {
	store, _ := newClockedStore(t, false)
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		sess, err := store.Create(time.Hour)
		require.NoError(t, err)
		assert.False(t, seen[sess.ID], "duplicate identifier %s", sess.ID)
		seen[sess.ID] = true
	}
}

func TestInMemoryConcurrentDistinctKeys(t *testing.T) {
	store, _ := newClockedStore(t, false)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, err := store.Create(time.Hour)
			assert.NoError(t, err)
			_, err = store.Touch(sess.ID)
			assert.NoError(t, err)
			assert.NoError(t, store.Delete(sess.ID))
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, store.Len())
}
