package locks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casehub/accesscore/pkg/authz"
)

// fakeLockStore is an in-memory LockStore keyed by resource pair. Setting
// stealOnInsert simulates losing the unique-constraint race: the insert
// fails with ErrDuplicateLock and the configured winner appears instead.
type fakeLockStore struct {
	locks         map[string]*Lock
	nextID        int
	stealOnInsert *Lock
}

func newFakeLockStore() *fakeLockStore {
	return &fakeLockStore{locks: map[string]*Lock{}}
}

func key(resourceType, resourceID string) string { return resourceType + "/" + resourceID }

func (f *fakeLockStore) Insert(ctx context.Context, lock *Lock) error {
	k := key(lock.ResourceType, lock.ResourceID)
	if f.stealOnInsert != nil {
		winner := *f.stealOnInsert
		f.locks[k] = &winner
		f.stealOnInsert = nil
		return ErrDuplicateLock
	}
	if _, held := f.locks[k]; held {
		return ErrDuplicateLock
	}
	f.nextID++
	lock.ID = lock.ResourceType + "-" + lock.ResourceID
	stored := *lock
	f.locks[k] = &stored
	return nil
}

func (f *fakeLockStore) Get(ctx context.Context, resourceType, resourceID string) (*Lock, error) {
	lock, ok := f.locks[key(resourceType, resourceID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *lock
	return &cp, nil
}

func (f *fakeLockStore) UpdateExpiry(ctx context.Context, lockID, userID string, expiresAt time.Time) (bool, error) {
	for _, lock := range f.locks {
		if lock.ID == lockID && lock.UserID == userID {
			lock.ExpiresAt = expiresAt
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLockStore) Delete(ctx context.Context, lockID, userID string) (bool, error) {
	for k, lock := range f.locks {
		if lock.ID == lockID && lock.UserID == userID {
			delete(f.locks, k)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLockStore) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	for k, lock := range f.locks {
		if lock.UserID == userID {
			delete(f.locks, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeLockStore) DeleteAllExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for k, lock := range f.locks {
		if lock.Expired(now) {
			delete(f.locks, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeLockStore) ListForUser(ctx context.Context, userID string, now time.Time) ([]Lock, error) {
	var out []Lock
	for _, lock := range f.locks {
		if lock.UserID == userID && !lock.Expired(now) {
			out = append(out, *lock)
		}
	}
	return out, nil
}

type fakeNames map[string]string

func (f fakeNames) UserName(ctx context.Context, userID string) (string, error) {
	return f[userID], nil
}

func subject(id string) authz.Subject {
	return authz.Subject{ID: id, TenantID: "t1", Role: authz.RoleCaseManager}
}

func testManager(store *fakeLockStore, at *time.Time, opts ...ManagerOption) *Manager {
	opts = append(opts, WithClock(func() time.Time { return *at }))
	return NewManager(store, nil, opts...)
}

func TestAcquireAndRefresh(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := newFakeLockStore()
	m := testManager(store, &now)

	res, err := m.Acquire(ctx, subject("u1"), "client", "c1", 10*time.Minute)
	require.NoError(t, err)
	require.True(t, res.Acquired)
	assert.Equal(t, now.Add(10*time.Minute), res.Lock.ExpiresAt)

	// Re-acquisition by the holder refreshes the lease instead of failing.
	now = now.Add(8 * time.Minute)
	res, err = m.Acquire(ctx, subject("u1"), "client", "c1", 10*time.Minute)
	require.NoError(t, err)
	require.True(t, res.Acquired)
	assert.Equal(t, now.Add(10*time.Minute), res.Lock.ExpiresAt)
}

func TestAcquireClampsTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := newFakeLockStore()
	m := testManager(store, &now)

	res, err := m.Acquire(ctx, subject("u1"), "client", "c1", 0)
	require.NoError(t, err)
	assert.Equal(t, now.Add(DefaultTTL), res.Lock.ExpiresAt)

	res, err = m.Acquire(ctx, subject("u1"), "client", "c2", 4*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, now.Add(MaxTTL), res.Lock.ExpiresAt)
}

func TestAcquireHonorsConfiguredDefaultTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := newFakeLockStore()
	m := testManager(store, &now, WithDefaultTTL(10*time.Minute))

	res, err := m.Acquire(ctx, subject("u1"), "client", "c1", 0)
	require.NoError(t, err)
	assert.Equal(t, now.Add(10*time.Minute), res.Lock.ExpiresAt)

	lock, err := m.Extend(ctx, subject("u1"), "client", "c1", 0)
	require.NoError(t, err)
	assert.Equal(t, now.Add(10*time.Minute), lock.ExpiresAt)
}

func TestAcquireConflict(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := newFakeLockStore()
	m := testManager(store, &now, WithNameLookup(fakeNames{"u1": "Ana Ruiz"}))

	first, err := m.Acquire(ctx, subject("u1"), "client", "c1", time.Minute)
	require.NoError(t, err)
	require.True(t, first.Acquired)

	res, err := m.Acquire(ctx, subject("u2"), "client", "c1", time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Acquired)
	assert.Equal(t, "u1", res.LockedBy)
	assert.Equal(t, "Ana Ruiz", res.LockedByName)
	assert.Equal(t, first.Lock.ExpiresAt, res.ExpiresAt)
}

func TestAcquireLostInsertRaceMatchesPlainConflict(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := newFakeLockStore()
	m := testManager(store, &now, WithNameLookup(fakeNames{"u1": "Ana Ruiz"}))

	// A competing writer sneaks in between the read and the insert; the
	// unique constraint fires and the caller sees the winner.
	store.stealOnInsert = &Lock{
		ID: "raced", ResourceType: "client", ResourceID: "c1",
		UserID: "u1", AcquiredAt: now, ExpiresAt: now.Add(time.Minute),
	}

	res, err := m.Acquire(ctx, subject("u2"), "client", "c1", time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Acquired)
	assert.Equal(t, "u1", res.LockedBy)
	assert.Equal(t, "Ana Ruiz", res.LockedByName)
	assert.Equal(t, now.Add(time.Minute), res.ExpiresAt)
}

func TestAcquireReapsExpiredLock(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := newFakeLockStore()
	m := testManager(store, &now)

	_, err := m.Acquire(ctx, subject("u1"), "client", "c1", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	res, err := m.Acquire(ctx, subject("u2"), "client", "c1", time.Minute)
	require.NoError(t, err)
	require.True(t, res.Acquired)
	assert.Equal(t, "u2", res.Lock.UserID)
}

func TestAcquireSweepsGlobally(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := newFakeLockStore()
	m := testManager(store, &now)

	_, err := m.Acquire(ctx, subject("u1"), "client", "c1", time.Minute)
	require.NoError(t, err)

	// Acquiring an unrelated resource reaps the lapsed lease too.
	now = now.Add(2 * time.Minute)
	_, err = m.Acquire(ctx, subject("u2"), "report", "r1", time.Minute)
	require.NoError(t, err)

	_, err = store.Get(ctx, "client", "c1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCheckSweepsExpiredRows(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := newFakeLockStore()
	m := testManager(store, &now)

	_, err := m.Acquire(ctx, subject("u1"), "client", "c1", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	res, err := m.Check(ctx, subject("u2"), "client", "c1")
	require.NoError(t, err)
	assert.False(t, res.Locked)

	// The stale row is gone, not just reported free.
	_, err = store.Get(ctx, "client", "c1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExtend(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := newFakeLockStore()
	m := testManager(store, &now)

	_, err := m.Acquire(ctx, subject("u1"), "client", "c1", time.Minute)
	require.NoError(t, err)

	t.Run("owner extends", func(t *testing.T) {
		lock, err := m.Extend(ctx, subject("u1"), "client", "c1", 10*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, now.Add(10*time.Minute), lock.ExpiresAt)
	})

	t.Run("extension capped", func(t *testing.T) {
		lock, err := m.Extend(ctx, subject("u1"), "client", "c1", 2*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, now.Add(MaxExtension), lock.ExpiresAt)
	})

	t.Run("non-owner rejected", func(t *testing.T) {
		_, err := m.Extend(ctx, subject("u2"), "client", "c1", time.Minute)
		assert.ErrorIs(t, err, ErrNotOwner)
	})

	t.Run("missing lock", func(t *testing.T) {
		_, err := m.Extend(ctx, subject("u1"), "client", "nope", time.Minute)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("expired lock reads as missing", func(t *testing.T) {
		now = now.Add(time.Hour)
		_, err := m.Extend(ctx, subject("u1"), "client", "c1", time.Minute)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRelease(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := newFakeLockStore()
	m := testManager(store, &now)

	_, err := m.Acquire(ctx, subject("u1"), "client", "c1", time.Minute)
	require.NoError(t, err)

	t.Run("not owner", func(t *testing.T) {
		outcome, err := m.Release(ctx, subject("u2"), "client", "c1")
		require.NoError(t, err)
		assert.Equal(t, ReleaseNotOwner, outcome)
	})

	t.Run("owner releases", func(t *testing.T) {
		outcome, err := m.Release(ctx, subject("u1"), "client", "c1")
		require.NoError(t, err)
		assert.Equal(t, ReleaseDone, outcome)
	})

	t.Run("already gone is a noop", func(t *testing.T) {
		outcome, err := m.Release(ctx, subject("u1"), "client", "c1")
		require.NoError(t, err)
		assert.Equal(t, ReleaseNoop, outcome)
	})

	t.Run("expired is a noop", func(t *testing.T) {
		_, err := m.Acquire(ctx, subject("u1"), "client", "c2", time.Minute)
		require.NoError(t, err)
		now = now.Add(time.Hour)
		outcome, err := m.Release(ctx, subject("u1"), "client", "c2")
		require.NoError(t, err)
		assert.Equal(t, ReleaseNoop, outcome)
	})
}

func TestCheck(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := newFakeLockStore()
	m := testManager(store, &now, WithNameLookup(fakeNames{"u1": "Ana Ruiz"}))

	res, err := m.Check(ctx, subject("u1"), "client", "c1")
	require.NoError(t, err)
	assert.False(t, res.Locked)

	_, err = m.Acquire(ctx, subject("u1"), "client", "c1", time.Minute)
	require.NoError(t, err)

	res, err = m.Check(ctx, subject("u1"), "client", "c1")
	require.NoError(t, err)
	assert.True(t, res.Locked)
	assert.True(t, res.OwnedByMe)
	assert.Equal(t, "Ana Ruiz", res.LockedByName)

	res, err = m.Check(ctx, subject("u2"), "client", "c1")
	require.NoError(t, err)
	assert.True(t, res.Locked)
	assert.False(t, res.OwnedByMe)
	assert.Equal(t, "u1", res.LockedBy)

	now = now.Add(time.Hour)
	res, err = m.Check(ctx, subject("u2"), "client", "c1")
	require.NoError(t, err)
	assert.False(t, res.Locked)
}

func TestReleaseAllAndSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := newFakeLockStore()
	m := testManager(store, &now)

	_, err := m.Acquire(ctx, subject("u1"), "client", "c1", time.Minute)
	require.NoError(t, err)
	_, err = m.Acquire(ctx, subject("u1"), "report", "r1", time.Minute)
	require.NoError(t, err)
	_, err = m.Acquire(ctx, subject("u2"), "client", "c2", time.Hour)
	require.NoError(t, err)

	locks, err := m.UserLocks(ctx, subject("u1"))
	require.NoError(t, err)
	assert.Len(t, locks, 2)

	n, err := m.ReleaseAllUserLocks(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	locks, err = m.UserLocks(ctx, subject("u1"))
	require.NoError(t, err)
	assert.Empty(t, locks)

	// u2's lock survives the per-user release and outlives the sweep window.
	now = now.Add(30 * time.Minute)
	swept, err := m.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, swept)

	now = now.Add(time.Hour)
	swept, err = m.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, swept)
}
