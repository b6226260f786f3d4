package locks

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/casehub/accesscore/pkg/authz"
	"github.com/casehub/accesscore/pkg/observability"
)

// LockStore is the persistence surface the manager drives. *Store
// satisfies it; tests substitute fakes.
type LockStore interface {
	Insert(ctx context.Context, lock *Lock) error
	Get(ctx context.Context, resourceType, resourceID string) (*Lock, error)
	UpdateExpiry(ctx context.Context, lockID, userID string, expiresAt time.Time) (bool, error)
	Delete(ctx context.Context, lockID, userID string) (bool, error)
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
	DeleteAllExpired(ctx context.Context, now time.Time) (int64, error)
	ListForUser(ctx context.Context, userID string, now time.Time) ([]Lock, error)
}

// NameLookup resolves user IDs to display names for conflict messages.
type NameLookup interface {
	UserName(ctx context.Context, userID string) (string, error)
}

// Manager implements the locking protocol on top of a LockStore. The
// store's unique constraint decides races; the manager translates the
// resulting duplicate error into the same conflict shape a plain
// already-locked read produces.
type Manager struct {
	store      LockStore
	names      NameLookup
	metrics    *observability.Metrics
	log        *logrus.Logger
	now        func() time.Time
	defaultTTL time.Duration
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithNameLookup enables holder names in conflict results.
func WithNameLookup(names NameLookup) ManagerOption {
	return func(m *Manager) { m.names = names }
}

// WithMetrics records lock outcomes.
func WithMetrics(metrics *observability.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithDefaultTTL overrides the lease length used when the caller does
// not request one. Values above MaxTTL are capped.
func WithDefaultTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.defaultTTL = ttl
		}
	}
}

// NewManager creates a lock manager.
func NewManager(store LockStore, log *logrus.Logger, opts ...ManagerOption) *Manager {
	if log == nil {
		log = logrus.New()
	}
	m := &Manager{store: store, log: log, now: time.Now, defaultTTL: DefaultTTL}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire takes or refreshes the lock on a resource. Re-acquisition by
// the current holder refreshes the lease. Losing an insert race yields
// the same conflict result as finding the lock already held.
func (m *Manager) Acquire(ctx context.Context, sub authz.Subject, resourceType, resourceID string, ttl time.Duration) (*AcquireResult, error) {
	ttl = m.clampTTL(ttl)
	now := m.now()

	// Opportunistically reap every lapsed lease, not just the target's,
	// so the insert below can succeed and dead rows never pile up
	// between scheduled sweeps.
	if _, err := m.sweepExpired(ctx); err != nil {
		m.record("error")
		return nil, err
	}

	existing, err := m.store.Get(ctx, resourceType, resourceID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		m.record("error")
		return nil, err
	}
	if existing != nil && !existing.Expired(now) {
		if existing.UserID == sub.ID {
			expiresAt := now.Add(ttl)
			if _, err := m.store.UpdateExpiry(ctx, existing.ID, sub.ID, expiresAt); err != nil {
				m.record("error")
				return nil, err
			}
			existing.ExpiresAt = expiresAt
			m.record("extended")
			return &AcquireResult{Acquired: true, Lock: existing}, nil
		}
		m.record("conflict")
		return m.conflict(ctx, existing), nil
	}

	lock := &Lock{
		TenantID:     sub.TenantID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		UserID:       sub.ID,
		AcquiredAt:   now,
		ExpiresAt:    now.Add(ttl),
	}
	err = m.store.Insert(ctx, lock)
	if errors.Is(err, ErrDuplicateLock) {
		// Lost the race. Surface the winner exactly as if it had
		// been found up front.
		winner, readErr := m.store.Get(ctx, resourceType, resourceID)
		if readErr != nil && !errors.Is(readErr, ErrNotFound) {
			m.record("error")
			return nil, readErr
		}
		m.record("conflict")
		if winner == nil {
			return &AcquireResult{Acquired: false}, nil
		}
		return m.conflict(ctx, winner), nil
	}
	if err != nil {
		m.record("error")
		return nil, err
	}

	m.record("acquired")
	m.log.WithFields(logrus.Fields{
		"resource_type": resourceType,
		"resource_id":   resourceID,
		"user_id":       sub.ID,
	}).Debug("lock acquired")
	return &AcquireResult{Acquired: true, Lock: lock}, nil
}

// Extend pushes the caller's lease forward by ttl, never past
// MaxExtension from now.
func (m *Manager) Extend(ctx context.Context, sub authz.Subject, resourceType, resourceID string, ttl time.Duration) (*Lock, error) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	if ttl > MaxExtension {
		ttl = MaxExtension
	}
	now := m.now()

	lock, err := m.store.Get(ctx, resourceType, resourceID)
	if err != nil {
		return nil, err
	}
	if lock.Expired(now) {
		return nil, ErrNotFound
	}
	if lock.UserID != sub.ID {
		return nil, ErrNotOwner
	}

	expiresAt := now.Add(ttl)
	updated, err := m.store.UpdateExpiry(ctx, lock.ID, sub.ID, expiresAt)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, ErrNotFound
	}
	lock.ExpiresAt = expiresAt
	return lock, nil
}

// Release drops the caller's lock. Releasing a lock that no longer
// exists is a no-op; someone else's lock is left untouched.
func (m *Manager) Release(ctx context.Context, sub authz.Subject, resourceType, resourceID string) (ReleaseOutcome, error) {
	now := m.now()

	lock, err := m.store.Get(ctx, resourceType, resourceID)
	if errors.Is(err, ErrNotFound) {
		m.recordRelease("noop")
		return ReleaseNoop, nil
	}
	if err != nil {
		m.recordRelease("error")
		return "", err
	}
	if lock.Expired(now) {
		m.recordRelease("noop")
		return ReleaseNoop, nil
	}
	if lock.UserID != sub.ID {
		m.recordRelease("not_owner")
		return ReleaseNotOwner, nil
	}

	if _, err := m.store.Delete(ctx, lock.ID, sub.ID); err != nil {
		m.recordRelease("error")
		return "", err
	}
	m.recordRelease("released")
	return ReleaseDone, nil
}

// Check reports the resource's lock state from the caller's view. Like
// Acquire, it sweeps lapsed leases first so a stale row can never read
// as held.
func (m *Manager) Check(ctx context.Context, sub authz.Subject, resourceType, resourceID string) (*CheckResult, error) {
	now := m.now()

	if _, err := m.sweepExpired(ctx); err != nil {
		return nil, err
	}

	lock, err := m.store.Get(ctx, resourceType, resourceID)
	if errors.Is(err, ErrNotFound) {
		return &CheckResult{Locked: false}, nil
	}
	if err != nil {
		return nil, err
	}
	if lock.Expired(now) {
		return &CheckResult{Locked: false}, nil
	}

	return &CheckResult{
		Locked:       true,
		LockedBy:     lock.UserID,
		LockedByName: m.holderName(ctx, lock.UserID),
		OwnedByMe:    lock.UserID == sub.ID,
		ExpiresAt:    lock.ExpiresAt,
	}, nil
}

// UserLocks lists the caller's live locks.
func (m *Manager) UserLocks(ctx context.Context, sub authz.Subject) ([]Lock, error) {
	return m.store.ListForUser(ctx, sub.ID, m.now())
}

// ReleaseAllUserLocks drops every lock a user holds.
func (m *Manager) ReleaseAllUserLocks(ctx context.Context, userID string) (int64, error) {
	n, err := m.store.DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.log.WithFields(logrus.Fields{"user_id": userID, "count": n}).Info("released all user locks")
	}
	return n, nil
}

// CleanupExpired sweeps lapsed locks. The sweeper runs it on a
// schedule; the opportunistic sweeps in Acquire and Check cover the
// gap between runs.
func (m *Manager) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := m.sweepExpired(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.log.WithFields(logrus.Fields{"count": n}).Info("swept expired locks")
	}
	return n, nil
}

func (m *Manager) sweepExpired(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteAllExpired(ctx, m.now())
	if err != nil {
		return 0, err
	}
	if m.metrics != nil && n > 0 {
		m.metrics.RecordLocksSwept(int(n))
	}
	return n, nil
}

func (m *Manager) conflict(ctx context.Context, holder *Lock) *AcquireResult {
	return &AcquireResult{
		Acquired:     false,
		LockedBy:     holder.UserID,
		LockedByName: m.holderName(ctx, holder.UserID),
		ExpiresAt:    holder.ExpiresAt,
	}
}

func (m *Manager) holderName(ctx context.Context, userID string) string {
	if m.names == nil {
		return ""
	}
	name, err := m.names.UserName(ctx, userID)
	if err != nil {
		m.log.WithError(err).WithField("user_id", userID).Warn("holder name lookup failed")
		return ""
	}
	return name
}

func (m *Manager) record(outcome string) {
	if m.metrics != nil {
		m.metrics.RecordLockAcquisition(outcome)
	}
}

func (m *Manager) recordRelease(outcome string) {
	if m.metrics != nil {
		m.metrics.RecordLockRelease(outcome)
	}
}

func (m *Manager) clampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	if ttl > MaxTTL {
		return MaxTTL
	}
	return ttl
}
