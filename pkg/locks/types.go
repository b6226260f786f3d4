// Package locks implements optimistic resource locking with TTL
// expiry. A database unique constraint on (resource_type, resource_id)
// arbitrates concurrent acquisition; expired rows are reaped lazily on
// acquisition and periodically by the sweeper.
package locks

import (
	"errors"
	"time"
)

// Default lease parameters. A lock lives DefaultTTL unless extended;
// heartbeats may never push expiry past MaxExtension from now.
const (
	DefaultTTL   = 5 * time.Minute
	MaxTTL       = 30 * time.Minute
	MaxExtension = 30 * time.Minute
)

// ErrDuplicateLock maps the unique-constraint violation raised when two
// writers race to insert a lock for the same resource.
var ErrDuplicateLock = errors.New("lock already exists for resource")

// ErrNotFound indicates no live lock row for the resource.
var ErrNotFound = errors.New("lock not found")

// ErrNotOwner indicates the caller tried to extend a lock someone else
// holds.
var ErrNotOwner = errors.New("lock held by another user")

// Lock is one held lease on a resource.
type Lock struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	UserID       string    `json:"user_id"`
	AcquiredAt   time.Time `json:"acquired_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the lease has lapsed at the given instant.
func (l *Lock) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}

// AcquireResult is the uniform outcome of an acquisition attempt. When
// Acquired is false the Lock describes the competing holder.
type AcquireResult struct {
	Acquired     bool      `json:"acquired"`
	Lock         *Lock     `json:"lock,omitempty"`
	LockedBy     string    `json:"locked_by,omitempty"`
	LockedByName string    `json:"locked_by_name,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// ReleaseOutcome classifies a release attempt.
type ReleaseOutcome string

const (
	// ReleaseDone means the caller's lock was removed.
	ReleaseDone ReleaseOutcome = "released"
	// ReleaseNoop means no live lock existed; releasing is idempotent.
	ReleaseNoop ReleaseOutcome = "noop"
	// ReleaseNotOwner means someone else holds the lock and it was
	// left in place.
	ReleaseNotOwner ReleaseOutcome = "not_owner"
)

// CheckResult describes the current lock state of a resource.
type CheckResult struct {
	Locked       bool      `json:"locked"`
	LockedBy     string    `json:"locked_by,omitempty"`
	LockedByName string    `json:"locked_by_name,omitempty"`
	OwnedByMe    bool      `json:"owned_by_me"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}
