package locks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Store persists locks in Postgres. The unique index on
// (resource_type, resource_id) is the single arbiter under races.
type Store struct {
	db *sql.DB
}

// NewStore creates a lock store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert writes a new lock row. A unique-constraint violation comes
// back as ErrDuplicateLock so the caller can re-read the winner.
func (s *Store) Insert(ctx context.Context, lock *Lock) error {
	if lock.ID == "" {
		lock.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resource_locks (id, tenant_id, resource_type, resource_id, user_id, acquired_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		lock.ID, lock.TenantID, lock.ResourceType, lock.ResourceID, lock.UserID, lock.AcquiredAt, lock.ExpiresAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateLock
		}
		return fmt.Errorf("inserting lock: %w", err)
	}
	return nil
}

// Get returns the lock row for a resource regardless of expiry.
func (s *Store) Get(ctx context.Context, resourceType, resourceID string) (*Lock, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, resource_type, resource_id, user_id, acquired_at, expires_at
		FROM resource_locks
		WHERE resource_type = $1 AND resource_id = $2`,
		resourceType, resourceID,
	)
	var lock Lock
	err := row.Scan(&lock.ID, &lock.TenantID, &lock.ResourceType, &lock.ResourceID, &lock.UserID, &lock.AcquiredAt, &lock.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading lock: %w", err)
	}
	return &lock, nil
}

// UpdateExpiry moves a lock's expiry, guarded by owner identity so a
// stale heartbeat from a previous holder cannot extend the new lease.
func (s *Store) UpdateExpiry(ctx context.Context, lockID, userID string, expiresAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE resource_locks SET expires_at = $1
		WHERE id = $2 AND user_id = $3`,
		expiresAt, lockID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("extending lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes a lock row by ID, guarded by owner identity.
func (s *Store) Delete(ctx context.Context, lockID, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM resource_locks WHERE id = $1 AND user_id = $2`,
		lockID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("deleting lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteAllForUser drops every lock a user holds, returning the count.
// Used on logout and session end.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM resource_locks WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("releasing user locks: %w", err)
	}
	return res.RowsAffected()
}

// DeleteAllExpired sweeps every lapsed lock, returning the count.
func (s *Store) DeleteAllExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM resource_locks WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("sweeping expired locks: %w", err)
	}
	return res.RowsAffected()
}

// ListForUser returns the user's live locks ordered by acquisition.
func (s *Store) ListForUser(ctx context.Context, userID string, now time.Time) ([]Lock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, resource_type, resource_id, user_id, acquired_at, expires_at
		FROM resource_locks
		WHERE user_id = $1 AND expires_at > $2
		ORDER BY acquired_at ASC`,
		userID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("listing user locks: %w", err)
	}
	defer rows.Close()

	var locks []Lock
	for rows.Next() {
		var lock Lock
		if err := rows.Scan(&lock.ID, &lock.TenantID, &lock.ResourceType, &lock.ResourceID, &lock.UserID, &lock.AcquiredAt, &lock.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scanning lock: %w", err)
		}
		locks = append(locks, lock)
	}
	return locks, rows.Err()
}
