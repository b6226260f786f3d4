// Package directory reads the tenant's user roster. It backs admin
// contact lookup on denials, grant validation, and lock holder names.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/casehub/accesscore/pkg/authz"
)

// Store reads users from Postgres.
type Store struct {
	db *sql.DB
}

// NewStore creates a directory store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// User is one roster entry.
type User struct {
	ID       string     `json:"id"`
	TenantID string     `json:"tenant_id"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Role     authz.Role `json:"role"`
	IsActive bool       `json:"is_active"`
}

// UserByID returns a user, or nil when unknown.
func (s *Store) UserByID(ctx context.Context, userID string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, email, role, is_active
		FROM users WHERE id = $1`,
		userID,
	)
	var u User
	err := row.Scan(&u.ID, &u.TenantID, &u.Name, &u.Email, &u.Role, &u.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &u, nil
}

// UserSubject builds the access-evaluation identity for a user, or nil
// when the user is unknown or deactivated.
func (s *Store) UserSubject(ctx context.Context, userID string) (*authz.Subject, error) {
	u, err := s.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.IsActive {
		return nil, nil
	}
	return &authz.Subject{ID: u.ID, TenantID: u.TenantID, Role: u.Role}, nil
}

// UserTenantID returns the tenant an active user belongs to, or "" for
// unknown or deactivated users.
func (s *Store) UserTenantID(ctx context.Context, userID string) (string, error) {
	var tenantID string
	err := s.db.QueryRowContext(ctx,
		`SELECT tenant_id FROM users WHERE id = $1 AND is_active = TRUE`,
		userID,
	).Scan(&tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query user tenant: %w", err)
	}
	return tenantID, nil
}

// UserName returns a user's display name, or "" when unknown.
func (s *Store) UserName(ctx context.Context, userID string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM users WHERE id = $1`, userID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query user name: %w", err)
	}
	return name, nil
}

// ActiveAdminIDs lists the tenant's active admin-tier users.
func (s *Store) ActiveAdminIDs(ctx context.Context, tenantID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM users
		WHERE tenant_id = $1 AND is_active = TRUE AND role IN ('super_admin', 'admin')
		ORDER BY created_at ASC`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query admins: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan admin id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// EarliestActiveAdmin returns the tenant's oldest active admin for
// denial messages, or nil when the tenant has none.
func (s *Store) EarliestActiveAdmin(ctx context.Context, tenantID string) (*authz.AdminContact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, email FROM users
		WHERE tenant_id = $1 AND is_active = TRUE AND role IN ('super_admin', 'admin')
		ORDER BY created_at ASC
		LIMIT 1`,
		tenantID,
	)
	var contact authz.AdminContact
	err := row.Scan(&contact.Name, &contact.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query admin contact: %w", err)
	}
	return &contact, nil
}
