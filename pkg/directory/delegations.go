package directory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/casehub/accesscore/pkg/authz"
)

// Delegation grants a non-admin user one settings capability, optionally
// until an expiry.
type Delegation struct {
	ID         string                    `json:"id"`
	TenantID   string                    `json:"tenant_id"`
	UserID     string                    `json:"user_id"`
	Capability authz.DelegatedCapability `json:"capability"`
	GrantedBy  string                    `json:"granted_by"`
	GrantedAt  time.Time                 `json:"granted_at"`
	ExpiresAt  *time.Time                `json:"expires_at,omitempty"`
}

// DelegationStore persists settings delegations. It satisfies
// authz.SettingsDelegations.
type DelegationStore struct {
	db *sql.DB
}

// NewDelegationStore creates a delegation store.
func NewDelegationStore(db *sql.DB) *DelegationStore {
	return &DelegationStore{db: db}
}

// Can reports whether an unexpired delegation exists. Expired rows read
// as absent; the sweeper removes them later.
func (s *DelegationStore) Can(ctx context.Context, tenantID, userID string, capability authz.DelegatedCapability) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM settings_delegations
			WHERE tenant_id = $1
			  AND user_id = $2
			  AND capability = $3
			  AND (expires_at IS NULL OR expires_at > NOW())
		)
	`
	var ok bool
	if err := s.db.QueryRowContext(ctx, query, tenantID, userID, string(capability)).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to query delegation: %w", err)
	}
	return ok, nil
}

// Grant upserts a delegation, refreshing expiry on re-grant.
func (s *DelegationStore) Grant(ctx context.Context, d *Delegation) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings_delegations (id, tenant_id, user_id, capability, granted_by, granted_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), $6)
		ON CONFLICT (tenant_id, user_id, capability)
		DO UPDATE SET granted_by = EXCLUDED.granted_by, granted_at = NOW(), expires_at = EXCLUDED.expires_at`,
		d.ID, d.TenantID, d.UserID, string(d.Capability), d.GrantedBy, d.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to grant delegation: %w", err)
	}
	return nil
}

// Revoke removes a delegation.
func (s *DelegationStore) Revoke(ctx context.Context, tenantID, userID string, capability authz.DelegatedCapability) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM settings_delegations
		WHERE tenant_id = $1 AND user_id = $2 AND capability = $3`,
		tenantID, userID, string(capability),
	)
	if err != nil {
		return fmt.Errorf("failed to revoke delegation: %w", err)
	}
	return nil
}

// PurgeExpired removes lapsed delegations, returning the count.
func (s *DelegationStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM settings_delegations
		WHERE expires_at IS NOT NULL AND expires_at <= NOW()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge delegations: %w", err)
	}
	return res.RowsAffected()
}
