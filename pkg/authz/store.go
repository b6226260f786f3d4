package authz

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// FactStore is the Postgres-backed DomainFacts implementation. The tables
// it reads belong to the domain layer; this store never writes them.
type FactStore struct {
	db *sql.DB
}

// NewFactStore creates a fact store over the given database handle.
func NewFactStore(db *sql.DB) *FactStore {
	return &FactStore{db: db}
}

// UserProgramIDs returns direct membership rows unioned with legacy
// facilitator-of-program rows.
func (s *FactStore) UserProgramIDs(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT program_id FROM program_members WHERE user_id = $1
		UNION
		SELECT program_id FROM program_facilitators WHERE user_id = $1
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query program memberships: %w", err)
	}
	defer rows.Close()

	var programIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan program id: %w", err)
		}
		programIDs = append(programIDs, id)
	}

	return programIDs, rows.Err()
}

// ClientAssigneeID returns the client's primary assignee. An unknown
// client resolves to "" rather than an error so the evaluator treats it
// as a plain denial.
func (s *FactStore) ClientAssigneeID(ctx context.Context, clientID string) (string, error) {
	query := `SELECT COALESCE(assigned_to::TEXT, '') FROM clients WHERE id = $1`

	var assignee string
	err := s.db.QueryRowContext(ctx, query, clientID).Scan(&assignee)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query client assignee: %w", err)
	}
	return assignee, nil
}

// ClientSharedWith reports whether a live share exists: not revoked, and
// either unexpired or open-ended.
func (s *FactStore) ClientSharedWith(ctx context.Context, clientID, userID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM client_shares
			WHERE client_id = $1
			  AND shared_with = $2
			  AND revoked_at IS NULL
			  AND (expires_at IS NULL OR expires_at > NOW())
		)
	`

	var shared bool
	if err := s.db.QueryRowContext(ctx, query, clientID, userID).Scan(&shared); err != nil {
		return false, fmt.Errorf("failed to query client shares: %w", err)
	}
	return shared, nil
}

// ClientProgramIDs returns the programs in which the client holds an
// enrollment with one of the given statuses.
func (s *FactStore) ClientProgramIDs(ctx context.Context, clientID string, statuses ...EnrollmentStatus) ([]string, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	query := `
		SELECT DISTINCT program_id FROM program_enrollments
		WHERE client_id = $1 AND status = ANY($2)
	`

	statusStrings := make([]string, len(statuses))
	for i, st := range statuses {
		statusStrings[i] = string(st)
	}

	rows, err := s.db.QueryContext(ctx, query, clientID, pq.Array(statusStrings))
	if err != nil {
		return nil, fmt.Errorf("failed to query client enrollments: %w", err)
	}
	defer rows.Close()

	var programIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan program id: %w", err)
		}
		programIDs = append(programIDs, id)
	}

	return programIDs, rows.Err()
}
