package locations

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store handles location and grant persistence.
type Store struct {
	db *sql.DB
}

// NewStore creates a new location store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const locationColumns = `id, tenant_id, name, type, parent_id, code, address, timezone, is_active, created_at, updated_at`

// CreateLocation inserts a new node. The parent, when given, must exist,
// belong to the same tenant, and must not create a cycle.
func (s *Store) CreateLocation(ctx context.Context, in CreateLocationInput) (*Location, error) {
	if in.TenantID == "" || in.Name == "" || !in.Type.Valid() {
		return nil, ErrInvalidInput
	}

	id := uuid.NewString()
	if in.ParentID != nil {
		parent, err := s.GetLocation(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.TenantID != in.TenantID {
			return nil, ErrNotFound
		}
		if err := s.checkNoCycle(ctx, id, *in.ParentID); err != nil {
			return nil, err
		}
	}

	query := `
		INSERT INTO locations (id, tenant_id, name, type, parent_id, code, address, timezone, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, $9, $9)
	`

	now := time.Now()
	_, err := s.db.ExecContext(ctx, query,
		id, in.TenantID, in.Name, in.Type, in.ParentID, in.Code, in.Address, in.Timezone, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create location: %w", err)
	}

	return &Location{
		ID:        id,
		TenantID:  in.TenantID,
		Name:      in.Name,
		Type:      in.Type,
		ParentID:  in.ParentID,
		Code:      in.Code,
		Address:   in.Address,
		Timezone:  in.Timezone,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetLocation retrieves a location by ID
func (s *Store) GetLocation(ctx context.Context, id string) (*Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations WHERE id = $1`

	loc, err := scanLocation(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location: %w", err)
	}
	return loc, nil
}

// ListLocations returns the tenant's locations, active only unless
// includeInactive is set.
func (s *Store) ListLocations(ctx context.Context, tenantID string, includeInactive bool) ([]Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations WHERE tenant_id = $1`
	if !includeInactive {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer rows.Close()

	var locations []Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, *loc)
	}
	return locations, rows.Err()
}

// UpdateLocation applies a partial patch. ClearParent re-roots the node;
// a parent change re-runs cycle detection.
func (s *Store) UpdateLocation(ctx context.Context, id string, patch UpdateLocationInput) (*Location, error) {
	loc, err := s.GetLocation(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		loc.Name = *patch.Name
	}
	if patch.Type != nil {
		if !patch.Type.Valid() {
			return nil, ErrInvalidInput
		}
		loc.Type = *patch.Type
	}
	if patch.ClearParent {
		loc.ParentID = nil
	} else if patch.ParentID != nil {
		parent, err := s.GetLocation(ctx, *patch.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.TenantID != loc.TenantID {
			return nil, ErrNotFound
		}
		if err := s.checkNoCycle(ctx, id, *patch.ParentID); err != nil {
			return nil, err
		}
		loc.ParentID = patch.ParentID
	}
	if patch.Code != nil {
		loc.Code = *patch.Code
	}
	if patch.Address != nil {
		loc.Address = *patch.Address
	}
	if patch.Timezone != nil {
		loc.Timezone = *patch.Timezone
	}
	if patch.IsActive != nil {
		loc.IsActive = *patch.IsActive
	}

	query := `
		UPDATE locations
		SET name = $1, type = $2, parent_id = $3, code = $4, address = $5, timezone = $6, is_active = $7, updated_at = $8
		WHERE id = $9
	`

	loc.UpdatedAt = time.Now()
	_, err = s.db.ExecContext(ctx, query,
		loc.Name, loc.Type, loc.ParentID, loc.Code, loc.Address, loc.Timezone, loc.IsActive, loc.UpdatedAt, loc.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update location: %w", err)
	}
	return loc, nil
}

// DeleteLocation removes a node. Active children reject the delete;
// dependent records (grants, meetings) soft-delete instead; otherwise the
// row is removed.
func (s *Store) DeleteLocation(ctx context.Context, id string) (DeleteOutcome, error) {
	if _, err := s.GetLocation(ctx, id); err != nil {
		return "", err
	}

	var children int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM locations WHERE parent_id = $1 AND is_active = TRUE`, id,
	).Scan(&children)
	if err != nil {
		return "", fmt.Errorf("failed to count child locations: %w", err)
	}
	if children > 0 {
		return "", ErrHasChildren
	}

	var dependents int
	err = s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM location_access WHERE location_id = $1)
		     + (SELECT COUNT(*) FROM meetings WHERE location_id = $1)
	`, id).Scan(&dependents)
	if err != nil {
		return "", fmt.Errorf("failed to count dependent records: %w", err)
	}

	if dependents > 0 {
		_, err = s.db.ExecContext(ctx,
			`UPDATE locations SET is_active = FALSE, updated_at = $1 WHERE id = $2`, time.Now(), id,
		)
		if err != nil {
			return "", fmt.Errorf("failed to deactivate location: %w", err)
		}
		return DeleteSoft, nil
	}

	_, err = s.db.ExecContext(ctx, `DELETE FROM locations WHERE id = $1`, id)
	if err != nil {
		return "", fmt.Errorf("failed to delete location: %w", err)
	}
	return DeleteHard, nil
}

// checkNoCycle walks the prospective parent chain iteratively and rejects
// when it reaches the node being written. The visited set guards against
// pre-existing corruption in the chain itself.
func (s *Store) checkNoCycle(ctx context.Context, nodeID, parentID string) error {
	visited := map[string]struct{}{nodeID: {}}
	current := parentID
	for current != "" {
		if _, seen := visited[current]; seen {
			return ErrCycle
		}
		visited[current] = struct{}{}

		var next sql.NullString
		err := s.db.QueryRowContext(ctx,
			`SELECT parent_id FROM locations WHERE id = $1`, current,
		).Scan(&next)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to walk parent chain: %w", err)
		}
		if !next.Valid {
			return nil
		}
		current = next.String
	}
	return nil
}

// UpsertGrant creates or replaces the grant keyed by (user, location).
func (s *Store) UpsertGrant(ctx context.Context, grant *Grant) error {
	if !grant.Level.Valid() {
		return ErrInvalidInput
	}

	query := `
		INSERT INTO location_access (id, user_id, location_id, access_level, granted_by, granted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, location_id)
		DO UPDATE SET access_level = EXCLUDED.access_level, granted_by = EXCLUDED.granted_by, granted_at = EXCLUDED.granted_at
	`

	if grant.ID == "" {
		grant.ID = uuid.NewString()
	}
	grant.GrantedAt = time.Now()
	_, err := s.db.ExecContext(ctx, query,
		grant.ID, grant.UserID, grant.LocationID, grant.Level, grant.GrantedBy, grant.GrantedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert grant: %w", err)
	}
	return nil
}

// DeleteGrant removes the grant keyed by (user, location); absent is a
// no-op.
func (s *Store) DeleteGrant(ctx context.Context, userID, locationID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM location_access WHERE user_id = $1 AND location_id = $2`, userID, locationID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete grant: %w", err)
	}
	return nil
}

const grantColumns = `id, user_id, location_id, access_level, granted_by, granted_at`

// GrantsForUser returns the user's direct grants ordered oldest first,
// which is what gives the aggregate listing its first-write-wins policy.
func (s *Store) GrantsForUser(ctx context.Context, userID string) ([]Grant, error) {
	query := `SELECT ` + grantColumns + ` FROM location_access WHERE user_id = $1 ORDER BY granted_at ASC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query grants: %w", err)
	}
	defer rows.Close()

	return collectGrants(rows)
}

// GrantsAt returns every direct grant at the location.
func (s *Store) GrantsAt(ctx context.Context, locationID string) ([]Grant, error) {
	query := `SELECT ` + grantColumns + ` FROM location_access WHERE location_id = $1 ORDER BY granted_at ASC`

	rows, err := s.db.QueryContext(ctx, query, locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query grants: %w", err)
	}
	defer rows.Close()

	return collectGrants(rows)
}

// GrantFor returns the direct grant at one location, or nil.
func (s *Store) GrantFor(ctx context.Context, userID, locationID string) (*Grant, error) {
	query := `SELECT ` + grantColumns + ` FROM location_access WHERE user_id = $1 AND location_id = $2`

	var g Grant
	err := s.db.QueryRowContext(ctx, query, userID, locationID).Scan(
		&g.ID, &g.UserID, &g.LocationID, &g.Level, &g.GrantedBy, &g.GrantedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query grant: %w", err)
	}
	return &g, nil
}

func collectGrants(rows *sql.Rows) ([]Grant, error) {
	var grants []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.ID, &g.UserID, &g.LocationID, &g.Level, &g.GrantedBy, &g.GrantedAt); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// GetMeeting loads the slice of a meeting the resolver needs.
func (s *Store) GetMeeting(ctx context.Context, meetingID string) (*Meeting, error) {
	query := `SELECT id, tenant_id, created_by, location_id FROM meetings WHERE id = $1`

	var m Meeting
	var locationID sql.NullString
	err := s.db.QueryRowContext(ctx, query, meetingID).Scan(&m.ID, &m.TenantID, &m.CreatedBy, &locationID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}
	if locationID.Valid {
		id := locationID.String
		m.LocationID = &id
	}
	return &m, nil
}

func scanLocation(scanner interface{ Scan(dest ...interface{}) error }) (*Location, error) {
	var loc Location
	var parentID sql.NullString
	var code, address, timezone sql.NullString

	err := scanner.Scan(
		&loc.ID,
		&loc.TenantID,
		&loc.Name,
		&loc.Type,
		&parentID,
		&code,
		&address,
		&timezone,
		&loc.IsActive,
		&loc.CreatedAt,
		&loc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if parentID.Valid {
		id := parentID.String
		loc.ParentID = &id
	}
	loc.Code = code.String
	loc.Address = address.String
	loc.Timezone = timezone.String

	return &loc, nil
}
