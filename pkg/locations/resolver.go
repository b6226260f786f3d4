package locations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/casehub/accesscore/pkg/authz"
	"github.com/casehub/accesscore/pkg/observability"
)

// GrantSource is the persistence surface the resolver reads and writes.
// *Store satisfies it; tests substitute fakes.
type GrantSource interface {
	GetLocation(ctx context.Context, id string) (*Location, error)
	GetMeeting(ctx context.Context, meetingID string) (*Meeting, error)
	GrantsForUser(ctx context.Context, userID string) ([]Grant, error)
	GrantsAt(ctx context.Context, locationID string) ([]Grant, error)
	GrantFor(ctx context.Context, userID, locationID string) (*Grant, error)
	UpsertGrant(ctx context.Context, grant *Grant) error
	DeleteGrant(ctx context.Context, userID, locationID string) error
}

// TreeSource supplies tenant trees. *TreeCache satisfies it.
type TreeSource interface {
	Tree(ctx context.Context, tenantID string) (*Tree, bool, error)
	Invalidate(tenantID string)
}

// Roster answers the user-directory questions the resolver needs.
type Roster interface {
	// UserTenantID returns the tenant a user belongs to, or "" when the
	// user is unknown or inactive.
	UserTenantID(ctx context.Context, userID string) (string, error)
	// ActiveAdminIDs lists the tenant's active admin-tier users.
	ActiveAdminIDs(ctx context.Context, tenantID string) ([]string, error)
}

// Resolver computes reachable locations and effective access levels,
// honoring downward-only inheritance: a grant at L extends to L's
// descendants, never to ancestors.
type Resolver struct {
	store   GrantSource
	trees   TreeSource
	roster  Roster
	metrics *observability.Metrics
	log     *logrus.Logger
}

// NewResolver creates a location access resolver. metrics may be nil.
func NewResolver(store GrantSource, trees TreeSource, roster Roster, metrics *observability.Metrics, log *logrus.Logger) *Resolver {
	if log == nil {
		log = logrus.New()
	}
	return &Resolver{store: store, trees: trees, roster: roster, metrics: metrics, log: log}
}

// AccessibleLocations returns every location the user can reach with its
// effective level. Admin-tier users get manage on every active location.
// Overlapping grants resolve first-write-wins: the oldest grant that
// reaches a location sets its level.
func (r *Resolver) AccessibleLocations(ctx context.Context, sub authz.Subject) ([]LocationAccess, error) {
	defer r.observe("accessible_locations", time.Now())

	tree, err := r.tree(ctx, sub.TenantID)
	if err != nil {
		return nil, err
	}

	if sub.Role.IsAdminTier() {
		var out []LocationAccess
		for _, loc := range tree.ActiveLocations() {
			out = append(out, LocationAccess{
				Location:        loc,
				Level:           LevelManage,
				GrantLocationID: loc.ID,
			})
		}
		return out, nil
	}

	grants, err := r.store.GrantsForUser(ctx, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("loading grants: %w", err)
	}

	seen := make(map[string]struct{})
	var out []LocationAccess
	add := func(loc Location, level AccessLevel, grantLocationID string, inherited bool) {
		if _, ok := seen[loc.ID]; ok {
			return
		}
		seen[loc.ID] = struct{}{}
		out = append(out, LocationAccess{
			Location:        loc,
			Level:           level,
			GrantLocationID: grantLocationID,
			Inherited:       inherited,
		})
	}

	for _, grant := range grants {
		root := tree.Get(grant.LocationID)
		if root == nil || root.TenantID != sub.TenantID || !root.IsActive {
			continue
		}
		add(*root, grant.Level, grant.LocationID, false)
		for _, desc := range tree.ActiveDescendants(grant.LocationID) {
			add(desc, grant.Level, grant.LocationID, true)
		}
	}
	return out, nil
}

// CanAccess reports whether the user reaches the location, optionally at
// a minimum level (pass "" for any). Missing and cross-tenant locations
// read as plain denials.
func (r *Resolver) CanAccess(ctx context.Context, sub authz.Subject, locationID string, required AccessLevel) (bool, error) {
	defer r.observe("can_access", time.Now())

	level, ok, err := r.resolveLevel(ctx, sub, locationID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if required == "" {
		return true, nil
	}
	return level.Satisfies(required), nil
}

// AccessLevel returns the user's effective level at the location, and
// whether any access exists.
func (r *Resolver) AccessLevel(ctx context.Context, sub authz.Subject, locationID string) (AccessLevel, bool, error) {
	defer r.observe("access_level", time.Now())
	return r.resolveLevel(ctx, sub, locationID)
}

// resolveLevel checks a direct grant first, then walks upward and picks
// the ancestor grant at the structurally highest tier (closest to
// headquarters). This broadest-scope-wins tie-break intentionally
// differs from the first-write-wins policy of the aggregate listing.
func (r *Resolver) resolveLevel(ctx context.Context, sub authz.Subject, locationID string) (AccessLevel, bool, error) {
	loc, err := r.store.GetLocation(ctx, locationID)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if loc.TenantID != sub.TenantID {
		return "", false, nil
	}

	if sub.Role.IsAdminTier() {
		return LevelManage, true, nil
	}

	direct, err := r.store.GrantFor(ctx, sub.ID, locationID)
	if err != nil {
		return "", false, err
	}
	if direct != nil {
		return direct.Level, true, nil
	}

	tree, err := r.tree(ctx, sub.TenantID)
	if err != nil {
		return "", false, err
	}

	grants, err := r.store.GrantsForUser(ctx, sub.ID)
	if err != nil {
		return "", false, fmt.Errorf("loading grants: %w", err)
	}
	byLocation := make(map[string]Grant, len(grants))
	for _, g := range grants {
		byLocation[g.LocationID] = g
	}

	var best *Grant
	bestTier := -1
	for _, ancestorID := range tree.Ancestors(locationID) {
		grant, ok := byLocation[ancestorID]
		if !ok {
			continue
		}
		node := tree.Get(ancestorID)
		if node == nil {
			continue
		}
		if tier := node.Type.tier(); tier > bestTier {
			g := grant
			best = &g
			bestTier = tier
		}
	}
	if best == nil {
		return "", false, nil
	}
	return best.Level, true, nil
}

// CanAccessMeeting resolves meeting access: the creator always has it,
// meetings without a location are admin/creator-only, and everything
// else defers to the meeting's location.
func (r *Resolver) CanAccessMeeting(ctx context.Context, sub authz.Subject, meetingID string) (bool, error) {
	meeting, err := r.store.GetMeeting(ctx, meetingID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if meeting.TenantID != sub.TenantID {
		return false, nil
	}
	if meeting.CreatedBy == sub.ID || sub.Role.IsAdminTier() {
		return true, nil
	}
	if meeting.LocationID == nil {
		return false, nil
	}
	return r.CanAccess(ctx, sub, *meeting.LocationID, LevelView)
}

// AssignAccess upserts a grant. The actor must be admin-tier or resolve
// to manage at the target location, and the grantee must belong to the
// location's tenant.
func (r *Resolver) AssignAccess(ctx context.Context, actor authz.Subject, grant Grant) error {
	if !grant.Level.Valid() {
		return ErrInvalidInput
	}

	loc, err := r.store.GetLocation(ctx, grant.LocationID)
	if err != nil {
		return err
	}
	if loc.TenantID != actor.TenantID {
		return ErrNotFound
	}

	if err := r.requireManage(ctx, actor, grant.LocationID); err != nil {
		return err
	}

	granteeTenant, err := r.roster.UserTenantID(ctx, grant.UserID)
	if err != nil {
		return fmt.Errorf("validating grantee: %w", err)
	}
	if granteeTenant != loc.TenantID {
		return ErrUserNotInTenant
	}

	grant.GrantedBy = actor.ID
	if err := r.store.UpsertGrant(ctx, &grant); err != nil {
		return err
	}

	r.log.WithFields(logrus.Fields{
		"user_id":     grant.UserID,
		"location_id": grant.LocationID,
		"level":       grant.Level,
		"granted_by":  actor.ID,
	}).Info("location access assigned")
	return nil
}

// RemoveAccess deletes a grant under the same manage requirement as
// AssignAccess.
func (r *Resolver) RemoveAccess(ctx context.Context, actor authz.Subject, userID, locationID string) error {
	loc, err := r.store.GetLocation(ctx, locationID)
	if err != nil {
		return err
	}
	if loc.TenantID != actor.TenantID {
		return ErrNotFound
	}
	if err := r.requireManage(ctx, actor, locationID); err != nil {
		return err
	}
	return r.store.DeleteGrant(ctx, userID, locationID)
}

// LocationUsers merges explicit grants at the location with the implicit
// "every admin has manage" set, de-duplicated by user.
func (r *Resolver) LocationUsers(ctx context.Context, sub authz.Subject, locationID string) ([]LocationUser, error) {
	loc, err := r.store.GetLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if loc.TenantID != sub.TenantID {
		return nil, ErrNotFound
	}

	grants, err := r.store.GrantsAt(ctx, locationID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(grants))
	var users []LocationUser
	for _, g := range grants {
		if _, ok := seen[g.UserID]; ok {
			continue
		}
		seen[g.UserID] = struct{}{}
		users = append(users, LocationUser{UserID: g.UserID, Level: g.Level})
	}

	admins, err := r.roster.ActiveAdminIDs(ctx, loc.TenantID)
	if err != nil {
		return nil, fmt.Errorf("listing admins: %w", err)
	}
	for _, adminID := range admins {
		if _, ok := seen[adminID]; ok {
			continue
		}
		seen[adminID] = struct{}{}
		users = append(users, LocationUser{UserID: adminID, Level: LevelManage, Implicit: true})
	}
	return users, nil
}

func (r *Resolver) requireManage(ctx context.Context, actor authz.Subject, locationID string) error {
	if actor.Role.IsAdminTier() {
		return nil
	}
	level, ok, err := r.resolveLevel(ctx, actor, locationID)
	if err != nil {
		return err
	}
	if !ok || level != LevelManage {
		return ErrInsufficientLevel
	}
	return nil
}

func (r *Resolver) tree(ctx context.Context, tenantID string) (*Tree, error) {
	tree, hit, err := r.trees.Tree(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("loading location tree: %w", err)
	}
	if r.metrics != nil {
		if hit {
			r.metrics.LocationTreeCacheHits.Inc()
		} else {
			r.metrics.LocationTreeCacheMisses.Inc()
		}
	}
	return tree, nil
}

func (r *Resolver) observe(operation string, start time.Time) {
	if r.metrics != nil {
		r.metrics.ObserveResolution(operation, time.Since(start))
	}
}
