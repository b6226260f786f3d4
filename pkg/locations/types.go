package locations

import (
	"time"
)

// LocationType is the tier of a node in the hierarchy. Tiers order
// store < district < region < headquarters.
type LocationType string

const (
	TypeStore        LocationType = "store"
	TypeDistrict     LocationType = "district"
	TypeRegion       LocationType = "region"
	TypeHeadquarters LocationType = "headquarters"
)

// tier returns the structural rank of the type; higher is closer to
// headquarters. Unknown types rank lowest.
func (t LocationType) tier() int {
	switch t {
	case TypeHeadquarters:
		return 3
	case TypeRegion:
		return 2
	case TypeDistrict:
		return 1
	case TypeStore:
		return 0
	}
	return -1
}

// Valid reports whether the type is one of the known tiers.
func (t LocationType) Valid() bool {
	return t.tier() >= 0
}

// AccessLevel orders view < edit < manage.
type AccessLevel string

const (
	LevelView   AccessLevel = "view"
	LevelEdit   AccessLevel = "edit"
	LevelManage AccessLevel = "manage"
)

// rank returns the ordering of the level. Unknown levels rank below view.
func (l AccessLevel) rank() int {
	switch l {
	case LevelManage:
		return 2
	case LevelEdit:
		return 1
	case LevelView:
		return 0
	}
	return -1
}

// Satisfies reports whether the level meets the required level.
func (l AccessLevel) Satisfies(required AccessLevel) bool {
	return l.rank() >= required.rank()
}

// Valid reports whether the level is one of the known levels.
func (l AccessLevel) Valid() bool {
	return l.rank() >= 0
}

// Location is one node of a tenant's location forest.
type Location struct {
	ID        string       `json:"id"`
	TenantID  string       `json:"tenant_id"`
	Name      string       `json:"name"`
	Type      LocationType `json:"type"`
	ParentID  *string      `json:"parent_id,omitempty"`
	Code      string       `json:"code,omitempty"`
	Address   string       `json:"address,omitempty"`
	Timezone  string       `json:"timezone,omitempty"`
	IsActive  bool         `json:"is_active"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Grant is a direct (user, location, level) assignment; the unit of
// location-based authorization. Inherited access is derived, never stored.
type Grant struct {
	ID         string      `json:"id"`
	UserID     string      `json:"user_id"`
	LocationID string      `json:"location_id"`
	Level      AccessLevel `json:"access_level"`
	GrantedBy  string      `json:"granted_by"`
	GrantedAt  time.Time   `json:"granted_at"`
}

// LocationAccess is one reachable location with the effective level and
// the grant it derives from.
type LocationAccess struct {
	Location Location    `json:"location"`
	Level    AccessLevel `json:"access_level"`
	// GrantLocationID is the location the originating grant sits on; it
	// equals Location.ID for direct grants.
	GrantLocationID string `json:"grant_location_id"`
	Inherited       bool   `json:"inherited"`
}

// LocationUser is one user with access at a location, explicit or via
// the implicit admin set.
type LocationUser struct {
	UserID   string      `json:"user_id"`
	Level    AccessLevel `json:"access_level"`
	Implicit bool        `json:"implicit"`
}

// Meeting is the slice of the domain's meeting record the resolver needs.
type Meeting struct {
	ID         string  `json:"id"`
	TenantID   string  `json:"tenant_id"`
	CreatedBy  string  `json:"created_by"`
	LocationID *string `json:"location_id,omitempty"`
}

// CreateLocationInput carries the writable fields for creation.
type CreateLocationInput struct {
	TenantID string       `json:"tenant_id"`
	Name     string       `json:"name"`
	Type     LocationType `json:"type"`
	ParentID *string      `json:"parent_id,omitempty"`
	Code     string       `json:"code,omitempty"`
	Address  string       `json:"address,omitempty"`
	Timezone string       `json:"timezone,omitempty"`
}

// UpdateLocationInput is a partial patch. Nil fields are left unchanged;
// ClearParent re-roots the node regardless of ParentID.
type UpdateLocationInput struct {
	Name        *string       `json:"name,omitempty"`
	Type        *LocationType `json:"type,omitempty"`
	ParentID    *string       `json:"parent_id,omitempty"`
	ClearParent bool          `json:"clear_parent,omitempty"`
	Code        *string       `json:"code,omitempty"`
	Address     *string       `json:"address,omitempty"`
	Timezone    *string       `json:"timezone,omitempty"`
	IsActive    *bool         `json:"is_active,omitempty"`
}

// DeleteOutcome describes how a delete request was resolved.
type DeleteOutcome string

const (
	// DeleteHard means the row was removed.
	DeleteHard DeleteOutcome = "deleted"
	// DeleteSoft means dependent records existed, so the node was
	// deactivated instead.
	DeleteSoft DeleteOutcome = "deactivated"
)
