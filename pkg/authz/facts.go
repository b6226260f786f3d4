package authz

import "context"

// DomainFacts exposes the read-only relational facts the scope evaluator
// consults. These records are owned by the domain layer; the engine never
// writes them.
type DomainFacts interface {
	// UserProgramIDs returns the programs the user belongs to: direct
	// membership rows plus legacy facilitator-of-program rows.
	UserProgramIDs(ctx context.Context, userID string) ([]string, error)

	// ClientAssigneeID returns the client's primary assignee, or "" when
	// the client is unassigned or unknown.
	ClientAssigneeID(ctx context.Context, clientID string) (string, error)

	// ClientSharedWith reports whether a non-revoked, unexpired share of
	// the client exists for the user.
	ClientSharedWith(ctx context.Context, clientID, userID string) (bool, error)

	// ClientProgramIDs returns the programs in which the client holds an
	// enrollment with one of the given statuses.
	ClientProgramIDs(ctx context.Context, clientID string, statuses ...EnrollmentStatus) ([]string, error)
}

// ContactDirectory resolves the administrator a denied user should be
// pointed at.
type ContactDirectory interface {
	// EarliestActiveAdmin returns the earliest-created active admin-tier
	// user in the tenant, or nil when the tenant has none.
	EarliestActiveAdmin(ctx context.Context, tenantID string) (*AdminContact, error)
}

// AdminContact identifies a tenant administrator for denial messages.
type AdminContact struct {
	Name  string
	Email string
}

// SettingsDelegations reports delegated settings capabilities. An expired
// delegation row is treated as absent.
type SettingsDelegations interface {
	Can(ctx context.Context, tenantID, userID string, capability DelegatedCapability) (bool, error)
}
