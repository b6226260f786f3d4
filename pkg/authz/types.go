package authz

// Role is one of the fixed per-tenant roles.
type Role string

const (
	RoleSuperAdmin     Role = "super_admin"
	RoleAdmin          Role = "admin"
	RoleProgramManager Role = "program_manager"
	RoleCaseManager    Role = "case_manager"
	RoleFacilitator    Role = "facilitator"
	RoleViewer         Role = "viewer"
)

// IsAdminTier reports whether the role bypasses every scope check.
func (r Role) IsAdminTier() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleProgramManager, RoleCaseManager, RoleFacilitator, RoleViewer:
		return true
	}
	return false
}

// Resource represents a resource kind in the system
type Resource string

const (
	ResourceClient     Resource = "client"
	ResourceProgram    Resource = "program"
	ResourceForm       Resource = "form"
	ResourceCredential Resource = "credential"
	ResourceQuiz       Resource = "quiz"
	ResourceMessage    Resource = "message"
	ResourceImport     Resource = "import"
	ResourceReport     Resource = "report"
	ResourceLocation   Resource = "location"
	ResourceMeeting    Resource = "meeting"
	ResourceUser       Resource = "user"
	ResourceSettings   Resource = "settings"
)

// Action represents an action that can be performed on a resource
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionAssign Action = "assign"
	ActionShare  Action = "share"
	ActionSend   Action = "send"
	ActionExport Action = "export"

	// Settings actions map onto delegation capabilities.
	ActionManageBilling      Action = "manage_billing"
	ActionManageTeam         Action = "manage_team"
	ActionManageIntegrations Action = "manage_integrations"
	ActionManageBranding     Action = "manage_branding"
)

// Scope is the relational qualifier on a permission determining which
// instances of a resource a role may act on.
type Scope string

const (
	// ScopeAll grants access to every instance.
	ScopeAll Scope = "all"
	// ScopeProgram grants access to instances tied to the user's programs.
	ScopeProgram Scope = "program"
	// ScopeAssigned grants access to instances assigned or shared to the user.
	ScopeAssigned Scope = "assigned"
	// ScopeSession grants access only while the client holds an active
	// enrollment in one of the user's programs.
	ScopeSession Scope = "session"
	// ScopeNone is an explicit deny.
	ScopeNone Scope = "none"
)

// Subject is the acting user as seen by the engine. The caller is
// responsible for having authenticated it.
type Subject struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Role     Role   `json:"role"`
}

// CheckInput carries the relational context for a permission check.
//
// ProgramIDs, ClientID and OwnerID are a trust boundary: scoped checks
// are vacuously satisfied when the relevant field is absent, so callers
// must supply context whenever it is knowable.
type CheckInput struct {
	Resource   Resource `json:"resource"`
	Action     Action   `json:"action"`
	ResourceID string   `json:"resource_id,omitempty"`

	ProgramIDs []string `json:"program_ids,omitempty"`
	ClientID   string   `json:"client_id,omitempty"`
	OwnerID    string   `json:"owner_id,omitempty"`
}

// Reason codes returned on Decision.Reason. Stable; consumed by callers
// and emitted as metric labels.
const (
	ReasonNoPermission     = "role_missing_permission"
	ReasonAdminBypass      = "admin_bypass"
	ReasonScopeAll         = "scope_all"
	ReasonScopeNone        = "scope_none"
	ReasonNoContext        = "no_context"
	ReasonProgramMatch     = "program_match"
	ReasonNoProgramOverlap = "no_program_overlap"
	ReasonOwner            = "owner"
	ReasonOwnerMismatch    = "owner_mismatch"
	ReasonAssigned         = "assigned"
	ReasonShared           = "shared"
	ReasonEnrolledOverlap  = "enrolled_program_overlap"
	ReasonNotAssigned      = "not_assigned"
	ReasonActiveSession    = "active_session"
	ReasonNoActiveSession  = "no_active_session"
	ReasonDelegated        = "delegated"
)

// Decision is the outcome of a permission check. UserMessage (and
// AdminContact on denials) are the only fields intended for verbatim
// display.
type Decision struct {
	Allowed      bool   `json:"allowed"`
	Scope        Scope  `json:"scope,omitempty"`
	Reason       string `json:"reason,omitempty"`
	UserMessage  string `json:"user_message,omitempty"`
	AdminContact string `json:"admin_contact,omitempty"`
}

// Verdict is the scope evaluator's answer for a single scoped check.
type Verdict struct {
	Satisfied bool
	Reason    string
	Message   string
}

// EnrollmentStatus mirrors the domain layer's program enrollment states
// that the evaluator cares about.
type EnrollmentStatus string

const (
	EnrollmentEnrolled  EnrollmentStatus = "ENROLLED"
	EnrollmentCompleted EnrollmentStatus = "COMPLETED"
)

// DelegatedCapability names a settings capability that an admin can
// delegate to a non-admin user.
type DelegatedCapability string

const (
	DelegateBilling      DelegatedCapability = "billing"
	DelegateTeam         DelegatedCapability = "team"
	DelegateIntegrations DelegatedCapability = "integrations"
	DelegateBranding     DelegatedCapability = "branding"
)

// delegationForAction maps a settings action onto the delegation
// capability that can stand in for the missing table entry.
func delegationForAction(action Action) (DelegatedCapability, bool) {
	switch action {
	case ActionManageBilling:
		return DelegateBilling, true
	case ActionManageTeam:
		return DelegateTeam, true
	case ActionManageIntegrations:
		return DelegateIntegrations, true
	case ActionManageBranding:
		return DelegateBranding, true
	}
	return "", false
}
