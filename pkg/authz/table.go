package authz

// tableKey is the composite lookup key for the permission table.
type tableKey struct {
	Role     Role
	Resource Resource
	Action   Action
}

// permissionTable is the compile-time permission table: (role, resource,
// action) → scope. Built once at init and never mutated afterwards.
var permissionTable = buildPermissionTable()

type tableEntry struct {
	Resource Resource
	Actions  []Action
	Scope    Scope
}

func buildPermissionTable() map[tableKey]Scope {
	grants := map[Role][]tableEntry{
		RoleSuperAdmin: adminGrants(),
		RoleAdmin:      adminGrants(),
		RoleProgramManager: {
			{ResourceClient, []Action{ActionCreate, ActionRead, ActionUpdate, ActionAssign, ActionShare}, ScopeProgram},
			{ResourceClient, []Action{ActionDelete}, ScopeNone},
			{ResourceProgram, []Action{ActionRead, ActionUpdate}, ScopeProgram},
			{ResourceForm, []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}, ScopeProgram},
			{ResourceCredential, []Action{ActionCreate, ActionRead, ActionUpdate}, ScopeProgram},
			{ResourceQuiz, []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}, ScopeProgram},
			{ResourceMessage, []Action{ActionRead, ActionSend}, ScopeProgram},
			{ResourceImport, []Action{ActionCreate, ActionRead}, ScopeProgram},
			{ResourceReport, []Action{ActionRead, ActionExport}, ScopeProgram},
			{ResourceMeeting, []Action{ActionCreate, ActionRead, ActionUpdate}, ScopeProgram},
			{ResourceUser, []Action{ActionRead}, ScopeProgram},
			{ResourceLocation, []Action{ActionRead}, ScopeAll},
		},
		RoleCaseManager: {
			{ResourceClient, []Action{ActionRead, ActionUpdate, ActionShare}, ScopeAssigned},
			{ResourceClient, []Action{ActionCreate}, ScopeProgram},
			{ResourceClient, []Action{ActionDelete}, ScopeNone},
			{ResourceForm, []Action{ActionCreate, ActionRead, ActionUpdate}, ScopeAssigned},
			{ResourceCredential, []Action{ActionRead, ActionUpdate}, ScopeAssigned},
			{ResourceQuiz, []Action{ActionRead}, ScopeAssigned},
			{ResourceMessage, []Action{ActionRead, ActionSend}, ScopeAssigned},
			{ResourceReport, []Action{ActionRead}, ScopeAssigned},
			{ResourceMeeting, []Action{ActionCreate, ActionRead, ActionUpdate}, ScopeAssigned},
			{ResourceProgram, []Action{ActionRead}, ScopeProgram},
			{ResourceLocation, []Action{ActionRead}, ScopeAll},
		},
		RoleFacilitator: {
			{ResourceClient, []Action{ActionRead, ActionUpdate}, ScopeSession},
			{ResourceForm, []Action{ActionRead, ActionUpdate}, ScopeSession},
			{ResourceQuiz, []Action{ActionRead, ActionUpdate}, ScopeSession},
			{ResourceCredential, []Action{ActionRead}, ScopeSession},
			{ResourceMessage, []Action{ActionRead, ActionSend}, ScopeSession},
			{ResourceMeeting, []Action{ActionCreate, ActionRead, ActionUpdate}, ScopeSession},
			{ResourceProgram, []Action{ActionRead}, ScopeProgram},
			{ResourceReport, []Action{ActionRead}, ScopeNone},
			{ResourceLocation, []Action{ActionRead}, ScopeAll},
		},
		RoleViewer: {
			{ResourceClient, []Action{ActionRead}, ScopeAssigned},
			{ResourceProgram, []Action{ActionRead}, ScopeProgram},
			{ResourceForm, []Action{ActionRead}, ScopeAssigned},
			{ResourceQuiz, []Action{ActionRead}, ScopeAssigned},
			{ResourceReport, []Action{ActionRead}, ScopeNone},
			{ResourceLocation, []Action{ActionRead}, ScopeAll},
		},
	}

	table := make(map[tableKey]Scope)
	for role, entries := range grants {
		for _, e := range entries {
			for _, a := range e.Actions {
				table[tableKey{role, e.Resource, a}] = e.Scope
			}
		}
	}
	return table
}

// adminGrants covers every resource and action at all-scope. Admin-tier
// roles additionally bypass scope evaluation, so the scope here is only
// informational.
func adminGrants() []tableEntry {
	crud := []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}
	return []tableEntry{
		{ResourceClient, append(crud, ActionAssign, ActionShare), ScopeAll},
		{ResourceProgram, crud, ScopeAll},
		{ResourceForm, crud, ScopeAll},
		{ResourceCredential, crud, ScopeAll},
		{ResourceQuiz, crud, ScopeAll},
		{ResourceMessage, []Action{ActionRead, ActionSend, ActionDelete}, ScopeAll},
		{ResourceImport, crud, ScopeAll},
		{ResourceReport, []Action{ActionRead, ActionExport}, ScopeAll},
		{ResourceLocation, crud, ScopeAll},
		{ResourceMeeting, crud, ScopeAll},
		{ResourceUser, append(crud, ActionAssign), ScopeAll},
		{ResourceSettings, []Action{ActionRead, ActionUpdate, ActionManageBilling, ActionManageTeam, ActionManageIntegrations, ActionManageBranding}, ScopeAll},
	}
}

// Lookup returns the scope granted to (role, resource, action), or false
// when the role has no entry for that capability.
func Lookup(role Role, resource Resource, action Action) (Scope, bool) {
	scope, ok := permissionTable[tableKey{role, resource, action}]
	return scope, ok
}

// RoleCapabilities returns every (resource, action, scope) the role holds.
// Useful for admin UIs; the result is a copy.
func RoleCapabilities(role Role) []Capability {
	var caps []Capability
	for key, scope := range permissionTable {
		if key.Role == role {
			caps = append(caps, Capability{Resource: key.Resource, Action: key.Action, Scope: scope})
		}
	}
	return caps
}

// Capability is one row of the permission table for a role.
type Capability struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
	Scope    Scope    `json:"scope"`
}
