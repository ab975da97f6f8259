// Package authz is the single place permission logic lives. Callers pass
// the actor's role, the action, and whether the action targets the actor's
// own record; everything else (menus, handlers, services) consults Decide
// instead of encoding role checks of its own.
package authz

// Role is the fixed three-level role taxonomy.
type Role string

const (
	RoleViewer  Role = "viewer"
	RoleAnalyst Role = "analyst"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleViewer, RoleAnalyst, RoleAdmin:
		return true
	}
	return false
}

// Action identifies an operation subject to authorization.
type Action string

const (
	ActionViewDashboard      Action = "view_dashboard"
	ActionInviteMember       Action = "invite_member"
	ActionUpdateMemberRole   Action = "update_member_role"
	ActionRemoveMember       Action = "remove_member"
	ActionUpdateOrganization Action = "update_organization"
	ActionIngestMetrics      Action = "ingest_metrics"
)

// permissions is the static role -> action table. Absent entries deny.
var permissions = map[Role]map[Action]bool{
	RoleViewer: {
		ActionViewDashboard: true,
	},
	RoleAnalyst: {
		ActionViewDashboard: true,
		ActionIngestMetrics: true,
	},
	RoleAdmin: {
		ActionViewDashboard:      true,
		ActionIngestMetrics:      true,
		ActionInviteMember:       true,
		ActionUpdateMemberRole:   true,
		ActionRemoveMember:       true,
		ActionUpdateOrganization: true,
	},
}

// Decide reports whether role may perform action. selfTarget marks actions
// aimed at the actor's own member record: role changes and removals on self
// are denied for every role, admins included. Unknown roles and unknown
// actions deny (fail closed). Decide is pure and must be re-evaluated per
// call; decisions are never cached because roles change between calls.
func Decide(role Role, action Action, selfTarget bool) bool {
	if selfTarget && (action == ActionUpdateMemberRole || action == ActionRemoveMember) {
		return false
	}
	return permissions[role][action]
}
