package authz

import "testing"

func TestDecideMatrix(t *testing.T) {
	cases := []struct {
		role   Role
		action Action
		self   bool
		allow  bool
	}{
		{RoleViewer, ActionViewDashboard, false, true},
		{RoleAnalyst, ActionViewDashboard, false, true},
		{RoleAdmin, ActionViewDashboard, false, true},

		{RoleViewer, ActionInviteMember, false, false},
		{RoleAnalyst, ActionInviteMember, false, false},
		{RoleAdmin, ActionInviteMember, false, true},

		{RoleViewer, ActionUpdateMemberRole, false, false},
		{RoleAnalyst, ActionUpdateMemberRole, false, false},
		{RoleAdmin, ActionUpdateMemberRole, false, true},

		{RoleViewer, ActionRemoveMember, false, false},
		{RoleAnalyst, ActionRemoveMember, false, false},
		{RoleAdmin, ActionRemoveMember, false, true},

		{RoleViewer, ActionUpdateOrganization, false, false},
		{RoleAnalyst, ActionUpdateOrganization, false, false},
		{RoleAdmin, ActionUpdateOrganization, false, true},

		{RoleViewer, ActionIngestMetrics, false, false},
		{RoleAnalyst, ActionIngestMetrics, false, true},
		{RoleAdmin, ActionIngestMetrics, false, true},
	}
	for _, tc := range cases {
		if got := Decide(tc.role, tc.action, tc.self); got != tc.allow {
			t.Fatalf("Decide(%s, %s, self=%v)=%v, want %v", tc.role, tc.action, tc.self, got, tc.allow)
		}
	}
}

func TestSelfTargetAlwaysDenied(t *testing.T) {
	for _, role := range []Role{RoleViewer, RoleAnalyst, RoleAdmin} {
		if Decide(role, ActionRemoveMember, true) {
			t.Fatalf("self removal allowed for role %s", role)
		}
		if Decide(role, ActionUpdateMemberRole, true) {
			t.Fatalf("self role change allowed for role %s", role)
		}
	}
}

func TestUnknownRoleOrActionDenies(t *testing.T) {
	if Decide(Role("superuser"), ActionInviteMember, false) {
		t.Fatal("unknown role must deny")
	}
	if Decide(RoleAdmin, Action("drop_tables"), false) {
		t.Fatal("unknown action must deny")
	}
	if Decide(Role(""), Action(""), false) {
		t.Fatal("zero values must deny")
	}
}

func TestRoleValid(t *testing.T) {
	for _, role := range []Role{RoleViewer, RoleAnalyst, RoleAdmin} {
		if !role.Valid() {
			t.Fatalf("expected %s to be valid", role)
		}
	}
	if Role("owner").Valid() {
		t.Fatal("unexpected role accepted")
	}
}
