// Package rbac implements C12 (spec.md §4.12): the SB RBAC_Role named
// "ovn-controller" must expose exactly the fixed permission matrix spec.md
// §4.12 specifies; any drift is corrected by delete-and-recreate of the
// whole role rather than patching individual permissions, matching the
// exactness language in the spec ("must expose exactly").
package rbac

import (
	"sort"

	"github.com/ovnxlate/ovnxlate/internal/model"
)

// RoleName is the single SB RBAC_Role this engine bootstraps.
const RoleName = "ovn-controller"

// Permission is one row of the fixed matrix (spec.md §4.12).
type Permission struct {
	Table         string
	Authorization []string
	InsertDelete  bool
	Update        []string
}

// Matrix is the exact permission set spec.md §4.12 requires.
var Matrix = []Permission{
	{Table: "Chassis", Authorization: []string{"name"}, InsertDelete: true,
		Update: []string{"nb_cfg", "external_ids", "encaps", "vtep_logical_switches"}},
	{Table: "Encap", Authorization: []string{"chassis_name"}, InsertDelete: true,
		Update: []string{"type", "options", "ip"}},
	{Table: "Port_Binding", Authorization: []string{""}, InsertDelete: false,
		Update: []string{"chassis"}},
	{Table: "MAC_Binding", Authorization: []string{""}, InsertDelete: true,
		Update: []string{"logical_port", "ip", "mac", "datapath"}},
}

// Bootstrap compares the observed SB RBAC_Role/RBAC_Permission rows against
// Matrix and appends a delete-and-recreate to plan on any drift at all
// (spec.md §4.12 "Any row drift triggers delete + recreate").
func Bootstrap(sb model.SouthboundSnapshot, plan *model.Plan) {
	role := findRole(sb.RBACRoles)
	if role == nil {
		insertRole(plan)
		return
	}

	perms := make(map[string]*model.RBACPermission, len(role.Permissions))
	for table, permUUID := range role.Permissions {
		for _, p := range sb.RBACPermissions {
			if p.UUID == permUUID {
				perms[table] = p
				break
			}
		}
	}

	if matches(perms) {
		return
	}

	for _, permUUID := range role.Permissions {
		plan.Delete("RBAC_Permission", permUUID, "role recreated")
	}
	plan.Delete("RBAC_Role", role.UUID, "permission matrix drifted")
	insertRole(plan)
}

func findRole(roles []*model.RBACRole) *model.RBACRole {
	for _, r := range roles {
		if r.Name == RoleName {
			return r
		}
	}
	return nil
}

func matches(observed map[string]*model.RBACPermission) bool {
	if len(observed) != len(Matrix) {
		return false
	}
	for _, want := range Matrix {
		got, ok := observed[want.Table]
		if !ok {
			return false
		}
		if got.Insert_Delete != want.InsertDelete {
			return false
		}
		if !sameStrings(got.Authorization, want.Authorization) {
			return false
		}
		if !sameStrings(got.Update, want.Update) {
			return false
		}
	}
	return true
}

// insertRole queues the four permission rows and the role row that
// references them. The named-uuid placeholders that let an OVSDB
// transaction reference a row inserted earlier in the same transaction are
// a property of the wire-level transact op, not of model.Plan; the
// internal/ovsdb layer that lowers a Plan to real TransactOps is
// responsible for generating them (by table name, since this module never
// has two rows of the same table in one RBAC_Role transaction).
func insertRole(plan *model.Plan) {
	permNames := make(map[string]string, len(Matrix))
	for _, perm := range Matrix {
		plan.Insert("RBAC_Permission", &model.RBACPermission{
			Table:         perm.Table,
			Authorization: perm.Authorization,
			Insert_Delete: perm.InsertDelete,
			Update:        perm.Update,
		})
		permNames[perm.Table] = perm.Table
	}
	plan.Insert("RBAC_Role", &model.RBACRole{Name: RoleName, Permissions: permNames})
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as, bs := sortedCopy(a), sortedCopy(b)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
