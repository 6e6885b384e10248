package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovnxlate/ovnxlate/internal/model"
)

func TestBootstrapInsertsWhenRoleMissing(t *testing.T) {
	plan := &model.Plan{}
	Bootstrap(model.SouthboundSnapshot{}, plan)

	assert.Empty(t, plan.Deletes)
	require.Len(t, plan.Inserts, len(Matrix)+1)
}

func TestBootstrapLeavesMatchingRoleAlone(t *testing.T) {
	sb := model.SouthboundSnapshot{
		RBACRoles: []*model.RBACRole{
			{UUID: "role1", Name: RoleName, Permissions: map[string]string{
				"Chassis": "p1", "Encap": "p2", "Port_Binding": "p3", "MAC_Binding": "p4",
			}},
		},
		RBACPermissions: []*model.RBACPermission{
			{UUID: "p1", Table: "Chassis", Authorization: []string{"name"}, Insert_Delete: true,
				Update: []string{"nb_cfg", "external_ids", "encaps", "vtep_logical_switches"}},
			{UUID: "p2", Table: "Encap", Authorization: []string{"chassis_name"}, Insert_Delete: true,
				Update: []string{"type", "options", "ip"}},
			{UUID: "p3", Table: "Port_Binding", Authorization: []string{""}, Insert_Delete: false,
				Update: []string{"chassis"}},
			{UUID: "p4", Table: "MAC_Binding", Authorization: []string{""}, Insert_Delete: true,
				Update: []string{"logical_port", "ip", "mac", "datapath"}},
		},
	}

	plan := &model.Plan{}
	Bootstrap(sb, plan)

	assert.True(t, plan.Empty())
}

func TestBootstrapRecreatesOnDrift(t *testing.T) {
	sb := model.SouthboundSnapshot{
		RBACRoles: []*model.RBACRole{
			{UUID: "role1", Name: RoleName, Permissions: map[string]string{"Chassis": "p1"}},
		},
		RBACPermissions: []*model.RBACPermission{
			{UUID: "p1", Table: "Chassis", Authorization: []string{"name"}, Insert_Delete: false,
				Update: []string{"nb_cfg"}},
		},
	}

	plan := &model.Plan{}
	Bootstrap(sb, plan)

	require.Len(t, plan.Deletes, 2)
	require.Len(t, plan.Inserts, len(Matrix)+1)
}
