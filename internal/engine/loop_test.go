package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovnxlate/ovnxlate/internal/idalloc"
	"github.com/ovnxlate/ovnxlate/internal/model"
	"github.com/ovnxlate/ovnxlate/internal/rbac"
	syncpkg "github.com/ovnxlate/ovnxlate/internal/sync"
)

func emptySnapshot() model.Snapshot {
	return model.Snapshot{
		NB: model.NorthboundSnapshot{
			SwitchPorts:    map[string]*model.LogicalSwitchPort{},
			RouterPorts:    map[string]*model.LogicalRouterPort{},
			GatewayChassis: map[string]*model.GatewayChassis{},
			HAGroups:       map[string]*model.HAChassisGroupNB{},
			HAChassis:      map[string]*model.HAChassisNB{},
			ACLs:           map[string]*model.ACL{},
			LoadBalancers:  map[string]*model.LoadBalancer{},
			NATs:           map[string]*model.NAT{},
			StaticRoutes:   map[string]*model.StaticRoute{},
			Policies:       map[string]*model.RoutingPolicy{},
			DHCPOptions:    map[string]*model.DHCPOptionsNB{},
			DNS:            map[string]*model.DNSNB{},
			MeterBands:     map[string]*model.MeterBand{},
		},
		SB: model.SouthboundSnapshot{
			HAChassis: map[string]*model.HAChassisSB{},
		},
	}
}

func TestReconcileGeneratesAndPersistsMACPrefixOnFirstRun(t *testing.T) {
	snap := emptySnapshot()
	snap.NB.Global = &model.NBGlobal{UUID: "nbg1", NbCfg: 0, Options: map[string]string{}}

	plan, err := Reconcile(snap, idalloc.NewMACPool(), 32768, 32868)
	require.NoError(t, err)

	var sawPrefix bool
	for _, u := range plan.Updates {
		if u.Table != "NB_Global" {
			continue
		}
		row := u.Row.(*model.NBGlobal)
		if prefix, ok := row.Options[model.OptMACPrefix]; ok {
			sawPrefix = true
			_, parseErr := idalloc.ParseMACPrefix(prefix)
			assert.NoError(t, parseErr)
		}
	}
	assert.True(t, sawPrefix, "first run must persist a generated mac_prefix onto NB_Global")
}

func TestReconcileReusesPersistedMACPrefix(t *testing.T) {
	snap := emptySnapshot()
	snap.NB.Global = &model.NBGlobal{
		UUID:    "nbg1",
		NbCfg:   0,
		Options: map[string]string{model.OptMACPrefix: "02:11:22"},
	}

	plan, err := Reconcile(snap, idalloc.NewMACPool(), 32768, 32868)
	require.NoError(t, err)

	for _, u := range plan.Updates {
		if u.Table != "NB_Global" {
			continue
		}
		row := u.Row.(*model.NBGlobal)
		assert.Equal(t, "02:11:22", row.Options[model.OptMACPrefix],
			"an already-persisted prefix must never be overwritten")
	}
}

func TestReconcileCreatesSBGlobalWhenMissing(t *testing.T) {
	snap := emptySnapshot()
	snap.NB.Global = &model.NBGlobal{UUID: "nbg1", NbCfg: 5, Options: map[string]string{model.OptMACPrefix: "02:11:22"}}

	plan, err := Reconcile(snap, idalloc.NewMACPool(), 32768, 32868)
	require.NoError(t, err)

	var found bool
	for _, ins := range plan.Inserts {
		if ins.Table != "SB_Global" {
			continue
		}
		found = true
		assert.Equal(t, 5, ins.Row.(*model.SBGlobal).NbCfg)
	}
	assert.True(t, found, "missing SB_Global must be inserted mirroring nb_cfg")
}

func TestReconcileComputesHvCfgAsMinimumChassisNbCfg(t *testing.T) {
	snap := emptySnapshot()
	snap.NB.Global = &model.NBGlobal{UUID: "nbg1", NbCfg: 10, Options: map[string]string{model.OptMACPrefix: "02:11:22"}}
	snap.SB.Global = &model.SBGlobal{UUID: "sbg1", NbCfg: 10}
	snap.SB.Chassis = []*model.Chassis{
		{Name: "chassis-a", NbCfg: 10},
		{Name: "chassis-b", NbCfg: 7},
	}

	plan, err := Reconcile(snap, idalloc.NewMACPool(), 32768, 32868)
	require.NoError(t, err)

	var found bool
	for _, u := range plan.Updates {
		if u.Table != "NB_Global" {
			continue
		}
		found = true
		assert.Equal(t, 7, u.Row.(*model.NBGlobal).HvCfg)
	}
	assert.True(t, found, "hv_cfg must be staged once it lags the minimum chassis nb_cfg")
}

func TestReconcileNoOpWhenNothingChanged(t *testing.T) {
	snap := emptySnapshot()
	snap.NB.Global = &model.NBGlobal{UUID: "nbg1", NbCfg: 3, SbCfg: 3, HvCfg: 3, Options: map[string]string{model.OptMACPrefix: "02:11:22"}}
	snap.SB.Global = &model.SBGlobal{UUID: "sbg1", NbCfg: 3, Options: map[string]string{model.OptMACPrefix: "02:11:22"}}
	snap.SB.Chassis = []*model.Chassis{{Name: "chassis-a", NbCfg: 3}}

	// A converged SB already carries the RBAC role and both DHCP catalogs.
	role := &model.RBACRole{UUID: "role1", Name: rbac.RoleName, Permissions: map[string]string{}}
	for _, perm := range rbac.Matrix {
		role.Permissions[perm.Table] = "perm-" + perm.Table
		snap.SB.RBACPermissions = append(snap.SB.RBACPermissions, &model.RBACPermission{
			UUID: "perm-" + perm.Table, Table: perm.Table, Authorization: perm.Authorization,
			Insert_Delete: perm.InsertDelete, Update: perm.Update,
		})
	}
	snap.SB.RBACRoles = []*model.RBACRole{role}
	for _, def := range syncpkg.SupportedDHCPv4Options {
		snap.SB.DHCPOptions = append(snap.SB.DHCPOptions, &model.DHCPOptionsSB{Name: def.Name, Code: def.Code, Type: def.Type})
	}
	for _, def := range syncpkg.SupportedDHCPv6Options {
		snap.SB.DHCPv6Options = append(snap.SB.DHCPv6Options, &model.DHCPOptionsSB{Name: def.Name, Code: def.Code, Type: def.Type})
	}

	plan, err := Reconcile(snap, idalloc.NewMACPool(), 32768, 32868)
	require.NoError(t, err)
	assert.True(t, plan.Empty(), "a snapshot already fully converged must produce an empty plan")
}

func TestReconcileMirrorsIpsecAndOptionsIntoSBGlobal(t *testing.T) {
	snap := emptySnapshot()
	snap.NB.Global = &model.NBGlobal{
		UUID: "nbg1", NbCfg: 4, Ipsec: true,
		Options: map[string]string{model.OptMACPrefix: "02:11:22", "foo": "bar"},
	}
	snap.SB.Global = &model.SBGlobal{UUID: "sbg1", NbCfg: 4}

	plan, err := Reconcile(snap, idalloc.NewMACPool(), 32768, 32868)
	require.NoError(t, err)

	var found bool
	for _, u := range plan.Updates {
		if u.Table != "SB_Global" {
			continue
		}
		found = true
		row := u.Row.(*model.SBGlobal)
		assert.True(t, row.Ipsec)
		assert.Equal(t, "bar", row.Options["foo"])
	}
	assert.True(t, found, "ipsec/options drift on SB_Global must stage an update")
}
