package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovnxlate/ovnxlate/internal/idalloc"
	"github.com/ovnxlate/ovnxlate/internal/model"
)

func TestDatapathsAllocatesNewSwitchAndReusesExisting(t *testing.T) {
	nb := model.NorthboundSnapshot{
		Switches: []*model.LogicalSwitch{
			{UUID: "ls1", Name: "sw1"},
			{UUID: "ls2", Name: "sw2"},
		},
		SwitchPorts: map[string]*model.LogicalSwitchPort{},
	}
	sb := model.SouthboundSnapshot{
		Datapaths: []*model.DatapathBinding{
			{UUID: "db1", TunnelKey: 5, ExternalIDs: map[string]string{model.DBExtIDLogicalSwitch: "ls1"}},
		},
	}

	plan := &model.Plan{}
	cache := Datapaths(nb, sb, plan)

	require.Contains(t, cache.Datapaths, "ls1")
	assert.Equal(t, 5, cache.Datapaths["ls1"].TunnelKey, "existing SB binding's key must be reused")

	require.Contains(t, cache.Datapaths, "ls2")
	assert.NotEqual(t, 0, cache.Datapaths["ls2"].TunnelKey, "new switch must get an allocated key")
	assert.Len(t, plan.Inserts, 1, "only the new switch should insert a Datapath_Binding row")
}

func TestDatapathsDeletesOrphanAndMalformedSBRows(t *testing.T) {
	nb := model.NorthboundSnapshot{SwitchPorts: map[string]*model.LogicalSwitchPort{}}
	sb := model.SouthboundSnapshot{
		Datapaths: []*model.DatapathBinding{
			{UUID: "orphan", TunnelKey: 1, ExternalIDs: map[string]string{model.DBExtIDLogicalSwitch: "gone"}},
			{UUID: "nokey", TunnelKey: 2, ExternalIDs: map[string]string{}},
		},
	}

	plan := &model.Plan{}
	Datapaths(nb, sb, plan)

	assert.Len(t, plan.Deletes, 2)
}

func TestDatapathsSkipsDisabledRouter(t *testing.T) {
	disabled := false
	nb := model.NorthboundSnapshot{
		SwitchPorts: map[string]*model.LogicalSwitchPort{},
		Routers: []*model.LogicalRouter{
			{UUID: "lr1", Name: "r1", Enabled: &disabled},
		},
		RouterPorts: map[string]*model.LogicalRouterPort{},
	}
	sb := model.SouthboundSnapshot{}

	plan := &model.Plan{}
	cache := Datapaths(nb, sb, plan)

	assert.NotContains(t, cache.Datapaths, "lr1")
}

func TestPortsJoinsAndPeersSwitchAndRouterPorts(t *testing.T) {
	nb := model.NorthboundSnapshot{
		Switches: []*model.LogicalSwitch{{UUID: "ls1", Name: "sw1", Ports: []string{"lsp1"}}},
		SwitchPorts: map[string]*model.LogicalSwitchPort{
			"lsp1": {UUID: "lsp1", Name: "sw1-to-r1", Type: model.LSPTypeRouter, Options: map[string]string{"router-port": "r1-to-sw1"}},
		},
		Routers: []*model.LogicalRouter{{UUID: "lr1", Name: "r1", Ports: []string{"lrp1"}}},
		RouterPorts: map[string]*model.LogicalRouterPort{
			"lrp1": {UUID: "lrp1", Name: "r1-to-sw1", MAC: "02:00:00:00:00:01", Networks: []string{"10.0.0.1/24"}},
		},
	}
	sb := model.SouthboundSnapshot{}
	plan := &model.Plan{}

	cache := Datapaths(nb, sb, plan)
	Ports(nb, sb, cache, plan)

	swPort, ok := cache.Ports["sw1-to-r1"]
	require.True(t, ok)
	rPort, ok := cache.Ports["r1-to-sw1"]
	require.True(t, ok)

	assert.Equal(t, "r1-to-sw1", swPort.Peer)
	assert.Equal(t, "sw1-to-r1", rPort.Peer, "resolvePeering must link the router port back to its switch-side peer")

	portInserts := 0
	for _, op := range plan.Inserts {
		if op.Table == "Port_Binding" {
			portInserts++
		}
	}
	assert.Equal(t, 2, portInserts, "both new ports should insert a Port_Binding row")
}

func TestPortsRejectsRouterPeerThatIsASwitchPort(t *testing.T) {
	peer := "lsp-not-a-router-port"
	nb := model.NorthboundSnapshot{
		Switches: []*model.LogicalSwitch{{UUID: "ls1", Name: "sw1", Ports: []string{"lsp1"}}},
		SwitchPorts: map[string]*model.LogicalSwitchPort{
			"lsp1": {UUID: "lsp1", Name: "lsp-not-a-router-port"},
		},
		Routers: []*model.LogicalRouter{{UUID: "lr1", Name: "r1", Ports: []string{"lrp1"}}},
		RouterPorts: map[string]*model.LogicalRouterPort{
			"lrp1": {UUID: "lrp1", Name: "r1-to-sw1", MAC: "02:00:00:00:00:01", Peer: &peer},
		},
	}
	sb := model.SouthboundSnapshot{}
	plan := &model.Plan{}

	cache := Datapaths(nb, sb, plan)
	Ports(nb, sb, cache, plan)

	rPort := cache.Ports["r1-to-sw1"]
	assert.Empty(t, rPort.Peer, "a router port naming a switch port as peer must be rejected")
}

func TestPortsSynthesizesRedirectPortForGatewayChassis(t *testing.T) {
	nb := model.NorthboundSnapshot{
		Routers: []*model.LogicalRouter{{UUID: "lr1", Name: "r1", Ports: []string{"lrp1"}}},
		RouterPorts: map[string]*model.LogicalRouterPort{
			"lrp1": {UUID: "lrp1", Name: "gw1", MAC: "02:00:00:00:00:01", GatewayChassis: []string{"gc1"}},
		},
		GatewayChassis: map[string]*model.GatewayChassis{
			"gc1": {UUID: "gc1", ChassisName: "hv1", Priority: 100},
		},
		SwitchPorts: map[string]*model.LogicalSwitchPort{},
	}
	sb := model.SouthboundSnapshot{}
	plan := &model.Plan{}

	cache := Datapaths(nb, sb, plan)
	Ports(nb, sb, cache, plan)

	redirect, ok := cache.Ports["cr-gw1"]
	require.True(t, ok, "a gateway_chassis-bearing LRP must synthesize a cr-<name> redirect port")
	assert.True(t, redirect.Derived)
	assert.Equal(t, "gw1", redirect.RedirectOf)
	assert.Equal(t, "gw1", cache.Datapaths["lr1"].DGWPort)
	assert.Equal(t, "cr-gw1", cache.Datapaths["lr1"].RedirectPort)
}

func TestPortsDeletesOrphanSBPortAndQueuesMACPurge(t *testing.T) {
	nb := model.NorthboundSnapshot{SwitchPorts: map[string]*model.LogicalSwitchPort{}}
	sb := model.SouthboundSnapshot{
		Ports: []*model.PortBinding{{UUID: "pb1", LogicalPort: "stale", Datapath: "ls1", TunnelKey: 3}},
	}
	plan := &model.Plan{}
	cache := model.NewCache()

	Ports(nb, sb, cache, plan)

	assert.Len(t, plan.Deletes, 1)
	assert.Equal(t, []string{"stale"}, plan.PurgeMACBindingsByPort)
}

func TestPortsHonorsRequestedTunnelKey(t *testing.T) {
	nb := model.NorthboundSnapshot{
		Switches: []*model.LogicalSwitch{{UUID: "ls1", Name: "sw1", Ports: []string{"lsp1"}}},
		SwitchPorts: map[string]*model.LogicalSwitchPort{
			"lsp1": {UUID: "lsp1", Name: "p1", Options: map[string]string{"requested-tnl-key": "42"}},
		},
		Routers:     []*model.LogicalRouter{},
		RouterPorts: map[string]*model.LogicalRouterPort{},
	}
	sb := model.SouthboundSnapshot{}
	plan := &model.Plan{}

	cache := Datapaths(nb, sb, plan)
	Ports(nb, sb, cache, plan)

	assert.Equal(t, 42, cache.Ports["p1"].TunnelKey)
}

func TestApplyIPAMAllocatesIPv4ThenMACThenIPv6(t *testing.T) {
	dynamic := "dynamic"
	ls := &model.LogicalSwitch{
		UUID: "ls1", Name: "sw1", Ports: []string{"lsp1"},
		OtherConfig: map[string]string{
			"subnet":      "10.0.0.0/24",
			"ipv6_prefix": "2001:db8::/64",
		},
	}
	nb := model.NorthboundSnapshot{
		Switches: []*model.LogicalSwitch{ls},
		SwitchPorts: map[string]*model.LogicalSwitchPort{
			"lsp1": {UUID: "lsp1", Name: "p1", Addresses: []string{dynamic}},
		},
	}
	sb := model.SouthboundSnapshot{}
	plan := &model.Plan{}

	cache := Datapaths(nb, sb, plan)
	Ports(nb, sb, cache, plan)

	prefix, err := idalloc.ParseMACPrefix("02:00:00")
	require.NoError(t, err)
	pool := idalloc.NewMACPool()

	ApplyIPAM(cache, nb, pool, prefix, plan)

	p := cache.Ports["p1"]
	require.NotEmpty(t, p.MAC)
	require.NotEmpty(t, p.IPv4)
	assert.NotEqual(t, "10.0.0.0", p.IPv4[0], "the subnet's own network address must never be handed out")
	require.NotEmpty(t, p.IPv6, "an ipv6_prefix switch must derive an EUI-64 address too")

	require.Len(t, plan.Updates, 1)
	row, ok := plan.Updates[0].Row.(map[string]string)
	require.True(t, ok)
	assert.Contains(t, row["dynamic_addresses"], p.MAC)
	assert.Contains(t, row["dynamic_addresses"], p.IPv4[0])
}

func TestApplyIPAMPreservesUnchangedComponentsAcrossPasses(t *testing.T) {
	existing := "02:00:00:00:00:05 10.0.0.5"
	ls := &model.LogicalSwitch{
		UUID: "ls1", Name: "sw1", Ports: []string{"lsp1"},
		OtherConfig: map[string]string{"subnet": "10.0.0.0/24"},
	}
	nb := model.NorthboundSnapshot{
		Switches: []*model.LogicalSwitch{ls},
		SwitchPorts: map[string]*model.LogicalSwitchPort{
			"lsp1": {UUID: "lsp1", Name: "p1", Addresses: []string{"dynamic"}, DynamicAddresses: &existing},
		},
	}
	sb := model.SouthboundSnapshot{}
	plan := &model.Plan{}

	cache := Datapaths(nb, sb, plan)
	Ports(nb, sb, cache, plan)

	prefix, _ := idalloc.ParseMACPrefix("02:00:00")
	pool := idalloc.NewMACPool()
	updatesBefore := len(plan.Updates)
	ApplyIPAM(cache, nb, pool, prefix, plan)

	assert.Equal(t, updatesBefore, len(plan.Updates), "a port whose dynamic address is already fully assigned needs no new dynamic_addresses write")
	assert.Equal(t, "02:00:00:00:00:05", cache.Ports["p1"].MAC)
}

func TestClassifyPortIgnoresDuplicateDynamicRequest(t *testing.T) {
	lsp := &model.LogicalSwitchPort{
		UUID: "lsp1", Name: "p1",
		Addresses: []string{"dynamic 10.0.0.5", "dynamic 10.0.0.9"},
	}

	req := classifyPort(lsp)

	require.NotNil(t, req)
	assert.Equal(t, "10.0.0.5", req.requestIPv4, "the first dynamic request must win over a later duplicate")
}
