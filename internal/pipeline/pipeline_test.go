package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovnxlate/ovnxlate/internal/flow"
	"github.com/ovnxlate/ovnxlate/internal/model"
)

func newSwitchCache(t *testing.T) (*model.Cache, *model.Datapath) {
	t.Helper()
	cache := model.NewCache()
	dp := &model.Datapath{Kind: model.DatapathSwitch, NBUUID: "ls1", Name: "sw1", Multicast: &model.MulticastConfig{}}
	cache.Datapaths["ls1"] = dp
	cache.Ports["sw1-p1"] = &model.Port{
		Name: "sw1-p1", Datapath: "ls1", Kind: model.PortLSP, Enabled: true,
		MAC: "02:00:00:00:00:01", IPv4: []string{"10.0.0.2"},
		PortSecurity: []model.PortSecurityEntry{{MAC: "02:00:00:00:00:01", IPv4: []string{"10.0.0.2"}}},
	}
	return cache, dp
}

func TestGenerateSwitchAdmitsEnabledPort(t *testing.T) {
	cache, _ := newSwitchCache(t)
	set := flow.NewSet()
	Generate(cache, set)

	admission := flow.SwitchIngress(flow.LSInPortSecL2)
	found := false
	for _, f := range set.All() {
		if f.Stage == admission && f.Priority == 50 {
			found = true
			assert.Contains(t, f.Match, "sw1-p1")
		}
	}
	assert.True(t, found, "expected an admit flow for the enabled port")
}

func TestGenerateSwitchPortSecurityEmitsAllowAndDropPair(t *testing.T) {
	cache, _ := newSwitchCache(t)
	set := flow.NewSet()
	Generate(cache, set)

	l2In := flow.SwitchIngress(flow.LSInPortSecL2)
	var allow, drop bool
	for _, f := range set.All() {
		if f.Stage != l2In {
			continue
		}
		if f.Priority == 90 {
			allow = true
		}
		if f.Priority == 80 && f.Actions == "drop;" {
			drop = true
		}
	}
	assert.True(t, allow, "expected a priority-90 allow flow for the port-security entry")
	assert.True(t, drop, "expected a priority-80 catch-all drop for ARP/ND")
}

func TestGenerateSwitchACLRejectSynthesizesResets(t *testing.T) {
	cache, dp := newSwitchCache(t)
	dp.ACLs = []*model.ACL{{UUID: "acl1", Direction: model.ACLDirectionToLport, Priority: 10, Match: "ip4", Action: model.ACLActionReject}}
	set := flow.NewSet()
	Generate(cache, set)

	stage := flow.SwitchEgress(flow.LSOutACL)
	var found *flow.Flow
	for _, f := range set.All() {
		if f.Stage == stage && f.Priority == 10+model.ACLPriorityOffset {
			found = f
		}
	}
	require.NotNil(t, found)
	assert.Contains(t, found.Actions, "tcp_reset")
	assert.Contains(t, found.Actions, "icmp4")
}

func TestGenerateSwitchL2LookupFloodsUnknownMAC(t *testing.T) {
	cache, _ := newSwitchCache(t)
	cache.Ports["sw1-unknown"] = &model.Port{Name: "sw1-unknown", Datapath: "ls1", Kind: model.PortLSP, Enabled: true, MAC: "unknown"}
	set := flow.NewSet()
	Generate(cache, set)

	stage := flow.SwitchIngress(flow.LSInL2Lkup)
	var sawUnknown bool
	for _, f := range set.All() {
		if f.Stage == stage && f.Priority == 0 {
			sawUnknown = true
			assert.Contains(t, f.Actions, model.MCGroupUnknown)
		}
	}
	assert.True(t, sawUnknown)
}

func newRouterCache(t *testing.T) (*model.Cache, *model.Datapath) {
	t.Helper()
	cache := model.NewCache()
	dp := &model.Datapath{Kind: model.DatapathRouter, NBUUID: "lr1", Name: "r1", RouterGroup: -1, Options: map[string]string{}}
	cache.Datapaths["lr1"] = dp
	cache.Ports["lr1-p1"] = &model.Port{
		Name: "lr1-p1", Datapath: "lr1", Kind: model.PortLRP, Enabled: true,
		MAC: "02:00:00:00:01:00", Networks: []string{"10.0.0.1/24"}, IPv4: []string{"10.0.0.1/24"},
	}
	return cache, dp
}

func TestGenerateRouterConnectedRouteUsesLPMPriority(t *testing.T) {
	cache, _ := newRouterCache(t)
	set := flow.NewSet()
	Generate(cache, set)

	stage := flow.RouterIngress(flow.LRInIPRouting)
	var found *flow.Flow
	for _, f := range set.All() {
		if f.Stage == stage {
			found = f
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, 2*24+1, found.Priority)
}

func TestGenerateRouterDeliveryDropsByDefaultAndOutputsEnabledPort(t *testing.T) {
	cache, _ := newRouterCache(t)
	set := flow.NewSet()
	Generate(cache, set)

	stage := flow.RouterEgress(flow.LROutDelivery)
	var sawDrop, sawOutput bool
	for _, f := range set.All() {
		if f.Stage != stage {
			continue
		}
		if f.Priority == 0 && f.Actions == "drop;" {
			sawDrop = true
		}
		if f.Priority == 100 && f.Actions == "output;" {
			sawOutput = true
		}
	}
	assert.True(t, sawDrop)
	assert.True(t, sawOutput)
}

func TestGenerateRouterDNATInstallsDNATAndUnDNAT(t *testing.T) {
	cache, dp := newRouterCache(t)
	dp.DGWPort = "lr1-p1"
	dp.RedirectPort = "cr-lr1-p1"
	dp.NAT = []*model.NAT{{Type: model.NATTypeDNAT, ExternalIP: "203.0.113.5", LogicalIP: "10.0.0.50/32"}}
	set := flow.NewSet()
	Generate(cache, set)

	dnat := flow.RouterIngress(flow.LRInDNAT)
	undnat := flow.RouterEgress(flow.LROutUnDNAT)
	var sawDNAT, sawUnDNAT bool
	for _, f := range set.All() {
		if f.Stage == dnat && f.Priority == 100 {
			sawDNAT = true
			assert.Contains(t, f.Actions, "ct_dnat(10.0.0.50/32)")
		}
		if f.Stage == undnat && f.Priority == 33 {
			sawUnDNAT = true
		}
	}
	assert.True(t, sawDNAT)
	assert.True(t, sawUnDNAT)
}

func TestGenerateSwitchL2LookupEmitsLearntGroupWithClones(t *testing.T) {
	cache, dp := newSwitchCache(t)
	dp.IGMPGroups = []*model.MulticastGroup{
		{Datapath: dp.NBUUID, Name: "::ffff:239.1.1.1", TunnelKey: 100, Ports: []string{"sw1-p1"}},
	}
	dp.ReservedGroups = map[string]*model.MulticastGroup{
		model.MCGroupMrouterFlood: {Name: model.MCGroupMrouterFlood, Ports: []string{"sw1-relay"}},
		model.MCGroupStatic:       {Name: model.MCGroupStatic, Ports: []string{"sw1-static"}},
	}
	set := flow.NewSet()
	Generate(cache, set)

	stage := flow.SwitchIngress(flow.LSInL2Lkup)
	var found *flow.Flow
	for _, f := range set.All() {
		if f.Stage == stage && f.Priority == 90 {
			found = f
		}
	}
	require.NotNil(t, found, "expected a priority-90 flow for the learnt group")
	assert.Contains(t, found.Match, "ip4.dst == 239.1.1.1")
	assert.Contains(t, found.Actions, "outport = \"::ffff:239.1.1.1\"")
	assert.Contains(t, found.Actions, "clone { outport = \""+model.MCGroupMrouterFlood+"\"")
	assert.Contains(t, found.Actions, "clone { outport = \""+model.MCGroupStatic+"\"")
}

func TestGenerateSwitchL2LookupPriority80PrefersRelayOverDrop(t *testing.T) {
	cache, dp := newSwitchCache(t)
	dp.ReservedGroups = map[string]*model.MulticastGroup{
		model.MCGroupMrouterFlood: {Name: model.MCGroupMrouterFlood, Ports: []string{"sw1-relay"}},
	}
	set := flow.NewSet()
	Generate(cache, set)

	stage := flow.SwitchIngress(flow.LSInL2Lkup)
	var found *flow.Flow
	for _, f := range set.All() {
		if f.Stage == stage && f.Priority == 80 {
			found = f
		}
	}
	require.NotNil(t, found)
	assert.Contains(t, found.Actions, model.MCGroupMrouterFlood)
}

func TestGenerateSwitchL2LookupPriority80DropsWithNoReservedMembers(t *testing.T) {
	cache, _ := newSwitchCache(t)
	set := flow.NewSet()
	Generate(cache, set)

	stage := flow.SwitchIngress(flow.LSInL2Lkup)
	var found *flow.Flow
	for _, f := range set.All() {
		if f.Stage == stage && f.Priority == 80 {
			found = f
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, "drop;", found.Actions)
}
