package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovnxlate/ovnxlate/internal/model"
)

func TestAddressSetsSynthesizesPortGroupIPv4AndIPv6(t *testing.T) {
	cache := model.NewCache()
	cache.Ports["p1"] = &model.Port{Name: "p1", IPv4: []string{"10.0.0.2"}}
	cache.Ports["p2"] = &model.Port{Name: "p2", IPv4: []string{"10.0.0.50"}}

	nb := model.NorthboundSnapshot{
		PortGroups: []*model.PortGroup{{Name: "pg0", Ports: []string{"p1", "p2"}}},
	}
	sb := model.SouthboundSnapshot{}
	plan := &model.Plan{}

	AddressSets(nb, sb, cache, plan)

	var ip4, ip6 *model.AddressSetSB
	for _, op := range plan.Inserts {
		row := op.Row.(*model.AddressSetSB)
		switch row.Name {
		case "pg0_ip4":
			ip4 = row
		case "pg0_ip6":
			ip6 = row
		}
	}
	require.NotNil(t, ip4)
	require.NotNil(t, ip6)
	assert.Equal(t, []string{"10.0.0.2", "10.0.0.50"}, ip4.Addresses)
	assert.Empty(t, ip6.Addresses)
}

func TestAddressSetsUserSetOverridesSynthetic(t *testing.T) {
	cache := model.NewCache()
	nb := model.NorthboundSnapshot{
		PortGroups:  []*model.PortGroup{{Name: "pg0"}},
		AddressSets: []*model.AddressSet{{Name: "pg0_ip4", Addresses: []string{"192.168.0.1"}}},
	}
	sb := model.SouthboundSnapshot{}
	plan := &model.Plan{}

	AddressSets(nb, sb, cache, plan)

	var found *model.AddressSetSB
	for _, op := range plan.Inserts {
		row := op.Row.(*model.AddressSetSB)
		if row.Name == "pg0_ip4" {
			found = row
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, []string{"192.168.0.1"}, found.Addresses)
}

func TestPortGroupsDeletesOrphan(t *testing.T) {
	nb := model.NorthboundSnapshot{}
	sb := model.SouthboundSnapshot{
		PortGroups: []*model.PortGroupSB{{UUID: "pg1", Name: "stale"}},
	}
	plan := &model.Plan{}

	PortGroups(nb, sb, plan)

	require.Len(t, plan.Deletes, 1)
	assert.Equal(t, "pg1", plan.Deletes[0].UUID)
}

func TestMetersReplacesOnBandChange(t *testing.T) {
	nb := model.NorthboundSnapshot{
		Meters: []*model.Meter{{Name: "m0", Unit: "pktps", Bands: []string{"b1"}}},
		MeterBands: map[string]*model.MeterBand{
			"b1": {Action: "drop", Rate: 100, Burst: 10},
		},
	}
	sb := model.SouthboundSnapshot{
		Meters: []*model.MeterSB{{UUID: "sbm1", Name: "m0", Unit: "pktps", Bands: []string{"drop/50/10"}}},
	}
	plan := &model.Plan{}

	Meters(nb, sb, plan)

	require.Len(t, plan.Deletes, 1)
	assert.Equal(t, "sbm1", plan.Deletes[0].UUID)
	require.Len(t, plan.Inserts, 1)
	row := plan.Inserts[0].Row.(*model.MeterSB)
	assert.Equal(t, []string{"drop/100/10"}, row.Bands)
}

func TestDHCPCatalogsRemovesUnsupportedAndInsertsMissing(t *testing.T) {
	plan := &model.Plan{}
	observedV4 := []*model.DHCPOptionsSB{
		{UUID: "junk", Name: "not_a_real_option", Code: 99, Type: "str"},
	}

	DHCPCatalogs(plan, observedV4, nil)

	require.Contains(t, deletedUUIDs(plan), "junk")
	assert.True(t, len(plan.Inserts) >= len(SupportedDHCPv4Options)+len(SupportedDHCPv6Options))
}

func deletedUUIDs(plan *model.Plan) []string {
	var out []string
	for _, op := range plan.Deletes {
		out = append(out, op.UUID)
	}
	return out
}

func TestIPMulticastConfigInsertsPerSwitch(t *testing.T) {
	cache := model.NewCache()
	cache.Datapaths["ls1"] = &model.Datapath{Kind: model.DatapathSwitch, NBUUID: "ls1", Multicast: &model.MulticastConfig{Enabled: true, TableSize: 2048}}
	cache.Datapaths["lr1"] = &model.Datapath{Kind: model.DatapathRouter, NBUUID: "lr1"}

	plan := &model.Plan{}
	IPMulticastConfig(cache, nil, plan)

	require.Len(t, plan.Inserts, 1)
	row := plan.Inserts[0].Row.(*model.IPMulticastSB)
	assert.Equal(t, "ls1", row.Datapath)
	assert.True(t, row.Enabled)
}
