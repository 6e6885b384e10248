package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovnxlate/ovnxlate/internal/model"
)

func TestReservedGroupsPopulatesAllFivePerSwitch(t *testing.T) {
	cache := model.NewCache()
	cache.Datapaths["ls1"] = &model.Datapath{Kind: model.DatapathSwitch, NBUUID: "ls1"}
	cache.Datapaths["lr1"] = &model.Datapath{Kind: model.DatapathRouter, NBUUID: "lr1", MulticastRelay: true}

	cache.Ports["ls1-p1"] = &model.Port{Name: "ls1-p1", Datapath: "ls1", Kind: model.PortLSP, MAC: "02:00:00:00:00:01"}
	cache.Ports["ls1-p2"] = &model.Port{Name: "ls1-p2", Datapath: "ls1", Kind: model.PortLSP, MAC: "02:00:00:00:00:02", McastFlood: true}
	cache.Ports["ls1-p3"] = &model.Port{Name: "ls1-p3", Datapath: "ls1", Kind: model.PortLSP, MAC: "02:00:00:00:00:03", McastFloodReports: true}
	cache.Ports["ls1-p4"] = &model.Port{Name: "ls1-p4", Datapath: "ls1", Kind: model.PortLSP, MAC: "unknown"}
	cache.Ports["ls1-p5"] = &model.Port{Name: "ls1-p5", Datapath: "ls1", Kind: model.PortLSP, Peer: "lr1-p1"}
	cache.Ports["lr1-p1"] = &model.Port{Name: "lr1-p1", Datapath: "lr1", Kind: model.PortLRP, Peer: "ls1-p5"}

	groups := reservedGroups(cache)

	byName := make(map[string]*model.MulticastGroup)
	for _, g := range groups {
		if g.Datapath == "ls1" {
			byName[g.Name] = g
		}
	}
	require.Len(t, byName, 5)

	assert.ElementsMatch(t, []string{"ls1-p1", "ls1-p2", "ls1-p3", "ls1-p4", "ls1-p5"}, byName[model.MCGroupFlood].Ports)
	assert.Equal(t, []string{"ls1-p5"}, byName[model.MCGroupMrouterFlood].Ports)
	assert.Equal(t, []string{"ls1-p3"}, byName[model.MCGroupMrouterStatic].Ports)
	assert.Equal(t, []string{"ls1-p2"}, byName[model.MCGroupStatic].Ports)
	assert.Equal(t, []string{"ls1-p4"}, byName[model.MCGroupUnknown].Ports)

	dp := cache.Datapaths["ls1"]
	require.NotNil(t, dp.ReservedGroups)
	assert.Same(t, byName[model.MCGroupFlood], dp.ReservedGroups[model.MCGroupFlood])
}

func TestMulticastAttachesLearntGroupsToSwitchDatapath(t *testing.T) {
	cache := model.NewCache()
	cache.Datapaths["ls1"] = &model.Datapath{Kind: model.DatapathSwitch, NBUUID: "ls1"}
	cache.Ports["ls1-p1"] = &model.Port{Name: "ls1-p1", Datapath: "ls1", Kind: model.PortLSP}

	nb := model.NorthboundSnapshot{Switches: []*model.LogicalSwitch{{UUID: "ls1", Name: "sw1"}}}
	sb := model.SouthboundSnapshot{
		IGMPGroups: []*model.IGMPGroup{
			{Datapath: "ls1", Address: "239.1.1.1", Ports: []string{"ls1-p1"}},
		},
	}

	groups, _ := Multicast(nb, sb, cache, 32768, 32868)
	assert.NotEmpty(t, groups)

	dp := cache.Datapaths["ls1"]
	require.Len(t, dp.IGMPGroups, 1)
	assert.Equal(t, "::ffff:239.1.1.1", dp.IGMPGroups[0].Name)
}
