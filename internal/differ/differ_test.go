package differ

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovnxlate/ovnxlate/internal/flow"
	"github.com/ovnxlate/ovnxlate/internal/model"
)

func TestFlowsInsertsNewAndDeletesStale(t *testing.T) {
	set := flow.NewSet()
	set.Add(&flow.Flow{Datapath: "ls1", Stage: flow.SwitchIngress(flow.LSInACL), Priority: 1000, Match: "ip4", Actions: "next;"})

	observed := []*model.LogicalFlow{
		{UUID: "stale-1", LogicalDatapath: "ls1", Pipeline: "ingress", TableID: flow.LSInACL, Priority: 999, Match: "ip4", Actions: "drop;"},
	}

	plan := &model.Plan{}
	Flows(set, observed, plan)

	require.Len(t, plan.Inserts, 1)
	assert.Equal(t, "Logical_Flow", plan.Inserts[0].Table)
	row := plan.Inserts[0].Row.(*model.LogicalFlow)
	assert.Equal(t, "ls1", row.LogicalDatapath)
	assert.Equal(t, 1000, row.Priority)
	assert.Equal(t, flow.SwitchIngress(flow.LSInACL).Name(), row.ExternalIDs[model.LFExtIDStageName])

	require.Len(t, plan.Deletes, 1)
	assert.Equal(t, "stale-1", plan.Deletes[0].UUID)
}

func TestFlowsLeavesMatchingFlowUntouched(t *testing.T) {
	set := flow.NewSet()
	set.Add(&flow.Flow{Datapath: "ls1", Stage: flow.SwitchIngress(flow.LSInACL), Priority: 1000, Match: "ip4", Actions: "next;"})

	observed := []*model.LogicalFlow{
		{UUID: "keep-1", LogicalDatapath: "ls1", Pipeline: "ingress", TableID: flow.LSInACL, Priority: 1000, Match: "ip4", Actions: "next;"},
	}

	plan := &model.Plan{}
	Flows(set, observed, plan)

	assert.Empty(t, plan.Inserts)
	assert.Empty(t, plan.Deletes)
}

func TestMulticastGroupsReinsertsOnMembershipChange(t *testing.T) {
	computed := []*model.MulticastGroup{
		{Datapath: "ls1", Name: model.MCGroupFlood, TunnelKey: model.MCGroupFloodKey, Ports: []string{"p1", "p2"}},
	}
	observed := []*model.MulticastGroup{
		{UUID: "mg1", Datapath: "ls1", Name: model.MCGroupFlood, TunnelKey: model.MCGroupFloodKey, Ports: []string{"p1"}},
	}

	plan := &model.Plan{}
	MulticastGroups(computed, observed, plan)

	require.Len(t, plan.Deletes, 1)
	assert.Equal(t, "mg1", plan.Deletes[0].UUID)
	require.Len(t, plan.Inserts, 1)
	if diff := cmp.Diff(computed[0], plan.Inserts[0].Row); diff != "" {
		t.Errorf("inserted row mismatch (-want +got):\n%s", diff)
	}
}

func TestMulticastGroupsDeletesGroupNoLongerComputed(t *testing.T) {
	observed := []*model.MulticastGroup{
		{UUID: "mg-gone", Datapath: "ls1", Name: model.MCGroupUnknown, TunnelKey: model.MCGroupUnknownKey},
	}

	plan := &model.Plan{}
	MulticastGroups(nil, observed, plan)

	require.Len(t, plan.Deletes, 1)
	assert.Equal(t, "mg-gone", plan.Deletes[0].UUID)
	assert.Empty(t, plan.Inserts)
}

func TestIGMPGroupsSkipsUnchangedMembership(t *testing.T) {
	computed := []*model.IGMPGroup{
		{Datapath: "ls1", Address: "239.1.1.1", Ports: []string{"p1"}},
	}
	observed := []*model.IGMPGroup{
		{UUID: "ig1", Datapath: "ls1", Address: "239.1.1.1", Ports: []string{"p1"}},
	}

	plan := &model.Plan{}
	IGMPGroups(computed, observed, plan)

	assert.True(t, plan.Empty())
}
