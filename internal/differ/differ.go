// Package differ implements C9 (spec.md §4.9): it diffs the flow set C7/C8
// computed in memory against the observed SB Logical_Flow rows, and the
// Multicast_Group/IGMP_Group rows C5 computed against their SB counterparts,
// producing insert/delete row operations. Nothing here touches a database
// connection; internal/ovsdb applies the resulting model.Plan in one
// transaction (spec.md §4.9 "Writes are batched in a single transaction per
// cycle; on any failure the entire cycle's writes are discarded and retried
// next poll").
package differ

import (
	"sort"
	"strconv"

	"github.com/ovnxlate/ovnxlate/internal/flow"
	"github.com/ovnxlate/ovnxlate/internal/model"
)

// Flows diffs the computed set against the observed SB Logical_Flow rows by
// the five-field identity (spec.md §4.9 "A computed flow and an observed row
// are the same flow iff they agree on all five identity fields"), appending
// inserts and deletes to plan. Flows present in both are left untouched —
// Logical_Flow rows are immutable once written, so there is no update case.
func Flows(computed *flow.Set, observed []*model.LogicalFlow, plan *model.Plan) {
	observedByKey := make(map[string]*model.LogicalFlow, len(observed))
	for _, row := range observed {
		observedByKey[flowRowKey(row)] = row
	}

	wanted := computed.All()
	sort.Slice(wanted, func(i, j int) bool {
		return flowSortKey(wanted[i]) < flowSortKey(wanted[j])
	})

	seen := make(map[string]bool, len(wanted))
	for _, f := range wanted {
		key := flowKey(f)
		seen[key] = true
		if _, ok := observedByKey[key]; ok {
			continue
		}
		plan.Insert("Logical_Flow", logicalFlowRow(f))
	}

	for key, row := range observedByKey {
		if seen[key] {
			continue
		}
		plan.Delete("Logical_Flow", row.UUID, "no longer computed")
	}
}

// logicalFlowRow renders a computed flow.Flow into the SB row shape, with the
// external_ids stage-name/source/stage-hint triple spec.md §4.9 requires on
// every insert.
func logicalFlowRow(f *flow.Flow) *model.LogicalFlow {
	extIDs := map[string]string{
		model.LFExtIDStageName: f.Stage.Name(),
		model.LFExtIDSource:    "ovnxlate",
	}
	if f.Hint != "" {
		extIDs[model.LFExtIDStageHint] = f.Hint
	}
	return &model.LogicalFlow{
		LogicalDatapath: f.Datapath,
		Pipeline:        f.Stage.Pipeline().String(),
		TableID:         int(f.Stage.Table()),
		Priority:        f.Priority,
		Match:           f.Match,
		Actions:         f.Actions,
		ExternalIDs:     extIDs,
	}
}

// flowKey is the identity key shared between a computed flow.Flow and the SB
// row it would produce, so the two can be compared without building a row
// for every computed flow up front.
func flowKey(f *flow.Flow) string {
	return flowIdentity(f.Datapath, f.Stage.Pipeline().String(), int(f.Stage.Table()), f.Priority, f.Match, f.Actions)
}

func flowRowKey(row *model.LogicalFlow) string {
	return flowIdentity(row.LogicalDatapath, row.Pipeline, row.TableID, row.Priority, row.Match, row.Actions)
}

func flowIdentity(datapath, pipeline string, table, priority int, match, actions string) string {
	return datapath + "\x00" + pipeline + "\x00" + strconv.Itoa(table) + "\x00" + strconv.Itoa(priority) + "\x00" + match + "\x00" + actions
}

func flowSortKey(f *flow.Flow) string {
	return f.Datapath + "\x00" + strconv.Itoa(int(f.Stage)) + "\x00" + strconv.Itoa(f.Priority) + "\x00" + f.Match
}

// MulticastGroups diffs computed Multicast_Group rows against the observed
// ones by (datapath, name) identity, inserting new/changed groups and
// deleting stale ones wholesale (spec.md §4.5/§4.9: a group's port list is
// small and rewritten as a whole row rather than column-patched).
func MulticastGroups(computed []*model.MulticastGroup, observed []*model.MulticastGroup, plan *model.Plan) {
	observedByKey := make(map[string]*model.MulticastGroup, len(observed))
	for _, row := range observed {
		observedByKey[row.Datapath+"\x00"+row.Name] = row
	}

	seen := make(map[string]bool, len(computed))
	for _, g := range computed {
		key := g.Datapath + "\x00" + g.Name
		seen[key] = true
		existing, ok := observedByKey[key]
		if !ok {
			plan.Insert("Multicast_Group", g)
			continue
		}
		if existing.TunnelKey != g.TunnelKey || !samePorts(existing.Ports, g.Ports) {
			plan.Delete("Multicast_Group", existing.UUID, "membership changed")
			plan.Insert("Multicast_Group", g)
		}
	}

	for key, row := range observedByKey {
		if seen[key] {
			continue
		}
		plan.Delete("Multicast_Group", row.UUID, "no longer computed")
	}
}

// IGMPGroups diffs computed IGMP_Group aggregates against the observed rows
// by (datapath, address) identity the same way MulticastGroups does; chassis
// is left as learned by ovn-controller and is never written here (spec.md
// §4.5 "chassis is populated by the controller that owns the port, never by
// this translator").
func IGMPGroups(computed []*model.IGMPGroup, observed []*model.IGMPGroup, plan *model.Plan) {
	observedByKey := make(map[string]*model.IGMPGroup, len(observed))
	for _, row := range observed {
		observedByKey[row.Datapath+"\x00"+row.Address] = row
	}

	seen := make(map[string]bool, len(computed))
	for _, g := range computed {
		key := g.Datapath + "\x00" + g.Address
		seen[key] = true
		existing, ok := observedByKey[key]
		if !ok {
			plan.Insert("IGMP_Group", g)
			continue
		}
		if !samePorts(existing.Ports, g.Ports) {
			plan.Delete("IGMP_Group", existing.UUID, "membership changed")
			plan.Insert("IGMP_Group", g)
		}
	}

	for key, row := range observedByKey {
		if seen[key] {
			continue
		}
		plan.Delete("IGMP_Group", row.UUID, "no longer computed")
	}
}

func samePorts(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
