// Package pipeline implements C7 and C8 (spec.md §4.7, §4.8): translating
// one reconciled Datapath into its logical-flow program. Every Generate*
// function reads the Cache built by internal/reconcile (the one value
// written back is a switch's Multicast.HasUnknown flag, set during L2
// lookup), writing into a shared flow.Set the same way internal/reconcile writes
// into a shared model.Plan.
package pipeline

import (
	"fmt"
	"sort"

	"github.com/ovnxlate/ovnxlate/internal/flow"
	"github.com/ovnxlate/ovnxlate/internal/model"
)

// Conntrack and pipeline-control register bits (spec.md glossary
// "Conntrack register bits"). Real OVN packs these into reg0's low bits;
// the exact bit position is an implementation artifact of a program this
// module never parses back, so any stable, distinct token works.
const (
	regConntrackDefrag  = "reg0[0]"
	regConntrackCommit  = "reg0[1]"
	regConntrackNat     = "reg0[2]"
	regNatRedirect      = "reg0[3]"
	regDHCPOptsResult   = "reg0[4]"
	regDNSLookupResult  = "reg0[5]"
	regPktLarger        = "reg0[6]"
	regEgressLoopback   = "reg0[7]"
)

// Generate builds the full computed flow program for every datapath in the
// cache, switches and routers alike, and adds every flow to set.
func Generate(cache *model.Cache, set *flow.Set) {
	for _, uuid := range sortedDatapaths(cache) {
		dp := cache.Datapaths[uuid]
		switch dp.Kind {
		case model.DatapathSwitch:
			GenerateSwitch(cache, dp, set)
		case model.DatapathRouter:
			GenerateRouter(cache, dp, set)
		}
	}
}

func sortedDatapaths(cache *model.Cache) []string {
	out := make([]string, 0, len(cache.Datapaths))
	for uuid := range cache.Datapaths {
		out = append(out, uuid)
	}
	sort.Strings(out)
	return out
}

// portsOf returns every port belonging to dp, sorted by name so flow
// emission order is deterministic (not load-bearing for correctness, per
// spec.md §5, but makes test fixtures and diffs reproducible).
func portsOf(cache *model.Cache, dpUUID string) []*model.Port {
	var out []*model.Port
	for _, p := range cache.Ports {
		if p.Datapath == dpUUID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func emit(set *flow.Set, dp string, stage flow.Stage, priority int, match, actions string) {
	set.Add(&flow.Flow{Datapath: dp, Stage: stage, Priority: priority, Match: match, Actions: actions})
}

func emitHint(set *flow.Set, dp string, stage flow.Stage, priority int, match, actions, hint string) {
	set.Add(&flow.Flow{Datapath: dp, Stage: stage, Priority: priority, Match: match, Actions: actions, Hint: hint})
}

// quoted renders a port name the way match strings reference it:
// `inport == "name"` / `outport == "name"`, using Go's %q quoting, so
// quotes, backslashes and control characters in the name are escaped.
func quoted(name string) string {
	return fmt.Sprintf("%q", name)
}
