package reconcile

import (
	"fmt"
	"sort"

	"github.com/ovnxlate/ovnxlate/internal/model"
)

// HAChassisGroups implements C4 (spec.md §4.4): for every LRP declaring a
// gateway in one of the three legacy forms, stage one SB HA_Chassis_Group
// (preference order ha_chassis_group > gateway_chassis > redirect-chassis),
// rewrite it in place when its membership drifted, and delete whatever group
// name no LRP claims this cycle anymore.
//
// ref_chassis (the set of chassis actually reachable through the router
// group the gateway belongs to) is computed separately in routergroup.go,
// once router groups exist; this pass only stages Name/Members.
func HAChassisGroups(nb model.NorthboundSnapshot, sb model.SouthboundSnapshot, cache *model.Cache, plan *model.Plan) {
	dpByLRP := make(map[string]*model.Datapath)
	for _, lr := range nb.Routers {
		if dp, ok := cache.Datapaths[lr.UUID]; ok {
			dpByLRP[lr.UUID] = dp
		}
	}
	sbGroups := make(map[string]*model.HAChassisGroupSB)
	for _, g := range sb.HAGroups {
		sbGroups[g.Name] = g
	}

	claimed := make(map[string]bool)

	for _, lr := range nb.Routers {
		for _, portUUID := range lr.Ports {
			lrp, ok := nb.RouterPorts[portUUID]
			if !ok {
				continue
			}

			name, members := gatewayDeclaration(lrp, nb)
			if name == "" {
				continue
			}
			claimed[name] = true
			if dp, ok := dpByLRP[lr.UUID]; ok {
				dp.GatewayHAGroup = name
			}

			state := &model.HAGroupState{Name: name, Members: members}
			cache.HAGroups[name] = state

			existing, ok := sbGroups[name]
			if !ok {
				plan.Insert("HA_Chassis_Group", &model.HAChassisGroupSB{
					Name:      name,
					HaChassis: nil, // populated by the differ once member rows are allocated
				})
				continue
			}
			if haGroupDrifted(existing, sb, members) {
				plan.Update("HA_Chassis_Group", existing.UUID, &model.HAChassisGroupSB{
					Name:      name,
					HaChassis: existing.HaChassis,
				})
			}
		}
	}

	for name, g := range sbGroups {
		if !claimed[name] {
			plan.Delete("HA_Chassis_Group", g.UUID, fmt.Sprintf("no LRP declares gateway group %s anymore", name))
		}
	}
}

// RefChassis implements spec.md §4.4's "ref_chassis" computation: per router
// group, the set of chassis currently hosting any port on a switch attached
// to a member router, applied to every gateway HA group that router group
// owns. Must run after RouterGroups has populated Cache.RouterGroups and
// each Datapath's GatewayHAGroup.
func RefChassis(cache *model.Cache, sb model.SouthboundSnapshot, plan *model.Plan) {
	chassisByLogicalPort := make(map[string]string)
	for _, pb := range sb.Ports {
		if pb.Chassis != nil && *pb.Chassis != "" {
			chassisByLogicalPort[pb.LogicalPort] = *pb.Chassis
		}
	}
	sbGroups := make(map[string]*model.HAChassisGroupSB)
	for _, g := range sb.HAGroups {
		sbGroups[g.Name] = g
	}

	for _, group := range cache.RouterGroups {
		if len(group.GatewayHAGroups) == 0 {
			continue
		}

		memberRouters := make(map[string]bool, len(group.Routers))
		for _, r := range group.Routers {
			memberRouters[r] = true
		}

		attachedSwitches := make(map[string]bool)
		for _, p := range cache.Ports {
			if p.Kind != model.PortLSP || p.Peer == "" {
				continue
			}
			peer, ok := cache.Ports[p.Peer]
			if !ok || !memberRouters[peer.Datapath] {
				continue
			}
			attachedSwitches[p.Datapath] = true
		}

		chassisSet := make(map[string]bool)
		for _, p := range cache.Ports {
			if p.Kind != model.PortLSP || !attachedSwitches[p.Datapath] {
				continue
			}
			if chassis, ok := chassisByLogicalPort[p.Name]; ok {
				chassisSet[chassis] = true
			}
		}

		refChassis := make([]string, 0, len(chassisSet))
		for c := range chassisSet {
			refChassis = append(refChassis, c)
		}
		sort.Strings(refChassis)

		for groupName := range group.GatewayHAGroups {
			state := cache.HAGroups[groupName]
			if state != nil {
				state.RefChassis = chassisSet
			}
			existing, ok := sbGroups[groupName]
			if ok && !sameStringSet(existing.RefChassis, refChassis) {
				plan.Update("HA_Chassis_Group", existing.UUID, &model.HAChassisGroupSB{
					Name:       groupName,
					HaChassis:  existing.HaChassis,
					RefChassis: refChassis,
				})
			}
		}
	}
}

func sameStringSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sorted := append([]string(nil), a...)
	sort.Strings(sorted)
	for i, v := range sorted {
		if v != b[i] {
			return false
		}
	}
	return true
}

// gatewayDeclaration returns the group name and member list an LRP's gateway
// declaration resolves to, applying the ha_chassis_group > gateway_chassis >
// redirect-chassis preference order (spec.md §4.3, §4.4). Returns "" if the
// LRP declares no gateway at all.
func gatewayDeclaration(lrp *model.LogicalRouterPort, nb model.NorthboundSnapshot) (string, []model.HAChassisMember) {
	if lrp.HaChassisGroup != nil && *lrp.HaChassisGroup != "" {
		group, ok := nb.HAGroups[*lrp.HaChassisGroup]
		if ok {
			return group.Name, membersFromNBGroup(group, nb)
		}
	}
	if len(lrp.GatewayChassis) > 0 {
		return lrp.Name, membersFromGatewayChassis(lrp.GatewayChassis, nb)
	}
	if chassis := lrp.Options[optRedirectChassis]; chassis != "" {
		return fmt.Sprintf("%s_%s", lrp.Name, chassis), []model.HAChassisMember{{ChassisName: chassis, Priority: 100}}
	}
	return "", nil
}

func membersFromNBGroup(group *model.HAChassisGroupNB, nb model.NorthboundSnapshot) []model.HAChassisMember {
	var members []model.HAChassisMember
	for _, uuid := range group.HaChassis {
		hc, ok := nb.HAChassis[uuid]
		if !ok {
			continue
		}
		members = append(members, model.HAChassisMember{ChassisName: hc.ChassisName, Priority: hc.Priority})
	}
	sortMembers(members)
	return members
}

func membersFromGatewayChassis(gcUUIDs []string, nb model.NorthboundSnapshot) []model.HAChassisMember {
	var members []model.HAChassisMember
	for _, uuid := range gcUUIDs {
		gc, ok := nb.GatewayChassis[uuid]
		if !ok {
			continue
		}
		members = append(members, model.HAChassisMember{ChassisName: gc.ChassisName, Priority: gc.Priority})
	}
	sortMembers(members)
	return members
}

func sortMembers(members []model.HAChassisMember) {
	sort.Slice(members, func(i, j int) bool {
		if members[i].Priority != members[j].Priority {
			return members[i].Priority > members[j].Priority
		}
		return members[i].ChassisName < members[j].ChassisName
	})
}

// haGroupDrifted reports whether the staged membership differs from the
// live SB row: member count, per-member priority, per-member chassis-name
// (spec.md §4.4 "A stale group is rewritten in place when any of the
// following differs").
func haGroupDrifted(existing *model.HAChassisGroupSB, sb model.SouthboundSnapshot, wanted []model.HAChassisMember) bool {
	live := make([]model.HAChassisMember, 0, len(existing.HaChassis))
	byUUID := make(map[string]*model.HAChassisSB)
	for _, m := range sb.HAChassis {
		byUUID[m.UUID] = m
	}
	for _, uuid := range existing.HaChassis {
		if m, ok := byUUID[uuid]; ok {
			live = append(live, model.HAChassisMember{ChassisName: m.ChassisName, Priority: m.Priority})
		}
	}
	sortMembers(live)

	if len(live) != len(wanted) {
		return true
	}
	for i := range wanted {
		if live[i] != wanted[i] {
			return true
		}
	}
	return false
}
