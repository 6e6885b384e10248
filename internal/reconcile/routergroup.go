package reconcile

import (
	"sort"

	"github.com/ovnxlate/ovnxlate/internal/model"
)

// RouterGroups implements C6 (spec.md §4.6): partition routers into
// connected components where two routers are adjacent if some logical
// switch carries a router-port peer into both, record each router's
// component index on its Datapath, and collect the set of gateway
// HA-chassis-group names reachable from that component.
func RouterGroups(cache *model.Cache) {
	adjacency := make(map[string]map[string]bool)
	routers := make([]string, 0)
	for uuid, dp := range cache.Datapaths {
		if dp.Kind != model.DatapathRouter {
			continue
		}
		routers = append(routers, uuid)
		adjacency[uuid] = make(map[string]bool)
	}
	sort.Strings(routers)

	for _, ls := range switchDatapaths(cache) {
		var attachedRouters []string
		for _, p := range cache.Ports {
			if p.Datapath != ls || p.Kind != model.PortLSP || p.Peer == "" {
				continue
			}
			peer, ok := cache.Ports[p.Peer]
			if !ok {
				continue
			}
			if dp, ok := cache.Datapaths[peer.Datapath]; ok && dp.Kind == model.DatapathRouter {
				attachedRouters = append(attachedRouters, peer.Datapath)
			}
		}
		for i := range attachedRouters {
			for j := range attachedRouters {
				if i == j {
					continue
				}
				adjacency[attachedRouters[i]][attachedRouters[j]] = true
			}
		}
	}

	visited := make(map[string]bool)
	cache.RouterGroups = nil

	for _, uuid := range routers {
		if visited[uuid] {
			continue
		}
		component := collectComponent(uuid, adjacency, visited)
		sort.Strings(component)

		group := &model.RouterGroup{Routers: component, GatewayHAGroups: make(map[string]bool)}
		idx := len(cache.RouterGroups)
		cache.RouterGroups = append(cache.RouterGroups, group)

		for _, member := range component {
			dp := cache.Datapaths[member]
			dp.RouterGroup = idx
			if dp.GatewayHAGroup != "" {
				group.GatewayHAGroups[dp.GatewayHAGroup] = true
			}
		}
	}
}

func switchDatapaths(cache *model.Cache) []string {
	var out []string
	for uuid, dp := range cache.Datapaths {
		if dp.Kind == model.DatapathSwitch {
			out = append(out, uuid)
		}
	}
	sort.Strings(out)
	return out
}

func collectComponent(start string, adjacency map[string]map[string]bool, visited map[string]bool) []string {
	var component []string
	queue := []string{start}
	visited[start] = true
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		component = append(component, cur)
		neighbors := make([]string, 0, len(adjacency[cur]))
		for n := range adjacency[cur] {
			neighbors = append(neighbors, n)
		}
		sort.Strings(neighbors)
		for _, n := range neighbors {
			if !visited[n] {
				visited[n] = true
				queue = append(queue, n)
			}
		}
	}
	return component
}
