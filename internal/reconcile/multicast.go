package reconcile

import (
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/ovnxlate/ovnxlate/internal/idalloc"
	"github.com/ovnxlate/ovnxlate/internal/model"
)

// Multicast clamping defaults and bounds (spec.md §4.5 "clamped to
// documented minima/maxima"; no upstream original_source/ was retrievable
// for this spec, so these mirror OVN's own long-standing snooping
// defaults).
const (
	mcastIdleTimeoutDefault = 300
	mcastIdleTimeoutMin     = 15
	mcastIdleTimeoutMax     = 3600
	mcastQueryIntervalMin   = 1
	mcastQueryIntervalMax   = 1800
	mcastTableSizeDefault   = 2048
)

// Multicast other_config keys, matching the well-known NB switch options
// this module reads (spec.md §3 "Multicast state").
const (
	optMcastSnoop            = "mcast_snoop"
	optMcastQuerier           = "mcast_querier"
	optMcastFloodUnregistered = "mcast_flood_unregistered"
	optMcastTableSize         = "mcast_table_size"
	optMcastIdleTimeout       = "mcast_idle_timeout"
	optMcastQueryInterval     = "mcast_query_interval"
	optMcastEthSrc            = "mcast_eth_src"
	optMcastIp4Src            = "mcast_ip4_src"
	optMcastRelay             = "mcast_relay"
	optMcastFloodStatic       = "mcast_flood_static"
)

// Multicast implements C5 (spec.md §4.5): clamp per-switch snooping config,
// fold the observed SB IGMP_Group rows into per-(datapath, group) aggregates
// excluding already-flooded ports, mirror learned groups onto relay-enabled
// routers, and key every aggregate from the configured multicast range. The
// reserved groups (FLOOD/MROUTER_FLOOD/MROUTER_STATIC/STATIC/UNKNOWN) are
// installed on every switch datapath unconditionally.
//
// Returns the full computed Multicast_Group and IGMP_Group row sets;
// internal/differ reconciles them against the observed SB tables the same
// way it reconciles logical flows (spec.md §4.9).
func Multicast(nb model.NorthboundSnapshot, sb model.SouthboundSnapshot, cache *model.Cache, rangeMin, rangeMax int) ([]*model.MulticastGroup, []*model.IGMPGroup) {
	configureSwitches(nb, cache)
	configureRouters(nb, cache)

	aggregates := aggregateIGMPGroups(sb, cache)
	mirrorOntoRelayRouters(cache, aggregates)

	keyAlloc := idalloc.NewTunnelKeyAllocator(rangeMin, rangeMax)
	used := make(map[string]map[int]bool)
	hints := make(map[string]int)

	var groups []*model.MulticastGroup
	var igmp []*model.IGMPGroup

	names := make([]string, 0, len(aggregates))
	for k := range aggregates {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, k := range names {
		agg := aggregates[k]
		if len(agg.ports) == 0 {
			continue
		}
		dpUsed := used[agg.datapath]
		if dpUsed == nil {
			dpUsed = make(map[int]bool)
			used[agg.datapath] = dpUsed
		}
		key := keyAlloc.Allocate(dpUsed, hints[agg.datapath])
		if key == 0 {
			continue // exhausted: aggregate dropped per spec.md §4.5
		}
		dpUsed[key] = true
		hints[agg.datapath] = key

		ports := sortedPorts(agg.ports)
		group := &model.MulticastGroup{
			Datapath:  agg.datapath,
			Name:      agg.address,
			TunnelKey: key,
			Ports:     ports,
		}
		groups = append(groups, group)
		igmp = append(igmp, &model.IGMPGroup{
			Address:  agg.address,
			Datapath: agg.datapath,
			Ports:    ports,
		})

		if dp, ok := cache.Datapaths[agg.datapath]; ok && dp.Kind == model.DatapathSwitch {
			dp.IGMPGroups = append(dp.IGMPGroups, group)
		}
	}

	groups = append(groups, reservedGroups(cache)...)
	return groups, igmp
}

func configureSwitches(nb model.NorthboundSnapshot, cache *model.Cache) {
	for _, ls := range nb.Switches {
		dp, ok := cache.Datapaths[ls.UUID]
		if !ok {
			continue
		}
		mc := &model.MulticastConfig{
			Enabled:           ls.OtherConfig[optMcastSnoop] == "true",
			Querier:           ls.OtherConfig[optMcastQuerier] != "false",
			FloodUnregistered: ls.OtherConfig[optMcastFloodUnregistered] == "true",
			EthSrc:            ls.OtherConfig[optMcastEthSrc],
			Ip4Src:            ls.OtherConfig[optMcastIp4Src],
		}
		mc.TableSize = atoiOr(ls.OtherConfig[optMcastTableSize], mcastTableSizeDefault)

		idle := atoiOr(ls.OtherConfig[optMcastIdleTimeout], mcastIdleTimeoutDefault)
		mc.IdleTimeout = clamp(idle, mcastIdleTimeoutMin, mcastIdleTimeoutMax)

		queryDefault := mc.IdleTimeout / 2
		query := atoiOr(ls.OtherConfig[optMcastQueryInterval], queryDefault)
		mc.QueryInterval = clamp(query, mcastQueryIntervalMin, mcastQueryIntervalMax)

		dp.Multicast = mc
	}
}

func configureRouters(nb model.NorthboundSnapshot, cache *model.Cache) {
	for _, lr := range nb.Routers {
		dp, ok := cache.Datapaths[lr.UUID]
		if !ok {
			continue
		}
		dp.MulticastRelay = lr.Options[optMcastRelay] == "true"
		dp.FloodStatic = lr.Options[optMcastFloodStatic] == "true"
	}
}

// igmpAggregate is the in-memory fold of every SB IGMP_Group row sharing a
// (datapath, normalized address) key (spec.md §4.5).
type igmpAggregate struct {
	datapath string
	address  string
	ports    map[string]bool
}

func aggregateIGMPGroups(sb model.SouthboundSnapshot, cache *model.Cache) map[string]*igmpAggregate {
	aggregates := make(map[string]*igmpAggregate)
	for _, row := range sb.IGMPGroups {
		addr := normalizeGroupAddress(row.Address)
		key := row.Datapath + "/" + addr
		agg, ok := aggregates[key]
		if !ok {
			agg = &igmpAggregate{datapath: row.Datapath, address: addr, ports: make(map[string]bool)}
			aggregates[key] = agg
		}
		for _, portName := range row.Ports {
			if portExcludedFromAggregate(cache, portName) {
				continue
			}
			agg.ports[portName] = true
		}
	}
	return aggregates
}

// portExcludedFromAggregate implements spec.md §4.5 "ports already set to
// flood or whose peer belongs to a relay-enabled router are excluded (they
// receive traffic via the flood group anyway)".
func portExcludedFromAggregate(cache *model.Cache, portName string) bool {
	p, ok := cache.Ports[portName]
	if !ok {
		return false
	}
	if p.McastFlood {
		return true
	}
	return portPeersRelayRouter(cache, portName)
}

// mirrorOntoRelayRouters implements spec.md §4.5 "For each router whose peer
// switch learned a group, a mirror IGMP aggregate is created on the router
// datapath with a single port (the peer router port) so multicast relays
// across the router."
func mirrorOntoRelayRouters(cache *model.Cache, aggregates map[string]*igmpAggregate) {
	mirrors := make(map[string]*igmpAggregate)
	for _, agg := range aggregates {
		dp, ok := cache.Datapaths[agg.datapath]
		if !ok || dp.Kind != model.DatapathSwitch {
			continue
		}
		for portName := range agg.ports {
			p, ok := cache.Ports[portName]
			if !ok || p.Peer == "" {
				continue
			}
			peer, ok := cache.Ports[p.Peer]
			if !ok {
				continue
			}
			peerDP, ok := cache.Datapaths[peer.Datapath]
			if !ok || peerDP.Kind != model.DatapathRouter || !peerDP.MulticastRelay {
				continue
			}
			key := peer.Datapath + "/" + agg.address
			mirror, ok := mirrors[key]
			if !ok {
				mirror = &igmpAggregate{datapath: peer.Datapath, address: agg.address, ports: make(map[string]bool)}
				mirrors[key] = mirror
			}
			mirror.ports[peer.Name] = true
		}
	}
	for key, mirror := range mirrors {
		if _, exists := aggregates[key]; !exists {
			aggregates[key] = mirror
		}
	}
}

// reservedGroups installs the five fixed multicast groups every switch
// carries unconditionally (spec.md §4.5): FLOOD holds every LSP, MROUTER_FLOOD
// holds LSPs peered to a relay-enabled router, MROUTER_STATIC holds ports
// flagged flood_reports, STATIC holds ports flagged flood, and UNKNOWN holds
// ports whose single MAC is the literal "unknown".
func reservedGroups(cache *model.Cache) []*model.MulticastGroup {
	var out []*model.MulticastGroup
	for _, dp := range cache.Datapaths {
		if dp.Kind != model.DatapathSwitch {
			continue
		}
		var floodPorts, mrouterFloodPorts, mrouterStaticPorts, staticPorts, unknownPorts []string
		for name, p := range cache.Ports {
			if p.Datapath != dp.NBUUID || p.Kind != model.PortLSP {
				continue
			}
			floodPorts = append(floodPorts, name)
			if portPeersRelayRouter(cache, name) {
				mrouterFloodPorts = append(mrouterFloodPorts, name)
			}
			if p.McastFloodReports {
				mrouterStaticPorts = append(mrouterStaticPorts, name)
			}
			if p.McastFlood {
				staticPorts = append(staticPorts, name)
			}
			if strings.EqualFold(p.MAC, "unknown") {
				unknownPorts = append(unknownPorts, name)
			}
		}
		sort.Strings(floodPorts)
		sort.Strings(mrouterFloodPorts)
		sort.Strings(mrouterStaticPorts)
		sort.Strings(staticPorts)
		sort.Strings(unknownPorts)

		flood := &model.MulticastGroup{Datapath: dp.NBUUID, Name: model.MCGroupFlood, TunnelKey: model.MCGroupFloodKey, Ports: floodPorts}
		mrouterFlood := &model.MulticastGroup{Datapath: dp.NBUUID, Name: model.MCGroupMrouterFlood, TunnelKey: model.MCGroupMrouterFloodKey, Ports: mrouterFloodPorts}
		mrouterStatic := &model.MulticastGroup{Datapath: dp.NBUUID, Name: model.MCGroupMrouterStatic, TunnelKey: model.MCGroupMrouterStaticKey, Ports: mrouterStaticPorts}
		static := &model.MulticastGroup{Datapath: dp.NBUUID, Name: model.MCGroupStatic, TunnelKey: model.MCGroupStaticKey, Ports: staticPorts}
		unknown := &model.MulticastGroup{Datapath: dp.NBUUID, Name: model.MCGroupUnknown, TunnelKey: model.MCGroupUnknownKey, Ports: unknownPorts}
		out = append(out, flood, mrouterFlood, mrouterStatic, static, unknown)

		dp.ReservedGroups = map[string]*model.MulticastGroup{
			model.MCGroupFlood:         flood,
			model.MCGroupMrouterFlood:  mrouterFlood,
			model.MCGroupMrouterStatic: mrouterStatic,
			model.MCGroupStatic:        static,
			model.MCGroupUnknown:       unknown,
		}
	}
	return out
}

// portPeersRelayRouter reports whether portName's peer port belongs to a
// relay-enabled router datapath, the same condition that excludes a port
// from a learnt-group aggregate in favor of the MROUTER_FLOOD reserved group
// (spec.md §4.5).
func portPeersRelayRouter(cache *model.Cache, portName string) bool {
	p, ok := cache.Ports[portName]
	if !ok || p.Peer == "" {
		return false
	}
	peer, ok := cache.Ports[p.Peer]
	if !ok {
		return false
	}
	peerDP, ok := cache.Datapaths[peer.Datapath]
	return ok && peerDP.Kind == model.DatapathRouter && peerDP.MulticastRelay
}

func sortedPorts(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// normalizeGroupAddress maps an IPv4 multicast address to its IPv6-mapped
// form when applicable, leaving native IPv6 addresses untouched (spec.md
// §4.5 "the address normalized to IPv6-mapped-IPv4 when applicable").
func normalizeGroupAddress(addr string) string {
	ip := net.ParseIP(addr)
	if ip == nil {
		return addr
	}
	if v4 := ip.To4(); v4 != nil {
		return "::ffff:" + v4.String()
	}
	return ip.String()
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
