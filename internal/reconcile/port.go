package reconcile

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ovnxlate/ovnxlate/internal/idalloc"
	"github.com/ovnxlate/ovnxlate/internal/model"
	"github.com/ovnxlate/ovnxlate/internal/xlog"
)

// Options keys used by the three legacy gateway-chassis declaration forms
// and the router-port peering link (spec.md §4.3).
const (
	optRouterPort      = "router-port"
	optRedirectChassis = "redirect-chassis"
	optRequestedTNL    = "requested-tnl-key"
)

// Ports implements the join half of C3: NB switch/router ports matched
// against SB Port_Binding rows by name, 15-bit per-datapath key allocation,
// router-port peering, and derived redirect port synthesis. IPAM (the
// second half of C3) runs separately in ipam.go, only after every port's
// peer link is resolved (spec.md §4.3 "IPAM processing occurs only after
// all peering is resolved").
func Ports(nb model.NorthboundSnapshot, sb model.SouthboundSnapshot, cache *model.Cache, plan *model.Plan) {
	sbByName := make(map[string]*model.PortBinding)
	for _, pb := range sb.Ports {
		sbByName[pb.LogicalPort] = pb
	}

	// Per-datapath key allocators, hinted from the highest key already
	// observed in SB for that datapath (spec.md §4.1).
	keyAlloc := idalloc.NewTunnelKeyAllocator(idalloc.PortKeyMin, idalloc.PortKeyMax)
	usedKeys := make(map[string]map[int]bool) // datapath NBUUID -> used keys
	hints := make(map[string]int)
	for _, pb := range sb.Ports {
		if used, ok := usedKeys[pb.Datapath]; ok {
			used[pb.TunnelKey] = true
		} else {
			usedKeys[pb.Datapath] = map[int]bool{pb.TunnelKey: true}
		}
		if pb.TunnelKey > hints[pb.Datapath] {
			hints[pb.Datapath] = pb.TunnelKey
		}
	}

	nbNames := make(map[string]bool)

	for _, ls := range nb.Switches {
		dp, ok := cache.Datapaths[ls.UUID]
		if !ok {
			continue
		}
		for _, portUUID := range ls.Ports {
			lsp, ok := nb.SwitchPorts[portUUID]
			if !ok {
				continue
			}
			nbNames[lsp.Name] = true
			p := joinOrCreatePort(lsp.Name, dp.NBUUID, model.PortLSP, sbByName, usedKeys, hints, keyAlloc, plan, lsp.ExternalIDs, requestedTunnelKey(lsp.Options))
			populateLSP(p, lsp)
			cache.Ports[lsp.Name] = p
		}
	}

	for _, lr := range nb.Routers {
		dp, ok := cache.Datapaths[lr.UUID]
		if !ok {
			continue
		}
		for _, portUUID := range lr.Ports {
			lrp, ok := nb.RouterPorts[portUUID]
			if !ok {
				continue
			}
			nbNames[lrp.Name] = true
			p := joinOrCreatePort(lrp.Name, dp.NBUUID, model.PortLRP, sbByName, usedKeys, hints, keyAlloc, plan, lrp.ExternalIDs, requestedTunnelKey(lrp.Options))
			populateLRP(p, lrp, nb)
			cache.Ports[lrp.Name] = p

			if redirect := derivedRedirectName(lrp); redirect != "" {
				rp := joinOrCreatePort(redirect, dp.NBUUID, model.PortLRPRedirect, sbByName, usedKeys, hints, keyAlloc, plan, nil, 0)
				rp.Derived = true
				rp.RedirectOf = lrp.Name
				rp.Enabled = p.Enabled
				cache.Ports[redirect] = rp
				nbNames[redirect] = true
				dp.DGWPort = lrp.Name
				dp.RedirectPort = redirect
			}
		}
	}

	// Resolve peering after every port exists (spec.md §4.3).
	resolvePeering(cache)

	// Orphan SB ports: delete and purge stale MAC bindings.
	for name, pb := range sbByName {
		if !nbNames[name] {
			plan.Delete("Port_Binding", pb.UUID, "no matching NB logical port")
			plan.PurgeMACBindings(name)
		}
	}
}

func joinOrCreatePort(
	name, datapathUUID string, kind model.PortKind,
	sbByName map[string]*model.PortBinding,
	usedKeys map[string]map[int]bool, hints map[string]int,
	keyAlloc idalloc.TunnelKeyAllocator,
	plan *model.Plan, extIDs map[string]string,
	requestedKey int,
) *model.Port {
	p := &model.Port{Name: name, JSONName: jsonEscape(name), Datapath: datapathUUID, Kind: kind, Enabled: true}

	if existing, ok := sbByName[name]; ok {
		p.TunnelKey = existing.TunnelKey
		return p
	}

	used := usedKeys[datapathUUID]
	if used == nil {
		used = make(map[int]bool)
		usedKeys[datapathUUID] = used
	}

	hint := hints[datapathUUID]
	if requestedKey != 0 && requestedKey >= idalloc.PortKeyMin && requestedKey <= idalloc.PortKeyMax && !used[requestedKey] {
		hint = requestedKey - 1
	}
	key := keyAlloc.Allocate(used, hint)
	if key == 0 {
		xlog.Warnf("port:exhausted", logrus.Fields{"datapath": datapathUUID}, "port tunnel-key space exhausted for datapath, skipping %s", name)
		return p
	}
	used[key] = true
	hints[datapathUUID] = key
	p.TunnelKey = key

	row := &model.PortBinding{
		LogicalPort: name,
		Datapath:    datapathUUID,
		TunnelKey:   key,
		ExternalIDs: extIDs,
	}
	if kind == model.PortLRPRedirect {
		row.Type = model.PBTypeChassisRedirect
	}
	plan.Insert("Port_Binding", row)
	return p
}

func populateLSP(p *model.Port, lsp *model.LogicalSwitchPort) {
	p.Type = lsp.Type
	if lsp.Enabled != nil {
		p.Enabled = *lsp.Enabled
	}
	for _, addr := range lsp.Addresses {
		if addr == "dynamic" {
			continue
		}
		fields := strings.Fields(addr)
		if len(fields) == 0 {
			continue
		}
		p.MAC = fields[0]
		for _, f := range fields[1:] {
			if strings.Contains(f, ":") {
				p.IPv6 = append(p.IPv6, f)
			} else {
				p.IPv4 = append(p.IPv4, f)
			}
		}
	}
	for _, ps := range lsp.PortSecurity {
		fields := strings.Fields(ps)
		if len(fields) == 0 {
			continue
		}
		entry := model.PortSecurityEntry{MAC: fields[0]}
		for _, f := range fields[1:] {
			if strings.Contains(f, ":") {
				entry.IPv6 = append(entry.IPv6, f)
			} else {
				entry.IPv4 = append(entry.IPv4, f)
			}
		}
		p.PortSecurity = append(p.PortSecurity, entry)
	}
	if lsp.Type == model.LSPTypeRouter {
		if rp, ok := lsp.Options[optRouterPort]; ok {
			p.Peer = rp
		}
	}
	p.McastFlood = lsp.Options["mcast_flood"] == "true"
	p.McastFloodReports = lsp.Options["mcast_flood_reports"] == "true"
}

func populateLRP(p *model.Port, lrp *model.LogicalRouterPort, nb model.NorthboundSnapshot) {
	if lrp.Enabled != nil {
		p.Enabled = *lrp.Enabled
	}
	p.MAC = lrp.MAC
	p.Networks = lrp.Networks
	for _, n := range lrp.Networks {
		addr := strings.SplitN(n, "/", 2)[0]
		if strings.Contains(addr, ":") {
			p.IPv6 = append(p.IPv6, n)
		} else {
			p.IPv4 = append(p.IPv4, n)
		}
	}
	if lrp.Peer != nil {
		p.Peer = *lrp.Peer
	}
	if lrp.HaChassisGroup != nil {
		p.HAChassisGroup = *lrp.HaChassisGroup
	}
	for _, gcUUID := range lrp.GatewayChassis {
		if gc, ok := nb.GatewayChassis[gcUUID]; ok {
			p.GatewayChassis = append(p.GatewayChassis, model.GatewayChassisEntry{
				ChassisName: gc.ChassisName,
				Priority:    gc.Priority,
			})
		}
	}
}

// derivedRedirectName implements spec.md §4.3's preference order
// (ha_chassis_group > gateway_chassis > redirect-chassis): any of the three
// forms being present synthesizes "cr-<lrp-name>"; which form ultimately
// populates the SB HA-group is decided later, in hagroup.go.
func derivedRedirectName(lrp *model.LogicalRouterPort) string {
	declaresGateway := (lrp.HaChassisGroup != nil && *lrp.HaChassisGroup != "") ||
		len(lrp.GatewayChassis) > 0 ||
		lrp.Options[optRedirectChassis] != ""
	if !declaresGateway {
		return ""
	}
	return "cr-" + lrp.Name
}

// resolvePeering links LSP<->LRP and LRP<->LRP peers both ways, rejecting a
// router-to-router peer attribute that actually names a switch port
// (spec.md §4.3 "Router-port peering").
func resolvePeering(cache *model.Cache) {
	for name, p := range cache.Ports {
		if p.Peer == "" {
			continue
		}
		peer, ok := cache.Ports[p.Peer]
		if !ok {
			xlog.Warnf("port:missing-peer", logrus.Fields{"port": name}, "port %s names nonexistent peer %s", name, p.Peer)
			continue
		}
		if p.Kind == model.PortLRP && peer.Kind == model.PortLSP {
			xlog.Warnf("port:bad-peer", logrus.Fields{"port": name}, "router port %s peer %s is a switch port, not allowed", name, p.Peer)
			p.Peer = ""
			continue
		}
		peer.Peer = name
	}
}

// requestedTunnelKey reads the legacy options:requested-tnl-key hint some
// NB ports carry, returning 0 if absent or unparseable.
func requestedTunnelKey(options map[string]string) int {
	raw, ok := options[optRequestedTNL]
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// jsonEscape renders name the way a JSON string literal would, so it is
// always safe to splice verbatim into a match expression (spec.md §9
// "never interpolate untrusted identifiers without the JSON-escaped
// variant recorded on each port").
func jsonEscape(name string) string {
	b, err := json.Marshal(name)
	if err != nil {
		return strconv.Quote(name)
	}
	return string(b)
}
