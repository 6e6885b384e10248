package pipeline

import (
	"fmt"
	"strings"

	"github.com/ovnxlate/ovnxlate/internal/flow"
	"github.com/ovnxlate/ovnxlate/internal/model"
)

// GenerateRouter implements C8 (spec.md §4.8): the 16-stage ingress and
// 4-stage egress logical-router pipeline.
func GenerateRouter(cache *model.Cache, dp *model.Datapath, set *flow.Set) {
	ports := portsOf(cache, dp.NBUUID)
	gateway := isGatewayRouter(dp)
	dgwPort := dp.DGWPort

	routerAdmission(dp, ports, set)
	routerNeighbor(dp, ports, set)
	routerIPInput(dp, ports, gateway, dgwPort, set)
	routerNATAndLB(dp, gateway, dgwPort, set)
	routerRouting(dp, ports, set)
	routerPolicy(dp, set)
	routerArpResolve(dp, ports, set)
	routerPktLen(dp, dgwPort, set)
	routerGatewayRedirect(dp, set)
	routerArpRequest(dp, set)
	routerDelivery(dp, ports, set)
}

func isGatewayRouter(dp *model.Datapath) bool {
	return dp.DGWPort != "" || dp.Options["chassis"] != ""
}

// routerAdmission implements ingress stage 0 (spec.md §4.8 "Admission and
// neighbor learning").
func routerAdmission(dp *model.Datapath, ports []*model.Port, set *flow.Set) {
	stage := flow.RouterIngress(flow.LRInAdmission)
	emit(set, dp.NBUUID, stage, 100, "vlan.present", "drop;")
	emit(set, dp.NBUUID, stage, 100, "eth.src[40]", "drop;")
	emit(set, dp.NBUUID, stage, 0, "1", "drop;")

	for _, p := range ports {
		if p.Kind != model.PortLRP && p.Kind != model.PortLRPRedirect {
			continue
		}
		inport := fmt.Sprintf("inport == %s", quoted(p.Name))
		emit(set, dp.NBUUID, stage, 50, fmt.Sprintf("%s && eth.dst == ff:ff:ff:ff:ff:ff", inport), "next;")

		match := fmt.Sprintf("%s && eth.dst == %s", inport, p.MAC)
		if p.Name == dp.DGWPort {
			match = fmt.Sprintf("%s && is_chassis_resident(%s)", match, quoted(dp.RedirectPort))
		}
		emit(set, dp.NBUUID, stage, 50, match, "next;")
	}
}

// routerNeighbor implements ingress stages 1/2.
func routerNeighbor(dp *model.Datapath, ports []*model.Port, set *flow.Set) {
	lookup := flow.RouterIngress(flow.LRInLookupNeighbor)
	learn := flow.RouterIngress(flow.LRInLearnNeighbor)

	emit(set, dp.NBUUID, lookup, 0, "1", "reg9[0] = lookup_arp(inport, eth.src, ip4.src); next;")
	emit(set, dp.NBUUID, lookup, 0, "ip6", "reg9[0] = lookup_nd(inport, eth.src, ip6.src); next;")

	emit(set, dp.NBUUID, learn, 0, "reg9[0] == 0", "put_arp(inport, ip4.src, eth.src); next;")
	emit(set, dp.NBUUID, learn, 0, "ip6 && reg9[0] == 0", "put_nd(inport, ip6.src, eth.src); next;")
	emit(set, dp.NBUUID, learn, 100, "reg9[0] == 1", "next;")
}

// routerIPInput implements ingress stage 3 (spec.md §4.8 "IP input").
func routerIPInput(dp *model.Datapath, ports []*model.Port, gateway bool, dgwPort string, set *flow.Set) {
	stage := flow.RouterIngress(flow.LRInIPInput)
	emit(set, dp.NBUUID, stage, 0, "1", "next;")

	emit(set, dp.NBUUID, stage, 100, "ip4.src_mcast || ip4.src == 255.255.255.255 || ip4.src == 127.0.0.0/8 || ip4.src == 0.0.0.0/8", "drop;")
	emit(set, dp.NBUUID, stage, 100, "ip4.dst == 0.0.0.0", "drop;")
	emit(set, dp.NBUUID, stage, 95, "arp || nd", "drop;")

	for _, p := range ports {
		if p.Kind != model.PortLRP && p.Kind != model.PortLRPRedirect {
			continue
		}
		for _, ip := range p.IPv4 {
			emit(set, dp.NBUUID, stage, 90, fmt.Sprintf("inport == %s && icmp4.type == 8 && icmp4.code == 0 && ip4.dst == %s", quoted(p.Name), ip),
				"icmp4 { eth.dst <-> eth.src; ip4.dst <-> ip4.src; ip4.ttl = 255; icmp4.type = 0; next; };")
			emit(set, dp.NBUUID, stage, 90, fmt.Sprintf("ip4.dst == %s && arp.op == 1", ip), "next;")
		}
		for _, ip := range p.IPv6 {
			emit(set, dp.NBUUID, stage, 90, fmt.Sprintf("inport == %s && icmp6.type == 128 && icmp6.code == 0 && ip6.dst == %s", quoted(p.Name), ip),
				"icmp6 { eth.dst <-> eth.src; ip6.dst <-> ip6.src; ip6.hlim = 255; icmp6.type = 129; next; };")
		}
	}
	emit(set, dp.NBUUID, stage, 50, "ip4 && ip.ttl == {0, 1}",
		"icmp4 { eth.dst <-> eth.src; ip4.dst <-> ip4.src; ip4.ttl = 255; icmp4.type = 11; icmp4.code = 0; next; };")

	for _, nat := range dp.NAT {
		chassisHint := dgwPort
		if nat.Type == model.NATTypeDNATAndSNAT && nat.LogicalPort != nil {
			chassisHint = *nat.LogicalPort
		}
		emit(set, dp.NBUUID, stage, 92, fmt.Sprintf("arp.op == 1 && arp.tpa == %s && is_chassis_resident(%s)", nat.ExternalIP, quoted(chassisHint)),
			fmt.Sprintf("eth.dst = eth.src; eth.src = %s; arp.op = 2; arp.tha = arp.sha; arp.sha = %s; arp.tpa = arp.spa; arp.spa = %s; outport = inport; flags.loopback = 1; output;",
				externalMACOr(nat), externalMACOr(nat), nat.ExternalIP))
	}

	if !gateway && dgwPort == "" {
		for _, p := range ports {
			for _, ip := range p.IPv4 {
				emit(set, dp.NBUUID, stage, 80, fmt.Sprintf("ip4.dst == %s && (tcp || udp)", ip),
					"tcp_reset { eth.dst <-> eth.src; ip4.dst <-> ip4.src; tcp.dst <-> tcp.src; output; }; icmp4 { eth.dst <-> eth.src; ip4.dst <-> ip4.src; icmp4.type = 3; icmp4.code = 3; next; };")
			}
		}
	}

	snatIPs := snatExternalIPs(dp.NAT)
	for _, p := range ports {
		for _, ip := range p.IPv4 {
			if snatIPs[ip] {
				continue
			}
			emit(set, dp.NBUUID, stage, 60, fmt.Sprintf("ip4.dst == %s", ip), "drop;")
		}
	}
}

func externalMACOr(nat *model.NAT) string {
	if nat.ExternalMAC != nil {
		return *nat.ExternalMAC
	}
	return "router-mac"
}

func snatExternalIPs(nats []*model.NAT) map[string]bool {
	out := make(map[string]bool)
	for _, n := range nats {
		if n.Type == model.NATTypeSNAT {
			out[n.ExternalIP] = true
		}
	}
	return out
}

// routerNATAndLB implements ingress stages 4-6 and egress stages 0-2
// (spec.md §4.8 "NAT and load balancing").
func routerNATAndLB(dp *model.Datapath, gateway bool, dgwPort string, set *flow.Set) {
	unsnat := flow.RouterIngress(flow.LRInUnSNAT)
	defrag := flow.RouterIngress(flow.LRInDefrag)
	dnat := flow.RouterIngress(flow.LRInDNAT)
	snat := flow.RouterEgress(flow.LROutSNAT)
	undnat := flow.RouterEgress(flow.LROutUnDNAT)

	for _, stage := range []flow.Stage{unsnat, defrag, dnat, snat, undnat} {
		emit(set, dp.NBUUID, stage, 0, "1", "next;")
	}

	if !gateway && dgwPort == "" {
		return
	}
	distributed := dgwPort != ""

	for _, nat := range dp.NAT {
		plen := prefixLenOf(nat.LogicalIP)
		switch nat.Type {
		case model.NATTypeSNAT:
			inboundMatch := fmt.Sprintf("ip4.dst == %s", nat.ExternalIP)
			if distributed {
				inboundMatch = fmt.Sprintf("%s && is_chassis_resident(%s)", inboundMatch, quoted(dp.RedirectPort))
			}
			emit(set, dp.NBUUID, unsnat, 100, inboundMatch, "ct_snat; next;")

			outboundMatch := fmt.Sprintf("ip4.src == %s", nat.LogicalIP)
			if distributed {
				emit(set, dp.NBUUID, flow.RouterIngress(flow.LRInAdmission), 80, outboundMatch, fmt.Sprintf("%s = 1; next;", regNatRedirect))
			}
			emit(set, dp.NBUUID, snat, plen+1, outboundMatch, fmt.Sprintf("ct_snat(%s);", nat.ExternalIP))

		case model.NATTypeDNAT:
			match := fmt.Sprintf("ip4.dst == %s", nat.ExternalIP)
			emit(set, dp.NBUUID, dnat, 100, match, fmt.Sprintf("flags.loopback = 1; ct_dnat(%s);", nat.LogicalIP))
			emit(set, dp.NBUUID, dnat, 50, "ct.trk && ct.dnat", "ct_dnat;")
			if distributed {
				emit(set, dp.NBUUID, flow.RouterIngress(flow.LRInAdmission), 80, match, fmt.Sprintf("%s = 1; next;", regNatRedirect))
			}
			emit(set, dp.NBUUID, undnat, plen+1, fmt.Sprintf("ip4.src == %s", nat.LogicalIP), "ct_dnat;")

		case model.NATTypeDNATAndSNAT:
			if nat.Stateless {
				emit(set, dp.NBUUID, dnat, 100, fmt.Sprintf("ip4.dst == %s", nat.ExternalIP), fmt.Sprintf("ip4.dst = %s; next;", nat.LogicalIP))
				actions := fmt.Sprintf("ip4.src = %s; next;", nat.ExternalIP)
				if distributed && nat.ExternalMAC != nil {
					actions = fmt.Sprintf("eth.src = %s; %s", *nat.ExternalMAC, actions)
				}
				emit(set, dp.NBUUID, snat, plen+1, fmt.Sprintf("ip4.src == %s", nat.LogicalIP), actions)
				continue
			}
			if distributed && nat.LogicalPort != nil && nat.ExternalMAC != nil {
				emit(set, dp.NBUUID, flow.RouterIngress(flow.LRInAdmission), 90,
					fmt.Sprintf("eth.dst == %s && inport == %s && is_chassis_resident(%s)", *nat.ExternalMAC, quoted(dgwPort), quoted(*nat.LogicalPort)),
					"next;")
				emit(set, dp.NBUUID, flow.RouterIngress(flow.LRInGatewayRedirect), 200,
					fmt.Sprintf("is_chassis_resident(%s)", quoted(*nat.LogicalPort)), "next;")
				loop := flow.RouterEgress(flow.LROutEgressLoop)
				emit(set, dp.NBUUID, loop, 100,
					fmt.Sprintf("ip4.src == %s && is_chassis_resident(%s)", nat.LogicalIP, quoted(*nat.LogicalPort)),
					fmt.Sprintf("%s = 1; next;", regEgressLoopback))
			}
			emit(set, dp.NBUUID, dnat, 100, fmt.Sprintf("ip4.dst == %s", nat.ExternalIP), fmt.Sprintf("ct_dnat(%s);", nat.LogicalIP))
			emit(set, dp.NBUUID, snat, plen+1, fmt.Sprintf("ip4.src == %s", nat.LogicalIP), fmt.Sprintf("ct_snat(%s);", nat.ExternalIP))
		}
	}

	forceSNATFlows(dp, unsnat, snat, set)

	for _, lb := range dp.LoadBalancer {
		for vip, backends := range lb.Vips {
			host, port, hasPort := splitVIP(vip)
			emit(set, dp.NBUUID, defrag, 100, fmt.Sprintf("ip4.dst == %s", host), "ct_next;")
			priority := 110
			match := fmt.Sprintf("ct.new && ip4.dst == %s", host)
			if hasPort && lb.Protocol != nil {
				priority = 120
				match += fmt.Sprintf(" && %s.dst == %s", *lb.Protocol, port)
			}
			action := fmt.Sprintf("ct_lb(%s);", backends)
			if lb.Options["force_snat_ip"] != "" {
				action = fmt.Sprintf("flags.force_snat_for_lb = 1; %s", action)
			}
			emit(set, dp.NBUUID, dnat, priority, match, action)
			emit(set, dp.NBUUID, dnat, 50, "ct.est", "ct_dnat;")

			if distributed {
				emit(set, dp.NBUUID, undnat, 120, fmt.Sprintf("outport == %s && is_chassis_resident(%s) && ip4.src == %s", quoted(dgwPort), quoted(dp.RedirectPort), host), "ct_dnat;")
			}
		}
	}
}

func forceSNATFlows(dp *model.Datapath, unsnat, snat flow.Stage, set *flow.Set) {
	if ip := dp.Options["dnat_force_snat_ip"]; ip != "" {
		emit(set, dp.NBUUID, unsnat, 110, fmt.Sprintf("ip4.dst == %s", ip), "ct_snat; next;")
		emit(set, dp.NBUUID, snat, 110, "flags.force_snat_for_dnat == 1", fmt.Sprintf("ct_snat(%s);", ip))
	}
	if ip := dp.Options["lb_force_snat_ip"]; ip != "" {
		emit(set, dp.NBUUID, unsnat, 110, fmt.Sprintf("ip4.dst == %s", ip), "ct_snat; next;")
		emit(set, dp.NBUUID, snat, 110, "flags.force_snat_for_lb == 1", fmt.Sprintf("ct_snat(%s);", ip))
	}
}

func prefixLenOf(cidr string) int {
	idx := strings.LastIndex(cidr, "/")
	if idx < 0 {
		return 32
	}
	var plen int
	fmt.Sscanf(cidr[idx+1:], "%d", &plen)
	return plen
}

// routerRouting implements ingress stage 9 and connected/static routes
// (spec.md §4.8 "Routing and ARP resolution").
func routerRouting(dp *model.Datapath, ports []*model.Port, set *flow.Set) {
	stage := flow.RouterIngress(flow.LRInIPRouting)

	for _, p := range ports {
		if p.Kind != model.PortLRP {
			continue
		}
		for _, network := range p.Networks {
			host, plen := splitCIDR(network)
			priority := 2*plen + 1
			match := fmt.Sprintf("ip4.dst == %s/%d", host, plen)
			actions := fmt.Sprintf("ip.ttl--; reg0 = ip4.dst; reg1 = %s; eth.src = %s; outport = %s; flags.loopback = 1; next;", host, p.MAC, quoted(p.Name))
			emit(set, dp.NBUUID, stage, priority, match, actions)
		}
	}

	for _, route := range dp.StaticRoutes {
		host, plen := splitCIDR(route.IPPrefix)
		dstPolicy := route.Policy != nil && *route.Policy == model.RoutePolicySrcIP
		priority := 2*plen + boolToInt(!dstPolicy)
		ipField := "ip4.dst"
		if dstPolicy {
			ipField = "ip4.src"
		}
		match := fmt.Sprintf("%s == %s/%d", ipField, host, plen)
		outport := ""
		if route.OutputPort != nil {
			outport = *route.OutputPort
		}
		actions := fmt.Sprintf("ip.ttl--; reg0 = %s; reg1 = %s; outport = %s; flags.loopback = 1; next;", route.Nexthop, route.Nexthop, quoted(outport))
		if strings.Contains(host, ":") {
			match = strings.Replace(match, "ip4", "ip6", 1)
			if strings.HasPrefix(host, "fe80:") {
				match = fmt.Sprintf("inport == %s && %s", quoted(outport), match)
			}
		}
		emit(set, dp.NBUUID, stage, priority, match, actions)
	}

	if dp.MulticastRelay {
		emit(set, dp.NBUUID, stage, 500, "ip4.mcast", "next;")
		if dp.FloodStatic {
			emit(set, dp.NBUUID, stage, 450, "ip4.mcast", fmt.Sprintf("outport = %s; output;", quoted(model.MCGroupStatic)))
		}
	}
}

func splitCIDR(cidr string) (string, int) {
	idx := strings.LastIndex(cidr, "/")
	if idx < 0 {
		return cidr, 32
	}
	var plen int
	fmt.Sscanf(cidr[idx+1:], "%d", &plen)
	return cidr[:idx], plen
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// routerPolicy implements ingress stage 10 (spec.md §4.8 "Policy").
func routerPolicy(dp *model.Datapath, set *flow.Set) {
	stage := flow.RouterIngress(flow.LRInPolicyReroute)
	emit(set, dp.NBUUID, stage, 0, "1", "next;")

	for _, pol := range dp.Policies {
		switch pol.Action {
		case model.PolicyActionReroute:
			if len(pol.Nexthops) == 0 {
				continue
			}
			emit(set, dp.NBUUID, stage, pol.Priority, pol.Match, fmt.Sprintf("reg0 = %s; reg1 = %s; next;", pol.Nexthops[0], pol.Nexthops[0]))
		case model.PolicyActionDrop:
			emit(set, dp.NBUUID, stage, pol.Priority, pol.Match, "drop;")
		case model.PolicyActionAllow:
			emit(set, dp.NBUUID, stage, pol.Priority, pol.Match, "next;")
		}
	}
}

// routerArpResolve implements ingress stage 11 (spec.md §4.8 "ARP resolve").
func routerArpResolve(dp *model.Datapath, ports []*model.Port, set *flow.Set) {
	stage := flow.RouterIngress(flow.LRInArpResolve)
	emit(set, dp.NBUUID, stage, 0, "ip4", "get_arp(outport, reg0); next;")
	emit(set, dp.NBUUID, stage, 0, "ip6", "get_nd(outport, xxreg0); next;")

	for _, p := range ports {
		if p.Kind == model.PortLRP && p.Peer != "" {
			if peer, ok := lookupPeerPort(ports, p.Peer); ok && peer != nil {
				emit(set, dp.NBUUID, stage, 100, fmt.Sprintf("outport == %s && reg0 == %s", quoted(p.Name), firstOrEmpty(p.IPv4)), fmt.Sprintf("eth.dst = %s; next;", peer.MAC))
			}
		}
	}
}

func lookupPeerPort(ports []*model.Port, name string) (*model.Port, bool) {
	for _, p := range ports {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

func firstOrEmpty(s []string) string {
	if len(s) > 0 {
		return s[0]
	}
	return ""
}

// routerPktLen implements ingress stages 12/13 (spec.md §4.8 "Packet-length check").
func routerPktLen(dp *model.Datapath, dgwPort string, set *flow.Set) {
	checkStage := flow.RouterIngress(flow.LRInCheckPktLen)
	icmpStage := flow.RouterIngress(flow.LRInLargePktICMP)
	emit(set, dp.NBUUID, checkStage, 0, "1", "next;")
	emit(set, dp.NBUUID, icmpStage, 0, "1", "next;")

	mtu := dp.Options["gateway_mtu"]
	if dgwPort == "" || mtu == "" {
		return
	}
	emit(set, dp.NBUUID, checkStage, 50, fmt.Sprintf("outport == %s", quoted(dgwPort)), fmt.Sprintf("%s = check_pkt_larger(%s); next;", regPktLarger, mtu))
	fragMTU := fmt.Sprintf("%s - 18", mtu)
	emit(set, dp.NBUUID, icmpStage, 50, fmt.Sprintf("%s == 1", regPktLarger),
		fmt.Sprintf("icmp4 { eth.dst <-> eth.src; ip4.dst <-> ip4.src; ip4.ttl = 255; icmp4.type = 3; icmp4.code = 4; icmp4.frag_mtu = %s; %s = 1; next(pipeline=ingress, table=0); };", fragMTU, regEgressLoopback))
}

// routerGatewayRedirect implements ingress stage 14 (spec.md §4.8 "Gateway redirect").
func routerGatewayRedirect(dp *model.Datapath, set *flow.Set) {
	stage := flow.RouterIngress(flow.LRInGatewayRedirect)
	emit(set, dp.NBUUID, stage, 0, "1", "next;")
	if dp.DGWPort == "" || dp.RedirectPort == "" {
		return
	}
	emit(set, dp.NBUUID, stage, 100, fmt.Sprintf("outport == %s && %s == 0", quoted(dp.DGWPort), regNatRedirect), fmt.Sprintf("outport = %s; next;", quoted(dp.RedirectPort)))
	emit(set, dp.NBUUID, stage, 150, fmt.Sprintf("outport == %s && eth.dst == 00:00:00:00:00:00", quoted(dp.DGWPort)), fmt.Sprintf("outport = %s; next;", quoted(dp.RedirectPort)))
}

// routerArpRequest implements ingress stage 15 (spec.md §4.8 "ARP request").
func routerArpRequest(dp *model.Datapath, set *flow.Set) {
	stage := flow.RouterIngress(flow.LRInArpRequest)
	emit(set, dp.NBUUID, stage, 0, "ip4 && eth.dst == 00:00:00:00:00:00",
		"arp { eth.dst = ff:ff:ff:ff:ff:ff; arp.spa = reg1; arp.tpa = reg0; arp.op = 1; output; };")
	emit(set, dp.NBUUID, stage, 0, "ip6 && eth.dst == 00:00:00:00:00:00",
		"nd_ns { eth.dst = ff:ff:ff:ff:ff:ff; ip6.dst = ip6.solicited_node(xxreg0); nd.target = xxreg0; output; };")

	for _, route := range dp.StaticRoutes {
		if strings.Contains(route.Nexthop, ":") {
			emit(set, dp.NBUUID, stage, 100, fmt.Sprintf("ip6.dst == %s && eth.dst == 00:00:00:00:00:00", route.Nexthop),
				fmt.Sprintf("nd_ns { eth.dst = ff:ff:ff:ff:ff:ff; ip6.dst = ip6.solicited_node(%s); nd.target = %s; output; };", route.Nexthop, route.Nexthop))
		}
	}
}

// routerDelivery implements egress stage 3 (spec.md §4.8 "Delivery").
func routerDelivery(dp *model.Datapath, ports []*model.Port, set *flow.Set) {
	stage := flow.RouterEgress(flow.LROutDelivery)
	emit(set, dp.NBUUID, stage, 0, "1", "drop;")

	for _, p := range ports {
		if p.Kind == model.PortLRPRedirect || !p.Enabled {
			continue
		}
		emit(set, dp.NBUUID, stage, 100, fmt.Sprintf("outport == %s", quoted(p.Name)), "output;")
		emit(set, dp.NBUUID, stage, 110, fmt.Sprintf("outport == %s && eth.mcast", quoted(p.Name)), fmt.Sprintf("eth.src = %s; output;", p.MAC))
	}
}
