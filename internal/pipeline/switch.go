package pipeline

import (
	"fmt"
	"strings"

	"github.com/ovnxlate/ovnxlate/internal/flow"
	"github.com/ovnxlate/ovnxlate/internal/model"
)

// GenerateSwitch implements C7 (spec.md §4.7): the 18-stage ingress and
// 10-stage egress logical-switch pipeline.
func GenerateSwitch(cache *model.Cache, dp *model.Datapath, set *flow.Set) {
	ports := portsOf(cache, dp.NBUUID)

	switchAdmission(dp, ports, set)
	switchPortSecurity(dp, ports, set)
	switchPreACL(dp, ports, set)
	switchPreLB(dp, ports, set)
	switchPreStateful(dp, set)
	switchACL(dp, set)
	switchQoS(dp, set)
	switchLBStateful(dp, set)
	switchArpNdRsp(dp, ports, set)
	switchDHCP(dp, ports, set)
	switchDNS(dp, set)
	switchExternalPort(dp, ports, set)
	switchL2Lookup(dp, ports, set)
}

// switchAdmission implements ingress stage 0 (spec.md §4.7 "Admission").
func switchAdmission(dp *model.Datapath, ports []*model.Port, set *flow.Set) {
	stage := flow.SwitchIngress(flow.LSInPortSecL2)
	emit(set, dp.NBUUID, stage, 100, "vlan.present", "drop;")
	emit(set, dp.NBUUID, stage, 100, "eth.src[40]", "drop;")
	emit(set, dp.NBUUID, stage, 0, "1", "drop;")

	for _, p := range ports {
		if !p.Enabled || p.Kind != model.PortLSP || p.Type == model.LSPTypeExternal {
			continue
		}
		actions := "next;"
		if p.QueueID != 0 {
			actions = fmt.Sprintf("set_queue(%d); next;", p.QueueID)
		}
		emit(set, dp.NBUUID, stage, 50, fmt.Sprintf("inport == %s", quoted(p.Name)), actions)
	}
}

// switchPortSecurity implements ingress stages 1/2 and egress stages 8/9
// (spec.md §4.7 "Port security L2/IP/ND").
func switchPortSecurity(dp *model.Datapath, ports []*model.Port, set *flow.Set) {
	l2In := flow.SwitchIngress(flow.LSInPortSecL2)
	ipIn := flow.SwitchIngress(flow.LSInPortSecIP)
	ndIn := flow.SwitchIngress(flow.LSInPortSecND)
	ipOut := flow.SwitchEgress(flow.LSOutPortSecIP)
	l2Out := flow.SwitchEgress(flow.LSOutPortSecL2)

	for _, p := range ports {
		if len(p.PortSecurity) == 0 {
			continue
		}
		inport := fmt.Sprintf("inport == %s", quoted(p.Name))
		outport := fmt.Sprintf("outport == %s", quoted(p.Name))

		for _, entry := range p.PortSecurity {
			arpMatch := fmt.Sprintf("%s && eth.src == %s && arp.sha == %s", inport, entry.MAC, entry.MAC)
			emit(set, dp.NBUUID, l2In, 90, arpMatch, "next;")
			ndMatch := fmt.Sprintf("%s && eth.src == %s && nd && (nd.sll == %s || nd.tll == %s)", inport, entry.MAC, entry.MAC, entry.MAC)
			emit(set, dp.NBUUID, ndIn, 90, ndMatch, "next;")

			if len(entry.IPv4) > 0 {
				ipMatch := fmt.Sprintf("%s && eth.src == %s && ip4.src == {%s}", inport, entry.MAC, strings.Join(entry.IPv4, ", "))
				emit(set, dp.NBUUID, ipIn, 90, ipMatch, "next;")
				dhcpMatch := fmt.Sprintf("%s && eth.src == %s && ip4.src == 0.0.0.0 && ip4.dst == 255.255.255.255 && udp.src == 68 && udp.dst == 67", inport, entry.MAC)
				emit(set, dp.NBUUID, ipIn, 90, dhcpMatch, "next;")
			}
			if len(entry.IPv6) > 0 {
				ipMatch := fmt.Sprintf("%s && eth.src == %s && ip6.src == {%s}", inport, entry.MAC, strings.Join(entry.IPv6, ", "))
				emit(set, dp.NBUUID, ipIn, 90, ipMatch, "next;")
				dadMatch := fmt.Sprintf("%s && eth.src == %s && ip6.src == ::", inport, entry.MAC)
				emit(set, dp.NBUUID, ipIn, 90, dadMatch, "next;")
			}
		}
		emit(set, dp.NBUUID, l2In, 80, fmt.Sprintf("%s && (arp || nd)", inport), "drop;")

		allIPv4 := flattenIPv4(p.PortSecurity)
		allIPv6 := flattenIPv6(p.PortSecurity)
		if len(allIPv4) > 0 {
			emit(set, dp.NBUUID, ipOut, 90, fmt.Sprintf("%s && ip4.dst == {255.255.255.255, %s}", outport, strings.Join(allIPv4, ", ")), "next;")
		}
		if len(allIPv6) > 0 {
			emit(set, dp.NBUUID, ipOut, 90, fmt.Sprintf("%s && ip6.dst == {ff00::/8, %s}", outport, strings.Join(allIPv6, ", ")), "next;")
		}
		emit(set, dp.NBUUID, l2Out, 90, fmt.Sprintf("%s && eth.dst == {ff:ff:ff:ff:ff:ff, %s}", outport, portMACList(p)), "next;")
	}

	for _, p := range ports {
		if !p.Enabled {
			emit(set, dp.NBUUID, l2Out, 150, fmt.Sprintf("outport == %s", quoted(p.Name)), "drop;")
		}
	}
}

func portMACList(p *model.Port) string {
	if p.MAC != "" {
		return p.MAC
	}
	var macs []string
	for _, e := range p.PortSecurity {
		macs = append(macs, e.MAC)
	}
	return strings.Join(macs, ", ")
}

func flattenIPv4(entries []model.PortSecurityEntry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.IPv4...)
	}
	return out
}

func flattenIPv6(entries []model.PortSecurityEntry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.IPv6...)
	}
	return out
}

// switchPreACL implements ingress stage 3 (spec.md §4.7 "PRE_ACL").
func switchPreACL(dp *model.Datapath, ports []*model.Port, set *flow.Set) {
	stage := flow.SwitchIngress(flow.LSInPreACL)
	emit(set, dp.NBUUID, stage, 0, "1", "next;")

	if !anyAllowRelated(dp.ACLs) {
		return
	}
	match := "ip && !(nd || icmp4.type == 3 || icmp6.type == 1 || tcp.flags == 0x04)"
	emit(set, dp.NBUUID, stage, 110, match, fmt.Sprintf("%s = 1; next;", regConntrackDefrag))

	for _, p := range ports {
		if p.Kind == model.PortLRP || isLocalnet(p) {
			emit(set, dp.NBUUID, stage, 110, fmt.Sprintf("inport == %s", quoted(p.Name)), "next;")
		}
	}
}

func isLocalnet(p *model.Port) bool { return p.Kind == model.PortLSP && p.Type == model.LSPTypeLocalnet }

func anyAllowRelated(acls []*model.ACL) bool {
	for _, a := range acls {
		if a.Action == model.ACLActionAllowRelated {
			return true
		}
	}
	return false
}

// switchPreLB implements ingress stage 4 (spec.md §4.7 "PRE_LB").
func switchPreLB(dp *model.Datapath, ports []*model.Port, set *flow.Set) {
	stage := flow.SwitchIngress(flow.LSInPreLB)
	emit(set, dp.NBUUID, stage, 0, "1", "next;")
	if len(dp.LoadBalancer) == 0 {
		return
	}
	emit(set, dp.NBUUID, stage, 110, "nd || nd_rs || nd_ra", "next;")
	for _, lb := range dp.LoadBalancer {
		for vip := range lb.Vips {
			host := stripVIPPort(vip)
			ipMatch := "ip4.dst"
			if strings.Contains(host, ":") {
				ipMatch = "ip6.dst"
			}
			emit(set, dp.NBUUID, stage, 100, fmt.Sprintf("%s == %s", ipMatch, host), fmt.Sprintf("%s = 1; next;", regConntrackDefrag))
		}
	}
	egStage := flow.SwitchEgress(flow.LSOutPreLB)
	emit(set, dp.NBUUID, egStage, 110, "nd || nd_rs || nd_ra", "next;")
	emit(set, dp.NBUUID, egStage, 100, "ip", fmt.Sprintf("%s = 1; next;", regConntrackDefrag))
}

func stripVIPPort(vip string) string {
	if idx := strings.LastIndex(vip, ":"); idx > 0 && !strings.Contains(vip, "[") {
		return vip[:idx]
	}
	return vip
}

// switchPreStateful implements ingress stage 5 and egress stage 2
// (spec.md §4.7 "PRE_STATEFUL").
func switchPreStateful(dp *model.Datapath, set *flow.Set) {
	for _, stage := range []flow.Stage{flow.SwitchIngress(flow.LSInPreStateful), flow.SwitchEgress(flow.LSOutPreStateful)} {
		emit(set, dp.NBUUID, stage, 0, "1", "next;")
		emit(set, dp.NBUUID, stage, 100, fmt.Sprintf("%s == 1", regConntrackDefrag), "ct_next;")
	}
}

// switchACL implements ingress stage 6 and egress stage 4 (spec.md §4.7 "ACL").
func switchACL(dp *model.Datapath, set *flow.Set) {
	stateful := anyStatefulACL(dp.ACLs)

	for _, stage := range []flow.Stage{flow.SwitchIngress(flow.LSInACL), flow.SwitchEgress(flow.LSOutACL)} {
		emit(set, dp.NBUUID, stage, 0, "1", "next;")
		emit(set, dp.NBUUID, stage, 65535, "ct.inv || (ct.est && ct.rpl && ct_label.blocked == 1)", "drop;")
		emit(set, dp.NBUUID, stage, 65535, "!ct.new && ct.est && !ct.rpl && !ct.inv && ct_label.blocked == 0", "next;")
		emit(set, dp.NBUUID, stage, 65535, "ct.rel && !ct.inv", "next;")
		emit(set, dp.NBUUID, stage, 65535, "nd || nd_rs || nd_ra", "next;")
	}

	for _, acl := range dp.ACLs {
		stage := flow.SwitchIngress(flow.LSInACL)
		if acl.Direction == model.ACLDirectionToLport {
			stage = flow.SwitchEgress(flow.LSOutACL)
		}
		priority := acl.Priority + model.ACLPriorityOffset
		emitHint(set, dp.NBUUID, stage, priority, acl.Match, aclActions(acl, stateful), aclHint(acl))
	}
}

func anyStatefulACL(acls []*model.ACL) bool {
	for _, a := range acls {
		if a.Action == model.ACLActionAllowRelated {
			return true
		}
	}
	return false
}

func aclHint(acl *model.ACL) string {
	if acl.Name != nil {
		return *acl.Name
	}
	return acl.UUID
}

func aclActions(acl *model.ACL, stateful bool) string {
	switch acl.Action {
	case model.ACLActionAllow:
		return "next;"
	case model.ACLActionAllowRelated:
		if stateful {
			return fmt.Sprintf("%s = 1; next;", regConntrackCommit)
		}
		return "next;"
	case model.ACLActionDrop:
		return "ct_commit { ct_label.blocked = 1; }; drop;"
	case model.ACLActionReject:
		return rejectActions()
	default:
		return "drop;"
	}
}

func rejectActions() string {
	var b strings.Builder
	b.WriteString("ct_commit { ct_label.blocked = 1; }; ")
	b.WriteString("tcp_reset { eth.dst <-> eth.src; ip4.dst <-> ip4.src; tcp.dst <-> tcp.src; output; }; ")
	b.WriteString("tcp_reset { eth.dst <-> eth.src; ip6.dst <-> ip6.src; tcp.dst <-> tcp.src; output; }; ")
	b.WriteString("icmp4 { eth.dst <-> eth.src; ip4.dst <-> ip4.src; icmp4.type = 3; icmp4.code = 3; next; }; ")
	b.WriteString("icmp6 { eth.dst <-> eth.src; ip6.dst <-> ip6.src; icmp6.type = 1; icmp6.code = 4; next; }; ")
	b.WriteString("drop;")
	return b.String()
}

// switchQoS implements ingress stages 7/8 and egress stages 5/6
// (spec.md §4.7) with their priority-0 pass-through flows only; no
// per-rule QoS marking or metering flows are emitted.
func switchQoS(dp *model.Datapath, set *flow.Set) {
	for _, stage := range []flow.Stage{
		flow.SwitchIngress(flow.LSInQoSMark), flow.SwitchIngress(flow.LSInQoSMeter),
		flow.SwitchEgress(flow.LSOutQoSMark), flow.SwitchEgress(flow.LSOutQoSMeter),
	} {
		emit(set, dp.NBUUID, stage, 0, "1", "next;")
	}
}

// switchLBStateful implements ingress stages 9/10 and egress stage 3/7
// (spec.md §4.7 "LB / STATEFUL").
func switchLBStateful(dp *model.Datapath, set *flow.Set) {
	lbStage := flow.SwitchIngress(flow.LSInLB)
	statefulStage := flow.SwitchIngress(flow.LSInStateful)
	egLBStage := flow.SwitchEgress(flow.LSOutLB)
	egStatefulStage := flow.SwitchEgress(flow.LSOutStateful)

	for _, stage := range []flow.Stage{lbStage, egLBStage} {
		emit(set, dp.NBUUID, stage, 0, "1", "next;")
		emit(set, dp.NBUUID, stage, 100, "ct.est && !ct.rpl", fmt.Sprintf("%s = 1; next;", regConntrackNat))
	}
	for _, stage := range []flow.Stage{statefulStage, egStatefulStage} {
		emit(set, dp.NBUUID, stage, 0, "1", "next;")
		emit(set, dp.NBUUID, stage, 100, fmt.Sprintf("%s == 1", regConntrackCommit), "ct_commit { ct_label = 0/1; }; next;")
		emit(set, dp.NBUUID, stage, 100, fmt.Sprintf("%s == 1", regConntrackNat), "ct_lb;")
	}

	for _, lb := range dp.LoadBalancer {
		protoMatch := ""
		if lb.Protocol != nil {
			protoMatch = *lb.Protocol
		}
		for vip, backends := range lb.Vips {
			host, port, hasPort := splitVIP(vip)
			priority := 110
			match := fmt.Sprintf("ct.new && ip4.dst == %s", host)
			if strings.Contains(host, ":") {
				match = fmt.Sprintf("ct.new && ip6.dst == %s", host)
			}
			if hasPort {
				priority = 120
				match += fmt.Sprintf(" && %s.dst == %s", protoMatch, port)
			}
			emit(set, dp.NBUUID, statefulStage, priority, match, fmt.Sprintf("ct_lb(%s);", backends))
		}
	}
}

func splitVIP(vip string) (host, port string, hasPort bool) {
	host = stripVIPPort(vip)
	if host != vip {
		return host, vip[len(host)+1:], true
	}
	return vip, "", false
}

// switchArpNdRsp implements ingress stage 11 (spec.md §4.7 "ARP/ND responder").
func switchArpNdRsp(dp *model.Datapath, ports []*model.Port, set *flow.Set) {
	stage := flow.SwitchIngress(flow.LSInArpNdRsp)
	emit(set, dp.NBUUID, stage, 0, "1", "next;")

	for _, p := range ports {
		if isLocalnet(p) || p.Type == model.LSPTypeVTEP {
			continue
		}
		if p.Kind != model.PortLSP && p.Kind != model.PortLRPRedirect {
			continue
		}
		for _, ip := range p.IPv4 {
			arpReply := fmt.Sprintf("eth.dst = eth.src; eth.src = %s; arp.op = 2; arp.tha = arp.sha; arp.sha = %s; arp.tpa = arp.spa; arp.spa = %s; outport = inport; flags.loopback = 1; output;", p.MAC, p.MAC, ip)
			emit(set, dp.NBUUID, stage, 50, fmt.Sprintf("arp.op == 1 && arp.tpa == %s", ip), arpReply)
			emit(set, dp.NBUUID, stage, 100, fmt.Sprintf("inport == %s && arp.op == 1 && arp.tpa == %s", quoted(p.Name), ip), "next;")
		}
		for _, ip := range p.IPv6 {
			naAction := "nd_na"
			if p.RedirectOf != "" {
				naAction = "nd_na_router"
			}
			reply := fmt.Sprintf("%s { eth.src = %s; ip6.src = %s; nd.target = %s; nd.tll = %s; outport = inport; flags.loopback = 1; output; };", naAction, p.MAC, ip, ip, p.MAC)
			emit(set, dp.NBUUID, stage, 50, fmt.Sprintf("nd_ns && nd.target == %s", ip), reply)
		}
	}
}

// switchDHCP implements ingress stages 12/13 (spec.md §4.7 "DHCP options/response").
func switchDHCP(dp *model.Datapath, ports []*model.Port, set *flow.Set) {
	optsStage := flow.SwitchIngress(flow.LSInDHCPOptions)
	respStage := flow.SwitchIngress(flow.LSInDHCPResponse)
	emit(set, dp.NBUUID, optsStage, 0, "1", "next;")
	emit(set, dp.NBUUID, respStage, 0, "1", "next;")

	for _, p := range ports {
		inport := quoted(p.Name)
		discovery := fmt.Sprintf("inport == %s && eth.src == %s && ip4.src == 0.0.0.0 && ip4.dst == 255.255.255.255 && udp.src == 68 && udp.dst == 67", inport, p.MAC)
		renew := fmt.Sprintf("inport == %s && eth.src == %s && ip4 && udp.src == 68 && udp.dst == 67", inport, p.MAC)
		for _, ip := range p.IPv4 {
			putOpts := fmt.Sprintf("%s = put_dhcp_opts(offerip = %s, ...); next;", regDHCPOptsResult, ip)
			emit(set, dp.NBUUID, optsStage, 100, discovery, putOpts)
			emit(set, dp.NBUUID, optsStage, 100, renew, putOpts)

			reply := fmt.Sprintf("eth.dst = eth.src; eth.src = %s; ip4.dst = %s; ip4.src = %s; udp.src = 67; udp.dst = 68; outport = inport; flags.loopback = 1; output;", p.MAC, ip, ip)
			emit(set, dp.NBUUID, respStage, 100, fmt.Sprintf("%s == 1", regDHCPOptsResult), reply)
		}
		for _, ip := range p.IPv6 {
			putOpts6 := fmt.Sprintf("%s = put_dhcpv6_opts(...); next;", regDHCPOptsResult)
			emit(set, dp.NBUUID, optsStage, 100, fmt.Sprintf("inport == %s && eth.src == %s && ip6 && udp.src == 546 && udp.dst == 547", inport, p.MAC), putOpts6)
			reply6 := fmt.Sprintf("eth.dst = eth.src; eth.src = %s; ip6.dst = %s; ip6.src = %s; udp.src = 547; udp.dst = 546; outport = inport; flags.loopback = 1; output;", p.MAC, ip, ip)
			emit(set, dp.NBUUID, respStage, 100, fmt.Sprintf("%s == 1", regDHCPOptsResult), reply6)
		}
	}
}

// switchDNS implements ingress stages 14/15 (spec.md §4.7 "DNS").
func switchDNS(dp *model.Datapath, set *flow.Set) {
	lookupStage := flow.SwitchIngress(flow.LSInDNSLookup)
	respStage := flow.SwitchIngress(flow.LSInDNSResponse)
	emit(set, dp.NBUUID, lookupStage, 0, "1", "next;")
	emit(set, dp.NBUUID, respStage, 0, "1", "next;")

	if !anyNonEmptyDNS(dp.DNSRecords) {
		return
	}
	emit(set, dp.NBUUID, lookupStage, 100, "udp.dst == 53", fmt.Sprintf("%s = dns_lookup(); next;", regDNSLookupResult))
	emit(set, dp.NBUUID, respStage, 100, fmt.Sprintf("%s == 1 && ip4", regDNSLookupResult),
		"eth.dst <-> eth.src; ip4.dst <-> ip4.src; udp.src = 53; output;")
	emit(set, dp.NBUUID, respStage, 100, fmt.Sprintf("%s == 1 && ip6", regDNSLookupResult),
		"eth.dst <-> eth.src; ip6.dst <-> ip6.src; udp.src = 53; output;")
}

func anyNonEmptyDNS(records []*model.DNSNB) bool {
	for _, r := range records {
		if len(r.Records) > 0 {
			return true
		}
	}
	return false
}

// switchExternalPort implements ingress stage 16 (spec.md §4.7 "External-port").
func switchExternalPort(dp *model.Datapath, ports []*model.Port, set *flow.Set) {
	stage := flow.SwitchIngress(flow.LSInExternalPort)
	emit(set, dp.NBUUID, stage, 0, "1", "next;")

	for _, p := range ports {
		if p.Kind != model.PortLSP || p.Type != model.LSPTypeExternal {
			continue
		}
		for _, ip := range p.IPv4 {
			emit(set, dp.NBUUID, stage, 100, fmt.Sprintf("arp.op == 1 && arp.tpa == %s && !is_chassis_resident(%s)", ip, quoted(p.Name)), "drop;")
		}
		for _, ip := range p.IPv6 {
			emit(set, dp.NBUUID, stage, 100, fmt.Sprintf("nd_ns && nd.target == %s && !is_chassis_resident(%s)", ip, quoted(p.Name)), "drop;")
		}
	}
}

// switchL2Lookup implements ingress stage 17 (spec.md §4.7 "L2 lookup").
func switchL2Lookup(dp *model.Datapath, ports []*model.Port, set *flow.Set) {
	stage := flow.SwitchIngress(flow.LSInL2Lkup)

	emit(set, dp.NBUUID, stage, 100, "ip4.proto == 2", "handle_igmp;")
	emit(set, dp.NBUUID, stage, 85, "ip4.mcast && ip4.dst == 224.0.0.0/24", fmt.Sprintf("outport = %s; output;", quoted(model.MCGroupFlood)))

	relay := dp.ReservedGroups[model.MCGroupMrouterFlood]
	mrouterStatic := dp.ReservedGroups[model.MCGroupMrouterStatic]
	static := dp.ReservedGroups[model.MCGroupStatic]

	for _, g := range dp.IGMPGroups {
		actions := fmt.Sprintf("outport = %s; output;", quoted(g.Name))
		if relay != nil && len(relay.Ports) > 0 {
			actions += fmt.Sprintf(" clone { outport = %s; output; };", quoted(model.MCGroupMrouterFlood))
		}
		if static != nil && len(static.Ports) > 0 {
			actions += fmt.Sprintf(" clone { outport = %s; output; };", quoted(model.MCGroupStatic))
		}
		emit(set, dp.NBUUID, stage, 90, multicastDestMatch(g.Name), actions)
	}

	mc := dp.Multicast
	if mc != nil && !mc.FloodUnregistered {
		// Relay/static/drop policy (spec.md §4.7): prefer a dynamically
		// learnt relay router, then any admin-configured static router,
		// then ports flagged flood, falling back to drop.
		switch {
		case relay != nil && len(relay.Ports) > 0:
			emit(set, dp.NBUUID, stage, 80, "ip4.mcast || ip6.mcast", fmt.Sprintf("outport = %s; output;", quoted(model.MCGroupMrouterFlood)))
		case mrouterStatic != nil && len(mrouterStatic.Ports) > 0:
			emit(set, dp.NBUUID, stage, 80, "ip4.mcast || ip6.mcast", fmt.Sprintf("outport = %s; output;", quoted(model.MCGroupMrouterStatic)))
		case static != nil && len(static.Ports) > 0:
			emit(set, dp.NBUUID, stage, 80, "ip4.mcast || ip6.mcast", fmt.Sprintf("outport = %s; output;", quoted(model.MCGroupStatic)))
		default:
			emit(set, dp.NBUUID, stage, 80, "ip4.mcast || ip6.mcast", "drop;")
		}
	}

	emit(set, dp.NBUUID, stage, 70, "eth.mcast", fmt.Sprintf("outport = %s; output;", quoted(model.MCGroupFlood)))

	for _, p := range ports {
		if p.MAC == "" {
			continue
		}
		actions := fmt.Sprintf("outport = %s; output;", quoted(p.Name))
		if p.Kind == model.PortLRPRedirect {
			actions = fmt.Sprintf("outport = %s; output;", quoted(p.Name))
			emit(set, dp.NBUUID, stage, 50, fmt.Sprintf("eth.dst == %s && is_chassis_resident(%s)", p.MAC, quoted(p.Name)), actions)
			continue
		}
		emit(set, dp.NBUUID, stage, 50, fmt.Sprintf("eth.dst == %s", p.MAC), actions)
	}

	hasUnknown := false
	for _, p := range ports {
		if p.Kind == model.PortLSP && strings.EqualFold(p.MAC, "unknown") {
			hasUnknown = true
		}
	}
	if mc != nil {
		mc.HasUnknown = hasUnknown
	}
	if hasUnknown {
		emit(set, dp.NBUUID, stage, 0, "1", fmt.Sprintf("outport = %s; output;", quoted(model.MCGroupUnknown)))
	}
}

// multicastDestMatch builds the match expression for a learnt multicast
// group's normalized address, which internal/reconcile stores IPv6-mapped
// when the group's native address is IPv4 (spec.md §4.5).
func multicastDestMatch(normalized string) string {
	if addr, ok := strings.CutPrefix(normalized, "::ffff:"); ok {
		return fmt.Sprintf("ip4.mcast && ip4.dst == %s", addr)
	}
	return fmt.Sprintf("ip6.mcast && ip6.dst == %s", normalized)
}
