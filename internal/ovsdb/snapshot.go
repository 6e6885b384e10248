package ovsdb

import (
	"context"
	"fmt"

	"github.com/ovnxlate/ovnxlate/internal/model"
)

// ReadSnapshot lists every table model.Snapshot names from both databases
// and assembles them into one consistent-enough read for a reconciliation
// cycle (spec.md §2). libovsdb's List reads from the locally monitored
// cache, never the wire, so this never blocks on the server.
func (c *Client) ReadSnapshot(ctx context.Context) (model.Snapshot, error) {
	var nb model.NorthboundSnapshot
	var sb model.SouthboundSnapshot

	var switches []*model.LogicalSwitch
	var switchPorts []*model.LogicalSwitchPort
	var routers []*model.LogicalRouter
	var routerPorts []*model.LogicalRouterPort
	var gwChassis []*model.GatewayChassis
	var haGroupsNB []*model.HAChassisGroupNB
	var haChassisNB []*model.HAChassisNB
	var acls []*model.ACL
	var addressSets []*model.AddressSet
	var portGroups []*model.PortGroup
	var lbs []*model.LoadBalancer
	var nats []*model.NAT
	var routes []*model.StaticRoute
	var policies []*model.RoutingPolicy
	var dhcpNB []*model.DHCPOptionsNB
	var dnsNB []*model.DNSNB
	var meters []*model.Meter
	var meterBands []*model.MeterBand
	var nbGlobals []*model.NBGlobal

	if err := listAll(ctx, c.nb, &switches, &switchPorts, &routers, &routerPorts,
		&gwChassis, &haGroupsNB, &haChassisNB, &acls, &addressSets, &portGroups,
		&lbs, &nats, &routes, &policies, &dhcpNB, &dnsNB, &meters, &meterBands, &nbGlobals); err != nil {
		return model.Snapshot{}, fmt.Errorf("read northbound: %w", err)
	}

	nb = assembleNorthbound(switches, switchPorts, routers, routerPorts, gwChassis,
		haGroupsNB, haChassisNB, acls, addressSets, portGroups, lbs, nats, routes,
		policies, dhcpNB, dnsNB, meters, meterBands, nbGlobals)

	var dps []*model.DatapathBinding
	var pbs []*model.PortBinding
	var chassis []*model.Chassis
	var encaps []*model.Encap
	var haGroupsSB []*model.HAChassisGroupSB
	var haChassisSB []*model.HAChassisSB
	var mcGroups []*model.MulticastGroup
	var igmpGroups []*model.IGMPGroup
	var flows []*model.LogicalFlow
	var addressSetsSB []*model.AddressSetSB
	var portGroupsSB []*model.PortGroupSB
	var metersSB []*model.MeterSB
	var dnsSB []*model.DNSSB
	var dhcpSB []*model.DHCPOptionsSB
	var dhcp6SB []*model.DHCPOptionsSB
	var ipMulticast []*model.IPMulticastSB
	var roles []*model.RBACRole
	var perms []*model.RBACPermission
	var sbGlobals []*model.SBGlobal

	if err := listAll(ctx, c.sb, &dps, &pbs, &chassis, &encaps, &haGroupsSB,
		&haChassisSB, &mcGroups, &igmpGroups, &flows, &addressSetsSB, &portGroupsSB,
		&metersSB, &dnsSB, &ipMulticast, &roles, &perms, &sbGlobals); err != nil {
		return model.Snapshot{}, fmt.Errorf("read southbound: %w", err)
	}
	// DHCP_Options and DHCPv6_Options share a Go type; list them by table
	// name explicitly rather than by destination slice type.
	if err := c.sb.List(ctx, &dhcpSB); err != nil {
		return model.Snapshot{}, fmt.Errorf("read DHCP_Options: %w", err)
	}
	if err := c.sb.List(ctx, &dhcp6SB); err != nil {
		return model.Snapshot{}, fmt.Errorf("read DHCPv6_Options: %w", err)
	}

	sb = assembleSouthbound(dps, pbs, chassis, encaps, haGroupsSB, haChassisSB,
		mcGroups, igmpGroups, flows, addressSetsSB, portGroupsSB, metersSB, dnsSB,
		dhcpSB, dhcp6SB, ipMulticast, roles, perms, sbGlobals)

	return model.Snapshot{NB: nb, SB: sb}, nil
}

// lister is the subset of libovsdbclient.Client that List needs, narrowed
// so the assembly logic below can be unit tested without dialing a real
// database (spec.md §9 "avoid async where not needed" applies just as
// much to test setup).
type lister interface {
	List(ctx context.Context, result interface{}) error
}

func listAll(ctx context.Context, db lister, results ...interface{}) error {
	for _, r := range results {
		if err := db.List(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// assembleNorthbound turns flat per-table slices into the keyed shape
// model.NorthboundSnapshot wants; kept separate from ReadSnapshot's I/O so
// it can be exercised directly in tests.
func assembleNorthbound(
	switches []*model.LogicalSwitch,
	switchPorts []*model.LogicalSwitchPort,
	routers []*model.LogicalRouter,
	routerPorts []*model.LogicalRouterPort,
	gwChassis []*model.GatewayChassis,
	haGroups []*model.HAChassisGroupNB,
	haChassis []*model.HAChassisNB,
	acls []*model.ACL,
	addressSets []*model.AddressSet,
	portGroups []*model.PortGroup,
	lbs []*model.LoadBalancer,
	nats []*model.NAT,
	routes []*model.StaticRoute,
	policies []*model.RoutingPolicy,
	dhcp []*model.DHCPOptionsNB,
	dns []*model.DNSNB,
	meters []*model.Meter,
	meterBands []*model.MeterBand,
	globals []*model.NBGlobal,
) model.NorthboundSnapshot {
	nb := model.NorthboundSnapshot{
		Switches:       switches,
		Routers:        routers,
		AddressSets:    addressSets,
		PortGroups:     portGroups,
		Meters:         meters,
		SwitchPorts:    make(map[string]*model.LogicalSwitchPort, len(switchPorts)),
		RouterPorts:    make(map[string]*model.LogicalRouterPort, len(routerPorts)),
		GatewayChassis: make(map[string]*model.GatewayChassis, len(gwChassis)),
		HAGroups:       make(map[string]*model.HAChassisGroupNB, len(haGroups)),
		HAChassis:      make(map[string]*model.HAChassisNB, len(haChassis)),
		ACLs:           make(map[string]*model.ACL, len(acls)),
		LoadBalancers:  make(map[string]*model.LoadBalancer, len(lbs)),
		NATs:           make(map[string]*model.NAT, len(nats)),
		StaticRoutes:   make(map[string]*model.StaticRoute, len(routes)),
		Policies:       make(map[string]*model.RoutingPolicy, len(policies)),
		DHCPOptions:    make(map[string]*model.DHCPOptionsNB, len(dhcp)),
		DNS:            make(map[string]*model.DNSNB, len(dns)),
		MeterBands:     make(map[string]*model.MeterBand, len(meterBands)),
	}
	if len(globals) > 0 {
		nb.Global = globals[0]
	}
	for _, p := range switchPorts {
		nb.SwitchPorts[p.UUID] = p
	}
	for _, p := range routerPorts {
		nb.RouterPorts[p.UUID] = p
	}
	for _, g := range gwChassis {
		nb.GatewayChassis[g.UUID] = g
	}
	for _, g := range haGroups {
		nb.HAGroups[g.UUID] = g
	}
	for _, c := range haChassis {
		nb.HAChassis[c.UUID] = c
	}
	for _, a := range acls {
		nb.ACLs[a.UUID] = a
	}
	for _, l := range lbs {
		nb.LoadBalancers[l.UUID] = l
	}
	for _, n := range nats {
		nb.NATs[n.UUID] = n
	}
	for _, r := range routes {
		nb.StaticRoutes[r.UUID] = r
	}
	for _, p := range policies {
		nb.Policies[p.UUID] = p
	}
	for _, d := range dhcp {
		nb.DHCPOptions[d.UUID] = d
	}
	for _, d := range dns {
		nb.DNS[d.UUID] = d
	}
	for _, b := range meterBands {
		nb.MeterBands[b.UUID] = b
	}
	return nb
}

// assembleSouthbound is assembleNorthbound's southbound counterpart.
func assembleSouthbound(
	dps []*model.DatapathBinding,
	pbs []*model.PortBinding,
	chassis []*model.Chassis,
	encaps []*model.Encap,
	haGroups []*model.HAChassisGroupSB,
	haChassis []*model.HAChassisSB,
	mcGroups []*model.MulticastGroup,
	igmpGroups []*model.IGMPGroup,
	flows []*model.LogicalFlow,
	addressSets []*model.AddressSetSB,
	portGroups []*model.PortGroupSB,
	meters []*model.MeterSB,
	dns []*model.DNSSB,
	dhcp []*model.DHCPOptionsSB,
	dhcp6 []*model.DHCPOptionsSB,
	ipMulticast []*model.IPMulticastSB,
	roles []*model.RBACRole,
	perms []*model.RBACPermission,
	globals []*model.SBGlobal,
) model.SouthboundSnapshot {
	sb := model.SouthboundSnapshot{
		Datapaths:       dps,
		Ports:           pbs,
		Chassis:         chassis,
		Encaps:          encaps,
		HAGroups:        haGroups,
		MulticastGroups: mcGroups,
		IGMPGroups:      igmpGroups,
		LogicalFlows:    flows,
		AddressSets:     addressSets,
		PortGroups:      portGroups,
		Meters:          meters,
		DNS:             dns,
		DHCPOptions:     dhcp,
		DHCPv6Options:   dhcp6,
		IPMulticast:     ipMulticast,
		RBACRoles:       roles,
		RBACPermissions: perms,
		HAChassis:       make(map[string]*model.HAChassisSB, len(haChassis)),
	}
	if len(globals) > 0 {
		sb.Global = globals[0]
	}
	for _, c := range haChassis {
		sb.HAChassis[c.UUID] = c
	}
	return sb
}
