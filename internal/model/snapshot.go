package model

// Snapshot is a consistent read of the northbound desired state and the
// southbound observed state, as handed to one reconciliation pass
// (spec.md §2 "Each cycle reads a consistent snapshot..."). Building one of
// these from a real OVSDB connection is the job of internal/ovsdb; building
// one by hand is how the test suite drives the engine without an event loop
// (spec.md §9, design note "Avoid async where not needed").
type Snapshot struct {
	NB NorthboundSnapshot
	SB SouthboundSnapshot
}

// NorthboundSnapshot is every NB table this module reads.
type NorthboundSnapshot struct {
	Global          *NBGlobal
	Switches        []*LogicalSwitch
	SwitchPorts     map[string]*LogicalSwitchPort // by UUID
	Routers         []*LogicalRouter
	RouterPorts     map[string]*LogicalRouterPort // by UUID
	GatewayChassis  map[string]*GatewayChassis    // by UUID
	HAGroups        map[string]*HAChassisGroupNB  // by UUID
	HAChassis       map[string]*HAChassisNB       // by UUID
	ACLs            map[string]*ACL               // by UUID
	AddressSets     []*AddressSet
	PortGroups      []*PortGroup
	LoadBalancers   map[string]*LoadBalancer // by UUID
	NATs            map[string]*NAT          // by UUID
	StaticRoutes    map[string]*StaticRoute  // by UUID
	Policies        map[string]*RoutingPolicy
	DHCPOptions     map[string]*DHCPOptionsNB
	DNS             map[string]*DNSNB
	Meters          []*Meter
	MeterBands      map[string]*MeterBand
}

// SouthboundSnapshot is every SB table this module reads and writes.
type SouthboundSnapshot struct {
	Global           *SBGlobal
	Datapaths        []*DatapathBinding
	Ports            []*PortBinding
	Chassis          []*Chassis
	Encaps           []*Encap
	HAGroups         []*HAChassisGroupSB
	HAChassis        map[string]*HAChassisSB
	MulticastGroups  []*MulticastGroup
	IGMPGroups       []*IGMPGroup
	LogicalFlows     []*LogicalFlow
	AddressSets      []*AddressSetSB
	PortGroups       []*PortGroupSB
	Meters           []*MeterSB
	DNS              []*DNSSB
	DHCPOptions      []*DHCPOptionsSB
	DHCPv6Options    []*DHCPOptionsSB
	IPMulticast      []*IPMulticastSB
	RBACRoles        []*RBACRole
	RBACPermissions  []*RBACPermission
}
