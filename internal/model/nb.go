// Package model holds the in-memory representation of the northbound and
// southbound database rows this module translates between, plus the
// arena-indexed cache C2..C6 build up over one reconciliation pass.
//
// Row structs are tagged the way github.com/ovn-org/libovsdb expects its
// model.Model implementations to be tagged, so a real client can decode
// rows directly into them; nothing in this package performs wire decoding
// itself, per spec.md's "database client runtime... out of scope".
package model

// LogicalSwitch is the NB Logical_Switch row (spec.md §3 Datapath, kind=SWITCH).
type LogicalSwitch struct {
	UUID        string            `ovsdb:"_uuid"`
	Name        string            `ovsdb:"name"`
	Ports       []string          `ovsdb:"ports"`
	ACLs        []string          `ovsdb:"acls"`
	QOSRules    []string          `ovsdb:"qos_rules"`
	LoadBalancer []string         `ovsdb:"load_balancer"`
	DNSRecords  []string          `ovsdb:"dns_records"`
	OtherConfig map[string]string `ovsdb:"other_config"`
	ExternalIDs map[string]string `ovsdb:"external_ids"`
}

// LogicalSwitchPort is the NB Logical_Switch_Port row.
type LogicalSwitchPort struct {
	UUID             string            `ovsdb:"_uuid"`
	Name             string            `ovsdb:"name"`
	Type             string            `ovsdb:"type"`
	Addresses        []string          `ovsdb:"addresses"`
	DynamicAddresses *string           `ovsdb:"dynamic_addresses"`
	PortSecurity     []string          `ovsdb:"port_security"`
	Options          map[string]string `ovsdb:"options"`
	ExternalIDs      map[string]string `ovsdb:"external_ids"`
	Enabled          *bool             `ovsdb:"enabled"`
	Up               *bool             `ovsdb:"up"`
	TagRequest       *int              `ovsdb:"tag_request"`
	Tag              *int              `ovsdb:"tag"`
	ParentName       *string           `ovsdb:"parent_name"`
	Dhcpv4Options    *string           `ovsdb:"dhcpv4_options"`
	Dhcpv6Options    *string           `ovsdb:"dhcpv6_options"`
	HaChassisGroup   *string           `ovsdb:"ha_chassis_group"`
}

// LSPType enumerates the kinds of Logical_Switch_Port.Type this module cares about.
const (
	LSPTypeNormal   = ""
	LSPTypeRouter   = "router"
	LSPTypeLocalnet = "localnet"
	LSPTypeVTEP     = "vtep"
	LSPTypeExternal = "external"
	LSPTypeVirtual  = "virtual"
)

// LogicalRouter is the NB Logical_Router row (spec.md §3 Datapath, kind=ROUTER).
type LogicalRouter struct {
	UUID         string            `ovsdb:"_uuid"`
	Name         string            `ovsdb:"name"`
	Ports        []string          `ovsdb:"ports"`
	StaticRoutes []string          `ovsdb:"static_routes"`
	Policies     []string          `ovsdb:"policies"`
	Nat          []string          `ovsdb:"nat"`
	LoadBalancer []string          `ovsdb:"load_balancer"`
	Options      map[string]string `ovsdb:"options"`
	ExternalIDs  map[string]string `ovsdb:"external_ids"`
	Enabled      *bool             `ovsdb:"enabled"`
}

// LogicalRouterPort is the NB Logical_Router_Port row.
type LogicalRouterPort struct {
	UUID           string            `ovsdb:"_uuid"`
	Name           string            `ovsdb:"name"`
	Networks       []string          `ovsdb:"networks"`
	MAC            string            `ovsdb:"mac"`
	Peer           *string           `ovsdb:"peer"`
	GatewayChassis []string          `ovsdb:"gateway_chassis"`
	HaChassisGroup *string           `ovsdb:"ha_chassis_group"`
	Options        map[string]string `ovsdb:"options"`
	ExternalIDs    map[string]string `ovsdb:"external_ids"`
	Enabled        *bool             `ovsdb:"enabled"`
}

// GatewayChassis is the NB Gateway_Chassis row, an LRP's legacy-array gateway declaration.
type GatewayChassis struct {
	UUID        string            `ovsdb:"_uuid"`
	Name        string            `ovsdb:"name"`
	ChassisName string            `ovsdb:"chassis_name"`
	Priority    int               `ovsdb:"priority"`
	ExternalIDs map[string]string `ovsdb:"external_ids"`
}

// HAChassisGroupNB is the NB HA_Chassis_Group row (a user-declared group, form (a) in spec.md §4.4).
type HAChassisGroupNB struct {
	UUID        string            `ovsdb:"_uuid"`
	Name        string            `ovsdb:"name"`
	HaChassis   []string          `ovsdb:"ha_chassis"`
	ExternalIDs map[string]string `ovsdb:"external_ids"`
}

// HAChassisNB is one member of an NB HA_Chassis_Group.
type HAChassisNB struct {
	UUID        string            `ovsdb:"_uuid"`
	ChassisName string            `ovsdb:"chassis_name"`
	Priority    int               `ovsdb:"priority"`
	ExternalIDs map[string]string `ovsdb:"external_ids"`
}

// ACL is the NB ACL row (spec.md §3 ACL).
type ACL struct {
	UUID        string            `ovsdb:"_uuid"`
	Name        *string           `ovsdb:"name"`
	Direction   string            `ovsdb:"direction"`
	Priority    int               `ovsdb:"priority"`
	Match       string            `ovsdb:"match"`
	Action      string            `ovsdb:"action"`
	Log         bool              `ovsdb:"log"`
	Severity    *string           `ovsdb:"severity"`
	Meter       *string           `ovsdb:"meter"`
	ExternalIDs map[string]string `ovsdb:"external_ids"`
}

// ACL direction values.
const (
	ACLDirectionFromLport = "from-lport"
	ACLDirectionToLport   = "to-lport"
)

// ACL action values.
const (
	ACLActionAllow        = "allow"
	ACLActionAllowRelated = "allow-related"
	ACLActionDrop         = "drop"
	ACLActionReject       = "reject"
)

// ACLPriorityOffset is added to every user ACL's priority before emission
// (spec.md §3, "Priority is offset by +1000...").
const ACLPriorityOffset = 1000

// AddressSet is the NB Address_Set row.
type AddressSet struct {
	UUID        string            `ovsdb:"_uuid"`
	Name        string            `ovsdb:"name"`
	Addresses   []string          `ovsdb:"addresses"`
	ExternalIDs map[string]string `ovsdb:"external_ids"`
}

// PortGroup is the NB Port_Group row.
type PortGroup struct {
	UUID        string            `ovsdb:"_uuid"`
	Name        string            `ovsdb:"name"`
	Ports       []string          `ovsdb:"ports"`
	ACLs        []string          `ovsdb:"acls"`
	ExternalIDs map[string]string `ovsdb:"external_ids"`
}

// LoadBalancer is the NB Load_Balancer row.
type LoadBalancer struct {
	UUID        string            `ovsdb:"_uuid"`
	Name        string            `ovsdb:"name"`
	Vips        map[string]string `ovsdb:"vips"`
	Protocol    *string           `ovsdb:"protocol"`
	Options     map[string]string `ovsdb:"options"`
	ExternalIDs map[string]string `ovsdb:"external_ids"`
}

// Load_Balancer protocol values.
const (
	LBProtocolTCP = "tcp"
	LBProtocolUDP = "udp"
)

// NAT is the NB NAT row (spec.md §3 NAT rule).
type NAT struct {
	UUID        string            `ovsdb:"_uuid"`
	Type        string            `ovsdb:"type"`
	ExternalIP  string            `ovsdb:"external_ip"`
	ExternalMAC *string           `ovsdb:"external_mac"`
	LogicalIP   string            `ovsdb:"logical_ip"`
	LogicalPort *string           `ovsdb:"logical_port"`
	Stateless   bool              `ovsdb:"stateless"`
	ExternalIDs map[string]string `ovsdb:"external_ids"`
}

// NAT type values.
const (
	NATTypeSNAT          = "snat"
	NATTypeDNAT          = "dnat"
	NATTypeDNATAndSNAT   = "dnat_and_snat"
)

// StaticRoute is the NB Logical_Router_Static_Route row.
type StaticRoute struct {
	UUID       string  `ovsdb:"_uuid"`
	IPPrefix   string  `ovsdb:"ip_prefix"`
	Nexthop    string  `ovsdb:"nexthop"`
	OutputPort *string `ovsdb:"output_port"`
	Policy     *string `ovsdb:"policy"`
}

// Route policy values ("dst-ip" is the default when nil).
const (
	RoutePolicyDstIP = "dst-ip"
	RoutePolicySrcIP = "src-ip"
)

// RoutingPolicy is the NB Logical_Router_Policy row.
type RoutingPolicy struct {
	UUID     string            `ovsdb:"_uuid"`
	Priority int               `ovsdb:"priority"`
	Match    string            `ovsdb:"match"`
	Action   string            `ovsdb:"action"`
	Nexthops []string          `ovsdb:"nexthops"`
	Options  map[string]string `ovsdb:"options"`
}

// Routing policy actions.
const (
	PolicyActionReroute = "reroute"
	PolicyActionDrop    = "drop"
	PolicyActionAllow   = "allow"
)

// DHCPOptionsNB is the NB DHCP_Options row (covers both DHCPv4 and DHCPv6; Cidr distinguishes).
type DHCPOptionsNB struct {
	UUID        string            `ovsdb:"_uuid"`
	Cidr        string            `ovsdb:"cidr"`
	Options     map[string]string `ovsdb:"options"`
	ExternalIDs map[string]string `ovsdb:"external_ids"`
}

// DNSNB is the NB DNS row.
type DNSNB struct {
	UUID        string            `ovsdb:"_uuid"`
	Records     map[string]string `ovsdb:"records"`
	ExternalIDs map[string]string `ovsdb:"external_ids"`
}

// Meter is the NB Meter row.
type Meter struct {
	UUID  string   `ovsdb:"_uuid"`
	Name  string   `ovsdb:"name"`
	Unit  string   `ovsdb:"unit"`
	Bands []string `ovsdb:"bands"`
}

// MeterBand is the NB Meter_Band row.
type MeterBand struct {
	UUID   string `ovsdb:"_uuid"`
	Action string `ovsdb:"action"`
	Rate   int    `ovsdb:"rate"`
	Burst  int    `ovsdb:"burst_size"`
}

// NBGlobal is the NB NB_Global row.
type NBGlobal struct {
	UUID        string            `ovsdb:"_uuid"`
	NbCfg       int               `ovsdb:"nb_cfg"`
	SbCfg       int               `ovsdb:"sb_cfg"`
	HvCfg       int               `ovsdb:"hv_cfg"`
	Options     map[string]string `ovsdb:"options"`
	Ipsec       bool              `ovsdb:"ipsec"`
	ExternalIDs map[string]string `ovsdb:"external_ids"`
}

// Well-known NB_Global.options keys (spec.md §6 "global `options` map").
const (
	OptMACPrefix      = "mac_prefix"
	OptControllerEvt  = "controller_event"
	OptIPsec          = "ipsec"
)
