package model

// DatapathBinding is the SB Datapath_Binding row.
type DatapathBinding struct {
	UUID        string            `ovsdb:"_uuid"`
	TunnelKey   int               `ovsdb:"tunnel_key"`
	ExternalIDs map[string]string `ovsdb:"external_ids"`
}

// Datapath_Binding.external_ids keys that carry the NB identity (spec.md §4.2).
const (
	DBExtIDLogicalSwitch = "logical-switch"
	DBExtIDLogicalRouter = "logical-router"
	DBExtIDName          = "name"
	DBExtIDName2         = "name2"
)

// PortBinding is the SB Port_Binding row.
type PortBinding struct {
	UUID           string            `ovsdb:"_uuid"`
	LogicalPort    string            `ovsdb:"logical_port"`
	Datapath       string            `ovsdb:"datapath"`
	TunnelKey      int               `ovsdb:"tunnel_key"`
	Type           string            `ovsdb:"type"`
	Chassis        *string           `ovsdb:"chassis"`
	Options        map[string]string `ovsdb:"options"`
	Mac            []string          `ovsdb:"mac"`
	NatAddresses   []string          `ovsdb:"nat_addresses"`
	GatewayChassis []string          `ovsdb:"gateway_chassis"`
	HaChassisGroup *string           `ovsdb:"ha_chassis_group"`
	ExternalIDs    map[string]string `ovsdb:"external_ids"`
}

// PortBinding.type values used for the derived redirect port (spec.md §3 Port).
const (
	PBTypeChassisRedirect = "chassisredirect"
	PBTypePatch           = "patch"
	PBTypeLocalnet        = "localnet"
)

// Chassis is the SB Chassis row.
type Chassis struct {
	UUID        string            `ovsdb:"_uuid"`
	Name        string            `ovsdb:"name"`
	Hostname    string            `ovsdb:"hostname"`
	Encaps      []string          `ovsdb:"encaps"`
	NbCfg       int               `ovsdb:"nb_cfg"`
	ExternalIDs map[string]string `ovsdb:"external_ids"`
}

// Encap is the SB Encap row.
type Encap struct {
	UUID        string            `ovsdb:"_uuid"`
	Type        string            `ovsdb:"type"`
	IP          string            `ovsdb:"ip"`
	ChassisName string            `ovsdb:"chassis_name"`
	Options     map[string]string `ovsdb:"options"`
}

// HAChassisGroupSB is the SB HA_Chassis_Group row (spec.md §3, §4.4).
type HAChassisGroupSB struct {
	UUID        string   `ovsdb:"_uuid"`
	Name        string   `ovsdb:"name"`
	HaChassis   []string `ovsdb:"ha_chassis"`
	RefChassis  []string `ovsdb:"ref_chassis"`
}

// HAChassisSB is one member of an SB HA_Chassis_Group.
type HAChassisSB struct {
	UUID        string `ovsdb:"_uuid"`
	ChassisName string `ovsdb:"chassis_name"`
	Priority    int    `ovsdb:"priority"`
}

// MulticastGroup is the SB Multicast_Group row.
type MulticastGroup struct {
	UUID     string   `ovsdb:"_uuid"`
	Datapath string   `ovsdb:"datapath"`
	Name     string   `ovsdb:"name"`
	TunnelKey int      `ovsdb:"tunnel_key"`
	Ports    []string `ovsdb:"ports"`
}

// Reserved multicast group names and keys (spec.md §3 "Multicast group (SB)").
const (
	MCGroupFlood         = "_MC_flood"
	MCGroupFloodKey      = 65535
	MCGroupMrouterFlood  = "_MC_mrouter_flood"
	MCGroupMrouterFloodKey = 65534
	MCGroupMrouterStatic = "_MC_mrouter_static"
	MCGroupMrouterStaticKey = 65533
	MCGroupStatic        = "_MC_static"
	MCGroupStaticKey     = 65532
	MCGroupUnknown       = "_MC_unknown"
	MCGroupUnknownKey    = 65531
)

// IGMPGroup is the SB IGMP_Group row.
type IGMPGroup struct {
	UUID     string   `ovsdb:"_uuid"`
	Address  string   `ovsdb:"address"`
	Datapath string   `ovsdb:"datapath"`
	Chassis  string   `ovsdb:"chassis"`
	Ports    []string `ovsdb:"ports"`
}

// LogicalFlow is the SB Logical_Flow row (spec.md §3 Logical flow).
type LogicalFlow struct {
	UUID        string            `ovsdb:"_uuid"`
	LogicalDatapath string        `ovsdb:"logical_datapath"`
	Pipeline    string            `ovsdb:"pipeline"`
	TableID     int               `ovsdb:"table_id"`
	Priority    int               `ovsdb:"priority"`
	Match       string            `ovsdb:"match"`
	Actions     string            `ovsdb:"actions"`
	ExternalIDs map[string]string `ovsdb:"external_ids"`
}

// Pipeline values.
const (
	PipelineIngress = "ingress"
	PipelineEgress  = "egress"
)

// Logical_Flow.external_ids keys (spec.md §4.9).
const (
	LFExtIDStageName = "stage-name"
	LFExtIDSource    = "source"
	LFExtIDStageHint = "stage-hint"
)

// AddressSetSB is the SB Address_Set row.
type AddressSetSB struct {
	UUID      string   `ovsdb:"_uuid"`
	Name      string   `ovsdb:"name"`
	Addresses []string `ovsdb:"addresses"`
}

// PortGroupSB is the SB Port_Group row.
type PortGroupSB struct {
	UUID  string   `ovsdb:"_uuid"`
	Name  string   `ovsdb:"name"`
	Ports []string `ovsdb:"ports"`
}

// MeterSB is the SB Meter row.
type MeterSB struct {
	UUID  string   `ovsdb:"_uuid"`
	Name  string   `ovsdb:"name"`
	Unit  string   `ovsdb:"unit"`
	Bands []string `ovsdb:"bands"`
}

// MeterBandSB is the SB Meter_Band row.
type MeterBandSB struct {
	UUID   string `ovsdb:"_uuid"`
	Action string `ovsdb:"action"`
	Rate   int    `ovsdb:"rate"`
	Burst  int    `ovsdb:"burst_size"`
}

// DNSSB is the SB DNS row.
type DNSSB struct {
	UUID        string            `ovsdb:"_uuid"`
	Records     map[string]string `ovsdb:"records"`
	Datapaths   []string          `ovsdb:"datapaths"`
	ExternalIDs map[string]string `ovsdb:"external_ids"`
}

// DNSExtIDNBID is the external-ids key carrying the originating NB DNS UUID (spec.md §4.10).
const DNSExtIDNBID = "dns_id"

// DHCPOptionsSB is the SB DHCP_Options or DHCPv6_Options row.
type DHCPOptionsSB struct {
	UUID    string            `ovsdb:"_uuid"`
	Name    string            `ovsdb:"name"`
	Code    int               `ovsdb:"code"`
	Type    string            `ovsdb:"type"`
}

// IPMulticastSB is the SB IP_Multicast row (one per switch datapath, spec.md §4.10).
type IPMulticastSB struct {
	UUID             string `ovsdb:"_uuid"`
	Datapath         string `ovsdb:"datapath"`
	Enabled          bool   `ovsdb:"enabled"`
	Querier          bool   `ovsdb:"querier"`
	FloodUnregistered bool  `ovsdb:"flood_unregistered"`
	TableSize        int    `ovsdb:"table_size"`
	IdleTimeout      int    `ovsdb:"idle_timeout"`
	QueryInterval    int    `ovsdb:"query_interval"`
	Eth_Src          string `ovsdb:"eth_src"`
	Ip4_Src          string `ovsdb:"ip4_src"`
}

// RBACRole is the SB RBAC_Role row.
type RBACRole struct {
	UUID        string            `ovsdb:"_uuid"`
	Name        string            `ovsdb:"name"`
	Permissions map[string]string `ovsdb:"permissions"`
}

// RBACPermission is the SB RBAC_Permission row.
type RBACPermission struct {
	UUID          string   `ovsdb:"_uuid"`
	Table         string   `ovsdb:"table"`
	Authorization []string `ovsdb:"authorization"`
	Insert_Delete bool     `ovsdb:"insert_delete"`
	Update        []string `ovsdb:"update"`
}

// RBACRoleName is the name of the role the engine bootstraps (spec.md §4.12).
const RBACRoleName = "ovn-controller"

// SBGlobal is the SB SB_Global row.
type SBGlobal struct {
	UUID        string            `ovsdb:"_uuid"`
	NbCfg       int               `ovsdb:"nb_cfg"`
	Ipsec       bool              `ovsdb:"ipsec"`
	Options     map[string]string `ovsdb:"options"`
	ExternalIDs map[string]string `ovsdb:"external_ids"`
}

// MACBinding is the SB MAC_Binding row. This module never writes one
// (they are populated by ovn-controller learning ARP/ND traffic); it
// only ever deletes the stale rows a removed logical port leaves behind
// (spec.md §4.3 "purge stale MAC-binding rows by port name").
type MACBinding struct {
	UUID        string `ovsdb:"_uuid"`
	LogicalPort string `ovsdb:"logical_port"`
	IP          string `ovsdb:"ip"`
	MAC         string `ovsdb:"mac"`
	Datapath    string `ovsdb:"datapath"`
}
