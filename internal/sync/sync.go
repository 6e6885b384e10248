// Package sync implements C10 (spec.md §4.10): the ancillary NB-to-SB
// mirrors that run alongside the flow differ every cycle — address sets
// (plus the per-port-group synthetic ip4/ip6 pair), port groups, meters,
// DNS, DHCP option catalogs, and per-switch IP-multicast config. Each
// function diffs one NB collection against its SB counterpart and appends
// the resulting row operations to a model.Plan, the same accumulation
// point C2-C6 use (spec.md §4.9 "Writes are batched in a single
// transaction per cycle").
package sync

import (
	"sort"
	"strconv"

	"github.com/ovnxlate/ovnxlate/internal/model"
)

// AddressSets implements "Address sets" (spec.md §4.10): every NB address
// set maps 1:1 to SB, and every port group additionally contributes a
// synthetic "<pg>_ip4"/"<pg>_ip6" pair built from the union of its member
// ports' addresses. A user-defined set sharing a synthetic set's name wins
// outright (spec.md "User sets override same-named synthetic sets").
func AddressSets(nb model.NorthboundSnapshot, sb model.SouthboundSnapshot, cache *model.Cache, plan *model.Plan) {
	wanted := make(map[string][]string)

	for _, pg := range nb.PortGroups {
		v4, v6 := portGroupAddresses(pg, cache)
		wanted[pg.Name+"_ip4"] = v4
		wanted[pg.Name+"_ip6"] = v6
	}
	for _, as := range nb.AddressSets {
		wanted[as.Name] = append([]string(nil), as.Addresses...)
	}

	observed := make(map[string]*model.AddressSetSB, len(sb.AddressSets))
	for _, row := range sb.AddressSets {
		observed[row.Name] = row
	}

	names := sortedKeys(wanted)
	for _, name := range names {
		addrs := sortedCopy(wanted[name])
		existing, ok := observed[name]
		if !ok {
			plan.Insert("Address_Set", &model.AddressSetSB{Name: name, Addresses: addrs})
			continue
		}
		if !sameStrings(existing.Addresses, addrs) {
			plan.Update("Address_Set", existing.UUID, &model.AddressSetSB{Name: name, Addresses: addrs})
		}
	}
	for name, row := range observed {
		if _, ok := wanted[name]; !ok {
			plan.Delete("Address_Set", row.UUID, "no matching NB address set or port group")
		}
	}
}

func portGroupAddresses(pg *model.PortGroup, cache *model.Cache) (v4, v6 []string) {
	for _, portName := range pg.Ports {
		p, ok := cache.Ports[portName]
		if !ok {
			continue
		}
		v4 = append(v4, p.IPv4...)
		v6 = append(v6, p.IPv6...)
	}
	return v4, v6
}

// PortGroups implements "Port groups" (spec.md §4.10): NB to SB by name,
// the member list always replaced wholesale with the current LSP names.
func PortGroups(nb model.NorthboundSnapshot, sb model.SouthboundSnapshot, plan *model.Plan) {
	observed := make(map[string]*model.PortGroupSB, len(sb.PortGroups))
	for _, row := range sb.PortGroups {
		observed[row.Name] = row
	}

	wanted := make(map[string]bool, len(nb.PortGroups))
	for _, pg := range nb.PortGroups {
		wanted[pg.Name] = true
		ports := sortedCopy(pg.Ports)
		existing, ok := observed[pg.Name]
		if !ok {
			plan.Insert("Port_Group", &model.PortGroupSB{Name: pg.Name, Ports: ports})
			continue
		}
		if !sameStrings(existing.Ports, ports) {
			plan.Update("Port_Group", existing.UUID, &model.PortGroupSB{Name: pg.Name, Ports: ports})
		}
	}
	for name, row := range observed {
		if !wanted[name] {
			plan.Delete("Port_Group", row.UUID, "no matching NB port group")
		}
	}
}

// Meters implements "Meters" (spec.md §4.10): band equality requires
// identical sorted (rate, burst, action) tuples, not row-by-row comparison,
// since the NB and SB band lists are stored as unordered UUID references.
func Meters(nb model.NorthboundSnapshot, sb model.SouthboundSnapshot, plan *model.Plan) {
	observed := make(map[string]*model.MeterSB, len(sb.Meters))
	for _, row := range sb.Meters {
		observed[row.Name] = row
	}

	wanted := make(map[string]bool, len(nb.Meters))
	for _, m := range nb.Meters {
		wanted[m.Name] = true
		bands := meterBandTuples(m.Bands, nb.MeterBands)

		existing, ok := observed[m.Name]
		if !ok {
			insertMeter(m, bands, plan)
			continue
		}
		existingBands := meterBandTuples(existing.Bands, nil)
		if existing.Unit != m.Unit || !sameStrings(existingBands, bands) {
			plan.Delete("Meter", existing.UUID, "band set changed")
			insertMeter(m, bands, plan)
		}
	}
	for name, row := range observed {
		if !wanted[name] {
			plan.Delete("Meter", row.UUID, "no matching NB meter")
		}
	}
}

func insertMeter(m *model.Meter, bands []string, plan *model.Plan) {
	plan.Insert("Meter", &model.MeterSB{Name: m.Name, Unit: m.Unit, Bands: bands})
}

// meterBandTuples renders each band (by UUID, resolved against bandsByUUID
// when given an NB meter, or treated as an opaque pre-rendered tuple
// otherwise) into a sorted "rate/burst/action" string for comparison.
func meterBandTuples(bandUUIDs []string, bandsByUUID map[string]*model.MeterBand) []string {
	var out []string
	for _, id := range bandUUIDs {
		if bandsByUUID == nil {
			out = append(out, id)
			continue
		}
		band, ok := bandsByUUID[id]
		if !ok {
			continue
		}
		out = append(out, meterBandTuple(band.Action, band.Rate, band.Burst))
	}
	sort.Strings(out)
	return out
}

func meterBandTuple(action string, rate, burst int) string {
	return action + "/" + strconv.Itoa(rate) + "/" + strconv.Itoa(burst)
}

// DNS implements "DNS" (spec.md §4.10): per-switch aggregation by NB DNS
// record identity, each SB row carrying external_ids:dns_id = <NB UUID>;
// orphans whose NB row no longer exists are deleted.
func DNS(nb model.NorthboundSnapshot, sb model.SouthboundSnapshot, cache *model.Cache, plan *model.Plan) {
	observed := make(map[string]*model.DNSSB, len(sb.DNS))
	for _, row := range sb.DNS {
		observed[row.ExternalIDs[model.DNSExtIDNBID]] = row
	}

	wanted := make(map[string]bool, len(nb.DNS))
	for uuid, rec := range nb.DNS {
		wanted[uuid] = true
		datapaths := dnsDatapathsFor(uuid, cache)
		if len(datapaths) == 0 {
			continue
		}
		existing, ok := observed[uuid]
		if !ok {
			plan.Insert("DNS", &model.DNSSB{
				Records:     rec.Records,
				Datapaths:   datapaths,
				ExternalIDs: map[string]string{model.DNSExtIDNBID: uuid},
			})
			continue
		}
		if !sameStringMap(existing.Records, rec.Records) || !sameStrings(sortedCopy(existing.Datapaths), sortedCopy(datapaths)) {
			plan.Update("DNS", existing.UUID, &model.DNSSB{
				Records:     rec.Records,
				Datapaths:   datapaths,
				ExternalIDs: map[string]string{model.DNSExtIDNBID: uuid},
			})
		}
	}
	for uuid, row := range observed {
		if !wanted[uuid] {
			plan.Delete("DNS", row.UUID, "orphaned NB DNS row")
		}
	}
}

// dnsDatapathsFor finds every switch datapath whose Cache.Datapaths entry
// carries this DNS record (reconcile.Datapaths attaches dp.DNSRecords from
// the NB switch's dns_records list; this walks that back-reference).
func dnsDatapathsFor(uuid string, cache *model.Cache) []string {
	var out []string
	for dpUUID, dp := range cache.Datapaths {
		for _, rec := range dp.DNSRecords {
			if rec.UUID == uuid {
				out = append(out, dpUUID)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// DHCPCatalogs implements "DHCP option catalogs" (spec.md §4.10): both
// DHCP_Options and DHCPv6_Options are brought to exactly the engine's known
// supported option set; unknown rows removed, missing rows inserted.
func DHCPCatalogs(plan *model.Plan, observedV4, observedV6 []*model.DHCPOptionsSB) {
	syncCatalog("DHCP_Options", SupportedDHCPv4Options, observedV4, plan)
	syncCatalog("DHCPv6_Options", SupportedDHCPv6Options, observedV6, plan)
}

// DHCPOptionDef names one supported DHCP option code/type pair.
type DHCPOptionDef struct {
	Name string
	Code int
	Type string
}

// SupportedDHCPv4Options and SupportedDHCPv6Options are the engine-known
// catalogs spec.md §4.10 refers to as "the engine-known supported set" —
// the common subset every OVN release documents for ovn-nbctl's
// dhcp-options-set-options helper.
var (
	SupportedDHCPv4Options = []DHCPOptionDef{
		{"lease_time", 51, "uint32"},
		{"router", 3, "ipv4"},
		{"dns_server", 6, "ipv4"},
		{"server_id", 54, "ipv4"},
		{"server_mac", 0, "macaddr"},
		{"mtu", 26, "uint16"},
		{"domain_name", 15, "str"},
	}
	SupportedDHCPv6Options = []DHCPOptionDef{
		{"server_id", 2, "macaddr"},
		{"dns_server", 23, "ipv6"},
		{"domain_search", 24, "str"},
	}
)

func syncCatalog(table string, defs []DHCPOptionDef, observed []*model.DHCPOptionsSB, plan *model.Plan) {
	observedByName := make(map[string]*model.DHCPOptionsSB, len(observed))
	for _, row := range observed {
		observedByName[row.Name] = row
	}

	wanted := make(map[string]bool, len(defs))
	for _, def := range defs {
		wanted[def.Name] = true
		existing, ok := observedByName[def.Name]
		if !ok {
			plan.Insert(table, &model.DHCPOptionsSB{Name: def.Name, Code: def.Code, Type: def.Type})
			continue
		}
		if existing.Code != def.Code || existing.Type != def.Type {
			plan.Delete(table, existing.UUID, "definition changed")
			plan.Insert(table, &model.DHCPOptionsSB{Name: def.Name, Code: def.Code, Type: def.Type})
		}
	}
	for name, row := range observedByName {
		if !wanted[name] {
			plan.Delete(table, row.UUID, "unsupported option")
		}
	}
}

// IPMulticastConfig implements "IP-multicast config" (spec.md §4.10): one SB
// IP_Multicast row per switch datapath, populated from its clamped
// multicast configuration (spec.md §4.5).
func IPMulticastConfig(cache *model.Cache, observed []*model.IPMulticastSB, plan *model.Plan) {
	observedByDP := make(map[string]*model.IPMulticastSB, len(observed))
	for _, row := range observed {
		observedByDP[row.Datapath] = row
	}

	wanted := make(map[string]bool)
	for dpUUID, dp := range cache.Datapaths {
		if dp.Kind != model.DatapathSwitch || dp.Multicast == nil {
			continue
		}
		wanted[dpUUID] = true
		row := &model.IPMulticastSB{
			Datapath:          dpUUID,
			Enabled:           dp.Multicast.Enabled,
			Querier:           dp.Multicast.Querier,
			FloodUnregistered: dp.Multicast.FloodUnregistered,
			TableSize:         dp.Multicast.TableSize,
			IdleTimeout:       dp.Multicast.IdleTimeout,
			QueryInterval:     dp.Multicast.QueryInterval,
			Eth_Src:           dp.Multicast.EthSrc,
			Ip4_Src:           dp.Multicast.Ip4Src,
		}
		existing, ok := observedByDP[dpUUID]
		if !ok {
			plan.Insert("IP_Multicast", row)
			continue
		}
		if ipMulticastChanged(existing, row) {
			plan.Update("IP_Multicast", existing.UUID, row)
		}
	}
	for dpUUID, row := range observedByDP {
		if !wanted[dpUUID] {
			plan.Delete("IP_Multicast", row.UUID, "datapath no longer a multicast-configured switch")
		}
	}
}

func ipMulticastChanged(existing, wanted *model.IPMulticastSB) bool {
	return existing.Enabled != wanted.Enabled ||
		existing.Querier != wanted.Querier ||
		existing.FloodUnregistered != wanted.FloodUnregistered ||
		existing.TableSize != wanted.TableSize ||
		existing.IdleTimeout != wanted.IdleTimeout ||
		existing.QueryInterval != wanted.QueryInterval ||
		existing.Eth_Src != wanted.Eth_Src ||
		existing.Ip4_Src != wanted.Ip4_Src
}

func sortedKeys(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameStringMap(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
