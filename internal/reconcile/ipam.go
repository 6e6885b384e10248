package reconcile

import (
	"fmt"
	"net"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ovnxlate/ovnxlate/internal/idalloc"
	"github.com/ovnxlate/ovnxlate/internal/model"
	"github.com/ovnxlate/ovnxlate/internal/xlog"
)

// componentState is one of the four classifications spec.md §4.3 step 1
// assigns to each of a dynamic address's three components.
type componentState int

const (
	stateNone componentState = iota
	stateStatic
	stateRemove
	stateDynamic
)

// Subnet is the parsed other_config IPAM declaration of one NB switch.
type Subnet struct {
	Start      uint32
	Count      uint32
	Network    *net.IPNet
	IPv6Prefix string
	ExcludeIPs string
}

// ParseSubnet reads other_config:subnet, other_config:exclude_ips, and
// other_config:ipv6_prefix (spec.md §3 "IPAM state (per switch)").
func ParseSubnet(ls *model.LogicalSwitch) (*Subnet, error) {
	cidr, ok := ls.OtherConfig["subnet"]
	if !ok || cidr == "" {
		return nil, nil
	}
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("switch %s: bad subnet %q: %w", ls.Name, cidr, err)
	}
	ones, bits := ipnet.Mask.Size()
	count := uint32(1) << uint(bits-ones)
	v4 := ip.To4()
	if v4 == nil {
		return nil, fmt.Errorf("switch %s: subnet %q is not IPv4", ls.Name, cidr)
	}
	start := uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3])

	return &Subnet{
		Start:      start,
		Count:      count,
		Network:    ipnet,
		IPv6Prefix: ls.OtherConfig["ipv6_prefix"],
		ExcludeIPs: ls.OtherConfig["exclude_ips"],
	}, nil
}

// BuildIPAMState initializes a switch's IPAMState from its parsed subnet,
// excluding the subnet's own first address (spec.md invariant 5: "is not
// equal to the switch's first address") in addition to any explicit
// other_config:exclude_ips entries.
func BuildIPAMState(sub *Subnet) (*model.IPAMState, error) {
	if sub == nil {
		return &model.IPAMState{}, nil
	}
	excluded, err := idalloc.ParseExclusions(sub.ExcludeIPs, sub.Start, sub.Count)
	if excluded == nil {
		excluded = make(map[uint32]bool)
	}
	excluded[sub.Start] = true // the switch's own network address

	return &model.IPAMState{
		StartIPv4:  sub.Start,
		Count:      sub.Count,
		IPv6Prefix: sub.IPv6Prefix,
		Excluded:   excluded,
	}, err
}

// dynamicRequest describes one LSP's parsed "dynamic" address request.
type dynamicRequest struct {
	port        *model.LogicalSwitchPort
	name        string
	macState    componentState
	ipv4State   componentState
	ipv6State   componentState
	requestIPv4 string // non-empty if a specific IPv4 was requested, e.g. "dynamic 10.0.0.5"
	priorMAC    string
	priorIPv4   string
	priorIPv6   string
}

// ApplyIPAM implements the second half of C3 (spec.md §4.3 "IPAM processing
// occurs only after all peering is resolved"): classify, pre-seed unchanged
// components, then allocate changed ones in the mandated order (IPv4, MAC,
// IPv6).
func ApplyIPAM(cache *model.Cache, nb model.NorthboundSnapshot, macPool *idalloc.MACPool, macPrefix idalloc.MACPrefix, plan *model.Plan) {
	for _, ls := range nb.Switches {
		dp, ok := cache.Datapaths[ls.UUID]
		if !ok || dp.IPAM == nil {
			continue
		}
		sub, err := ParseSubnet(ls)
		if err != nil {
			xlog.Warnf("ipam:bad-subnet", logrus.Fields{"switch": ls.Name}, "%v", err)
			continue
		}
		state, err := BuildIPAMState(sub)
		if err != nil {
			xlog.Warnf("ipam:bad-exclusions", logrus.Fields{"switch": ls.Name}, "%v", err)
		}
		dp.IPAM = state

		if sub == nil {
			continue
		}

		var queued []*dynamicRequest
		for _, portUUID := range ls.Ports {
			lsp, ok := nb.SwitchPorts[portUUID]
			if !ok {
				continue
			}
			p, ok := cache.Ports[lsp.Name]
			if !ok || p.Peer != "" {
				continue
			}
			req := classifyPort(lsp)
			if req == nil {
				continue
			}
			req.name = lsp.Name

			// Pre-seed unchanged components so re-allocation avoids them.
			if req.macState == stateNone && req.priorMAC != "" {
				_ = macPool.Insert(req.priorMAC, idalloc.MACPrefix{}, false)
			}
			if req.ipv4State == stateNone && req.priorIPv4 != "" {
				if ip := parseIPv4Addr(req.priorIPv4); ip != 0 {
					allocator(state).MarkAllocated(&state.Allocated, ip)
				}
			}

			if req.macState != stateNone || req.ipv4State != stateNone || req.ipv6State != stateNone {
				queued = append(queued, req)
			}
		}

		for _, req := range queued {
			allocateDynamic(req, state, macPool, macPrefix, cache, plan)
		}
	}
}

func allocator(state *model.IPAMState) idalloc.IPv4Allocator {
	return idalloc.IPv4Allocator{Start: state.StartIPv4, Count: state.Count, Excluded: state.Excluded}
}

// classifyPort parses Addresses and any prior DynamicAddresses value,
// returning nil if the port made no dynamic request at all.
func classifyPort(lsp *model.LogicalSwitchPort) *dynamicRequest {
	requested := false
	var requestIPv4 string
	for _, a := range lsp.Addresses {
		fields := strings.Fields(a)
		for i, f := range fields {
			if f != "dynamic" {
				continue
			}
			if requested {
				// spec.md §4.3 "Duplicate-dynamic requests on one port log a
				// warning and are ignored after the first."
				xlog.Warnf("ipam:duplicate-dynamic", logrus.Fields{"port": lsp.Name}, "duplicate dynamic address request on port %s, ignoring", lsp.Name)
				continue
			}
			requested = true
			if i+1 < len(fields) {
				requestIPv4 = fields[i+1]
			}
		}
	}
	if !requested {
		return nil
	}

	req := &dynamicRequest{port: lsp, requestIPv4: requestIPv4}
	if lsp.DynamicAddresses == nil || *lsp.DynamicAddresses == "" {
		req.macState, req.ipv4State, req.ipv6State = stateDynamic, stateDynamic, stateDynamic
		return req
	}

	fields := strings.Fields(*lsp.DynamicAddresses)
	if len(fields) > 0 {
		req.priorMAC = fields[0]
		req.macState = stateNone
	}
	for _, f := range fields[1:] {
		if strings.Contains(f, ":") && !isMAC(f) {
			req.priorIPv6 = f
			req.ipv6State = stateNone
		} else if !isMAC(f) {
			req.priorIPv4 = f
			req.ipv4State = stateNone
		}
	}
	if req.priorIPv4 == "" {
		req.ipv4State = stateDynamic
	}
	if req.priorIPv6 == "" {
		// Whether this actually yields an address depends on the switch
		// having ipv6_prefix set; allocateDynamic checks that once the
		// subnet state is in scope and leaves priorIPv6 empty otherwise.
		req.ipv6State = stateDynamic
	}
	return req
}

func isMAC(s string) bool {
	_, err := net.ParseMAC(s)
	return err == nil
}

func parseIPv4Addr(s string) uint32 {
	ip := net.ParseIP(strings.SplitN(s, "/", 2)[0])
	if ip == nil {
		return 0
	}
	v4 := ip.To4()
	if v4 == nil {
		return 0
	}
	return uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3])
}

func ip4ToString(ip uint32) string {
	return net.IPv4(byte(ip>>24), byte(ip>>16), byte(ip>>8), byte(ip)).String()
}

// allocateDynamic performs step 3 of spec.md §4.3: IPv4 first (it feeds the
// MAC derivation), then MAC, then IPv6 via EUI-64.
func allocateDynamic(req *dynamicRequest, state *model.IPAMState, macPool *idalloc.MACPool, macPrefix idalloc.MACPrefix, cache *model.Cache, plan *model.Plan) {
	p, ok := cache.Ports[req.name]
	if !ok {
		return
	}

	ipv4 := req.priorIPv4
	if req.ipv4State == stateDynamic {
		var candidate uint32
		if req.requestIPv4 != "" {
			candidate = parseIPv4Addr(req.requestIPv4)
		}
		valid := candidate != 0 && candidate >= state.StartIPv4 && candidate < state.StartIPv4+state.Count && !state.Excluded[candidate]
		if valid {
			offset := candidate - state.StartIPv4
			word, bit := offset/64, offset%64
			taken := int(word) < len(state.Allocated) && state.Allocated[word]&(1<<bit) != 0
			if taken {
				valid = false
			}
		}
		if !valid {
			if req.requestIPv4 != "" {
				xlog.Warnf("ipam:downgrade", logrus.Fields{"port": req.name}, "requested ipv4 %s unavailable, falling back to dynamic", req.requestIPv4)
			}
			ip, ok := allocator(state).Allocate(state.Allocated)
			if !ok {
				xlog.Warnf("ipam:exhausted", logrus.Fields{"port": req.name}, "ipv4 pool exhausted for port %s", req.name)
				return
			}
			candidate = ip
		}
		allocator(state).MarkAllocated(&state.Allocated, candidate)
		ipv4 = ip4ToString(candidate)
	}

	mac := req.priorMAC
	if req.macState == stateDynamic {
		var ipForMAC net.IP
		if ipv4 != "" {
			ipForMAC = net.ParseIP(ipv4)
		}
		newMAC := idalloc.MACAllocator{Prefix: macPrefix, Pool: macPool}.Allocate(ipForMAC)
		if newMAC == "" {
			xlog.Warnf("ipam:mac-exhausted", logrus.Fields{"port": req.name}, "mac pool exhausted for port %s", req.name)
			return
		}
		_ = macPool.Insert(newMAC, macPrefix, true)
		mac = newMAC
	}

	ipv6 := req.priorIPv6
	if req.ipv6State == stateDynamic && state.IPv6Prefix != "" && mac != "" {
		ipv6 = eui64(state.IPv6Prefix, mac)
	}

	p.MAC = mac
	if ipv4 != "" {
		p.IPv4 = append(p.IPv4, ipv4)
	}
	if ipv6 != "" {
		p.IPv6 = append(p.IPv6, ipv6)
	}

	canonical := canonicalDynamicAddress(mac, ipv4, ipv6)
	if req.port.DynamicAddresses != nil && *req.port.DynamicAddresses == canonical {
		return
	}
	plan.Update("Logical_Switch_Port", req.port.UUID, map[string]string{"dynamic_addresses": canonical})
}

func canonicalDynamicAddress(mac, ipv4, ipv6 string) string {
	s := mac
	if ipv4 != "" {
		s += " " + ipv4
	}
	if ipv6 != "" {
		s += " " + ipv6
	}
	return s
}

// eui64 derives an address inside prefix's first 64 bits, with an interface
// identifier built from mac by the standard modified-EUI-64 procedure
// (spec.md §4.3 "IPv6 (EUI-64 derived
// from the MAC and the switch IPv6 prefix)").
func eui64(prefix, mac string) string {
	hw, err := net.ParseMAC(mac)
	if err != nil || len(hw) != 6 {
		return ""
	}
	ip, ipnet, err := net.ParseCIDR(prefix)
	if err != nil {
		ip = net.ParseIP(prefix)
		if ip == nil {
			return ""
		}
	} else {
		ip = ipnet.IP
	}
	v6 := ip.To16()
	if v6 == nil {
		return ""
	}

	eui := [8]byte{hw[0] ^ 0x02, hw[1], hw[2], 0xff, 0xfe, hw[3], hw[4], hw[5]}
	out := make(net.IP, 16)
	copy(out[:8], v6[:8])
	copy(out[8:], eui[:])
	return out.String() + "/64"
}
