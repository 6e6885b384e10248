package idalloc

import (
	"fmt"
	"net"
	"strings"
)

// IPv4Allocator hands out addresses from a per-switch contiguous range,
// tracked with a bitmap (spec.md §4.1 "IPv4 allocator (per switch)").
type IPv4Allocator struct {
	Start    uint32 // host order
	Count    uint32
	Excluded map[uint32]bool
}

// Allocate scans the bitmap for the first unset bit in [Start, Start+Count)
// not in Excluded and returns the corresponding address as a uint32; it
// does not set the bit, which is MarkAllocated's job (0 means exhausted — note address 0 can never be a valid offset
// since offset 0, the switch's own first address, is always excluded by
// the caller per spec.md invariant 5).
func (a IPv4Allocator) Allocate(allocated []uint64) (addr uint32, ok bool) {
	for offset := uint32(0); offset < a.Count; offset++ {
		ip := a.Start + offset
		if a.Excluded[ip] {
			continue
		}
		word, bit := offset/64, offset%64
		if int(word) >= len(allocated) {
			return ip, true
		}
		if allocated[word]&(1<<bit) == 0 {
			return ip, true
		}
	}
	return 0, false
}

// MarkAllocated sets the bit in allocated corresponding to ip, growing the
// bitmap if necessary.
func (a IPv4Allocator) MarkAllocated(allocated *[]uint64, ip uint32) {
	if ip < a.Start || ip >= a.Start+a.Count {
		return
	}
	offset := ip - a.Start
	word, bit := offset/64, offset%64
	for uint32(len(*allocated)) <= word {
		*allocated = append(*allocated, 0)
	}
	(*allocated)[word] |= 1 << bit
}

// ParseExclusions parses a space-separated exclusion list of single
// addresses and "A..B" ranges (spec.md §4.1 "Exclusion list parsing"). Every
// excluded address must fall inside [start, start+count); out-of-subnet
// entries are reported via the returned error but do not abort parsing of
// the remaining entries.
func ParseExclusions(list string, start, count uint32) (map[uint32]bool, error) {
	excluded := make(map[uint32]bool)
	var errs []string

	for _, tok := range strings.Fields(list) {
		lo, hi, err := parseExclusionToken(tok)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		for ip := lo; ip <= hi; ip++ {
			if ip < start || ip >= start+count {
				errs = append(errs, fmt.Sprintf("excluded address %s outside subnet", ip4String(ip)))
				continue
			}
			excluded[ip] = true
		}
	}

	if len(errs) > 0 {
		return excluded, fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return excluded, nil
}

func parseExclusionToken(tok string) (lo, hi uint32, err error) {
	if i := strings.Index(tok, ".."); i >= 0 {
		loIP, err := parseIP4(tok[:i])
		if err != nil {
			return 0, 0, err
		}
		hiIP, err := parseIP4(tok[i+2:])
		if err != nil {
			return 0, 0, err
		}
		return loIP, hiIP, nil
	}

	ip, err := parseIP4(tok)
	if err != nil {
		return 0, 0, err
	}
	return ip, ip, nil
}

func parseIP4(s string) (uint32, error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return 0, fmt.Errorf("invalid IPv4 address %q", s)
	}
	v4 := ip.To4()
	if v4 == nil {
		return 0, fmt.Errorf("not an IPv4 address %q", s)
	}
	return uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3]), nil
}

func ip4String(ip uint32) string {
	return net.IPv4(byte(ip>>24), byte(ip>>16), byte(ip>>8), byte(ip)).String()
}
