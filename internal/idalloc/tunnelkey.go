// Package idalloc implements the identifier allocators of spec.md §4.1 (C1):
// deterministic allocation with reuse and wrap-around, never aborting —
// every allocator is pure in/out state and returns a sentinel zero on
// exhaustion, exactly as the teacher's ovs.MatchFlow builder pattern
// (accumulate, never panic, report via error/zero return) is used
// throughout this repo's flow builder.
package idalloc

// TunnelKeyAllocator hands out integers in [min, max], wrapping after max
// back to min, skipping any key already in the caller-supplied used set
// (spec.md §4.1 "Tunnel-key allocator").
type TunnelKeyAllocator struct {
	Min, Max int
}

// NewTunnelKeyAllocator constructs an allocator over the closed range [min, max].
func NewTunnelKeyAllocator(min, max int) TunnelKeyAllocator {
	return TunnelKeyAllocator{Min: min, Max: max}
}

// Allocate returns the smallest unused integer strictly above hint, wrapping
// at Max back to Min; 0 if the range is exhausted. used is the current
// in-use set; it is read-only (callers are expected to add the returned key
// to it themselves, matching the allocator's "pure state object" contract,
// spec.md §9).
func (a TunnelKeyAllocator) Allocate(used map[int]bool, hint int) int {
	if a.Max < a.Min {
		return 0
	}

	span := a.Max - a.Min + 1
	start := hint + 1
	if start < a.Min || start > a.Max {
		start = a.Min
	}

	for i := 0; i < span; i++ {
		candidate := a.Min + (start-a.Min+i)%span
		if !used[candidate] {
			return candidate
		}
	}
	return 0
}

// Datapath and port tunnel-key ranges (spec.md §3 invariants).
const (
	DatapathKeyMin = 1
	DatapathKeyMax = 1<<24 - 1

	PortKeyMin = 1
	PortKeyMax = 1<<15 - 1
)
