package flow

// Set is a hash-bucketed collection of Flows keyed by their five-field
// identity, used both to build the computed program (C7/C8) and to hold the
// observed SB rows the differ (C9) streams in for comparison.
type Set struct {
	buckets map[uint64][]*Flow
	size    int
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{buckets: make(map[uint64][]*Flow)}
}

// Add inserts f, returning false if an identical flow (by the five-field
// identity) was already present — this is how C7/C8 naturally deduplicate
// when two code paths would otherwise emit the same flow twice.
func (s *Set) Add(f *Flow) bool {
	k := f.Key()
	for _, existing := range s.buckets[k] {
		if existing.Equal(f) {
			return false
		}
	}
	s.buckets[k] = append(s.buckets[k], f)
	s.size++
	return true
}

// Contains reports whether a flow identical to f is present.
func (s *Set) Contains(f *Flow) bool {
	for _, existing := range s.buckets[f.Key()] {
		if existing.Equal(f) {
			return true
		}
	}
	return false
}

// Len returns the number of distinct flows in the set.
func (s *Set) Len() int { return s.size }

// All returns every flow in the set, in unspecified order — spec.md §5
// notes flow emission order is irrelevant because the differ operates on a
// set.
func (s *Set) All() []*Flow {
	out := make([]*Flow, 0, s.size)
	for _, bucket := range s.buckets {
		out = append(out, bucket...)
	}
	return out
}
