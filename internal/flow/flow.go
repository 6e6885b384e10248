package flow

import (
	"hash/fnv"
	"strconv"
)

// Flow is spec.md §3's "Logical flow": identity is the five-tuple
// (datapath, stage, priority, match, actions); Hint is a diagnostic-only
// field carrying the first 32 bits of an originating NB object's identity.
type Flow struct {
	Datapath string // NB UUID of the owning datapath
	Stage    Stage
	Priority int
	Match    string
	Actions  string

	// Hint is never part of identity; it only ends up in external_ids
	// (spec.md §4.9 "insert with external_ids = {stage-name, source, stage-hint?}").
	Hint string

	hash uint64
}

// Key computes (and caches) the identity hash used by Set for O(1) lookup;
// spec.md §9 "hash it once, store the hash with the flow, and do identity
// comparison field-by-field only on hash collision".
func (f *Flow) Key() uint64 {
	if f.hash != 0 {
		return f.hash
	}
	h := fnv.New64a()
	h.Write([]byte(f.Datapath))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatUint(uint64(f.Stage), 10)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(f.Priority)))
	h.Write([]byte{0})
	h.Write([]byte(f.Match))
	h.Write([]byte{0})
	h.Write([]byte(f.Actions))
	f.hash = h.Sum64()
	if f.hash == 0 {
		// Never let the zero value collide with "not yet computed".
		f.hash = 1
	}
	return f.hash
}

// Equal compares the five identity fields (never Hint).
func (f *Flow) Equal(g *Flow) bool {
	return f.Datapath == g.Datapath &&
		f.Stage == g.Stage &&
		f.Priority == g.Priority &&
		f.Match == g.Match &&
		f.Actions == g.Actions
}
