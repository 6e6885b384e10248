package idalloc

// TagMin and TagMax bound the nested-container VLAN tag space (spec.md §4.1
// "Tag allocator (nested containers)").
const (
	TagMin = 1
	TagMax = 4095
)

// TagAllocator is a per-parent_name bitmap of 1..4095, where tag 0 is
// always invalid and any tag already claimed by a peer port sharing the
// same parent is pre-marked used before the caller asks for a new one.
type TagAllocator struct {
	used map[int]bool
}

// NewTagAllocator builds an allocator pre-marking tag 0 and every tag
// already in use by sibling ports under the same parent_name.
func NewTagAllocator(siblingTags []int) *TagAllocator {
	t := &TagAllocator{used: map[int]bool{0: true}}
	for _, tag := range siblingTags {
		if tag >= TagMin && tag <= TagMax {
			t.used[tag] = true
		}
	}
	return t
}

// Allocate returns the lowest free tag in [TagMin, TagMax], or 0 if none
// remain, and commits it (so a second call on the same allocator never
// returns the same tag twice).
func (t *TagAllocator) Allocate() int {
	for tag := TagMin; tag <= TagMax; tag++ {
		if !t.used[tag] {
			t.used[tag] = true
			return tag
		}
	}
	return 0
}
