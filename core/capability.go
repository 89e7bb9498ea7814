package core

import "sort"

// CapabilitySet is an ordered set of interned capability tags. The zero
// value is an empty set. Construction normalizes: duplicates collapse and
// members are kept sorted so equal sets compare equal element-wise.
type CapabilitySet struct {
	members []string
}

// NewCapabilitySet builds a set from the given tags, dropping duplicates
// and empty strings.
func NewCapabilitySet(tags ...string) CapabilitySet {
	seen := make(map[string]struct{}, len(tags))
	members := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		members = append(members, tag)
	}
	sort.Strings(members)
	return CapabilitySet{members: members}
}

// Len returns the number of members.
func (c CapabilitySet) Len() int { return len(c.members) }

// Contains reports whether tag is a member.
func (c CapabilitySet) Contains(tag string) bool {
	i := sort.SearchStrings(c.members, tag)
	return i < len(c.members) && c.members[i] == tag
}

// ContainsAll reports whether every member of other is also a member of c,
// i.e. c is a superset of other.
func (c CapabilitySet) ContainsAll(other CapabilitySet) bool {
	for _, tag := range other.members {
		if !c.Contains(tag) {
			return false
		}
	}
	return true
}

// Intersection returns the number of tags shared with other.
func (c CapabilitySet) Intersection(other CapabilitySet) int {
	n := 0
	for _, tag := range other.members {
		if c.Contains(tag) {
			n++
		}
	}
	return n
}

// Members returns a copy of the ordered member slice.
func (c CapabilitySet) Members() []string {
	out := make([]string, len(c.members))
	copy(out, c.members)
	return out
}
