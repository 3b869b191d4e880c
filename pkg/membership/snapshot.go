package membership

import "sort"

// Snapshot is a set of live node identifiers ("host:port").
type Snapshot map[string]struct{}

func NewSnapshot(nodes ...string) Snapshot {
	s := make(Snapshot, len(nodes))
	for _, n := range nodes {
		s[n] = struct{}{}
	}
	return s
}

func (s Snapshot) Contains(node string) bool {
	_, ok := s[node]
	return ok
}

func (s Snapshot) Len() int { return len(s) }

// Sorted returns the members in ascending order.
func (s Snapshot) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for n := range s {
		out[n] = struct{}{}
	}
	return out
}

func (s Snapshot) Equal(other Snapshot) bool {
	if len(s) != len(other) {
		return false
	}
	for n := range s {
		if !other.Contains(n) {
			return false
		}
	}
	return true
}

// Diff returns the nodes only in prev (removed) and only in next (added),
// each sorted.
func Diff(prev, next Snapshot) (removed, added []string) {
	for n := range prev {
		if !next.Contains(n) {
			removed = append(removed, n)
		}
	}
	for n := range next {
		if !prev.Contains(n) {
			added = append(added, n)
		}
	}
	sort.Strings(removed)
	sort.Strings(added)
	return removed, added
}
