package cluster

import (
	"net"
	"sync"
)

// NodeAddress identifies a storage node (bookie) or broker node (hub)
// by its advertised host:port. It is a plain comparable value and is
// used as a map key throughout.
type NodeAddress string

func (a NodeAddress) String() string { return string(a) }

// Host returns the host part, or the whole address if it does not
// parse as host:port.
func (a NodeAddress) Host() string {
	host, _, err := net.SplitHostPort(string(a))
	if err != nil {
		return string(a)
	}
	return host
}

// NodeSet is a set of node addresses.
type NodeSet map[NodeAddress]struct{}

func NewNodeSet(nodes ...NodeAddress) NodeSet {
	s := make(NodeSet, len(nodes))
	for _, n := range nodes {
		s[n] = struct{}{}
	}
	return s
}

func (s NodeSet) Contains(n NodeAddress) bool {
	_, ok := s[n]
	return ok
}

// Clone returns an independent copy of the set.
func (s NodeSet) Clone() NodeSet {
	c := make(NodeSet, len(s))
	for n := range s {
		c[n] = struct{}{}
	}
	return c
}

// View holds the currently known set of available storage nodes. It is
// mutated only by applying a full replacement snapshot from the
// membership watcher, never by incremental diffs.
type View struct {
	mu       sync.RWMutex
	writable NodeSet
	readOnly NodeSet
}

func NewView() *View {
	return &View{
		writable: NewNodeSet(),
		readOnly: NewNodeSet(),
	}
}

// Apply atomically replaces both node sets with the given snapshot.
func (v *View) Apply(writable, readOnly []NodeAddress) {
	w := NewNodeSet(writable...)
	r := NewNodeSet(readOnly...)
	v.mu.Lock()
	v.writable = w
	v.readOnly = r
	v.mu.Unlock()
}

// Snapshot returns consistent copies of both sets. Callers may mutate
// the returned sets freely.
func (v *View) Snapshot() (writable, readOnly NodeSet) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.writable.Clone(), v.readOnly.Clone()
}

// Writable reports whether the node is currently in the writable set.
func (v *View) Writable(n NodeAddress) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.writable.Contains(n)
}
