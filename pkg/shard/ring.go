package shard

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/spaolacci/murmur3"
)

const (
	// DefaultVNodesPerNode is the number of virtual nodes per physical node.
	// Two rings only agree on key placement when they use the same value.
	DefaultVNodesPerNode = 150
)

// Ring manages the consistent hashing ring.
//
// The ring state is immutable once published. Locate reads it with a single
// atomic load and never blocks; AddNode and RemoveNode build a complete
// replacement under mu and swap it in.
type Ring struct {
	mu            sync.Mutex
	state         atomic.Pointer[ringState]
	vnodesPerNode int
}

type ringState struct {
	vnodes []VNode // sorted by token, tokens unique
	nodes  []string
}

var emptyState = &ringState{}

// NewRing creates a ring holding the given nodes.
// Input order and duplicates do not affect the result.
func NewRing(vnodesPerNode int, nodes []string) *Ring {
	if vnodesPerNode <= 0 {
		vnodesPerNode = DefaultVNodesPerNode
	}
	r := &Ring{vnodesPerNode: vnodesPerNode}

	unique := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		unique[n] = struct{}{}
	}
	sorted := make([]string, 0, len(unique))
	for n := range unique {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	owners := make(map[uint64]string, len(sorted)*vnodesPerNode)
	for _, n := range sorted {
		for _, token := range tokensFor(n, vnodesPerNode) {
			owners[token] = n
		}
	}
	r.state.Store(newRingState(owners))
	return r
}

// AddNode adds a physical node to the ring.
// If one of its tokens is already owned by a different node, the added node
// takes that position. Adding a present node republishes an equal ring.
func (r *Ring) AddNode(node string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owners := r.load().owners()
	for _, token := range tokensFor(node, r.vnodesPerNode) {
		owners[token] = node
	}
	r.state.Store(newRingState(owners))
}

// RemoveNode removes a physical node from the ring.
// Only positions the node owns are removed, so removing an absent node is a
// no-op.
func (r *Ring) RemoveNode(node string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owners := r.load().owners()
	for _, token := range tokensFor(node, r.vnodesPerNode) {
		if owners[token] == node {
			delete(owners, token)
		}
	}
	r.state.Store(newRingState(owners))
}

// Locate finds the node that owns the given key.
// It returns false when the ring is empty.
func (r *Ring) Locate(key string) (string, bool) {
	return r.LocateToken(HashKey(key))
}

// LocateToken finds the node that owns the given token.
func (r *Ring) LocateToken(token uint64) (string, bool) {
	s := r.load()
	if len(s.vnodes) == 0 {
		return "", false
	}

	// Binary search for the first vnode with token >= target token
	idx := sort.Search(len(s.vnodes), func(i int) bool {
		return s.vnodes[i].Token >= token
	})

	// Wrap around to the first vnode if we reached the end
	if idx == len(s.vnodes) {
		idx = 0
	}
	return s.vnodes[idx].Node, true
}

// Nodes returns all physical nodes owning at least one position, sorted.
func (r *Ring) Nodes() []string {
	s := r.load()
	out := make([]string, len(s.nodes))
	copy(out, s.nodes)
	return out
}

// Size returns the number of virtual node positions on the ring.
func (r *Ring) Size() int {
	return len(r.load().vnodes)
}

// VNodes returns a copy of the current positions in token order.
func (r *Ring) VNodes() []VNode {
	s := r.load()
	out := make([]VNode, len(s.vnodes))
	copy(out, s.vnodes)
	return out
}

func (r *Ring) load() *ringState {
	if s := r.state.Load(); s != nil {
		return s
	}
	return emptyState
}

func (s *ringState) owners() map[uint64]string {
	owners := make(map[uint64]string, len(s.vnodes))
	for _, vn := range s.vnodes {
		owners[vn.Token] = vn.Node
	}
	return owners
}

func newRingState(owners map[uint64]string) *ringState {
	vnodes := make([]VNode, 0, len(owners))
	seen := make(map[string]struct{})
	nodes := make([]string, 0)
	for token, node := range owners {
		vnodes = append(vnodes, VNode{Token: token, Node: node})
		if _, ok := seen[node]; !ok {
			seen[node] = struct{}{}
			nodes = append(nodes, node)
		}
	}

	// Sort vnodes by token
	sort.Slice(vnodes, func(i, j int) bool {
		return vnodes[i].Token < vnodes[j].Token
	})
	sort.Strings(nodes)

	return &ringState{vnodes: vnodes, nodes: nodes}
}

// HashKey returns the ring token for a string.
// It is the lower 64 bits of MurmurHash3 x64_128 with a zero seed, so every
// process computes the same token for the same input.
func HashKey(key string) uint64 {
	h1, _ := murmur3.Sum128([]byte(key))
	return h1
}
