package shard

import (
	"fmt"
	"strconv"
)

// VNode represents a virtual node on the ring.
// It points to a physical node identified by its host:port.
type VNode struct {
	Token uint64
	Node  string
}

func (v VNode) String() string {
	return fmt.Sprintf("%016x->%s", v.Token, v.Node)
}

// vnodeKey builds the hash input for the i-th virtual node of a node.
func vnodeKey(node string, i int) string {
	return node + "#" + strconv.Itoa(i)
}

// tokensFor returns the tokens a node occupies, in generation order.
func tokensFor(node string, vnodesPerNode int) []uint64 {
	tokens := make([]uint64, vnodesPerNode)
	for i := 0; i < vnodesPerNode; i++ {
		tokens[i] = HashKey(vnodeKey(node, i))
	}
	return tokens
}
