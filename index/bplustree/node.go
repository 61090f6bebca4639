package bplustree

import (
	"github.com/btree-query-bench/ridx/index/rid"
	"github.com/btree-query-bench/ridx/index/value"
	"github.com/cockroachdb/errors"
)

// nodeID is a stable handle into the tree's arena. Parent, child and sibling
// links are all handles, so the graph holds no owning cycles.
type nodeID int32

const nilNode nodeID = -1

type nodeKind uint8

const (
	kindLeaf nodeKind = iota + 1
	kindInternal
)

func (k nodeKind) String() string {
	if k == kindLeaf {
		return "leaf"
	}
	return "internal"
}

type leafData struct {
	keys []value.Value
	rids []rid.RID // parallel to keys
	prev nodeID
	next nodeID
}

type internalData struct {
	keys     []value.Value
	children []nodeID // len(keys)+1
}

// node is a tagged variant: exactly one of leaf and internal is set,
// selected by kind.
type node struct {
	kind     nodeKind
	parent   nodeID
	leaf     *leafData
	internal *internalData
}

func newLeaf(parent nodeID) *node {
	return &node{
		kind:   kindLeaf,
		parent: parent,
		leaf:   &leafData{prev: nilNode, next: nilNode},
	}
}

func newInternal(parent nodeID) *node {
	return &node{
		kind:     kindInternal,
		parent:   parent,
		internal: &internalData{},
	}
}

func (n *node) keys() []value.Value {
	switch n.kind {
	case kindLeaf:
		return n.leaf.keys
	case kindInternal:
		return n.internal.keys
	default:
		panic(errors.AssertionFailedf("bplustree: node of unknown kind %d", n.kind))
	}
}

func (n *node) numKeys() int { return len(n.keys()) }

// ─── Arena ────────────────────────────────────────────────────────────────────

// arena owns every node of a tree. Released slots are reused by later
// allocations, so a handle is only meaningful while its node is live.
type arena struct {
	nodes []*node
	free  []nodeID
	live  int
}

func (a *arena) alloc(n *node) nodeID {
	a.live++
	if k := len(a.free); k > 0 {
		id := a.free[k-1]
		a.free = a.free[:k-1]
		a.nodes[id] = n
		return id
	}
	a.nodes = append(a.nodes, n)
	return nodeID(len(a.nodes) - 1)
}

func (a *arena) get(id nodeID) *node {
	if n := a.lookup(id); n != nil {
		return n
	}
	panic(errors.AssertionFailedf("bplustree: dangling node handle %d", id))
}

// lookup is get without the panic, for the validator.
func (a *arena) lookup(id nodeID) *node {
	if id < 0 || int(id) >= len(a.nodes) {
		return nil
	}
	return a.nodes[id]
}

func (a *arena) release(id nodeID) {
	a.nodes[id] = nil
	a.free = append(a.free, id)
	a.live--
}
