package bplustree

import (
	"slices"

	"github.com/btree-query-bench/ridx/index/value"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// --- DELETE ---

// Delete removes key and reports whether it was present.
func (t *Tree) Delete(key value.Value) bool {
	if !t.accepts(key) {
		return false
	}
	id := t.findLeaf(key)
	lf := t.node(id).leaf
	i, found := slices.BinarySearchFunc(lf.keys, key, t.compare)
	if !found {
		return false
	}
	lf.keys = slices.Delete(lf.keys, i, i+1)
	lf.rids = slices.Delete(lf.rids, i, i+1)
	t.size--
	t.version++
	t.stats.Deletes++

	t.rebalance(id)
	return true
}

// rebalance repairs underflow at id and walks up while parents underflow in
// turn. It ends at the root, collapsing an internal root that lost its last
// key.
func (t *Tree) rebalance(id nodeID) {
	for {
		n := t.node(id)
		if n.parent == nilNode {
			if n.kind == kindInternal && len(n.internal.keys) == 0 {
				t.collapseRoot(id)
			}
			return
		}
		if n.numKeys() >= t.minKeys() {
			return
		}

		parentID := n.parent
		parent := t.node(parentID)
		i := t.indexOfChild(parent, id)
		left, right := nilNode, nilNode
		if i > 0 {
			left = parent.internal.children[i-1]
		}
		if i < len(parent.internal.children)-1 {
			right = parent.internal.children[i+1]
		}

		switch {
		case left != nilNode && t.node(left).numKeys() > t.minKeys():
			t.borrowLeft(id, left, parent, i)
			return
		case right != nilNode && t.node(right).numKeys() > t.minKeys():
			t.borrowRight(id, right, parent, i)
			return
		case left != nilNode:
			t.merge(left, id, parent, i-1)
		case right != nilNode:
			t.merge(id, right, parent, i)
		default:
			panic(errors.AssertionFailedf("bplustree: non-root node %d has no siblings", id))
		}
		id = parentID
	}
}

// borrowLeft moves the left sibling's last entry into id. i is id's slot in
// parent.
func (t *Tree) borrowLeft(id, left nodeID, parent *node, i int) {
	n, ln := t.node(id), t.node(left)
	switch n.kind {
	case kindLeaf:
		last := len(ln.leaf.keys) - 1
		n.leaf.keys = slices.Insert(n.leaf.keys, 0, ln.leaf.keys[last])
		n.leaf.rids = slices.Insert(n.leaf.rids, 0, ln.leaf.rids[last])
		ln.leaf.keys = ln.leaf.keys[:last]
		ln.leaf.rids = ln.leaf.rids[:last]
		parent.internal.keys[i-1] = n.leaf.keys[0]
	case kindInternal:
		last := len(ln.internal.keys) - 1
		moved := ln.internal.children[last+1]
		n.internal.keys = slices.Insert(n.internal.keys, 0, parent.internal.keys[i-1])
		n.internal.children = slices.Insert(n.internal.children, 0, moved)
		parent.internal.keys[i-1] = ln.internal.keys[last]
		ln.internal.keys = ln.internal.keys[:last]
		ln.internal.children = ln.internal.children[:last+1]
		t.node(moved).parent = id
	}
	t.stats.BorrowsLeft++
	t.log.Debug("borrow left",
		zap.Stringer("kind", n.kind),
		zap.Int32("node", int32(id)),
		zap.Int32("sibling", int32(left)))
}

// borrowRight moves the right sibling's first entry into id.
func (t *Tree) borrowRight(id, right nodeID, parent *node, i int) {
	n, rn := t.node(id), t.node(right)
	switch n.kind {
	case kindLeaf:
		n.leaf.keys = append(n.leaf.keys, rn.leaf.keys[0])
		n.leaf.rids = append(n.leaf.rids, rn.leaf.rids[0])
		rn.leaf.keys = slices.Delete(rn.leaf.keys, 0, 1)
		rn.leaf.rids = slices.Delete(rn.leaf.rids, 0, 1)
		parent.internal.keys[i] = rn.leaf.keys[0]
	case kindInternal:
		moved := rn.internal.children[0]
		n.internal.keys = append(n.internal.keys, parent.internal.keys[i])
		n.internal.children = append(n.internal.children, moved)
		parent.internal.keys[i] = rn.internal.keys[0]
		rn.internal.keys = slices.Delete(rn.internal.keys, 0, 1)
		rn.internal.children = slices.Delete(rn.internal.children, 0, 1)
		t.node(moved).parent = id
	}
	t.stats.BorrowsRight++
	t.log.Debug("borrow right",
		zap.Stringer("kind", n.kind),
		zap.Int32("node", int32(id)),
		zap.Int32("sibling", int32(right)))
}

// merge folds right into left and drops separator sep (and the edge to
// right) from parent. right is released.
func (t *Tree) merge(left, right nodeID, parent *node, sep int) {
	ln, rn := t.node(left), t.node(right)
	switch ln.kind {
	case kindLeaf:
		ln.leaf.keys = append(ln.leaf.keys, rn.leaf.keys...)
		ln.leaf.rids = append(ln.leaf.rids, rn.leaf.rids...)
		ln.leaf.next = rn.leaf.next
		if rn.leaf.next != nilNode {
			t.node(rn.leaf.next).leaf.prev = left
		}
	case kindInternal:
		ln.internal.keys = append(ln.internal.keys, parent.internal.keys[sep])
		ln.internal.keys = append(ln.internal.keys, rn.internal.keys...)
		ln.internal.children = append(ln.internal.children, rn.internal.children...)
		for _, c := range rn.internal.children {
			t.node(c).parent = left
		}
	}
	parent.internal.keys = slices.Delete(parent.internal.keys, sep, sep+1)
	parent.internal.children = slices.Delete(parent.internal.children, sep+1, sep+2)
	t.arena.release(right)

	t.stats.Merges++
	t.log.Debug("merge",
		zap.Stringer("kind", ln.kind),
		zap.Int32("node", int32(left)),
		zap.Int32("absorbed", int32(right)))
}

func (t *Tree) collapseRoot(id nodeID) {
	child := t.node(id).internal.children[0]
	t.node(child).parent = nilNode
	t.root = child
	t.arena.release(id)
	t.stats.RootCollapses++
	t.log.Debug("root collapse",
		zap.Int32("root", int32(child)),
		zap.Int("height", t.Height()))
}
