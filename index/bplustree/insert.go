package bplustree

import (
	"slices"

	"github.com/btree-query-bench/ridx/index/rid"
	"github.com/btree-query-bench/ridx/index/value"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// --- INSERT ---

// Insert stores r under key, replacing the RID if key is already present.
// A key whose kind differs from the tree's fails with value.ErrTypeMismatch
// and leaves the tree untouched.
func (t *Tree) Insert(key value.Value, r rid.RID) error {
	if !key.IsValid() {
		return ErrInvalidKey
	}
	if t.kind != value.KindInvalid && key.Kind() != t.kind {
		return errors.Wrapf(value.ErrTypeMismatch, "bplustree: insert %s key into %s index", key.Kind(), t.kind)
	}
	t.kind = key.Kind()
	t.version++

	id := t.findLeaf(key)
	lf := t.node(id).leaf
	i, found := slices.BinarySearchFunc(lf.keys, key, t.compare)
	if found {
		lf.rids[i] = r
		t.stats.Updates++
		return nil
	}
	lf.keys = slices.Insert(lf.keys, i, key)
	lf.rids = slices.Insert(lf.rids, i, r)
	t.size++
	t.stats.Inserts++

	if len(lf.keys) > t.maxKeys() {
		sep, right := t.splitLeaf(id)
		t.insertIntoParent(id, sep, right)
	}
	return nil
}

// splitLeaf moves the upper half of an overflowing leaf into a new right
// sibling and returns the separator to copy up, which is the sibling's first
// key.
func (t *Tree) splitLeaf(id nodeID) (value.Value, nodeID) {
	n := t.node(id)
	lf := n.leaf
	mid := len(lf.keys) / 2

	right := newLeaf(n.parent)
	right.leaf.keys = slices.Clone(lf.keys[mid:])
	right.leaf.rids = slices.Clone(lf.rids[mid:])
	lf.keys = lf.keys[:mid]
	lf.rids = lf.rids[:mid]
	rightID := t.arena.alloc(right)

	right.leaf.prev = id
	right.leaf.next = lf.next
	if lf.next != nilNode {
		t.node(lf.next).leaf.prev = rightID
	}
	lf.next = rightID

	t.stats.LeafSplits++
	sep := right.leaf.keys[0]
	t.log.Debug("leaf split",
		zap.Int32("node", int32(id)),
		zap.Int32("sibling", int32(rightID)),
		zap.Stringer("separator", sep))
	return sep, rightID
}

// splitInternal moves the keys and children above the middle key into a new
// right sibling. The middle key leaves the node and is returned for
// promotion.
func (t *Tree) splitInternal(id nodeID) (value.Value, nodeID) {
	n := t.node(id)
	in := n.internal
	mid := len(in.keys) / 2
	sep := in.keys[mid]

	right := newInternal(n.parent)
	right.internal.keys = slices.Clone(in.keys[mid+1:])
	right.internal.children = slices.Clone(in.children[mid+1:])
	in.keys = in.keys[:mid]
	in.children = in.children[:mid+1]
	rightID := t.arena.alloc(right)
	for _, c := range right.internal.children {
		t.node(c).parent = rightID
	}

	t.stats.InternalSplits++
	t.log.Debug("internal split",
		zap.Int32("node", int32(id)),
		zap.Int32("sibling", int32(rightID)),
		zap.Stringer("separator", sep))
	return sep, rightID
}

// insertIntoParent links a freshly split right node next to left, splitting
// ancestors for as long as they overflow.
func (t *Tree) insertIntoParent(left nodeID, sep value.Value, right nodeID) {
	for {
		ln := t.node(left)
		if ln.parent == nilNode {
			root := newInternal(nilNode)
			root.internal.keys = []value.Value{sep}
			root.internal.children = []nodeID{left, right}
			t.root = t.arena.alloc(root)
			ln.parent = t.root
			t.node(right).parent = t.root
			t.stats.RootSplits++
			t.log.Debug("root split",
				zap.Int32("root", int32(t.root)),
				zap.Int("height", t.Height()))
			return
		}

		parentID := ln.parent
		parent := t.node(parentID)
		i := t.indexOfChild(parent, left)
		parent.internal.keys = slices.Insert(parent.internal.keys, i, sep)
		parent.internal.children = slices.Insert(parent.internal.children, i+1, right)
		t.node(right).parent = parentID

		if len(parent.internal.keys) <= t.maxKeys() {
			return
		}
		sep, right = t.splitInternal(parentID)
		left = parentID
	}
}
