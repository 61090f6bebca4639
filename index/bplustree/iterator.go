package bplustree

import (
	"slices"

	"github.com/btree-query-bench/ridx/index"
	"github.com/btree-query-bench/ridx/index/rid"
	"github.com/btree-query-bench/ridx/index/value"
	"github.com/cockroachdb/errors"
)

// --- RANGE (The Iterator) ---

// Iterator walks the leaf chain in key order. Any mutation of the tree
// invalidates it: Next then returns false and Error reports
// ErrIteratorInvalidated.
type Iterator struct {
	t       *Tree
	leaf    nodeID
	pos     int
	end     value.Value
	bounded bool
	version uint64

	key value.Value
	rid rid.RID
	err error
}

var _ index.Iterator = (*Iterator)(nil)

// Range returns an iterator over keys in [start, end].
func (t *Tree) Range(start, end value.Value) (index.Iterator, error) {
	return t.newRangeIter(start, end)
}

func (t *Tree) newRangeIter(start, end value.Value) (*Iterator, error) {
	if !start.IsValid() || start.Kind() != end.Kind() {
		return nil, errors.Wrapf(value.ErrTypeMismatch, "bplustree: range bounds %s and %s", start.Kind(), end.Kind())
	}
	it := &Iterator{t: t, leaf: nilNode, end: end, bounded: true, version: t.version}
	if !t.accepts(start) || t.compare(start, end) > 0 {
		return it, nil
	}
	it.leaf = t.findLeaf(start)
	it.pos, _ = slices.BinarySearchFunc(t.node(it.leaf).leaf.keys, start, t.compare)
	return it, nil
}

// Scan returns an iterator over every pair in key order.
func (t *Tree) Scan() *Iterator {
	return &Iterator{t: t, leaf: t.leftmostLeaf(), version: t.version}
}

func (it *Iterator) Next() bool {
	if it.leaf == nilNode {
		return false
	}
	if it.t.version != it.version {
		it.err = ErrIteratorInvalidated
		it.leaf = nilNode
		return false
	}
	for it.leaf != nilNode {
		lf := it.t.node(it.leaf).leaf
		if it.pos < len(lf.keys) {
			k := lf.keys[it.pos]
			if it.bounded && it.t.compare(k, it.end) > 0 {
				it.leaf = nilNode
				return false
			}
			it.key, it.rid = k, lf.rids[it.pos]
			it.pos++
			return true
		}
		// Follow the leaf chain
		it.leaf, it.pos = lf.next, 0
	}
	return false
}

func (it *Iterator) Key() value.Value { return it.key }
func (it *Iterator) RID() rid.RID     { return it.rid }
func (it *Iterator) Error() error     { return it.err }

func (it *Iterator) Close() error {
	it.leaf = nilNode
	return nil
}

// Ascend calls fn for each pair in key order until fn returns false.
func (t *Tree) Ascend(fn func(key value.Value, r rid.RID) bool) {
	for id := t.leftmostLeaf(); id != nilNode; {
		lf := t.node(id).leaf
		for i := range lf.keys {
			if !fn(lf.keys[i], lf.rids[i]) {
				return
			}
		}
		id = lf.next
	}
}

// Keys returns every key in leaf-chain order.
func (t *Tree) Keys() []value.Value {
	out := make([]value.Value, 0, t.size)
	t.Ascend(func(k value.Value, _ rid.RID) bool {
		out = append(out, k)
		return true
	})
	return out
}
