// Package btree adapts github.com/google/btree to the Index interface. It is
// the classic-B-tree comparison point for the benchmarks.
package btree

import (
	gbtree "github.com/google/btree"

	"github.com/btree-query-bench/ridx/index"
	"github.com/btree-query-bench/ridx/index/rid"
	"github.com/btree-query-bench/ridx/index/value"
	"github.com/cockroachdb/errors"
)

var _ index.Index = (*BTree)(nil)

type item struct {
	key value.Value
	rid rid.RID
}

// less is only ever called with keys of the tree's kind.
func less(a, b item) bool {
	c, _ := value.Compare(a.key, b.key)
	return c < 0
}

type BTree struct {
	T    int
	kind value.Kind
	tree *gbtree.BTreeG[item]
}

// NewBTree returns an empty tree whose nodes hold up to 2t-1 items.
func NewBTree(t int) *BTree {
	if t < 2 {
		t = 2
	}
	return &BTree{T: t, tree: gbtree.NewG(t, less)}
}

func (bt *BTree) accepts(key value.Value) bool {
	return key.IsValid() && key.Kind() == bt.kind
}

func (bt *BTree) Insert(key value.Value, r rid.RID) error {
	if !key.IsValid() {
		return errors.New("btree: invalid key")
	}
	if bt.kind != value.KindInvalid && key.Kind() != bt.kind {
		return errors.Wrapf(value.ErrTypeMismatch, "btree: insert %s key into %s index", key.Kind(), bt.kind)
	}
	bt.kind = key.Kind()
	bt.tree.ReplaceOrInsert(item{key: key, rid: r})
	return nil
}

func (bt *BTree) Search(key value.Value) []rid.RID {
	if r, ok := bt.SearchSingle(key); ok {
		return []rid.RID{r}
	}
	return nil
}

func (bt *BTree) SearchSingle(key value.Value) (rid.RID, bool) {
	if !bt.accepts(key) {
		return rid.RID{}, false
	}
	it, ok := bt.tree.Get(item{key: key})
	return it.rid, ok
}

func (bt *BTree) Delete(key value.Value) bool {
	if !bt.accepts(key) {
		return false
	}
	_, ok := bt.tree.Delete(item{key: key})
	return ok
}

func (bt *BTree) RangeSearch(start, end value.Value) ([]rid.RID, error) {
	items, err := bt.collect(start, end)
	if err != nil {
		return nil, err
	}
	var out []rid.RID
	for _, it := range items {
		out = append(out, it.rid)
	}
	return out, nil
}

// Range snapshots the matching items; google/btree only offers callbacks.
func (bt *BTree) Range(start, end value.Value) (index.Iterator, error) {
	items, err := bt.collect(start, end)
	if err != nil {
		return nil, err
	}
	return &sliceIterator{items: items, cur: -1}, nil
}

func (bt *BTree) collect(start, end value.Value) ([]item, error) {
	if !start.IsValid() || start.Kind() != end.Kind() {
		return nil, errors.Wrapf(value.ErrTypeMismatch, "btree: range bounds %s and %s", start.Kind(), end.Kind())
	}
	if !bt.accepts(start) {
		return nil, nil
	}
	var items []item
	bt.tree.AscendGreaterOrEqual(item{key: start}, func(it item) bool {
		if c, _ := value.Compare(it.key, end); c > 0 {
			return false
		}
		items = append(items, it)
		return true
	})
	return items, nil
}

func (bt *BTree) Len() int     { return bt.tree.Len() }
func (bt *BTree) Close() error { return nil }

type sliceIterator struct {
	items []item
	cur   int
}

func (it *sliceIterator) Next() bool {
	it.cur++
	return it.cur < len(it.items)
}

func (it *sliceIterator) Key() value.Value { return it.items[it.cur].key }
func (it *sliceIterator) RID() rid.RID     { return it.items[it.cur].rid }
func (it *sliceIterator) Error() error     { return nil }
func (it *sliceIterator) Close() error     { return nil }
