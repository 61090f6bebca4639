// Package listindex is the baseline index: one sorted slice searched with
// binary search. Inserts and deletes shift the tail, so it only suits small
// data sets and cross-checks.
package listindex

import (
	"slices"

	"github.com/btree-query-bench/ridx/index"
	"github.com/btree-query-bench/ridx/index/rid"
	"github.com/btree-query-bench/ridx/index/value"
	"github.com/cockroachdb/errors"
)

var _ index.Index = (*ListIndex)(nil)

type Data struct {
	Key value.Value
	RID rid.RID
}

type ListIndex struct {
	kind value.Kind
	Data []Data
}

func NewListIndex() *ListIndex {
	return &ListIndex{
		Data: make([]Data, 0),
	}
}

func cmpData(d Data, key value.Value) int {
	c, _ := value.Compare(d.Key, key)
	return c
}

func (l *ListIndex) find(key value.Value) (int, bool) {
	return slices.BinarySearchFunc(l.Data, key, cmpData)
}

func (l *ListIndex) accepts(key value.Value) bool {
	return key.IsValid() && key.Kind() == l.kind
}

func (l *ListIndex) Insert(key value.Value, r rid.RID) error {
	if !key.IsValid() {
		return errors.New("listindex: invalid key")
	}
	if l.kind != value.KindInvalid && key.Kind() != l.kind {
		return errors.Wrapf(value.ErrTypeMismatch, "listindex: insert %s key into %s index", key.Kind(), l.kind)
	}
	l.kind = key.Kind()
	i, found := l.find(key)
	if found {
		l.Data[i].RID = r
		return nil
	}
	l.Data = slices.Insert(l.Data, i, Data{Key: key, RID: r})
	return nil
}

func (l *ListIndex) Search(key value.Value) []rid.RID {
	if r, ok := l.SearchSingle(key); ok {
		return []rid.RID{r}
	}
	return nil
}

func (l *ListIndex) SearchSingle(key value.Value) (rid.RID, bool) {
	if !l.accepts(key) {
		return rid.RID{}, false
	}
	i, found := l.find(key)
	if !found {
		return rid.RID{}, false
	}
	return l.Data[i].RID, true
}

func (l *ListIndex) Delete(key value.Value) bool {
	if !l.accepts(key) {
		return false
	}
	i, found := l.find(key)
	if !found {
		return false
	}
	l.Data = slices.Delete(l.Data, i, i+1)
	return true
}

func (l *ListIndex) RangeSearch(start, end value.Value) ([]rid.RID, error) {
	it, err := l.Range(start, end)
	if err != nil {
		return nil, err
	}
	return index.Collect(it)
}

func (l *ListIndex) Range(start, end value.Value) (index.Iterator, error) {
	if !start.IsValid() || start.Kind() != end.Kind() {
		return nil, errors.Wrapf(value.ErrTypeMismatch, "listindex: range bounds %s and %s", start.Kind(), end.Kind())
	}
	it := &ListIterator{cur: -1, end: end}
	if l.accepts(start) {
		lo, _ := l.find(start)
		it.data = l.Data
		it.cur = lo - 1
	}
	return it, nil
}

func (l *ListIndex) Len() int     { return len(l.Data) }
func (l *ListIndex) Close() error { return nil }

type ListIterator struct {
	data []Data
	cur  int
	end  value.Value
}

func (it *ListIterator) Next() bool {
	it.cur++
	if it.cur >= len(it.data) {
		return false
	}
	if c, _ := value.Compare(it.data[it.cur].Key, it.end); c > 0 {
		it.data = nil
		return false
	}
	return true
}

func (it *ListIterator) Key() value.Value { return it.data[it.cur].Key }
func (it *ListIterator) RID() rid.RID     { return it.data[it.cur].RID }
func (it *ListIterator) Error() error     { return nil }
func (it *ListIterator) Close() error     { return nil }
