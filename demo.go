package main

import (
	"fmt"
	"io"

	"github.com/btree-query-bench/ridx/index/bplustree"
	"github.com/btree-query-bench/ridx/index/rid"
	"github.com/btree-query-bench/ridx/index/value"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// RunDemo walks a degree 3 tree through growth, deletion, string keys, a
// rejected insert and a full drain, printing the tree after each step.
func RunDemo(out io.Writer, log *zap.Logger) error {
	opt := bplustree.WithLogger(log)

	fmt.Fprintln(out, "--- 1. Sequential insert 1..10 ---")
	t, err := bplustree.New(3, opt)
	if err != nil {
		return err
	}
	for i := int64(1); i <= 10; i++ {
		if err := t.Insert(value.NewInt(i), rid.New(uint32(i/4+1), uint16(i%4))); err != nil {
			return err
		}
	}
	if err := show(out, t); err != nil {
		return err
	}
	rids, err := t.RangeSearch(value.NewInt(3), value.NewInt(7))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "range [3,7]: %v\n", rids)

	fmt.Fprintln(out, "\n--- 2. Delete 5 ---")
	t.Delete(value.NewInt(5))
	_, found := t.SearchSingle(value.NewInt(5))
	fmt.Fprintf(out, "search 5 found: %v\n", found)
	if err := show(out, t); err != nil {
		return err
	}

	fmt.Fprintln(out, "\n--- 3. String keys, delete Bob ---")
	s, err := bplustree.New(3, opt)
	if err != nil {
		return err
	}
	for i, name := range []string{"Alice", "Bob", "Charlie", "David", "Eve"} {
		if err := s.Insert(value.NewString(name), rid.New(1, uint16(i))); err != nil {
			return err
		}
	}
	s.Delete(value.NewString("Bob"))
	if err := show(out, s); err != nil {
		return err
	}

	fmt.Fprintln(out, "\n--- 4. Integer key into a string tree ---")
	before := s.Len()
	err = s.Insert(value.NewInt(42), rid.New(9, 9))
	fmt.Fprintf(out, "insert 42: %v (type mismatch: %v, size %d -> %d)\n",
		err, errors.Is(err, value.ErrTypeMismatch), before, s.Len())

	fmt.Fprintln(out, "\n--- 5. Drain scenario 1 in ascending order ---")
	for _, k := range t.Keys() {
		t.Delete(k)
	}
	fmt.Fprintf(out, "entries=%d height=%d nodes=%d\n", t.Len(), t.Height(), t.NodeCount())
	return show(out, t)
}

func show(out io.Writer, t *bplustree.Tree) error {
	if err := t.Dump(out); err != nil {
		return err
	}
	fmt.Fprintf(out, "chain: %s\n", t.LeafChain())
	if err := t.Check(); err != nil {
		return errors.Wrap(err, "demo")
	}
	fmt.Fprintln(out, "valid: true")
	return nil
}
