// Package indextest holds the behaviour every index.Index must share. Each
// implementation runs Run from its own tests.
package indextest

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/btree-query-bench/ridx/index"
	"github.com/btree-query-bench/ridx/index/rid"
	"github.com/btree-query-bench/ridx/index/value"
	"github.com/cockroachdb/errors"
)

// Factory returns a fresh, empty index.
type Factory func(t *testing.T) index.Index

func Run(t *testing.T, newIndex Factory) {
	t.Run("PointOps", func(t *testing.T) { testPointOps(t, newIndex(t)) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, newIndex(t)) })
	t.Run("Range", func(t *testing.T) { testRange(t, newIndex(t)) })
	t.Run("KindChecks", func(t *testing.T) { testKindChecks(t, newIndex(t)) })
	t.Run("Random", func(t *testing.T) { testRandom(t, newIndex(t)) })
}

func mustInsert(t *testing.T, idx index.Index, k value.Value, r rid.RID) {
	t.Helper()
	if err := idx.Insert(k, r); err != nil {
		t.Fatalf("insert %v failed: %v", k, err)
	}
}

func testPointOps(t *testing.T, idx index.Index) {
	defer idx.Close()
	for i := int64(1); i <= 100; i++ {
		mustInsert(t, idx, value.NewInt(i), rid.New(uint32(i), uint16(i%7)))
	}
	if idx.Len() != 100 {
		t.Fatalf("Len() = %d, want 100", idx.Len())
	}
	for i := int64(1); i <= 100; i++ {
		r, ok := idx.SearchSingle(value.NewInt(i))
		if !ok || r != rid.New(uint32(i), uint16(i%7)) {
			t.Fatalf("SearchSingle(%d) = %v, %v", i, r, ok)
		}
	}
	if got := idx.Search(value.NewInt(1000)); len(got) != 0 {
		t.Fatalf("Search(missing) = %v", got)
	}
	if !idx.Delete(value.NewInt(50)) {
		t.Fatal("Delete(50) = false")
	}
	if idx.Delete(value.NewInt(50)) {
		t.Fatal("second Delete(50) = true")
	}
	if _, ok := idx.SearchSingle(value.NewInt(50)); ok {
		t.Fatal("50 still present after delete")
	}
	if idx.Len() != 99 {
		t.Fatalf("Len() = %d, want 99", idx.Len())
	}
}

func testOverwrite(t *testing.T, idx index.Index) {
	defer idx.Close()
	k := value.NewString("Alice")
	mustInsert(t, idx, k, rid.New(1, 1))
	mustInsert(t, idx, k, rid.New(2, 2))
	if got := idx.Search(k); !slices.Equal(got, []rid.RID{rid.New(2, 2)}) {
		t.Fatalf("Search after overwrite = %v", got)
	}
	if idx.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", idx.Len())
	}
}

func testRange(t *testing.T, idx index.Index) {
	defer idx.Close()
	for i := int64(0); i < 40; i++ {
		mustInsert(t, idx, value.NewInt(i*5), rid.New(uint32(i), 0))
	}
	got, err := idx.RangeSearch(value.NewInt(12), value.NewInt(31))
	if err != nil {
		t.Fatalf("range failed: %v", err)
	}
	want := []rid.RID{rid.New(3, 0), rid.New(4, 0), rid.New(5, 0), rid.New(6, 0)}
	if !slices.Equal(got, want) {
		t.Fatalf("range [12,31] = %v, want %v", got, want)
	}
	if got, _ := idx.RangeSearch(value.NewInt(30), value.NewInt(10)); len(got) != 0 {
		t.Fatalf("inverted range = %v", got)
	}

	it, err := idx.Range(value.NewInt(190), value.NewInt(1000))
	if err != nil {
		t.Fatalf("range iterator failed: %v", err)
	}
	var keys []int64
	for it.Next() {
		keys = append(keys, it.Key().Int())
	}
	if err := it.Error(); err != nil {
		t.Fatalf("iterator error: %v", err)
	}
	if err := it.Close(); err != nil {
		t.Fatalf("iterator close: %v", err)
	}
	if !slices.Equal(keys, []int64{190, 195}) {
		t.Fatalf("tail range keys = %v", keys)
	}
}

func testKindChecks(t *testing.T, idx index.Index) {
	defer idx.Close()
	mustInsert(t, idx, value.NewString("Bob"), rid.New(1, 0))
	if err := idx.Insert(value.NewInt(1), rid.New(1, 1)); !errors.Is(err, value.ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
	if idx.Len() != 1 {
		t.Fatalf("Len() = %d after rejected insert", idx.Len())
	}
	if _, err := idx.RangeSearch(value.NewString("A"), value.NewInt(9)); !errors.Is(err, value.ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch for mixed bounds, got %v", err)
	}
	if got, err := idx.RangeSearch(value.NewInt(0), value.NewInt(9)); err != nil || len(got) != 0 {
		t.Fatalf("foreign-kind range = %v, %v", got, err)
	}
	if idx.Delete(value.NewInt(1)) {
		t.Fatal("Delete with foreign kind = true")
	}
}

func testRandom(t *testing.T, idx index.Index) {
	defer idx.Close()
	rng := rand.New(rand.NewSource(7))
	ref := map[int64]rid.RID{}
	for op := 0; op < 3000; op++ {
		k := rng.Int63n(400)
		if rng.Intn(3) > 0 {
			r := rid.New(uint32(op), 1)
			mustInsert(t, idx, value.NewInt(k), r)
			ref[k] = r
		} else {
			_, want := ref[k]
			delete(ref, k)
			if got := idx.Delete(value.NewInt(k)); got != want {
				t.Fatalf("op %d: Delete(%d) = %v, want %v", op, k, got, want)
			}
		}
	}
	if idx.Len() != len(ref) {
		t.Fatalf("Len() = %d, want %d", idx.Len(), len(ref))
	}
	keys := make([]int64, 0, len(ref))
	for k := range ref {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	got, err := idx.RangeSearch(value.NewInt(0), value.NewInt(400))
	if err != nil {
		t.Fatalf("range failed: %v", err)
	}
	if len(got) != len(keys) {
		t.Fatalf("full range returned %d, want %d", len(got), len(keys))
	}
	for i, k := range keys {
		if got[i] != ref[k] {
			t.Fatalf("position %d (key %d): %v, want %v", i, k, got[i], ref[k])
		}
	}
}
