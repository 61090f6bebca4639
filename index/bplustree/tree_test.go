package bplustree

import (
	"bytes"
	"slices"
	"strings"
	"testing"

	"github.com/btree-query-bench/ridx/index/rid"
	"github.com/btree-query-bench/ridx/index/value"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"
)

func K(i int64) value.Value { return value.NewInt(i) }
func S(s string) value.Value { return value.NewString(s) }

func newTree(t *testing.T, degree int, opts ...Option) *Tree {
	t.Helper()
	tr, err := New(degree, opts...)
	if err != nil {
		t.Fatalf("failed to create tree: %v", err)
	}
	return tr
}

func mustValid(t *testing.T, tr *Tree) {
	t.Helper()
	if err := tr.Check(); err != nil {
		t.Fatalf("tree invalid: %v\n%s", err, dump(tr))
	}
}

func dump(tr *Tree) string {
	var b bytes.Buffer
	_ = tr.Dump(&b)
	b.WriteString("chain: " + tr.LeafChain())
	return b.String()
}

func scenarioRID(i int64) rid.RID { return rid.New(uint32(i/4+1), uint16(i%4)) }

func TestNewRejectsSmallDegree(t *testing.T) {
	for _, d := range []int{-1, 0, 1, 2} {
		if _, err := New(d); !errors.Is(err, ErrInvalidDegree) {
			t.Fatalf("New(%d): expected ErrInvalidDegree, got %v", d, err)
		}
	}
	tr := newTree(t, 3)
	if tr.Len() != 0 || tr.Height() != 1 || tr.NodeCount() != 1 {
		t.Fatalf("new tree: len=%d height=%d nodes=%d", tr.Len(), tr.Height(), tr.NodeCount())
	}
	mustValid(t, tr)
}

func TestScenarioSequentialInsertAndRange(t *testing.T) {
	tr := newTree(t, 3)
	for i := int64(1); i <= 10; i++ {
		if err := tr.Insert(K(i), scenarioRID(i)); err != nil {
			t.Fatalf("insert %d failed: %v", i, err)
		}
		mustValid(t, tr)
	}
	if !tr.Validate() {
		t.Fatal("Validate() = false after inserts")
	}

	got, err := tr.RangeSearch(K(3), K(7))
	if err != nil {
		t.Fatalf("range failed: %v", err)
	}
	var want []rid.RID
	for i := int64(3); i <= 7; i++ {
		want = append(want, scenarioRID(i))
	}
	if !slices.Equal(got, want) {
		t.Fatalf("range 3..7 = %v, want %v", got, want)
	}
	for i := int64(1); i <= 10; i++ {
		r, ok := tr.SearchSingle(K(i))
		if !ok || r != scenarioRID(i) {
			t.Fatalf("SearchSingle(%d) = %v, %v", i, r, ok)
		}
	}
}

func TestScenarioDeleteMiddle(t *testing.T) {
	tr := newTree(t, 3)
	for i := int64(1); i <= 10; i++ {
		_ = tr.Insert(K(i), scenarioRID(i))
	}
	if !tr.Delete(K(5)) {
		t.Fatal("Delete(5) = false")
	}
	if got := tr.Search(K(5)); len(got) != 0 {
		t.Fatalf("Search(5) after delete = %v", got)
	}
	mustValid(t, tr)
	if tr.Len() != 9 {
		t.Fatalf("Len() = %d, want 9", tr.Len())
	}
	if tr.Delete(K(5)) {
		t.Fatal("second Delete(5) = true")
	}
}

func TestScenarioStringKeys(t *testing.T) {
	tr := newTree(t, 3)
	names := []string{"Alice", "Bob", "Charlie", "David", "Eve"}
	for i, n := range names {
		if err := tr.Insert(S(n), rid.New(1, uint16(i))); err != nil {
			t.Fatalf("insert %s failed: %v", n, err)
		}
	}
	if !tr.Delete(S("Bob")) {
		t.Fatal("Delete(Bob) = false")
	}
	mustValid(t, tr)

	var got []string
	for _, k := range tr.Keys() {
		got = append(got, k.Str())
	}
	want := []string{"Alice", "Charlie", "David", "Eve"}
	if !slices.Equal(got, want) {
		t.Fatalf("leaf chain = %v, want %v", got, want)
	}
}

func TestScenarioTypeMismatch(t *testing.T) {
	tr := newTree(t, 3)
	for _, n := range []string{"Alice", "Bob", "Charlie"} {
		_ = tr.Insert(S(n), rid.New(1, 0))
	}
	before := dump(tr)

	err := tr.Insert(K(42), rid.New(9, 9))
	if !errors.Is(err, value.ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
	if after := dump(tr); after != before {
		t.Fatalf("tree changed after failed insert:\nbefore:\n%s\nafter:\n%s", before, after)
	}
	if tr.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", tr.Len())
	}
	if _, err := tr.RangeSearch(S("A"), K(1)); !errors.Is(err, value.ErrTypeMismatch) {
		t.Fatalf("range with mixed bounds: expected ErrTypeMismatch, got %v", err)
	}
	if got := tr.Search(K(1)); got != nil {
		t.Fatalf("Search with foreign kind = %v", got)
	}
	if tr.Delete(K(1)) {
		t.Fatal("Delete with foreign kind = true")
	}
	mustValid(t, tr)
}

func TestScenarioDeleteAllAscending(t *testing.T) {
	tr := newTree(t, 3)
	for i := int64(1); i <= 10; i++ {
		_ = tr.Insert(K(i), scenarioRID(i))
	}
	for i := int64(1); i <= 10; i++ {
		if !tr.Delete(K(i)) {
			t.Fatalf("Delete(%d) = false", i)
		}
		mustValid(t, tr)
	}
	root := tr.node(tr.root)
	if root.kind != kindLeaf || root.parent != nilNode || len(root.leaf.keys) != 0 {
		t.Fatalf("expected a single empty root leaf, got %s", dump(tr))
	}
	if tr.Len() != 0 || tr.NodeCount() != 1 || tr.Height() != 1 {
		t.Fatalf("len=%d nodes=%d height=%d", tr.Len(), tr.NodeCount(), tr.Height())
	}
	if tr.Stats().RootCollapses == 0 {
		t.Fatal("expected at least one root collapse")
	}

	// The key kind outlives the keys.
	if err := tr.Insert(S("x"), rid.New(1, 1)); !errors.Is(err, value.ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch on emptied int tree, got %v", err)
	}
}

func TestInsertOverwrites(t *testing.T) {
	tr := newTree(t, 4)
	_ = tr.Insert(K(7), rid.New(1, 1))
	_ = tr.Insert(K(7), rid.New(2, 2))
	if tr.Len() != 1 {
		t.Fatalf("Len() = %d after overwrite", tr.Len())
	}
	if got := tr.Search(K(7)); !slices.Equal(got, []rid.RID{rid.New(2, 2)}) {
		t.Fatalf("Search(7) = %v", got)
	}
	if s := tr.Stats(); s.Inserts != 1 || s.Updates != 1 {
		t.Fatalf("stats = %+v", s)
	}
	if err := tr.Insert(value.Value{}, rid.New(1, 1)); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestSplitShape(t *testing.T) {
	tr := newTree(t, 3)
	for i := int64(1); i <= 3; i++ {
		_ = tr.Insert(K(i), rid.New(1, uint16(i)))
	}
	want := [][]string{{"[2]"}, {"[1]", "[2 3]"}}
	got := tr.Levels()
	if len(got) != len(want) {
		t.Fatalf("levels = %v, want %v", got, want)
	}
	for i := range want {
		if !slices.Equal(got[i], want[i]) {
			t.Fatalf("levels = %v, want %v", got, want)
		}
	}
	if chain := tr.LeafChain(); chain != "[1] -> [2 3]" {
		t.Fatalf("chain = %q", chain)
	}
	if s := tr.Stats(); s.LeafSplits != 1 || s.RootSplits != 1 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestRangeEdges(t *testing.T) {
	tr := newTree(t, 4)
	for i := int64(0); i < 50; i += 2 {
		_ = tr.Insert(K(i), rid.New(uint32(i), 0))
	}
	tests := []struct {
		name     string
		lo, hi   int64
		wantKeys []int64
	}{
		{"inverted", 10, 4, nil},
		{"between keys", 11, 15, []int64{12, 14}},
		{"single", 20, 20, []int64{20}},
		{"missing single", 21, 21, nil},
		{"below all", -10, 1, []int64{0}},
		{"above all", 49, 100, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tr.RangeSearch(K(tt.lo), K(tt.hi))
			if err != nil {
				t.Fatalf("range failed: %v", err)
			}
			var want []rid.RID
			for _, k := range tt.wantKeys {
				want = append(want, rid.New(uint32(k), 0))
			}
			if !slices.Equal(got, want) {
				t.Fatalf("range [%d,%d] = %v, want %v", tt.lo, tt.hi, got, want)
			}
		})
	}
	all, _ := tr.RangeSearch(K(-1000), K(1000))
	if len(all) != tr.Len() {
		t.Fatalf("full range returned %d of %d", len(all), tr.Len())
	}
}

func TestIteratorInvalidation(t *testing.T) {
	tr := newTree(t, 3)
	for i := int64(1); i <= 5; i++ {
		_ = tr.Insert(K(i), rid.New(1, uint16(i)))
	}
	it := tr.Scan()
	if !it.Next() || !value.Equal(it.Key(), K(1)) {
		t.Fatalf("first key = %v", it.Key())
	}
	_ = tr.Insert(K(6), rid.New(1, 6))
	if it.Next() {
		t.Fatal("Next() = true after mutation")
	}
	if !errors.Is(it.Error(), ErrIteratorInvalidated) {
		t.Fatalf("Error() = %v", it.Error())
	}

	rit, err := tr.Range(K(2), K(4))
	if err != nil {
		t.Fatalf("range failed: %v", err)
	}
	var keys []int64
	for rit.Next() {
		keys = append(keys, rit.Key().Int())
	}
	if err := rit.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if !slices.Equal(keys, []int64{2, 3, 4}) {
		t.Fatalf("range keys = %v", keys)
	}
}

func TestCheckDetectsCorruption(t *testing.T) {
	build := func() *Tree {
		tr := newTree(t, 3)
		for i := int64(1); i <= 10; i++ {
			_ = tr.Insert(K(i), scenarioRID(i))
		}
		return tr
	}

	tr := build()
	first := tr.leftmostLeaf()
	tr.node(first).leaf.keys[0] = K(1000)
	if err := tr.Check(); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("out-of-range key: expected ErrInvariantViolation, got %v", err)
	}

	tr = build()
	second := tr.node(tr.leftmostLeaf()).leaf.next
	tr.node(second).leaf.prev = nilNode
	if tr.Validate() {
		t.Fatal("broken prev link passed validation")
	}

	tr = build()
	tr.size++
	if tr.Validate() {
		t.Fatal("wrong size passed validation")
	}

	tr = build()
	root := tr.node(tr.root)
	tr.node(root.internal.children[0]).parent = nilNode
	if tr.Validate() {
		t.Fatal("wrong parent handle passed validation")
	}
}

func TestStructuralEventsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tr := newTree(t, 3, WithLogger(zap.New(core)))
	for i := int64(1); i <= 10; i++ {
		_ = tr.Insert(K(i), scenarioRID(i))
	}
	for i := int64(1); i <= 10; i++ {
		tr.Delete(K(i))
	}
	for _, msg := range []string{"leaf split", "internal split", "root split", "merge", "root collapse"} {
		if logs.FilterMessage(msg).Len() == 0 {
			t.Fatalf("no %q event logged", msg)
		}
	}
}

func TestExportDOT(t *testing.T) {
	tr := newTree(t, 3)
	for _, n := range []string{"Alice", "Bob", "Charlie", "<tag>"} {
		_ = tr.Insert(S(n), rid.New(1, 0))
	}
	var b bytes.Buffer
	if err := tr.ExportDOT(&b); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	out := b.String()
	for _, want := range []string{"digraph BPlusTree {", "(LEAF)", "(INTERNAL)", "style=dashed", "&lt;tag&gt;"} {
		if !strings.Contains(out, want) {
			t.Fatalf("DOT output missing %q:\n%s", want, out)
		}
	}
}
