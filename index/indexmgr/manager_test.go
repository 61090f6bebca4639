package indexmgr

import (
	"bytes"
	"path/filepath"
	"slices"
	"testing"

	"github.com/btree-query-bench/ridx/dbms/heap"
	"github.com/btree-query-bench/ridx/index/rid"
	"github.com/btree-query-bench/ridx/index/value"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap/zaptest"
)

func TestLifecycle(t *testing.T) {
	m := New(zaptest.NewLogger(t))
	tr, err := m.CreateIndex("users", "id", 0)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if tr.Degree() != DefaultDegree {
		t.Fatalf("degree = %d, want %d", tr.Degree(), DefaultDegree)
	}
	if _, err := m.CreateIndex("users", "id", 8); !errors.Is(err, ErrIndexExists) {
		t.Fatalf("expected ErrIndexExists, got %v", err)
	}
	if _, err := m.CreateIndex("users", "age", 2); err == nil {
		t.Fatal("expected error for degree 2")
	}
	if !m.HasIndex("users", "id") || m.HasIndex("users", "name") {
		t.Fatal("HasIndex wrong")
	}

	for i := int64(1); i <= 20; i++ {
		if err := m.Insert("users", "id", value.NewInt(i), rid.New(1, uint16(i))); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}
	got, err := m.Search("users", "id", value.NewInt(7))
	if err != nil || !slices.Equal(got, []rid.RID{rid.New(1, 7)}) {
		t.Fatalf("search = %v, %v", got, err)
	}
	rng, err := m.RangeSearch("users", "id", value.NewInt(18), value.NewInt(30))
	if err != nil || len(rng) != 3 {
		t.Fatalf("range = %v, %v", rng, err)
	}
	if ok, err := m.Delete("users", "id", value.NewInt(7)); !ok || err != nil {
		t.Fatalf("delete = %v, %v", ok, err)
	}

	if _, err := m.Search("orders", "id", value.NewInt(1)); !errors.Is(err, ErrNoSuchIndex) {
		t.Fatalf("expected ErrNoSuchIndex, got %v", err)
	}
	_, _ = m.CreateIndex("orders", "id", 5)
	if names := m.Names(); !slices.Equal(names, []string{"orders.id", "users.id"}) {
		t.Fatalf("Names() = %v", names)
	}
	if err := m.DropIndex("users", "id"); err != nil {
		t.Fatalf("drop failed: %v", err)
	}
	if err := m.DropIndex("users", "id"); !errors.Is(err, ErrNoSuchIndex) {
		t.Fatalf("expected ErrNoSuchIndex, got %v", err)
	}
}

func keyBeforeBar(rec []byte) (value.Value, error) {
	i := bytes.IndexByte(rec, '|')
	if i < 0 {
		return value.Value{}, errors.New("no separator")
	}
	return value.NewString(string(rec[:i])), nil
}

func TestRebuildFromHeap(t *testing.T) {
	h, err := heap.Open(filepath.Join(t.TempDir(), "users.heap"), 8)
	if err != nil {
		t.Fatalf("failed to open heap: %v", err)
	}
	defer h.Close()

	want := map[string]rid.RID{}
	for _, name := range []string{"Alice", "Bob", "Charlie", "David", "Eve"} {
		r, err := h.Insert([]byte(name + "|payload"))
		if err != nil {
			t.Fatalf("heap insert failed: %v", err)
		}
		want[name] = r
	}
	_ = h.Delete(want["Bob"])
	delete(want, "Bob")

	m := New(nil)
	_, _ = m.CreateIndex("users", "name", 3)
	n, err := m.Rebuild("users", "name", h, keyBeforeBar)
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if n != 4 {
		t.Fatalf("rebuilt %d entries, want 4", n)
	}
	tr, _ := m.Index("users", "name")
	if tr.Degree() != 3 || !tr.Validate() {
		t.Fatalf("rebuilt tree degree=%d valid=%v", tr.Degree(), tr.Validate())
	}
	for name, r := range want {
		got, ok := tr.SearchSingle(value.NewString(name))
		if !ok || got != r {
			t.Fatalf("SearchSingle(%s) = %v, %v; want %v", name, got, ok, r)
		}
	}

	// A bad record leaves the old index in place.
	_, _ = h.Insert([]byte("no separator here"))
	if _, err := m.Rebuild("users", "name", h, keyBeforeBar); err == nil {
		t.Fatal("expected rebuild error")
	}
	if cur, _ := m.Index("users", "name"); cur != tr {
		t.Fatal("failed rebuild replaced the index")
	}
}
