package pager

import (
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestReplacerOrder(t *testing.T) {
	r := NewLRUReplacer()
	for _, id := range []uint64{1, 2, 3, 4} {
		r.Unpin(id)
	}
	r.Pin(1)
	r.Unpin(2) // 2 becomes most recent
	if r.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", r.Size())
	}
	var got []uint64
	for {
		id, ok := r.Victim()
		if !ok {
			break
		}
		got = append(got, id)
	}
	want := []uint64{3, 4, 2}
	if len(got) != len(want) {
		t.Fatalf("victims = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("victims = %v, want %v", got, want)
		}
	}
}

func TestWriteBackAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.pg")
	p, err := Open(path, 2)
	if err != nil {
		t.Fatalf("failed to open pager: %v", err)
	}
	var ids []uint64
	for i := 0; i < 5; i++ {
		id, err := p.Allocate()
		if err != nil {
			t.Fatalf("allocate failed: %v", err)
		}
		pg, err := p.Read(id)
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		pg[0] = byte(10 + i)
		if err := p.Write(id, pg); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		ids = append(ids, id)
	}
	s := p.Stats()
	if s.Evictions == 0 || s.Size > 2 {
		t.Fatalf("expected evictions with a 2-page cache, got %+v", s)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	p, err = Open(path, 4)
	if err != nil {
		t.Fatalf("failed to reopen pager: %v", err)
	}
	defer p.Close()
	if p.PageCount() != 6 {
		t.Fatalf("PageCount() = %d, want 6", p.PageCount())
	}
	for i, id := range ids {
		pg, err := p.Read(id)
		if err != nil {
			t.Fatalf("read %d failed: %v", id, err)
		}
		if pg[0] != byte(10+i) {
			t.Fatalf("page %d byte 0 = %d, want %d", id, pg[0], 10+i)
		}
	}
}

func TestPinnedPagesAreNotEvicted(t *testing.T) {
	p, err := Open(filepath.Join(t.TempDir(), "pin.pg"), 1)
	if err != nil {
		t.Fatalf("failed to open pager: %v", err)
	}
	defer p.Close()
	a, _ := p.Allocate()
	b, _ := p.Allocate()
	if _, err := p.Fetch(a); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if _, err := p.Fetch(b); !errors.Is(err, ErrNoFreeFrame) {
		t.Fatalf("expected ErrNoFreeFrame, got %v", err)
	}
	p.Unpin(a, false)
	if _, err := p.Read(b); err != nil {
		t.Fatalf("read after unpin failed: %v", err)
	}
	if _, err := p.Read(99); !errors.Is(err, ErrPageRange) {
		t.Fatalf("expected ErrPageRange, got %v", err)
	}
}
