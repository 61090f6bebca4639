package heap

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/btree-query-bench/ridx/index/rid"
	"github.com/cockroachdb/errors"
)

func openHeap(t *testing.T, path string) *File {
	t.Helper()
	f, err := Open(path, 4)
	if err != nil {
		t.Fatalf("failed to open heap: %v", err)
	}
	return f
}

func TestInsertGetDelete(t *testing.T) {
	f := openHeap(t, filepath.Join(t.TempDir(), "t.heap"))
	defer f.Close()

	var rids []rid.RID
	for i := 0; i < 500; i++ {
		r, err := f.Insert([]byte(fmt.Sprintf("record-%03d", i)))
		if err != nil {
			t.Fatalf("insert %d failed: %v", i, err)
		}
		rids = append(rids, r)
	}
	if rids[0].PageNum != 1 || rids[0].SlotNum != 0 {
		t.Fatalf("first rid = %v, want (1,0)", rids[0])
	}
	if rids[len(rids)-1].PageNum == 1 {
		t.Fatal("expected records to spill onto later pages")
	}
	for i, r := range rids {
		got, err := f.Get(r)
		if err != nil {
			t.Fatalf("get %v failed: %v", r, err)
		}
		if want := fmt.Sprintf("record-%03d", i); string(got) != want {
			t.Fatalf("get %v = %q, want %q", r, got, want)
		}
	}

	if err := f.Delete(rids[10]); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := f.Get(rids[10]); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	if err := f.Delete(rids[10]); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("double delete: expected ErrRecordNotFound, got %v", err)
	}
	if _, err := f.Get(rid.New(9999, 0)); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound for unknown page, got %v", err)
	}
	if f.Len() != 499 {
		t.Fatalf("Len() = %d, want 499", f.Len())
	}
}

func TestTooLarge(t *testing.T) {
	f := openHeap(t, filepath.Join(t.TempDir(), "big.heap"))
	defer f.Close()
	if _, err := f.Insert(make([]byte, MaxRecordSize+1)); !errors.Is(err, ErrRecordTooLarge) {
		t.Fatalf("expected ErrRecordTooLarge, got %v", err)
	}
	if _, err := f.Insert(make([]byte, MaxRecordSize)); err != nil {
		t.Fatalf("max-size insert failed: %v", err)
	}
}

func TestScanAfterReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.heap")
	f := openHeap(t, path)
	payload := bytes.Repeat([]byte("x"), 300)
	var deleted rid.RID
	for i := 0; i < 40; i++ {
		r, err := f.Insert(payload)
		if err != nil {
			t.Fatalf("insert failed: %v", err)
		}
		if i == 5 {
			deleted = r
		}
	}
	_ = f.Delete(deleted)
	if err := f.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	f = openHeap(t, path)
	defer f.Close()
	if f.Len() != 39 {
		t.Fatalf("Len() after reopen = %d, want 39", f.Len())
	}
	count := 0
	var prev rid.RID
	err := f.Scan(func(r rid.RID, rec []byte) error {
		if r == deleted {
			t.Fatalf("scan returned deleted rid %v", r)
		}
		if count > 0 && (r.PageNum < prev.PageNum || (r.PageNum == prev.PageNum && r.SlotNum <= prev.SlotNum)) {
			t.Fatalf("scan out of order: %v after %v", r, prev)
		}
		if !bytes.Equal(rec, payload) {
			t.Fatalf("record %v corrupted", r)
		}
		prev = r
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if count != 39 {
		t.Fatalf("scanned %d records, want 39", count)
	}
	r, err := f.Insert([]byte("after"))
	if err != nil {
		t.Fatalf("insert after reopen failed: %v", err)
	}
	if got, _ := f.Get(r); string(got) != "after" {
		t.Fatalf("get after reopen = %q", got)
	}
}
