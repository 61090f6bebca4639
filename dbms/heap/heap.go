// Package heap stores variable-length records in slotted pages and hands out
// the RIDs that indexes point at.
package heap

import (
	"math"

	"github.com/btree-query-bench/ridx/dbms/pager"
	"github.com/btree-query-bench/ridx/index/rid"
	"github.com/cockroachdb/errors"
)

var (
	ErrRecordNotFound = errors.New("heap: record not found")
	ErrRecordTooLarge = errors.New("heap: record too large")
)

// File is a heap file. Records are appended to the last page and never move,
// so a RID is valid until the record is deleted.
type File struct {
	pg   *pager.Pager
	last uint64 // last data page, or pager.InvalidPage when empty
	live int
}

// Open opens (or creates) the heap file at path with a cache of cacheSize
// pages.
func Open(path string, cacheSize int) (*File, error) {
	pg, err := pager.Open(path, cacheSize)
	if err != nil {
		return nil, err
	}
	f := &File{pg: pg, last: pager.InvalidPage}
	if n := pg.PageCount(); n > 1 {
		f.last = n - 1
	}
	err = f.Scan(func(rid.RID, []byte) error {
		f.live++
		return nil
	})
	if err != nil {
		pg.Close()
		return nil, err
	}
	return f, nil
}

func (f *File) Close() error                 { return f.pg.Close() }
func (f *File) Flush() error                 { return f.pg.Flush() }
func (f *File) Len() int                     { return f.live }
func (f *File) CacheStats() pager.CacheStats { return f.pg.Stats() }

// Insert appends rec and returns its RID.
func (f *File) Insert(rec []byte) (rid.RID, error) {
	if len(rec) > MaxRecordSize {
		return rid.RID{}, errors.Wrapf(ErrRecordTooLarge, "%d bytes, max %d", len(rec), MaxRecordSize)
	}
	id := f.last
	var p *pager.Page
	if id != pager.InvalidPage {
		var err error
		if p, err = f.pg.Fetch(id); err != nil {
			return rid.RID{}, err
		}
		if freeSpace(p) < len(rec) || numSlots(p) >= math.MaxUint16 {
			f.pg.Unpin(id, false)
			p = nil
		}
	}
	if p == nil {
		var err error
		if id, err = f.pg.Allocate(); err != nil {
			return rid.RID{}, err
		}
		if id > math.MaxUint32 {
			return rid.RID{}, errors.Newf("heap: page %d exceeds RID range", id)
		}
		if p, err = f.pg.Fetch(id); err != nil {
			return rid.RID{}, err
		}
		initPage(p)
		f.last = id
	}
	slotNum := appendRecord(p, rec)
	f.pg.Unpin(id, true)
	f.live++
	return rid.New(uint32(id), uint16(slotNum)), nil
}

// Get returns a copy of the record at r.
func (f *File) Get(r rid.RID) ([]byte, error) {
	var out []byte
	err := f.withSlot(r, false, func(p *pager.Page, off, length int) {
		out = append([]byte(nil), p[off:off+length]...)
	})
	return out, err
}

// Delete tombstones the record at r.
func (f *File) Delete(r rid.RID) error {
	err := f.withSlot(r, true, func(p *pager.Page, off, _ int) {
		setSlot(p, int(r.SlotNum), off, tombstone)
	})
	if err == nil {
		f.live--
	}
	return err
}

// Scan calls fn for every live record in RID order. The record slice is only
// valid during the call. A non-nil error from fn stops the scan and is
// returned.
func (f *File) Scan(fn func(r rid.RID, rec []byte) error) error {
	for id := uint64(1); id < f.pg.PageCount(); id++ {
		p, err := f.pg.Fetch(id)
		if err != nil {
			return err
		}
		for s := 0; s < numSlots(p); s++ {
			off, length := slot(p, s)
			if length == tombstone {
				continue
			}
			if err := fn(rid.New(uint32(id), uint16(s)), p[off:off+length]); err != nil {
				f.pg.Unpin(id, false)
				return err
			}
		}
		f.pg.Unpin(id, false)
	}
	return nil
}

func (f *File) withSlot(r rid.RID, dirty bool, fn func(p *pager.Page, off, length int)) error {
	id := uint64(r.PageNum)
	if id == 0 || id >= f.pg.PageCount() {
		return errors.Wrapf(ErrRecordNotFound, "rid %s", r)
	}
	p, err := f.pg.Fetch(id)
	if err != nil {
		return err
	}
	if int(r.SlotNum) >= numSlots(p) {
		f.pg.Unpin(id, false)
		return errors.Wrapf(ErrRecordNotFound, "rid %s", r)
	}
	off, length := slot(p, int(r.SlotNum))
	if length == tombstone {
		f.pg.Unpin(id, false)
		return errors.Wrapf(ErrRecordNotFound, "rid %s", r)
	}
	fn(p, off, length)
	f.pg.Unpin(id, dirty)
	return nil
}
