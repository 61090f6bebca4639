package pager

import (
	"encoding/binary"
	"os"

	"github.com/cockroachdb/errors"
)

const (
	PageSize    = 4096 // 4 KB, the OS page size
	InvalidPage = ^uint64(0)
)

var (
	ErrNoFreeFrame = errors.New("pager: every cached page is pinned")
	ErrPageRange   = errors.New("pager: page id out of range")
)

// Page is a raw 4 KB block read from or written to disk.
type Page [PageSize]byte

// CacheStats counts page cache traffic since Open.
type CacheStats struct {
	Hits       int64
	Misses     int64
	Evictions  int64
	WriteBacks int64
	Size       int
}

type frame struct {
	page  *Page
	dirty bool
	pins  int
}

// Pager manages a file of fixed-size pages behind a write-back cache.
// Page 0 is the header; its first 8 bytes hold the page count.
type Pager struct {
	file      *os.File
	capacity  int
	frames    map[uint64]*frame
	replacer  *LRUReplacer
	pageCount uint64 // total number of pages ever allocated
	stats     CacheStats
}

// Open opens (or creates) a pager backed by the given file.
// cacheSize is the number of pages to hold in memory.
func Open(path string, cacheSize int) (*Pager, error) {
	if cacheSize < 1 {
		cacheSize = 1
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "pager: open")
	}

	p := &Pager{
		file:     f,
		capacity: cacheSize,
		frames:   make(map[uint64]*frame, cacheSize),
		replacer: NewLRUReplacer(),
	}

	// If the file is brand new, pageCount starts at 1 (page 0 is the header).
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "pager: stat")
	}
	if info.Size() == 0 {
		p.pageCount = 1
		if err := p.writeHeader(); err != nil {
			f.Close()
			return nil, err
		}
	} else {
		pg, err := p.readPageFromDisk(0)
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, "pager: read header")
		}
		p.pageCount = binary.LittleEndian.Uint64(pg[:8])
	}

	return p, nil
}

// Allocate reserves a new zeroed page and returns its page ID. The page is
// extended on disk immediately; the header is updated on Flush.
func (p *Pager) Allocate() (uint64, error) {
	id := p.pageCount
	var blank Page
	if err := p.writePageToDisk(id, &blank); err != nil {
		return 0, err
	}
	p.pageCount++
	return id, nil
}

// Fetch returns the page with the given ID and pins it in the cache until
// the matching Unpin.
func (p *Pager) Fetch(id uint64) (*Page, error) {
	if id == 0 || id >= p.pageCount {
		return nil, errors.Wrapf(ErrPageRange, "page %d of %d", id, p.pageCount)
	}
	fr, ok := p.frames[id]
	if ok {
		p.stats.Hits++
	} else {
		p.stats.Misses++
		if err := p.makeRoom(); err != nil {
			return nil, err
		}
		pg, err := p.readPageFromDisk(id)
		if err != nil {
			return nil, err
		}
		fr = &frame{page: pg}
		p.frames[id] = fr
	}
	fr.pins++
	p.replacer.Pin(id)
	return fr.page, nil
}

// Unpin releases one pin on id. dirty marks the page for write-back.
func (p *Pager) Unpin(id uint64, dirty bool) {
	fr, ok := p.frames[id]
	if !ok || fr.pins == 0 {
		return
	}
	fr.dirty = fr.dirty || dirty
	fr.pins--
	if fr.pins == 0 {
		p.replacer.Unpin(id)
	}
}

// Read returns the page with the given ID without keeping it pinned. The
// pointer stays valid until the page is evicted.
func (p *Pager) Read(id uint64) (*Page, error) {
	pg, err := p.Fetch(id)
	if err != nil {
		return nil, err
	}
	p.Unpin(id, false)
	return pg, nil
}

// Write replaces the cached contents of a page and marks it dirty.
func (p *Pager) Write(id uint64, pg *Page) error {
	cur, err := p.Fetch(id)
	if err != nil {
		return err
	}
	if cur != pg {
		*cur = *pg
	}
	p.Unpin(id, true)
	return nil
}

// Flush writes every dirty page and the header, then syncs the file.
func (p *Pager) Flush() error {
	for id, fr := range p.frames {
		if !fr.dirty {
			continue
		}
		if err := p.writePageToDisk(id, fr.page); err != nil {
			return err
		}
		fr.dirty = false
		p.stats.WriteBacks++
	}
	if err := p.writeHeader(); err != nil {
		return err
	}
	return errors.Wrap(p.file.Sync(), "pager: sync")
}

// Close flushes and closes the underlying file.
func (p *Pager) Close() error {
	err := p.Flush()
	if cerr := p.file.Close(); err == nil && cerr != nil {
		err = errors.Wrap(cerr, "pager: close")
	}
	return err
}

// PageCount returns the total number of allocated pages.
func (p *Pager) PageCount() uint64 {
	return p.pageCount
}

func (p *Pager) Stats() CacheStats {
	s := p.stats
	s.Size = len(p.frames)
	return s
}

// --- internal helpers ---

func (p *Pager) makeRoom() error {
	if len(p.frames) < p.capacity {
		return nil
	}
	id, ok := p.replacer.Victim()
	if !ok {
		return ErrNoFreeFrame
	}
	fr := p.frames[id]
	if fr.dirty {
		if err := p.writePageToDisk(id, fr.page); err != nil {
			p.replacer.Unpin(id)
			return err
		}
		p.stats.WriteBacks++
	}
	delete(p.frames, id)
	p.stats.Evictions++
	return nil
}

func (p *Pager) offset(id uint64) int64 {
	return int64(id) * PageSize
}

func (p *Pager) readPageFromDisk(id uint64) (*Page, error) {
	pg := new(Page)
	_, err := p.file.ReadAt(pg[:], p.offset(id))
	if err != nil {
		return nil, errors.Wrapf(err, "pager: read page %d", id)
	}
	return pg, nil
}

func (p *Pager) writePageToDisk(id uint64, pg *Page) error {
	_, err := p.file.WriteAt(pg[:], p.offset(id))
	if err != nil {
		return errors.Wrapf(err, "pager: write page %d", id)
	}
	return nil
}

func (p *Pager) writeHeader() error {
	var hdr Page
	binary.LittleEndian.PutUint64(hdr[:8], p.pageCount)
	return p.writePageToDisk(0, &hdr)
}
