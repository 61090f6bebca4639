package pager

// ─── LRU Replacer ─────────────────────────────────────────────────────────────

// LRUReplacer tracks the page frames that may be evicted. A pinned frame is
// not tracked; unpinning makes it the most recently used candidate and
// Victim hands out the least recently used one.
type LRUReplacer struct {
	items map[uint64]*lruEntry
	head  *lruEntry // most recent
	tail  *lruEntry // least recent
}

type lruEntry struct {
	id   uint64
	prev *lruEntry
	next *lruEntry
}

func NewLRUReplacer() *LRUReplacer {
	return &LRUReplacer{items: make(map[uint64]*lruEntry)}
}

// Victim removes and returns the least recently unpinned frame.
func (r *LRUReplacer) Victim() (uint64, bool) {
	e := r.tail
	if e == nil {
		return 0, false
	}
	r.unlink(e)
	delete(r.items, e.id)
	return e.id, true
}

// Pin stops id from being a victim candidate.
func (r *LRUReplacer) Pin(id uint64) {
	if e, ok := r.items[id]; ok {
		r.unlink(e)
		delete(r.items, id)
	}
}

// Unpin makes id the most recently used candidate.
func (r *LRUReplacer) Unpin(id uint64) {
	if e, ok := r.items[id]; ok {
		r.unlink(e)
		r.pushFront(e)
		return
	}
	e := &lruEntry{id: id}
	r.items[id] = e
	r.pushFront(e)
}

// Size is the number of frames that could be evicted.
func (r *LRUReplacer) Size() int { return len(r.items) }

func (r *LRUReplacer) pushFront(e *lruEntry) {
	e.prev = nil
	e.next = r.head
	if r.head != nil {
		r.head.prev = e
	}
	r.head = e
	if r.tail == nil {
		r.tail = e
	}
}

func (r *LRUReplacer) unlink(e *lruEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		r.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		r.tail = e.prev
	}
	e.prev, e.next = nil, nil
}
