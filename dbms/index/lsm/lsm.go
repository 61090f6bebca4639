// Package lsm wraps Pebble (CockroachDB's LSM storage engine) behind the
// common Index interface so it can be benchmarked alongside the B+ tree and
// used as a persistent index.
package lsm

import (
	"encoding/binary"

	"github.com/btree-query-bench/ridx/index"
	"github.com/btree-query-bench/ridx/index/rid"
	"github.com/btree-query-bench/ridx/index/value"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"go.uber.org/zap"
)

var _ index.Index = (*LSM)(nil)

// metaKey holds the key kind and entry count. Encoded values never start
// with a zero byte, so it sorts before every data key.
var metaKey = []byte{0x00, 'm', 'e', 't', 'a'}

type Options struct {
	// InMemory keeps all files in a memory filesystem; dir is then only a name.
	InMemory bool
	Logger   *zap.Logger
}

type LSM struct {
	db    *pebble.DB
	kind  value.Kind
	count int
	err   error // first failure from a method that cannot return one
}

// Open opens (or creates) a Pebble database at the given directory path.
func Open(dir string, o Options) (*LSM, error) {
	opts := &pebble.Options{
		MemTableSize: 16 << 20,
		// Keep 2 memtables so one can be flushed while the other is active.
		MemTableStopWritesThreshold: 4,
		// L0 compaction trigger.
		L0CompactionThreshold: 4,
		L0StopWritesThreshold: 12,
	}
	if o.InMemory {
		opts.FS = vfs.NewMem()
	}
	if o.Logger != nil {
		opts.Logger = o.Logger.Sugar()
	}

	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, errors.Wrap(err, "lsm: open")
	}
	l := &LSM{db: db}
	if err := l.loadMeta(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// Close cleanly shuts down Pebble, flushing any in-memory state.
func (l *LSM) Close() error {
	return l.db.Close()
}

// Err returns the first storage error hit by Search or Delete.
func (l *LSM) Err() error { return l.err }

func (l *LSM) Len() int { return l.count }

func (l *LSM) setErr(err error) {
	if l.err == nil {
		l.err = err
	}
}

func (l *LSM) accepts(key value.Value) bool {
	return key.IsValid() && key.Kind() == l.kind
}

// Insert inserts or updates the RID for key.
func (l *LSM) Insert(key value.Value, r rid.RID) error {
	if !key.IsValid() {
		return errors.New("lsm: invalid key")
	}
	if l.kind != value.KindInvalid && key.Kind() != l.kind {
		return errors.Wrapf(value.ErrTypeMismatch, "lsm: insert %s key into %s index", key.Kind(), l.kind)
	}
	k := value.Encode(nil, key)
	exists, err := l.has(k)
	if err != nil {
		return err
	}

	b := l.db.NewBatch()
	defer b.Close()
	if err := b.Set(k, rid.Encode(nil, r), nil); err != nil {
		return errors.Wrap(err, "lsm: insert")
	}
	count := l.count
	if !exists {
		count++
	}
	if err := b.Set(metaKey, encodeMeta(key.Kind(), count), nil); err != nil {
		return errors.Wrap(err, "lsm: insert")
	}
	if err := b.Commit(pebble.NoSync); err != nil {
		return errors.Wrap(err, "lsm: insert")
	}
	l.kind, l.count = key.Kind(), count
	return nil
}

func (l *LSM) Search(key value.Value) []rid.RID {
	if r, ok := l.SearchSingle(key); ok {
		return []rid.RID{r}
	}
	return nil
}

// SearchSingle retrieves the RID for key.
func (l *LSM) SearchSingle(key value.Value) (rid.RID, bool) {
	if !l.accepts(key) {
		return rid.RID{}, false
	}
	val, closer, err := l.db.Get(value.Encode(nil, key))
	if err == pebble.ErrNotFound {
		return rid.RID{}, false
	}
	if err != nil {
		l.setErr(errors.Wrap(err, "lsm: get"))
		return rid.RID{}, false
	}
	// val is only valid until closer.Close().
	r, err := rid.Decode(val)
	closer.Close()
	if err != nil {
		l.setErr(errors.Wrap(err, "lsm: get"))
		return rid.RID{}, false
	}
	return r, true
}

// Delete removes the key from the store.
func (l *LSM) Delete(key value.Value) bool {
	if !l.accepts(key) {
		return false
	}
	k := value.Encode(nil, key)
	exists, err := l.has(k)
	if err != nil {
		l.setErr(err)
		return false
	}
	if !exists {
		return false
	}
	b := l.db.NewBatch()
	defer b.Close()
	if err := b.Delete(k, nil); err != nil {
		l.setErr(errors.Wrap(err, "lsm: delete"))
		return false
	}
	if err := b.Set(metaKey, encodeMeta(l.kind, l.count-1), nil); err != nil {
		l.setErr(errors.Wrap(err, "lsm: delete"))
		return false
	}
	if err := b.Commit(pebble.NoSync); err != nil {
		l.setErr(errors.Wrap(err, "lsm: delete"))
		return false
	}
	l.count--
	return true
}

func (l *LSM) RangeSearch(start, end value.Value) ([]rid.RID, error) {
	it, err := l.Range(start, end)
	if err != nil {
		return nil, err
	}
	return index.Collect(it)
}

// Range returns an iterator over all keys in [start, end] inclusive.
func (l *LSM) Range(start, end value.Value) (index.Iterator, error) {
	if !start.IsValid() || start.Kind() != end.Kind() {
		return nil, errors.Wrapf(value.ErrTypeMismatch, "lsm: range bounds %s and %s", start.Kind(), end.Kind())
	}
	if c, _ := value.Compare(start, end); !l.accepts(start) || c > 0 {
		return emptyIterator{}, nil
	}
	iterOpts := &pebble.IterOptions{
		LowerBound: value.Encode(nil, start),
		UpperBound: encodeKeyExclusive(end),
	}
	iter, err := l.db.NewIter(iterOpts)
	if err != nil {
		return nil, errors.Wrap(err, "lsm: range")
	}
	iter.First()
	return &rangeIterator{iter: iter, first: true}, nil
}

func (l *LSM) has(k []byte) (bool, error) {
	_, closer, err := l.db.Get(k)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "lsm: get")
	}
	closer.Close()
	return true, nil
}

func (l *LSM) loadMeta() error {
	val, closer, err := l.db.Get(metaKey)
	if err == pebble.ErrNotFound {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "lsm: read meta")
	}
	defer closer.Close()
	if len(val) < 1 {
		return errors.New("lsm: corrupt meta record")
	}
	n, sz := binary.Uvarint(val[1:])
	if sz <= 0 {
		return errors.New("lsm: corrupt meta record")
	}
	l.kind, l.count = value.Kind(val[0]), int(n)
	return nil
}

// ─── Key encoding ─────────────────────────────────────────────────────────────

func encodeMeta(kind value.Kind, count int) []byte {
	return binary.AppendUvarint([]byte{byte(kind)}, uint64(count))
}

// encodeKeyExclusive returns the exclusive upper bound for use with Pebble's
// UpperBound option (which is exclusive, unlike our interface which is
// inclusive). Appending a zero byte yields the smallest key above end.
func encodeKeyExclusive(end value.Value) []byte {
	return append(value.Encode(nil, end), 0x00)
}

// ─── Range Iterator ───────────────────────────────────────────────────────────

type rangeIterator struct {
	iter  *pebble.Iterator
	first bool
	key   value.Value
	rid   rid.RID
	err   error
}

func (it *rangeIterator) Next() bool {
	var valid bool
	if it.first {
		// iter.First() was already called in Range(); just check validity.
		it.first = false
		valid = it.iter.Valid()
	} else {
		valid = it.iter.Next()
	}
	if !valid {
		return false
	}
	k, err := value.Decode(it.iter.Key())
	if err != nil {
		it.err = errors.Wrap(err, "lsm: iterate")
		return false
	}
	r, err := rid.Decode(it.iter.Value())
	if err != nil {
		it.err = errors.Wrap(err, "lsm: iterate")
		return false
	}
	it.key, it.rid = k, r
	return true
}

func (it *rangeIterator) Key() value.Value { return it.key }
func (it *rangeIterator) RID() rid.RID     { return it.rid }

func (it *rangeIterator) Error() error {
	if it.err != nil {
		return it.err
	}
	return it.iter.Error()
}

func (it *rangeIterator) Close() error { return it.iter.Close() }

type emptyIterator struct{}

func (emptyIterator) Next() bool       { return false }
func (emptyIterator) Key() value.Value { return value.Value{} }
func (emptyIterator) RID() rid.RID     { return rid.RID{} }
func (emptyIterator) Error() error     { return nil }
func (emptyIterator) Close() error     { return nil }
