// Package indexmgr keeps the B+ tree indexes of a database, one per indexed
// column, named "table.column".
package indexmgr

import (
	"sort"

	"github.com/btree-query-bench/ridx/index/bplustree"
	"github.com/btree-query-bench/ridx/index/rid"
	"github.com/btree-query-bench/ridx/index/value"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// DefaultDegree is used when CreateIndex is given a degree <= 0.
const DefaultDegree = 4

var (
	ErrIndexExists = errors.New("indexmgr: index already exists")
	ErrNoSuchIndex = errors.New("indexmgr: no such index")
)

// RecordSource yields every stored record with its RID. heap.File is one.
type RecordSource interface {
	Scan(fn func(r rid.RID, rec []byte) error) error
}

// KeyFunc extracts the indexed column from a record.
type KeyFunc func(rec []byte) (value.Value, error)

// Manager is not safe for concurrent use.
type Manager struct {
	indexes map[string]*bplustree.Tree
	log     *zap.Logger
}

func New(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{indexes: make(map[string]*bplustree.Tree), log: log}
}

// Name is the registry key of an index.
func Name(table, column string) string { return table + "." + column }

func (m *Manager) CreateIndex(table, column string, degree int) (*bplustree.Tree, error) {
	name := Name(table, column)
	if _, ok := m.indexes[name]; ok {
		return nil, errors.Wrapf(ErrIndexExists, "%s", name)
	}
	t, err := m.newTree(name, degree)
	if err != nil {
		return nil, err
	}
	m.indexes[name] = t
	m.log.Info("index created", zap.String("index", name), zap.Int("degree", t.Degree()))
	return t, nil
}

func (m *Manager) newTree(name string, degree int) (*bplustree.Tree, error) {
	if degree <= 0 {
		degree = DefaultDegree
	}
	t, err := bplustree.New(degree, bplustree.WithLogger(m.log.With(zap.String("index", name))))
	if err != nil {
		return nil, errors.Wrapf(err, "indexmgr: create %s", name)
	}
	return t, nil
}

// Attach registers an existing tree, for example one loaded from a snapshot.
func (m *Manager) Attach(table, column string, t *bplustree.Tree) error {
	name := Name(table, column)
	if _, ok := m.indexes[name]; ok {
		return errors.Wrapf(ErrIndexExists, "%s", name)
	}
	m.indexes[name] = t
	m.log.Info("index attached", zap.String("index", name), zap.Int("entries", t.Len()))
	return nil
}

func (m *Manager) DropIndex(table, column string) error {
	name := Name(table, column)
	if _, ok := m.indexes[name]; !ok {
		return errors.Wrapf(ErrNoSuchIndex, "%s", name)
	}
	delete(m.indexes, name)
	m.log.Info("index dropped", zap.String("index", name))
	return nil
}

func (m *Manager) HasIndex(table, column string) bool {
	_, ok := m.indexes[Name(table, column)]
	return ok
}

func (m *Manager) Index(table, column string) (*bplustree.Tree, bool) {
	t, ok := m.indexes[Name(table, column)]
	return t, ok
}

// Names lists every index name in sorted order.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.indexes))
	for n := range m.indexes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Each calls fn for every index in name order.
func (m *Manager) Each(fn func(name string, t *bplustree.Tree)) {
	for _, n := range m.Names() {
		fn(n, m.indexes[n])
	}
}

func (m *Manager) get(table, column string) (*bplustree.Tree, error) {
	t, ok := m.indexes[Name(table, column)]
	if !ok {
		return nil, errors.Wrapf(ErrNoSuchIndex, "%s", Name(table, column))
	}
	return t, nil
}

func (m *Manager) Insert(table, column string, key value.Value, r rid.RID) error {
	t, err := m.get(table, column)
	if err != nil {
		return err
	}
	return t.Insert(key, r)
}

func (m *Manager) Delete(table, column string, key value.Value) (bool, error) {
	t, err := m.get(table, column)
	if err != nil {
		return false, err
	}
	return t.Delete(key), nil
}

func (m *Manager) Search(table, column string, key value.Value) ([]rid.RID, error) {
	t, err := m.get(table, column)
	if err != nil {
		return nil, err
	}
	return t.Search(key), nil
}

func (m *Manager) RangeSearch(table, column string, start, end value.Value) ([]rid.RID, error) {
	t, err := m.get(table, column)
	if err != nil {
		return nil, err
	}
	return t.RangeSearch(start, end)
}

// Rebuild replaces the index on table.column with one built from every
// record in src. The index is created if missing. On error the old index is
// kept. It returns the number of indexed records.
func (m *Manager) Rebuild(table, column string, src RecordSource, extract KeyFunc) (int, error) {
	name := Name(table, column)
	degree := DefaultDegree
	if old, ok := m.indexes[name]; ok {
		degree = old.Degree()
	}
	t, err := m.newTree(name, degree)
	if err != nil {
		return 0, err
	}
	err = src.Scan(func(r rid.RID, rec []byte) error {
		k, err := extract(rec)
		if err != nil {
			return errors.Wrapf(err, "indexmgr: rebuild %s: record %s", name, r)
		}
		return errors.Wrapf(t.Insert(k, r), "indexmgr: rebuild %s: record %s", name, r)
	})
	if err != nil {
		return 0, err
	}
	m.indexes[name] = t
	m.log.Info("index rebuilt", zap.String("index", name), zap.Int("entries", t.Len()), zap.Int("height", t.Height()))
	return t.Len(), nil
}
