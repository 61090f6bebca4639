package bplustree

import (
	"slices"

	"github.com/btree-query-bench/ridx/index"
	"github.com/btree-query-bench/ridx/index/rid"
	"github.com/btree-query-bench/ridx/index/value"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

var _ index.Index = (*Tree)(nil)

// MinDegree is the smallest degree New accepts.
const MinDegree = 3

var (
	ErrInvalidDegree       = errors.New("bplustree: degree must be at least 3")
	ErrInvalidKey          = errors.New("bplustree: invalid key")
	ErrInvariantViolation  = errors.New("bplustree: invariant violation")
	ErrIteratorInvalidated = errors.New("bplustree: tree modified during iteration")
)

type Tree struct {
	degree int
	root   nodeID
	kind   value.Kind // KindInvalid until the first insert
	size   int

	arena   arena
	version uint64 // bumped on every mutation, checked by iterators
	stats   Stats
	log     *zap.Logger
}

type Option func(*Tree)

// WithLogger makes the tree report structural changes at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(t *Tree) {
		if l != nil {
			t.log = l
		}
	}
}

// WithKeyKind fixes the key kind up front instead of at the first insert.
func WithKeyKind(k value.Kind) Option {
	return func(t *Tree) { t.kind = k }
}

// New returns an empty tree whose root is a single empty leaf.
func New(degree int, opts ...Option) (*Tree, error) {
	if degree < MinDegree {
		return nil, errors.Wrapf(ErrInvalidDegree, "got %d", degree)
	}
	t := &Tree{degree: degree, log: zap.NewNop()}
	for _, opt := range opts {
		opt(t)
	}
	t.root = t.arena.alloc(newLeaf(nilNode))
	return t, nil
}

func (t *Tree) maxKeys() int { return t.degree - 1 }
func (t *Tree) minKeys() int { return (t.degree - 1) / 2 }

func (t *Tree) Degree() int          { return t.degree }
func (t *Tree) Len() int             { return t.size }
func (t *Tree) KeyKind() value.Kind  { return t.kind }
func (t *Tree) NodeCount() int       { return t.arena.live }
func (t *Tree) Stats() Stats         { return t.stats }
func (t *Tree) Close() error         { return nil }
func (t *Tree) node(id nodeID) *node { return t.arena.get(id) }

// Height is the number of levels, 1 for a lone leaf.
func (t *Tree) Height() int {
	h := 1
	for n := t.node(t.root); n.kind == kindInternal; n = t.node(n.internal.children[0]) {
		h++
	}
	return h
}

// compare is only called once both kinds are known to match the tree's.
func (t *Tree) compare(a, b value.Value) int {
	c, err := value.Compare(a, b)
	if err != nil {
		panic(errors.AssertionFailedf("bplustree: %v", err))
	}
	return c
}

// accepts reports whether key can be present in the tree at all.
func (t *Tree) accepts(key value.Value) bool {
	return key.IsValid() && key.Kind() == t.kind
}

// ─── Search ───────────────────────────────────────────────────────────────────

// childSlot is the number of separators <= key, i.e. the child to descend into.
func (t *Tree) childSlot(keys []value.Value, key value.Value) int {
	i, found := slices.BinarySearchFunc(keys, key, t.compare)
	if found {
		i++
	}
	return i
}

func (t *Tree) findLeaf(key value.Value) nodeID {
	id := t.root
	for {
		n := t.node(id)
		if n.kind == kindLeaf {
			return id
		}
		id = n.internal.children[t.childSlot(n.internal.keys, key)]
	}
}

func (t *Tree) leftmostLeaf() nodeID {
	id := t.root
	for n := t.node(id); n.kind == kindInternal; n = t.node(id) {
		id = n.internal.children[0]
	}
	return id
}

// indexOfChild returns the slot of child in parent's children.
func (t *Tree) indexOfChild(parent *node, child nodeID) int {
	i := slices.Index(parent.internal.children, child)
	if i < 0 {
		panic(errors.AssertionFailedf("bplustree: node %d missing from its parent", child))
	}
	return i
}

// Search returns every RID stored under key. Keys are unique, so the result
// has at most one element; equal keys spilling into the next leaf are still
// followed.
func (t *Tree) Search(key value.Value) []rid.RID {
	if !t.accepts(key) {
		return nil
	}
	var out []rid.RID
	id := t.findLeaf(key)
	i, _ := slices.BinarySearchFunc(t.node(id).leaf.keys, key, t.compare)
	for id != nilNode {
		lf := t.node(id).leaf
		for ; i < len(lf.keys); i++ {
			if t.compare(lf.keys[i], key) != 0 {
				return out
			}
			out = append(out, lf.rids[i])
		}
		id, i = lf.next, 0
	}
	return out
}

// SearchSingle returns the first RID stored under key.
func (t *Tree) SearchSingle(key value.Value) (rid.RID, bool) {
	if !t.accepts(key) {
		return rid.RID{}, false
	}
	lf := t.node(t.findLeaf(key)).leaf
	i, found := slices.BinarySearchFunc(lf.keys, key, t.compare)
	if !found {
		return rid.RID{}, false
	}
	return lf.rids[i], true
}

// RangeSearch returns the RIDs of all keys k with start <= k <= end, in key
// order. start and end must be of the same kind; if start > end the result
// is empty.
func (t *Tree) RangeSearch(start, end value.Value) ([]rid.RID, error) {
	it, err := t.newRangeIter(start, end)
	if err != nil {
		return nil, err
	}
	var out []rid.RID
	for it.Next() {
		out = append(out, it.RID())
	}
	return out, it.Error()
}
