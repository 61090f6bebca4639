package bplustree

import (
	"github.com/btree-query-bench/ridx/index/value"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Validate reports whether every structural invariant holds.
func (t *Tree) Validate() bool {
	if err := t.Check(); err != nil {
		t.log.Debug("validation failed", zap.Error(err))
		return false
	}
	return true
}

// Check walks the whole tree and returns the first broken invariant as an
// error matching ErrInvariantViolation, or nil. It never modifies the tree.
func (t *Tree) Check() error {
	c := checker{t: t, seen: make(map[nodeID]bool), leafDepth: -1}
	root := t.arena.lookup(t.root)
	if root == nil {
		return violation("root handle %d is dangling", t.root)
	}
	if root.parent != nilNode {
		return violation("root %d has parent %d", t.root, root.parent)
	}
	if root.kind == kindInternal && len(root.internal.keys) == 0 {
		return violation("internal root %d has no keys", t.root)
	}
	if err := c.walk(t.root, nilNode, nil, nil, 0); err != nil {
		return err
	}
	if err := c.checkChain(); err != nil {
		return err
	}
	if c.pairs != t.size {
		return violation("tree holds %d pairs, size says %d", c.pairs, t.size)
	}
	if len(c.seen) != t.arena.live {
		return violation("%d nodes reachable, %d allocated", len(c.seen), t.arena.live)
	}
	return nil
}

func violation(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvariantViolation)
}

type checker struct {
	t         *Tree
	seen      map[nodeID]bool
	leaves    []nodeID // in-order, as reached by the recursive walk
	leafDepth int
	pairs     int
}

// walk checks the subtree at id against the half-open key range [lo, hi);
// a nil bound is unbounded.
func (c *checker) walk(id, parent nodeID, lo, hi *value.Value, depth int) error {
	t := c.t
	n := t.arena.lookup(id)
	if n == nil {
		return violation("node %d is dangling", id)
	}
	if c.seen[id] {
		return violation("node %d reached twice", id)
	}
	c.seen[id] = true
	if n.parent != parent {
		return violation("node %d has parent %d, expected %d", id, n.parent, parent)
	}

	keys := n.keys()
	if len(keys) > t.maxKeys() {
		return violation("node %d holds %d keys, max %d", id, len(keys), t.maxKeys())
	}
	if id != t.root && len(keys) < t.minKeys() {
		return violation("node %d holds %d keys, min %d", id, len(keys), t.minKeys())
	}
	for i, k := range keys {
		if k.Kind() != t.kind {
			return violation("node %d key %d has kind %s in %s index", id, i, k.Kind(), t.kind)
		}
		if i > 0 && t.compare(keys[i-1], k) >= 0 {
			return violation("node %d keys not strictly increasing at %d", id, i)
		}
	}
	if len(keys) > 0 {
		if lo != nil && t.compare(keys[0], *lo) < 0 {
			return violation("node %d key %s below lower bound %s", id, keys[0], *lo)
		}
		if hi != nil && t.compare(keys[len(keys)-1], *hi) >= 0 {
			return violation("node %d key %s not below upper bound %s", id, keys[len(keys)-1], *hi)
		}
	}

	switch n.kind {
	case kindLeaf:
		if len(n.leaf.rids) != len(keys) {
			return violation("leaf %d has %d keys but %d rids", id, len(keys), len(n.leaf.rids))
		}
		if c.leafDepth < 0 {
			c.leafDepth = depth
		} else if c.leafDepth != depth {
			return violation("leaf %d at depth %d, others at %d", id, depth, c.leafDepth)
		}
		c.leaves = append(c.leaves, id)
		c.pairs += len(keys)
		return nil
	case kindInternal:
		children := n.internal.children
		if len(children) != len(keys)+1 {
			return violation("internal %d has %d keys but %d children", id, len(keys), len(children))
		}
		for i, child := range children {
			clo, chi := lo, hi
			if i > 0 {
				clo = &keys[i-1]
			}
			if i < len(keys) {
				chi = &keys[i]
			}
			if err := c.walk(child, id, clo, chi, depth+1); err != nil {
				return err
			}
		}
		return nil
	default:
		return violation("node %d has unknown kind %d", id, n.kind)
	}
}

// checkChain follows next links from the leftmost leaf and requires them to
// visit exactly the leaves found by walk, in the same order, with strictly
// increasing keys and symmetric prev links.
func (c *checker) checkChain() error {
	t := c.t
	prev := nilNode
	var last *value.Value
	id := c.leaves[0]
	for i := 0; id != nilNode; i++ {
		if i >= len(c.leaves) {
			return violation("leaf chain longer than the %d leaves in the tree", len(c.leaves))
		}
		if id != c.leaves[i] {
			return violation("leaf chain position %d is node %d, tree order has %d", i, id, c.leaves[i])
		}
		lf := t.node(id).leaf
		if lf.prev != prev {
			return violation("leaf %d prev is %d, expected %d", id, lf.prev, prev)
		}
		for j := range lf.keys {
			if last != nil && t.compare(*last, lf.keys[j]) >= 0 {
				return violation("leaf chain not strictly increasing at leaf %d", id)
			}
			last = &lf.keys[j]
		}
		prev, id = id, lf.next
	}
	if prev != c.leaves[len(c.leaves)-1] {
		return violation("leaf chain ends at %d, tree order ends at %d", prev, c.leaves[len(c.leaves)-1])
	}
	return nil
}
