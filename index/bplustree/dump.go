package bplustree

import (
	"fmt"
	"io"
	"strings"

	"github.com/btree-query-bench/ridx/index/value"
)

// Levels renders each level of the tree left to right, one string per node,
// e.g. [[ "[5]" ] [ "[3]", "[7 9]" ]].
func (t *Tree) Levels() [][]string {
	var out [][]string
	level := []nodeID{t.root}
	for len(level) > 0 {
		var row []string
		var next []nodeID
		for _, id := range level {
			n := t.node(id)
			row = append(row, formatKeys(n.keys()))
			if n.kind == kindInternal {
				next = append(next, n.internal.children...)
			}
		}
		out = append(out, row)
		level = next
	}
	return out
}

// Dump writes Levels to w, one line per level.
func (t *Tree) Dump(w io.Writer) error {
	for i, row := range t.Levels() {
		if _, err := fmt.Fprintf(w, "L%d: %s\n", i, strings.Join(row, " ")); err != nil {
			return err
		}
	}
	return nil
}

// LeafChain renders the leaves in chain order, e.g. "[1 2] -> [3 4] -> [5]".
func (t *Tree) LeafChain() string {
	var parts []string
	for id := t.leftmostLeaf(); id != nilNode; id = t.node(id).leaf.next {
		parts = append(parts, formatKeys(t.node(id).leaf.keys))
	}
	return strings.Join(parts, " -> ")
}

func formatKeys(keys []value.Value) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k.String())
	}
	b.WriteByte(']')
	return b.String()
}
