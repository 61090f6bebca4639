package bplustree

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"os"
)

// ExportDOT writes the tree as a Graphviz digraph: internal nodes in blue,
// leaves in green with their RIDs, and the leaf chain as dashed edges.
// Render with `dot -Tpng tree.dot -o tree.png`.
func (t *Tree) ExportDOT(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "digraph BPlusTree {")
	// Layout and Global Styling
	fmt.Fprintln(bw, "  graph [ranksep=0.8, nodesep=0.5, bgcolor=\"#ffffff\", rankdir=TB];")
	fmt.Fprintln(bw, "  node [shape=none, fontname=\"Helvetica\", fontsize=10];")
	fmt.Fprintln(bw, "  edge [arrowsize=0.8, color=\"#444444\"];")

	var leaves []nodeID
	var export func(id nodeID)
	export = func(id nodeID) {
		n := t.node(id)
		fill := 100 * float64(n.numKeys()) / float64(t.maxKeys())
		switch n.kind {
		case kindLeaf:
			label := fmt.Sprintf(`<<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0" CELLPADDING="4">
				<TR><TD COLSPAN="2" BGCOLOR="#D5E8D4"><B>NODE %d (LEAF)</B><BR/><FONT POINT-SIZE="8">Fill: %.0f%%</FONT></TD></TR>
				<TR><TD PORT="keys" BGCOLOR="#F5F5F5" ALIGN="LEFT">`, id, fill)
			for i, k := range n.leaf.keys {
				label += fmt.Sprintf("<B>%s</B> <FONT COLOR='#666666'>%s</FONT><BR/>", html.EscapeString(k.String()), n.leaf.rids[i])
			}
			label += `</TD><TD PORT="next" BGCOLOR="#E1F5FE" VALIGN="MIDDLE">next</TD></TR></TABLE>>`
			fmt.Fprintf(bw, "  n%d [label=%s];\n", id, label)
			leaves = append(leaves, id)
		case kindInternal:
			keys := n.internal.keys
			label := fmt.Sprintf(`<<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0" CELLPADDING="4">
				<TR><TD COLSPAN="%d" BGCOLOR="#DAE8FC"><B>NODE %d (INTERNAL)</B><BR/><FONT POINT-SIZE="8">Fill: %.0f%%</FONT></TD></TR><TR>`, len(keys)*2+1, id, fill)
			for i, k := range keys {
				label += fmt.Sprintf(`<TD PORT="f%d" BGCOLOR="#E1F5FE"> </TD><TD BGCOLOR="#FFFFFF"><B>%s</B></TD>`, i, html.EscapeString(k.String()))
			}
			label += fmt.Sprintf(`<TD PORT="f%d" BGCOLOR="#E1F5FE"> </TD></TR></TABLE>>`, len(keys))
			fmt.Fprintf(bw, "  n%d [label=%s];\n", id, label)

			for i, child := range n.internal.children {
				export(child)
				fmt.Fprintf(bw, "  n%d:f%d -> n%d;\n", id, i, child)
			}
		}
	}
	export(t.root)

	// Link leaves horizontally
	if len(leaves) > 1 {
		fmt.Fprintln(bw, "  { rank=same;")
		for _, id := range leaves {
			fmt.Fprintf(bw, "    n%d;\n", id)
		}
		fmt.Fprintln(bw, "  }")
		for _, id := range leaves {
			if next := t.node(id).leaf.next; next != nilNode {
				fmt.Fprintf(bw, "  n%d:next -> n%d [style=dashed, color=\"#03A9F4\", constraint=false, tailclip=false];\n", id, next)
			}
		}
	}

	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

// WriteDOTFile is ExportDOT into a new file at path.
func (t *Tree) WriteDOTFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := t.ExportDOT(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
