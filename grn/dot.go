package grn

import (
	"fmt"
	"io"
	"strings"

	"github.com/carbocation/pfx"
)

// WriteDOT renders the network in Graphviz DOT: TFs as boxes, targets as
// ellipses, edge width scaled by importance.
func WriteDOT(w io.Writer, edges []Edge) error {
	var sb strings.Builder
	sb.WriteString("digraph grn {\n")
	sb.WriteString("\trankdir=LR;\n")

	tfs := make(map[string]bool)
	for _, e := range edges {
		tfs[e.TF] = true
	}

	seen := make(map[string]bool)
	for _, e := range edges {
		for _, node := range []string{e.TF, e.Gene} {
			if seen[node] {
				continue
			}
			seen[node] = true

			shape := "ellipse"
			if tfs[node] {
				shape = "box"
			}
			fmt.Fprintf(&sb, "\t%q [shape=%s];\n", node, shape)
		}
	}

	for _, e := range edges {
		width := 1 + 4*e.Importance
		if width < 1 {
			width = 1
		}
		fmt.Fprintf(&sb, "\t%q -> %q [penwidth=%.2f, label=\"%.2f\"];\n", e.TF, e.Gene, width, e.Importance)
	}

	sb.WriteString("}\n")

	_, err := io.WriteString(w, sb.String())

	return pfx.Err(err)
}
