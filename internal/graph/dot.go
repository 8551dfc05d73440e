package graph

import (
	"fmt"
	"io"

	"github.com/picklr-io/infraviz/internal/ir"
)

// WriteDOT renders nodes and edges in Graphviz DOT format. Pipe the output to
// `dot -Tpng` to draw it.
func WriteDOT(w io.Writer, nodes []ir.GraphNode, edges []ir.GraphEdge) error {
	if _, err := fmt.Fprintln(w, "digraph infraviz {"); err != nil {
		return err
	}
	fmt.Fprintln(w, `  rankdir = "TB";`)
	fmt.Fprintln(w, "  node [shape = rect];")
	fmt.Fprintln(w)

	for _, n := range nodes {
		label := n.Label
		if n.EstimatedCost != nil {
			label = fmt.Sprintf("%s ($%.2f/mo)", n.Label, *n.EstimatedCost)
		}
		fmt.Fprintf(w, "  %q [label = %q];\n", n.ID, label)
	}
	fmt.Fprintln(w)

	for _, e := range edges {
		fmt.Fprintf(w, "  %q -> %q;\n", e.Source, e.Target)
	}

	_, err := fmt.Fprintln(w, "}")
	return err
}
