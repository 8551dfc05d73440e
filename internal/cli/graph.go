package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/picklr-io/infraviz/internal/cost"
	"github.com/picklr-io/infraviz/internal/extract"
	"github.com/picklr-io/infraviz/internal/graph"
	"github.com/picklr-io/infraviz/internal/ir"
)

var graphFormat string

var graphCmd = &cobra.Command{
	Use:   "graph <program.ts|->",
	Short: "Output the cost-annotated dependency graph of a program",
	Long: `Extracts resources from a program's text and prints the dependency graph.
The default DOT output can be piped to Graphviz:

  infraviz graph index.ts | dot -Tpng > graph.png`,
	Args: cobra.ExactArgs(1),
	RunE: runGraph,
}

func init() {
	graphCmd.Flags().StringVarP(&graphFormat, "format", "f", "dot", "Output format (dot, json, text)")
}

func costTable() (*cost.Table, error) {
	t := cost.DefaultTable()
	if cfg != nil && cfg.CostFile != "" {
		if err := t.LoadOverrides(cfg.CostFile); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func runGraph(cmd *cobra.Command, args []string) error {
	code, err := readProgram(args[0])
	if err != nil {
		return err
	}
	prices, err := costTable()
	if err != nil {
		return err
	}

	evs := extract.ParseProgram(code)
	nodes, edges := graph.Build(evs)
	prices.Annotate(nodes)

	out := cmd.OutOrStdout()
	switch graphFormat {
	case "dot":
		return graph.WriteDOT(out, nodes, edges)
	case "json":
		data, err := json.MarshalIndent(map[string]any{
			"nodes":              nodes,
			"edges":              edges,
			"totalEstimatedCost": cost.Total(nodes),
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal graph: %w", err)
		}
		fmt.Fprintln(out, string(data))
	case "text":
		renderNodes(out, nodes)
		if len(edges) > 0 {
			fmt.Fprintln(out)
			renderEdges(out, edges)
		}
		sum := ir.Summarize(evs)
		fmt.Fprintf(out, "\nPlan: %d to create, %d to update, %d to delete, %d unchanged.\n",
			sum.Create, sum.Update, sum.Delete, sum.NoOp)
		fmt.Fprintf(out, "%d resources, ~$%.2f/mo\n", len(nodes), cost.Total(nodes))
	default:
		return fmt.Errorf("unknown format %q (want dot, json or text)", graphFormat)
	}
	return nil
}
