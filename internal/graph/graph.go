// Package graph turns canonical preview events into positioned nodes and
// dependency edges.
package graph

import (
	"errors"
	"strings"

	"github.com/dominikbraun/graph"

	"github.com/picklr-io/infraviz/internal/ir"
	"github.com/picklr-io/infraviz/internal/logging"
)

// Layout spacing in canvas units.
const (
	ColumnWidth = 250
	RowHeight   = 150
)

// Build returns one node per distinct URN, in order of first appearance, and
// one edge per dependency entry drawn from the dependency to its dependent.
// Dependencies on URNs that are not in events still produce edges.
func Build(events []ir.PreviewEvent) ([]ir.GraphNode, []ir.GraphEdge) {
	nodes := make([]ir.GraphNode, 0, len(events))
	var edges []ir.GraphEdge
	seen := make(map[string]bool, len(events))

	for _, ev := range events {
		if seen[ev.URN] {
			continue
		}
		seen[ev.URN] = true

		kind := ShortType(ev.Type)
		nodes = append(nodes, ir.GraphNode{
			ID:           ev.URN,
			Label:        kind,
			ShortType:    kind,
			Provider:     Provider(ev.Type),
			ResourceType: ev.Type,
			Op:           ev.Op,
		})
		for _, dep := range ev.Dependencies {
			edges = append(edges, ir.GraphEdge{
				ID:     EdgeID(dep, ev.URN),
				Source: dep,
				Target: ev.URN,
			})
		}
	}

	Layout(nodes, edges)
	return nodes, edges
}

// EdgeID names the edge from source to target.
func EdgeID(source, target string) string {
	return "e-" + source + "-" + target
}

// ShortType is the Kind segment of a resource type, e.g. "Instance" for
// "aws:rds/instance:Instance".
func ShortType(resourceType string) string {
	if i := strings.LastIndex(resourceType, ":"); i >= 0 {
		return resourceType[i+1:]
	}
	return resourceType
}

// Provider is the leading segment of a resource type.
func Provider(resourceType string) string {
	provider, _, _ := strings.Cut(resourceType, ":")
	return provider
}

// Layout assigns positions in place. A node's row is the length of the
// longest dependency chain leading to it; its column is its index among the
// nodes of that row. Cycles are tolerated: rows are capped at the vertex
// count minus one.
func Layout(nodes []ir.GraphNode, edges []ir.GraphEdge) {
	if len(nodes) == 0 {
		return
	}

	g := graph.New(graph.StringHash, graph.Directed())
	vertices := make(map[string]bool, len(nodes))
	add := func(id string) {
		if !vertices[id] {
			vertices[id] = true
			addVertex(g, id)
		}
	}
	for _, n := range nodes {
		add(n.ID)
	}
	for _, e := range edges {
		add(e.Source)
		add(e.Target)
		if err := g.AddEdge(e.Source, e.Target); err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
			logging.Debug("skipping edge in layout", "edge", e.ID, "error", err)
		}
	}

	preds, err := g.PredecessorMap()
	if err != nil {
		logging.Debug("failed to compute predecessors, using a single row", "error", err)
		preds = nil
	}

	layers := longestPathLayers(nodes, preds, len(vertices)-1)

	columns := make(map[int]int)
	for i := range nodes {
		layer := layers[nodes[i].ID]
		nodes[i].Position = ir.Position{
			X: float64(columns[layer] * ColumnWidth),
			Y: float64(layer * RowHeight),
		}
		columns[layer]++
	}
}

func addVertex(g graph.Graph[string, string], id string) {
	if err := g.AddVertex(id); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
		logging.Debug("skipping vertex in layout", "id", id, "error", err)
	}
}

// longestPathLayers relaxes layer[v] = max(layer[p]+1) until stable, at most
// once per node so a cycle cannot loop forever. No layer exceeds limit.
func longestPathLayers(nodes []ir.GraphNode, preds map[string]map[string]graph.Edge[string], limit int) map[string]int {
	layers := make(map[string]int, len(nodes))
	for round := 0; round < len(nodes); round++ {
		changed := false
		for _, n := range nodes {
			for p := range preds[n.ID] {
				if p == n.ID {
					continue
				}
				next := layers[p] + 1
				if next > limit {
					next = limit
				}
				if next > layers[n.ID] {
					layers[n.ID] = next
					changed = true
				}
			}
		}
		if !changed {
			break
		}
	}
	return layers
}
