package ir

// Position is a node's layout coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// GraphNode is a positioned resource in the rendered graph.
type GraphNode struct {
	ID            string   `json:"id"` // resource URN
	Label         string   `json:"label"`
	ShortType     string   `json:"shortType"` // Kind segment, e.g. "Instance"
	Provider      string   `json:"provider"`  // e.g. "aws"
	ResourceType  string   `json:"resourceType"`
	Op            string   `json:"op"`
	Position      Position `json:"position"`
	EstimatedCost *float64 `json:"estimatedCost"` // nil when the cost is unknown
}

// GraphEdge points from the depended-upon resource to its dependent.
type GraphEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}
