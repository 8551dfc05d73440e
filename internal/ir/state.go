package ir

import "time"

// DeployStatus is the lifecycle state of a stack.
type DeployStatus string

const (
	StatusIdle      DeployStatus = "idle"
	StatusDeploying DeployStatus = "deploying"
	StatusDeployed  DeployStatus = "deployed"
	StatusFailed    DeployStatus = "failed"
)

// StackRecord is the latest known program, graph and deploy status of a stack.
// Records are replaced wholesale on every write.
type StackRecord struct {
	StackID       string       `json:"stackId"`
	Program       string       `json:"program"`
	ProgramDigest string       `json:"programDigest"`
	WorkDir       string       `json:"workDir"`
	Nodes         []GraphNode  `json:"nodes"`
	Edges         []GraphEdge  `json:"edges"`
	TotalCost     float64      `json:"totalCost"`
	DeployStatus  DeployStatus `json:"deployStatus"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// Clone returns a copy that shares no slices with r.
func (r *StackRecord) Clone() *StackRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Nodes = append([]GraphNode(nil), r.Nodes...)
	for i := range c.Nodes {
		if cost := c.Nodes[i].EstimatedCost; cost != nil {
			v := *cost
			c.Nodes[i].EstimatedCost = &v
		}
	}
	c.Edges = append([]GraphEdge(nil), r.Edges...)
	return &c
}

// Session is the credential context used for deploys.
type Session struct {
	AccessToken  string    `json:"-"`
	Org          string    `json:"org"`
	Environment  string    `json:"environment,omitempty"` // secrets-environment reference
	User         string    `json:"user,omitempty"`
	ConfiguredAt time.Time `json:"configuredAt"`
}
