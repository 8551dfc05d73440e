package ir

// Canonical operations of a resource step. The engine's "same" steps and
// any step kind without a direct mapping become OpNoOp.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
	OpNoOp   = "no-op"
)

// PreviewEvent is the canonical record both extractors produce for a single resource.
type PreviewEvent struct {
	URN          string   `json:"urn"`  // e.g., "urn:pulumi:dev::infra::aws:s3/bucket:Bucket::assets"
	Type         string   `json:"type"` // e.g., "aws:s3/bucket:Bucket"
	Op           string   `json:"op"`
	Dependencies []string `json:"dependencies,omitempty"` // URNs this resource depends on
}
