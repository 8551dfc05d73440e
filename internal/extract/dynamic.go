package extract

import (
	"context"
	"fmt"

	"github.com/picklr-io/infraviz/internal/engine"
	"github.com/picklr-io/infraviz/internal/ir"
)

// Previewer runs the engine's dry-run for a stack.
type Previewer interface {
	Preview(ctx context.Context, stackID, workDir string) ([]*engine.StepMetadata, error)
}

// Dynamic extracts resources by running the engine's preview in an isolated
// state backend. Any engine failure is returned to the caller.
type Dynamic struct {
	Previewer Previewer
}

func (d Dynamic) Extract(ctx context.Context, t Target) ([]ir.PreviewEvent, error) {
	steps, err := d.Previewer.Preview(ctx, t.StackID, t.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("preview of stack %s failed: %w", t.StackID, err)
	}
	return Normalize(steps), nil
}

// Normalize maps engine step metadata to canonical events. The first step
// for a URN wins; self-dependencies and dependencies on URNs outside the
// list are dropped, as are repeated dependencies.
func Normalize(steps []*engine.StepMetadata) []ir.PreviewEvent {
	known := make(map[string]bool, len(steps))
	for _, s := range steps {
		if s != nil && s.URN != "" {
			known[s.URN] = true
		}
	}

	var events []ir.PreviewEvent
	emitted := make(map[string]bool, len(known))
	for _, s := range steps {
		if s == nil || s.URN == "" || emitted[s.URN] {
			continue
		}
		emitted[s.URN] = true

		var deps []string
		seen := make(map[string]bool)
		for _, dep := range s.DependencyURNs() {
			if dep == s.URN || !known[dep] || seen[dep] {
				continue
			}
			seen[dep] = true
			deps = append(deps, dep)
		}

		events = append(events, ir.PreviewEvent{
			URN:          s.URN,
			Type:         s.Type,
			Op:           normalizeOp(s.Op),
			Dependencies: deps,
		})
	}
	return events
}

// normalizeOp folds the engine's step kinds into the four canonical operations.
func normalizeOp(op string) string {
	switch op {
	case "create", "create-replacement", "import":
		return ir.OpCreate
	case "update", "replace", "import-replacement":
		return ir.OpUpdate
	case "delete", "delete-replaced", "discard", "discard-replaced", "remove-pending-replace":
		return ir.OpDelete
	default:
		return ir.OpNoOp
	}
}
