// Package extract recovers the resource inventory of a program, either by
// running the engine's dry-run preview or by scanning the program text.
package extract

import (
	"context"

	"github.com/picklr-io/infraviz/internal/ir"
	"github.com/picklr-io/infraviz/internal/logging"
)

// Target identifies the program to extract from.
type Target struct {
	StackID string
	WorkDir string // directory holding the written program and scaffold
	Program string // program text
}

// Extractor produces the canonical event list for a program.
type Extractor interface {
	Extract(ctx context.Context, t Target) ([]ir.PreviewEvent, error)
}

// Fallback tries Primary and uses Secondary when Primary fails or finds nothing.
// Primary errors are logged, never returned.
type Fallback struct {
	Primary   Extractor
	Secondary Extractor
}

func (f Fallback) Extract(ctx context.Context, t Target) ([]ir.PreviewEvent, error) {
	if f.Primary != nil {
		events, err := f.Primary.Extract(ctx, t)
		switch {
		case err != nil:
			logging.Debug("primary extraction failed, falling back", "stack", t.StackID, "error", err)
		case len(events) == 0:
			logging.Debug("primary extraction found no resources, falling back", "stack", t.StackID)
		default:
			return events, nil
		}
	}
	return f.Secondary.Extract(ctx, t)
}
