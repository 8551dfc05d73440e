package snapshot

import (
	"context"

	"github.com/picklr-io/infraviz/internal/backoff"
	"github.com/picklr-io/infraviz/internal/ir"
	"github.com/picklr-io/infraviz/internal/logging"
)

// retrying retries transient Read, Write and List failures of the wrapped
// Backend. Lock and Unlock pass through: a held lock is not transient.
type retrying struct {
	Backend
	policy backoff.Policy
}

// WithRetry wraps b so its storage calls are retried under policy.
func WithRetry(b Backend, policy backoff.Policy) Backend {
	return &retrying{Backend: b, policy: policy}
}

func (r *retrying) Read(ctx context.Context, stackID string) (*ir.StackRecord, error) {
	var rec *ir.StackRecord
	err := r.do(ctx, "read", stackID, func(ctx context.Context) error {
		var err error
		rec, err = r.Backend.Read(ctx, stackID)
		return err
	})
	return rec, err
}

func (r *retrying) Write(ctx context.Context, rec *ir.StackRecord) error {
	return r.do(ctx, "write", rec.StackID, func(ctx context.Context) error {
		return r.Backend.Write(ctx, rec)
	})
}

func (r *retrying) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.do(ctx, "list", "", func(ctx context.Context) error {
		var err error
		ids, err = r.Backend.List(ctx)
		return err
	})
	return ids, err
}

func (r *retrying) do(ctx context.Context, op, stackID string, fn func(context.Context) error) error {
	attempt := 0
	return r.policy.Do(ctx, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			logging.Debug("retrying snapshot "+op, "stack", stackID, "attempt", attempt)
		}
		return fn(ctx)
	})
}
