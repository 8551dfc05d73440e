// Package snapshot exports stack records to durable storage so stacks can
// be inspected and restored across restarts. Sessions are never exported.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/picklr-io/infraviz/internal/backoff"
	"github.com/picklr-io/infraviz/internal/ir"
	"github.com/picklr-io/infraviz/internal/logging"
)

// ErrNotFound is returned by Read for an unknown stack.
var ErrNotFound = errors.New("snapshot not found")

// Backend stores one snapshot per stack id.
type Backend interface {
	// Read loads the snapshot of a stack.
	Read(ctx context.Context, stackID string) (*ir.StackRecord, error)

	// Write replaces the snapshot of rec.StackID.
	Write(ctx context.Context, rec *ir.StackRecord) error

	// List returns the ids of all stored snapshots.
	List(ctx context.Context) ([]string, error)

	// Lock acquires an exclusive lock on a stack's snapshot.
	Lock(ctx context.Context, stackID string) error

	// Unlock releases the lock on a stack's snapshot.
	Unlock(ctx context.Context, stackID string) error
}

// Config selects and configures a backend. At most one of Dir and Bucket may
// be set; neither means snapshots are disabled.
type Config struct {
	Dir       string
	Bucket    string
	Prefix    string
	Region    string
	LockTable string // DynamoDB table used for S3 locking, optional
	Profile   string
	Key       string // encryption key, optional

	// Retry governs transient storage failures; the zero value means
	// backoff.Default().
	Retry backoff.Policy
}

// New builds the backend described by cfg, retrying transient failures under
// cfg.Retry. It returns a nil Backend when snapshots are disabled.
func New(ctx context.Context, cfg Config) (Backend, error) {
	var b Backend
	switch {
	case cfg.Dir != "" && cfg.Bucket != "":
		return nil, fmt.Errorf("snapshot directory and bucket are mutually exclusive")
	case cfg.Dir != "":
		b = NewLocal(cfg.Dir, cfg.Key)
	case cfg.Bucket != "":
		s3b, err := NewS3(ctx, cfg)
		if err != nil {
			return nil, err
		}
		b = s3b
	default:
		return nil, nil
	}

	policy := cfg.Retry
	if policy.IsZero() {
		policy = backoff.Default()
	}
	return WithRetry(b, policy), nil
}

// Export writes rec under the stack's lock. Retries, if any, come from b.
func Export(ctx context.Context, b Backend, rec *ir.StackRecord) error {
	if err := b.Lock(ctx, rec.StackID); err != nil {
		return err
	}
	defer func() {
		if err := b.Unlock(ctx, rec.StackID); err != nil {
			logging.ForStack(rec.StackID).Warn("failed to release snapshot lock", "error", err)
		}
	}()

	return b.Write(ctx, rec)
}

// Restore reads every stored snapshot. Unreadable snapshots are logged and
// skipped.
func Restore(ctx context.Context, b Backend) ([]*ir.StackRecord, error) {
	ids, err := b.List(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]*ir.StackRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := b.Read(ctx, id)
		if err != nil {
			logging.Warn("skipping unreadable snapshot", "stack", id, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func encode(rec *ir.StackRecord, key string) ([]byte, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return Encrypt(append(data, '\n'), key)
}

func decode(data []byte, key string) (*ir.StackRecord, error) {
	plain, err := Decrypt(data, key)
	if err != nil {
		return nil, err
	}
	var rec ir.StackRecord
	if err := json.Unmarshal(plain, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &rec, nil
}
