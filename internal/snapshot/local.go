package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/picklr-io/infraviz/internal/ir"
)

// staleLockAge is how old a lock file must be before it is broken.
const staleLockAge = 10 * time.Minute

const snapshotExt = ".json"

// Local keeps snapshots as files in a directory.
type Local struct {
	dir string
	key string
}

func NewLocal(dir, key string) *Local {
	return &Local{dir: dir, key: key}
}

func (l *Local) path(stackID string) string {
	return filepath.Join(l.dir, stackID+snapshotExt)
}

func (l *Local) lockPath(stackID string) string {
	return l.path(stackID) + ".lock"
}

func (l *Local) Read(_ context.Context, stackID string) (*ir.StackRecord, error) {
	data, err := os.ReadFile(l.path(stackID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, stackID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", l.path(stackID), err)
	}
	return decode(data, l.key)
}

// Write replaces the snapshot atomically through a temp file and rename.
func (l *Local) Write(_ context.Context, rec *ir.StackRecord) error {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	data, err := encode(rec, l.key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(l.dir, rec.StackID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.path(rec.StackID)); err != nil {
		return fmt.Errorf("failed to replace snapshot %s: %w", l.path(rec.StackID), err)
	}
	return nil
}

func (l *Local) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots in %s: %w", l.dir, err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, snapshotExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, snapshotExt))
	}
	sort.Strings(ids)
	return ids, nil
}

// Lock creates a lock file next to the snapshot. Locks older than
// staleLockAge are broken.
func (l *Local) Lock(_ context.Context, stackID string) error {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	lockPath := l.lockPath(stackID)
	if info, err := os.Stat(lockPath); err == nil && time.Since(info.ModTime()) > staleLockAge {
		os.Remove(lockPath)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("snapshot of stack %s is locked by another process (lock file: %s). "+
			"If this is an error, remove the lock file manually", stackID, lockPath)
	}
	if err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "pid=%d\ntime=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	return err
}

func (l *Local) Unlock(_ context.Context, stackID string) error {
	if err := os.Remove(l.lockPath(stackID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}
