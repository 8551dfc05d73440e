package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/sourcegraph/conc/pool"
)

// LocalRunner runs commands as child processes of this server.
type LocalRunner struct{}

func NewLocalRunner() *LocalRunner {
	return &LocalRunner{}
}

func (r *LocalRunner) Run(ctx context.Context, cmd Command, onLine func(string)) error {
	path, err := exec.LookPath(cmd.Name)
	if err != nil {
		return fmt.Errorf("failed to find %s: %w", cmd.Name, err)
	}

	c := exec.CommandContext(ctx, path, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), envList(cmd.Env)...)

	stdout, err := c.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout of %s: %w", cmd.Name, err)
	}
	stderr, err := c.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open stderr of %s: %w", cmd.Name, err)
	}

	if err := c.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", cmd, err)
	}

	tail := newLineTail(stderrLines)
	p := pool.New()
	p.Go(func() { scanLines(stdout, onLine) })
	p.Go(func() { scanLines(stderr, tail.add) })
	p.Wait()

	if err := c.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Command: cmd.String(), Code: exitErr.ExitCode(), Stderr: tail.String()}
		}
		return fmt.Errorf("%s failed: %w", cmd, err)
	}
	return nil
}

func (r *LocalRunner) Close() error {
	return nil
}
