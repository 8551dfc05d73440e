package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Command is one engine or package-manager invocation.
type Command struct {
	Name   string
	Args   []string
	Dir    string            // working directory
	Env    map[string]string // added on top of the runner's base environment
	Mounts []string          // extra host directories the command needs (sandboxed runners only)
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Runner executes commands, streaming stdout line by line to onLine.
// A nil onLine discards output.
type Runner interface {
	Run(ctx context.Context, cmd Command, onLine func(string)) error
	Close() error
}

// ExitError reports a command that ran but exited non-zero.
type ExitError struct {
	Command string
	Code    int
	Stderr  string // last lines of stderr
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s exited with code %d", e.Command, e.Code)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Command, e.Code, e.Stderr)
}

const (
	maxLineSize  = 1024 * 1024
	stderrLines  = 20
	scanBufStart = 64 * 1024
)

// scanLines feeds every line of r to fn until EOF. It always drains r.
func scanLines(r io.Reader, fn func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, scanBufStart), maxLineSize)
	for scanner.Scan() {
		if fn != nil {
			fn(scanner.Text())
		}
	}
	// Oversized line: keep the pipe flowing so the child never blocks.
	_, _ = io.Copy(io.Discard, r)
}

// lineTail keeps the last n lines it was given.
type lineTail struct {
	n     int
	lines []string
}

func newLineTail(n int) *lineTail {
	return &lineTail{n: n}
}

func (t *lineTail) add(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

func (t *lineTail) String() string {
	return strings.Join(t.lines, "\n")
}

// envList renders env as KEY=VALUE pairs in a stable order.
func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
