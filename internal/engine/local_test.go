package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRunner_StreamsStdout(t *testing.T) {
	r := NewLocalRunner()
	var lines []string
	err := r.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", `echo one; echo "$GREETING"; echo ignored >&2`},
		Dir:  t.TempDir(),
		Env:  map[string]string{"GREETING": "hello"},
	}, func(line string) { lines = append(lines, line) })

	require.NoError(t, err)
	assert.Equal(t, []string{"one", "hello"}, lines)
}

func TestLocalRunner_ExitError(t *testing.T) {
	r := NewLocalRunner()
	err := r.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo broken >&2; exit 3"},
		Dir:  t.TempDir(),
	}, nil)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.Code)
	assert.Equal(t, "broken", exitErr.Stderr)
	assert.Contains(t, err.Error(), "exited with code 3")
}

func TestLocalRunner_MissingBinary(t *testing.T) {
	r := NewLocalRunner()
	err := r.Run(context.Background(), Command{Name: "definitely-not-installed-engine", Dir: t.TempDir()}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to find")
}

func TestLineTail_KeepsLastLines(t *testing.T) {
	tail := newLineTail(2)
	for _, l := range []string{"a", "", "b", "c"} {
		tail.add(l)
	}
	assert.Equal(t, "b\nc", tail.String())
}

func TestEnvList_Sorted(t *testing.T) {
	assert.Equal(t, []string{"A=1", "B=2"}, envList(map[string]string{"B": "2", "A": "1"}))
}
