package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommand_Generate(t *testing.T) {
	// Emit a fenced program, as chat models tend to.
	g := &Command{Line: `printf '%s\n' '` + "```ts" + `' 'const b = new aws.s3.Bucket("b");' '` + "```" + `'`}

	code, err := g.Generate(context.Background(), "a bucket")
	require.NoError(t, err)
	assert.Equal(t, `const b = new aws.s3.Bucket("b");`, code)
}

func TestCommand_ReceivesPrompt(t *testing.T) {
	g := &Command{Line: "grep -c 'Change to make'"}

	out, err := g.Update(context.Background(), "const a = 1;", "add redis")
	require.NoError(t, err)
	assert.Equal(t, "1", out)
}

func TestCommand_Failure(t *testing.T) {
	g := &Command{Line: "echo quota exceeded >&2; exit 2"}

	_, err := g.Generate(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestCommand_EmptyOutput(t *testing.T) {
	g := &Command{Line: "true"}
	_, err := g.Generate(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty program")
}

func TestCommand_NotConfigured(t *testing.T) {
	_, err := (&Command{}).Generate(context.Background(), "anything")
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "const a = 1;\n", "const a = 1;"},
		{"typescript fence", "```typescript\nconst a = 1;\n```\n", "const a = 1;"},
		{"bare fence", "```\nconst a = 1;\n```", "const a = 1;"},
		{"only fence", "```", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripFences(tt.input))
		})
	}
}

func TestPrompts(t *testing.T) {
	p := GeneratePrompt("  postgres and s3  ")
	assert.Contains(t, p, "Infrastructure to build:\npostgres and s3\n")

	u := UpdatePrompt("const a = 1;", "add redis")
	assert.Contains(t, u, "Current index.ts:\nconst a = 1;")
	assert.Contains(t, u, "Change to make:\nadd redis")
}

func TestStatic(t *testing.T) {
	s := Static{Program: "p1"}
	code, err := s.Generate(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "p1", code)

	code, _ = s.Update(context.Background(), "p1", "x")
	assert.Equal(t, "p1", code)

	code, _ = Static{Program: "p1", Updated: "p2"}.Update(context.Background(), "p1", "x")
	assert.Equal(t, "p2", code)
}
