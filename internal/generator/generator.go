// Package generator produces infrastructure programs from natural-language
// descriptions by delegating to an external code-generation command.
package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/picklr-io/infraviz/internal/logging"
)

// ErrNotConfigured is returned when no generation command is set.
var ErrNotConfigured = errors.New("no code generator configured (set INFRAVIZ_GENERATOR_CMD)")

// Generator writes and revises programs.
type Generator interface {
	Generate(ctx context.Context, description string) (string, error)
	Update(ctx context.Context, current, change string) (string, error)
}

const instructions = `You write Pulumi TypeScript programs.
Reply with the complete contents of index.ts and nothing else.
Import providers as: import * as aws from "@pulumi/aws"; import * as gcp from "@pulumi/gcp";
Declare every resource as: const <name> = new <provider>.<module>.<Kind>("<resource-name>", { ... });
Reference other resources through their variables (vpc.id) so dependencies are explicit.`

// GeneratePrompt is the prompt for a new program.
func GeneratePrompt(description string) string {
	return instructions + "\n\nInfrastructure to build:\n" + strings.TrimSpace(description) + "\n"
}

// UpdatePrompt is the prompt for revising an existing program.
func UpdatePrompt(current, change string) string {
	return instructions +
		"\n\nCurrent index.ts:\n" + strings.TrimSpace(current) +
		"\n\nChange to make:\n" + strings.TrimSpace(change) + "\n"
}

// Command runs a shell command with the prompt on stdin and takes the
// program from its stdout.
type Command struct {
	Shell string // defaults to sh
	Line  string
}

func (c *Command) Generate(ctx context.Context, description string) (string, error) {
	return c.run(ctx, GeneratePrompt(description))
}

func (c *Command) Update(ctx context.Context, current, change string) (string, error) {
	return c.run(ctx, UpdatePrompt(current, change))
}

func (c *Command) run(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(c.Line) == "" {
		return "", ErrNotConfigured
	}
	shell := c.Shell
	if shell == "" {
		shell = "sh"
	}

	cmd := exec.CommandContext(ctx, shell, "-c", c.Line)
	cmd.Stdin = strings.NewReader(prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logging.Debug("running code generator", "command", c.Line, "prompt_bytes", len(prompt))
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("code generator failed: %w", err)
		}
		return "", fmt.Errorf("code generator failed: %w: %s", err, msg)
	}

	code := StripFences(stdout.String())
	if code == "" {
		return "", errors.New("code generator returned an empty program")
	}
	return code, nil
}

// StripFences removes a surrounding markdown code fence, if present.
func StripFences(out string) string {
	out = strings.TrimSpace(out)
	if !strings.HasPrefix(out, "```") {
		return out
	}
	if i := strings.Index(out, "\n"); i >= 0 {
		out = out[i+1:]
	} else {
		return ""
	}
	out = strings.TrimSuffix(strings.TrimRight(out, " \t\n"), "```")
	return strings.TrimSpace(out)
}

// Static returns fixed programs. It is meant for tests and offline demos.
type Static struct {
	Program string
	Updated string // returned by Update; defaults to Program
}

func (s Static) Generate(context.Context, string) (string, error) {
	return s.Program, nil
}

func (s Static) Update(context.Context, string, string) (string, error) {
	if s.Updated != "" {
		return s.Updated, nil
	}
	return s.Program, nil
}
