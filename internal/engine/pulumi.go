// Package engine drives the provisioning engine's CLI: dry-run previews in an
// isolated file-backed state, and real applies against the cloud backend.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"github.com/picklr-io/infraviz/internal/logging"
	"github.com/picklr-io/infraviz/internal/program"
)

// PreviewStack is the stack name used for every dry-run.
const PreviewStack = "dev"

// eventLogDir holds event logs inside the work dir so sandboxed runners can write them.
const eventLogDir = ".infraviz"

// Options configures a Pulumi driver.
type Options struct {
	PulumiBin  string // engine CLI binary
	NPMBin     string // package manager binary
	StateDir   string // parent of per-stack file backends used by previews
	APIURL     string // cloud backend used by deploys
	Passphrase string
}

// Pulumi runs engine operations through a Runner.
type Pulumi struct {
	opts   Options
	runner Runner
}

func NewPulumi(runner Runner, opts Options) *Pulumi {
	if opts.PulumiBin == "" {
		opts.PulumiBin = "pulumi"
	}
	if opts.NPMBin == "" {
		opts.NPMBin = "npm"
	}
	if opts.StateDir == "" {
		opts.StateDir = os.TempDir()
	}
	if opts.APIURL == "" {
		opts.APIURL = "https://api.pulumi.com"
	}
	return &Pulumi{opts: opts, runner: runner}
}

// Check verifies the engine can be executed at all.
func (p *Pulumi) Check(ctx context.Context) error {
	dir, err := os.MkdirTemp("", "infraviz-smoke-")
	if err != nil {
		return fmt.Errorf("failed to create smoke-test directory: %w", err)
	}
	defer os.RemoveAll(dir)

	return p.runner.Run(ctx, Command{
		Name: p.opts.PulumiBin,
		Args: []string{"version"},
		Dir:  dir,
	}, nil)
}

// StateBackendDir is the file backend directory isolating one stack's previews.
func (p *Pulumi) StateBackendDir(stackID string) string {
	return filepath.Join(p.opts.StateDir, "pulumi-state-"+stackID)
}

// previewEnv gives the dry-run its own file backend and placeholder cloud credentials.
func (p *Pulumi) previewEnv(stackID string) map[string]string {
	return map[string]string{
		"PULUMI_BACKEND_URL":       "file://" + p.StateBackendDir(stackID),
		"PULUMI_CONFIG_PASSPHRASE": p.opts.Passphrase,
		"PULUMI_SKIP_UPDATE_CHECK": "true",
		"AWS_ACCESS_KEY_ID":        envOr("AWS_ACCESS_KEY_ID", "dummy"),
		"AWS_SECRET_ACCESS_KEY":    envOr("AWS_SECRET_ACCESS_KEY", "dummy"),
		"AWS_REGION":               envOr("AWS_REGION", "us-east-1"),
	}
}

// Preview runs a dry-run of the program in workDir and returns the metadata
// of every resource the engine would touch, in event order.
func (p *Pulumi) Preview(ctx context.Context, stackID, workDir string) ([]*StepMetadata, error) {
	log := logging.ForStack(stackID)
	backend := p.StateBackendDir(stackID)
	if err := os.MkdirAll(backend, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state backend %s: %w", backend, err)
	}

	env := p.previewEnv(stackID)
	base := Command{Dir: workDir, Env: env, Mounts: []string{backend}}

	log.Debug("selecting preview stack")
	if err := p.run(ctx, base, p.opts.PulumiBin, nil, "stack", "select", "--create", PreviewStack, "--non-interactive"); err != nil {
		return nil, err
	}

	log.Debug("installing dependencies")
	if err := p.run(ctx, base, p.opts.NPMBin, nil, "install", "--prefer-offline"); err != nil {
		return nil, err
	}

	logPath, err := p.eventLogPath(workDir, "preview")
	if err != nil {
		return nil, err
	}

	log.Debug("running preview")
	if err := p.run(ctx, base, p.opts.PulumiBin, nil, "preview", "--non-interactive", "--stack", PreviewStack, "--event-log", logPath); err != nil {
		return nil, err
	}

	f, err := os.Open(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	var events []EngineEvent
	if err := ReadEvents(f, func(ev EngineEvent) { events = append(events, ev) }); err != nil {
		return nil, err
	}
	steps := ResourcePreEvents(events)
	log.Debug("preview complete", "events", len(events), "resources", len(steps))
	return steps, nil
}

// DeployRequest describes a real apply.
type DeployRequest struct {
	WorkDir     string
	StackID     string
	Token       string
	Org         string
	Environment string // secrets-environment reference, optional
}

// ProjectName is the cloud project a stack deploys into.
func ProjectName(stackID string) string {
	return "infra-" + stackID
}

// CloudStackName is the fully qualified stack name for a deploy.
func CloudStackName(org, stackID string) string {
	if org == "" {
		return PreviewStack
	}
	return fmt.Sprintf("%s/%s/%s", org, ProjectName(stackID), PreviewStack)
}

// EnvironmentName strips any organization or project path from a
// secrets-environment reference; the organization comes from the token.
func EnvironmentName(ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

// passthroughEnv lists server credentials forwarded to deploys when set.
var passthroughEnv = []string{
	"AWS_ACCESS_KEY_ID",
	"AWS_SECRET_ACCESS_KEY",
	"AWS_SESSION_TOKEN",
	"AWS_REGION",
	"GOOGLE_CREDENTIALS",
	"GOOGLE_PROJECT",
	"GOOGLE_REGION",
}

func (p *Pulumi) deployEnv(token string) map[string]string {
	env := map[string]string{
		"PULUMI_ACCESS_TOKEN":      token,
		"PULUMI_BACKEND_URL":       p.opts.APIURL,
		"PULUMI_CONFIG_PASSPHRASE": p.opts.Passphrase,
		"PULUMI_SKIP_UPDATE_CHECK": "true",
	}
	for _, key := range passthroughEnv {
		if v := os.Getenv(key); v != "" {
			env[key] = v
		}
	}
	return env
}

// Deploy applies the program in req.WorkDir against the cloud backend.
// Engine output lines and diagnostics are passed to sink verbatim; sink may be
// called from several goroutines.
func (p *Pulumi) Deploy(ctx context.Context, req DeployRequest, sink func(string)) error {
	if err := program.WriteProjectManifest(req.WorkDir, program.ProjectManifest{
		Name:    ProjectName(req.StackID),
		Runtime: "nodejs",
		Backend: &program.ProjectBackend{URL: p.opts.APIURL},
	}); err != nil {
		return err
	}

	stack := CloudStackName(req.Org, req.StackID)
	base := Command{Dir: req.WorkDir, Env: p.deployEnv(req.Token)}

	if err := p.run(ctx, base, p.opts.PulumiBin, nil, "stack", "select", "--create", stack, "--non-interactive"); err != nil {
		return err
	}

	if req.Environment != "" {
		name := EnvironmentName(req.Environment)
		sink(fmt.Sprintf("[info] Attaching ESC environment: %s", name))
		if err := p.run(ctx, base, p.opts.PulumiBin, sink, "config", "env", "add", name, "--yes", "--stack", stack); err != nil {
			return err
		}
	}

	sink("[info] Installing dependencies...")
	if err := p.run(ctx, base, p.opts.NPMBin, nil, "install", "--prefer-offline"); err != nil {
		return err
	}

	logPath, err := p.eventLogPath(req.WorkDir, "up")
	if err != nil {
		return err
	}

	done := make(chan struct{})

	tailer := pool.New().WithErrors()
	tailer.Go(func() error {
		return tailEvents(ctx, logPath, done, func(ev EngineEvent) {
			if ev.DiagnosticEvent != nil && ev.DiagnosticEvent.Message != "" {
				sink(FormatDiagnostic(ev.DiagnosticEvent))
			}
		})
	})

	runErr := p.run(ctx, base, p.opts.PulumiBin, sink, "up", "--yes", "--skip-preview", "--non-interactive", "--stack", stack, "--event-log", logPath)
	close(done)
	if err := tailer.Wait(); err != nil {
		logging.ForStack(req.StackID).Warn("failed to follow engine event log", "error", err)
	}
	return runErr
}

func (p *Pulumi) run(ctx context.Context, base Command, name string, onLine func(string), args ...string) error {
	cmd := base
	cmd.Name = name
	cmd.Args = args
	return p.runner.Run(ctx, cmd, onLine)
}

func (p *Pulumi) eventLogPath(workDir, op string) (string, error) {
	dir := filepath.Join(workDir, eventLogDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create event log directory: %w", err)
	}
	path := filepath.Join(dir, op+"-events.jsonl")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to clear event log: %w", err)
	}
	return path, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
