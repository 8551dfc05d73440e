// Package service implements the user-facing operations: generating and
// updating stacks, configuring the deploy session, and deploying.
package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/picklr-io/infraviz/internal/cost"
	"github.com/picklr-io/infraviz/internal/deploy"
	"github.com/picklr-io/infraviz/internal/events"
	"github.com/picklr-io/infraviz/internal/extract"
	"github.com/picklr-io/infraviz/internal/generator"
	"github.com/picklr-io/infraviz/internal/graph"
	"github.com/picklr-io/infraviz/internal/idgen"
	"github.com/picklr-io/infraviz/internal/ir"
	"github.com/picklr-io/infraviz/internal/logging"
	"github.com/picklr-io/infraviz/internal/program"
	"github.com/picklr-io/infraviz/internal/session"
	"github.com/picklr-io/infraviz/internal/snapshot"
	"github.com/picklr-io/infraviz/internal/store"
)

// ErrStackNotFound is returned for stack ids that were never generated.
var ErrStackNotFound = errors.New("stack not found")

// Messages returned when the engine cannot be executed on this host.
const (
	EngineMissingMessage = "Pulumi CLI is not available on this server. Install it with: curl -fsSL https://get.pulumi.com | sh"
	EngineMissingLog     = "[error] Pulumi CLI not found. Run: curl -fsSL https://get.pulumi.com | sh, then restart the server."
)

// EngineChecker reports whether the engine can run at all.
type EngineChecker interface {
	Check(ctx context.Context) error
}

// TokenValidator resolves an access token to its user.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*session.User, error)
}

// Options wires a Service. Stacks, Sessions, Costs and Publisher default to
// fresh in-memory values; Snapshots may be nil.
type Options struct {
	WorkRoot  string
	Generator generator.Generator
	Dynamic   extract.Extractor // engine-backed extraction, tried first when the engine is available
	Deployer  deploy.Deployer
	Engine    EngineChecker
	Validator TokenValidator
	Costs     *cost.Table
	Stacks    *store.StackStore
	Sessions  *store.SessionStore
	Publisher events.Publisher
	Snapshots snapshot.Backend

	NewID func() (string, error)
	Now   func() time.Time
}

// Service is safe for concurrent use. Concurrent writes to the same stack
// are not serialized: the last write wins.
type Service struct {
	opts         Options
	orchestrator *deploy.Orchestrator

	engineMu      sync.Mutex
	engineChecked bool
	engineErr     error
}

func New(opts Options) *Service {
	if opts.Costs == nil {
		opts.Costs = cost.DefaultTable()
	}
	if opts.Stacks == nil {
		opts.Stacks = store.NewStackStore()
	}
	if opts.Sessions == nil {
		opts.Sessions = store.NewSessionStore()
	}
	if opts.Publisher == nil {
		opts.Publisher = &events.NoopPublisher{}
	}
	if opts.NewID == nil {
		opts.NewID = idgen.StackID
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		opts:         opts,
		orchestrator: deploy.NewOrchestrator(opts.Deployer, opts.Stacks),
	}
}

// GraphResult is what Generate and Update return.
type GraphResult struct {
	StackID         string         `json:"stackId"`
	Nodes           []ir.GraphNode `json:"nodes"`
	Edges           []ir.GraphEdge `json:"edges"`
	TotalCost       float64        `json:"totalEstimatedCost"`
	Description     string         `json:"description"`
	EngineAvailable bool           `json:"subprocessSupported"`
}

// Summary is a one-line description of the result.
func (r *GraphResult) Summary() string {
	return fmt.Sprintf("%d resources, ~$%.2f/mo. Stack ID: %s", len(r.Nodes), r.TotalCost, r.StackID)
}

// EngineAvailable checks once whether the engine runs on this host and
// caches the answer for the life of the Service. FromConfig runs the check at
// start-up. A check cut short by ctx is not cached.
func (s *Service) EngineAvailable(ctx context.Context) bool {
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	if s.engineChecked {
		return s.engineErr == nil
	}

	var err error
	if s.opts.Engine == nil {
		err = errors.New("no engine configured")
	} else {
		err = s.opts.Engine.Check(ctx)
	}
	if err != nil && ctx.Err() != nil {
		logging.Debug("engine check interrupted", "error", err)
		return false
	}

	s.engineChecked = true
	s.engineErr = err
	if err != nil {
		logging.Info("engine unavailable, using static extraction", "error", err)
	} else {
		logging.Info("engine available")
	}
	return err == nil
}

// Generate creates a new stack from a description.
func (s *Service) Generate(ctx context.Context, description string) (*GraphResult, error) {
	id, err := s.opts.NewID()
	if err != nil {
		return nil, err
	}
	workDir := filepath.Join(s.opts.WorkRoot, "infra-"+id)
	log := logging.ForStack(id)

	code, err := s.opts.Generator.Generate(ctx, description)
	if err != nil {
		return nil, err
	}

	nodes, edges, err := s.buildGraph(ctx, id, workDir, code)
	if err != nil {
		return nil, err
	}

	now := s.opts.Now()
	rec := &ir.StackRecord{
		StackID:       id,
		Program:       code,
		ProgramDigest: Digest(code),
		WorkDir:       workDir,
		Nodes:         nodes,
		Edges:         edges,
		TotalCost:     cost.Total(nodes),
		DeployStatus:  ir.StatusIdle,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.opts.Stacks.Put(rec)
	log.Info("stack generated", "resources", len(nodes), "edges", len(edges), "cost", rec.TotalCost)

	s.afterWrite(ctx, rec, events.TopicStackGenerated, s.changed(rec))
	return s.result(ctx, rec, description), nil
}

// Update revises an existing stack's program, rewrites the work directory
// and rebuilds the graph there, even when the program text is unchanged.
// Deploy status and creation time are kept.
func (s *Service) Update(ctx context.Context, stackID, change string) (*GraphResult, error) {
	rec, ok := s.opts.Stacks.Get(stackID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStackNotFound, stackID)
	}
	log := logging.ForStack(stackID)

	code, err := s.opts.Generator.Update(ctx, rec.Program, change)
	if err != nil {
		return nil, err
	}

	nodes, edges, err := s.buildGraph(ctx, stackID, rec.WorkDir, code)
	if err != nil {
		return nil, err
	}
	digest := Digest(code)
	if digest == rec.ProgramDigest {
		log.Debug("program unchanged, work dir rewritten")
	}
	rec.Program = code
	rec.ProgramDigest = digest
	rec.Nodes = nodes
	rec.Edges = edges
	rec.TotalCost = cost.Total(nodes)
	rec.UpdatedAt = s.opts.Now()
	s.opts.Stacks.Put(rec)
	log.Info("stack updated", "resources", len(rec.Nodes), "edges", len(rec.Edges), "cost", rec.TotalCost)

	s.afterWrite(ctx, rec, events.TopicStackUpdated, s.changed(rec))
	return s.result(ctx, rec, change), nil
}

// Stack returns a copy of a stack's record.
func (s *Service) Stack(stackID string) (*ir.StackRecord, bool) {
	return s.opts.Stacks.Get(stackID)
}

// Stacks returns copies of all records, oldest first.
func (s *Service) Stacks() []*ir.StackRecord {
	return s.opts.Stacks.List()
}

// buildGraph writes the program and extracts, lays out and prices its resources.
func (s *Service) buildGraph(ctx context.Context, stackID, workDir, code string) ([]ir.GraphNode, []ir.GraphEdge, error) {
	if err := program.Write(workDir, code); err != nil {
		return nil, nil, err
	}

	extractor := extract.Fallback{Secondary: extract.Static{}}
	if s.opts.Dynamic != nil && s.EngineAvailable(ctx) {
		extractor.Primary = s.opts.Dynamic
	}
	evs, err := extractor.Extract(ctx, extract.Target{StackID: stackID, WorkDir: workDir, Program: code})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to extract resources of stack %s: %w", stackID, err)
	}

	nodes, edges := graph.Build(evs)
	s.opts.Costs.Annotate(nodes)
	return nodes, edges, nil
}

func (s *Service) result(ctx context.Context, rec *ir.StackRecord, description string) *GraphResult {
	return &GraphResult{
		StackID:         rec.StackID,
		Nodes:           rec.Nodes,
		Edges:           rec.Edges,
		TotalCost:       rec.TotalCost,
		Description:     description,
		EngineAvailable: s.EngineAvailable(ctx),
	}
}

func (s *Service) changed(rec *ir.StackRecord) events.StackChanged {
	return events.StackChanged{
		StackID:   rec.StackID,
		Resources: len(rec.Nodes),
		Edges:     len(rec.Edges),
		TotalCost: rec.TotalCost,
		At:        rec.UpdatedAt,
	}
}

// afterWrite publishes a lifecycle event and exports a snapshot. Failures
// are logged and never affect the operation.
func (s *Service) afterWrite(ctx context.Context, rec *ir.StackRecord, topic string, event any) {
	log := logging.ForStack(rec.StackID)
	if err := s.opts.Publisher.Publish(ctx, topic, event); err != nil {
		log.Warn("failed to publish event", "topic", topic, "error", err)
	}
	if s.opts.Snapshots != nil {
		if err := snapshot.Export(ctx, s.opts.Snapshots, rec); err != nil {
			log.Warn("failed to export snapshot", "error", err)
		}
	}
}

// Restore loads snapshots of stacks this process does not know yet. It
// returns the number of stacks restored.
func (s *Service) Restore(ctx context.Context) (int, error) {
	if s.opts.Snapshots == nil {
		return 0, nil
	}
	records, err := snapshot.Restore(ctx, s.opts.Snapshots)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, rec := range records {
		if _, ok := s.opts.Stacks.Get(rec.StackID); ok {
			continue
		}
		if rec.DeployStatus == ir.StatusDeploying {
			// The deploy did not survive the restart.
			rec.DeployStatus = ir.StatusFailed
		}
		s.opts.Stacks.Put(rec)
		n++
	}
	logging.Info("restored stacks from snapshots", "count", n)
	return n, nil
}

// Digest fingerprints program text.
func Digest(code string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(code))
}
