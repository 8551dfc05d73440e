// Package deploy runs real applies of generated stacks and reports the
// outcome with a bounded log.
package deploy

import (
	"context"
	"fmt"

	"github.com/picklr-io/infraviz/internal/engine"
	"github.com/picklr-io/infraviz/internal/ir"
	"github.com/picklr-io/infraviz/internal/logging"
)

// Result statuses.
const (
	StatusDeployed      = "deployed"
	StatusFailed        = "failed"
	StatusNotConfigured = "not_configured"
)

// Result is the outcome of a deploy request.
type Result struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Logs    []string `json:"logs"`
}

// Deployer applies a program against the cloud backend.
type Deployer interface {
	Deploy(ctx context.Context, req engine.DeployRequest, sink func(string)) error
}

// StatusStore records stack status transitions.
type StatusStore interface {
	SetStatus(id string, status ir.DeployStatus) bool
}

// Orchestrator drives one deploy at a time per call. It does not serialize
// concurrent deploys of the same stack.
type Orchestrator struct {
	deployer Deployer
	stacks   StatusStore
}

func NewOrchestrator(deployer Deployer, stacks StatusStore) *Orchestrator {
	return &Orchestrator{deployer: deployer, stacks: stacks}
}

// Run deploys rec with the credentials in sess. The stack moves to
// deploying, then to deployed or failed. Engine errors are reported in the
// Result, never returned. There is no retry and no rollback.
func (o *Orchestrator) Run(ctx context.Context, rec *ir.StackRecord, sess ir.Session) Result {
	log := logging.ForStack(rec.StackID)
	logs := &logBuffer{}

	o.stacks.SetStatus(rec.StackID, ir.StatusDeploying)
	log.Info("deploy started", "org", sess.Org, "environment", sess.Environment)

	err := o.deployer.Deploy(ctx, engine.DeployRequest{
		WorkDir:     rec.WorkDir,
		StackID:     rec.StackID,
		Token:       sess.AccessToken,
		Org:         sess.Org,
		Environment: sess.Environment,
	}, logs.add)

	if err != nil {
		logs.add(fmt.Sprintf("[error] %s", err))
		o.stacks.SetStatus(rec.StackID, ir.StatusFailed)
		log.Warn("deploy failed", "error", err)
		return Result{
			Status:  StatusFailed,
			Message: fmt.Sprintf("Deploy failed: %s", err),
			Logs:    TrimLogs(logs.snapshot()),
		}
	}

	o.stacks.SetStatus(rec.StackID, ir.StatusDeployed)
	raw := logs.snapshot()
	created := CountCreated(raw)
	log.Info("deploy finished", "created", created)
	return Result{
		Status:  StatusDeployed,
		Message: fmt.Sprintf("Deployed successfully. ~%d resources created.", created),
		Logs:    TrimLogs(raw),
	}
}
