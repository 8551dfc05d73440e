package service

import (
	"context"
	"fmt"

	"github.com/picklr-io/infraviz/internal/deploy"
	"github.com/picklr-io/infraviz/internal/events"
	"github.com/picklr-io/infraviz/internal/logging"
)

// Deploy applies a stack with the current session. Every outcome, including
// an unknown stack or a missing session, is reported in the Result.
func (s *Service) Deploy(ctx context.Context, stackID string) deploy.Result {
	rec, ok := s.opts.Stacks.Get(stackID)
	if !ok {
		return deploy.Result{
			Status:  deploy.StatusFailed,
			Message: fmt.Sprintf("Stack %q not found", stackID),
			Logs:    []string{},
		}
	}

	sess, ok := s.opts.Sessions.Get()
	if !ok {
		return deploy.Result{
			Status:  deploy.StatusNotConfigured,
			Message: "Pulumi is not configured.",
			Logs:    []string{},
		}
	}

	if !s.EngineAvailable(ctx) {
		return deploy.Result{
			Status:  deploy.StatusFailed,
			Message: EngineMissingMessage,
			Logs:    []string{EngineMissingLog},
		}
	}

	res := s.orchestrator.Run(ctx, rec, sess)

	if after, ok := s.opts.Stacks.Get(stackID); ok {
		after.UpdatedAt = s.opts.Now()
		s.opts.Stacks.Put(after)
		s.afterWrite(ctx, after, events.TopicStackDeploy, events.DeployFinished{
			StackID: stackID,
			Status:  res.Status,
			Message: res.Message,
			At:      after.UpdatedAt,
		})
	} else {
		logging.ForStack(stackID).Warn("stack disappeared during deploy")
	}
	return res
}
