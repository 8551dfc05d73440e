package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/picklr-io/infraviz/internal/ir"
	"github.com/picklr-io/infraviz/internal/logging"
	"github.com/picklr-io/infraviz/internal/session"
)

// Session configuration statuses.
const (
	SessionConfigured   = "configured"
	SessionInvalidToken = "invalid_token"
	SessionNetworkError = "network_error"
)

// SessionResult is the outcome of ConfigureSession.
type SessionResult struct {
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode,omitempty"`
	User       string `json:"user,omitempty"`
	Message    string `json:"message"`
}

// ConfigureSession validates token and, if the cloud accepts it, replaces
// the deploy session. environment is an optional secrets-environment
// reference ("env" or "project/env").
func (s *Service) ConfigureSession(ctx context.Context, token, org, environment string) SessionResult {
	token = strings.TrimSpace(token)
	user, err := s.opts.Validator.Validate(ctx, token)
	if err != nil {
		var invalid *session.InvalidTokenError
		if errors.As(err, &invalid) {
			logging.Info("rejected access token", "status", invalid.StatusCode)
			return SessionResult{
				Status:     SessionInvalidToken,
				StatusCode: invalid.StatusCode,
				Message: fmt.Sprintf("Invalid Pulumi access token (HTTP %d). "+
					"Check your token at app.pulumi.com/account/tokens and try again.", invalid.StatusCode),
			}
		}
		logging.Warn("failed to validate access token", "error", err)
		return SessionResult{
			Status:  SessionNetworkError,
			Message: fmt.Sprintf("Failed to reach Pulumi Cloud: %s", err),
		}
	}

	display := user.DisplayName(org)
	s.opts.Sessions.Configure(ir.Session{
		AccessToken:  token,
		Org:          org,
		Environment:  strings.TrimSpace(environment),
		User:         display,
		ConfiguredAt: s.opts.Now(),
	})
	logging.Info("deploy session configured", "org", org, "user", display)

	msg := fmt.Sprintf("Pulumi connected: logged in as %s (org: %s).", display, org)
	if environment != "" {
		msg += fmt.Sprintf("\nESC environment: %s/%s. Credentials will be injected at deploy time.", org, environment)
	} else {
		msg += "\nNo ESC environment set. Credentials will be read from the server environment."
	}
	return SessionResult{Status: SessionConfigured, User: display, Message: msg}
}

// ClearSession forgets the deploy session.
func (s *Service) ClearSession() {
	s.opts.Sessions.Clear()
	logging.Info("deploy session cleared")
}

// Session returns the current deploy session.
func (s *Service) Session() (ir.Session, bool) {
	return s.opts.Sessions.Get()
}
