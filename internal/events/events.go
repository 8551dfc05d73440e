// Package events publishes stack lifecycle notifications.
package events

import (
	"context"
	"time"
)

// Event topic constants
const (
	TopicStackGenerated = "infraviz.stack.generated"
	TopicStackUpdated   = "infraviz.stack.updated"
	TopicStackDeploy    = "infraviz.stack.deploy"

	// TopicAll matches every infraviz topic.
	TopicAll = "infraviz.>"
)

// StackChanged is published after a stack is generated or updated.
type StackChanged struct {
	StackID   string    `json:"stack_id"`
	Resources int       `json:"resources"`
	Edges     int       `json:"edges"`
	TotalCost float64   `json:"total_cost"`
	Static    bool      `json:"static"` // extracted by pattern matching, not by the engine
	At        time.Time `json:"at"`
}

// DeployFinished is published when a deploy attempt ends.
type DeployFinished struct {
	StackID string    `json:"stack_id"`
	Status  string    `json:"status"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Publisher publishes events to the event bus.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
