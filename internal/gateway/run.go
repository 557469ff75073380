package gateway

import (
	"context"
	"time"

	"github.com/user/claimline/internal/types"
)

// RunStatus represents the lifecycle state of a Run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run tracks one inbound event on its way through a user's lane.
type Run struct {
	ID         types.RunID
	UserKey    types.UserKey
	Event      *types.InboundEvent
	Status     RunStatus
	CreatedAt  time.Time
	StartedAt  *time.Time
	EndedAt    *time.Time
	Error      error
	Ctx        context.Context
	OnComplete func(*Run)
}

// NewRun creates a Run in the Queued state for the event's user.
func NewRun(event *types.InboundEvent) *Run {
	return &Run{
		ID:        types.NewRunID(),
		UserKey:   event.UserKey,
		Event:     event,
		Status:    RunStatusQueued,
		CreatedAt: time.Now(),
	}
}

// Elapsed is the processing time of a finished run.
func (r *Run) Elapsed() time.Duration {
	if r.StartedAt == nil || r.EndedAt == nil {
		return 0
	}
	return r.EndedAt.Sub(*r.StartedAt)
}
