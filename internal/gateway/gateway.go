// Package gateway serialises chat turns per user and runs them on a bounded
// worker pool.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/claimline/internal/types"
)

// Handler processes one inbound event. conversation.Engine implements it.
type Handler interface {
	HandleEvent(ctx context.Context, ev *types.InboundEvent) error
}

// Gateway turns inbound events into runs on the user's lane.
type Gateway struct {
	handler     Handler
	Queue       *Queue
	turnTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithTurnTimeout bounds the time a single turn may take. Zero disables it.
func WithTurnTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.turnTimeout = d }
}

// New creates a Gateway that hands events to handler, running at most
// maxConcurrent turns at once.
func New(handler Handler, maxConcurrent int64, opts ...Option) *Gateway {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	g := &Gateway{
		handler: handler,
		Queue:   NewQueue(maxConcurrent),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.Queue.SetProcessor(g.process)
	return g
}

// Start initialises the gateway's context and starts the internal queue.
func (g *Gateway) Start(ctx context.Context) {
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.Queue.Start(g.ctx)
}

// Stop cancels the gateway context, stops the queue, and waits for any
// outstanding work to finish.
func (g *Gateway) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.Queue.Stop()
}

// RunOption configures optional behavior on a Run.
type RunOption func(*Run)

// WithOnComplete sets a callback invoked after the run finishes.
func WithOnComplete(fn func(*Run)) RunOption {
	return func(r *Run) { r.OnComplete = fn }
}

// HandleInbound wraps the event in a Run and enqueues it on its user's lane.
func (g *Gateway) HandleInbound(_ context.Context, event *types.InboundEvent, opts ...RunOption) error {
	if event.UserKey == "" {
		return fmt.Errorf("inbound event without user key")
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now()
	}
	run := NewRun(event)
	for _, opt := range opts {
		opt(run)
	}
	if err := g.Queue.Enqueue(run); err != nil {
		return fmt.Errorf("enqueue turn: %w", err)
	}
	slog.Debug("turn queued", "run_id", string(run.ID), "user", string(run.UserKey), "kind", event.Kind)
	return nil
}

func (g *Gateway) process(run *Run) error {
	ctx := run.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if g.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.turnTimeout)
		defer cancel()
	}

	started := time.Now()
	run.StartedAt = &started
	run.Status = RunStatusRunning

	err := g.handler.HandleEvent(ctx, run.Event)

	ended := time.Now()
	run.EndedAt = &ended
	run.Error = err
	if err != nil {
		run.Status = RunStatusFailed
	} else {
		run.Status = RunStatusComplete
	}
	slog.Debug("turn finished", "run_id", string(run.ID), "status", run.Status,
		"queued_ms", started.Sub(run.CreatedAt).Milliseconds(), "elapsed_ms", run.Elapsed().Milliseconds())
	if run.OnComplete != nil {
		run.OnComplete(run)
	}
	return err
}
