// Package scheduler runs the cron-driven missing-document reminders.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/user/claimline/internal/conversation"
	"github.com/user/claimline/internal/gateway"
	"github.com/user/claimline/internal/session"
	"github.com/user/claimline/internal/types"
)

// Dispatcher queues an event on its user's lane.
type Dispatcher interface {
	HandleInbound(ctx context.Context, ev *types.InboundEvent, opts ...gateway.RunOption) error
}

// Pusher delivers bot-initiated messages. delivery.Registry implements it.
type Pusher interface {
	Deliver(ctx context.Context, user types.UserKey, msgs ...types.OutboundMessage) error
}

// Options configure the reminder scan.
type Options struct {
	// Schedule is a cron expression; empty disables reminders.
	Schedule string
	// IdleAfter is how long a session must sit untouched before a reminder.
	IdleAfter time.Duration
}

// Reminders scans the session store on a cron schedule and queues one
// reminder per idle document-collecting session.
type Reminders struct {
	sessions   session.Store
	dispatcher Dispatcher
	pusher     Pusher
	opts       Options
	now        func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSchedule reports whether expr parses as a cron schedule.
func ValidateSchedule(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("parse cron schedule %q: %w", expr, err)
	}
	return nil
}

// New creates the reminder scheduler. Reminders are queued on dispatcher
// and, when their turn comes, pushed through pusher.
func New(sessions session.Store, dispatcher Dispatcher, pusher Pusher, opts Options) *Reminders {
	if opts.IdleAfter <= 0 {
		opts.IdleAfter = 24 * time.Hour
	}
	return &Reminders{
		sessions:   sessions,
		dispatcher: dispatcher,
		pusher:     pusher,
		opts:       opts,
		now:        time.Now,
	}
}

// Start registers the scan and starts the cron ticker. It does nothing when
// no schedule is configured.
func (r *Reminders) Start(ctx context.Context) error {
	if r.opts.Schedule == "" {
		slog.Info("reminders disabled")
		return nil
	}
	c := cron.New(cron.WithParser(cronParser))
	_, err := c.AddFunc(r.opts.Schedule, func() {
		if _, err := r.Scan(ctx); err != nil {
			slog.Error("reminder scan", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reminders: %w", err)
	}
	r.mu.Lock()
	r.cron = c
	r.mu.Unlock()
	c.Start()
	slog.Info("reminders scheduled", "schedule", r.opts.Schedule, "idle_after", r.opts.IdleAfter)
	return nil
}

// Stop stops the cron ticker and waits for a running scan.
func (r *Reminders) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// Scan queues a reminder for every session that qualifies now and returns
// how many were queued.
func (r *Reminders) Scan(ctx context.Context) (int, error) {
	entries, err := r.sessions.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}
	now := r.now().UTC()
	queued := 0
	for _, e := range entries {
		if !conversation.Remindable(e.Session) || now.Sub(e.Session.UpdatedAt) < r.opts.IdleAfter {
			continue
		}
		ev := &types.InboundEvent{
			Source:     "scheduler",
			UserKey:    e.UserKey,
			Kind:       types.EventReminder,
			ReceivedAt: now,
			Responder:  &pushResponder{pusher: r.pusher, user: e.UserKey},
		}
		if err := r.dispatcher.HandleInbound(ctx, ev); err != nil {
			slog.Error("queue reminder", "user", e.UserKey, "error", err)
			continue
		}
		queued++
	}
	if queued > 0 {
		slog.Info("reminders queued", "count", queued, "sessions", len(entries))
	}
	return queued, nil
}

// pushResponder sends through the delivery registry; reminders have no
// reply token.
type pushResponder struct {
	pusher Pusher
	user   types.UserKey
}

func (p *pushResponder) Send(ctx context.Context, msgs ...types.OutboundMessage) error {
	return p.pusher.Deliver(ctx, p.user, msgs...)
}
