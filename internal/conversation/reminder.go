package conversation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/user/claimline/internal/session"
	"github.com/user/claimline/internal/types"
)

// remind pushes the missing-document reminder for a session the idle scan
// picked. It runs on the user's lane, so a turn that landed after the scan
// cancels it. UpdatedAt is left alone: a reminder is not user activity.
func (e *Engine) remind(ctx context.Context, ev *types.InboundEvent) error {
	sess, err := e.sessions.Get(ctx, ev.UserKey)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if !Remindable(sess) || sess.UpdatedAt.After(ev.ReceivedAt) {
		slog.Debug("reminder skipped", "user", ev.UserKey, "state", sess.State)
		return nil
	}

	if ev.Responder == nil {
		return fmt.Errorf("reminder for %s has no responder", ev.UserKey)
	}

	now := e.now().UTC()
	sess.RemindedAt = &now
	if err := e.sessions.Set(ctx, ev.UserKey, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if err := ev.Responder.Send(ctx, Reminder(sess)); err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}
	slog.Info("reminder sent", "user", ev.UserKey, "claim_id", sess.ClaimID, "missing", len(sess.MissingDocs()))
	return nil
}

// Remindable reports whether s is collecting documents, still misses some
// and has not been reminded since the user last wrote.
func Remindable(s *session.Session) bool {
	return s.State == session.StateUploadingDocuments &&
		len(s.MissingDocs()) > 0 &&
		(s.RemindedAt == nil || !s.RemindedAt.After(s.UpdatedAt))
}
