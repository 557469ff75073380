package conversation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/user/claimline/internal/claim"
	"github.com/user/claimline/internal/docai"
	"github.com/user/claimline/internal/session"
	"github.com/user/claimline/internal/types"
)

// submit re-checks completeness, marks the claim Submitted and confirms.
// The summary is written after the confirmation goes out and never blocks it.
func (e *Engine) submit(t *turn) {
	if missing := t.sess.MissingDocs(); len(missing) > 0 {
		t.sayText(missingDocuments(missing))
		return
	}

	claimID := t.sess.ClaimID
	now := e.now().UTC()
	err := e.claims.UpdateStatus(t.ctx, claimID, types.StatusUpdate{
		Status:      claim.StatusSubmitted,
		SubmittedAt: &now,
	})
	if err != nil {
		slog.Error("submit claim", "claim_id", claimID, "error", err)
		t.sayText(msgSystemError)
		return
	}
	t.sess.State = session.StateSubmitted
	slog.Info("claim submitted", "claim_id", claimID, "documents", len(t.sess.UploadedDocs))
	t.sayText(fmt.Sprintf(msgSubmitted, claimID))
	t.flush()

	e.writeSummary(t.ctx, t.sess)
}

func (e *Engine) writeSummary(ctx context.Context, s *session.Session) {
	extracted, err := e.claims.ExtractedFields(ctx, s.ClaimID)
	if err != nil {
		slog.Warn("load extracted fields", "claim_id", s.ClaimID, "error", err)
		extracted = map[string]any{}
	}
	req := docai.SummaryRequest{
		ClaimID:        s.ClaimID,
		ClaimType:      s.ClaimType,
		Counterpart:    s.Counterpart,
		Extracted:      extracted,
		AdditionalInfo: s.AdditionalInfo,
	}
	if s.Policy != nil {
		req.PolicyNumber = s.Policy.PolicyNumber
	}
	text, err := e.ai.Summarize(ctx, req)
	if err != nil {
		slog.Error("generate summary", "claim_id", s.ClaimID, "error", err)
		return
	}
	if err := e.claims.SaveSummary(ctx, s.ClaimID, text); err != nil {
		slog.Error("save summary", "claim_id", s.ClaimID, "error", err)
		return
	}
	slog.Info("summary saved", "claim_id", s.ClaimID)
}
