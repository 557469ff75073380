package conversation

import (
	"log/slog"

	"github.com/user/claimline/internal/claim"
	"github.com/user/claimline/internal/intent"
	"github.com/user/claimline/internal/session"
	"github.com/user/claimline/internal/types"
)

func (e *Engine) trigger(t *turn, text string) {
	detected := intent.DetectClaimType(text)
	if claimType, ok := detected.ClaimType(); ok {
		e.startClaim(t, claimType)
		return
	}
	slog.Debug("claim type not detected", "user", t.user, "detection", detected)
	t.sess = session.New(session.StateDetectingClaimType)
	t.say(types.OutboundMessage{Text: msgChooseClaimType, Choices: claimTypeChoices})
}

func (e *Engine) chooseClaimType(t *turn, text string) {
	claimType, ok := intent.ParseClaimTypeChoice(text)
	if !ok {
		t.say(types.OutboundMessage{Text: msgChooseClaimType, Choices: claimTypeChoices})
		return
	}
	e.startClaim(t, claimType)
}

// startClaim allocates an id, creates the Draft record and moves the user to
// policy verification. Failures leave the user idle.
func (e *Engine) startClaim(t *turn, claimType claim.Type) {
	claimID, err := e.ids.Next(claimType)
	if err != nil {
		slog.Error("allocate claim id", "type", claimType, "error", err)
		t.sess = session.New(session.StateIdle)
		t.sayText(msgSystemError)
		return
	}
	if err := e.claims.Create(t.ctx, claimID, claimType, t.user, claim.CounterpartUnknown); err != nil {
		slog.Error("create claim", "claim_id", claimID, "error", err)
		t.sess = session.New(session.StateIdle)
		t.sayText(msgSystemError)
		return
	}
	t.sess = session.ForClaim(claimID, claimType)
	slog.Info("claim started", "claim_id", claimID, "type", claimType)
	t.sayText(claimCreated(claimID, claimType))
	t.sayText(identityRequest(claimType))
}
