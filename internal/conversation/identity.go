package conversation

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/user/claimline/internal/claim"
	"github.com/user/claimline/internal/docai"
	"github.com/user/claimline/internal/intent"
	"github.com/user/claimline/internal/policy"
	"github.com/user/claimline/internal/session"
	"github.com/user/claimline/internal/types"
)

// verifyText looks the policy up from a typed national ID, plate or name.
func (e *Engine) verifyText(t *turn, text string) {
	kind := t.sess.ClaimType
	var (
		found []policy.Policy
		err   error
	)
	if id, ok := intent.NationalID(text); ok {
		found, err = e.policies.FindByCitizenID(t.ctx, kind, id)
	} else if kind == claim.TypeCD {
		found, err = e.policies.FindByPlate(t.ctx, text)
		if err == nil && len(found) == 0 {
			found, err = e.policies.FindByName(t.ctx, kind, text)
		}
	} else {
		found, err = e.policies.FindByCitizenID(t.ctx, kind, intent.CleanIdentifier(text))
		if err == nil && len(found) == 0 {
			found, err = e.policies.FindByName(t.ctx, kind, text)
		}
	}
	if err != nil {
		slog.Error("policy lookup", "claim_id", t.sess.ClaimID, "error", err)
		t.sayText(msgSystemError)
		return
	}
	e.resolveCandidates(t, found)
}

// verifyPhoto reads an ID card, driving license or plate from a photo.
// An unreadable photo ends the attempt; the user sends another.
func (e *Engine) verifyPhoto(t *turn, img *types.Image) {
	kind := t.sess.ClaimType
	id := e.ai.ResolveIdentity(t.ctx, img)

	var (
		found []policy.Policy
		err   error
	)
	switch {
	case id.Type == docai.IdentityIDCard || id.Type == docai.IdentityDrivingLicense:
		found, err = e.policies.FindByCitizenID(t.ctx, kind, id.Value)
	case id.Type == docai.IdentityLicensePlate && kind == claim.TypeCD:
		found, err = e.policies.FindByPlate(t.ctx, id.Value)
	default:
		t.sayText(msgUnreadableIdentity)
		return
	}
	if err != nil {
		slog.Error("policy lookup", "claim_id", t.sess.ClaimID, "error", err)
		t.sayText(msgSystemError)
		return
	}
	e.resolveCandidates(t, found)
}

func (e *Engine) resolveCandidates(t *turn, found []policy.Policy) {
	slog.Info("policy lookup", "claim_id", t.sess.ClaimID, "candidates", len(found))
	switch len(found) {
	case 0:
		t.sayText(msgPolicyNotFound)
	case 1:
		e.applyPolicy(t, &found[0])
	default:
		t.sess.SearchResults = found
		t.sess.State = session.StateWaitingForVehicleSelection
		t.say(selectionPrompt(found))
	}
}

// selectCandidate accepts only an exact match against a stored candidate.
func (e *Engine) selectCandidate(t *turn, text string) {
	want := intent.ParseSelection(text)
	for i := range t.sess.SearchResults {
		p := &t.sess.SearchResults[i]
		if want != "" && (want == p.Label() || want == p.Plate || want == p.PolicyNumber) {
			e.applyPolicy(t, p)
			return
		}
	}
	t.say(types.OutboundMessage{Text: msgSelectionMissing, Choices: selectionChoices(t.sess.SearchResults)})
}

// applyPolicy snapshots an active policy and moves the claim on. Inactive
// policies are reported and the state is left alone.
func (e *Engine) applyPolicy(t *turn, p *policy.Policy) {
	if !p.Active() {
		slog.Info("policy not active", "claim_id", t.sess.ClaimID, "status", p.Status)
		if strings.EqualFold(p.Status, policy.StatusExpired) {
			t.sayText(fmt.Sprintf(msgPolicyExpired, p.InsuranceCompany))
		} else {
			t.sayText(msgPolicyInactive)
		}
		return
	}

	snapshot := *p
	t.sess.Policy = &snapshot
	t.sayText(policyCard(&snapshot))

	if t.sess.ClaimType == claim.TypeCD {
		t.sess.State = session.StateWaitingForCounterpart
		t.say(types.OutboundMessage{Text: msgCounterpartQuestion, Choices: counterpartChoices})
		return
	}
	t.sess.State = session.StateUploadingDocuments
	t.sayText(checklist(t.sess))
}

func (e *Engine) answerCounterpart(t *turn, text string) {
	c, ok := intent.ParseCounterpart(text)
	if !ok {
		t.say(types.OutboundMessage{Text: msgChooseFromButtons, Choices: counterpartChoices})
		return
	}
	t.sess.Counterpart = c
	if err := e.claims.SetCounterpart(t.ctx, t.sess.ClaimID, c); err != nil {
		slog.Error("record counterpart", "claim_id", t.sess.ClaimID, "error", err)
	}
	t.sess.State = session.StateUploadingDocuments
	t.sayText(checklist(t.sess))
}
