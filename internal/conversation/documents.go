package conversation

import (
	"fmt"
	"log/slog"

	"github.com/user/claimline/internal/claim"
	"github.com/user/claimline/internal/intent"
	"github.com/user/claimline/internal/session"
	"github.com/user/claimline/internal/types"
)

// pendingName is the stash name of a license awaiting its owner.
func pendingName(img *types.Image) string {
	return string(claim.CategoryDrivingLicense) + "_pending." + img.Ext()
}

// intake classifies one document photo and files it under its slot.
// Unknown documents are discarded. A driving license on a claim with a
// counterpart is held until the customer says whose it is.
func (e *Engine) intake(t *turn, img *types.Image) {
	category := e.ai.Classify(t.ctx, img)
	if category == claim.CategoryUnknown {
		slog.Info("document not recognised", "claim_id", t.sess.ClaimID)
		t.sayText(unknownDocument(t.sess.MissingDocs()))
		return
	}
	fields := e.ai.Extract(t.ctx, img, category)

	if category == claim.CategoryDrivingLicense && t.sess.Counterpart == claim.CounterpartYes {
		e.stashLicense(t, img, fields)
		return
	}

	slot := claim.SlotKey(category, t.sess.UploadedDocs)
	if err := e.file(t, slot, img, fields); err != nil {
		slog.Error("store document", "claim_id", t.sess.ClaimID, "slot", slot, "error", err)
		t.sayText(msgStoreFailed)
		return
	}
	e.afterUpload(t, slot)
}

// stashLicense holds a license until its owner is known. A license is
// discarded when both owners are already filed or another one is still
// waiting for an answer; the state is left alone in both cases.
func (e *Engine) stashLicense(t *turn, img *types.Image, fields map[string]any) {
	_, haveCustomer := t.sess.UploadedDocs[claim.SlotDrivingLicenseCustomer]
	_, haveOther := t.sess.UploadedDocs[claim.SlotDrivingLicenseOtherParty]
	switch {
	case haveCustomer && haveOther:
		slog.Info("extra driving license discarded", "claim_id", t.sess.ClaimID)
		t.sayText(msgBothLicenses)
		if t.sess.State == session.StateReadyToSubmit {
			t.say(submitPrompt())
		}
		return
	case t.sess.Pending != nil:
		slog.Info("driving license discarded while another awaits ownership", "claim_id", t.sess.ClaimID)
		t.sayText(msgLicensePending)
		t.say(ownershipQuestion(t.sess.Pending.Fields))
		return
	}

	t.sess.Pending = &session.PendingUpload{
		Filename:    pendingName(img),
		Fields:      fields,
		Data:        img.Data,
		ContentType: img.ContentType,
	}
	t.sess.State = session.StateAwaitingOwnership
	t.say(ownershipQuestion(fields))
}

// file persists the image, records it on the claim and marks the slot filled.
func (e *Engine) file(t *turn, slot string, img *types.Image, fields map[string]any) error {
	claimID := t.sess.ClaimID
	filename, err := e.docs.Save(t.ctx, claimID, slot, img)
	if err != nil {
		return fmt.Errorf("save image: %w", err)
	}
	if err := e.claims.AddDocument(t.ctx, claimID, slot, filename); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	if err := e.claims.MergeExtractedFields(t.ctx, claimID, slot, fields); err != nil {
		return fmt.Errorf("merge fields: %w", err)
	}
	if t.sess.UploadedDocs == nil {
		t.sess.UploadedDocs = map[string]string{}
	}
	t.sess.UploadedDocs[slot] = filename
	slog.Info("document stored", "claim_id", claimID, "slot", slot, "filename", filename)
	return nil
}

// afterUpload recomputes completeness and picks the next state. A license
// still waiting for its owner keeps the user in awaiting_ownership.
func (e *Engine) afterUpload(t *turn, slot string) {
	t.sayText(documentReceived(slot, t.sess))
	switch {
	case t.sess.Pending != nil:
		t.sess.State = session.StateAwaitingOwnership
		t.say(ownershipQuestion(t.sess.Pending.Fields))
	case len(t.sess.MissingDocs()) == 0:
		t.sess.State = session.StateReadyToSubmit
		t.say(submitPrompt())
	default:
		t.sess.State = session.StateUploadingDocuments
	}
}

func (e *Engine) answerOwnership(t *turn, text string) {
	slot, ok := intent.ParseOwnership(text)
	if !ok {
		t.say(types.OutboundMessage{Text: msgOwnershipInvalid, Choices: ownershipChoices})
		return
	}
	if _, taken := t.sess.UploadedDocs[slot]; taken {
		t.say(types.OutboundMessage{Text: fmt.Sprintf(msgOwnershipTaken, slot, slot), Choices: ownershipChoices})
		return
	}
	pending := t.sess.Pending
	if pending == nil {
		slog.Warn("ownership answer without pending license", "claim_id", t.sess.ClaimID)
		t.sess.State = session.StateUploadingDocuments
		t.sayText(msgNoPending)
		return
	}

	img := &types.Image{Data: pending.Data, ContentType: pending.ContentType}
	if err := e.file(t, slot, img, pending.Fields); err != nil {
		slog.Error("store document", "claim_id", t.sess.ClaimID, "slot", slot, "error", err)
		t.sayText(msgStoreFailed)
		return
	}
	t.sess.Pending = nil
	e.afterUpload(t, slot)
}
