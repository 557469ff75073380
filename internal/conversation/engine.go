// Package conversation drives the claim intake chat: one inbound event in,
// the session advanced, the claim record updated and the replies sent.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/user/claimline/internal/claim"
	"github.com/user/claimline/internal/docai"
	"github.com/user/claimline/internal/intent"
	"github.com/user/claimline/internal/policy"
	"github.com/user/claimline/internal/session"
	"github.com/user/claimline/internal/types"
)

// DocumentAI is the classifier/extractor gateway the engine depends on.
// docai.Service implements it.
type DocumentAI interface {
	Classify(ctx context.Context, img *types.Image) claim.Category
	Extract(ctx context.Context, img *types.Image, category claim.Category) map[string]any
	ResolveIdentity(ctx context.Context, img *types.Image) docai.Identity
	Summarize(ctx context.Context, req docai.SummaryRequest) (string, error)
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Sessions  session.Store
	Claims    types.ClaimRepository
	Documents types.DocumentStore
	IDs       types.ClaimIDGenerator
	Policies  policy.Directory
	AI        DocumentAI
}

// Engine is the intake state machine. It keeps no per-user state of its own;
// callers serialise turns for the same user.
type Engine struct {
	sessions session.Store
	claims   types.ClaimRepository
	docs     types.DocumentStore
	ids      types.ClaimIDGenerator
	policies policy.Directory
	ai       DocumentAI
	now      func() time.Time
}

// New creates an Engine.
func New(d Deps) *Engine {
	return &Engine{
		sessions: d.Sessions,
		claims:   d.Claims,
		docs:     d.Documents,
		ids:      d.IDs,
		policies: d.Policies,
		ai:       d.AI,
		now:      time.Now,
	}
}

// turn is the working state of one inbound event.
type turn struct {
	ctx       context.Context
	user      types.UserKey
	sess      *session.Session
	responder types.Responder
	out       []types.OutboundMessage
	sendErr   error
}

func (t *turn) say(msgs ...types.OutboundMessage) {
	t.out = append(t.out, msgs...)
}

func (t *turn) sayText(text string) {
	t.say(types.Text(text))
}

// flush sends everything said so far. Only the first send error is kept.
func (t *turn) flush() {
	if len(t.out) == 0 {
		return
	}
	msgs := t.out
	t.out = nil
	if t.responder == nil {
		slog.Warn("no responder for turn, dropping replies", "user", t.user, "count", len(msgs))
		return
	}
	if err := t.responder.Send(t.ctx, msgs...); err != nil {
		slog.Error("send replies", "user", t.user, "error", err)
		if t.sendErr == nil {
			t.sendErr = err
		}
	}
}

// HandleEvent runs one turn for ev. The session is saved before replies go
// out. The returned error reports session persistence or reply delivery
// failures; business outcomes are always answered in chat.
func (e *Engine) HandleEvent(ctx context.Context, ev *types.InboundEvent) error {
	if ev.Kind == types.EventReminder {
		return e.remind(ctx, ev)
	}
	start := e.now()
	sess, err := e.sessions.Get(ctx, ev.UserKey)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if sess.UploadedDocs == nil {
		sess.UploadedDocs = map[string]string{}
	}
	startClaim := sess.ClaimID
	startState := sess.State

	t := &turn{ctx: ctx, user: ev.UserKey, sess: sess, responder: ev.Responder}
	switch ev.Kind {
	case types.EventText:
		e.handleText(t, strings.TrimSpace(ev.Text))
	case types.EventImage:
		e.handleImage(t, ev.FetchImage)
	default:
		slog.Debug("ignoring event", "user", ev.UserKey, "kind", ev.Kind)
		return nil
	}

	t.sess.UpdatedAt = e.now().UTC()
	if err := e.sessions.Set(ctx, ev.UserKey, t.sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	t.flush()

	elapsed := e.now().Sub(start)
	claimID := t.sess.ClaimID
	if claimID == "" {
		claimID = startClaim
	}
	if claimID != "" {
		if err := e.claims.RecordResponseTime(ctx, claimID, elapsed); err != nil {
			slog.Warn("record response time", "claim_id", claimID, "error", err)
		}
	}
	slog.Info("turn handled", "user", ev.UserKey, "kind", ev.Kind,
		"from", startState, "to", t.sess.State, "elapsed_ms", elapsed.Milliseconds())
	return t.sendErr
}

func (e *Engine) handleText(t *turn, text string) {
	state := t.sess.State
	switch {
	case intent.IsCancel(text):
		e.cancel(t)
	case state == session.StateDetectingClaimType:
		e.chooseClaimType(t, text)
	case (state == session.StateIdle || state == session.StateSubmitted) && intent.IsTrigger(text):
		e.trigger(t, text)
	case state == session.StateVerifyingPolicy:
		e.verifyText(t, text)
	case state == session.StateWaitingForVehicleSelection:
		e.selectCandidate(t, text)
	case state == session.StateWaitingForCounterpart:
		e.answerCounterpart(t, text)
	case state == session.StateAwaitingOwnership:
		e.answerOwnership(t, text)
	case (state == session.StateUploadingDocuments || state == session.StateReadyToSubmit) && intent.IsSubmit(text):
		e.submit(t)
	case state == session.StateUploadingDocuments:
		t.sayText(msgUploadReminder)
	case state == session.StateReadyToSubmit:
		e.saveNote(t, text)
	case state == session.StateSubmitted:
		t.sayText(fmt.Sprintf(msgAlreadySubmitted, t.sess.ClaimID))
		t.sess = session.New(session.StateIdle)
	default:
		t.sayText(msgWelcome)
	}
}

func (e *Engine) handleImage(t *turn, fetch types.ImageFetcher) {
	switch t.sess.State {
	case session.StateVerifyingPolicy:
		t.sayText(msgCheckingIdentity)
		t.flush()
		if img, ok := e.fetchImage(t, fetch); ok {
			e.verifyPhoto(t, img)
		}
	case session.StateUploadingDocuments, session.StateAwaitingOwnership, session.StateReadyToSubmit:
		t.sayText(msgAnalysing)
		t.flush()
		if img, ok := e.fetchImage(t, fetch); ok {
			e.intake(t, img)
		}
	default:
		t.sayText(msgTypeClaimToStart)
	}
}

func (e *Engine) fetchImage(t *turn, fetch types.ImageFetcher) (*types.Image, bool) {
	if fetch == nil {
		slog.Error("image event without fetcher", "user", t.user)
		t.sayText(msgImageFailed)
		return nil, false
	}
	img, err := fetch(t.ctx)
	if err != nil || img == nil || len(img.Data) == 0 {
		slog.Error("fetch image", "user", t.user, "error", err)
		t.sayText(msgImageFailed)
		return nil, false
	}
	return img, true
}

func (e *Engine) cancel(t *turn) {
	fresh, err := e.sessions.Reset(t.ctx, t.user, session.StateIdle)
	if err != nil {
		slog.Error("reset session", "user", t.user, "error", err)
		fresh = session.New(session.StateIdle)
	}
	if t.sess.ClaimID != "" {
		slog.Info("claim cancelled", "claim_id", t.sess.ClaimID, "state", t.sess.State)
	}
	t.sess = fresh
	t.sayText(msgCancelled)
}

func (e *Engine) saveNote(t *turn, text string) {
	if t.sess.AdditionalInfo == "" {
		t.sess.AdditionalInfo = text
	} else {
		t.sess.AdditionalInfo += "\n" + text
	}
	t.sayText(msgNoteSaved)
	t.say(submitPrompt())
}
