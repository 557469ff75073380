package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/user/claimline/internal/types"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []*types.InboundEvent
	err    error
	delay  time.Duration
}

func (h *recordingHandler) HandleEvent(ctx context.Context, ev *types.InboundEvent) error {
	if h.delay > 0 {
		select {
		case <-time.After(h.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	h.mu.Lock()
	h.events = append(h.events, ev)
	h.mu.Unlock()
	return h.err
}

func (h *recordingHandler) texts() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, ev := range h.events {
		out = append(out, ev.Text)
	}
	return out
}

func waitRun(t *testing.T, done <-chan *Run) *Run {
	t.Helper()
	select {
	case run := <-done:
		return run
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for run")
		return nil
	}
}

func TestGatewayHandleInbound(t *testing.T) {
	h := &recordingHandler{}
	gw := New(h, 2)
	ctx := context.Background()
	gw.Start(ctx)
	defer gw.Stop()

	done := make(chan *Run, 1)
	inbound := &types.InboundEvent{
		Source:  "test",
		UserKey: types.NewUserKey("line", "U1"),
		Kind:    types.EventText,
		Text:    "เคลม",
	}
	if err := gw.HandleInbound(ctx, inbound, WithOnComplete(func(r *Run) { done <- r })); err != nil {
		t.Fatal(err)
	}

	run := waitRun(t, done)
	if run.Status != RunStatusComplete {
		t.Errorf("expected complete, got %s", run.Status)
	}
	if run.StartedAt == nil || run.EndedAt == nil {
		t.Error("run timestamps not set")
	}
	if inbound.ReceivedAt.IsZero() {
		t.Error("received time should be stamped")
	}
	if got := h.texts(); len(got) != 1 || got[0] != "เคลม" {
		t.Errorf("handler saw %v", got)
	}
}

func TestGatewayFailedRun(t *testing.T) {
	h := &recordingHandler{err: errors.New("save session: disk full")}
	gw := New(h, 1)
	ctx := context.Background()
	gw.Start(ctx)
	defer gw.Stop()

	done := make(chan *Run, 1)
	ev := &types.InboundEvent{UserKey: "line:U1", Kind: types.EventText, Text: "x"}
	if err := gw.HandleInbound(ctx, ev, WithOnComplete(func(r *Run) { done <- r })); err != nil {
		t.Fatal(err)
	}
	run := waitRun(t, done)
	if run.Status != RunStatusFailed || run.Error == nil {
		t.Errorf("expected failed run, got %s (%v)", run.Status, run.Error)
	}
}

func TestGatewayTurnTimeout(t *testing.T) {
	h := &recordingHandler{delay: time.Second}
	gw := New(h, 1, WithTurnTimeout(20*time.Millisecond))
	ctx := context.Background()
	gw.Start(ctx)
	defer gw.Stop()

	done := make(chan *Run, 1)
	ev := &types.InboundEvent{UserKey: "line:U1", Kind: types.EventText, Text: "slow"}
	if err := gw.HandleInbound(ctx, ev, WithOnComplete(func(r *Run) { done <- r })); err != nil {
		t.Fatal(err)
	}
	run := waitRun(t, done)
	if !errors.Is(run.Error, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", run.Error)
	}
}

func TestGatewayRejectsMissingUser(t *testing.T) {
	gw := New(&recordingHandler{}, 1)
	gw.Start(context.Background())
	defer gw.Stop()
	if err := gw.HandleInbound(context.Background(), &types.InboundEvent{Text: "x"}); err == nil {
		t.Error("expected error for event without user key")
	}
}

func TestGatewayLanesPerUser(t *testing.T) {
	h := &recordingHandler{}
	gw := New(h, 2)
	ctx := context.Background()
	gw.Start(ctx)
	defer gw.Stop()

	var wg sync.WaitGroup
	for _, user := range []string{"line:Ua", "line:Ub", "line:Ua"} {
		wg.Add(1)
		ev := &types.InboundEvent{UserKey: types.UserKey(user), Kind: types.EventText, Text: user}
		if err := gw.HandleInbound(ctx, ev, WithOnComplete(func(*Run) { wg.Done() })); err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()

	if n := gw.Queue.Lanes(); n != 2 {
		t.Errorf("expected 2 lanes, got %d", n)
	}
	if got := len(h.texts()); got != 3 {
		t.Errorf("expected 3 handled events, got %d", got)
	}
}
