package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/claimline/internal/claim"
	"github.com/user/claimline/internal/gateway"
	"github.com/user/claimline/internal/session"
	"github.com/user/claimline/internal/types"
)

type captureDispatcher struct {
	mu     sync.Mutex
	events []*types.InboundEvent
	fires  atomic.Int32
}

func (d *captureDispatcher) HandleInbound(_ context.Context, ev *types.InboundEvent, _ ...gateway.RunOption) error {
	d.mu.Lock()
	d.events = append(d.events, ev)
	d.mu.Unlock()
	d.fires.Add(1)
	return nil
}

type capturePusher struct {
	users []types.UserKey
}

func (p *capturePusher) Deliver(_ context.Context, user types.UserKey, _ ...types.OutboundMessage) error {
	p.users = append(p.users, user)
	return nil
}

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func uploading(updated time.Time) *session.Session {
	s := session.ForClaim("CD-20250301-000001", claim.TypeCD)
	s.State = session.StateUploadingDocuments
	s.Counterpart = claim.CounterpartNo
	s.UpdatedAt = updated
	return s
}

func seed(t *testing.T) session.Store {
	t.Helper()
	store := session.NewMemoryStore()
	ctx := context.Background()

	reminded := now.Add(-time.Hour)
	alreadyReminded := uploading(now.Add(-48 * time.Hour))
	alreadyReminded.RemindedAt = &reminded

	idleVerifying := session.ForClaim("H-20250301-000002", claim.TypeH)
	idleVerifying.UpdatedAt = now.Add(-48 * time.Hour)

	sessions := map[types.UserKey]*session.Session{
		"line:idle":      uploading(now.Add(-48 * time.Hour)),
		"line:fresh":     uploading(now.Add(-time.Minute)),
		"line:reminded":  alreadyReminded,
		"line:verifying": idleVerifying,
		"telegram:9":     uploading(now.Add(-25 * time.Hour)),
	}
	for user, s := range sessions {
		if err := store.Set(ctx, user, s); err != nil {
			t.Fatal(err)
		}
	}
	return store
}

func TestScanQueuesIdleSessions(t *testing.T) {
	d := &captureDispatcher{}
	p := &capturePusher{}
	r := New(seed(t), d, p, Options{IdleAfter: 24 * time.Hour})
	r.now = func() time.Time { return now }

	n, err := r.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 reminders, got %d", n)
	}
	got := map[types.UserKey]bool{}
	for _, ev := range d.events {
		got[ev.UserKey] = true
		if ev.Kind != types.EventReminder || !ev.ReceivedAt.Equal(now) {
			t.Errorf("unexpected event %+v", ev)
		}
	}
	if !got["line:idle"] || !got["telegram:9"] {
		t.Errorf("wrong users queued: %v", got)
	}

	// The event's responder pushes through the delivery registry.
	if err := d.events[0].Responder.Send(context.Background(), types.Text("x")); err != nil {
		t.Fatal(err)
	}
	if len(p.users) != 1 || p.users[0] != d.events[0].UserKey {
		t.Errorf("push went to %v", p.users)
	}
}

func TestScanAfterReminderUpdated(t *testing.T) {
	store := seed(t)
	// A user who wrote after being reminded is eligible again.
	s, _ := store.Get(context.Background(), "line:reminded")
	s.UpdatedAt = now.Add(-30 * time.Hour)
	earlier := now.Add(-40 * time.Hour)
	s.RemindedAt = &earlier
	store.Set(context.Background(), "line:reminded", s)

	d := &captureDispatcher{}
	r := New(store, d, &capturePusher{}, Options{IdleAfter: 24 * time.Hour})
	r.now = func() time.Time { return now }

	n, err := r.Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("expected 3 reminders, got %d", n)
	}
}

func TestRemindersFireOnSchedule(t *testing.T) {
	d := &captureDispatcher{}
	r := New(seed(t), d, &capturePusher{}, Options{Schedule: "* * * * * *", IdleAfter: time.Hour})
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer r.Stop()

	// Wait up to 2.5 seconds for at least one fire
	deadline := time.After(2500 * time.Millisecond)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			t.Fatalf("scan did not fire within 2.5s, fires=%d", d.fires.Load())
		case <-ticker.C:
			if d.fires.Load() > 0 {
				return
			}
		}
	}
}

func TestRemindersDisabledWithoutSchedule(t *testing.T) {
	d := &captureDispatcher{}
	r := New(seed(t), d, &capturePusher{}, Options{})
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer r.Stop()

	time.Sleep(1200 * time.Millisecond)

	if n := d.fires.Load(); n != 0 {
		t.Errorf("expected no reminders without a schedule, got %d", n)
	}
}

func TestInvalidSchedule(t *testing.T) {
	r := New(session.NewMemoryStore(), &captureDispatcher{}, &capturePusher{}, Options{Schedule: "not a cron"})
	if err := r.Start(context.Background()); err == nil {
		t.Error("expected error for invalid schedule")
	}
	if err := ValidateSchedule("0 9 * * *"); err != nil {
		t.Errorf("ValidateSchedule: %v", err)
	}
}
