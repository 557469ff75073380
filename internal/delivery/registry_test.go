package delivery

import (
	"context"
	"errors"
	"testing"

	"github.com/user/claimline/internal/types"
)

func TestRegistryDeliver(t *testing.T) {
	reg := NewRegistry()

	var gotUser types.UserKey
	var gotMsgs []types.OutboundMessage
	reg.Register("line:", func(_ context.Context, user types.UserKey, msgs ...types.OutboundMessage) error {
		gotUser = user
		gotMsgs = msgs
		return nil
	})

	err := reg.Deliver(context.Background(), "line:U123", types.Text("hello"), types.Text("again"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotUser != "line:U123" {
		t.Errorf("expected user %q, got %q", "line:U123", gotUser)
	}
	if len(gotMsgs) != 2 || gotMsgs[0].Text != "hello" {
		t.Errorf("unexpected messages: %+v", gotMsgs)
	}
}

func TestRegistryNoHandler(t *testing.T) {
	reg := NewRegistry()

	err := reg.Deliver(context.Background(), "unknown:123", types.Text("hello"))
	if err == nil {
		t.Fatal("expected error for unregistered prefix, got nil")
	}
}

func TestRegistryMultiplePrefixes(t *testing.T) {
	reg := NewRegistry()

	var lineCalls, telegramCalls int
	reg.Register("line:", func(context.Context, types.UserKey, ...types.OutboundMessage) error {
		lineCalls++
		return nil
	})
	reg.Register("telegram:", func(context.Context, types.UserKey, ...types.OutboundMessage) error {
		telegramCalls++
		return nil
	})

	ctx := context.Background()
	if err := reg.Deliver(ctx, "telegram:42", types.Text("msg1")); err != nil {
		t.Fatalf("telegram deliver error: %v", err)
	}
	if err := reg.Deliver(ctx, "line:U1", types.Text("msg2")); err != nil {
		t.Fatalf("line deliver error: %v", err)
	}

	if telegramCalls != 1 {
		t.Errorf("expected 1 telegram call, got %d", telegramCalls)
	}
	if lineCalls != 1 {
		t.Errorf("expected 1 line call, got %d", lineCalls)
	}
	if got := len(reg.Prefixes()); got != 2 {
		t.Errorf("expected 2 prefixes, got %d", got)
	}
}

func TestRegistryLongestPrefixWins(t *testing.T) {
	reg := NewRegistry()
	var got string
	reg.Register("line:", func(context.Context, types.UserKey, ...types.OutboundMessage) error {
		got = "generic"
		return nil
	})
	reg.Register("line:Ustaff", func(context.Context, types.UserKey, ...types.OutboundMessage) error {
		got = "staff"
		return nil
	})

	if err := reg.Deliver(context.Background(), "line:Ustaff01", types.Text("x")); err != nil {
		t.Fatal(err)
	}
	if got != "staff" {
		t.Errorf("expected staff handler, got %s", got)
	}
}

func TestRegistryHandlerError(t *testing.T) {
	reg := NewRegistry()
	boom := errors.New("push failed")
	reg.Register("line:", func(context.Context, types.UserKey, ...types.OutboundMessage) error {
		return boom
	})

	if err := reg.Deliver(context.Background(), "line:U1", types.Text("x")); !errors.Is(err, boom) {
		t.Errorf("expected handler error, got %v", err)
	}
}
