package claim

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusDraft, StatusSubmitted}:       true,
		{StatusSubmitted, StatusUnderReview}: true,
		{StatusUnderReview, StatusPending}:   true,
		{StatusUnderReview, StatusApproved}:  true,
		{StatusUnderReview, StatusRejected}:  true,
		{StatusPending, StatusUnderReview}:   true,
		{StatusPending, StatusRejected}:      true,
		{StatusApproved, StatusPaid}:         true,
	}
	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			want := allowed[[2]Status{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range AllStatuses {
		want := s == StatusRejected || s == StatusPaid
		if s.Terminal() != want {
			t.Errorf("%s.Terminal() = %v, want %v", s, s.Terminal(), want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	got, err := ParseStatus(" under review ")
	if err != nil {
		t.Fatal(err)
	}
	if got != StatusUnderReview {
		t.Errorf("expected Under Review, got %s", got)
	}
	if _, err := ParseStatus("archived"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestRecordValidate(t *testing.T) {
	rec := &Record{
		ClaimID:   "CD-20260226-000001",
		ClaimType: TypeCD,
		UserID:    "line:U123",
		Status:    StatusDraft,
		CreatedAt: time.Now(),
	}
	if err := rec.Validate(); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}

	rec.ClaimID = "CD-2026-1"
	if err := rec.Validate(); err == nil {
		t.Error("expected malformed claim id to fail")
	}
}

func TestCounterpartLabel(t *testing.T) {
	if CounterpartYes.Label() != LabelHasCounterpart {
		t.Errorf("yes label = %s", CounterpartYes.Label())
	}
	if CounterpartNo.Label() != LabelNoCounterpart {
		t.Errorf("no label = %s", CounterpartNo.Label())
	}
	if CounterpartUnknown.Label() != "N/A" {
		t.Errorf("unknown label = %s", CounterpartUnknown.Label())
	}
}
