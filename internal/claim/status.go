package claim

import (
	"fmt"
	"strings"
)

// Status is a claim's position in the review lifecycle.
type Status string

const (
	StatusDraft       Status = "Draft"
	StatusSubmitted   Status = "Submitted"
	StatusUnderReview Status = "Under Review"
	StatusPending     Status = "Pending"
	StatusApproved    Status = "Approved"
	StatusRejected    Status = "Rejected"
	StatusPaid        Status = "Paid"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusDraft, StatusSubmitted, StatusUnderReview, StatusPending,
	StatusApproved, StatusRejected, StatusPaid,
}

// transitions is the directed status graph. Rejected and Paid are terminal.
var transitions = map[Status][]Status{
	StatusDraft:       {StatusSubmitted},
	StatusSubmitted:   {StatusUnderReview},
	StatusUnderReview: {StatusPending, StatusApproved, StatusRejected},
	StatusPending:     {StatusUnderReview, StatusRejected},
	StatusApproved:    {StatusPaid},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Next returns the statuses reachable from s in one step.
func (s Status) Next() []Status {
	out := make([]Status, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

// CanTransition reports whether moving from one status to another follows
// the lifecycle graph.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseStatus matches s against the known statuses, ignoring case.
func ParseStatus(s string) (Status, error) {
	for _, known := range AllStatuses {
		if strings.EqualFold(string(known), strings.TrimSpace(s)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown status: %q", s)
}
