// Package session holds per-user conversation state and the stores that keep
// it between turns.
package session

import (
	"context"
	"time"

	"github.com/user/claimline/internal/claim"
	"github.com/user/claimline/internal/policy"
	"github.com/user/claimline/internal/types"
)

// State is a position in the intake conversation.
type State string

const (
	StateIdle                       State = "idle"
	StateDetectingClaimType         State = "detecting_claim_type"
	StateVerifyingPolicy            State = "verifying_policy"
	StateWaitingForVehicleSelection State = "waiting_for_vehicle_selection"
	StateWaitingForCounterpart      State = "waiting_for_counterpart"
	StateUploadingDocuments         State = "uploading_documents"
	StateAwaitingOwnership          State = "awaiting_ownership"
	StateReadyToSubmit              State = "ready_to_submit"
	StateSubmitted                  State = "submitted"
)

// PendingUpload is a driving license held back until the customer says
// whose it is.
type PendingUpload struct {
	Filename    string         `json:"filename"`
	Fields      map[string]any `json:"fields"`
	Data        []byte         `json:"data"`
	ContentType string         `json:"content_type"`
}

// Session is the conversation state of one user.
type Session struct {
	State          State             `json:"state"`
	ClaimID        string            `json:"claim_id,omitempty"`
	ClaimType      claim.Type        `json:"claim_type,omitempty"`
	Policy         *policy.Policy    `json:"policy_info,omitempty"`
	Counterpart    claim.Counterpart `json:"has_counterpart,omitempty"`
	SearchResults  []policy.Policy   `json:"search_results"`
	UploadedDocs   map[string]string `json:"uploaded_docs"`
	Pending        *PendingUpload    `json:"awaiting_ownership_for,omitempty"`
	AdditionalInfo string            `json:"additional_info,omitempty"`
	UpdatedAt      time.Time         `json:"updated_at"`
	RemindedAt     *time.Time        `json:"reminded_at,omitempty"`
}

// New returns the canonical fresh session in the given state.
func New(state State) *Session {
	return &Session{
		State:         state,
		SearchResults: []policy.Policy{},
		UploadedDocs:  map[string]string{},
	}
}

// ForClaim returns a fresh session for a newly created claim, waiting for
// policy verification.
func ForClaim(claimID string, claimType claim.Type) *Session {
	s := New(StateVerifyingPolicy)
	s.ClaimID = claimID
	s.ClaimType = claimType
	return s
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (s *Session) Clone() *Session {
	c := *s
	if s.Policy != nil {
		p := *s.Policy
		c.Policy = &p
	}
	c.SearchResults = append([]policy.Policy{}, s.SearchResults...)
	c.UploadedDocs = make(map[string]string, len(s.UploadedDocs))
	for k, v := range s.UploadedDocs {
		c.UploadedDocs[k] = v
	}
	if s.Pending != nil {
		p := *s.Pending
		p.Data = append([]byte(nil), s.Pending.Data...)
		p.Fields = make(map[string]any, len(s.Pending.Fields))
		for k, v := range s.Pending.Fields {
			p.Fields[k] = v
		}
		c.Pending = &p
	}
	if s.RemindedAt != nil {
		r := *s.RemindedAt
		c.RemindedAt = &r
	}
	return &c
}

// MissingDocs lists the required slots this session has not yet filled.
func (s *Session) MissingDocs() []string {
	return claim.MissingDocs(s.ClaimType, s.Counterpart, s.UploadedDocs)
}

// Entry pairs a session with its owner for enumeration.
type Entry struct {
	UserKey types.UserKey
	Session *Session
}

// Store keeps sessions keyed by user. Get never fails for an unknown user:
// it returns a fresh idle session.
type Store interface {
	Get(ctx context.Context, user types.UserKey) (*Session, error)
	Set(ctx context.Context, user types.UserKey, s *Session) error
	Reset(ctx context.Context, user types.UserKey, state State) (*Session, error)
	List(ctx context.Context) ([]Entry, error)
}
