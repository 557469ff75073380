package types

import (
	"context"
	"time"

	"github.com/user/claimline/internal/claim"
)

// StatusUpdate carries the optional fields of a status change.
type StatusUpdate struct {
	Status      claim.Status
	Memo        *string
	PaidAmount  *float64
	SubmittedAt *time.Time
}

// ClaimFilter narrows a claim listing. Dates are YYYY-MM-DD and inclusive.
type ClaimFilter struct {
	Status   claim.Status
	Type     claim.Type
	DateFrom string
	DateTo   string
}

type ClaimRepository interface {
	Create(ctx context.Context, claimID string, claimType claim.Type, owner UserKey, counterpart claim.Counterpart) error
	Get(ctx context.Context, claimID string) (*claim.Record, error)
	UpdateStatus(ctx context.Context, claimID string, update StatusUpdate) error
	SetCounterpart(ctx context.Context, claimID string, counterpart claim.Counterpart) error
	AddDocument(ctx context.Context, claimID, category, filename string) error
	MarkDocumentUseful(ctx context.Context, claimID, filename string, useful bool) error
	MergeExtractedFields(ctx context.Context, claimID, slot string, fields map[string]any) error
	ExtractedFields(ctx context.Context, claimID string) (map[string]any, error)
	SaveSummary(ctx context.Context, claimID, text string) error
	RecordResponseTime(ctx context.Context, claimID string, elapsed time.Duration) error
	List(ctx context.Context, filter ClaimFilter) ([]*claim.Record, error)
}

type DocumentStore interface {
	Save(ctx context.Context, claimID, slot string, img *Image) (string, error)
	Open(ctx context.Context, claimID, filename string) ([]byte, error)
}

type ClaimIDGenerator interface {
	Next(claimType claim.Type) (string, error)
}

type UsageLedger interface {
	Append(ctx context.Context, rec *UsageRecord) error
	Month(ctx context.Context, month string) ([]*UsageRecord, error)
}
