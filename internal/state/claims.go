package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/user/claimline/internal/claim"
	"github.com/user/claimline/internal/types"
)

var (
	ErrClaimNotFound     = errors.New("claim not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ClaimStore keeps one folder per claim under claims/<claimID>/ holding
// status.yaml, extracted_data.json and summary.md.
type ClaimStore struct {
	root  string
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	now   func() time.Time
}

// NewClaimStore creates a file-backed ClaimStore rooted at the data directory.
func NewClaimStore(root string) *ClaimStore {
	return &ClaimStore{
		root:  root,
		locks: make(map[string]*sync.Mutex),
		now:   time.Now,
	}
}

func (s *ClaimStore) getLock(claimID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lock, ok := s.locks[claimID]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	s.locks[claimID] = lock
	return lock
}

func (s *ClaimStore) claimsDir() string {
	return filepath.Join(s.root, "claims")
}

// ClaimDir returns the folder holding a claim's files.
func (s *ClaimStore) ClaimDir(claimID string) string {
	return filepath.Join(s.claimsDir(), claimID)
}

func (s *ClaimStore) statusPath(claimID string) string {
	return filepath.Join(s.ClaimDir(claimID), "status.yaml")
}

func (s *ClaimStore) extractedPath(claimID string) string {
	return filepath.Join(s.ClaimDir(claimID), "extracted_data.json")
}

func (s *ClaimStore) summaryPath(claimID string) string {
	return filepath.Join(s.ClaimDir(claimID), "summary.md")
}

// readRecord loads status.yaml. Caller must hold the claim lock for writes.
func (s *ClaimStore) readRecord(claimID string) (*claim.Record, error) {
	if !claim.IDPattern.MatchString(claimID) {
		return nil, fmt.Errorf("%w: %s", ErrClaimNotFound, claimID)
	}
	data, err := os.ReadFile(s.statusPath(claimID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrClaimNotFound, claimID)
		}
		return nil, fmt.Errorf("read claim status: %w", err)
	}
	var rec claim.Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal claim status: %w", err)
	}
	if rec.Documents == nil {
		rec.Documents = []claim.Document{}
	}
	return &rec, nil
}

func (s *ClaimStore) writeRecord(rec *claim.Record) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal claim status: %w", err)
	}
	return writeAtomic(s.statusPath(rec.ClaimID), data)
}

// writeAtomic writes to a temp file in the same directory then renames it.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// update runs fn against the stored record under the claim lock and writes
// the result back.
func (s *ClaimStore) update(claimID string, fn func(rec *claim.Record) error) error {
	lock := s.getLock(claimID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.readRecord(claimID)
	if err != nil {
		return err
	}
	if err := fn(rec); err != nil {
		return err
	}
	return s.writeRecord(rec)
}

// Create writes a new Draft record. Calling it again for the same ID
// overwrites the record, which makes crash retries safe.
func (s *ClaimStore) Create(_ context.Context, claimID string, claimType claim.Type, owner types.UserKey, counterpart claim.Counterpart) error {
	rec := &claim.Record{
		ClaimID:        claimID,
		ClaimType:      claimType,
		UserID:         string(owner),
		HasCounterpart: counterpartFlag(counterpart),
		Status:         claim.StatusDraft,
		CreatedAt:      s.now(),
		Documents:      []claim.Document{},
		Metrics:        claim.Metrics{ResponseTimesMS: []int64{}},
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	lock := s.getLock(claimID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Join(s.ClaimDir(claimID), "documents"), 0o755); err != nil {
		return fmt.Errorf("create claim dir: %w", err)
	}
	return s.writeRecord(rec)
}

func counterpartFlag(c claim.Counterpart) *bool {
	switch c {
	case claim.CounterpartYes:
		v := true
		return &v
	case claim.CounterpartNo:
		v := false
		return &v
	}
	return nil
}

// Get returns the stored record.
func (s *ClaimStore) Get(_ context.Context, claimID string) (*claim.Record, error) {
	return s.readRecord(claimID)
}

// UpdateStatus applies a status change along the lifecycle graph. A missing
// claim is logged and ignored. Re-applying the current status only updates
// the optional fields.
func (s *ClaimStore) UpdateStatus(_ context.Context, claimID string, u types.StatusUpdate) error {
	err := s.update(claimID, func(rec *claim.Record) error {
		if u.Status != rec.Status && !claim.CanTransition(rec.Status, u.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, u.Status)
		}
		rec.Status = u.Status
		if u.Memo != nil {
			rec.Memo = *u.Memo
		}
		if u.SubmittedAt != nil {
			at := *u.SubmittedAt
			rec.SubmittedAt = &at
		}
		if u.PaidAmount != nil {
			amount := *u.PaidAmount
			rec.PaidAmount = &amount
			total := amount
			if rec.Metrics.TotalPaidAmount != nil {
				total += *rec.Metrics.TotalPaidAmount
			}
			rec.Metrics.TotalPaidAmount = &total
		}
		return nil
	})
	if errors.Is(err, ErrClaimNotFound) {
		slog.Warn("status update for unknown claim", "claim_id", claimID, "status", u.Status)
		return nil
	}
	return err
}

// SetCounterpart records the counterpart answer and notes it in the memo.
func (s *ClaimStore) SetCounterpart(_ context.Context, claimID string, c claim.Counterpart) error {
	return s.update(claimID, func(rec *claim.Record) error {
		rec.HasCounterpart = counterpartFlag(c)
		rec.Memo = "has_counterpart=" + c.Label()
		return nil
	})
}

// AddDocument appends a document entry with no review verdict.
func (s *ClaimStore) AddDocument(_ context.Context, claimID, category, filename string) error {
	return s.update(claimID, func(rec *claim.Record) error {
		rec.Documents = append(rec.Documents, claim.Document{Category: category, Filename: filename})
		return nil
	})
}

// MarkDocumentUseful sets the reviewer verdict on a stored document.
func (s *ClaimStore) MarkDocumentUseful(_ context.Context, claimID, filename string, useful bool) error {
	return s.update(claimID, func(rec *claim.Record) error {
		for i := range rec.Documents {
			if rec.Documents[i].Filename == filename {
				v := useful
				rec.Documents[i].Useful = &v
				return nil
			}
		}
		return fmt.Errorf("document %s not found in claim %s", filename, claimID)
	})
}

// MergeExtractedFields stores fields under the slot's entry. Numbered
// multi-instance slots append to a list under their base key; everything
// else overwrites.
func (s *ClaimStore) MergeExtractedFields(_ context.Context, claimID, slot string, fields map[string]any) error {
	lock := s.getLock(claimID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := os.Stat(s.statusPath(claimID)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrClaimNotFound, claimID)
		}
		return fmt.Errorf("stat claim: %w", err)
	}

	data, err := s.readExtracted(claimID)
	if err != nil {
		return err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	base := claim.BaseKey(slot)
	if base != slot {
		list, _ := data[base].([]any)
		data[base] = append(list, fields)
	} else {
		data[slot] = fields
	}

	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal extracted data: %w", err)
	}
	return writeAtomic(s.extractedPath(claimID), out)
}

func (s *ClaimStore) readExtracted(claimID string) (map[string]any, error) {
	raw, err := os.ReadFile(s.extractedPath(claimID))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("read extracted data: %w", err)
	}
	data := map[string]any{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unmarshal extracted data: %w", err)
	}
	return data, nil
}

// ExtractedFields returns the merged extracted data, empty when nothing has
// been extracted yet.
func (s *ClaimStore) ExtractedFields(_ context.Context, claimID string) (map[string]any, error) {
	lock := s.getLock(claimID)
	lock.Lock()
	defer lock.Unlock()
	return s.readExtracted(claimID)
}

// SaveSummary writes summary.md.
func (s *ClaimStore) SaveSummary(_ context.Context, claimID, text string) error {
	lock := s.getLock(claimID)
	lock.Lock()
	defer lock.Unlock()
	if _, err := os.Stat(s.statusPath(claimID)); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrClaimNotFound, claimID)
	}
	return writeAtomic(s.summaryPath(claimID), []byte(text))
}

// Summary returns summary.md, empty when no summary was written.
func (s *ClaimStore) Summary(_ context.Context, claimID string) (string, error) {
	data, err := os.ReadFile(s.summaryPath(claimID))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read summary: %w", err)
	}
	return string(data), nil
}

// RecordResponseTime appends a bot response latency sample in milliseconds.
func (s *ClaimStore) RecordResponseTime(_ context.Context, claimID string, elapsed time.Duration) error {
	return s.update(claimID, func(rec *claim.Record) error {
		rec.Metrics.ResponseTimesMS = append(rec.Metrics.ResponseTimesMS, elapsed.Milliseconds())
		return nil
	})
}

// List returns records matching the filter, newest first. Unreadable claim
// folders are skipped with a warning.
func (s *ClaimStore) List(_ context.Context, f types.ClaimFilter) ([]*claim.Record, error) {
	entries, err := os.ReadDir(s.claimsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []*claim.Record{}, nil
		}
		return nil, fmt.Errorf("read claims dir: %w", err)
	}

	out := []*claim.Record{}
	for _, e := range entries {
		if !e.IsDir() || !claim.IDPattern.MatchString(e.Name()) {
			continue
		}
		rec, err := s.readRecord(e.Name())
		if err != nil {
			slog.Warn("skip unreadable claim", "claim_id", e.Name(), "error", err)
			continue
		}
		if matchesFilter(rec, f) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ClaimID > out[j].ClaimID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func matchesFilter(rec *claim.Record, f types.ClaimFilter) bool {
	if f.Status != "" && rec.Status != f.Status {
		return false
	}
	if f.Type != "" && rec.ClaimType != f.Type {
		return false
	}
	day := rec.CreatedAt.Format("2006-01-02")
	if f.DateFrom != "" && day < strings.TrimSpace(f.DateFrom) {
		return false
	}
	if f.DateTo != "" && day > strings.TrimSpace(f.DateTo) {
		return false
	}
	return true
}
