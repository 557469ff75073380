package state

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/claimline/internal/types"
)

// UsageLedger is an append-only JSONL log of AI calls, one file per month at
// usage/<YYYY-MM>.jsonl.
type UsageLedger struct {
	root string
	mu   sync.Mutex
}

// NewUsageLedger creates a ledger rooted at the data directory.
func NewUsageLedger(root string) *UsageLedger {
	return &UsageLedger{root: root}
}

func (u *UsageLedger) monthPath(month string) string {
	return filepath.Join(u.root, "usage", month+".jsonl")
}

// Append writes one record to the file for the record's month.
func (u *UsageLedger) Append(_ context.Context, rec *types.UsageRecord) error {
	if rec.ID == "" {
		rec.ID = types.NewUsageID()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal usage record: %w", err)
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	path := u.monthPath(rec.At.Format("2006-01"))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create usage dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open usage file: %w", err)
	}
	defer f.Close()

	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write usage record: %w", err)
	}
	return nil
}

// Month returns every record logged in month (YYYY-MM).
func (u *UsageLedger) Month(_ context.Context, month string) ([]*types.UsageRecord, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	f, err := os.Open(u.monthPath(month))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open usage file: %w", err)
	}
	defer f.Close()

	var records []*types.UsageRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec types.UsageRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal usage record: %w", err)
		}
		records = append(records, &rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan usage file: %w", err)
	}
	return records, nil
}

// UsageTotals aggregates a month of usage per operation.
type UsageTotals struct {
	Operation    string
	Calls        int
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// Summarize groups records by operation in first-seen order.
func Summarize(records []*types.UsageRecord) []UsageTotals {
	index := map[string]int{}
	var out []UsageTotals
	for _, r := range records {
		i, ok := index[r.Operation]
		if !ok {
			i = len(out)
			index[r.Operation] = i
			out = append(out, UsageTotals{Operation: r.Operation})
		}
		out[i].Calls++
		out[i].InputTokens += r.InputTokens
		out[i].OutputTokens += r.OutputTokens
		out[i].CostUSD += r.CostUSD
	}
	return out
}
