package docai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/user/claimline/internal/claim"
	"github.com/user/claimline/internal/types"
	"github.com/user/claimline/pkg/llm"
)

type fakeProvider struct {
	mu       sync.Mutex
	reply    func(req *llm.Request) (string, error)
	requests []*llm.Request
}

func (f *fakeProvider) Complete(_ context.Context, req *llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	text, err := f.reply(req)
	if err != nil {
		return nil, err
	}
	return &llm.Response{Content: text, Usage: llm.Usage{InputTokens: 1000, OutputTokens: 500}}, nil
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-1" }

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type memLedger struct {
	mu      sync.Mutex
	records []*types.UsageRecord
}

func (m *memLedger) Append(_ context.Context, rec *types.UsageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memLedger) Month(context.Context, string) ([]*types.UsageRecord, error) {
	return m.records, nil
}

func newService(t *testing.T, p llm.Provider, opts Options) *Service {
	t.Helper()
	s, err := New(p, opts)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

var photo = &types.Image{Data: []byte("not-really-a-jpeg"), ContentType: "image/jpeg"}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		raw  string
		want claim.Category
	}{
		{"driving_license", claim.CategoryDrivingLicense},
		{"  Receipt.\n", claim.CategoryReceipt},
		{"vehicle_damage_photo because the bumper is dented", claim.CategoryVehicleDamagePhoto},
		{"`citizen_id_card`", claim.CategoryCitizenIDCard},
		{"passport", claim.CategoryUnknown},
		{"unknown", claim.CategoryUnknown},
		{"", claim.CategoryUnknown},
	}
	for _, tt := range tests {
		if got := parseCategory(tt.raw); got != tt.want {
			t.Errorf("parseCategory(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}

func TestClassifyCachesByContent(t *testing.T) {
	p := &fakeProvider{reply: func(*llm.Request) (string, error) { return "receipt", nil }}
	s := newService(t, p, Options{CacheSize: 8})
	ctx := context.Background()

	if got := s.Classify(ctx, photo); got != claim.CategoryReceipt {
		t.Fatalf("expected receipt, got %s", got)
	}
	if got := s.Classify(ctx, &types.Image{Data: []byte("not-really-a-jpeg")}); got != claim.CategoryReceipt {
		t.Fatalf("expected cached receipt, got %s", got)
	}
	if p.calls() != 1 {
		t.Errorf("expected 1 provider call, got %d", p.calls())
	}
	req := p.requests[0]
	if len(req.Parts) != 2 || req.Parts[1].Image == nil || req.Parts[1].Image.MIMEType != "image/jpeg" {
		t.Errorf("expected prompt plus image, got %+v", req.Parts)
	}
	if !strings.Contains(req.Parts[0].Text, "vehicle_location_photo") {
		t.Error("prompt should list every category")
	}
}

func TestClassifyFailureIsUnknown(t *testing.T) {
	p := &fakeProvider{reply: func(*llm.Request) (string, error) { return "", errors.New("quota exceeded") }}
	s := newService(t, p, Options{CacheSize: 8})
	if got := s.Classify(context.Background(), photo); got != claim.CategoryUnknown {
		t.Errorf("expected unknown, got %s", got)
	}
	if got := s.Classify(context.Background(), nil); got != claim.CategoryUnknown {
		t.Errorf("nil image: expected unknown, got %s", got)
	}
}

func TestExtract(t *testing.T) {
	p := &fakeProvider{reply: func(*llm.Request) (string, error) {
		return "Here you go:\n```json\n{\"plate\": \"1กข1234\", \"province\": null}\n```", nil
	}}
	s := newService(t, p, Options{})
	fields := s.Extract(context.Background(), photo, claim.CategoryVehicleRegistration)
	if fields["plate"] != "1กข1234" {
		t.Errorf("plate = %v", fields["plate"])
	}
	if v, ok := fields["province"]; !ok || v != nil {
		t.Errorf("province should be present and null, got %v", v)
	}
	if !p.requests[0].JSON {
		t.Error("extraction should request JSON output")
	}
	if !strings.Contains(p.requests[0].Parts[0].Text, "subtracting 543") {
		t.Error("extraction prompt should carry the date rules")
	}
}

func TestExtractPhotoAddsGPSKeys(t *testing.T) {
	p := &fakeProvider{reply: func(*llm.Request) (string, error) { return `{"severity":"minor"}`, nil }}
	s := newService(t, p, Options{})
	fields := s.Extract(context.Background(), photo, claim.CategoryVehicleDamagePhoto)
	for _, k := range []string{"gps_lat", "gps_lon"} {
		v, ok := fields[k]
		if !ok {
			t.Errorf("missing %s", k)
		}
		if v != nil {
			t.Errorf("%s should be null without EXIF, got %v", k, v)
		}
	}
}

func TestExtractFailures(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		err      error
		category claim.Category
	}{
		{"provider error", "", errors.New("boom"), claim.CategoryReceipt},
		{"no json", "I cannot read this", nil, claim.CategoryReceipt},
		{"bad json", "{plate: }", nil, claim.CategoryReceipt},
		{"unknown category", `{"a":1}`, nil, claim.CategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{reply: func(*llm.Request) (string, error) { return tt.reply, tt.err }}
			s := newService(t, p, Options{})
			fields := s.Extract(context.Background(), photo, tt.category)
			if fields == nil || len(fields) != 0 {
				t.Errorf("expected empty map, got %v", fields)
			}
		})
	}
}

func TestExtractCacheReturnsCopies(t *testing.T) {
	p := &fakeProvider{reply: func(*llm.Request) (string, error) { return `{"total": 1200}`, nil }}
	s := newService(t, p, Options{CacheSize: 4})
	ctx := context.Background()
	first := s.Extract(ctx, photo, claim.CategoryItemisedBill)
	first["total"] = 0
	second := s.Extract(ctx, photo, claim.CategoryItemisedBill)
	if second["total"] != float64(1200) {
		t.Errorf("cache shared its map: %v", second)
	}
	if p.calls() != 1 {
		t.Errorf("expected 1 provider call, got %d", p.calls())
	}
}

func TestResolveIdentity(t *testing.T) {
	tests := []struct {
		reply string
		want  Identity
	}{
		{`{"type":"id_card","value":"1-2345-67890-12-3"}`, Identity{Type: IdentityIDCard, Value: "1234567890123"}},
		{`{"type":"driving_license","value":"1234567890123"}`, Identity{Type: IdentityDrivingLicense, Value: "1234567890123"}},
		{`{"type":"license_plate","value":"1กข 1234"}`, Identity{Type: IdentityLicensePlate, Value: "1กข1234"}},
		{`{"type":"id_card","value":null}`, Identity{Type: IdentityUnknown}},
		{`{"type":"passport","value":"X1"}`, Identity{Type: IdentityUnknown}},
		{`no idea`, Identity{Type: IdentityUnknown}},
	}
	for _, tt := range tests {
		p := &fakeProvider{reply: func(*llm.Request) (string, error) { return tt.reply, nil }}
		s := newService(t, p, Options{})
		if got := s.ResolveIdentity(context.Background(), photo); got != tt.want {
			t.Errorf("%s: got %+v, want %+v", tt.reply, got, tt.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	p := &fakeProvider{reply: func(*llm.Request) (string, error) { return "# Claim Summary\n", nil }}
	s := newService(t, p, Options{SummaryInputTokens: 10})

	long := strings.Repeat("x", 500)
	text, err := s.Summarize(context.Background(), SummaryRequest{
		ClaimID:        "CD-20260226-000001",
		ClaimType:      claim.TypeCD,
		Counterpart:    claim.CounterpartYes,
		Extracted:      map[string]any{"vehicle_registration": map[string]any{"note": long}},
		AdditionalInfo: "hit from behind",
	})
	if err != nil {
		t.Fatal(err)
	}
	if text != "# Claim Summary" {
		t.Errorf("summary = %q", text)
	}
	prompt := p.requests[0].Parts[0].Text
	for _, want := range []string{"CD-20260226-000001", "มีคู่กรณี", "Policy number: N/A", "hit from behind"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, long) {
		t.Error("extracted data should be trimmed to the token budget")
	}
}

func TestSummarizeError(t *testing.T) {
	p := &fakeProvider{reply: func(*llm.Request) (string, error) { return "   ", nil }}
	s := newService(t, p, Options{})
	if _, err := s.Summarize(context.Background(), SummaryRequest{ClaimID: "H-20260226-000001"}); err == nil {
		t.Fatal("expected error for empty summary")
	}
}

func TestUsageRecorded(t *testing.T) {
	p := &fakeProvider{reply: func(*llm.Request) (string, error) { return "receipt", nil }}
	ledger := &memLedger{}
	s := newService(t, p, Options{Ledger: ledger, Pricing: Pricing{InputPer1K: 0.1, OutputPer1K: 0.4}})
	s.Classify(context.Background(), photo)

	if len(ledger.records) != 1 {
		t.Fatalf("expected 1 usage record, got %d", len(ledger.records))
	}
	rec := ledger.records[0]
	if rec.Operation != "classify" || rec.Provider != "fake" || rec.Model != "fake-1" {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.TotalTokens != 1500 {
		t.Errorf("total tokens = %d", rec.TotalTokens)
	}
	if rec.CostUSD < 0.2999 || rec.CostUSD > 0.3001 {
		t.Errorf("cost = %f", rec.CostUSD)
	}
}

func TestBudgetFallback(t *testing.T) {
	var b *Budget
	if got := b.Count("abcdefgh"); got != 2 {
		t.Errorf("Count = %d", got)
	}
	if got := b.Truncate("สวัสดีครับ", 1); got != "สวัส" {
		t.Errorf("Truncate = %q", got)
	}
	if got := b.Truncate("short", 0); got != "short" {
		t.Errorf("Truncate with no limit = %q", got)
	}
}

func TestGPSFromNonExifImage(t *testing.T) {
	if _, _, ok := gpsFromExif([]byte("plain bytes")); ok {
		t.Error("expected no gps for non-exif data")
	}
}
