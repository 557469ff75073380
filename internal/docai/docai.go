// Package docai classifies claim documents, extracts their fields, reads
// identity photos and writes claim summaries on top of an llm.Provider.
// Every operation degrades to a sentinel result instead of failing the turn.
package docai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/user/claimline/internal/claim"
	"github.com/user/claimline/internal/intent"
	"github.com/user/claimline/internal/types"
	"github.com/user/claimline/pkg/llm"
)

// Identity kinds returned by ResolveIdentity.
const (
	IdentityIDCard         = "id_card"
	IdentityDrivingLicense = "driving_license"
	IdentityLicensePlate   = "license_plate"
	IdentityUnknown        = "unknown"
)

// Identity is what an identity photo shows. Value is empty for unknown.
type Identity struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// SummaryRequest carries everything the claim summary is written from.
type SummaryRequest struct {
	ClaimID        string
	ClaimType      claim.Type
	Counterpart    claim.Counterpart
	PolicyNumber   string
	Extracted      map[string]any
	AdditionalInfo string
}

// Pricing converts token counts into the usage ledger's cost column.
type Pricing struct {
	InputPer1K  float64
	OutputPer1K float64
}

// Options configures a Service. Zero values disable the optional parts.
type Options struct {
	Ledger             types.UsageLedger
	Budget             *Budget
	CacheSize          int
	SummaryInputTokens int
	Pricing            Pricing
}

type cacheEntry struct {
	category claim.Category
	fields   map[string]any
	identity Identity
}

// Service is the classifier/extractor gateway.
type Service struct {
	provider llm.Provider
	ledger   types.UsageLedger
	budget   *Budget
	cache    *lru.Cache[string, cacheEntry]
	pricing  Pricing
	summaryT int
	now      func() time.Time
}

// New creates a Service. A CacheSize of zero disables result caching.
func New(provider llm.Provider, opts Options) (*Service, error) {
	s := &Service{
		provider: provider,
		ledger:   opts.Ledger,
		budget:   opts.Budget,
		pricing:  opts.Pricing,
		summaryT: opts.SummaryInputTokens,
		now:      time.Now,
	}
	if s.summaryT <= 0 {
		s.summaryT = 2000
	}
	if opts.CacheSize > 0 {
		cache, err := lru.New[string, cacheEntry](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

func cacheKey(op string, data []byte) string {
	sum := sha256.Sum256(data)
	return op + ":" + hex.EncodeToString(sum[:])
}

func (s *Service) cached(key string) (cacheEntry, bool) {
	if s.cache == nil {
		return cacheEntry{}, false
	}
	return s.cache.Get(key)
}

func (s *Service) store(key string, e cacheEntry) {
	if s.cache != nil {
		s.cache.Add(key, e)
	}
}

// call runs one completion and records its usage.
func (s *Service) call(ctx context.Context, operation string, req *llm.Request) (string, error) {
	start := s.now()
	resp, err := s.provider.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	slog.Debug("ai call", "operation", operation, "elapsed_ms", time.Since(start).Milliseconds(),
		"input_tokens", resp.Usage.InputTokens, "output_tokens", resp.Usage.OutputTokens)
	s.recordUsage(ctx, operation, resp.Usage)
	return resp.Content, nil
}

func (s *Service) recordUsage(ctx context.Context, operation string, u llm.Usage) {
	if s.ledger == nil {
		return
	}
	total := u.TotalTokens
	if total == 0 {
		total = u.InputTokens + u.OutputTokens
	}
	cost := float64(u.InputTokens)/1000*s.pricing.InputPer1K + float64(u.OutputTokens)/1000*s.pricing.OutputPer1K
	rec := &types.UsageRecord{
		At:           s.now().UTC(),
		Operation:    operation,
		Provider:     s.provider.Name(),
		Model:        s.provider.Model(),
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		TotalTokens:  total,
		CostUSD:      cost,
	}
	if err := s.ledger.Append(ctx, rec); err != nil {
		slog.Warn("record ai usage", "operation", operation, "error", err)
	}
}

func imageRequest(prompt string, img *types.Image, jsonOut bool) *llm.Request {
	ct := img.ContentType
	if ct == "" {
		ct = "image/jpeg"
	}
	return &llm.Request{
		Parts: []llm.Part{llm.TextPart(prompt), llm.ImagePart(ct, img.Data)},
		JSON:  jsonOut,
	}
}

var nonCategoryChars = regexp.MustCompile(`[^a-z_]`)

// parseCategory keeps the first token of the reply and validates it against
// the closed category set.
func parseCategory(raw string) claim.Category {
	fields := strings.Fields(strings.ToLower(llm.StripCodeFence(raw)))
	if len(fields) == 0 {
		return claim.CategoryUnknown
	}
	c := claim.Category(nonCategoryChars.ReplaceAllString(fields[0], ""))
	if !c.Valid() {
		return claim.CategoryUnknown
	}
	return c
}

// Classify returns the document category of img, or CategoryUnknown when
// the image is empty, the call fails or the answer is not a known category.
func (s *Service) Classify(ctx context.Context, img *types.Image) claim.Category {
	if img == nil || len(img.Data) == 0 {
		return claim.CategoryUnknown
	}
	key := cacheKey("classify", img.Data)
	if e, ok := s.cached(key); ok {
		return e.category
	}
	raw, err := s.call(ctx, "classify", imageRequest(classifyPrompt, img, false))
	if err != nil {
		slog.Error("classify document", "error", err)
		return claim.CategoryUnknown
	}
	c := parseCategory(raw)
	if c == claim.CategoryUnknown {
		slog.Warn("classifier returned no known category")
		return c
	}
	slog.Info("document classified", "category", c)
	s.store(key, cacheEntry{category: c})
	return c
}

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// parseObject decodes the first {...} block in the reply.
func parseObject(raw string) (map[string]any, error) {
	m := jsonObject.FindString(llm.StripCodeFence(raw))
	if m == "" {
		return nil, fmt.Errorf("no json object in response")
	}
	out := map[string]any{}
	if err := json.Unmarshal([]byte(m), &out); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return out, nil
}

func copyFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Extract returns the structured fields of a classified document. Photo
// categories gain gps_lat and gps_lon from EXIF (null when absent). Any
// failure yields an empty map.
func (s *Service) Extract(ctx context.Context, img *types.Image, category claim.Category) map[string]any {
	prompt, ok := extractPrompt(category)
	if !ok || img == nil || len(img.Data) == 0 {
		return map[string]any{}
	}
	key := cacheKey("extract_"+string(category), img.Data)
	if e, ok := s.cached(key); ok {
		return copyFields(e.fields)
	}

	raw, err := s.call(ctx, "extract_"+string(category), imageRequest(prompt, img, true))
	if err != nil {
		slog.Error("extract fields", "category", category, "error", err)
		return map[string]any{}
	}
	fields, err := parseObject(raw)
	if err != nil {
		slog.Warn("extract fields", "category", category, "error", err)
		return map[string]any{}
	}

	if category == claim.CategoryVehicleDamagePhoto || category == claim.CategoryVehicleLocationPhoto {
		fields["gps_lat"], fields["gps_lon"] = nil, nil
		if lat, lon, ok := gpsFromExif(img.Data); ok {
			fields["gps_lat"], fields["gps_lon"] = lat, lon
		}
	}

	slog.Info("fields extracted", "category", category, "count", len(fields))
	s.store(key, cacheEntry{fields: copyFields(fields)})
	return fields
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// normalizeIdentity validates the OCR type and cleans its value.
func normalizeIdentity(raw map[string]any) Identity {
	typ, _ := raw["type"].(string)
	value, _ := raw["value"].(string)
	switch typ {
	case IdentityIDCard, IdentityDrivingLicense:
		value = digitsOnly(value)
	case IdentityLicensePlate:
		value = intent.CleanIdentifier(value)
	default:
		return Identity{Type: IdentityUnknown}
	}
	if value == "" {
		return Identity{Type: IdentityUnknown}
	}
	return Identity{Type: typ, Value: value}
}

// ResolveIdentity reads a national ID, driving license or plate from a
// photo. Failures resolve to IdentityUnknown.
func (s *Service) ResolveIdentity(ctx context.Context, img *types.Image) Identity {
	unknown := Identity{Type: IdentityUnknown}
	if img == nil || len(img.Data) == 0 {
		return unknown
	}
	key := cacheKey("resolve_identity", img.Data)
	if e, ok := s.cached(key); ok {
		return e.identity
	}
	raw, err := s.call(ctx, "resolve_identity", imageRequest(identityPrompt, img, true))
	if err != nil {
		slog.Error("resolve identity", "error", err)
		return unknown
	}
	obj, err := parseObject(raw)
	if err != nil {
		slog.Warn("resolve identity", "error", err)
		return unknown
	}
	id := normalizeIdentity(obj)
	// values are PII, only the type is logged
	slog.Info("identity resolved", "type", id.Type)
	if id.Type != IdentityUnknown {
		s.store(key, cacheEntry{identity: id})
	}
	return id
}

// Summarize writes a bilingual Markdown summary of a submitted claim. The
// extracted data is trimmed to the configured input token budget.
func (s *Service) Summarize(ctx context.Context, req SummaryRequest) (string, error) {
	data := req.Extracted
	if data == nil {
		data = map[string]any{}
	}
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal extracted data: %w", err)
	}
	extracted := s.budget.Truncate(string(encoded), s.summaryT)

	text, err := s.call(ctx, "summarize", &llm.Request{Parts: []llm.Part{llm.TextPart(summaryPrompt(req, extracted))}})
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("generate summary: empty response")
	}
	return text, nil
}
