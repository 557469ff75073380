//go:build integration

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/claimline/internal/claim"
	"github.com/user/claimline/internal/conversation"
	"github.com/user/claimline/internal/docai"
	"github.com/user/claimline/internal/gateway"
	"github.com/user/claimline/internal/line"
	"github.com/user/claimline/internal/policy"
	"github.com/user/claimline/internal/session"
	"github.com/user/claimline/internal/state"
	"github.com/user/claimline/internal/types"
	"github.com/user/claimline/internal/webhook"
	"github.com/user/claimline/pkg/llm"
)

const channelSecret = "integration-secret"

// scriptedModel answers classification from the photo bytes, extraction
// with a fixed object and summaries with plain text.
type scriptedModel struct {
	mu    sync.Mutex
	calls int
}

func (m *scriptedModel) Complete(_ context.Context, req *llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	var photo []byte
	for _, p := range req.Parts {
		if p.Image != nil {
			photo = p.Image.Data
		}
	}
	var out string
	switch {
	case photo == nil:
		out = "## Claim summary\nHospital stay, receipts attached."
	case req.JSON:
		out = "```json\n{\"total_paid\": 1200, \"hospital_name\": \"Bangkok General\"}\n```"
	default:
		out = string(photo)
	}
	return &llm.Response{Content: out, Usage: llm.Usage{InputTokens: 800, OutputTokens: 120}}, nil
}

func (m *scriptedModel) Name() string  { return "scripted" }
func (m *scriptedModel) Model() string { return "scripted-1" }

// lineAPI fakes the Messaging API. Image content is the message ID with its
// "m-" prefix removed, which the scripted model echoes as the category.
type lineAPI struct {
	mu      sync.Mutex
	replies []string
}

func (a *lineAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.URL.Path, "/content"):
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v2/bot/message/"), "/content")
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte(strings.TrimPrefix(id, "m-")))
	case r.URL.Path == "/v2/bot/message/reply" || r.URL.Path == "/v2/bot/message/push":
		var body struct {
			Messages []struct {
				Text string `json:"text"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		a.mu.Lock()
		for _, m := range body.Messages {
			a.replies = append(a.replies, m.Text)
		}
		a.mu.Unlock()
		w.Write([]byte("{}"))
	default:
		http.NotFound(w, r)
	}
}

func (a *lineAPI) said(substr string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range a.replies {
		if strings.Contains(r, substr) {
			return true
		}
	}
	return false
}

type dispatchFunc func(ctx context.Context, ev *types.InboundEvent, opts ...gateway.RunOption) error

func (f dispatchFunc) HandleInbound(ctx context.Context, ev *types.InboundEvent, opts ...gateway.RunOption) error {
	return f(ctx, ev, opts...)
}

type harness struct {
	t        *testing.T
	server   http.Handler
	done     chan *gateway.Run
	sessions *session.MemoryStore
	claims   *state.ClaimStore
	ledger   *state.UsageLedger
	api      *lineAPI
	seq      int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()

	directory := policy.NewFileDirectory(filepath.Join(dir, "policies.yaml"))
	err := directory.Save([]policy.Policy{{
		PolicyNumber: "POL-H-001", Kind: claim.TypeH, CitizenID: "1234567890123",
		FirstName: "สมชาย", LastName: "ใจดี", CoverageType: "IPD",
		InsuranceCompany: "Acme Health", Status: "active",
	}})
	if err != nil {
		t.Fatal(err)
	}

	ledger := state.NewUsageLedger(dir)
	ai, err := docai.New(&scriptedModel{}, docai.Options{
		Ledger:    ledger,
		CacheSize: 16,
		Pricing:   docai.Pricing{InputPer1K: 0.0001, OutputPer1K: 0.0004},
	})
	if err != nil {
		t.Fatal(err)
	}

	sessions := session.NewMemoryStore()
	claims := state.NewClaimStore(dir)
	engine := conversation.New(conversation.Deps{
		Sessions:  sessions,
		Claims:    claims,
		Documents: state.NewFileDocumentStore(dir),
		IDs:       state.NewSequence(dir),
		Policies:  directory,
		AI:        ai,
	})

	gw := gateway.New(engine, 4, gateway.WithTurnTimeout(10*time.Second))
	gw.Start(context.Background())
	t.Cleanup(gw.Stop)

	api := &lineAPI{}
	apiServer := httptest.NewServer(api)
	t.Cleanup(apiServer.Close)
	client := line.NewClient(line.Config{AccessToken: "tok", APIHost: apiServer.URL, DataAPIHost: apiServer.URL}, nil)

	done := make(chan *gateway.Run, 16)
	dispatcher := dispatchFunc(func(ctx context.Context, ev *types.InboundEvent, opts ...gateway.RunOption) error {
		opts = append(opts, gateway.WithOnComplete(func(r *gateway.Run) { done <- r }))
		return gw.HandleInbound(ctx, ev, opts...)
	})

	srv := webhook.NewServer(webhook.Options{
		LINE:   line.NewHandler(channelSecret, client, dispatcher),
		Claims: claims,
		Health: webhook.Health{LINEConfigured: true, AIConfigured: true, DataDir: dir},
	})
	return &harness{t: t, server: srv, done: done, sessions: sessions, claims: claims, ledger: ledger, api: api}
}

// post delivers one signed webhook event and waits for its turn.
func (h *harness) post(message string) {
	h.t.Helper()
	h.seq++
	body := fmt.Sprintf(`{"destination":"U0","events":[{"type":"message","replyToken":"r%d","timestamp":%d,`+
		`"source":{"type":"user","userId":"U42"},"message":%s}]}`, h.seq, time.Now().UnixMilli(), message)

	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(body))
	req.Header.Set("X-Line-Signature", line.Sign(channelSecret, []byte(body)))
	w := httptest.NewRecorder()
	h.server.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		h.t.Fatalf("webhook returned %d: %s", w.Code, w.Body.String())
	}

	select {
	case run := <-h.done:
		if run.Status != gateway.RunStatusComplete {
			h.t.Fatalf("run %s: %s (%v)", run.ID, run.Status, run.Error)
		}
	case <-time.After(10 * time.Second):
		h.t.Fatal("timed out waiting for turn")
	}
}

func (h *harness) text(s string) {
	h.post(fmt.Sprintf(`{"id":"t%d","type":"text","text":%q}`, h.seq+1, s))
}

func (h *harness) image(category claim.Category) {
	h.post(fmt.Sprintf(`{"id":"m-%s","type":"image"}`, category))
}

func (h *harness) session() *session.Session {
	h.t.Helper()
	s, err := h.sessions.Get(context.Background(), line.UserKey("U42"))
	if err != nil {
		h.t.Fatal(err)
	}
	return s
}

func TestHealthClaimEndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.text("ป่วย เข้าโรงพยาบาล")
	claimID := h.session().ClaimID
	if !strings.HasPrefix(claimID, "H-") {
		t.Fatalf("expected health claim id, got %q", claimID)
	}

	h.text("1234567890123")
	if got := h.session().State; got != session.StateUploadingDocuments {
		t.Fatalf("expected uploading_documents, got %s", got)
	}
	if !h.api.said("POL-H-001") {
		t.Error("policy card was not sent")
	}

	for _, c := range []claim.Category{
		claim.CategoryCitizenIDCard,
		claim.CategoryMedicalCertificate,
		claim.CategoryItemisedBill,
		claim.CategoryReceipt,
	} {
		h.image(c)
	}
	if got := h.session().State; got != session.StateReadyToSubmit {
		t.Fatalf("expected ready_to_submit, got %s", got)
	}

	h.text("ส่งคำร้อง")
	if got := h.session().State; got != session.StateSubmitted {
		t.Fatalf("expected submitted, got %s", got)
	}
	if !h.api.said(claimID) {
		t.Error("confirmation did not carry the claim id")
	}

	rec, err := h.claims.Get(ctx, claimID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != claim.StatusSubmitted || rec.SubmittedAt == nil {
		t.Errorf("record not submitted: %+v", rec)
	}
	if len(rec.Documents) != 4 {
		t.Errorf("expected 4 documents, got %d", len(rec.Documents))
	}
	summary, err := h.claims.Summary(ctx, claimID)
	if err != nil || !strings.Contains(summary, "Claim summary") {
		t.Errorf("summary = %q, %v", summary, err)
	}

	records, err := h.ledger.Month(ctx, time.Now().UTC().Format("2006-01"))
	if err != nil {
		t.Fatal(err)
	}
	ops := map[string]int{}
	for _, r := range state.Summarize(records) {
		ops[r.Operation] = r.Calls
	}
	if ops["classify"] != 4 || ops["summarize"] != 1 {
		t.Errorf("usage by operation = %v", ops)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/claims/"+claimID, nil)
	w := httptest.NewRecorder()
	h.server.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get claim: %d", w.Code)
	}
	var got map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["status"] != string(claim.StatusSubmitted) || got["summary"] == nil {
		t.Errorf("claim response = %v", got)
	}
}

func TestTamperedWebhookNeverReachesEngine(t *testing.T) {
	h := newHarness(t)
	body := []byte(`{"destination":"U0","events":[{"type":"message","replyToken":"r","timestamp":1,` +
		`"source":{"type":"user","userId":"U42"},"message":{"id":"t1","type":"text","text":"แจ้งเคลม"}}]}`)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Line-Signature", line.Sign("wrong-secret", body))
	w := httptest.NewRecorder()
	h.server.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	select {
	case run := <-h.done:
		t.Fatalf("unexpected run %s", run.ID)
	case <-time.After(100 * time.Millisecond):
	}
}
