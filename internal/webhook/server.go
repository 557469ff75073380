// Package webhook is the HTTP surface: the LINE webhook, the health probe
// and the read-only claim API.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/user/claimline/internal/claim"
	"github.com/user/claimline/internal/state"
	"github.com/user/claimline/internal/types"
)

// Claims is the read side of the claim repository.
type Claims interface {
	Get(ctx context.Context, claimID string) (*claim.Record, error)
	List(ctx context.Context, filter types.ClaimFilter) ([]*claim.Record, error)
	ExtractedFields(ctx context.Context, claimID string) (map[string]any, error)
	Summary(ctx context.Context, claimID string) (string, error)
}

// Health is what /health reports on.
type Health struct {
	LINEConfigured bool
	AIConfigured   bool
	// DataDir is probed for writability on every request.
	DataDir string
}

// Options configure a Server.
type Options struct {
	// LINE handles POST /callback and POST /webhook. Nil leaves them unrouted.
	LINE           http.Handler
	Claims         Claims
	Health         Health
	AllowedOrigins []string
}

// Server routes the bot's HTTP endpoints.
type Server struct {
	router chi.Router
	claims Claims
	health Health
}

// NewServer builds the router.
func NewServer(opts Options) *Server {
	s := &Server{
		router: chi.NewRouter(),
		claims: opts.Claims,
		health: opts.Health,
	}
	r := s.router

	r.Get("/health", s.handleHealth)
	if opts.LINE != nil {
		r.Method(http.MethodPost, "/callback", opts.LINE)
		r.Method(http.MethodPost, "/webhook", opts.LINE)
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))
		r.Get("/api/claims", s.handleListClaims)
		r.Get("/api/claims/{id}", s.handleGetClaim)
	})
	return s
}

// ServeHTTP delegates to the router, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type healthResponse struct {
	Status          string `json:"status"`
	LINEConfigured  bool   `json:"line_configured"`
	AIConfigured    bool   `json:"ai_configured"`
	DataDirWritable bool   `json:"data_dir_writable"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		LINEConfigured:  s.health.LINEConfigured,
		AIConfigured:    s.health.AIConfigured,
		DataDirWritable: writable(s.health.DataDir),
	}
	status := http.StatusOK
	resp.Status = "healthy"
	if !resp.LINEConfigured || !resp.AIConfigured || !resp.DataDirWritable {
		status = http.StatusServiceUnavailable
		resp.Status = "degraded"
	}
	writeJSON(w, status, resp)
}

// writable creates and removes a probe file in dir.
func writable(dir string) bool {
	if dir == "" {
		return false
	}
	f, err := os.CreateTemp(dir, ".health-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}

func (s *Server) handleListClaims(w http.ResponseWriter, r *http.Request) {
	if s.claims == nil {
		writeError(w, http.StatusServiceUnavailable, "claims not configured")
		return
	}
	q := r.URL.Query()
	filter := types.ClaimFilter{
		Status:   claim.Status(q.Get("status")),
		Type:     claim.Type(q.Get("type")),
		DateFrom: q.Get("from"),
		DateTo:   q.Get("to"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}
	if filter.Type != "" && !filter.Type.Valid() {
		writeError(w, http.StatusBadRequest, "unknown claim type")
		return
	}
	records, err := s.claims.List(r.Context(), filter)
	if err != nil {
		slog.Error("list claims failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if records == nil {
		records = []*claim.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

type claimResponse struct {
	*claim.Record
	ExtractedData map[string]any `json:"extracted_data"`
	Summary       string         `json:"summary,omitempty"`
}

func (s *Server) handleGetClaim(w http.ResponseWriter, r *http.Request) {
	if s.claims == nil {
		writeError(w, http.StatusServiceUnavailable, "claims not configured")
		return
	}
	id := chi.URLParam(r, "id")
	if !claim.IDPattern.MatchString(id) {
		writeError(w, http.StatusNotFound, "claim not found")
		return
	}
	ctx := r.Context()
	rec, err := s.claims.Get(ctx, id)
	if errors.Is(err, state.ErrClaimNotFound) {
		writeError(w, http.StatusNotFound, "claim not found")
		return
	}
	if err != nil {
		slog.Error("get claim failed", "claim_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	resp := claimResponse{Record: rec}
	if resp.ExtractedData, err = s.claims.ExtractedFields(ctx, id); err != nil {
		slog.Warn("load extracted fields", "claim_id", id, "error", err)
	}
	if resp.ExtractedData == nil {
		resp.ExtractedData = map[string]any{}
	}
	if resp.Summary, err = s.claims.Summary(ctx, id); err != nil {
		slog.Debug("no summary", "claim_id", id, "error", err)
	}
	writeJSON(w, http.StatusOK, resp)
}
