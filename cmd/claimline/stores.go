package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/user/claimline/internal/config"
	"github.com/user/claimline/internal/docai"
	"github.com/user/claimline/internal/policy"
	"github.com/user/claimline/internal/session"
	"github.com/user/claimline/internal/state"
	"github.com/user/claimline/internal/types"
	"github.com/user/claimline/pkg/llm"
	"github.com/user/claimline/pkg/llm/gemini"
	"github.com/user/claimline/pkg/llm/openai"
)

// closer collects cleanup functions run in reverse order.
type closer []func()

func (c *closer) add(fn func()) { *c = append(*c, fn) }
func (c closer) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func openSessions(ctx context.Context, cfg *config.Config, cl *closer) (session.Store, error) {
	switch cfg.Sessions.Backend {
	case "redis":
		store, err := openRedis(ctx, cfg)
		if err != nil {
			return nil, err
		}
		cl.add(func() { store.Close() })
		return store, nil
	default:
		return session.NewMemoryStore(), nil
	}
}

func openPolicies(ctx context.Context, cfg *config.Config, cl *closer) (policy.Directory, error) {
	if cfg.Policies.DSN == "" {
		return policy.NewFileDirectory(cfg.PolicyPath()), nil
	}
	dir, err := policy.OpenSQLDirectory(ctx, cfg.Policies.DSN)
	if err != nil {
		return nil, err
	}
	cl.add(func() { dir.Close() })
	return dir, nil
}

func openDocuments(cfg *config.Config) (types.DocumentStore, error) {
	if cfg.Documents.Backend != "s3" {
		return state.NewFileDocumentStore(cfg.DataDir), nil
	}
	return state.NewS3DocumentStore(state.S3Config{
		Endpoint:  cfg.Documents.Endpoint,
		Region:    cfg.Documents.Region,
		AccessKey: cfg.Documents.AccessKey,
		SecretKey: cfg.Documents.SecretKey,
		Bucket:    cfg.Documents.Bucket,
		UseSSL:    cfg.Documents.UseSSL,
	})
}

var errNoAPIKey = errors.New("llm api key not configured")

// offline stands in for a provider when no API key is configured, so the
// bot still answers and document AI degrades to unknown results.
type offline struct{ name, model string }

func (o offline) Complete(context.Context, *llm.Request) (*llm.Response, error) {
	return nil, errNoAPIKey
}
func (o offline) Name() string  { return o.name }
func (o offline) Model() string { return o.model }

func newProvider(ctx context.Context, cfg *config.Config) (llm.Provider, error) {
	lc := &llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	}
	if lc.APIKey == "" {
		slog.Warn("no llm api key, document AI disabled", "provider", cfg.LLM.Provider)
		return offline{name: cfg.LLM.Provider, model: cfg.LLM.Model}, nil
	}
	switch cfg.LLM.Provider {
	case "openai":
		return openai.New(lc), nil
	case "gemini":
		return gemini.New(ctx, lc)
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", cfg.LLM.Provider)
	}
}

func newDocumentAI(ctx context.Context, cfg *config.Config) (*docai.Service, error) {
	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create llm provider: %w", err)
	}
	budget, err := docai.NewBudget(provider.Model())
	if err != nil {
		slog.Warn("tokenizer unavailable, estimating summary tokens", "error", err)
		budget = nil
	}
	return docai.New(provider, docai.Options{
		Ledger:             state.NewUsageLedger(cfg.DataDir),
		Budget:             budget,
		CacheSize:          cfg.AI.CacheSize,
		SummaryInputTokens: cfg.AI.SummaryInputTokens,
		Pricing: docai.Pricing{
			InputPer1K:  cfg.AI.PriceInputPer1K,
			OutputPer1K: cfg.AI.PriceOutputPer1K,
		},
	})
}
