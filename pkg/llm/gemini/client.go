package gemini

import (
	"context"
	"fmt"

	genai "google.golang.org/genai"

	"github.com/user/claimline/pkg/llm"
)

const defaultModel = "gemini-2.5-flash"

// Client implements llm.Provider on the Gemini API.
type Client struct {
	config *llm.Config
	cli    *genai.Client
}

// New creates a Gemini client. BaseURL is only set when pointing at a proxy.
func New(ctx context.Context, config *llm.Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	cc := &genai.ClientConfig{APIKey: config.APIKey, Backend: genai.BackendGeminiAPI}
	if config.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}
	cli, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return &Client{config: config, cli: cli}, nil
}

func (c *Client) Name() string  { return "gemini" }
func (c *Client) Model() string { return c.config.Model }

func buildContents(parts []llm.Part) []*genai.Content {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.Image != nil {
			mt := p.Image.MIMEType
			if mt == "" {
				mt = "image/jpeg"
			}
			out = append(out, genai.NewPartFromBytes(p.Image.Data, mt))
			continue
		}
		out = append(out, genai.NewPartFromText(p.Text))
	}
	return []*genai.Content{{Role: "user", Parts: out}}
}

func (c *Client) generateConfig(req *llm.Request) *genai.GenerateContentConfig {
	gc := &genai.GenerateContentConfig{}
	maxTokens := c.config.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	if maxTokens > 0 {
		gc.MaxOutputTokens = int32(maxTokens)
	}
	if req.Temperature != nil {
		t := *req.Temperature
		gc.Temperature = &t
	} else if c.config.Temperature != 0 {
		t := c.config.Temperature
		gc.Temperature = &t
	}
	if req.JSON {
		gc.ResponseMIMEType = "application/json"
	}
	return gc
}

// Complete sends the prompt and returns the text of the first candidate.
func (c *Client) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	resp, err := c.cli.Models.GenerateContent(ctx, c.config.Model, buildContents(req.Parts), c.generateConfig(req))
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	out := &llm.Response{Content: resp.Text()}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = llm.Usage{
			InputTokens:  int(u.PromptTokenCount),
			OutputTokens: int(u.CandidatesTokenCount),
			TotalTokens:  int(u.TotalTokenCount),
		}
	}
	return out, nil
}
