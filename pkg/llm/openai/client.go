package openai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/user/claimline/pkg/llm"
)

// Client implements the llm.Provider interface for OpenAI-compatible APIs.
type Client struct {
	config *llm.Config
	client *openai.Client
}

// New creates a new OpenAI-compatible client with the given configuration.
// An empty BaseURL uses the public OpenAI endpoint.
func New(config *llm.Config) *Client {
	cfg := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	}
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}
	return &Client{config: config, client: openai.NewClientWithConfig(cfg)}
}

func (c *Client) Name() string  { return "openai" }
func (c *Client) Model() string { return c.config.Model }

// buildMessage turns prompt parts into a single user message. Text-only
// prompts use plain content; prompts with images use multi-part content.
func buildMessage(parts []llm.Part) openai.ChatCompletionMessage {
	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	hasImage := false
	for _, p := range parts {
		if p.Image != nil {
			hasImage = true
			break
		}
	}
	if !hasImage {
		texts := make([]string, 0, len(parts))
		for _, p := range parts {
			texts = append(texts, p.Text)
		}
		msg.Content = strings.Join(texts, "\n\n")
		return msg
	}
	for _, p := range parts {
		if p.Image != nil {
			msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: p.Image.DataURL(), Detail: openai.ImageURLDetailAuto},
			})
			continue
		}
		msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: p.Text,
		})
	}
	return msg
}

// Complete sends a chat completion request and returns the full response.
func (c *Client) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	body := openai.ChatCompletionRequest{
		Model:    c.config.Model,
		Messages: []openai.ChatCompletionMessage{buildMessage(req.Parts)},
	}

	body.MaxTokens = c.config.MaxTokens
	if req.MaxTokens > 0 {
		body.MaxTokens = req.MaxTokens
	}
	body.Temperature = c.config.Temperature
	if req.Temperature != nil {
		body.Temperature = *req.Temperature
	}
	if req.JSON {
		body.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	return &llm.Response{
		Content: resp.Choices[0].Message.Content,
		Usage: llm.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}
