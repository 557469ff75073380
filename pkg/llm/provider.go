package llm

import "context"

// Provider defines the interface for interacting with multimodal LLM backends.
// Implementations handle protocol-specific details such as request formatting,
// authentication, and response parsing.
type Provider interface {
	// Complete sends one prompt (text and images) and returns the full response.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// Name identifies the backend in usage records, e.g. "gemini".
	Name() string

	// Model is the model name requests are sent to.
	Model() string
}

// Config holds common configuration for LLM providers.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
}
