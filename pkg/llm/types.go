package llm

import (
	"encoding/base64"
	"strings"
)

// Blob is inline binary content such as a photo.
type Blob struct {
	MIMEType string
	Data     []byte
}

// DataURL encodes the blob as a data: URL.
func (b *Blob) DataURL() string {
	mt := b.MIMEType
	if mt == "" {
		mt = "image/jpeg"
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(b.Data)
}

// Part is one piece of a prompt. Exactly one of Text or Image is set.
type Part struct {
	Text  string
	Image *Blob
}

// TextPart builds a text part.
func TextPart(s string) Part { return Part{Text: s} }

// ImagePart builds an inline image part.
func ImagePart(mimeType string, data []byte) Part {
	return Part{Image: &Blob{MIMEType: mimeType, Data: data}}
}

// Request is a single-turn prompt.
type Request struct {
	Parts []Part
	// JSON asks the backend to constrain output to a JSON object.
	JSON bool
	// MaxTokens and Temperature override the provider config when non-zero.
	MaxTokens   int
	Temperature *float32
}

// Response represents a complete response from an LLM provider.
type Response struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// Usage tracks token consumption for a request/response pair.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// StripCodeFence removes a surrounding ``` or ```json fence that models
// sometimes wrap JSON answers in.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
