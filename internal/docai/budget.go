package docai

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// runesPerToken approximates token counts when no tokenizer is loaded.
const runesPerToken = 4

// Budget counts and trims prompt text to a token limit.
type Budget struct {
	tokenizer *tiktoken.Tiktoken
}

// NewBudget loads a tokenizer for model, falling back to cl100k_base for
// models tiktoken does not know (Gemini among them).
func NewBudget(model string) (*Budget, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &Budget{tokenizer: enc}, nil
}

// Count returns the token count for text. A nil Budget estimates from the
// rune count.
func (b *Budget) Count(text string) int {
	if b == nil || b.tokenizer == nil {
		n := utf8.RuneCountInString(text)
		return (n + runesPerToken - 1) / runesPerToken
	}
	return len(b.tokenizer.Encode(text, nil, nil))
}

// Truncate cuts text to at most maxTokens tokens. Non-positive limits
// return text unchanged.
func (b *Budget) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	if b == nil || b.tokenizer == nil {
		runes := []rune(text)
		limit := maxTokens * runesPerToken
		if len(runes) <= limit {
			return text
		}
		return string(runes[:limit])
	}
	tokens := b.tokenizer.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return b.tokenizer.Decode(tokens[:maxTokens])
}
