package types

import (
	"context"
	"mime"
	"strings"
	"time"
)

// EventKind distinguishes the inbound message shapes the bot understands.
type EventKind string

const (
	EventText  EventKind = "text"
	EventImage EventKind = "image"
	// EventReminder is raised by the reminder scheduler, not by a user.
	// ReceivedAt is the time the idle scan saw the session.
	EventReminder EventKind = "reminder"
)

// Image is a downloaded photo with its declared content type.
type Image struct {
	Data        []byte
	ContentType string
}

// Ext returns the file extension for the image content type, "jpg" when
// the type is missing or unrecognised.
func (i *Image) Ext() string {
	ct := i.ContentType
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mt
	}
	switch strings.ToLower(ct) {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	case "image/heic":
		return "heic"
	}
	return "jpg"
}

// ImageFetcher downloads the bytes behind an image event. Transports supply
// one so the download happens inside the user's turn.
type ImageFetcher func(ctx context.Context) (*Image, error)

// InboundEvent is one message from a chat user, normalised across transports.
type InboundEvent struct {
	Source     string       `json:"source"`
	UserKey    UserKey      `json:"user_key"`
	Kind       EventKind    `json:"kind"`
	Text       string       `json:"text,omitempty"`
	MessageID  string       `json:"message_id,omitempty"`
	ReceivedAt time.Time    `json:"received_at"`
	FetchImage ImageFetcher `json:"-"`
	Responder  Responder    `json:"-"`
}

// OutboundMessage is a plain-text reply with optional quick-reply choices.
// Each choice is both the button label and the text sent back when tapped.
type OutboundMessage struct {
	Text    string   `json:"text"`
	Choices []string `json:"choices,omitempty"`
}

// Text builds an OutboundMessage without choices.
func Text(s string) OutboundMessage {
	return OutboundMessage{Text: s}
}

// Responder sends replies for one turn. Transports decide whether a send
// uses a one-shot reply token or a push.
type Responder interface {
	Send(ctx context.Context, msgs ...OutboundMessage) error
}

// UsageRecord is one AI call in the usage ledger.
type UsageRecord struct {
	ID           UsageID   `json:"id"`
	At           time.Time `json:"at"`
	Operation    string    `json:"operation"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	TotalTokens  int       `json:"total_tokens"`
	CostUSD      float64   `json:"cost_usd"`
}
