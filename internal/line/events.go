package line

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is the part of a LINE webhook event the bot reads.
type Event struct {
	Type       string  `json:"type"`
	ReplyToken string  `json:"replyToken"`
	Timestamp  int64   `json:"timestamp"`
	Source     Source  `json:"source"`
	Message    Message `json:"message"`
	Delivery   struct {
		IsRedelivery bool `json:"isRedelivery"`
	} `json:"deliveryContext"`
}

type Source struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type Message struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}

type webhookBody struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

// ParseEvents decodes a webhook body and keeps text and image messages from
// identifiable users. Everything else is dropped.
func ParseEvents(body []byte) ([]Event, error) {
	var wb webhookBody
	if err := json.Unmarshal(body, &wb); err != nil {
		return nil, fmt.Errorf("decode webhook body: %w", err)
	}
	out := make([]Event, 0, len(wb.Events))
	for _, ev := range wb.Events {
		if ev.Type != "message" || ev.Source.UserID == "" {
			continue
		}
		switch ev.Message.Type {
		case "text", "image":
			out = append(out, ev)
		}
	}
	return out, nil
}

// Time returns the event timestamp, or now when LINE sent none.
func (e *Event) Time() time.Time {
	if e.Timestamp == 0 {
		return time.Now()
	}
	return time.UnixMilli(e.Timestamp)
}
