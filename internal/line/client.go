// Package line connects the intake bot to the LINE Messaging API: webhook
// verification and parsing, reply and push sends, and image downloads.
package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/user/claimline/internal/gateway"
	"github.com/user/claimline/internal/types"
)

const (
	DefaultAPIHost     = "https://api.line.me"
	DefaultDataAPIHost = "https://api-data.line.me"

	// maxMessages is the per-request message limit of reply and push.
	maxMessages = 5
	// maxLabel is the quick-reply label limit in characters.
	maxLabel = 20
	// maxQuickReply is the quick-reply item limit.
	maxQuickReply = 13
	// maxImageBytes caps downloads; LINE images are far smaller.
	maxImageBytes = 20 << 20
)

// Config holds the channel credentials and API endpoints.
type Config struct {
	ChannelSecret string
	AccessToken   string
	APIHost       string
	DataAPIHost   string
	Timeout       time.Duration
}

// Client is a minimal LINE Messaging API client.
type Client struct {
	token    string
	apiHost  string
	dataHost string
	http     *http.Client
	retry    *gateway.RetryPolicy
}

// NewClient creates a client. Empty hosts use the public LINE endpoints.
func NewClient(cfg Config, retry *gateway.RetryPolicy) *Client {
	if cfg.APIHost == "" {
		cfg.APIHost = DefaultAPIHost
	}
	if cfg.DataAPIHost == "" {
		cfg.DataAPIHost = DefaultDataAPIHost
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if retry == nil {
		retry = gateway.DefaultRetryPolicy()
	}
	return &Client{
		token:    cfg.AccessToken,
		apiHost:  strings.TrimRight(cfg.APIHost, "/"),
		dataHost: strings.TrimRight(cfg.DataAPIHost, "/"),
		http:     &http.Client{Timeout: cfg.Timeout},
		retry:    retry,
	}
}

type action struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

type quickReplyItem struct {
	Type   string `json:"type"`
	Action action `json:"action"`
}

type quickReply struct {
	Items []quickReplyItem `json:"items"`
}

type textMessage struct {
	Type       string      `json:"type"`
	Text       string      `json:"text"`
	QuickReply *quickReply `json:"quickReply,omitempty"`
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// toWire converts outbound messages to LINE text messages. Choices become
// message-action quick replies whose label is trimmed to the LINE limit and
// whose text is the full choice.
func toWire(msgs []types.OutboundMessage) []textMessage {
	out := make([]textMessage, 0, len(msgs))
	for _, m := range msgs {
		tm := textMessage{Type: "text", Text: truncateRunes(m.Text, 5000)}
		if len(m.Choices) > 0 {
			qr := &quickReply{}
			for i, c := range m.Choices {
				if i == maxQuickReply {
					break
				}
				qr.Items = append(qr.Items, quickReplyItem{
					Type:   "action",
					Action: action{Type: "message", Label: truncateRunes(c, maxLabel), Text: c},
				})
			}
			tm.QuickReply = qr
		}
		out = append(out, tm)
	}
	return out
}

// statusError is an unsuccessful API response.
type statusError struct {
	op     string
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("line %s: status %d: %s", e.op, e.status, e.body)
}

// checkStatus turns a non-2xx response into an error. Client errors other
// than rate limiting are permanent.
func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	err := &statusError{op: op, status: resp.StatusCode, body: strings.TrimSpace(string(body))}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return gateway.Permanent(err)
	}
	return err
}

func (c *Client) post(ctx context.Context, op, path string, payload any, header http.Header) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiHost+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("line %s: %w", op, err)
	}
	defer resp.Body.Close()
	return checkStatus(op, resp)
}

// Reply answers with a one-shot reply token. At most five messages fit.
func (c *Client) Reply(ctx context.Context, replyToken string, msgs ...types.OutboundMessage) error {
	if len(msgs) > maxMessages {
		return fmt.Errorf("line reply: %d messages exceeds limit of %d", len(msgs), maxMessages)
	}
	return c.post(ctx, "reply", "/v2/bot/message/reply", map[string]any{
		"replyToken": replyToken,
		"messages":   toWire(msgs),
	}, nil)
}

// Push sends messages to a user, five per request. Each request carries a
// retry key so a retried push is not delivered twice.
func (c *Client) Push(ctx context.Context, to string, msgs ...types.OutboundMessage) error {
	for start := 0; start < len(msgs); start += maxMessages {
		end := min(start+maxMessages, len(msgs))
		payload := map[string]any{"to": to, "messages": toWire(msgs[start:end])}
		header := http.Header{"X-Line-Retry-Key": []string{uuid.NewString()}}
		err := c.retry.Execute(ctx, func() error {
			return c.post(ctx, "push", "/v2/bot/message/push", payload, header)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Content downloads the bytes of an image message, retrying transient
// failures.
func (c *Client) Content(ctx context.Context, messageID string) (*types.Image, error) {
	var img *types.Image
	err := c.retry.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.dataHost+"/v2/bot/message/"+messageID+"/content", nil)
		if err != nil {
			return gateway.Permanent(fmt.Errorf("create content request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("line content: %w", err)
		}
		defer resp.Body.Close()
		if err := checkStatus("content", resp); err != nil {
			return err
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
		if err != nil {
			return fmt.Errorf("read content: %w", err)
		}
		img = &types.Image{Data: data, ContentType: resp.Header.Get("Content-Type")}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("line content downloaded", "message_id", messageID, "bytes", len(img.Data), "content_type", img.ContentType)
	return img, nil
}
