package line

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/user/claimline/internal/gateway"
	"github.com/user/claimline/internal/types"
)

// maxBodyBytes caps webhook bodies.
const maxBodyBytes = 1 << 20

// Dispatcher accepts inbound events for asynchronous processing.
type Dispatcher interface {
	HandleInbound(ctx context.Context, ev *types.InboundEvent, opts ...gateway.RunOption) error
}

// Handler is the LINE webhook endpoint. It verifies the signature, queues
// every text and image message and answers 200 without waiting for turns.
type Handler struct {
	secret     string
	client     *Client
	dispatcher Dispatcher
}

// NewHandler creates the webhook handler.
func NewHandler(channelSecret string, client *Client, dispatcher Dispatcher) *Handler {
	return &Handler{secret: channelSecret, client: client, dispatcher: dispatcher}
}

// UserKey is the cross-transport key of a LINE user.
func UserKey(userID string) types.UserKey {
	return types.NewUserKey("line", userID)
}

// Inbound converts a parsed LINE event into an inbound event whose image
// download and replies go through client.
func Inbound(ev Event, client *Client) *types.InboundEvent {
	in := &types.InboundEvent{
		Source:     "line",
		UserKey:    UserKey(ev.Source.UserID),
		MessageID:  ev.Message.ID,
		ReceivedAt: ev.Time(),
		Responder:  NewResponder(client, ev.Source.UserID, ev.ReplyToken),
	}
	switch ev.Message.Type {
	case "image":
		in.Kind = types.EventImage
		messageID := ev.Message.ID
		in.FetchImage = func(ctx context.Context) (*types.Image, error) {
			return client.Content(ctx, messageID)
		}
	default:
		in.Kind = types.EventText
		in.Text = ev.Message.Text
	}
	return in
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	if err := VerifySignature(h.secret, body, r.Header.Get("X-Line-Signature")); err != nil {
		slog.Warn("rejected line webhook", "error", err, "remote", r.RemoteAddr)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}
	events, err := ParseEvents(body)
	if err != nil {
		slog.Warn("unparseable line webhook", "error", err)
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	for _, ev := range events {
		in := Inbound(ev, h.client)
		if err := h.dispatcher.HandleInbound(r.Context(), in); err != nil {
			slog.Error("queue line event", "user", in.UserKey, "error", err)
		}
	}
	slog.Debug("line webhook accepted", "events", len(events))
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "OK")
}
