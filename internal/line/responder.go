package line

import (
	"context"
	"log/slog"
	"sync"

	"github.com/user/claimline/internal/types"
)

// Responder sends the replies of one turn. The first send uses the reply
// token; every later send, and any overflow past the reply limit, is pushed.
// A failed reply falls back to push.
type Responder struct {
	client     *Client
	userID     string
	replyToken string

	mu   sync.Mutex
	used bool
}

// NewResponder creates a responder for one inbound event.
func NewResponder(client *Client, userID, replyToken string) *Responder {
	return &Responder{client: client, userID: userID, replyToken: replyToken}
}

func (r *Responder) Send(ctx context.Context, msgs ...types.OutboundMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	r.mu.Lock()
	useReply := !r.used && r.replyToken != ""
	r.used = true
	r.mu.Unlock()

	if useReply {
		n := min(len(msgs), maxMessages)
		err := r.client.Reply(ctx, r.replyToken, msgs[:n]...)
		if err == nil {
			msgs = msgs[n:]
		} else {
			slog.Warn("line reply failed, pushing instead", "user_id", r.userID, "error", err)
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return r.client.Push(ctx, r.userID, msgs...)
}
