// Package telegram is the long-polling Telegram transport. Every send is a
// push; choice lists render as one-time reply keyboards.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/claimline/internal/gateway"
	"github.com/user/claimline/internal/types"
)

const (
	maxTelegramMessage = 4096
	maxPhotoBytes      = 20 << 20
)

// BotAPI is the part of tgbotapi.BotAPI the adapter uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Dispatcher accepts inbound events for asynchronous processing.
type Dispatcher interface {
	HandleInbound(ctx context.Context, ev *types.InboundEvent, opts ...gateway.RunOption) error
}

// Adapter bridges Telegram to the gateway.
type Adapter struct {
	bot        BotAPI
	dispatcher Dispatcher
	http       *http.Client
}

// New creates a Telegram adapter for token.
func New(token string, dispatcher Dispatcher) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	slog.Info("telegram bot authorised", "username", bot.Self.UserName)
	return NewWithBot(bot, dispatcher), nil
}

// NewWithBot creates an adapter around an existing bot client.
func NewWithBot(bot BotAPI, dispatcher Dispatcher) *Adapter {
	return &Adapter{
		bot:        bot,
		dispatcher: dispatcher,
		http:       &http.Client{Timeout: 30 * time.Second},
	}
}

// UserKey is the cross-transport key of a Telegram chat.
func UserKey(chatID int64) types.UserKey {
	return types.NewUserKey("telegram", strconv.FormatInt(chatID, 10))
}

// Start long-polls for updates until ctx is cancelled.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			a.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

// inbound converts a Telegram message, or returns nil for messages that
// carry neither text nor a photo.
func (a *Adapter) inbound(msg *tgbotapi.Message) *types.InboundEvent {
	chatID := msg.Chat.ID
	ev := &types.InboundEvent{
		Source:     "telegram",
		UserKey:    UserKey(chatID),
		MessageID:  strconv.Itoa(msg.MessageID),
		ReceivedAt: msg.Time(),
		Responder:  &responder{adapter: a, chatID: chatID},
	}
	switch {
	case len(msg.Photo) > 0:
		fileID := largestPhoto(msg.Photo).FileID
		ev.Kind = types.EventImage
		ev.FetchImage = func(ctx context.Context) (*types.Image, error) {
			return a.download(ctx, fileID)
		}
	case msg.Text != "":
		ev.Kind = types.EventText
		ev.Text = msg.Text
	default:
		return nil
	}
	return ev
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	ev := a.inbound(msg)
	if ev == nil {
		return
	}
	if err := a.dispatcher.HandleInbound(ctx, ev); err != nil {
		slog.Error("queue telegram event", "user", ev.UserKey, "error", err)
	}
}

// largestPhoto picks the biggest rendition Telegram offers.
func largestPhoto(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := sizes[0]
	for _, p := range sizes[1:] {
		if p.Width*p.Height > best.Width*best.Height {
			best = p
		}
	}
	return best
}

func (a *Adapter) download(ctx context.Context, fileID string) (*types.Image, error) {
	url, err := a.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve telegram file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download telegram file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download telegram file: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
	if err != nil {
		return nil, fmt.Errorf("read telegram file: %w", err)
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
	}
	return &types.Image{Data: data, ContentType: ct}, nil
}

// Push sends messages to the chat behind user. It is registered with the
// delivery registry for the "telegram:" prefix.
func (a *Adapter) Push(_ context.Context, user types.UserKey, msgs ...types.OutboundMessage) error {
	chatID, err := strconv.ParseInt(user.NativeID(), 10, 64)
	if err != nil {
		return fmt.Errorf("parse telegram chat id %q: %w", user.NativeID(), err)
	}
	return a.send(chatID, msgs...)
}

func (a *Adapter) send(chatID int64, msgs ...types.OutboundMessage) error {
	for _, m := range msgs {
		parts := splitMessage(m.Text)
		for i, part := range parts {
			out := tgbotapi.NewMessage(chatID, part)
			if i == len(parts)-1 && len(m.Choices) > 0 {
				out.ReplyMarkup = keyboard(m.Choices)
			}
			if _, err := a.bot.Send(out); err != nil {
				return fmt.Errorf("send telegram message: %w", err)
			}
		}
	}
	return nil
}

// keyboard lays choices out one per row.
func keyboard(choices []string) tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(choices))
	for _, c := range choices {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(c)))
	}
	return tgbotapi.NewOneTimeReplyKeyboard(rows...)
}

type responder struct {
	adapter *Adapter
	chatID  int64
}

func (r *responder) Send(_ context.Context, msgs ...types.OutboundMessage) error {
	return r.adapter.send(r.chatID, msgs...)
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	runes := []rune(text)
	var parts []string
	for len(runes) > 0 {
		end := min(maxTelegramMessage, len(runes))
		parts = append(parts, string(runes[:end]))
		runes = runes[end:]
	}
	return parts
}
