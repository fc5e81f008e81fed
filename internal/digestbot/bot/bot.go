// Package bot routes inbound Telegram updates to the digest commands.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/RobinCoderZhao/digestbot/internal/digestbot/subscribers"
)

// Replies sent by the bot.
const (
	UnknownCommandReply = "Sorry, I didn't understand that command."
	UnsubscribedReply   = "You will no longer receive the daily digest. Send /start to subscribe again."
	NotSubscribedReply  = "You are not subscribed."
)

// Gateway sends a chat message.
type Gateway interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// NewsSource yields the current digest text.
type NewsSource interface {
	Fetch(ctx context.Context) (string, error)
}

// Handler dispatches commands.
type Handler struct {
	gateway Gateway
	subs    *subscribers.Registry
	news    NewsSource
	echo    bool
	logger  *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithEcho turns on echoing of plain text messages.
func WithEcho(on bool) Option {
	return func(h *Handler) { h.echo = on }
}

// NewHandler creates a command handler.
func NewHandler(gateway Gateway, subs *subscribers.Registry, news NewsSource, opts ...Option) *Handler {
	h := &Handler{
		gateway: gateway,
		subs:    subs,
		news:    news,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run consumes updates until ctx is cancelled or the channel is closed.
func (h *Handler) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			h.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate processes one update. Updates without a message are ignored.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID

	if !msg.IsCommand() {
		if h.echo && msg.Text != "" {
			h.reply(ctx, chatID, fmt.Sprintf("%d said: %s", chatID, msg.Text))
		}
		return
	}

	switch msg.Command() {
	case "start":
		h.start(ctx, chatID)
	case "news", "refresh":
		h.reply(ctx, chatID, h.fetch(ctx))
	case "stop":
		if h.subs.Unsubscribe(chatID) {
			h.reply(ctx, chatID, UnsubscribedReply)
		} else {
			h.reply(ctx, chatID, NotSubscribedReply)
		}
	default:
		h.logger.Debug("unknown command", "chat_id", chatID, "command", msg.Command())
		h.reply(ctx, chatID, UnknownCommandReply)
	}
}

func (h *Handler) start(ctx context.Context, chatID int64) {
	h.subs.Subscribe(chatID)
	h.reply(ctx, chatID, h.fetch(ctx))
}

// fetch returns the digest, or the failure description when every mirror
// failed.
func (h *Handler) fetch(ctx context.Context) string {
	text, err := h.news.Fetch(ctx)
	if err != nil {
		h.logger.Error("on-demand fetch failed", "error", err)
		return err.Error()
	}
	return text
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	if err := h.gateway.SendText(ctx, chatID, text); err != nil {
		h.logger.Error("reply failed", "chat_id", chatID, "error", err)
	}
}
