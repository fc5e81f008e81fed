package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MaxMessageLength is the Telegram limit for a single text message.
const MaxMessageLength = 4096

// TelegramConfig holds Telegram bot configuration.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token" json:"bot_token" env:"TG_BOT_TOKEN"`
	// ChannelID optionally names a channel (numeric ID or @username) that
	// receives every daily digest alongside the relay sinks.
	ChannelID   string `yaml:"channel_id" json:"channel_id" env:"TG_CHANNEL_ID"`
	APIEndpoint string `yaml:"api_endpoint" json:"api_endpoint"`
	PollTimeout int    `yaml:"poll_timeout" json:"poll_timeout"`
}

// TelegramNotifier is the messaging gateway: it sends chat messages and
// exposes the inbound update stream.
type TelegramNotifier struct {
	config TelegramConfig
	bot    *tgbotapi.BotAPI
}

// NewTelegramNotifier authorizes against the Bot API (getMe) and returns a
// ready gateway. A nil client means http.DefaultClient.
func NewTelegramNotifier(cfg TelegramConfig, client *http.Client) (*TelegramNotifier, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("telegram: bot token is required")
	}
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 60
	}
	if client == nil {
		client = http.DefaultClient
	}

	tgbotapi.SetLogger(botLogger{slog.Default()})
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, cfg.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram: authorize bot: %w", err)
	}
	return &TelegramNotifier{config: cfg, bot: bot}, nil
}

func (t *TelegramNotifier) Channel() Channel { return ChannelTelegram }

// Username returns the bot's own username as reported by getMe.
func (t *TelegramNotifier) Username() string { return t.bot.Self.UserName }

// SendText delivers text to a single chat.
func (t *TelegramNotifier) SendText(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, Truncate(text, MaxMessageLength))); err != nil {
		return fmt.Errorf("send telegram message to %d: %w", chatID, err)
	}
	return nil
}

// Send posts msg to the configured broadcast channel.
func (t *TelegramNotifier) Send(ctx context.Context, msg Message) error {
	if t.config.ChannelID == "" {
		return errors.New("telegram: no channel_id configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	text := msg.Body
	if msg.Title != "" {
		text = msg.Title + "\n\n" + msg.Body
	}
	text = Truncate(text, MaxMessageLength)

	var cfg tgbotapi.MessageConfig
	if id, err := strconv.ParseInt(t.config.ChannelID, 10, 64); err == nil {
		cfg = tgbotapi.NewMessage(id, text)
	} else {
		cfg = tgbotapi.NewMessageToChannel(t.config.ChannelID, text)
	}
	if _, err := t.bot.Send(cfg); err != nil {
		return fmt.Errorf("send telegram channel message: %w", err)
	}
	return nil
}

// Updates starts long polling and returns the inbound update stream. The
// stream is closed by StopUpdates.
func (t *TelegramNotifier) Updates() tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.config.PollTimeout
	return t.bot.GetUpdatesChan(u)
}

// StopUpdates stops long polling.
func (t *TelegramNotifier) StopUpdates() {
	t.bot.StopReceivingUpdates()
}

// Truncate shortens s to at most limit runes, marking the cut with "...".
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-3]) + "..."
}

// botLogger routes the Bot API library's own messages (polling retries and
// the like) into slog.
type botLogger struct{ l *slog.Logger }

func (b botLogger) Println(v ...interface{}) {
	b.l.Warn(strings.TrimSpace(fmt.Sprintln(v...)), "component", "tgbotapi")
}

func (b botLogger) Printf(format string, v ...interface{}) {
	b.l.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "tgbotapi")
}
