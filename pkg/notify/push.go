package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// DefaultPushURL is the Pushbullet pushes endpoint.
const DefaultPushURL = "https://api.pushbullet.com/v2/pushes"

// EmptyBodyPlaceholder is relayed when the digest text is empty.
const EmptyBodyPlaceholder = "(no news today)"

// PushConfig holds push relay configuration.
type PushConfig struct {
	URL   string `yaml:"url" json:"url" env:"DIGESTBOT_PUSH_URL"`
	Token string `yaml:"token" json:"token" env:"DIGESTBOT_PUSH_TOKEN"`
}

// PushNotifier relays digests to a Pushbullet-compatible push service as a
// "note" push.
type PushNotifier struct {
	config PushConfig
	http   *http.Client
	logger *slog.Logger
}

// NewPushNotifier creates a push relay. A nil client means http.DefaultClient.
func NewPushNotifier(cfg PushConfig, client *http.Client) *PushNotifier {
	if cfg.URL == "" {
		cfg.URL = DefaultPushURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &PushNotifier{
		config: cfg,
		http:   client,
		logger: slog.Default(),
	}
}

func (p *PushNotifier) Channel() Channel { return ChannelPush }

type pushRequest struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

type pushResponse struct {
	Iden   string `json:"iden"`
	Active bool   `json:"active"`
}

// Send posts msg as a note push.
func (p *PushNotifier) Send(ctx context.Context, msg Message) error {
	body := msg.Body
	if body == "" {
		body = EmptyBodyPlaceholder
	}
	payload, err := json.Marshal(pushRequest{Type: "note", Title: msg.Title, Body: body})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.config.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Access-Token", p.config.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("push API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var out pushResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode push response: %w", err)
	}
	p.logger.Debug("push accepted", "iden", out.Iden)
	return nil
}
