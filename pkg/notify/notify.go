// Package notify provides the outbound notification channels used by the
// digest bot: Telegram chats, a push-notification relay, webhooks and email.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// Channel represents a notification channel type.
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelPush     Channel = "push"
	ChannelWebhook  Channel = "webhook"
	ChannelEmail    Channel = "email"
)

// Message is a digest notification as seen by relay sinks.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Date  string `json:"date,omitempty"` // YYYY-MM-DD of the digest
}

// Notifier defines the interface for sending notifications.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
	Channel() Channel
}

// Dispatcher routes messages to registered notification channels.
type Dispatcher struct {
	notifiers map[Channel]Notifier
	logger    *slog.Logger
}

// NewDispatcher creates a new notification dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		notifiers: make(map[Channel]Notifier),
		logger:    slog.Default(),
	}
}

// Register adds a notifier to the dispatcher, replacing any previous one on
// the same channel.
func (d *Dispatcher) Register(n Notifier) {
	d.notifiers[n.Channel()] = n
}

// Channels returns the registered channels in a stable order.
func (d *Dispatcher) Channels() []Channel {
	channels := make([]Channel, 0, len(d.notifiers))
	for ch := range d.notifiers {
		channels = append(channels, ch)
	}
	slices.Sort(channels)
	return channels
}

// Dispatch sends a message to the specified channels. Every channel is
// attempted; failures are joined into the returned error.
func (d *Dispatcher) Dispatch(ctx context.Context, channels []Channel, msg Message) error {
	var errs []error
	for _, ch := range channels {
		notifier, ok := d.notifiers[ch]
		if !ok {
			d.logger.Warn("notifier not registered", "channel", ch)
			continue
		}
		if err := notifier.Send(ctx, msg); err != nil {
			d.logger.Error("notification failed", "channel", ch, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", ch, err))
		} else {
			d.logger.Info("notification sent", "channel", ch, "title", msg.Title)
		}
	}
	return errors.Join(errs...)
}

// SendAll sends a message to all registered channels.
func (d *Dispatcher) SendAll(ctx context.Context, msg Message) error {
	return d.Dispatch(ctx, d.Channels(), msg)
}
