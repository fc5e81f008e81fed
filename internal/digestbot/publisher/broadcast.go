package publisher

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/RobinCoderZhao/digestbot/internal/digestbot/subscribers"
)

// Sender delivers text to one chat.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// DeliveryObserver is notified of every send attempt.
type DeliveryObserver interface {
	ObserveDelivery(err error)
}

// Report summarizes one fan-out.
type Report struct {
	Delivered []int64
	Removed   []int64
}

// Broadcaster fans a digest out to every subscriber, one send at a time.
// A failed send unsubscribes the recipient.
type Broadcaster struct {
	sender   Sender
	subs     *subscribers.Registry
	limiter  *rate.Limiter
	observer DeliveryObserver
	logger   *slog.Logger
}

// NewBroadcaster creates a Broadcaster over subs.
func NewBroadcaster(sender Sender, subs *subscribers.Registry) *Broadcaster {
	return &Broadcaster{
		sender: sender,
		subs:   subs,
		logger: slog.Default(),
	}
}

// SetRateLimit paces sends to perSecond messages with the given burst.
// perSecond <= 0 removes the limit.
func (b *Broadcaster) SetRateLimit(perSecond float64, burst int) {
	if perSecond <= 0 {
		b.limiter = nil
		return
	}
	if burst < 1 {
		burst = 1
	}
	b.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
}

// SetObserver attaches o to every subsequent send.
func (b *Broadcaster) SetObserver(o DeliveryObserver) {
	b.observer = o
}

// Broadcast sends text to a snapshot of the subscribers. Recipients whose
// delivery fails are removed from the registry and not retried.
func (b *Broadcaster) Broadcast(ctx context.Context, text string) Report {
	var rep Report
	for _, id := range b.subs.Snapshot() {
		if ctx.Err() != nil {
			b.logger.Warn("broadcast interrupted", "error", ctx.Err(), "delivered", len(rep.Delivered))
			break
		}
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				b.logger.Warn("broadcast interrupted", "error", err, "delivered", len(rep.Delivered))
				break
			}
		}
		err := b.sender.SendText(ctx, id, text)
		if b.observer != nil {
			b.observer.ObserveDelivery(err)
		}
		if err != nil {
			b.logger.Error("delivery failed, unsubscribing", "chat_id", id, "error", err)
			b.subs.Unsubscribe(id)
			rep.Removed = append(rep.Removed, id)
			continue
		}
		rep.Delivered = append(rep.Delivered, id)
	}
	return rep
}
