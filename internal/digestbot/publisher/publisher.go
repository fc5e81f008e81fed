// Package publisher runs the daily digest cycle: retrieve, relay, fan out.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/RobinCoderZhao/digestbot/pkg/notify"
)

// ErrEmptyDigest is returned when a mirror answered with a blank body.
var ErrEmptyDigest = errors.New("publisher: digest is empty")

// NewsSource yields the current digest text.
type NewsSource interface {
	Fetch(ctx context.Context) (string, error)
}

// Relay forwards the digest to secondary sinks.
type Relay interface {
	SendAll(ctx context.Context, msg notify.Message) error
}

// CycleObserver is notified of relay attempts and finished cycles.
type CycleObserver interface {
	ObserveRelay(err error)
	ObserveCycle(d time.Duration, err error)
}

// Publisher wires retrieval, relay and fan-out together.
type Publisher struct {
	news        NewsSource
	relay       Relay
	broadcaster *Broadcaster
	titleLabel  string
	observer    CycleObserver
	now         func() time.Time
	logger      *slog.Logger
}

// NewPublisher creates a publisher. relay may be nil when no sink is
// configured. titleLabel prefixes the date in relayed titles.
func NewPublisher(news NewsSource, relay Relay, broadcaster *Broadcaster, titleLabel string) *Publisher {
	return &Publisher{
		news:        news,
		relay:       relay,
		broadcaster: broadcaster,
		titleLabel:  titleLabel,
		now:         time.Now,
		logger:      slog.Default(),
	}
}

// SetObserver attaches o to every subsequent cycle.
func (p *Publisher) SetObserver(o CycleObserver) {
	p.observer = o
}

// Title returns the relay title for day t: the label followed by YYYY-MM-DD.
func (p *Publisher) Title(t time.Time) string {
	return p.titleLabel + t.Format(time.DateOnly)
}

// Run performs one cycle. Retrieval failure aborts the cycle. Relay failure
// is logged and does not prevent the chat fan-out.
func (p *Publisher) Run(ctx context.Context) (err error) {
	cycle := uuid.NewString()
	lg := p.logger.With("cycle", cycle)
	start := time.Now()
	if p.observer != nil {
		defer func() { p.observer.ObserveCycle(time.Since(start), err) }()
	}

	text, err := p.news.Fetch(ctx)
	if err != nil {
		lg.Error("digest retrieval failed", "error", err)
		return fmt.Errorf("fetch digest: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		lg.Error("digest retrieval returned empty body")
		return ErrEmptyDigest
	}
	lg.Info("digest retrieved", "bytes", len(text))

	if p.relay != nil {
		today := p.now()
		msg := notify.Message{Title: p.Title(today), Body: text, Date: today.Format(time.DateOnly)}
		relayErr := p.relay.SendAll(ctx, msg)
		if p.observer != nil {
			p.observer.ObserveRelay(relayErr)
		}
		if relayErr != nil {
			lg.Warn("relay failed, continuing with chat delivery", "error", relayErr)
		}
	}

	rep := p.broadcaster.Broadcast(ctx, text)
	lg.Info("digest published",
		"delivered", len(rep.Delivered),
		"removed", len(rep.Removed),
		"duration", time.Since(start),
	)
	return nil
}
