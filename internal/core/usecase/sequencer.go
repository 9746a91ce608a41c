package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/pravinheroku/bse-automation/internal/core/domain"
	"github.com/pravinheroku/bse-automation/internal/core/ports"
)

// Sequencer delivers notifications one at a time in the order given,
// with a fixed pause between consecutive sends. The pause sits between
// messages, never after the last one, so a single-item cycle pays no
// delay at all. A failed send is logged and skipped; it never blocks
// the rest of the batch.
type Sequencer struct {
	notifier ports.Notifier
	delay    time.Duration
	metrics  Metrics

	sleep func(context.Context, time.Duration)
}

func NewSequencer(notifier ports.Notifier, delay time.Duration, metrics Metrics) *Sequencer {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Sequencer{
		notifier: notifier,
		delay:    delay,
		metrics:  metrics,
		sleep:    sleepCtx,
	}
}

// Deliver sends the batch and returns how many sends succeeded.
func (s *Sequencer) Deliver(ctx context.Context, notifications []domain.Notification) int {
	sent := 0
	for i, n := range notifications {
		if i > 0 {
			s.sleep(ctx, s.delay)
		}
		if ctx.Err() != nil {
			slog.Warn("notification_delivery_interrupted", "remaining", len(notifications)-i)
			break
		}

		err := s.notifier.Send(ctx, n)
		s.metrics.NotificationSent(string(n.Kind), err)
		if err != nil {
			slog.Warn("notification_send_failed", "kind", n.Kind, "company", n.Payload.Company, "error", err)
			continue
		}
		sent++
	}
	return sent
}
