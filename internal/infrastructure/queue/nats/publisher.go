package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/pravinheroku/bse-automation/internal/core/domain"
	"github.com/pravinheroku/bse-automation/internal/infrastructure/resilience"
)

// Publisher announces terminal disclosure records on a subject so
// downstream consumers (alerting, analytics) can react without polling
// the database.
type Publisher struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	policy   resilience.Policy
}

type Options struct {
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
}

func New(url, subject string, executor *resilience.Executor, opts Options) (*Publisher, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 2 * time.Second
	}
	if opts.ReconnectWait <= 0 {
		opts.ReconnectWait = 2 * time.Second
	}
	if opts.MaxReconnects <= 0 {
		opts.MaxReconnects = 60
	}

	conn, err := nats.Connect(
		url,
		nats.Name("bse-automation"),
		nats.Timeout(opts.ConnectTimeout),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{
		conn:     conn,
		subject:  subject,
		executor: executor,
		policy:   resilience.Policy{MaxAttempts: 3, BaseBackoff: time.Second, MaxBackoff: 5 * time.Second},
	}, nil
}

func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

type processedEvent struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (p *Publisher) PublishProcessed(ctx context.Context, id string, status domain.DisclosureStatus) error {
	body, err := json.Marshal(processedEvent{ID: id, Status: string(status)})
	if err != nil {
		return fmt.Errorf("marshal processed event: %w", err)
	}

	return p.executor.Execute(ctx, "nats.publish_processed", p.policy, func(_ context.Context) error {
		if err := p.conn.Publish(p.subject, body); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}, classifyNATSError)
}
