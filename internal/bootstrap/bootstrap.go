package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/pravinheroku/bse-automation/internal/config"
	"github.com/pravinheroku/bse-automation/internal/core/ports"
	"github.com/pravinheroku/bse-automation/internal/core/usecase"
	"github.com/pravinheroku/bse-automation/internal/infrastructure/bse"
	"github.com/pravinheroku/bse-automation/internal/infrastructure/extractor/pdfdoc"
	"github.com/pravinheroku/bse-automation/internal/infrastructure/llm/gemini"
	"github.com/pravinheroku/bse-automation/internal/infrastructure/notify/telegram"
	"github.com/pravinheroku/bse-automation/internal/infrastructure/queue/nats"
	"github.com/pravinheroku/bse-automation/internal/infrastructure/report"
	"github.com/pravinheroku/bse-automation/internal/infrastructure/repository/postgres"
	"github.com/pravinheroku/bse-automation/internal/infrastructure/resilience"
	"github.com/pravinheroku/bse-automation/internal/infrastructure/storage/localfs"
	"github.com/pravinheroku/bse-automation/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Cycle    ports.CycleRunner
	Source   ports.CandidateSource
	Backfill *usecase.BackfillUseCase
	Metrics  *metrics.ScannerMetrics
	Report   *report.Writer

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	disclosures := postgres.NewDisclosureRepository(db)
	if err := disclosures.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure disclosures schema: %w", err)
	}
	historical := postgres.NewHistoricalRepository(db)
	if err := historical.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure historical schema: %w", err)
	}

	scratch, err := localfs.New(cfg.ScratchPath)
	if err != nil {
		return nil, fmt.Errorf("init scratch storage: %w", err)
	}

	breaker := resilience.DefaultBreakerConfig()
	breaker.Enabled = true
	executor := resilience.NewExecutor(breaker)

	scannerMetrics := metrics.NewScannerMetrics("scanner")
	observed := &cycleMetrics{inner: scannerMetrics, service: "scanner"}

	// The pool doubles as the distress signal the exchange adapters
	// raise when they see mangled bodies mid-retry.
	pool := usecase.NewPool(cfg.WorkerCount, cfg.ThrottleCooldown, observed)

	exchange := bse.New(bse.Options{
		ListURL:     cfg.Endpoints.ListURL,
		XBRLURL:     cfg.Endpoints.XBRLURL,
		Category:    cfg.Endpoints.Category,
		Subcategory: cfg.Endpoints.Subcategory,
		Referer:     cfg.Endpoints.Referer,
		UserAgent:   cfg.Endpoints.UserAgent,
	}, executor)
	source := bse.NewSource(exchange, retryPolicy(cfg.ListRetryAttempts, cfg.ListRetryBackoff), pool)
	resolver := bse.NewResolver(exchange, retryPolicy(cfg.ResolveRetryAttempts, cfg.ResolveRetryBackoff), pool)
	downloader := bse.NewDownloader(exchange, scratch, retryPolicy(cfg.FetchRetryAttempts, cfg.FetchRetryBackoff))
	extractor := pdfdoc.New()

	geminiClient := gemini.New("", cfg.GeminiAPIKey, cfg.GeminiModel)
	summarizer := gemini.NewSummarizer(geminiClient, downloader, executor, resilience.DefaultPolicy())

	notifier := telegram.NewNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)

	var events ports.EventPublisher
	closeFn := func() { _ = db.Close() }
	if cfg.NATSURL != "" {
		publisher, err := nats.New(cfg.NATSURL, cfg.NATSSubject, executor, nats.Options{})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init event publisher: %w", err)
		}
		events = publisher
		closeFn = func() {
			publisher.Close()
			_ = db.Close()
		}
	}

	history := usecase.NewComparisonEngine(historical, downloader, extractor, summarizer, observed)
	processor := usecase.NewItemProcessor(disclosures, resolver, downloader, extractor, summarizer, history)
	sequencer := usecase.NewSequencer(notifier, cfg.NotifyDelay, observed)
	cycle := usecase.NewPollCycleUseCase(disclosures, source, processor, pool, sequencer, events, observed, cfg.MaxItems)
	backfill := usecase.NewBackfillUseCase(resolver, historical, pool)

	reportWriter, err := report.NewWriter(cfg.ReportPath)
	if err != nil {
		closeFn()
		return nil, fmt.Errorf("init report writer: %w", err)
	}

	return &App{
		Config:   cfg,
		Cycle:    cycle,
		Source:   source,
		Backfill: backfill,
		Metrics:  scannerMetrics,
		Report:   reportWriter,
		closeFn:  closeFn,
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func retryPolicy(attempts int, backoff time.Duration) resilience.Policy {
	return resilience.Policy{
		MaxAttempts: attempts,
		BaseBackoff: backoff,
		MaxBackoff:  time.Minute,
	}
}

// cycleMetrics adapts the Prometheus collectors to the usecase-facing
// metrics surface.
type cycleMetrics struct {
	inner   *metrics.ScannerMetrics
	service string
}

func (m *cycleMetrics) StartItem() {
	m.inner.StartItem()
}

func (m *cycleMetrics) FinishItem(outcome string, duration time.Duration) {
	m.inner.FinishItem(m.service, outcome, duration)
}

func (m *cycleMetrics) FinishCycle(duration time.Duration, err error) {
	m.inner.FinishCycle(m.service, duration, err)
}

func (m *cycleMetrics) DistressCooldown() {
	m.inner.DistressCooldown()
}

func (m *cycleMetrics) NotificationSent(kind string, err error) {
	m.inner.NotificationSent(m.service, kind, err)
}

func (m *cycleMetrics) HistoricalLookup(result string) {
	m.inner.HistoricalLookup(m.service, result)
}
