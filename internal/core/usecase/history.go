package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/pravinheroku/bse-automation/internal/core/domain"
	"github.com/pravinheroku/bse-automation/internal/core/ports"
)

// ComparisonEngine supplies the prior-call context for a new
// disclosure. Historical rows start as bare pointers (id, attachment
// URL); the summary for one is produced lazily the first time a
// comparison needs it and cached through SetPayloadOnce, so each
// historical disclosure is summarized at most once ever.
type ComparisonEngine struct {
	store      ports.HistoricalStore
	fetcher    ports.AttachmentFetcher
	extractor  ports.ContentExtractor
	summarizer ports.Summarizer
	metrics    Metrics
}

func NewComparisonEngine(
	store ports.HistoricalStore,
	fetcher ports.AttachmentFetcher,
	extractor ports.ContentExtractor,
	summarizer ports.Summarizer,
	metrics Metrics,
) *ComparisonEngine {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &ComparisonEngine{
		store:      store,
		fetcher:    fetcher,
		extractor:  extractor,
		summarizer: summarizer,
		metrics:    metrics,
	}
}

// Context returns the comparison context for a disclosure, or nil when
// no usable prior exists. Comparison is best-effort: every failure
// path degrades to nil rather than failing the item.
func (e *ComparisonEngine) Context(ctx context.Context, scripCode, company string, before time.Time) *domain.ComparisonContext {
	rec, err := e.store.LatestBefore(ctx, scripCode, before)
	if err != nil {
		slog.Warn("historical_lookup_failed", "scrip_code", scripCode, "error", err)
		e.metrics.HistoricalLookup("error")
		return nil
	}
	if rec == nil {
		e.metrics.HistoricalLookup("none")
		return nil
	}

	if rec.Payload != nil {
		e.metrics.HistoricalLookup("hit")
		return contextFromPayload(rec, rec.Payload)
	}

	e.metrics.HistoricalLookup("jit")
	payload := e.summarizeJIT(ctx, rec)
	if payload == nil {
		return nil
	}

	won, err := e.store.SetPayloadOnce(ctx, rec.ID, payload)
	if err != nil {
		slog.Warn("historical_cache_write_failed", "id", rec.ID, "error", err)
	} else if !won {
		slog.Debug("historical_cache_race_lost", "id", rec.ID)
	}
	return contextFromPayload(rec, payload)
}

// summarizeJIT fetches and summarizes a historical disclosure with the
// reduced comparison-grade prompt. Pointer-only documents become a
// web_link payload without a model call.
func (e *ComparisonEngine) summarizeJIT(ctx context.Context, rec *domain.HistoricalRecord) *domain.Payload {
	path, err := e.fetcher.Fetch(ctx, rec.AttachmentURL, rec.Company)
	if err != nil {
		slog.Warn("historical_fetch_failed", "id", rec.ID, "error", err)
		return nil
	}
	defer e.fetcher.Release(path)

	content, err := e.extractor.Extract(ctx, path)
	if err != nil {
		slog.Warn("historical_extract_failed", "id", rec.ID, "error", err)
		return nil
	}

	payload, err := e.summarizer.Summarize(ctx, ports.SummarizeRequest{
		Content:    content,
		Company:    rec.Company,
		SourceURL:  rec.AttachmentURL,
		Historical: true,
	})
	if err != nil {
		slog.Warn("historical_summarize_failed", "id", rec.ID, "error", err)
		return nil
	}
	return payload
}

func contextFromPayload(rec *domain.HistoricalRecord, payload *domain.Payload) *domain.ComparisonContext {
	switch payload.Kind {
	case domain.KindSummary:
		// A just-in-time summary of a pointer filing keeps the links it
		// was built from; they ride along as prior-call material.
		return &domain.ComparisonContext{
			PriorSummary:  payload,
			PriorPDFURL:   rec.AttachmentURL,
			PriorMediaURL: firstMediaURL(payload.Links),
		}
	case domain.KindWebLink:
		return &domain.ComparisonContext{
			PriorPDFURL:   rec.AttachmentURL,
			PriorMediaURL: firstMediaURL(payload.Links),
		}
	default:
		return nil
	}
}

func firstMediaURL(links []domain.Link) string {
	for _, link := range links {
		if link.Type == domain.LinkMedia {
			return link.URL
		}
	}
	return ""
}
