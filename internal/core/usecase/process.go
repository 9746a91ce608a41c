package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pravinheroku/bse-automation/internal/core/domain"
	"github.com/pravinheroku/bse-automation/internal/core/ports"
)

var errNoAttachment = errors.New("disclosure carries no attachment")

// itemOutcome is the result of processing one candidate. A nil
// notification means the item produced nothing to deliver this cycle
// (still pending, or skipped).
type itemOutcome struct {
	result       ports.ItemResult
	notification *domain.Notification
	distress     bool
}

// ItemProcessor drives one disclosure through the state machine:
// PENDING, FETCHED, then SUMMARIZED or FAILED. Failures never abort
// the cycle; each is folded into the item's own outcome.
type ItemProcessor struct {
	store      ports.DisclosureStore
	resolver   ports.AttachmentResolver
	fetcher    ports.AttachmentFetcher
	extractor  ports.ContentExtractor
	summarizer ports.Summarizer
	history    *ComparisonEngine
}

func NewItemProcessor(
	store ports.DisclosureStore,
	resolver ports.AttachmentResolver,
	fetcher ports.AttachmentFetcher,
	extractor ports.ContentExtractor,
	summarizer ports.Summarizer,
	history *ComparisonEngine,
) *ItemProcessor {
	return &ItemProcessor{
		store:      store,
		resolver:   resolver,
		fetcher:    fetcher,
		extractor:  extractor,
		summarizer: summarizer,
		history:    history,
	}
}

func (p *ItemProcessor) Process(ctx context.Context, cand domain.Candidate) itemOutcome {
	if err := p.store.InsertPending(ctx, cand); err != nil {
		// Storage trouble must not stop the run; the in-memory result
		// still reaches the notification path.
		slog.Warn("insert_pending_failed", "id", cand.ID, "error", err)
	}

	attachmentURL, err := p.resolver.Resolve(ctx, cand.ID, cand.ScripCode)
	if err != nil {
		// Unresolved this cycle; the row stays PENDING and the next
		// cycle picks it up again.
		slog.Warn("resolve_failed", "id", cand.ID, "company", cand.Company, "error", err)
		return pendingOutcome(cand, err)
	}
	if attachmentURL == "" {
		return p.terminalFailure(ctx, cand, "", domain.WrapError(domain.ErrNotFound, "resolve attachment", errNoAttachment))
	}

	path, err := p.fetcher.Fetch(ctx, attachmentURL, cand.Company)
	if err != nil {
		slog.Warn("fetch_failed", "id", cand.ID, "url", attachmentURL, "error", err)
		return pendingOutcome(cand, err)
	}
	defer p.fetcher.Release(path)

	if err := p.store.MarkFetched(ctx, cand.ID); err != nil {
		slog.Warn("mark_fetched_failed", "id", cand.ID, "error", err)
	}

	content, err := p.extractor.Extract(ctx, path)
	if err != nil {
		return p.terminalFailure(ctx, cand, attachmentURL, err)
	}

	cmp := p.history.Context(ctx, cand.ScripCode, cand.Company, cand.OccurredAt)

	req := ports.SummarizeRequest{
		Content:   content,
		Company:   cand.Company,
		SourceURL: attachmentURL,
	}
	if cmp != nil {
		req.Prior = cmp.PriorSummary
	}
	payload, err := p.summarizer.Summarize(ctx, req)
	if err != nil {
		return p.terminalFailure(ctx, cand, attachmentURL, err)
	}

	if err := p.store.RecordResult(ctx, cand.ID, payload, domain.StatusSummarized); err != nil {
		slog.Warn("record_result_failed", "id", cand.ID, "error", err)
	}

	return itemOutcome{
		result: ports.ItemResult{
			ID:      cand.ID,
			Company: cand.Company,
			Status:  domain.StatusSummarized,
			Payload: payload,
		},
		notification: buildNotification(payload, cmp),
	}
}

// terminalFailure records a FAILED row with an error payload and emits
// the matching error notification.
func (p *ItemProcessor) terminalFailure(ctx context.Context, cand domain.Candidate, attachmentURL string, cause error) itemOutcome {
	payload := domain.ErrorPayload(domain.FailureKind(cause), cause.Error(), cand.Company, attachmentURL)
	if err := p.store.RecordResult(ctx, cand.ID, payload, domain.StatusFailed); err != nil {
		slog.Warn("record_result_failed", "id", cand.ID, "error", err)
	}
	return itemOutcome{
		result: ports.ItemResult{
			ID:      cand.ID,
			Company: cand.Company,
			Status:  domain.StatusFailed,
			Payload: payload,
		},
		notification: &domain.Notification{Kind: domain.NotifyError, Payload: *payload},
		distress:     domain.IsKind(cause, domain.ErrUpstreamDistress),
	}
}

func pendingOutcome(cand domain.Candidate, cause error) itemOutcome {
	return itemOutcome{
		result: ports.ItemResult{
			ID:      cand.ID,
			Company: cand.Company,
			Status:  domain.StatusPending,
		},
		distress: domain.IsKind(cause, domain.ErrUpstreamDistress),
	}
}

// buildNotification picks the delivery shape. The comparison context
// rides along whenever one exists, so prior-call URLs reach the
// channel even for plain summaries.
func buildNotification(payload *domain.Payload, cmp *domain.ComparisonContext) *domain.Notification {
	if payload.Kind == domain.KindWebLink {
		if cmp != nil && cmp.PriorSummary != nil {
			return &domain.Notification{
				Kind:    domain.NotifyWebLinkWithContext,
				Payload: *payload,
				Context: cmp,
			}
		}
		return &domain.Notification{Kind: domain.NotifyWebLink, Payload: *payload, Context: cmp}
	}
	return &domain.Notification{Kind: domain.NotifySummary, Payload: *payload, Context: cmp}
}
