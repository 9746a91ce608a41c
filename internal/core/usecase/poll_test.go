package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pravinheroku/bse-automation/internal/core/domain"
	"github.com/pravinheroku/bse-automation/internal/core/ports"
)

type cycleFixture struct {
	store      *fakeStore
	source     *fakeSource
	resolver   *fakeResolver
	fetcher    *fakePathFetcher
	extractor  *fakeExtractor
	summarizer *fakeSummarizer
	notifier   *fakeNotifier
	hist       *fakeHistoricalStore
	events     *fakeEvents
	uc         *PollCycleUseCase
}

func newCycleFixture(workers, maxItems int) *cycleFixture {
	f := &cycleFixture{
		store:      newFakeStore(),
		source:     &fakeSource{},
		resolver:   &fakeResolver{urls: make(map[string]string), errs: make(map[string]error)},
		fetcher:    &fakePathFetcher{},
		extractor:  &fakeExtractor{content: domain.Content{Kind: domain.ContentText, Text: "transcript"}},
		summarizer: &fakeSummarizer{},
		notifier:   &fakeNotifier{},
		hist:       newFakeHistoricalStore(),
		events:     &fakeEvents{},
	}

	history := NewComparisonEngine(f.hist, f.fetcher, f.extractor, f.summarizer, nil)
	processor := NewItemProcessor(f.store, f.resolver, f.fetcher, f.extractor, f.summarizer, history)

	pool := NewPool(workers, time.Millisecond, nil)
	pool.sleep = func(context.Context, time.Duration) {}

	sequencer := NewSequencer(f.notifier, time.Millisecond, nil)
	sequencer.sleep = func(context.Context, time.Duration) {}

	f.uc = NewPollCycleUseCase(f.store, f.source, processor, pool, sequencer, f.events, nil, maxItems)
	return f
}

func cand(id, scrip, company string, occurred time.Time) domain.Candidate {
	return domain.Candidate{ID: id, ScripCode: scrip, Company: company, OccurredAt: occurred}
}

func window() ports.Window {
	return ports.Window{
		From: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestRunCycleSummarizesNewDisclosure(t *testing.T) {
	f := newCycleFixture(2, 0)
	f.source.candidates = []domain.Candidate{cand("A1", "500001", "Acme Industries", time.Now())}
	f.resolver.urls["A1"] = "https://example.org/a1.pdf"

	report, err := f.uc.RunCycle(context.Background(), window())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if report.NewItems != 1 || len(report.Results) != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Results[0].Status != domain.StatusSummarized {
		t.Fatalf("expected summarized result, got %+v", report.Results[0])
	}
	if got := f.store.statusOf("A1"); got != domain.StatusSummarized {
		t.Fatalf("expected stored status SUMMARIZED, got %q", got)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].Kind != domain.NotifySummary {
		t.Fatalf("expected one summary notification, got %+v", f.notifier.sent)
	}
	if len(f.events.published) != 1 || f.events.published[0] != "A1" {
		t.Fatalf("expected processed event for A1, got %v", f.events.published)
	}
	if len(f.fetcher.released) != 1 {
		t.Fatalf("scratch file must be released, got %v", f.fetcher.released)
	}
}

func TestRunCycleSkipsAlreadyTerminalItems(t *testing.T) {
	f := newCycleFixture(1, 0)
	f.store.seed("A1", domain.StatusSummarized)
	f.store.seed("A2", domain.StatusFailed)
	f.source.candidates = []domain.Candidate{
		cand("A1", "500001", "Acme", time.Now()),
		cand("A2", "500002", "Beta", time.Now()),
	}

	report, err := f.uc.RunCycle(context.Background(), window())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if report.NewItems != 0 {
		t.Fatalf("terminal items must be skipped, got %d fresh", report.NewItems)
	}
	if f.resolver.calls != 0 {
		t.Fatalf("no resolution expected for skipped items, got %d calls", f.resolver.calls)
	}
	if len(f.notifier.sent) != 0 {
		t.Fatalf("re-running a window must not re-notify, got %+v", f.notifier.sent)
	}
}

func TestRunCycleReprocessesPendingItems(t *testing.T) {
	f := newCycleFixture(1, 0)
	f.store.seed("A1", domain.StatusPending)
	f.source.candidates = []domain.Candidate{cand("A1", "500001", "Acme", time.Now())}
	f.resolver.urls["A1"] = "https://example.org/a1.pdf"

	report, err := f.uc.RunCycle(context.Background(), window())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if report.NewItems != 1 || f.store.statusOf("A1") != domain.StatusSummarized {
		t.Fatalf("pending item from a prior cycle must be retried: %+v", report)
	}
}

func TestRunCycleDeduplicatesRepeatedListings(t *testing.T) {
	f := newCycleFixture(3, 0)
	same := cand("A1", "500001", "Acme", time.Now())
	f.source.candidates = []domain.Candidate{same, same, same}
	f.resolver.urls["A1"] = "https://example.org/a1.pdf"

	report, err := f.uc.RunCycle(context.Background(), window())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if report.NewItems != 1 {
		t.Fatalf("duplicate listings must collapse to one item, got %d", report.NewItems)
	}
	if f.summarizer.callCount() != 1 {
		t.Fatalf("expected exactly one summarization, got %d", f.summarizer.callCount())
	}
	if len(f.notifier.sent) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(f.notifier.sent))
	}
}

func TestRunCycleNotifiesOldestFirst(t *testing.T) {
	f := newCycleFixture(1, 0)
	// The feed arrives newest-first.
	f.source.candidates = []domain.Candidate{
		cand("A2", "500002", "Newer Ltd", time.Date(2024, 6, 1, 16, 0, 0, 0, time.UTC)),
		cand("A1", "500001", "Older Ltd", time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)),
	}
	f.resolver.urls["A1"] = "https://example.org/a1.pdf"
	f.resolver.urls["A2"] = "https://example.org/a2.pdf"

	if _, err := f.uc.RunCycle(context.Background(), window()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if len(f.notifier.sent) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(f.notifier.sent))
	}
	if f.notifier.sent[0].Payload.Company != "Older Ltd" || f.notifier.sent[1].Payload.Company != "Newer Ltd" {
		t.Fatalf("notifications must be chronological, got %q then %q",
			f.notifier.sent[0].Payload.Company, f.notifier.sent[1].Payload.Company)
	}
}

func TestRunCycleLeavesUnresolvedItemsPending(t *testing.T) {
	f := newCycleFixture(1, 0)
	f.source.candidates = []domain.Candidate{cand("A1", "500001", "Acme", time.Now())}
	f.resolver.errs["A1"] = domain.WrapError(domain.ErrTransient, "resolve attachment", errors.New("timeout"))

	_, err := f.uc.RunCycle(context.Background(), window())
	if err != nil {
		t.Fatalf("a failed item must not fail the cycle, got %v", err)
	}
	if got := f.store.statusOf("A1"); got != domain.StatusPending {
		t.Fatalf("unresolved item must stay PENDING for the next cycle, got %q", got)
	}
	if len(f.notifier.sent) != 0 {
		t.Fatalf("no notification for a deferred item, got %+v", f.notifier.sent)
	}
	if len(f.events.published) != 0 {
		t.Fatalf("no event for a non-terminal item, got %v", f.events.published)
	}
}

func TestRunCycleRecordsMissingAttachmentAsNotFound(t *testing.T) {
	f := newCycleFixture(1, 0)
	f.source.candidates = []domain.Candidate{cand("A1", "500001", "Acme", time.Now())}
	// Resolver returns a well-formed document with no attachment.
	f.resolver.urls["A1"] = ""

	report, err := f.uc.RunCycle(context.Background(), window())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if f.store.statusOf("A1") != domain.StatusFailed {
		t.Fatalf("missing attachment is terminal, got %q", f.store.statusOf("A1"))
	}
	result := report.Results[0]
	if result.Payload == nil || result.Payload.ErrorKind != "not_found" {
		t.Fatalf("expected not_found error payload, got %+v", result.Payload)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].Kind != domain.NotifyError {
		t.Fatalf("expected error notification, got %+v", f.notifier.sent)
	}
}

func TestRunCycleUnusableContentIsTerminal(t *testing.T) {
	f := newCycleFixture(1, 0)
	f.source.candidates = []domain.Candidate{cand("A1", "500001", "Acme", time.Now())}
	f.resolver.urls["A1"] = "https://example.org/a1.pdf"
	f.extractor.err = domain.WrapError(domain.ErrContentUnusable, "classify attachment", errors.New("no links"))

	report, err := f.uc.RunCycle(context.Background(), window())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if report.Results[0].Payload.ErrorKind != "content_unusable" {
		t.Fatalf("expected content_unusable payload, got %+v", report.Results[0].Payload)
	}
	if f.summarizer.callCount() != 0 {
		t.Fatalf("no summarization for unusable content")
	}
}

func TestRunCycleCapsFreshItems(t *testing.T) {
	f := newCycleFixture(1, 2)
	f.source.candidates = []domain.Candidate{
		cand("A3", "3", "C", time.Now()),
		cand("A2", "2", "B", time.Now()),
		cand("A1", "1", "A", time.Now()),
	}
	for _, id := range []string{"A1", "A2", "A3"} {
		f.resolver.urls[id] = "https://example.org/" + id + ".pdf"
	}

	report, err := f.uc.RunCycle(context.Background(), window())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if report.NewItems != 2 {
		t.Fatalf("expected the per-cycle cap to hold, got %d items", report.NewItems)
	}
}

func TestRunCycleWebLinkNotifications(t *testing.T) {
	occurred := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("without prior context", func(t *testing.T) {
		f := newCycleFixture(1, 0)
		f.source.candidates = []domain.Candidate{cand("A1", "500001", "Acme", occurred)}
		f.resolver.urls["A1"] = "https://example.org/a1.pdf"
		f.extractor.content = domain.Content{Kind: domain.ContentLink, Links: []domain.Link{
			{URL: "https://example.com/ir", Type: domain.LinkWeb},
		}}
		f.summarizer.fn = func(req ports.SummarizeRequest) (*domain.Payload, error) {
			return &domain.Payload{Kind: domain.KindWebLink, Company: req.Company, Links: req.Content.Links, SourceURL: req.SourceURL}, nil
		}

		if _, err := f.uc.RunCycle(context.Background(), window()); err != nil {
			t.Fatalf("RunCycle() error = %v", err)
		}
		if len(f.notifier.sent) != 1 || f.notifier.sent[0].Kind != domain.NotifyWebLink {
			t.Fatalf("expected plain web link notification, got %+v", f.notifier.sent)
		}
	})

	t.Run("with prior summary context", func(t *testing.T) {
		f := newCycleFixture(1, 0)
		f.source.candidates = []domain.Candidate{cand("A1", "500001", "Acme", occurred)}
		f.resolver.urls["A1"] = "https://example.org/a1.pdf"
		f.extractor.content = domain.Content{Kind: domain.ContentLink, Links: []domain.Link{
			{URL: "https://example.com/ir", Type: domain.LinkWeb},
		}}
		f.summarizer.fn = func(req ports.SummarizeRequest) (*domain.Payload, error) {
			return &domain.Payload{Kind: domain.KindWebLink, Company: req.Company, Links: req.Content.Links, SourceURL: req.SourceURL}, nil
		}
		_ = f.hist.Insert(context.Background(), domain.HistoricalRecord{
			ID:            "H1",
			ScripCode:     "500001",
			Company:       "Acme",
			OccurredAt:    occurred.AddDate(0, -3, 0),
			AttachmentURL: "https://example.org/h1.pdf",
			Payload:       &domain.Payload{Kind: domain.KindSummary, ExecutiveSummary: "prior call"},
		})

		if _, err := f.uc.RunCycle(context.Background(), window()); err != nil {
			t.Fatalf("RunCycle() error = %v", err)
		}
		if len(f.notifier.sent) != 1 || f.notifier.sent[0].Kind != domain.NotifyWebLinkWithContext {
			t.Fatalf("expected contextual web link notification, got %+v", f.notifier.sent)
		}
		cmp := f.notifier.sent[0].Context
		if cmp == nil || cmp.PriorSummary == nil || cmp.PriorSummary.ExecutiveSummary != "prior call" {
			t.Fatalf("prior summary must ride along, got %+v", cmp)
		}
		if cmp.PriorPDFURL != "https://example.org/h1.pdf" {
			t.Fatalf("prior filing url must ride along, got %q", cmp.PriorPDFURL)
		}
	})
}

func TestRunCycleCancelLeavesNoEmptyResults(t *testing.T) {
	f := newCycleFixture(1, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	candidates := make([]domain.Candidate, 0, 24)
	for i := 1; i <= 24; i++ {
		id := fmt.Sprintf("A%d", i)
		candidates = append(candidates, cand(id, id, "Company "+id, time.Now()))
		f.resolver.urls[id] = "https://example.org/" + id + ".pdf"
	}
	f.source.candidates = candidates
	f.summarizer.fn = func(req ports.SummarizeRequest) (*domain.Payload, error) {
		// Shutdown arrives while the first item is in flight.
		cancel()
		return &domain.Payload{Kind: domain.KindSummary, Company: req.Company}, nil
	}

	report, err := f.uc.RunCycle(ctx, window())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if len(report.Results) == 0 {
		t.Fatalf("items processed before the cancel must still be reported")
	}
	if len(report.Results) >= len(candidates) {
		t.Fatalf("cancel must stop dispatching, got %d results", len(report.Results))
	}
	for _, result := range report.Results {
		if result.ID == "" {
			t.Fatalf("undispatched candidates must not appear in the report: %+v", report.Results)
		}
	}
}

func TestRunCycleListFailureAbortsCycle(t *testing.T) {
	f := newCycleFixture(1, 0)
	f.source.err = errors.New("list exhausted")

	_, err := f.uc.RunCycle(context.Background(), window())
	if err == nil {
		t.Fatalf("expected error when the listing itself fails")
	}
}
