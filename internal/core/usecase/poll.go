package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pravinheroku/bse-automation/internal/core/domain"
	"github.com/pravinheroku/bse-automation/internal/core/ports"
)

// PollCycleUseCase runs one full scan: list the window, drop what was
// already handled, process the rest through the pool, then deliver the
// notifications in order. It implements ports.CycleRunner.
type PollCycleUseCase struct {
	store     ports.DisclosureStore
	source    ports.CandidateSource
	processor *ItemProcessor
	pool      *Pool
	sequencer *Sequencer
	// events is optional; nil disables downstream publication.
	events  ports.EventPublisher
	metrics Metrics

	// maxItems caps fresh items per cycle; 0 means unlimited.
	maxItems int
}

func NewPollCycleUseCase(
	store ports.DisclosureStore,
	source ports.CandidateSource,
	processor *ItemProcessor,
	pool *Pool,
	sequencer *Sequencer,
	events ports.EventPublisher,
	metrics Metrics,
	maxItems int,
) *PollCycleUseCase {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &PollCycleUseCase{
		store:     store,
		source:    source,
		processor: processor,
		pool:      pool,
		sequencer: sequencer,
		events:    events,
		metrics:   metrics,
		maxItems:  maxItems,
	}
}

func (uc *PollCycleUseCase) RunCycle(ctx context.Context, window ports.Window) (ports.CycleReport, error) {
	started := time.Now()
	report := ports.CycleReport{Window: window}

	candidates, err := uc.source.List(ctx, window.From, window.To)
	if err != nil {
		uc.metrics.FinishCycle(time.Since(started), err)
		return report, fmt.Errorf("list announcements: %w", err)
	}

	fresh := uc.selectFresh(ctx, candidates)
	report.NewItems = len(fresh)
	if len(fresh) == 0 {
		uc.metrics.FinishCycle(time.Since(started), nil)
		return report, nil
	}
	slog.Info("cycle_candidates_selected", "listed", len(candidates), "fresh", len(fresh))

	outcomes := uc.pool.Run(ctx, fresh, uc.processor.Process)

	var notifications []domain.Notification
	for _, out := range outcomes {
		// A cancelled run leaves zero-valued slots for candidates that
		// were never dispatched; they are not results.
		if out.result.ID == "" {
			continue
		}
		report.Results = append(report.Results, out.result)
		if out.notification != nil {
			notifications = append(notifications, *out.notification)
		}
	}

	report.Notifications = uc.sequencer.Deliver(ctx, notifications)
	uc.publishEvents(ctx, report.Results)

	uc.metrics.FinishCycle(time.Since(started), nil)
	return report, nil
}

// selectFresh walks the listing oldest-first and keeps candidates that
// have no terminal record yet. The feed arrives newest-first, so the
// walk is reversed to keep notification order chronological.
func (uc *PollCycleUseCase) selectFresh(ctx context.Context, candidates []domain.Candidate) []domain.Candidate {
	var fresh []domain.Candidate
	seen := make(map[string]bool, len(candidates))

	for i := len(candidates) - 1; i >= 0; i-- {
		cand := candidates[i]
		if seen[cand.ID] {
			continue
		}
		seen[cand.ID] = true

		exists, err := uc.store.Exists(ctx, cand.ID)
		if err != nil {
			slog.Warn("dedup_lookup_failed", "id", cand.ID, "error", err)
			continue
		}
		if exists {
			needs, err := uc.store.NeedsWork(ctx, cand.ID)
			if err != nil {
				slog.Warn("dedup_lookup_failed", "id", cand.ID, "error", err)
				continue
			}
			if !needs {
				continue
			}
		}

		fresh = append(fresh, cand)
		if uc.maxItems > 0 && len(fresh) >= uc.maxItems {
			break
		}
	}
	return fresh
}

func (uc *PollCycleUseCase) publishEvents(ctx context.Context, results []ports.ItemResult) {
	if uc.events == nil {
		return
	}
	for _, result := range results {
		if !result.Status.Terminal() {
			continue
		}
		if err := uc.events.PublishProcessed(ctx, result.ID, result.Status); err != nil {
			slog.Warn("event_publish_failed", "id", result.ID, "error", err)
		}
	}
}
