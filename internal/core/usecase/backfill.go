package usecase

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/pravinheroku/bse-automation/internal/core/domain"
	"github.com/pravinheroku/bse-automation/internal/core/ports"
)

// BackfillUseCase seeds the historical store with attachment pointers.
// Resolution fans out through the same worker pool as live cycles, so
// the shared distress throttle paces bulk runs exactly like a scan.
type BackfillUseCase struct {
	resolver ports.AttachmentResolver
	store    ports.HistoricalStore
	pool     *Pool
}

func NewBackfillUseCase(resolver ports.AttachmentResolver, store ports.HistoricalStore, pool *Pool) *BackfillUseCase {
	return &BackfillUseCase{
		resolver: resolver,
		store:    store,
		pool:     pool,
	}
}

// SeedChunk resolves every candidate concurrently and inserts a
// pointer record for each one carrying an attachment. Failures are
// logged and skipped; the return value is the number of rows inserted.
func (uc *BackfillUseCase) SeedChunk(ctx context.Context, candidates []domain.Candidate) int {
	var inserted atomic.Int64

	uc.pool.Run(ctx, candidates, func(ctx context.Context, cand domain.Candidate) itemOutcome {
		attachmentURL, err := uc.resolver.Resolve(ctx, cand.ID, cand.ScripCode)
		if err != nil {
			slog.Warn("backfill_resolve_failed", "id", cand.ID, "error", err)
			return seedOutcome(cand, domain.StatusPending, err)
		}
		if attachmentURL == "" {
			return seedOutcome(cand, domain.StatusPending, nil)
		}

		err = uc.store.Insert(ctx, domain.HistoricalRecord{
			ID:            cand.ID,
			ScripCode:     cand.ScripCode,
			Company:       cand.Company,
			OccurredAt:    cand.OccurredAt,
			AttachmentURL: attachmentURL,
		})
		if err != nil {
			slog.Warn("backfill_insert_failed", "id", cand.ID, "error", err)
			return seedOutcome(cand, domain.StatusPending, err)
		}
		inserted.Add(1)
		return seedOutcome(cand, domain.StatusFetched, nil)
	})

	return int(inserted.Load())
}

func seedOutcome(cand domain.Candidate, status domain.DisclosureStatus, cause error) itemOutcome {
	return itemOutcome{
		result: ports.ItemResult{
			ID:      cand.ID,
			Company: cand.Company,
			Status:  status,
		},
		distress: domain.IsKind(cause, domain.ErrUpstreamDistress),
	}
}
