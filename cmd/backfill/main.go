package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pravinheroku/bse-automation/internal/bootstrap"
	"github.com/pravinheroku/bse-automation/internal/config"
	"github.com/pravinheroku/bse-automation/internal/observability/logging"
)

// backfill seeds the historical store with attachment pointers going
// back BACKFILL_MONTHS months, in week-sized windows so single request
// failures cost at most seven days of listings. Each window's
// resolutions run through the shared worker pool, with the same
// distress throttle as a live scan. Summaries are NOT produced here;
// they happen lazily when a comparison first needs one.
func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("bse-backfill", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	end := time.Now()
	start := end.AddDate(0, -cfg.BackfillMonths, 0)
	slog.Info("backfill_started",
		"from", start.Format("20060102"),
		"to", end.Format("20060102"),
	)

	listed, inserted := 0, 0
	for chunkEnd := end; chunkEnd.After(start) && ctx.Err() == nil; {
		chunkStart := chunkEnd.AddDate(0, 0, -7)
		if chunkStart.Before(start) {
			chunkStart = start
		}

		candidates, err := app.Source.List(ctx, chunkStart, chunkEnd)
		if err != nil {
			slog.Warn("backfill_chunk_failed",
				"from", chunkStart.Format("20060102"),
				"to", chunkEnd.Format("20060102"),
				"error", err,
			)
			chunkEnd = chunkStart.Add(-time.Second)
			continue
		}
		listed += len(candidates)
		inserted += app.Backfill.SeedChunk(ctx, candidates)

		slog.Info("backfill_chunk_done",
			"from", chunkStart.Format("20060102"),
			"to", chunkEnd.Format("20060102"),
			"listed", listed,
			"inserted", inserted,
		)
		chunkEnd = chunkStart.Add(-time.Second)
	}

	slog.Info("backfill_complete", "listed", listed, "inserted", inserted)
}
