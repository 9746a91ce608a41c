package usecase

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pravinheroku/bse-automation/internal/core/domain"
)

// Pool fans candidates out to a fixed set of workers. All workers
// share one distress flag: when any item trips it, exactly one worker
// pays a cool-down pause and clears the flag, so a rate-limiting
// upstream sees the whole pool slow down once per signal, not once per
// worker.
type Pool struct {
	workers  int
	cooldown time.Duration
	metrics  Metrics

	distress atomic.Bool
	sleep    func(context.Context, time.Duration)
}

func NewPool(workers int, cooldown time.Duration, metrics Metrics) *Pool {
	if workers < 1 {
		workers = 1
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Pool{
		workers:  workers,
		cooldown: cooldown,
		metrics:  metrics,
		sleep:    sleepCtx,
	}
}

// Run processes every candidate and returns outcomes indexed like the
// input, so callers keep the original chronological order regardless
// of which worker finished when.
func (p *Pool) Run(ctx context.Context, candidates []domain.Candidate, process func(context.Context, domain.Candidate) itemOutcome) []itemOutcome {
	outcomes := make([]itemOutcome, len(candidates))

	type job struct {
		idx  int
		cand domain.Candidate
	}
	queue := make(chan job)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				p.payDistressCooldown(ctx)

				p.metrics.StartItem()
				started := time.Now()
				out := process(ctx, j.cand)
				p.metrics.FinishItem(outcomeLabel(out), time.Since(started))

				if out.distress {
					p.distress.Store(true)
				}
				outcomes[j.idx] = out
			}
		}()
	}

dispatch:
	for i, cand := range candidates {
		select {
		case <-ctx.Done():
			break dispatch
		case queue <- job{idx: i, cand: cand}:
		}
	}
	close(queue)
	wg.Wait()

	return outcomes
}

// Raise trips the shared distress flag. Adapters hold the pool through
// ports.DistressSignal and call it the moment they observe a throttled
// or mangled upstream response, independently of whether their own
// retry recovers.
func (p *Pool) Raise() {
	p.distress.Store(true)
}

// payDistressCooldown claims the shared flag with a compare-and-swap:
// the single winner sleeps and clears it, losers proceed immediately.
func (p *Pool) payDistressCooldown(ctx context.Context) {
	if !p.distress.CompareAndSwap(true, false) {
		return
	}
	slog.Warn("upstream_distress_cooldown", "cooldown", p.cooldown.String())
	p.metrics.DistressCooldown()
	p.sleep(ctx, p.cooldown)
}

func outcomeLabel(out itemOutcome) string {
	switch out.result.Status {
	case domain.StatusSummarized:
		return "summarized"
	case domain.StatusFailed:
		if out.result.Payload != nil && out.result.Payload.ErrorKind != "" {
			return out.result.Payload.ErrorKind
		}
		return "failed"
	default:
		return "deferred"
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
