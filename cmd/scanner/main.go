package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pravinheroku/bse-automation/internal/bootstrap"
	"github.com/pravinheroku/bse-automation/internal/config"
	"github.com/pravinheroku/bse-automation/internal/core/ports"
	"github.com/pravinheroku/bse-automation/internal/observability/logging"
)

const dateLayout = "20060102"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("bse-scanner", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	go serveMetrics(ctx, cfg.MetricsPort, app.Metrics.Handler())

	// An explicit date range runs once and exits; otherwise the scanner
	// polls a rolling lookback window.
	if cfg.StartDate != "" && cfg.EndDate != "" {
		window, err := explicitWindow(cfg.StartDate, cfg.EndDate)
		if err != nil {
			slog.Error("invalid_date_range", "error", err)
			os.Exit(1)
		}
		runCycle(ctx, app, window)
		return
	}

	slog.Info("scanner_started",
		"poll_interval", cfg.PollInterval.String(),
		"lookback_hours", cfg.LookbackHours,
		"workers", cfg.WorkerCount,
	)

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()
	for {
		now := time.Now()
		runCycle(ctx, app, ports.Window{
			From: now.Add(-time.Duration(cfg.LookbackHours) * time.Hour),
			To:   now,
		})

		select {
		case <-ctx.Done():
			slog.Info("scanner_stopped")
			return
		case <-ticker.C:
		}
	}
}

func runCycle(ctx context.Context, app *bootstrap.App, window ports.Window) {
	report, err := app.Cycle.RunCycle(ctx, window)
	if err != nil {
		slog.Error("cycle_failed", "error", err)
		return
	}
	slog.Info("cycle_complete",
		"from", window.From.Format(dateLayout),
		"to", window.To.Format(dateLayout),
		"new_items", report.NewItems,
		"notified", report.Notifications,
	)

	if app.Report.Enabled() && len(report.Results) > 0 {
		path, err := app.Report.WriteCycleReport(report, time.Now())
		if err != nil {
			slog.Warn("report_write_failed", "error", err)
			return
		}
		slog.Info("report_written", "path", path)
	}
}

func explicitWindow(startDate, endDate string) (ports.Window, error) {
	from, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return ports.Window{}, err
	}
	to, err := time.Parse(dateLayout, endDate)
	if err != nil {
		return ports.Window{}, err
	}
	return ports.Window{From: from, To: to.Add(24*time.Hour - time.Second)}, nil
}

func serveMetrics(ctx context.Context, port string, handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	server := &http.Server{Addr: ":" + port, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Warn("metrics_server_failed", "error", err)
	}
}
