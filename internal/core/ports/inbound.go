package ports

import (
	"context"
	"time"

	"github.com/pravinheroku/bse-automation/internal/core/domain"
)

// ItemResult is the terminal outcome of one candidate within a cycle.
type ItemResult struct {
	ID      string
	Company string
	Status  domain.DisclosureStatus
	Payload *domain.Payload
}

// CycleReport summarizes one completed poll cycle.
type CycleReport struct {
	Window        Window
	NewItems      int
	Results       []ItemResult
	Notifications int
}

// Window is the candidate date range of one cycle.
type Window struct {
	From time.Time
	To   time.Time
}

// CycleRunner is the inbound contract for one full poll cycle:
// fetch candidates, process, notify.
type CycleRunner interface {
	RunCycle(ctx context.Context, window Window) (CycleReport, error)
}
