package usecase

import "time"

// Metrics is the minimal observation surface the cycle needs. The
// concrete Prometheus implementation lives in observability; a nop
// keeps tests and stripped-down deployments quiet.
type Metrics interface {
	StartItem()
	FinishItem(outcome string, duration time.Duration)
	FinishCycle(duration time.Duration, err error)
	DistressCooldown()
	NotificationSent(kind string, err error)
	HistoricalLookup(result string)
}

type NopMetrics struct{}

func (NopMetrics) StartItem()                       {}
func (NopMetrics) FinishItem(string, time.Duration) {}
func (NopMetrics) FinishCycle(time.Duration, error) {}
func (NopMetrics) DistressCooldown()                {}
func (NopMetrics) NotificationSent(string, error)   {}
func (NopMetrics) HistoricalLookup(string)          {}
