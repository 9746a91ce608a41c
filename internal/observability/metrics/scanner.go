package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ScannerMetrics struct {
	registry *prometheus.Registry

	cyclesTotal     *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	itemsTotal      *prometheus.CounterVec
	itemDuration    *prometheus.HistogramVec
	itemsInFlight   prometheus.Gauge
	distressTotal   prometheus.Counter
	notifyTotal     *prometheus.CounterVec
	historicalCache *prometheus.CounterVec
}

func NewScannerMetrics(service string) *ScannerMetrics {
	registry := prometheus.NewRegistry()

	cyclesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bse",
			Subsystem: "scanner",
			Name:      "cycles_total",
			Help:      "Total poll cycles by outcome.",
		},
		[]string{"service", "status"},
	)
	cycleDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "bse",
			Subsystem: "scanner",
			Name:      "cycle_duration_seconds",
			Help:      "Full poll cycle duration in seconds.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	itemsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bse",
			Subsystem: "scanner",
			Name:      "items_total",
			Help:      "Total processed disclosures by terminal outcome.",
		},
		[]string{"service", "outcome"},
	)
	itemDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bse",
			Subsystem: "scanner",
			Name:      "item_duration_seconds",
			Help:      "Per-disclosure processing duration in seconds by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "outcome"},
	)
	itemsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bse",
			Subsystem: "scanner",
			Name:      "items_in_flight",
			Help:      "Disclosures currently held by pool workers.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	distressTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bse",
			Subsystem: "scanner",
			Name:      "distress_cooldowns_total",
			Help:      "Pool-wide cool-downs triggered by upstream distress.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	notifyTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bse",
			Subsystem: "scanner",
			Name:      "notifications_total",
			Help:      "Delivered notifications by kind and status.",
		},
		[]string{"service", "kind", "status"},
	)
	historicalCache := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bse",
			Subsystem: "scanner",
			Name:      "historical_cache_total",
			Help:      "Historical comparison lookups by result.",
		},
		[]string{"service", "result"},
	)

	registry.MustRegister(cyclesTotal, cycleDuration, itemsTotal, itemDuration, itemsInFlight, distressTotal, notifyTotal, historicalCache)

	return &ScannerMetrics{
		registry:        registry,
		cyclesTotal:     cyclesTotal,
		cycleDuration:   cycleDuration,
		itemsTotal:      itemsTotal,
		itemDuration:    itemDuration,
		itemsInFlight:   itemsInFlight,
		distressTotal:   distressTotal,
		notifyTotal:     notifyTotal,
		historicalCache: historicalCache,
	}
}

func (m *ScannerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *ScannerMetrics) FinishCycle(service string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.cyclesTotal.WithLabelValues(service, status).Inc()
	m.cycleDuration.Observe(duration.Seconds())
}

func (m *ScannerMetrics) StartItem() {
	m.itemsInFlight.Inc()
}

func (m *ScannerMetrics) FinishItem(service, outcome string, duration time.Duration) {
	m.itemsInFlight.Dec()
	m.itemsTotal.WithLabelValues(service, outcome).Inc()
	m.itemDuration.WithLabelValues(service, outcome).Observe(duration.Seconds())
}

func (m *ScannerMetrics) DistressCooldown() {
	m.distressTotal.Inc()
}

func (m *ScannerMetrics) NotificationSent(service, kind string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.notifyTotal.WithLabelValues(service, kind, status).Inc()
}

func (m *ScannerMetrics) HistoricalLookup(service, result string) {
	m.historicalCache.WithLabelValues(service, result).Inc()
}
