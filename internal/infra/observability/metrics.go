package observability

import (
	"time"

	"github.com/financetracker/finance-tracker-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the tracker.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	storeErrors     *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	budgetHealth    *prometheus.CounterVec
	categorizations *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tracker_request_duration_seconds",
				Help:    "Duration of service operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_store_errors_total",
				Help: "Total errors returned by stores and external services.",
			},
			[]string{"store"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		budgetHealth: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_budget_status_total",
				Help: "Budget statuses computed, by health bucket.",
			},
			[]string{"status"},
		),
		categorizations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_categorizations_total",
				Help: "Category suggestions served, by source.",
			},
			[]string{"source"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrStoreError increments the store error counter.
func (m *Metrics) IncrStoreError(store string) {
	m.storeErrors.WithLabelValues(store).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordBudgetStatuses counts each computed status by its health bucket.
func (m *Metrics) RecordBudgetStatuses(statuses []domain.BudgetStatus) {
	for _, s := range statuses {
		m.budgetHealth.WithLabelValues(string(s.Status)).Inc()
	}
}

// IncrCategorization counts one category suggestion by source.
func (m *Metrics) IncrCategorization(source string) {
	m.categorizations.WithLabelValues(source).Inc()
}

// Snapshot returns the counters suitable for GET /v1/metrics/service.
func (m *Metrics) Snapshot() *domain.ServiceMetrics {
	hits := sumCounterVec(m.cacheHits)
	misses := sumCounterVec(m.cacheMisses)

	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	health := make(map[string]float64, 3)
	for _, s := range []domain.BudgetHealth{domain.BudgetGood, domain.BudgetWarning, domain.BudgetOver} {
		health[string(s)] = getCounterValue(m.budgetHealth, string(s))
	}

	return &domain.ServiceMetrics{
		StoreErrors:          sumCounterVec(m.storeErrors),
		CacheHitRate:         hitRate,
		BudgetClassification: health,
		Categorizations:      labelValues(m.categorizations, "source"),
		Period:               "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// collect drains every child series of a CounterVec.
func collect(cv *prometheus.CounterVec) []*dto.Metric {
	ch := make(chan prometheus.Metric)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	var out []*dto.Metric
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}

func sumCounterVec(cv *prometheus.CounterVec) float64 {
	var total float64
	for _, m := range collect(cv) {
		total += m.GetCounter().GetValue()
	}
	return total
}

func labelValues(cv *prometheus.CounterVec, label string) map[string]float64 {
	out := make(map[string]float64)
	for _, m := range collect(cv) {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label {
				out[lp.GetValue()] += m.GetCounter().GetValue()
			}
		}
	}
	return out
}
