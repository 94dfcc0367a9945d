package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulerMetrics captures background job health.
type SchedulerMetrics struct {
	jobRuns   *prometheus.CounterVec
	jobErrors *prometheus.CounterVec
	processed *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewSchedulerMetrics registers scheduler collectors on the HTTP registry.
func NewSchedulerMetrics(cfg Config, http *HTTPMetrics) (*SchedulerMetrics, error) {
	constLabels := serviceLabels(cfg)

	m := &SchedulerMetrics{
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "fintrack_scheduler_job_runs_total",
			Help:        "Scheduler job runs by name.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "fintrack_scheduler_job_errors_total",
			Help:        "Scheduler job failures by name.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "fintrack_scheduler_items_processed_total",
			Help:        "Rows touched by scheduler jobs.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "fintrack_scheduler_job_duration_seconds",
			Help:        "Scheduler job latency.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			ConstLabels: constLabels,
		}, []string{"job"}),
	}

	var reg prometheus.Registerer = prometheus.NewRegistry()
	if http != nil {
		reg = http.Registerer()
	}
	for _, c := range []prometheus.Collector{m.jobRuns, m.jobErrors, m.processed, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *SchedulerMetrics) ObserveJob(job string, elapsed time.Duration, processed int64, err error) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
	m.duration.WithLabelValues(job).Observe(elapsed.Seconds())
	if processed > 0 {
		m.processed.WithLabelValues(job).Add(float64(processed))
	}
	if err != nil {
		m.jobErrors.WithLabelValues(job).Inc()
	}
}
