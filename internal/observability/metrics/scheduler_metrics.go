package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	SchedulerJobReasonDeadlineExceeded = "deadline_exceeded"
	SchedulerJobReasonUniqueViolation  = "unique_violation"
	SchedulerJobReasonValidation       = "validation"
	SchedulerJobReasonNotFound         = "not_found"
	SchedulerJobReasonUnknown          = "unknown"
)

// SchedulerMetrics captures collections scheduler health signals.
type SchedulerMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobTimeouts    *prometheus.CounterVec
	jobErrors      *prometheus.CounterVec
	batchProcessed *prometheus.CounterVec
	batchFailed    *prometheus.CounterVec
}

// Config scopes metric labels to a deployment.
type Config struct {
	ServiceName string
	Environment string
}

var (
	schedulerMetricsOnce sync.Once
	schedulerMetrics     *SchedulerMetrics
	schedulerLabels      Config
)

// SchedulerWithConfig initializes the singleton with deployment labels.
func SchedulerWithConfig(cfg Config) *SchedulerMetrics {
	schedulerMetricsOnce.Do(func() {
		schedulerLabels = cfg
		schedulerMetrics = newSchedulerMetrics()
	})
	return schedulerMetrics
}

// Scheduler returns the singleton scheduler metrics registry.
func Scheduler() *SchedulerMetrics {
	return SchedulerWithConfig(Config{ServiceName: "cobro", Environment: "unknown"})
}

// ResetSchedulerMetricsForTest clears the singleton so tests can re-register
// against a fresh prometheus registry.
func ResetSchedulerMetricsForTest() {
	schedulerMetricsOnce = sync.Once{}
	schedulerMetrics = nil
}

func newSchedulerMetrics() *SchedulerMetrics {
	base := prometheus.Labels{
		"service": schedulerLabels.ServiceName,
		"env":     schedulerLabels.Environment,
	}
	return &SchedulerMetrics{
		jobRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "cobro_scheduler_job_runs_total",
			Help:        "Number of scheduler job invocations.",
			ConstLabels: base,
		}, []string{"job"}),
		jobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "cobro_scheduler_job_duration_seconds",
			Help:        "Scheduler job wall time.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: base,
		}, []string{"job"}),
		jobTimeouts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "cobro_scheduler_job_timeouts_total",
			Help:        "Scheduler jobs that hit their deadline.",
			ConstLabels: base,
		}, []string{"job"}),
		jobErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "cobro_scheduler_job_errors_total",
			Help:        "Scheduler job errors by reason.",
			ConstLabels: base,
		}, []string{"job", "reason"}),
		batchProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "cobro_scheduler_batch_processed_total",
			Help:        "Batch items processed successfully per job.",
			ConstLabels: base,
		}, []string{"job"}),
		batchFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "cobro_scheduler_batch_failed_total",
			Help:        "Batch items that failed per job.",
			ConstLabels: base,
		}, []string{"job"}),
	}
}

func (m *SchedulerMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *SchedulerMetrics) IncJobTimeout(job string) {
	if m == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) IncJobError(job string, err error) {
	if m == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, reasonForError(err)).Inc()
}

func (m *SchedulerMetrics) AddBatchProcessed(job string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.batchProcessed.WithLabelValues(job).Add(float64(n))
}

func (m *SchedulerMetrics) AddBatchFailed(job string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.batchFailed.WithLabelValues(job).Add(float64(n))
}

func reasonForError(err error) string {
	switch {
	case err == nil:
		return SchedulerJobReasonUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return SchedulerJobReasonDeadlineExceeded
	default:
		return SchedulerJobReasonUnknown
	}
}
