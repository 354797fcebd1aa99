// Package jobmetrics holds the Prometheus collectors shared by the ledger
// background jobs.
package jobmetrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs      *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	anomalies *prometheus.CounterVec
	skipped   *prometheus.CounterVec
	lastClean *prometheus.GaugeVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job collectors on registerer, or returns a shared
// set registered on the default registerer when it is nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = register(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return register(registerer)
}

// Tracker times one job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track starts timing a run of job.
func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End records the outcome of the run and returns err unchanged.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddAnomalies counts findings of an integrity check in a branch scope.
func (m *Metrics) AddAnomalies(check string, branchID *int64, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.anomalies.WithLabelValues(check, branchLabel(branchID)).Add(float64(count))
}

// SkipScope counts a scope left alone because another runner held its lock.
func (m *Metrics) SkipScope(job string, branchID *int64) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(job, branchLabel(branchID)).Inc()
}

// MarkClean stamps the time a scope last scanned without findings.
func (m *Metrics) MarkClean(job string, branchID *int64, at time.Time) {
	if m == nil {
		return
	}
	m.lastClean.WithLabelValues(job, branchLabel(branchID)).Set(float64(at.Unix()))
}

func branchLabel(branchID *int64) string {
	if branchID == nil {
		return "all"
	}
	return strconv.FormatInt(*branchID, 10)
}

func register(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_jobs_total",
			Help: "Job runs by job name and status.",
		}, []string{"job", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "odyssey_job_duration_seconds",
			Help:    "Wall time of job runs.",
			Buckets: []float64{0.05, 0.25, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_ledger_anomalies_total",
			Help: "Ledger integrity anomalies grouped by check and branch.",
		}, []string{"check", "branch"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_job_scopes_skipped_total",
			Help: "Branch scopes skipped because another runner held the lock.",
		}, []string{"job", "branch"}),
		lastClean: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "odyssey_job_last_clean_timestamp_seconds",
			Help: "Unix time of the last scan that found nothing in a branch scope.",
		}, []string{"job", "branch"}),
	}
	registerer.MustRegister(m.runs, m.duration, m.anomalies, m.skipped, m.lastClean)
	return m
}
