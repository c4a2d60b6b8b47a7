package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	runResultOK    = "ok"
	runResultError = "error"
)

// CronJobMetrics tracks the cron worker's job runs and the work each job left behind.
type CronJobMetrics struct {
	duration    *prometheus.HistogramVec
	runs        *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
	backlog     *prometheus.GaugeVec
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cron_job_duration_seconds",
		Help:    "Wall time of one cron job run.",
		Buckets: []float64{0.05, 0.25, 1, 5, 15, 60, 300, 900},
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cron_job_runs_total",
		Help: "Cron job runs by result.",
	}, []string{"job", "result"})
	lastSuccess := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cron_job_last_success_timestamp_seconds",
		Help: "Unix time of the last successful run per job.",
	}, []string{"job"})
	backlog := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cron_job_backlog",
		Help: "Items a job found but could not settle on its last run.",
	}, []string{"job"})
	reg.MustRegister(duration, runs, lastSuccess, backlog)
	return &CronJobMetrics{
		duration:    duration,
		runs:        runs,
		lastSuccess: lastSuccess,
		backlog:     backlog,
	}
}

// ObserveRun records one finished run of job.
func (c *CronJobMetrics) ObserveRun(job string, duration time.Duration, err error) {
	if c == nil || c.duration == nil {
		return
	}
	job = normalizeLabel(job)
	c.duration.WithLabelValues(job).Observe(duration.Seconds())
	if err != nil {
		c.runs.WithLabelValues(job, runResultError).Inc()
		return
	}
	c.runs.WithLabelValues(job, runResultOK).Inc()
	c.lastSuccess.WithLabelValues(job).SetToCurrentTime()
}

// SetBacklog reports what job left unsettled.
func (c *CronJobMetrics) SetBacklog(job string, n int) {
	if c == nil || c.backlog == nil {
		return
	}
	c.backlog.WithLabelValues(normalizeLabel(job)).Set(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
