package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments exported by the cron service.
// Counters are fed from batch reports after each job run.
type Metrics struct {
	EmailsSent         prometheus.Counter
	EmailsFailed       prometheus.Counter
	ScheduledProcessed prometheus.Counter
	ScheduledErrors    prometheus.Counter
	ReengageSent       prometheus.Counter
	ReengageSkipped    prometheus.Counter
	JobDuration        *prometheus.HistogramVec
	JobRunsSkipped     *prometheus.CounterVec
}

// New registers and returns the mailroom metrics set.
func New() *Metrics {
	return &Metrics{
		EmailsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailroom_emails_sent_total",
			Help: "Total number of emails successfully delivered",
		}),
		EmailsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailroom_emails_failed_total",
			Help: "Total number of email delivery failures",
		}),
		ScheduledProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailroom_scheduled_processed_total",
			Help: "Total number of scheduled email rows processed to completion",
		}),
		ScheduledErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailroom_scheduled_errors_total",
			Help: "Total number of scheduled email rows that ended a run in error",
		}),
		ReengageSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailroom_reengage_sent_total",
			Help: "Total number of re-engagement emails sent",
		}),
		ReengageSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailroom_reengage_skipped_total",
			Help: "Total number of inactive users skipped by the re-engagement job",
		}),
		JobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mailroom_job_duration_seconds",
			Help:    "Duration of batch job runs",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		JobRunsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mailroom_job_runs_skipped_total",
			Help: "Job runs skipped because a previous run still held the run lock",
		}, []string{"job"}),
	}
}
