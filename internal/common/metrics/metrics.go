// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

// Lead pipeline metrics.
var (
	// outcome: extracted, absent, failed
	LeadExtractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_extractions_total",
			Help: "Lead field extractions by outcome",
		},
		[]string{"outcome"},
	)

	// outcome: scored, cached, failed
	LeadScores = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_scores_total",
			Help: "Lead scoring attempts by outcome",
		},
		[]string{"outcome"},
	)

	LeadScoreValue = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lead_score_value",
			Help:    "Distribution of score_total values returned by the scorer",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "Completion round-trip duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"operation"},
	)

	CRMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_requests_total",
			Help: "Odoo XML-RPC calls by method and status",
		},
		[]string{"method", "status"},
	)
)
