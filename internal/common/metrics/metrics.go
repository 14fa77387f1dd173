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

	MatchingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_runs_total",
			Help: "Match pipeline runs by outcome (ready, no_matches, escalated, invalid, error)",
		},
		[]string{"outcome"},
	)

	MatchesScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_scored_candidates_total",
			Help: "Candidates scored, by scorer that produced the final score",
		},
		[]string{"score_type"},
	)

	EnrichmentFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_enrichment_fallbacks_total",
			Help: "Feature fields replaced by their neutral default",
		},
		[]string{"feature"},
	)

	CandidatesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_candidates_dropped_total",
			Help: "Candidates dropped because enrichment failed",
		},
	)

	TrainingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "training_runs_total",
			Help: "Retrain job runs by status and trainer path",
		},
		[]string{"status", "trainer"},
	)

	PromotionDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "training_promotion_decisions_total",
			Help: "Promotion gate decisions",
		},
		[]string{"deployed"},
	)
)
