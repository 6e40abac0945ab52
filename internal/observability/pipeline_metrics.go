package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	pipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlchat_pipeline_runs_total",
			Help: "Total number of question submissions by outcome.",
		},
		[]string{"outcome"},
	)
	pipelineStageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlchat_pipeline_stage_duration_seconds",
			Help:    "Pipeline stage latency in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)
	pipelineStageFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlchat_pipeline_stage_failures_total",
			Help: "Total number of pipeline stages that aborted the run.",
		},
		[]string{"stage"},
	)
	queryExecutionErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlchat_query_execution_errors_total",
			Help: "Total number of generated queries the database rejected.",
		},
	)
	transcriptArchivesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlchat_transcript_archives_total",
			Help: "Total number of transcript archive uploads by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		pipelineRunsTotal,
		pipelineStageDurationSeconds,
		pipelineStageFailuresTotal,
		queryExecutionErrorsTotal,
		transcriptArchivesTotal,
	)
}

func ObservePipelineStage(stage string, elapsed time.Duration, failed bool) {
	pipelineStageDurationSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
	if failed {
		pipelineStageFailuresTotal.WithLabelValues(stage).Inc()
	}
}

func ObservePipelineRun(outcome string) {
	pipelineRunsTotal.WithLabelValues(outcome).Inc()
}

func IncrementQueryExecutionErrors() {
	queryExecutionErrorsTotal.Inc()
}

func ObserveTranscriptArchive(outcome string) {
	transcriptArchivesTotal.WithLabelValues(outcome).Inc()
}
