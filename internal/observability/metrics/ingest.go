// Package metrics exposes Prometheus instrumentation for the ingestion
// pipeline.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	AccountResultSucceeded = "succeeded"
	AccountResultFailed    = "failed"

	StageFetch     = "fetch"
	StageNormalize = "normalize"
	StageResolve   = "resolve"
	StageUpsert    = "upsert"
)

// IngestMetrics captures pipeline health signals per batch run.
type IngestMetrics struct {
	accountRuns       *prometheus.CounterVec
	accountDuration   prometheus.Histogram
	fetchAttempts     prometheus.Counter
	fetchRetries      prometheus.Counter
	stageErrors       *prometheus.CounterVec
	dimensionsCreated *prometheus.CounterVec
	factsInserted     prometheus.Counter
	factsSkipped      prometheus.Counter
}

var (
	ingestMetricsOnce sync.Once
	ingestMetrics     *IngestMetrics
)

// Ingest returns the singleton ingest metrics registry.
func Ingest() *IngestMetrics {
	ingestMetricsOnce.Do(func() {
		ingestMetrics = newIngestMetrics(prometheus.DefaultRegisterer)
	})
	return ingestMetrics
}

func newIngestMetrics(reg prometheus.Registerer) *IngestMetrics {
	m := &IngestMetrics{
		accountRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "costreport_account_runs_total",
			Help: "Account pipeline runs by terminal result.",
		}, []string{"result"}),
		accountDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "costreport_account_run_duration_seconds",
			Help:    "Wall time of one account's pipeline run.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		fetchAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "costreport_fetch_attempts_total",
			Help: "Cost Explorer API calls issued, including retries.",
		}),
		fetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "costreport_fetch_retries_total",
			Help: "Cost Explorer API calls that were retried after failure.",
		}),
		stageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "costreport_stage_errors_total",
			Help: "Pipeline errors by stage.",
		}, []string{"stage"}),
		dimensionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "costreport_dimension_rows_created_total",
			Help: "Dimension rows created on first sighting, by table.",
		}, []string{"dimension"}),
		factsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "costreport_facts_inserted_total",
			Help: "Cost fact rows inserted.",
		}),
		factsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "costreport_facts_skipped_total",
			Help: "Cost fact rows skipped as duplicates of an existing period.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.accountRuns,
			m.accountDuration,
			m.fetchAttempts,
			m.fetchRetries,
			m.stageErrors,
			m.dimensionsCreated,
			m.factsInserted,
			m.factsSkipped,
		)
	}
	return m
}

func (m *IngestMetrics) IncAccountRun(result string) {
	m.accountRuns.WithLabelValues(result).Inc()
}

func (m *IngestMetrics) ObserveAccountDuration(seconds float64) {
	m.accountDuration.Observe(seconds)
}

func (m *IngestMetrics) IncFetchAttempt() {
	m.fetchAttempts.Inc()
}

func (m *IngestMetrics) IncFetchRetry() {
	m.fetchRetries.Inc()
}

func (m *IngestMetrics) IncStageError(stage string) {
	m.stageErrors.WithLabelValues(stage).Inc()
}

func (m *IngestMetrics) IncDimensionCreated(dimension string) {
	m.dimensionsCreated.WithLabelValues(dimension).Inc()
}

func (m *IngestMetrics) AddFactsInserted(n int) {
	m.factsInserted.Add(float64(n))
}

func (m *IngestMetrics) AddFactsSkipped(n int) {
	if n > 0 {
		m.factsSkipped.Add(float64(n))
	}
}
