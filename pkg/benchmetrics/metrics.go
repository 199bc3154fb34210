// Package benchmetrics exposes the Prometheus metrics every
// ForecastBench job records: one struct of vector fields, a
// registerAll(), and typed Record* helpers.
package benchmetrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every counter/gauge/histogram a job stage can touch.
type Metrics struct {
	registry *prometheus.Registry

	// Bank
	BankQuestionsWritten *prometheus.CounterVec // labels: source
	BankRemapApplied     prometheus.Counter
	BankNullifyApplied   prometheus.Counter

	// Curator
	CuratorBinGot       *prometheus.GaugeVec // labels: source, bin
	CuratorBinWant      *prometheus.GaugeVec // labels: source, bin
	CuratorBinShortfall *prometheus.CounterVec // labels: source, bin
	CuratorSetSize      *prometheus.GaugeVec   // labels: source, target

	// Resolution
	ResolutionFilesProcessed *prometheus.CounterVec // labels: result (ok|error)
	ResolutionRowsImputed    *prometheus.CounterVec // labels: model
	ImputationViolations     *prometheus.CounterVec // labels: model, question_type

	// Scoring
	BootstrapReplicateSeconds prometheus.Histogram
	BootstrapReplicatesTotal  prometheus.Counter
	ScoringJobSeconds         *prometheus.HistogramVec // labels: stage

	// Job lifecycle
	JobRuns     *prometheus.CounterVec // labels: job, result
	JobDuration *prometheus.HistogramVec // labels: job
}

// New builds a Metrics bound to a fresh registry. Use Default() for
// the process-wide singleton registered with promhttp.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		BankQuestionsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecastbench", Subsystem: "bank", Name: "questions_written_total",
			Help: "Questions written to the bank, per source.",
		}, []string{"source"}),
		BankRemapApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "forecastbench", Subsystem: "bank", Name: "remap_applied_total",
			Help: "Remap-table lookups that changed a resolved id.",
		}),
		BankNullifyApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "forecastbench", Subsystem: "bank", Name: "nullify_applied_total",
			Help: "Nullify-table lookups that forced a NaN resolution.",
		}),

		CuratorBinGot: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "forecastbench", Subsystem: "curator", Name: "bin_got",
			Help: "Questions actually sampled into a composite bin.",
		}, []string{"source", "bin"}),
		CuratorBinWant: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "forecastbench", Subsystem: "curator", Name: "bin_want",
			Help: "Target question count for a composite bin.",
		}, []string{"source", "bin"}),
		CuratorBinShortfall: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecastbench", Subsystem: "curator", Name: "bin_shortfall_total",
			Help: "Bins where availability fell short of target.",
		}, []string{"source", "bin"}),
		CuratorSetSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "forecastbench", Subsystem: "curator", Name: "set_size",
			Help: "Final question-set size, per source.",
		}, []string{"source", "target"}),

		ResolutionFilesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecastbench", Subsystem: "resolution", Name: "files_processed_total",
			Help: "Forecast files processed by the resolution engine.",
		}, []string{"result"}),
		ResolutionRowsImputed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecastbench", Subsystem: "resolution", Name: "rows_imputed_total",
			Help: "Forecast rows missing a submission and imputed to 0.5 (or the distinguished model's value).",
		}, []string{"model"}),
		ImputationViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecastbench", Subsystem: "resolution", Name: "imputation_violations_total",
			Help: "Submitter/question-type pairs that exceeded the imputed-row threshold.",
		}, []string{"model", "question_type"}),

		BootstrapReplicateSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "forecastbench", Subsystem: "scoring", Name: "bootstrap_replicate_seconds",
			Help:    "Wall time to score one bootstrap replicate.",
			Buckets: prometheus.DefBuckets,
		}),
		BootstrapReplicatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "forecastbench", Subsystem: "scoring", Name: "bootstrap_replicates_total",
			Help: "Bootstrap replicates completed.",
		}),
		ScoringJobSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "forecastbench", Subsystem: "scoring", Name: "stage_seconds",
			Help:    "Wall time per scoring stage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),

		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forecastbench", Subsystem: "job", Name: "runs_total",
			Help: "Job invocations, by job name and terminal result.",
		}, []string{"job", "result"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "forecastbench", Subsystem: "job", Name: "duration_seconds",
			Help:    "Wall time per job invocation.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}, []string{"job"}),
	}
	m.registerAll()
	return m
}

func (m *Metrics) registerAll() {
	m.registry.MustRegister(
		m.BankQuestionsWritten, m.BankRemapApplied, m.BankNullifyApplied,
		m.CuratorBinGot, m.CuratorBinWant, m.CuratorBinShortfall, m.CuratorSetSize,
		m.ResolutionFilesProcessed, m.ResolutionRowsImputed, m.ImputationViolations,
		m.BootstrapReplicateSeconds, m.BootstrapReplicatesTotal, m.ScoringJobSeconds,
		m.JobRuns, m.JobDuration,
	)
}

// Registry returns the underlying Prometheus registry for wiring into
// an HTTP /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordImputationViolation records that model exceeded the imputed
// row threshold for questionType.
func (m *Metrics) RecordImputationViolation(model, questionType string) {
	m.ImputationViolations.WithLabelValues(model, questionType).Inc()
}

// RecordJobRun records one job's terminal result and duration.
func (m *Metrics) RecordJobRun(job, result string, seconds float64) {
	m.JobRuns.WithLabelValues(job, result).Inc()
	m.JobDuration.WithLabelValues(job).Observe(seconds)
}

var (
	defaultOnce sync.Once
	defaultM    *Metrics
)

// Default returns the process-wide Metrics singleton.
func Default() *Metrics {
	defaultOnce.Do(func() { defaultM = New() })
	return defaultM
}
