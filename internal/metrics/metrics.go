// Package metrics exposes Prometheus counters for the batch pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tramite"

// Metrics groups the pipeline counters. A nil *Metrics is valid and records
// nothing, so components can run without a registry.
type Metrics struct {
	// documents counts export documents by outcome (parsed, too_large, failed).
	documents *prometheus.CounterVec

	// entriesRejected counts discarded entries by reason.
	entriesRejected *prometheus.CounterVec

	// recordsMerged counts duplicate identifiers merged into an existing record.
	recordsMerged prometheus.Counter

	similarityPairs    prometheus.Counter
	similarityAccepted prometheus.Counter
	cachePurges        prometheus.Counter

	// resolutions counts resolver outcomes. Labels: tier, method.
	resolutions *prometheus.CounterVec

	// stageTransitions counts appended history entries by new stage.
	stageTransitions *prometheus.CounterVec
	historyFailures  prometheus.Counter

	// sourceFetches counts external corpus fetches. Labels: source, outcome.
	sourceFetches *prometheus.CounterVec
}

// New registers the pipeline counters on reg. A nil reg builds unregistered
// counters.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		documents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "documents_total",
			Help:      "Export documents processed by outcome",
		}, []string{"outcome"}),
		entriesRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "entries_rejected_total",
			Help:      "Entries discarded during extraction by reason",
		}, []string{"reason"}),
		recordsMerged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "records_merged_total",
			Help:      "Duplicate identifiers merged into an existing record",
		}),
		similarityPairs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "similarity",
			Name:      "pairs_total",
			Help:      "Record pairs compared",
		}),
		similarityAccepted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "similarity",
			Name:      "accepted_total",
			Help:      "Record pairs accepted as similar",
		}),
		cachePurges: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "similarity",
			Name:      "cache_purges_total",
			Help:      "Full purges of the similarity cache",
		}),
		resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Cross-source resolution outcomes",
		}, []string{"tier", "method"}),
		stageTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stage",
			Name:      "transitions_total",
			Help:      "Stage history entries appended by stage",
		}, []string{"stage"}),
		historyFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stage",
			Name:      "history_failures_total",
			Help:      "Stage history writes that failed",
		}),
		sourceFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "senate",
			Name:      "source_fetches_total",
			Help:      "External corpus fetches by source and outcome",
		}, []string{"source", "outcome"}),
	}
}

func (m *Metrics) Document(outcome string) {
	if m != nil {
		m.documents.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) EntryRejected(reason string) {
	if m != nil {
		m.entriesRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) RecordMerged() {
	if m != nil {
		m.recordsMerged.Inc()
	}
}

func (m *Metrics) SimilarityPairs(n int) {
	if m != nil && n > 0 {
		m.similarityPairs.Add(float64(n))
	}
}

func (m *Metrics) SimilarityAccepted(n int) {
	if m != nil && n > 0 {
		m.similarityAccepted.Add(float64(n))
	}
}

func (m *Metrics) CachePurged() {
	if m != nil {
		m.cachePurges.Inc()
	}
}

func (m *Metrics) Resolution(tier, method string) {
	if m != nil {
		m.resolutions.WithLabelValues(tier, method).Inc()
	}
}

func (m *Metrics) StageTransition(stage string) {
	if m != nil {
		m.stageTransitions.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) HistoryFailure() {
	if m != nil {
		m.historyFailures.Inc()
	}
}

func (m *Metrics) SourceFetch(source, outcome string) {
	if m != nil {
		m.sourceFetches.WithLabelValues(source, outcome).Inc()
	}
}
