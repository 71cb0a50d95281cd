package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Document("parsed")
	m.EntryRejected("missing subject")
	m.CachePurged()
	m.Resolution("high", "identifier")
	m.StageTransition("passed")
	m.HistoryFailure()
	m.SourceFetch("export", "ok")
}

func TestCountersRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Document("parsed")
	m.Document("parsed")
	m.CachePurged()
	m.SimilarityPairs(3)

	if got := testutil.ToFloat64(m.documents.WithLabelValues("parsed")); got != 2 {
		t.Errorf("documents parsed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.cachePurges); got != 1 {
		t.Errorf("cache purges = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.similarityPairs); got != 3 {
		t.Errorf("pairs = %v, want 3", got)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Error("no metric families registered")
	}
}
