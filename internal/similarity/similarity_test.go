package similarity

import (
	"testing"

	"github.com/starford/tramite/internal/models"
	"github.com/starford/tramite/internal/recordstore"
)

var corpus = []string{
	"Ley de protección del medio ambiente",
	"Ley de protección del medioambiente",
	"Proyecto de Ley de Presupuestos Generales del Estado para el año 2021",
	"Proyecto de Ley de Presupuestos Generales del Estado para el año 2022",
	"Proposición no de Ley sobre la pesca de bajura",
	"Real Decreto-ley 8/2020, de medidas urgentes extraordinarias",
	"¿?",
}

func storeOf(subjects ...string) *recordstore.Store {
	s := recordstore.New()
	for i, subj := range subjects {
		s.Upsert(&models.Record{ID: string(rune('a' + i)), Subject: subj})
	}
	return s
}

func TestScore_Symmetric(t *testing.T) {
	sc := NewScorer(DefaultWeights, nil)
	for _, a := range corpus {
		for _, b := range corpus {
			if ab, ba := sc.Score(a, b), sc.Score(b, a); ab != ba {
				t.Errorf("Score(%q, %q) = %v but reversed = %v", a, b, ab, ba)
			}
		}
	}
}

func TestScore_Reflexive(t *testing.T) {
	sc := NewScorer(DefaultWeights, NewFlushCache(100, nil))
	for _, a := range corpus[:6] {
		if got := sc.Score(a, a); got != 1.0 {
			t.Errorf("Score(%q, itself) = %v, want 1", a, got)
		}
	}
}

func TestScore_Bounds(t *testing.T) {
	sc := NewScorer(Weights{JaroWinkler: 0.5, Levenshtein: 0.5}, nil)
	for _, a := range corpus {
		for _, b := range corpus {
			if s := sc.Score(a, b); s < 0 || s > 1 {
				t.Errorf("Score(%q, %q) = %v out of [0,1]", a, b, s)
			}
		}
	}
	if s := sc.Score("", "Ley"); s != 0 {
		t.Errorf("empty text score = %v, want 0", s)
	}
}

func TestScore_NormalizedEqualityShortCircuits(t *testing.T) {
	sc := NewScorer(DefaultWeights, nil)
	if s := sc.Score("LEY   de Aguas.", "ley de aguas"); s != 1.0 {
		t.Errorf("score = %v, want 1", s)
	}
}

func TestSimilar_NearDuplicates(t *testing.T) {
	store := storeOf(corpus[0], corpus[1], corpus[4])
	e := NewEngine(DefaultConfig(), nil, nil, nil)
	e.Similar(store, nil)

	a, _ := store.Get("a")
	b, _ := store.Get("b")
	if len(a.Similar) == 0 || a.Similar[0].Target != "b" || a.Similar[0].Score < 0.6 {
		t.Errorf("a.Similar = %+v, want b with score >= 0.6", a.Similar)
	}
	if len(b.Similar) == 0 || b.Similar[0].Target != "a" {
		t.Errorf("b.Similar = %+v, want a", b.Similar)
	}
	if a.Similar[0].Score != b.Similar[0].Score {
		t.Errorf("asymmetric stored scores %v / %v", a.Similar[0].Score, b.Similar[0].Score)
	}
}

func TestSimilar_ThresholdMonotonic(t *testing.T) {
	thresholds := []float64{0.3, 0.5, 0.6, 0.8, 0.95}
	var prev map[string]bool
	for _, th := range thresholds {
		cfg := DefaultConfig()
		cfg.Threshold = th
		store := storeOf(corpus...)
		accepted := make(map[string]bool)
		NewEngine(cfg, nil, nil, nil).Similar(store, func(e models.RelationshipEdge) {
			accepted[e.Source+"-"+e.Target] = true
		})
		for pair := range accepted {
			if prev != nil && !prev[pair] {
				t.Errorf("pair %s accepted at %v but not at a lower threshold", pair, th)
			}
		}
		prev = accepted
	}
}

func TestSimilar_SortedDescendingStableTies(t *testing.T) {
	// b and c are identical texts, so they tie against a.
	store := storeOf("Ley de aguas", "Ley de aguas continentales", "Ley de aguas continentales", "Ley de aguas")
	cfg := DefaultConfig()
	cfg.Threshold = 0.1
	NewEngine(cfg, nil, nil, nil).Similar(store, nil)

	a, _ := store.Get("a")
	want := []string{"d", "b", "c"}
	if len(a.Similar) != len(want) {
		t.Fatalf("a.Similar = %+v", a.Similar)
	}
	for i, id := range want {
		if a.Similar[i].Target != id {
			t.Errorf("a.Similar[%d] = %s, want %s (%+v)", i, a.Similar[i].Target, id, a.Similar)
		}
	}
	for i := 1; i < len(a.Similar); i++ {
		if a.Similar[i].Score > a.Similar[i-1].Score {
			t.Errorf("not sorted: %+v", a.Similar)
		}
	}
}

func TestSimilar_EmptySubjectsSkipped(t *testing.T) {
	store := storeOf("Ley de aguas", "¿?", "Ley de aguas")
	stats := NewEngine(DefaultConfig(), nil, nil, nil).Similar(store, nil)
	if stats.Records != 2 || stats.Compared != 1 {
		t.Errorf("stats = %+v, want 2 records / 1 comparison", stats)
	}
	b, _ := store.Get("b")
	if b.Similar == nil || len(b.Similar) != 0 {
		t.Errorf("b.Similar = %#v, want empty", b.Similar)
	}
}

func TestSimilar_Idempotent(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil, nil, nil)
	collect := func() []models.RelationshipEdge {
		var out []models.RelationshipEdge
		e.Similar(storeOf(corpus...), func(edge models.RelationshipEdge) { out = append(out, edge) })
		return out
	}
	first, second := collect(), collect()
	if len(first) != len(second) {
		t.Fatalf("edge counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Source != second[i].Source || first[i].Target != second[i].Target || first[i].ScoreValue() != second[i].ScoreValue() {
			t.Errorf("edge %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestFlushCache_PurgesInFull(t *testing.T) {
	var purged []int
	c := NewFlushCache(2, func(n int) { purged = append(purged, n) })
	c.Put(NewPairKey("a", "b"), 0.1)
	c.Put(NewPairKey("a", "c"), 0.2)
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	c.Put(NewPairKey("a", "d"), 0.3)
	if c.Len() != 0 {
		t.Errorf("Len after overflow = %d, want 0", c.Len())
	}
	if c.Purges() != 1 || len(purged) != 1 || purged[0] != 3 {
		t.Errorf("purges = %d, callback = %v", c.Purges(), purged)
	}
	if _, ok := c.Get(NewPairKey("b", "a")); ok {
		t.Error("entry survived purge")
	}
}

func TestEngine_CacheReusedAcrossRuns(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil, nil, nil)
	e.Similar(storeOf(corpus...), nil)
	stats := e.Similar(storeOf(corpus...), nil)
	if stats.CacheHits != stats.Compared {
		t.Errorf("second run hits = %d, compared = %d", stats.CacheHits, stats.Compared)
	}
}

func TestEngine_CachePurgeCounted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CacheCapacity = 2
	stats := NewEngine(cfg, nil, nil, nil).Similar(storeOf(corpus...), nil)
	if stats.CachePurges == 0 {
		t.Errorf("stats = %+v, want purges with tiny capacity", stats)
	}
}

func TestDirectRelations(t *testing.T) {
	store := recordstore.New()
	store.Upsert(&models.Record{ID: "1", Subject: "A", Related: []string{"2", "404", "1", "2"}, Origin: []string{"3"}})
	store.Upsert(&models.Record{ID: "2", Subject: "B"})
	store.Upsert(&models.Record{ID: "3", Subject: "C", Related: []string{"1"}})

	var edges []models.RelationshipEdge
	n := NewEngine(DefaultConfig(), nil, nil, nil).DirectRelations(store, func(e models.RelationshipEdge) {
		edges = append(edges, e)
	})
	if n != 3 || len(edges) != 3 {
		t.Fatalf("edges = %+v", edges)
	}
	r1, _ := store.Get("1")
	if len(r1.DirectRelations) != 2 ||
		r1.DirectRelations[0] != (models.DirectRelation{Target: "2", Subtype: models.SubtypeRelated}) ||
		r1.DirectRelations[1] != (models.DirectRelation{Target: "3", Subtype: models.SubtypeOrigin}) {
		t.Errorf("r1.DirectRelations = %+v", r1.DirectRelations)
	}
	r2, _ := store.Get("2")
	if r2.DirectRelations == nil || len(r2.DirectRelations) != 0 {
		t.Errorf("r2.DirectRelations = %#v", r2.DirectRelations)
	}
	for _, e := range edges {
		if e.Kind != models.EdgeDirect {
			t.Errorf("edge kind = %s", e.Kind)
		}
	}
}
