// Package similarity discovers direct and fuzzy-textual relationships
// between records.
package similarity

import (
	"log/slog"
	"sort"

	"github.com/starford/tramite/internal/metrics"
	"github.com/starford/tramite/internal/models"
	"github.com/starford/tramite/internal/recordstore"
	"github.com/starford/tramite/internal/textnorm"
)

// DefaultThreshold is the minimum composite score for a similar match.
const DefaultThreshold = 0.6

// Config configures an Engine.
type Config struct {
	Weights       Weights
	Threshold     float64
	CacheCapacity int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Weights:       DefaultWeights,
		Threshold:     DefaultThreshold,
		CacheCapacity: DefaultCacheCapacity,
	}
}

// EdgeSink receives relationship edges as they are discovered.
type EdgeSink func(edge models.RelationshipEdge)

// Stats summarises one similarity pass.
type Stats struct {
	Records     int `json:"records"`
	Compared    int `json:"compared"`
	Accepted    int `json:"accepted"`
	CacheHits   int `json:"cache_hits"`
	CachePurges int `json:"cache_purges"`
}

// Engine resolves cross-references and scores record pairs. The score cache
// lives as long as the Engine, so repeated runs in one process reuse it.
type Engine struct {
	cfg     Config
	cache   Cache
	scorer  *Scorer
	logger  *slog.Logger
	metrics *metrics.Metrics
	purges  int
}

// NewEngine creates an Engine. A nil cache builds a FlushCache with the
// configured capacity.
func NewEngine(cfg Config, cache Cache, logger *slog.Logger, m *metrics.Metrics) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{cfg: cfg, logger: logger, metrics: m}
	if cache == nil {
		cache = NewFlushCache(cfg.CacheCapacity, e.onPurge)
	}
	e.cache = cache
	e.scorer = NewScorer(cfg.Weights, cache)
	return e
}

func (e *Engine) onPurge(size int) {
	e.purges++
	e.metrics.CachePurged()
	e.logger.Debug("similarity: cache purged", slog.Int("entries", size))
}

// Score returns the composite similarity of two texts.
func (e *Engine) Score(a, b string) float64 {
	return e.scorer.Score(a, b)
}

// DirectRelations resolves each record's raw cross-references against the
// store. References to unknown identifiers are dropped. It sets
// DirectRelations on every record and returns the number of edges emitted.
func (e *Engine) DirectRelations(store *recordstore.Store, sink EdgeSink) int {
	edges := 0
	for _, rec := range store.All() {
		rels := make([]models.DirectRelation, 0, len(rec.Related)+len(rec.Origin))
		seen := make(map[models.DirectRelation]struct{})
		add := func(refs []string, subtype string) {
			for _, ref := range refs {
				if ref == rec.ID || !store.Has(ref) {
					continue
				}
				rel := models.DirectRelation{Target: ref, Subtype: subtype}
				if _, dup := seen[rel]; dup {
					continue
				}
				seen[rel] = struct{}{}
				rels = append(rels, rel)
				edges++
				if sink != nil {
					sink(models.RelationshipEdge{
						Source:  rec.ID,
						Target:  ref,
						Kind:    models.EdgeDirect,
						Subtype: subtype,
					})
				}
			}
		}
		add(rec.Related, models.SubtypeRelated)
		add(rec.Origin, models.SubtypeOrigin)
		rec.DirectRelations = rels
	}
	return edges
}

// Similar compares every unordered pair of records with non-empty subject
// text once, in store order. Accepted matches are attached to both records,
// sorted by descending score with ties kept in store order, and each accepted
// pair is emitted once to sink. Only the accepted matches are held in memory.
func (e *Engine) Similar(store *recordstore.Store, sink EdgeSink) Stats {
	all := store.All()
	candidates := make([]*models.Record, 0, len(all))
	for _, rec := range all {
		rec.Similar = []models.SimilarMatch{}
		if textnorm.Normalize(rec.Subject) != "" {
			candidates = append(candidates, rec)
		}
	}

	hitsBefore, purgesBefore := e.scorer.CacheHits(), e.purges
	stats := Stats{Records: len(candidates)}
	for i, a := range candidates {
		for _, b := range candidates[i+1:] {
			score := e.scorer.Score(a.Subject, b.Subject)
			stats.Compared++
			if score < e.cfg.Threshold {
				continue
			}
			stats.Accepted++
			a.Similar = append(a.Similar, models.SimilarMatch{Target: b.ID, Score: score})
			b.Similar = append(b.Similar, models.SimilarMatch{Target: a.ID, Score: score})
			if sink != nil {
				s := score
				sink(models.RelationshipEdge{
					Source: a.ID,
					Target: b.ID,
					Kind:   models.EdgeSimilar,
					Score:  &s,
				})
			}
		}
	}
	for _, rec := range candidates {
		sort.SliceStable(rec.Similar, func(i, j int) bool {
			return rec.Similar[i].Score > rec.Similar[j].Score
		})
	}

	stats.CacheHits = e.scorer.CacheHits() - hitsBefore
	stats.CachePurges = e.purges - purgesBefore
	e.metrics.SimilarityPairs(stats.Compared)
	e.metrics.SimilarityAccepted(stats.Accepted)
	e.logger.Info("similarity: pass complete",
		slog.Int("records", stats.Records),
		slog.Int("compared", stats.Compared),
		slog.Int("accepted", stats.Accepted),
		slog.Int("cache_hits", stats.CacheHits),
		slog.Int("cache_purges", stats.CachePurges))
	return stats
}
