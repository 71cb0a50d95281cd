package similarity

import (
	"github.com/adrg/strutil"
	strmetrics "github.com/adrg/strutil/metrics"

	"github.com/starford/tramite/internal/textnorm"
)

// Weights combine the two string metrics into one composite score.
type Weights struct {
	JaroWinkler float64
	Levenshtein float64
}

// DefaultWeights favour Jaro-Winkler, which rewards shared prefixes such as
// "Proyecto de Ley de ...".
var DefaultWeights = Weights{JaroWinkler: 0.7, Levenshtein: 0.3}

// Scorer computes composite similarity over normalized text. It is not safe
// for concurrent use.
type Scorer struct {
	weights Weights
	cache   Cache
	jw      *strmetrics.JaroWinkler
	lev     *strmetrics.Levenshtein
	hits    int
}

// NewScorer creates a Scorer. A nil cache disables caching.
func NewScorer(weights Weights, cache Cache) *Scorer {
	return &Scorer{
		weights: weights,
		cache:   cache,
		jw:      strmetrics.NewJaroWinkler(),
		lev:     strmetrics.NewLevenshtein(),
	}
}

// Score returns the similarity of a and b in [0, 1]. It is symmetric, and
// any text whose normalized form is non-empty scores 1.0 against itself.
func (s *Scorer) Score(a, b string) float64 {
	key := NewPairKey(a, b)
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			s.hits++
			return v
		}
	}
	score := s.compare(textnorm.Normalize(key.A), textnorm.Normalize(key.B))
	if s.cache != nil {
		s.cache.Put(key, score)
	}
	return score
}

// CacheHits returns how many scores were served from the cache.
func (s *Scorer) CacheHits() int { return s.hits }

func (s *Scorer) compare(na, nb string) float64 {
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	// Fixed operand order keeps floating-point results identical both ways.
	if na > nb {
		na, nb = nb, na
	}
	jw := strutil.Similarity(na, nb, s.jw)
	lev := strutil.Similarity(na, nb, s.lev)
	return clamp(s.weights.JaroWinkler*jw + s.weights.Levenshtein*lev)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
