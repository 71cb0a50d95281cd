package models

// EdgeKind distinguishes explicit from textual relationships.
type EdgeKind string

const (
	EdgeDirect  EdgeKind = "direct"
	EdgeSimilar EdgeKind = "similar"
)

// Direct relation subtypes.
const (
	SubtypeRelated = "related"
	SubtypeOrigin  = "origin"
)

// RelationshipEdge links two records.
type RelationshipEdge struct {
	Source  string   `json:"source"`
	Target  string   `json:"target"`
	Kind    EdgeKind `json:"kind"`
	Subtype string   `json:"subtype,omitempty"`
	Score   *float64 `json:"score,omitempty"`
}

// ScoreValue returns the edge score or 0 when unset.
func (e RelationshipEdge) ScoreValue() float64 {
	if e.Score == nil {
		return 0
	}
	return *e.Score
}
