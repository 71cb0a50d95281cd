package pipeline

import (
	"time"

	"github.com/starford/tramite/internal/similarity"
)

// Report summarises one batch run. Counters never abort the run; Errors
// aggregates every degraded step.
type Report struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// InputChecksum fingerprints the document set the run read.
	InputChecksum string `json:"input_checksum"`

	Documents       int `json:"documents"`
	DocumentsFailed int `json:"documents_failed"`
	Entries         int `json:"entries"`
	Rejected        int `json:"rejected"`
	Records         int `json:"records"`
	Merged          int `json:"merged"`

	DirectEdges int              `json:"direct_edges"`
	Similarity  similarity.Stats `json:"similarity"`

	CorpusLaws    int `json:"corpus_laws"`
	SourcesFailed int `json:"sources_failed"`
	Resolved      int `json:"resolved"`
	Unresolved    int `json:"unresolved"`

	StageChanges int            `json:"stage_changes"`
	ByStage      map[string]int `json:"by_stage"`

	Errors int `json:"errors"`
}

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
