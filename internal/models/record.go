// Package models defines the domain types for tramite.
package models

import "strings"

// Stage is the canonical lifecycle position of a record.
type Stage string

// Lifecycle stages. Proposed through Published form the 1-5 progression;
// Rejected, Withdrawn and Closed are terminal.
const (
	StageProposed  Stage = "proposed"
	StageDebating  Stage = "debating"
	StageCommittee Stage = "committee"
	StageVoting    Stage = "voting"
	StagePassed    Stage = "passed"
	StagePublished Stage = "published"
	StageRejected  Stage = "rejected"
	StageWithdrawn Stage = "withdrawn"
	StageClosed    Stage = "closed"
)

// Terminal reports whether s sits outside the 1-5 progression.
func (s Stage) Terminal() bool {
	switch s {
	case StageRejected, StageWithdrawn, StageClosed:
		return true
	}
	return false
}

// Record is one legislative initiative after extraction and enrichment.
// JSON keys are the output contract shared with storage and rendering.
type Record struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	Subject      string   `json:"subject"`
	Author       string   `json:"author"`
	PresentedAt  string   `json:"presented_at,omitempty"`
	QualifiedAt  string   `json:"qualified_at,omitempty"`
	Status       string   `json:"status"`
	Result       string   `json:"result,omitempty"`
	Procedure    string   `json:"procedure,omitempty"`
	Committee    string   `json:"committee,omitempty"`
	Legislature  string   `json:"legislature,omitempty"`
	BulletinURLs []string `json:"bulletin_urls,omitempty"`
	Related      []string `json:"related,omitempty"`
	Origin       []string `json:"origin,omitempty"`
	Source       string   `json:"source,omitempty"`

	Timeline        []TimelineEvent  `json:"timeline"`
	DirectRelations []DirectRelation `json:"direct_relations"`
	Similar         []SimilarMatch   `json:"similar"`

	Stage       Stage        `json:"stage"`
	Step        int          `json:"step"`
	StageReason string       `json:"stage_reason"`
	Publication *Publication `json:"publication,omitempty"`
}

// StatusText returns the concatenated free-text status signals of the record.
func (r *Record) StatusText() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{r.Status, r.Result, r.Procedure} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// HasVerifiedPublication reports whether the record carries gazette metadata
// backed by a verified publication URL.
func (r *Record) HasVerifiedPublication() bool {
	return r.Publication != nil && r.Publication.Confidence == ConfidenceHigh
}

// TimelineEvent is one derived step of the procedural narrative.
type TimelineEvent struct {
	Event     string `json:"event"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date,omitempty"`
	Raw       string `json:"raw"`
}

// DirectRelation is a resolved explicit cross-reference.
type DirectRelation struct {
	Target  string `json:"target"`
	Subtype string `json:"subtype"`
}

// SimilarMatch is an accepted fuzzy-text match.
type SimilarMatch struct {
	Target string  `json:"target"`
	Score  float64 `json:"score"`
}
