package models

import "time"

// ConfidenceTier grades how certain a cross-source match is.
type ConfidenceTier string

const (
	ConfidenceHigh          ConfidenceTier = "high"
	ConfidenceMedium        ConfidenceTier = "medium"
	ConfidenceLow           ConfidenceTier = "low"
	ConfidenceNotIdentified ConfidenceTier = "not_identified"
)

// MatchMethod records which resolver rule produced a match.
type MatchMethod string

const (
	MatchDocketInSubject MatchMethod = "docket_in_subject"
	MatchIdentifier      MatchMethod = "identifier"
	MatchTitle           MatchMethod = "title_similarity"
)

// CorpusSource tells where an external law record came from.
type CorpusSource string

const (
	CorpusExport CorpusSource = "export"
	CorpusScrape CorpusSource = "scrape"
)

// ExternalLawRecord is an approved-law entry from the Senate corpus.
type ExternalLawRecord struct {
	LawType        string       `json:"law_type"`
	LawNumber      string       `json:"law_number"`
	Title          string       `json:"title"`
	Docket         string       `json:"docket,omitempty"`
	GazetteIssue   string       `json:"gazette_issue,omitempty"`
	GazetteDate    string       `json:"gazette_date,omitempty"`
	PublicationURL string       `json:"publication_url,omitempty"`
	Source         CorpusSource `json:"source"`
}

// Publication is the gazette metadata attached to a resolved record.
type Publication struct {
	LawType     string         `json:"law_type,omitempty"`
	LawNumber   string         `json:"law_number,omitempty"`
	Title       string         `json:"title,omitempty"`
	GazetteID   string         `json:"gazette_id,omitempty"`
	GazetteDate string         `json:"gazette_date,omitempty"`
	URL         string         `json:"url,omitempty"`
	Confidence  ConfidenceTier `json:"confidence"`
	Method      MatchMethod    `json:"method,omitempty"`
	MatchScore  float64        `json:"match_score,omitempty"`
}

// StageHistoryEntry is an immutable snapshot of a stage transition.
type StageHistoryEntry struct {
	ID         string    `json:"id"`
	RecordID   string    `json:"record_id"`
	Stage      Stage     `json:"stage"`
	Step       int       `json:"step"`
	Reason     string    `json:"reason"`
	RecordedAt time.Time `json:"recorded_at"`
}

// DocumentMetadata describes a raw export file on disk.
type DocumentMetadata struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
