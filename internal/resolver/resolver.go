// Package resolver reconciles Congress records against the Senate corpus of
// approved laws and attaches gazette publication metadata.
package resolver

import (
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/starford/tramite/internal/metrics"
	"github.com/starford/tramite/internal/models"
	"github.com/starford/tramite/internal/textnorm"
)

// DefaultTitleThreshold is the minimum Jaccard score for a title match.
const DefaultTitleThreshold = 0.65

var (
	docketRe  = regexp.MustCompile(`\b(\d{3}/\d{6})\b`)
	gazetteRe = regexp.MustCompile(`BOE-[A-Z]-\d{4}-\d+`)
)

// Config configures a Resolver.
type Config struct {
	TitleThreshold float64
}

// DefaultConfig returns the resolver defaults.
func DefaultConfig() Config {
	return Config{TitleThreshold: DefaultTitleThreshold}
}

// Outcome is the resolution result for a single record.
type Outcome struct {
	RecordID   string                `json:"record_id"`
	Matched    bool                  `json:"matched"`
	Method     models.MatchMethod    `json:"method,omitempty"`
	Score      float64               `json:"score,omitempty"`
	Confidence models.ConfidenceTier `json:"confidence"`
	Docket     string                `json:"docket,omitempty"`
}

// Report summarises one resolution pass.
type Report struct {
	Records      int       `json:"records"`
	Corpus       int       `json:"corpus"`
	ByDocket     int       `json:"by_docket"`
	ByIdentifier int       `json:"by_identifier"`
	ByTitle      int       `json:"by_title"`
	Unmatched    int       `json:"unmatched"`
	Outcomes     []Outcome `json:"outcomes"`
}

// Matched returns the number of records that found a counterpart.
func (r Report) Matched() int {
	return r.ByDocket + r.ByIdentifier + r.ByTitle
}

// Resolver matches records to external law records.
type Resolver struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Resolver.
func New(cfg Config, logger *slog.Logger, m *metrics.Metrics) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{cfg: cfg, logger: logger, metrics: m}
}

type corpusIndex struct {
	laws     []models.ExternalLawRecord
	byDocket map[string]int
	titles   []map[string]struct{}
}

func newCorpusIndex(laws []models.ExternalLawRecord) *corpusIndex {
	idx := &corpusIndex{
		laws:     laws,
		byDocket: make(map[string]int, len(laws)),
		titles:   make([]map[string]struct{}, len(laws)),
	}
	for i, law := range laws {
		if d := canonicalDocket(law.Docket); d != "" {
			if _, ok := idx.byDocket[d]; !ok {
				idx.byDocket[d] = i
			}
		}
		idx.titles[i] = tokenSet(law.Title)
	}
	return idx
}

// Resolve augments records in place with publication metadata from corpus.
// Matching precedence per record: docket found in the subject, then the
// record identifier, then title token overlap. Unmatched records are left
// untouched and reported as not_identified.
func (r *Resolver) Resolve(records []*models.Record, corpus []models.ExternalLawRecord) Report {
	idx := newCorpusIndex(corpus)
	rep := Report{
		Records:  len(records),
		Corpus:   len(corpus),
		Outcomes: make([]Outcome, 0, len(records)),
	}

	for _, rec := range records {
		out := r.resolveOne(idx, rec)
		switch out.Method {
		case models.MatchDocketInSubject:
			rep.ByDocket++
		case models.MatchIdentifier:
			rep.ByIdentifier++
		case models.MatchTitle:
			rep.ByTitle++
		default:
			rep.Unmatched++
		}
		r.metrics.Resolution(string(out.Confidence), string(out.Method))
		rep.Outcomes = append(rep.Outcomes, out)
	}

	r.logger.Info("resolver: pass complete",
		slog.Int("records", rep.Records),
		slog.Int("corpus", rep.Corpus),
		slog.Int("matched", rep.Matched()),
		slog.Int("unmatched", rep.Unmatched),
	)
	return rep
}

func (r *Resolver) resolveOne(idx *corpusIndex, rec *models.Record) Outcome {
	out := Outcome{RecordID: rec.ID, Confidence: models.ConfidenceNotIdentified}
	if rec.Publication != nil && rec.Publication.Confidence != "" {
		out.Confidence = rec.Publication.Confidence
	}

	pos, method, score := r.match(idx, rec)
	if pos < 0 {
		return out
	}
	law := idx.laws[pos]
	augment(rec, law, method, score)

	out.Matched = true
	out.Method = method
	out.Score = score
	out.Confidence = rec.Publication.Confidence
	out.Docket = law.Docket
	r.logger.Debug("resolver: matched",
		slog.String("id", rec.ID),
		slog.String("method", string(method)),
		slog.String("law", law.LawType+" "+law.LawNumber),
	)
	return out
}

func (r *Resolver) match(idx *corpusIndex, rec *models.Record) (int, models.MatchMethod, float64) {
	for _, m := range docketRe.FindAllStringSubmatch(rec.Subject, -1) {
		if pos, ok := idx.byDocket[m[1]]; ok {
			return pos, models.MatchDocketInSubject, 1
		}
	}
	if pos, ok := idx.byDocket[canonicalDocket(rec.ID)]; ok {
		return pos, models.MatchIdentifier, 1
	}

	title := tokenSet(rec.Subject)
	if len(title) == 0 {
		return -1, "", 0
	}
	best, bestScore := -1, 0.0
	for i, candidate := range idx.titles {
		// Strict comparison keeps the earliest corpus entry on ties.
		if s := Jaccard(title, candidate); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 || bestScore < r.cfg.TitleThreshold {
		return -1, "", 0
	}
	return best, models.MatchTitle, bestScore
}

// augment fills empty publication fields only.
func augment(rec *models.Record, law models.ExternalLawRecord, method models.MatchMethod, score float64) {
	if rec.Publication == nil {
		rec.Publication = &models.Publication{}
	}
	p := rec.Publication
	setIfEmpty(&p.LawType, law.LawType)
	setIfEmpty(&p.LawNumber, law.LawNumber)
	setIfEmpty(&p.Title, law.Title)
	setIfEmpty(&p.GazetteID, GazetteID(law))
	setIfEmpty(&p.GazetteDate, law.GazetteDate)
	setIfEmpty(&p.URL, law.PublicationURL)
	if p.Method == "" {
		p.Method = method
		p.MatchScore = score
	}
	if p.Confidence == "" || p.Confidence == models.ConfidenceNotIdentified {
		p.Confidence = Tier(p.URL, p.GazetteDate)
	}
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

// Tier grades a publication: high with a verified publication URL, medium
// with only a publication date, low otherwise.
func Tier(publicationURL, gazetteDate string) models.ConfidenceTier {
	switch {
	case verifiedURL(publicationURL):
		return models.ConfidenceHigh
	case strings.TrimSpace(gazetteDate) != "":
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

func verifiedURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// GazetteID extracts the official gazette identifier from the law's
// publication URL, falling back to its issue field.
func GazetteID(law models.ExternalLawRecord) string {
	if id := gazetteRe.FindString(law.PublicationURL); id != "" {
		return id
	}
	return gazetteRe.FindString(law.GazetteIssue)
}

// ExtractDocket returns the first docket-shaped token in s.
func ExtractDocket(s string) string {
	if m := docketRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

func canonicalDocket(s string) string {
	return strings.Trim(strings.TrimSpace(s), "()")
}

func tokenSet(s string) map[string]struct{} {
	words := textnorm.WordTokens(s)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Jaccard returns |a ∩ b| / |a ∪ b|. Two empty sets score 0.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}
