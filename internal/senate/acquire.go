// Package senate acquires the external corpus of approved laws used by the
// resolver, from structured exports and best-effort page scrapes.
package senate

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/starford/tramite/internal/metrics"
	"github.com/starford/tramite/internal/models"
	"github.com/starford/tramite/internal/textnorm"
)

// DefaultMaxConcurrency bounds simultaneous source fetches.
const DefaultMaxConcurrency = 4

// Source yields approved-law records from one external location.
type Source interface {
	Name() string
	Kind() models.CorpusSource
	Fetch(ctx context.Context) ([]models.ExternalLawRecord, error)
}

// FetchResult reports the outcome of one source fetch.
type FetchResult struct {
	Source  string              `json:"source"`
	Kind    models.CorpusSource `json:"kind"`
	Records int                 `json:"records"`
	Error   string              `json:"error,omitempty"`
}

// Corpus is the merged external corpus plus per-source outcomes.
type Corpus struct {
	Laws    []models.ExternalLawRecord `json:"laws"`
	Fetches []FetchResult              `json:"fetches"`
}

// Failed returns the number of sources that could not be fetched.
func (c Corpus) Failed() int {
	n := 0
	for _, f := range c.Fetches {
		if f.Error != "" {
			n++
		}
	}
	return n
}

// Acquire fetches all sources with at most maxConcurrency in flight. A
// failing source is logged and skipped; it never fails the batch. Results
// are merged with structured exports taking precedence over scrapes, in
// source order, so the output is independent of fetch timing.
func Acquire(ctx context.Context, sources []Source, maxConcurrency int, logger *slog.Logger, m *metrics.Metrics) Corpus {
	if logger == nil {
		logger = slog.Default()
	}
	if maxConcurrency < 1 {
		maxConcurrency = DefaultMaxConcurrency
	}

	fetched := make([][]models.ExternalLawRecord, len(sources))
	results := make([]FetchResult, len(sources))

	var g errgroup.Group
	g.SetLimit(maxConcurrency)
	for i, src := range sources {
		g.Go(func() error {
			results[i] = FetchResult{Source: src.Name(), Kind: src.Kind()}
			if err := ctx.Err(); err != nil {
				results[i].Error = err.Error()
				return nil
			}
			laws, err := src.Fetch(ctx)
			if err != nil {
				results[i].Error = err.Error()
				m.SourceFetch(string(src.Kind()), "failed")
				logger.Warn("senate: source fetch failed",
					slog.String("source", src.Name()),
					slog.String("error", err.Error()),
				)
				return nil
			}
			for j := range laws {
				laws[j].Source = src.Kind()
			}
			fetched[i] = laws
			results[i].Records = len(laws)
			m.SourceFetch(string(src.Kind()), "ok")
			return nil
		})
	}
	_ = g.Wait()

	c := Corpus{Laws: Merge(sources, fetched), Fetches: results}
	logger.Info("senate: corpus acquired",
		slog.Int("sources", len(sources)),
		slog.Int("failed", c.Failed()),
		slog.Int("laws", len(c.Laws)),
	)
	return c
}

// Merge combines per-source results. Export sources are applied before
// scrape sources; a later record matching an earlier one by docket, law
// type and number, or normalized title only fills its empty fields.
func Merge(sources []Source, fetched [][]models.ExternalLawRecord) []models.ExternalLawRecord {
	var out []models.ExternalLawRecord
	seen := make(map[string]int)

	apply := func(kind models.CorpusSource) {
		for i, src := range sources {
			if src.Kind() != kind {
				continue
			}
			for _, law := range fetched[i] {
				keys := mergeKeys(law)
				pos, dup := -1, false
				for _, k := range keys {
					if p, ok := seen[k]; ok {
						pos, dup = p, true
						break
					}
				}
				if dup {
					fillEmpty(&out[pos], law)
				} else {
					pos = len(out)
					out = append(out, law)
				}
				for _, k := range mergeKeys(out[pos]) {
					if _, ok := seen[k]; !ok {
						seen[k] = pos
					}
				}
			}
		}
	}
	apply(models.CorpusExport)
	apply(models.CorpusScrape)
	return out
}

func mergeKeys(law models.ExternalLawRecord) []string {
	var keys []string
	if law.Docket != "" {
		keys = append(keys, "docket:"+law.Docket)
	}
	if law.LawNumber != "" {
		keys = append(keys, "number:"+textnorm.Normalize(law.LawType)+"|"+law.LawNumber)
	}
	if t := textnorm.Normalize(law.Title); t != "" {
		keys = append(keys, "title:"+t)
	}
	return keys
}

func fillEmpty(dst *models.ExternalLawRecord, src models.ExternalLawRecord) {
	for _, f := range []struct {
		dst *string
		src string
	}{
		{&dst.LawType, src.LawType},
		{&dst.LawNumber, src.LawNumber},
		{&dst.Title, src.Title},
		{&dst.Docket, src.Docket},
		{&dst.GazetteIssue, src.GazetteIssue},
		{&dst.GazetteDate, src.GazetteDate},
		{&dst.PublicationURL, src.PublicationURL},
	} {
		if *f.dst == "" {
			*f.dst = f.src
		}
	}
}
