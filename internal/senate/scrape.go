package senate

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/starford/tramite/internal/extract"
	"github.com/starford/tramite/internal/models"
)

// DefaultRowSelector matches one approved law per table row.
const DefaultRowSelector = "table tr"

var (
	lawHeadRe = regexp.MustCompile(`(?i)^\s*(ley(?:\s+org[aá]nica)?|real\s+decreto(?:-ley|\s+legislativo)?)\s+(\d+/\d{4})`)
	dateRe    = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`)
	docketRe  = regexp.MustCompile(`\b\d{3}/\d{6}\b`)
)

// ScrapeSource extracts approved laws from an HTML listing page. It is a
// best-effort fallback for when no structured export is available.
type ScrapeSource struct {
	pageURL  string
	selector string
	client   *Client
}

// NewScrapeSource creates a scrape source. An empty selector uses
// DefaultRowSelector.
func NewScrapeSource(pageURL, selector string, client *Client) *ScrapeSource {
	if selector == "" {
		selector = DefaultRowSelector
	}
	return &ScrapeSource{pageURL: pageURL, selector: selector, client: client}
}

// Name implements Source.
func (s *ScrapeSource) Name() string { return "scrape:" + s.pageURL }

// Kind implements Source.
func (s *ScrapeSource) Kind() models.CorpusSource { return models.CorpusScrape }

// Fetch implements Source.
func (s *ScrapeSource) Fetch(ctx context.Context) ([]models.ExternalLawRecord, error) {
	body, err := s.client.Get(ctx, s.pageURL)
	if err != nil {
		return nil, err
	}
	return ParseListing(body, s.pageURL, s.selector)
}

// ParseListing reads law rows from an HTML page. A row qualifies when its
// text starts with a law type and number such as "Ley 7/2021". Relative
// links are resolved against pageURL.
func ParseListing(body []byte, pageURL, selector string) ([]models.ExternalLawRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("senate: parse listing: %w", err)
	}
	base, _ := url.Parse(pageURL)

	var out []models.ExternalLawRecord
	doc.Find(selector).Each(func(_ int, row *goquery.Selection) {
		text := collapse(row.Text())
		m := lawHeadRe.FindStringSubmatch(text)
		if m == nil {
			return
		}
		law := models.ExternalLawRecord{
			LawType:   normalizeLawType(m[1]),
			LawNumber: m[2],
			Title:     scrapedTitle(row, text),
			Docket:    docketRe.FindString(text),
			Source:    models.CorpusScrape,
		}
		if d := dateRe.FindString(text); d != "" {
			law.GazetteDate = extract.NormalizeDate(d)
		}
		row.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			if u := absolute(base, href); strings.Contains(strings.ToLower(u), "boe") {
				law.PublicationURL = u
				return false
			}
			return true
		})
		out = append(out, law)
	})
	return out, nil
}

// scrapedTitle prefers the first cell or link that reads as a full law
// title, falling back to the whole row text.
func scrapedTitle(row *goquery.Selection, rowText string) string {
	title := rowText
	row.Find("td, a").EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		t := collapse(cell.Text())
		if len(t) > len(lawHeadRe.FindString(t))+10 {
			title = t
			return false
		}
		return true
	})
	return title
}

func normalizeLawType(s string) string {
	s = collapse(s)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

func absolute(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
