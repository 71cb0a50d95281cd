package senate

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/starford/tramite/internal/extract"
	"github.com/starford/tramite/internal/models"
)

// LawRootPaths lists the nesting shapes of Senate approved-law exports.
var LawRootPaths = [][]string{
	{"leyes", "ley"},
	{"results", "result"},
	{"data", "item"},
	{"root", "row"},
	{"response", "results", "result"},
}

var (
	lawTypeKeys   = []string{"TIPO", "TIPOLEY", "RANGO"}
	lawNumberKeys = []string{"NUMERO", "NUMEROLEY", "NUMLEY"}
	titleKeys     = []string{"TITULO", "TITULOLEY", "OBJETO"}
	docketKeys    = []string{"EXPEDIENTE", "NUMEXPEDIENTE", "EXPEDIENTECONGRESO"}
	issueKeys     = []string{"BOE", "NUMEROBOE", "DIARIO"}
	gazDateKeys   = []string{"FECHABOE", "FECHAPUBLICACION"}
	urlKeys       = []string{"URL", "URLBOE", "ENLACEBOE", "ENLACE"}
)

// ExportSource reads a structured XML export of approved laws from a URL or
// a local file.
type ExportSource struct {
	name     string
	location string
	client   *Client
}

// NewExportSource creates an export source. Locations starting with http://
// or https:// are fetched through client; anything else is read from disk.
func NewExportSource(location string, client *Client) *ExportSource {
	return &ExportSource{name: "export:" + location, location: location, client: client}
}

// Name implements Source.
func (s *ExportSource) Name() string { return s.name }

// Kind implements Source.
func (s *ExportSource) Kind() models.CorpusSource { return models.CorpusExport }

// Fetch implements Source.
func (s *ExportSource) Fetch(ctx context.Context) ([]models.ExternalLawRecord, error) {
	data, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return ParseExport(data)
}

func (s *ExportSource) read(ctx context.Context) ([]byte, error) {
	if isRemote(s.location) {
		if s.client == nil {
			return nil, fmt.Errorf("senate: %s: no http client", s.name)
		}
		return s.client.Get(ctx, s.location)
	}
	data, err := os.ReadFile(s.location)
	if err != nil {
		return nil, fmt.Errorf("senate: read export: %w", err)
	}
	return data, nil
}

// ParseExport decodes an approved-law XML export. Entries without a title
// and without a law number are skipped.
func ParseExport(data []byte) ([]models.ExternalLawRecord, error) {
	root, err := extract.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("senate: decode export: %w", err)
	}
	entries, _ := extract.Probe(root, LawRootPaths)
	if len(entries) == 0 {
		return nil, fmt.Errorf("senate: export has no law entries")
	}

	out := make([]models.ExternalLawRecord, 0, len(entries))
	for _, entry := range entries {
		f := extract.Fields(entry)
		law := models.ExternalLawRecord{
			LawType:        extract.Lookup(f, lawTypeKeys...),
			LawNumber:      extract.Lookup(f, lawNumberKeys...),
			Title:          collapse(extract.Lookup(f, titleKeys...)),
			Docket:         strings.Trim(extract.Lookup(f, docketKeys...), "() "),
			GazetteIssue:   extract.Lookup(f, issueKeys...),
			GazetteDate:    extract.NormalizeDate(extract.Lookup(f, gazDateKeys...)),
			PublicationURL: extract.Lookup(f, urlKeys...),
			Source:         models.CorpusExport,
		}
		if law.Title == "" && law.LawNumber == "" {
			continue
		}
		out = append(out, law)
	}
	return out, nil
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
