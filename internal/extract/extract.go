// Package extract turns raw parliamentary XML exports into typed records.
package extract

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/tramite/internal/apperr"
	"github.com/starford/tramite/internal/models"
)

// DefaultMaxDocumentBytes bounds a single export document.
const DefaultMaxDocumentBytes = 64 << 20

// Field aliases, in lookup order.
var (
	idKeys          = []string{"NUMEXPEDIENTE", "EXPEDIENTE", "NUM_EXPEDIENTE", "NUMERO_EXPEDIENTE", "ID"}
	typeKeys        = []string{"TIPO", "TIPOINICIATIVA", "TIPO_INICIATIVA"}
	subjectKeys     = []string{"OBJETO", "TITULO", "TITLE"}
	authorKeys      = []string{"AUTOR", "AUTORES"}
	presentedKeys   = []string{"FECHAPRESENTACION", "FECHA_PRESENTACION"}
	qualifiedKeys   = []string{"FECHACALIFICACION", "FECHA_CALIFICACION"}
	statusKeys      = []string{"SITUACIONACTUAL", "SITUACION_ACTUAL", "ESTADO"}
	resultKeys      = []string{"RESULTADOTRAMITACION", "RESULTADO_TRAMITACION"}
	procedureKeys   = []string{"TRAMITACIONSEGUIDA", "TRAMITACION_SEGUIDA", "TRAMITACION"}
	committeeKeys   = []string{"COMISIONCOMPETENTE", "COMISION_COMPETENTE"}
	legislatureKeys = []string{"LEGISLATURA"}
	bulletinKeys    = []string{"ENLACESBOCG", "ENLACES_BOCG"}
	relatedKeys     = []string{"INICIATIVASRELACIONADAS", "INICIATIVAS_RELACIONADAS"}
	originKeys      = []string{"INICIATIVASDEORIGEN", "INICIATIVAS_DE_ORIGEN"}
)

// Config configures an Extractor.
type Config struct {
	MaxDocumentBytes int64
	RootPaths        [][]string
	Timeline         TimelineParser
}

// Rejection records an entry discarded during extraction.
type Rejection struct {
	Document string `json:"document"`
	Index    int    `json:"index"`
	ID       string `json:"id,omitempty"`
	Reason   string `json:"reason"`
}

// Result is the outcome of extracting one document.
type Result struct {
	Document   string
	Path       []string
	Records    []*models.Record
	Rejections []Rejection
}

// Extractor parses export documents into records.
type Extractor struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an Extractor. Zero config fields take their defaults.
func New(cfg Config, logger *slog.Logger) *Extractor {
	if cfg.MaxDocumentBytes <= 0 {
		cfg.MaxDocumentBytes = DefaultMaxDocumentBytes
	}
	if len(cfg.RootPaths) == 0 {
		cfg.RootPaths = DefaultRootPaths
	}
	if cfg.Timeline == nil {
		cfg.Timeline = LineGrammar{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{cfg: cfg, logger: logger}
}

// Extract decodes data, probes it for an entry collection and builds one
// record per valid entry. Invalid entries are reported in Result.Rejections;
// only document-level failures return an error.
func (e *Extractor) Extract(name string, data []byte) (*Result, error) {
	if int64(len(data)) > e.cfg.MaxDocumentBytes {
		return nil, fmt.Errorf("extract: %s is %d bytes, limit %d: %w",
			name, len(data), e.cfg.MaxDocumentBytes, apperr.ErrDocumentTooLarge)
	}
	root, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("extract: %s: %w", name, err)
	}
	entries, path := Probe(root, e.cfg.RootPaths)
	if len(entries) == 0 {
		return nil, fmt.Errorf("extract: %s: root <%s>: %w", name, root.Name, apperr.ErrNoEntries)
	}

	res := &Result{Document: name, Path: path}
	for i, entry := range entries {
		rec := e.buildRecord(Fields(entry))
		rec.Source = name
		if reason := validate(rec); reason != "" {
			res.Rejections = append(res.Rejections, Rejection{
				Document: name,
				Index:    i,
				ID:       rec.ID,
				Reason:   reason,
			})
			e.logger.Warn("extract: entry rejected",
				slog.String("document", name),
				slog.Int("index", i),
				slog.String("id", rec.ID),
				slog.String("reason", reason))
			continue
		}
		res.Records = append(res.Records, rec)
	}
	e.logger.Debug("extract: document parsed",
		slog.String("document", name),
		slog.String("path", strings.Join(path, "/")),
		slog.Int("records", len(res.Records)),
		slog.Int("rejected", len(res.Rejections)))
	return res, nil
}

func (e *Extractor) buildRecord(fields map[string]string) *models.Record {
	procedure := Lookup(fields, procedureKeys...)
	rec := &models.Record{
		ID:           strings.TrimSpace(Lookup(fields, idKeys...)),
		Type:         Lookup(fields, typeKeys...),
		Subject:      collapseSpaces(Lookup(fields, subjectKeys...)),
		Author:       collapseSpaces(Lookup(fields, authorKeys...)),
		PresentedAt:  NormalizeDate(Lookup(fields, presentedKeys...)),
		QualifiedAt:  NormalizeDate(Lookup(fields, qualifiedKeys...)),
		Status:       collapseSpaces(Lookup(fields, statusKeys...)),
		Result:       collapseSpaces(Lookup(fields, resultKeys...)),
		Procedure:    procedure,
		Committee:    collapseSpaces(Lookup(fields, committeeKeys...)),
		Legislature:  Lookup(fields, legislatureKeys...),
		BulletinURLs: SplitReferences(Lookup(fields, bulletinKeys...)),
		Related:      SplitReferences(Lookup(fields, relatedKeys...)),
		Origin:       SplitReferences(Lookup(fields, originKeys...)),
	}
	rec.Timeline = e.cfg.Timeline.Parse(procedure)
	return rec
}

func validate(rec *models.Record) string {
	switch {
	case rec.ID == "":
		return "missing identifier"
	case rec.Subject == "":
		return "missing subject"
	}
	return ""
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
