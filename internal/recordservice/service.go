// Package recordservice is the domain layer shared by the HTTP API and the
// MCP server: read access to the last snapshot, batch triggering and export
// document intake.
package recordservice

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/starford/tramite/internal/apperr"
	"github.com/starford/tramite/internal/extract"
	"github.com/starford/tramite/internal/index"
	"github.com/starford/tramite/internal/models"
	"github.com/starford/tramite/internal/pipeline"
	"github.com/starford/tramite/internal/storage"
)

// Runner executes a pipeline batch.
type Runner interface {
	Run(ctx context.Context) (*pipeline.Report, error)
}

// RecordListItem is a lightweight item in a list response.
type RecordListItem = index.RecordRow

// Relations groups the edges touching one record.
type Relations struct {
	ID       string                    `json:"id"`
	Outgoing []models.RelationshipEdge `json:"outgoing"`
	Incoming []models.RelationshipEdge `json:"incoming"`
}

// DocumentInfo describes an accepted export document.
type DocumentInfo struct {
	Path    string `json:"path"`
	Size    int    `json:"size"`
	Entries int    `json:"entries"`
}

// Service coordinates index reads, batch runs and document intake.
type Service struct {
	db        index.RecordIndex
	runner    Runner
	docs      storage.Writer
	extractor *extract.Extractor

	// running guards against overlapping batch triggers.
	running sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithRunner enables RunBatch.
func WithRunner(r Runner) Option { return func(s *Service) { s.runner = r } }

// WithDocuments enables UploadDocument, validating uploads with ex.
func WithDocuments(w storage.Writer, ex *extract.Extractor) Option {
	return func(s *Service) { s.docs, s.extractor = w, ex }
}

// NewService creates a new record service.
func NewService(db index.RecordIndex, opts ...Option) *Service {
	s := &Service{db: db}
	for _, o := range opts {
		o(s)
	}
	return s
}

// GetRecord returns the full record with the given identifier.
func (s *Service) GetRecord(_ context.Context, id string) (*models.Record, error) {
	return s.db.GetRecord(id)
}

// ListRecords returns paginated records with an optional stage filter.
func (s *Service) ListRecords(_ context.Context, limit, offset int, stage string) ([]RecordListItem, int, error) {
	if stage != "" && !knownStage(stage) {
		return nil, 0, fmt.Errorf("stage %q: %w", stage, apperr.ErrInvalidEntry)
	}
	return s.db.ListRecords(limit, offset, stage)
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Graph returns all nodes and links for graph visualization.
func (s *Service) Graph(_ context.Context) ([]index.GraphNode, []index.GraphLink, error) {
	return s.db.Graph()
}

// History returns the stage transitions of a record, oldest first.
func (s *Service) History(ctx context.Context, id string) ([]models.StageHistoryEntry, error) {
	hist, err := s.db.History(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(hist) == 0 {
		// Distinguish an unknown record from one without transitions.
		if _, err := s.db.GetRecord(id); err != nil {
			return nil, err
		}
	}
	return hist, nil
}

// Relations returns the edges touching a record split by direction.
func (s *Service) Relations(_ context.Context, id string) (*Relations, error) {
	if _, err := s.db.GetRecord(id); err != nil {
		return nil, err
	}
	edges, err := s.db.Edges(id)
	if err != nil {
		return nil, err
	}
	rel := &Relations{
		ID:       id,
		Outgoing: []models.RelationshipEdge{},
		Incoming: []models.RelationshipEdge{},
	}
	for _, e := range edges {
		if e.Source == id {
			rel.Outgoing = append(rel.Outgoing, e)
		} else {
			rel.Incoming = append(rel.Incoming, e)
		}
	}
	return rel, nil
}

// RunBatch triggers a pipeline run. It fails with apperr.ErrConflict when a
// run triggered through this service is still in progress.
func (s *Service) RunBatch(ctx context.Context) (*pipeline.Report, error) {
	if s.runner == nil {
		return nil, fmt.Errorf("batch runner: %w", apperr.ErrNotFound)
	}
	if !s.running.TryLock() {
		return nil, fmt.Errorf("batch already running: %w", apperr.ErrConflict)
	}
	defer s.running.Unlock()
	return s.runner.Run(ctx)
}

// UploadDocument validates an export document and stores it under name in
// the documents directory. Documents that do not yield any record are
// rejected with apperr.ErrInvalidEntry.
func (s *Service) UploadDocument(_ context.Context, name string, data []byte) (*DocumentInfo, error) {
	if s.docs == nil {
		return nil, fmt.Errorf("document intake: %w", apperr.ErrNotFound)
	}
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") ||
		!strings.EqualFold(path.Ext(name), storage.DocumentExt) {
		return nil, fmt.Errorf("document name %q: %w", name, apperr.ErrInvalidEntry)
	}

	res, err := s.extractor.Extract(name, data)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, apperr.ErrInvalidEntry)
	}
	if len(res.Records) == 0 {
		return nil, fmt.Errorf("document %s has no valid entries: %w", name, apperr.ErrInvalidEntry)
	}
	if err := s.docs.Write(name, data); err != nil {
		return nil, err
	}
	return &DocumentInfo{Path: name, Size: len(data), Entries: len(res.Records)}, nil
}

func knownStage(s string) bool {
	switch models.Stage(s) {
	case models.StageProposed, models.StageDebating, models.StageCommittee, models.StageVoting,
		models.StagePassed, models.StagePublished, models.StageRejected, models.StageWithdrawn, models.StageClosed:
		return true
	}
	return false
}
