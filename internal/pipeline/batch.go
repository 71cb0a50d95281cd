// Package pipeline runs the batch: extraction, relationship discovery,
// cross-source resolution, stage classification and persistence.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/tramite/internal/apperr"
	"github.com/starford/tramite/internal/checksum"
	"github.com/starford/tramite/internal/extract"
	"github.com/starford/tramite/internal/index"
	"github.com/starford/tramite/internal/metrics"
	"github.com/starford/tramite/internal/models"
	"github.com/starford/tramite/internal/recordstore"
	"github.com/starford/tramite/internal/resolver"
	"github.com/starford/tramite/internal/senate"
	"github.com/starford/tramite/internal/similarity"
	"github.com/starford/tramite/internal/sse"
	"github.com/starford/tramite/internal/stage"
	"github.com/starford/tramite/internal/storage"
)

// SnapshotStore persists the output of a run.
type SnapshotStore interface {
	ReplaceSnapshot(snap index.Snapshot) error
}

// Publisher receives live pipeline events.
type Publisher interface {
	PublishStageChange(change sse.StageChange)
	PublishBatch(summary any)
}

// Config configures a Batch.
type Config struct {
	Extract        extract.Config
	Similarity     similarity.Config
	Resolver       resolver.Config
	MaxConcurrency int
	// OutputPath, when set, is where the records JSON is written through
	// the output writer.
	OutputPath string
}

// Batch runs the pipeline over the documents of a provider. The similarity
// cache is kept across runs of the same Batch.
type Batch struct {
	cfg        Config
	docs       storage.Provider
	extractor  *extract.Extractor
	engine     *similarity.Engine
	resolver   *resolver.Resolver
	classifier *stage.Classifier
	sources    []senate.Source
	snapshots  SnapshotStore
	publisher  Publisher
	output     storage.Writer
	logger     *slog.Logger
	metrics    *metrics.Metrics
	history    stage.HistoryStore
	clock      func() time.Time

	// mu serializes runs; the similarity cache is not safe for concurrent use.
	mu sync.Mutex
}

// Option configures a Batch.
type Option func(*Batch)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(b *Batch) { b.logger = l } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option { return func(b *Batch) { b.metrics = m } }

// WithSources sets the external corpus sources.
func WithSources(src ...senate.Source) Option { return func(b *Batch) { b.sources = src } }

// WithSnapshotStore sets where snapshots are persisted.
func WithSnapshotStore(s SnapshotStore) Option { return func(b *Batch) { b.snapshots = s } }

// WithHistory sets the stage history store.
func WithHistory(h stage.HistoryStore) Option { return func(b *Batch) { b.history = h } }

// WithPublisher sets the live event publisher.
func WithPublisher(p Publisher) Option { return func(b *Batch) { b.publisher = p } }

// WithOutput sets the writer for Config.OutputPath.
func WithOutput(w storage.Writer) Option { return func(b *Batch) { b.output = w } }

// WithClock overrides the clock used for history timestamps and the report.
func WithClock(now func() time.Time) Option { return func(b *Batch) { b.clock = now } }

// New creates a Batch reading documents from docs.
func New(docs storage.Provider, cfg Config, opts ...Option) *Batch {
	b := &Batch{
		cfg:    cfg,
		docs:   docs,
		logger: slog.Default(),
		clock:  func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(b)
	}
	if cfg.Similarity == (similarity.Config{}) {
		cfg.Similarity = similarity.DefaultConfig()
	}
	if cfg.Resolver.TitleThreshold == 0 {
		cfg.Resolver = resolver.DefaultConfig()
	}
	b.cfg = cfg
	b.extractor = extract.New(cfg.Extract, b.logger)
	b.engine = similarity.NewEngine(cfg.Similarity, nil, b.logger, b.metrics)
	b.resolver = resolver.New(cfg.Resolver, b.logger, b.metrics)
	b.classifier = stage.New(b.history, b.logger, b.metrics, stage.WithClock(b.clock))
	return b
}

// Run executes one batch. Per-document, per-source and per-history
// failures are counted in the report; only listing the inputs or
// persisting the snapshot returns an error.
func (b *Batch) Run(ctx context.Context) (*Report, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rep := &Report{StartedAt: b.clock(), ByStage: make(map[string]int)}

	metas, err := b.docs.List("")
	if err != nil {
		return nil, fmt.Errorf("pipeline: list documents: %w", err)
	}
	rep.Documents = len(metas)
	rep.InputChecksum = inputChecksum(metas)

	store := recordstore.New()
	b.extractAll(metas, store, rep)
	records := store.All()
	rep.Records = len(records)

	var edges []models.RelationshipEdge
	sink := func(e models.RelationshipEdge) { edges = append(edges, e) }
	rep.DirectEdges = b.engine.DirectRelations(store, sink)
	rep.Similarity = b.engine.Similar(store, sink)

	var laws []models.ExternalLawRecord
	if len(b.sources) > 0 {
		corpus := senate.Acquire(ctx, b.sources, b.cfg.MaxConcurrency, b.logger, b.metrics)
		laws = corpus.Laws
		rep.SourcesFailed = corpus.Failed()
		rep.Errors += rep.SourcesFailed
	}
	rep.CorpusLaws = len(laws)
	res := b.resolver.Resolve(records, laws)
	rep.Resolved, rep.Unresolved = res.Matched(), res.Unmatched

	for _, rec := range records {
		result, changed := b.classifier.Apply(ctx, rec)
		rep.ByStage[string(result.Stage)]++
		if !changed {
			continue
		}
		rep.StageChanges++
		if b.publisher != nil {
			b.publisher.PublishStageChange(sse.StageChange{
				ID:     rec.ID,
				Stage:  string(result.Stage),
				Step:   result.Step,
				Reason: result.Reason,
			})
		}
	}

	if b.snapshots != nil {
		snap := index.Snapshot{Records: records, Edges: edges, Documents: metas}
		if err := b.snapshots.ReplaceSnapshot(snap); err != nil {
			return nil, fmt.Errorf("pipeline: persist snapshot: %w", err)
		}
	}
	if err := b.writeOutput(records); err != nil {
		rep.Errors++
		b.logger.Warn("pipeline: write output failed", slog.String("error", err.Error()))
	}

	rep.FinishedAt = b.clock()
	if b.publisher != nil {
		b.publisher.PublishBatch(rep)
	}
	b.logger.Info("pipeline: batch complete",
		slog.Int("documents", rep.Documents),
		slog.Int("records", rep.Records),
		slog.Int("edges", len(edges)),
		slog.Int("resolved", rep.Resolved),
		slog.Int("stage_changes", rep.StageChanges),
		slog.Int("errors", rep.Errors),
		slog.Duration("duration", rep.Duration()),
	)
	return rep, nil
}

// ChangeDetector reports whether documents differ from the last snapshot.
type ChangeDetector interface {
	Changed(metas []models.DocumentMetadata) (bool, error)
}

// RunIfChanged runs the batch only when the documents differ from what
// detector last recorded. ran reports whether a run happened.
func (b *Batch) RunIfChanged(ctx context.Context, detector ChangeDetector) (rep *Report, ran bool, err error) {
	metas, err := b.docs.List("")
	if err != nil {
		return nil, false, fmt.Errorf("pipeline: list documents: %w", err)
	}
	changed, err := detector.Changed(metas)
	if err != nil {
		b.logger.Warn("pipeline: change detection failed", slog.String("error", err.Error()))
		changed = true
	}
	if !changed {
		b.logger.Debug("pipeline: documents unchanged, skipping run")
		return nil, false, nil
	}
	rep, err = b.Run(ctx)
	return rep, err == nil, err
}

func (b *Batch) extractAll(metas []models.DocumentMetadata, store *recordstore.Store, rep *Report) {
	for _, m := range metas {
		data, err := b.docs.Read(m.Path)
		if err != nil {
			b.documentFailed(rep, m.Path, "read_failed", err)
			continue
		}
		res, err := b.extractor.Extract(m.Path, data)
		if err != nil {
			outcome := "failed"
			switch {
			case errors.Is(err, apperr.ErrDocumentTooLarge):
				outcome = "too_large"
			case errors.Is(err, apperr.ErrNoEntries):
				outcome = "no_entries"
			}
			b.documentFailed(rep, m.Path, outcome, err)
			continue
		}
		b.metrics.Document("parsed")

		rep.Entries += len(res.Records) + len(res.Rejections)
		rep.Rejected += len(res.Rejections)
		rep.Errors += len(res.Rejections)
		for _, rj := range res.Rejections {
			b.metrics.EntryRejected(rj.Reason)
		}
		for _, rec := range res.Records {
			if store.Upsert(rec) {
				rep.Merged++
				b.metrics.RecordMerged()
				b.logger.Debug("pipeline: duplicate identifier merged",
					slog.String("id", rec.ID),
					slog.String("document", m.Path))
			}
		}
	}
}

func (b *Batch) documentFailed(rep *Report, path, outcome string, err error) {
	rep.DocumentsFailed++
	rep.Errors++
	b.metrics.Document(outcome)
	b.logger.Warn("pipeline: document skipped",
		slog.String("document", path),
		slog.String("outcome", outcome),
		slog.String("error", err.Error()))
}

func inputChecksum(metas []models.DocumentMetadata) string {
	docs := make(map[string]string, len(metas))
	for _, m := range metas {
		docs[m.Path] = m.Checksum
	}
	return checksum.Set(docs)
}

func (b *Batch) writeOutput(records []*models.Record) error {
	if b.output == nil || b.cfg.OutputPath == "" {
		return nil
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	return b.output.Write(b.cfg.OutputPath, data)
}
