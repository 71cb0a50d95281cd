package stage

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starford/tramite/internal/metrics"
	"github.com/starford/tramite/internal/models"
)

// HistoryStore persists stage transitions. Entries are append-only.
type HistoryStore interface {
	// LastStage returns the most recent entry for recordID; ok is false when
	// the record has no history.
	LastStage(ctx context.Context, recordID string) (entry models.StageHistoryEntry, ok bool, err error)
	AppendStage(ctx context.Context, entry models.StageHistoryEntry) error
}

// Classifier assigns stages and records transitions.
type Classifier struct {
	rules   []Rule
	history HistoryStore
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithClock overrides the history timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) { c.now = now }
}

// WithIDs overrides history entry ID generation.
func WithIDs(newID func() string) Option {
	return func(c *Classifier) { c.newID = newID }
}

// WithRules replaces the default rule list.
func WithRules(rules []Rule) Option {
	return func(c *Classifier) { c.rules = rules }
}

// New creates a Classifier. A nil history disables transition tracking.
func New(history HistoryStore, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Classifier{
		rules:   Rules,
		history: history,
		logger:  logger,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Classify computes the stage of rec without side effects.
func (c *Classifier) Classify(rec *models.Record) Result {
	return Evaluate(c.rules, NewInput(rec))
}

// Apply classifies rec, writes the stage fields and appends a history entry
// when (stage, step) differs from the last recorded one. History failures
// are logged and never fail the classification. changed reports whether an
// entry was appended.
func (c *Classifier) Apply(ctx context.Context, rec *models.Record) (res Result, changed bool) {
	res = c.Classify(rec)
	rec.Stage, rec.Step, rec.StageReason = res.Stage, res.Step, res.Reason

	if c.history == nil {
		return res, false
	}
	last, ok, err := c.history.LastStage(ctx, rec.ID)
	if err != nil {
		c.historyFailed(rec.ID, "lookup", err)
		return res, false
	}
	if ok && last.Stage == res.Stage && last.Step == res.Step {
		return res, false
	}

	entry := models.StageHistoryEntry{
		ID:         c.newID(),
		RecordID:   rec.ID,
		Stage:      res.Stage,
		Step:       res.Step,
		Reason:     res.Reason,
		RecordedAt: c.now(),
	}
	if err := c.history.AppendStage(ctx, entry); err != nil {
		c.historyFailed(rec.ID, "append", err)
		return res, false
	}
	c.metrics.StageTransition(string(res.Stage))
	c.logger.Debug("stage: transition recorded",
		slog.String("id", rec.ID),
		slog.String("stage", string(res.Stage)),
		slog.Int("step", res.Step),
	)
	return res, true
}

func (c *Classifier) historyFailed(id, op string, err error) {
	c.metrics.HistoryFailure()
	c.logger.Warn("stage: history "+op+" failed",
		slog.String("id", id),
		slog.String("error", err.Error()),
	)
}
