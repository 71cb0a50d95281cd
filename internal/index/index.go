package index

import (
	"context"

	"github.com/starford/tramite/internal/models"
	"github.com/starford/tramite/internal/stage"
)

// RecordIndex defines the read and write operations over persisted
// snapshots. Consumers should depend on this interface rather than *DB.
type RecordIndex interface {
	ReplaceSnapshot(snap Snapshot) error
	GetRecord(id string) (*models.Record, error)
	ListRecords(limit, offset int, stage string) ([]RecordRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Edges(id string) ([]models.RelationshipEdge, error)
	Graph() ([]GraphNode, []GraphLink, error)
	History(ctx context.Context, id string) ([]models.StageHistoryEntry, error)
	DocumentChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies the interfaces at compile time.
var (
	_ RecordIndex        = (*DB)(nil)
	_ stage.HistoryStore = (*DB)(nil)
)
