package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/tramite/internal/apperr"
	"github.com/starford/tramite/internal/models"
)

// Snapshot is the full output of one batch run.
type Snapshot struct {
	Records   []*models.Record
	Edges     []models.RelationshipEdge
	Documents []models.DocumentMetadata
}

// RecordRow is the summary projection used by listings.
type RecordRow struct {
	ID      string       `json:"id"`
	Type    string       `json:"type"`
	Subject string       `json:"subject"`
	Stage   models.Stage `json:"stage"`
	Step    int          `json:"step"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Snippet string `json:"snippet"`
}

// GraphNode is a record in the relationship graph.
type GraphNode struct {
	ID      string       `json:"id"`
	Subject string       `json:"subject"`
	Stage   models.Stage `json:"stage"`
}

// GraphLink is an edge in the relationship graph.
type GraphLink struct {
	Source  string   `json:"source"`
	Target  string   `json:"target"`
	Kind    string   `json:"kind"`
	Subtype string   `json:"subtype,omitempty"`
	Score   *float64 `json:"score,omitempty"`
}

// ReplaceSnapshot swaps the stored records, edges and document checksums for
// snap in one transaction. Stage history is not touched.
func (db *DB) ReplaceSnapshot(snap Snapshot) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	for _, table := range []string{"records", "edges", "documents"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("index: clear %s: %w", table, err)
		}
	}
	if err := ftsClear(tx); err != nil {
		return err
	}

	recStmt, err := tx.Prepare(`
		INSERT INTO records (id, type, subject, stage, step, search_text, payload, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("index: prepare record insert: %w", err)
	}
	defer recStmt.Close()

	for i, rec := range snap.Records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("index: encode record %s: %w", rec.ID, err)
		}
		body := searchBody(rec)
		if _, err := recStmt.Exec(rec.ID, rec.Type, rec.Subject, string(rec.Stage), rec.Step, body, string(payload), i); err != nil {
			return fmt.Errorf("index: insert record %s: %w", rec.ID, err)
		}
		if err := ftsInsert(tx, rec.ID, rec.Subject, body); err != nil {
			return err
		}
	}

	if len(snap.Edges) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO edges (source, target, kind, subtype, score) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare edge insert: %w", err)
		}
		defer stmt.Close()
		for _, e := range snap.Edges {
			if _, err := stmt.Exec(e.Source, e.Target, string(e.Kind), e.Subtype, e.Score); err != nil {
				return fmt.Errorf("index: insert edge: %w", err)
			}
		}
	}

	for _, d := range snap.Documents {
		_, err := tx.Exec(`INSERT INTO documents (path, size, checksum, updated_at) VALUES (?, ?, ?, ?)`,
			d.Path, d.Size, d.Checksum, d.UpdatedAt)
		if err != nil {
			return fmt.Errorf("index: insert document: %w", err)
		}
	}

	return tx.Commit()
}

func searchBody(rec *models.Record) string {
	return strings.Join([]string{rec.Subject, rec.Author, rec.StatusText(), rec.Committee}, "\n")
}

// GetRecord returns the stored record with the given identifier.
func (db *DB) GetRecord(id string) (*models.Record, error) {
	var payload string
	err := db.conn.QueryRow(`SELECT payload FROM records WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get record: %w", err)
	}
	var rec models.Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("index: decode record %s: %w", id, err)
	}
	return &rec, nil
}

// ListRecords returns a page of records in snapshot order and the total
// count. A non-empty stage filters by stage.
func (db *DB) ListRecords(limit, offset int, stage string) ([]RecordRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	where, args := "", []any{}
	if stage != "" {
		where, args = ` WHERE stage = ?`, append(args, stage)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM records`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count records: %w", err)
	}

	rows, err := db.conn.Query(`SELECT id, type, subject, stage, step FROM records`+where+` ORDER BY seq LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list records: %w", err)
	}
	defer rows.Close()

	out := []RecordRow{}
	for rows.Next() {
		var r RecordRow
		if err := rows.Scan(&r.ID, &r.Type, &r.Subject, &r.Stage, &r.Step); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// Edges returns every edge touching id, outgoing first.
func (db *DB) Edges(id string) ([]models.RelationshipEdge, error) {
	rows, err := db.conn.Query(`
		SELECT source, target, kind, subtype, score FROM edges
		WHERE source = ? OR target = ?
		ORDER BY source != ?, rowid
	`, id, id, id)
	if err != nil {
		return nil, fmt.Errorf("index: edges: %w", err)
	}
	defer rows.Close()

	out := []models.RelationshipEdge{}
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEdge(rows *sql.Rows) (models.RelationshipEdge, error) {
	var (
		e     models.RelationshipEdge
		kind  string
		score sql.NullFloat64
	)
	if err := rows.Scan(&e.Source, &e.Target, &kind, &e.Subtype, &score); err != nil {
		return e, err
	}
	e.Kind = models.EdgeKind(kind)
	if score.Valid {
		v := score.Float64
		e.Score = &v
	}
	return e, nil
}

// Graph returns all records and edges.
func (db *DB) Graph() ([]GraphNode, []GraphLink, error) {
	rows, err := db.conn.Query(`SELECT id, subject, stage FROM records ORDER BY seq`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph nodes: %w", err)
	}
	defer rows.Close()

	nodes := []GraphNode{}
	for rows.Next() {
		var n GraphNode
		if err := rows.Scan(&n.ID, &n.Subject, &n.Stage); err != nil {
			return nil, nil, err
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	erows, err := db.conn.Query(`SELECT source, target, kind, subtype, score FROM edges ORDER BY rowid`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph links: %w", err)
	}
	defer erows.Close()

	links := []GraphLink{}
	for erows.Next() {
		e, err := scanEdge(erows)
		if err != nil {
			return nil, nil, err
		}
		links = append(links, GraphLink{Source: e.Source, Target: e.Target, Kind: string(e.Kind), Subtype: e.Subtype, Score: e.Score})
	}
	return nodes, links, erows.Err()
}

// DocumentChecksums returns the checksum of every document in the last
// snapshot, keyed by path.
func (db *DB) DocumentChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: document checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}
