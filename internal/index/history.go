package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/tramite/internal/models"
)

// LastStage returns the most recent history entry for recordID.
func (db *DB) LastStage(ctx context.Context, recordID string) (models.StageHistoryEntry, bool, error) {
	var e models.StageHistoryEntry
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, record_id, stage, step, reason, recorded_at
		FROM stage_history WHERE record_id = ?
		ORDER BY seq DESC LIMIT 1
	`, recordID).Scan(&e.ID, &e.RecordID, &e.Stage, &e.Step, &e.Reason, &e.RecordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return e, false, nil
	}
	if err != nil {
		return e, false, fmt.Errorf("index: last stage: %w", err)
	}
	return e, true, nil
}

// AppendStage adds an immutable history entry.
func (db *DB) AppendStage(ctx context.Context, e models.StageHistoryEntry) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO stage_history (id, record_id, stage, step, reason, recorded_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, (SELECT coalesce(max(seq), 0) + 1 FROM stage_history))
	`, e.ID, e.RecordID, string(e.Stage), e.Step, e.Reason, e.RecordedAt)
	if err != nil {
		return fmt.Errorf("index: append stage: %w", err)
	}
	return nil
}

// History returns every entry for recordID, oldest first.
func (db *DB) History(ctx context.Context, recordID string) ([]models.StageHistoryEntry, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, record_id, stage, step, reason, recorded_at
		FROM stage_history WHERE record_id = ?
		ORDER BY seq
	`, recordID)
	if err != nil {
		return nil, fmt.Errorf("index: history: %w", err)
	}
	defer rows.Close()

	out := []models.StageHistoryEntry{}
	for rows.Next() {
		var e models.StageHistoryEntry
		if err := rows.Scan(&e.ID, &e.RecordID, &e.Stage, &e.Step, &e.Reason, &e.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
