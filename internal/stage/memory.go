package stage

import (
	"context"
	"sync"

	"github.com/starford/tramite/internal/models"
)

// MemoryHistory is an in-process HistoryStore.
type MemoryHistory struct {
	mu      sync.RWMutex
	entries map[string][]models.StageHistoryEntry
}

// NewMemoryHistory creates an empty MemoryHistory.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{entries: make(map[string][]models.StageHistoryEntry)}
}

// LastStage implements HistoryStore.
func (h *MemoryHistory) LastStage(_ context.Context, recordID string) (models.StageHistoryEntry, bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	list := h.entries[recordID]
	if len(list) == 0 {
		return models.StageHistoryEntry{}, false, nil
	}
	return list[len(list)-1], true, nil
}

// AppendStage implements HistoryStore.
func (h *MemoryHistory) AppendStage(_ context.Context, entry models.StageHistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[entry.RecordID] = append(h.entries[entry.RecordID], entry)
	return nil
}

// History returns a copy of the entries for recordID, oldest first.
func (h *MemoryHistory) History(recordID string) []models.StageHistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]models.StageHistoryEntry(nil), h.entries[recordID]...)
}
