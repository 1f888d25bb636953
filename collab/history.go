package collab

import (
	"sync"

	"github.com/javajack/gridsync"
)

// HistoryEntry records one successful write to a cell.
type HistoryEntry struct {
	CellRef   string         `json:"cellRef"`
	OldValue  gridsync.Value `json:"oldValue"`
	NewValue  gridsync.Value `json:"newValue"`
	UserID    string         `json:"userId"`
	Timestamp float64        `json:"timestamp"`
}

// HistoryLog is an append-only in-memory edit log per sheet and cell.
type HistoryLog struct {
	opts *Options

	mu      sync.RWMutex
	entries map[cellKey][]HistoryEntry
}

// NewHistoryLog creates an empty log.
func NewHistoryLog(opts ...Option) *HistoryLog {
	return &HistoryLog{
		opts:    buildOptions(opts),
		entries: make(map[cellKey][]HistoryEntry),
	}
}

// Record appends a write of cellRef from oldValue to newValue.
func (h *HistoryLog) Record(sheetID, cellRef string, oldValue, newValue gridsync.Value, userID string) {
	e := HistoryEntry{
		CellRef:   cellRef,
		OldValue:  oldValue,
		NewValue:  newValue,
		UserID:    userID,
		Timestamp: Timestamp(h.opts.now()),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	key := cellKey{sheetID, cellRef}
	h.entries[key] = append(h.entries[key], e)
}

// List returns the writes to cellRef, oldest first.
func (h *HistoryLog) List(sheetID, cellRef string) []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	src := h.entries[cellKey{sheetID, cellRef}]
	out := make([]HistoryEntry, len(src))
	copy(out, src)
	return out
}
