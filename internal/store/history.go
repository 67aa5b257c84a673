package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// NewHistory opens an epoch history backend by name: "memory" (default) or
// "sqlite", which needs a binary built with -tags sqlite.
func NewHistory(ctx context.Context, kind, sqlitePath string) (History, error) {
	switch kind {
	case "", "memory":
		return NewMemoryHistory(), nil
	case "sqlite":
		return newSQLiteHistory(ctx, sqlitePath)
	default:
		return nil, fmt.Errorf("unsupported history backend: %s", kind)
	}
}

// MemoryHistory keeps entries in process memory.
type MemoryHistory struct {
	mu   sync.RWMutex
	runs map[string][]TraceEntry
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{runs: make(map[string][]TraceEntry)}
}

func (h *MemoryHistory) Append(_ context.Context, runID string, entry TraceEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs[runID] = append(h.runs[runID], entry)
	return nil
}

func (h *MemoryHistory) Entries(_ context.Context, runID string) ([]TraceEntry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.runs[runID]), nil
}

func (h *MemoryHistory) Close() error {
	return nil
}
