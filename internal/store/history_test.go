package store

import (
	"context"
	"strings"
	"testing"
)

func TestNewHistoryMemory(t *testing.T) {
	ctx := context.Background()
	h, err := NewHistory(ctx, "", "")
	if err != nil {
		t.Fatalf("new memory history: %v", err)
	}
	defer h.Close()

	for _, e := range sampleEntries() {
		if err := h.Append(ctx, "run-1", e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := h.Append(ctx, "run-2", sampleEntries()[0]); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := h.Entries(ctx, "run-1")
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(got) != 3 || got[2].Epoch != 2 {
		t.Fatalf("unexpected entries: %+v", got)
	}

	// Returned slices are copies.
	got[0].Epoch = 42
	again, _ := h.Entries(ctx, "run-1")
	if again[0].Epoch != 0 {
		t.Error("history was modified through a returned slice")
	}

	none, err := h.Entries(ctx, "unknown")
	if err != nil || len(none) != 0 {
		t.Errorf("unknown run: got %v, %v", none, err)
	}
}

func TestNewHistoryUnsupported(t *testing.T) {
	_, err := NewHistory(context.Background(), "postgres", "")
	if err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("expected unsupported backend error, got %v", err)
	}
}
