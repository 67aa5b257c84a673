//go:build sqlite

package store

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSQLiteHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	h, err := NewHistory(ctx, "sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	want := sampleEntries()
	for _, e := range want {
		if err := h.Append(ctx, "run-1", e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	// Re-appending an epoch replaces it.
	updated := want[2]
	updated.BestFitness = -800
	if err := h.Append(ctx, "run-1", updated); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenSQLiteHistory(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.Entries(ctx, "run-1")
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[2].BestFitness != -800 {
		t.Errorf("expected upserted fitness -800, got %v", got[2].BestFitness)
	}
	if !got[0].Improved || got[2].Improved {
		t.Errorf("improved flags not preserved: %+v", got)
	}
	if !got[1].Timestamp.Equal(want[1].Timestamp) {
		t.Errorf("timestamp mismatch: %v vs %v", got[1].Timestamp, want[1].Timestamp)
	}
}

func TestSQLiteHistoryClosed(t *testing.T) {
	ctx := context.Background()
	h, err := OpenSQLiteHistory(ctx, filepath.Join(t.TempDir(), "h.db"))
	if err != nil {
		t.Fatal(err)
	}
	h.Close()
	if err := h.Append(ctx, "r", sampleEntries()[0]); err == nil {
		t.Fatal("expected error on closed history")
	}
}
