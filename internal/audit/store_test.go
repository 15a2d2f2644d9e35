package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nsrpetrol/pos-bridge/internal/payload"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "outcomes.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreInsertAndStats(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	tx := testTx()
	if err := store.Insert(ctx, tx, payload.CategoryStandardSale, true, 202, "queued"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.Insert(ctx, tx, payload.CategoryStandardSale, false, 500, "boom"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.Insert(ctx, tx, payload.CategoryRefund, true, 200, ""); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 3 || stats.Delivered != 2 || stats.Failed != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.ByCategory["standard-sale"] != 2 || stats.ByCategory["refund"] != 1 {
		t.Errorf("by category = %v", stats.ByCategory)
	}
}

func TestStoreStatsEmpty(t *testing.T) {
	store := testStore(t)

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 0 || stats.Delivered != 0 || stats.Failed != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if len(stats.ByCategory) != 0 {
		t.Errorf("by category = %v", stats.ByCategory)
	}
}
