package core

import (
	"context"
	"path/filepath"
	"testing"

	"agroqc/internal/infra/persistence/memory"
	"agroqc/internal/infra/persistence/sqlite"
)

func TestOpenPersistentStoreMemory(t *testing.T) {
	store, err := OpenPersistentStore(context.Background(), StorageConfig{Driver: StorageMemory}, NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
}

func TestOpenPersistentStoreDefaultsToSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "agroqc.db")
	store, err := OpenPersistentStore(ctx, StorageConfig{SQLitePath: path}, NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	if _, ok := store.(*sqlite.Store); !ok {
		t.Fatalf("expected sqlite store, got %T", store)
	}

	svc := NewService(store)
	product, batch := mustProductAndBatch(t, svc)
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenPersistentStore(ctx, StorageConfig{Driver: StorageSQLite, SQLitePath: path}, NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("reopen sqlite store: %v", err)
	}
	svc = NewService(reopened)
	t.Cleanup(func() { _ = svc.Close() })
	got, err := svc.GetBatch(ctx, batch.Code)
	if err != nil {
		t.Fatalf("batch should survive reopen: %v", err)
	}
	if got.ProductCode != product.Code || !got.QuantityKg.Equal(batch.QuantityKg) {
		t.Fatalf("unexpected reloaded batch %+v", got)
	}
	if len(svc.Rules()) != 6 {
		t.Fatalf("reopened store should carry the rules engine, got %v", svc.Rules())
	}
}

func TestOpenPersistentStoreUnknownDriver(t *testing.T) {
	store, err := OpenPersistentStore(context.Background(), StorageConfig{Driver: "oracle"}, NewRulesEngine())
	if err == nil || store != nil {
		t.Fatalf("expected error and nil store for unknown driver, got %v %v", store, err)
	}
}
