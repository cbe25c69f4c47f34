package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"agroqc/internal/blob/core"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	meta := map[string]string{"summary": "dashboard"}
	info, err := s.Put(ctx, "exports/a.json", bytes.NewReader([]byte("hello")), core.PutOptions{ContentType: "application/json", Metadata: meta})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	meta["summary"] = "mutated"
	if info.Size != 5 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "exports/a.json", bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	head, err := s.Head(ctx, "exports/a.json")
	if err != nil || head.Metadata["summary"] != "dashboard" {
		t.Fatalf("metadata must be copied on put: %+v %v", head, err)
	}
	head.Metadata["summary"] = "changed"
	again, _ := s.Head(ctx, "exports/a.json")
	if again.Metadata["summary"] != "dashboard" {
		t.Fatalf("metadata must be copied on read")
	}

	_, rc, err := s.Get(ctx, "exports/a.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	if string(b) != "hello" {
		t.Fatalf("unexpected body %q", b)
	}

	if _, err := s.Put(ctx, "exports/b.csv", bytes.NewReader([]byte("x")), core.PutOptions{}); err != nil {
		t.Fatalf("put b: %v", err)
	}
	if _, err := s.Put(ctx, "tmp/c", bytes.NewReader([]byte("y")), core.PutOptions{}); err != nil {
		t.Fatalf("put c: %v", err)
	}
	list, _ := s.List(ctx, "exports/")
	if len(list) != 2 || list[0].Key != "exports/a.json" {
		t.Fatalf("unexpected list %+v", list)
	}
	all, _ := s.List(ctx, "")
	if len(all) != 3 {
		t.Fatalf("expected all blobs, got %d", len(all))
	}

	if ok, _ := s.Delete(ctx, "exports/a.json"); !ok {
		t.Fatalf("expected delete")
	}
	if ok, _ := s.Delete(ctx, "exports/a.json"); ok {
		t.Fatalf("second delete should report missing")
	}
	if _, _, err := s.Get(ctx, "exports/a.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreRejectsEmptyKeyAndPresign(t *testing.T) {
	s := New()
	if _, err := s.Put(context.Background(), " ", bytes.NewReader(nil), core.PutOptions{}); err == nil {
		t.Fatalf("expected empty key error")
	}
	if _, err := s.PresignURL(context.Background(), "k", core.SignedURLOptions{}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported, got %v", err)
	}
	if s.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver")
	}
}

func TestStoreHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Put(ctx, "k", bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
