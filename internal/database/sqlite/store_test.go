package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database/storetest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "attendance.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, openTestStore(t))
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendance.db")
	ctx := context.Background()

	store, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.RegisterFace(ctx, "nobody", []float32{1}); err == nil {
		t.Error("expected error for unknown student")
	}
	_ = store.Close()

	// second open must not re-run migrations
	again, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = again.Close()
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestEmbeddingRoundTrip(t *testing.T) {
	in := []float32{0.25, -1.5, 3.125, 0}
	out, err := decodeEmbedding(encodeEmbedding(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}

	if v, err := decodeEmbedding(nil); err != nil || v != nil {
		t.Errorf("nil blob = %v, %v", v, err)
	}
	if _, err := decodeEmbedding([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}
