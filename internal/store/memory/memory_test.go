package memory

import (
	"context"
	"testing"

	"github.com/kenzatoreis/hiringbuddy/internal/store"
	"github.com/kenzatoreis/hiringbuddy/internal/store/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}

func TestStoresAreIndependent(t *testing.T) {
	a, b := New(), New()
	if _, err := a.SaveDocument(context.Background(), store.Document{OwnerID: "u1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	docs, _ := b.ListDocuments(context.Background(), "u1", 0)
	if len(docs) != 0 {
		t.Fatalf("expected empty store, got %d documents", len(docs))
	}
}

func TestListChunksReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	doc, _ := s.SaveDocument(ctx, store.Document{OwnerID: "u1"})
	_ = s.SaveChunks(ctx, doc.ID, []store.Chunk{{Index: 0, Text: "a", Vector: []float32{1, 2}}})

	got, _ := s.ListChunks(ctx, doc.ID)
	got[0].Vector[0] = 99

	again, _ := s.ListChunks(ctx, doc.ID)
	if again[0].Vector[0] != 1 {
		t.Fatalf("stored vector was mutated: %v", again[0].Vector)
	}
}

func TestDuplicateIDRejected(t *testing.T) {
	s := New()
	ctx := context.Background()
	if _, err := s.SaveDocument(ctx, store.Document{ID: "d1", OwnerID: "u1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.SaveDocument(ctx, store.Document{ID: "d1", OwnerID: "u1"}); err == nil {
		t.Fatal("expected duplicate id error")
	}
}
