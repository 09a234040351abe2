// Package storetest holds behaviour checks shared by every store.Store
// implementation.
package storetest

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/kenzatoreis/hiringbuddy/internal/store"
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) store.Store

// Run exercises s against the store.Store contract.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("save assigns id and time", func(t *testing.T) {
		s := newStore(t)
		doc, err := s.SaveDocument(context.Background(), store.Document{OwnerID: "u1", Name: "cv.txt", Text: "I know Python."})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if doc.ID == "" || doc.CreatedAt.IsZero() {
			t.Fatalf("expected generated id and time, got %+v", doc)
		}

		got, err := s.GetDocument(context.Background(), "u1", doc.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Text != "I know Python." || got.Name != "cv.txt" {
			t.Fatalf("unexpected document %+v", got)
		}
	})

	t.Run("save requires owner", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.SaveDocument(context.Background(), store.Document{Text: "x"}); !errors.Is(err, store.ErrOwnerMissing) {
			t.Fatalf("expected ErrOwnerMissing, got %v", err)
		}
	})

	t.Run("save rejects duplicate id", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustSave(t, s, store.Document{ID: "doc-1", OwnerID: "u1", Text: "first"})

		for _, owner := range []string{"u1", "u2"} {
			if _, err := s.SaveDocument(ctx, store.Document{ID: "doc-1", OwnerID: owner, Text: "second"}); !errors.Is(err, store.ErrExists) {
				t.Fatalf("owner %s: expected ErrExists, got %v", owner, err)
			}
		}

		got, err := s.GetDocument(ctx, "u1", "doc-1")
		if err != nil || got.Text != "first" {
			t.Fatalf("expected original document to survive, got %+v, %v", got, err)
		}
	})

	t.Run("chunks round trip in order", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		doc := mustSave(t, s, store.Document{OwnerID: "u1", Text: "t"})

		chunks := []store.Chunk{
			{Index: 1, Text: "second", Vector: []float32{0, 1}},
			{Index: 0, Text: "first", Vector: []float32{1, 0}},
		}
		if err := s.SaveChunks(ctx, doc.ID, chunks); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := s.ListChunks(ctx, doc.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 || got[0].Text != "first" || got[1].Text != "second" {
			t.Fatalf("unexpected chunks %+v", got)
		}
		if got[0].DocumentID != doc.ID || !reflect.DeepEqual(got[0].Vector, []float32{1, 0}) {
			t.Fatalf("unexpected first chunk %+v", got[0])
		}

		if err := s.SaveChunks(ctx, "missing", chunks); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("list is scoped and most recent first", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

		old := mustSave(t, s, store.Document{OwnerID: "u1", Name: "old", CreatedAt: base})
		newer := mustSave(t, s, store.Document{OwnerID: "u1", Name: "new", CreatedAt: base.Add(time.Hour)})
		mustSave(t, s, store.Document{OwnerID: "u2", Name: "other", CreatedAt: base.Add(2 * time.Hour)})

		docs, err := s.ListDocuments(ctx, "u1", 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(docs) != 2 || docs[0].ID != newer.ID || docs[1].ID != old.ID {
			t.Fatalf("unexpected order %+v", docs)
		}

		limited, _ := s.ListDocuments(ctx, "u1", 1)
		if len(limited) != 1 || limited[0].ID != newer.ID {
			t.Fatalf("expected only the newest document, got %+v", limited)
		}

		if _, err := s.GetDocument(ctx, "u2", old.ID); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected other owner lookup to fail, got %v", err)
		}
	})

	t.Run("same timestamp keeps insertion recency", func(t *testing.T) {
		s := newStore(t)
		at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		first := mustSave(t, s, store.Document{OwnerID: "u1", CreatedAt: at})
		second := mustSave(t, s, store.Document{OwnerID: "u1", CreatedAt: at})

		docs, _ := s.ListDocuments(context.Background(), "u1", 0)
		if len(docs) != 2 || docs[0].ID != second.ID || docs[1].ID != first.ID {
			t.Fatalf("unexpected order %+v", docs)
		}
	})

	t.Run("delete cascades to chunks", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		doc := mustSave(t, s, store.Document{OwnerID: "u1", Text: "t"})
		if err := s.SaveChunks(ctx, doc.ID, []store.Chunk{{Index: 0, Text: "a", Vector: []float32{1}}}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if err := s.DeleteDocument(ctx, "u2", doc.ID); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected foreign owner delete to fail, got %v", err)
		}
		if err := s.DeleteDocument(ctx, "u1", doc.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := s.ListChunks(ctx, doc.ID); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected chunks to be gone, got %v", err)
		}
		if err := s.DeleteDocument(ctx, "u1", doc.ID); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected second delete to fail, got %v", err)
		}
	})

	t.Run("summaries and owner wipe", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a := mustSave(t, s, store.Document{OwnerID: "u1", Name: "a"})
		mustSave(t, s, store.Document{OwnerID: "u1", Name: "b"})
		mustSave(t, s, store.Document{OwnerID: "u2", Name: "c"})
		_ = s.SaveChunks(ctx, a.ID, []store.Chunk{{Index: 0, Text: "x"}, {Index: 1, Text: "y"}})

		sums, err := s.Summaries(ctx, "u1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(sums) != 2 {
			t.Fatalf("expected 2 summaries, got %d", len(sums))
		}
		counts := map[string]int{}
		for _, sum := range sums {
			counts[sum.Name] = sum.ChunkCount
		}
		if counts["a"] != 2 || counts["b"] != 0 {
			t.Fatalf("unexpected chunk counts %v", counts)
		}

		n, err := s.DeleteOwner(ctx, "u1")
		if err != nil || n != 2 {
			t.Fatalf("expected 2 deletions, got %d (%v)", n, err)
		}
		left, _ := s.ListDocuments(ctx, "u2", 0)
		if len(left) != 1 {
			t.Fatalf("expected other owner untouched, got %d documents", len(left))
		}
	})

	t.Run("concurrent writers on different documents", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				doc, err := s.SaveDocument(ctx, store.Document{OwnerID: "u1", Text: "t"})
				if err != nil {
					errs <- err
					return
				}
				errs <- s.SaveChunks(ctx, doc.ID, []store.Chunk{{Index: 0, Text: "a", Vector: []float32{1}}})
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		docs, _ := s.ListDocuments(ctx, "u1", 0)
		if len(docs) != 8 {
			t.Fatalf("expected 8 documents, got %d", len(docs))
		}
	})
}

func mustSave(t *testing.T, s store.Store, doc store.Document) store.Document {
	t.Helper()
	saved, err := s.SaveDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("save document: %v", err)
	}
	return saved
}
