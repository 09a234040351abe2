// Package memory keeps documents and chunks in process memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kenzatoreis/hiringbuddy/internal/store"
)

type entry struct {
	doc    store.Document
	seq    int64
	chunks []store.Chunk
}

// Store is safe for concurrent use. Each value is an independent corpus.
type Store struct {
	mu   sync.RWMutex
	seq  int64
	docs map[string]*entry
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		docs: make(map[string]*entry),
		now:  time.Now,
	}
}

func (s *Store) SaveDocument(_ context.Context, doc store.Document) (store.Document, error) {
	doc, err := store.PrepareDocument(doc, s.now())
	if err != nil {
		return store.Document{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[doc.ID]; exists {
		return store.Document{}, fmt.Errorf("save document %s: %w", doc.ID, store.ErrExists)
	}

	s.seq++
	s.docs[doc.ID] = &entry{doc: doc, seq: s.seq}
	return doc, nil
}

func (s *Store) SaveChunks(_ context.Context, documentID string, chunks []store.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.docs[documentID]
	if !ok {
		return fmt.Errorf("save chunks for %s: %w", documentID, store.ErrNotFound)
	}

	for _, ch := range chunks {
		ch.DocumentID = documentID
		ch.Vector = append([]float32(nil), ch.Vector...)
		e.chunks = append(e.chunks, ch)
	}
	return nil
}

func (s *Store) ListChunks(_ context.Context, documentID string) ([]store.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.docs[documentID]
	if !ok {
		return nil, fmt.Errorf("list chunks for %s: %w", documentID, store.ErrNotFound)
	}

	out := make([]store.Chunk, len(e.chunks))
	for i, ch := range e.chunks {
		ch.Vector = append([]float32(nil), ch.Vector...)
		out[i] = ch
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (s *Store) ListDocuments(_ context.Context, ownerID string, limit int) ([]store.Document, error) {
	entries := s.ownerEntries(ownerID)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	out := make([]store.Document, len(entries))
	for i, e := range entries {
		out[i] = e.doc
	}
	return out, nil
}

func (s *Store) GetDocument(_ context.Context, ownerID, documentID string) (store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.docs[documentID]
	if !ok || e.doc.OwnerID != ownerID {
		return store.Document{}, store.ErrNotFound
	}
	return e.doc, nil
}

func (s *Store) Summaries(_ context.Context, ownerID string) ([]store.DocumentSummary, error) {
	entries := s.ownerEntries(ownerID)

	out := make([]store.DocumentSummary, len(entries))
	for i, e := range entries {
		out[i] = store.DocumentSummary{
			ID:         e.doc.ID,
			Name:       e.doc.Name,
			CreatedAt:  e.doc.CreatedAt,
			ChunkCount: e.chunkCount,
		}
	}
	return out, nil
}

func (s *Store) DeleteDocument(_ context.Context, ownerID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.docs[documentID]
	if !ok || e.doc.OwnerID != ownerID {
		return store.ErrNotFound
	}
	delete(s.docs, documentID)
	return nil
}

func (s *Store) DeleteOwner(_ context.Context, ownerID string) (int, error) {
	if ownerID == "" {
		return 0, store.ErrOwnerMissing
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, e := range s.docs {
		if e.doc.OwnerID == ownerID {
			delete(s.docs, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) Close() error {
	return nil
}

type ownedEntry struct {
	doc        store.Document
	seq        int64
	chunkCount int
}

// ownerEntries snapshots owner's documents, newest first.
func (s *Store) ownerEntries(ownerID string) []ownedEntry {
	s.mu.RLock()
	out := make([]ownedEntry, 0)
	for _, e := range s.docs {
		if e.doc.OwnerID == ownerID {
			out = append(out, ownedEntry{doc: e.doc, seq: e.seq, chunkCount: len(e.chunks)})
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].doc.CreatedAt.Equal(out[j].doc.CreatedAt) {
			return out[i].doc.CreatedAt.After(out[j].doc.CreatedAt)
		}
		return out[i].seq > out[j].seq
	})
	return out
}
