// Package store defines owner-scoped persistence for documents and their
// embedded chunks.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrExists       = errors.New("document already exists")
	ErrOwnerMissing = errors.New("owner id is required")
)

// Document is an uploaded text owned by a single user. It is immutable once
// saved.
type Document struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Text      string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Chunk is a span of a document's normalized text with its vector.
type Chunk struct {
	DocumentID string
	Index      int
	Text       string
	Vector     []float32
}

type DocumentSummary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	ChunkCount int       `json:"chunks"`
}

// Store persists documents and chunks. Deleting a document deletes its
// chunks. Listing is most recent first.
type Store interface {
	SaveDocument(ctx context.Context, doc Document) (Document, error)
	SaveChunks(ctx context.Context, documentID string, chunks []Chunk) error
	ListChunks(ctx context.Context, documentID string) ([]Chunk, error)
	// ListDocuments returns up to limit documents of owner; limit <= 0 means all.
	ListDocuments(ctx context.Context, ownerID string, limit int) ([]Document, error)
	GetDocument(ctx context.Context, ownerID, documentID string) (Document, error)
	Summaries(ctx context.Context, ownerID string) ([]DocumentSummary, error)
	DeleteDocument(ctx context.Context, ownerID, documentID string) error
	// DeleteOwner removes every document of owner and reports how many.
	DeleteOwner(ctx context.Context, ownerID string) (int, error)
	Close() error
}

// PrepareDocument validates doc and fills its ID and creation time.
func PrepareDocument(doc Document, now time.Time) (Document, error) {
	doc.OwnerID = strings.TrimSpace(doc.OwnerID)
	if doc.OwnerID == "" {
		return Document{}, ErrOwnerMissing
	}
	if doc.ID = strings.TrimSpace(doc.ID); doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.CreatedAt = doc.CreatedAt.UTC()
	return doc, nil
}
