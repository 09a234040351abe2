// Package indexer turns uploaded text into stored, embedded chunks.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kenzatoreis/hiringbuddy/internal/chunker"
	"github.com/kenzatoreis/hiringbuddy/internal/embedding"
	"github.com/kenzatoreis/hiringbuddy/internal/store"
	"go.uber.org/zap"
)

var ErrEmptyText = errors.New("document text is empty")

type IndexRequest struct {
	OwnerID string
	// DocumentID is optional; an ID is generated when empty.
	DocumentID string
	Name       string
	Text       string
	// MaxTokens and Overlap override the chunker defaults when positive.
	MaxTokens int
	Overlap   int
}

type IndexResult struct {
	DocumentID string           `json:"document_id"`
	ChunkCount int              `json:"chunk_count"`
	Fallbacks  int              `json:"fallbacks"`
	Strategy   chunker.Strategy `json:"strategy"`
}

// Embedder is satisfied by *embedding.Resilient.
type Embedder interface {
	EmbedOrFallback(ctx context.Context, text string) embedding.Result
}

type Indexer struct {
	embedder  Embedder
	store     store.Store
	maxTokens int
	overlap   int
	logger    *zap.Logger
}

// New returns an Indexer. Non-positive maxTokens or overlap fall back to the
// chunker defaults.
func New(embedder Embedder, st store.Store, maxTokens, overlap int, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		embedder:  embedder,
		store:     st,
		maxTokens: positiveOr(maxTokens, chunker.DefaultMaxTokens),
		overlap:   positiveOr(overlap, chunker.DefaultOverlap),
		logger:    logger,
	}
}

// Index chunks the text, embeds every chunk in order and stores the document
// with its chunks. A chunk whose embedding fails is stored with a zero vector
// and counted in Fallbacks. Nothing is stored when embedding is interrupted,
// and a document whose chunks cannot be saved is removed again.
func (i *Indexer) Index(ctx context.Context, req IndexRequest) (*IndexResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}
	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, store.ErrOwnerMissing
	}

	c, err := chunker.New(
		chunker.WithMaxTokens(positiveOr(req.MaxTokens, i.maxTokens)),
		chunker.WithOverlap(positiveOr(req.Overlap, i.overlap)),
	)
	if err != nil {
		return nil, fmt.Errorf("configure chunker: %w", err)
	}
	split := c.Split(req.Text)

	result := &IndexResult{Strategy: split.Strategy}
	chunks := make([]store.Chunk, 0, len(split.Chunks))
	for idx, text := range split.Chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		emb := i.embedder.EmbedOrFallback(ctx, text)
		if emb.Fallback {
			result.Fallbacks++
		}
		chunks = append(chunks, store.Chunk{
			Index:  idx,
			Text:   text,
			Vector: emb.Vector,
		})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := i.store.SaveDocument(ctx, store.Document{
		ID:      req.DocumentID,
		OwnerID: req.OwnerID,
		Name:    strings.TrimSpace(req.Name),
		Text:    req.Text,
	})
	if err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	result.DocumentID = doc.ID

	logger := i.logger.With(
		zap.String("owner", doc.OwnerID),
		zap.String("document", doc.ID),
		zap.String("strategy", string(split.Strategy)),
	)

	for idx := range chunks {
		chunks[idx].DocumentID = doc.ID
	}
	if err := i.store.SaveChunks(ctx, doc.ID, chunks); err != nil {
		if derr := i.store.DeleteDocument(context.WithoutCancel(ctx), doc.OwnerID, doc.ID); derr != nil {
			logger.Error("removing document after failed chunk save", zap.Error(derr))
		}
		return nil, fmt.Errorf("save chunks: %w", err)
	}
	result.ChunkCount = len(chunks)

	logger.Info("document indexed",
		zap.Int("chunks", result.ChunkCount),
		zap.Int("fallbacks", result.Fallbacks),
	)
	return result, nil
}

func positiveOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
