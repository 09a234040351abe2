// Package retrieval ranks an owner's documents against a requirement and
// selects the best snippets of each.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kenzatoreis/hiringbuddy/internal/embedding"
	"github.com/kenzatoreis/hiringbuddy/internal/filtering"
	"github.com/kenzatoreis/hiringbuddy/internal/scoring"
	"github.com/kenzatoreis/hiringbuddy/internal/sections"
	"github.com/kenzatoreis/hiringbuddy/internal/store"
	"github.com/kenzatoreis/hiringbuddy/internal/utils"
	"go.uber.org/zap"
)

const (
	DefaultTopKDocuments = 2
	DefaultTopKSnippets  = 3
)

var ErrEmptyRequirement = errors.New("requirement is empty")

// Scope selects which of the owner's documents are candidates.
type Scope string

const (
	// ScopeLatestOnly considers only the most recently indexed document.
	ScopeLatestOnly Scope = "latest"
	// ScopeAll considers every document, optionally capped by Request.Limit.
	ScopeAll Scope = "all"
)

// Request describes a single retrieval.
type Request struct {
	OwnerID       string
	Requirement   string
	TopKDocuments int
	TopKSnippets  int
	// Sections appends the skills and experience blocks of each document to
	// its snippets.
	Sections bool
	Scope    Scope
	Limit    int
	// ExcludeIDs lists documents that must not be considered.
	ExcludeIDs []string
	// DocumentText, when longer than the stored text, is used for section
	// extraction instead. It only applies when a single candidate remains.
	DocumentText string
	// DisableFilters names candidate filters to skip.
	DisableFilters []string
}

// ScoredChunk is a chunk paired with its score for one query.
type ScoredChunk struct {
	Index int
	Text  string
	Score float64
}

type DocumentResult struct {
	DocumentID   string   `json:"document_id"`
	DocumentName string   `json:"document_name"`
	BestScore    float64  `json:"best_score"`
	Snippets     []string `json:"snippets"`
}

type Result struct {
	Results []DocumentResult   `json:"results"`
	Filters []filtering.Status `json:"filters,omitempty"`
}

// Retriever embeds a requirement once and ranks candidate documents.
type Retriever struct {
	gateway embedding.Gateway
	store   store.Store
	scorer  *scoring.Scorer
	locator sections.Locator
	logger  *zap.Logger
}

// New returns a Retriever. A nil locator uses the default heading set.
func New(gateway embedding.Gateway, st store.Store, scorer *scoring.Scorer, locator sections.Locator, logger *zap.Logger) (*Retriever, error) {
	if gateway == nil {
		return nil, errors.New("embedding gateway is required")
	}
	if st == nil {
		return nil, errors.New("store is required")
	}
	if scorer == nil {
		var err error
		if scorer, err = scoring.New(scoring.DefaultWeights()); err != nil {
			return nil, err
		}
	}
	if locator == nil {
		locator = sections.NewHeadingLocator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Retriever{
		gateway: gateway,
		store:   st,
		scorer:  scorer,
		locator: locator,
		logger:  logger,
	}, nil
}

// Filters builds the candidate pipeline for req.
func (req Request) Filters() []filtering.Filter {
	perOwner := 0
	limit := req.Limit
	if req.Scope == "" || req.Scope == ScopeLatestOnly {
		perOwner = 1
		limit = 0
	}
	steps := []filtering.Filter{
		filtering.NewExclude(req.ExcludeIDs),
		filtering.NewLatestPerOwner(perOwner),
		filtering.NewLimit(limit),
	}
	for _, name := range req.DisableFilters {
		filtering.DisableByName(steps, strings.TrimSpace(name), "disabled by request")
	}
	return steps
}

// Retrieve returns up to TopKDocuments documents ordered by their best chunk
// score. Documents with equal scores keep recency order.
func (r *Retriever) Retrieve(ctx context.Context, req Request) (*Result, error) {
	requirement := strings.TrimSpace(req.Requirement)
	if requirement == "" {
		return nil, ErrEmptyRequirement
	}
	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, store.ErrOwnerMissing
	}
	topDocs := positiveOr(req.TopKDocuments, DefaultTopKDocuments)
	topSnippets := positiveOr(req.TopKSnippets, DefaultTopKSnippets)

	query, err := r.gateway.Embed(embedding.WithPurpose(ctx, embedding.PurposeQuery), requirement)
	if err != nil {
		return nil, fmt.Errorf("embed requirement: %w", err)
	}
	keywords := scoring.Keywords(requirement)

	docs, err := r.store.ListDocuments(ctx, req.OwnerID, 0)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	steps := req.Filters()
	candidates, err := filtering.Run(ctx, r.logger, steps, docs)
	if err != nil {
		return nil, fmt.Errorf("filter candidates: %w", err)
	}
	statuses := filtering.Describe(steps)

	logger := r.logger.With(
		zap.String("owner", req.OwnerID),
		zap.String("requirement", utils.TruncateForLog(requirement, 80)),
		zap.Int("keywords", len(keywords)),
	)
	logger.Debug("candidate filters", zap.Any("filters", statuses))

	// Supplied text belongs to one resume and must not leak into others.
	supplied := req.DocumentText
	if len(candidates) != 1 && strings.TrimSpace(supplied) != "" {
		logger.Debug("ignoring supplied document text", zap.Int("candidates", len(candidates)))
		supplied = ""
	}

	results := make([]DocumentResult, 0, len(candidates))
	for _, doc := range candidates {
		chunks, err := r.store.ListChunks(ctx, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("list chunks of %s: %w", doc.ID, err)
		}
		if len(chunks) == 0 {
			logger.Debug("document has no chunks", zap.String("document", doc.ID))
			continue
		}

		scored := r.ScoreChunks(query, keywords, chunks)
		res := DocumentResult{
			DocumentID:   doc.ID,
			DocumentName: doc.Name,
			BestScore:    scored[0].Score,
			Snippets:     make([]string, 0, topSnippets+2),
		}
		for _, sc := range scored[:min(topSnippets, len(scored))] {
			res.Snippets = append(res.Snippets, sc.Text)
		}
		if req.Sections {
			res.Snippets = append(res.Snippets, r.sectionBlocks(PickLongerText(supplied, doc.Text))...)
		}

		logger.Debug("document scored",
			zap.String("document", doc.ID),
			zap.String("name", doc.Name),
			zap.Float64("best_score", res.BestScore),
			zap.Int("chunks", len(chunks)),
		)
		results = append(results, res)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].BestScore > results[j].BestScore
	})
	if len(results) > topDocs {
		results = results[:topDocs]
	}

	logger.Info("retrieval finished",
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(results)),
	)

	return &Result{Results: results, Filters: statuses}, nil
}

// ScoreChunks scores every chunk and sorts them by descending score, keeping
// chunk order among ties.
func (r *Retriever) ScoreChunks(query []float32, keywords []string, chunks []store.Chunk) []ScoredChunk {
	scored := make([]ScoredChunk, len(chunks))
	for i, ch := range chunks {
		scored[i] = ScoredChunk{
			Index: ch.Index,
			Text:  ch.Text,
			Score: r.scorer.Score(query, ch.Vector, keywords, ch.Text),
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

// Section returns the block under one of labels in the owner's document.
func (r *Retriever) Section(ctx context.Context, ownerID, documentID string, labels ...string) (string, error) {
	doc, err := r.store.GetDocument(ctx, ownerID, documentID)
	if err != nil {
		return "", err
	}
	return sections.Extract(r.locator, doc.Text, labels...), nil
}

func (r *Retriever) sectionBlocks(text string) []string {
	var blocks []string
	for _, labels := range [][]string{sections.SkillsLabels, sections.ExperienceLabels} {
		if block := sections.Extract(r.locator, text, labels...); block != "" {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

// PickLongerText returns whichever of the supplied and stored texts is longer
// after trimming, preferring the supplied one on ties.
func PickLongerText(supplied, stored string) string {
	s := strings.TrimSpace(supplied)
	if len(s) >= len(strings.TrimSpace(stored)) && s != "" {
		return supplied
	}
	return stored
}

func positiveOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
