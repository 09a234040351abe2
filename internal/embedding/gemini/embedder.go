// Package gemini embeds text with the Gemini embedding models.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kenzatoreis/hiringbuddy/internal/embedding"
	"github.com/kenzatoreis/hiringbuddy/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultModel      = "text-embedding-004"
	defaultMaxRetries = 3
	documentTaskType  = "RETRIEVAL_DOCUMENT"
	queryTaskType     = "RETRIEVAL_QUERY"
)

var wait = utils.WaitFor

type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

type Embedder struct {
	models     contentEmbedder
	model      string
	dimensions int32
	maxRetries int
	logger     *zap.Logger
}

var _ embedding.Gateway = (*Embedder)(nil)

// NewEmbedder creates an Embedder on the Gemini API backend. A positive
// dimensions value requests reduced output dimensionality.
func NewEmbedder(ctx context.Context, apiKey, model string, dimensions, maxRetries int, logger *zap.Logger) (*Embedder, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newEmbedder(client.Models, model, dimensions, maxRetries, logger), nil
}

func newEmbedder(models contentEmbedder, model string, dimensions, maxRetries int, logger *zap.Logger) *Embedder {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{
		models:     models,
		model:      model,
		dimensions: int32(max(dimensions, 0)),
		maxRetries: maxRetries,
		logger:     logger,
	}
}

func (e *Embedder) Model() string {
	return e.model
}

// Embed uses the query task type when ctx carries embedding.PurposeQuery.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	cfg := &genai.EmbedContentConfig{TaskType: documentTaskType}
	if embedding.PurposeFrom(ctx) == embedding.PurposeQuery {
		cfg.TaskType = queryTaskType
	}
	if e.dimensions > 0 {
		dims := e.dimensions
		cfg.OutputDimensionality = &dims
	}

	var lastErr error
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		if attempt > 0 {
			delay := embedding.Backoff(attempt - 1)
			e.logger.Debug("retrying gemini embedding",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if err := wait(ctx, delay); err != nil {
				return nil, err
			}
		}

		resp, err := e.models.EmbedContent(ctx, e.model, genai.Text(text), cfg)
		if err != nil {
			if !retryable(err) {
				return nil, fmt.Errorf("embed content: %w", err)
			}
			lastErr = err
			continue
		}

		if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
			return nil, fmt.Errorf("%w: gemini returned no embeddings", embedding.ErrUnexpectedShape)
		}
		if len(resp.Embeddings[0].Values) == 0 {
			return nil, embedding.ErrEmptyVector
		}
		return resp.Embeddings[0].Values, nil
	}

	return nil, fmt.Errorf("embed content after %d attempts: %w", e.maxRetries, lastErr)
}

func retryable(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code == http.StatusTooManyRequests || apiErrPtr.Code >= http.StatusInternalServerError
	}
	return false
}
