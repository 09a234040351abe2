// Package httpembed talks to JSON embedding endpoints: OpenAI compatible
// servers, Ollama and Bedrock Titan proxies.
package httpembed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kenzatoreis/hiringbuddy/internal/embedding"
	"github.com/kenzatoreis/hiringbuddy/internal/utils"
	"go.uber.org/zap"
)

const (
	FormatOpenAI = "openai"
	FormatOllama = "ollama"
	FormatTitan  = "titan"

	defaultBaseURL    = "https://api.openai.com/v1"
	defaultModel      = "text-embedding-3-small"
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	maxErrorBody      = 512
	// maxRetryAfter caps the delay a server may request between attempts.
	maxRetryAfter = 30 * time.Second
)

var wait = utils.WaitFor

type Config struct {
	BaseURL    string        `mapstructure:"base-url"`
	Path       string        `mapstructure:"path"`
	Format     string        `mapstructure:"format"`
	Model      string        `mapstructure:"model"`
	Dimensions int           `mapstructure:"dimensions"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max-retries"`
}

type Client struct {
	endpoint   string
	format     string
	model      string
	apiKey     string
	dimensions int
	maxRetries int
	httpClient *http.Client
	logger     *zap.Logger
}

var _ embedding.Gateway = (*Client)(nil)

// New builds a client. apiKey may be empty for local servers.
func New(cfg Config, apiKey string, logger *zap.Logger) (*Client, error) {
	format := strings.ToLower(strings.TrimSpace(cfg.Format))
	if format == "" {
		format = FormatOpenAI
	}

	path := cfg.Path
	switch format {
	case FormatOpenAI:
		if path == "" {
			path = "/embeddings"
		}
	case FormatOllama:
		if path == "" {
			path = "/api/embeddings"
		}
	case FormatTitan:
		if path == "" {
			path = "/embed"
		}
	default:
		return nil, fmt.Errorf("unsupported embedding format: %s", cfg.Format)
	}

	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	} else if retries == 0 {
		retries = defaultMaxRetries
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		endpoint:   base + "/" + strings.TrimLeft(path, "/"),
		format:     format,
		model:      model,
		apiKey:     strings.TrimSpace(apiKey),
		dimensions: cfg.Dimensions,
		maxRetries: retries,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

func (c *Client) Model() string {
	return c.model
}

// Embed posts text and normalizes the response. Throttling, server errors and
// transport failures are retried with backoff; other failures are returned.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(c.requestBody(text))
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := embedding.Backoff(attempt - 1)
			var re *retryableError
			if errors.As(lastErr, &re) && re.retryAfter > 0 {
				delay = re.retryAfter
			}
			c.logger.Debug("retrying embedding request",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if err := wait(ctx, delay); err != nil {
				return nil, err
			}
		}

		vec, err := c.do(ctx, body)
		if err == nil {
			return vec, nil
		}

		var re *retryableError
		if !errors.As(err, &re) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("embedding request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) requestBody(text string) map[string]any {
	switch c.format {
	case FormatOllama:
		return map[string]any{"model": c.model, "prompt": text}
	case FormatTitan:
		body := map[string]any{"inputText": text}
		if c.dimensions > 0 {
			body["dimensions"] = c.dimensions
		}
		return body
	default:
		body := map[string]any{"model": c.model, "input": text}
		if c.dimensions > 0 {
			body["dimensions"] = c.dimensions
		}
		return body
	}
}

func (c *Client) do(ctx context.Context, body []byte) ([]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &retryableError{err: fmt.Errorf("send embedding request: %w", err)}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("read embedding response: %w", err)}
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return nil, &retryableError{
			err:        fmt.Errorf("embedding endpoint returned %s: %s", resp.Status, utils.TruncateForLog(string(payload), maxErrorBody)),
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("embedding endpoint returned %s: %s", resp.Status, utils.TruncateForLog(string(payload), maxErrorBody))
	}

	return embedding.DecodeJSON(payload)
}

type retryableError struct {
	err        error
	retryAfter time.Duration
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// parseRetryAfter reads seconds or an HTTP date, capped at maxRetryAfter.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		if secs > int(maxRetryAfter/time.Second) {
			return maxRetryAfter
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return min(d, maxRetryAfter)
		}
	}
	return 0
}
