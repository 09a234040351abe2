// Package embedding defines the boundary to embedding models and the
// fallback policy applied while indexing.
package embedding

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/kenzatoreis/hiringbuddy/internal/utils"
	"go.uber.org/zap"
)

const (
	// DefaultFallbackDimension is used for zero vectors before any real
	// embedding has been observed.
	DefaultFallbackDimension = 256

	baseBackoff = 200 * time.Millisecond
	maxBackoff  = 5 * time.Second
)

var ErrEmptyVector = errors.New("embedding response contained an empty vector")

// Gateway turns text into a fixed-length vector.
type Gateway interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GatewayFunc adapts a function to Gateway.
type GatewayFunc func(ctx context.Context, text string) ([]float32, error)

func (f GatewayFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// Purpose tells providers whether text is stored or searched for. Providers
// that ignore it embed both the same way.
type Purpose string

const (
	PurposeDocument Purpose = "document"
	PurposeQuery    Purpose = "query"
)

type purposeKey struct{}

func WithPurpose(ctx context.Context, p Purpose) context.Context {
	return context.WithValue(ctx, purposeKey{}, p)
}

// PurposeFrom defaults to PurposeDocument.
func PurposeFrom(ctx context.Context) Purpose {
	if p, ok := ctx.Value(purposeKey{}).(Purpose); ok && p != "" {
		return p
	}
	return PurposeDocument
}

// Result is either a real vector or a zero-vector fallback with the reason
// the gateway failed.
type Result struct {
	Vector   []float32
	Fallback bool
	Reason   string
}

func Ok(vector []float32) Result {
	return Result{Vector: vector}
}

func Fallback(dimension int, reason string) Result {
	if dimension <= 0 {
		dimension = DefaultFallbackDimension
	}
	return Result{
		Vector:   make([]float32, dimension),
		Fallback: true,
		Reason:   reason,
	}
}

// Resilient wraps a Gateway so that indexing never stops on a failed chunk.
type Resilient struct {
	gateway   Gateway
	dimension int
	observed  atomic.Int64
	logger    *zap.Logger
	maxLogLen int
}

// NewResilient returns a Resilient gateway. A zero dimension means the
// fallback follows the last successful vector length, or
// DefaultFallbackDimension before any success.
func NewResilient(gateway Gateway, dimension int, logger *zap.Logger) *Resilient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resilient{
		gateway:   gateway,
		dimension: dimension,
		logger:    logger,
		maxLogLen: 60,
	}
}

// Embed passes through to the wrapped gateway.
func (r *Resilient) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := r.gateway.Embed(ctx, text)
	if err == nil && len(vec) > 0 {
		r.observed.Store(int64(len(vec)))
	}
	return vec, err
}

// EmbedOrFallback never fails: gateway errors and empty vectors become a zero
// vector, logged once.
func (r *Resilient) EmbedOrFallback(ctx context.Context, text string) Result {
	vec, err := r.Embed(ctx, text)
	if err == nil && len(vec) == 0 {
		err = ErrEmptyVector
	}

	if err != nil {
		res := Fallback(r.fallbackDimension(), err.Error())
		r.logger.Warn("embedding failed, storing zero vector",
			zap.Error(err),
			zap.Int("dimension", len(res.Vector)),
			zap.String("chunk_preview", utils.TruncateForLog(text, r.maxLogLen)),
		)
		return res
	}

	return Ok(vec)
}

// Dimension reports the dimensionality used for fallbacks.
func (r *Resilient) Dimension() int {
	return r.fallbackDimension()
}

func (r *Resilient) fallbackDimension() int {
	if r.dimension > 0 {
		return r.dimension
	}
	if n := r.observed.Load(); n > 0 {
		return int(n)
	}
	return DefaultFallbackDimension
}

// Backoff is the delay before retry attempt n: 200ms doubled per attempt and
// capped at 5s.
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 16 {
		return maxBackoff
	}
	d := baseBackoff << attempt
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}
