package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestEmbedOrFallbackReturnsVector(t *testing.T) {
	gw := GatewayFunc(func(_ context.Context, _ string) ([]float32, error) {
		return []float32{0.1, 0.2}, nil
	})

	res := NewResilient(gw, 0, nil).EmbedOrFallback(context.Background(), "text")
	if res.Fallback {
		t.Fatalf("unexpected fallback: %+v", res)
	}
	if len(res.Vector) != 2 {
		t.Fatalf("unexpected vector %v", res.Vector)
	}
}

func TestEmbedOrFallbackZeroVector(t *testing.T) {
	core, observed := observer.New(zapcore.WarnLevel)
	gw := GatewayFunc(func(_ context.Context, _ string) ([]float32, error) {
		return nil, errors.New("throttled")
	})

	res := NewResilient(gw, 0, zap.New(core)).EmbedOrFallback(context.Background(), "I know Python.")
	if !res.Fallback {
		t.Fatal("expected fallback")
	}
	if res.Reason != "throttled" {
		t.Fatalf("unexpected reason %q", res.Reason)
	}
	if len(res.Vector) != DefaultFallbackDimension {
		t.Fatalf("expected %d dims, got %d", DefaultFallbackDimension, len(res.Vector))
	}
	for i, v := range res.Vector {
		if v != 0 {
			t.Fatalf("expected zero at %d, got %v", i, v)
		}
	}

	entries := observed.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0].ContextMap()["dimension"] != int64(DefaultFallbackDimension) {
		t.Fatalf("unexpected log context %v", entries[0].ContextMap())
	}
}

func TestEmbedOrFallbackTreatsEmptyVectorAsFailure(t *testing.T) {
	gw := GatewayFunc(func(_ context.Context, _ string) ([]float32, error) {
		return []float32{}, nil
	})

	res := NewResilient(gw, 8, nil).EmbedOrFallback(context.Background(), "x")
	if !res.Fallback || len(res.Vector) != 8 {
		t.Fatalf("expected 8-dim fallback, got %+v", res)
	}
	if res.Reason != ErrEmptyVector.Error() {
		t.Fatalf("unexpected reason %q", res.Reason)
	}
}

func TestFallbackFollowsObservedDimension(t *testing.T) {
	fail := false
	gw := GatewayFunc(func(_ context.Context, _ string) ([]float32, error) {
		if fail {
			return nil, errors.New("timeout")
		}
		return make([]float32, 768), nil
	})

	r := NewResilient(gw, 0, nil)
	if got := r.Dimension(); got != DefaultFallbackDimension {
		t.Fatalf("expected default dimension before any call, got %d", got)
	}

	r.EmbedOrFallback(context.Background(), "first")
	fail = true

	res := r.EmbedOrFallback(context.Background(), "second")
	if !res.Fallback || len(res.Vector) != 768 {
		t.Fatalf("expected 768-dim fallback, got %d (fallback=%v)", len(res.Vector), res.Fallback)
	}
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		attempt int
		expect  time.Duration
	}{
		{attempt: -1, expect: 200 * time.Millisecond},
		{attempt: 0, expect: 200 * time.Millisecond},
		{attempt: 1, expect: 400 * time.Millisecond},
		{attempt: 4, expect: 3200 * time.Millisecond},
		{attempt: 5, expect: 5 * time.Second},
		{attempt: 60, expect: 5 * time.Second},
	}

	for _, tt := range tests {
		if got := Backoff(tt.attempt); got != tt.expect {
			t.Fatalf("Backoff(%d): expected %v, got %v", tt.attempt, tt.expect, got)
		}
	}
}

func TestRateLimited(t *testing.T) {
	calls := 0
	gw := GatewayFunc(func(_ context.Context, _ string) ([]float32, error) {
		calls++
		return []float32{1}, nil
	})

	if got := RateLimited(gw, nil); got == nil {
		t.Fatal("expected passthrough gateway")
	}
	if NewLimiter(0, 1) != nil {
		t.Fatal("expected nil limiter for zero rate")
	}

	limited := RateLimited(gw, NewLimiter(1000, 1))
	if _, err := limited.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := RateLimited(gw, NewLimiter(0.001, 1)).Embed(ctx, "x"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", calls)
	}
}
