package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeRedis struct {
	data   map[string]string
	getErr error
	setErr error
	ttl    time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string)}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	val, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(val, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.ttl = expiration
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func TestCachedStoresAndReuses(t *testing.T) {
	calls := 0
	gw := GatewayFunc(func(_ context.Context, _ string) ([]float32, error) {
		calls++
		return []float32{1, 2, 3}, nil
	})

	store := newFakeRedis()
	cached := NewCached(gw, store, "titan", time.Hour, nil)

	for i := 0; i < 3; i++ {
		vec, err := cached.Embed(context.Background(), "I know Python.")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(vec) != 3 || vec[2] != 3 {
			t.Fatalf("unexpected vector %v", vec)
		}
	}

	if calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", calls)
	}
	if store.ttl != time.Hour {
		t.Fatalf("unexpected ttl %v", store.ttl)
	}
	if _, ok := store.data[cached.Key("I know Python.")]; !ok {
		t.Fatal("expected vector to be cached under its key")
	}
	if cached.Key("a") == NewCached(gw, store, "other", 0, nil).Key("a") {
		t.Fatal("expected cache keys to differ per model")
	}

	if _, err := cached.Embed(WithPurpose(context.Background(), PurposeQuery), "I know Python."); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected query embeddings to be cached apart from documents, got %d calls", calls)
	}
}

func TestCachedDegradesOnRedisErrors(t *testing.T) {
	core, observed := observer.New(zapcore.WarnLevel)
	gw := GatewayFunc(func(_ context.Context, _ string) ([]float32, error) {
		return []float32{1}, nil
	})

	store := newFakeRedis()
	store.getErr = errors.New("connection refused")
	store.setErr = errors.New("connection refused")

	vec, err := NewCached(gw, store, "m", 0, zap.New(core)).Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 1 {
		t.Fatalf("unexpected vector %v", vec)
	}
	if observed.Len() != 2 {
		t.Fatalf("expected 2 warnings, got %d", observed.Len())
	}
}

func TestCachedPropagatesGatewayErrors(t *testing.T) {
	gw := GatewayFunc(func(_ context.Context, _ string) ([]float32, error) {
		return nil, errors.New("boom")
	})

	store := newFakeRedis()
	if _, err := NewCached(gw, store, "m", 0, nil).Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
	if len(store.data) != 0 {
		t.Fatal("expected nothing cached on failure")
	}
}
