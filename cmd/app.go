package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/kenzatoreis/hiringbuddy/internal/ai"
	aigemini "github.com/kenzatoreis/hiringbuddy/internal/ai/gemini"
	"github.com/kenzatoreis/hiringbuddy/internal/embedding"
	embgemini "github.com/kenzatoreis/hiringbuddy/internal/embedding/gemini"
	"github.com/kenzatoreis/hiringbuddy/internal/embedding/httpembed"
	"github.com/kenzatoreis/hiringbuddy/internal/indexer"
	"github.com/kenzatoreis/hiringbuddy/internal/logger"
	"github.com/kenzatoreis/hiringbuddy/internal/retrieval"
	"github.com/kenzatoreis/hiringbuddy/internal/scoring"
	"github.com/kenzatoreis/hiringbuddy/internal/secrets"
	"github.com/kenzatoreis/hiringbuddy/internal/sections"
	"github.com/kenzatoreis/hiringbuddy/internal/store"
	"github.com/kenzatoreis/hiringbuddy/internal/store/memory"
	"github.com/kenzatoreis/hiringbuddy/internal/store/sqlite"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// application holds the components a command needs. Embedding and AI
// clients are built on first use so that listing or deleting documents works
// without credentials.
type application struct {
	config *Config
	logger *zap.Logger
	store  store.Store
	redis  *redis.Client

	resilient *embedding.Resilient
}

func newApplication() (*application, error) {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := readConfig()
	if err != nil {
		return nil, err
	}

	l = logger.WithFields(l, logger.DocumentFields(config.Owner, "")...)
	l.Debug("starting", zap.String("app", app), zap.String("version", version))

	st, err := openStore(config.Store)
	if err != nil {
		return nil, err
	}

	return &application{config: config, logger: l, store: st}, nil
}

func openStore(cfg StoreConfig) (store.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "memory":
		return memory.New(), nil
	case "sqlite", "":
		st, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}

func (a *application) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing store", zap.Error(err))
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("closing redis", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// gateway builds provider, rate limit, cache and fallback layers, in that
// order from the inside out.
func (a *application) gateway(ctx context.Context) (*embedding.Resilient, error) {
	if a.resilient != nil {
		return a.resilient, nil
	}

	cfg := a.config.Embedding
	var (
		base  embedding.Gateway
		model string
	)

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "gemini", "":
		provider = "gemini"
		key, err := loadKey("gemini embedding api key", cfg.Key)
		if err != nil {
			return nil, err
		}
		embedder, err := embgemini.NewEmbedder(ctx, key, cfg.Gemini.Model, cfg.Gemini.Dimensions, cfg.Gemini.MaxRetries,
			logger.WithCommonFields(a.logger, provider, cfg.Gemini.Model))
		if err != nil {
			return nil, err
		}
		base, model = embedder, embedder.Model()
	case "http":
		// Local servers such as Ollama need no key.
		key, err := loadKey("embedding api key", cfg.Key)
		if err != nil {
			a.logger.Debug("embedding api key not configured", zap.Error(err))
		}
		client, err := httpembed.New(cfg.HTTP, key, logger.WithCommonFields(a.logger, provider, cfg.HTTP.Model))
		if err != nil {
			return nil, err
		}
		base, model = client, client.Model()
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	gw := embedding.RateLimited(base, embedding.NewLimiter(cfg.RateLimit, cfg.Burst))

	if a.config.Redis.Enabled {
		client, err := embedding.NewRedisClient(ctx, a.config.Redis.Addr, a.config.Redis.Password, a.config.Redis.DB)
		if err != nil {
			return nil, err
		}
		a.redis = client
		gw = embedding.NewCached(gw, client, provider+"/"+model, a.config.Redis.TTL, a.logger)
	}

	a.resilient = embedding.NewResilient(gw, cfg.FallbackDimension, logger.WithCommonFields(a.logger, provider, model))
	return a.resilient, nil
}

func (a *application) indexer(ctx context.Context) (*indexer.Indexer, error) {
	gw, err := a.gateway(ctx)
	if err != nil {
		return nil, err
	}
	return indexer.New(gw, a.store, a.config.Chunking.MaxTokens, a.config.Chunking.Overlap, a.logger), nil
}

func (a *application) retriever(ctx context.Context) (*retrieval.Retriever, error) {
	gw, err := a.gateway(ctx)
	if err != nil {
		return nil, err
	}
	return a.newRetriever(gw)
}

func (a *application) newRetriever(gw embedding.Gateway) (*retrieval.Retriever, error) {
	scorer, err := scoring.New(a.config.Scoring)
	if err != nil {
		return nil, fmt.Errorf("scoring config: %w", err)
	}
	return retrieval.New(gw, a.store, scorer, sections.NewHeadingLocator(), a.logger)
}

// assessor returns nil when assessment is disabled in the config.
func (a *application) assessor(ctx context.Context) (ai.Assessor, error) {
	cfg := a.config.AI
	if !cfg.Enabled {
		return nil, nil
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "gemini", "":
		key, err := loadKey("gemini api key", cfg.Gemini.Key)
		if err != nil {
			return nil, err
		}
		l := logger.WithCommonFields(a.logger, "gemini", cfg.Gemini.Model)
		generator, err := aigemini.NewGenerator(ctx, key, cfg.Gemini.Model, cfg.Gemini.MaxRetries, l)
		if err != nil {
			return nil, err
		}
		return aigemini.NewMatcher(generator, l, cfg.Gemini.MaxLogLength), nil
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}

func loadKey(name string, cfg KeyConfig) (string, error) {
	return secrets.Load(secrets.Source{
		Name:  name,
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
		Env:   cfg.APIKeyEnv,
	})
}

var errAssessDisabled = errors.New("assessment requires ai.enabled in the config")

func parseScope(s string) (retrieval.Scope, error) {
	switch scope := retrieval.Scope(strings.ToLower(strings.TrimSpace(s))); scope {
	case "", retrieval.ScopeLatestOnly:
		return retrieval.ScopeLatestOnly, nil
	case retrieval.ScopeAll:
		return scope, nil
	default:
		return "", fmt.Errorf("scope must be %q or %q, got %q", retrieval.ScopeLatestOnly, retrieval.ScopeAll, s)
	}
}
