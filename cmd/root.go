package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kenzatoreis/hiringbuddy/internal/embedding/httpembed"
	"github.com/kenzatoreis/hiringbuddy/internal/scoring"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app       = "hiringbuddy"
	envPrefix = "HIRINGBUDDY"
)

type Config struct {
	Owner     string          `mapstructure:"owner"`
	Store     StoreConfig     `mapstructure:"store"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Chunking  ChunkingConfig  `mapstructure:"chunking"`
	Scoring   scoring.Weights `mapstructure:"scoring"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Redis     RedisConfig     `mapstructure:"redis"`
	AI        AIConfig        `mapstructure:"ai"`
	Server    ServerConfig    `mapstructure:"server"`
}

type StoreConfig struct {
	// Driver is "sqlite" or "memory".
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

type EmbeddingConfig struct {
	// Provider is "gemini" or "http".
	Provider string `mapstructure:"provider"`
	// FallbackDimension sizes zero vectors for failed chunks. Zero follows
	// the provider's observed dimension.
	FallbackDimension int                   `mapstructure:"fallback-dimension"`
	RateLimit         float64               `mapstructure:"rate-limit"`
	Burst             int                   `mapstructure:"burst"`
	Gemini            GeminiEmbeddingConfig `mapstructure:"gemini"`
	HTTP              httpembed.Config      `mapstructure:"http"`
	Key               KeyConfig             `mapstructure:",squash"`
}

type GeminiEmbeddingConfig struct {
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
	MaxRetries int    `mapstructure:"max-retries"`
}

// KeyConfig points at an API key; see secrets.Source for precedence.
type KeyConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	APIKeyEnv  string `mapstructure:"api-key-env"`
}

type ChunkingConfig struct {
	MaxTokens int `mapstructure:"max-tokens"`
	Overlap   int `mapstructure:"overlap"`
}

type RetrievalConfig struct {
	TopKDocuments int    `mapstructure:"top-k-documents"`
	TopKSnippets  int    `mapstructure:"top-k-snippets"`
	Scope         string `mapstructure:"scope"`
	Limit         int    `mapstructure:"limit"`
	Sections      bool   `mapstructure:"sections"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type AIConfig struct {
	Enabled  bool         `mapstructure:"enabled"`
	Provider string       `mapstructure:"provider"`
	Language string       `mapstructure:"language"`
	Gemini   GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	Model        string    `mapstructure:"model"`
	MaxRetries   int       `mapstructure:"max-retries"`
	MaxLogLength int       `mapstructure:"max-log-length"`
	Key          KeyConfig `mapstructure:",squash"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:          app,
		Short:        "hiringbuddy indexes resumes and ranks them against job requirements",
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is hiringbuddy.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("owner", "", "owner whose documents are indexed and searched")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("owner", rootCmd.PersistentFlags().Lookup("owner"))

	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("owner", "local")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", app+".db")
	v.SetDefault("embedding.provider", "gemini")
	v.SetDefault("embedding.api-key-env", "GEMINI_API_KEY")
	v.SetDefault("embedding.burst", 1)
	v.SetDefault("chunking.max-tokens", 700)
	v.SetDefault("chunking.overlap", 80)
	v.SetDefault("scoring.semantic-weight", scoring.DefaultSemanticWeight)
	v.SetDefault("scoring.keyword-weight", scoring.DefaultKeywordWeight)
	v.SetDefault("scoring.keyword-saturation", scoring.DefaultSaturation)
	v.SetDefault("retrieval.top-k-documents", 2)
	v.SetDefault("retrieval.top-k-snippets", 3)
	v.SetDefault("retrieval.scope", "latest")
	v.SetDefault("retrieval.sections", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.ttl", "168h")
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.language", "en")
	v.SetDefault("ai.gemini.api-key-env", "GEMINI_API_KEY")
	v.SetDefault("server.addr", ":8080")
}

func initConfig() {
	// A missing .env is normal; keys may come from the environment.
	_ = godotenv.Load()

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}
}

// readConfig loads the config file, if any, and decodes the merged settings.
func readConfig() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	config.Owner = strings.TrimSpace(config.Owner)
	if config.Owner == "" {
		return nil, errors.New("owner is required (set --owner or HIRINGBUDDY_OWNER)")
	}
	return &config, nil
}
