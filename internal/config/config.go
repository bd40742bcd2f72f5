package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Index storage backends.
const (
	IndexBackendFile     = "file"
	IndexBackendS3       = "s3"
	IndexBackendPostgres = "postgres"
	IndexBackendMemory   = "memory"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	ProfilePath string `envconfig:"PROFILE_PATH" default:"data/profile.json"`
	RulesPath   string `envconfig:"RULES_PATH"`

	IndexBackend string `envconfig:"INDEX_BACKEND" default:"file"`
	IndexDir     string `envconfig:"INDEX_DIR" default:"data/index"`
	IndexS3Key   string `envconfig:"INDEX_S3_KEY" default:"index/embeddings.json"`

	DatabaseURL string `envconfig:"DATABASE_URL"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"companion-index"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string `envconfig:"OPENAI_BASE_URL"`
	ChatModel           string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`

	ModelTimeout     time.Duration `envconfig:"MODEL_TIMEOUT" default:"30s"`
	EmbeddingTimeout time.Duration `envconfig:"EMBEDDING_TIMEOUT" default:"10s"`

	CacheTTL        time.Duration `envconfig:"CACHE_TTL" default:"24h"`
	CacheMaxEntries int           `envconfig:"CACHE_MAX_ENTRIES" default:"100"`

	SearchTopK     int     `envconfig:"SEARCH_TOP_K" default:"5"`
	SearchMinScore float64 `envconfig:"SEARCH_MIN_SCORE" default:"0.3"`
	HistorySize    int     `envconfig:"HISTORY_SIZE" default:"20"`

	RebuildPollInterval time.Duration `envconfig:"REBUILD_POLL_INTERVAL" default:"5s"`

	// APIKey, when set, is required as a bearer token on every API request
	APIKey string `envconfig:"API_KEY"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("COMPANION", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate checks that the selected index backend has what it needs.
func (c *Config) Validate() error {
	switch c.IndexBackend {
	case IndexBackendFile, IndexBackendMemory:
	case IndexBackendS3:
		if !c.HasS3() {
			return fmt.Errorf("index backend %q requires S3_ENDPOINT, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY", c.IndexBackend)
		}
	case IndexBackendPostgres:
		if !c.HasDatabase() {
			return fmt.Errorf("index backend %q requires DATABASE_URL", c.IndexBackend)
		}
	default:
		return fmt.Errorf("unknown index backend %q", c.IndexBackend)
	}
	if c.SearchMinScore < 0 || c.SearchMinScore > 1 {
		return fmt.Errorf("SEARCH_MIN_SCORE must be within [0, 1], got %v", c.SearchMinScore)
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != "" || c.OpenAIBaseURL != ""
}

func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}
