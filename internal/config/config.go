// Package config provides configuration management for IdeaBank.
// It loads settings from environment variables with the IDEABANK_ prefix and
// provides sensible defaults for all configuration options. An optional YAML
// config file (IDEABANK_CONFIG or LoadConfigFromFile) supplies a base that
// environment variables override.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the IdeaBank application.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Blob      BlobConfig      `yaml:"blob"`
	Security  SecurityConfig  `yaml:"security"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"` // Server port (default: 8490)
	Host string `yaml:"host"` // Server host (default: 127.0.0.1)
}

// StorageConfig contains database configuration.
type StorageConfig struct {
	StorageEngine string `yaml:"engine"`    // Storage engine: sqlite, postgres (default: sqlite)
	PostgresDSN   string `yaml:"dsn"`       // Postgres connection string
	DataPath      string `yaml:"data_path"` // Path to data directory for SQLite and local blobs (default: ./data)
}

// EmbeddingConfig contains embedding provider configuration.
type EmbeddingConfig struct {
	Provider     string        `yaml:"provider"`      // Embedding provider: ollama, openai (default: ollama)
	OllamaURL    string        `yaml:"ollama_url"`    // Ollama API URL (default: http://localhost:11434)
	OllamaModel  string        `yaml:"ollama_model"`  // Ollama embedding model (default: nomic-embed-text)
	OpenAIAPIKey string        `yaml:"openai_api_key"`
	OpenAIModel  string        `yaml:"openai_model"` // OpenAI embedding model (default: text-embedding-3-small)
	Timeout      time.Duration `yaml:"timeout"`      // Per-embedding-call timeout (default: 10s)
	Workers      int           `yaml:"workers"`      // Concurrent candidate embeddings per search (default: 4)
}

// SearchConfig contains similarity search configuration.
type SearchConfig struct {
	// SimilarityThreshold is the minimum cosine score for a result to be
	// returned; results scoring at or below it are dropped (default: 0.7).
	SimilarityThreshold float64 `yaml:"similarity_threshold"`

	DefaultTopK int           `yaml:"default_top_k"` // top_k when the caller omits it (default: 50)
	MaxTopK     int           `yaml:"max_top_k"`     // hard cap on top_k (default: 500)
	Deadline    time.Duration `yaml:"deadline"`      // Overall per-search deadline (default: 30s)
	CacheSize   int           `yaml:"cache_size"`    // In-process embedding cache entries (default: 512)
	CacheTTL    time.Duration `yaml:"cache_ttl"`     // In-process embedding cache TTL (default: 10m)
}

// BlobConfig contains proposal document storage configuration.
type BlobConfig struct {
	Backend string `yaml:"backend"` // Blob backend: filesystem, gcs (default: filesystem)
	Bucket  string `yaml:"bucket"`  // GCS bucket name (required for gcs backend)
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	SecurityMode string `yaml:"mode"`      // Security mode: development, production (default: development)
	APIToken     string `yaml:"api_token"` // API authentication token
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. When IDEABANK_CONFIG points at a YAML file, the file is applied
// first and environment variables override it.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("IDEABANK_CONFIG"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// LoadConfigFromFile loads configuration from the given YAML file, with
// environment variables taking precedence over file values.
func LoadConfigFromFile(path string) (*Config, error) {
	cfg := defaultConfig()
	if err := applyFile(cfg, path); err != nil {
		return nil, err
	}
	applyEnv(cfg)
	return cfg, nil
}

// defaultConfig constructs a Config with built-in defaults only.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8490,
			Host: "127.0.0.1",
		},
		Storage: StorageConfig{
			StorageEngine: "sqlite",
			DataPath:      "./data",
		},
		Embedding: EmbeddingConfig{
			Provider:    "ollama",
			OllamaURL:   "http://localhost:11434",
			OllamaModel: "nomic-embed-text",
			OpenAIModel: "text-embedding-3-small",
			Timeout:     10 * time.Second,
			Workers:     4,
		},
		Search: SearchConfig{
			SimilarityThreshold: 0.7,
			DefaultTopK:         50,
			MaxTopK:             500,
			Deadline:            30 * time.Second,
			CacheSize:           512,
			CacheTTL:            10 * time.Minute,
		},
		Blob: BlobConfig{
			Backend: "filesystem",
		},
		Security: SecurityConfig{
			SecurityMode: "development",
		},
	}
}

// applyFile overlays YAML file values onto cfg.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays IDEABANK_-prefixed environment variables onto cfg.
func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnvInt("IDEABANK_PORT", cfg.Server.Port)
	cfg.Server.Host = getEnv("IDEABANK_HOST", cfg.Server.Host)

	cfg.Storage.StorageEngine = getEnv("IDEABANK_STORAGE_ENGINE", cfg.Storage.StorageEngine)
	cfg.Storage.PostgresDSN = getEnv("IDEABANK_POSTGRES_DSN", cfg.Storage.PostgresDSN)
	cfg.Storage.DataPath = getEnv("IDEABANK_DATA_PATH", cfg.Storage.DataPath)

	cfg.Embedding.Provider = getEnv("IDEABANK_EMBEDDING_PROVIDER", cfg.Embedding.Provider)
	cfg.Embedding.OllamaURL = getEnv("IDEABANK_OLLAMA_URL", cfg.Embedding.OllamaURL)
	cfg.Embedding.OllamaModel = getEnv("IDEABANK_OLLAMA_MODEL", cfg.Embedding.OllamaModel)
	cfg.Embedding.OpenAIAPIKey = getEnv("IDEABANK_OPENAI_API_KEY", cfg.Embedding.OpenAIAPIKey)
	cfg.Embedding.OpenAIModel = getEnv("IDEABANK_OPENAI_MODEL", cfg.Embedding.OpenAIModel)
	cfg.Embedding.Timeout = getEnvDuration("IDEABANK_EMBEDDING_TIMEOUT", cfg.Embedding.Timeout)
	cfg.Embedding.Workers = getEnvInt("IDEABANK_EMBEDDING_WORKERS", cfg.Embedding.Workers)

	cfg.Search.SimilarityThreshold = getEnvFloat("IDEABANK_SIMILARITY_THRESHOLD", cfg.Search.SimilarityThreshold)
	cfg.Search.DefaultTopK = getEnvInt("IDEABANK_DEFAULT_TOP_K", cfg.Search.DefaultTopK)
	cfg.Search.MaxTopK = getEnvInt("IDEABANK_MAX_TOP_K", cfg.Search.MaxTopK)
	cfg.Search.Deadline = getEnvDuration("IDEABANK_SEARCH_DEADLINE", cfg.Search.Deadline)
	cfg.Search.CacheSize = getEnvInt("IDEABANK_EMBEDDING_CACHE_SIZE", cfg.Search.CacheSize)
	cfg.Search.CacheTTL = getEnvDuration("IDEABANK_EMBEDDING_CACHE_TTL", cfg.Search.CacheTTL)

	cfg.Blob.Backend = getEnv("IDEABANK_BLOB_BACKEND", cfg.Blob.Backend)
	cfg.Blob.Bucket = getEnv("IDEABANK_BLOB_BUCKET", cfg.Blob.Bucket)

	cfg.Security.SecurityMode = getEnv("IDEABANK_SECURITY_MODE", cfg.Security.SecurityMode)
	cfg.Security.APIToken = getEnv("IDEABANK_API_TOKEN", cfg.Security.APIToken)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable (e.g. "30s", "10m")
// or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
