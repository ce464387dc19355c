// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds the runtime configuration for the server.
type Config struct {
	// DBPath is the SQLite database location.
	DBPath string
	// EmbeddingProvider selects the embedding backend: openai, jina or local.
	EmbeddingProvider string
	// EmbeddingDim sets the vector dimension for the local provider.
	// Hosted providers use their model's fixed dimension.
	EmbeddingDim int
	// Workers bounds parser concurrency during indexing.
	Workers int
	// BatchSize bounds embedding batch requests.
	BatchSize int
	// OpenAIAPIKey authenticates against the OpenAI embeddings API.
	OpenAIAPIKey string
	// JinaAPIKey authenticates against the Jina embeddings API.
	JinaAPIKey string
	// MetricsAddr serves Prometheus metrics over HTTP when set, for
	// example "127.0.0.1:9090". Empty disables the listener.
	MetricsAddr string
}

// Defaults applied when the environment leaves a knob unset.
const (
	DefaultEmbeddingProvider = "local"
	DefaultEmbeddingDim      = 256
	DefaultWorkers           = 8
	DefaultBatchSize         = 32
)

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:            os.Getenv("CODESCOPE_DB_PATH"),
		EmbeddingProvider: getEnv("CODESCOPE_EMBEDDING_PROVIDER", DefaultEmbeddingProvider),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		JinaAPIKey:        os.Getenv("JINA_API_KEY"),
		MetricsAddr:       os.Getenv("CODESCOPE_METRICS_ADDR"),
	}

	if cfg.DBPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		cfg.DBPath = filepath.Join(home, ".codescope", "index.db")
	}

	var err error
	if cfg.EmbeddingDim, err = getEnvInt("CODESCOPE_EMBEDDING_DIM", DefaultEmbeddingDim); err != nil {
		return nil, err
	}
	if cfg.Workers, err = getEnvInt("CODESCOPE_WORKERS", DefaultWorkers); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = getEnvInt("CODESCOPE_BATCH_SIZE", DefaultBatchSize); err != nil {
		return nil, err
	}

	if cfg.EmbeddingDim <= 0 {
		return nil, fmt.Errorf("CODESCOPE_EMBEDDING_DIM must be positive, got %d", cfg.EmbeddingDim)
	}
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("CODESCOPE_WORKERS must be positive, got %d", cfg.Workers)
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("CODESCOPE_BATCH_SIZE must be positive, got %d", cfg.BatchSize)
	}
	switch cfg.EmbeddingProvider {
	case "openai", "jina", "local":
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
