package embedder

import (
	"fmt"
	"strings"

	"github.com/popoloni/codescope/internal/config"
)

// New creates an embedder from configuration. The local provider is
// selected explicitly or whenever no hosted backend has an API key.
func New(cfg *config.Config) (Embedder, error) {
	switch strings.ToLower(cfg.EmbeddingProvider) {
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.OpenAIAPIKey)
	case ProviderJina:
		return NewJinaProvider(cfg.JinaAPIKey)
	case ProviderLocal:
		return NewLocalProvider(cfg.EmbeddingDim)
	case "":
		return autodetect(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidInput, cfg.EmbeddingProvider)
	}
}

func autodetect(cfg *config.Config) (Embedder, error) {
	if cfg.OpenAIAPIKey != "" {
		return NewOpenAIProvider(cfg.OpenAIAPIKey)
	}
	if cfg.JinaAPIKey != "" {
		return NewJinaProvider(cfg.JinaAPIKey)
	}
	return NewLocalProvider(cfg.EmbeddingDim)
}
