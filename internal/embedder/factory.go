package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Config holds embedder configuration
type Config struct {
	Provider  string // jina, openai, local; empty auto-detects
	Model     string // empty uses the provider default
	APIKey    string // empty falls back to the provider's env variable
	Dimension int    // 0 uses the provider default
	Endpoint  string // empty uses the provider's public API
}

// New creates an embedder from configuration.
// With no provider set, the provider is picked by DetectProvider.
func New(cfg Config) (Embedder, error) {
	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		provider = DetectProvider()
	}

	var opts []ProviderOption
	if cfg.Model != "" {
		opts = append(opts, WithModel(cfg.Model))
	}
	if cfg.Dimension > 0 {
		opts = append(opts, WithDimension(cfg.Dimension))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, WithEndpoint(cfg.Endpoint))
	}

	switch provider {
	case ProviderJina:
		return NewJinaProvider(cfg.APIKey, opts...)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, opts...)
	case ProviderLocal:
		return NewLocalProvider(cfg.Dimension)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider that would be used based on available API keys
// Priority:
// 1. JINA_API_KEY
// 2. OPENAI_API_KEY
// 3. local (offline)
func DetectProvider() string {
	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}
