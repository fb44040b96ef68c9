package llm

import (
	"fmt"

	"go.uber.org/zap"
)

// Providers supported by the factory.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// FactoryConfig holds the backend selection for creating generators.
type FactoryConfig struct {
	Provider string // "gemini" or "openai"
	APIKey   string
	BaseURL  string // OpenAI-compatible endpoint; ignored for Gemini
}

// GeneratorFactory is the interface for creating code generators.
// Use this interface for dependency injection and testing.
type GeneratorFactory interface {
	Create(model string) (CodeGenerator, error)
}

// ClientFactory creates code generators for the configured provider.
type ClientFactory struct {
	cfg    FactoryConfig
	logger *zap.Logger
}

// NewClientFactory creates a new factory.
func NewClientFactory(cfg FactoryConfig, logger *zap.Logger) *ClientFactory {
	return &ClientFactory{cfg: cfg, logger: logger}
}

// Create builds a generator for the given model on the configured backend.
func (f *ClientFactory) Create(model string) (CodeGenerator, error) {
	switch f.cfg.Provider {
	case ProviderGemini:
		return NewGeminiClient(f.cfg.APIKey, model, f.logger)
	case ProviderOpenAI:
		return NewOpenAIClient(f.cfg.BaseURL, model, f.cfg.APIKey, f.logger)
	default:
		return nil, fmt.Errorf("unknown generation provider %q", f.cfg.Provider)
	}
}

var _ GeneratorFactory = (*ClientFactory)(nil)
