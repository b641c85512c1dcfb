package ai

import (
	"fmt"
	"log/slog"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
)

// Provider names accepted by the factory
const (
	ProviderOpenAI = "openai"
	// ProviderOllama uses Ollama's OpenAI-compatible /v1 API
	ProviderOllama = "ollama"
)

const defaultOllamaBaseURL = "http://localhost:11434/v1"

// Config selects and configures the embedding and summarization providers
type Config struct {
	Provider       string
	APIKey         string
	BaseURL        string
	EmbeddingModel string
	Dimensions     int
	RateLimit      float64
	SummaryModel   string
}

// Factory creates AI services based on configuration
type Factory struct {
	logger *slog.Logger
}

// NewFactory creates a new AI service factory
func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger}
}

// CreateEmbeddingService creates the embedding adapter for cfg.Provider
func (f *Factory) CreateEmbeddingService(cfg Config) (*OpenAIEmbedding, error) {
	apiKey, baseURL, err := f.endpoint(cfg)
	if err != nil {
		return nil, err
	}
	return NewOpenAIEmbedding(apiKey, cfg.EmbeddingModel, baseURL,
		WithDimensions(cfg.Dimensions),
		WithRateLimit(cfg.RateLimit),
	)
}

// CreateSummarizer creates the summarization adapter for cfg.Provider
func (f *Factory) CreateSummarizer(cfg Config) (*OpenAISummarizer, error) {
	apiKey, baseURL, err := f.endpoint(cfg)
	if err != nil {
		return nil, err
	}
	return NewOpenAISummarizer(apiKey, cfg.SummaryModel, baseURL, f.logger)
}

func (f *Factory) endpoint(cfg Config) (apiKey, baseURL string, err error) {
	switch cfg.Provider {
	case "", ProviderOpenAI:
		return cfg.APIKey, cfg.BaseURL, nil
	case ProviderOllama:
		baseURL = cfg.BaseURL
		if baseURL == "" {
			baseURL = defaultOllamaBaseURL
		}
		apiKey = cfg.APIKey
		if apiKey == "" {
			// Ollama ignores the key but the client requires one
			apiKey = "ollama"
		}
		return apiKey, baseURL, nil
	default:
		return "", "", fmt.Errorf("%w: unknown AI provider %q", domain.ErrInvalidInput, cfg.Provider)
	}
}
