package ai

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
	"github.com/custodia-labs/quizcorpus/internal/core/ports/driven"
)

// Ensure Factory implements AIServiceFactory
var _ driven.AIServiceFactory = (*Factory)(nil)

// Factory creates AI services based on configuration
type Factory struct{}

// NewFactory creates a new AI service factory
func NewFactory() *Factory {
	return &Factory{}
}

// CreateEmbeddingService creates an embedding service from settings
func (f *Factory) CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	var (
		svc driven.EmbeddingService
		err error
	)
	switch settings.Provider {
	case domain.AIProviderOpenAI:
		svc, err = NewOpenAIEmbedding(settings.APIKey, settings.Model, settings.BaseURL, settings.Dimensions)
	case domain.AIProviderOllama:
		svc, err = NewOllamaEmbedding(settings.BaseURL, settings.Model, settings.Dimensions)
	case domain.AIProviderAzure:
		svc, err = NewAzureEmbedding(settings.APIKey, settings.BaseURL, settings.APIVersion, settings.Model, settings.Dimensions)
	case domain.AIProviderLocal:
		svc = NewHashEmbedding(settings.Dimensions)
	default:
		err = fmt.Errorf("%w: %s does not provide embeddings", domain.ErrInvalidProvider, settings.Provider)
	}
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// CreateBiasAssessor creates a bias assessor from settings
func (f *Factory) CreateBiasAssessor(settings *domain.LLMSettings) (driven.BiasAssessor, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	rpm := settings.RequestsPerMinute
	switch settings.Provider {
	case domain.AIProviderOpenAI:
		return NewOpenAIAssessor(settings.APIKey, settings.BaseURL, settings.Model, rpm), nil
	case domain.AIProviderOllama:
		return NewOpenAIAssessor("ollama", ollamaChatURL(settings.BaseURL), settings.Model, rpm), nil
	case domain.AIProviderAzure:
		return NewAzureAssessor(settings.APIKey, settings.BaseURL, settings.APIVersion, settings.Model, rpm), nil
	case domain.AIProviderAnthropic:
		return NewAnthropicAssessor(settings.APIKey, settings.BaseURL, settings.Model, rpm), nil
	case domain.AIProviderLocal:
		return NewKeywordAssessor(), nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}
}

// CreateContentRewriter creates a content rewriter from settings
func (f *Factory) CreateContentRewriter(settings *domain.LLMSettings) (driven.ContentRewriter, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	rpm := settings.RequestsPerMinute
	switch settings.Provider {
	case domain.AIProviderOpenAI:
		return NewOpenAIRewriter(settings.APIKey, settings.BaseURL, settings.Model, rpm), nil
	case domain.AIProviderOllama:
		return NewOpenAIRewriter("ollama", ollamaChatURL(settings.BaseURL), settings.Model, rpm), nil
	case domain.AIProviderAzure:
		return NewAzureRewriter(settings.APIKey, settings.BaseURL, settings.APIVersion, settings.Model, rpm), nil
	case domain.AIProviderAnthropic:
		return NewAnthropicRewriter(settings.APIKey, settings.BaseURL, settings.Model, rpm), nil
	case domain.AIProviderLocal:
		return NewTemplateRewriter(), nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}
}

func ollamaChatURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	if !strings.HasSuffix(baseURL, "/v1") {
		baseURL += "/v1"
	}
	return baseURL
}
