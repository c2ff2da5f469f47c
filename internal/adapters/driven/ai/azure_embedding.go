package ai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
	"github.com/custodia-labs/quizcorpus/internal/core/ports/driven"
)

// Ensure AzureEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*AzureEmbedding)(nil)

const defaultAzureAPIVersion = "2024-02-01"

// AzureEmbedding embeds text through an Azure OpenAI deployment.
// The model name doubles as the deployment name.
type AzureEmbedding struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewAzureEmbedding creates an embedder for an Azure OpenAI resource.
func NewAzureEmbedding(apiKey, endpoint, apiVersion, model string, dimensions int) (*AzureEmbedding, error) {
	if apiKey == "" || endpoint == "" {
		return nil, fmt.Errorf("%w: Azure API key and endpoint are required", domain.ErrInvalidInput)
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	if dimensions <= 0 {
		var ok bool
		if dimensions, ok = embeddingModelDimensions[model]; !ok {
			dimensions = 1536
		}
	}

	cfg := openai.DefaultAzureConfig(apiKey, endpoint)
	if apiVersion == "" {
		apiVersion = defaultAzureAPIVersion
	}
	cfg.APIVersion = apiVersion

	return &AzureEmbedding{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		dimensions: dimensions,
	}, nil
}

// Embed generates embeddings for multiple texts
func (e *AzureEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, openAIError(domain.ErrEmbeddingUnavailable, err)
	}

	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(embeddings) {
			continue
		}
		if len(d.Embedding) != e.dimensions {
			return nil, fmt.Errorf("%w: deployment %s returned %d dimensions, expected %d",
				domain.ErrDimensionMismatch, e.model, len(d.Embedding), e.dimensions)
		}
		embeddings[d.Index] = d.Embedding
	}
	for i, v := range embeddings {
		if v == nil {
			return nil, fmt.Errorf("%w: no embedding returned for input %d", domain.ErrEmbeddingUnavailable, i)
		}
	}
	return embeddings, nil
}

// EmbedQuery generates an embedding for a retrieval query
func (e *AzureEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	embeddings, err := e.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (e *AzureEmbedding) Dimensions() int { return e.dimensions }
func (e *AzureEmbedding) Model() string   { return e.model }
func (e *AzureEmbedding) Close() error    { return nil }

// HealthCheck verifies the deployment answers
func (e *AzureEmbedding) HealthCheck(ctx context.Context) error {
	_, err := e.EmbedQuery(ctx, "health check")
	return err
}
