package agent

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/fluentlabs/lernplan/internal/models"
)

// DefaultEmbeddingModel is the default embedding model
const DefaultEmbeddingModel = "text-embedding-3-small"

// Embedder turns a generation request into a vector for similarity lookup
type Embedder interface {
	Embed(ctx context.Context, req *models.GenerationRequest) ([]float32, error)
}

// OpenAIEmbedder implements Embedder using OpenAI's embeddings API
type OpenAIEmbedder struct {
	client openai.Client
	model  string
}

// NewOpenAIEmbedder creates a new OpenAI-backed embedder
func NewOpenAIEmbedder(apiKey, baseURL, model string) *OpenAIEmbedder {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}

	httpClient := &http.Client{
		Timeout: DefaultTimeout,
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
	)

	return &OpenAIEmbedder{
		client: client,
		model:  model,
	}
}

// Embed produces an embedding vector for the request
func (e *OpenAIEmbedder) Embed(ctx context.Context, req *models.GenerationRequest) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(embeddingText(req)),
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", ErrProviderUnavailable)
	}

	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// embeddingText flattens a request into a stable text form. Learner context
// is excluded so that similar topic/level requests land near each other.
func embeddingText(req *models.GenerationRequest) string {
	var b strings.Builder
	b.WriteString(string(req.Topic.Capability))
	b.WriteString(" lesson at level ")
	b.WriteString(string(req.Level))
	b.WriteString(" on topic ")
	b.WriteString(strings.ToLower(strings.TrimSpace(req.Topic.Name)))
	return b.String()
}
