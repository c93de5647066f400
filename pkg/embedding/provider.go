package embedding

import (
	"context"
	"fmt"
	"math"
)

// Provider turns query text into a vector comparable with the indexed
// document embeddings.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NewProvider picks a provider by name.
func NewProvider(kind, baseURL, model, apiKey string) (Provider, error) {
	switch kind {
	case "", "ollama":
		return NewOllamaProvider(baseURL, model), nil
	case "jina":
		if apiKey == "" {
			return nil, fmt.Errorf("embedding: jina requires an api key")
		}
		return NewJinaProvider(apiKey, model), nil
	default:
		return nil, fmt.Errorf("embedding: unsupported provider %q", kind)
	}
}

// normalize scales vec to unit length so pgvector cosine distance is
// comparable across providers.
func normalize(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)
	if magnitude == 0 {
		return vec
	}

	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / magnitude)
	}
	return out
}
