package factory

import (
	"fmt"
	"time"

	"legal-discovery-be/pkg/llm"
	"legal-discovery-be/pkg/llm/ollama"
)

// NewLLMProvider returns nil without error for provider "none"; the answer
// gate then stays extractive.
func NewLLMProvider(providerType, modelName, baseURL string, timeout time.Duration) (llm.LLMProvider, error) {
	switch providerType {
	case "", "none":
		return nil, nil
	case "ollama":
		return ollama.NewProvider(baseURL, modelName, timeout), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
