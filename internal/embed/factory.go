package embed

import (
	"fmt"
	"os"
	"strings"
)

// NewProvider selects a provider by name:
//
//	"openai"              OpenAI text-embedding-3-large
//	"transformers"/"local" deterministic local embedder (MiniLM contract)
//	"ollama"              nomic-embed-text via local Ollama
//	"cohere"              Cohere embed-english-v3.0
//	"auto"                OpenAI if its key is set, else Cohere if its
//	                      key is set, else the local embedder
//
// The returned provider is not initialized; the caller owns its lifetime
// and must call Init before Embed.
func NewProvider(name string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return autoProvider(), nil
	case "openai":
		return NewOpenAIProvider(), nil
	case "transformers", "local":
		return NewLocalProvider(), nil
	case "ollama":
		return NewOllamaProvider(), nil
	case "cohere":
		return NewCohereProvider(), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q (use openai, transformers, ollama, cohere or auto)", name)
	}
}

func autoProvider() Provider {
	if os.Getenv(OpenAIKeyEnv) != "" {
		return NewOpenAIProvider()
	}
	if os.Getenv(CohereKeyEnv) != "" {
		return NewCohereProvider()
	}
	return NewLocalProvider()
}
