// Package embedder provides the embedding backends injected into the vector
// index: a local Ollama instance (default) or the OpenAI embeddings API.
// The backend is selected at runtime via EMBEDDING_PROVIDER.
package embedder

import (
	"fmt"
	"os"

	"github.com/GuillaumeRedon/hackathon-IBM-DIA-E22/internal/index"
)

// Provider names accepted by the factory.
const (
	// ProviderOllama selects a locally running Ollama instance.
	ProviderOllama = "ollama"
	// ProviderOpenAI selects the OpenAI embeddings API.
	ProviderOpenAI = "openai"
)

// Options holds the resolved settings for constructing an embedder.
type Options struct {
	// Provider selects the backend: ollama or openai.
	Provider string
	// Model is the embedding model name.
	Model string
	// Dimension is the expected embedding vector size; 0 disables the check.
	Dimension int
	// OllamaHost is the Ollama server base URL (Ollama only).
	OllamaHost string
	// APIKey authenticates against the OpenAI API (OpenAI only).
	APIKey string
	// BaseURL overrides the OpenAI API endpoint (OpenAI only).
	BaseURL string
}

// NewFromEnv constructs the embedder selected by EMBEDDING_PROVIDER
// (default: ollama) with per-provider env overrides.
func NewFromEnv() (index.Embedder, error) {
	opts := Options{
		Provider:   envOr("EMBEDDING_PROVIDER", ProviderOllama),
		Model:      os.Getenv("EMBEDDING_MODEL"),
		Dimension:  envInt("EMBEDDING_DIMENSIONS"),
		OllamaHost: envOr("OLLAMA_HOST", "http://localhost:11434"),
		APIKey:     os.Getenv("EMBEDDING_API_KEY"),
		BaseURL:    os.Getenv("EMBEDDING_ENDPOINT"),
	}
	return New(opts)
}

// New constructs the embedder described by opts.
func New(opts Options) (index.Embedder, error) {
	switch opts.Provider {
	case ProviderOllama:
		if opts.Model == "" {
			opts.Model = "nomic-embed-text"
		}
		return NewOllamaEmbedder(&opts), nil
	case ProviderOpenAI:
		if opts.APIKey == "" {
			return nil, fmt.Errorf("embedder: openai provider selected but EMBEDDING_API_KEY not set")
		}
		if opts.Model == "" {
			opts.Model = "text-embedding-3-small"
		}
		return NewOpenAIEmbedder(&opts), nil
	default:
		return nil, fmt.Errorf("embedder: unknown provider %q", opts.Provider)
	}
}

// DefaultDimensions returns the vector size of the default model for the
// given provider, used to size new vector collections.
func DefaultDimensions(provider string) int {
	if d := envInt("EMBEDDING_DIMENSIONS"); d > 0 {
		return d
	}
	switch provider {
	case ProviderOpenAI:
		return 1536
	default:
		return 768
	}
}

// envOr returns the env var value, or fallback when unset or empty.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt returns the env var parsed as a non-negative int, or 0.
func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n := 0
	for _, r := range v {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
